package summary

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/obrasys-erp/obrasys/internal/platform/httpx"
)

// Handler exposes the financial summary over JSON. Concurrent dashboard
// requests collapse into one projection build via singleflight.
type Handler struct {
	logger  *slog.Logger
	service *Service
	group   singleflight.Group
	printer *message.Printer
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		printer: message.NewPrinter(language.BrazilianPortuguese),
	}
}

// MountRoutes registers the summary endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.Financial)
}

type summaryResponse struct {
	Summary
	Formatted map[string]string `json:"formatted"`
}

func (h *Handler) Financial(w http.ResponseWriter, r *http.Request) {
	value, err, _ := h.single(r.Context(), "financial", func(ctx context.Context) (interface{}, error) {
		return h.service.Financial(ctx)
	})
	if err != nil {
		h.logger.Error("financial summary", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sum := value.(Summary)
	httpx.JSON(w, http.StatusOK, summaryResponse{
		Summary: sum,
		Formatted: map[string]string{
			"revenue":           h.money(sum.Revenue),
			"expense":           h.money(sum.Expense),
			"balance":           h.money(sum.Balance),
			"projected_balance": h.money(sum.ProjectedBalance),
			"net_profit":        h.money(sum.NetProfit),
		},
	})
}

func (h *Handler) money(v float64) string {
	return h.printer.Sprintf("R$ %.2f", v)
}

func (h *Handler) single(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error, bool) {
	resultChan := h.group.DoChan(key, func() (interface{}, error) {
		return fn(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}
