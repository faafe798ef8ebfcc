package payroll

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/obrasys-erp/obrasys/internal/platform/httpx"
	"github.com/obrasys-erp/obrasys/internal/shared"
)

// Handler exposes the payroll generator over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers the payroll endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/generate", h.Generate)
	r.Get("/{period}", h.List)
}

type generateRequest struct {
	Period  string       `json:"period" validate:"required"`
	Entries []LaborEntry `json:"entries" validate:"dive"`
}

// Generate runs payroll for the period. When the request carries no entries,
// the configured labor provider supplies them.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	period, err := shared.ParsePeriod(req.Period)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Period", err.Error())
		return
	}
	var result Result
	if len(req.Entries) > 0 {
		result, err = h.service.Generate(r.Context(), period, req.Entries)
	} else {
		result, err = h.service.RunPeriod(r.Context(), period)
	}
	if err != nil {
		h.logger.Error("payroll generate", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// List returns the stored payroll records for a period.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	period, err := shared.ParsePeriod(chi.URLParam(r, "period"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Period", err.Error())
		return
	}
	records, err := h.service.ListPeriod(r.Context(), period)
	if err != nil {
		h.logger.Error("list payroll", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, records)
}
