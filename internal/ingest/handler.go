package ingest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/obrasys-erp/obrasys/internal/platform/httpx"
)

// Handler exposes the ingestion mapper over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers the ingestion endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/run", h.Run)
}

func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	var snapshot Snapshot
	if err := httpx.DecodeJSON(r, &snapshot); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(snapshot); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Run(r.Context(), snapshot)
	if err != nil {
		h.logger.Error("ingestion run", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
