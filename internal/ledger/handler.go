package ledger

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/obrasys-erp/obrasys/internal/platform/httpx"
	"github.com/obrasys-erp/obrasys/internal/shared"
)

// Handler exposes the entry settlement workflow over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the ledger endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/entries/{id}/settle", h.Settle)
	r.Post("/entries/{id}/cancel", h.Cancel)
	r.Post("/entries/refresh-overdue", h.RefreshOverdue)
	r.Get("/projects/{projectID}/entries", h.ProjectEntries)
}

func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.Settle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "settle entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, "cancel entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusCancelled)})
}

func (h *Handler) RefreshOverdue(w http.ResponseWriter, r *http.Request) {
	updated, err := h.service.RefreshOverdue(r.Context())
	if err != nil {
		h.respondError(w, "refresh overdue", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"updated": updated})
}

func (h *Handler) ProjectEntries(w http.ResponseWriter, r *http.Request) {
	var period shared.Period
	if code := r.URL.Query().Get("period"); code != "" {
		parsed, err := shared.ParsePeriod(code)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Period", err.Error())
			return
		}
		period = parsed
	}
	entries, err := h.service.ProjectEntries(r.Context(), chi.URLParam(r, "projectID"), period, Kind(r.URL.Query().Get("kind")))
	if err != nil {
		h.respondError(w, "list project entries", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, shared.ErrValidation):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Operation", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
