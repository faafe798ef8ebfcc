package budget

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/obrasys-erp/obrasys/internal/platform/httpx"
	"github.com/obrasys-erp/obrasys/internal/shared"
)

// Handler exposes the rollup calculator. The tree itself is owned by the
// presentation layer; the engine only computes, so the endpoint is stateless.
type Handler struct {
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger, validate: validator.New()}
}

// MountRoutes registers the budget endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/totals", h.ComputeTotals)
}

type itemRequest struct {
	ID         string  `json:"id" validate:"required"`
	MaterialID string  `json:"material_id"`
	Kind       string  `json:"kind" validate:"required,oneof=MATERIAL LABOR"`
	Unit       string  `json:"unit"`
	Quantity   float64 `json:"quantity" validate:"gt=0"`
	UnitPrice  float64 `json:"unit_price" validate:"gte=0"`
}

type substageRequest struct {
	ID    string        `json:"id" validate:"required"`
	Name  string        `json:"name"`
	Items []itemRequest `json:"items" validate:"dive"`
}

type stageRequest struct {
	ID        string            `json:"id" validate:"required"`
	Name      string            `json:"name"`
	Items     []itemRequest     `json:"items" validate:"dive"`
	Substages []substageRequest `json:"substages" validate:"dive"`
}

type treeRequest struct {
	BDI      float64        `json:"bdi" validate:"gte=0"`
	Discount float64        `json:"discount" validate:"gte=0,lte=100"`
	Stages   []stageRequest `json:"stages" validate:"required,min=1,dive"`
}

type totalsResponse struct {
	Totals Totals        `json:"totals"`
	Stages []StageTotals `json:"stages"`
}

func (h *Handler) ComputeTotals(w http.ResponseWriter, r *http.Request) {
	var req treeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	tree, err := buildTree(req)
	if err != nil {
		if errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Budget Tree", err.Error())
			return
		}
		h.logger.Error("build budget tree", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, totalsResponse{
		Totals: ComputeTotals(tree),
		Stages: ComputeStageTotals(tree),
	})
}

func buildTree(req treeRequest) (*Tree, error) {
	tree := NewTree(req.BDI, req.Discount)
	for _, st := range req.Stages {
		if err := tree.AddStage(Stage{ID: st.ID, Name: st.Name}); err != nil {
			return nil, err
		}
		for _, item := range st.Items {
			if err := tree.AddStageItem(st.ID, toItem(item)); err != nil {
				return nil, err
			}
		}
		for _, sub := range st.Substages {
			if err := tree.AddSubstage(Substage{ID: sub.ID, StageID: st.ID, Name: sub.Name}); err != nil {
				return nil, err
			}
			for _, item := range sub.Items {
				if err := tree.AddSubstageItem(sub.ID, toItem(item)); err != nil {
					return nil, err
				}
			}
		}
	}
	return tree, nil
}

func toItem(req itemRequest) LineItem {
	return LineItem{
		ID:         req.ID,
		MaterialID: req.MaterialID,
		Kind:       ItemKind(req.Kind),
		Unit:       req.Unit,
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
	}
}
