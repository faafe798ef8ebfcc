package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/obrasys-erp/obrasys/internal/budget"
	"github.com/obrasys-erp/obrasys/internal/ingest"
	"github.com/obrasys-erp/obrasys/internal/ledger"
	"github.com/obrasys-erp/obrasys/internal/observability"
	"github.com/obrasys-erp/obrasys/internal/payroll"
	"github.com/obrasys-erp/obrasys/internal/rateio"
	"github.com/obrasys-erp/obrasys/internal/summary"
	"github.com/obrasys-erp/obrasys/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	LedgerHandler  *ledger.Handler
	BudgetHandler  *budget.Handler
	IngestHandler  *ingest.Handler
	RateioHandler  *rateio.Handler
	PayrollHandler *payroll.Handler
	SummaryHandler *summary.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with Obrasys defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		if params.LedgerHandler != nil {
			r.Route("/finance", params.LedgerHandler.MountRoutes)
		}
		if params.SummaryHandler != nil {
			r.Route("/finance/summary", params.SummaryHandler.MountRoutes)
		}
		if params.IngestHandler != nil {
			r.Route("/finance/sync", params.IngestHandler.MountRoutes)
		}
		if params.RateioHandler != nil {
			r.Route("/finance/rateio", params.RateioHandler.MountRoutes)
		}
		if params.BudgetHandler != nil {
			r.Route("/budgets", params.BudgetHandler.MountRoutes)
		}
		if params.PayrollHandler != nil {
			r.Route("/payroll", params.PayrollHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
