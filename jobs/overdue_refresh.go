package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/obrasys-erp/obrasys/internal/ledger"
	"github.com/obrasys-erp/obrasys/internal/observability"
)

// NewFinanceOverdueHandler returns the handler that flips pending entries
// past their due date to overdue.
func NewFinanceOverdueHandler(service *ledger.Service, logger *slog.Logger, metrics *observability.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		updated, err := service.RefreshOverdue(ctx)
		if err != nil {
			logger.Error("overdue refresh", slog.Any("error", err))
			metrics.ObserveJob(TaskFinanceOverdue, "error")
			return err
		}
		logger.Info("overdue refresh", slog.Int("updated", updated))
		metrics.ObserveJob(TaskFinanceOverdue, "ok")
		return nil
	}
}
