package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/obrasys-erp/obrasys/internal/ingest"
	"github.com/obrasys-erp/obrasys/internal/observability"
)

// NewFinanceSyncHandler returns the handler that mirrors the operational
// snapshot into the financial ledger.
func NewFinanceSyncHandler(service *ingest.Service, provider ingest.SnapshotProvider, logger *slog.Logger, metrics *observability.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		snapshot, err := provider.Snapshot(ctx)
		if err != nil {
			logger.Error("finance sync snapshot", slog.Any("error", err))
			metrics.ObserveJob(TaskFinanceSync, "error")
			return err
		}
		result, err := service.Run(ctx, snapshot)
		if err != nil {
			logger.Error("finance sync", slog.Any("error", err))
			metrics.ObserveJob(TaskFinanceSync, "error")
			return err
		}
		logger.Info("finance sync",
			slog.Int("created", result.Created()),
			slog.Int("skipped", result.Skipped()),
			slog.Int("failed", len(result.Failures)),
		)
		metrics.ObserveJob(TaskFinanceSync, "ok")
		return nil
	}
}
