package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/obrasys-erp/obrasys/internal/observability"
	"github.com/obrasys-erp/obrasys/internal/payroll"
)

// NewFinancePayrollHandler returns the handler that generates payroll records
// from the period's construction-log labor entries.
func NewFinancePayrollHandler(service *payroll.Service, logger *slog.Logger, metrics *observability.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		period, err := taskPeriod(t)
		if err != nil {
			logger.Error("payroll period", slog.Any("error", err))
			metrics.ObserveJob(TaskFinancePayroll, "invalid")
			return asynq.SkipRetry
		}
		result, err := service.RunPeriod(ctx, period)
		if err != nil {
			logger.Error("payroll run", slog.String("period", period.String()), slog.Any("error", err))
			metrics.ObserveJob(TaskFinancePayroll, "error")
			return err
		}
		logger.Info("payroll run",
			slog.String("period", period.String()),
			slog.Int("records", len(result.Records)),
			slog.Int("failed", len(result.Failures)),
		)
		metrics.ObserveJob(TaskFinancePayroll, "ok")
		return nil
	}
}
