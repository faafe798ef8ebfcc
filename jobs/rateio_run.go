package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/obrasys-erp/obrasys/internal/observability"
	"github.com/obrasys-erp/obrasys/internal/rateio"
	"github.com/obrasys-erp/obrasys/internal/shared"
)

// NewFinanceRateioHandler returns the handler that allocates administrative
// costs across active projects. A task without a period targets the previous
// month, which is the period the monthly schedule closes.
func NewFinanceRateioHandler(service *rateio.Service, logger *slog.Logger, metrics *observability.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		period, err := taskPeriod(t)
		if err != nil {
			logger.Error("rateio period", slog.Any("error", err))
			metrics.ObserveJob(TaskFinanceRateio, "invalid")
			return asynq.SkipRetry
		}
		result, err := service.Run(ctx, period)
		if err != nil {
			logger.Error("rateio run", slog.String("period", period.String()), slog.Any("error", err))
			metrics.ObserveJob(TaskFinanceRateio, "error")
			return err
		}
		if result.InsufficientData {
			logger.Info("rateio skipped, insufficient data", slog.String("period", period.String()))
			metrics.ObserveJob(TaskFinanceRateio, "skipped")
			return nil
		}
		logger.Info("rateio run",
			slog.String("period", period.String()),
			slog.Int("allocated", result.Allocated),
			slog.Int("already_allocated", result.AlreadyAllocated),
			slog.Int("failed", len(result.Failures)),
		)
		metrics.ObserveJob(TaskFinanceRateio, "ok")
		return nil
	}
}

// taskPeriod parses the task payload period, defaulting to the previous month.
func taskPeriod(t *asynq.Task) (shared.Period, error) {
	if len(t.Payload()) == 0 {
		return previousMonth(), nil
	}
	var payload PeriodPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return shared.Period{}, err
	}
	if payload.Period == "" {
		return previousMonth(), nil
	}
	return shared.ParsePeriod(payload.Period)
}

func previousMonth() shared.Period {
	now := time.Now().UTC()
	prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	period, _ := shared.NewPeriod(prev.Month(), prev.Year())
	return period
}
