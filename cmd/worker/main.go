package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/obrasys-erp/obrasys/internal/app"
	"github.com/obrasys-erp/obrasys/internal/ingest"
	"github.com/obrasys-erp/obrasys/internal/ledger"
	"github.com/obrasys-erp/obrasys/internal/observability"
	"github.com/obrasys-erp/obrasys/internal/payroll"
	"github.com/obrasys-erp/obrasys/internal/platform/cache"
	"github.com/obrasys-erp/obrasys/internal/platform/db"
	"github.com/obrasys-erp/obrasys/internal/rateio"
	"github.com/obrasys-erp/obrasys/internal/summary"
	"github.com/obrasys-erp/obrasys/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	summaryCache := summary.NewCache(redisClient, 10*time.Minute)

	store := ledger.NewRepository(pool)
	store.SetInvalidator(summaryCache)

	metrics := observability.NewMetrics()

	ingestService := ingest.NewService(store, logger, ingest.ServiceConfig{
		Taxes:        cfg.TaxRates(),
		Withholdings: cfg.WithholdingRates(),
	})
	ledgerService := ledger.NewService(store)
	rateioService := rateio.NewService(store, rateio.NewPGProjects(pool), logger)
	payrollService := payroll.NewService(store, payroll.NewPGLabor(pool), logger, payroll.Config{
		INSSPct: cfg.PayrollINSS,
		IRRFPct: cfg.PayrollIRRF,
		FGTSPct: cfg.PayrollFGTS,
	})

	rateioTask, err := jobs.NewFinanceRateioTask(jobs.PeriodPayload{})
	if err != nil {
		logger.Error("build rateio task", slog.Any("error", err))
		os.Exit(1)
	}
	payrollTask, err := jobs.NewFinancePayrollTask(jobs.PeriodPayload{})
	if err != nil {
		logger.Error("build payroll task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskFinanceSync, Handler: jobs.NewFinanceSyncHandler(ingestService, ingest.NewPGProvider(pool), logger, metrics)},
			{Type: jobs.TaskFinanceRateio, Handler: jobs.NewFinanceRateioHandler(rateioService, logger, metrics)},
			{Type: jobs.TaskFinancePayroll, Handler: jobs.NewFinancePayrollHandler(payrollService, logger, metrics)},
			{Type: jobs.TaskFinanceOverdue, Handler: jobs.NewFinanceOverdueHandler(ledgerService, logger, metrics)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/30 * * * *", Task: jobs.NewFinanceSyncTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 1 * * *", Task: jobs.NewFinanceOverdueTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 1 1 * *", Task: rateioTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 2 1 * *", Task: payrollTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
