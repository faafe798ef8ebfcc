package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/obrasys-erp/obrasys/internal/app"
	"github.com/obrasys-erp/obrasys/internal/budget"
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
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	ledgerService := ledger.NewService(store)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	budgetHandler := budget.NewHandler(logger)

	ingestService := ingest.NewService(store, logger, ingest.ServiceConfig{
		Taxes:        cfg.TaxRates(),
		Withholdings: cfg.WithholdingRates(),
	})
	ingestHandler := ingest.NewHandler(logger, ingestService)

	rateioService := rateio.NewService(store, rateio.NewPGProjects(pool), logger)
	rateioHandler := rateio.NewHandler(logger, rateioService)

	payrollService := payroll.NewService(store, payroll.NewPGLabor(pool), logger, payroll.Config{
		INSSPct: cfg.PayrollINSS,
		IRRFPct: cfg.PayrollIRRF,
		FGTSPct: cfg.PayrollFGTS,
	})
	payrollHandler := payroll.NewHandler(logger, payrollService)

	summaryService := summary.NewService(store, summaryCache)
	summaryHandler := summary.NewHandler(logger, summaryService)

	metrics := observability.NewMetrics()

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		LedgerHandler:  ledgerHandler,
		BudgetHandler:  budgetHandler,
		IngestHandler:  ingestHandler,
		RateioHandler:  rateioHandler,
		PayrollHandler: payrollHandler,
		SummaryHandler: summaryHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
