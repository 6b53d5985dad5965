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

	"github.com/vantage-ops/vantage-ops/internal/app"
	"github.com/vantage-ops/vantage-ops/internal/auth"
	"github.com/vantage-ops/vantage-ops/internal/billing"
	"github.com/vantage-ops/vantage-ops/internal/incentive"
	"github.com/vantage-ops/vantage-ops/internal/invoicing"
	"github.com/vantage-ops/vantage-ops/internal/jobs"
	"github.com/vantage-ops/vantage-ops/internal/masterdata"
	"github.com/vantage-ops/vantage-ops/internal/notify"
	"github.com/vantage-ops/vantage-ops/internal/platform/cache"
	"github.com/vantage-ops/vantage-ops/internal/platform/db"
	"github.com/vantage-ops/vantage-ops/internal/platform/secrets"
	"github.com/vantage-ops/vantage-ops/internal/reports"
	"github.com/vantage-ops/vantage-ops/internal/timesheet"
	"github.com/vantage-ops/vantage-ops/internal/users"
)

func main() {
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

	// Reports fall back to uncached queries when Redis is unreachable.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("connect redis", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	box, err := secrets.NewBoxFromBase64(cfg.CredentialsKey)
	if err != nil {
		logger.Error("load credentials key", slog.Any("error", err))
		os.Exit(1)
	}

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	notifier := notify.NewQueueNotifier(jobClient, logger)

	authmw := auth.Middleware{Secret: []byte(cfg.AuthSecret), Logger: logger}

	incentiveRepo := incentive.NewRepository(pool)
	incentiveService := incentive.NewService(incentiveRepo)
	incentiveEngine := incentive.NewEngine(incentiveRepo, incentive.PrecedenceAllMatches)
	incentiveHandler := incentive.NewHandler(logger, incentiveService, authmw)

	reportsRepo := reports.NewRepository(pool)
	reportsCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	reportsService := reports.NewService(reportsRepo, reportsCache, logger)
	reportsHandler := reports.NewHandler(logger, reportsService, authmw)

	timesheetRepo := timesheet.NewRepository(pool)
	timesheetService := timesheet.NewService(timesheetRepo, incentiveEngine, reportsService, logger)
	timesheetHandler := timesheet.NewHandler(logger, timesheetService, authmw)

	invoicingRepo := invoicing.NewRepository(pool)
	invoicingService := invoicing.NewService(invoicingRepo, notifier, logger)

	billingRepo := billing.NewRepository(pool, box)
	billingClient := billing.NewClient(billing.ClientConfig{
		SandboxURL:    cfg.BillingSandboxURL,
		ProductionURL: cfg.BillingProductionURL,
		Timeout:       cfg.BillingTimeout,
		SessionTTL:    cfg.BillingSessionTTL,
	}, billingRepo)
	submitter := billing.NewSubmitter(invoicingRepo, billingRepo, billingClient, notifier, logger)
	billingHandler := billing.NewHandler(logger, billingRepo, billingClient, authmw)

	invoicingHandler := invoicing.NewHandler(logger, invoicingService, submitter, authmw)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService, authmw)

	masterdataRepo := masterdata.NewRepository(pool)
	masterdataService := masterdata.NewService(masterdataRepo)
	masterdataHandler := masterdata.NewHandler(logger, masterdataService, authmw)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AuthMiddleware:    authmw,
		TimesheetHandler:  timesheetHandler,
		IncentiveHandler:  incentiveHandler,
		InvoicingHandler:  invoicingHandler,
		BillingHandler:    billingHandler,
		ReportsHandler:    reportsHandler,
		UsersHandler:      usersHandler,
		MasterDataHandler: masterdataHandler,
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
