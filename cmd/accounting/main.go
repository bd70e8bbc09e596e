package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/accounting-app/accounting-app/internal/app"
	"github.com/accounting-app/accounting-app/internal/clientvendors"
	"github.com/accounting-app/accounting-app/internal/companies"
	"github.com/accounting-app/accounting-app/internal/invoices"
	"github.com/accounting-app/accounting-app/internal/observability"
	"github.com/accounting-app/accounting-app/internal/platform/cache"
	"github.com/accounting-app/accounting-app/internal/platform/db"
	"github.com/accounting-app/accounting-app/internal/products"
	"github.com/accounting-app/accounting-app/internal/reports"
	"github.com/accounting-app/accounting-app/internal/shared"
	"github.com/accounting-app/accounting-app/internal/users"
	"github.com/accounting-app/accounting-app/jobs"
)

func main() {
	_ = godotenv.Load()

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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions())
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	auditLogger := shared.NewAuditLogger(pool)
	approvalRecorder := shared.NewApprovalRecorder(pool, logger)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	companyService := companies.NewService(companies.NewRepository(pool))
	counterpartyService := clientvendors.NewService(clientvendors.NewRepository(pool))
	productService := products.NewService(products.NewRepository(pool))
	userService := users.NewService(users.NewRepository(pool))
	resolver := users.NewCompanyResolver(userService, companyService, cfg.ReportUserEmail)

	redisOpts := cfg.QueueRedisOpt()
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	jobClient.WithCacheVersions(reportCache)
	invalidator := reports.NewInvalidator(reportCache, jobClient, logger)

	invoiceRepo := invoices.NewRepository(pool)
	invoiceService := invoices.NewService(invoiceRepo, counterpartyService, invoices.ServiceOptions{
		Audit:     auditLogger,
		Approvals: approvalRecorder,
		Notifier:  invalidator,
		Metrics:   metrics,
		Logger:    logger,
	})
	reportService := reports.NewService(reports.NewRepository(pool), invoiceRepo, resolver, reportCache, metrics, logger)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		CompaniesHandler:     companies.NewHandler(logger, companyService),
		ClientVendorsHandler: clientvendors.NewHandler(logger, counterpartyService),
		ProductsHandler:      products.NewHandler(logger, productService),
		InvoicesHandler:      invoices.NewHandler(logger, invoiceService, idempotencyStore, approvalRecorder),
		ReportsHandler:       reports.NewHandler(logger, reportService, cfg.ExportLimitPerMin),
		UsersHandler:         users.NewHandler(logger, userService, resolver),
		JobHandler:           jobs.NewHandler(inspector, jobClient, logger),
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
