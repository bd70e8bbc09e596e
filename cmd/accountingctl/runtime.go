package main

import (
	"context"
	"errors"

	"github.com/accounting-app/accounting-app/internal/app"
	"github.com/accounting-app/accounting-app/internal/clientvendors"
	"github.com/accounting-app/accounting-app/internal/companies"
	"github.com/accounting-app/accounting-app/internal/invoices"
	"github.com/accounting-app/accounting-app/internal/observability"
	"github.com/accounting-app/accounting-app/internal/platform/cache"
	"github.com/accounting-app/accounting-app/internal/platform/db"
	"github.com/accounting-app/accounting-app/internal/reports"
	"github.com/accounting-app/accounting-app/internal/shared"
	"github.com/accounting-app/accounting-app/internal/users"
	"github.com/accounting-app/accounting-app/jobs"
)

type invoiceOps interface {
	Approve(ctx context.Context, number string) error
	ApprovePurchase(ctx context.Context, invoiceID int64) error
	Enable(ctx context.Context, invoiceID int64) error
}

type reportOps interface {
	ProfitLoss(ctx context.Context) (reports.ProfitLoss, error)
	ByProduct(ctx context.Context) ([]reports.ProductLine, error)
}

type warmupScheduler interface {
	EnqueueReportWarmup(ctx context.Context, companyID int64) error
}

// runtime holds the services a command operates on.
type runtime struct {
	Invoices invoiceOps
	Reports  reportOps
	Warmups  warmupScheduler
	close    func()
}

func (r *runtime) Close() {
	if r != nil && r.close != nil {
		r.close()
	}
}

type connector func(ctx context.Context) (*runtime, error)

// connect wires the same services the HTTP server uses.
func connect(ctx context.Context) (*runtime, error) {
	if app.InTestMode() {
		return nil, errors.New("test mode: refusing to connect")
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions())
	if err != nil {
		return nil, err
	}
	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		pool.Close()
		return nil, err
	}
	jobClient, err := jobs.NewClient(cfg.QueueRedisOpt())
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, err
	}

	metrics := observability.NewMetrics()
	companyService := companies.NewService(companies.NewRepository(pool))
	userService := users.NewService(users.NewRepository(pool))
	resolver := users.NewCompanyResolver(userService, companyService, cfg.ReportUserEmail)

	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	jobClient.WithCacheVersions(reportCache)
	invoiceRepo := invoices.NewRepository(pool)
	invoiceService := invoices.NewService(invoiceRepo,
		clientvendors.NewService(clientvendors.NewRepository(pool)),
		invoices.ServiceOptions{
			Audit:     shared.NewAuditLogger(pool),
			Approvals: shared.NewApprovalRecorder(pool, logger),
			Notifier:  reports.NewInvalidator(reportCache, jobClient, logger),
			Metrics:   metrics,
			Logger:    logger,
		})
	reportService := reports.NewService(reports.NewRepository(pool), invoiceRepo, resolver, reportCache, metrics, logger)

	return &runtime{
		Invoices: invoiceService,
		Reports:  reportService,
		Warmups:  jobClient,
		close: func() {
			_ = jobClient.Close()
			_ = redisClient.Close()
			pool.Close()
		},
	}, nil
}
