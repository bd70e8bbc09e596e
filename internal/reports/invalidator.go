package reports

import (
	"context"
	"log/slog"
)

// WarmupScheduler queues background recomputation of a company's reports.
type WarmupScheduler interface {
	EnqueueReportWarmup(ctx context.Context, companyID int64) error
}

// Invalidator drops a company's cached reports after its invoices change
// and optionally schedules a warmup.
type Invalidator struct {
	cache     *Cache
	scheduler WarmupScheduler
	logger    *slog.Logger
}

// NewInvalidator builds an Invalidator. scheduler may be nil.
func NewInvalidator(cache *Cache, scheduler WarmupScheduler, logger *slog.Logger) *Invalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invalidator{cache: cache, scheduler: scheduler, logger: logger}
}

// InvoiceChanged bumps the company's cache version. Failures are logged;
// a stale report expires with its TTL.
func (i *Invalidator) InvoiceChanged(ctx context.Context, companyID int64) {
	if err := i.cache.Bump(ctx, companyID); err != nil {
		i.logger.Warn("bump report cache", slog.Int64("company_id", companyID), slog.Any("error", err))
	}
	if i.scheduler == nil {
		return
	}
	if err := i.scheduler.EnqueueReportWarmup(ctx, companyID); err != nil {
		i.logger.Warn("enqueue report warmup", slog.Int64("company_id", companyID), slog.Any("error", err))
	}
}
