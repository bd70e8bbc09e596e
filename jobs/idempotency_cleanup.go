package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/accounting-app/accounting-app/internal/jobs"
)

// IdempotencyCleaner drops idempotency keys older than a retention window.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob purges expired idempotency keys.
type IdempotencyCleanupJob struct {
	Store     IdempotencyCleaner
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// Handle processes cleanup tasks. A payload retention overrides the default.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload IdempotencyCleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	retention := j.Retention
	if payload.OlderThan > 0 {
		retention = payload.OlderThan
	}
	if retention <= 0 {
		return asynq.SkipRetry
	}

	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskIdempotencyCleanup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := slog.Default()
	if j.Logger != nil {
		logger = j.Logger
	}
	removed, err := j.Store.Cleanup(ctx, retention)
	if err != nil {
		logger.Error("idempotency cleanup", slog.Any("error", err))
		return err
	}
	metrics.AddProcessed(TaskIdempotencyCleanup, removed)
	logger.Info("idempotency cleanup", slog.String("job", TaskIdempotencyCleanup), slog.Int64("removed", removed), slog.Duration("retention", retention))
	return nil
}
