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

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ReportWarmer precomputes a company's cached reports.
type ReportWarmer interface {
	Warm(ctx context.Context, companyID int64) error
}

// CompanyLister enumerates companies eligible for warmup.
type CompanyLister interface {
	EnabledIDs(ctx context.Context) ([]int64, error)
}

// ReportWarmupJob pre-populates report caches.
type ReportWarmupJob struct {
	Reports   ReportWarmer
	Companies CompanyLister
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewReportWarmupJob wires dependencies for the warmup handler.
func NewReportWarmupJob(reports ReportWarmer, companies CompanyLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportWarmupJob {
	return &ReportWarmupJob{Reports: reports, Companies: companies, Logger: logger, Metrics: metrics}
}

// Handle processes report warmup tasks.
func (j *ReportWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Reports == nil {
		return errors.New("report warmup: handler not configured")
	}
	var payload ReportWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.metrics().Track(TaskReportWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	started := time.Now()
	ids := []int64{payload.CompanyID}
	if payload.CompanyID == 0 {
		if j.Companies == nil {
			return errors.New("report warmup: company lister not configured")
		}
		var err error
		if ids, err = j.Companies.EnabledIDs(ctx); err != nil {
			logger.Error("load companies", slog.Any("error", err))
			return err
		}
	}

	warmed := 0
	for _, id := range ids {
		scopeCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		err := j.Reports.Warm(scopeCtx, id)
		cancel()
		if err != nil {
			logger.Error("warm company reports", slog.Int64("company_id", id), slog.Any("error", err))
			j.metrics().AddProcessed(TaskReportWarmup, int64(warmed))
			return err
		}
		warmed++
	}
	j.metrics().AddProcessed(TaskReportWarmup, int64(warmed))
	logger.Info("completed report warmup", slog.Int("companies", warmed), slog.Duration("duration", time.Since(started)))
	return nil
}

func (j *ReportWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportWarmup))
}

func (j *ReportWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
