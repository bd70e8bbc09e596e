package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportWarmup recomputes cached reports of one or all companies.
	TaskReportWarmup = "reports:warmup"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// ReportWarmupPayload selects the company to warm. Zero warms every enabled
// company.
type ReportWarmupPayload struct {
	CompanyID int64 `json:"company_id,omitempty"`
}

// IdempotencyCleanupPayload overrides the retention window.
type IdempotencyCleanupPayload struct {
	OlderThan time.Duration `json:"older_than,omitempty"`
}

// NewReportWarmupTask constructs a warmup task.
func NewReportWarmupTask(payload ReportWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportWarmup, data), nil
}

// NewIdempotencyCleanupTask constructs a cleanup task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
