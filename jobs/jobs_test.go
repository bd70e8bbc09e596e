package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/accounting-app/accounting-app/internal/jobs"
)

type recordingWarmer struct {
	warmed []int64
	failOn int64
}

func (r *recordingWarmer) Warm(ctx context.Context, companyID int64) error {
	if companyID == r.failOn {
		return errors.New("redis down")
	}
	r.warmed = append(r.warmed, companyID)
	return nil
}

type staticCompanies []int64

func (s staticCompanies) EnabledIDs(ctx context.Context) ([]int64, error) {
	return s, nil
}

type stubCleaner struct {
	olderThan time.Duration
	removed   int64
}

func (s *stubCleaner) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.olderThan = olderThan
	return s.removed, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func processed(t *testing.T, reg *prometheus.Registry, job string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "accounting_jobs_processed_items_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == "job" && pair.GetValue() == job {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestReportWarmupSingleCompany(t *testing.T) {
	warmer := &recordingWarmer{}
	reg := prometheus.NewRegistry()
	job := NewReportWarmupJob(warmer, staticCompanies{1, 2, 3}, quietLogger(), jobmetrics.NewMetrics(reg))

	task, err := NewReportWarmupTask(ReportWarmupPayload{CompanyID: 2})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []int64{2}, warmer.warmed)
	require.Equal(t, 1.0, processed(t, reg, TaskReportWarmup))
}

func TestReportWarmupAllCompanies(t *testing.T) {
	warmer := &recordingWarmer{}
	job := NewReportWarmupJob(warmer, staticCompanies{1, 3}, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskReportWarmup, nil)))
	require.Equal(t, []int64{1, 3}, warmer.warmed)
}

func TestReportWarmupStopsOnFailure(t *testing.T) {
	warmer := &recordingWarmer{failOn: 3}
	job := NewReportWarmupJob(warmer, staticCompanies{1, 3, 5}, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), asynq.NewTask(TaskReportWarmup, []byte(`{}`)))
	require.Error(t, err)
	require.Equal(t, []int64{1}, warmer.warmed)
}

func TestReportWarmupRejectsBadPayload(t *testing.T) {
	job := NewReportWarmupJob(&recordingWarmer{}, nil, quietLogger(), nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskReportWarmup, []byte(`{bad`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestIdempotencyCleanupUsesRetention(t *testing.T) {
	cleaner := &stubCleaner{removed: 7}
	reg := prometheus.NewRegistry()
	job := &IdempotencyCleanupJob{Store: cleaner, Retention: 72 * time.Hour, Logger: quietLogger(), Metrics: jobmetrics.NewMetrics(reg)}

	task, err := NewIdempotencyCleanupTask(IdempotencyCleanupPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 72*time.Hour, cleaner.olderThan)
	require.Equal(t, 7.0, processed(t, reg, TaskIdempotencyCleanup))

	task, err = NewIdempotencyCleanupTask(IdempotencyCleanupPayload{OlderThan: time.Hour})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, time.Hour, cleaner.olderThan)
}

func TestWarmupTaskIDIsStablePerMinute(t *testing.T) {
	at := time.Date(2024, 5, 7, 14, 30, 10, 0, time.UTC)
	require.Equal(t, WarmupTaskID(2, 1, at), WarmupTaskID(2, 1, at.Add(40*time.Second)))
	require.NotEqual(t, WarmupTaskID(2, 1, at), WarmupTaskID(2, 1, at.Add(time.Minute)))
	require.NotEqual(t, WarmupTaskID(2, 1, at), WarmupTaskID(3, 1, at))
	require.NotEqual(t, WarmupTaskID(2, 1, at), WarmupTaskID(2, 2, at))
}

type stepVersions struct {
	version int64
	err     error
}

func (s *stepVersions) Version(ctx context.Context, companyID int64) (int64, error) {
	return s.version, s.err
}

func TestWarmupAfterBumpGetsFreshTaskID(t *testing.T) {
	at := time.Date(2024, 5, 7, 14, 30, 10, 0, time.UTC)
	versions := &stepVersions{version: 4}
	c := (&Client{now: func() time.Time { return at }}).WithCacheVersions(versions)

	running := c.warmupTaskID(context.Background(), 2)
	require.Equal(t, running, c.warmupTaskID(context.Background(), 2))

	versions.version = 5
	require.NotEqual(t, running, c.warmupTaskID(context.Background(), 2))

	versions.err = errors.New("redis down")
	require.Equal(t, WarmupTaskID(2, 0, at), c.warmupTaskID(context.Background(), 2))
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, nil, quietLogger()).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, QueueDefault, body["queue"])
	require.EqualValues(t, 0, body["pending"])
}

type recordingEnqueuer struct{ companies []int64 }

func (r *recordingEnqueuer) EnqueueReportWarmup(_ context.Context, companyID int64) error {
	r.companies = append(r.companies, companyID)
	return nil
}

func TestWarmupEndpoint(t *testing.T) {
	enq := &recordingEnqueuer{}
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, enq, quietLogger()).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/warmup?company_id=7", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/warmup", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/warmup?company_id=-1", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	require.Equal(t, []int64{7, 0}, enq.companies)
}

func TestWarmupEndpointWithoutQueue(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, nil, quietLogger()).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/warmup", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
