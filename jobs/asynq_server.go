package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/accounting-app/accounting-app/internal/platform/httpx"
)

// warmupDelay lets a burst of invoice changes collapse into one warmup.
const warmupDelay = 5 * time.Second

var warmupNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("accounting-app/jobs/report-warmup"))

// Worker wraps the Asynq server and optional scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// TaskHandler allows injecting custom Asynq handlers during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts asynq.RedisClientOpt
	Logger    *slog.Logger
	Handlers  []TaskHandler
	Cron      []CronRegistration
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	mux := asynq.NewServeMux()
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
	}

	var scheduler *asynq.Scheduler
	if len(cfg.Cron) > 0 {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		for _, entry := range cfg.Cron {
			if entry.Spec == "" || entry.Task == nil {
				continue
			}
			if _, err := scheduler.Register(entry.Spec, entry.Task, entry.Options...); err != nil {
				return nil, err
			}
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: cfg.Logger}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
}

// Client submits jobs to the queue.
type Client struct {
	client   *asynq.Client
	now      func() time.Time
	versions CacheVersions
}

// CacheVersions reports a company's current report cache version.
type CacheVersions interface {
	Version(ctx context.Context, companyID int64) (int64, error)
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	client := asynq.NewClient(redisOpts)
	return &Client{client: client, now: time.Now}, nil
}

// WithCacheVersions keys warmup task ids on the company's cache version so
// a change committed while a warmup runs still queues its own warmup.
func (c *Client) WithCacheVersions(v CacheVersions) *Client {
	c.versions = v
	return c
}

// WarmupTaskID derives the task id shared by every warmup request of a
// company at one cache version within the same minute.
func WarmupTaskID(companyID, version int64, at time.Time) string {
	name := fmt.Sprintf("%d:%d:%d", companyID, version, at.UTC().Truncate(time.Minute).Unix())
	return uuid.NewSHA1(warmupNamespace, []byte(name)).String()
}

func (c *Client) warmupTaskID(ctx context.Context, companyID int64) string {
	var version int64
	if c.versions != nil {
		// An unreadable version falls back to the per-minute id.
		if v, err := c.versions.Version(ctx, companyID); err == nil {
			version = v
		}
	}
	return WarmupTaskID(companyID, version, c.now())
}

// EnqueueReportWarmup schedules a delayed warmup of the company's reports.
// A warmup already queued for the same version and minute absorbs the request.
func (c *Client) EnqueueReportWarmup(ctx context.Context, companyID int64) error {
	task, err := NewReportWarmupTask(ReportWarmupPayload{CompanyID: companyID})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueDefault),
		asynq.TaskID(c.warmupTaskID(ctx, companyID)),
		asynq.ProcessIn(warmupDelay),
		asynq.MaxRetry(3),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// EnqueueIdempotencyCleanup queues an immediate cleanup run.
func (c *Client) EnqueueIdempotencyCleanup(ctx context.Context, olderThan time.Duration) (*asynq.TaskInfo, error) {
	task, err := NewIdempotencyCleanupTask(IdempotencyCleanupPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// WarmupEnqueuer queues a report warmup for a company; zero means every
// enabled company.
type WarmupEnqueuer interface {
	EnqueueReportWarmup(ctx context.Context, companyID int64) error
}

// Handler exposes the queue health probe and a manual warmup trigger.
type Handler struct {
	inspector *asynq.Inspector
	warmups   WarmupEnqueuer
	logger    *slog.Logger
}

// NewHandler constructs the jobs endpoints. inspector and warmups may be nil.
func NewHandler(inspector *asynq.Inspector, warmups WarmupEnqueuer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, warmups: warmups, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
	r.Post("/warmup", h.warmup)
}

func (h *Handler) warmup(w http.ResponseWriter, r *http.Request) {
	if h.warmups == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "warmup scheduling is not configured")
		return
	}
	var companyID int64
	if raw := r.URL.Query().Get("company_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 0 {
			httpx.RespondError(w, fmt.Errorf("%w: company_id must be a non-negative integer", httpx.ErrValidation))
			return
		}
		companyID = id
	}
	if err := h.warmups.EnqueueReportWarmup(r.Context(), companyID); err != nil {
		h.logger.Warn("enqueue warmup", slog.Int64("company_id", companyID), slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]int64{"company_id": companyID})
}

type queueHealth struct {
	Queue   string `json:"queue"`
	Pending int    `json:"pending"`
	Active  int    `json:"active"`
	Failed  int    `json:"failed"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		httpx.JSON(w, http.StatusOK, queueHealth{Queue: QueueDefault})
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	if err != nil {
		h.logger.Warn("jobs health", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "")
		return
	}
	out := queueHealth{Queue: QueueDefault}
	if info != nil {
		out = queueHealth{Queue: info.Queue, Pending: info.Pending, Active: info.Active, Failed: info.Failed}
	}
	httpx.JSON(w, http.StatusOK, out)
}
