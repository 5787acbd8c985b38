package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/vikasgargbear/production-infra-sub000/internal/platform/httpx"
)

// Worker wraps the Asynq server.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// TaskHandler allows injecting custom Asynq handlers during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts   asynq.RedisConnOpt
	Logger      *slog.Logger
	Concurrency int
	ExpirySweep *ExpirySweepJob
	Reminders   *PaymentReminderJob
	Cleanup     *IdempotencyCleanupJob
	Handlers    []TaskHandler
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	return &Worker{server: srv, mux: NewServeMux(cfg), logger: cfg.Logger}, nil
}

// NewServeMux registers the engine task handlers plus any extra handlers.
func NewServeMux(cfg WorkerConfig) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	if cfg.ExpirySweep != nil {
		mux.HandleFunc(TaskExpirySweep, cfg.ExpirySweep.Handle)
	}
	if cfg.Reminders != nil {
		mux.HandleFunc(TaskPaymentReminders, cfg.Reminders.Handle)
	}
	if cfg.Cleanup != nil {
		mux.HandleFunc(TaskIdempotencyCleanup, cfg.Cleanup.Handle)
	}
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
	}
	return mux
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Enqueuer submits tasks. *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Client submits engine jobs to the queue.
type Client struct {
	enqueuer Enqueuer
	closer   io.Closer
}

// NewClient constructs a Client backed by an asynq client.
func NewClient(redisOpts asynq.RedisConnOpt) (*Client, error) {
	client := asynq.NewClient(redisOpts)
	return &Client{enqueuer: client, closer: client}, nil
}

// NewClientWith wraps an existing enqueuer. Close is then a no-op.
func NewClientWith(enqueuer Enqueuer) *Client {
	return &Client{enqueuer: enqueuer}
}

// EnqueueExpirySweep enqueues an expiry sweep for one org. Duplicate
// submissions for the same org and day collapse through the task id.
func (c *Client) EnqueueExpirySweep(ctx context.Context, orgID uuid.UUID, asOf time.Time) (*asynq.TaskInfo, error) {
	task, err := NewExpirySweepTask(orgID, asOf)
	if err != nil {
		return nil, err
	}
	day := asOf
	if day.IsZero() {
		day = time.Now()
	}
	return c.enqueuer.EnqueueContext(ctx, task, asynq.TaskID(ExpirySweepTaskID(orgID, day)), asynq.Retention(24*time.Hour))
}

// ExpirySweepTaskID is the dedup id of the sweep for org on day.
func ExpirySweepTaskID(orgID uuid.UUID, day time.Time) string {
	return TaskExpirySweep + ":" + orgID.String() + ":" + day.Format("20060102")
}

// EnqueuePaymentReminders enqueues a reminder run for one org.
func (c *Client) EnqueuePaymentReminders(ctx context.Context, orgID uuid.UUID, minDaysOverdue int) (*asynq.TaskInfo, error) {
	task, err := NewPaymentRemindersTask(orgID, minDaysOverdue)
	if err != nil {
		return nil, err
	}
	return c.enqueuer.EnqueueContext(ctx, task)
}

// EnqueueIdempotencyCleanup enqueues a key pruning run, at most one per day.
// A zero retention defers to the worker's configured TTL.
func (c *Client) EnqueueIdempotencyCleanup(ctx context.Context, retention time.Duration) (*asynq.TaskInfo, error) {
	task, err := NewIdempotencyCleanupTask(retention)
	if err != nil {
		return nil, err
	}
	id := TaskIdempotencyCleanup + ":" + time.Now().Format("20060102")
	return c.enqueuer.EnqueueContext(ctx, task, asynq.TaskID(id), asynq.Retention(24*time.Hour))
}

// Close releases client resources.
func (c *Client) Close() error {
	if c == nil || c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// QueueInspector is the part of *asynq.Inspector the health endpoint reads.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Handler exposes HTTP endpoints for job observability.
type Handler struct {
	inspector QueueInspector
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for jobs endpoints.
func NewHandler(inspector QueueInspector, logger *slog.Logger) *Handler {
	return &Handler{inspector: inspector, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

type queueHealth struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Processed int    `json:"processed_today"`
	Failed    int    `json:"failed_today"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		httpx.JSON(w, http.StatusOK, queueHealth{Queue: QueueDefault})
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	if err != nil {
		if errors.Is(err, asynq.ErrQueueNotFound) {
			httpx.JSON(w, http.StatusOK, queueHealth{Queue: QueueDefault})
			return
		}
		h.logger.Warn("jobs health", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	httpx.JSON(w, http.StatusOK, queueHealth{
		Queue:     info.Queue,
		Pending:   info.Pending,
		Active:    info.Active,
		Retry:     info.Retry,
		Archived:  info.Archived,
		Processed: info.Processed,
		Failed:    info.Failed,
	})
}
