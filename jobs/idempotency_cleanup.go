package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/vikasgargbear/production-infra-sub000/internal/jobs"
)

// KeyPruner deletes stored idempotency keys. *shared.IdempotencyStore satisfies it.
type KeyPruner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob prunes idempotency keys older than the retention window.
type IdempotencyCleanupJob struct {
	Store     KeyPruner
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob constructs the job handler. retention is usually
// IDEMPOTENCY_TTL.
func NewIdempotencyCleanupJob(store KeyPruner, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{Store: store, Retention: retention, Logger: logger, Metrics: metrics}
}

// Handle decodes the payload and runs the cleanup.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: dependencies not configured")
	}
	var payload IdempotencyCleanupPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("idempotency cleanup: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	_, err := j.Run(ctx, payload.Retention)
	return err
}

// Run deletes keys older than retention, or the configured window when
// retention is zero. A zero window keeps every key.
func (j *IdempotencyCleanupJob) Run(ctx context.Context, retention time.Duration) (deleted int64, resultErr error) {
	if retention <= 0 {
		retention = j.Retention
	}
	if retention <= 0 {
		j.log().Info("idempotency cleanup skipped, retention disabled")
		return 0, nil
	}
	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	deleted, err := j.Store.Cleanup(ctx, retention)
	if err != nil {
		return 0, fmt.Errorf("idempotency cleanup: %w", err)
	}
	j.log().Info("idempotency keys pruned",
		slog.Int64("deleted", deleted),
		slog.Duration("retention", retention))
	return deleted, nil
}

func (j *IdempotencyCleanupJob) log() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
