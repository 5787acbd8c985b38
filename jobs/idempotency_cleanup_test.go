package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/vikasgargbear/production-infra-sub000/internal/jobs"
)

type fakePruner struct {
	windows []time.Duration
	deleted int64
	err     error
}

func (f *fakePruner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	f.windows = append(f.windows, olderThan)
	return f.deleted, f.err
}

func TestIdempotencyCleanupUsesConfiguredRetention(t *testing.T) {
	store := &fakePruner{deleted: 14}
	job := NewIdempotencyCleanupJob(store, 24*time.Hour, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewIdempotencyCleanupTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	task, err = NewIdempotencyCleanupTask(72 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, []time.Duration{24 * time.Hour, 72 * time.Hour}, store.windows)
}

func TestIdempotencyCleanupDisabledByZeroRetention(t *testing.T) {
	store := &fakePruner{}
	job := NewIdempotencyCleanupJob(store, 0, discardLogger(), nil)

	deleted, err := job.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Empty(t, store.windows)
}

func TestIdempotencyCleanupErrors(t *testing.T) {
	store := &fakePruner{err: errors.New("connection reset")}
	job := NewIdempotencyCleanupJob(store, time.Hour, discardLogger(), nil)
	_, err := job.Run(context.Background(), 0)
	require.ErrorContains(t, err, "connection reset")

	bad := asynq.NewTask(TaskIdempotencyCleanup, []byte("{"))
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)

	_, err = NewIdempotencyCleanupTask(-time.Minute)
	require.Error(t, err)
}

func TestClientEnqueuesIdempotencyCleanup(t *testing.T) {
	enq := &capturingEnqueuer{}
	client := NewClientWith(enq)

	info, err := client.EnqueueIdempotencyCleanup(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, TaskIdempotencyCleanup, info.Type)
}
