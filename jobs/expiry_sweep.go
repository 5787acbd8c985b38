package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/vikasgargbear/production-infra-sub000/internal/inventory"
	jobmetrics "github.com/vikasgargbear/production-infra-sub000/internal/jobs"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

// ExpiryService is the inventory operation the sweep drives.
type ExpiryService interface {
	ExpireBatches(ctx context.Context, oc shared.OrgContext, asOf time.Time) (inventory.ExpiryReport, error)
}

// Locker obtains short-lived distributed locks. *redislock.Client satisfies it.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// ExpirySweepJob runs the expiry sweep with at most one runner per org.
type ExpirySweepJob struct {
	Service ExpiryService
	Locker  Locker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	LockTTL time.Duration
	clock   func() time.Time
}

// NewExpirySweepJob constructs the job handler.
func NewExpirySweepJob(service ExpiryService, locker Locker, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExpirySweepJob {
	return &ExpirySweepJob{
		Service: service,
		Locker:  locker,
		Logger:  logger,
		Metrics: metrics,
		LockTTL: 2 * time.Minute,
		clock:   time.Now,
	}
}

// Handle executes the sweep for the org named in the payload.
func (j *ExpirySweepJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("expiry sweep: dependencies not configured")
	}
	var payload ExpirySweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("expiry sweep: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	_, err := j.Run(ctx, payload)
	if errors.Is(err, errMissingOrg) {
		return fmt.Errorf("expiry sweep: %v: %w", err, asynq.SkipRetry)
	}
	return err
}

// Run performs one sweep. A sweep already running elsewhere for the same org
// is not an error; the call returns an empty report.
func (j *ExpirySweepJob) Run(ctx context.Context, payload ExpirySweepPayload) (report inventory.ExpiryReport, resultErr error) {
	if payload.OrgID == uuid.Nil {
		return report, errMissingOrg
	}
	tracker := j.Metrics.Track(TaskExpirySweep)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if j.Locker != nil {
		lock, err := j.Locker.Obtain(ctx, shared.ExpirySweepLockKey(payload.OrgID), j.LockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			j.log().Info("expiry sweep already running", slog.String("org_id", payload.OrgID.String()))
			return report, nil
		}
		if err != nil {
			return report, fmt.Errorf("expiry sweep: obtain lock: %w", err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				j.log().Warn("expiry sweep: release lock", slog.Any("error", err))
			}
		}()
	}

	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = j.now()
	}
	report, err := j.Service.ExpireBatches(ctx, shared.OrgContext{OrgID: payload.OrgID}, asOf)
	if err != nil {
		j.log().Error("expiry sweep failed", slog.String("org_id", payload.OrgID.String()), slog.Any("error", err))
		return report, err
	}
	j.Metrics.AddExpiredBatches("scheduled", len(report.Batches), report.WrittenOff)
	j.log().Info("expiry sweep completed",
		slog.String("org_id", payload.OrgID.String()),
		slog.Int("batches", len(report.Batches)),
		slog.Int64("written_off", report.WrittenOff))
	return report, nil
}

func (j *ExpirySweepJob) now() time.Time {
	if j.clock == nil {
		return time.Now()
	}
	return j.clock()
}

func (j *ExpirySweepJob) log() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
