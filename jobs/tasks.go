package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskExpirySweep marks batches past expiry as expired for one organisation.
	TaskExpirySweep = "inventory:expiry_sweep"
	// TaskPaymentReminders lists overdue invoices for one organisation.
	TaskPaymentReminders = "ledger:payment_reminders"
	// TaskIdempotencyCleanup prunes stored idempotency keys past retention.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

var errMissingOrg = errors.New("jobs: org_id is required")

// ExpirySweepPayload scopes an expiry sweep. A zero AsOf means today.
type ExpirySweepPayload struct {
	OrgID uuid.UUID `json:"org_id"`
	AsOf  time.Time `json:"as_of,omitempty"`
}

// NewExpirySweepTask constructs an Asynq task for the batch expiry sweep.
func NewExpirySweepTask(orgID uuid.UUID, asOf time.Time) (*asynq.Task, error) {
	if orgID == uuid.Nil {
		return nil, errMissingOrg
	}
	body, err := json.Marshal(ExpirySweepPayload{OrgID: orgID, AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpirySweep, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// PaymentRemindersPayload scopes a reminder run.
type PaymentRemindersPayload struct {
	OrgID          uuid.UUID `json:"org_id"`
	MinDaysOverdue int       `json:"min_days_overdue"`
}

// NewPaymentRemindersTask constructs an Asynq task listing overdue invoices.
func NewPaymentRemindersTask(orgID uuid.UUID, minDaysOverdue int) (*asynq.Task, error) {
	if orgID == uuid.Nil {
		return nil, errMissingOrg
	}
	if minDaysOverdue < 1 {
		minDaysOverdue = 1
	}
	body, err := json.Marshal(PaymentRemindersPayload{OrgID: orgID, MinDaysOverdue: minDaysOverdue})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentReminders, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload overrides the worker's retention when non-zero.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention,omitempty"`
}

// NewIdempotencyCleanupTask constructs the key pruning task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	if retention < 0 {
		return nil, errors.New("jobs: retention must not be negative")
	}
	body, err := json.Marshal(IdempotencyCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault), asynq.MaxRetry(2)), nil
}

// RedisConnOpt converts REDIS_ADDR into asynq connection options. Both
// host:port and redis:// URIs are accepted, matching the cache client.
func RedisConnOpt(addr string) (asynq.RedisConnOpt, error) {
	addr = strings.TrimSpace(addr)
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opt, err := asynq.ParseRedisURI(addr)
		if err != nil {
			return nil, fmt.Errorf("jobs: parse redis uri: %w", err)
		}
		return opt, nil
	}
	if addr == "" {
		return nil, errors.New("jobs: redis address is required")
	}
	return asynq.RedisClientOpt{Addr: addr}, nil
}
