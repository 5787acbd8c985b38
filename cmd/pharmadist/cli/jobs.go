package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/vikasgargbear/production-infra-sub000/jobs"
)

// Enqueuer submits tasks. *asynq.Client satisfies it.
type Enqueuer = jobs.Enqueuer

// Inspector reads queue state. *asynq.Inspector satisfies it.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *jobs.Client
	inspector Inspector
	closers   []io.Closer
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	opt, err := jobs.RedisConnOpt(redisAddr)
	if err != nil {
		return nil, err
	}
	client, err := jobs.NewClient(opt)
	if err != nil {
		return nil, err
	}
	inspector := asynq.NewInspector(opt)
	return &JobsCLI{client: client, inspector: inspector, closers: []io.Closer{inspector, client}}, nil
}

// NewJobsCLIWith builds the helper over explicit collaborators.
func NewJobsCLIWith(enqueuer Enqueuer, inspector Inspector) *JobsCLI {
	c := &JobsCLI{inspector: inspector}
	if enqueuer != nil {
		c.client = jobs.NewClientWith(enqueuer)
	}
	return c
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var errs []error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TriggerOptions scopes a manual job run.
type TriggerOptions struct {
	OrgID          uuid.UUID
	AsOf           time.Time
	MinDaysOverdue int
	Retention      time.Duration
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string, opts TriggerOptions) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	switch name {
	case jobs.TaskExpirySweep, "expiry-sweep":
		return c.client.EnqueueExpirySweep(ctx, opts.OrgID, opts.AsOf)
	case jobs.TaskPaymentReminders, "payment-reminders":
		return c.client.EnqueuePaymentReminders(ctx, opts.OrgID, opts.MinDaysOverdue)
	case jobs.TaskIdempotencyCleanup, "idempotency-cleanup":
		return c.client.EnqueueIdempotencyCleanup(ctx, opts.Retention)
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
	}
	return stats, nil
}

// JobsOptions carries the streams for the jobs command.
type JobsOptions struct {
	Stdout io.Writer
	Stderr io.Writer
}

// JobsCommand runs `jobs trigger <name> --org <uuid>` or `jobs stats` and
// returns the process exit code.
func (c *JobsCLI) JobsCommand(ctx context.Context, args []string, opts JobsOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if len(args) == 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "usage: jobs trigger <expiry-sweep|payment-reminders> --org <uuid> | jobs trigger idempotency-cleanup | jobs stats")
		return 2
	}
	switch args[0] {
	case "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs stats: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(opts.Stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return 0
	case "trigger":
		return c.triggerCommand(ctx, args[1:], opts)
	}
	_, _ = fmt.Fprintf(opts.Stderr, "jobs: unknown sub-command %q\n", args[0])
	return 2
}

func (c *JobsCLI) triggerCommand(ctx context.Context, args []string, opts JobsOptions) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "jobs trigger: job name is required")
		return 2
	}
	name := args[0]
	fs := flag.NewFlagSet("jobs trigger", flag.ContinueOnError)
	fs.SetOutput(opts.Stderr)
	org := fs.String("org", "", "organisation id")
	asOf := fs.String("as-of", "", "sweep date YYYY-MM-DD (expiry sweep)")
	minDays := fs.Int("min-days", 1, "minimum days overdue (payment reminders)")
	retention := fs.Duration("retention", 0, "key age to prune, 0 uses IDEMPOTENCY_TTL (idempotency cleanup)")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	trigger := TriggerOptions{MinDaysOverdue: *minDays, Retention: *retention}
	if name != jobs.TaskIdempotencyCleanup && name != "idempotency-cleanup" {
		orgID, err := uuid.Parse(*org)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs trigger: --org must be a uuid: %v\n", err)
			return 2
		}
		trigger.OrgID = orgID
	}
	if *asOf != "" {
		var err error
		trigger.AsOf, err = time.Parse(time.DateOnly, *asOf)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs trigger: invalid --as-of %q (expected YYYY-MM-DD)\n", *asOf)
			return 2
		}
	}
	info, err := c.Trigger(ctx, name, trigger)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "jobs trigger: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(opts.Stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	return 0
}
