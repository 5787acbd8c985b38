package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	jobmetrics "github.com/vikasgargbear/production-infra-sub000/internal/jobs"
	"github.com/vikasgargbear/production-infra-sub000/internal/ledger"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

// OverdueLister reads overdue invoices from the ledger.
type OverdueLister interface {
	OverdueInvoices(ctx context.Context, oc shared.OrgContext, minDays int) ([]ledger.AgedInvoice, error)
}

// Reminder is the per-customer digest handed to a sink.
type Reminder struct {
	OrgID        uuid.UUID
	CustomerID   int64
	CustomerName string
	Invoices     []ledger.AgedInvoice
	Due          decimal.Decimal
	MaxDaysLate  int
}

// ReminderSink delivers reminders. Delivery channels live outside the engine.
type ReminderSink interface {
	Send(ctx context.Context, reminder Reminder) error
}

// LogSink writes each reminder as a structured log line.
type LogSink struct {
	Logger *slog.Logger
}

// Send implements ReminderSink.
func (s LogSink) Send(_ context.Context, r Reminder) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("payment reminder",
		slog.String("org_id", r.OrgID.String()),
		slog.Int64("customer_id", r.CustomerID),
		slog.String("customer", r.CustomerName),
		slog.Int("invoices", len(r.Invoices)),
		slog.String("due", r.Due.StringFixed(2)),
		slog.Int("max_days_late", r.MaxDaysLate))
	return nil
}

// PaymentReminderJob groups overdue invoices per customer and hands them to a sink.
type PaymentReminderJob struct {
	Ledger  OverdueLister
	Sink    ReminderSink
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewPaymentReminderJob constructs the job handler. A nil sink logs reminders.
func NewPaymentReminderJob(lister OverdueLister, sink ReminderSink, logger *slog.Logger, metrics *jobmetrics.Metrics) *PaymentReminderJob {
	if sink == nil {
		sink = LogSink{Logger: logger}
	}
	return &PaymentReminderJob{Ledger: lister, Sink: sink, Logger: logger, Metrics: metrics}
}

// Handle executes the reminder run for the org named in the payload.
func (j *PaymentReminderJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Ledger == nil || j.Sink == nil {
		return errors.New("payment reminders: dependencies not configured")
	}
	var payload PaymentRemindersPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("payment reminders: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.OrgID == uuid.Nil {
		return fmt.Errorf("payment reminders: %v: %w", errMissingOrg, asynq.SkipRetry)
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run builds and sends the reminders, returning them in customer id order.
func (j *PaymentReminderJob) Run(ctx context.Context, payload PaymentRemindersPayload) (reminders []Reminder, resultErr error) {
	tracker := j.Metrics.Track(TaskPaymentReminders)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	minDays := payload.MinDaysOverdue
	if minDays < 1 {
		minDays = 1
	}
	overdue, err := j.Ledger.OverdueInvoices(ctx, shared.OrgContext{OrgID: payload.OrgID}, minDays)
	if err != nil {
		return nil, fmt.Errorf("payment reminders: %w", err)
	}
	j.Metrics.SetOverdueInvoices(len(overdue))

	reminders = groupReminders(payload.OrgID, overdue)
	var sendErrs []error
	for _, r := range reminders {
		if err := j.Sink.Send(ctx, r); err != nil {
			j.log().Warn("payment reminder not delivered",
				slog.Int64("customer_id", r.CustomerID), slog.Any("error", err))
			sendErrs = append(sendErrs, err)
		}
	}
	return reminders, errors.Join(sendErrs...)
}

func groupReminders(orgID uuid.UUID, overdue []ledger.AgedInvoice) []Reminder {
	byCustomer := make(map[int64]*Reminder)
	for _, inv := range overdue {
		r, ok := byCustomer[inv.CustomerID]
		if !ok {
			r = &Reminder{OrgID: orgID, CustomerID: inv.CustomerID, CustomerName: inv.CustomerName}
			byCustomer[inv.CustomerID] = r
		}
		r.Invoices = append(r.Invoices, inv)
		r.Due = r.Due.Add(inv.Balance)
		if inv.DaysPastDue > r.MaxDaysLate {
			r.MaxDaysLate = inv.DaysPastDue
		}
	}
	out := make([]Reminder, 0, len(byCustomer))
	for _, r := range byCustomer {
		out = append(out, *r)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CustomerID < out[b].CustomerID })
	return out
}

func (j *PaymentReminderJob) log() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
