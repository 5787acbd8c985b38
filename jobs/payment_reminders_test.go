package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikasgargbear/production-infra-sub000/internal/ledger"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

type fakeOverdue struct {
	minDays int
	rows    []ledger.AgedInvoice
}

func (f *fakeOverdue) OverdueInvoices(_ context.Context, _ shared.OrgContext, minDays int) ([]ledger.AgedInvoice, error) {
	f.minDays = minDays
	return f.rows, nil
}

type recordingSink struct {
	sent []Reminder
	fail map[int64]bool
}

func (s *recordingSink) Send(_ context.Context, r Reminder) error {
	if s.fail[r.CustomerID] {
		return errors.New("sms gateway down")
	}
	s.sent = append(s.sent, r)
	return nil
}

func aged(customer int64, number string, balance int64, days int) ledger.AgedInvoice {
	return ledger.AgedInvoice{
		OpenInvoice: ledger.OpenInvoice{CustomerID: customer, CustomerName: "C" + number, InvoiceNumber: number},
		Balance:     decimal.NewFromInt(balance),
		DaysPastDue: days,
	}
}

func TestPaymentRemindersGroupByCustomer(t *testing.T) {
	lister := &fakeOverdue{rows: []ledger.AgedInvoice{
		aged(9, "INV242500003", 400, 12),
		aged(2, "INV242500001", 1008, 45),
		aged(9, "INV242500007", 100, 40),
	}}
	sink := &recordingSink{}
	job := NewPaymentReminderJob(lister, sink, discardLogger(), nil)

	reminders, err := job.Run(context.Background(), PaymentRemindersPayload{OrgID: uuid.New(), MinDaysOverdue: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, lister.minDays)
	require.Len(t, reminders, 2)
	assert.Equal(t, int64(2), reminders[0].CustomerID)
	assert.Equal(t, int64(9), reminders[1].CustomerID)
	assert.Len(t, reminders[1].Invoices, 2)
	assert.True(t, reminders[1].Due.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, 40, reminders[1].MaxDaysLate)
	assert.Len(t, sink.sent, 2)
}

func TestPaymentRemindersReportFailedDeliveries(t *testing.T) {
	lister := &fakeOverdue{rows: []ledger.AgedInvoice{aged(1, "INV1", 10, 3), aged(2, "INV2", 20, 3)}}
	sink := &recordingSink{fail: map[int64]bool{1: true}}
	job := NewPaymentReminderJob(lister, sink, discardLogger(), nil)

	_, err := job.Run(context.Background(), PaymentRemindersPayload{OrgID: uuid.New()})
	require.Error(t, err)
	assert.Equal(t, 1, lister.minDays)
	require.Len(t, sink.sent, 1)
	assert.Equal(t, int64(2), sink.sent[0].CustomerID)
}

func TestPaymentRemindersHandle(t *testing.T) {
	lister := &fakeOverdue{}
	job := NewPaymentReminderJob(lister, nil, discardLogger(), nil)

	task, err := NewPaymentRemindersTask(uuid.New(), 30)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 30, lister.minDays)

	body, _ := json.Marshal(PaymentRemindersPayload{MinDaysOverdue: 5})
	require.ErrorIs(t, job.Handle(context.Background(), asynq.NewTask(TaskPaymentReminders, body)), asynq.SkipRetry)
	require.ErrorIs(t, job.Handle(context.Background(), asynq.NewTask(TaskPaymentReminders, []byte("nope"))), asynq.SkipRetry)
}
