package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpenInvoice is an unpaid, non-cancelled invoice.
type OpenInvoice struct {
	InvoiceID     int64           `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerID    int64           `json:"customer_id"`
	CustomerName  string          `json:"customer_name"`
	InvoiceDate   time.Time       `json:"invoice_date"`
	DueDate       time.Time       `json:"due_date"`
	Total         decimal.Decimal `json:"total_amount"`
	Paid          decimal.Decimal `json:"paid_amount"`
}

// Balance is the unpaid part of the invoice.
func (o OpenInvoice) Balance() decimal.Decimal {
	return o.Total.Sub(o.Paid)
}

// DaysPastDue counts whole days between the due date and asOf.
func (o OpenInvoice) DaysPastDue(asOf time.Time) int {
	due := time.Date(o.DueDate.Year(), o.DueDate.Month(), o.DueDate.Day(), 0, 0, 0, 0, time.UTC)
	day := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	return int(day.Sub(due).Hours() / 24)
}

// Bucket names.
const (
	BucketCurrent = "current"
	Bucket31To60  = "31-60"
	Bucket61To90  = "61-90"
	BucketOver90  = "90+"
)

// BucketFor places days past due into an aging bucket.
func BucketFor(days int) string {
	switch {
	case days <= 30:
		return BucketCurrent
	case days <= 60:
		return Bucket31To60
	case days <= 90:
		return Bucket61To90
	default:
		return BucketOver90
	}
}

// AgedInvoice is an open invoice placed in a bucket.
type AgedInvoice struct {
	OpenInvoice
	Balance     decimal.Decimal `json:"balance"`
	DaysPastDue int             `json:"days_past_due"`
	Bucket      string          `json:"bucket"`
}

// AgingReport summarises a customer's open invoices by days past due.
type AgingReport struct {
	CustomerID int64           `json:"customer_id"`
	AsOf       time.Time       `json:"as_of"`
	Current    decimal.Decimal `json:"current"`
	Days31To60 decimal.Decimal `json:"days_31_60"`
	Days61To90 decimal.Decimal `json:"days_61_90"`
	Over90     decimal.Decimal `json:"over_90"`
	Total      decimal.Decimal `json:"total"`
	Invoices   []AgedInvoice   `json:"invoices"`
}

// Age groups invoices by due date buckets.
func Age(customerID int64, invoices []OpenInvoice, asOf time.Time) AgingReport {
	report := AgingReport{
		CustomerID: customerID,
		AsOf:       asOf,
		Current:    decimal.Zero,
		Days31To60: decimal.Zero,
		Days61To90: decimal.Zero,
		Over90:     decimal.Zero,
		Total:      decimal.Zero,
		Invoices:   make([]AgedInvoice, 0, len(invoices)),
	}
	for _, inv := range invoices {
		balance := inv.Balance()
		if !balance.IsPositive() {
			continue
		}
		days := inv.DaysPastDue(asOf)
		bucket := BucketFor(days)
		switch bucket {
		case BucketCurrent:
			report.Current = report.Current.Add(balance)
		case Bucket31To60:
			report.Days31To60 = report.Days31To60.Add(balance)
		case Bucket61To90:
			report.Days61To90 = report.Days61To90.Add(balance)
		default:
			report.Over90 = report.Over90.Add(balance)
		}
		report.Total = report.Total.Add(balance)
		report.Invoices = append(report.Invoices, AgedInvoice{OpenInvoice: inv, Balance: balance, DaysPastDue: days, Bucket: bucket})
	}
	return report
}

// StatementLine is an entry with the running balance after it.
type StatementLine struct {
	Entry
	Balance decimal.Decimal `json:"running_balance"`
}

// Statement lists a party's ledger with a running balance.
type Statement struct {
	PartyKind   PartyKind       `json:"party_kind"`
	PartyID     int64           `json:"party_id"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	Closing     decimal.Decimal `json:"closing_balance"`
	Lines       []StatementLine `json:"lines"`
}

// BuildStatement folds entries in order into a statement.
func BuildStatement(kind PartyKind, partyID int64, entries []Entry) Statement {
	st := Statement{
		PartyKind:   kind,
		PartyID:     partyID,
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
		Closing:     decimal.Zero,
		Lines:       make([]StatementLine, 0, len(entries)),
	}
	for _, e := range entries {
		st.TotalDebit = st.TotalDebit.Add(e.Debit)
		st.TotalCredit = st.TotalCredit.Add(e.Credit)
		st.Closing = Balance(kind, st.TotalDebit, st.TotalCredit)
		st.Lines = append(st.Lines, StatementLine{Entry: e, Balance: st.Closing})
	}
	return st
}
