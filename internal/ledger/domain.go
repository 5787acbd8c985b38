// Package ledger keeps the append-only party ledger and the cached customer
// outstanding that mirrors it.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

// PartyKind distinguishes receivable and payable ledgers.
type PartyKind string

const (
	PartyCustomer PartyKind = "customer"
	PartySupplier PartyKind = "supplier"
)

// ParsePartyKind validates a party kind.
func ParsePartyKind(s string) (PartyKind, error) {
	switch PartyKind(s) {
	case PartyCustomer, PartySupplier:
		return PartyKind(s), nil
	}
	return "", shared.Validationf("unknown party kind %q", s)
}

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TxInvoice        TransactionType = "invoice"
	TxPayment        TransactionType = "payment"
	TxInvoiceCancel  TransactionType = "invoice_cancel"
	TxCreditNote     TransactionType = "credit_note"
	TxDebitNote      TransactionType = "debit_note"
	TxNoteCancel     TransactionType = "note_cancel"
	TxSalesReturn    TransactionType = "sales_return"
	TxPurchaseReturn TransactionType = "purchase_return"
	TxOpeningBalance TransactionType = "opening_balance"
)

// Entry is one immutable ledger row.
type Entry struct {
	ID              int64           `json:"id"`
	OrgID           uuid.UUID       `json:"org_id"`
	PartyID         int64           `json:"party_id"`
	PartyKind       PartyKind       `json:"party_kind"`
	TransactionDate time.Time       `json:"transaction_date"`
	TransactionType TransactionType `json:"transaction_type"`
	ReferenceType   string          `json:"reference_type"`
	ReferenceID     int64           `json:"reference_id"`
	Debit           decimal.Decimal `json:"debit_amount"`
	Credit          decimal.Decimal `json:"credit_amount"`
	Description     string          `json:"description,omitempty"`
}

// Validate enforces that exactly one side carries a positive amount.
func (e Entry) Validate() error {
	if e.PartyID <= 0 {
		return shared.Validationf("ledger: party id required")
	}
	if e.PartyKind != PartyCustomer && e.PartyKind != PartySupplier {
		return shared.Validationf("ledger: unknown party kind %q", e.PartyKind)
	}
	if e.Debit.IsNegative() || e.Credit.IsNegative() {
		return shared.Validationf("ledger: negative amount on %s entry", e.TransactionType)
	}
	if e.Debit.IsPositive() == e.Credit.IsPositive() {
		return shared.Validationf("ledger: exactly one of debit and credit must be positive")
	}
	return nil
}

// Net is debit minus credit.
func (e Entry) Net() decimal.Decimal {
	return e.Debit.Sub(e.Credit)
}

// Debit builds a debit entry.
func Debit(kind PartyKind, partyID int64, typ TransactionType, refType string, refID int64, amount decimal.Decimal) Entry {
	return Entry{PartyKind: kind, PartyID: partyID, TransactionType: typ, ReferenceType: refType, ReferenceID: refID, Debit: amount, Credit: decimal.Zero}
}

// Credit builds a credit entry.
func Credit(kind PartyKind, partyID int64, typ TransactionType, refType string, refID int64, amount decimal.Decimal) Entry {
	return Entry{PartyKind: kind, PartyID: partyID, TransactionType: typ, ReferenceType: refType, ReferenceID: refID, Debit: decimal.Zero, Credit: amount}
}

// Reverse builds the opposite-side entry for original. The reversal keeps
// referencing the original document.
func Reverse(original Entry, typ TransactionType, description string) Entry {
	return Entry{
		OrgID:           original.OrgID,
		PartyID:         original.PartyID,
		PartyKind:       original.PartyKind,
		TransactionType: typ,
		ReferenceType:   original.ReferenceType,
		ReferenceID:     original.ReferenceID,
		Debit:           original.Credit,
		Credit:          original.Debit,
		Description:     description,
	}
}

// Balance applies the party's sign convention: receivable for customers,
// payable for suppliers.
func Balance(kind PartyKind, debit, credit decimal.Decimal) decimal.Decimal {
	if kind == PartySupplier {
		return credit.Sub(debit)
	}
	return debit.Sub(credit)
}

// Store is the transactional persistence used by Poster.
type Store interface {
	InsertEntry(ctx context.Context, e Entry) (int64, error)
	// AdjustOutstanding adds delta to a customer's cached outstanding and
	// returns the new value.
	AdjustOutstanding(ctx context.Context, orgID uuid.UUID, customerID int64, delta decimal.Decimal) (decimal.Decimal, error)
	PartyTotals(ctx context.Context, orgID uuid.UUID, kind PartyKind, partyID int64) (debit, credit decimal.Decimal, err error)
	GetEntry(ctx context.Context, orgID uuid.UUID, entryID int64) (Entry, error)
}

func describe(e Entry) string {
	if e.Description != "" {
		return e.Description
	}
	return fmt.Sprintf("%s %s #%d", e.TransactionType, e.ReferenceType, e.ReferenceID)
}
