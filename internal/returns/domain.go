// Package returns handles goods coming back from customers or going back to
// suppliers, and the credit and debit notes that settle them.
package returns

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vikasgargbear/production-infra-sub000/internal/ledger"
	"github.com/vikasgargbear/production-infra-sub000/internal/tax"
)

// ReturnType distinguishes the direction of a return.
type ReturnType string

const (
	ReturnSales    ReturnType = "sales"
	ReturnPurchase ReturnType = "purchase"
)

// ReturnStatus is the state of a return request. The engine only writes
// approved returns.
type ReturnStatus string

const (
	ReturnApproved  ReturnStatus = "approved"
	ReturnCancelled ReturnStatus = "cancelled"
)

// NoteType is credit or debit.
type NoteType string

const (
	NoteCredit NoteType = "credit"
	NoteDebit  NoteType = "debit"
)

// NoteStatus is the lifecycle of a financial note.
type NoteStatus string

const (
	NoteActive    NoteStatus = "active"
	NoteCancelled NoteStatus = "cancelled"
)

// Return is a persisted return request.
type Return struct {
	ID            int64           `json:"id"`
	OrgID         uuid.UUID       `json:"org_id"`
	ReturnNumber  string          `json:"return_number"`
	Type          ReturnType      `json:"return_type"`
	InvoiceID     *int64          `json:"invoice_id,omitempty"`
	CustomerID    *int64          `json:"customer_id,omitempty"`
	SupplierID    *int64          `json:"supplier_id,omitempty"`
	ReturnDate    time.Time       `json:"return_date"`
	Reason        string          `json:"reason"`
	Status        ReturnStatus    `json:"status"`
	GSTType       tax.GSTType     `json:"gst_type"`
	TaxableAmount decimal.Decimal `json:"taxable_amount"`
	CGSTAmount    decimal.Decimal `json:"cgst_amount"`
	SGSTAmount    decimal.Decimal `json:"sgst_amount"`
	IGSTAmount    decimal.Decimal `json:"igst_amount"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	RoundOff      decimal.Decimal `json:"round_off"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	CreatedBy     uuid.UUID       `json:"created_by"`
}

// ReturnItem is one batch-level returned line.
type ReturnItem struct {
	ID              int64           `json:"id"`
	OrgID           uuid.UUID       `json:"org_id"`
	ReturnID        int64           `json:"return_id"`
	ProductID       int64           `json:"product_id"`
	BatchID         int64           `json:"batch_id"`
	Quantity        int64           `json:"quantity"`
	ReturnPrice     decimal.Decimal `json:"return_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxPercent      decimal.Decimal `json:"tax_percent"`
	TaxableAmount   decimal.Decimal `json:"taxable_amount"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
}

// Note is a credit or debit note. LedgerEntryID points at the posting the
// note is settled by.
type Note struct {
	ID            int64            `json:"id"`
	OrgID         uuid.UUID        `json:"org_id"`
	NoteNumber    string           `json:"note_number"`
	Type          NoteType         `json:"note_type"`
	PartyKind     ledger.PartyKind `json:"party_kind"`
	PartyID       int64            `json:"party_id"`
	InvoiceID     *int64           `json:"invoice_id,omitempty"`
	ReturnID      *int64           `json:"return_id,omitempty"`
	NoteDate      time.Time        `json:"note_date"`
	Reason        string           `json:"reason"`
	GSTType       tax.GSTType      `json:"gst_type"`
	TaxableAmount decimal.Decimal  `json:"taxable_amount"`
	GSTPercent    decimal.Decimal  `json:"gst_percent"`
	CGSTAmount    decimal.Decimal  `json:"cgst_amount"`
	SGSTAmount    decimal.Decimal  `json:"sgst_amount"`
	IGSTAmount    decimal.Decimal  `json:"igst_amount"`
	TaxAmount     decimal.Decimal  `json:"tax_amount"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	Status        NoteStatus       `json:"status"`
	LedgerEntryID int64            `json:"ledger_entry_id"`
	CancelReason  string           `json:"cancel_reason,omitempty"`
	CancelledAt   *time.Time       `json:"cancelled_at,omitempty"`
	CreatedBy     uuid.UUID        `json:"created_by"`
}

// ReturnedQuantity is the quantity already returned against an invoice line.
type ReturnedQuantity struct {
	ProductID int64
	BatchID   int64
	Quantity  int64
}

// postingSide reports whether a note lands as a debit. Supplier notes take
// the opposite side of customer notes.
func postingSide(kind ledger.PartyKind, typ NoteType) (debit bool) {
	if kind == ledger.PartySupplier {
		return typ == NoteCredit
	}
	return typ == NoteDebit
}

func transactionType(typ NoteType) ledger.TransactionType {
	if typ == NoteDebit {
		return ledger.TxDebitNote
	}
	return ledger.TxCreditNote
}

// ============================================================================
// REQUESTS AND RESULTS
// ============================================================================

// ReturnLine is one requested returned quantity. ReturnPrice defaults to the
// invoiced unit price for sales returns and the batch cost for purchase
// returns.
type ReturnLine struct {
	ProductID   int64               `json:"product_id" validate:"gt=0"`
	BatchID     *int64              `json:"batch_id,omitempty" validate:"omitempty,gt=0"`
	Quantity    int64               `json:"return_quantity"`
	ReturnPrice decimal.NullDecimal `json:"return_price"`
}

// SalesReturnRequest is the input of CreateSalesReturn.
type SalesReturnRequest struct {
	InvoiceID int64        `json:"invoice_id" validate:"gt=0"`
	Items     []ReturnLine `json:"items" validate:"dive"`
	Reason    string       `json:"reason" validate:"required,max=500"`
}

// PurchaseReturnRequest is the input of CreatePurchaseReturn. Every line
// names its batch.
type PurchaseReturnRequest struct {
	SupplierID int64        `json:"supplier_id" validate:"gt=0"`
	Items      []ReturnLine `json:"items" validate:"dive"`
	Reason     string       `json:"reason" validate:"required,max=500"`
}

// ReturnResult reports a created return and its note, if any.
type ReturnResult struct {
	ReturnID      int64           `json:"return_id"`
	ReturnNumber  string          `json:"return_number"`
	GSTType       tax.GSTType     `json:"gst_type"`
	TaxableAmount decimal.Decimal `json:"taxable_amount"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Items         []ReturnItem    `json:"items"`
	NoteID        *int64          `json:"note_id,omitempty"`
	NoteNumber    string          `json:"note_number,omitempty"`
}

// NoteRequest is the input of CreateCreditNote and CreateDebitNote. Amount
// is the taxable value; GSTPercent adds tax on top when present.
type NoteRequest struct {
	PartyKind  string              `json:"party_kind" validate:"required,oneof=customer supplier"`
	PartyID    int64               `json:"party_id" validate:"gt=0"`
	Amount     decimal.Decimal     `json:"amount"`
	GSTPercent decimal.NullDecimal `json:"gst_percent"`
	InvoiceID  *int64              `json:"linked_invoice_id,omitempty" validate:"omitempty,gt=0"`
	Reason     string              `json:"reason" validate:"required,max=500"`
}

// NoteResult reports a created note.
type NoteResult struct {
	NoteID      int64           `json:"note_id"`
	NoteNumber  string          `json:"note_number"`
	Type        NoteType        `json:"note_type"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// CancelRequest is the input of CancelNote.
type CancelRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// CancelResult reports a cancelled note.
type CancelResult struct {
	NoteID     int64           `json:"note_id"`
	NoteNumber string          `json:"note_number"`
	Status     NoteStatus      `json:"status"`
	Reversed   decimal.Decimal `json:"reversed_amount"`
}
