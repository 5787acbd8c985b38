// Package sales runs the order-to-invoice-to-ledger transaction.
package sales

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vikasgargbear/production-infra-sub000/internal/inventory"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
	"github.com/vikasgargbear/production-infra-sub000/internal/tax"
)

// ============================================================================
// STATUSES
// ============================================================================

// OrderStatus is the order lifecycle state.
type OrderStatus string

const (
	OrderDraft     OrderStatus = "draft"
	OrderConfirmed OrderStatus = "confirmed"
	OrderInvoiced  OrderStatus = "invoiced"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderDraft:     {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderInvoiced, OrderCancelled},
	OrderInvoiced:  {OrderDelivered},
}

// CanTransition reports whether the order may move from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// InvoiceStatus is the invoice lifecycle state.
type InvoiceStatus string

const (
	InvoiceDraft         InvoiceStatus = "draft"
	InvoiceGenerated     InvoiceStatus = "generated"
	InvoiceSent          InvoiceStatus = "sent"
	InvoicePaid          InvoiceStatus = "paid"
	InvoicePartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceCancelled     InvoiceStatus = "cancelled"
)

// invoiceStatusFor derives the payment-driven invoice status.
func invoiceStatusFor(paid, total decimal.Decimal) InvoiceStatus {
	switch {
	case paid.IsPositive() && paid.GreaterThanOrEqual(total):
		return InvoicePaid
	case paid.IsPositive():
		return InvoicePartiallyPaid
	default:
		return InvoiceGenerated
	}
}

// PaymentStatus summarises how much of an order is settled.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

func paymentStatusFor(paid, total decimal.Decimal) PaymentStatus {
	switch {
	case paid.IsPositive() && paid.GreaterThanOrEqual(total):
		return PaymentPaid
	case paid.IsPositive():
		return PaymentPartial
	default:
		return PaymentPending
	}
}

// PaymentMode is how a payment was tendered.
type PaymentMode string

const (
	ModeCash         PaymentMode = "cash"
	ModeCheque       PaymentMode = "cheque"
	ModeCard         PaymentMode = "card"
	ModeUPI          PaymentMode = "upi"
	ModeNEFT         PaymentMode = "neft"
	ModeRTGS         PaymentMode = "rtgs"
	ModeCredit       PaymentMode = "credit"
	ModeBankTransfer PaymentMode = "bank_transfer"
	ModeAdjustment   PaymentMode = "adjustment"
)

var paymentModes = map[PaymentMode]bool{
	ModeCash: true, ModeCheque: true, ModeCard: true, ModeUPI: true, ModeNEFT: true,
	ModeRTGS: true, ModeCredit: true, ModeBankTransfer: true, ModeAdjustment: true,
}

// ParsePaymentMode validates a payment mode.
func ParsePaymentMode(s string) (PaymentMode, error) {
	mode := PaymentMode(strings.ToLower(strings.TrimSpace(s)))
	if !paymentModes[mode] {
		return "", shared.ErrInvalidPayment.Withf("unknown payment mode %q", s)
	}
	return mode, nil
}

// PaymentCompleted is the only payment row status the engine writes.
const PaymentCompleted = "completed"

// ============================================================================
// DOCUMENTS
// ============================================================================

// Order is a confirmed customer order.
type Order struct {
	ID              int64           `json:"id"`
	OrgID           uuid.UUID       `json:"org_id"`
	OrderNumber     string          `json:"order_number"`
	CustomerID      int64           `json:"customer_id"`
	CustomerName    string          `json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone"`
	OrderDate       time.Time       `json:"order_date"`
	Status          OrderStatus     `json:"status"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	DeliveryCharges decimal.Decimal `json:"delivery_charges"`
	OtherCharges    decimal.Decimal `json:"other_charges"`
	RoundOff        decimal.Decimal `json:"round_off"`
	FinalAmount     decimal.Decimal `json:"final_amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	BalanceAmount   decimal.Decimal `json:"balance_amount"`
	PaymentMode     PaymentMode     `json:"payment_mode"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	InvoiceNumber   string          `json:"invoice_number,omitempty"`
	BillingAddress  string          `json:"billing_address,omitempty"`
	ShippingAddress string          `json:"shipping_address,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedBy       uuid.UUID       `json:"created_by"`
}

// OrderItem is one batch-level line of an order.
type OrderItem struct {
	ID              int64           `json:"id"`
	OrgID           uuid.UUID       `json:"org_id"`
	OrderID         int64           `json:"order_id"`
	ProductID       int64           `json:"product_id"`
	BatchID         *int64          `json:"batch_id,omitempty"`
	Quantity        int64           `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	TaxPercent      decimal.Decimal `json:"tax_percent"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	LineTotal       decimal.Decimal `json:"line_total"`
	TotalPrice      decimal.Decimal `json:"total_price"`
}

// Invoice is the tax document for a sale.
type Invoice struct {
	ID              int64           `json:"id"`
	OrgID           uuid.UUID       `json:"org_id"`
	InvoiceNumber   string          `json:"invoice_number"`
	OrderID         *int64          `json:"order_id,omitempty"`
	CustomerID      int64           `json:"customer_id"`
	CustomerName    string          `json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone"`
	CustomerGSTIN   string          `json:"customer_gstin,omitempty"`
	BillingAddress  string          `json:"billing_address,omitempty"`
	ShippingAddress string          `json:"shipping_address,omitempty"`
	PlaceOfSupply   string          `json:"place_of_supply,omitempty"`
	InvoiceDate     time.Time       `json:"invoice_date"`
	DueDate         time.Time       `json:"due_date"`
	GSTType         tax.GSTType     `json:"gst_type"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	TaxableAmount   decimal.Decimal `json:"taxable_amount"`
	CGSTAmount      decimal.Decimal `json:"cgst_amount"`
	SGSTAmount      decimal.Decimal `json:"sgst_amount"`
	IGSTAmount      decimal.Decimal `json:"igst_amount"`
	TotalTaxAmount  decimal.Decimal `json:"total_tax_amount"`
	DeliveryCharges decimal.Decimal `json:"delivery_charges"`
	OtherCharges    decimal.Decimal `json:"other_charges"`
	RoundOff        decimal.Decimal `json:"round_off"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	Balance         decimal.Decimal `json:"balance"`
	Status          InvoiceStatus   `json:"invoice_status"`
	CancelReason    string          `json:"cancel_reason,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	CreatedBy       uuid.UUID       `json:"created_by"`
}

// InvoiceItem mirrors an order item with its GST split.
type InvoiceItem struct {
	ID              int64           `json:"id"`
	OrgID           uuid.UUID       `json:"org_id"`
	InvoiceID       int64           `json:"invoice_id"`
	ProductID       int64           `json:"product_id"`
	ProductName     string          `json:"product_name"`
	HSNCode         string          `json:"hsn_code"`
	BatchID         *int64          `json:"batch_id,omitempty"`
	BatchNumber     string          `json:"batch_number,omitempty"`
	Quantity        int64           `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	TaxableAmount   decimal.Decimal `json:"taxable_amount"`
	TaxPercent      decimal.Decimal `json:"tax_percent"`
	CGSTAmount      decimal.Decimal `json:"cgst_amount"`
	SGSTAmount      decimal.Decimal `json:"sgst_amount"`
	IGSTAmount      decimal.Decimal `json:"igst_amount"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	LineTotal       decimal.Decimal `json:"line_total"`
	TotalPrice      decimal.Decimal `json:"total_price"`
}

// Payment is a completed receipt against an invoice.
type Payment struct {
	ID            int64           `json:"id"`
	OrgID         uuid.UUID       `json:"org_id"`
	InvoiceID     int64           `json:"invoice_id"`
	PaymentNumber string          `json:"payment_number"`
	PaymentDate   time.Time       `json:"payment_date"`
	Mode          PaymentMode     `json:"payment_mode"`
	Amount        decimal.Decimal `json:"amount"`
	Reference     string          `json:"reference,omitempty"`
	Status        string          `json:"status"`
}

// ============================================================================
// REQUESTS AND RESULTS
// ============================================================================

// SaleItem is one requested line. UnitPrice and DiscountPercent are optional.
type SaleItem struct {
	ProductID       int64               `json:"product_id" validate:"gt=0"`
	Quantity        int64               `json:"quantity"`
	UnitPrice       decimal.NullDecimal `json:"unit_price"`
	DiscountPercent decimal.NullDecimal `json:"discount_percent"`
	BatchID         *int64              `json:"batch_id,omitempty" validate:"omitempty,gt=0"`
}

// SaleRequest is the input of CreateOrder and CreateDirectSale.
type SaleRequest struct {
	CustomerID            int64           `json:"customer_id" validate:"gt=0"`
	Items                 []SaleItem      `json:"items" validate:"dive"`
	PaymentMode           string          `json:"payment_mode"`
	PaymentAmount         decimal.Decimal `json:"payment_amount"`
	PaymentReference      string          `json:"payment_reference,omitempty" validate:"max=100"`
	DiscountAmount        decimal.Decimal `json:"discount_amount"`
	DeliveryCharges       decimal.Decimal `json:"delivery_charges"`
	OtherCharges          decimal.Decimal `json:"other_charges"`
	BillingAddress        string          `json:"billing_address,omitempty" validate:"max=500"`
	ShippingAddress       string          `json:"shipping_address,omitempty" validate:"max=500"`
	Notes                 string          `json:"notes,omitempty" validate:"max=1000"`
	PrescriptionReference string          `json:"prescription_reference,omitempty" validate:"max=100"`
	IdempotencyKey        string          `json:"idempotency_key,omitempty" validate:"max=128"`
}

// SaleLine reports one batch-level line of the created documents.
type SaleLine struct {
	ProductID   int64           `json:"product_id"`
	BatchID     *int64          `json:"batch_id,omitempty"`
	BatchNumber string          `json:"batch_number,omitempty"`
	ExpiryDate  *time.Time      `json:"expiry_date,omitempty"`
	NearExpiry  bool            `json:"near_expiry"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// SaleResult is returned by CreateOrder and CreateDirectSale and replayed
// for repeated idempotency keys.
type SaleResult struct {
	OrderID              *int64          `json:"order_id,omitempty"`
	OrderNumber          string          `json:"order_number,omitempty"`
	InvoiceID            int64           `json:"invoice_id"`
	InvoiceNumber        string          `json:"invoice_number"`
	GSTType              tax.GSTType     `json:"gst_type"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	DiscountAmount       decimal.Decimal `json:"discount_amount"`
	TaxableAmount        decimal.Decimal `json:"taxable_amount"`
	CGSTAmount           decimal.Decimal `json:"cgst_amount"`
	SGSTAmount           decimal.Decimal `json:"sgst_amount"`
	IGSTAmount           decimal.Decimal `json:"igst_amount"`
	TotalTax             decimal.Decimal `json:"total_tax_amount"`
	RoundOff             decimal.Decimal `json:"round_off"`
	FinalAmount          decimal.Decimal `json:"final_amount"`
	PaidAmount           decimal.Decimal `json:"paid_amount"`
	Balance              decimal.Decimal `json:"balance"`
	PaymentStatus        PaymentStatus   `json:"payment_status"`
	InvoiceStatus        InvoiceStatus   `json:"invoice_status"`
	PaymentID            *int64          `json:"payment_id,omitempty"`
	Lines                []SaleLine      `json:"lines"`
	PrescriptionProducts []int64         `json:"prescription_products,omitempty"`
	Replayed             bool            `json:"replayed,omitempty"`
}

// PaymentRequest is the input of RecordPayment.
type PaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Mode      string          `json:"payment_mode"`
	Reference string          `json:"reference,omitempty" validate:"max=100"`
}

// PaymentResult reports the payment and the invoice after it.
type PaymentResult struct {
	PaymentID     int64           `json:"payment_id"`
	PaymentNumber string          `json:"payment_number"`
	InvoiceID     int64           `json:"invoice_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Balance       decimal.Decimal `json:"balance"`
	InvoiceStatus InvoiceStatus   `json:"invoice_status"`
}

// CancelRequest is the input of CancelInvoice.
type CancelRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// CancelResult reports a cancelled invoice.
type CancelResult struct {
	InvoiceID     int64           `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Status        InvoiceStatus   `json:"invoice_status"`
	Reversed      decimal.Decimal `json:"reversed_amount"`
	Restocked     int64           `json:"restocked_quantity"`
}

// subLine is a batch-level slice of a requested item.
type subLine struct {
	item       int
	productID  int64
	allocation inventory.Allocation
	unitPrice  decimal.Decimal
	discount   decimal.Decimal
	gst        decimal.NullDecimal
}
