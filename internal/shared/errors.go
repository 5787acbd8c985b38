package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind classifies an error for propagation and retry decisions.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindPolicy     Kind = "policy"
	KindTransient  Kind = "transient"
	KindFatal      Kind = "fatal"
)

// Error is the structured error carried across the engine. Two errors are
// considered equal by errors.Is when their codes match, so detailed instances
// built by the constructors below still match the package sentinels.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// with returns a copy of e carrying details.
func (e *Error) with(details map[string]any) *Error {
	clone := *e
	clone.Details = details
	return &clone
}

// Wrap returns a copy of e wrapping cause.
func (e *Error) Wrap(cause error) *Error {
	clone := *e
	clone.Err = cause
	return &clone
}

// Withf returns a copy of e with a formatted message.
func (e *Error) Withf(format string, args ...any) *Error {
	clone := *e
	clone.Message = fmt.Sprintf(format, args...)
	return &clone
}

// Validation.
var (
	ErrValidation      = newError(KindValidation, "validation_failed", "validation failed")
	ErrEmptyItems      = newError(KindValidation, "empty_items", "at least one item is required")
	ErrInvalidQuantity = newError(KindValidation, "invalid_quantity", "quantity must be greater than zero")
	ErrInvalidAmount   = newError(KindValidation, "invalid_amount", "amount must be positive")
	ErrInvalidPayment  = newError(KindValidation, "invalid_payment_mode", "unknown or unsupported payment mode")
	ErrMissingOrg      = newError(KindValidation, "missing_org_context", "organisation context required")
)

// NotFound.
var (
	ErrNotFound         = newError(KindNotFound, "not_found", "not found")
	ErrCustomerNotFound = newError(KindNotFound, "customer_not_found", "customer not found")
	ErrSupplierNotFound = newError(KindNotFound, "supplier_not_found", "supplier not found")
	ErrPartyNotFound    = newError(KindNotFound, "party_not_found", "party not found")
	ErrProductNotFound  = newError(KindNotFound, "product_not_found", "product not found")
	ErrInvoiceNotFound  = newError(KindNotFound, "invoice_not_found", "invoice not found")
	ErrOrderNotFound    = newError(KindNotFound, "order_not_found", "order not found")
	ErrBatchNotFound    = newError(KindNotFound, "batch_not_found", "batch not found")
	ErrNoteNotFound     = newError(KindNotFound, "note_not_found", "note not found")
	ErrOrgNotFound      = newError(KindNotFound, "organisation_not_found", "organisation not found")
	ErrEntryNotFound    = newError(KindNotFound, "ledger_entry_not_found", "ledger entry not found")
)

// Conflict.
var (
	ErrInsufficientStock   = newError(KindConflict, "insufficient_stock", "insufficient stock")
	ErrCreditLimitExceeded = newError(KindConflict, "credit_limit_exceeded", "credit limit exceeded")
	ErrOverpayment         = newError(KindConflict, "overpayment", "payment exceeds balance")
	ErrQuantityExceeded    = newError(KindConflict, "quantity_exceeded", "return quantity exceeds sold quantity")
	ErrDuplicateNumber     = newError(KindConflict, "duplicate_number", "document number already issued")
	ErrAlreadyCancelled    = newError(KindConflict, "already_cancelled", "document already cancelled")
	ErrHasPayments         = newError(KindConflict, "has_payments", "invoice has payments")
	ErrHasReturns          = newError(KindConflict, "has_returns", "invoice has returns")
	ErrInvoiceCancelled    = newError(KindConflict, "invoice_cancelled", "invoice is cancelled")
	ErrInvalidTransition   = newError(KindConflict, "invalid_status_transition", "status transition not allowed")
	ErrIdempotencyConflict = newError(KindConflict, "idempotency_conflict", "idempotent request already processed")
	ErrRetryExhausted      = newError(KindConflict, "retry_exhausted", "retry budget exhausted")
)

// Policy.
var (
	ErrExpiredBatchSelected = newError(KindPolicy, "expired_batch_selected", "batch is expired or inactive")
	ErrPrescriptionMissing  = newError(KindPolicy, "prescription_missing", "prescription reference required")
)

// Transient.
var (
	ErrTransactionTimeout   = newError(KindTransient, "transaction_timeout", "transaction deadline exceeded")
	ErrLockWaitTimeout      = newError(KindTransient, "lock_wait_timeout", "lock wait timeout")
	ErrSerializationFailure = newError(KindTransient, "serialization_failure", "serialization failure")
)

// Fatal.
var (
	ErrLedgerOutstandingMismatch = newError(KindFatal, "ledger_outstanding_mismatch", "ledger and outstanding disagree")
	ErrBatchQuantityNegative     = newError(KindFatal, "batch_quantity_negative", "batch quantity would become negative")
)

// KindOf reports the kind of err, or the empty kind for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Details returns the structured details attached to err, if any.
func Details(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// Validationf builds a validation error with a message.
func Validationf(format string, args ...any) error {
	return ErrValidation.Withf(format, args...)
}

// InsufficientStock reports a per-product shortfall.
func InsufficientStock(productID, available, requested int64) error {
	return ErrInsufficientStock.Withf("insufficient stock for product %d: available %d, requested %d", productID, available, requested).
		with(map[string]any{
			"product_id": productID,
			"available":  available,
			"requested":  requested,
			"shortfall":  requested - available,
		})
}

// CreditLimitExceeded reports the cap and the current outstanding.
func CreditLimitExceeded(limit, current, proposed decimal.Decimal) error {
	return ErrCreditLimitExceeded.Withf("credit limit %s exceeded: outstanding %s, proposed %s", limit.StringFixed(2), current.StringFixed(2), proposed.StringFixed(2)).
		with(map[string]any{
			"cap":      limit.StringFixed(2),
			"current":  current.StringFixed(2),
			"proposed": proposed.StringFixed(2),
		})
}

// Overpayment reports a payment above the open balance.
func Overpayment(balance, amount decimal.Decimal) error {
	return ErrOverpayment.Withf("payment %s exceeds balance %s", amount.StringFixed(2), balance.StringFixed(2)).
		with(map[string]any{
			"balance": balance.StringFixed(2),
			"amount":  amount.StringFixed(2),
		})
}

// QuantityExceeded reports a return above the returnable quantity.
func QuantityExceeded(productID, returnable, requested int64) error {
	return ErrQuantityExceeded.Withf("return of product %d exceeds returnable quantity: returnable %d, requested %d", productID, returnable, requested).
		with(map[string]any{
			"product_id": productID,
			"returnable": returnable,
			"requested":  requested,
		})
}

// ExpiredBatch reports an explicitly requested batch that cannot be sold.
func ExpiredBatch(batchID int64, status string) error {
	return ErrExpiredBatchSelected.Withf("batch %d cannot be allocated (%s)", batchID, status).
		with(map[string]any{"batch_id": batchID, "status": status})
}

// NegativeBatch reports a runtime breach of the batch quantity invariant.
func NegativeBatch(batchID, available int64) error {
	return ErrBatchQuantityNegative.Withf("batch %d would reach quantity %d", batchID, available).
		with(map[string]any{"batch_id": batchID, "available": available})
}

// OutstandingMismatch reports a disagreement between cache and ledger.
func OutstandingMismatch(customerID int64, cached, ledger decimal.Decimal) error {
	return ErrLedgerOutstandingMismatch.Withf("customer %d outstanding %s differs from ledger %s", customerID, cached.StringFixed(2), ledger.StringFixed(2)).
		with(map[string]any{
			"customer_id": customerID,
			"cached":      cached.StringFixed(2),
			"ledger":      ledger.StringFixed(2),
		})
}
