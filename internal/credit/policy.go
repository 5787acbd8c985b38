// Package credit decides whether a customer may take on more receivable.
package credit

import (
	"github.com/shopspring/decimal"

	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

// Decision is the outcome of a credit check.
type Decision struct {
	Allowed     bool            `json:"allowed"`
	Reason      string          `json:"reason,omitempty"`
	Limit       decimal.Decimal `json:"credit_limit"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Proposed    decimal.Decimal `json:"proposed"`
	Headroom    decimal.Decimal `json:"headroom"`
}

// Check applies the credit rule. A limit of zero or less disables the check.
func Check(limit, outstanding, proposed decimal.Decimal) Decision {
	d := Decision{Allowed: true, Limit: limit, Outstanding: outstanding, Proposed: proposed}
	if !limit.IsPositive() {
		d.Reason = "no credit limit configured"
		return d
	}
	d.Headroom = limit.Sub(outstanding)
	if outstanding.Add(proposed).GreaterThan(limit) {
		d.Allowed = false
		d.Reason = "credit limit exceeded"
	}
	return d
}

// Err returns CreditLimitExceeded for a denial.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return shared.CreditLimitExceeded(d.Limit, d.Outstanding, d.Proposed)
}

// Bypass reports whether a sale settled in full at creation skips the check.
func Bypass(payment, final decimal.Decimal, onCredit bool) bool {
	return !onCredit && payment.IsPositive() && payment.GreaterThanOrEqual(final)
}
