// Package money holds fixed-point helpers for rupee amounts.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Hundred is the percent divisor.
var Hundred = decimal.NewFromInt(100)

// Zero is the zero amount.
var Zero = decimal.Zero

// Round rounds half to even at two decimal places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

// Percent returns round(base * pct / 100).
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return Round(base.Mul(pct).Div(Hundred))
}

// RoundingMode selects how an invoice total is rounded to whole rupees.
type RoundingMode string

const (
	RoundBankers RoundingMode = "bankers"
	RoundHalfUp  RoundingMode = "half_up"
	RoundFloor   RoundingMode = "floor"
	RoundCeil    RoundingMode = "ceil"
)

// ParseRoundingMode validates a configured mode. Empty means bankers.
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch RoundingMode(s) {
	case "":
		return RoundBankers, nil
	case RoundBankers, RoundHalfUp, RoundFloor, RoundCeil:
		return RoundingMode(s), nil
	}
	return "", fmt.Errorf("money: unknown rounding mode %q", s)
}

// ToRupee rounds d to a whole rupee using mode.
func ToRupee(d decimal.Decimal, mode RoundingMode) decimal.Decimal {
	switch mode {
	case RoundHalfUp:
		return d.Round(0)
	case RoundFloor:
		return d.RoundFloor(0)
	case RoundCeil:
		return d.RoundCeil(0)
	default:
		return d.RoundBank(0)
	}
}

// Sum adds amounts.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// IsWholeRupee reports whether d has no paise.
func IsWholeRupee(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(0))
}

// Max returns the larger amount.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}
