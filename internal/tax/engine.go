// Package tax computes Indian GST for invoice lines and totals.
package tax

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vikasgargbear/production-infra-sub000/internal/money"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

// GSTType is the invoice-level classification.
type GSTType string

const (
	// IntraState splits tax into equal central and state halves.
	IntraState GSTType = "cgst_sgst"
	// InterState applies the integrated tax only.
	InterState GSTType = "igst"
)

var maxGSTPercent = decimal.NewFromInt(28)

// Config tunes the engine.
type Config struct {
	DefaultGSTPercent     decimal.Decimal
	IntraStateWhenUnknown bool
	RoundOff              money.RoundingMode
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		DefaultGSTPercent:     decimal.NewFromInt(12),
		IntraStateWhenUnknown: true,
		RoundOff:              money.RoundBankers,
	}
}

// Engine is stateless apart from configuration and safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine builds an Engine.
func NewEngine(cfg Config) *Engine {
	if cfg.RoundOff == "" {
		cfg.RoundOff = money.RoundBankers
	}
	return &Engine{cfg: cfg}
}

// Line is one priced quantity to be taxed.
type Line struct {
	Quantity        int64
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	GSTPercent      decimal.NullDecimal
}

// LineTax is the computed breakdown of a Line.
type LineTax struct {
	Gross          decimal.Decimal
	DiscountAmount decimal.Decimal
	Taxable        decimal.Decimal
	GSTPercent     decimal.Decimal
	TaxTotal       decimal.Decimal
	CGST           decimal.Decimal
	SGST           decimal.Decimal
	IGST           decimal.Decimal
	LineTotal      decimal.Decimal
	TotalPrice     decimal.Decimal
}

// Charges are invoice-level adjustments outside the lines.
type Charges struct {
	OrderDiscount   decimal.Decimal
	DeliveryCharges decimal.Decimal
	OtherCharges    decimal.Decimal
}

// Totals is the invoice summary.
type Totals struct {
	GSTType         GSTType
	Subtotal        decimal.Decimal
	LineDiscount    decimal.Decimal
	TotalDiscount   decimal.Decimal
	Taxable         decimal.Decimal
	CGST            decimal.Decimal
	SGST            decimal.Decimal
	IGST            decimal.Decimal
	TotalTax        decimal.Decimal
	DeliveryCharges decimal.Decimal
	OtherCharges    decimal.Decimal
	Grand           decimal.Decimal
	RoundOff        decimal.Decimal
	Final           decimal.Decimal
}

// Result bundles per-line taxes with totals.
type Result struct {
	Lines  []LineTax
	Totals Totals
}

// StateFromGSTIN returns the two-digit state code encoded in a GSTIN, or ""
// when the GSTIN is absent or malformed.
func StateFromGSTIN(gstin string) string {
	gstin = strings.TrimSpace(gstin)
	if len(gstin) != 15 {
		return ""
	}
	code := gstin[:2]
	if code[0] < '0' || code[0] > '9' || code[1] < '0' || code[1] > '9' {
		return ""
	}
	return code
}

// BuyerState prefers the GSTIN prefix over the recorded state code.
func BuyerState(stateCode, gstin string) string {
	if s := StateFromGSTIN(gstin); s != "" {
		return s
	}
	return strings.TrimSpace(stateCode)
}

// Classify decides between intra- and inter-state tax.
func (e *Engine) Classify(sellerState, buyerState string) GSTType {
	sellerState = strings.TrimSpace(sellerState)
	buyerState = strings.TrimSpace(buyerState)
	if sellerState == "" || buyerState == "" {
		if e.cfg.IntraStateWhenUnknown {
			return IntraState
		}
		return InterState
	}
	if sellerState == buyerState {
		return IntraState
	}
	return InterState
}

// Rate resolves the GST percent of a line.
func (e *Engine) Rate(pct decimal.NullDecimal) decimal.Decimal {
	if pct.Valid {
		return pct.Decimal
	}
	return e.cfg.DefaultGSTPercent
}

// ComputeLine applies steps 1 to 6 of the line computation.
func (e *Engine) ComputeLine(gstType GSTType, line Line) (LineTax, error) {
	if line.Quantity <= 0 {
		return LineTax{}, shared.ErrInvalidQuantity
	}
	if line.UnitPrice.IsNegative() {
		return LineTax{}, shared.Validationf("tax: unit price must not be negative")
	}
	if line.DiscountPercent.IsNegative() || line.DiscountPercent.GreaterThan(money.Hundred) {
		return LineTax{}, shared.Validationf("tax: discount percent must be between 0 and 100")
	}
	rate := e.Rate(line.GSTPercent)
	if rate.IsNegative() || rate.GreaterThan(maxGSTPercent) {
		return LineTax{}, shared.Validationf("tax: gst percent %s out of range", rate.String())
	}

	gross := money.Round(decimal.NewFromInt(line.Quantity).Mul(line.UnitPrice))
	discount := money.Percent(gross, line.DiscountPercent)
	taxable := gross.Sub(discount)
	taxTotal := money.Percent(taxable, rate)

	out := LineTax{
		Gross:          gross,
		DiscountAmount: discount,
		Taxable:        taxable,
		GSTPercent:     rate,
		TaxTotal:       taxTotal,
		CGST:           decimal.Zero,
		SGST:           decimal.Zero,
		IGST:           decimal.Zero,
		LineTotal:      taxable,
		TotalPrice:     taxable.Add(taxTotal),
	}
	switch gstType {
	case IntraState:
		out.CGST = half(taxTotal)
		out.SGST = taxTotal.Sub(out.CGST)
	case InterState:
		out.IGST = taxTotal
	default:
		return LineTax{}, fmt.Errorf("tax: unknown gst type %q", gstType)
	}
	return out, nil
}

// Compute taxes every line and summarises the invoice.
func (e *Engine) Compute(gstType GSTType, lines []Line, charges Charges) (Result, error) {
	if len(lines) == 0 {
		return Result{}, shared.ErrEmptyItems
	}
	taxed := make([]LineTax, 0, len(lines))
	for i, line := range lines {
		lt, err := e.ComputeLine(gstType, line)
		if err != nil {
			return Result{}, fmt.Errorf("line %d: %w", i+1, err)
		}
		taxed = append(taxed, lt)
	}
	if gstType == IntraState {
		splitHalves(taxed)
	}
	totals, err := e.Summarise(gstType, taxed, charges)
	if err != nil {
		return Result{}, err
	}
	return Result{Lines: taxed, Totals: totals}, nil
}

// Summarise builds invoice totals from already computed lines.
func (e *Engine) Summarise(gstType GSTType, lines []LineTax, charges Charges) (Totals, error) {
	orderDiscount := money.Round(charges.OrderDiscount)
	delivery := money.Round(charges.DeliveryCharges)
	other := money.Round(charges.OtherCharges)
	if orderDiscount.IsNegative() || delivery.IsNegative() || other.IsNegative() {
		return Totals{}, shared.Validationf("tax: discount and charges must not be negative")
	}

	t := Totals{GSTType: gstType, DeliveryCharges: delivery, OtherCharges: other}
	for _, l := range lines {
		t.Subtotal = t.Subtotal.Add(l.Gross)
		t.LineDiscount = t.LineDiscount.Add(l.DiscountAmount)
		t.CGST = t.CGST.Add(l.CGST)
		t.SGST = t.SGST.Add(l.SGST)
		t.IGST = t.IGST.Add(l.IGST)
	}
	t.TotalDiscount = t.LineDiscount.Add(orderDiscount)
	t.Taxable = t.Subtotal.Sub(t.TotalDiscount)
	if t.Taxable.IsNegative() {
		return Totals{}, shared.Validationf("tax: discount %s exceeds subtotal %s", t.TotalDiscount.StringFixed(2), t.Subtotal.StringFixed(2))
	}
	t.TotalTax = t.CGST.Add(t.SGST).Add(t.IGST)
	if gstType == IntraState {
		t.CGST = half(t.TotalTax)
		t.SGST = t.TotalTax.Sub(t.CGST)
	}
	t.Grand = t.Taxable.Add(t.TotalTax).Add(delivery).Add(other)
	t.RoundOff = money.ToRupee(t.Grand, e.cfg.RoundOff).Sub(t.Grand)
	t.Final = t.Grand.Add(t.RoundOff)
	return t, nil
}

var two = decimal.NewFromInt(2)

// half is the central share of an intra-state tax amount. An odd paisa goes
// to CGST.
func half(tax decimal.Decimal) decimal.Decimal {
	return tax.Div(two).Round(2)
}

// splitHalves reassigns the CGST/SGST split of each line from the running
// tax total, so the odd paise alternate between columns and the line
// columns add up to the invoice halves.
func splitHalves(lines []LineTax) {
	cum, prev := decimal.Zero, decimal.Zero
	for i := range lines {
		cum = cum.Add(lines[i].TaxTotal)
		target := half(cum)
		lines[i].CGST = target.Sub(prev)
		lines[i].SGST = lines[i].TaxTotal.Sub(lines[i].CGST)
		prev = target
	}
}
