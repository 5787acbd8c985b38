package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikasgargbear/production-infra-sub000/internal/money"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func gst(s string) decimal.NullDecimal { return decimal.NewNullDecimal(d(s)) }

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "want %s got %s", want, got.String())
}

func TestClassify(t *testing.T) {
	e := NewEngine(DefaultConfig())
	assert.Equal(t, IntraState, e.Classify("29", "29"))
	assert.Equal(t, InterState, e.Classify("29", "27"))
	assert.Equal(t, IntraState, e.Classify("29", ""))
	assert.Equal(t, IntraState, e.Classify("", "27"))

	cfg := DefaultConfig()
	cfg.IntraStateWhenUnknown = false
	assert.Equal(t, InterState, NewEngine(cfg).Classify("29", ""))
}

func TestBuyerStatePrefersGSTIN(t *testing.T) {
	assert.Equal(t, "27", BuyerState("29", "27AAPFU0939F1ZV"))
	assert.Equal(t, "29", BuyerState("29", ""))
	assert.Equal(t, "29", BuyerState("29", "XXAAPFU0939F1ZV"))
	assert.Equal(t, "29", BuyerState("29", "27AAP"))
}

func TestIntraStateSingleLine(t *testing.T) {
	e := NewEngine(DefaultConfig())
	res, err := e.Compute(IntraState, []Line{{Quantity: 10, UnitPrice: d("90"), GSTPercent: gst("12")}}, Charges{})
	require.NoError(t, err)

	requireAmount(t, "900", res.Totals.Taxable)
	requireAmount(t, "54", res.Totals.CGST)
	requireAmount(t, "54", res.Totals.SGST)
	requireAmount(t, "0", res.Totals.IGST)
	requireAmount(t, "0", res.Totals.RoundOff)
	requireAmount(t, "1008", res.Totals.Final)
}

func TestInterStateTwoSubLines(t *testing.T) {
	e := NewEngine(DefaultConfig())
	res, err := e.Compute(InterState, []Line{
		{Quantity: 8, UnitPrice: d("100"), GSTPercent: gst("12")},
		{Quantity: 7, UnitPrice: d("100"), GSTPercent: gst("12")},
	}, Charges{})
	require.NoError(t, err)

	requireAmount(t, "1500", res.Totals.Taxable)
	requireAmount(t, "180", res.Totals.IGST)
	requireAmount(t, "0", res.Totals.CGST.Add(res.Totals.SGST))
	requireAmount(t, "1680", res.Totals.Final)
}

func TestOddTaxSplitsWithinOnePaisa(t *testing.T) {
	e := NewEngine(DefaultConfig())
	lt, err := e.ComputeLine(IntraState, Line{Quantity: 1, UnitPrice: d("10.25"), GSTPercent: gst("5")})
	require.NoError(t, err)

	requireAmount(t, "0.51", lt.TaxTotal)
	requireAmount(t, "0.26", lt.CGST)
	requireAmount(t, "0.25", lt.SGST)
	require.True(t, lt.CGST.Sub(lt.SGST).Abs().LessThanOrEqual(d("0.01")))
	requireAmount(t, lt.TaxTotal.String(), lt.CGST.Add(lt.SGST).Add(lt.IGST))
}

func TestIdenticalOddPaisaLinesStayBalanced(t *testing.T) {
	e := NewEngine(DefaultConfig())
	lines := make([]Line, 5)
	for i := range lines {
		lines[i] = Line{Quantity: 1, UnitPrice: d("20.20"), GSTPercent: gst("5")}
	}
	res, err := e.Compute(IntraState, lines, Charges{})
	require.NoError(t, err)

	tot := res.Totals
	requireAmount(t, "5.05", tot.TotalTax)
	requireAmount(t, "2.53", tot.CGST)
	requireAmount(t, "2.52", tot.SGST)

	cgst, sgst := decimal.Zero, decimal.Zero
	for i, lt := range res.Lines {
		requireAmount(t, "1.01", lt.TaxTotal)
		require.True(t, lt.CGST.Sub(lt.SGST).Abs().LessThanOrEqual(d("0.01")), "line %d", i)
		requireAmount(t, "1.01", lt.CGST.Add(lt.SGST))
		cgst = cgst.Add(lt.CGST)
		sgst = sgst.Add(lt.SGST)
	}
	requireAmount(t, "0.51", res.Lines[0].CGST)
	requireAmount(t, "0.50", res.Lines[1].CGST)
	requireAmount(t, tot.CGST.String(), cgst)
	requireAmount(t, tot.SGST.String(), sgst)
}

func TestSplitStaysBalancedForMixedLines(t *testing.T) {
	e := NewEngine(DefaultConfig())
	prices := []string{"20.20", "10.25", "0.30", "99.99", "17.35", "20.20", "1.01"}
	lines := make([]Line, len(prices))
	for i, p := range prices {
		lines[i] = Line{Quantity: int64(1 + i%3), UnitPrice: d(p), GSTPercent: gst("5")}
	}
	res, err := e.Compute(IntraState, lines, Charges{})
	require.NoError(t, err)

	tot := res.Totals
	require.True(t, tot.CGST.Sub(tot.SGST).Abs().LessThanOrEqual(d("0.01")))
	cgst, sgst := decimal.Zero, decimal.Zero
	for _, lt := range res.Lines {
		require.True(t, lt.CGST.Sub(lt.SGST).Abs().LessThanOrEqual(d("0.01")))
		cgst = cgst.Add(lt.CGST)
		sgst = sgst.Add(lt.SGST)
	}
	require.True(t, cgst.Equal(tot.CGST))
	require.True(t, sgst.Equal(tot.SGST))
}

func TestDiscountChargesAndRoundOff(t *testing.T) {
	e := NewEngine(DefaultConfig())
	res, err := e.Compute(IntraState, []Line{
		{Quantity: 3, UnitPrice: d("33.33"), DiscountPercent: d("10"), GSTPercent: gst("5")},
	}, Charges{OrderDiscount: d("5"), DeliveryCharges: d("20"), OtherCharges: d("2.5")})
	require.NoError(t, err)

	line := res.Lines[0]
	requireAmount(t, "99.99", line.Gross)
	requireAmount(t, "10.00", line.DiscountAmount)
	requireAmount(t, "89.99", line.Taxable)
	requireAmount(t, "4.50", line.TaxTotal)

	tot := res.Totals
	requireAmount(t, "15.00", tot.TotalDiscount)
	requireAmount(t, "84.99", tot.Taxable)
	requireAmount(t, "111.99", tot.Grand)
	requireAmount(t, "0.01", tot.RoundOff)
	requireAmount(t, "112", tot.Final)
	require.True(t, money.IsWholeRupee(tot.Final))
	requireAmount(t, tot.Final.String(), tot.Subtotal.Sub(tot.TotalDiscount).Add(tot.TotalTax).Add(tot.DeliveryCharges).Add(tot.OtherCharges).Add(tot.RoundOff))
}

func TestDefaultRateAppliesWhenProductRateMissing(t *testing.T) {
	e := NewEngine(DefaultConfig())
	lt, err := e.ComputeLine(InterState, Line{Quantity: 1, UnitPrice: d("100")})
	require.NoError(t, err)
	requireAmount(t, "12", lt.IGST)

	lt, err = e.ComputeLine(InterState, Line{Quantity: 1, UnitPrice: d("100"), GSTPercent: gst("0")})
	require.NoError(t, err)
	requireAmount(t, "0", lt.IGST)
}

func TestRoundOffModeOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RoundOff = money.RoundCeil
	res, err := NewEngine(cfg).Compute(InterState, []Line{{Quantity: 1, UnitPrice: d("100.10"), GSTPercent: gst("0")}}, Charges{})
	require.NoError(t, err)
	requireAmount(t, "101", res.Totals.Final)
	requireAmount(t, "0.90", res.Totals.RoundOff)
}

func TestComputeRejectsInvalidInput(t *testing.T) {
	e := NewEngine(DefaultConfig())

	_, err := e.Compute(IntraState, nil, Charges{})
	require.ErrorIs(t, err, shared.ErrEmptyItems)

	_, err = e.Compute(IntraState, []Line{{Quantity: 0, UnitPrice: d("1")}}, Charges{})
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)

	_, err = e.Compute(IntraState, []Line{{Quantity: 1, UnitPrice: d("1"), GSTPercent: gst("30")}}, Charges{})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = e.Compute(IntraState, []Line{{Quantity: 1, UnitPrice: d("10")}}, Charges{OrderDiscount: d("11")})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestTaxColumnsAlwaysSumToTotal(t *testing.T) {
	e := NewEngine(DefaultConfig())
	prices := []string{"0.01", "1.99", "17.35", "99.99", "123.45", "1000"}
	rates := []string{"0", "5", "12", "18", "28"}
	for _, gt := range []GSTType{IntraState, InterState} {
		for _, p := range prices {
			for _, r := range rates {
				for qty := int64(1); qty <= 7; qty += 3 {
					res, err := e.Compute(gt, []Line{{Quantity: qty, UnitPrice: d(p), DiscountPercent: d("7.5"), GSTPercent: gst(r)}}, Charges{})
					require.NoError(t, err)
					tot := res.Totals
					require.True(t, tot.CGST.Add(tot.SGST).Add(tot.IGST).Equal(tot.TotalTax))
					if gt == IntraState {
						require.True(t, tot.IGST.IsZero())
					} else {
						require.True(t, tot.CGST.IsZero() && tot.SGST.IsZero())
					}
					require.True(t, money.IsWholeRupee(tot.Final))
				}
			}
		}
	}
}
