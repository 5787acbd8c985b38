package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRoundIsBankers(t *testing.T) {
	require.True(t, Round(d("2.345")).Equal(d("2.34")))
	require.True(t, Round(d("2.355")).Equal(d("2.36")))
	require.True(t, Round(d("-2.345")).Equal(d("-2.34")))
}

func TestToRupeeModes(t *testing.T) {
	cases := []struct {
		mode RoundingMode
		in   string
		want string
	}{
		{RoundBankers, "1007.50", "1008"},
		{RoundBankers, "1008.50", "1008"},
		{RoundHalfUp, "1008.50", "1009"},
		{RoundFloor, "1008.99", "1008"},
		{RoundCeil, "1008.01", "1009"},
	}
	for _, tc := range cases {
		t.Run(string(tc.mode)+"/"+tc.in, func(t *testing.T) {
			require.True(t, ToRupee(d(tc.in), tc.mode).Equal(d(tc.want)))
		})
	}
}

func TestParseRoundingMode(t *testing.T) {
	mode, err := ParseRoundingMode("")
	require.NoError(t, err)
	require.Equal(t, RoundBankers, mode)

	_, err = ParseRoundingMode("up")
	require.Error(t, err)
}

func TestPercent(t *testing.T) {
	require.True(t, Percent(d("900"), d("12")).Equal(d("108")))
	require.True(t, Percent(d("33.33"), d("5")).Equal(d("1.67")))
	require.True(t, IsWholeRupee(d("1008.00")))
	require.False(t, IsWholeRupee(d("1008.10")))
}
