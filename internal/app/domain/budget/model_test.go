package budget

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFundValid(t *testing.T) {
	assert.True(t, FundCap.Valid())
	assert.True(t, FundOM.Valid())
	assert.False(t, Fund("").Valid())
	assert.False(t, Fund("CAPITAL").Valid())
	assert.False(t, Fund("cap").Valid())
}

func TestValidCurrency(t *testing.T) {
	assert.True(t, ValidCurrency("CAD"))
	assert.True(t, ValidCurrency("USD"))
	assert.True(t, ValidCurrency("EUR"))

	// Lookup tolerates case and surrounding whitespace.
	assert.True(t, ValidCurrency("usd"))
	assert.True(t, ValidCurrency("  gbp "))

	assert.False(t, ValidCurrency("ZZZ"))
	assert.False(t, ValidCurrency(""))
	assert.False(t, ValidCurrency("DOLLARS"))
}

func TestToCAD(t *testing.T) {
	cases := []struct {
		amount string
		rate   string
		want   string
	}{
		{"100", "1", "100"},
		{"100", "1.35", "135"},
		{"19.99", "1.13", "22.59"},
		{"847.20", "1.355", "1147.96"},
		{"0", "1.35", "0"},
	}

	for _, tc := range cases {
		amount, err := decimal.NewFromString(tc.amount)
		require.NoError(t, err)
		rate, err := decimal.NewFromString(tc.rate)
		require.NoError(t, err)

		got := ToCAD(amount, rate)
		assert.True(t, got.Equal(decimal.RequireFromString(tc.want)),
			"ToCAD(%s, %s) = %s, want %s", tc.amount, tc.rate, got, tc.want)
	}
}
