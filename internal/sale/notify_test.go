package sale

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMoneyFormatting(t *testing.T) {
	n := NewNotifier(nil)
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0.00"},
		{"75", "75.00"},
		{"1000", "1,000.00"},
		{"1234.5", "1,234.50"},
		{"-0.5", "-0.50"},
		{"12345678901234.56", "12,345,678,901,234.56"},
		{"0.1234567890123456789", "0.12"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, n.money(decimal.RequireFromString(tc.in)), tc.in)
	}
}
