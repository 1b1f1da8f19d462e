package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAmountScaleValid(t *testing.T) {
	cases := []struct {
		amount   string
		currency string
		ok       bool
	}{
		{"10.00", "CNY", true},
		{"10.005", "CNY", false},
		{"100", "JPY", true},
		{"100.5", "JPY", false},
		{"0.01", "USD", true},
	}
	for _, c := range cases {
		got := AmountScaleValid(decimal.RequireFromString(c.amount), c.currency)
		if got != c.ok {
			t.Errorf("AmountScaleValid(%s, %s) = %v, want %v", c.amount, c.currency, got, c.ok)
		}
	}
}

func TestKnownCurrency(t *testing.T) {
	if !KnownCurrency("CNY") || !KnownCurrency("MYR") {
		t.Error("expected supported currencies")
	}
	if KnownCurrency("XXX") {
		t.Error("XXX should be unknown")
	}
	if CurrencyScale("JPY") != 0 {
		t.Error("JPY scale should be 0")
	}
}
