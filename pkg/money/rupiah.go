// Package money formats and totals Rupiah amounts. Arithmetic runs on
// go-money integer minor units (sen), so totals never drift.
package money

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// IDR is the ISO-4217 code of the Indonesian Rupiah.
const IDR = "IDR"

// senPerRupiah matches the two-digit fraction go-money registers for IDR.
var senPerRupiah = decimal.NewFromInt(100)

// rupiah renders whole rupiah as "Rp 1.500.000".
var rupiah = money.NewFormatter(0, ",", ".", "Rp", "$ 1")

// FromDecimal converts a rupiah amount to go-money, rounding to the sen.
func FromDecimal(amount decimal.Decimal) *money.Money {
	return money.New(amount.Mul(senPerRupiah).Round(0).IntPart(), IDR)
}

// ToDecimal converts go-money IDR back to a rupiah decimal.
func ToDecimal(m *money.Money) decimal.Decimal {
	if m == nil {
		return decimal.Zero
	}
	return decimal.NewFromInt(m.Amount()).Div(senPerRupiah)
}

// Format renders amount the way staff notifications show it, rounded to
// whole rupiah: "Rp 1.500.000", "-Rp 25.000".
func Format(amount decimal.Decimal) string {
	return rupiah.Format(amount.Round(0).IntPart())
}

// Totals sums inbound and outbound postings of one batch.
type Totals struct {
	Inbound  *money.Money
	Outbound *money.Money
	Count    int
}

// NewTotals returns zeroed totals.
func NewTotals() *Totals {
	return &Totals{Inbound: money.New(0, IDR), Outbound: money.New(0, IDR)}
}

// Add records one posting. Currencies always match, so Add cannot fail.
func (t *Totals) Add(inbound bool, amount decimal.Decimal) {
	m := FromDecimal(amount)
	if inbound {
		t.Inbound, _ = t.Inbound.Add(m)
	} else {
		t.Outbound, _ = t.Outbound.Add(m)
	}
	t.Count++
}

// Net is inbound minus outbound.
func (t *Totals) Net() decimal.Decimal {
	net, err := t.Inbound.Subtract(t.Outbound)
	if err != nil {
		return decimal.Zero
	}
	return ToDecimal(net)
}
