package normalizer

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/importerr"
)

// NormalizeAmount parses the "Jumlah" column. Numeric cells are taken as-is.
// Text cells use Indonesian notation: dots group thousands and a comma marks
// decimals, so "Rp 1.500.000,50" is 1500000.5. The result must be positive.
func NormalizeAmount(value string, numeric bool) (decimal.Decimal, error) {
	raw := value
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, importerr.InvalidAmount(raw)
	}

	var cleaned string
	if numeric {
		cleaned = value
	} else {
		cleaned = cleanAmountText(value)
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, importerr.InvalidAmount(raw)
	}
	if !amount.IsPositive() {
		return decimal.Zero, importerr.InvalidAmount(raw)
	}
	return amount, nil
}

// cleanAmountText keeps digits, separators and sign, then rewrites the
// separators into a plain decimal literal.
func cleanAmountText(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == ',', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	cleaned := strings.ReplaceAll(b.String(), ".", "")
	return strings.ReplaceAll(cleaned, ",", ".")
}
