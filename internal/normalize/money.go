package normalize

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var nonNumeric = regexp.MustCompile(`[^0-9.,-]`)

// ParseMoney parses an amount such as "$1,234.56", "-12.34" or "(45.67)" into cents.
//
// Empty and unparseable input yields 0.
func ParseMoney(raw string) int64 {
	cents, _ := ParseMoneyChecked(raw)
	return cents
}

// ParseMoneyChecked is ParseMoney that also reports whether the amount fits in int64 cents.
// Unparseable input is still 0 with ok=true.
func ParseMoneyChecked(raw string) (int64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, true
	}

	parenNegative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")

	cleaned := nonNumeric.ReplaceAllString(s, "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, true
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, true
	}

	// Round half away from zero on the exact decimal.
	cents := amount.Round(2).Shift(2).BigInt()
	if !cents.IsInt64() {
		return 0, false
	}

	v := cents.Int64()
	if parenNegative && v > 0 {
		v = -v
	}
	return v, true
}
