package normalize

import (
	"strings"

	"github.com/shopspring/decimal"
)

var currencySymbols = map[string]string{
	"USD": "$",
	"CAD": "CA$",
	"AUD": "A$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
}

// FormatCents renders cents as a currency amount, e.g. "$1,234.56" or "-$45.67".
// Codes without a known symbol render as "CHF 1,234.56".
func FormatCents(cents int64, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = "USD"
	}

	amount := decimal.New(cents, -2).Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(amount, ".")
	body := groupThousands(whole) + "." + frac

	sign := ""
	if cents < 0 {
		sign = "-"
	}

	if symbol, ok := currencySymbols[code]; ok {
		return sign + symbol + body
	}
	return sign + code + " " + body
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
