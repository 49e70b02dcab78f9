// Package normalize converts raw statement cells into canonical values.
//
// Parsing never fails loudly: an unparseable date reports ok=false and an
// unparseable amount is zero cents. Callers decide what to drop.
package normalize

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/araddon/dateparse"
)

// isoLayouts are the unambiguous ISO-8601 forms, tried before any locale pattern.
var isoLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01",
	"20060102",
}

type localePattern struct {
	layout  string
	twoYear bool
}

// localePatterns mirror M/d/yy, M/d/yyyy, MM/dd/yy, MM/dd/yyyy and yyyy-MM-dd, in that order.
var localePatterns = []localePattern{
	{layout: "1/2/06", twoYear: true},
	{layout: "1/2/2006"},
	{layout: "01/02/06", twoYear: true},
	{layout: "01/02/2006"},
	{layout: "2006-01-02"},
}

// referenceYear anchors two-digit year expansion. Tests pin it.
var referenceYear = func() int { return time.Now().Year() }

// ParseDate parses raw into a calendar date.
//
// ISO forms are tried first, then the locale patterns, then a permissive
// generic parse. Empty input and input no strategy accepts report ok=false.
func ParseDate(raw string) (civil.Date, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return civil.Date{}, false
	}

	if d, ok := parseISO(s); ok {
		return d, true
	}

	for _, p := range localePatterns {
		t, err := time.Parse(p.layout, s)
		if err != nil {
			continue
		}
		d := civil.DateOf(t)
		if p.twoYear {
			d.Year = expandTwoDigitYear(d.Year%100, referenceYear())
			if !d.IsValid() {
				continue
			}
		}
		return d, true
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return civil.Date{}, false
	}
	return civil.DateOf(t), true
}

// parseISO keeps the components as written, so an offset never moves the day.
func parseISO(s string) (civil.Date, bool) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), true
		}
	}
	return civil.Date{}, false
}

// expandTwoDigitYear places yy in the century that keeps it within 50 years of ref.
func expandTwoDigitYear(yy, ref int) int {
	rangeEnd := ref + 50
	century := rangeEnd / 100 * 100
	if yy >= rangeEnd%100 {
		return century - 100 + yy
	}
	return century + yy
}

// ToCanonicalDateString renders d as YYYY-MM-DD.
func ToCanonicalDateString(d civil.Date) string {
	return d.String()
}

// CanonicalDate parses raw and renders it canonically, or returns "" when raw is not a date.
func CanonicalDate(raw string) string {
	d, ok := ParseDate(raw)
	if !ok {
		return ""
	}
	return ToCanonicalDateString(d)
}
