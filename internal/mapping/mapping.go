// Package mapping proposes and validates the assignment of CSV columns to
// the semantic fields of a transaction.
package mapping

import (
	"fmt"
	"slices"
	"strings"

	"github.com/desertthunder/finport/internal/shared"
)

// Field is a semantic transaction field a column can be mapped to.
type Field int

const (
	Date Field = iota
	Description
	Amount
)

// Fields lists every mappable field in display order.
var Fields = []Field{Date, Description, Amount}

func (f Field) String() string {
	switch f {
	case Date:
		return "date"
	case Description:
		return "description"
	case Amount:
		return "amount"
	default:
		return ""
	}
}

// keywords are matched as substrings of the lowercased header.
var keywords = map[Field][]string{
	Date:        {"date", "transaction date", "posted date"},
	Description: {"description", "name", "memo", "merchant"},
	Amount:      {"amount", "amt", "value"},
}

// ColumnMapping selects the column that feeds each field. Empty means unset.
type ColumnMapping struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

// Get returns the column selected for f.
func (m ColumnMapping) Get(f Field) string {
	switch f {
	case Date:
		return m.Date
	case Description:
		return m.Description
	case Amount:
		return m.Amount
	default:
		return ""
	}
}

// Set returns a copy of m with f mapped to column.
func (m ColumnMapping) Set(f Field, column string) ColumnMapping {
	switch f {
	case Date:
		m.Date = column
	case Description:
		m.Description = column
	case Amount:
		m.Amount = column
	}
	return m
}

// Guess picks, per field, the first header (in file order) containing one of the field's keywords.
//
// Fields with no matching header stay unset. Nothing prevents two fields from guessing the same column.
func Guess(headers []string) ColumnMapping {
	var m ColumnMapping
	for _, f := range Fields {
		m = m.Set(f, pick(headers, keywords[f]))
	}
	return m
}

func pick(headers []string, words []string) string {
	for _, h := range headers {
		lower := strings.ToLower(h)
		for _, w := range words {
			if strings.Contains(lower, w) {
				return h
			}
		}
	}
	return ""
}

// Merge fills the unset fields of m from fallback. Fields already chosen in m are kept.
func (m ColumnMapping) Merge(fallback ColumnMapping) ColumnMapping {
	for _, f := range Fields {
		if strings.TrimSpace(m.Get(f)) == "" {
			m = m.Set(f, fallback.Get(f))
		}
	}
	return m
}

// Missing lists the fields with no column selected.
func (m ColumnMapping) Missing() []Field {
	var missing []Field
	for _, f := range Fields {
		if strings.TrimSpace(m.Get(f)) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// Complete reports whether every field has a column.
func (m ColumnMapping) Complete() bool {
	return len(m.Missing()) == 0
}

// Validate gates processing: every field must name a distinct column present in headers.
func (m ColumnMapping) Validate(headers []string) error {
	if missing := m.Missing(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, f := range missing {
			names[i] = f.String()
		}
		return fmt.Errorf("%w: missing %s", shared.ErrIncompleteMapping, strings.Join(names, ", "))
	}

	used := make(map[string]Field, len(Fields))
	for _, f := range Fields {
		col := m.Get(f)
		if !slices.Contains(headers, col) {
			return fmt.Errorf("%w: %s column %q", shared.ErrUnknownColumn, f, col)
		}
		if prev, ok := used[col]; ok {
			return fmt.Errorf("%w: %q selected for both %s and %s", shared.ErrDuplicateColumn, col, prev, f)
		}
		used[col] = f
	}

	return nil
}

func (m ColumnMapping) String() string {
	return fmt.Sprintf("date=%q description=%q amount=%q", m.Date, m.Description, m.Amount)
}
