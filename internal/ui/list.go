package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/finport/internal/mapping"
	"github.com/desertthunder/finport/internal/statement"
)

var _ list.Item = headerItem{}

// headerItem wraps a statement column to implement [list.Item].
type headerItem struct {
	header string
	sample string
}

func (i headerItem) FilterValue() string { return i.header }
func (i headerItem) Title() string       { return i.header }
func (i headerItem) Description() string {
	if i.sample == "" {
		return "(empty)"
	}
	return fmt.Sprintf("e.g. %s", i.sample)
}

// sampleValue returns the first non-blank value of header in rows.
func sampleValue(rows []statement.RawRow, header string) string {
	for _, row := range rows {
		if v := strings.TrimSpace(row[header]); v != "" {
			return v
		}
	}
	return ""
}

// newFieldList builds the column list for f with the current choice selected.
func newFieldList(f mapping.Field, headers []string, rows []statement.RawRow, selected string) list.Model {
	items := make([]list.Item, len(headers))
	index := 0
	for i, h := range headers {
		items[i] = headerItem{header: h, sample: sampleValue(rows, h)}
		if h == selected {
			index = i
		}
	}

	l := list.New(items, list.NewDefaultDelegate(), 40, 14)
	l.Title = fmt.Sprintf("Column for %s", f)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.Select(index)
	return l
}
