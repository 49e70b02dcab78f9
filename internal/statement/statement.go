// Package statement reads bank-exported CSV statements into header-keyed rows.
package statement

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/finport/internal/shared"
)

// PreviewSize is how many rows a preview shows.
const PreviewSize = 12

const byteOrderMark = "\ufeff"

// RawRow maps a column name to its cell value for one CSV line.
type RawRow map[string]string

// Statement is a parsed CSV: trimmed headers in file order and one RawRow per data line.
type Statement struct {
	Headers []string
	Rows    []RawRow
}

// Parse reads a CSV with a header row.
//
// Lines whose cells are all blank are skipped. Short lines leave the missing
// columns out of the row. Cells past the last header are ignored.
// Returns [shared.ErrNoHeaders] when no non-blank header cell exists.
func Parse(r io.Reader) (*Statement, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var headers []string
	for headers == nil {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil, shared.ErrNoHeaders
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV header: %w", err)
		}
		if isBlank(record) {
			continue
		}
		headers = normalizeHeaders(record)
	}

	stmt := &Statement{Headers: headers}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		if isBlank(record) {
			continue
		}

		row := make(RawRow, len(headers))
		for i, h := range headers {
			if i >= len(record) {
				break
			}
			row[h] = record[i]
		}
		stmt.Rows = append(stmt.Rows, row)
	}

	return stmt, nil
}

// ParseFile opens path and parses it with [Parse].
func ParseFile(path string) (*Statement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open statement %s: %w", path, err)
	}
	defer f.Close()

	stmt, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return stmt, nil
}

// Preview returns up to n leading rows.
func (s *Statement) Preview(n int) []RawRow {
	if n > len(s.Rows) {
		n = len(s.Rows)
	}
	return s.Rows[:n]
}

// normalizeHeaders trims each header and suffixes repeats ("Amount", "Amount_1").
func normalizeHeaders(record []string) []string {
	headers := make([]string, len(record))
	seen := make(map[string]int, len(record))
	for i, cell := range record {
		if i == 0 {
			cell = strings.TrimPrefix(cell, byteOrderMark)
		}
		h := strings.TrimSpace(cell)
		if n, ok := seen[h]; ok {
			seen[h] = n + 1
			h = h + "_" + strconv.Itoa(n+1)
		} else {
			seen[h] = 0
		}
		headers[i] = h
	}
	return headers
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
