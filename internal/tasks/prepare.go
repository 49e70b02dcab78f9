package tasks

import (
	"strings"

	"github.com/desertthunder/finport/internal/fingerprint"
	"github.com/desertthunder/finport/internal/mapping"
	"github.com/desertthunder/finport/internal/models"
	"github.com/desertthunder/finport/internal/normalize"
	"github.com/desertthunder/finport/internal/statement"
)

// Reasons a row is left out of the candidate set.
const (
	DropMissingDate      = "missing or unparseable date"
	DropEmptyDescription = "empty description"
	DropAmountOverflow   = "amount out of range"
)

// DroppedRow records why a statement row was excluded.
type DroppedRow struct {
	Index  int    `json:"index"` // 0-based position in the statement rows
	Reason string `json:"reason"`
}

// PrepareResult is the candidate set built from one statement.
type PrepareResult struct {
	Candidates []models.CandidateTransaction
	Dropped    []DroppedRow
}

// Prepare normalizes and fingerprints rows under m.
//
// It is pure: the same rows and mapping always produce the same result, so
// callers recompute it whenever the mapping changes. Rows without a parseable
// date, with an empty description, or with an amount that does not fit in
// cents are dropped and reported, never returned as errors.
func Prepare(rows []statement.RawRow, m mapping.ColumnMapping, userID, currency string) PrepareResult {
	result := PrepareResult{Candidates: make([]models.CandidateTransaction, 0, len(rows))}

	for i, row := range rows {
		date, ok := normalize.ParseDate(row[m.Date])
		if !ok {
			result.Dropped = append(result.Dropped, DroppedRow{Index: i, Reason: DropMissingDate})
			continue
		}
		occurredOn := normalize.ToCanonicalDateString(date)

		description := strings.TrimSpace(row[m.Description])
		if description == "" {
			result.Dropped = append(result.Dropped, DroppedRow{Index: i, Reason: DropEmptyDescription})
			continue
		}

		cents, ok := normalize.ParseMoneyChecked(row[m.Amount])
		if !ok {
			result.Dropped = append(result.Dropped, DroppedRow{Index: i, Reason: DropAmountOverflow})
			continue
		}

		result.Candidates = append(result.Candidates, models.CandidateTransaction{
			UserID:       userID,
			OccurredOn:   occurredOn,
			Description:  description,
			AmountCents:  cents,
			CurrencyCode: currency,
			Fingerprint:  fingerprint.Make(occurredOn, description, cents),
		})
	}

	return result
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var chunks [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
