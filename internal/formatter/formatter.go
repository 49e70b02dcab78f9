// package formatter renders transactions, import jobs and statement previews as CSV, JSON and terminal text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"github.com/desertthunder/finport/internal/mapping"
	"github.com/desertthunder/finport/internal/models"
	"github.com/desertthunder/finport/internal/normalize"
	"github.com/desertthunder/finport/internal/shared"
	"github.com/desertthunder/finport/internal/statement"
	"github.com/desertthunder/finport/internal/tasks"
)

// TransactionCSVHeaders are the columns written by [TransactionsCSV].
//
// Date, Description and Amount match the import guesser, so an export re-imports without a mapping.
var TransactionCSVHeaders = []string{"Date", "Description", "Amount", "Currency", "Fingerprint", "Import ID"}

// TransactionsCSV converts transactions to CSV with plain decimal amounts (e.g. -45.67)
func TransactionsCSV(txns []models.Transaction) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(TransactionCSVHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, txn := range txns {
		record := []string{
			txn.OccurredOn,
			txn.Description,
			decimal.New(txn.AmountCents, -2).StringFixed(2),
			txn.CurrencyCode,
			txn.Fingerprint,
			txn.ImportID,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteTransactionsCSV writes [TransactionsCSV] output to path.
func WriteTransactionsCSV(txns []models.Transaction, path string) error {
	data, err := TransactionsCSV(txns)
	if err != nil {
		return fmt.Errorf("failed to generate CSV: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write CSV file: %w", err)
	}
	return nil
}

// TransactionLine renders one transaction as "2024-01-05  -$4.50  Coffee".
func TransactionLine(txn models.Transaction) string {
	return fmt.Sprintf("%s  %12s  %s", txn.OccurredOn, normalize.FormatCents(txn.AmountCents, txn.CurrencyCode), txn.Description)
}

// JobLine renders one import job as "#3  done  statement.csv  1200 rows  2024-01-05 10:00".
// Failed jobs append their error message.
func JobLine(job *models.ImportJob) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d  %-7s  %s  %d rows  %s", job.Sequence(), job.Status(), job.SourceLabel(), job.RowCount(), job.StartedAt().Local().Format("2006-01-02 15:04"))
	if job.FinishedAt() != nil {
		fmt.Fprintf(&b, "  (%s)", job.Duration(time.Now()).Round(time.Millisecond))
	}
	if job.ErrorMessage() != "" {
		fmt.Fprintf(&b, "  error: %s", job.ErrorMessage())
	}
	return b.String()
}

// JobJSON is the serialized form of an [models.ImportJob].
type JobJSON struct {
	ID         string     `json:"id"`
	Sequence   int        `json:"sequence"`
	UserID     string     `json:"user_id"`
	Source     string     `json:"source"`
	Status     string     `json:"status"`
	RowCount   int        `json:"row_count"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// ToJobJSON converts job to its serialized form.
func ToJobJSON(job *models.ImportJob) JobJSON {
	return JobJSON{
		ID:         job.ID(),
		Sequence:   job.Sequence(),
		UserID:     job.UserID(),
		Source:     job.SourceLabel(),
		Status:     string(job.Status()),
		RowCount:   job.RowCount(),
		Error:      job.ErrorMessage(),
		StartedAt:  job.StartedAt(),
		FinishedAt: job.FinishedAt(),
	}
}

// JobsJSON serializes jobs as an indented JSON array.
func JobsJSON(jobs []*models.ImportJob) ([]byte, error) {
	out := make([]JobJSON, len(jobs))
	for i, job := range jobs {
		out[i] = ToJobJSON(job)
	}
	return shared.MarshalJSON(out, true)
}

// PreviewTable renders statement rows as a bordered table.
//
// Columns selected in m are labelled with their field, e.g. "Posted Date (date)".
func PreviewTable(headers []string, rows []statement.RawRow, m mapping.ColumnMapping) string {
	labels := make([]string, len(headers))
	for i, h := range headers {
		labels[i] = h
		for _, f := range mapping.Fields {
			if m.Get(f) == h {
				labels[i] += " (" + f.String() + ")"
			}
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(labels...)

	for _, row := range rows {
		cells := make([]string, len(headers))
		for i, h := range headers {
			cells[i] = row[h]
		}
		t.Row(cells...)
	}

	return t.Render()
}

// CandidatesTable renders prepared candidates as date, description, amount and fingerprint columns.
func CandidatesTable(candidates []models.CandidateTransaction) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "Date", "Description", "Amount", "Fingerprint")

	for i, c := range candidates {
		t.Row(strconv.Itoa(i+1), c.OccurredOn, c.Description, normalize.FormatCents(c.AmountCents, c.CurrencyCode), c.Fingerprint)
	}

	return t.Render()
}

// WriteImportManifest writes a JSON summary of a bulk import to path.
func WriteImportManifest(result *tasks.BulkImportResult, path string) error {
	data, err := shared.MarshalJSON(result, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
