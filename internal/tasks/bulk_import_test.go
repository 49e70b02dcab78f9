package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/finport/internal/mapping"
	"github.com/desertthunder/finport/internal/shared"
	tu "github.com/desertthunder/finport/internal/testing"
)

func TestBulkImport(t *testing.T) {
	ctx := context.Background()

	t.Run("One Job Per File", func(t *testing.T) {
		paths := []string{
			tu.WriteStatement(t, "checking.csv", tu.StatementCSV(30, "Date", "Description", "Amount")),
			tu.WriteStatement(t, "card.csv", tu.StatementCSV(12, "Posted Date", "Merchant", "Amt")),
			tu.WriteStatement(t, "empty.csv", ""),
		}

		store := tu.NewMemoryStore()
		engine := NewImportEngine(store, store, EngineOptions{})
		progress := make(chan ProgressUpdate, 16)

		result, err := engine.BulkImport(ctx, progress, paths, BulkImportOpts{UserID: "user-1", NumWorkers: 2})
		if err != nil {
			t.Fatalf("BulkImport() error = %v", err)
		}

		if result.TotalFiles != 3 || result.Succeeded != 2 || result.Failed != 1 {
			t.Errorf("unexpected totals: %+v", result)
		}
		if store.JobCount() != 2 {
			t.Errorf("expected 2 jobs, got %d", store.JobCount())
		}

		for _, res := range result.Results {
			if res.Source == "empty.csv" {
				if !errors.Is(res.Error, shared.ErrNoHeaders) || res.Status != "skipped" {
					t.Errorf("empty.csv result = %+v", res)
				}
				continue
			}
			if res.Status != "done" || res.JobID == "" {
				t.Errorf("%s result = %+v", res.Source, res)
			}
		}

		if n := len(drain(progress)); n != 3 {
			t.Errorf("expected one progress update per file, got %d", n)
		}
	})

	t.Run("Explicit Mapping Wins", func(t *testing.T) {
		path := tu.WriteStatement(t, "ambiguous.csv", "Date,Name,Memo,Amount\n2024-01-05,Acme,Coffee,-4.50\n")

		store := tu.NewMemoryStore()
		engine := NewImportEngine(store, store, EngineOptions{})
		opts := BulkImportOpts{UserID: "user-1", Mapping: mapping.ColumnMapping{Description: "Memo"}}

		if _, err := engine.BulkImport(ctx, nil, []string{path}, opts); err != nil {
			t.Fatalf("BulkImport() error = %v", err)
		}

		txns := store.Transactions("user-1")
		if len(txns) != 1 || txns[0].Description != "Coffee" {
			t.Errorf("expected description from Memo, got %+v", txns)
		}
	})

	t.Run("Requires User", func(t *testing.T) {
		store := tu.NewMemoryStore()
		engine := NewImportEngine(store, store, EngineOptions{})
		if _, err := engine.BulkImport(ctx, nil, nil, BulkImportOpts{}); !errors.Is(err, shared.ErrMissingUser) {
			t.Errorf("BulkImport() error = %v, want ErrMissingUser", err)
		}
	})
}
