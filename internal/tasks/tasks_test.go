package tasks

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/finport/internal/mapping"
	"github.com/desertthunder/finport/internal/models"
	"github.com/desertthunder/finport/internal/shared"
	"github.com/desertthunder/finport/internal/statement"
	tu "github.com/desertthunder/finport/internal/testing"
)

var defaultMapping = mapping.ColumnMapping{Date: "Date", Description: "Description", Amount: "Amount"}

func buildRequest(t *testing.T, rows int) ImportRequest {
	t.Helper()
	stmt, err := statement.Parse(strings.NewReader(tu.StatementCSV(rows, "Date", "Description", "Amount")))
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}
	return NewImportRequest("user-1", "statement.csv", stmt, defaultMapping)
}

func drain(progress chan ProgressUpdate) []ProgressUpdate {
	var updates []ProgressUpdate
	for {
		select {
		case u := <-progress:
			updates = append(updates, u)
		default:
			return updates
		}
	}
}

func TestImportEngineRun(t *testing.T) {
	ctx := context.Background()

	t.Run("Imports In Ordered Batches", func(t *testing.T) {
		store := tu.NewMemoryStore()
		engine := NewImportEngine(store, store, EngineOptions{})
		progress := make(chan ProgressUpdate, 32)

		result, err := engine.Run(ctx, progress, buildRequest(t, 1200))
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if result.Job == nil || result.Job.RowCount() != 1200 {
			t.Fatalf("expected job with row_count 1200, got %+v", result.Job)
		}
		if result.Batches != 3 || result.BatchesWritten != 3 {
			t.Errorf("expected 3 batches written, got %d/%d", result.BatchesWritten, result.Batches)
		}

		want := []int{500, 500, 200}
		if len(store.BatchSizes) != len(want) {
			t.Fatalf("BatchSizes = %v, want %v", store.BatchSizes, want)
		}
		for i, n := range want {
			if store.BatchSizes[i] != n {
				t.Errorf("batch %d size = %d, want %d", i+1, store.BatchSizes[i], n)
			}
		}

		stored := store.Job(result.Job.ID())
		if stored.Status() != models.StatusDone || stored.FinishedAt() == nil {
			t.Errorf("stored job status = %s, finished = %v", stored.Status(), stored.FinishedAt())
		}
		if result.Job.Status() != models.StatusDone {
			t.Errorf("returned job status = %s, want done", result.Job.Status())
		}

		if got := len(store.Transactions("user-1")); got != 1200 {
			t.Errorf("expected 1200 stored transactions, got %d", got)
		}

		var messages []string
		for _, u := range drain(progress) {
			messages = append(messages, u.Message)
		}
		joined := strings.Join(messages, "\n")
		for _, want := range []string{
			"Creating import record…",
			"Uploading transactions… (1/3)",
			"Uploading transactions… (2/3)",
			"Uploading transactions… (3/3)",
			"Finalizing import…",
		} {
			if !strings.Contains(joined, want) {
				t.Errorf("progress missing %q in:\n%s", want, joined)
			}
		}
		if strings.Index(joined, "(1/3)") > strings.Index(joined, "(2/3)") {
			t.Error("batch progress should be monotonic")
		}
	})

	t.Run("Stops On Failed Batch", func(t *testing.T) {
		store := tu.NewMemoryStore()
		store.FailOnBatch = 2
		engine := NewImportEngine(store, store, EngineOptions{})

		result, err := engine.Run(ctx, nil, buildRequest(t, 1200))
		if !errors.Is(err, shared.ErrImportFailed) || !errors.Is(err, tu.ErrInjected) {
			t.Fatalf("Run() error = %v, want ErrImportFailed wrapping ErrInjected", err)
		}

		if len(store.BatchSizes) != 2 {
			t.Errorf("expected no batch after the failure, got calls %v", store.BatchSizes)
		}
		if result.BatchesWritten != 1 {
			t.Errorf("BatchesWritten = %d, want 1", result.BatchesWritten)
		}
		if got := len(store.Transactions("user-1")); got != 500 {
			t.Errorf("expected the first 500 rows persisted, got %d", got)
		}

		stored := store.Job(result.Job.ID())
		if stored.Status() != models.StatusFailed {
			t.Fatalf("job status = %s, want failed", stored.Status())
		}
		if !strings.Contains(stored.ErrorMessage(), "injected store failure") {
			t.Errorf("job error = %q, want store message", stored.ErrorMessage())
		}
		if stored.FinishedAt() == nil {
			t.Error("failed job should record a finish time")
		}
	})

	t.Run("Retry After Failure Is Idempotent", func(t *testing.T) {
		store := tu.NewMemoryStore()
		store.FailOnBatch = 2
		engine := NewImportEngine(store, store, EngineOptions{})
		req := buildRequest(t, 1200)

		if _, err := engine.Run(ctx, nil, req); err == nil {
			t.Fatal("expected first run to fail")
		}

		store.FailOnBatch = 0
		result, err := engine.Run(ctx, nil, req)
		if err != nil {
			t.Fatalf("retry error = %v", err)
		}
		if result.Job.Status() != models.StatusDone {
			t.Errorf("retry job status = %s", result.Job.Status())
		}
		if got := len(store.Transactions("user-1")); got != 1200 {
			t.Errorf("expected 1200 transactions after retry, got %d", got)
		}

		if _, err := engine.Run(ctx, nil, req); err != nil {
			t.Fatalf("third run error = %v", err)
		}
		if got := len(store.Transactions("user-1")); got != 1200 {
			t.Errorf("re-import should not duplicate rows, got %d", got)
		}
		if store.JobCount() != 3 {
			t.Errorf("expected one job per attempt, got %d", store.JobCount())
		}
	})

	t.Run("Drops Invalid Rows", func(t *testing.T) {
		input := "Date,Description,Amount\n" +
			"2024-01-05,Coffee,-4.50\n" +
			"1/6/2024,  ,-1.00\n" +
			"not a date,Lunch,-12.00\n" +
			"01/07/2024,Payroll,\"2,500.00\"\n"
		stmt, err := statement.Parse(strings.NewReader(input))
		if err != nil {
			t.Fatalf("failed to parse fixture: %v", err)
		}

		store := tu.NewMemoryStore()
		engine := NewImportEngine(store, store, EngineOptions{})
		result, err := engine.Run(ctx, nil, NewImportRequest("user-1", "", stmt, defaultMapping))
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if result.Job.RowCount() != 2 || result.RawRows != 4 {
			t.Errorf("row_count = %d (raw %d), want 2 (raw 4)", result.Job.RowCount(), result.RawRows)
		}
		if len(result.Dropped) != 2 {
			t.Errorf("expected 2 dropped rows, got %v", result.Dropped)
		}
		if result.Job.SourceLabel() != DefaultSourceLabel {
			t.Errorf("source label = %q, want default", result.Job.SourceLabel())
		}
	})

	t.Run("Refuses Without User", func(t *testing.T) {
		store := tu.NewMemoryStore()
		engine := NewImportEngine(store, store, EngineOptions{})
		req := buildRequest(t, 3)
		req.UserID = "  "

		if _, err := engine.Run(ctx, nil, req); !errors.Is(err, shared.ErrMissingUser) {
			t.Errorf("Run() error = %v, want ErrMissingUser", err)
		}
		if store.JobCount() != 0 {
			t.Error("no job should be created without a user")
		}
	})

	t.Run("Refuses Invalid Mapping", func(t *testing.T) {
		tests := []struct {
			name    string
			mapping mapping.ColumnMapping
			wantErr error
		}{
			{name: "incomplete", mapping: mapping.ColumnMapping{Date: "Date", Amount: "Amount"}, wantErr: shared.ErrIncompleteMapping},
			{name: "duplicate", mapping: mapping.ColumnMapping{Date: "Date", Description: "Date", Amount: "Amount"}, wantErr: shared.ErrDuplicateColumn},
			{name: "unknown", mapping: mapping.ColumnMapping{Date: "Date", Description: "Memo", Amount: "Amount"}, wantErr: shared.ErrUnknownColumn},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				store := tu.NewMemoryStore()
				engine := NewImportEngine(store, store, EngineOptions{})
				req := buildRequest(t, 3)
				req.Mapping = tt.mapping

				if _, err := engine.Run(ctx, nil, req); !errors.Is(err, tt.wantErr) {
					t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
				}
				if store.JobCount() != 0 {
					t.Error("no job should be created for an invalid mapping")
				}
			})
		}
	})

	t.Run("Refuses Empty Candidate Set", func(t *testing.T) {
		stmt, _ := statement.Parse(strings.NewReader("Date,Description,Amount\nbad,x,1\n"))
		store := tu.NewMemoryStore()
		engine := NewImportEngine(store, store, EngineOptions{})

		result, err := engine.Run(ctx, nil, NewImportRequest("user-1", "x.csv", stmt, defaultMapping))
		if !errors.Is(err, shared.ErrNoCandidates) {
			t.Errorf("Run() error = %v, want ErrNoCandidates", err)
		}
		if result.Job != nil || store.JobCount() != 0 {
			t.Error("no job should be created without candidates")
		}
	})

	t.Run("Create Failure", func(t *testing.T) {
		store := tu.NewMemoryStore()
		store.FailCreate = true
		engine := NewImportEngine(store, store, EngineOptions{})

		result, err := engine.Run(ctx, nil, buildRequest(t, 3))
		if !errors.Is(err, shared.ErrImportFailed) {
			t.Errorf("Run() error = %v, want ErrImportFailed", err)
		}
		if result.Job != nil || len(store.BatchSizes) != 0 {
			t.Error("nothing should be written when the job cannot be created")
		}
	})

	t.Run("Finalize Failure Marks Job Failed", func(t *testing.T) {
		store := tu.NewMemoryStore()
		store.FailUpdates = 1
		engine := NewImportEngine(store, store, EngineOptions{})

		result, err := engine.Run(ctx, nil, buildRequest(t, 3))
		if !errors.Is(err, shared.ErrImportFailed) || !errors.Is(err, tu.ErrInjected) {
			t.Fatalf("Run() error = %v, want ErrImportFailed wrapping ErrInjected", err)
		}
		if result.BatchesWritten != result.Batches {
			t.Errorf("expected every batch written before finalize, got %d/%d", result.BatchesWritten, result.Batches)
		}
		if store.UpdateCalls != 2 {
			t.Errorf("UpdateStatus calls = %d, want 2 (done, then failed)", store.UpdateCalls)
		}

		stored := store.Job(result.Job.ID())
		if stored.Status() != models.StatusFailed {
			t.Fatalf("stored status = %s, want failed", stored.Status())
		}
		if !strings.Contains(stored.ErrorMessage(), "finalize") || !strings.Contains(stored.ErrorMessage(), tu.ErrInjected.Error()) {
			t.Errorf("stored error message = %q, want the finalize error", stored.ErrorMessage())
		}
		if stored.FinishedAt() == nil {
			t.Error("expected finished_at on the failed job")
		}
		if result.Job.Status() != models.StatusFailed {
			t.Errorf("returned job status = %s, want failed", result.Job.Status())
		}
	})

	t.Run("Finalize Failure Left Parsing When Store Stays Down", func(t *testing.T) {
		store := tu.NewMemoryStore()
		store.FailUpdate = true
		engine := NewImportEngine(store, store, EngineOptions{})

		result, err := engine.Run(ctx, nil, buildRequest(t, 3))
		if !errors.Is(err, shared.ErrImportFailed) || !errors.Is(err, tu.ErrInjected) {
			t.Fatalf("Run() error = %v, want ErrImportFailed wrapping ErrInjected", err)
		}
		if store.UpdateCalls != 2 {
			t.Errorf("UpdateStatus calls = %d, want 2", store.UpdateCalls)
		}
		if stored := store.Job(result.Job.ID()); stored.Status() != models.StatusParsing {
			t.Errorf("stored status = %s, want parsing until swept", stored.Status())
		}
	})

	t.Run("Cancellation Marks Job Failed", func(t *testing.T) {
		store := tu.NewMemoryStore()
		cctx, cancel := context.WithCancel(ctx)
		defer cancel()
		store.OnBatch = func(n int) {
			if n == 1 {
				cancel()
			}
		}
		engine := NewImportEngine(store, store, EngineOptions{})

		result, err := engine.Run(cctx, nil, buildRequest(t, 1200))
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() error = %v, want context.Canceled", err)
		}

		stored := store.Job(result.Job.ID())
		if stored.Status() != models.StatusFailed {
			t.Errorf("cancelled job status = %s, want failed", stored.Status())
		}
		if got := len(store.Transactions("user-1")); got != 500 {
			t.Errorf("expected only the first batch persisted, got %d", got)
		}
	})

	t.Run("Custom Batch Size And Throttle", func(t *testing.T) {
		store := tu.NewMemoryStore()
		engine := NewImportEngine(store, store, EngineOptions{BatchSize: 4, BatchesPerSecond: 1000, Currency: "EUR"})

		if _, err := engine.Run(ctx, nil, buildRequest(t, 10)); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if len(store.BatchSizes) != 3 {
			t.Errorf("expected 3 batches of at most 4, got %v", store.BatchSizes)
		}
		for _, txn := range store.Transactions("user-1") {
			if txn.CurrencyCode != "EUR" {
				t.Fatalf("currency = %q, want EUR", txn.CurrencyCode)
			}
		}
	})
}

func TestImportEnginePreview(t *testing.T) {
	store := tu.NewMemoryStore()
	engine := NewImportEngine(store, store, EngineOptions{})

	prepared, err := engine.Preview(buildRequest(t, 5))
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if len(prepared.Candidates) != 5 {
		t.Errorf("expected 5 candidates, got %d", len(prepared.Candidates))
	}
	if store.JobCount() != 0 || len(store.BatchSizes) != 0 {
		t.Error("Preview() must not write")
	}
}

func TestSweepStale(t *testing.T) {
	ctx := context.Background()
	store := tu.NewMemoryStore()

	old := models.NewImportJob("user-1", "old.csv", 10)
	_ = old.Start(time.Now().Add(-2 * time.Hour))
	store.SeedJob(old)

	fresh := models.NewImportJob("user-1", "fresh.csv", 10)
	_ = fresh.Start(time.Now())
	store.SeedJob(fresh)

	done := models.NewImportJob("user-1", "done.csv", 10)
	_ = done.Start(time.Now().Add(-3 * time.Hour))
	_ = done.Finish(time.Now().Add(-3 * time.Hour))
	store.SeedJob(done)

	other := models.NewImportJob("user-2", "other.csv", 10)
	_ = other.Start(time.Now().Add(-2 * time.Hour))
	store.SeedJob(other)

	engine := NewImportEngine(store, store, EngineOptions{})
	swept, err := engine.SweepStale(ctx, nil, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("SweepStale() error = %v", err)
	}

	if len(swept) != 1 || swept[0].ID() != old.ID() {
		t.Fatalf("expected only the old job swept, got %d", len(swept))
	}
	if got := store.Job(old.ID()); got.Status() != models.StatusFailed || got.ErrorMessage() != AbandonedMessage {
		t.Errorf("swept job status = %s, error = %q", got.Status(), got.ErrorMessage())
	}
	if got := store.Job(fresh.ID()); got.Status() != models.StatusParsing {
		t.Errorf("fresh job status = %s, want parsing", got.Status())
	}
	if got := store.Job(other.ID()); got.Status() != models.StatusParsing {
		t.Errorf("other user's job status = %s, want parsing", got.Status())
	}

	all, err := engine.SweepStale(ctx, nil, "", time.Hour)
	if err != nil {
		t.Fatalf("SweepStale() error = %v", err)
	}
	if len(all) != 1 || all[0].ID() != other.ID() {
		t.Errorf("expected the other user's job swept, got %d", len(all))
	}
}
