package models

import (
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/finport/internal/shared"
)

func TestImportJobLifecycle(t *testing.T) {
	t0 := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)

	t.Run("Done", func(t *testing.T) {
		job := NewImportJob("user-1", "statement.csv", 3)
		if job.Status() != StatusPending {
			t.Fatalf("new job status = %s, want pending", job.Status())
		}

		if err := job.Start(t0); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if !job.StartedAt().Equal(t0) {
			t.Errorf("StartedAt = %v, want %v", job.StartedAt(), t0)
		}

		if err := job.Finish(t0.Add(2 * time.Second)); err != nil {
			t.Fatalf("Finish() error = %v", err)
		}
		if job.FinishedAt() == nil || job.Duration(time.Now()) != 2*time.Second {
			t.Errorf("unexpected finish: %v", job.FinishedAt())
		}
	})

	t.Run("Failed", func(t *testing.T) {
		job := NewImportJob("user-1", "statement.csv", 3)
		_ = job.Start(t0)

		if err := job.Fail("disk full", t0); err != nil {
			t.Fatalf("Fail() error = %v", err)
		}
		if job.Status() != StatusFailed || job.ErrorMessage() != "disk full" {
			t.Errorf("status = %s, error = %q", job.Status(), job.ErrorMessage())
		}
	})

	t.Run("Terminal States Absorb", func(t *testing.T) {
		job := NewImportJob("user-1", "statement.csv", 3)
		_ = job.Start(t0)
		_ = job.Finish(t0)

		for _, next := range []JobStatus{StatusParsing, StatusFailed, StatusDone, StatusPending} {
			if err := job.Transition(next, t0); !errors.Is(err, shared.ErrInvalidTransition) {
				t.Errorf("done → %s error = %v, want ErrInvalidTransition", next, err)
			}
		}
		if err := job.Fail("late", t0); err == nil {
			t.Error("expected failing a done job to error")
		}
		if job.ErrorMessage() != "" {
			t.Errorf("rejected transition must not set error message, got %q", job.ErrorMessage())
		}
	})

	t.Run("Pending Cannot Finish", func(t *testing.T) {
		job := NewImportJob("user-1", "statement.csv", 3)
		if err := job.Finish(t0); !errors.Is(err, shared.ErrInvalidTransition) {
			t.Errorf("Finish() on pending error = %v", err)
		}
	})
}

func TestImportJobValidate(t *testing.T) {
	tests := []struct {
		name    string
		job     *ImportJob
		wantErr error
	}{
		{name: "valid", job: NewImportJob("u", "CSV Import", 1)},
		{name: "no user", job: NewImportJob("", "CSV Import", 1), wantErr: shared.ErrMissingUser},
		{name: "no source", job: NewImportJob("u", " ", 1), wantErr: shared.ErrInvalidInput},
		{name: "negative rows", job: NewImportJob("u", "CSV Import", -1), wantErr: shared.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if tt.wantErr == nil && err != nil {
				t.Errorf("Validate() unexpected error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestJobStatus(t *testing.T) {
	if _, err := ParseJobStatus("DONE"); err != nil {
		t.Errorf("ParseJobStatus(DONE) error = %v", err)
	}
	if _, err := ParseJobStatus("running"); !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("ParseJobStatus(running) error = %v", err)
	}

	job := NewImportJob("u", "CSV Import", 1)
	_ = job.Start(time.Now().Add(-2 * time.Hour))
	if !job.IsStale(time.Now().Add(-time.Hour)) {
		t.Error("job started two hours ago should be stale at a one hour cutoff")
	}
	if job.IsStale(time.Now().Add(-3 * time.Hour)) {
		t.Error("job should not be stale before its start")
	}
}
