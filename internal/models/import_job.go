package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/finport/internal/shared"
)

// JobStatus is the lifecycle state of an [ImportJob].
type JobStatus string

const (
	StatusPending JobStatus = "pending" // built in memory, not yet stored
	StatusParsing JobStatus = "parsing"
	StatusDone    JobStatus = "done"
	StatusFailed  JobStatus = "failed"
)

// ParseJobStatus validates a status string read from input or storage.
func ParseJobStatus(s string) (JobStatus, error) {
	switch status := JobStatus(strings.ToLower(strings.TrimSpace(s))); status {
	case StatusPending, StatusParsing, StatusDone, StatusFailed:
		return status, nil
	default:
		return "", fmt.Errorf("%w: unknown job status %q", shared.ErrInvalidInput, s)
	}
}

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// CanTransition reports whether s may move to next: pending → parsing → done | failed.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusParsing
	case StatusParsing:
		return next == StatusDone || next == StatusFailed
	default:
		return false
	}
}

// ImportJob tracks one import attempt.
//
// Status only moves forward. A job that stays in parsing past its stale
// threshold is considered abandoned, never in progress.
type ImportJob struct {
	id           string
	sequence     int
	userID       string
	sourceLabel  string
	status       JobStatus
	rowCount     int
	errorMessage string
	startedAt    time.Time
	finishedAt   *time.Time
	createdAt    time.Time
	updatedAt    time.Time
}

// NewImportJob creates a pending job for rowCount candidate rows.
func NewImportJob(userID, sourceLabel string, rowCount int) *ImportJob {
	now := time.Now()
	return &ImportJob{
		userID:      userID,
		sourceLabel: sourceLabel,
		status:      StatusPending,
		rowCount:    rowCount,
		createdAt:   now,
		updatedAt:   now,
	}
}

func (j *ImportJob) ID() string             { return j.id }
func (j *ImportJob) Sequence() int          { return j.sequence }
func (j *ImportJob) UserID() string         { return j.userID }
func (j *ImportJob) SourceLabel() string    { return j.sourceLabel }
func (j *ImportJob) Status() JobStatus      { return j.status }
func (j *ImportJob) RowCount() int          { return j.rowCount }
func (j *ImportJob) ErrorMessage() string   { return j.errorMessage }
func (j *ImportJob) StartedAt() time.Time   { return j.startedAt }
func (j *ImportJob) FinishedAt() *time.Time { return j.finishedAt }
func (j *ImportJob) CreatedAt() time.Time   { return j.createdAt }
func (j *ImportJob) UpdatedAt() time.Time   { return j.updatedAt }

func (j *ImportJob) SetID(id string)            { j.id = id }
func (j *ImportJob) SetSequence(seq int)        { j.sequence = seq }
func (j *ImportJob) SetUpdatedAt(t time.Time)   { j.updatedAt = t }
func (j *ImportJob) SetCreatedAt(t time.Time)   { j.createdAt = t }
func (j *ImportJob) SetStartedAt(t time.Time)   { j.startedAt = t }
func (j *ImportJob) SetFinishedAt(t *time.Time) { j.finishedAt = t }
func (j *ImportJob) SetErrorMessage(msg string) { j.errorMessage = msg }

// SetStatus assigns status without checking transitions. Used when loading from storage.
func (j *ImportJob) SetStatus(status JobStatus) { j.status = status }

// Transition moves the job to next, stamping timestamps.
// Entering parsing records the start time. Entering a terminal state records the finish time.
func (j *ImportJob) Transition(next JobStatus, at time.Time) error {
	if !j.status.CanTransition(next) {
		return fmt.Errorf("%w: %s → %s", shared.ErrInvalidTransition, j.status, next)
	}

	j.status = next
	j.updatedAt = at
	switch {
	case next == StatusParsing:
		j.startedAt = at
	case next.Terminal():
		j.finishedAt = &at
	}
	return nil
}

// Start moves a pending job to parsing.
func (j *ImportJob) Start(at time.Time) error {
	return j.Transition(StatusParsing, at)
}

// Finish marks the job done.
func (j *ImportJob) Finish(at time.Time) error {
	return j.Transition(StatusDone, at)
}

// Fail marks the job failed with msg.
func (j *ImportJob) Fail(msg string, at time.Time) error {
	if err := j.Transition(StatusFailed, at); err != nil {
		return err
	}
	j.errorMessage = msg
	return nil
}

// Validate checks required fields.
func (j *ImportJob) Validate() error {
	if j.userID == "" {
		return fmt.Errorf("%w: import job has no user", shared.ErrMissingUser)
	}
	if strings.TrimSpace(j.sourceLabel) == "" {
		return fmt.Errorf("%w: source label is required", shared.ErrInvalidInput)
	}
	if j.rowCount < 0 {
		return fmt.Errorf("%w: row count cannot be negative", shared.ErrInvalidInput)
	}
	if _, err := ParseJobStatus(string(j.status)); err != nil {
		return err
	}
	return nil
}

// Duration is how long the job ran, or ran so far when it has not finished.
func (j *ImportJob) Duration(now time.Time) time.Duration {
	if j.startedAt.IsZero() {
		return 0
	}
	if j.finishedAt != nil {
		return j.finishedAt.Sub(j.startedAt)
	}
	return now.Sub(j.startedAt)
}

// IsStale reports whether a parsing job started before cutoff.
func (j *ImportJob) IsStale(cutoff time.Time) bool {
	return j.status == StatusParsing && j.startedAt.Before(cutoff)
}
