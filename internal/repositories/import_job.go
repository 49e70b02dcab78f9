package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/finport/internal/models"
	"github.com/desertthunder/finport/internal/shared"
)

const importJobColumns = `
	id, sequence, user_id, source_label, status, row_count,
	error_message, started_at, finished_at, created_at, updated_at
`

// JobFilter narrows [ImportJobRepository.List].
type JobFilter struct {
	Status models.JobStatus
	Limit  int
}

// ImportJobRepository persists [models.ImportJob] records.
//
// Status updates only apply to jobs still in parsing, so terminal jobs never change.
type ImportJobRepository struct {
	db *sql.DB
}

// NewImportJobRepository creates a new ImportJobRepository with the given database connection
func NewImportJobRepository(db *sql.DB) *ImportJobRepository {
	return &ImportJobRepository{db: db}
}

// Create inserts a new import job with generated ID and sequence
func (r *ImportJobRepository) Create(ctx context.Context, job *models.ImportJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if job.Status() != models.StatusParsing {
		return fmt.Errorf("%w: jobs are stored once parsing has started, got %s", shared.ErrInvalidTransition, job.Status())
	}

	sequence, err := NextSequence(ctx, r.db, "import_jobs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	query := `
		INSERT INTO import_jobs (` + importJobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		id,
		sequence,
		job.UserID(),
		job.SourceLabel(),
		string(job.Status()),
		job.RowCount(),
		nullString(job.ErrorMessage()),
		job.StartedAt().UTC(),
		job.FinishedAt(),
		job.CreatedAt().UTC(),
		job.UpdatedAt().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert import job: %w", err)
	}

	job.SetID(id)
	job.SetSequence(sequence)
	return nil
}

// UpdateStatus moves a parsing job owned by userID to a terminal status.
//
// Returns [shared.ErrJobNotFound] when no such job exists for the user and
// [shared.ErrInvalidTransition] when the job already left parsing.
func (r *ImportJobRepository) UpdateStatus(ctx context.Context, id, userID string, status models.JobStatus, errMsg string, finishedAt time.Time) error {
	if !models.StatusParsing.CanTransition(status) {
		return fmt.Errorf("%w: cannot store %s for a running job", shared.ErrInvalidTransition, status)
	}

	query := `
		UPDATE import_jobs
		SET status = ?, error_message = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		string(status),
		nullString(errMsg),
		finishedAt.UTC(),
		time.Now().UTC(),
		id,
		userID,
		string(models.StatusParsing),
	)
	if err != nil {
		return fmt.Errorf("failed to update import job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows > 0 {
		return nil
	}

	current, err := r.Get(ctx, id, userID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s is already %s", shared.ErrInvalidTransition, id, current.Status())
}

// Get retrieves an import job by ID for the given user
func (r *ImportJobRepository) Get(ctx context.Context, id, userID string) (*models.ImportJob, error) {
	query := `SELECT ` + importJobColumns + ` FROM import_jobs WHERE id = ? AND user_id = ?`

	job, err := scanImportJob(r.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// List retrieves a user's import jobs, newest first
func (r *ImportJobRepository) List(ctx context.Context, userID string, filter JobFilter) ([]*models.ImportJob, error) {
	query := `SELECT ` + importJobColumns + ` FROM import_jobs WHERE user_id = ?`
	args := []any{userID}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}

	query += " ORDER BY sequence DESC LIMIT ?"
	args = append(args, limitOrDefault(filter.Limit))

	return r.query(ctx, query, args...)
}

// Stale lists jobs still parsing that started before cutoff. An empty userID matches every user.
func (r *ImportJobRepository) Stale(ctx context.Context, userID string, cutoff time.Time) ([]*models.ImportJob, error) {
	query := `SELECT ` + importJobColumns + ` FROM import_jobs WHERE status = ? AND started_at < ?`
	args := []any{string(models.StatusParsing), cutoff.UTC()}

	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY sequence"

	return r.query(ctx, query, args...)
}

// Delete removes a job. Transactions that reference it keep their rows.
func (r *ImportJobRepository) Delete(ctx context.Context, id, userID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM import_jobs WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete import job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	return nil
}

func (r *ImportJobRepository) query(ctx context.Context, query string, args ...any) ([]*models.ImportJob, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query import jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.ImportJob
	for rows.Next() {
		job, err := scanImportJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, nil
}

// scanImportJob scans one row into a [models.ImportJob]. [sql.ErrNoRows] is returned unwrapped.
func scanImportJob(row scanner) (*models.ImportJob, error) {
	var (
		id           string
		sequence     int
		userID       string
		sourceLabel  string
		status       string
		rowCount     int
		errorMessage sql.NullString
		startedAt    time.Time
		finishedAt   sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := row.Scan(
		&id, &sequence, &userID, &sourceLabel, &status, &rowCount,
		&errorMessage, &startedAt, &finishedAt, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan import job: %w", err)
	}

	jobStatus, err := models.ParseJobStatus(status)
	if err != nil {
		return nil, err
	}

	job := models.NewImportJob(userID, sourceLabel, rowCount)
	job.SetID(id)
	job.SetSequence(sequence)
	job.SetStatus(jobStatus)
	job.SetStartedAt(startedAt)
	job.SetCreatedAt(createdAt)
	job.SetUpdatedAt(updatedAt)
	if errorMessage.Valid {
		job.SetErrorMessage(errorMessage.String)
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		job.SetFinishedAt(&t)
	}

	return job, nil
}
