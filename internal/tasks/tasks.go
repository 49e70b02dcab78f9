package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/finport/internal/mapping"
	"github.com/desertthunder/finport/internal/models"
	"github.com/desertthunder/finport/internal/shared"
	"github.com/desertthunder/finport/internal/statement"
)

// Defaults applied by [NewImportEngine] for unset [EngineOptions].
const (
	DefaultBatchSize   = 500
	DefaultCurrency    = "USD"
	DefaultSourceLabel = "CSV Import"
)

// AbandonedMessage is the error recorded on jobs swept by [ImportEngine.SweepStale].
const AbandonedMessage = "abandoned"

// JobStore persists import jobs. Implemented by repositories.ImportJobRepository.
type JobStore interface {
	Create(ctx context.Context, job *models.ImportJob) error
	UpdateStatus(ctx context.Context, id, userID string, status models.JobStatus, errMsg string, finishedAt time.Time) error
	Stale(ctx context.Context, userID string, cutoff time.Time) ([]*models.ImportJob, error)
}

// TransactionStore upserts candidate transactions keyed by (user_id, fingerprint).
// Implemented by repositories.TransactionRepository.
type TransactionStore interface {
	UpsertBatch(ctx context.Context, importID string, batch []models.CandidateTransaction) error
}

// ImportRequest is one import session: a parsed statement, its confirmed mapping and the owning user.
type ImportRequest struct {
	UserID      string
	SourceLabel string
	Headers     []string
	Rows        []statement.RawRow
	Mapping     mapping.ColumnMapping
}

// NewImportRequest builds a request from a parsed statement.
func NewImportRequest(userID, source string, stmt *statement.Statement, m mapping.ColumnMapping) ImportRequest {
	return ImportRequest{
		UserID:      userID,
		SourceLabel: source,
		Headers:     stmt.Headers,
		Rows:        stmt.Rows,
		Mapping:     m,
	}
}

// ImportResult summarizes one [ImportEngine.Run].
type ImportResult struct {
	Job            *models.ImportJob // nil when the run stopped before a job was created
	RawRows        int
	Candidates     int
	Dropped        []DroppedRow
	Batches        int
	BatchesWritten int
}

// EngineOptions configures an [ImportEngine].
type EngineOptions struct {
	BatchSize        int
	Currency         string
	SourceLabel      string
	BatchesPerSecond float64 // zero disables throttling
	Logger           *log.Logger
}

// ImportEngine runs batch imports against a record store.
//
// One Run is one sequential session. The engine keeps no state between
// runs, so concurrent runs only share the store and its uniqueness constraint.
type ImportEngine struct {
	jobs        JobStore
	txns        TransactionStore
	batchSize   int
	currency    string
	sourceLabel string
	limiter     *rate.Limiter
	logger      *log.Logger
	now         func() time.Time
}

// NewImportEngine creates an ImportEngine over the given stores.
func NewImportEngine(jobs JobStore, txns TransactionStore, opts EngineOptions) *ImportEngine {
	e := &ImportEngine{
		jobs:        jobs,
		txns:        txns,
		batchSize:   opts.BatchSize,
		currency:    opts.Currency,
		sourceLabel: opts.SourceLabel,
		logger:      opts.Logger,
		now:         time.Now,
	}

	if e.batchSize <= 0 {
		e.batchSize = DefaultBatchSize
	}
	if e.currency == "" {
		e.currency = DefaultCurrency
	}
	if e.sourceLabel == "" {
		e.sourceLabel = DefaultSourceLabel
	}
	if e.logger == nil {
		e.logger = log.New(io.Discard)
	}
	if opts.BatchesPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(opts.BatchesPerSecond), 1)
	}

	return e
}

// Currency is the code stamped on prepared candidates.
func (e *ImportEngine) Currency() string { return e.currency }

// BatchSize is the number of candidates written per store call.
func (e *ImportEngine) BatchSize() int { return e.batchSize }

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *ImportEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Preview validates req and prepares its candidates without touching the store.
func (e *ImportEngine) Preview(req ImportRequest) (PrepareResult, error) {
	if err := e.validate(req); err != nil {
		return PrepareResult{}, err
	}
	return Prepare(req.Rows, req.Mapping, req.UserID, e.currency), nil
}

func (e *ImportEngine) validate(req ImportRequest) error {
	if strings.TrimSpace(req.UserID) == "" {
		return shared.ErrMissingUser
	}
	if len(req.Headers) == 0 {
		return shared.ErrNoHeaders
	}
	return req.Mapping.Validate(req.Headers)
}

// Run imports req: prepare candidates, create a parsing job, upsert batches in order, then finish the job.
//
// Validation failures and an empty candidate set return before any job exists.
// The first failed batch stops the run and marks the job failed with the store's
// message. Batches already written stay written, and rerunning the same
// statement is a safe retry because rows are keyed by fingerprint.
func (e *ImportEngine) Run(ctx context.Context, progress chan<- ProgressUpdate, req ImportRequest) (*ImportResult, error) {
	result := &ImportResult{RawRows: len(req.Rows)}

	if err := e.validate(req); err != nil {
		return result, err
	}

	prepared := Prepare(req.Rows, req.Mapping, req.UserID, e.currency)
	result.Candidates = len(prepared.Candidates)
	result.Dropped = prepared.Dropped
	e.sendProgress(progress, prepareRowsUpdate(len(req.Rows), prepared))

	if len(prepared.Candidates) == 0 {
		return result, fmt.Errorf("%w: %d rows, none usable", shared.ErrNoCandidates, len(req.Rows))
	}

	source := strings.TrimSpace(req.SourceLabel)
	if source == "" {
		source = e.sourceLabel
	}

	job := models.NewImportJob(req.UserID, source, len(prepared.Candidates))
	if err := job.Start(e.now()); err != nil {
		return result, err
	}

	e.sendProgress(progress, createJobUpdate())
	if err := e.jobs.Create(ctx, job); err != nil {
		e.logger.Error("failed to create import record", "source", source, "err", err)
		return result, fmt.Errorf("%w: create import record: %w", shared.ErrImportFailed, err)
	}
	result.Job = job

	logger := e.logger.With("job_id", job.ID(), "user_id", job.UserID())
	logger.Info("import started", "source", source, "rows", job.RowCount(), "dropped", len(prepared.Dropped))

	batches := Chunk(prepared.Candidates, e.batchSize)
	result.Batches = len(batches)

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return result, e.fail(ctx, progress, job, fmt.Errorf("cancelled before batch %d/%d: %w", i+1, len(batches), err))
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return result, e.fail(ctx, progress, job, fmt.Errorf("cancelled before batch %d/%d: %w", i+1, len(batches), err))
			}
		}

		e.sendProgress(progress, uploadBatchUpdate(i+1, len(batches)))
		if err := e.txns.UpsertBatch(ctx, job.ID(), batch); err != nil {
			logger.Error("batch failed", "batch", i+1, "of", len(batches), "err", err)
			return result, e.fail(ctx, progress, job, err)
		}
		result.BatchesWritten++
		logger.Debug("batch written", "batch", i+1, "of", len(batches), "size", len(batch))
	}

	e.sendProgress(progress, finalizeUpdate())
	finishedAt := e.now()
	if err := e.jobs.UpdateStatus(ctx, job.ID(), job.UserID(), models.StatusDone, "", finishedAt); err != nil {
		logger.Error("failed to finalize import", "err", err)
		return result, e.fail(ctx, progress, job, fmt.Errorf("finalize: %w", err))
	}
	if err := job.Finish(finishedAt); err != nil {
		return result, err
	}

	logger.Info("import done", "rows", job.RowCount(), "batches", len(batches), "took", job.Duration(finishedAt))
	e.sendProgress(progress, completeUpdate(job))
	return result, nil
}

// fail marks job failed with cause's message and returns the error for the caller.
// The status write ignores cancellation of ctx so an abandoned run still records its failure.
func (e *ImportEngine) fail(ctx context.Context, progress chan<- ProgressUpdate, job *models.ImportJob, cause error) error {
	msg := cause.Error()
	finishedAt := e.now()

	err := fmt.Errorf("%w: %w", shared.ErrImportFailed, cause)
	if updateErr := e.jobs.UpdateStatus(context.WithoutCancel(ctx), job.ID(), job.UserID(), models.StatusFailed, msg, finishedAt); updateErr != nil {
		e.logger.Error("failed to record import failure", "job_id", job.ID(), "err", updateErr)
		err = errors.Join(err, updateErr)
	} else {
		_ = job.Fail(msg, finishedAt)
	}

	e.sendProgress(progress, failedUpdate(job, cause))
	return err
}

// SweepStale marks a user's parsing jobs older than olderThan as failed with [AbandonedMessage].
// An empty userID sweeps every user. Jobs that finish concurrently are skipped.
func (e *ImportEngine) SweepStale(ctx context.Context, progress chan<- ProgressUpdate, userID string, olderThan time.Duration) ([]*models.ImportJob, error) {
	now := e.now()
	stale, err := e.jobs.Stale(ctx, userID, now.Add(-olderThan))
	if err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}

	swept := make([]*models.ImportJob, 0, len(stale))
	for i, job := range stale {
		err := e.jobs.UpdateStatus(ctx, job.ID(), job.UserID(), models.StatusFailed, AbandonedMessage, now)
		if errors.Is(err, shared.ErrInvalidTransition) {
			continue
		}
		if err != nil {
			return swept, fmt.Errorf("failed to sweep job %s: %w", job.ID(), err)
		}

		_ = job.Fail(AbandonedMessage, now)
		swept = append(swept, job)
		e.logger.Warn("swept abandoned import", "job_id", job.ID(), "started_at", job.StartedAt())
		e.sendProgress(progress, sweepJobUpdate(i+1, len(stale), job))
	}

	return swept, nil
}
