package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/finport/internal/formatter"
	"github.com/desertthunder/finport/internal/mapping"
	"github.com/desertthunder/finport/internal/shared"
	"github.com/desertthunder/finport/internal/statement"
	"github.com/desertthunder/finport/internal/tasks"
)

// ImportSummary is the --json output of a single-file import.
type ImportSummary struct {
	File           string                `json:"file"`
	Mapping        mapping.ColumnMapping `json:"mapping"`
	Job            *formatter.JobJSON    `json:"job,omitempty"`
	RawRows        int                   `json:"raw_rows"`
	Candidates     int                   `json:"candidates"`
	Dropped        []tasks.DroppedRow    `json:"dropped,omitempty"`
	Batches        int                   `json:"batches"`
	BatchesWritten int                   `json:"batches_written"`
	DryRun         bool                  `json:"dry_run,omitempty"`
	Error          string                `json:"error,omitempty"`
}

// Import parses, maps and imports the statement files given as arguments.
//
// A single file runs in the foreground with progress lines. Several files run through
// [tasks.ImportEngine.BulkImport], one job per file.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("%w: at least one CSV file is required", shared.ErrMissingArgument)
	}

	userID, err := r.userID(ctx, cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("dry-run") {
		for _, path := range paths {
			if err := r.dryRun(cmd, path, userID); err != nil {
				return err
			}
		}
		return nil
	}

	if err := r.open(); err != nil {
		return err
	}

	if len(paths) > 1 {
		if workers := cmd.Int("workers"); workers < 1 || workers > 4 {
			return fmt.Errorf("%w: --workers must be between 1 and 4, got %d", shared.ErrInvalidFlag, workers)
		}
		return r.bulkImport(ctx, cmd, paths, userID)
	}
	return r.importOne(ctx, cmd, paths[0], userID)
}

// loadStatement parses path and merges the explicit mapping flags over the header guess.
func loadStatement(cmd *cli.Command, path string) (*statement.Statement, mapping.ColumnMapping, error) {
	stmt, err := statement.ParseFile(path)
	if err != nil {
		return nil, mapping.ColumnMapping{}, err
	}
	return stmt, explicitMapping(cmd).Merge(mapping.Guess(stmt.Headers)), nil
}

func sourceLabel(cmd *cli.Command, path string) string {
	if s := cmd.String("source"); s != "" {
		return s
	}
	return filepath.Base(path)
}

// dryRun prepares candidates with a throwaway engine and prints what would be written.
func (r *Runner) dryRun(cmd *cli.Command, path, userID string) error {
	stmt, m, err := loadStatement(cmd, path)
	if err != nil {
		return err
	}

	engine := tasks.NewImportEngine(nil, nil, tasks.EngineOptions{
		BatchSize: r.config.Import.BatchSize,
		Currency:  r.config.Import.Currency,
		Logger:    r.logger,
	})
	prepared, err := engine.Preview(tasks.NewImportRequest(userID, sourceLabel(cmd, path), stmt, m))
	if err != nil {
		return err
	}

	batches := len(tasks.Chunk(prepared.Candidates, engine.BatchSize()))
	if cmd.Bool("json") {
		return r.writeJSON(ImportSummary{
			File:       path,
			Mapping:    m,
			RawRows:    len(stmt.Rows),
			Candidates: len(prepared.Candidates),
			Dropped:    prepared.Dropped,
			Batches:    batches,
			DryRun:     true,
		}, true)
	}

	r.writePlainHeader(fmt.Sprintf("Dry run: %s", path))
	r.writePlain("Mapping: %s\n", m)
	r.writePlain("Rows: %d  Candidates: %d  Skipped: %d  Batches: %d\n\n", len(stmt.Rows), len(prepared.Candidates), len(prepared.Dropped), batches)
	sample := prepared.Candidates[:min(statement.PreviewSize, len(prepared.Candidates))]
	r.writePlain("%s\n", formatter.CandidatesTable(sample))
	r.writeDropped(prepared.Dropped)
	return nil
}

func (r *Runner) writeDropped(dropped []tasks.DroppedRow) {
	if len(dropped) == 0 {
		return
	}
	r.writePlain("\nSkipped %d rows:\n", len(dropped))
	for _, d := range dropped[:min(10, len(dropped))] {
		r.writePlain("  row %d: %s\n", d.Index+1, d.Reason)
	}
	if len(dropped) > 10 {
		r.writePlain("  ... and %d more\n", len(dropped)-10)
	}
}

// watchProgress prints updates until the channel closes. Wait on the returned group before writing a summary.
func (r *Runner) watchProgress(progressCh <-chan tasks.ProgressUpdate) *sync.WaitGroup {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progressCh {
			switch update.Phase {
			case tasks.PrepareRows, tasks.CreateJob, tasks.Finalize:
				r.writePlain("%s\n", update.Message)
			case tasks.UploadBatches, tasks.SweepJobs:
				r.writePlain("  %s\n", update.Message)
			case tasks.Failed:
				r.writePlain("✗ %s\n", update.Message)
			case tasks.ImportFile:
				r.writePlain("[%d/%d] %s\n", update.Step, update.Total, update.Message)
			}
		}
	}()
	return &wg
}

func (r *Runner) importOne(ctx context.Context, cmd *cli.Command, path, userID string) error {
	stmt, m, err := loadStatement(cmd, path)
	if err != nil {
		return err
	}
	req := tasks.NewImportRequest(userID, sourceLabel(cmd, path), stmt, m)
	asJSON := cmd.Bool("json")

	var progressCh chan tasks.ProgressUpdate
	var wg *sync.WaitGroup
	if !asJSON {
		r.writePlain("Importing %s (%s)\n", path, m)
		progressCh = make(chan tasks.ProgressUpdate, 64)
		wg = r.watchProgress(progressCh)
	}

	result, runErr := r.engine.Run(ctx, progressCh, req)
	if progressCh != nil {
		close(progressCh)
		wg.Wait()
	}

	if asJSON {
		summary := ImportSummary{
			File:           path,
			Mapping:        m,
			RawRows:        result.RawRows,
			Candidates:     result.Candidates,
			Dropped:        result.Dropped,
			Batches:        result.Batches,
			BatchesWritten: result.BatchesWritten,
		}
		if result.Job != nil {
			job := formatter.ToJobJSON(result.Job)
			summary.Job = &job
		}
		if runErr != nil {
			summary.Error = runErr.Error()
		}
		if err := r.writeJSON(summary, true); err != nil {
			return err
		}
		return runErr
	}

	if runErr != nil {
		if result.Job != nil {
			r.writePlainln("%s", formatter.JobLine(result.Job))
			r.writePlain("Batches written: %d/%d. Re-running the same file is safe.\n", result.BatchesWritten, result.Batches)
		}
		r.writeDropped(result.Dropped)
		return runErr
	}

	r.writePlainln("")
	r.writePlainHeader("Import Complete!")
	r.writePlain("%s\n", formatter.JobLine(result.Job))
	r.writePlain("Transactions: %d of %d rows in %d batches\n", result.Candidates, result.RawRows, result.Batches)
	r.writeDropped(result.Dropped)
	return nil
}

func (r *Runner) bulkImport(ctx context.Context, cmd *cli.Command, paths []string, userID string) error {
	asJSON := cmd.Bool("json")

	var progressCh chan tasks.ProgressUpdate
	var wg *sync.WaitGroup
	if !asJSON {
		progressCh = make(chan tasks.ProgressUpdate, len(paths))
		wg = r.watchProgress(progressCh)
	}

	result, err := r.engine.BulkImport(ctx, progressCh, paths, tasks.BulkImportOpts{
		UserID:     userID,
		Mapping:    explicitMapping(cmd),
		NumWorkers: int(cmd.Int("workers")),
	})
	if progressCh != nil {
		close(progressCh)
		wg.Wait()
	}
	if result == nil {
		return err
	}

	if manifest := cmd.String("manifest"); manifest != "" {
		if werr := formatter.WriteImportManifest(result, manifest); werr != nil {
			return werr
		}
		r.logger.Info("manifest written", "path", manifest)
	}

	if asJSON {
		if werr := r.writeJSON(result, true); werr != nil {
			return werr
		}
	} else {
		r.writePlainln("")
		r.writePlainHeader("Bulk Import Complete!")
		for _, res := range result.Results {
			r.writePlain("  %s\n", res.Summary())
		}
		r.writePlain("Succeeded: %d  Failed: %d  Total: %d\n", result.Succeeded, result.Failed, result.TotalFiles)
	}

	if err != nil {
		return err
	}
	if result.Failed > 0 {
		return fmt.Errorf("%w: %d of %d files failed", shared.ErrImportFailed, result.Failed, result.TotalFiles)
	}
	return nil
}

// Preview prints the headers, guessed mapping and first rows of a statement without importing.
func (r *Runner) Preview(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("%w: CSV file is required", shared.ErrMissingArgument)
	}
	if cmd.Int("rows") <= 0 {
		return fmt.Errorf("%w: --rows must be positive", shared.ErrInvalidFlag)
	}

	stmt, m, err := loadStatement(cmd, path)
	if err != nil {
		return err
	}

	r.writePlainHeader(fmt.Sprintf("Preview: %s", path))
	r.writePlain("Headers: %d  Rows: %d\n", len(stmt.Headers), len(stmt.Rows))
	for _, f := range mapping.Fields {
		col := m.Get(f)
		if col == "" {
			col = "(unset)"
		}
		r.writePlain("  %-12s %s\n", f.String()+":", col)
	}
	r.writePlain("\n%s\n", formatter.PreviewTable(stmt.Headers, stmt.Preview(int(cmd.Int("rows"))), m))

	if err := m.Validate(stmt.Headers); err != nil {
		if errors.Is(err, shared.ErrIncompleteMapping) {
			r.writePlain("\nPick the missing columns with --date, --description or --amount.\n")
		}
		r.writePlain("Mapping is not usable yet: %v\n", err)
		return nil
	}

	prepared := tasks.Prepare(stmt.Rows, m, "preview", r.config.Import.Currency)
	r.writePlain("\n%d of %d rows would be imported.\n", len(prepared.Candidates), len(stmt.Rows))
	r.writeDropped(prepared.Dropped)
	return nil
}
