package tasks

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/desertthunder/finport/internal/mapping"
	"github.com/desertthunder/finport/internal/shared"
	"github.com/desertthunder/finport/internal/statement"
)

// BulkImportOpts contains configuration for importing several statements at once.
type BulkImportOpts struct {
	UserID     string
	Mapping    mapping.ColumnMapping // explicit selections, merged over each file's guessed mapping
	NumWorkers int                   // Concurrent imports (default: 1, max: 4)
}

// FileImportResult is the outcome of importing one statement file.
type FileImportResult struct {
	Path   string        `json:"path"`
	Source string        `json:"source"`
	Result *ImportResult `json:"-"`
	JobID  string        `json:"job_id,omitempty"`
	Status string        `json:"status"`
	Error  error         `json:"-"`
	ErrMsg string        `json:"error,omitempty"`
}

// BulkImportResult aggregates a [ImportEngine.BulkImport] run.
type BulkImportResult struct {
	TotalFiles int                `json:"total_files"`
	Succeeded  int                `json:"succeeded"`
	Failed     int                `json:"failed"`
	Results    []FileImportResult `json:"results"`
}

// BulkImport imports each file as its own session using a worker pool.
//
// Each file gets its own job, so one bad statement does not stop the others.
// Per-file progress is reported as [ImportFile] updates in completion order.
func (e *ImportEngine) BulkImport(ctx context.Context, prog chan<- ProgressUpdate, paths []string, opts BulkImportOpts) (*BulkImportResult, error) {
	if opts.UserID == "" {
		return nil, shared.ErrMissingUser
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	if opts.NumWorkers > 4 {
		opts.NumWorkers = 4
	}

	result := &BulkImportResult{
		TotalFiles: len(paths),
		Results:    make([]FileImportResult, 0, len(paths)),
	}

	files := make(chan string, len(paths))
	results := make(chan FileImportResult, len(paths))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.importWorker(ctx, &wg, files, results, opts)
	}

	for _, path := range paths {
		files <- path
	}
	close(files)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)
		if res.Error != nil {
			result.Failed++
		} else {
			result.Succeeded++
		}
		e.sendProgress(prog, importFileUpdate(completed, len(paths), res))
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// importWorker imports files from the channel until it closes or ctx is done.
func (e *ImportEngine) importWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	files <-chan string,
	results chan<- FileImportResult,
	opts BulkImportOpts,
) {
	defer wg.Done()

	for path := range files {
		select {
		case <-ctx.Done():
			return
		default:
		}

		results <- e.importFile(ctx, path, opts)
	}
}

func (e *ImportEngine) importFile(ctx context.Context, path string, opts BulkImportOpts) FileImportResult {
	res := FileImportResult{Path: path, Source: filepath.Base(path)}

	stmt, err := statement.ParseFile(path)
	if err != nil {
		return res.withError(err)
	}

	m := opts.Mapping.Merge(mapping.Guess(stmt.Headers))
	run, err := e.Run(ctx, nil, NewImportRequest(opts.UserID, res.Source, stmt, m))
	res.Result = run
	if run != nil && run.Job != nil {
		res.JobID = run.Job.ID()
		res.Status = string(run.Job.Status())
	}
	if err != nil {
		return res.withError(err)
	}
	return res
}

func (r FileImportResult) withError(err error) FileImportResult {
	r.Error = err
	r.ErrMsg = err.Error()
	if r.Status == "" {
		r.Status = "skipped"
	}
	return r
}

// Summary renders a one-line outcome for the file.
func (r FileImportResult) Summary() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: %s (%v)", r.Source, r.Status, r.Error)
	}
	return fmt.Sprintf("%s: %s, %d transactions", r.Source, r.Status, r.Result.Candidates)
}
