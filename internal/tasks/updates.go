package tasks

import (
	"fmt"

	"github.com/desertthunder/finport/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	PrepareRows Phase = iota
	CreateJob
	UploadBatches
	Finalize
	Complete
	Failed
	SweepJobs
	ImportFile
)

func (p Phase) String() string {
	switch p {
	case PrepareRows:
		return "prepare_rows"
	case CreateJob:
		return "create_job"
	case UploadBatches:
		return "upload_batches"
	case Finalize:
		return "finalize"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	case SweepJobs:
		return "sweep_jobs"
	case ImportFile:
		return "import_file"
	default:
		return ""
	}
}

// Terminal reports whether no further updates follow for this import.
func (p Phase) Terminal() bool {
	return p == Complete || p == Failed
}

func prepareRowsUpdate(rows int, result PrepareResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PrepareRows,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Prepared %d of %d rows", len(result.Candidates), rows),
		Data:    result.Dropped,
	}
}

func createJobUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreateJob,
		Step:    1,
		Total:   1,
		Message: "Creating import record…",
	}
}

func uploadBatchUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UploadBatches,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Uploading transactions… (%d/%d)", step, total),
	}
}

func finalizeUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   Finalize,
		Step:    1,
		Total:   1,
		Message: "Finalizing import…",
	}
}

func completeUpdate(job *models.ImportJob) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Imported %d transactions", job.RowCount()),
		Data:    job,
	}
}

func failedUpdate(job *models.ImportJob, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Failed,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Import failed: %v", err),
		Data:    job,
	}
}

func sweepJobUpdate(step, total int, job *models.ImportJob) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SweepJobs,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Marked import #%d (%s) as abandoned", job.Sequence(), job.SourceLabel()),
		Data:    job,
	}
}

func importFileUpdate(step, total int, res FileImportResult) ProgressUpdate {
	msg := fmt.Sprintf("Imported %s", res.Source)
	if res.Error != nil {
		msg = fmt.Sprintf("Failed %s: %v", res.Source, res.Error)
	}
	return ProgressUpdate{
		Phase:   ImportFile,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    res,
	}
}
