package server

import (
	"fmt"
	"net/http"

	"github.com/desertthunder/finport/internal/identity"
	"github.com/desertthunder/finport/internal/shared"
	"github.com/desertthunder/finport/internal/tasks"
)

// ProgressEvent is the data of a "progress" server-sent event.
type ProgressEvent struct {
	Phase   string `json:"phase"`
	Step    int    `json:"step"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// streamImport runs an import like createImport but streams progress as server-sent events.
//
// Every update is sent as a "progress" event. The final event is "done" or "failed"
// and carries the same body createImport would return.
func (a *API) streamImport(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.FromContext(r.Context())

	stmt, ok := a.readStatement(w, r)
	if !ok {
		return
	}

	req := tasks.NewImportRequest(userID, r.URL.Query().Get("source"), stmt, mappingFromQuery(r, stmt.Headers))
	if _, err := a.engine.Preview(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan ImportResponse, 1)
	go func() {
		result, err := a.engine.Run(r.Context(), progress, req)
		resp := ImportResponse{
			RawRows:        result.RawRows,
			Candidates:     result.Candidates,
			Dropped:        result.Dropped,
			Batches:        result.Batches,
			BatchesWritten: result.BatchesWritten,
		}
		if result.Job != nil {
			job := toJobJSON(result)
			resp.Job = &job
		}
		if err != nil {
			resp.Error = err.Error()
		}
		done <- resp
		close(progress)
	}()

	for update := range progress {
		writeEvent(w, "progress", ProgressEvent{
			Phase:   update.Phase.String(),
			Step:    update.Step,
			Total:   update.Total,
			Message: update.Message,
		})
		_ = rc.Flush()
	}

	resp := <-done
	event := "done"
	if resp.Error != "" {
		event = "failed"
		a.logger.Warn("streamed import failed", "user_id", userID, "err", resp.Error)
	}
	writeEvent(w, event, resp)
	_ = rc.Flush()
}

func writeEvent(w http.ResponseWriter, event string, v any) {
	data, err := shared.MarshalJSON(v, false)
	if err != nil {
		data = []byte(fmt.Sprintf("%q", err.Error()))
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
