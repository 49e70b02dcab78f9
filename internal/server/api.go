package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/finport/internal/formatter"
	"github.com/desertthunder/finport/internal/identity"
	"github.com/desertthunder/finport/internal/mapping"
	"github.com/desertthunder/finport/internal/models"
	"github.com/desertthunder/finport/internal/repositories"
	"github.com/desertthunder/finport/internal/shared"
	"github.com/desertthunder/finport/internal/statement"
	"github.com/desertthunder/finport/internal/tasks"
)

// MaxStatementBytes caps the size of an uploaded statement.
const MaxStatementBytes = 10 << 20

// API serves statement previews, imports, jobs and transactions.
type API struct {
	engine     *tasks.ImportEngine
	jobs       *repositories.ImportJobRepository
	txns       *repositories.TransactionRepository
	staleAfter time.Duration
	logger     *log.Logger
}

// NewAPI creates the importer's HTTP handler group.
func NewAPI(engine *tasks.ImportEngine, jobs *repositories.ImportJobRepository, txns *repositories.TransactionRepository, staleAfter time.Duration, logger *log.Logger) *API {
	return &API{engine: engine, jobs: jobs, txns: txns, staleAfter: staleAfter, logger: logger}
}

// Routes implements [Handler]. Every route except /health requires a user.
func (a *API) Routes() []Route {
	user := func(h http.HandlerFunc) http.Handler { return RequireUser(h) }

	return []Route{
		{Method: http.MethodGet, Path: "/health", Handler: http.HandlerFunc(a.health)},
		{Method: http.MethodPost, Path: "/imports/preview", Handler: user(a.previewImport)},
		{Method: http.MethodPost, Path: "/imports/sweep", Handler: user(a.sweepImports)},
		{Method: http.MethodPost, Path: "/imports/stream", Handler: user(a.streamImport)},
		{Method: http.MethodPost, Path: "/imports", Handler: user(a.createImport)},
		{Method: http.MethodGet, Path: "/imports", Handler: user(a.listImports)},
		{Method: http.MethodGet, Path: "/imports/{id}", Handler: user(a.getImport)},
		{Method: http.MethodGet, Path: "/transactions", Handler: user(a.listTransactions)},
	}
}

// PreviewResponse is returned by POST /imports/preview.
type PreviewResponse struct {
	Headers    []string              `json:"headers"`
	Mapping    mapping.ColumnMapping `json:"mapping"`
	Missing    []string              `json:"missing,omitempty"`
	Rows       []statement.RawRow    `json:"rows"`
	RowCount   int                   `json:"row_count"`
	Candidates *int                  `json:"candidates,omitempty"`
	Dropped    []tasks.DroppedRow    `json:"dropped,omitempty"`
}

// ImportResponse is returned by POST /imports.
type ImportResponse struct {
	Job            *formatter.JobJSON `json:"job,omitempty"`
	RawRows        int                `json:"raw_rows"`
	Candidates     int                `json:"candidates"`
	Dropped        []tasks.DroppedRow `json:"dropped,omitempty"`
	Batches        int                `json:"batches"`
	BatchesWritten int                `json:"batches_written"`
	Error          string             `json:"error,omitempty"`
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) readStatement(w http.ResponseWriter, r *http.Request) (*statement.Statement, bool) {
	stmt, err := statement.Parse(http.MaxBytesReader(w, r.Body, MaxStatementBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return nil, false
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return stmt, true
}

// mappingFromQuery applies explicit date, description and amount params over the guess.
func mappingFromQuery(r *http.Request, headers []string) mapping.ColumnMapping {
	q := r.URL.Query()
	explicit := mapping.ColumnMapping{
		Date:        q.Get("date"),
		Description: q.Get("description"),
		Amount:      q.Get("amount"),
	}
	return explicit.Merge(mapping.Guess(headers))
}

func (a *API) previewImport(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.FromContext(r.Context())

	stmt, ok := a.readStatement(w, r)
	if !ok {
		return
	}

	m := mappingFromQuery(r, stmt.Headers)
	resp := PreviewResponse{
		Headers:  stmt.Headers,
		Mapping:  m,
		Rows:     stmt.Preview(statement.PreviewSize),
		RowCount: len(stmt.Rows),
	}
	for _, f := range m.Missing() {
		resp.Missing = append(resp.Missing, f.String())
	}

	if m.Complete() {
		prepared, err := a.engine.Preview(tasks.NewImportRequest(userID, "", stmt, m))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		n := len(prepared.Candidates)
		resp.Candidates = &n
		resp.Dropped = prepared.Dropped
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) createImport(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.FromContext(r.Context())

	stmt, ok := a.readStatement(w, r)
	if !ok {
		return
	}

	m := mappingFromQuery(r, stmt.Headers)
	req := tasks.NewImportRequest(userID, r.URL.Query().Get("source"), stmt, m)

	result, err := a.engine.Run(r.Context(), nil, req)
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

	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, resp)
	case result.Job != nil && result.Job.Status() == models.StatusFailed:
		resp.Error = result.Job.ErrorMessage()
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case result.Job != nil:
		resp.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
	case errors.Is(err, shared.ErrImportFailed):
		a.logger.Error("import failed before job creation", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		resp.Error = err.Error()
		writeJSON(w, http.StatusBadRequest, resp)
	}
}

func (a *API) listImports(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.FromContext(r.Context())

	filter := repositories.JobFilter{}
	if s := r.URL.Query().Get("status"); s != "" {
		status, err := models.ParseJobStatus(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = status
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.Limit = limit

	jobs, err := a.jobs.List(r.Context(), userID, filter)
	if err != nil {
		a.logger.Error("failed to list imports", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]formatter.JobJSON, len(jobs))
	for i, job := range jobs {
		out[i] = formatter.ToJobJSON(job)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getImport(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.FromContext(r.Context())

	job, err := a.jobs.Get(r.Context(), r.PathValue("id"), userID)
	if errors.Is(err, shared.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, formatter.ToJobJSON(job))
}

func (a *API) sweepImports(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.FromContext(r.Context())

	olderThan := a.staleAfter
	if s := r.URL.Query().Get("older_than"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "older_than must be a positive duration")
			return
		}
		olderThan = d
	}

	swept, err := a.engine.SweepStale(r.Context(), nil, userID, olderThan)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]formatter.JobJSON, len(swept))
	for i, job := range swept {
		out[i] = formatter.ToJobJSON(job)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) listTransactions(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.FromContext(r.Context())
	q := r.URL.Query()

	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	txns, err := a.txns.List(r.Context(), userID, repositories.TransactionFilter{
		Month:    q.Get("month"),
		From:     q.Get("from"),
		To:       q.Get("to"),
		Query:    q.Get("q"),
		ImportID: q.Get("import_id"),
		Limit:    limit,
	})
	if errors.Is(err, shared.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		a.logger.Error("failed to list transactions", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if txns == nil {
		txns = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, txns)
}

func toJobJSON(result *tasks.ImportResult) formatter.JobJSON {
	return formatter.ToJobJSON(result.Job)
}

func queryInt(r *http.Request, key string) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := shared.MarshalJSON(v, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
	_, _ = io.WriteString(w, "\n")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
