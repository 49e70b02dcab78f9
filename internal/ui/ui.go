package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/finport/internal/formatter"
	"github.com/desertthunder/finport/internal/mapping"
	"github.com/desertthunder/finport/internal/models"
	"github.com/desertthunder/finport/internal/statement"
	"github.com/desertthunder/finport/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	MappingView ViewState = iota
	ConfirmView
	ImportView
	ResultView
)

// previewRows is the number of statement rows shown under the mapping lists.
const previewRows = 5

// Model represents the TUI application state.
//
// The mapping starts from explicit choices merged over the header guess.
// Columns the user picks are never guessed again, including after a remap.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	view         ViewState
	engine       *tasks.ImportEngine
	userID       string
	source       string
	stmt         *statement.Statement
	mapping      mapping.ColumnMapping
	field        int
	lists        []list.Model
	prepared     tasks.PrepareResult
	mappingErr   error
	progressChan chan tasks.ProgressUpdate
	doneChan     chan importOutcome
	progress     tasks.ProgressUpdate
	result       *tasks.ImportResult
	err          error
	spinner      spinner.Model
	width        int
	height       int
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model for importing stmt as userID.
//
// explicit holds columns chosen ahead of time (flags). Unset fields fall back to [mapping.Guess].
func NewModel(ctx context.Context, engine *tasks.ImportEngine, userID, source string, stmt *statement.Statement, explicit mapping.ColumnMapping) *Model {
	m := &Model{
		ctx:     ctx,
		view:    MappingView,
		engine:  engine,
		userID:  userID,
		source:  source,
		stmt:    stmt,
		mapping: explicit.Merge(mapping.Guess(stmt.Headers)),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.title.UnsetMarginBottom())),
		help:    help.New(),
		keys:    newKeyMap(),
	}

	m.lists = make([]list.Model, len(mapping.Fields))
	for i, f := range mapping.Fields {
		m.lists[i] = newFieldList(f, stmt.Headers, stmt.Rows, m.mapping.Get(f))
	}
	return m
}

// Mapping returns the current column mapping.
func (m *Model) Mapping() mapping.ColumnMapping { return m.mapping }

// Result returns the outcome of the last import, if one ran.
func (m *Model) Result() (*tasks.ImportResult, error) { return m.result, m.err }

// Init initializes the TUI. The statement is already parsed, so there is nothing to fetch.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for i := range m.lists {
			m.lists[i].SetSize(msg.Width-4, max(msg.Height/2-4, 6))
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case MappingView:
			return m.handleMappingKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ImportView:
			return m.handleImportKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != ImportView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			m.progress = msg.data.(tasks.ProgressUpdate)
			return m, m.waitForProgress()
		case MsgImportComplete:
			outcome := msg.data.(importOutcome)
			m.result = outcome.result
			m.err = outcome.err
			m.view = ResultView
			m.progressChan = nil
			m.doneChan = nil
			if m.cancel != nil {
				m.cancel()
				m.cancel = nil
			}
			return m, nil
		}
	}

	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case MappingView:
		return m.renderMapping()
	case ConfirmView:
		return m.renderConfirm()
	case ImportView:
		return m.renderImport()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) activeField() mapping.Field {
	return mapping.Fields[m.field]
}

func (m *Model) handleMappingKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.next):
		m.field = (m.field + 1) % len(mapping.Fields)
		return m, nil
	case key.Matches(msg, m.keys.prev):
		m.field = (m.field + len(mapping.Fields) - 1) % len(mapping.Fields)
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.lists[m.field].SelectedItem().(headerItem); ok {
			m.mapping = m.mapping.Set(m.activeField(), item.header)
			m.mappingErr = nil
		}
		if m.field == len(mapping.Fields)-1 {
			return m.confirm()
		}
		m.field++
		return m, nil
	case key.Matches(msg, m.keys.cont):
		return m.confirm()
	}

	var cmd tea.Cmd
	m.lists[m.field], cmd = m.lists[m.field].Update(msg)
	return m, cmd
}

// confirm validates the mapping and recomputes the candidate set before asking to import.
func (m *Model) confirm() (tea.Model, tea.Cmd) {
	prepared, err := m.engine.Preview(m.request())
	if err != nil {
		m.mappingErr = err
		return m, nil
	}

	m.prepared = prepared
	m.mappingErr = nil
	m.view = ConfirmView
	return m, nil
}

func (m *Model) request() tasks.ImportRequest {
	return tasks.NewImportRequest(m.userID, m.source, m.stmt, m.mapping)
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = MappingView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		if len(m.prepared.Candidates) == 0 {
			m.mappingErr = fmt.Errorf("no usable rows under this mapping")
			m.view = MappingView
			return m, nil
		}
		m.view = ImportView
		m.progress = tasks.ProgressUpdate{}
		return m, tea.Batch(m.spinner.Tick, m.startImport())
	}
	return m, nil
}

// handleImportKeys cancels a running import. The engine records the job as failed.
func (m *Model) handleImportKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" && m.cancel != nil {
		m.cancel()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = MappingView
		m.field = 0
		m.result = nil
		m.err = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) startImport() tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.progressChan = make(chan tasks.ProgressUpdate, 64)
	m.doneChan = make(chan importOutcome, 1)

	req := m.request()
	progress, done := m.progressChan, m.doneChan
	go func() {
		result, err := m.engine.Run(ctx, progress, req)
		done <- importOutcome{result: result, err: err}
		close(progress)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.doneChan
	return func() tea.Msg {
		if progress == nil {
			return nil
		}

		update, ok := <-progress
		if !ok {
			return importCompleteMsg(<-done)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderMapping() string {
	var b strings.Builder

	b.WriteString(styles.title.Render(fmt.Sprintf("Map columns for %s", m.source)))
	b.WriteString("\n")

	labels := make([]string, len(mapping.Fields))
	for i, f := range mapping.Fields {
		value := m.mapping.Get(f)
		label := fmt.Sprintf("%s: %s", f, value)
		if value == "" {
			label = styles.warn.Render(fmt.Sprintf("%s: (unset)", f))
		}
		if i == m.field {
			label = styles.active.Render(fmt.Sprintf("%s: %s", f, value))
		}
		labels[i] = label
	}
	b.WriteString(strings.Join(labels, "   "))
	b.WriteString("\n\n")

	b.WriteString(m.lists[m.field].View())
	b.WriteString("\n\n")
	b.WriteString(formatter.PreviewTable(m.stmt.Headers, m.stmt.Preview(previewRows), m.mapping))
	b.WriteString("\n")

	if m.mappingErr != nil {
		b.WriteString(styles.err.Render(m.mappingErr.Error()))
		b.WriteString("\n")
	}

	helpKeys := []key.Binding{m.keys.up, m.keys.down, m.keys.next, m.keys.enter, m.keys.cont, m.keys.quit}
	b.WriteString(m.help.ShortHelpView(helpKeys))
	return b.String()
}

func (m *Model) renderConfirm() string {
	candidates := len(m.prepared.Candidates)
	title := styles.title.Render(fmt.Sprintf("Import %d transactions from %s?", candidates, m.source))

	info := fmt.Sprintf(
		"Rows: %d\nCandidates: %d\nCurrency: %s\nBatches: %d of up to %d\nMapping: %s\n",
		len(m.stmt.Rows),
		candidates,
		m.engine.Currency(),
		(candidates+m.engine.BatchSize()-1)/m.engine.BatchSize(),
		m.engine.BatchSize(),
		m.mapping,
	)
	if n := len(m.prepared.Dropped); n > 0 {
		info += styles.warn.Render(fmt.Sprintf("%d rows will be skipped", n)) + "\n"
	}

	sample := m.prepared.Candidates[:min(previewRows, candidates)]
	table := formatter.CandidatesTable(sample)

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	return fmt.Sprintf("%s\n%s\n%s\n%s", title, info, table, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderImport() string {
	title := styles.title.Render(fmt.Sprintf("Importing %s", m.source))

	var phase string
	switch m.progress.Phase {
	case tasks.PrepareRows:
		phase = "Preparing rows..."
	case tasks.CreateJob:
		phase = "Creating import record..."
	case tasks.UploadBatches:
		phase = fmt.Sprintf("Uploading batches (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.Finalize:
		phase = "Finalizing import..."
	default:
		phase = "Processing..."
	}

	hint := styles.help.Render("ctrl+c to cancel")
	return fmt.Sprintf("%s\n%s %s\n%s\n\n%s", title, m.spinner.View(), phase, m.progress.Message, hint)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})

	var job *models.ImportJob
	if m.result != nil {
		job = m.result.Job
	}

	if m.err != nil {
		msg := fmt.Sprintf("Import failed: %v", m.err)
		if job != nil && job.ErrorMessage() != "" {
			msg = fmt.Sprintf("Import failed: %s", job.ErrorMessage())
		}

		var detail string
		if job != nil {
			detail = fmt.Sprintf("\n%s\nBatches written: %d/%d\nBatches already written stay saved. Re-running the same file is safe.",
				formatter.JobLine(job), m.result.BatchesWritten, m.result.Batches)
		}
		return fmt.Sprintf("%s%s\n\n%s", styles.err.Render(msg), detail, helpView)
	}

	if job == nil {
		return styles.err.Render("No result available") + "\n\n" + helpView
	}

	title := styles.ok.Render("✓ Import Complete!")
	info := fmt.Sprintf("\n%s\nTransactions: %d in %d batches", formatter.JobLine(job), job.RowCount(), m.result.Batches)
	if n := len(m.result.Dropped); n > 0 {
		info += "\n" + styles.warn.Render(fmt.Sprintf("Skipped %d rows", n))
	}

	return fmt.Sprintf("%s\n%s\n\n%s", title, info, helpView)
}
