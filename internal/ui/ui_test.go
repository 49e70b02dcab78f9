package ui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/finport/internal/mapping"
	"github.com/desertthunder/finport/internal/models"
	"github.com/desertthunder/finport/internal/statement"
	"github.com/desertthunder/finport/internal/tasks"
	tu "github.com/desertthunder/finport/internal/testing"
)

const fixture = `Posted Date,Memo,Amount,Balance
01/05/2024,Coffee Shop,-4.50,995.50
01/06/2024,Payroll,2000.00,2995.50
01/07/2024,Grocery Store,-82.13,2913.37
`

var (
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(t *testing.T, store *tu.MemoryStore, explicit mapping.ColumnMapping) *Model {
	t.Helper()
	stmt, err := statement.Parse(strings.NewReader(fixture))
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}
	engine := tasks.NewImportEngine(store, store, tasks.EngineOptions{BatchSize: 2})
	return NewModel(context.Background(), engine, "user-1", "checking.csv", stmt, explicit)
}

func press(m *Model, keys ...tea.KeyMsg) {
	for _, k := range keys {
		m.Update(k)
	}
}

// runToResult drives the import started by the confirm view until it completes.
func runToResult(t *testing.T, m *Model) {
	t.Helper()
	next := m.waitForProgress()
	for i := 0; m.view != ResultView; i++ {
		if next == nil || i > 100 {
			t.Fatalf("import did not complete, view = %d", m.view)
		}
		_, next = m.Update(next())
	}
}

func selectedHeader(m *Model, f mapping.Field) string {
	item, _ := m.lists[f].SelectedItem().(headerItem)
	return item.header
}

func TestNewModel(t *testing.T) {
	t.Run("Preselects Guessed Columns", func(t *testing.T) {
		m := newTestModel(t, tu.NewMemoryStore(), mapping.ColumnMapping{})

		want := mapping.ColumnMapping{Date: "Posted Date", Description: "Memo", Amount: "Amount"}
		if m.Mapping() != want {
			t.Errorf("expected %v, got %v", want, m.Mapping())
		}
		for _, f := range mapping.Fields {
			if got := selectedHeader(m, f); got != want.Get(f) {
				t.Errorf("%s list: expected %q selected, got %q", f, want.Get(f), got)
			}
		}
	})

	t.Run("Explicit Columns Win", func(t *testing.T) {
		m := newTestModel(t, tu.NewMemoryStore(), mapping.ColumnMapping{Amount: "Balance"})

		if m.Mapping().Amount != "Balance" || m.Mapping().Date != "Posted Date" {
			t.Errorf("unexpected mapping %v", m.Mapping())
		}
		if got := selectedHeader(m, mapping.Amount); got != "Balance" {
			t.Errorf("expected Balance selected, got %q", got)
		}
	})
}

func TestMappingView(t *testing.T) {
	t.Run("Choosing A Column", func(t *testing.T) {
		m := newTestModel(t, tu.NewMemoryStore(), mapping.ColumnMapping{})

		press(m, keyTab, keyTab, keyDown, keyEnter)

		if m.Mapping().Amount != "Balance" {
			t.Fatalf("expected amount=Balance, got %v", m.Mapping())
		}
		if m.view != ConfirmView {
			t.Fatalf("expected confirm view, got %d", m.view)
		}
		if len(m.prepared.Candidates) != 3 {
			t.Errorf("expected 3 candidates, got %d", len(m.prepared.Candidates))
		}
		if got := m.prepared.Candidates[0].AmountCents; got != 99550 {
			t.Errorf("expected balance column in cents, got %d", got)
		}
	})

	t.Run("Choices Survive Going Back", func(t *testing.T) {
		m := newTestModel(t, tu.NewMemoryStore(), mapping.ColumnMapping{})

		press(m, keyTab, keyTab, keyDown, keyEnter, runes("n"))

		if m.view != MappingView {
			t.Fatalf("expected mapping view, got %d", m.view)
		}
		if m.Mapping().Amount != "Balance" {
			t.Errorf("expected user choice kept, got %v", m.Mapping())
		}
	})

	t.Run("Duplicate Column Is Rejected", func(t *testing.T) {
		m := newTestModel(t, tu.NewMemoryStore(), mapping.ColumnMapping{})

		press(m, keyDown, keyEnter, runes("c"))

		if m.view != MappingView {
			t.Fatalf("expected to stay on mapping view, got %d", m.view)
		}
		if m.mappingErr == nil {
			t.Fatal("expected mapping error")
		}
		if !strings.Contains(m.View(), m.mappingErr.Error()) {
			t.Error("expected mapping error in view")
		}
	})

	t.Run("Field Navigation Wraps", func(t *testing.T) {
		m := newTestModel(t, tu.NewMemoryStore(), mapping.ColumnMapping{})

		press(m, tea.KeyMsg{Type: tea.KeyShiftTab})
		if m.activeField() != mapping.Amount {
			t.Errorf("expected amount field, got %s", m.activeField())
		}
	})
}

func TestImportFlow(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		store := tu.NewMemoryStore()
		m := newTestModel(t, store, mapping.ColumnMapping{})

		press(m, runes("c"))
		if m.view != ConfirmView {
			t.Fatalf("expected confirm view, got %d", m.view)
		}
		if !strings.Contains(m.View(), "Import 3 transactions") {
			t.Errorf("expected candidate count in confirm view, got %q", m.View())
		}

		press(m, runes("y"))
		if m.view != ImportView {
			t.Fatalf("expected import view, got %d", m.view)
		}
		runToResult(t, m)

		result, err := m.Result()
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if result.Job.Status() != models.StatusDone || result.Batches != 2 {
			t.Errorf("unexpected result %+v", result)
		}
		if got := len(store.Transactions("user-1")); got != 3 {
			t.Errorf("expected 3 stored transactions, got %d", got)
		}
		if !strings.Contains(m.View(), "Import Complete") {
			t.Errorf("expected completion in result view, got %q", m.View())
		}
	})

	t.Run("Failure Shows Message", func(t *testing.T) {
		store := tu.NewMemoryStore()
		store.FailOnBatch = 2
		m := newTestModel(t, store, mapping.ColumnMapping{})

		press(m, runes("c"), runes("y"))
		runToResult(t, m)

		result, err := m.Result()
		if err == nil {
			t.Fatal("expected error")
		}
		if result.Job == nil || result.Job.Status() != models.StatusFailed {
			t.Fatalf("expected failed job, got %+v", result.Job)
		}
		if result.BatchesWritten != 1 {
			t.Errorf("expected first batch kept, got %d", result.BatchesWritten)
		}
		if !strings.Contains(m.View(), "Import failed") {
			t.Errorf("expected failure in result view, got %q", m.View())
		}
	})

	t.Run("Remap After Result Keeps Choices", func(t *testing.T) {
		m := newTestModel(t, tu.NewMemoryStore(), mapping.ColumnMapping{Amount: "Balance"})

		press(m, runes("c"), runes("y"))
		runToResult(t, m)
		press(m, runes("r"))

		if m.view != MappingView || m.Mapping().Amount != "Balance" {
			t.Errorf("expected mapping view with Balance kept, got view %d mapping %v", m.view, m.Mapping())
		}
	})
}
