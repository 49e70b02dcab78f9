package statement

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/finport/internal/shared"
)

func TestParse(t *testing.T) {
	t.Run("Headers And Rows", func(t *testing.T) {
		input := " Date , Description,Amount \n2024-01-05,Coffee,-4.50\n\n2024-01-06,\"Payroll, ACME\",\"2,500.00\"\n"

		stmt, err := Parse(strings.NewReader(input))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}

		wantHeaders := []string{"Date", "Description", "Amount"}
		if strings.Join(stmt.Headers, ",") != strings.Join(wantHeaders, ",") {
			t.Errorf("Headers = %q, want %q", stmt.Headers, wantHeaders)
		}

		if len(stmt.Rows) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(stmt.Rows))
		}

		if got := stmt.Rows[1]["Description"]; got != "Payroll, ACME" {
			t.Errorf("quoted cell = %q", got)
		}
		if got := stmt.Rows[1]["Amount"]; got != "2,500.00" {
			t.Errorf("amount cell = %q", got)
		}
	})

	t.Run("Skips Blank Lines", func(t *testing.T) {
		input := "\n , \nDate,Amount\n , \n2024-01-05,1\n,\n"

		stmt, err := Parse(strings.NewReader(input))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if len(stmt.Headers) != 2 || stmt.Headers[0] != "Date" {
			t.Errorf("Headers = %q", stmt.Headers)
		}
		if len(stmt.Rows) != 1 {
			t.Errorf("expected 1 row, got %d", len(stmt.Rows))
		}
	})

	t.Run("Ragged Rows", func(t *testing.T) {
		input := "Date,Description,Amount\n2024-01-05,Coffee\n2024-01-06,Tea,1,extra\n"

		stmt, err := Parse(strings.NewReader(input))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}

		if _, ok := stmt.Rows[0]["Amount"]; ok {
			t.Error("short row should not carry the missing column")
		}
		if len(stmt.Rows[1]) != 3 {
			t.Errorf("long row should keep only header columns, got %v", stmt.Rows[1])
		}
	})

	t.Run("Duplicate Headers And BOM", func(t *testing.T) {
		input := "\ufeffDate,Amount,Amount\n2024-01-05,1,2\n"

		stmt, err := Parse(strings.NewReader(input))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}

		want := []string{"Date", "Amount", "Amount_1"}
		for i, h := range want {
			if stmt.Headers[i] != h {
				t.Errorf("Headers[%d] = %q, want %q", i, stmt.Headers[i], h)
			}
		}
		if stmt.Rows[0]["Amount_1"] != "2" {
			t.Errorf("renamed column value = %q", stmt.Rows[0]["Amount_1"])
		}
	})

	t.Run("No Headers", func(t *testing.T) {
		for _, input := range []string{"", "\n\n", " , ,\n"} {
			_, err := Parse(strings.NewReader(input))
			if !errors.Is(err, shared.ErrNoHeaders) {
				t.Errorf("Parse(%q) error = %v, want ErrNoHeaders", input, err)
			}
		}
	})
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statement.csv")
	if err := os.WriteFile(path, []byte("Date,Memo,Amt\n01/05/2024,Rent,(1200.00)\n"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	stmt, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if len(stmt.Rows) != 1 || stmt.Rows[0]["Memo"] != "Rent" {
		t.Errorf("unexpected rows: %v", stmt.Rows)
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPreview(t *testing.T) {
	stmt := &Statement{Headers: []string{"A"}}
	for range 20 {
		stmt.Rows = append(stmt.Rows, RawRow{"A": "x"})
	}

	if got := len(stmt.Preview(PreviewSize)); got != PreviewSize {
		t.Errorf("Preview() returned %d rows, want %d", got, PreviewSize)
	}

	stmt.Rows = stmt.Rows[:3]
	if got := len(stmt.Preview(PreviewSize)); got != 3 {
		t.Errorf("Preview() returned %d rows, want 3", got)
	}
}
