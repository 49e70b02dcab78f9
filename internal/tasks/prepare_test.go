package tasks

import (
	"testing"

	"github.com/desertthunder/finport/internal/mapping"
	"github.com/desertthunder/finport/internal/statement"
)

func TestPrepare(t *testing.T) {
	m := mapping.ColumnMapping{Date: "Posted", Description: "Memo", Amount: "Amt"}
	rows := []statement.RawRow{
		{"Posted": "2024-01-05", "Memo": "  Coffee  Shop ", "Amt": "$4.50"},
		{"Posted": "1/5/2024", "Memo": "coffee shop", "Amt": "4.50"},
		{"Posted": "", "Memo": "No date", "Amt": "1"},
		{"Posted": "2024-01-06", "Memo": "", "Amt": "1"},
		{"Posted": "2024-01-07", "Memo": "Huge", "Amt": "99999999999999999999999"},
		{"Posted": "2024-01-08", "Memo": "Junk amount", "Amt": "n/a"},
		{"Posted": "2024-01-09", "Amt": "(12.00)"},
	}

	result := Prepare(rows, m, "user-1", "USD")

	if len(result.Candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d: %+v", len(result.Candidates), result.Candidates)
	}

	first, second := result.Candidates[0], result.Candidates[1]
	if first.Description != "Coffee  Shop" {
		t.Errorf("description should be trimmed only, got %q", first.Description)
	}
	if first.OccurredOn != "2024-01-05" || first.AmountCents != 450 {
		t.Errorf("unexpected candidate: %+v", first)
	}
	if first.Fingerprint != second.Fingerprint {
		t.Errorf("equivalent rows should share a fingerprint: %q vs %q", first.Fingerprint, second.Fingerprint)
	}
	if first.Fingerprint != "2024-01-05|coffee shop|450" {
		t.Errorf("fingerprint = %q", first.Fingerprint)
	}
	if result.Candidates[2].AmountCents != 0 {
		t.Errorf("unparseable amount should be zero cents, got %d", result.Candidates[2].AmountCents)
	}
	if result.Candidates[0].UserID != "user-1" || result.Candidates[0].CurrencyCode != "USD" {
		t.Errorf("user and currency not stamped: %+v", result.Candidates[0])
	}

	wantDropped := []DroppedRow{
		{Index: 2, Reason: DropMissingDate},
		{Index: 3, Reason: DropEmptyDescription},
		{Index: 4, Reason: DropAmountOverflow},
		{Index: 6, Reason: DropEmptyDescription},
	}
	if len(result.Dropped) != len(wantDropped) {
		t.Fatalf("Dropped = %v, want %v", result.Dropped, wantDropped)
	}
	for i, d := range wantDropped {
		if result.Dropped[i] != d {
			t.Errorf("Dropped[%d] = %v, want %v", i, result.Dropped[i], d)
		}
	}
}

func TestPrepareIsDeterministic(t *testing.T) {
	m := mapping.ColumnMapping{Date: "d", Description: "s", Amount: "a"}
	rows := []statement.RawRow{{"d": "02/03/2024", "s": "Rent", "a": "(1,200.00)"}}

	a := Prepare(rows, m, "u", "USD")
	b := Prepare(rows, m, "u", "USD")
	if a.Candidates[0] != b.Candidates[0] {
		t.Errorf("Prepare() not deterministic: %+v vs %+v", a.Candidates[0], b.Candidates[0])
	}
	if a.Candidates[0].AmountCents != -120000 {
		t.Errorf("amount = %d, want -120000", a.Candidates[0].AmountCents)
	}
}

func TestChunk(t *testing.T) {
	tests := []struct {
		n, size int
		want    []int
	}{
		{n: 1200, size: 500, want: []int{500, 500, 200}},
		{n: 1000, size: 500, want: []int{500, 500}},
		{n: 3, size: 500, want: []int{3}},
		{n: 0, size: 500, want: nil},
		{n: 4, size: 0, want: []int{4}},
	}

	for _, tt := range tests {
		items := make([]int, tt.n)
		chunks := Chunk(items, tt.size)
		if len(chunks) != len(tt.want) {
			t.Errorf("Chunk(%d, %d) produced %d chunks, want %d", tt.n, tt.size, len(chunks), len(tt.want))
			continue
		}
		for i, c := range chunks {
			if len(c) != tt.want[i] {
				t.Errorf("Chunk(%d, %d)[%d] has %d items, want %d", tt.n, tt.size, i, len(c), tt.want[i])
			}
		}
	}
}
