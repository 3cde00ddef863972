package metrics

import (
	"testing"

	"github.com/schemalink/internal/dataset"
)

func TestScoreEmptySequences(t *testing.T) {
	rows := []dataset.Row{{"id": "A"}}

	tests := []struct {
		name                string
		transformed, target []dataset.Row
	}{
		{"empty transformed", nil, rows},
		{"empty target", rows, nil},
		{"both empty", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.transformed, tt.target)
			if got != (Metrics{}) {
				t.Errorf("Score = %+v, want all zero", got)
			}
		})
	}
}

func TestScoreIdenticalSequences(t *testing.T) {
	rows := []dataset.Row{
		{"id": "A", "name": "alice"},
		{"id": "B", "name": "bob"},
	}

	got := Score(rows, rows)
	if got.Precision != 1 || got.Recall != 1 || got.F1Score != 1 {
		t.Errorf("Score = %+v, want precision=recall=f1=1", got)
	}
	if got.EditDistance != 0 {
		t.Errorf("EditDistance = %d, want 0", got.EditDistance)
	}
}

func TestScorePartialMatch(t *testing.T) {
	transformed := []dataset.Row{{"id": "A", "name": "alice"}}
	target := []dataset.Row{{"id": "A", "name": "bob"}}

	got := Score(transformed, target)

	// Two fields compared, one equal.
	if got.Precision != 0.5 {
		t.Errorf("Precision = %v, want 0.5", got.Precision)
	}
	// |len("alice") - len("bob")| = 2.
	if got.EditDistance != 2 {
		t.Errorf("EditDistance = %d, want 2", got.EditDistance)
	}
}

func TestScoreKeyUnion(t *testing.T) {
	// A key present on only one side still counts as a compared field;
	// the absent side stringifies as blank.
	transformed := []dataset.Row{{"id": "A"}}
	target := []dataset.Row{{"id": "A", "extra": "xy"}}

	got := Score(transformed, target)

	// Fields: id (match) and extra (mismatch, "" vs "xy").
	if got.Precision != 0.5 {
		t.Errorf("Precision = %v, want 0.5", got.Precision)
	}
	if got.EditDistance != 2 {
		t.Errorf("EditDistance = %d, want 2", got.EditDistance)
	}
}

func TestScoreUnequalLengths(t *testing.T) {
	// Comparison runs over the shorter sequence only.
	transformed := []dataset.Row{
		{"id": "A"},
		{"id": "B"},
		{"id": "C"},
	}
	target := []dataset.Row{{"id": "A"}}

	got := Score(transformed, target)
	if got.Precision != 1 {
		t.Errorf("Precision = %v, want 1 (only the aligned pair counts)", got.Precision)
	}
}

func TestScoreStringifiedComparison(t *testing.T) {
	// Numeric 42 and string "42" compare equal after stringification.
	transformed := []dataset.Row{{"n": float64(42)}}
	target := []dataset.Row{{"n": "42"}}

	got := Score(transformed, target)
	if got.Precision != 1 {
		t.Errorf("Precision = %v, want 1", got.Precision)
	}
}
