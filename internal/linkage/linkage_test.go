package linkage

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/schemalink/internal/dataset"
)

func TestLinkExactHit(t *testing.T) {
	transformed := []dataset.Row{{"id": "A", "v": 1}}
	target := []dataset.Row{{"id": "A", "w": 2}}

	records, stats, err := Link(transformed, target, Options{
		Mode:         ModeExact,
		MatchColumns: []string{"id"},
	})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	want := MatchRecord{
		Row:    dataset.Row{"id": "A", "v": 1, "w": 2},
		Status: StatusMatched,
	}
	if diff := cmp.Diff([]MatchRecord{want}, records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if stats.Matched != 1 || stats.Unmatched != 0 || stats.MatchRate != 1.0 {
		t.Errorf("stats = %+v, want 1 matched at rate 1.0", stats)
	}
}

func TestLinkExactMiss(t *testing.T) {
	transformed := []dataset.Row{{"id": "A", "v": 1}}
	target := []dataset.Row{{"id": "B", "w": 2}}

	records, stats, err := Link(transformed, target, Options{
		Mode:         ModeExact,
		MatchColumns: []string{"id"},
	})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	want := MatchRecord{
		Row:    dataset.Row{"id": "A", "v": 1},
		Status: StatusUnmatched,
	}
	if diff := cmp.Diff([]MatchRecord{want}, records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if stats.Matched != 0 || stats.Unmatched != 1 || stats.MatchRate != 0.0 {
		t.Errorf("stats = %+v, want 0 matched", stats)
	}
}

func TestLinkExactTransformedValueWins(t *testing.T) {
	// On shared columns the transformed row's value is kept.
	transformed := []dataset.Row{{"id": "A", "name": "ours"}}
	target := []dataset.Row{{"id": "A", "name": "theirs", "w": 2}}

	records, _, err := Link(transformed, target, Options{
		Mode:         ModeExact,
		MatchColumns: []string{"id"},
	})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if records[0].Row["name"] != "ours" {
		t.Errorf("name = %v, want ours", records[0].Row["name"])
	}
}

func TestLinkExactLastWriterWins(t *testing.T) {
	// Duplicate target keys: the later target row overwrites the earlier
	// one in the index. Kept as documented behavior.
	transformed := []dataset.Row{{"id": "A"}}
	target := []dataset.Row{
		{"id": "A", "w": "first"},
		{"id": "A", "w": "second"},
	}

	records, _, err := Link(transformed, target, Options{
		Mode:         ModeExact,
		MatchColumns: []string{"id"},
	})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if records[0].Row["w"] != "second" {
		t.Errorf("w = %v, want second (last writer wins)", records[0].Row["w"])
	}
}

func TestLinkExactMultiColumnKey(t *testing.T) {
	transformed := []dataset.Row{{"first": "ada", "last": "lovelace"}}
	target := []dataset.Row{
		{"first": "ada", "last": "byron", "born": 1792},
		{"first": "ada", "last": "lovelace", "born": 1815},
	}

	records, _, err := Link(transformed, target, Options{
		Mode:         ModeExact,
		MatchColumns: []string{"first", "last"},
	})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if records[0].Status != StatusMatched || records[0].Row["born"] != 1815 {
		t.Errorf("record = %+v, want matched with born=1815", records[0])
	}
}

func TestLinkFuzzyThresholdBoundary(t *testing.T) {
	tests := []struct {
		name      string
		targetVal string
		wantMatch bool
		wantScore float64
	}{
		// "abcdefg" is a 7-char prefix of the 10-char source: score 0.7,
		// exactly the default threshold, so it must match.
		{"exactly at threshold", "abcdefg", true, 0.7},
		// 6/10 = 0.6, just below: must not match.
		{"just below threshold", "abcdef", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transformed := []dataset.Row{{"name": "abcdefghij"}}
			target := []dataset.Row{{"name": tt.targetVal, "w": 1}}

			records, stats, err := Link(transformed, target, Options{
				Mode:         ModeFuzzy,
				MatchColumns: []string{"name"},
			})
			if err != nil {
				t.Fatalf("Link: %v", err)
			}

			rec := records[0]
			if tt.wantMatch {
				if rec.Status != StatusMatched {
					t.Fatalf("status = %s, want matched", rec.Status)
				}
				if rec.Score != tt.wantScore {
					t.Errorf("score = %v, want %v", rec.Score, tt.wantScore)
				}
				if stats.Matched != 1 {
					t.Errorf("stats.Matched = %d, want 1", stats.Matched)
				}
			} else {
				if rec.Status != StatusUnmatched {
					t.Fatalf("status = %s, want unmatched", rec.Status)
				}
				if rec.Score != 0 {
					t.Errorf("score = %v, want 0 for unmatched", rec.Score)
				}
			}
		})
	}
}

func TestLinkFuzzyBestMatchSelection(t *testing.T) {
	transformed := []dataset.Row{{"name": "abcdefghij"}}
	target := []dataset.Row{
		{"name": "abcdefg", "rank": "good"},   // 0.7
		{"name": "abcdefghi", "rank": "best"}, // 0.9
		{"name": "abc", "rank": "weak"},       // 0.3
	}

	records, _, err := Link(transformed, target, Options{
		Mode:         ModeFuzzy,
		MatchColumns: []string{"name"},
	})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if records[0].Row["rank"] != "best" {
		t.Errorf("rank = %v, want best", records[0].Row["rank"])
	}
	if records[0].Score != 0.9 {
		t.Errorf("score = %v, want 0.9", records[0].Score)
	}
}

func TestLinkFuzzyTieFirstSeenWins(t *testing.T) {
	// Equal scores: the earlier target row keeps the match.
	transformed := []dataset.Row{{"name": "abcd"}}
	target := []dataset.Row{
		{"name": "abcd", "pos": "first"},
		{"name": "abcd", "pos": "second"},
	}

	records, _, err := Link(transformed, target, Options{
		Mode:         ModeFuzzy,
		MatchColumns: []string{"name"},
	})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if records[0].Row["pos"] != "first" {
		t.Errorf("pos = %v, want first (first-seen-wins)", records[0].Row["pos"])
	}
}

func TestLinkFuzzyAveragesAcrossColumns(t *testing.T) {
	// One exact column (1.0) and one disjoint column (0.0) average to
	// 0.5, below the default threshold.
	transformed := []dataset.Row{{"a": "same", "b": "left"}}
	target := []dataset.Row{{"a": "same", "b": "xyzzy"}}

	records, _, err := Link(transformed, target, Options{
		Mode:         ModeFuzzy,
		MatchColumns: []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if records[0].Status != StatusUnmatched {
		t.Errorf("status = %s, want unmatched at averaged score 0.5", records[0].Status)
	}
}

func TestLinkStatsConsistency(t *testing.T) {
	transformed := []dataset.Row{
		{"id": "A"}, {"id": "B"}, {"id": "C"}, {"id": "D"},
	}
	target := []dataset.Row{{"id": "B"}, {"id": "D"}}

	for _, mode := range []Mode{ModeExact, ModeFuzzy} {
		_, stats, err := Link(transformed, target, Options{
			Mode:         mode,
			MatchColumns: []string{"id"},
		})
		if err != nil {
			t.Fatalf("Link(%s): %v", mode, err)
		}
		if stats.Matched+stats.Unmatched != stats.TotalTransformed {
			t.Errorf("%s: matched %d + unmatched %d != total %d",
				mode, stats.Matched, stats.Unmatched, stats.TotalTransformed)
		}
		if stats.TotalTarget != len(target) {
			t.Errorf("%s: TotalTarget = %d, want %d", mode, stats.TotalTarget, len(target))
		}
	}
}

func TestLinkEmptyInputs(t *testing.T) {
	records, stats, err := Link(nil, []dataset.Row{{"id": "A"}}, Options{
		Mode:         ModeExact,
		MatchColumns: []string{"id"},
	})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
	// No transformed rows: rate is 0, not a division by zero.
	if stats.MatchRate != 0 {
		t.Errorf("MatchRate = %v, want 0", stats.MatchRate)
	}
}

func TestLinkInvalidSpec(t *testing.T) {
	_, _, err := Link([]dataset.Row{{"id": "A"}}, nil, Options{Mode: ModeExact})
	if !errors.Is(err, ErrInvalidJoinSpec) {
		t.Errorf("err = %v, want ErrInvalidJoinSpec", err)
	}
}

func TestLinkUnknownAlgorithm(t *testing.T) {
	_, _, err := Link([]dataset.Row{{"id": "A"}}, nil, Options{
		Mode:         ModeFuzzy,
		MatchColumns: []string{"id"},
		Algorithm:    "metaphone",
	})
	if err == nil {
		t.Error("expected error for unknown algorithm")
	}
}
