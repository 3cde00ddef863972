// Package linkage joins transformed rows against a target table, either by
// exact key equality or by averaged per-column fuzzy similarity, and reports
// aggregate join statistics. Per-row matching never fails; only contract
// violations (no match columns, unknown algorithm) surface as errors.
package linkage

import (
	"errors"
	"fmt"

	"github.com/schemalink/internal/dataset"
)

// Mode selects the matching strategy.
type Mode string

const (
	ModeExact Mode = "exact"
	ModeFuzzy Mode = "fuzzy"
)

// MatchStatus tags a joined row.
type MatchStatus string

const (
	StatusMatched   MatchStatus = "matched"
	StatusUnmatched MatchStatus = "unmatched"
)

// DefaultThreshold is the fuzzy score a best candidate must reach to count
// as a match.
const DefaultThreshold = 0.7

// keySeparator joins match-column values into an exact-match key. Not
// expected to occur in data values.
const keySeparator = "|"

// ErrInvalidJoinSpec reports a linkage call without match columns.
var ErrInvalidJoinSpec = errors.New("invalid join spec: no match columns")

// MatchRecord is one joined row: the transformed row's fields plus any
// target fields not already present, tagged with the match status and, in
// fuzzy mode, the winning similarity score.
type MatchRecord struct {
	Row    dataset.Row `json:"row"`
	Status MatchStatus `json:"matchStatus"`
	Score  float64     `json:"matchScore,omitempty"`
}

// JoinStats summarizes one linkage run. Recomputed per join, never stored
// independently of the join result.
type JoinStats struct {
	TotalTransformed int     `json:"totalTransformed"`
	TotalTarget      int     `json:"totalTarget"`
	Matched          int     `json:"matched"`
	Unmatched        int     `json:"unmatched"`
	MatchRate        float64 `json:"matchRate"`
}

// Options configure a linkage run.
type Options struct {
	Mode         Mode     `json:"mode"`
	MatchColumns []string `json:"matchColumns"`
	// Algorithm names the fuzzy similarity function; empty selects the
	// default prefix scorer. Ignored in exact mode.
	Algorithm string `json:"algorithm,omitempty"`
	// Threshold is the minimum fuzzy score for a match; zero means
	// DefaultThreshold. Ignored in exact mode.
	Threshold float64 `json:"threshold,omitempty"`
	// Workers caps parallel fuzzy scans. Zero means GOMAXPROCS.
	Workers int `json:"-"`
}

// Link joins transformed rows against the target rows.
func Link(transformed, target []dataset.Row, opts Options) ([]MatchRecord, JoinStats, error) {
	if len(opts.MatchColumns) == 0 {
		return nil, JoinStats{}, ErrInvalidJoinSpec
	}

	var (
		records []MatchRecord
		err     error
	)
	switch opts.Mode {
	case ModeExact, "":
		records = linkExact(transformed, target, opts.MatchColumns)
	case ModeFuzzy:
		records, err = linkFuzzy(transformed, target, opts)
		if err != nil {
			return nil, JoinStats{}, err
		}
	default:
		return nil, JoinStats{}, fmt.Errorf("unknown match mode %q", opts.Mode)
	}

	return records, computeStats(records, len(target)), nil
}

// computeStats derives JoinStats from the joined sequence. The matched and
// unmatched counts always sum to the transformed total.
func computeStats(records []MatchRecord, targetCount int) JoinStats {
	stats := JoinStats{
		TotalTransformed: len(records),
		TotalTarget:      targetCount,
	}
	for _, rec := range records {
		if rec.Status == StatusMatched {
			stats.Matched++
		} else {
			stats.Unmatched++
		}
	}
	if stats.TotalTransformed > 0 {
		stats.MatchRate = float64(stats.Matched) / float64(stats.TotalTransformed)
	}
	return stats
}

// mergeRows unions the transformed row with the target fields it does not
// already carry. The transformed row's values win on shared columns.
func mergeRows(transformed, target dataset.Row) dataset.Row {
	out := transformed.Clone()
	for k, v := range target {
		if _, exists := out[k]; !exists {
			out[k] = v
		}
	}
	return out
}

// resolveThreshold applies the default when the option is unset.
func resolveThreshold(threshold float64) float64 {
	if threshold <= 0 {
		return DefaultThreshold
	}
	return threshold
}
