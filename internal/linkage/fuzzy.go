package linkage

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/schemalink/internal/dataset"
	"github.com/schemalink/internal/similarity"
)

// linkFuzzy compares every transformed row against every target row; an
// all-pairs scan, O(|transformed| x |target|), with no indexing. The
// transformed sequence is partitioned across workers; each worker scans the
// target sequence read-only.
func linkFuzzy(transformed, target []dataset.Row, opts Options) ([]MatchRecord, error) {
	score, err := similarity.Resolve(opts.Algorithm)
	if err != nil {
		return nil, err
	}
	threshold := resolveThreshold(opts.Threshold)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	records := make([]MatchRecord, len(transformed))

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range transformed {
		i := i
		g.Go(func() error {
			records[i] = fuzzyMatchRow(transformed[i], target, opts.MatchColumns, score, threshold)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	return records, nil
}

// fuzzyMatchRow scans the full target sequence for the best-scoring row.
// Ties resolve first-seen-wins: a later candidate replaces the best only
// with a strictly higher score. The best candidate matches only if its
// score reaches the threshold.
func fuzzyMatchRow(row dataset.Row, target []dataset.Row, matchColumns []string, score similarity.Func, threshold float64) MatchRecord {
	bestScore := -1.0
	bestIndex := -1

	for j := range target {
		s := pairScore(row, target[j], matchColumns, score)
		if s > bestScore {
			bestScore = s
			bestIndex = j
		}
	}

	if bestIndex >= 0 && bestScore >= threshold {
		return MatchRecord{
			Row:    mergeRows(row, target[bestIndex]),
			Status: StatusMatched,
			Score:  bestScore,
		}
	}
	return MatchRecord{Row: row.Clone(), Status: StatusUnmatched, Score: 0}
}

// pairScore averages the per-column similarity across the match columns.
func pairScore(a, b dataset.Row, matchColumns []string, score similarity.Func) float64 {
	var total float64
	for _, col := range matchColumns {
		total += score(dataset.Stringify(a[col]), dataset.Stringify(b[col]))
	}
	return total / float64(len(matchColumns))
}
