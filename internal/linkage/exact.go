package linkage

import (
	"strings"

	"github.com/schemalink/internal/dataset"
)

// linkExact joins by equality of concatenated match-column values. The
// target index is built once in O(|target|); each transformed row is a
// single lookup.
func linkExact(transformed, target []dataset.Row, matchColumns []string) []MatchRecord {
	index := buildTargetIndex(target, matchColumns)

	records := make([]MatchRecord, len(transformed))
	for i, row := range transformed {
		key := joinKey(row, matchColumns)
		if hit, ok := index[key]; ok {
			records[i] = MatchRecord{Row: mergeRows(row, hit), Status: StatusMatched}
		} else {
			records[i] = MatchRecord{Row: row.Clone(), Status: StatusUnmatched}
		}
	}
	return records
}

// buildTargetIndex maps each target row's join key to the row. On key
// collision the later row wins; a documented simplification, kept rather
// than silently corrected.
func buildTargetIndex(target []dataset.Row, matchColumns []string) map[string]dataset.Row {
	index := make(map[string]dataset.Row, len(target))
	for _, row := range target {
		index[joinKey(row, matchColumns)] = row
	}
	return index
}

// joinKey concatenates the row's match-column values with a separator not
// expected to occur in data. Absent columns contribute an empty segment.
func joinKey(row dataset.Row, matchColumns []string) string {
	parts := make([]string, len(matchColumns))
	for i, col := range matchColumns {
		parts[i] = dataset.Stringify(row[col])
	}
	return strings.Join(parts, keySeparator)
}
