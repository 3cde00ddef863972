package dataset

import (
	"fmt"
	"sort"
)

// Row is one record of a dataset: a mapping from column name to a scalar
// value (string, number, bool or nil). Rows within one dataset do not have
// to share identical key sets.
type Row map[string]interface{}

// Dataset is an ordered sequence of rows plus the declared column list.
// The declared list may lag behind the keys actually present in the rows;
// that is tolerated, not an invariant violation.
type Dataset struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Stringify renders a scalar value for comparison and export. Nil renders
// as the empty string so that absent and blank columns compare equal.
func Stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Keys returns the row's column names in sorted order.
func (r Row) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Blanked builds a row with the given keys and empty-string values.
func Blanked(keys []string) Row {
	out := make(Row, len(keys))
	for _, k := range keys {
		out[k] = ""
	}
	return out
}

// UnionKeys returns the sorted union of the two rows' column names.
func UnionKeys(a, b Row) []string {
	seen := make(map[string]bool, len(a)+len(b))
	for k := range a {
		seen[k] = true
	}
	for k := range b {
		seen[k] = true
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ColumnUnion returns the sorted union of column names across all rows.
// Used by exporters when the declared column list is missing or stale.
func ColumnUnion(rows []Row) []string {
	seen := make(map[string]bool)
	for _, r := range rows {
		for k := range r {
			seen[k] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
