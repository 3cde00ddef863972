// Package metrics compares a transformed sequence against a target sequence
// positionally and derives accuracy scores. The pairing is deliberately
// index-based, row i against row i: it assumes the two datasets are already
// row-aligned and is a separate comparison strategy from the key-based join
// in the linkage engine. The two are not interchangeable.
package metrics

import "github.com/schemalink/internal/dataset"

// Metrics holds the derived quality scores for one comparison.
//
// Precision, recall and F1 all collapse to the same field-level accuracy
// ratio; the asymmetry of true precision/recall is not modeled here.
// EditDistance is the summed per-field length delta, a cheap proxy, not a
// true Levenshtein distance.
type Metrics struct {
	Precision    float64 `json:"precision"`
	Recall       float64 `json:"recall"`
	F1Score      float64 `json:"f1Score"`
	EditDistance int     `json:"editDistance"`
}

// Score compares the two sequences over min(len, len) index pairs. Either
// sequence being empty yields all-zero metrics, not an error.
func Score(transformed, target []dataset.Row) Metrics {
	if len(transformed) == 0 || len(target) == 0 {
		return Metrics{}
	}

	pairs := len(transformed)
	if len(target) < pairs {
		pairs = len(target)
	}

	matches := 0
	totalFields := 0
	totalDistance := 0

	for i := 0; i < pairs; i++ {
		for _, key := range dataset.UnionKeys(transformed[i], target[i]) {
			got := dataset.Stringify(transformed[i][key])
			want := dataset.Stringify(target[i][key])

			totalFields++
			if got == want {
				matches++
			}
			totalDistance += absInt(len(got) - len(want))
		}
	}

	m := Metrics{EditDistance: totalDistance}
	if totalFields > 0 {
		accuracy := float64(matches) / float64(totalFields)
		m.Precision = accuracy
		m.Recall = accuracy
		m.F1Score = accuracy
	}
	return m
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
