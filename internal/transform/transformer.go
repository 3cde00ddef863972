// Package transform executes an untrusted, user-editable procedure against
// every row of a dataset with per-row fault isolation. A failing row never
// aborts the batch: it is absorbed into a fallback row and counted, so the
// output sequence always has the same length as the input.
package transform

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/schemalink/internal/dataset"
)

// DefaultRowTimeout bounds a single procedure evaluation.
const DefaultRowTimeout = 250 * time.Millisecond

// Result carries the transformed rows and the batch counters. Counters are
// returned by value rather than accumulated in shared state so concurrent
// batches stay independent.
type Result struct {
	Rows         []dataset.Row `json:"rows"`
	SuccessCount int           `json:"successCount"`
	ErrorCount   int           `json:"errorCount"`
}

// Transformer applies a procedure to row batches. The zero value is usable;
// New fills in defaults.
type Transformer struct {
	// RowTimeout bounds each row's evaluation. Zero means DefaultRowTimeout.
	RowTimeout time.Duration
	// Workers caps the parallel row evaluations. Zero means GOMAXPROCS.
	Workers int
}

// New returns a Transformer with default settings.
func New() *Transformer {
	return &Transformer{RowTimeout: DefaultRowTimeout}
}

// Apply compiles the procedure once and evaluates it against every row.
//
// A malformed procedure returns ErrMalformedProcedure with the input rows
// passed through unchanged, so a caller that chooses to ignore the error
// still has an operable sequence for downstream stages. A nil or empty
// batch yields an empty result with no error. Individual row faults are
// never surfaced as errors, only counted.
func (t *Transformer) Apply(ctx context.Context, rows []dataset.Row, procedureText string) (*Result, error) {
	if len(rows) == 0 {
		return &Result{Rows: []dataset.Row{}}, nil
	}

	proc, err := Compile(procedureText)
	if err != nil {
		return &Result{Rows: rows}, err
	}

	timeout := t.RowTimeout
	if timeout <= 0 {
		timeout = DefaultRowTimeout
	}

	out := make([]dataset.Row, len(rows))
	var success, failure int64

	// Serial probe: walk rows in order until the first success so the
	// fallback shape is established deterministically before any
	// parallel evaluation starts.
	var fallbackKeys []string
	probe := 0
	for ; probe < len(rows); probe++ {
		row, ok := t.applyRow(ctx, proc, rows[probe], nil, timeout)
		out[probe] = row
		if ok {
			success++
			fallbackKeys = row.Keys()
			probe++
			break
		}
		failure++
	}

	if probe < len(rows) {
		workers := t.Workers
		if workers <= 0 {
			workers = runtime.GOMAXPROCS(0)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i := probe; i < len(rows); i++ {
			i := i
			g.Go(func() error {
				row, ok := t.applyRow(gctx, proc, rows[i], fallbackKeys, timeout)
				out[i] = row
				if ok {
					atomic.AddInt64(&success, 1)
				} else {
					atomic.AddInt64(&failure, 1)
				}
				return nil
			})
		}
		_ = g.Wait() // workers never return errors; faults are counted
	}

	return &Result{
		Rows:         out,
		SuccessCount: int(success),
		ErrorCount:   int(failure),
	}, nil
}

// applyRow runs one row through the fault boundary and normalizes the
// outcome. It always returns a row; ok reports whether the procedure
// produced it (as opposed to the fallback chain).
func (t *Transformer) applyRow(ctx context.Context, proc *Procedure, row dataset.Row, fallbackKeys []string, timeout time.Duration) (dataset.Row, bool) {
	out, err := proc.Run(ctx, row, timeout)
	if err != nil {
		return fallbackRow(row, fallbackKeys), false
	}

	normalized, ok := normalizeOutput(out)
	if !ok {
		return fallbackRow(row, fallbackKeys), false
	}
	return normalized, true
}

// normalizeOutput coerces whatever the procedure returned into a row.
// Shape rules, in order: nil becomes an empty row; a record passes through
// unless it has zero keys (invalid, triggers fallback); a list becomes
// item0..itemN; any other scalar is wrapped under "value".
func normalizeOutput(out interface{}) (dataset.Row, bool) {
	switch v := out.(type) {
	case nil:
		return dataset.Row{}, true
	case map[string]interface{}:
		if len(v) == 0 {
			return nil, false
		}
		return dataset.Row(v), true
	case []interface{}:
		row := make(dataset.Row, len(v))
		for i, item := range v {
			row[fmt.Sprintf("item%d", i)] = item
		}
		return row, true
	default:
		return dataset.Row{"value": v}, true
	}
}

// fallbackRow builds the replacement for a faulted row: the shape of the
// first successfully transformed row, else the input row's own shape, else
// an empty row. Values are always blanked.
func fallbackRow(input dataset.Row, fallbackKeys []string) dataset.Row {
	if fallbackKeys != nil {
		return dataset.Blanked(fallbackKeys)
	}
	if len(input) > 0 {
		return dataset.Blanked(input.Keys())
	}
	return dataset.Row{}
}
