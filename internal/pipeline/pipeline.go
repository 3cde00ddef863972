// Package pipeline orchestrates the full mapping run: sandboxed row
// transformation, record linkage against the target dataset, and the
// positional quality metrics. Each run owns its compiled procedure and its
// counters, so independent runs are safe to execute concurrently.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/schemalink/internal/dataset"
	"github.com/schemalink/internal/debug"
	"github.com/schemalink/internal/linkage"
	"github.com/schemalink/internal/metrics"
	"github.com/schemalink/internal/transform"
)

// Request carries everything one run needs. Rows are supplied in-process;
// how they were produced (CSV, JSON, database, upload) is the caller's
// concern.
type Request struct {
	Source    []dataset.Row
	Target    []dataset.Row
	Procedure string
	Link      linkage.Options
	// RowTimeout bounds each procedure evaluation; zero uses the
	// transformer default.
	RowTimeout time.Duration
	// Workers caps parallelism in the transform and fuzzy-link phases.
	Workers int
}

// RunResult is the assembled outcome of one run.
type RunResult struct {
	RunID        string                `json:"runId"`
	Transformed  []dataset.Row         `json:"transformed"`
	SuccessCount int                   `json:"successCount"`
	ErrorCount   int                   `json:"errorCount"`
	Records      []linkage.MatchRecord `json:"records"`
	Stats        linkage.JoinStats     `json:"stats"`
	Metrics      metrics.Metrics       `json:"metrics"`
	Duration     time.Duration         `json:"duration"`
}

// Run executes transform, link and score for one request.
//
// A malformed procedure or an invalid join spec aborts the run with a typed
// error. Per-row transform faults never abort: they are absorbed into
// fallback rows and reported through SuccessCount/ErrorCount, which callers
// presenting results to users must surface so silent degradation stays
// discoverable.
func Run(ctx context.Context, req Request) (*RunResult, error) {
	start := time.Now()
	defer debug.Timing("pipeline run")()

	tr := &transform.Transformer{
		RowTimeout: req.RowTimeout,
		Workers:    req.Workers,
	}
	transformed, err := tr.Apply(ctx, req.Source, req.Procedure)
	if err != nil {
		return nil, fmt.Errorf("transform stage: %w", err)
	}
	debug.Logf("transformed %d rows (%d ok, %d faulted)",
		len(transformed.Rows), transformed.SuccessCount, transformed.ErrorCount)

	linkOpts := req.Link
	if linkOpts.Workers == 0 {
		linkOpts.Workers = req.Workers
	}
	records, stats, err := linkage.Link(transformed.Rows, req.Target, linkOpts)
	if err != nil {
		return nil, fmt.Errorf("link stage: %w", err)
	}
	debug.Logf("linked %d/%d rows (rate %.3f)", stats.Matched, stats.TotalTransformed, stats.MatchRate)

	// The metric comparison is positional and independent of the join.
	score := metrics.Score(transformed.Rows, req.Target)

	return &RunResult{
		RunID:        uuid.NewString(),
		Transformed:  transformed.Rows,
		SuccessCount: transformed.SuccessCount,
		ErrorCount:   transformed.ErrorCount,
		Records:      records,
		Stats:        stats,
		Metrics:      score,
		Duration:     time.Since(start),
	}, nil
}
