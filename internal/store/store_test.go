package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/schemalink/internal/dataset"
	"github.com/schemalink/internal/linkage"
	"github.com/schemalink/internal/metrics"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.Init(context.Background()); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return st
}

func TestRunRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	run := &Run{
		Mode:         "fuzzy",
		MatchColumns: []string{"id", "name"},
		SuccessCount: 95,
		ErrorCount:   5,
		Stats: linkage.JoinStats{
			TotalTransformed: 100,
			TotalTarget:      80,
			Matched:          72,
			Unmatched:        28,
			MatchRate:        0.72,
		},
		Metrics: metrics.Metrics{
			Precision:    0.9,
			Recall:       0.9,
			F1Score:      0.9,
			EditDistance: 14,
		},
	}

	if err := st.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if run.ID == "" {
		t.Fatal("SaveRun should assign an id")
	}

	got, err := st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if diff := cmp.Diff(run, got); diff != "" {
		t.Errorf("run mismatch (-saved +loaded):\n%s", diff)
	}
}

func TestGetRunMissing(t *testing.T) {
	st := openTestStore(t)
	_, err := st.GetRun(context.Background(), "no-such-run")
	// Callers distinguish absent rows from store failures.
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	older := &Run{Mode: "exact", MatchColumns: []string{"id"},
		CreatedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)}
	newer := &Run{Mode: "exact", MatchColumns: []string{"id"},
		CreatedAt: time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)}

	if err := st.SaveRun(ctx, older); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveRun(ctx, newer); err != nil {
		t.Fatal(err)
	}

	runs, err := st.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != newer.ID {
		t.Errorf("first run = %s, want the newer one %s", runs[0].ID, newer.ID)
	}
}

func TestListRunsSubsecondOrder(t *testing.T) {
	// A timestamp on the whole second must not sort after one half a
	// second later; the stored text has to order chronologically.
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	older := &Run{Mode: "exact", MatchColumns: []string{"id"}, CreatedAt: base}
	newer := &Run{Mode: "exact", MatchColumns: []string{"id"},
		CreatedAt: base.Add(500 * time.Millisecond)}

	if err := st.SaveRun(ctx, older); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveRun(ctx, newer); err != nil {
		t.Fatal(err)
	}

	runs, err := st.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != newer.ID {
		t.Errorf("first run = %s, want the sub-second newer one %s", runs[0].ID, newer.ID)
	}
}

func TestDatasetRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	ds := &dataset.Dataset{
		Name:    "accounts",
		Columns: []string{"id", "amount"},
		Rows: []dataset.Row{
			{"id": "A", "amount": float64(10)},
			{"id": "B", "amount": float64(20)},
		},
	}

	id, err := st.SaveDataset(ctx, ds)
	if err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}

	got, err := st.GetDataset(ctx, id)
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	if got.Name != "accounts" {
		t.Errorf("name = %q, want accounts", got.Name)
	}
	if diff := cmp.Diff(ds.Rows, got.Rows); diff != "" {
		t.Errorf("rows mismatch (-saved +loaded):\n%s", diff)
	}
}
