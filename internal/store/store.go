// Package store persists run results and uploaded datasets. It is
// collaborator plumbing around the core pipeline: the core never requires
// persistence, the CLI and web layers opt into it. Postgres and SQLite
// backends share one implementation; only connection setup and placeholder
// style differ.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/schemalink/internal/dataset"
	"github.com/schemalink/internal/linkage"
	"github.com/schemalink/internal/metrics"
)

// Run is the persisted summary of one pipeline run. Transformed rows and
// match records are kept out of the store by default; the stats and metrics
// are what review surfaces need.
type Run struct {
	ID           string            `json:"id"`
	CreatedAt    time.Time         `json:"createdAt"`
	Mode         string            `json:"mode"`
	MatchColumns []string          `json:"matchColumns"`
	SuccessCount int               `json:"successCount"`
	ErrorCount   int               `json:"errorCount"`
	Stats        linkage.JoinStats `json:"stats"`
	Metrics      metrics.Metrics   `json:"metrics"`
}

// Store is the persistence boundary used by the CLI and web layers.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	SaveDataset(ctx context.Context, ds *dataset.Dataset) (string, error)
	GetDataset(ctx context.Context, id string) (*dataset.Dataset, error)
	Close() error
}

// Open connects to the named backend: "postgres" (PG* environment) or
// "sqlite" (dsn is the database path).
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case "postgres":
		return OpenPostgres(dsn)
	case "sqlite":
		return OpenSQLite(dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

type sqlStore struct {
	db     *sql.DB
	driver string
}

// timeLayout is RFC3339 with fixed-width nanoseconds. RFC3339Nano drops
// trailing fractional zeros, which breaks the lexicographic ORDER BY on the
// stored text within a second; the fixed-width form sorts chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	mode TEXT NOT NULL,
	match_columns TEXT NOT NULL,
	success_count INTEGER NOT NULL,
	error_count INTEGER NOT NULL,
	stats TEXT NOT NULL,
	metrics TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS datasets (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	columns TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS dataset_rows (
	dataset_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (dataset_id, position)
);`

// Init creates the schema if it does not exist.
func (s *sqlStore) Init(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaDDL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// SaveRun inserts one run summary.
func (s *sqlStore) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	columnsJSON, err := json.Marshal(run.MatchColumns)
	if err != nil {
		return err
	}
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return err
	}
	metricsJSON, err := json.Marshal(run.Metrics)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, s.bind(`
		INSERT INTO runs (id, created_at, mode, match_columns, success_count, error_count, stats, metrics)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID, run.CreatedAt.Format(timeLayout), run.Mode, string(columnsJSON),
		run.SuccessCount, run.ErrorCount, string(statsJSON), string(metricsJSON))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun loads one run summary by id.
func (s *sqlStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, s.bind(`
		SELECT id, created_at, mode, match_columns, success_count, error_count, stats, metrics
		FROM runs WHERE id = ?`), id)
	return scanRun(row)
}

// ListRuns returns the most recent runs, newest first.
func (s *sqlStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.bind(`
		SELECT id, created_at, mode, match_columns, success_count, error_count, stats, metrics
		FROM runs ORDER BY created_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveDataset stores a dataset and its rows, returning the new id.
func (s *sqlStore) SaveDataset(ctx context.Context, ds *dataset.Dataset) (string, error) {
	id := uuid.NewString()

	columnsJSON, err := json.Marshal(ds.Columns)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.bind(`
		INSERT INTO datasets (id, name, columns, created_at) VALUES (?, ?, ?, ?)`),
		id, ds.Name, string(columnsJSON), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return "", fmt.Errorf("insert dataset: %w", err)
	}

	for i, r := range ds.Rows {
		data, err := json.Marshal(r)
		if err != nil {
			return "", err
		}
		_, err = tx.ExecContext(ctx, s.bind(`
			INSERT INTO dataset_rows (dataset_id, position, data) VALUES (?, ?, ?)`),
			id, i, string(data))
		if err != nil {
			return "", fmt.Errorf("insert dataset row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// GetDataset loads a dataset and its rows in stored order.
func (s *sqlStore) GetDataset(ctx context.Context, id string) (*dataset.Dataset, error) {
	var ds dataset.Dataset
	var columnsJSON string
	var createdAt string
	err := s.db.QueryRowContext(ctx, s.bind(`
		SELECT name, columns, created_at FROM datasets WHERE id = ?`), id).
		Scan(&ds.Name, &columnsJSON, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(columnsJSON), &ds.Columns); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.bind(`
		SELECT data FROM dataset_rows WHERE dataset_id = ? ORDER BY position`), id)
	if err != nil {
		return nil, fmt.Errorf("load dataset rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r dataset.Row
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, err
		}
		ds.Rows = append(ds.Rows, r)
	}
	return &ds, rows.Err()
}

// Close closes the underlying connection pool.
func (s *sqlStore) Close() error {
	return s.db.Close()
}

// bind rewrites ? placeholders to $N for postgres; sqlite takes ? as is.
func (s *sqlStore) bind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (*Run, error) {
	var run Run
	var createdAt, columnsJSON, statsJSON, metricsJSON string
	err := sc.Scan(&run.ID, &createdAt, &run.Mode, &columnsJSON,
		&run.SuccessCount, &run.ErrorCount, &statsJSON, &metricsJSON)
	if err != nil {
		return nil, err
	}

	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse run timestamp: %w", err)
	}
	if err := json.Unmarshal([]byte(columnsJSON), &run.MatchColumns); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(statsJSON), &run.Stats); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metricsJSON), &run.Metrics); err != nil {
		return nil, err
	}
	return &run, nil
}
