package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (creating if necessary) a SQLite database at the given
// path. ":memory:" gives an in-process throwaway store, handy for tests and
// one-off CLI runs.
func OpenSQLite(path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// The modernc driver is not safe for concurrent writers; a single
	// connection avoids SQLITE_BUSY on the small write volumes here.
	db.SetMaxOpenConns(1)

	return &sqlStore{db: db, driver: "sqlite"}, nil
}
