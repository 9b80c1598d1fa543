// Package sqlite implements the storage interfaces on a single-file
// SQLite database. This is the default backend: a lone trader instance
// needs no server, and WAL mode keeps the recorder from blocking reads.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the sql.DB handle for dependency injection.
type DB struct {
	*sql.DB
}

// Open opens (creating if necessary) the database at path and switches it
// to WAL mode. Pass ":memory:" for an ephemeral database.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", strings.TrimSuffix(pragma, ";"), err)
		}
	}

	return &DB{DB: db}, nil
}

// Close closes the database handle.
func (d *DB) Close() error {
	return d.DB.Close()
}

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	// go-sqlite3 exposes sqlite3.Error, but matching on the message avoids
	// importing the driver type into every store.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isNotFoundError checks if error indicates no rows found.
func isNotFoundError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
