// Package sqlite provides an embedded, file-backed record store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"clinicrecords/internal/infra/persistence/sqlstore"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// DefaultPath is used when no database path is configured.
const DefaultPath = "clinicrecords.db"

var dialect = sqlstore.Dialect{
	Name: "sqlite",
	CreateTable: `CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		age INTEGER NOT NULL,
		detail TEXT NOT NULL
	)`,
	SelectAll: `SELECT id, name, age, detail FROM records ORDER BY age, id`,
	Insert:    `INSERT INTO records(id, name, age, detail) VALUES(?, ?, ?, ?)`,
	Update:    `UPDATE records SET name = ?, age = ?, detail = ? WHERE id = ?`,
	Delete:    `DELETE FROM records WHERE id = ?`,
	DeleteAll: `DELETE FROM records`,
}

// Store is a sqlstore.Store bound to a SQLite file.
type Store struct {
	*sqlstore.Store
	path string
}

// NewStore opens (creating if needed) the SQLite database at path and loads
// any records it already holds.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection avoids SQLITE_BUSY between pooled writers
	db.SetMaxOpenConns(1)
	inner, err := sqlstore.Open(context.Background(), db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: inner, path: path}, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
