// Package postgres provides a Postgres-backed record store that mirrors the
// in-memory semantics and hydrates from the records table on startup.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"clinicrecords/internal/infra/persistence/sqlstore"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	defaultDriver = "pgx"
	// DefaultDSN is used when no DSN is configured.
	DefaultDSN = "postgres://localhost/clinicrecords?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

var dialect = sqlstore.Dialect{
	Name: "postgres",
	CreateTable: `CREATE TABLE IF NOT EXISTS records (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		age INTEGER NOT NULL,
		detail TEXT NOT NULL
	)`,
	SelectAll: `SELECT id, name, age, detail FROM records ORDER BY age, id`,
	Insert:    `INSERT INTO records(id, name, age, detail) VALUES($1, $2, $3, $4)`,
	Update:    `UPDATE records SET name = $1, age = $2, detail = $3 WHERE id = $4`,
	Delete:    `DELETE FROM records WHERE id = $1`,
	DeleteAll: `DELETE FROM records`,
}

// Store is a sqlstore.Store bound to a Postgres database.
type Store struct {
	*sqlstore.Store
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to DefaultDSN), verifies connectivity and loads existing records.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	inner, err := sqlstore.Open(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: inner}, nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
