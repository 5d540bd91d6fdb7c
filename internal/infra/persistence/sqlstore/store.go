// Package sqlstore mirrors the in-memory record store into a SQL table. The
// memory store stays authoritative for reads; every accepted mutation is
// written to the database first and applied in memory only once it succeeds.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"clinicrecords/internal/infra/persistence/memory"
	"clinicrecords/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.SnapshotStore = (*Store)(nil)

// Dialect carries the statements that differ between SQL engines.
type Dialect struct {
	Name        string
	CreateTable string
	SelectAll   string
	Insert      string // id, name, age, detail
	Update      string // name, age, detail, id
	Delete      string // id
	DeleteAll   string
}

// Store persists records to a single table while reusing memory.Store for
// all reads and invariant checks.
type Store struct {
	*memory.Store
	db      *sql.DB
	dialect Dialect
	mu      sync.Mutex // serializes write-through so row order matches memory order
}

// Open ensures the records table exists and hydrates a fresh memory store
// from its rows.
func Open(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	if _, err := db.ExecContext(ctx, dialect.CreateTable); err != nil {
		return nil, fmt.Errorf("create records table: %w", err)
	}
	snapshot, err := load(ctx, db, dialect)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore()
	if err := mem.ImportState(snapshot); err != nil {
		return nil, fmt.Errorf("hydrate %s records: %w", dialect.Name, err)
	}
	return &Store{Store: mem, db: db, dialect: dialect}, nil
}

func load(ctx context.Context, db *sql.DB, dialect Dialect) (domain.Snapshot, error) {
	rows, err := db.QueryContext(ctx, dialect.SelectAll)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("select records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot domain.Snapshot
	for rows.Next() {
		var r domain.Record
		if err := rows.Scan(&r.ID, &r.Name, &r.Age, &r.Condition); err != nil {
			return domain.Snapshot{}, fmt.Errorf("scan record: %w", err)
		}
		snapshot.Records = append(snapshot.Records, r)
	}
	if err := rows.Err(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("iterate records: %w", err)
	}
	return snapshot, nil
}

// Add inserts the row for r, then stores r in memory. Memory is only touched
// once the row is written, so readers never observe a failed insert.
func (s *Store) Add(r domain.Record) error {
	if err := r.Validate(); err != nil {
		return domain.Reject(domain.ActionCreate, r.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.Store.Get(r.ID); exists {
		return domain.Reject(domain.ActionCreate, r.ID, domain.ErrDuplicateKey)
	}
	if _, err := s.db.Exec(s.dialect.Insert, r.ID, r.Name, r.Age, r.Condition); err != nil {
		return fmt.Errorf("persist record %d: %w", r.ID, err)
	}
	return s.Store.Add(r)
}

// Update rewrites the row for r, then replaces r in memory.
func (s *Store) Update(r domain.Record) error {
	if err := r.Validate(); err != nil {
		return domain.Reject(domain.ActionUpdate, r.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.Store.Get(r.ID); !exists {
		return domain.Reject(domain.ActionUpdate, r.ID, domain.ErrNotFound)
	}
	if _, err := s.db.Exec(s.dialect.Update, r.Name, r.Age, r.Condition, r.ID); err != nil {
		return fmt.Errorf("persist record %d: %w", r.ID, err)
	}
	return s.Store.Update(r)
}

// Delete removes the row for id, then drops id from memory.
func (s *Store) Delete(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.Store.Get(id); !exists {
		return domain.Reject(domain.ActionDelete, id, domain.ErrNotFound)
	}
	if _, err := s.db.Exec(s.dialect.Delete, id); err != nil {
		return fmt.Errorf("persist record %d: %w", id, err)
	}
	return s.Store.Delete(id)
}

// ImportState replaces the table contents in one SQL transaction and swaps
// memory only after the commit succeeds.
func (s *Store) ImportState(snapshot domain.Snapshot) error {
	// validate on a scratch store so a bad snapshot never reaches the table
	if err := memory.NewStore().ImportState(snapshot); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.Exec(s.dialect.DeleteAll); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	for _, r := range snapshot.Records {
		if _, err := tx.Exec(s.dialect.Insert, r.ID, r.Name, r.Age, r.Condition); err != nil {
			return fmt.Errorf("insert record %d: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return s.Store.ImportState(snapshot)
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
