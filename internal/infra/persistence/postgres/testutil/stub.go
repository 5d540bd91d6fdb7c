// Package testutil provides a stub database that understands the records
// table statements issued by the postgres store.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

var stubSeq atomic.Uint64

// StubConn records executed statements and keeps records rows in memory.
type StubConn struct {
	mu         sync.Mutex
	Execs      []string
	Rows       map[int64][]driver.Value // id -> id, name, age, detail
	FailPing   bool
	FailExec   bool
	FailQuery  bool
	FailBegin  bool
	FailCommit bool
	// ExecHook, when set, runs before each statement without the connection
	// lock held; a non-nil error fails the statement.
	ExecHook func(query string) error
}

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Rows: make(map[int64][]driver.Value)}
	name := fmt.Sprintf("stubpg%d", stubSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Seed inserts a row directly, bypassing the store.
func (c *StubConn) Seed(id int64, name string, age int64, detail string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Rows[id] = []driver.Value{id, name, age, detail}
}

// Set toggles failure switches under the connection lock.
func (c *StubConn) Set(fn func(*StubConn)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

// Snapshot returns the executed statements and a copy of the stored rows.
func (c *StubConn) Snapshot() ([]string, map[int64][]driver.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows := make(map[int64][]driver.Value, len(c.Rows))
	for k, v := range c.Rows {
		rows[k] = append([]driver.Value(nil), v...)
	}
	return append([]string(nil), c.Execs...), rows
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(_ context.Context, _ driver.TxOptions) (driver.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	return &stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	hook := c.ExecHook
	c.mu.Unlock()
	var hookErr error
	if hook != nil {
		hookErr = hook(query)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	if hookErr != nil {
		return nil, hookErr
	}
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	stmt := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(stmt, "CREATE TABLE"):
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(stmt, "INSERT INTO RECORDS"):
		if len(args) != 4 {
			return nil, fmt.Errorf("insert expects 4 args, got %d", len(args))
		}
		id, _ := args[0].Value.(int64)
		if _, exists := c.Rows[id]; exists {
			return nil, fmt.Errorf("duplicate key value violates unique constraint \"records_pkey\"")
		}
		c.Rows[id] = []driver.Value{id, args[1].Value, args[2].Value, args[3].Value}
		return driver.RowsAffected(1), nil
	case strings.HasPrefix(stmt, "UPDATE RECORDS"):
		if len(args) != 4 {
			return nil, fmt.Errorf("update expects 4 args, got %d", len(args))
		}
		id, _ := args[3].Value.(int64)
		if _, exists := c.Rows[id]; !exists {
			return driver.RowsAffected(0), nil
		}
		c.Rows[id] = []driver.Value{id, args[0].Value, args[1].Value, args[2].Value}
		return driver.RowsAffected(1), nil
	case strings.HasPrefix(stmt, "DELETE FROM RECORDS WHERE"):
		if len(args) != 1 {
			return nil, fmt.Errorf("delete expects 1 arg, got %d", len(args))
		}
		id, _ := args[0].Value.(int64)
		delete(c.Rows, id)
		return driver.RowsAffected(1), nil
	case strings.HasPrefix(stmt, "DELETE FROM RECORDS"):
		n := len(c.Rows)
		c.Rows = make(map[int64][]driver.Value)
		return driver.RowsAffected(int64(n)), nil
	}
	return nil, fmt.Errorf("unsupported statement: %s", query)
}

// QueryContext implements driver.QueryerContext for the records select.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailQuery {
		return nil, fmt.Errorf("query fail")
	}
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT ID, NAME, AGE, DETAIL FROM RECORDS") {
		return nil, fmt.Errorf("unsupported query: %s", query)
	}
	values := make([][]driver.Value, 0, len(c.Rows))
	for _, row := range c.Rows {
		values = append(values, append([]driver.Value(nil), row...))
	}
	sort.Slice(values, func(i, j int) bool {
		ai, _ := values[i][2].(int64)
		aj, _ := values[j][2].(int64)
		if ai != aj {
			return ai < aj
		}
		ii, _ := values[i][0].(int64)
		ij, _ := values[j][0].(int64)
		return ii < ij
	})
	return &stubRows{cols: []string{"id", "name", "age", "detail"}, rows: values}, nil
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	if t.conn.FailCommit {
		return fmt.Errorf("commit fail")
	}
	return nil
}

func (t *stubTx) Rollback() error { return nil }

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
