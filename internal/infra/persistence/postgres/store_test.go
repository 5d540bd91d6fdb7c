package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"clinicrecords/internal/infra/persistence/postgres/testutil"
	"clinicrecords/pkg/domain"
)

func openStub(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	return mustOpen(t), conn
}

func mustOpen(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestNewStoreCreatesTableAndHydrates(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.Seed(1, "Alice", 30, "Flu")
	conn.Seed(2, "Bob", 25, "Cold")
	var gotDriver, gotDSN string
	restore := OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		gotDriver, gotDSN = driverName, dsn
		return db, nil
	})
	defer restore()

	store := mustOpen(t)
	if gotDriver != "pgx" || gotDSN != DefaultDSN {
		t.Fatalf("unexpected open args driver=%s dsn=%s", gotDriver, gotDSN)
	}
	got := store.ListSorted()
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 1 {
		t.Fatalf("unexpected hydrated records %+v", got)
	}
	execs, _ := conn.Snapshot()
	if len(execs) == 0 || !strings.Contains(strings.ToUpper(execs[0]), "CREATE TABLE") {
		t.Fatalf("expected table DDL first, got %v", execs)
	}
}

func TestMutationsWriteThrough(t *testing.T) {
	store, conn := openStub(t)
	if err := store.Add(domain.Record{ID: 1, Name: "Alice", Age: 30, Condition: "Flu"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.Add(domain.Record{ID: 2, Name: "Bob", Age: 25, Condition: "Cold"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.Update(domain.Record{ID: 2, Name: "Bob", Age: 26, Condition: "Recovered"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.Delete(1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, rows := conn.Snapshot()
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %v", rows)
	}
	row := rows[2]
	if row[1] != "Bob" || row[2] != int64(26) || row[3] != "Recovered" {
		t.Fatalf("unexpected row %v", row)
	}
}

func TestRejectedOperationsSkipDatabase(t *testing.T) {
	store, conn := openStub(t)
	before, _ := conn.Snapshot()
	if err := store.Delete(7); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Add(domain.Record{ID: 0, Name: "x", Age: 1, Condition: "y"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	after, _ := conn.Snapshot()
	if len(after) != len(before) {
		t.Fatalf("rejected operations issued statements: %v", after[len(before):])
	}
}

func TestExecFailureLeavesMemoryUntouched(t *testing.T) {
	store, conn := openStub(t)
	conn.Set(func(c *testutil.StubConn) { c.FailExec = true })
	err := store.Add(domain.Record{ID: 1, Name: "Alice", Age: 30, Condition: "Flu"})
	if err == nil || !strings.Contains(err.Error(), "persist record 1") {
		t.Fatalf("expected persist error, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("failed add reached memory, got %d records", store.Len())
	}
}

func TestImportStateCommitFailureKeepsMemory(t *testing.T) {
	store, conn := openStub(t)
	if err := store.Add(domain.Record{ID: 1, Name: "Alice", Age: 30, Condition: "Flu"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	replacement := domain.Snapshot{Records: []domain.Record{{ID: 5, Name: "Eve", Age: 44, Condition: "Migraine"}}}
	conn.Set(func(c *testutil.StubConn) { c.FailCommit = true })
	if err := store.ImportState(replacement); err == nil {
		t.Fatalf("expected commit failure")
	}
	if _, ok := store.Get(1); !ok || store.Len() != 1 {
		t.Fatalf("expected previous state restored, got %+v", store.ListSorted())
	}

	conn.Set(func(c *testutil.StubConn) { c.FailCommit = false })
	if err := store.ImportState(replacement); err != nil {
		t.Fatalf("import: %v", err)
	}
	_, rows := conn.Snapshot()
	if _, ok := rows[5]; !ok || len(rows) != 1 {
		t.Fatalf("expected table replaced, got %v", rows)
	}
	if got, ok := store.Get(5); !ok || got.Name != "Eve" {
		t.Fatalf("expected imported record in memory, got %+v", got)
	}
}

func TestNewStoreErrors(t *testing.T) {
	cases := []struct {
		name string
		fail func(*testutil.StubConn)
		want string
	}{
		{"ping", func(c *testutil.StubConn) { c.FailPing = true }, "ping postgres"},
		{"ddl", func(c *testutil.StubConn) { c.FailExec = true }, "create records table"},
		{"select", func(c *testutil.StubConn) { c.FailQuery = true }, "select records"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, conn := testutil.NewStubDB()
			conn.Set(tc.fail)
			restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
			defer restore()
			_, err := NewStore(context.Background(), "postgres://stub")
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q error, got %v", tc.want, err)
			}
		})
	}

	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("boom") })
	defer restore()
	if _, err := NewStore(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}
}
