package sqlite

import (
	"errors"
	"path/filepath"
	"testing"

	"clinicrecords/pkg/domain"

	"github.com/google/go-cmp/cmp"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "records.db")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, path
}

func TestRecordsSurviveReopen(t *testing.T) {
	store, path := openTemp(t)
	for _, r := range []domain.Record{
		{ID: 1, Name: "Alice", Age: 30, Condition: "Flu"},
		{ID: 2, Name: "Bob", Age: 25, Condition: "Cold"},
		{ID: 3, Name: "Charlie", Age: 35, Condition: "Asthma"},
	} {
		if err := store.Add(r); err != nil {
			t.Fatalf("add %d: %v", r.ID, err)
		}
	}
	if err := store.Update(domain.Record{ID: 2, Name: "Bob", Age: 26, Condition: "Recovered from Cold"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.Delete(1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	want := store.ListSorted()
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	if reopened.Path() != path {
		t.Fatalf("expected path %s, got %s", path, reopened.Path())
	}
	if diff := cmp.Diff(want, reopened.ListSorted()); diff != "" {
		t.Fatalf("reloaded records mismatch (-want +got):\n%s", diff)
	}
}

func TestRejectedMutationsNeverReachDatabase(t *testing.T) {
	store, _ := openTemp(t)
	defer func() { _ = store.Close() }()
	if err := store.Add(domain.Record{ID: 1, Name: "Alice", Age: 30, Condition: "Flu"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.Add(domain.Record{ID: 1, Name: "Dup", Age: 40, Condition: "x"}); !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if err := store.Update(domain.Record{ID: 5, Name: "Ghost", Age: 40, Condition: "x"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var rows int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM records`).Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 row, got %d", rows)
	}
}

func TestPersistFailureLeavesMemoryUntouched(t *testing.T) {
	store, _ := openTemp(t)
	if err := store.Add(domain.Record{ID: 1, Name: "Alice", Age: 30, Condition: "Flu"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	_ = store.Close()

	if err := store.Add(domain.Record{ID: 2, Name: "Bob", Age: 25, Condition: "Cold"}); err == nil {
		t.Fatalf("expected persist error after close")
	}
	if _, ok := store.Get(2); ok {
		t.Fatalf("failed add reached memory")
	}
	if err := store.Update(domain.Record{ID: 1, Name: "Alice", Age: 31, Condition: "Flu"}); err == nil {
		t.Fatalf("expected persist error on update")
	}
	if got, _ := store.Get(1); got.Age != 30 {
		t.Fatalf("failed update reached memory, got %+v", got)
	}
	if err := store.Delete(1); err == nil {
		t.Fatalf("expected persist error on delete")
	}
	if _, ok := store.Get(1); !ok {
		t.Fatalf("failed delete reached memory")
	}
}

func TestImportStateReplacesTable(t *testing.T) {
	store, path := openTemp(t)
	if err := store.Add(domain.Record{ID: 9, Name: "Old", Age: 70, Condition: "Gout"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	snap := domain.Snapshot{Records: []domain.Record{
		{ID: 1, Name: "Alice", Age: 30, Condition: "Flu"},
		{ID: 2, Name: "Bob", Age: 25, Condition: "Cold"},
	}}
	if err := store.ImportState(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	_ = store.Close()

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	got := reopened.ListSorted()
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 1 {
		t.Fatalf("unexpected reloaded records %+v", got)
	}
}
