package core

import (
	"context"
	"errors"
	"testing"

	"clinicrecords/pkg/domain"
)

func ids(records []domain.Record) []int {
	out := make([]int, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestServiceRecordLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	for _, r := range []domain.Record{
		{ID: 1, Name: "Alice", Age: 30, Condition: "Flu"},
		{ID: 2, Name: "Bob", Age: 25, Condition: "Cold"},
		{ID: 3, Name: "Charlie", Age: 35, Condition: "Asthma"},
	} {
		if err := svc.AddRecord(ctx, r); err != nil {
			t.Fatalf("add %d: %v", r.ID, err)
		}
	}
	if got := ids(svc.ListRecordsSorted(ctx)); !equalInts(got, []int{2, 1, 3}) {
		t.Fatalf("after adds got %v", got)
	}
	if err := svc.UpdateRecord(ctx, domain.Record{ID: 2, Name: "Bob", Age: 26, Condition: "Recovered"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := ids(svc.ListRecordsSorted(ctx)); !equalInts(got, []int{2, 1, 3}) {
		t.Fatalf("after update got %v", got)
	}
	rec, ok := svc.GetRecord(ctx, 2)
	if !ok || rec.Condition != "Recovered" || rec.Age != 26 {
		t.Fatalf("unexpected record %+v %v", rec, ok)
	}
	if err := svc.DeleteRecord(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := ids(svc.ListRecordsSorted(ctx)); !equalInts(got, []int{2, 3}) {
		t.Fatalf("after delete got %v", got)
	}
	if svc.CountRecords(ctx) != 2 {
		t.Fatalf("expected 2 records")
	}
	if _, ok := svc.GetRecord(ctx, 1); ok {
		t.Fatalf("deleted record still visible")
	}
}

func TestServicePropagatesStoreErrors(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	if err := svc.AddRecord(ctx, domain.Record{ID: 1, Name: "A", Age: 1, Condition: "x"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"duplicate", svc.AddRecord(ctx, domain.Record{ID: 1, Name: "B", Age: 2, Condition: "y"}), domain.ErrDuplicateKey},
		{"invalid", svc.AddRecord(ctx, domain.Record{ID: 2, Name: "", Age: 2, Condition: "y"}), domain.ErrInvalidInput},
		{"update missing", svc.UpdateRecord(ctx, domain.Record{ID: 9, Name: "B", Age: 2, Condition: "y"}), domain.ErrNotFound},
		{"delete missing", svc.DeleteRecord(ctx, 9), domain.ErrNotFound},
	}
	for _, tc := range cases {
		if !errors.Is(tc.err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, tc.err)
		}
	}
}

func TestServiceHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := NewInMemoryService()
	if err := svc.AddRecord(ctx, domain.Record{ID: 1, Name: "A", Age: 1, Condition: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if svc.Store().Len() != 0 {
		t.Fatalf("cancelled add reached the store")
	}
	snap := domain.Snapshot{Records: []domain.Record{{ID: 2, Name: "B", Age: 2, Condition: "y"}}}
	if err := svc.ImportState(ctx, snap); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from import, got %v", err)
	}
	if svc.Store().Len() != 0 {
		t.Fatalf("cancelled import reached the store")
	}
	if _, err := svc.ExportState(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from export, got %v", err)
	}
}

type listOnlyStore struct {
	domain.RecordStore
}

func TestServiceSnapshots(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	if err := svc.AddRecord(ctx, domain.Record{ID: 1, Name: "A", Age: 10, Condition: "x"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	snap, err := svc.ExportState(ctx)
	if err != nil || len(snap.Records) != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	replacement := domain.Snapshot{Records: []domain.Record{{ID: 5, Name: "E", Age: 3, Condition: "z"}, {ID: 4, Name: "D", Age: 2, Condition: "w"}}}
	if err := svc.ImportState(ctx, replacement); err != nil {
		t.Fatalf("import: %v", err)
	}
	if got := ids(svc.ListRecordsSorted(ctx)); !equalInts(got, []int{4, 5}) {
		t.Fatalf("after import got %v", got)
	}

	plain := NewService(listOnlyStore{RecordStore: svc.Store()})
	if got, err := plain.ExportState(ctx); err != nil || len(got.Records) != 2 {
		t.Fatalf("fallback export returned %+v", got)
	}
	if err := plain.ImportState(ctx, replacement); !errors.Is(err, ErrSnapshotUnsupported) {
		t.Fatalf("expected ErrSnapshotUnsupported, got %v", err)
	}
}
