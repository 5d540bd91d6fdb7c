package backup

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"clinicrecords/internal/blob"
	blobmem "clinicrecords/internal/infra/blob/memory"
	"clinicrecords/internal/infra/persistence/memory"
	"clinicrecords/pkg/domain"

	"github.com/google/go-cmp/cmp"
)

// recordStore gives a bare memory store the context-aware snapshot methods.
type recordStore struct {
	*memory.Store
}

func newStore() recordStore { return recordStore{Store: memory.NewStore()} }

func (s recordStore) ExportState(ctx context.Context) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}
	return s.Store.ExportState(), nil
}

func (s recordStore) ImportState(ctx context.Context, snap domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.ImportState(snap)
}

func seeded(t *testing.T) recordStore {
	t.Helper()
	s := newStore()
	for _, r := range []domain.Record{
		{ID: 1, Name: "Alice", Age: 30, Condition: "Flu"},
		{ID: 2, Name: "Bob", Age: 25, Condition: "Cold"},
		{ID: 3, Name: "Charlie", Age: 35, Condition: "Asthma"},
	} {
		if err := s.Add(r); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return s
}

func TestExportRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := seeded(t)
	blobs := blobmem.New()

	info, err := Export(ctx, src, blobs, "")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.HasPrefix(info.Key, Prefix+"records-") || !strings.HasSuffix(info.Key, ".json") {
		t.Fatalf("unexpected default key %q", info.Key)
	}
	if info.Metadata["records"] != "3" || info.ContentType != "application/json" {
		t.Fatalf("unexpected info %+v", info)
	}

	dst := newStore()
	if err := dst.Add(domain.Record{ID: 9, Name: "Old", Age: 80, Condition: "Gone"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	n, err := Restore(ctx, dst, blobs, info.Key)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if n != 3 {
		t.Fatalf("restored %d records, want 3", n)
	}
	if diff := cmp.Diff(src.ListSorted(), dst.ListSorted()); diff != "" {
		t.Fatalf("restored state mismatch (-want +got):\n%s", diff)
	}
}

func TestExportEmptyStore(t *testing.T) {
	ctx := context.Background()
	blobs := blobmem.New()
	if _, err := Export(ctx, newStore(), blobs, "backups/empty.json"); err != nil {
		t.Fatalf("Export: %v", err)
	}
	doc, err := Read(ctx, blobs, "backups/empty.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if doc.Records == nil || len(doc.Records) != 0 || doc.Version != FormatVersion {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestExportNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	blobs := blobmem.New()
	src := seeded(t)
	if _, err := Export(ctx, src, blobs, "backups/fixed.json"); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if _, err := Export(ctx, src, blobs, "backups/fixed.json"); !errors.Is(err, blob.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestRestoreRejectsBadDocuments(t *testing.T) {
	ctx := context.Background()
	blobs := blobmem.New()
	put := func(key, body string) {
		t.Helper()
		if _, err := blobs.Put(ctx, key, strings.NewReader(body), blob.PutOptions{}); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	put("backups/v2.json", `{"version":2,"records":[]}`)
	put("backups/garbage.json", `not json`)
	put("backups/dup.json", `{"version":1,"records":[{"id":1,"name":"A","age":1,"condition":"x"},{"id":1,"name":"B","age":2,"condition":"y"}]}`)

	dst := seeded(t)
	before := dst.ListSorted()
	cases := map[string]string{
		"backups/v2.json":      "unsupported version",
		"backups/garbage.json": "decode backup",
		"backups/dup.json":     "duplicate key",
		"backups/missing.json": "blob not found",
		"":                     "key required",
	}
	for key, want := range cases {
		if _, err := Restore(ctx, dst, blobs, key); err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("Restore(%q): expected %q, got %v", key, want, err)
		}
	}
	if diff := cmp.Diff(before, dst.ListSorted()); diff != "" {
		t.Fatalf("failed restore mutated store (-want +got):\n%s", diff)
	}
}

func TestListReturnsBackupsInOrder(t *testing.T) {
	ctx := context.Background()
	blobs := blobmem.New()
	src := seeded(t)
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	keys := []string{DefaultKey(base.Add(time.Hour)), DefaultKey(base)}
	for _, k := range keys {
		if _, err := Export(ctx, src, blobs, k); err != nil {
			t.Fatalf("Export: %v", err)
		}
	}
	if _, err := blobs.Put(ctx, "unrelated.txt", strings.NewReader("x"), blob.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	infos, err := List(ctx, blobs)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != keys[1] || infos[1].Key != keys[0] {
		t.Fatalf("unexpected backups %+v", infos)
	}
}

func TestCancelledContextStopsExportAndRestore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	blobs := blobmem.New()
	if _, err := Export(ctx, seeded(t), blobs, "backups/cancelled.json"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from Export, got %v", err)
	}
	if _, err := Export(context.Background(), seeded(t), blobs, "backups/ok.json"); err != nil {
		t.Fatalf("Export: %v", err)
	}
	dst := newStore()
	if _, err := Restore(ctx, dst, blobs, "backups/ok.json"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from Restore, got %v", err)
	}
	if dst.Len() != 0 {
		t.Fatalf("cancelled restore mutated store")
	}
}
