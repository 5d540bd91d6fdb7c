// Package backup writes record store snapshots to a blob store as JSON and
// restores them.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"clinicrecords/internal/blob"
	"clinicrecords/pkg/domain"
)

// FormatVersion is the document version written by Export.
const FormatVersion = 1

// Prefix is the key prefix every backup lives under.
const Prefix = "backups/"

const contentType = "application/json"

// Document is the serialised backup.
type Document struct {
	Version    int             `json:"version"`
	ExportedAt time.Time       `json:"exported_at"`
	Records    []domain.Record `json:"records"`
}

// Exporter snapshots a record store; core.Service satisfies it.
type Exporter interface {
	ExportState(ctx context.Context) (domain.Snapshot, error)
}

// Importer replaces a store's contents.
type Importer interface {
	ImportState(ctx context.Context, snap domain.Snapshot) error
}

// DefaultKey names a backup taken at t.
func DefaultKey(t time.Time) string {
	return Prefix + "records-" + t.UTC().Format("20060102T150405.000000000Z") + ".json"
}

// Export snapshots src into blobs under key, or DefaultKey(now) when key is
// empty. Existing keys are never overwritten.
func Export(ctx context.Context, src Exporter, blobs blob.Store, key string) (blob.Info, error) {
	now := time.Now().UTC()
	if key == "" {
		key = DefaultKey(now)
	}
	snap, err := src.ExportState(ctx)
	if err != nil {
		return blob.Info{}, fmt.Errorf("export records: %w", err)
	}
	doc := Document{Version: FormatVersion, ExportedAt: now, Records: snap.Records}
	if doc.Records == nil {
		doc.Records = []domain.Record{}
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode backup: %w", err)
	}
	info, err := blobs.Put(ctx, key, bytes.NewReader(b), blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"records": strconv.Itoa(len(doc.Records))},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("write backup %s: %w", key, err)
	}
	return info, nil
}

// Restore loads the backup at key into dst and returns the number of records
// restored. dst is left untouched when the document is unreadable or rejected.
func Restore(ctx context.Context, dst Importer, blobs blob.Store, key string) (int, error) {
	if key == "" {
		return 0, fmt.Errorf("backup key required")
	}
	doc, err := Read(ctx, blobs, key)
	if err != nil {
		return 0, err
	}
	if err := dst.ImportState(ctx, domain.Snapshot{Records: doc.Records}); err != nil {
		return 0, fmt.Errorf("restore %s: %w", key, err)
	}
	return len(doc.Records), nil
}

// Read fetches and decodes the backup at key.
func Read(ctx context.Context, blobs blob.Store, key string) (Document, error) {
	_, rc, err := blobs.Get(ctx, key)
	if err != nil {
		return Document{}, fmt.Errorf("read backup %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	var doc Document
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode backup %s: %w", key, err)
	}
	if doc.Version != FormatVersion {
		return Document{}, fmt.Errorf("backup %s: unsupported version %d", key, doc.Version)
	}
	return doc, nil
}

// List returns backups ordered by key, which for default keys is also
// chronological.
func List(ctx context.Context, blobs blob.Store) ([]blob.Info, error) {
	infos, err := blobs.List(ctx, Prefix)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	return infos, nil
}
