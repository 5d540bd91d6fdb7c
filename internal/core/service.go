// Package core hosts the record service facade. Every operation runs through
// a single wrapper that traces, times, audits and logs the store call.
package core

import (
	"context"
	"errors"
	"fmt"

	"clinicrecords/internal/infra/persistence/memory"
	"clinicrecords/pkg/domain"

	"github.com/google/uuid"
)

// Operation names reported to metrics, traces and audit entries.
const (
	OpAddRecord     = "add_record"
	OpGetRecord     = "get_record"
	OpListRecords   = "list_records"
	OpCountRecords  = "count_records"
	OpUpdateRecord  = "update_record"
	OpDeleteRecord  = "delete_record"
	OpExportRecords = "export_records"
	OpImportRecords = "import_records"
)

// ErrSnapshotUnsupported is returned by ImportState for stores that cannot
// replace their state wholesale.
var ErrSnapshotUnsupported = errors.New("store does not support snapshots")

// Service exposes record operations over a RecordStore.
type Service struct {
	store domain.RecordStore
	opts  serviceOptions
}

// NewService constructs a service backed by store.
func NewService(store domain.RecordStore, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{store: store, opts: o}
}

// NewInMemoryService creates a service over a fresh memory store.
func NewInMemoryService(opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(), opts...)
}

// Store returns the underlying store.
func (s *Service) Store() domain.RecordStore {
	return s.store
}

// AddRecord inserts a new record.
func (s *Service) AddRecord(ctx context.Context, r domain.Record) error {
	return s.run(ctx, OpAddRecord, domain.ActionCreate, r.ID, func() error {
		return s.store.Add(r)
	})
}

// GetRecord returns the record stored under id.
func (s *Service) GetRecord(ctx context.Context, id int) (domain.Record, bool) {
	var (
		rec   domain.Record
		found bool
	)
	_ = s.run(ctx, OpGetRecord, domain.ActionRead, id, func() error {
		rec, found = s.store.Get(id)
		return nil
	})
	return rec, found
}

// ListRecordsSorted returns every record ordered by age.
func (s *Service) ListRecordsSorted(ctx context.Context) []domain.Record {
	var out []domain.Record
	_ = s.run(ctx, OpListRecords, domain.ActionRead, 0, func() error {
		out = s.store.ListSorted()
		return nil
	})
	return out
}

// CountRecords returns the number of stored records.
func (s *Service) CountRecords(ctx context.Context) int {
	var n int
	_ = s.run(ctx, OpCountRecords, domain.ActionRead, 0, func() error {
		n = s.store.Len()
		return nil
	})
	return n
}

// UpdateRecord replaces the name, age and condition of an existing record.
func (s *Service) UpdateRecord(ctx context.Context, r domain.Record) error {
	return s.run(ctx, OpUpdateRecord, domain.ActionUpdate, r.ID, func() error {
		return s.store.Update(r)
	})
}

// DeleteRecord removes the record stored under id.
func (s *Service) DeleteRecord(ctx context.Context, id int) error {
	return s.run(ctx, OpDeleteRecord, domain.ActionDelete, id, func() error {
		return s.store.Delete(id)
	})
}

// ExportState snapshots the store. Stores without native snapshots are
// exported through ListSorted.
func (s *Service) ExportState(ctx context.Context) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := s.run(ctx, OpExportRecords, domain.ActionExport, 0, func() error {
		if ss, ok := s.store.(domain.SnapshotStore); ok {
			snap = ss.ExportState()
			return nil
		}
		snap = domain.Snapshot{Records: s.store.ListSorted()}
		return nil
	})
	if err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}

// ImportState replaces the store contents with snap.
func (s *Service) ImportState(ctx context.Context, snap domain.Snapshot) error {
	return s.run(ctx, OpImportRecords, domain.ActionImport, 0, func() error {
		ss, ok := s.store.(domain.SnapshotStore)
		if !ok {
			return fmt.Errorf("%w: %T", ErrSnapshotUnsupported, s.store)
		}
		return ss.ImportState(snap)
	})
}

// run executes fn once the context is live and reports the outcome. Reads
// are traced and measured but not audited.
func (s *Service) run(ctx context.Context, op string, action domain.Action, id int, fn func() error) error {
	start := s.opts.clock.Now()
	ctx, span := s.opts.tracer.Start(ctx, op)
	err := ctx.Err()
	if err == nil {
		err = fn()
	}
	duration := s.opts.clock.Now().Sub(start)
	span.End(err)
	s.opts.metrics.Observe(ctx, op, err == nil, duration)

	if action != domain.ActionRead {
		entry := AuditEntry{
			ID:        uuid.NewString(),
			Operation: op,
			Action:    action,
			RecordID:  id,
			Status:    AuditStatusSuccess,
			Duration:  duration,
			Timestamp: start,
		}
		if err != nil {
			entry.Status = AuditStatusError
			entry.Error = err.Error()
		}
		s.opts.audit.Record(ctx, entry)
	}

	switch {
	case err == nil:
		s.opts.logger.Debug("record operation", "operation", op, "id", id, "duration", duration)
	case isRejection(err):
		s.opts.logger.Warn("record operation rejected", "operation", op, "id", id, "error", err)
	default:
		s.opts.logger.Error("record operation failed", "operation", op, "id", id, "error", err)
	}
	return err
}

func isRejection(err error) bool {
	return errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrDuplicateKey) ||
		errors.Is(err, domain.ErrNotFound)
}
