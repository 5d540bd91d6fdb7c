// Package memory provides the in-memory dual-index record store that every
// persistence backend builds on.
package memory

import (
	"clinicrecords/pkg/domain"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.SnapshotStore = (*Store)(nil)

type (
	// Record aliases domain.Record for in-memory persistence operations.
	Record = domain.Record
	// Snapshot aliases domain.Snapshot.
	Snapshot = domain.Snapshot
)

// Store keeps records in two views guarded by one RWMutex: byID for point
// lookup and byAge, kept sorted by Age, for ordered enumeration. Both views
// hold the same set of IDs with identical field values whenever the lock is
// released.
type Store struct {
	mu    sync.RWMutex
	byID  map[int]Record
	byAge []Record
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{byID: make(map[int]Record)}
}

// Add inserts r. Validation runs before the lock is taken.
func (s *Store) Add(r Record) error {
	if err := r.Validate(); err != nil {
		return domain.Reject(domain.ActionCreate, r.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[r.ID]; exists {
		return domain.Reject(domain.ActionCreate, r.ID, domain.ErrDuplicateKey)
	}
	s.byID[r.ID] = r
	s.insertSorted(r)
	return nil
}

// Get returns a copy of the record stored under id.
func (s *Store) Get(id int) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	return r, ok
}

// ListSorted returns copies of every record ordered by ascending Age. Records
// sharing an Age appear in no particular order.
func (s *Store) ListSorted() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.byAge)
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Update replaces the mutable fields of the record stored under r.ID and
// repositions it in the ordered view.
func (s *Store) Update(r Record) error {
	if err := r.Validate(); err != nil {
		return domain.Reject(domain.ActionUpdate, r.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[r.ID]
	if !ok {
		return domain.Reject(domain.ActionUpdate, r.ID, domain.ErrNotFound)
	}
	s.removeSorted(current)
	s.byID[r.ID] = r
	s.insertSorted(r)
	return nil
}

// Delete removes the record stored under id from both views.
func (s *Store) Delete(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[id]
	if !ok {
		return domain.Reject(domain.ActionDelete, id, domain.ErrNotFound)
	}
	delete(s.byID, id)
	s.removeSorted(current)
	return nil
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Records: slices.Clone(s.byAge)}
}

// ImportState replaces the store state with the provided snapshot. Every
// record is validated and IDs must be unique; on error nothing changes.
func (s *Store) ImportState(snapshot Snapshot) error {
	byID := make(map[int]Record, len(snapshot.Records))
	for _, r := range snapshot.Records {
		if err := r.Validate(); err != nil {
			return domain.Reject(domain.ActionImport, r.ID, err)
		}
		if _, exists := byID[r.ID]; exists {
			return domain.Reject(domain.ActionImport, r.ID, fmt.Errorf("%w in snapshot", domain.ErrDuplicateKey))
		}
		byID[r.ID] = r
	}
	byAge := slices.Clone(snapshot.Records)
	sort.Slice(byAge, func(i, j int) bool { return byAge[i].Age < byAge[j].Age })

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = byID
	s.byAge = byAge
	return nil
}

// insertSorted splices r after every record with Age <= r.Age. Caller holds the write lock.
func (s *Store) insertSorted(r Record) {
	i := sort.Search(len(s.byAge), func(i int) bool { return s.byAge[i].Age > r.Age })
	s.byAge = slices.Insert(s.byAge, i, r)
}

// removeSorted drops the single ordered entry for current. current must be the
// value held in byID so its Age locates the run of candidates. Caller holds
// the write lock.
func (s *Store) removeSorted(current Record) {
	i := sort.Search(len(s.byAge), func(i int) bool { return s.byAge[i].Age >= current.Age })
	for ; i < len(s.byAge) && s.byAge[i].Age == current.Age; i++ {
		if s.byAge[i].ID == current.ID {
			s.byAge = slices.Delete(s.byAge, i, i+1)
			return
		}
	}
	// unreachable while byID and byAge hold the same IDs
	panic(fmt.Errorf("memory: record %d missing from ordered view", current.ID))
}
