package memory

import (
	"sort"
	"testing"
)

func ids(records []Record) []int {
	out := make([]int, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

// checkOrdered verifies a listing is Age-ordered and holds each ID once.
func checkOrdered(t *testing.T, records []Record) {
	t.Helper()
	seen := make(map[int]struct{}, len(records))
	for i, r := range records {
		if _, dup := seen[r.ID]; dup {
			t.Fatalf("record %d listed twice: %v", r.ID, ids(records))
		}
		seen[r.ID] = struct{}{}
		if i > 0 && records[i-1].Age > r.Age {
			t.Fatalf("listing not sorted by age at %d: %+v", i, records)
		}
	}
}

// checkInvariants inspects both views directly; callers must not race with writers.
func checkInvariants(t *testing.T, s *Store) {
	t.Helper()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.byID) != len(s.byAge) {
		t.Fatalf("views disagree in size: byID=%d byAge=%d", len(s.byID), len(s.byAge))
	}
	if !sort.SliceIsSorted(s.byAge, func(i, j int) bool { return s.byAge[i].Age < s.byAge[j].Age }) {
		t.Fatalf("ordered view not sorted: %+v", s.byAge)
	}
	for _, r := range s.byAge {
		indexed, ok := s.byID[r.ID]
		if !ok {
			t.Fatalf("record %d in ordered view but not in index", r.ID)
		}
		if indexed != r {
			t.Fatalf("views disagree for %d: %+v vs %+v", r.ID, indexed, r)
		}
	}
}

func seed(t *testing.T, s *Store, records ...Record) {
	t.Helper()
	for _, r := range records {
		if err := s.Add(r); err != nil {
			t.Fatalf("seed %d: %v", r.ID, err)
		}
	}
}
