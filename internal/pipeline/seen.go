package pipeline

import "sync"

// SeenSet is the per-chat set of message identifiers already persisted
// or queued. Hydrated from the store at fetch start, marked in memory
// as candidates are accepted, and rolled back when a flush fails so the
// affected messages stay eligible for re-persistence.
type SeenSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewSeenSet creates a seen-set hydrated with the given identifiers.
func NewSeenSet(ids []string) *SeenSet {
	s := &SeenSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// MarkIfNew is the dedup accept decision: it reports whether id was
// unseen and, if so, marks it seen in the same critical section. Two
// overlapping extraction windows racing on the same candidate cannot
// both accept it. First-seen-wins.
func (s *SeenSet) MarkIfNew(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Forget removes identifiers, making them eligible again. Called by the
// batch writer when a flush fails.
func (s *SeenSet) Forget(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.ids, id)
	}
}

// Len returns the number of seen identifiers.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
