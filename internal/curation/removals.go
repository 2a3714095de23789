package curation

import (
	"sync"

	"github.com/desertthunder/cull/internal/models"
)

// RemovalSet accumulates playlist entries slated for removal.
//
// It is append-only and idempotent by entry key ([models.Removal.Key]): recording the
// same entry twice keeps the first. Two copies of one track at different positions are
// separate entries. [RemovalSet.Drain] consumes the set; later records are ignored.
type RemovalSet struct {
	mu      sync.Mutex
	order   []models.Removal
	seen    map[string]struct{}
	drained bool
}

// NewRemovalSet creates an empty [RemovalSet].
func NewRemovalSet() *RemovalSet {
	return &RemovalSet{seen: make(map[string]struct{})}
}

// Record adds r and reports whether it was new.
func (s *RemovalSet) Record(r models.Removal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drained || r.TrackID == "" {
		return false
	}
	key := r.Key()
	if _, ok := s.seen[key]; ok {
		return false
	}

	s.seen[key] = struct{}{}
	s.order = append(s.order, r)
	return true
}

// Contains reports whether the entry with key has been recorded.
func (s *RemovalSet) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[key]
	return ok
}

// Len returns the number of recorded removals.
func (s *RemovalSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Count returns the number of recorded removals with the given reason.
func (s *RemovalSet) Count(reason models.Reason) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.order {
		if r.Reason == reason {
			n++
		}
	}
	return n
}

// Drain returns the removals in recording order and marks the set consumed.
// Only the first call returns entries.
func (s *RemovalSet) Drain() []models.Removal {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drained {
		return nil
	}
	s.drained = true

	out := s.order
	s.order = nil
	return out
}
