package poll

import (
	"sync"
	"time"

	"github.com/nerrad567/domo-bridge/internal/element"
)

// Store holds the last published state for every element.
//
// Poll cycles replace the whole map; command verification and
// optimistic predictions merge fragments into single elements. Reads
// return deep copies so callers can never mutate the published data.
//
// All methods are safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	states    map[string]element.State
	updatedAt time.Time
	stale     bool
}

// NewStore creates an empty state store.
func NewStore() *Store {
	return &Store{states: map[string]element.State{}}
}

// ReplaceAll swaps in a full set of element states from a completed
// poll cycle and clears the stale flag.
func (s *Store) ReplaceAll(states map[string]element.State) {
	copied := make(map[string]element.State, len(states))
	for id, state := range states {
		copied[id] = state.DeepCopy()
	}

	s.mu.Lock()
	s.states = copied
	s.updatedAt = time.Now().UTC()
	s.stale = false
	s.mu.Unlock()
}

// Get returns a copy of one element's state. The second return value
// is false when the element has no published state.
func (s *Store) Get(elementID string) (element.State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[elementID]
	if !ok {
		return nil, false
	}
	return state.DeepCopy(), true
}

// All returns a copy of every published element state.
func (s *Store) All() map[string]element.State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make(map[string]element.State, len(s.states))
	for id, state := range s.states {
		copied[id] = state.DeepCopy()
	}
	return copied
}

// MergeElement overlays a fragment onto one element's state and
// returns a copy of the merged result. Elements without published
// state start from empty, so verification results arriving before the
// first poll still land.
func (s *Store) MergeElement(elementID string, fragment element.State) element.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.states[elementID].Merge(fragment)
	s.states[elementID] = merged
	return merged.DeepCopy()
}

// MarkStale flags the current states as outdated after a failed cycle.
// The states themselves are retained.
func (s *Store) MarkStale() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

// Stale reports whether the held states predate the last failed cycle.
func (s *Store) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale
}

// UpdatedAt returns the time of the last successful full replace.
func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Len returns the number of elements with published state.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}
