package domain

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of tracked pairs retained by default.
const DefaultCapacity = 250

// TrackedPair associates a source post with the mirror comment posted for it.
// Pairs are values; they are never mutated after creation.
type TrackedPair struct {
	SourceID   string    `json:"source_id"`
	MirrorID   string    `json:"mirror_id"`
	MirroredAt time.Time `json:"mirrored_at,omitempty"`
}

// PairStore is a bounded, ordered collection of tracked pairs.
// It maintains the invariants that Len() <= Cap() and that no two pairs
// share a SourceID. The oldest pair is evicted first when full.
//
// The poll loop is the only writer. The mutex lets a shutdown save take a
// consistent snapshot from another goroutine.
type PairStore struct {
	mu       sync.Mutex
	capacity int
	pairs    []TrackedPair
	sources  map[string]struct{}
	dirty    bool
}

// NewPairStore creates an empty store with the given capacity.
// A non-positive capacity falls back to DefaultCapacity.
func NewPairStore(capacity int) *PairStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &PairStore{
		capacity: capacity,
		pairs:    make([]TrackedPair, 0, capacity),
		sources:  make(map[string]struct{}, capacity),
	}
}

// RestorePairStore rebuilds a store from a persisted ordered image.
// When the image holds more pairs than capacity, the most recent ones are kept.
// Duplicate source ids keep their first occurrence.
func RestorePairStore(capacity int, pairs []TrackedPair) *PairStore {
	s := NewPairStore(capacity)
	if len(pairs) > s.capacity {
		pairs = pairs[len(pairs)-s.capacity:]
	}
	for _, p := range pairs {
		if p.SourceID == "" || p.MirrorID == "" {
			continue
		}
		s.appendLocked(p)
	}
	s.dirty = false
	return s
}

// Append adds pair as the newest entry, evicting the oldest when full.
// Returns false without changes if pair.SourceID is already tracked.
func (s *PairStore) Append(pair TrackedPair) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(pair)
}

func (s *PairStore) appendLocked(pair TrackedPair) bool {
	if _, ok := s.sources[pair.SourceID]; ok {
		return false
	}
	if len(s.pairs) >= s.capacity {
		oldest := s.pairs[0]
		delete(s.sources, oldest.SourceID)
		// copy down instead of reslicing so the backing array doesn't grow
		copy(s.pairs, s.pairs[1:])
		s.pairs = s.pairs[:len(s.pairs)-1]
	}
	s.pairs = append(s.pairs, pair)
	s.sources[pair.SourceID] = struct{}{}
	s.dirty = true
	return true
}

// ContainsSource reports whether a source post is already mirrored.
func (s *PairStore) ContainsSource(sourceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sources[sourceID]
	return ok
}

// EvictIf removes every pair for which pred returns true and returns the
// number removed. pred sees a snapshot, so it may be slow or call back into
// the store's read methods.
func (s *PairStore) EvictIf(pred func(TrackedPair) bool) int {
	snapshot := s.Snapshot()

	drop := make(map[string]struct{})
	for _, p := range snapshot {
		if pred(p) {
			drop[p.SourceID] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.pairs[:0]
	removed := 0
	for _, p := range s.pairs {
		if _, ok := drop[p.SourceID]; ok {
			delete(s.sources, p.SourceID)
			removed++
			continue
		}
		kept = append(kept, p)
	}
	s.pairs = kept
	if removed > 0 {
		s.dirty = true
	}
	return removed
}

// Snapshot returns a copy of the pairs, oldest first.
func (s *PairStore) Snapshot() []TrackedPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TrackedPair, len(s.pairs))
	copy(out, s.pairs)
	return out
}

// MirrorIDs returns the set of tracked mirror comment ids.
func (s *PairStore) MirrorIDs() map[string]TrackedPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]TrackedPair, len(s.pairs))
	for _, p := range s.pairs {
		out[p.MirrorID] = p
	}
	return out
}

// Len returns the number of tracked pairs.
func (s *PairStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pairs)
}

// Cap returns the store capacity.
func (s *PairStore) Cap() int {
	return s.capacity
}

// Dirty reports whether the store changed since the last MarkClean.
func (s *PairStore) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// MarkClean records that the current contents have been persisted.
func (s *PairStore) MarkClean() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
}
