package history

import (
	"sync"

	"codeberg.org/mutker/hoststat/internal/stats"
)

// Shared guards a History with a single mutex. The update loop writes
// through it and any number of readers copy out of it. Every method holds
// the lock only for the duration of one operation.
type Shared struct {
	mu sync.Mutex
	h  *History
}

// NewShared wraps h. The caller must not use h directly afterwards.
func NewShared(h *History) *Shared {
	return &Shared{h: h}
}

func (s *Shared) Push(snapshot stats.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.h.Push(snapshot)
}

func (s *Shared) UpdateMostRecent(snapshot stats.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.h.UpdateMostRecent(snapshot)
}

func (s *Shared) MostRecent() (stats.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h.MostRecent()
}

// Snapshots returns a chronological copy taken under the lock.
func (s *Shared) Snapshots() []stats.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h.Snapshots()
}

func (s *Shared) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h.Len()
}

func (s *Shared) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h.Capacity()
}
