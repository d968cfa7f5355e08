// Package history keeps a bounded, time-ordered record of snapshots.
package history

import (
	"iter"

	"codeberg.org/mutker/hoststat/internal/errors"
	"codeberg.org/mutker/hoststat/internal/stats"
)

const (
	ErrInvalidCapacity = errors.ErrorCode("history_invalid_capacity")
)

// History is a fixed-capacity ring of snapshots. It grows by appending until
// full and then overwrites the oldest slot. History is not safe for
// concurrent use; see Shared.
type History struct {
	items  []stats.Snapshot
	latest int
}

// New creates an empty History holding at most capacity snapshots.
func New(capacity int) (*History, error) {
	if capacity < 1 {
		return nil, errors.New().WithData(ErrInvalidCapacity, capacity)
	}

	return &History{items: make([]stats.Snapshot, 0, capacity)}, nil
}

// Capacity returns the maximum number of snapshots held.
func (h *History) Capacity() int {
	return cap(h.items)
}

// Len returns the number of snapshots held.
func (h *History) Len() int {
	return len(h.items)
}

func (h *History) full() bool {
	return len(h.items) == cap(h.items)
}

// next returns the ring slot after i.
func (h *History) next(i int) int {
	return (i + 1) % cap(h.items)
}

// Push inserts a snapshot, overwriting the oldest one once full.
func (h *History) Push(s stats.Snapshot) {
	if h.full() {
		h.latest = h.next(h.latest)
		h.items[h.latest] = s
		return
	}

	h.items = append(h.items, s)
	h.latest = len(h.items) - 1
}

// UpdateMostRecent replaces the latest snapshot in place without advancing
// the ring. On an empty history it behaves like Push.
func (h *History) UpdateMostRecent(s stats.Snapshot) {
	if len(h.items) == 0 {
		h.Push(s)
		return
	}

	h.items[h.latest] = s
}

// MostRecent returns the latest snapshot, if any was pushed.
func (h *History) MostRecent() (stats.Snapshot, bool) {
	if len(h.items) == 0 {
		return stats.Snapshot{}, false
	}

	return h.items[h.latest], true
}

// All yields the held snapshots oldest first. The sequence may be ranged
// over any number of times.
func (h *History) All() iter.Seq[stats.Snapshot] {
	return func(yield func(stats.Snapshot) bool) {
		if len(h.items) == 0 {
			return
		}

		i := 0
		if h.full() {
			i = h.next(h.latest)
		}

		for {
			if !yield(h.items[i]) || i == h.latest {
				return
			}
			i = h.next(i)
		}
	}
}

// Snapshots returns a chronological copy of the held snapshots.
func (h *History) Snapshots() []stats.Snapshot {
	out := make([]stats.Snapshot, 0, len(h.items))
	for s := range h.All() {
		out = append(out, s)
	}

	return out
}

// Resize returns a new History of the given capacity holding the newest
// snapshots of h in chronological order.
func Resize(h *History, capacity int) (*History, error) {
	out, err := New(capacity)
	if err != nil {
		return nil, err
	}

	items := h.Snapshots()
	if len(items) > capacity {
		items = items[len(items)-capacity:]
	}
	for _, s := range items {
		out.Push(s)
	}

	return out, nil
}
