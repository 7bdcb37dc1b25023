package crawler

import (
	"slices"
	"sync"

	"github.com/alvmarrod/follow-weaver/internal/storage"
)

// Frontier is a FIFO of ids waiting at one depth. It does not deduplicate:
// siblings may enqueue the same id before either is resolved, and the
// engine's skip-if-present resolution makes the repeat harmless.
type Frontier struct {
	mu    sync.Mutex
	items []storage.NodeID
}

// NewFrontier creates a frontier holding a copy of ids
func NewFrontier(ids []storage.NodeID) *Frontier {
	f := &Frontier{}
	f.Reset(ids)
	return f
}

// Push appends ids in order
func (f *Frontier) Push(ids ...storage.NodeID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, ids...)
}

// PushFront puts id back at the head so it is the next one popped
func (f *Frontier) PushFront(id storage.NodeID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = slices.Insert(f.items, 0, id)
}

// Pop removes and returns the head.
// Returns (id, true) if successful, ("", false) if empty
func (f *Frontier) Pop() (storage.NodeID, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.items) == 0 {
		return "", false
	}
	id := f.items[0]
	f.items = f.items[1:]
	return id, true
}

// Len returns the number of queued ids
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// Entries returns a copy of the queued ids in pop order.
// Used for persisting the frontier on checkpoint
func (f *Frontier) Entries() []storage.NodeID {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries := make([]storage.NodeID, len(f.items))
	copy(entries, f.items)
	return entries
}

// Reset replaces the contents with a copy of ids
func (f *Frontier) Reset(ids []storage.NodeID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items = make([]storage.NodeID, len(ids))
	copy(f.items, ids)
}
