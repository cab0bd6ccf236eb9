package engine

import "sync"

// ActiveIndex tracks the IDs of currently active orders. Removal swaps
// the removed ID with the last element and truncates, so both Add and
// Remove are O(1) and the slice stays dense. Iteration order is therefore
// not creation order, which scanners must not rely on.
//
// The index is rebuilt from the order store at startup, not persisted
// separately; the Active flag on each order is the source of truth.
type ActiveIndex struct {
	mu  sync.RWMutex
	ids []uint64
	pos map[uint64]int
}

func NewActiveIndex() *ActiveIndex {
	return &ActiveIndex{pos: make(map[uint64]int)}
}

func (ix *ActiveIndex) Add(id uint64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.pos[id]; ok {
		return
	}
	ix.pos[id] = len(ix.ids)
	ix.ids = append(ix.ids, id)
}

func (ix *ActiveIndex) Remove(id uint64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	i, ok := ix.pos[id]
	if !ok {
		return
	}
	last := len(ix.ids) - 1
	moved := ix.ids[last]
	ix.ids[i] = moved
	ix.pos[moved] = i
	ix.ids = ix.ids[:last]
	delete(ix.pos, id)
}

func (ix *ActiveIndex) Contains(id uint64) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.pos[id]
	return ok
}

func (ix *ActiveIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.ids)
}

// At returns the ID at position i, or 0 if i is out of range.
func (ix *ActiveIndex) At(i int) uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if i < 0 || i >= len(ix.ids) {
		return 0
	}
	return ix.ids[i]
}

// Page returns up to count IDs starting at offset. Requests past the end
// are clamped, never an error.
func (ix *ActiveIndex) Page(offset, count int) []uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]uint64, 0, count)
	if offset < 0 || offset >= len(ix.ids) || count <= 0 {
		return out
	}
	end := offset + count
	if end > len(ix.ids) {
		end = len(ix.ids)
	}
	out = append(out, ix.ids[offset:end]...)
	return out
}

// All returns a snapshot of every active ID.
func (ix *ActiveIndex) All() []uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]uint64, len(ix.ids))
	copy(out, ix.ids)
	return out
}
