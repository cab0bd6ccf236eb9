package engine

// ShouldRebalance scans every active order and returns the IDs whose
// trigger condition currently holds. The result is a fresh slice, empty
// when nothing is ready.
func (p *Platform) ShouldRebalance() []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scan(p.active.All())
}

// ShouldRebalanceRange scans a window of the active index, count IDs
// starting at offset. Windows past the end are clamped. This is the
// pagination entry point for keepers that split a large active set across
// multiple upkeep rounds.
func (p *Platform) ShouldRebalanceRange(offset, count int) []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scan(p.active.Page(offset, count))
}

func (p *Platform) scan(ids []uint64) []uint64 {
	ready := make([]uint64, 0)
	now := p.clock.Now().Unix()
	for _, id := range ids {
		o, ok := p.store.Get(id)
		if !ok {
			continue
		}
		if p.checkLocked(o, now) {
			ready = append(ready, id)
		}
	}
	return ready
}
