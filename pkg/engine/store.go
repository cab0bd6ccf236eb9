package engine

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
)

// OrderStore holds every order ever created, active or not. Orders get
// monotonically increasing IDs starting at 1 and are never deleted, so
// historical lookups stay valid after cancellation and execution.
//
// The in-memory arena is the read path; every mutation is written through
// to pebble so a restart rebuilds the same state.
type OrderStore struct {
	mu     sync.RWMutex
	db     *pebble.DB
	arena  map[uint64]*Order
	nextID uint64
}

// NewOrderStore loads all persisted orders from db into memory.
func NewOrderStore(db *pebble.DB) (*OrderStore, error) {
	s := &OrderStore{
		db:     db,
		arena:  make(map[uint64]*Order),
		nextID: 1,
	}

	val, closer, err := db.Get([]byte(keyOrderCounter))
	if err == nil {
		s.nextID = binary.BigEndian.Uint64(val) + 1
		closer.Close()
	} else if err != pebble.ErrNotFound {
		return nil, fmt.Errorf("failed to read order counter: %w", err)
	}

	prefix := orderPrefix()
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open order iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var o Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			continue // skip invalid entries
		}
		s.arena[o.ID] = &o
	}

	return s, nil
}

// Append assigns the next ID to o, persists it, and returns the ID.
func (s *OrderStore) Append(o *Order) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o.ID = s.nextID
	if err := s.persist(o); err != nil {
		return 0, err
	}

	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], o.ID)
	if err := s.db.Set([]byte(keyOrderCounter), ctr[:], pebble.Sync); err != nil {
		return 0, fmt.Errorf("failed to save order counter: %w", err)
	}

	s.arena[o.ID] = o
	s.nextID++
	return o.ID, nil
}

// Get returns the stored order, or false if the ID was never issued.
// The returned pointer is the live record; callers outside the platform
// lock must Clone before handing it out.
func (s *OrderStore) Get(id uint64) (*Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.arena[id]
	return o, ok
}

// Update writes the current state of an already stored order through to disk.
func (s *OrderStore) Update(o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.arena[o.ID]; !ok {
		return fmt.Errorf("order %d not found", o.ID)
	}
	if err := s.persist(o); err != nil {
		return err
	}
	s.arena[o.ID] = o
	return nil
}

// Count returns how many orders have been created in total.
func (s *OrderStore) Count() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID - 1
}

func (s *OrderStore) persist(o *Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	if err := s.db.Set(orderKey(o.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}
