package engine

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Event is a notification about a state change on the platform. Concrete
// event types are plain structs; Kind discriminates them on the wire.
type Event interface {
	Kind() string
}

type OrderCreatedEvent struct {
	OrderID uint64         `json:"orderId"`
	Owner   common.Address `json:"owner"`
}

type OrderCanceledEvent struct {
	OrderID uint64         `json:"orderId"`
	Owner   common.Address `json:"owner"`
}

type OrdersBoundEvent struct {
	Left  []uint64 `json:"left"`
	Right []uint64 `json:"right"`
}

type OrderExecutedEvent struct {
	OrderID   uint64         `json:"orderId"`
	Owner     common.Address `json:"owner"`
	AmountIn  *big.Int       `json:"amountIn"`
	AmountOut *big.Int       `json:"amountOut"`
}

type DepositedEvent struct {
	User   common.Address `json:"user"`
	Token  common.Address `json:"token"`
	Amount *big.Int       `json:"amount"`
}

type WithdrawnEvent struct {
	User   common.Address `json:"user"`
	Token  common.Address `json:"token"`
	Amount *big.Int       `json:"amount"`
}

type TokenRemovedEvent struct {
	Token common.Address `json:"token"`
}

func (OrderCreatedEvent) Kind() string  { return "OrderCreated" }
func (OrderCanceledEvent) Kind() string { return "OrderCanceled" }
func (OrdersBoundEvent) Kind() string   { return "OrdersBound" }
func (OrderExecutedEvent) Kind() string { return "OrderExecuted" }
func (DepositedEvent) Kind() string     { return "Deposited" }
func (WithdrawnEvent) Kind() string     { return "Withdrawn" }
func (TokenRemovedEvent) Kind() string  { return "TokenRemoved" }

// Feed fans events out to subscribers. Publishing never blocks: a
// subscriber that falls behind drops events rather than stalling the
// execution path.
type Feed struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a buffered event channel and a cancel func that
// removes the subscription and closes the channel.
func (f *Feed) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subs[ch]; ok {
			delete(f.subs, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

func (f *Feed) Publish(ev Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for ch := range f.subs {
		select {
		case ch <- ev:
		default: // slow subscriber, drop
		}
	}
}
