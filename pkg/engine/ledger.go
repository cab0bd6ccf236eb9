package engine

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// Ledger tracks per-user, per-token internal balances: deposits, refunds
// from canceled orders, and swap proceeds all land here until withdrawn.
// Balances are persisted individually so a restart loses nothing.
type Ledger struct {
	mu    sync.RWMutex
	db    *pebble.DB
	cache map[string]*big.Int
}

func NewLedger(db *pebble.DB) *Ledger {
	return &Ledger{db: db, cache: make(map[string]*big.Int)}
}

// Balance returns the current internal balance. Never nil.
func (l *Ledger) Balance(user, token common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.load(user, token))
}

// Credit adds amount to the balance.
func (l *Ledger) Credit(user, token common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	next := new(big.Int).Add(l.load(user, token), amount)
	return l.save(user, token, next)
}

// Debit subtracts amount from the balance. Fails without touching state
// if the balance cannot cover it.
func (l *Ledger) Debit(user, token common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrZeroAmountIn
	}
	if amount.Sign() == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	cur := l.load(user, token)
	if cur.Cmp(amount) < 0 {
		return ErrAmountExceedBalance
	}
	return l.save(user, token, new(big.Int).Sub(cur, amount))
}

// load must be called with l.mu held.
func (l *Ledger) load(user, token common.Address) *big.Int {
	key := balanceKey(user, token)
	if v, ok := l.cache[string(key)]; ok {
		return v
	}
	v := new(big.Int)
	data, closer, err := l.db.Get(key)
	if err == nil {
		v.SetString(string(data), 10)
		closer.Close()
	}
	l.cache[string(key)] = v
	return v
}

// save must be called with l.mu held.
func (l *Ledger) save(user, token common.Address, v *big.Int) error {
	key := balanceKey(user, token)
	if err := l.db.Set(key, []byte(v.String()), pebble.Sync); err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	l.cache[string(key)] = v
	return nil
}
