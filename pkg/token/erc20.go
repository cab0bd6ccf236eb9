package token

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ERC20 is the minimal token surface the platform consumes.
// There is no ambient transaction sender here, so every mutating call takes
// the caller address explicitly.
//
// Implementations may signal failure either with an error or by returning
// false with a nil error (some deployed tokens do the latter); callers must
// treat both as failure.
type ERC20 interface {
	Address() common.Address
	BalanceOf(owner common.Address) *big.Int
	Allowance(owner, spender common.Address) *big.Int
	Approve(caller, spender common.Address, amount *big.Int) (bool, error)
	Transfer(caller, to common.Address, amount *big.Int) (bool, error)
	TransferFrom(caller, from, to common.Address, amount *big.Int) (bool, error)
}

// StandardToken is an in-memory ERC20 used by the devnet node and tests.
// Balances and allowances follow the usual transfer/approve semantics.
type StandardToken struct {
	mu         sync.RWMutex
	addr       common.Address
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

// NewStandardToken creates a token at addr with the full supply minted to holder.
func NewStandardToken(addr, holder common.Address, supply *big.Int) *StandardToken {
	t := &StandardToken{
		addr:       addr,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
	if supply != nil && supply.Sign() > 0 {
		t.balances[holder] = new(big.Int).Set(supply)
	}
	return t
}

func (t *StandardToken) Address() common.Address { return t.addr }

func (t *StandardToken) BalanceOf(owner common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if b, ok := t.balances[owner]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (t *StandardToken) Allowance(owner, spender common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if m, ok := t.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return new(big.Int).Set(a)
		}
	}
	return new(big.Int)
}

func (t *StandardToken) Approve(caller, spender common.Address, amount *big.Int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.allowances[caller]
	if !ok {
		m = make(map[common.Address]*big.Int)
		t.allowances[caller] = m
	}
	m[spender] = new(big.Int).Set(amount)
	return true, nil
}

func (t *StandardToken) Transfer(caller, to common.Address, amount *big.Int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.move(caller, to, amount); err != nil {
		return false, err
	}
	return true, nil
}

func (t *StandardToken) TransferFrom(caller, from, to common.Address, amount *big.Int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	allowance := new(big.Int)
	if m, ok := t.allowances[from]; ok {
		if a, ok := m[caller]; ok {
			allowance = a
		}
	}
	if allowance.Cmp(amount) < 0 {
		return false, fmt.Errorf("ERC20: insufficient allowance")
	}
	if err := t.move(from, to, amount); err != nil {
		return false, err
	}
	t.allowances[from][caller] = new(big.Int).Sub(allowance, amount)
	return true, nil
}

// move assumes the lock is held.
func (t *StandardToken) move(from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("ERC20: negative amount")
	}
	bal, ok := t.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("ERC20: transfer amount exceeds balance")
	}
	t.balances[from] = new(big.Int).Sub(bal, amount)
	dst, ok := t.balances[to]
	if !ok {
		dst = new(big.Int)
	}
	t.balances[to] = new(big.Int).Add(dst, amount)
	return nil
}

// Mint credits amount to holder. Test and devnet convenience only.
func (t *StandardToken) Mint(holder common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	bal, ok := t.balances[holder]
	if !ok {
		bal = new(big.Int)
	}
	t.balances[holder] = new(big.Int).Add(bal, amount)
}

// QuietToken wraps a StandardToken but reports failure by returning false
// with a nil error, the way some non-conforming tokens behave on chain.
type QuietToken struct {
	*StandardToken
}

func NewQuietToken(addr, holder common.Address, supply *big.Int) *QuietToken {
	return &QuietToken{StandardToken: NewStandardToken(addr, holder, supply)}
}

func (t *QuietToken) Transfer(caller, to common.Address, amount *big.Int) (bool, error) {
	ok, err := t.StandardToken.Transfer(caller, to, amount)
	if err != nil {
		return false, nil
	}
	return ok, nil
}

func (t *QuietToken) TransferFrom(caller, from, to common.Address, amount *big.Int) (bool, error) {
	ok, err := t.StandardToken.TransferFrom(caller, from, to, amount)
	if err != nil {
		return false, nil
	}
	return ok, nil
}
