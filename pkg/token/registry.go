package token

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry resolves token contract addresses to their implementations.
// The platform only ever touches tokens through this registry.
type Registry struct {
	mu     sync.RWMutex
	tokens map[common.Address]ERC20
}

func NewRegistry() *Registry {
	return &Registry{tokens: make(map[common.Address]ERC20)}
}

// Register adds a token to the registry.
// Returns error if a token with the same address already exists.
func (r *Registry) Register(t ERC20) error {
	if t == nil {
		return fmt.Errorf("cannot register nil token")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tokens[t.Address()]; exists {
		return fmt.Errorf("token %s already registered", t.Address().Hex())
	}

	r.tokens[t.Address()] = t
	return nil
}

// Get retrieves a token by address.
func (r *Registry) Get(addr common.Address) (ERC20, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.tokens[addr]
	if !exists {
		return nil, fmt.Errorf("token %s not found", addr.Hex())
	}
	return t, nil
}

// List returns all registered tokens.
func (r *Registry) List() []ERC20 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ERC20, 0, len(r.tokens))
	for _, t := range r.tokens {
		out = append(out, t)
	}
	return out
}
