package swap

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Roman-Yarinski/trading/pkg/token"
)

type poolKey struct {
	token0  common.Address
	token1  common.Address
	feeTier uint32
}

// Helper quotes and executes swaps against registered liquidity pools.
// It is the concrete Adapter used by the devnet node; the order engine only
// ever sees the Adapter interface.
type Helper struct {
	mu sync.RWMutex

	tokens *token.Registry
	pools  map[poolKey]*Pool

	admin              common.Address
	defaultSlippageBps uint32
	defaultLookback    time.Duration

	log *zap.Logger
}

func NewHelper(tokens *token.Registry, admin common.Address, defaultSlippageBps uint32, defaultLookback time.Duration, log *zap.Logger) (*Helper, error) {
	if admin == (common.Address{}) {
		return nil, fmt.Errorf("admin zero address")
	}
	if defaultSlippageBps == 0 || defaultSlippageBps > BpsPrecision {
		return nil, ErrUnsafeSlippage
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Helper{
		tokens:             tokens,
		pools:              make(map[poolKey]*Pool),
		admin:              admin,
		defaultSlippageBps: defaultSlippageBps,
		defaultLookback:    defaultLookback,
		log:                log,
	}, nil
}

// RegisterPool adds a pool so it can serve quotes and swaps.
func (h *Helper) RegisterPool(p *Pool) error {
	if p == nil {
		return fmt.Errorf("cannot register nil pool")
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	key := poolKey{token0: p.token0, token1: p.token1, feeTier: p.feeTier}
	if _, exists := h.pools[key]; exists {
		return fmt.Errorf("pool for pair already registered")
	}
	h.pools[key] = p
	return nil
}

func (h *Helper) pool(tokenIn, tokenOut common.Address, feeTier uint32) (*Pool, error) {
	t0, t1 := SortTokens(tokenIn, tokenOut)
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.pools[poolKey{token0: t0, token1: t1, feeTier: feeTier}]
	if !ok {
		return nil, ErrPoolNotFound
	}
	return p, nil
}

// DefaultSlippageBps returns the slippage bound used by Swap.
func (h *Helper) DefaultSlippageBps() uint32 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.defaultSlippageBps
}

// DefaultLookback returns the TWAP window used when callers pass zero.
func (h *Helper) DefaultLookback() time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.defaultLookback
}

// UpdateDefaultSlippage sets the default slippage bound. Admin only.
func (h *Helper) UpdateDefaultSlippage(caller common.Address, slippageBps uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if caller != h.admin {
		return fmt.Errorf("caller is not an admin")
	}
	if slippageBps == 0 || slippageBps > BpsPrecision {
		return ErrUnsafeSlippage
	}
	if slippageBps == h.defaultSlippageBps {
		return fmt.Errorf("slippage is the same")
	}
	h.defaultSlippageBps = slippageBps
	return nil
}

// UpdateDefaultLookback sets the default TWAP window. Admin only.
func (h *Helper) UpdateDefaultLookback(caller common.Address, lookback time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if caller != h.admin {
		return fmt.Errorf("caller is not an admin")
	}
	if lookback <= 0 {
		return fmt.Errorf("lookback must be positive")
	}
	if lookback == h.defaultLookback {
		return fmt.Errorf("lookback is the same")
	}
	h.defaultLookback = lookback
	return nil
}

// Quote returns the expected output for the swap based on the pool TWAP.
func (h *Helper) Quote(tokenIn, tokenOut common.Address, amountIn *big.Int, feeTier uint32, lookback time.Duration) (*big.Int, error) {
	if err := validateSwapArgs([]common.Address{tokenIn, tokenOut}, amountIn); err != nil {
		return nil, err
	}
	p, err := h.pool(tokenIn, tokenOut, feeTier)
	if err != nil {
		return nil, err
	}
	if lookback <= 0 {
		lookback = h.DefaultLookback()
	}
	return p.QuoteOut(tokenIn, amountIn, lookback), nil
}

// Swap executes with the helper's default slippage bound.
func (h *Helper) Swap(caller, beneficiary, tokenIn, tokenOut common.Address, amountIn *big.Int, feeTier uint32) (*big.Int, error) {
	return h.SwapWithSlippage(caller, beneficiary, tokenIn, tokenOut, amountIn, feeTier, h.DefaultSlippageBps())
}

// SwapWithSlippage pulls amountIn of tokenIn from caller, executes against
// the pool, and delivers the output to beneficiary. Fails without touching
// reserves when the realized output would fall below quote*(1-slippage).
func (h *Helper) SwapWithSlippage(caller, beneficiary, tokenIn, tokenOut common.Address, amountIn *big.Int, feeTier uint32, slippageBps uint32) (*big.Int, error) {
	if err := validateSwapArgs([]common.Address{caller, beneficiary, tokenIn, tokenOut}, amountIn); err != nil {
		return nil, err
	}
	if slippageBps == 0 || slippageBps > BpsPrecision {
		return nil, ErrUnsafeSlippage
	}
	p, err := h.pool(tokenIn, tokenOut, feeTier)
	if err != nil {
		return nil, err
	}

	expected := p.QuoteOut(tokenIn, amountIn, h.DefaultLookback())
	minOut := new(big.Int).Mul(expected, big.NewInt(int64(BpsPrecision-slippageBps)))
	minOut.Quo(minOut, big.NewInt(BpsPrecision))

	in, err := h.tokens.Get(tokenIn)
	if err != nil {
		return nil, err
	}
	out, err := h.tokens.Get(tokenOut)
	if err != nil {
		return nil, err
	}

	if ok, err := in.Transfer(caller, p.Address(), amountIn); err != nil || !ok {
		if err == nil {
			err = fmt.Errorf("token transfer returned false")
		}
		return nil, fmt.Errorf("pull %s: %w", tokenIn.Hex(), err)
	}

	amountOut, err := p.SwapOut(tokenIn, amountIn, minOut)
	if err != nil {
		// Reserves untouched; return the pulled tokens to the caller.
		if ok, rerr := in.Transfer(p.Address(), caller, amountIn); rerr != nil || !ok {
			h.log.Error("failed to return tokens after rejected swap",
				zap.String("tokenIn", tokenIn.Hex()), zap.Error(rerr))
		}
		h.log.Warn("swap outside slippage bound",
			zap.String("tokenIn", tokenIn.Hex()),
			zap.String("expected", expected.String()))
		return nil, err
	}

	if ok, err := out.Transfer(p.Address(), beneficiary, amountOut); err != nil || !ok {
		if err == nil {
			err = fmt.Errorf("token transfer returned false")
		}
		return nil, fmt.Errorf("deliver %s: %w", tokenOut.Hex(), err)
	}
	return amountOut, nil
}

var _ Adapter = (*Helper)(nil)
