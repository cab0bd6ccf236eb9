package swap_test

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Roman-Yarinski/trading/pkg/swap"
	"github.com/Roman-Yarinski/trading/pkg/token"
	"github.com/Roman-Yarinski/trading/pkg/util"
)

var (
	helperAdmin = common.HexToAddress("0xAD00000000000000000000000000000000000000")
	trader      = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	receiver    = common.HexToAddress("0xBB00000000000000000000000000000000000000")
)

// newTestHelper builds a helper with one 1:2 pool holding its own reserves
// and a trader funded with token A.
func newTestHelper(t *testing.T) (*swap.Helper, *token.StandardToken, *token.StandardToken) {
	registry := token.NewRegistry()
	ta := token.NewStandardToken(tokenA, poolAddr, big.NewInt(1_000_000))
	tb := token.NewStandardToken(tokenB, poolAddr, big.NewInt(2_000_000))
	if err := registry.Register(ta); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(tb); err != nil {
		t.Fatalf("register: %v", err)
	}
	ta.Mint(trader, big.NewInt(100_000))

	clock := util.NewFakeClock(time.Unix(1_700_000_000, 0))
	pool, err := swap.NewPool(poolAddr, tokenA, tokenB, 0,
		big.NewInt(1_000_000), big.NewInt(2_000_000), clock)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}

	h, err := swap.NewHelper(registry, helperAdmin, 100, 5*time.Minute, zap.NewNop())
	if err != nil {
		t.Fatalf("helper: %v", err)
	}
	if err := h.RegisterPool(pool); err != nil {
		t.Fatalf("register pool: %v", err)
	}
	return h, ta, tb
}

func TestHelperConstructorValidation(t *testing.T) {
	registry := token.NewRegistry()
	if _, err := swap.NewHelper(registry, common.Address{}, 100, time.Minute, nil); err == nil {
		t.Error("zero admin accepted")
	}
	if _, err := swap.NewHelper(registry, helperAdmin, 0, time.Minute, nil); !errors.Is(err, swap.ErrUnsafeSlippage) {
		t.Errorf("zero slippage: got %v, want %v", err, swap.ErrUnsafeSlippage)
	}
	if _, err := swap.NewHelper(registry, helperAdmin, 10_001, time.Minute, nil); !errors.Is(err, swap.ErrUnsafeSlippage) {
		t.Errorf("oversize slippage: got %v, want %v", err, swap.ErrUnsafeSlippage)
	}
}

func TestHelperQuote(t *testing.T) {
	h, _, _ := newTestHelper(t)

	out, err := h.Quote(tokenA, tokenB, big.NewInt(100), 0, time.Minute)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if out.Cmp(big.NewInt(200)) != 0 {
		t.Errorf("quote = %s, want 200", out)
	}

	if _, err := h.Quote(tokenA, tokenB, big.NewInt(0), 0, time.Minute); !errors.Is(err, swap.ErrZeroAmountIn) {
		t.Errorf("zero amount: got %v, want %v", err, swap.ErrZeroAmountIn)
	}
	if _, err := h.Quote(common.Address{}, tokenB, big.NewInt(1), 0, time.Minute); !errors.Is(err, swap.ErrZeroAddress) {
		t.Errorf("zero address: got %v, want %v", err, swap.ErrZeroAddress)
	}
	other := common.HexToAddress("0x3300000000000000000000000000000000000000")
	if _, err := h.Quote(tokenA, other, big.NewInt(1), 0, time.Minute); !errors.Is(err, swap.ErrPoolNotFound) {
		t.Errorf("missing pool: got %v, want %v", err, swap.ErrPoolNotFound)
	}
}

func TestHelperSwapMovesTokens(t *testing.T) {
	h, ta, tb := newTestHelper(t)

	out, err := h.SwapWithSlippage(trader, receiver, tokenA, tokenB, big.NewInt(100), 0, 100)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}

	// Constant product on 1M/2M reserves barely moves for 100 in.
	if out.Sign() <= 0 {
		t.Fatalf("out = %s, want positive", out)
	}
	if got := tb.BalanceOf(receiver); got.Cmp(out) != 0 {
		t.Errorf("receiver got %s, want %s", got, out)
	}
	if got := ta.BalanceOf(trader); got.Cmp(big.NewInt(99_900)) != 0 {
		t.Errorf("trader balance = %s, want 99900", got)
	}
}

func TestHelperSwapSlippageRejection(t *testing.T) {
	h, ta, tb := newTestHelper(t)

	traderBefore := ta.BalanceOf(trader)

	// A swap this large realizes far less than the TWAP quote; a 0.01%
	// bound cannot hold.
	_, err := h.SwapWithSlippage(trader, receiver, tokenA, tokenB, big.NewInt(100_000), 0, 1)
	if !errors.Is(err, swap.ErrSlippageExceeded) {
		t.Fatalf("got %v, want %v", err, swap.ErrSlippageExceeded)
	}

	// The pulled tokens came back and nothing was delivered.
	if got := ta.BalanceOf(trader); got.Cmp(traderBefore) != 0 {
		t.Errorf("trader balance = %s, want %s restored", got, traderBefore)
	}
	if got := tb.BalanceOf(receiver); got.Sign() != 0 {
		t.Errorf("receiver got %s from rejected swap", got)
	}

	// Reserves untouched, the quote is unchanged.
	q, err := h.Quote(tokenA, tokenB, big.NewInt(100), 0, time.Minute)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Cmp(big.NewInt(200)) != 0 {
		t.Errorf("quote after rejection = %s, want 200", q)
	}
}

func TestHelperSwapBoundsValidation(t *testing.T) {
	h, _, _ := newTestHelper(t)

	if _, err := h.SwapWithSlippage(trader, receiver, tokenA, tokenB, big.NewInt(100), 0, 0); !errors.Is(err, swap.ErrUnsafeSlippage) {
		t.Errorf("zero slippage: got %v, want %v", err, swap.ErrUnsafeSlippage)
	}
	if _, err := h.SwapWithSlippage(trader, receiver, tokenA, tokenB, big.NewInt(100), 0, 10_001); !errors.Is(err, swap.ErrUnsafeSlippage) {
		t.Errorf("oversize slippage: got %v, want %v", err, swap.ErrUnsafeSlippage)
	}
}

func TestHelperAdminUpdates(t *testing.T) {
	h, _, _ := newTestHelper(t)

	if err := h.UpdateDefaultSlippage(trader, 200); err == nil {
		t.Error("non-admin updated slippage")
	}
	if err := h.UpdateDefaultSlippage(helperAdmin, 100); err == nil {
		t.Error("unchanged slippage accepted")
	}
	if err := h.UpdateDefaultSlippage(helperAdmin, 200); err != nil {
		t.Fatalf("update slippage: %v", err)
	}
	if got := h.DefaultSlippageBps(); got != 200 {
		t.Errorf("slippage = %d, want 200", got)
	}

	if err := h.UpdateDefaultLookback(trader, time.Minute); err == nil {
		t.Error("non-admin updated lookback")
	}
	if err := h.UpdateDefaultLookback(helperAdmin, 5*time.Minute); err == nil {
		t.Error("unchanged lookback accepted")
	}
	if err := h.UpdateDefaultLookback(helperAdmin, time.Minute); err != nil {
		t.Fatalf("update lookback: %v", err)
	}
	if got := h.DefaultLookback(); got != time.Minute {
		t.Errorf("lookback = %s, want 1m", got)
	}
}

func TestHelperRejectsDuplicatePool(t *testing.T) {
	h, _, _ := newTestHelper(t)

	clock := util.NewFakeClock(time.Unix(1_700_000_000, 0))
	dup, err := swap.NewPool(poolAddr, tokenA, tokenB, 0, big.NewInt(1), big.NewInt(1), clock)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if err := h.RegisterPool(dup); err == nil {
		t.Error("duplicate pool registered")
	}
	if err := h.RegisterPool(nil); err == nil {
		t.Error("nil pool registered")
	}
}
