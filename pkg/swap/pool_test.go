package swap_test

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Roman-Yarinski/trading/pkg/swap"
	"github.com/Roman-Yarinski/trading/pkg/util"
)

var (
	poolAddr = common.HexToAddress("0xCC00000000000000000000000000000000000000")
	tokenA   = common.HexToAddress("0x1100000000000000000000000000000000000000")
	tokenB   = common.HexToAddress("0x2200000000000000000000000000000000000000")
)

func newTestPool(t *testing.T, feeTier uint32, reserveA, reserveB int64) (*swap.Pool, *util.FakeClock) {
	clock := util.NewFakeClock(time.Unix(1_700_000_000, 0))
	p, err := swap.NewPool(poolAddr, tokenA, tokenB, feeTier,
		big.NewInt(reserveA), big.NewInt(reserveB), clock)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	return p, clock
}

func TestSortTokens(t *testing.T) {
	a, b := swap.SortTokens(tokenB, tokenA)
	if a != tokenA || b != tokenB {
		t.Errorf("sort = %s,%s, want ascending", a.Hex(), b.Hex())
	}
	a, b = swap.SortTokens(tokenA, tokenB)
	if a != tokenA || b != tokenB {
		t.Error("already sorted pair reordered")
	}
}

func TestNewPoolRejectsBadArgs(t *testing.T) {
	clock := util.NewFakeClock(time.Unix(1_700_000_000, 0))
	if _, err := swap.NewPool(poolAddr, tokenA, tokenA, 0, big.NewInt(1), big.NewInt(1), clock); err == nil {
		t.Error("identical tokens accepted")
	}
	if _, err := swap.NewPool(poolAddr, tokenA, tokenB, 0, big.NewInt(0), big.NewInt(1), clock); err == nil {
		t.Error("zero reserve accepted")
	}
}

func TestPoolQuoteAtSpot(t *testing.T) {
	p, _ := newTestPool(t, 0, 1000, 2000)

	// Price of token0 is 2 token1; no history yet so TWAP equals spot.
	out := p.QuoteOut(tokenA, big.NewInt(10), time.Minute)
	if out.Cmp(big.NewInt(20)) != 0 {
		t.Errorf("quote A->B = %s, want 20", out)
	}
	out = p.QuoteOut(tokenB, big.NewInt(20), time.Minute)
	if out.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("quote B->A = %s, want 10", out)
	}
}

func TestPoolQuoteAppliesFee(t *testing.T) {
	// 10000 hundredths of a bip = 1%.
	p, _ := newTestPool(t, 10_000, 1000, 2000)
	out := p.QuoteOut(tokenA, big.NewInt(1000), time.Minute)
	if out.Cmp(big.NewInt(1980)) != 0 {
		t.Errorf("quote with 1%% fee = %s, want 1980", out)
	}
}

func TestPoolSwapConstantProduct(t *testing.T) {
	p, _ := newTestPool(t, 0, 1000, 2000)

	// out = 2000*10/(1000+10) = 19 with integer division.
	out, err := p.SwapOut(tokenA, big.NewInt(10), nil)
	if err != nil {
		t.Fatalf("swap failed: %v", err)
	}
	if out.Cmp(big.NewInt(19)) != 0 {
		t.Errorf("out = %s, want 19", out)
	}

	// Reserves moved, so the next spot quote is lower.
	q := p.QuoteOut(tokenA, big.NewInt(10), 0)
	if q.Cmp(big.NewInt(19)) > 0 {
		t.Errorf("quote after swap = %s, want <= 19", q)
	}
}

func TestPoolSwapMinOutRejection(t *testing.T) {
	p, _ := newTestPool(t, 0, 1000, 2000)

	before := p.QuoteOut(tokenA, big.NewInt(10), 0)
	_, err := p.SwapOut(tokenA, big.NewInt(10), big.NewInt(20))
	if !errors.Is(err, swap.ErrSlippageExceeded) {
		t.Fatalf("got %v, want %v", err, swap.ErrSlippageExceeded)
	}

	// Rejection leaves reserves untouched.
	after := p.QuoteOut(tokenA, big.NewInt(10), 0)
	if before.Cmp(after) != 0 {
		t.Errorf("quote changed %s -> %s across rejected swap", before, after)
	}
}

func TestPoolTwapBlendsHistory(t *testing.T) {
	p, clock := newTestPool(t, 0, 1000, 2000)

	// Move the price hard at t+100: 1000 in empties half the out side.
	clock.Advance(100 * time.Second)
	if _, err := p.SwapOut(tokenA, big.NewInt(1000), nil); err != nil {
		t.Fatalf("swap: %v", err)
	}
	clock.Advance(100 * time.Second)

	// 100s at price 2.0 and 100s at price 0.5 average to 1.25.
	out := p.QuoteOut(tokenA, big.NewInt(100), 200*time.Second)
	if out.Cmp(big.NewInt(125)) != 0 {
		t.Errorf("twap quote = %s, want 125", out)
	}

	// A short lookback only sees the post-swap price.
	out = p.QuoteOut(tokenA, big.NewInt(100), 50*time.Second)
	if out.Cmp(big.NewInt(50)) != 0 {
		t.Errorf("short lookback quote = %s, want 50", out)
	}
}

func TestPoolPairHelpers(t *testing.T) {
	p, _ := newTestPool(t, 3000, 1000, 2000)

	if !p.Has(tokenA, tokenB) || !p.Has(tokenB, tokenA) {
		t.Error("pool does not recognize its pair")
	}
	other := common.HexToAddress("0x3300000000000000000000000000000000000000")
	if p.Has(tokenA, other) {
		t.Error("pool claims a foreign pair")
	}
	if p.OtherToken(tokenA) != tokenB || p.OtherToken(tokenB) != tokenA {
		t.Error("OtherToken mismatch")
	}
	if p.FeeTier() != 3000 {
		t.Errorf("fee tier = %d, want 3000", p.FeeTier())
	}
}
