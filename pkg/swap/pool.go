package swap

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Roman-Yarinski/trading/pkg/util"
)

// FeePrecision is the pool fee denominator: fee tiers are expressed in
// hundredths of a basis point (500 = 0.05%), matching the usual AMM tiers.
const FeePrecision = 1_000_000

// priceScale fixes the decimal scale for recorded observations.
var priceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// observation is a spot-price sample taken after each swap.
// Price is token1 per token0, scaled by priceScale.
type observation struct {
	Timestamp int64
	Price     *big.Int
}

// Pool is a constant-product liquidity pool with a rolling observation
// window backing time-weighted quotes. It stands in for the external
// exchange pool in the devnet node and in tests.
type Pool struct {
	mu sync.Mutex

	addr    common.Address
	token0  common.Address // lower address of the pair
	token1  common.Address
	feeTier uint32

	reserve0 *big.Int
	reserve1 *big.Int

	obs   []observation
	clock util.Clock
}

// SortTokens returns the pair in canonical (ascending address) order.
func SortTokens(a, b common.Address) (common.Address, common.Address) {
	if a.Cmp(b) > 0 {
		return b, a
	}
	return a, b
}

// NewPool creates a pool for the given pair, fee tier, and initial reserves.
// The reserve arguments follow the canonical token order.
func NewPool(addr, tokenA, tokenB common.Address, feeTier uint32, reserveA, reserveB *big.Int, clock util.Clock) (*Pool, error) {
	if tokenA == tokenB {
		return nil, fmt.Errorf("identical tokens")
	}
	if reserveA.Sign() <= 0 || reserveB.Sign() <= 0 {
		return nil, fmt.Errorf("reserves must be positive")
	}
	t0, t1 := SortTokens(tokenA, tokenB)
	r0, r1 := reserveA, reserveB
	if t0 != tokenA {
		r0, r1 = reserveB, reserveA
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	p := &Pool{
		addr:     addr,
		token0:   t0,
		token1:   t1,
		feeTier:  feeTier,
		reserve0: new(big.Int).Set(r0),
		reserve1: new(big.Int).Set(r1),
		clock:    clock,
	}
	p.record(clock.Now().Unix())
	return p, nil
}

func (p *Pool) Address() common.Address { return p.addr }
func (p *Pool) FeeTier() uint32         { return p.feeTier }

// Has reports whether both tokens belong to this pool.
func (p *Pool) Has(a, b common.Address) bool {
	t0, t1 := SortTokens(a, b)
	return t0 == p.token0 && t1 == p.token1
}

// spotPrice returns token1 per token0 scaled by priceScale. Lock must be held.
func (p *Pool) spotPrice() *big.Int {
	price := new(big.Int).Mul(p.reserve1, priceScale)
	return price.Quo(price, p.reserve0)
}

// record appends an observation at ts. Lock must be held.
func (p *Pool) record(ts int64) {
	p.obs = append(p.obs, observation{Timestamp: ts, Price: p.spotPrice()})
	// Keep the window from growing unbounded.
	if len(p.obs) > 1024 {
		p.obs = p.obs[len(p.obs)-1024:]
	}
}

// twap returns the time-weighted price of token0 over the lookback window,
// falling back to the current spot price when history is too short.
func (p *Pool) twap(lookback time.Duration) *big.Int {
	now := p.clock.Now().Unix()
	cutoff := now - int64(lookback/time.Second)

	weighted := new(big.Int)
	elapsed := int64(0)
	end := now
	for i := len(p.obs) - 1; i >= 0; i-- {
		o := p.obs[i]
		start := o.Timestamp
		if start < cutoff {
			start = cutoff
		}
		dt := end - start
		if dt > 0 {
			weighted.Add(weighted, new(big.Int).Mul(o.Price, big.NewInt(dt)))
			elapsed += dt
		}
		if o.Timestamp <= cutoff {
			break
		}
		end = o.Timestamp
	}
	if elapsed == 0 {
		return p.spotPrice()
	}
	return weighted.Quo(weighted, big.NewInt(elapsed))
}

// QuoteOut returns the expected output for swapping amountIn of tokenIn,
// priced at the TWAP over lookback with the pool fee applied.
func (p *Pool) QuoteOut(tokenIn common.Address, amountIn *big.Int, lookback time.Duration) *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()

	price := p.twap(lookback)
	var out *big.Int
	if tokenIn == p.token0 {
		out = new(big.Int).Mul(amountIn, price)
		out.Quo(out, priceScale)
	} else {
		out = new(big.Int).Mul(amountIn, priceScale)
		out.Quo(out, price)
	}
	fee := new(big.Int).Mul(out, big.NewInt(int64(p.feeTier)))
	fee.Quo(fee, big.NewInt(FeePrecision))
	return out.Sub(out, fee)
}

// SwapOut executes a constant-product swap of amountIn tokenIn and returns
// the realized output, updating reserves and recording a fresh observation.
// When the output would fall below minOut the swap fails with no state
// change at all (checks before effects).
func (p *Pool) SwapOut(tokenIn common.Address, amountIn, minOut *big.Int) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	inAfterFee := new(big.Int).Mul(amountIn, big.NewInt(FeePrecision-int64(p.feeTier)))
	inAfterFee.Quo(inAfterFee, big.NewInt(FeePrecision))

	reserveIn, reserveOut := p.reserve0, p.reserve1
	if tokenIn == p.token1 {
		reserveIn, reserveOut = p.reserve1, p.reserve0
	}

	// out = reserveOut * in / (reserveIn + in)
	out := new(big.Int).Mul(reserveOut, inAfterFee)
	out.Quo(out, new(big.Int).Add(reserveIn, inAfterFee))

	if minOut != nil && out.Cmp(minOut) < 0 {
		return nil, ErrSlippageExceeded
	}

	reserveIn.Add(reserveIn, amountIn)
	reserveOut.Sub(reserveOut, out)
	p.record(p.clock.Now().Unix())
	return out, nil
}

// OtherToken returns the pool's counterpart of the given token.
func (p *Pool) OtherToken(tokenIn common.Address) common.Address {
	if tokenIn == p.token0 {
		return p.token1
	}
	return p.token0
}
