package engine

import (
	"math/big"

	"go.uber.org/zap"

	"github.com/Roman-Yarinski/trading/pkg/swap"
)

// CheckOrder reports whether the order's trigger condition currently
// holds. Inactive, expired, and unknown orders are simply false, never an
// error, so scanners can probe any ID.
func (p *Platform) CheckOrder(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.store.Get(id)
	if !ok {
		return false
	}
	return p.checkLocked(o, p.clock.Now().Unix())
}

// checkLocked evaluates the trigger rule. Must be called with p.mu held.
func (p *Platform) checkLocked(o *Order, now int64) bool {
	if !o.Active || o.Expired(now) {
		return false
	}

	switch o.Kind {
	case RecurringBuy:
		return now >= o.auxInt64()+o.Recurring.PeriodSec

	case TakeProfit:
		quote, ok := p.quote(o, o.BaseAmount)
		if !ok {
			return false
		}
		return quote.Cmp(o.AimTargetAmount) >= 0

	case StopLoss:
		// Fires inside the band [min, aim]. Below min the market has
		// gapped past the protective level and the order waits.
		quote, ok := p.quote(o, o.BaseAmount)
		if !ok {
			return false
		}
		if quote.Cmp(o.AimTargetAmount) > 0 {
			return false
		}
		if o.MinTargetAmount != nil && quote.Cmp(o.MinTargetAmount) < 0 {
			return false
		}
		return true

	case TrailingStop:
		quote, ok := p.quote(o, o.Trailing.BaseAmount)
		if !ok {
			return false
		}
		if o.Aux == nil || o.Aux.Sign() == 0 {
			// Not armed yet, behaves like a take-profit against the aim.
			return quote.Cmp(o.AimTargetAmount) >= 0
		}
		up, down := trailingBounds(o.Aux, o.Trailing.StepBps)
		return quote.Cmp(up) >= 0 || quote.Cmp(down) <= 0
	}
	return false
}

// trailingQuote returns the current market quote for a trailing order's
// fixed reference amount, plus which leg fired: up ratchets the stop,
// down liquidates the full remaining amount.
func (p *Platform) trailingQuote(o *Order) (quote *big.Int, up, down bool) {
	q, ok := p.quote(o, o.Trailing.BaseAmount)
	if !ok {
		return nil, false, false
	}
	if o.Aux == nil || o.Aux.Sign() == 0 {
		return q, q.Cmp(o.AimTargetAmount) >= 0, false
	}
	hi, lo := trailingBounds(o.Aux, o.Trailing.StepBps)
	return q, q.Cmp(hi) >= 0, q.Cmp(lo) <= 0
}

// trailingBounds returns the armed order's step thresholds:
// aux +/- aux*stepBps/10000.
func trailingBounds(aux *big.Int, stepBps uint32) (up, down *big.Int) {
	step := new(big.Int).Mul(aux, big.NewInt(int64(stepBps)))
	step.Div(step, big.NewInt(swap.BpsPrecision))
	up = new(big.Int).Add(aux, step)
	down = new(big.Int).Sub(aux, step)
	return up, down
}

// quote asks the swap adapter what amountIn of the base token is worth in
// target tokens right now. Quote failures disable the trigger instead of
// propagating; a missing pool should not wedge a scan.
func (p *Platform) quote(o *Order, amountIn *big.Int) (*big.Int, bool) {
	if !isPositive(amountIn) {
		return nil, false
	}
	q, err := p.swaps.Quote(o.BaseToken, o.TargetToken, amountIn, o.PairFeeTier, p.lookback)
	if err != nil {
		p.log.Debug("quote failed",
			zap.Uint64("order", o.ID),
			zap.Error(err))
		return nil, false
	}
	return q, true
}
