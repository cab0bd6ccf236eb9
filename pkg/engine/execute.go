package engine

import (
	"math/big"

	"go.uber.org/zap"

	"github.com/Roman-Yarinski/trading/pkg/swap"
)

// ExecuteOrders executes every order in ids whose condition holds right
// now, in the given sequence, and returns the IDs that actually executed.
// IDs that are unknown, inactive, or whose condition does not hold are
// skipped. A swap failure on one order is logged and does not abort the
// rest of the batch.
func (p *Platform) ExecuteOrders(ids []uint64) []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	executed := make([]uint64, 0, len(ids))
	now := p.clock.Now().Unix()
	for _, id := range ids {
		o, ok := p.store.Get(id)
		if !ok || !p.checkLocked(o, now) {
			continue
		}
		if err := p.executeOne(o, now); err != nil {
			p.log.Warn("order execution failed",
				zap.Uint64("id", id),
				zap.Error(err))
			continue
		}
		executed = append(executed, id)
	}
	return executed
}

// executeOne settles a single triggered order. Must be called with p.mu
// held and after checkLocked has passed.
func (p *Platform) executeOne(o *Order, now int64) error {
	spend, exitLeg := p.spendAmount(o)
	if !isPositive(spend) {
		return ErrZeroSwapAmount
	}

	out, err := p.swaps.SwapWithSlippage(
		p.self, p.self,
		o.BaseToken, o.TargetToken,
		spend, o.PairFeeTier, o.SlippageBps)
	if err != nil {
		return err
	}

	fee := new(big.Int).Mul(out, big.NewInt(int64(p.feeBps)))
	fee.Div(fee, big.NewInt(swap.BpsPrecision))
	net := new(big.Int).Sub(out, fee)

	if fee.Sign() > 0 {
		if err := p.ledger.Credit(p.feeRecipient, o.TargetToken, fee); err != nil {
			return err
		}
	}
	if err := p.ledger.Credit(o.Owner, o.TargetToken, net); err != nil {
		return err
	}

	o.BaseAmount = new(big.Int).Sub(o.BaseAmount, spend)

	switch o.Kind {
	case RecurringBuy:
		o.Aux = big.NewInt(now)
	case TrailingStop:
		// The realized level for the fixed reference amount becomes the
		// new ratchet point.
		level := new(big.Int).Mul(out, o.Trailing.BaseAmount)
		level.Div(level, spend)
		o.Aux = level
	}

	done := o.Kind == StopLoss || o.Kind == TakeProfit ||
		exitLeg || o.BaseAmount.Sign() == 0
	if done {
		o.Active = false
		p.active.Remove(o.ID)
		if err := p.cascadeBound(o); err != nil {
			return err
		}
	}
	if err := p.store.Update(o); err != nil {
		return err
	}

	p.feed.Publish(OrderExecutedEvent{
		OrderID:   o.ID,
		Owner:     o.Owner,
		AmountIn:  new(big.Int).Set(spend),
		AmountOut: new(big.Int).Set(out),
	})
	p.log.Info("order executed",
		zap.Uint64("id", o.ID),
		zap.String("kind", o.Kind.String()),
		zap.String("amountIn", spend.String()),
		zap.String("amountOut", out.String()),
		zap.Bool("retired", done))
	return nil
}

// spendAmount returns how much base the order spends on this execution.
// exitLeg is true when a trailing order fired on its downward threshold,
// which liquidates the whole remaining amount.
func (p *Platform) spendAmount(o *Order) (*big.Int, bool) {
	switch o.Kind {
	case StopLoss, TakeProfit:
		return new(big.Int).Set(o.BaseAmount), false
	case RecurringBuy:
		spend := o.Recurring.AmountPerPeriod
		if o.BaseAmount.Cmp(spend) < 0 {
			spend = o.BaseAmount
		}
		return new(big.Int).Set(spend), false
	case TrailingStop:
		_, _, down := p.trailingQuote(o)
		if down {
			return new(big.Int).Set(o.BaseAmount), true
		}
		spend := o.Trailing.AmountPerStep
		if o.BaseAmount.Cmp(spend) < 0 {
			spend = o.BaseAmount
		}
		return new(big.Int).Set(spend), false
	}
	return nil, false
}

// cascadeBound retires the sibling of a one-cancels-other pair, refunding
// its unspent base amount. Must be called with p.mu held.
func (p *Platform) cascadeBound(o *Order) error {
	if o.BoundOrderID == 0 {
		return nil
	}
	sibling, ok := p.store.Get(o.BoundOrderID)
	if !ok || !sibling.Active {
		return nil
	}
	if err := p.retire(sibling); err != nil {
		return err
	}
	p.feed.Publish(OrderCanceledEvent{OrderID: sibling.ID, Owner: sibling.Owner})
	p.log.Info("bound order retired",
		zap.Uint64("id", sibling.ID),
		zap.Uint64("trigger", o.ID))
	return nil
}
