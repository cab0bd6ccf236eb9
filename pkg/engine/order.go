package engine

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// OrderKind selects the trigger rule an order is evaluated under.
type OrderKind uint8

const (
	StopLoss OrderKind = iota
	TakeProfit
	RecurringBuy
	TrailingStop
)

func (k OrderKind) String() string {
	switch k {
	case StopLoss:
		return "STOP_LOSS"
	case TakeProfit:
		return "TAKE_PROFIT"
	case RecurringBuy:
		return "RECURRING_BUY"
	case TrailingStop:
		return "TRAILING_STOP"
	default:
		return "UNKNOWN"
	}
}

// RecurringParams drives RecurringBuy orders: every PeriodSec seconds the
// order spends AmountPerPeriod of its remaining base amount.
type RecurringParams struct {
	PeriodSec       int64    `json:"periodSec"`
	AmountPerPeriod *big.Int `json:"amountPerPeriod"`
}

// TrailingParams drives TrailingStop orders. BaseAmount is the fixed
// reference size quotes are computed against for the life of the order,
// AmountPerStep is spent on each favorable step, and StepBps is the
// ratchet distance in basis points.
type TrailingParams struct {
	BaseAmount    *big.Int `json:"baseAmount"`
	AmountPerStep *big.Int `json:"amountPerStep"`
	StepBps       uint32   `json:"stepBps"`
}

// Order is a conditional swap instruction held by the platform. BaseAmount
// tracks the remaining unspent size; Aux carries per-kind rolling state
// (last execution time for recurring orders, last fixed price level for
// trailing orders).
type Order struct {
	ID              uint64           `json:"id"`
	Owner           common.Address   `json:"owner"`
	BaseToken       common.Address   `json:"baseToken"`
	TargetToken     common.Address   `json:"targetToken"`
	PairFeeTier     uint32           `json:"pairFeeTier"`
	SlippageBps     uint32           `json:"slippageBps"`
	BaseAmount      *big.Int         `json:"baseAmount"`
	AimTargetAmount *big.Int         `json:"aimTargetAmount"`
	MinTargetAmount *big.Int         `json:"minTargetAmount"`
	Expiration      int64            `json:"expiration"`
	BoundOrderID    uint64           `json:"boundOrderId"`
	Kind            OrderKind        `json:"kind"`
	Recurring       *RecurringParams `json:"recurring,omitempty"`
	Trailing        *TrailingParams  `json:"trailing,omitempty"`
	Aux             *big.Int         `json:"aux"`
	Active          bool             `json:"active"`
}

// Expired reports whether the order's deadline has passed. A zero
// expiration means the order never expires.
func (o *Order) Expired(now int64) bool {
	return o.Expiration != 0 && now > o.Expiration
}

func (o *Order) auxInt64() int64 {
	if o.Aux == nil {
		return 0
	}
	return o.Aux.Int64()
}

// Clone returns a deep copy safe to hand outside the platform lock.
func (o *Order) Clone() *Order {
	c := *o
	c.BaseAmount = cloneBig(o.BaseAmount)
	c.AimTargetAmount = cloneBig(o.AimTargetAmount)
	c.MinTargetAmount = cloneBig(o.MinTargetAmount)
	c.Aux = cloneBig(o.Aux)
	if o.Recurring != nil {
		r := *o.Recurring
		r.AmountPerPeriod = cloneBig(o.Recurring.AmountPerPeriod)
		c.Recurring = &r
	}
	if o.Trailing != nil {
		t := *o.Trailing
		t.BaseAmount = cloneBig(o.Trailing.BaseAmount)
		t.AmountPerStep = cloneBig(o.Trailing.AmountPerStep)
		c.Trailing = &t
	}
	return &c
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func isPositive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}
