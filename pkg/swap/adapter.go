package swap

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// BpsPrecision is the basis-point denominator used for slippage bounds.
const BpsPrecision = 10_000

var (
	ErrZeroAddress      = errors.New("zero address check")
	ErrZeroAmountIn     = errors.New("amount in must be greater than 0")
	ErrPoolNotFound     = errors.New("pool not found")
	ErrSlippageExceeded = errors.New("slippage exceeded")
	ErrUnsafeSlippage   = errors.New("unsafe slippage")
)

// Adapter is the price-quoting and execution surface the order engine consumes.
// Quote returns the expected output for a swap based on a time-weighted average
// price over the lookback window. Swap performs the exchange and returns the
// realized output; SwapWithSlippage bounds the realized output against the
// quote by slippageBps and fails if it lands outside.
//
// Every mutating call takes the caller address explicitly (no ambient sender):
// tokens are pulled from the caller and proceeds are delivered to beneficiary.
type Adapter interface {
	Quote(tokenIn, tokenOut common.Address, amountIn *big.Int, feeTier uint32, lookback time.Duration) (*big.Int, error)
	Swap(caller, beneficiary, tokenIn, tokenOut common.Address, amountIn *big.Int, feeTier uint32) (*big.Int, error)
	SwapWithSlippage(caller, beneficiary, tokenIn, tokenOut common.Address, amountIn *big.Int, feeTier uint32, slippageBps uint32) (*big.Int, error)
}

func validateSwapArgs(addrs []common.Address, amountIn *big.Int) error {
	for _, a := range addrs {
		if a == (common.Address{}) {
			return ErrZeroAddress
		}
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return ErrZeroAmountIn
	}
	return nil
}
