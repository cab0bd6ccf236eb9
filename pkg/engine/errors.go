package engine

import "errors"

// Validation failures carry stable, pattern-matchable reason strings.
// Callers (API layer, keeper infrastructure) branch on these values.
var (
	ErrZeroAddress         = errors.New("zero address check")
	ErrSameTokens          = errors.New("tokens must be different")
	ErrZeroAmountIn        = errors.New("amount in must be greater than 0")
	ErrUnsafeSlippage      = errors.New("unsafe slippage")
	ErrZeroAim             = errors.New("aim amount must be greater than 0")
	ErrWrongExpiration     = errors.New("wrong expiration date")
	ErrTokenNotAllowed     = errors.New("token not allowed")
	ErrWrongUserAddress    = errors.New("wrong user address")
	ErrZeroSwapAmount      = errors.New("zero amount to swap")
	ErrWrongBaseAmount     = errors.New("wrong base amount")
	ErrWrongStepAmount     = errors.New("wrong step amount")
	ErrBindRecurring       = errors.New("can't bind recurring order")
	ErrBoundNotYours       = errors.New("bound order is not yours")
	ErrBoundNotActive      = errors.New("bound order is not active")
	ErrBoundAlreadyBound   = errors.New("bound order already bound")
	ErrListMismatch        = errors.New("non-compatible lists")
	ErrSelfBind            = errors.New("can't bind an order to itself")
	ErrNotYourOrder        = errors.New("not your order")
	ErrAmountExceedBalance = errors.New("amount exceed balance")
	ErrNothingToExecute    = errors.New("nothing for execution")
	ErrNotAdmin            = errors.New("caller is not an admin")
	ErrFeeTooHigh          = errors.New("fee exceeds limit")
)
