package engine

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Roman-Yarinski/trading/pkg/swap"
	"github.com/Roman-Yarinski/trading/pkg/token"
	"github.com/Roman-Yarinski/trading/pkg/util"
)

// Config carries the deployment parameters of a Platform.
type Config struct {
	DBPath         string
	Admin          common.Address
	FeeRecipient   common.Address
	ProtocolFeeBps uint32
	// Treasury is the address the platform holds pooled token funds under.
	Treasury common.Address
	// Lookback is the TWAP window used when quoting trigger conditions.
	Lookback time.Duration
}

// Platform is the conditional order engine: it custodies user funds,
// stores orders, evaluates trigger conditions against pool quotes, and
// settles executions through the swap adapter.
//
// All entry points take the caller address explicitly and serialize under
// a single mutex, so one operation observes and mutates a consistent
// snapshot of orders, balances, and the active index.
type Platform struct {
	mu    sync.Mutex
	log   *zap.Logger
	clock util.Clock

	db     *pebble.DB
	store  *OrderStore
	active *ActiveIndex
	ledger *Ledger
	tokens *token.Registry
	swaps  swap.Adapter
	feed   *Feed

	self         common.Address
	admin        common.Address
	feeRecipient common.Address
	feeBps       uint32
	whitelist    map[common.Address]struct{}
	lookback     time.Duration
}

// NewPlatform opens (or creates) the database at cfg.DBPath and restores
// orders, balances, and the token whitelist from it.
func NewPlatform(cfg Config, tokens *token.Registry, swaps swap.Adapter, clock util.Clock, log *zap.Logger) (*Platform, error) {
	if swaps == nil {
		return nil, fmt.Errorf("swap adapter: %w", ErrZeroAddress)
	}
	if cfg.Admin == (common.Address{}) {
		return nil, fmt.Errorf("admin: %w", ErrZeroAddress)
	}
	if cfg.Treasury == (common.Address{}) {
		return nil, fmt.Errorf("treasury: %w", ErrZeroAddress)
	}
	if cfg.FeeRecipient == (common.Address{}) {
		return nil, fmt.Errorf("fee recipient: %w", ErrZeroAddress)
	}
	if cfg.ProtocolFeeBps >= swap.BpsPrecision {
		return nil, ErrFeeTooHigh
	}
	if log == nil {
		log = zap.NewNop()
	}
	if clock == nil {
		clock = util.RealClock{}
	}

	db, err := pebble.Open(cfg.DBPath, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store, err := NewOrderStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	p := &Platform{
		log:          log,
		clock:        clock,
		db:           db,
		store:        store,
		active:       NewActiveIndex(),
		ledger:       NewLedger(db),
		tokens:       tokens,
		swaps:        swaps,
		feed:         NewFeed(),
		self:         cfg.Treasury,
		admin:        cfg.Admin,
		feeRecipient: cfg.FeeRecipient,
		feeBps:       cfg.ProtocolFeeBps,
		whitelist:    make(map[common.Address]struct{}),
		lookback:     cfg.Lookback,
	}

	if err := p.restoreWhitelist(); err != nil {
		db.Close()
		return nil, err
	}
	p.restoreActive()

	log.Info("platform ready",
		zap.Uint64("orders", store.Count()),
		zap.Int("active", p.active.Len()),
		zap.Uint32("protocolFeeBps", p.feeBps))
	return p, nil
}

func (p *Platform) Close() error { return p.db.Close() }

// Events exposes the platform's notification feed.
func (p *Platform) Events() *Feed { return p.feed }

func (p *Platform) restoreWhitelist() error {
	prefix := whitelistPrefix()
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to open whitelist iterator: %w", err)
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		hex := string(iter.Key()[len(prefix):])
		if common.IsHexAddress(hex) {
			p.whitelist[common.HexToAddress(hex)] = struct{}{}
		}
	}
	return nil
}

func (p *Platform) restoreActive() {
	for id := uint64(1); id <= p.store.Count(); id++ {
		if o, ok := p.store.Get(id); ok && o.Active {
			p.active.Add(id)
		}
	}
}

// ----------------------------------------------------------------------------
// Funds
// ----------------------------------------------------------------------------

// Deposit pulls amount of tokenAddr from the caller into the platform and
// credits the caller's internal balance. The caller must have approved
// the platform's treasury address as spender beforehand.
func (p *Platform) Deposit(caller, tokenAddr common.Address, amount *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !isPositive(amount) {
		return ErrZeroAmountIn
	}
	t, err := p.allowedToken(tokenAddr)
	if err != nil {
		return err
	}
	if err := p.pull(t, caller, amount); err != nil {
		return err
	}
	if err := p.ledger.Credit(caller, tokenAddr, amount); err != nil {
		return err
	}
	p.feed.Publish(DepositedEvent{User: caller, Token: tokenAddr, Amount: new(big.Int).Set(amount)})
	p.log.Info("deposit",
		zap.String("user", caller.Hex()),
		zap.String("token", tokenAddr.Hex()),
		zap.String("amount", amount.String()))
	return nil
}

// Withdraw moves amount from the caller's internal balance back to the
// caller's token account.
func (p *Platform) Withdraw(caller, tokenAddr common.Address, amount *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !isPositive(amount) {
		return ErrZeroAmountIn
	}
	t, err := p.tokens.Get(tokenAddr)
	if err != nil {
		return ErrTokenNotAllowed
	}
	if err := p.ledger.Debit(caller, tokenAddr, amount); err != nil {
		return err
	}
	if err := p.push(t, caller, amount); err != nil {
		// The debit already persisted, put it back.
		p.ledger.Credit(caller, tokenAddr, amount)
		return err
	}
	p.feed.Publish(WithdrawnEvent{User: caller, Token: tokenAddr, Amount: new(big.Int).Set(amount)})
	p.log.Info("withdraw",
		zap.String("user", caller.Hex()),
		zap.String("token", tokenAddr.Hex()),
		zap.String("amount", amount.String()))
	return nil
}

// UserBalance returns the caller-visible internal balance.
func (p *Platform) UserBalance(user, tokenAddr common.Address) *big.Int {
	return p.ledger.Balance(user, tokenAddr)
}

// pull transfers amount from user to the platform treasury, converting a
// false return into an allowance error.
func (p *Platform) pull(t token.ERC20, from common.Address, amount *big.Int) error {
	ok, err := t.TransferFrom(p.self, from, p.self, amount)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("token %s: transfer from %s rejected", t.Address().Hex(), from.Hex())
	}
	return nil
}

// push transfers amount from the platform treasury to user.
func (p *Platform) push(t token.ERC20, to common.Address, amount *big.Int) error {
	ok, err := t.Transfer(p.self, to, amount)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("token %s: transfer to %s rejected", t.Address().Hex(), to.Hex())
	}
	return nil
}

// ----------------------------------------------------------------------------
// Order lifecycle
// ----------------------------------------------------------------------------

// CreateOrder validates and stores a new order, funding it from the
// caller's internal balance first and pulling any shortfall from the
// caller's token account. Returns the assigned order ID.
//
// If req.BoundOrderID is set, the new order is linked to that existing
// order as a one-cancels-other pair.
func (p *Platform) CreateOrder(caller common.Address, req *Order) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now().Unix()
	if err := p.validateOrder(caller, req, now); err != nil {
		return 0, err
	}

	var partner *Order
	if req.BoundOrderID != 0 {
		var err error
		partner, err = p.bindTarget(caller, req)
		if err != nil {
			return 0, err
		}
	}

	if err := p.fundOrder(caller, req); err != nil {
		return 0, err
	}

	o := req.Clone()
	o.Owner = caller
	o.Active = true
	switch o.Kind {
	case RecurringBuy:
		o.Aux = big.NewInt(now)
	default:
		o.Aux = new(big.Int)
	}

	id, err := p.store.Append(o)
	if err != nil {
		return 0, err
	}
	p.active.Add(id)

	if partner != nil {
		partner.BoundOrderID = id
		if err := p.store.Update(partner); err != nil {
			return 0, err
		}
	}

	p.feed.Publish(OrderCreatedEvent{OrderID: id, Owner: caller})
	p.log.Info("order created",
		zap.Uint64("id", id),
		zap.String("owner", caller.Hex()),
		zap.String("kind", o.Kind.String()),
		zap.String("baseAmount", o.BaseAmount.String()))
	return id, nil
}

func (p *Platform) validateOrder(caller common.Address, o *Order, now int64) error {
	if caller == (common.Address{}) {
		return ErrZeroAddress
	}
	if o.Owner != (common.Address{}) && o.Owner != caller {
		return ErrWrongUserAddress
	}
	if o.BaseToken == (common.Address{}) || o.TargetToken == (common.Address{}) {
		return ErrZeroAddress
	}
	if o.BaseToken == o.TargetToken {
		return ErrSameTokens
	}
	if !p.isWhitelisted(o.BaseToken) || !p.isWhitelisted(o.TargetToken) {
		return ErrTokenNotAllowed
	}
	if !isPositive(o.BaseAmount) {
		return ErrZeroAmountIn
	}
	if o.SlippageBps == 0 || o.SlippageBps > swap.BpsPrecision {
		return ErrUnsafeSlippage
	}
	if o.Expiration != 0 && o.Expiration < now {
		return ErrWrongExpiration
	}

	switch o.Kind {
	case StopLoss, TakeProfit:
		if !isPositive(o.AimTargetAmount) {
			return ErrZeroAim
		}
	case RecurringBuy:
		if o.Recurring == nil || !isPositive(o.Recurring.AmountPerPeriod) {
			return ErrZeroSwapAmount
		}
		if o.Recurring.PeriodSec <= 0 {
			return ErrWrongExpiration
		}
	case TrailingStop:
		if !isPositive(o.AimTargetAmount) {
			return ErrZeroAim
		}
		if o.Trailing == nil || !isPositive(o.Trailing.AmountPerStep) {
			return ErrZeroSwapAmount
		}
		if o.Trailing.BaseAmount == nil || o.Trailing.BaseAmount.Cmp(o.BaseAmount) != 0 {
			return ErrWrongBaseAmount
		}
		if o.Trailing.StepBps == 0 || o.Trailing.StepBps > swap.BpsPrecision {
			return ErrWrongStepAmount
		}
	default:
		return fmt.Errorf("unknown order kind %d", o.Kind)
	}
	return nil
}

// bindTarget validates the order referenced by req.BoundOrderID for
// pairing at creation time.
func (p *Platform) bindTarget(caller common.Address, req *Order) (*Order, error) {
	if req.Kind == RecurringBuy {
		return nil, ErrBindRecurring
	}
	partner, ok := p.store.Get(req.BoundOrderID)
	if !ok || partner.Owner != caller {
		return nil, ErrBoundNotYours
	}
	if !partner.Active {
		return nil, ErrBoundNotActive
	}
	if partner.Kind == RecurringBuy {
		return nil, ErrBindRecurring
	}
	if partner.BoundOrderID != 0 {
		return nil, ErrBoundAlreadyBound
	}
	return partner, nil
}

// fundOrder covers the order's base amount from the internal balance
// first, then pulls the shortfall from the caller's token account.
func (p *Platform) fundOrder(caller common.Address, o *Order) error {
	t, err := p.tokens.Get(o.BaseToken)
	if err != nil {
		return ErrTokenNotAllowed
	}
	need := new(big.Int).Set(o.BaseAmount)
	have := p.ledger.Balance(caller, o.BaseToken)

	fromLedger := need
	if have.Cmp(need) < 0 {
		fromLedger = have
	}
	if fromLedger.Sign() > 0 {
		if err := p.ledger.Debit(caller, o.BaseToken, fromLedger); err != nil {
			return err
		}
	}
	shortfall := new(big.Int).Sub(need, fromLedger)
	if shortfall.Sign() > 0 {
		if err := p.pull(t, caller, shortfall); err != nil {
			p.ledger.Credit(caller, o.BaseToken, fromLedger)
			return err
		}
	}
	return nil
}

// CancelOrders deactivates the caller's orders and refunds their
// remaining base amounts to the internal balance. IDs that do not exist,
// are already inactive, or belong to someone else are skipped; the call
// reports how many orders it actually canceled.
func (p *Platform) CancelOrders(caller common.Address, ids []uint64) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	canceled := 0
	for _, id := range ids {
		o, ok := p.store.Get(id)
		if !ok || !o.Active || o.Owner != caller {
			continue
		}
		if err := p.retire(o); err != nil {
			return canceled, err
		}
		p.feed.Publish(OrderCanceledEvent{OrderID: id, Owner: o.Owner})
		p.log.Info("order canceled", zap.Uint64("id", id), zap.String("owner", caller.Hex()))
		canceled++
	}
	return canceled, nil
}

// retire deactivates an order and refunds its unspent base amount to the
// owner's internal balance. Must be called with p.mu held.
func (p *Platform) retire(o *Order) error {
	if o.BaseAmount.Sign() > 0 {
		if err := p.ledger.Credit(o.Owner, o.BaseToken, o.BaseAmount); err != nil {
			return err
		}
		o.BaseAmount = new(big.Int)
	}
	o.Active = false
	p.active.Remove(o.ID)
	return p.store.Update(o)
}

// BindOrders links orders pairwise as one-cancels-other pairs:
// left[i] <-> right[i]. All pairs are validated before any link is
// written, so the call is atomic. Rebinding overwrites a previous link on
// either side and clears the stale partner's back-reference.
func (p *Platform) BindOrders(caller common.Address, left, right []uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(left) == 0 || len(left) != len(right) {
		return ErrListMismatch
	}

	type pair struct{ a, b *Order }
	pairs := make([]pair, 0, len(left))
	for i := range left {
		if left[i] == right[i] {
			return ErrSelfBind
		}
		a, err := p.bindable(caller, left[i])
		if err != nil {
			return err
		}
		b, err := p.bindable(caller, right[i])
		if err != nil {
			return err
		}
		pairs = append(pairs, pair{a, b})
	}

	for _, pr := range pairs {
		if err := p.clearLink(pr.a); err != nil {
			return err
		}
		if err := p.clearLink(pr.b); err != nil {
			return err
		}
		pr.a.BoundOrderID = pr.b.ID
		pr.b.BoundOrderID = pr.a.ID
		if err := p.store.Update(pr.a); err != nil {
			return err
		}
		if err := p.store.Update(pr.b); err != nil {
			return err
		}
	}

	p.feed.Publish(OrdersBoundEvent{Left: append([]uint64(nil), left...), Right: append([]uint64(nil), right...)})
	p.log.Info("orders bound", zap.Uint64s("left", left), zap.Uint64s("right", right))
	return nil
}

func (p *Platform) bindable(caller common.Address, id uint64) (*Order, error) {
	o, ok := p.store.Get(id)
	if !ok || o.Owner != caller {
		return nil, ErrNotYourOrder
	}
	if !o.Active {
		return nil, ErrBoundNotActive
	}
	if o.Kind == RecurringBuy {
		return nil, ErrBindRecurring
	}
	return o, nil
}

// clearLink removes a stale reciprocal link before rebinding.
func (p *Platform) clearLink(o *Order) error {
	if o.BoundOrderID == 0 {
		return nil
	}
	prev, ok := p.store.Get(o.BoundOrderID)
	if ok && prev.BoundOrderID == o.ID {
		prev.BoundOrderID = 0
		if err := p.store.Update(prev); err != nil {
			return err
		}
	}
	o.BoundOrderID = 0
	return nil
}

// ----------------------------------------------------------------------------
// Getters
// ----------------------------------------------------------------------------

// OrderCounter returns the total number of orders ever created.
func (p *Platform) OrderCounter() uint64 { return p.store.Count() }

// GetOrder returns a copy of the stored order.
func (p *Platform) GetOrder(id uint64) (*Order, bool) {
	o, ok := p.store.Get(id)
	if !ok {
		return nil, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return o.Clone(), true
}

// IsActiveOrder reports whether id is in the active set.
func (p *Platform) IsActiveOrder(id uint64) bool { return p.active.Contains(id) }

// ActiveOrdersLength returns the number of active orders.
func (p *Platform) ActiveOrdersLength() int { return p.active.Len() }

// ActiveOrderAt returns the active order ID at position i.
func (p *Platform) ActiveOrderAt(i int) uint64 { return p.active.At(i) }

// ActiveOrdersIDs returns a page of active order IDs.
func (p *Platform) ActiveOrdersIDs(offset, count int) []uint64 {
	return p.active.Page(offset, count)
}

// UserOrders returns the IDs of every order the user has ever created.
func (p *Platform) UserOrders(user common.Address) []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uint64, 0)
	for id := uint64(1); id <= p.store.Count(); id++ {
		if o, ok := p.store.Get(id); ok && o.Owner == user {
			out = append(out, id)
		}
	}
	return out
}

// UserOrdersInfo returns copies of every order the user has ever created.
func (p *Platform) UserOrdersInfo(user common.Address) []*Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Order, 0)
	for id := uint64(1); id <= p.store.Count(); id++ {
		if o, ok := p.store.Get(id); ok && o.Owner == user {
			out = append(out, o.Clone())
		}
	}
	return out
}

func (p *Platform) Admin() common.Address    { return p.admin }
func (p *Platform) Treasury() common.Address { return p.self }

func (p *Platform) FeeRecipient() common.Address {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.feeRecipient
}

func (p *Platform) ProtocolFeeBps() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.feeBps
}

// IsWhitelisted reports whether a token may be used on the platform.
func (p *Platform) IsWhitelisted(tokenAddr common.Address) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isWhitelisted(tokenAddr)
}

func (p *Platform) isWhitelisted(tokenAddr common.Address) bool {
	_, ok := p.whitelist[tokenAddr]
	return ok
}

func (p *Platform) allowedToken(addr common.Address) (token.ERC20, error) {
	if !p.isWhitelisted(addr) {
		return nil, ErrTokenNotAllowed
	}
	t, err := p.tokens.Get(addr)
	if err != nil {
		return nil, ErrTokenNotAllowed
	}
	return t, nil
}

// ----------------------------------------------------------------------------
// Admin surface
// ----------------------------------------------------------------------------

func (p *Platform) requireAdmin(caller common.Address) error {
	if caller != p.admin {
		return ErrNotAdmin
	}
	return nil
}

// AddTokensToWhitelist allows the given tokens on the platform. Admin only.
func (p *Platform) AddTokensToWhitelist(caller common.Address, addrs []common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requireAdmin(caller); err != nil {
		return err
	}
	for _, a := range addrs {
		if a == (common.Address{}) {
			return ErrZeroAddress
		}
	}
	for _, a := range addrs {
		if err := p.db.Set(whitelistKey(a), []byte{1}, pebble.Sync); err != nil {
			return fmt.Errorf("failed to save whitelist entry: %w", err)
		}
		p.whitelist[a] = struct{}{}
	}
	p.log.Info("tokens whitelisted", zap.Int("count", len(addrs)))
	return nil
}

// RemoveTokensFromWhitelist disallows the given tokens for new orders and
// deposits. Existing orders keep running. Admin only.
func (p *Platform) RemoveTokensFromWhitelist(caller common.Address, addrs []common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requireAdmin(caller); err != nil {
		return err
	}
	for _, a := range addrs {
		if err := p.db.Delete(whitelistKey(a), pebble.Sync); err != nil {
			return fmt.Errorf("failed to delete whitelist entry: %w", err)
		}
		delete(p.whitelist, a)
		p.feed.Publish(TokenRemovedEvent{Token: a})
	}
	p.log.Info("tokens removed from whitelist", zap.Int("count", len(addrs)))
	return nil
}

// SetProtocolFee updates the execution fee in basis points. Admin only.
func (p *Platform) SetProtocolFee(caller common.Address, bps uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requireAdmin(caller); err != nil {
		return err
	}
	if bps >= swap.BpsPrecision {
		return ErrFeeTooHigh
	}
	p.feeBps = bps
	p.log.Info("protocol fee updated", zap.Uint32("bps", bps))
	return nil
}

// SetFeeRecipient updates where protocol fees are credited. Admin only.
func (p *Platform) SetFeeRecipient(caller, recipient common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requireAdmin(caller); err != nil {
		return err
	}
	if recipient == (common.Address{}) {
		return ErrZeroAddress
	}
	p.feeRecipient = recipient
	p.log.Info("fee recipient updated", zap.String("recipient", recipient.Hex()))
	return nil
}
