package engine_test

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/Roman-Yarinski/trading/pkg/engine"
)

func TestTakeProfitTriggersAtAim(t *testing.T) {
	f := newTestPlatform(t)

	id, _ := f.p.CreateOrder(alice, takeProfitOrder(100, 500))

	f.adapter.setPrice(4, 1) // quote(100) = 400 < 500
	if f.p.CheckOrder(id) {
		t.Error("condition true below aim")
	}

	f.adapter.setPrice(5, 1) // quote(100) = 500 >= 500
	if !f.p.CheckOrder(id) {
		t.Error("condition false at aim")
	}

	executed := f.p.ExecuteOrders([]uint64{id})
	if len(executed) != 1 || executed[0] != id {
		t.Fatalf("executed = %v, want [%d]", executed, id)
	}

	// 1% protocol fee on 500 out: 5 to the collector, 495 to the owner.
	if got := f.p.UserBalance(alice, usdtAddr); got.Cmp(big.NewInt(495)) != 0 {
		t.Errorf("owner credit = %s, want 495", got)
	}
	if got := f.p.UserBalance(feeCollector, usdtAddr); got.Cmp(big.NewInt(5)) != 0 {
		t.Errorf("fee credit = %s, want 5", got)
	}

	o, _ := f.p.GetOrder(id)
	if o.Active || o.BaseAmount.Sign() != 0 {
		t.Errorf("order not retired: active=%v remaining=%s", o.Active, o.BaseAmount)
	}
	if f.p.IsActiveOrder(id) {
		t.Error("retired order still in active index")
	}
}

func TestStopLossFiresInsideBandOnly(t *testing.T) {
	f := newTestPlatform(t)

	id, _ := f.p.CreateOrder(alice, stopLossOrder(100, 500, 400))

	// 450 sits inside [400, 500].
	f.adapter.setPrice(45, 10)
	if !f.p.CheckOrder(id) {
		t.Error("condition false inside the band")
	}

	// 350 gapped below the floor, the order waits.
	f.adapter.setPrice(35, 10)
	if f.p.CheckOrder(id) {
		t.Error("condition true below the floor")
	}

	// 550 above the trigger level.
	f.adapter.setPrice(55, 10)
	if f.p.CheckOrder(id) {
		t.Error("condition true above the aim")
	}

	f.adapter.setPrice(45, 10)
	executed := f.p.ExecuteOrders([]uint64{id})
	if len(executed) != 1 {
		t.Fatalf("executed = %v, want one order", executed)
	}
	o, _ := f.p.GetOrder(id)
	if o.Active {
		t.Error("stop-loss not retired after execution")
	}
}

func TestRecurringBuySpendsPerPeriod(t *testing.T) {
	f := newTestPlatform(t)

	id, err := f.p.CreateOrder(alice, &engine.Order{
		BaseToken:   wethAddr,
		TargetToken: usdtAddr,
		SlippageBps: 100,
		BaseAmount:  big.NewInt(25),
		Kind:        engine.RecurringBuy,
		Recurring:   &engine.RecurringParams{PeriodSec: 3600, AmountPerPeriod: big.NewInt(10)},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	// First period has not elapsed yet.
	if f.p.CheckOrder(id) {
		t.Error("recurring order ready at creation")
	}

	f.clock.Advance(time.Hour)
	if !f.p.CheckOrder(id) {
		t.Fatal("recurring order not ready after one period")
	}
	f.p.ExecuteOrders([]uint64{id})

	o, _ := f.p.GetOrder(id)
	if o.BaseAmount.Cmp(big.NewInt(15)) != 0 {
		t.Errorf("remaining = %s, want 15", o.BaseAmount)
	}
	if !o.Active {
		t.Error("recurring order retired with budget left")
	}
	if f.p.CheckOrder(id) {
		t.Error("recurring order ready immediately after execution")
	}

	f.clock.Advance(time.Hour)
	f.p.ExecuteOrders([]uint64{id})

	// Final period spends the 5 below the per-period amount and retires.
	f.clock.Advance(time.Hour)
	executed := f.p.ExecuteOrders([]uint64{id})
	if len(executed) != 1 {
		t.Fatalf("final execution = %v, want [%d]", executed, id)
	}
	o, _ = f.p.GetOrder(id)
	if o.Active || o.BaseAmount.Sign() != 0 {
		t.Errorf("exhausted order not retired: active=%v remaining=%s", o.Active, o.BaseAmount)
	}
	if got := f.p.UserBalance(alice, usdtAddr); got.Sign() == 0 {
		t.Error("no proceeds credited to owner")
	}
}

func TestRecurringOrderExpires(t *testing.T) {
	f := newTestPlatform(t)

	id, _ := f.p.CreateOrder(alice, &engine.Order{
		BaseToken:   wethAddr,
		TargetToken: usdtAddr,
		SlippageBps: 100,
		BaseAmount:  big.NewInt(25),
		Expiration:  f.clock.Now().Unix() + 1800,
		Kind:        engine.RecurringBuy,
		Recurring:   &engine.RecurringParams{PeriodSec: 3600, AmountPerPeriod: big.NewInt(10)},
	})

	f.clock.Advance(time.Hour)
	if f.p.CheckOrder(id) {
		t.Error("expired order reported ready")
	}
	if executed := f.p.ExecuteOrders([]uint64{id}); len(executed) != 0 {
		t.Errorf("expired order executed: %v", executed)
	}
}

func TestTrailingStopRatchet(t *testing.T) {
	f := newTestPlatform(t)

	base := int64(100_000_000)
	id, err := f.p.CreateOrder(alice, &engine.Order{
		BaseToken:       wethAddr,
		TargetToken:     usdtAddr,
		SlippageBps:     100,
		BaseAmount:      big.NewInt(base),
		AimTargetAmount: big.NewInt(200_000_000),
		Kind:            engine.TrailingStop,
		Trailing: &engine.TrailingParams{
			BaseAmount:    big.NewInt(base),
			AmountPerStep: big.NewInt(10_000_000),
			StepBps:       1000, // 10%
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	// Unarmed: behaves like a take-profit against the aim.
	f.adapter.setPrice(199, 100)
	if f.p.CheckOrder(id) {
		t.Error("unarmed order ready below aim")
	}
	f.adapter.setPrice(202, 100)
	if !f.p.CheckOrder(id) {
		t.Fatal("unarmed order not ready at aim")
	}
	f.p.ExecuteOrders([]uint64{id})

	o, _ := f.p.GetOrder(id)
	if o.Aux.Cmp(big.NewInt(202_000_000)) != 0 {
		t.Fatalf("fixing level = %s, want 202000000", o.Aux)
	}
	if o.BaseAmount.Cmp(big.NewInt(90_000_000)) != 0 {
		t.Errorf("remaining = %s, want 90000000", o.BaseAmount)
	}

	// Armed at 202: the next step needs >= 202 + 10% = 222.2M.
	f.adapter.setPrice(220, 100)
	if f.p.CheckOrder(id) {
		t.Error("order ready inside the step band")
	}
	f.adapter.setPrice(225, 100)
	if !f.p.CheckOrder(id) {
		t.Fatal("order not ready above the upward step")
	}
	f.p.ExecuteOrders([]uint64{id})

	o, _ = f.p.GetOrder(id)
	if o.Aux.Cmp(big.NewInt(225_000_000)) != 0 {
		t.Fatalf("fixing level = %s, want 225000000", o.Aux)
	}
	if o.BaseAmount.Cmp(big.NewInt(80_000_000)) != 0 {
		t.Errorf("remaining = %s, want 80000000", o.BaseAmount)
	}

	// Falling through the lower bound (225 - 10% = 202.5M) liquidates
	// everything left and retires the order.
	f.adapter.setPrice(190, 100)
	executed := f.p.ExecuteOrders([]uint64{id})
	if len(executed) != 1 {
		t.Fatalf("exit leg = %v, want [%d]", executed, id)
	}
	o, _ = f.p.GetOrder(id)
	if o.Active || o.BaseAmount.Sign() != 0 {
		t.Errorf("order not retired on exit: active=%v remaining=%s", o.Active, o.BaseAmount)
	}
}

func TestTrailingValidation(t *testing.T) {
	f := newTestPlatform(t)

	mk := func() *engine.Order {
		return &engine.Order{
			BaseToken:       wethAddr,
			TargetToken:     usdtAddr,
			SlippageBps:     100,
			BaseAmount:      big.NewInt(100),
			AimTargetAmount: big.NewInt(200),
			Kind:            engine.TrailingStop,
			Trailing: &engine.TrailingParams{
				BaseAmount:    big.NewInt(100),
				AmountPerStep: big.NewInt(10),
				StepBps:       1000,
			},
		}
	}

	o := mk()
	o.Trailing.BaseAmount = big.NewInt(50)
	if _, err := f.p.CreateOrder(alice, o); !errors.Is(err, engine.ErrWrongBaseAmount) {
		t.Errorf("mismatched base: got %v, want %v", err, engine.ErrWrongBaseAmount)
	}

	o = mk()
	o.Trailing.StepBps = 0
	if _, err := f.p.CreateOrder(alice, o); !errors.Is(err, engine.ErrWrongStepAmount) {
		t.Errorf("zero step: got %v, want %v", err, engine.ErrWrongStepAmount)
	}

	o = mk()
	o.Trailing.AmountPerStep = big.NewInt(0)
	if _, err := f.p.CreateOrder(alice, o); !errors.Is(err, engine.ErrZeroSwapAmount) {
		t.Errorf("zero step amount: got %v, want %v", err, engine.ErrZeroSwapAmount)
	}
}

func TestExecuteToleratesUnknownAndStaleIDs(t *testing.T) {
	f := newTestPlatform(t)

	if executed := f.p.ExecuteOrders([]uint64{999}); len(executed) != 0 {
		t.Errorf("unknown id executed: %v", executed)
	}

	id, _ := f.p.CreateOrder(alice, takeProfitOrder(100, 500))
	f.adapter.setPrice(5, 1)

	executed := f.p.ExecuteOrders([]uint64{id, id, 999})
	if len(executed) != 1 {
		t.Fatalf("executed = %v, want exactly one", executed)
	}
	// A second pass over the same ID is a no-op.
	if executed := f.p.ExecuteOrders([]uint64{id}); len(executed) != 0 {
		t.Errorf("retired order executed again: %v", executed)
	}
	if got := f.p.UserBalance(alice, usdtAddr); got.Cmp(big.NewInt(495)) != 0 {
		t.Errorf("owner credited %s, want 495 exactly once", got)
	}
}

func TestSwapFailureDoesNotAbortBatch(t *testing.T) {
	f := newTestPlatform(t)

	a, _ := f.p.CreateOrder(alice, takeProfitOrder(100, 500))
	b, _ := f.p.CreateOrder(alice, takeProfitOrder(100, 500))
	f.adapter.setPrice(5, 1)

	f.adapter.swapErr = errors.New("slippage exceeded")
	executed := f.p.ExecuteOrders([]uint64{a, b})
	if len(executed) != 0 {
		t.Fatalf("executed = %v with failing swaps, want none", executed)
	}
	if !f.p.IsActiveOrder(a) || !f.p.IsActiveOrder(b) {
		t.Error("orders deactivated by failed swaps")
	}

	// Once the market behaves again both execute.
	f.adapter.swapErr = nil
	executed = f.p.ExecuteOrders([]uint64{a, b})
	if len(executed) != 2 {
		t.Fatalf("executed = %v after recovery, want both", executed)
	}
}

func TestBoundPairCancelsOther(t *testing.T) {
	f := newTestPlatform(t)

	tp, _ := f.p.CreateOrder(alice, takeProfitOrder(100, 500))
	sl, _ := f.p.CreateOrder(alice, stopLossOrder(100, 300, 200))
	if err := f.p.BindOrders(alice, []uint64{tp}, []uint64{sl}); err != nil {
		t.Fatalf("bind: %v", err)
	}

	f.adapter.setPrice(5, 1) // take-profit fires
	executed := f.p.ExecuteOrders([]uint64{tp})
	if len(executed) != 1 {
		t.Fatalf("executed = %v, want [%d]", executed, tp)
	}

	osl, _ := f.p.GetOrder(sl)
	if osl.Active {
		t.Error("bound sibling still active")
	}
	if f.p.IsActiveOrder(sl) {
		t.Error("bound sibling still indexed")
	}
	// The sibling's full base amount comes back as a refund.
	if got := f.p.UserBalance(alice, wethAddr); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("sibling refund = %s, want 100", got)
	}
}

func TestShouldRebalanceScansActiveSet(t *testing.T) {
	f := newTestPlatform(t)

	a, _ := f.p.CreateOrder(alice, takeProfitOrder(100, 500))
	f.p.CreateOrder(alice, takeProfitOrder(100, 900))
	c, _ := f.p.CreateOrder(alice, takeProfitOrder(100, 450))

	f.adapter.setPrice(5, 1) // quote(100) = 500
	ready := f.p.ShouldRebalance()
	want := map[uint64]bool{a: true, c: true}
	if len(ready) != 2 {
		t.Fatalf("ready = %v, want orders %d and %d", ready, a, c)
	}
	for _, id := range ready {
		if !want[id] {
			t.Errorf("unexpected ready order %d", id)
		}
	}

	// A range scan respects its window.
	window := f.p.ShouldRebalanceRange(0, 1)
	if len(window) > 1 {
		t.Errorf("window of 1 returned %v", window)
	}
	if empty := f.p.ShouldRebalanceRange(10, 5); len(empty) != 0 {
		t.Errorf("out of range window = %v, want empty", empty)
	}

	f.adapter.setPrice(1, 1)
	if ready := f.p.ShouldRebalance(); len(ready) != 0 {
		t.Errorf("ready = %v at low price, want empty", ready)
	}
}

func TestEventsPublishedOnLifecycle(t *testing.T) {
	f := newTestPlatform(t)

	events, cancel := f.p.Events().Subscribe()
	defer cancel()

	id, _ := f.p.CreateOrder(alice, takeProfitOrder(100, 500))
	f.adapter.setPrice(5, 1)
	f.p.ExecuteOrders([]uint64{id})

	var kinds []string
	for len(events) > 0 {
		kinds = append(kinds, (<-events).Kind())
	}
	wantKinds := []string{"OrderCreated", "OrderExecuted"}
	if len(kinds) != len(wantKinds) {
		t.Fatalf("events = %v, want %v", kinds, wantKinds)
	}
	for i := range wantKinds {
		if kinds[i] != wantKinds[i] {
			t.Errorf("events = %v, want %v", kinds, wantKinds)
			break
		}
	}
}
