// Package keeper drives order execution automatically: it periodically
// scans the platform for triggered orders and executes them, mirroring
// the check/perform split of external automation networks so the same
// entry points also serve manual operators.
package keeper

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Roman-Yarinski/trading/pkg/engine"
	"github.com/Roman-Yarinski/trading/pkg/util"
)

// CheckData selects the window of the active order index one upkeep round
// inspects. A zero Count means the whole index.
type CheckData struct {
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// PerformData carries the IDs a check round found ready.
type PerformData struct {
	IDs []uint64 `json:"ids"`
}

type Keeper struct {
	platform *engine.Platform
	clock    util.Clock
	log      *zap.Logger
	interval time.Duration
}

func New(platform *engine.Platform, clock util.Clock, log *zap.Logger, interval time.Duration) *Keeper {
	if clock == nil {
		clock = util.RealClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Keeper{platform: platform, clock: clock, log: log, interval: interval}
}

// CheckUpkeep scans the window described by checkData (JSON-encoded
// CheckData; empty means the full index) and reports whether any order is
// ready, along with the JSON-encoded PerformData to hand to
// PerformUpkeep.
func (k *Keeper) CheckUpkeep(checkData []byte) (bool, []byte, error) {
	var cd CheckData
	if len(checkData) > 0 {
		if err := json.Unmarshal(checkData, &cd); err != nil {
			return false, nil, fmt.Errorf("failed to decode check data: %w", err)
		}
	}

	var ready []uint64
	if cd.Count > 0 {
		ready = k.platform.ShouldRebalanceRange(cd.Offset, cd.Count)
	} else {
		ready = k.platform.ShouldRebalance()
	}

	performData, err := json.Marshal(PerformData{IDs: ready})
	if err != nil {
		return false, nil, fmt.Errorf("failed to encode perform data: %w", err)
	}
	return len(ready) > 0, performData, nil
}

// PerformUpkeep executes the orders named by performData and returns the
// IDs that actually executed. It re-checks every condition, so stale
// perform data degrades to a smaller (possibly empty) execution. When not
// a single order executes the round fails with
// engine.ErrNothingToExecute.
func (k *Keeper) PerformUpkeep(performData []byte) ([]uint64, error) {
	var pd PerformData
	if err := json.Unmarshal(performData, &pd); err != nil {
		return nil, fmt.Errorf("failed to decode perform data: %w", err)
	}
	executed := k.platform.ExecuteOrders(pd.IDs)
	if len(executed) == 0 {
		return nil, engine.ErrNothingToExecute
	}
	return executed, nil
}

// Run loops check/perform rounds until ctx is canceled.
func (k *Keeper) Run(ctx context.Context) {
	k.log.Info("keeper started", zap.Duration("interval", k.interval))
	for {
		select {
		case <-ctx.Done():
			k.log.Info("keeper stopped")
			return
		case <-k.clock.After(k.interval):
		}

		needed, performData, err := k.CheckUpkeep(nil)
		if err != nil {
			k.log.Error("upkeep check failed", zap.Error(err))
			continue
		}
		if !needed {
			continue
		}
		executed, err := k.PerformUpkeep(performData)
		if err != nil {
			k.log.Warn("upkeep round came up empty", zap.Error(err))
			continue
		}
		k.log.Info("upkeep performed", zap.Uint64s("executed", executed))
	}
}
