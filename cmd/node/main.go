package main

import (
	"context"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Roman-Yarinski/trading/params"
	"github.com/Roman-Yarinski/trading/pkg/api"
	"github.com/Roman-Yarinski/trading/pkg/engine"
	"github.com/Roman-Yarinski/trading/pkg/keeper"
	"github.com/Roman-Yarinski/trading/pkg/swap"
	"github.com/Roman-Yarinski/trading/pkg/token"
	"github.com/Roman-Yarinski/trading/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	// Setup logging (write to both console and file)
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "data/node.log"
	}
	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	clock := util.RealClock{}
	tokens := token.NewRegistry()

	helper, err := swap.NewHelper(tokens, cfg.Platform.Admin,
		cfg.Platform.DefaultSlippageBps, cfg.Platform.TwapLookback, logger)
	if err != nil {
		sugar.Fatalw("swap_helper_init_failed", "err", err)
	}

	platform, err := engine.NewPlatform(engine.Config{
		DBPath:         cfg.Platform.DBPath,
		Admin:          cfg.Platform.Admin,
		FeeRecipient:   cfg.Platform.FeeRecipient,
		ProtocolFeeBps: cfg.Platform.ProtocolFeeBps,
		Treasury:       cfg.Platform.Treasury,
		Lookback:       cfg.Platform.TwapLookback,
	}, tokens, helper, clock, logger)
	if err != nil {
		sugar.Fatalw("platform_init_failed", "err", err)
	}
	defer platform.Close()

	// Devnet seeding: two tokens, one pool, whitelisted. Disable with
	// DEMO_SEED=false once real token adapters are wired in.
	if os.Getenv("DEMO_SEED") != "false" {
		if err := seedDemoEnvironment(platform, tokens, helper, cfg, clock); err != nil {
			sugar.Fatalw("demo_seed_failed", "err", err)
		}
		sugar.Info("demo environment seeded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Keeper ----
	kp := keeper.New(platform, clock, logger, cfg.Keeper.Interval)
	if cfg.Keeper.Enabled {
		go kp.Run(ctx)
	} else {
		sugar.Info("keeper_disabled - orders execute only via the API")
	}

	// ---- API Server ----
	apiServer := api.NewServer(platform, kp)
	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.API.Addr)
		if err := apiServer.Start(cfg.API.Addr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("node_started",
		"db_path", cfg.Platform.DBPath,
		"protocol_fee_bps", cfg.Platform.ProtocolFeeBps,
		"keeper_interval_ms", cfg.Keeper.Interval.Milliseconds())

	<-ctx.Done()
	sugar.Info("node_stopped")
}

// seedDemoEnvironment registers WETH/USDT with pooled liquidity and a
// funded demo account so the node is usable out of the box.
func seedDemoEnvironment(platform *engine.Platform, tokens *token.Registry,
	helper *swap.Helper, cfg params.Config, clock util.Clock) error {

	poolAddr := common.HexToAddress("0x000000000000000000000000000000000000CcC3")
	// 1000 WETH against 3M USDT, ~3000 USDT per WETH
	wethLiq, _ := new(big.Int).SetString("1000000000000000000000", 10)
	usdtLiq, _ := new(big.Int).SetString("3000000000000", 10)

	weth := token.NewStandardToken(
		common.HexToAddress("0x000000000000000000000000000000000000AaA1"), poolAddr, wethLiq)
	usdt := token.NewStandardToken(
		common.HexToAddress("0x000000000000000000000000000000000000BbB2"), poolAddr, usdtLiq)
	if err := tokens.Register(weth); err != nil {
		return err
	}
	if err := tokens.Register(usdt); err != nil {
		return err
	}

	pool, err := swap.NewPool(poolAddr, weth.Address(), usdt.Address(), 3000, wethLiq, usdtLiq, clock)
	if err != nil {
		return err
	}
	if err := helper.RegisterPool(pool); err != nil {
		return err
	}

	if err := platform.AddTokensToWhitelist(cfg.Platform.Admin,
		[]common.Address{weth.Address(), usdt.Address()}); err != nil {
		return err
	}

	demoUser := common.HexToAddress("0x000000000000000000000000000000000000DdD4")
	demoFunds, _ := new(big.Int).SetString("100000000000000000000", 10) // 100 WETH
	weth.Mint(demoUser, demoFunds)
	weth.Approve(demoUser, cfg.Platform.Treasury, demoFunds)
	return nil
}
