package params

import (
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

type Platform struct {
	DBPath         string
	Admin          common.Address
	FeeRecipient   common.Address
	Treasury       common.Address
	ProtocolFeeBps uint32
	// DefaultSlippageBps bounds swaps whose order does not set its own.
	DefaultSlippageBps uint32
	// TwapLookback is the averaging window for trigger quotes.
	TwapLookback time.Duration
}

type Keeper struct {
	Enabled  bool
	Interval time.Duration
}

type API struct {
	Addr string
}

type Config struct {
	Platform Platform
	Keeper   Keeper
	API      API
}

func Default() Config {
	return Config{
		Platform: Platform{
			DBPath:             "data/trading",
			Admin:              common.HexToAddress("0x0000000000000000000000000000000000000Ad1"),
			FeeRecipient:       common.HexToAddress("0x0000000000000000000000000000000000000Fee"),
			Treasury:           common.HexToAddress("0x0000000000000000000000000000000000007Eab"),
			ProtocolFeeBps:     30,
			DefaultSlippageBps: 100,
			TwapLookback:       5 * time.Minute,
		},
		Keeper: Keeper{
			Enabled:  true,
			Interval: 10 * time.Second,
		},
		API: API{
			Addr: ":8080",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.Platform.DBPath = getEnv("DB_PATH", cfg.Platform.DBPath)
	cfg.API.Addr = getEnv("API_ADDR", cfg.API.Addr)

	if addr := os.Getenv("ADMIN_ADDRESS"); common.IsHexAddress(addr) {
		cfg.Platform.Admin = common.HexToAddress(addr)
	}
	if addr := os.Getenv("FEE_RECIPIENT"); common.IsHexAddress(addr) {
		cfg.Platform.FeeRecipient = common.HexToAddress(addr)
	}
	if addr := os.Getenv("TREASURY_ADDRESS"); common.IsHexAddress(addr) {
		cfg.Platform.Treasury = common.HexToAddress(addr)
	}
	if fee := os.Getenv("PROTOCOL_FEE_BPS"); fee != "" {
		if bps, err := strconv.ParseUint(fee, 10, 32); err == nil {
			cfg.Platform.ProtocolFeeBps = uint32(bps)
		}
	}
	if slip := os.Getenv("DEFAULT_SLIPPAGE_BPS"); slip != "" {
		if bps, err := strconv.ParseUint(slip, 10, 32); err == nil {
			cfg.Platform.DefaultSlippageBps = uint32(bps)
		}
	}
	if lookback := os.Getenv("TWAP_LOOKBACK_SEC"); lookback != "" {
		if sec, err := strconv.Atoi(lookback); err == nil {
			cfg.Platform.TwapLookback = time.Duration(sec) * time.Second
		}
	}
	if interval := os.Getenv("KEEPER_INTERVAL_MS"); interval != "" {
		if ms, err := strconv.Atoi(interval); err == nil {
			cfg.Keeper.Interval = time.Duration(ms) * time.Millisecond
		}
	}
	if enabled := os.Getenv("KEEPER_ENABLED"); enabled != "" {
		cfg.Keeper.Enabled = enabled == "true"
	}

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
