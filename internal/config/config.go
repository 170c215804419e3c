package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/alphaflow/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION - All settings from environment variables
// ═══════════════════════════════════════════════════════════════════════════════

// GateThresholds holds per-chain gate limits. The two chains have materially
// different liquidity regimes, so every limit is chain-specific.
type GateThresholds struct {
	MinLiquidityUSD    decimal.Decimal
	MinHolders         int
	MaxTop10Pct        float64
	MaxTop10BondingPct float64 // tightened for bonding-curve tokens
	MaxSlippageBps     float64
	MaxTaxPct          float64 // BSC only

	// Exit gate
	MinLiquidityNative   decimal.Decimal
	ExitSlippagePassPct  float64
	ExitSlippageLimitPct float64

	TimeStopMinutes int
}

// Config holds all configuration for the pipeline
type Config struct {
	// Mode
	ShadowMode     bool
	AutoBuyEnabled bool
	Debug          bool

	// Telegram
	TelegramToken    string
	TelegramChatID   int64
	TelegramChannels []string

	// Source adapters
	SmartMoneyWSURL string
	HotBoardURL     string
	DiscoveryURL    string
	PollInterval    time.Duration

	// Snapshot providers
	SolDataURL      string
	BscRPCURL       string
	HoneypotAPIURL  string
	ProviderRPS     float64
	ProviderBurst   int
	ProviderTimeout time.Duration
	CacheTTL        time.Duration
	ExcludedHolders []string

	// Signal bus
	BusCapacity       int
	AdapterMaxQueue   int
	SourceDedupWindow time.Duration
	GlobalDedupWindow time.Duration

	// Validator
	AggregationWindow  time.Duration
	MaxWindowExtend    time.Duration
	SignalExpiry       time.Duration
	HeatWindow         time.Duration
	ScoreTimeout       time.Duration
	ScoreWorkers       int
	FinalizeSmartCount int

	// Risk
	MaxConcurrentPositions int
	LossStreakPause        int
	PauseHours             int
	MinStatsTrades         int
	WinRateFloor           float64

	// Sizing
	MaxPositionPercent decimal.Decimal
	TotalCapitalSOL    decimal.Decimal
	TotalCapitalBNB    decimal.Decimal
	SolPriceUSD        decimal.Decimal
	BnbPriceUSD        decimal.Decimal

	// Position monitor
	MonitorPoll             time.Duration
	StopLossPct             float64
	BreakevenTriggerPct     float64
	BreakevenSellPct        float64
	LiquidityCrashThreshold float64
	DevDumpPct              float64
	ExodusDropPP            float64

	// Gates
	SOL GateThresholds
	BSC GateThresholds

	// Venue (live mode)
	VenueAPIURL string
	VenueAPIKey string

	// Database
	DatabaseURL  string
	DatabasePath string

	// Metrics
	MetricsAddr string

	// Shutdown
	ShutdownGrace time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ShadowMode:     getEnvBool("SHADOW_MODE", true),
		AutoBuyEnabled: getEnvBool("AUTO_BUY_ENABLED", true),
		Debug:          getEnvBool("DEBUG", false),

		TelegramToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   getEnvInt64("TELEGRAM_CHAT_ID", 0),
		TelegramChannels: getEnvList("TELEGRAM_CHANNELS"),

		SmartMoneyWSURL: os.Getenv("SMARTMONEY_WS_URL"),
		HotBoardURL:     os.Getenv("HOTBOARD_URL"),
		DiscoveryURL:    os.Getenv("DISCOVERY_URL"),
		PollInterval:    getEnvDuration("ADAPTER_POLL_INTERVAL", 30*time.Second),

		SolDataURL:      getEnv("SOL_DATA_URL", "https://api.dexscreener.com"),
		BscRPCURL:       getEnv("BSC_RPC_URL", "https://bsc-dataseed.binance.org"),
		HoneypotAPIURL:  getEnv("HONEYPOT_API_URL", "https://api.honeypot.is"),
		ProviderRPS:     getEnvFloat("PROVIDER_RPS", 10),
		ProviderBurst:   getEnvInt("PROVIDER_BURST", 5),
		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second),
		CacheTTL:        getEnvDuration("CACHE_TTL", 60*time.Second),
		ExcludedHolders: getEnvList("EXCLUDED_HOLDERS"),

		BusCapacity:       getEnvInt("BUS_CAPACITY", 1024),
		AdapterMaxQueue:   getEnvInt("ADAPTER_MAX_QUEUE", 256),
		SourceDedupWindow: getEnvDuration("SOURCE_DEDUP_WINDOW", 30*time.Minute),
		GlobalDedupWindow: getEnvDuration("GLOBAL_DEDUP_WINDOW", time.Minute),

		AggregationWindow:  getEnvDuration("AGGREGATION_WINDOW", 10*time.Minute),
		MaxWindowExtend:    getEnvDuration("MAX_WINDOW_EXTEND", 5*time.Minute),
		SignalExpiry:       getEnvDuration("SIGNAL_EXPIRY", 30*time.Minute),
		HeatWindow:         getEnvDuration("HEAT_WINDOW", 15*time.Minute),
		ScoreTimeout:       getEnvDuration("SCORE_TIMEOUT", 5*time.Second),
		ScoreWorkers:       getEnvInt("SCORE_WORKERS", 4),
		FinalizeSmartCount: getEnvInt("FINALIZE_SMART_ONLINE", 3),

		MaxConcurrentPositions: getEnvInt("MAX_CONCURRENT_POSITIONS", 3),
		LossStreakPause:        getEnvInt("LOSS_STREAK_PAUSE", 3),
		PauseHours:             getEnvInt("PAUSE_HOURS", 24),
		MinStatsTrades:         getEnvInt("MIN_STATS_TRADES", 10),
		WinRateFloor:           getEnvFloat("WIN_RATE_FLOOR", 0.35),

		MaxPositionPercent: getEnvDecimal("MAX_POSITION_PERCENT", decimal.NewFromFloat(0.02)),
		TotalCapitalSOL:    getEnvDecimal("TOTAL_CAPITAL_SOL", decimal.NewFromInt(10)),
		TotalCapitalBNB:    getEnvDecimal("TOTAL_CAPITAL_BNB", decimal.NewFromInt(2)),
		SolPriceUSD:        getEnvDecimal("SOL_PRICE_USD", decimal.NewFromInt(150)),
		BnbPriceUSD:        getEnvDecimal("BNB_PRICE_USD", decimal.NewFromInt(600)),

		MonitorPoll:             getEnvDuration("MONITOR_POLL", 60*time.Second),
		StopLossPct:             getEnvFloat("STOP_LOSS_PCT", -50),
		BreakevenTriggerPct:     getEnvFloat("BREAKEVEN_TRIGGER_PCT", 100),
		BreakevenSellPct:        getEnvFloat("BREAKEVEN_SELL_PCT", 50),
		LiquidityCrashThreshold: getEnvFloat("LIQUIDITY_CRASH_THRESHOLD", 0.5),
		DevDumpPct:              getEnvFloat("DEV_DUMP_PCT", 10),
		ExodusDropPP:            getEnvFloat("EXODUS_DROP_PP", 30),

		SOL: GateThresholds{
			MinLiquidityUSD:      getEnvDecimal("SOL_MIN_LIQ_USD", decimal.NewFromInt(20000)),
			MinHolders:           getEnvInt("SOL_MIN_HOLDERS", 100),
			MaxTop10Pct:          getEnvFloat("SOL_MAX_TOP10_PCT", 30),
			MaxTop10BondingPct:   getEnvFloat("SOL_MAX_TOP10_BONDING_PCT", 25),
			MaxSlippageBps:       getEnvFloat("SOL_MAX_SLIPPAGE_BPS", 300),
			MinLiquidityNative:   getEnvDecimal("SOL_MIN_LIQ_NATIVE", decimal.NewFromInt(100)),
			ExitSlippagePassPct:  getEnvFloat("SOL_EXIT_SLIPPAGE_PASS_PCT", 2),
			ExitSlippageLimitPct: getEnvFloat("SOL_EXIT_SLIPPAGE_LIMIT_PCT", 5),
			TimeStopMinutes:      getEnvInt("TIME_STOP_SOL_MINUTES", 60),
		},
		BSC: GateThresholds{
			MinLiquidityUSD:      getEnvDecimal("BSC_MIN_LIQ_USD", decimal.NewFromInt(50000)),
			MinHolders:           getEnvInt("BSC_MIN_HOLDERS", 200),
			MaxTop10Pct:          getEnvFloat("BSC_MAX_TOP10_PCT", 30),
			MaxTop10BondingPct:   getEnvFloat("BSC_MAX_TOP10_BONDING_PCT", 25),
			MaxSlippageBps:       getEnvFloat("BSC_MAX_SLIPPAGE_BPS", 500),
			MaxTaxPct:            getEnvFloat("BSC_MAX_TAX_PCT", 10),
			MinLiquidityNative:   getEnvDecimal("BSC_MIN_LIQ_NATIVE", decimal.NewFromInt(50)),
			ExitSlippagePassPct:  getEnvFloat("BSC_EXIT_SLIPPAGE_PASS_PCT", 3),
			ExitSlippageLimitPct: getEnvFloat("BSC_EXIT_SLIPPAGE_LIMIT_PCT", 8),
			TimeStopMinutes:      getEnvInt("TIME_STOP_BSC_MINUTES", 120),
		},

		VenueAPIURL: os.Getenv("VENUE_API_URL"),
		VenueAPIKey: os.Getenv("VENUE_API_KEY"),

		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabasePath: getEnv("DATABASE_PATH", "alphaflow.db"),

		MetricsAddr: os.Getenv("METRICS_ADDR"),

		ShutdownGrace: getEnvDuration("SHUTDOWN_GRACE", 10*time.Second),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Thresholds returns the gate thresholds for a chain
func (c *Config) Thresholds(chain types.Chain) GateThresholds {
	if chain == types.ChainBSC {
		return c.BSC
	}
	return c.SOL
}

// Capital returns the capital pool for a chain
func (c *Config) Capital(chain types.Chain) decimal.Decimal {
	if chain == types.ChainBSC {
		return c.TotalCapitalBNB
	}
	return c.TotalCapitalSOL
}

// NativePriceUSD returns the configured native-asset USD price approximation
func (c *Config) NativePriceUSD(chain types.Chain) decimal.Decimal {
	if chain == types.ChainBSC {
		return c.BnbPriceUSD
	}
	return c.SolPriceUSD
}

func (c *Config) validate() error {
	if c.TotalCapitalSOL.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("TOTAL_CAPITAL_SOL must be positive, got %s", c.TotalCapitalSOL)
	}
	if c.TotalCapitalBNB.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("TOTAL_CAPITAL_BNB must be positive, got %s", c.TotalCapitalBNB)
	}
	if c.MaxPositionPercent.LessThanOrEqual(decimal.Zero) || c.MaxPositionPercent.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("MAX_POSITION_PERCENT must be in (0,1], got %s", c.MaxPositionPercent)
	}
	if c.MaxConcurrentPositions < 1 {
		return fmt.Errorf("MAX_CONCURRENT_POSITIONS must be >= 1, got %d", c.MaxConcurrentPositions)
	}
	if c.WinRateFloor < 0 || c.WinRateFloor > 1 {
		return fmt.Errorf("WIN_RATE_FLOOR must be in [0,1], got %.2f", c.WinRateFloor)
	}
	if c.ScoreWorkers < 1 {
		return fmt.Errorf("SCORE_WORKERS must be >= 1, got %d", c.ScoreWorkers)
	}
	if !c.ShadowMode && c.VenueAPIURL == "" {
		return fmt.Errorf("VENUE_API_URL is required when SHADOW_MODE=false")
	}
	if len(c.TelegramChannels) > 0 && c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required when TELEGRAM_CHANNELS is set")
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// Bare numbers are seconds
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
