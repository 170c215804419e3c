// AlphaFlow - Multi-chain signal-driven token trading pipeline
//
// Ingests chat, smart-money, hot-board and discovery signals for SOL and BSC
// tokens, funnels them through dedup, aggregation, safety gates and a
// composite scorer, and manages resulting positions with a tiered exit
// strategy. Runs fully simulated in shadow mode by default.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/alphaflow/internal/adapters"
	"github.com/web3guy0/alphaflow/internal/bot"
	"github.com/web3guy0/alphaflow/internal/bus"
	"github.com/web3guy0/alphaflow/internal/config"
	"github.com/web3guy0/alphaflow/internal/engine"
	"github.com/web3guy0/alphaflow/internal/executor"
	"github.com/web3guy0/alphaflow/internal/gates"
	"github.com/web3guy0/alphaflow/internal/metrics"
	"github.com/web3guy0/alphaflow/internal/monitor"
	"github.com/web3guy0/alphaflow/internal/risk"
	"github.com/web3guy0/alphaflow/internal/scoring"
	"github.com/web3guy0/alphaflow/internal/sizing"
	"github.com/web3guy0/alphaflow/internal/snapshot"
	"github.com/web3guy0/alphaflow/internal/storage"
	"github.com/web3guy0/alphaflow/types"
)

const version = "1.0.0"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Str("version", version).Bool("shadow", cfg.ShadowMode).Msg("🚀 AlphaFlow starting")

	// Persistence
	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn = cfg.DatabasePath
	}
	db, err := storage.New(dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	// Metrics endpoint (no-op when METRICS_ADDR is unset)
	metrics.Serve(cfg.MetricsAddr)

	// Snapshot providers
	providers := map[types.Chain]snapshot.Provider{
		types.ChainSOL: snapshot.NewSolProvider(cfg.SolDataURL, cfg.ExcludedHolders),
	}
	bscProvider, err := snapshot.NewBscProvider(cfg.BscRPCURL, cfg.HoneypotAPIURL, cfg.ExcludedHolders)
	if err != nil {
		log.Warn().Err(err).Msg("BSC provider unavailable, BSC candidates will not be scored safe")
	} else {
		providers[types.ChainBSC] = bscProvider
		defer bscProvider.Close()
	}
	snapshots := snapshot.NewService(providers, cfg.ProviderRPS, cfg.ProviderBurst, cfg.CacheTTL, cfg.ProviderTimeout)

	// Risk
	riskMgr, err := risk.NewManager(cfg, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize risk manager")
	}

	// Executor
	var exec executor.Executor
	if cfg.ShadowMode {
		exec = executor.NewShadowExecutor(db)
	} else {
		exec = executor.NewLiveExecutor(cfg, db)
	}

	// Scoring
	validator := scoring.NewValidator(cfg)
	scorer := scoring.NewScorer(cfg.SignalExpiry, cfg.HeatWindow, cfg.AggregationWindow, db, db)

	// Operator bot (optional)
	var operatorBot *bot.Bot
	if cfg.TelegramToken != "" {
		operatorBot, err = bot.New(cfg, db, riskMgr)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize telegram bot")
		}
	}

	// Engine
	var notifier engine.Notifier
	if operatorBot != nil {
		notifier = operatorBot
	}
	eng := engine.New(cfg, bus.New(cfg.BusCapacity, cfg.SourceDedupWindow, cfg.GlobalDedupWindow),
		validator, scorer, gates.NewHardGate(cfg), gates.NewExitGate(cfg),
		snapshots, riskMgr, sizing.NewSizer(cfg), exec, db, notifier)

	// Signal adapters
	if len(cfg.TelegramChannels) > 0 {
		tg, err := adapters.NewTelegramListener(cfg.TelegramToken, cfg.TelegramChannels, cfg.AdapterMaxQueue, db)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize telegram listener")
		}
		eng.AddAdapter(tg)
	}
	if cfg.SmartMoneyWSURL != "" {
		eng.AddAdapter(adapters.NewSmartMoneyAdapter(cfg.SmartMoneyWSURL, cfg.AdapterMaxQueue))
	}
	if cfg.HotBoardURL != "" {
		eng.AddAdapter(adapters.NewHotBoardAdapter(cfg.HotBoardURL, cfg.PollInterval, cfg.AdapterMaxQueue))
	}
	if cfg.DiscoveryURL != "" {
		eng.AddAdapter(adapters.NewDiscoveryAdapter(cfg.DiscoveryURL, cfg.PollInterval, cfg.AdapterMaxQueue))
	}

	// Position monitor
	mon := monitor.New(cfg, snapshots, exec, db, riskMgr).
		WithHeat(validator).
		WithChannelTracker(db)
	if operatorBot != nil {
		mon.WithNotifier(operatorBot)
	}

	ctx, cancel := context.WithCancel(context.Background())

	if err := eng.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start engine")
	}
	mon.Start(ctx)
	if operatorBot != nil {
		operatorBot.Start()
	}

	// Graceful shutdown: stop taking signals, let in-flight candidates drain,
	// then stop the monitor and flush.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutting down...")

	cancel()
	done := make(chan struct{})
	go func() {
		eng.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cfg.ShutdownGrace):
		log.Warn().Msg("Shutdown grace elapsed, forcing exit")
	}

	mon.Stop()
	if operatorBot != nil {
		operatorBot.Stop()
	}

	log.Info().Msg("👋 AlphaFlow stopped")
}
