package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/alphaflow/internal/config"
	"github.com/web3guy0/alphaflow/internal/executor"
	"github.com/web3guy0/alphaflow/internal/metrics"
	"github.com/web3guy0/alphaflow/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// POSITION MONITOR - Tiered exit state machine
// ═══════════════════════════════════════════════════════════════════════════════
//
// One loop polls every active position each cycle. Pre-breakeven rules fire in
// strict priority order and the first match wins. Post-breakeven the moonbag
// is managed by warning counts; emergencies still force a full exit. A
// per-position in-flight guard keeps decisions serialized even if a cycle
// overruns the poll interval.
//
// Snapshot failures skip the position for that cycle. Missing data is never
// an exit condition.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Snapshots fetches current on-chain state
type Snapshots interface {
	GetSnapshot(ctx context.Context, chain types.Chain, token string, plannedNative *decimal.Decimal) (*types.ChainSnapshot, error)
}

// Store loads and persists positions
type Store interface {
	ActivePositions() ([]*types.Position, error)
	UpdatePosition(pos *types.Position) error
}

// ResultSink receives closed-trade outcomes
type ResultSink interface {
	RecordTradeResult(isWin bool)
}

// HeatSource reports current chat heat for a token
type HeatSource interface {
	Heat(fp types.Fingerprint) int
}

// ChannelTracker folds closed trades into channel performance
type ChannelTracker interface {
	RecordChannelOutcome(channel string, win bool, pnlPct float64) error
}

// Notifier pushes exit events to the operator channel
type Notifier interface {
	NotifyExit(pos *types.Position, exitType string, soldPercent, pnlPct float64)
}

// Monitor drives the exit rules for all active positions
type Monitor struct {
	cfg       *config.Config
	snapshots Snapshots
	exec      executor.Executor
	store     Store
	results   ResultSink
	heat      HeatSource
	channels  ChannelTracker
	notifier  Notifier

	mu       sync.Mutex
	inFlight map[string]bool
	failures map[string]int // consecutive snapshot failures per position

	now  func() time.Time
	wg   sync.WaitGroup
	stop chan struct{}
}

// New creates the position monitor. heat, channels and notifier may be nil.
func New(cfg *config.Config, snapshots Snapshots, exec executor.Executor, store Store, results ResultSink) *Monitor {
	return &Monitor{
		cfg:       cfg,
		snapshots: snapshots,
		exec:      exec,
		store:     store,
		results:   results,
		inFlight:  make(map[string]bool),
		failures:  make(map[string]int),
		now:       time.Now,
		stop:      make(chan struct{}),
	}
}

// WithHeat wires the chat-heat source used by phase-2 warnings
func (m *Monitor) WithHeat(h HeatSource) *Monitor { m.heat = h; return m }

// WithChannelTracker wires channel performance tracking
func (m *Monitor) WithChannelTracker(c ChannelTracker) *Monitor { m.channels = c; return m }

// WithNotifier wires exit notifications
func (m *Monitor) WithNotifier(n Notifier) *Monitor { m.notifier = n; return m }

// Start launches the poll loop
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.MonitorPoll)
		defer ticker.Stop()

		log.Info().Dur("poll", m.cfg.MonitorPoll).Msg("👁️ Position monitor started")
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				m.cycle(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for in-flight evaluations
func (m *Monitor) Stop() {
	close(m.stop)
	m.wg.Wait()
	log.Info().Msg("👁️ Position monitor stopped")
}

// cycle evaluates every active position once
func (m *Monitor) cycle(ctx context.Context) {
	positions, err := m.store.ActivePositions()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load active positions")
		return
	}

	for _, pos := range positions {
		if !m.acquire(pos.ID) {
			metrics.MonitorSkips.Inc()
			continue
		}
		m.wg.Add(1)
		go func(p *types.Position) {
			defer m.wg.Done()
			defer m.release(p.ID)
			m.evaluate(ctx, p)
		}(pos)
	}
}

func (m *Monitor) acquire(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight[id] {
		return false
	}
	m.inFlight[id] = true
	return true
}

func (m *Monitor) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inFlight, id)
}

// evaluate runs one poll for one position
func (m *Monitor) evaluate(ctx context.Context, pos *types.Position) {
	snap, err := m.snapshots.GetSnapshot(ctx, pos.Chain, pos.Token, nil)
	if err != nil || snap == nil || snap.Price == nil {
		m.recordFailure(pos, err)
		metrics.MonitorSkips.Inc()
		return
	}
	m.clearFailure(pos.ID)

	price := *snap.Price
	now := m.now()

	// HWM bookkeeping happens every poll regardless of which rule fires.
	if price.GreaterThan(pos.HighWaterMark) {
		pos.HighWaterMark = price
		pos.LastSignificantMove = now
	}

	var acted bool
	switch pos.Status {
	case types.PositionOpen:
		acted = m.phase1(ctx, pos, snap, price, now)
	case types.PositionBreakeven:
		acted = m.phase2(ctx, pos, snap, price, now)
	}

	if !acted {
		// Persist HWM / last-move updates even on a plain HOLD.
		if err := m.store.UpdatePosition(pos); err != nil {
			log.Error().Err(err).Str("position", pos.ID).Msg("Failed to persist position")
		}
	}
}

func (m *Monitor) recordFailure(pos *types.Position, err error) {
	m.mu.Lock()
	m.failures[pos.ID]++
	n := m.failures[pos.ID]
	m.mu.Unlock()

	ev := log.Debug()
	if n >= 3 {
		ev = log.Warn()
	}
	ev.Err(err).Str("position", pos.ID).Int("consecutive", n).
		Msg("Snapshot unavailable, skipping monitor cycle")
}

func (m *Monitor) clearFailure(id string) {
	m.mu.Lock()
	delete(m.failures, id)
	m.mu.Unlock()
}

// ═══════════════════════════════════════════════════════════════════════════════
// PHASE 1 - Pre-breakeven, strict priority
// ═══════════════════════════════════════════════════════════════════════════════

func (m *Monitor) phase1(ctx context.Context, pos *types.Position, snap *types.ChainSnapshot, price decimal.Decimal, now time.Time) bool {
	pnl := pos.PnLPercentAt(price)

	// 1. Price stop
	if pnl <= m.cfg.StopLossPct {
		return m.fullExit(ctx, pos, price, types.ExitStopLoss, pnl)
	}

	// 2. Time stop. time.Since carries the monotonic reading for positions
	// opened in this process, so wall-clock jumps cannot fire it early.
	holdMinutes := m.now().Sub(pos.EntryTime).Minutes()
	if holdMinutes >= float64(m.cfg.Thresholds(pos.Chain).TimeStopMinutes) && pnl < 20 {
		return m.fullExit(ctx, pos, price, types.ExitTimeStop, pnl)
	}

	// 3-5. Emergencies
	if reason, hit := m.emergency(pos, snap); hit {
		log.Warn().Str("position", pos.ID).Str("trigger", reason).Msg("🚨 Emergency exit")
		return m.fullExit(ctx, pos, price, types.ExitEmergency, pnl)
	}

	// 6. Breakeven trim
	if pnl >= m.cfg.BreakevenTriggerPct {
		return m.breakevenTrim(ctx, pos, price, pnl, now)
	}

	return false
}

// emergency checks liquidity crash, dev dump and smart-money exodus.
// Unknown fields on either side never trigger.
func (m *Monitor) emergency(pos *types.Position, snap *types.ChainSnapshot) (string, bool) {
	if pos.EntryLiquidityUSD != nil && snap.LiquidityUSD != nil && pos.EntryLiquidityUSD.IsPositive() {
		ratio, _ := snap.LiquidityUSD.Div(*pos.EntryLiquidityUSD).Float64()
		if ratio < m.cfg.LiquidityCrashThreshold {
			return "liquidity_crash", true
		}
	}
	if pos.EntryTop1Percent != nil && snap.Top1HolderPercent != nil {
		if *pos.EntryTop1Percent-*snap.Top1HolderPercent > m.cfg.DevDumpPct {
			return "dev_dump", true
		}
	}
	if pos.EntryTop10Percent != nil && snap.Top10HolderPercent != nil {
		if *pos.EntryTop10Percent-*snap.Top10HolderPercent > m.cfg.ExodusDropPP {
			return "smart_money_exodus", true
		}
	}
	return "", false
}

func (m *Monitor) breakevenTrim(ctx context.Context, pos *types.Position, price decimal.Decimal, pnl float64, now time.Time) bool {
	sellPct := m.cfg.BreakevenSellPct
	if _, err := m.exec.Sell(ctx, pos, sellPct, price, types.ExitBreakeven); err != nil {
		log.Error().Err(err).Str("position", pos.ID).Msg("Breakeven trim failed")
		return false
	}

	pos.RemainingPercent -= pos.RemainingPercent * sellPct / 100
	pos.Status = types.PositionBreakeven
	pos.BreakevenDone = true
	pos.BreakevenTime = &now
	pos.BreakevenPrice = &price
	if err := m.store.UpdatePosition(pos); err != nil {
		log.Error().Err(err).Str("position", pos.ID).Msg("Failed to persist breakeven trim")
	}

	log.Info().
		Str("token", pos.Token).
		Float64("pnl_pct", pnl).
		Float64("remaining_pct", pos.RemainingPercent).
		Msg("💰 Breakeven trim, moonbag is free")
	if m.notifier != nil {
		m.notifier.NotifyExit(pos, types.ExitBreakeven, sellPct, pnl)
	}
	return true
}

// ═══════════════════════════════════════════════════════════════════════════════
// PHASE 2 - Free moonbag, warning counts
// ═══════════════════════════════════════════════════════════════════════════════

func (m *Monitor) phase2(ctx context.Context, pos *types.Position, snap *types.ChainSnapshot, price decimal.Decimal, now time.Time) bool {
	pnl := pos.PnLPercentAt(price)

	if reason, hit := m.emergency(pos, snap); hit {
		log.Warn().Str("position", pos.ID).Str("trigger", reason).Msg("🚨 Emergency exit on moonbag")
		return m.fullExit(ctx, pos, price, types.ExitEmergency, pnl)
	}

	warnings := m.countWarnings(pos, snap, price, now)
	switch {
	case warnings >= 3:
		return m.fullExit(ctx, pos, price, types.ExitProfitTake, pnl)
	case warnings == 2:
		return m.partialSell(ctx, pos, price, 50, pnl)
	case warnings == 1:
		return m.partialSell(ctx, pos, price, 33, pnl)
	}
	return false
}

func (m *Monitor) countWarnings(pos *types.Position, snap *types.ChainSnapshot, price decimal.Decimal, now time.Time) int {
	warnings := 0

	// Heat decay
	if m.heat != nil && pos.EntryTGAccel > 0 {
		current := float64(m.heat.Heat(types.Fingerprint{Chain: pos.Chain, Address: pos.Token}))
		if current/pos.EntryTGAccel < 0.4 {
			warnings++
		}
	}

	// Smart-money selling
	if pos.EntryTop10Percent != nil && snap.Top10HolderPercent != nil {
		if *pos.EntryTop10Percent-*snap.Top10HolderPercent > 15 {
			warnings++
		}
	}

	// Sideways too long
	if now.Sub(pos.LastSignificantMove).Minutes() > 30 {
		warnings++
	}

	// Drawdown from HWM
	if pos.HighWaterMark.IsPositive() {
		drawdown, _ := pos.HighWaterMark.Sub(price).Div(pos.HighWaterMark).Float64()
		if drawdown > 0.5 {
			warnings++
		}
	}

	return warnings
}

// ═══════════════════════════════════════════════════════════════════════════════
// SELLS
// ═══════════════════════════════════════════════════════════════════════════════

func (m *Monitor) partialSell(ctx context.Context, pos *types.Position, price decimal.Decimal, percent, pnl float64) bool {
	if _, err := m.exec.Sell(ctx, pos, percent, price, types.ExitProfitTake); err != nil {
		log.Error().Err(err).Str("position", pos.ID).Msg("Partial sell failed")
		return false
	}

	pos.RemainingPercent -= pos.RemainingPercent * percent / 100
	if err := m.store.UpdatePosition(pos); err != nil {
		log.Error().Err(err).Str("position", pos.ID).Msg("Failed to persist partial sell")
	}

	log.Info().
		Str("token", pos.Token).
		Float64("sold_pct", percent).
		Float64("remaining_pct", pos.RemainingPercent).
		Float64("pnl_pct", pnl).
		Msg("📉 Moonbag trimmed on warnings")
	if m.notifier != nil {
		m.notifier.NotifyExit(pos, types.ExitProfitTake, percent, pnl)
	}
	return true
}

func (m *Monitor) fullExit(ctx context.Context, pos *types.Position, price decimal.Decimal, exitType string, pnl float64) bool {
	if _, err := m.exec.Sell(ctx, pos, 100, price, exitType); err != nil {
		log.Error().Err(err).Str("position", pos.ID).Str("type", exitType).Msg("Exit sell failed")
		return false
	}

	now := m.now()
	pos.RemainingPercent = 0
	pos.Status = types.PositionClosed
	pos.ExitTime = &now
	pos.ExitPrice = &price
	pos.ExitType = exitType
	pos.PnLPercent = &pnl

	pnlNative := pos.EntrySizeNative.Mul(decimal.NewFromFloat(pnl / 100))
	pos.PnLNative = &pnlNative

	if err := m.store.UpdatePosition(pos); err != nil {
		log.Error().Err(err).Str("position", pos.ID).Msg("Failed to persist exit")
	}

	isWin := pnl > 0
	if m.results != nil {
		m.results.RecordTradeResult(isWin)
	}
	if m.channels != nil && pos.SignalID != "" {
		if err := m.channels.RecordChannelOutcome(pos.SignalID, isWin, pnl); err != nil {
			log.Warn().Err(err).Str("channel", pos.SignalID).Msg("Failed to record channel outcome")
		}
	}

	log.Info().
		Str("token", pos.Token).
		Str("type", exitType).
		Float64("pnl_pct", pnl).
		Str("pnl_native", pnlNative.StringFixed(4)).
		Msg("🏁 Position closed")
	if m.notifier != nil {
		m.notifier.NotifyExit(pos, exitType, 100, pnl)
	}
	return true
}

// SetClock overrides the time source (tests)
func (m *Monitor) SetClock(now func() time.Time) { m.now = now }
