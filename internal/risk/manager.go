package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/alphaflow/internal/config"
	"github.com/web3guy0/alphaflow/internal/metrics"
)

// ═══════════════════════════════════════════════════════════════════════════════
// RISK MANAGER - Gatekeeper for all trades
// ═══════════════════════════════════════════════════════════════════════════════
//
// Pre-trade gate applied after scoring and before sizing. Rules, in order:
//
//   1. Active pause window                        → DENY
//   2. Loss streak >= LOSS_STREAK_PAUSE           → start pause, DENY
//   3. Active positions >= MAX_CONCURRENT         → DENY
//   4. Enough history AND win rate below floor    → DENY
//   5. Otherwise                                  → ALLOW
//
// Pause state is persisted so a restart resumes the pause.
//
// ═══════════════════════════════════════════════════════════════════════════════

// StateStore persists risk state across restarts
type StateStore interface {
	// PauseState returns the pause expiry, or nil when trading is not paused
	PauseState() (*time.Time, error)
	// SetPause records a pause until the given time
	SetPause(until time.Time) error
	// RecentOutcomes returns win/loss flags of the most recent closed trades,
	// newest first
	RecentOutcomes(limit int) ([]bool, error)
}

// Decision is the risk manager's verdict for one trade attempt
type Decision struct {
	Allowed bool
	Reason  string
}

// Manager enforces global trading limits
type Manager struct {
	mu  sync.Mutex
	cfg *config.Config

	store             StateStore
	consecutiveLosses int
	pausedUntil       time.Time

	now func() time.Time
}

// NewManager creates the risk manager and restores persisted state
func NewManager(cfg *config.Config, store StateStore) (*Manager, error) {
	m := &Manager{cfg: cfg, store: store, now: time.Now}

	if store != nil {
		if until, err := store.PauseState(); err != nil {
			return nil, fmt.Errorf("load pause state: %w", err)
		} else if until != nil && until.After(m.now()) {
			m.pausedUntil = *until
			log.Warn().Time("until", *until).Msg("⏸️ Trading pause restored from state")
		}

		// Rebuild the loss streak from the tail of recent outcomes.
		outcomes, err := store.RecentOutcomes(cfg.LossStreakPause)
		if err != nil {
			return nil, fmt.Errorf("load outcomes: %w", err)
		}
		for _, win := range outcomes {
			if win {
				break
			}
			m.consecutiveLosses++
		}
	}

	log.Info().
		Int("loss_streak_pause", cfg.LossStreakPause).
		Int("pause_hours", cfg.PauseHours).
		Int("max_positions", cfg.MaxConcurrentPositions).
		Float64("win_rate_floor", cfg.WinRateFloor).
		Msg("🛡️ Risk manager initialized")

	return m, nil
}

// CanTrade decides whether a new position may be opened. activePositions is
// the current open+breakeven count.
func (m *Manager) CanTrade(activePositions int) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	// 1. Active pause
	if now.Before(m.pausedUntil) {
		remaining := m.pausedUntil.Sub(now).Round(time.Minute)
		return m.deny("paused", fmt.Sprintf("trading paused, %s remaining", remaining))
	}

	// 2. Loss streak trips a fresh pause
	if m.consecutiveLosses >= m.cfg.LossStreakPause {
		m.pausedUntil = now.Add(time.Duration(m.cfg.PauseHours) * time.Hour)
		if m.store != nil {
			if err := m.store.SetPause(m.pausedUntil); err != nil {
				log.Error().Err(err).Msg("Failed to persist pause state")
			}
		}
		log.Warn().
			Int("consecutive_losses", m.consecutiveLosses).
			Time("until", m.pausedUntil).
			Msg("🚨 Loss streak pause tripped")
		return m.deny("loss_streak", fmt.Sprintf("loss streak of %d, paused %dh", m.consecutiveLosses, m.cfg.PauseHours))
	}

	// 3. Concurrent position cap
	if activePositions >= m.cfg.MaxConcurrentPositions {
		return m.deny("max_positions", fmt.Sprintf("%d/%d positions open", activePositions, m.cfg.MaxConcurrentPositions))
	}

	// 4. Win-rate floor once enough history exists
	if m.store != nil {
		outcomes, err := m.store.RecentOutcomes(m.cfg.MinStatsTrades)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load trade outcomes, skipping win-rate check")
		} else if len(outcomes) >= m.cfg.MinStatsTrades {
			wins := 0
			for _, w := range outcomes {
				if w {
					wins++
				}
			}
			rate := float64(wins) / float64(len(outcomes))
			if rate < m.cfg.WinRateFloor {
				return m.deny("win_rate", fmt.Sprintf("win rate %.0f%% below floor %.0f%%", rate*100, m.cfg.WinRateFloor*100))
			}
		}
	}

	return Decision{Allowed: true}
}

// RecordTradeResult updates the loss streak after a position closes
func (m *Manager) RecordTradeResult(isWin bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isWin {
		m.consecutiveLosses = 0
	} else {
		m.consecutiveLosses++
	}

	log.Info().
		Bool("win", isWin).
		Int("consecutive_losses", m.consecutiveLosses).
		Msg("📊 Trade result recorded")
}

// ConsecutiveLosses returns the current streak
func (m *Manager) ConsecutiveLosses() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consecutiveLosses
}

// PausedUntil returns the pause expiry (zero when not paused)
func (m *Manager) PausedUntil() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pausedUntil
}

// Pause manually pauses trading (operator command)
func (m *Manager) Pause(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pausedUntil = m.now().Add(d)
	if m.store != nil {
		if err := m.store.SetPause(m.pausedUntil); err != nil {
			log.Error().Err(err).Msg("Failed to persist pause state")
		}
	}
}

// Resume clears any pause and resets the streak (operator command)
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pausedUntil = time.Time{}
	m.consecutiveLosses = 0
	if m.store != nil {
		if err := m.store.SetPause(time.Time{}); err != nil {
			log.Error().Err(err).Msg("Failed to clear pause state")
		}
	}
}

// SetClock overrides the time source (tests)
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Manager) deny(metric, reason string) Decision {
	metrics.RiskDenials.WithLabelValues(metric).Inc()
	log.Debug().Str("reason", reason).Msg("🚫 Trade denied by risk manager")
	return Decision{Allowed: false, Reason: reason}
}
