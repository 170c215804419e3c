package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/web3guy0/alphaflow/internal/scoring"
	"github.com/web3guy0/alphaflow/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DATABASE - Persistence for signals, positions, audits and runtime state
// ═══════════════════════════════════════════════════════════════════════════════
//
// PostgreSQL when DATABASE_URL is a postgres DSN, SQLite otherwise. The
// repository satisfies the narrow store interfaces declared by its consumers
// (adapters, risk, executor, monitor, scoring, bot).
//
// ═══════════════════════════════════════════════════════════════════════════════

const pauseStateKey = "trading_pause_until"

type Database struct {
	db *gorm.DB
}

// New opens the database and runs migrations. dsn is tried as a postgres
// connection string first; anything else is treated as a SQLite file path.
func New(dsn string) (*Database, error) {
	var db *gorm.DB
	var err error

	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		log.Info().Msg("💾 Database connected (PostgreSQL)")
	} else {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
		}
		db, err = gorm.Open(sqlite.Open(dsn), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		log.Info().Str("path", dsn).Msg("💾 Database initialized (SQLite)")
	}

	if err := db.AutoMigrate(
		&TelegramSignal{}, &PositionRecord{}, &TradeEventRecord{},
		&AINarrative{}, &ChannelPerformance{}, &GateAudit{}, &SystemState{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Database{db: db}, nil
}

// Close releases the underlying connection pool
func (d *Database) Close() {
	if sqlDB, err := d.db.DB(); err == nil {
		sqlDB.Close()
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// RAW SIGNALS
// ═══════════════════════════════════════════════════════════════════════════════

// SaveTelegramSignal stores a raw channel mention
func (d *Database) SaveTelegramSignal(token string, chain types.Chain, channelName, channelUsername, text string, ts time.Time) error {
	return d.db.Create(&TelegramSignal{
		Token:           token,
		Chain:           string(chain),
		ChannelName:     channelName,
		ChannelUsername: channelUsername,
		MessageText:     text,
		SignalTime:      ts,
	}).Error
}

// ═══════════════════════════════════════════════════════════════════════════════
// POSITIONS
// ═══════════════════════════════════════════════════════════════════════════════

// CreatePosition inserts a new position row
func (d *Database) CreatePosition(pos *types.Position) error {
	return d.db.Create(toRecord(pos)).Error
}

// UpdatePosition writes the full current state of a position
func (d *Database) UpdatePosition(pos *types.Position) error {
	return d.db.Save(toRecord(pos)).Error
}

// ActivePositions returns all open and breakeven positions
func (d *Database) ActivePositions() ([]*types.Position, error) {
	var records []PositionRecord
	err := d.db.Where("status IN ?", []string{string(types.PositionOpen), string(types.PositionBreakeven)}).
		Order("entry_time ASC").Find(&records).Error
	if err != nil {
		return nil, err
	}
	out := make([]*types.Position, 0, len(records))
	for i := range records {
		out = append(out, fromRecord(&records[i]))
	}
	return out, nil
}

// ClosedPositions returns the most recently closed positions, newest first
func (d *Database) ClosedPositions(limit int) ([]*types.Position, error) {
	var records []PositionRecord
	err := d.db.Where("status = ?", string(types.PositionClosed)).
		Order("exit_time DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, err
	}
	out := make([]*types.Position, 0, len(records))
	for i := range records {
		out = append(out, fromRecord(&records[i]))
	}
	return out, nil
}

// SaveTradeEvent records one fill
func (d *Database) SaveTradeEvent(ev types.TradeEvent) error {
	return d.db.Create(&TradeEventRecord{
		PositionID:  ev.PositionID,
		Chain:       string(ev.Chain),
		Token:       ev.Token,
		Side:        ev.Side,
		Price:       ev.Price,
		Amount:      ev.Amount,
		Percent:     ev.Percent,
		Reason:      ev.Reason,
		TxRef:       ev.TxRef,
		IsSimulated: ev.IsSimulated,
		Timestamp:   ev.Timestamp,
	}).Error
}

// RecentOutcomes returns win/loss flags of recent closed trades, newest first
func (d *Database) RecentOutcomes(limit int) ([]bool, error) {
	var records []PositionRecord
	err := d.db.Where("status = ? AND pn_l_percent IS NOT NULL", string(types.PositionClosed)).
		Order("exit_time DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, err
	}
	out := make([]bool, 0, len(records))
	for _, r := range records {
		out = append(out, r.PnLPercent != nil && *r.PnLPercent > 0)
	}
	return out, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// RISK STATE
// ═══════════════════════════════════════════════════════════════════════════════

// PauseState returns the persisted pause expiry, or nil when not paused
func (d *Database) PauseState() (*time.Time, error) {
	var state SystemState
	err := d.db.First(&state, "key = ?", pauseStateKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if state.Value == "" {
		return nil, nil
	}
	until, err := time.Parse(time.RFC3339, state.Value)
	if err != nil {
		return nil, fmt.Errorf("corrupt pause state %q: %w", state.Value, err)
	}
	return &until, nil
}

// SetPause persists the pause expiry; a zero time clears it
func (d *Database) SetPause(until time.Time) error {
	value := ""
	if !until.IsZero() {
		value = until.Format(time.RFC3339)
	}
	return d.db.Save(&SystemState{Key: pauseStateKey, Value: value}).Error
}

// ═══════════════════════════════════════════════════════════════════════════════
// NARRATIVES AND CHANNEL WEIGHTS
// ═══════════════════════════════════════════════════════════════════════════════

// Narrative resolves a curated narrative profile by name
func (d *Database) Narrative(name string) (scoring.NarrativeProfile, bool) {
	var rec AINarrative
	err := d.db.First(&rec, "name = ?", strings.ToLower(name)).Error
	if err != nil {
		return scoring.NarrativeProfile{}, false
	}
	return scoring.NarrativeProfile{
		MarketHeat:          rec.MarketHeat,
		Sustainability:      rec.Sustainability,
		LifecycleStage:      rec.LifecycleStage,
		LifecycleMultiplier: rec.LifecycleMultiplier,
		Weight:              rec.Weight,
	}, true
}

// UpsertNarrative stores or refreshes a narrative profile
func (d *Database) UpsertNarrative(name string, p scoring.NarrativeProfile) error {
	return d.db.Save(&AINarrative{
		Name:                strings.ToLower(name),
		MarketHeat:          p.MarketHeat,
		Sustainability:      p.Sustainability,
		LifecycleStage:      p.LifecycleStage,
		LifecycleMultiplier: p.LifecycleMultiplier,
		Weight:              p.Weight,
	}).Error
}

// ChannelScore returns a channel's historical performance score (0-10).
// Channels with little history score a neutral 5.
func (d *Database) ChannelScore(name string) float64 {
	var rec ChannelPerformance
	err := d.db.First(&rec, "channel_name = ?", name).Error
	if err != nil || rec.TotalCalls < 3 {
		return 5
	}
	return rec.Score
}

// RecordChannelOutcome folds one closed trade into a channel's track record
func (d *Database) RecordChannelOutcome(channel string, win bool, pnlPct float64) error {
	if channel == "" {
		return nil
	}
	var rec ChannelPerformance
	err := d.db.First(&rec, "channel_name = ?", channel).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	rec.ChannelName = channel
	rec.TotalCalls++
	if win {
		rec.Wins++
	} else {
		rec.Losses++
	}
	rec.SumPnLPct += pnlPct

	// Win rate dominates; average PnL nudges the score up or down.
	winRate := float64(rec.Wins) / float64(rec.TotalCalls)
	avgPnL := rec.SumPnLPct / float64(rec.TotalCalls)
	score := winRate*7 + clamp(avgPnL/50, -1, 1)*1.5 + 1.5
	rec.Score = clamp(score, 0, 10)

	return d.db.Save(&rec).Error
}

// ═══════════════════════════════════════════════════════════════════════════════
// GATE AUDITS
// ═══════════════════════════════════════════════════════════════════════════════

// SaveGateAudit records one gate verdict
func (d *Database) SaveGateAudit(chain types.Chain, token, gate string, result types.GateResult, score int, tier types.RatingTier) error {
	return d.db.Create(&GateAudit{
		Chain:   string(chain),
		Token:   token,
		Gate:    gate,
		Status:  string(result.Status),
		Reasons: strings.Join(result.Reasons, "; "),
		Score:   score,
		Tier:    string(tier),
	}).Error
}

// ═══════════════════════════════════════════════════════════════════════════════
// STATS
// ═══════════════════════════════════════════════════════════════════════════════

// TradeStats is an aggregate over closed positions
type TradeStats struct {
	Total     int
	Wins      int
	Losses    int
	AvgPnLPct float64
	BestPct   float64
	WorstPct  float64
}

// Stats aggregates the closed-trade history
func (d *Database) Stats() (TradeStats, error) {
	var records []PositionRecord
	err := d.db.Where("status = ? AND pn_l_percent IS NOT NULL", string(types.PositionClosed)).Find(&records).Error
	if err != nil {
		return TradeStats{}, err
	}

	stats := TradeStats{Total: len(records)}
	sum := 0.0
	for i, r := range records {
		pnl := *r.PnLPercent
		sum += pnl
		if pnl > 0 {
			stats.Wins++
		} else {
			stats.Losses++
		}
		if i == 0 || pnl > stats.BestPct {
			stats.BestPct = pnl
		}
		if i == 0 || pnl < stats.WorstPct {
			stats.WorstPct = pnl
		}
	}
	if stats.Total > 0 {
		stats.AvgPnLPct = sum / float64(stats.Total)
	}
	return stats, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONVERSION
// ═══════════════════════════════════════════════════════════════════════════════

func toRecord(p *types.Position) *PositionRecord {
	return &PositionRecord{
		ID:                  p.ID,
		Chain:               string(p.Chain),
		Token:               p.Token,
		Symbol:              p.Symbol,
		SignalID:            p.SignalID,
		EntryTime:           p.EntryTime,
		EntryPrice:          p.EntryPrice,
		EntrySizeNative:     p.EntrySizeNative,
		EntrySizeUSD:        p.EntrySizeUSD,
		AlphaScore:          p.AlphaScore,
		EntryLiquidityUSD:   p.EntryLiquidityUSD,
		EntryTop10Percent:   p.EntryTop10Percent,
		EntryTop1Percent:    p.EntryTop1Percent,
		EntryTGAccel:        p.EntryTGAccel,
		EntryRiskWallets:    strings.Join(p.EntryRiskWallets, ","),
		Status:              string(p.Status),
		RemainingPercent:    p.RemainingPercent,
		BreakevenDone:       p.BreakevenDone,
		BreakevenTime:       p.BreakevenTime,
		BreakevenPrice:      p.BreakevenPrice,
		HighWaterMark:       p.HighWaterMark,
		LastSignificantMove: p.LastSignificantMove,
		ExitTime:            p.ExitTime,
		ExitPrice:           p.ExitPrice,
		ExitType:            p.ExitType,
		PnLPercent:          p.PnLPercent,
		PnLNative:           p.PnLNative,
		IsShadow:            p.IsShadow,
	}
}

func fromRecord(r *PositionRecord) *types.Position {
	var riskWallets []string
	if r.EntryRiskWallets != "" {
		riskWallets = strings.Split(r.EntryRiskWallets, ",")
	}
	return &types.Position{
		ID:                  r.ID,
		Chain:               types.Chain(r.Chain),
		Token:               r.Token,
		Symbol:              r.Symbol,
		SignalID:            r.SignalID,
		EntryTime:           r.EntryTime,
		EntryPrice:          r.EntryPrice,
		EntrySizeNative:     r.EntrySizeNative,
		EntrySizeUSD:        r.EntrySizeUSD,
		AlphaScore:          r.AlphaScore,
		EntryLiquidityUSD:   r.EntryLiquidityUSD,
		EntryTop10Percent:   r.EntryTop10Percent,
		EntryTop1Percent:    r.EntryTop1Percent,
		EntryTGAccel:        r.EntryTGAccel,
		EntryRiskWallets:    riskWallets,
		Status:              types.PositionStatus(r.Status),
		RemainingPercent:    r.RemainingPercent,
		BreakevenDone:       r.BreakevenDone,
		BreakevenTime:       r.BreakevenTime,
		BreakevenPrice:      r.BreakevenPrice,
		HighWaterMark:       r.HighWaterMark,
		LastSignificantMove: r.LastSignificantMove,
		ExitTime:            r.ExitTime,
		ExitPrice:           r.ExitPrice,
		ExitType:            r.ExitType,
		PnLPercent:          r.PnLPercent,
		PnLNative:           r.PnLNative,
		IsShadow:            r.IsShadow,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
