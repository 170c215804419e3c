package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// MODELS
// ═══════════════════════════════════════════════════════════════════════════════

// TelegramSignal is a raw channel mention, saved before any filtering
type TelegramSignal struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	Token           string `gorm:"index"`
	Chain           string `gorm:"index"`
	ChannelName     string `gorm:"index"`
	ChannelUsername string
	MessageText     string
	SignalTime      time.Time `gorm:"index"`
	CreatedAt       time.Time
}

// PositionRecord is the persisted form of a position
type PositionRecord struct {
	ID       string `gorm:"primaryKey"`
	Chain    string `gorm:"index"`
	Token    string `gorm:"index"`
	Symbol   string
	SignalID string

	EntryTime       time.Time
	EntryPrice      decimal.Decimal `gorm:"type:decimal(30,18)"`
	EntrySizeNative decimal.Decimal `gorm:"type:decimal(20,8)"`
	EntrySizeUSD    decimal.Decimal `gorm:"type:decimal(20,2)"`
	AlphaScore      int

	EntryLiquidityUSD *decimal.Decimal `gorm:"type:decimal(20,2)"`
	EntryTop10Percent *float64
	EntryTop1Percent  *float64
	EntryTGAccel      float64
	EntryRiskWallets  string // comma-joined

	Status           string `gorm:"index"`
	RemainingPercent float64
	BreakevenDone    bool
	BreakevenTime    *time.Time
	BreakevenPrice   *decimal.Decimal `gorm:"type:decimal(30,18)"`

	HighWaterMark       decimal.Decimal `gorm:"type:decimal(30,18)"`
	LastSignificantMove time.Time

	ExitTime   *time.Time
	ExitPrice  *decimal.Decimal `gorm:"type:decimal(30,18)"`
	ExitType   string
	PnLPercent *float64
	PnLNative  *decimal.Decimal `gorm:"type:decimal(20,8)"`

	IsShadow  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TradeEventRecord is one persisted fill
type TradeEventRecord struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	PositionID  string `gorm:"index"`
	Chain       string
	Token       string
	Side        string
	Price       decimal.Decimal `gorm:"type:decimal(30,18)"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,8)"`
	Percent     float64
	Reason      string
	TxRef       string
	IsSimulated bool
	Timestamp   time.Time `gorm:"index"`
	CreatedAt   time.Time
}

// AINarrative is a curated narrative rating, refreshed out of band
type AINarrative struct {
	Name                string `gorm:"primaryKey"`
	MarketHeat          float64
	Sustainability      float64
	LifecycleStage      string
	LifecycleMultiplier float64
	Weight              float64
	UpdatedAt           time.Time
}

// ChannelPerformance tracks how a chat channel's calls have performed
type ChannelPerformance struct {
	ChannelName string `gorm:"primaryKey"`
	TotalCalls  int
	Wins        int
	Losses      int
	SumPnLPct   float64
	Score       float64 // 0-10, recomputed on every outcome
	UpdatedAt   time.Time
}

// GateAudit records every gate verdict for later review
type GateAudit struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Chain     string `gorm:"index"`
	Token     string `gorm:"index"`
	Gate      string // HARD or EXIT
	Status    string
	Reasons   string // semicolon-joined
	Score     int
	Tier      string
	CreatedAt time.Time `gorm:"index"`
}

// SystemState is a single-row key/value store for runtime state
type SystemState struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}
