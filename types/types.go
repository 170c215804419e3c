package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SHARED TYPES - Avoid import cycles
// ═══════════════════════════════════════════════════════════════════════════════
//
// Optional snapshot/signal fields are pointers: nil means "unknown", which is
// distinct from a measured zero. Gates and the scorer depend on that distinction.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Chain identifies the blockchain a token lives on
type Chain string

const (
	ChainSOL Chain = "SOL"
	ChainBSC Chain = "BSC"
)

// Fingerprint is the primary key for a token across the system
type Fingerprint struct {
	Chain   Chain
	Address string
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("%s:%s", f.Chain, f.Address)
}

// TokenTier is the external curator's tier for a token
type TokenTier string

const (
	TierBronze  TokenTier = "bronze"
	TierSilver  TokenTier = "silver"
	TierGold    TokenTier = "gold"
	TierUnknown TokenTier = "unknown"
)

// RawSignal is one mention of a token from one source at one instant.
// Immutable after creation; adapters populate only the fields they have.
type RawSignal struct {
	SourceID  string
	Chain     Chain
	Token     string
	Timestamp time.Time

	// Chat-channel enrichment
	ChannelUsername string
	MessageText     string

	// Smart-money enrichment
	SmartMoneyOnline *int
	SmartMoneyTotal  *int
	TokenTier        TokenTier
	AIScore          *float64 // 0-10
	AINarrativeType  string

	// Hot-board enrichment
	SignalCount  *int
	MaxPriceGain *float64

	// Market data enrichment
	Price          *decimal.Decimal
	LiquidityUSD   *decimal.Decimal
	MarketCap      *decimal.Decimal
	Holders        *int
	Volume24h      *decimal.Decimal
	PriceChange5m  *float64
	PriceChange1h  *float64
	PriceChange24h *float64
}

// Fingerprint returns the (chain, token) key for this signal
func (s RawSignal) Fingerprint() Fingerprint {
	return Fingerprint{Chain: s.Chain, Address: s.Token}
}

// ═══════════════════════════════════════════════════════════════════════════════
// CHAIN SNAPSHOT
// ═══════════════════════════════════════════════════════════════════════════════

// AuthorityState describes a mint or freeze authority
type AuthorityState string

const (
	AuthorityEnabled  AuthorityState = "enabled"
	AuthorityDisabled AuthorityState = "disabled"
	AuthorityUnknown  AuthorityState = "unknown"
)

// LPState describes the liquidity pool lock status
type LPState string

const (
	LPBurned   LPState = "burned"
	LPLocked   LPState = "locked"
	LPUnlocked LPState = "unlocked"
	LPUnknown  LPState = "unknown"
)

// WashLevel is the wash-trading risk flag
type WashLevel string

const (
	WashLow     WashLevel = "low"
	WashMedium  WashLevel = "medium"
	WashHigh    WashLevel = "high"
	WashUnknown WashLevel = "unknown"
)

// ChainSnapshot is point-in-time on-chain state for a token.
// Nil pointer fields are unknown, never zero.
type ChainSnapshot struct {
	Chain        Chain
	Token        string
	SnapshotTime time.Time

	Price           *decimal.Decimal
	Symbol          string
	LiquidityNative *decimal.Decimal
	LiquidityUSD    *decimal.Decimal
	MarketCap       *decimal.Decimal

	Top10HolderPercent *float64
	Top1HolderPercent  *float64
	HolderCount        *int

	MintAuthority   AuthorityState
	FreezeAuthority AuthorityState
	LP              LPState
	Wash            WashLevel

	// Predicted degradation selling 20% of the planned position, percent.
	SellSlippageAt20Pct *float64

	// BSC-only probes
	BuySellTaxPct   *float64
	TaxMutable      *bool
	Honeypot        *bool
	OwnerType       string
	SellConstraints *bool

	IsBondingCurve       bool
	BondingCurveProgress *float64

	RiskWallets []string
}

// ═══════════════════════════════════════════════════════════════════════════════
// GATE VERDICTS
// ═══════════════════════════════════════════════════════════════════════════════

// GateStatus is the tri-state outcome of a gate. GateUnknown is reserved for
// the case where no snapshot could be taken at all: the gate never ran, so
// safety contributes nothing either way.
type GateStatus string

const (
	GatePass     GateStatus = "PASS"
	GateGreylist GateStatus = "GREYLIST"
	GateReject   GateStatus = "REJECT"
	GateUnknown  GateStatus = "UNKNOWN"
)

// GateResult is a verdict plus the reasons behind it
type GateResult struct {
	Status  GateStatus
	Reasons []string
}

// Worse returns the more restrictive of two statuses
func (s GateStatus) Worse(other GateStatus) GateStatus {
	rank := func(g GateStatus) int {
		switch g {
		case GateReject:
			return 2
		case GateGreylist:
			return 1
		default:
			return 0
		}
	}
	if rank(other) > rank(s) {
		return other
	}
	return s
}

// ═══════════════════════════════════════════════════════════════════════════════
// COMPOSITE SCORE
// ═══════════════════════════════════════════════════════════════════════════════

// RatingTier maps a composite score to a trade action
type RatingTier string

const (
	RatingMax    RatingTier = "MAX"
	RatingNormal RatingTier = "NORMAL"
	RatingSmall  RatingTier = "SMALL"
	RatingWatch  RatingTier = "WATCH"
	RatingReject RatingTier = "REJECT"
)

// Buyable reports whether the tier triggers an auto-buy
func (r RatingTier) Buyable() bool {
	return r == RatingMax || r == RatingNormal || r == RatingSmall
}

// AxisBreakdown is the per-axis contribution to a composite score (weighted points)
type AxisBreakdown struct {
	SmartMoney float64
	Narrative  float64
	TGHeat     float64
	Momentum   float64
	Safety     float64
	Boost      float64
}

// CompositeScore is the validator's output for one candidate
type CompositeScore struct {
	Total     int // 0-100
	Breakdown AxisBreakdown
	Tier      RatingTier
	Reason    string
	FirstSeen time.Time
}

// ═══════════════════════════════════════════════════════════════════════════════
// POSITIONS
// ═══════════════════════════════════════════════════════════════════════════════

// PositionStatus is the lifecycle state of a position
type PositionStatus string

const (
	PositionOpen      PositionStatus = "open"
	PositionBreakeven PositionStatus = "breakeven"
	PositionClosed    PositionStatus = "closed"
)

// Exit types recorded when a position (partially) closes
const (
	ExitStopLoss   = "STOP_LOSS"
	ExitTimeStop   = "TIME_STOP"
	ExitEmergency  = "EMERGENCY"
	ExitBreakeven  = "BREAKEVEN_TRIM"
	ExitProfitTake = "PROFIT_TAKE"
)

// Position is an open or historical trade. Created by the Executor on a
// successful buy; mutated only by the position monitor afterwards.
type Position struct {
	ID       string
	Chain    Chain
	Token    string
	Symbol   string
	SignalID string

	EntryTime       time.Time
	EntryPrice      decimal.Decimal
	EntrySizeNative decimal.Decimal
	EntrySizeUSD    decimal.Decimal
	AlphaScore      int

	// Captured entry evidence used by exit rules
	EntryLiquidityUSD *decimal.Decimal
	EntryTop10Percent *float64
	EntryTop1Percent  *float64
	EntryTGAccel      float64
	EntryRiskWallets  []string

	Status           PositionStatus
	RemainingPercent float64 // 0-100
	BreakevenDone    bool
	BreakevenTime    *time.Time
	BreakevenPrice   *decimal.Decimal

	HighWaterMark       decimal.Decimal
	LastSignificantMove time.Time

	ExitTime   *time.Time
	ExitPrice  *decimal.Decimal
	ExitType   string
	PnLPercent *float64
	PnLNative  *decimal.Decimal

	IsShadow bool
}

// Active reports whether the position still holds tokens
func (p *Position) Active() bool {
	return p.Status == PositionOpen || p.Status == PositionBreakeven
}

// PnLPercentAt returns percent gain/loss at the given price
func (p *Position) PnLPercentAt(price decimal.Decimal) float64 {
	if p.EntryPrice.IsZero() {
		return 0
	}
	return price.Sub(p.EntryPrice).Div(p.EntryPrice).InexactFloat64() * 100
}

// ═══════════════════════════════════════════════════════════════════════════════
// EXECUTION
// ═══════════════════════════════════════════════════════════════════════════════

// BuyResult is the outcome of an executor buy
type BuyResult struct {
	Success        bool
	TradeID        string
	FillPrice      decimal.Decimal
	TokensReceived decimal.Decimal
	TxRef          string
	IsSimulated    bool
}

// SellResult is the outcome of an executor sell
type SellResult struct {
	Success      bool
	FillPrice    decimal.Decimal
	AmountNative decimal.Decimal
	TxRef        string
	IsSimulated  bool
}

// TradeEvent is one recorded fill (buy or partial/full sell)
type TradeEvent struct {
	PositionID  string
	Chain       Chain
	Token       string
	Side        string // BUY or SELL
	Price       decimal.Decimal
	Amount      decimal.Decimal
	Percent     float64 // of remaining, for sells
	Reason      string
	TxRef       string
	IsSimulated bool
	Timestamp   time.Time
}
