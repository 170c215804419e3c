package executor

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/alphaflow/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// EXECUTOR - Abstract buy/sell
// ═══════════════════════════════════════════════════════════════════════════════
//
// Shadow mode returns synthetic fills with SHADOW_<nonce> references; live
// mode talks to the venue. The executor creates the Position row on a
// successful buy; all later mutations belong to the position monitor.
//
// ═══════════════════════════════════════════════════════════════════════════════

// EntryOrder carries everything needed to open a position
type EntryOrder struct {
	Chain      types.Chain
	Token      string
	SignalID   string
	SizeNative decimal.Decimal
	SizeUSD    decimal.Decimal
	Score      types.CompositeScore

	// Entry evidence captured into the position for exit rules
	Snapshot *types.ChainSnapshot
	TGAccel  float64
}

// PositionStore persists positions and fills
type PositionStore interface {
	CreatePosition(pos *types.Position) error
	SaveTradeEvent(ev types.TradeEvent) error
}

// Executor places buys and sells
type Executor interface {
	// Buy opens a position of order.SizeNative. On success the position has
	// been persisted.
	Buy(ctx context.Context, order EntryOrder) (types.BuyResult, *types.Position, error)

	// Sell unwinds percentOfRemaining (0-100] of what the position still
	// holds. quote is the current reference price used for shadow fills.
	Sell(ctx context.Context, pos *types.Position, percentOfRemaining float64, quote decimal.Decimal, reason string) (types.SellResult, error)
}
