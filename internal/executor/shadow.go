package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/alphaflow/internal/metrics"
	"github.com/web3guy0/alphaflow/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SHADOW EXECUTOR - Synthetic fills, no external side effects
// ═══════════════════════════════════════════════════════════════════════════════

// ShadowExecutor fills every order instantly at the reference price
type ShadowExecutor struct {
	store PositionStore
	now   func() time.Time
}

// NewShadowExecutor creates the paper-trading executor
func NewShadowExecutor(store PositionStore) *ShadowExecutor {
	return &ShadowExecutor{store: store, now: time.Now}
}

// Buy opens a simulated position at the snapshot price
func (e *ShadowExecutor) Buy(ctx context.Context, order EntryOrder) (types.BuyResult, *types.Position, error) {
	if order.Snapshot == nil || order.Snapshot.Price == nil {
		return types.BuyResult{}, nil, fmt.Errorf("no reference price for %s:%s", order.Chain, order.Token)
	}

	price := *order.Snapshot.Price
	now := e.now()
	txRef := shadowRef()
	tokens := decimal.Zero
	if !price.IsZero() {
		tokens = order.SizeNative.Div(price)
	}

	pos := &types.Position{
		ID:                  uuid.NewString(),
		Chain:               order.Chain,
		Token:               order.Token,
		Symbol:              order.Snapshot.Symbol,
		SignalID:            order.SignalID,
		EntryTime:           now,
		EntryPrice:          price,
		EntrySizeNative:     order.SizeNative,
		EntrySizeUSD:        order.SizeUSD,
		AlphaScore:          order.Score.Total,
		EntryLiquidityUSD:   order.Snapshot.LiquidityUSD,
		EntryTop10Percent:   order.Snapshot.Top10HolderPercent,
		EntryTop1Percent:    order.Snapshot.Top1HolderPercent,
		EntryTGAccel:        order.TGAccel,
		EntryRiskWallets:    order.Snapshot.RiskWallets,
		Status:              types.PositionOpen,
		RemainingPercent:    100,
		HighWaterMark:       price,
		LastSignificantMove: now,
		IsShadow:            true,
	}

	if err := e.store.CreatePosition(pos); err != nil {
		return types.BuyResult{}, nil, fmt.Errorf("persist position: %w", err)
	}
	e.recordEvent(pos, "BUY", price, order.SizeNative, 100, "entry", txRef)

	metrics.TradesExecuted.WithLabelValues(string(order.Chain), "BUY").Inc()
	log.Info().
		Str("token", order.Token).
		Str("chain", string(order.Chain)).
		Str("price", price.String()).
		Str("size", order.SizeNative.StringFixed(4)).
		Str("tx", txRef).
		Msg("📝 SHADOW buy filled")

	return types.BuyResult{
		Success:        true,
		TradeID:        pos.ID,
		FillPrice:      price,
		TokensReceived: tokens,
		TxRef:          txRef,
		IsSimulated:    true,
	}, pos, nil
}

// Sell fills a simulated sell at the quoted price
func (e *ShadowExecutor) Sell(ctx context.Context, pos *types.Position, percentOfRemaining float64, quote decimal.Decimal, reason string) (types.SellResult, error) {
	if percentOfRemaining <= 0 || percentOfRemaining > 100 {
		return types.SellResult{}, fmt.Errorf("invalid sell percent %.1f", percentOfRemaining)
	}
	if quote.IsZero() {
		return types.SellResult{}, fmt.Errorf("no reference price for %s:%s", pos.Chain, pos.Token)
	}

	soldFraction := pos.RemainingPercent / 100 * percentOfRemaining / 100
	amount := pos.EntrySizeNative.Mul(decimal.NewFromFloat(soldFraction))
	if !pos.EntryPrice.IsZero() {
		amount = amount.Mul(quote).Div(pos.EntryPrice)
	}

	txRef := shadowRef()
	e.recordEvent(pos, "SELL", quote, amount, percentOfRemaining, reason, txRef)

	metrics.TradesExecuted.WithLabelValues(string(pos.Chain), "SELL").Inc()
	log.Info().
		Str("token", pos.Token).
		Str("price", quote.String()).
		Float64("percent", percentOfRemaining).
		Str("reason", reason).
		Str("tx", txRef).
		Msg("📝 SHADOW sell filled")

	return types.SellResult{
		Success:      true,
		FillPrice:    quote,
		AmountNative: amount,
		TxRef:        txRef,
		IsSimulated:  true,
	}, nil
}

func (e *ShadowExecutor) recordEvent(pos *types.Position, side string, price, amount decimal.Decimal, percent float64, reason, txRef string) {
	ev := types.TradeEvent{
		PositionID:  pos.ID,
		Chain:       pos.Chain,
		Token:       pos.Token,
		Side:        side,
		Price:       price,
		Amount:      amount,
		Percent:     percent,
		Reason:      reason,
		TxRef:       txRef,
		IsSimulated: true,
		Timestamp:   e.now(),
	}
	if err := e.store.SaveTradeEvent(ev); err != nil {
		log.Warn().Err(err).Str("position", pos.ID).Msg("Failed to record trade event")
	}
}

// SetClock overrides the time source (tests)
func (e *ShadowExecutor) SetClock(now func() time.Time) { e.now = now }

func shadowRef() string {
	return "SHADOW_" + uuid.NewString()
}
