package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/alphaflow/internal/config"
	"github.com/web3guy0/alphaflow/internal/metrics"
	"github.com/web3guy0/alphaflow/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// LIVE EXECUTOR - Routes orders through the trade venue API
// ═══════════════════════════════════════════════════════════════════════════════
//
// The venue handles route selection and on-chain submission; we send swap
// intents and wait for a fill confirmation. Fill handling mirrors the shadow
// executor so the monitor sees identical position records either way.
//
// ═══════════════════════════════════════════════════════════════════════════════

// LiveExecutor submits real swaps via the venue API
type LiveExecutor struct {
	client *resty.Client
	store  PositionStore
	now    func() time.Time
}

type venueSwapRequest struct {
	Chain        string `json:"chain"`
	TokenAddress string `json:"token_address"`
	Side         string `json:"side"`
	AmountNative string `json:"amount_native,omitempty"`
	PercentHeld  string `json:"percent_held,omitempty"`
	ClientRef    string `json:"client_ref"`
}

type venueSwapResponse struct {
	Status       string `json:"status"`
	TxHash       string `json:"tx_hash"`
	FillPrice    string `json:"fill_price"`
	AmountOut    string `json:"amount_out"`
	ErrorMessage string `json:"error"`
}

// NewLiveExecutor creates the live executor
func NewLiveExecutor(cfg *config.Config, store PositionStore) *LiveExecutor {
	client := resty.New().
		SetBaseURL(cfg.VenueAPIURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(1).
		SetHeader("Content-Type", "application/json")
	if cfg.VenueAPIKey != "" {
		client.SetHeader("X-API-Key", cfg.VenueAPIKey)
	}

	log.Info().Str("venue", cfg.VenueAPIURL).Msg("🚀 Live executor initialized")
	return &LiveExecutor{client: client, store: store, now: time.Now}
}

// Buy submits a buy swap and persists the resulting position
func (e *LiveExecutor) Buy(ctx context.Context, order EntryOrder) (types.BuyResult, *types.Position, error) {
	clientRef := "AF_" + fmt.Sprintf("%d", e.now().UnixNano())
	resp, err := e.swap(ctx, venueSwapRequest{
		Chain:        string(order.Chain),
		TokenAddress: order.Token,
		Side:         "BUY",
		AmountNative: order.SizeNative.String(),
		ClientRef:    clientRef,
	})
	if err != nil {
		return types.BuyResult{}, nil, err
	}

	fillPrice, err := decimal.NewFromString(resp.FillPrice)
	if err != nil || fillPrice.IsZero() {
		return types.BuyResult{}, nil, fmt.Errorf("venue returned bad fill price %q", resp.FillPrice)
	}
	tokens, _ := decimal.NewFromString(resp.AmountOut)

	now := e.now()
	pos := &types.Position{
		ID:                  clientRef,
		Chain:               order.Chain,
		Token:               order.Token,
		SignalID:            order.SignalID,
		EntryTime:           now,
		EntryPrice:          fillPrice,
		EntrySizeNative:     order.SizeNative,
		EntrySizeUSD:        order.SizeUSD,
		AlphaScore:          order.Score.Total,
		EntryTGAccel:        order.TGAccel,
		Status:              types.PositionOpen,
		RemainingPercent:    100,
		HighWaterMark:       fillPrice,
		LastSignificantMove: now,
	}
	if order.Snapshot != nil {
		pos.Symbol = order.Snapshot.Symbol
		pos.EntryLiquidityUSD = order.Snapshot.LiquidityUSD
		pos.EntryTop10Percent = order.Snapshot.Top10HolderPercent
		pos.EntryTop1Percent = order.Snapshot.Top1HolderPercent
		pos.EntryRiskWallets = order.Snapshot.RiskWallets
	}

	if err := e.store.CreatePosition(pos); err != nil {
		// Real money moved; surface the failure loudly but keep the position
		// in memory so the monitor can still manage it.
		log.Error().Err(err).Str("tx", resp.TxHash).Msg("🚨 Buy filled but position persist failed")
	}
	e.recordEvent(pos, "BUY", fillPrice, order.SizeNative, 100, "entry", resp.TxHash)

	metrics.TradesExecuted.WithLabelValues(string(order.Chain), "BUY").Inc()
	log.Info().
		Str("token", order.Token).
		Str("chain", string(order.Chain)).
		Str("price", fillPrice.String()).
		Str("tx", resp.TxHash).
		Msg("✅ LIVE buy filled")

	return types.BuyResult{
		Success:        true,
		TradeID:        pos.ID,
		FillPrice:      fillPrice,
		TokensReceived: tokens,
		TxRef:          resp.TxHash,
	}, pos, nil
}

// Sell submits a sell swap for a fraction of the remaining holding
func (e *LiveExecutor) Sell(ctx context.Context, pos *types.Position, percentOfRemaining float64, quote decimal.Decimal, reason string) (types.SellResult, error) {
	if percentOfRemaining <= 0 || percentOfRemaining > 100 {
		return types.SellResult{}, fmt.Errorf("invalid sell percent %.1f", percentOfRemaining)
	}

	resp, err := e.swap(ctx, venueSwapRequest{
		Chain:        string(pos.Chain),
		TokenAddress: pos.Token,
		Side:         "SELL",
		PercentHeld:  decimal.NewFromFloat(percentOfRemaining).String(),
		ClientRef:    "AF_" + fmt.Sprintf("%d", e.now().UnixNano()),
	})
	if err != nil {
		return types.SellResult{}, err
	}

	fillPrice, err := decimal.NewFromString(resp.FillPrice)
	if err != nil {
		fillPrice = quote
	}
	amount, _ := decimal.NewFromString(resp.AmountOut)

	e.recordEvent(pos, "SELL", fillPrice, amount, percentOfRemaining, reason, resp.TxHash)

	metrics.TradesExecuted.WithLabelValues(string(pos.Chain), "SELL").Inc()
	log.Info().
		Str("token", pos.Token).
		Str("price", fillPrice.String()).
		Float64("percent", percentOfRemaining).
		Str("reason", reason).
		Str("tx", resp.TxHash).
		Msg("✅ LIVE sell filled")

	return types.SellResult{
		Success:      true,
		FillPrice:    fillPrice,
		AmountNative: amount,
		TxRef:        resp.TxHash,
	}, nil
}

func (e *LiveExecutor) swap(ctx context.Context, req venueSwapRequest) (*venueSwapResponse, error) {
	var out venueSwapResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/v1/swap")
	if err != nil {
		return nil, fmt.Errorf("venue %s %s: %w", req.Side, req.TokenAddress, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("venue %s %s: HTTP %d: %s", req.Side, req.TokenAddress, resp.StatusCode(), out.ErrorMessage)
	}
	if out.Status != "filled" {
		return nil, fmt.Errorf("venue %s %s: status %s: %s", req.Side, req.TokenAddress, out.Status, out.ErrorMessage)
	}
	return &out, nil
}

func (e *LiveExecutor) recordEvent(pos *types.Position, side string, price, amount decimal.Decimal, percent float64, reason, txRef string) {
	ev := types.TradeEvent{
		PositionID: pos.ID,
		Chain:      pos.Chain,
		Token:      pos.Token,
		Side:       side,
		Price:      price,
		Amount:     amount,
		Percent:    percent,
		Reason:     reason,
		TxRef:      txRef,
		Timestamp:  e.now(),
	}
	if err := e.store.SaveTradeEvent(ev); err != nil {
		log.Warn().Err(err).Str("position", pos.ID).Msg("Failed to record trade event")
	}
}
