package executor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/alphaflow/types"
)

type memStore struct {
	positions []*types.Position
	events    []types.TradeEvent
}

func (m *memStore) CreatePosition(pos *types.Position) error {
	m.positions = append(m.positions, pos)
	return nil
}

func (m *memStore) SaveTradeEvent(ev types.TradeEvent) error {
	m.events = append(m.events, ev)
	return nil
}

func testOrder() EntryOrder {
	price := decimal.NewFromFloat(0.0001)
	return EntryOrder{
		Chain:      types.ChainSOL,
		Token:      "So1TestToken",
		SignalID:   "alpha_calls",
		SizeNative: decimal.NewFromFloat(0.2),
		SizeUSD:    decimal.NewFromInt(30),
		Score:      types.CompositeScore{Total: 85, Tier: types.RatingMax},
		Snapshot: &types.ChainSnapshot{
			Chain:  types.ChainSOL,
			Token:  "So1TestToken",
			Symbol: "TEST",
			Price:  &price,
		},
		TGAccel: 4,
	}
}

func TestShadowBuyCreatesPosition(t *testing.T) {
	store := &memStore{}
	e := NewShadowExecutor(store)
	now := time.Unix(1_700_000_000, 0)
	e.SetClock(func() time.Time { return now })

	res, pos, err := e.Buy(context.Background(), testOrder())
	require.NoError(t, err)
	require.NotNil(t, pos)

	assert.True(t, res.Success)
	assert.True(t, res.IsSimulated)
	assert.True(t, strings.HasPrefix(res.TxRef, "SHADOW_"))
	// 0.2 SOL / 0.0001 = 2000 tokens.
	assert.True(t, res.TokensReceived.Equal(decimal.NewFromInt(2000)), "got %s", res.TokensReceived)

	// Record shape identical to a real position.
	assert.True(t, pos.IsShadow)
	assert.Equal(t, types.PositionOpen, pos.Status)
	assert.Equal(t, 100.0, pos.RemainingPercent)
	assert.True(t, pos.HighWaterMark.Equal(pos.EntryPrice))
	assert.Equal(t, now, pos.EntryTime)
	assert.Equal(t, now, pos.LastSignificantMove)
	assert.Equal(t, 85, pos.AlphaScore)
	assert.Equal(t, "TEST", pos.Symbol)
	assert.Equal(t, 4.0, pos.EntryTGAccel)

	require.Len(t, store.positions, 1, "position persisted")
	require.Len(t, store.events, 1)
	assert.Equal(t, "BUY", store.events[0].Side)
	assert.True(t, store.events[0].IsSimulated)
}

func TestRepeatShadowBuysDistinctRefsSameSizing(t *testing.T) {
	store := &memStore{}
	e := NewShadowExecutor(store)

	// The same signal recurring after its dedup window lapses opens a fresh
	// position: new identifiers, identical fills.
	first, posA, err := e.Buy(context.Background(), testOrder())
	require.NoError(t, err)
	second, posB, err := e.Buy(context.Background(), testOrder())
	require.NoError(t, err)

	assert.NotEqual(t, first.TxRef, second.TxRef)
	assert.NotEqual(t, posA.ID, posB.ID)

	assert.True(t, first.TokensReceived.Equal(second.TokensReceived))
	assert.True(t, posA.EntrySizeNative.Equal(posB.EntrySizeNative))
	assert.True(t, posA.EntrySizeUSD.Equal(posB.EntrySizeUSD))
	assert.True(t, posA.EntryPrice.Equal(posB.EntryPrice))

	require.Len(t, store.positions, 2)
	require.Len(t, store.events, 2)
	assert.NotEqual(t, store.events[0].TxRef, store.events[1].TxRef)
}

func TestShadowBuyRequiresPrice(t *testing.T) {
	e := NewShadowExecutor(&memStore{})

	order := testOrder()
	order.Snapshot.Price = nil
	_, _, err := e.Buy(context.Background(), order)
	assert.Error(t, err)

	order = testOrder()
	order.Snapshot = nil
	_, _, err = e.Buy(context.Background(), order)
	assert.Error(t, err)
}

func TestShadowSellFillsAtQuote(t *testing.T) {
	store := &memStore{}
	e := NewShadowExecutor(store)

	_, pos, err := e.Buy(context.Background(), testOrder())
	require.NoError(t, err)

	quote := decimal.NewFromFloat(0.0002) // doubled
	res, err := e.Sell(context.Background(), pos, 50, quote, "BREAKEVEN_TRIM")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.True(t, res.IsSimulated)
	assert.True(t, res.FillPrice.Equal(quote))
	// Half the position at double the entry price returns 0.2 SOL.
	assert.True(t, res.AmountNative.Equal(decimal.NewFromFloat(0.2)), "got %s", res.AmountNative)

	require.Len(t, store.events, 2)
	assert.Equal(t, "SELL", store.events[1].Side)
	assert.Equal(t, "BREAKEVEN_TRIM", store.events[1].Reason)
}

func TestShadowSellValidatesPercent(t *testing.T) {
	e := NewShadowExecutor(&memStore{})
	_, pos, err := e.Buy(context.Background(), testOrder())
	require.NoError(t, err)

	quote := decimal.NewFromFloat(0.0001)
	for _, pct := range []float64{0, -5, 101} {
		_, err := e.Sell(context.Background(), pos, pct, quote, "x")
		assert.Error(t, err, "percent %.0f", pct)
	}
	_, err = e.Sell(context.Background(), pos, 100, decimal.Zero, "x")
	assert.Error(t, err, "zero quote has no reference price")
}
