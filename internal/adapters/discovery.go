package adapters

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/alphaflow/internal/metrics"
	"github.com/web3guy0/alphaflow/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// MARKET DISCOVERY - New-listing scanner with raw market data
// ═══════════════════════════════════════════════════════════════════════════════

type discoveryEntry struct {
	Address      string   `json:"address"`
	Chain        string   `json:"chain"`
	MarketCap    *float64 `json:"market_cap"`
	LiquidityUSD *float64 `json:"liquidity_usd"`
	Volume24h    *float64 `json:"volume_24h"`
	Holders      *int     `json:"holders"`
	Price        *float64 `json:"price"`
}

// DiscoveryAdapter polls a market-data discovery endpoint for fresh listings
type DiscoveryAdapter struct {
	client   *resty.Client
	url      string
	interval time.Duration
	q        *queue

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
}

// NewDiscoveryAdapter creates the discovery poller
func NewDiscoveryAdapter(url string, interval time.Duration, queueSize int) *DiscoveryAdapter {
	return &DiscoveryAdapter{
		client:   resty.New().SetTimeout(10 * time.Second).SetRetryCount(2),
		url:      url,
		interval: interval,
		q:        newQueue(queueSize, "discovery"),
	}
}

func (d *DiscoveryAdapter) Name() string { return "discovery" }

// Start begins polling
func (d *DiscoveryAdapter) Start(ctx context.Context) (<-chan types.RawSignal, error) {
	ctx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	go func() {
		defer close(d.q.ch)
		d.poll(ctx)
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.poll(ctx)
			}
		}
	}()

	log.Info().Str("url", d.url).Msg("🔭 Discovery adapter started")
	return d.q.out(), nil
}

// Stop halts polling
func (d *DiscoveryAdapter) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *DiscoveryAdapter) poll(ctx context.Context) {
	var entries []discoveryEntry
	resp, err := d.client.R().SetContext(ctx).SetResult(&entries).Get(d.url)
	if err != nil || resp.IsError() {
		log.Debug().Err(err).Msg("Discovery fetch failed")
		return
	}

	now := time.Now()
	for _, e := range entries {
		if e.Address == "" {
			metrics.MalformedPayloads.WithLabelValues("discovery").Inc()
			continue
		}
		chain := types.ChainSOL
		if strings.EqualFold(e.Chain, "BSC") {
			chain = types.ChainBSC
		}

		sig := types.RawSignal{
			SourceID:  "discovery",
			Chain:     chain,
			Token:     e.Address,
			Timestamp: now,
			Holders:   e.Holders,
			TokenTier: types.TierUnknown,
		}
		if e.Price != nil {
			p := decimal.NewFromFloat(*e.Price)
			sig.Price = &p
		}
		if e.MarketCap != nil {
			m := decimal.NewFromFloat(*e.MarketCap)
			sig.MarketCap = &m
		}
		if e.LiquidityUSD != nil {
			l := decimal.NewFromFloat(*e.LiquidityUSD)
			sig.LiquidityUSD = &l
		}
		if e.Volume24h != nil {
			v := decimal.NewFromFloat(*e.Volume24h)
			sig.Volume24h = &v
		}
		d.q.push(sig)
	}
}
