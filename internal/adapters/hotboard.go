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
// HOT-TOKEN BOARD - Curated trending list, polled
// ═══════════════════════════════════════════════════════════════════════════════

type hotBoardEntry struct {
	Address      string   `json:"address"`
	Chain        string   `json:"chain"`
	SignalCount  *int     `json:"signal_count"`
	MaxPriceGain *float64 `json:"max_price_gain"`
	Price        *float64 `json:"price"`
	Change5m     *float64 `json:"price_change_5m"`
	Change1h     *float64 `json:"price_change_1h"`
	Change24h    *float64 `json:"price_change_24h"`
}

type hotBoardResponse struct {
	Tokens []hotBoardEntry `json:"tokens"`
}

// HotBoardAdapter polls a curated hot-token board
type HotBoardAdapter struct {
	client   *resty.Client
	url      string
	interval time.Duration
	q        *queue

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
}

// NewHotBoardAdapter creates the board poller
func NewHotBoardAdapter(url string, interval time.Duration, queueSize int) *HotBoardAdapter {
	return &HotBoardAdapter{
		client:   resty.New().SetTimeout(10 * time.Second).SetRetryCount(2),
		url:      url,
		interval: interval,
		q:        newQueue(queueSize, "hot_board"),
	}
}

func (h *HotBoardAdapter) Name() string { return "hot_board" }

// Start begins polling
func (h *HotBoardAdapter) Start(ctx context.Context) (<-chan types.RawSignal, error) {
	ctx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()

	go func() {
		defer close(h.q.ch)
		h.poll(ctx)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.poll(ctx)
			}
		}
	}()

	log.Info().Str("url", h.url).Dur("interval", h.interval).Msg("🔥 Hot-board adapter started")
	return h.q.out(), nil
}

// Stop halts polling
func (h *HotBoardAdapter) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	if h.cancel != nil {
		h.cancel()
	}
}

func (h *HotBoardAdapter) poll(ctx context.Context) {
	var body hotBoardResponse
	resp, err := h.client.R().SetContext(ctx).SetResult(&body).Get(h.url)
	if err != nil {
		log.Debug().Err(err).Msg("Hot-board fetch failed")
		return
	}
	if resp.IsError() {
		log.Debug().Int("status", resp.StatusCode()).Msg("Hot-board fetch failed")
		return
	}

	now := time.Now()
	for _, e := range body.Tokens {
		if e.Address == "" {
			metrics.MalformedPayloads.WithLabelValues("hot_board").Inc()
			continue
		}
		chain := types.ChainSOL
		if strings.EqualFold(e.Chain, "BSC") {
			chain = types.ChainBSC
		}

		sig := types.RawSignal{
			SourceID:       "hot_board",
			Chain:          chain,
			Token:          e.Address,
			Timestamp:      now,
			SignalCount:    e.SignalCount,
			MaxPriceGain:   e.MaxPriceGain,
			PriceChange5m:  e.Change5m,
			PriceChange1h:  e.Change1h,
			PriceChange24h: e.Change24h,
			TokenTier:      types.TierUnknown,
		}
		if e.Price != nil {
			p := decimal.NewFromFloat(*e.Price)
			sig.Price = &p
		}
		h.q.push(sig)
	}
}
