package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/alphaflow/internal/metrics"
	"github.com/web3guy0/alphaflow/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SMART-MONEY AGGREGATOR - WebSocket stream of curated wallet activity
// ═══════════════════════════════════════════════════════════════════════════════

// smartMoneyEvent is the vendor wire format
type smartMoneyEvent struct {
	Token       string   `json:"token"`
	Chain       string   `json:"chain"`
	SmartOnline *int     `json:"smart_online"`
	SmartTotal  *int     `json:"smart_total"`
	Tier        string   `json:"tier"`
	AIScore     *float64 `json:"ai_score"`
	AINarrative string   `json:"ai_narrative"`
	Timestamp   int64    `json:"timestamp"`
}

// SmartMoneyAdapter streams smart-wallet buy activity over WebSocket
type SmartMoneyAdapter struct {
	url string
	q   *queue

	mu        sync.Mutex
	conn      *websocket.Conn
	stopped   bool
	suspended bool
	cancel    context.CancelFunc
}

// NewSmartMoneyAdapter creates the aggregator client
func NewSmartMoneyAdapter(url string, queueSize int) *SmartMoneyAdapter {
	return &SmartMoneyAdapter{
		url: url,
		q:   newQueue(queueSize, "smart_money"),
	}
}

func (s *SmartMoneyAdapter) Name() string { return "smart_money" }

// Start connects and begins emitting. Reconnects with backoff on transient
// failures; a 401/403 handshake suspends the adapter until restart.
func (s *SmartMoneyAdapter) Start(ctx context.Context) (<-chan types.RawSignal, error) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	go s.runLoop(ctx)
	log.Info().Str("url", s.url).Msg("🧠 Smart-money adapter started")
	return s.q.out(), nil
}

// Stop closes the connection and the stream
func (s *SmartMoneyAdapter) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *SmartMoneyAdapter) runLoop(ctx context.Context) {
	defer close(s.q.ch)

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		suspended := s.suspended
		s.mu.Unlock()
		if suspended {
			// Bad credentials: logged once, no retry until restart.
			select {
			case <-ctx.Done():
				return
			}
		}

		if err := s.connectAndRead(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Debug().Err(err).Dur("backoff", backoff).Msg("Smart-money stream interrupted")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
	}
}

func (s *SmartMoneyAdapter) connectAndRead(ctx context.Context) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			s.mu.Lock()
			s.suspended = true
			s.mu.Unlock()
			log.Warn().Int("status", resp.StatusCode).Msg("⛔ Smart-money credentials rejected, adapter suspended")
		}
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer conn.Close()

	log.Info().Msg("🧠 Smart-money stream connected")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handleMessage(data)
	}
}

func (s *SmartMoneyAdapter) handleMessage(data []byte) {
	var ev smartMoneyEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		metrics.MalformedPayloads.WithLabelValues("smart_money").Inc()
		log.Debug().Err(err).Msg("Smart-money payload unparseable")
		return
	}
	if ev.Token == "" {
		metrics.MalformedPayloads.WithLabelValues("smart_money").Inc()
		return
	}

	chain := types.ChainSOL
	if strings.EqualFold(ev.Chain, "BSC") {
		chain = types.ChainBSC
	}

	ts := time.Now()
	if ev.Timestamp > 0 {
		ts = time.Unix(ev.Timestamp, 0)
	}

	tier := types.TokenTier(strings.ToLower(ev.Tier))
	switch tier {
	case types.TierBronze, types.TierSilver, types.TierGold:
	default:
		tier = types.TierUnknown
	}

	s.q.push(types.RawSignal{
		SourceID:         "smart_money",
		Chain:            chain,
		Token:            ev.Token,
		Timestamp:        ts,
		SmartMoneyOnline: ev.SmartOnline,
		SmartMoneyTotal:  ev.SmartTotal,
		TokenTier:        tier,
		AIScore:          ev.AIScore,
		AINarrativeType:  ev.AINarrative,
	})
}
