package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/web3guy0/alphaflow/internal/metrics"
	"github.com/web3guy0/alphaflow/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CHAIN SNAPSHOT SERVICE - singleflight + token bucket + TTL cache
// ═══════════════════════════════════════════════════════════════════════════════
//
// One coherent subsystem in front of every external data provider:
//   - concurrent callers for the same key share a single in-flight fetch
//   - no more than rps requests per second per provider (burst-capped)
//   - every result is remembered for the cache TTL
//   - a tripped breaker fails fast instead of hammering a dying vendor
//
// Provider failures surface as an error to the caller; fields a provider could
// not determine are nil (unknown), never fabricated.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Provider fetches on-chain state for one chain's tokens
type Provider interface {
	Name() string
	Fetch(ctx context.Context, token string, plannedNative *decimal.Decimal) (*types.ChainSnapshot, error)
}

type cacheEntry struct {
	snap   *types.ChainSnapshot
	expiry time.Time
}

// Service is the cached, rate-limited snapshot front-end
type Service struct {
	providers map[types.Chain]Provider
	limiters  map[types.Chain]*rate.Limiter
	breakers  map[types.Chain]*gobreaker.CircuitBreaker

	ttl     time.Duration
	timeout time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
	sf    singleflight.Group

	now func() time.Time
}

// NewService creates the service. rps/burst apply per provider.
func NewService(providers map[types.Chain]Provider, rps float64, burst int, ttl, timeout time.Duration) *Service {
	limiters := make(map[types.Chain]*rate.Limiter, len(providers))
	breakers := make(map[types.Chain]*gobreaker.CircuitBreaker, len(providers))
	for chain, p := range providers {
		limiters[chain] = rate.NewLimiter(rate.Limit(rps), burst)
		breakers[chain] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    p.Name(),
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).Msg("⚡ Provider breaker state change")
			},
		})
	}
	return &Service{
		providers: providers,
		limiters:  limiters,
		breakers:  breakers,
		ttl:       ttl,
		timeout:   timeout,
		cache:     make(map[string]cacheEntry),
		now:       time.Now,
	}
}

// GetSnapshot returns on-chain state for (chain, token). plannedNative sizes
// the synthetic sell used for the 20%-slippage quote; when nil the slippage
// field stays unknown and downstream gates greylist on it.
func (s *Service) GetSnapshot(ctx context.Context, chain types.Chain, token string, plannedNative *decimal.Decimal) (*types.ChainSnapshot, error) {
	provider, ok := s.providers[chain]
	if !ok {
		return nil, fmt.Errorf("no snapshot provider for chain %s", chain)
	}

	key := cacheKey(chain, token, plannedNative)

	s.mu.Lock()
	if e, ok := s.cache[key]; ok && s.now().Before(e.expiry) {
		s.mu.Unlock()
		return e.snap, nil
	}
	s.mu.Unlock()

	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		// Re-check under singleflight: a concurrent caller may have filled it.
		s.mu.Lock()
		if e, ok := s.cache[key]; ok && s.now().Before(e.expiry) {
			s.mu.Unlock()
			return e.snap, nil
		}
		s.mu.Unlock()

		fctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		if err := s.limiters[chain].Wait(fctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		res, err := s.breakers[chain].Execute(func() (interface{}, error) {
			return provider.Fetch(fctx, token, plannedNative)
		})
		if err != nil {
			metrics.SnapshotErrors.WithLabelValues(provider.Name()).Inc()
			return nil, err
		}

		snap := res.(*types.ChainSnapshot)
		s.mu.Lock()
		s.cache[key] = cacheEntry{snap: snap, expiry: s.now().Add(s.ttl)}
		s.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.ChainSnapshot), nil
}

// Invalidate drops any cached entries for (chain, token)
func (s *Service) Invalidate(chain types.Chain, token string) {
	prefix := fmt.Sprintf("%s:%s:", chain, token)
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.cache {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(s.cache, k)
		}
	}
}

// GC evicts expired cache entries
func (s *Service) GC() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.cache {
		if !now.Before(e.expiry) {
			delete(s.cache, k)
		}
	}
}

// SetClock overrides the time source (tests)
func (s *Service) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// cacheKey buckets the planned size so near-identical sizes share one entry
func cacheKey(chain types.Chain, token string, planned *decimal.Decimal) string {
	bucket := "none"
	if planned != nil {
		bucket = planned.Round(1).String()
	}
	return fmt.Sprintf("%s:%s:%s", chain, token, bucket)
}
