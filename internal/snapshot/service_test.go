package snapshot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/alphaflow/types"
)

type countingProvider struct {
	calls int64
	delay time.Duration
	err   error
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) Fetch(ctx context.Context, token string, planned *decimal.Decimal) (*types.ChainSnapshot, error) {
	atomic.AddInt64(&p.calls, 1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.err != nil {
		return nil, p.err
	}
	price := decimal.NewFromFloat(1.5)
	return &types.ChainSnapshot{Chain: types.ChainSOL, Token: token, Price: &price}, nil
}

func newTestService(p Provider, ttl time.Duration) *Service {
	return NewService(map[types.Chain]Provider{types.ChainSOL: p}, 100, 10, ttl, time.Second)
}

func TestCacheHitWithinTTL(t *testing.T) {
	p := &countingProvider{}
	s := newTestService(p, time.Minute)

	_, err := s.GetSnapshot(context.Background(), types.ChainSOL, "TokenA", nil)
	require.NoError(t, err)
	_, err = s.GetSnapshot(context.Background(), types.ChainSOL, "TokenA", nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1), atomic.LoadInt64(&p.calls), "second call served from cache")
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	p := &countingProvider{}
	s := newTestService(p, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	s.SetClock(func() time.Time { return now })

	_, err := s.GetSnapshot(context.Background(), types.ChainSOL, "TokenA", nil)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = s.GetSnapshot(context.Background(), types.ChainSOL, "TokenA", nil)
	require.NoError(t, err)

	assert.Equal(t, int64(2), atomic.LoadInt64(&p.calls))
}

func TestPlannedSizeBucketsCache(t *testing.T) {
	p := &countingProvider{}
	s := newTestService(p, time.Minute)
	ctx := context.Background()

	small := decimal.NewFromFloat(0.2)
	large := decimal.NewFromFloat(5.0)

	_, err := s.GetSnapshot(ctx, types.ChainSOL, "TokenA", &small)
	require.NoError(t, err)
	_, err = s.GetSnapshot(ctx, types.ChainSOL, "TokenA", &large)
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&p.calls), "different size buckets fetch separately")

	// Near-identical sizes land in the same bucket.
	similar := decimal.NewFromFloat(0.21)
	_, err = s.GetSnapshot(ctx, types.ChainSOL, "TokenA", &similar)
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&p.calls))
}

func TestConcurrentCallersShareOneFetch(t *testing.T) {
	p := &countingProvider{delay: 50 * time.Millisecond}
	s := newTestService(p, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.GetSnapshot(context.Background(), types.ChainSOL, "TokenA", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&p.calls), "singleflight collapses concurrent fetches")
}

func TestProviderErrorSurfacesNotCached(t *testing.T) {
	p := &countingProvider{err: errors.New("vendor 500")}
	s := newTestService(p, time.Minute)

	_, err := s.GetSnapshot(context.Background(), types.ChainSOL, "TokenA", nil)
	assert.Error(t, err)

	_, err = s.GetSnapshot(context.Background(), types.ChainSOL, "TokenA", nil)
	assert.Error(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&p.calls), "errors are not cached")
}

func TestBreakerFailsFastAfterConsecutiveFailures(t *testing.T) {
	p := &countingProvider{err: errors.New("vendor down")}
	s := newTestService(p, time.Millisecond)

	for i := 0; i < 5; i++ {
		_, err := s.GetSnapshot(context.Background(), types.ChainSOL, "TokenA", nil)
		require.Error(t, err)
		time.Sleep(2 * time.Millisecond) // let the cache entry lapse
	}
	callsAtTrip := atomic.LoadInt64(&p.calls)

	// Breaker is open: the provider is no longer hit.
	_, err := s.GetSnapshot(context.Background(), types.ChainSOL, "TokenA", nil)
	assert.Error(t, err)
	assert.Equal(t, callsAtTrip, atomic.LoadInt64(&p.calls))
}

func TestUnknownChainErrors(t *testing.T) {
	s := newTestService(&countingProvider{}, time.Minute)
	_, err := s.GetSnapshot(context.Background(), types.ChainBSC, "0xToken", nil)
	assert.Error(t, err)
}

func TestInvalidateDropsAllBuckets(t *testing.T) {
	p := &countingProvider{}
	s := newTestService(p, time.Minute)
	ctx := context.Background()

	size := decimal.NewFromFloat(0.2)
	_, _ = s.GetSnapshot(ctx, types.ChainSOL, "TokenA", nil)
	_, _ = s.GetSnapshot(ctx, types.ChainSOL, "TokenA", &size)
	require.Equal(t, int64(2), atomic.LoadInt64(&p.calls))

	s.Invalidate(types.ChainSOL, "TokenA")

	_, _ = s.GetSnapshot(ctx, types.ChainSOL, "TokenA", nil)
	assert.Equal(t, int64(3), atomic.LoadInt64(&p.calls))
}
