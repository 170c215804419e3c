package engine

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

	"github.com/web3guy0/alphaflow/internal/bus"
	"github.com/web3guy0/alphaflow/internal/config"
	"github.com/web3guy0/alphaflow/internal/executor"
	"github.com/web3guy0/alphaflow/internal/gates"
	"github.com/web3guy0/alphaflow/internal/risk"
	"github.com/web3guy0/alphaflow/internal/scoring"
	"github.com/web3guy0/alphaflow/internal/sizing"
	"github.com/web3guy0/alphaflow/internal/snapshot"
	"github.com/web3guy0/alphaflow/types"
)

func f64(v float64) *float64 { return &v }
func iptr(v int) *int        { return &v }
func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func engineConfig() *config.Config {
	return &config.Config{
		ShadowMode:     true,
		AutoBuyEnabled: true,

		AggregationWindow: 10 * time.Minute,
		SignalExpiry:      30 * time.Minute,
		HeatWindow:        15 * time.Minute,
		ScoreTimeout:      2 * time.Second,
		ScoreWorkers:      2,

		MaxConcurrentPositions: 1,
		LossStreakPause:        3,
		PauseHours:             24,
		MinStatsTrades:         10,
		WinRateFloor:           0.35,

		MaxPositionPercent: decimal.NewFromFloat(0.02),
		TotalCapitalSOL:    decimal.NewFromInt(10),
		SolPriceUSD:        decimal.NewFromInt(150),

		SOL: config.GateThresholds{
			MinLiquidityUSD:      decimal.NewFromInt(20000),
			MinHolders:           100,
			MaxTop10Pct:          30,
			MaxTop10BondingPct:   25,
			MaxSlippageBps:       300,
			MinLiquidityNative:   decimal.NewFromInt(100),
			ExitSlippagePassPct:  2,
			ExitSlippageLimitPct: 5,
			TimeStopMinutes:      60,
		},
	}
}

// healthyProvider serves gate-clean snapshots after an optional delay
type healthyProvider struct {
	delay time.Duration
}

func (p *healthyProvider) Name() string { return "healthy" }

func (p *healthyProvider) Fetch(ctx context.Context, token string, planned *decimal.Decimal) (*types.ChainSnapshot, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	price := decimal.NewFromFloat(0.001)
	return &types.ChainSnapshot{
		Chain:               types.ChainSOL,
		Token:               token,
		Price:               &price,
		LiquidityUSD:        dec(80000),
		LiquidityNative:     dec(400),
		HolderCount:         iptr(450),
		Top10HolderPercent:  f64(18),
		SellSlippageAt20Pct: f64(1.2),
		MintAuthority:       types.AuthorityDisabled,
		FreezeAuthority:     types.AuthorityDisabled,
		LP:                  types.LPBurned,
		Wash:                types.WashLow,
	}, nil
}

// blockingProvider never answers before the caller's deadline
type blockingProvider struct{}

func (blockingProvider) Name() string { return "blocking" }

func (blockingProvider) Fetch(ctx context.Context, token string, planned *decimal.Decimal) (*types.ChainSnapshot, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type engineStore struct {
	mu        sync.Mutex
	positions []*types.Position
	audits    []string // gate + status
}

func (s *engineStore) ActivePositions() ([]*types.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Position, len(s.positions))
	copy(out, s.positions)
	return out, nil
}

func (s *engineStore) SaveGateAudit(chain types.Chain, token, gate string, result types.GateResult, score int, tier types.RatingTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, gate+":"+string(result.Status))
	return nil
}

func (s *engineStore) add(pos *types.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = append(s.positions, pos)
}

// slowExec opens positions into the shared store after a pause, widening any
// unserialized check-then-buy window.
type slowExec struct {
	store *engineStore
	delay time.Duration
	buys  int64
}

func (e *slowExec) Buy(ctx context.Context, order executor.EntryOrder) (types.BuyResult, *types.Position, error) {
	time.Sleep(e.delay)
	pos := &types.Position{
		ID:     order.Token,
		Chain:  order.Chain,
		Token:  order.Token,
		Status: types.PositionOpen,
	}
	e.store.add(pos)
	atomic.AddInt64(&e.buys, 1)
	return types.BuyResult{Success: true}, pos, nil
}

func (e *slowExec) Sell(ctx context.Context, pos *types.Position, percent float64, quote decimal.Decimal, reason string) (types.SellResult, error) {
	return types.SellResult{Success: true}, nil
}

func newTestEngine(cfg *config.Config, provider snapshot.Provider, store *engineStore, exec executor.Executor) *Engine {
	snaps := snapshot.NewService(
		map[types.Chain]snapshot.Provider{types.ChainSOL: provider}, 100, 10, time.Minute, time.Second)
	riskMgr, err := risk.NewManager(cfg, nil)
	if err != nil {
		panic(err)
	}
	return New(cfg, bus.New(16, time.Minute, time.Minute),
		scoring.NewValidator(cfg),
		scoring.NewScorer(cfg.SignalExpiry, cfg.HeatWindow, cfg.AggregationWindow, nil, nil),
		gates.NewHardGate(cfg), gates.NewExitGate(cfg),
		snaps, riskMgr, sizing.NewSizer(cfg), exec, store, nil)
}

// dueCandidate builds evidence strong enough to score MAX
func dueCandidate(token string, now time.Time) *scoring.Candidate {
	fp := types.Fingerprint{Chain: types.ChainSOL, Address: token}
	cand := &scoring.Candidate{
		FP:        fp,
		FirstSeen: now,
		Sources:   make(map[string]time.Time),
	}
	sigs := []types.RawSignal{
		{SourceID: "smart_money", SmartMoneyTotal: iptr(10), SmartMoneyOnline: iptr(5)},
		{SourceID: "alpha_calls", AIScore: f64(9)},
		{SourceID: "beta_calls"},
		{SourceID: "gamma_calls"},
		{SourceID: "hot_board", PriceChange5m: f64(40), PriceChange1h: f64(120), MaxPriceGain: f64(250)},
	}
	for _, s := range sigs {
		s.Chain = fp.Chain
		s.Token = fp.Address
		cand.Evidence = append(cand.Evidence, scoring.Evidence{Signal: s, SeenAt: now})
		cand.Sources[s.SourceID] = now
	}
	return cand
}

func TestConcurrentWorkersRespectPositionCap(t *testing.T) {
	cfg := engineConfig() // cap of 1 concurrent position
	store := &engineStore{}
	exec := &slowExec{store: store, delay: 50 * time.Millisecond}
	e := newTestEngine(cfg, &healthyProvider{}, store, exec)

	now := time.Now()
	candidates := []*scoring.Candidate{
		dueCandidate("So1TokenAAAA", now),
		dueCandidate("So1TokenBBBB", now),
	}

	var wg sync.WaitGroup
	for _, cand := range candidates {
		wg.Add(1)
		go func(c *scoring.Candidate) {
			defer wg.Done()
			e.process(context.Background(), c)
		}(cand)
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&exec.buys), "cap of 1 admits exactly one entry")
	active, err := store.ActivePositions()
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestConcurrentWorkersOnePositionPerToken(t *testing.T) {
	cfg := engineConfig()
	cfg.MaxConcurrentPositions = 5
	store := &engineStore{}
	exec := &slowExec{store: store, delay: 50 * time.Millisecond}
	e := newTestEngine(cfg, &healthyProvider{}, store, exec)

	now := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.process(context.Background(), dueCandidate("So1TokenAAAA", now))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&exec.buys), "same token must not open twice")
}

func TestScoreTimeoutDropsCandidate(t *testing.T) {
	cfg := engineConfig()
	cfg.ScoreTimeout = 30 * time.Millisecond
	store := &engineStore{}
	exec := &slowExec{store: store}
	e := newTestEngine(cfg, blockingProvider{}, store, exec)

	e.process(context.Background(), dueCandidate("So1TokenAAAA", time.Now()))

	assert.Equal(t, int64(0), atomic.LoadInt64(&exec.buys))
	assert.Empty(t, store.audits, "a timed-out candidate is dropped before scoring")
}

func TestProviderErrorScoresWithUnknownSafety(t *testing.T) {
	cfg := engineConfig()
	store := &engineStore{}
	exec := &slowExec{store: store}
	e := newTestEngine(cfg, &failingProvider{}, store, exec)

	e.process(context.Background(), dueCandidate("So1TokenAAAA", time.Now()))

	// Scored and audited with an UNKNOWN verdict, but no entry without data.
	require.NotEmpty(t, store.audits)
	assert.Equal(t, "HARD:UNKNOWN", store.audits[0])
	assert.Equal(t, int64(0), atomic.LoadInt64(&exec.buys))
}

type failingProvider struct{}

func (failingProvider) Name() string { return "failing" }

func (failingProvider) Fetch(ctx context.Context, token string, planned *decimal.Decimal) (*types.ChainSnapshot, error) {
	return nil, errors.New("vendor down")
}
