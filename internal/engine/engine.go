package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/alphaflow/internal/adapters"
	"github.com/web3guy0/alphaflow/internal/bus"
	"github.com/web3guy0/alphaflow/internal/config"
	"github.com/web3guy0/alphaflow/internal/executor"
	"github.com/web3guy0/alphaflow/internal/gates"
	"github.com/web3guy0/alphaflow/internal/metrics"
	"github.com/web3guy0/alphaflow/internal/risk"
	"github.com/web3guy0/alphaflow/internal/scoring"
	"github.com/web3guy0/alphaflow/internal/sizing"
	"github.com/web3guy0/alphaflow/internal/snapshot"
	"github.com/web3guy0/alphaflow/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ENGINE - Signal funnel orchestration
// ═══════════════════════════════════════════════════════════════════════════════
//
// adapters → bus (dedup) → validator (aggregation windows) → workers:
//   snapshot → hard gate → score → risk → size → exit gate → buy
//
// Per-candidate errors collapse to REJECT or unknown; nothing in the funnel
// can crash the process.
//
// ═══════════════════════════════════════════════════════════════════════════════

var twoDec = decimal.NewFromInt(2)

// Store is the engine's slice of the persistence layer
type Store interface {
	ActivePositions() ([]*types.Position, error)
	SaveGateAudit(chain types.Chain, token, gate string, result types.GateResult, score int, tier types.RatingTier) error
}

// Notifier pushes entry events to the operator channel
type Notifier interface {
	NotifyEntry(pos *types.Position)
}

// Engine runs the entry side of the pipeline
type Engine struct {
	cfg       *config.Config
	bus       *bus.Bus
	validator *scoring.Validator
	scorer    *scoring.Scorer
	hardGate  *gates.HardGate
	exitGate  *gates.ExitGate
	snapshots *snapshot.Service
	riskMgr   *risk.Manager
	sizer     *sizing.Sizer
	exec      executor.Executor
	store     Store
	notifier  Notifier

	adapters []adapters.Adapter
	wg       sync.WaitGroup

	// entryMu serializes the active-position count check, risk decision and
	// buy across scoring workers so the caps cannot be overshot.
	entryMu sync.Mutex
}

// New assembles the engine. notifier may be nil.
func New(cfg *config.Config, b *bus.Bus, v *scoring.Validator, sc *scoring.Scorer,
	hard *gates.HardGate, exit *gates.ExitGate, snaps *snapshot.Service,
	riskMgr *risk.Manager, sizer *sizing.Sizer, exec executor.Executor,
	store Store, notifier Notifier) *Engine {
	return &Engine{
		cfg:       cfg,
		bus:       b,
		validator: v,
		scorer:    sc,
		hardGate:  hard,
		exitGate:  exit,
		snapshots: snaps,
		riskMgr:   riskMgr,
		sizer:     sizer,
		exec:      exec,
		store:     store,
		notifier:  notifier,
	}
}

// AddAdapter registers a signal source before Start
func (e *Engine) AddAdapter(a adapters.Adapter) {
	e.adapters = append(e.adapters, a)
}

// Start launches adapters, the bus consumer, the validator coordinator and
// the scoring workers.
func (e *Engine) Start(ctx context.Context) error {
	for _, a := range e.adapters {
		out, err := a.Start(ctx)
		if err != nil {
			return err
		}
		e.wg.Add(1)
		go e.forward(a.Name(), out)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.validator.Run(ctx)
	}()

	e.wg.Add(1)
	go e.consumeBus()

	for i := 0; i < e.cfg.ScoreWorkers; i++ {
		e.wg.Add(1)
		go e.worker(ctx, i)
	}

	e.wg.Add(1)
	go e.housekeeping(ctx)

	log.Info().
		Int("adapters", len(e.adapters)).
		Int("workers", e.cfg.ScoreWorkers).
		Bool("shadow", e.cfg.ShadowMode).
		Bool("auto_buy", e.cfg.AutoBuyEnabled).
		Msg("⚡ Engine started")
	return nil
}

// Stop drains the funnel: adapters first, then the bus, then workers
func (e *Engine) Stop() {
	for _, a := range e.adapters {
		a.Stop()
	}
	e.bus.Close()
	e.wg.Wait()
	log.Info().Msg("⚡ Engine stopped")
}

// forward pumps one adapter's output into the bus
func (e *Engine) forward(name string, out <-chan types.RawSignal) {
	defer e.wg.Done()
	for sig := range out {
		e.bus.Publish(sig)
	}
	log.Debug().Str("adapter", name).Msg("Adapter stream closed")
}

// consumeBus feeds deduped signals to the validator
func (e *Engine) consumeBus() {
	defer e.wg.Done()
	for sig := range e.bus.Signals() {
		e.validator.Observe(sig)
	}
}

// housekeeping runs periodic GC over the dedup and cache books
func (e *Engine) housekeeping(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.bus.GC()
			e.snapshots.GC()
		}
	}
}

// worker consumes due candidates and runs each through the decision funnel
func (e *Engine) worker(ctx context.Context, id int) {
	defer e.wg.Done()
	for cand := range e.validator.Due() {
		e.process(ctx, cand)
	}
	log.Debug().Int("worker", id).Msg("Scoring worker stopped")
}

// process runs the full gate → score → risk → size → entry sequence for one
// due candidate. Snapshot work across the funnel shares one ScoreTimeout
// deadline; a candidate that cannot complete scoring in time is dropped.
func (e *Engine) process(ctx context.Context, cand *scoring.Candidate) {
	fp := cand.FP
	now := time.Now()

	scoreCtx, cancel := context.WithTimeout(ctx, e.cfg.ScoreTimeout)
	defer cancel()

	snap, err := e.snapshots.GetSnapshot(scoreCtx, fp.Chain, fp.Address, nil)

	// Snapshot failure means safety is unknown, not bad: score with a zero
	// safety contribution instead of dropping the candidate. A deadline hit
	// means scoring did not finish, so that candidate is dropped instead.
	var hard types.GateResult
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		metrics.SignalsDropped.WithLabelValues("score_timeout").Inc()
		log.Warn().Str("token", fp.String()).Msg("⏱️ Scoring timed out, candidate dropped")
		return
	case err != nil || snap == nil:
		hard = types.GateResult{Status: types.GateUnknown, Reasons: []string{"Snapshot Unavailable"}}
	default:
		hard = e.hardGate.Evaluate(snap)
	}

	score := e.scorer.Score(cand, hard, now)
	metrics.CandidatesScored.WithLabelValues(string(score.Tier)).Inc()
	e.audit(fp, "HARD", hard, score)

	log.Info().
		Str("token", fp.String()).
		Int("score", score.Total).
		Str("tier", string(score.Tier)).
		Str("hard", string(hard.Status)).
		Int("sources", len(cand.Sources)).
		Msg("📊 Candidate scored")

	if !score.Tier.Buyable() {
		return
	}
	if !e.cfg.AutoBuyEnabled {
		log.Info().Str("token", fp.String()).Int("score", score.Total).
			Msg("💤 Auto-buy disabled, signal recorded only")
		return
	}

	pos := e.enter(ctx, scoreCtx, cand, score)
	if pos != nil && e.notifier != nil {
		e.notifier.NotifyEntry(pos)
	}
}

// enter runs the serialized tail of the funnel: position-count check, risk
// decision, sizing, exit gate and the buy itself. entryMu keeps the check
// and the buy atomic with respect to the other scoring workers, so the
// per-token and concurrent-position caps hold. Returns the opened position,
// or nil when no entry was made.
func (e *Engine) enter(ctx, scoreCtx context.Context, cand *scoring.Candidate, score types.CompositeScore) *types.Position {
	e.entryMu.Lock()
	defer e.entryMu.Unlock()

	fp := cand.FP

	// One active position per token.
	active, err := e.store.ActivePositions()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load active positions, skipping entry")
		return nil
	}
	for _, p := range active {
		if p.Chain == fp.Chain && p.Token == fp.Address {
			log.Debug().Str("token", fp.String()).Msg("Position already open, skipping")
			return nil
		}
	}

	if decision := e.riskMgr.CanTrade(len(active)); !decision.Allowed {
		log.Info().Str("token", fp.String()).Str("reason", decision.Reason).Msg("🚫 Entry denied")
		return nil
	}

	native, usd, err := e.sizer.Size(fp.Chain, score.Tier)
	if err != nil {
		log.Error().Err(err).Str("token", fp.String()).Msg("Sizing failed")
		return nil
	}

	// Exit gate runs against a snapshot taken at the planned size.
	sizedSnap, err := e.snapshots.GetSnapshot(scoreCtx, fp.Chain, fp.Address, &native)
	if err != nil || sizedSnap == nil {
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.SignalsDropped.WithLabelValues("score_timeout").Inc()
		}
		log.Warn().Err(err).Str("token", fp.String()).Msg("Sized snapshot unavailable, entry dropped")
		return nil
	}

	exitRes := e.exitGate.Evaluate(sizedSnap, &native)
	e.audit(fp, "EXIT", exitRes, score)
	switch exitRes.Status {
	case types.GateReject:
		log.Info().Str("token", fp.String()).Strs("reasons", exitRes.Reasons).Msg("🚪 Exit gate rejected entry")
		return nil
	case types.GateGreylist:
		// Thin exit: take the trade at half size.
		native = native.Div(twoDec)
		usd = usd.Div(twoDec)
		log.Info().Str("token", fp.String()).Strs("reasons", exitRes.Reasons).Msg("🚪 Exit gate greylist, size halved")
	}

	order := executor.EntryOrder{
		Chain:      fp.Chain,
		Token:      fp.Address,
		SignalID:   primaryChatSource(cand),
		SizeNative: native,
		SizeUSD:    usd,
		Score:      score,
		Snapshot:   sizedSnap,
		TGAccel:    float64(e.validator.Heat(fp)),
	}

	_, pos, err := e.exec.Buy(ctx, order)
	if err != nil {
		log.Error().Err(err).Str("token", fp.String()).Msg("❌ Buy failed")
		return nil
	}
	return pos
}

func (e *Engine) audit(fp types.Fingerprint, gate string, result types.GateResult, score types.CompositeScore) {
	if err := e.store.SaveGateAudit(fp.Chain, fp.Address, gate, result, score.Total, score.Tier); err != nil {
		log.Warn().Err(err).Str("token", fp.String()).Msg("Failed to save gate audit")
	}
}

// primaryChatSource returns the chat channel that first mentioned the
// candidate, used for channel performance attribution.
func primaryChatSource(cand *scoring.Candidate) string {
	best := ""
	var bestAt time.Time
	for _, ev := range cand.Evidence {
		src := ev.Signal.SourceID
		if strings.HasPrefix(src, "smart_money") || src == "hot_board" || src == "discovery" {
			continue
		}
		if best == "" || ev.SeenAt.Before(bestAt) {
			best = src
			bestAt = ev.SeenAt
		}
	}
	return best
}
