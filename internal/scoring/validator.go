package scoring

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/alphaflow/internal/config"
	"github.com/web3guy0/alphaflow/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CROSS VALIDATOR - Evidence pooling coordinator
// ═══════════════════════════════════════════════════════════════════════════════
//
// Observe() files deduped signals into candidates. A single coordinator loop
// waits on the earliest window deadline; due candidates leave the book through
// Due(), where the scoring workers pick them up. "Final" evidence (smart-money
// online count at or above the configured threshold) fires the candidate
// immediately instead of waiting out the window.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Validator accumulates evidence and releases candidates for scoring
type Validator struct {
	cfg *config.Config

	mu         sync.Mutex
	candidates map[types.Fingerprint]*Candidate
	timers     timerHeap
	heat       map[types.Fingerprint]map[string]time.Time // chat-source mentions
	wake       chan struct{}
	due        chan *Candidate

	now func() time.Time
}

// NewValidator creates the validator
func NewValidator(cfg *config.Config) *Validator {
	v := &Validator{
		cfg:        cfg,
		candidates: make(map[types.Fingerprint]*Candidate),
		heat:       make(map[types.Fingerprint]map[string]time.Time),
		wake:       make(chan struct{}, 1),
		due:        make(chan *Candidate, cfg.ScoreWorkers*2),
		now:        time.Now,
	}
	heap.Init(&v.timers)
	return v
}

// Due returns the stream of candidates ready for scoring
func (v *Validator) Due() <-chan *Candidate {
	return v.due
}

// Observe files one deduped signal into its candidate
func (v *Validator) Observe(sig types.RawSignal) {
	now := v.now()
	fp := sig.Fingerprint()

	v.mu.Lock()
	cand, ok := v.candidates[fp]
	if !ok {
		cand = newCandidate(fp, now, v.cfg.AggregationWindow, v.cfg.MaxWindowExtend)
		v.candidates[fp] = cand
		v.timers.push(cand.WindowEnd, fp)
	} else {
		// New evidence extends the window, capped at MaxWindowEnd.
		cand.extend(now, v.cfg.AggregationWindow)
	}
	cand.add(sig, now)

	if isChatSourceName(sig.SourceID) {
		m, ok := v.heat[fp]
		if !ok {
			m = make(map[string]time.Time)
			v.heat[fp] = m
		}
		m[sig.SourceID] = now
	}

	// Final evidence short-circuits the window.
	if sig.SmartMoneyOnline != nil && *sig.SmartMoneyOnline >= v.cfg.FinalizeSmartCount {
		cand.WindowEnd = now
		v.timers.push(now, fp)
		log.Debug().Str("token", fp.String()).Int("smart_online", *sig.SmartMoneyOnline).Msg("⚡ Candidate finalized early")
	}
	v.mu.Unlock()

	v.poke()
}

// Heat returns the count of distinct chat sources mentioning the token within
// the heat window. Used by the scorer and by the position monitor's
// heat-decay warning.
func (v *Validator) Heat(fp types.Fingerprint) int {
	now := v.now()
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, last := range v.heat[fp] {
		if now.Sub(last) <= v.cfg.HeatWindow {
			n++
		}
	}
	return n
}

// Run drives the window timers until ctx is cancelled
func (v *Validator) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	gc := time.NewTicker(v.cfg.SignalExpiry)
	defer gc.Stop()

	for {
		next, ok := v.nextDeadline()
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		if ok {
			d := time.Until(next)
			if d < 0 {
				d = 0
			}
			timer.Reset(d)
		} else {
			timer.Reset(time.Hour)
		}

		select {
		case <-ctx.Done():
			close(v.due)
			return
		case <-v.wake:
		case <-gc.C:
			v.gcHeat()
		case <-timer.C:
			v.fireDue(ctx)
		}
	}
}

func (v *Validator) nextDeadline() (time.Time, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	it, ok := v.timers.peek()
	return it.fireAt, ok
}

func (v *Validator) fireDue(ctx context.Context) {
	now := v.now()
	var ready []*Candidate

	v.mu.Lock()
	for {
		it, ok := v.timers.peek()
		if !ok || it.fireAt.After(now) {
			break
		}
		v.timers.pop()
		cand, ok := v.candidates[it.fp]
		if !ok {
			continue // stale timer from an extension or early finalize
		}
		if cand.WindowEnd.After(now) {
			// Window was extended past this timer; re-arm.
			v.timers.push(cand.WindowEnd, it.fp)
			continue
		}
		delete(v.candidates, it.fp)
		ready = append(ready, cand)
	}
	v.mu.Unlock()

	for _, cand := range ready {
		select {
		case v.due <- cand:
		case <-ctx.Done():
			return
		}
	}
}

func (v *Validator) gcHeat() {
	now := v.now()
	v.mu.Lock()
	defer v.mu.Unlock()
	for fp, m := range v.heat {
		for src, last := range m {
			if now.Sub(last) > v.cfg.SignalExpiry {
				delete(m, src)
			}
		}
		if len(m) == 0 {
			delete(v.heat, fp)
		}
	}
}

func (v *Validator) poke() {
	select {
	case v.wake <- struct{}{}:
	default:
	}
}

// SetClock overrides the time source (tests)
func (v *Validator) SetClock(now func() time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.now = now
}
