package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/web3guy0/alphaflow/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// COMPOSITE SCORER - 0-100 rating from five weighted axes
// ═══════════════════════════════════════════════════════════════════════════════
//
//   SmartMoney 40 | AI-Narrative 25 | TG-Heat 15 | Momentum 10 | Safety 10
//
// Each axis scales to 0-1 before weighting. Evidence decays exp(-age/τ) with
// τ = 5min, floored at 0.1; anything older than the signal expiry contributes
// zero. Unknown values contribute zero to their axis, never a penalty. A
// hard-gate REJECT overrides the composite and forces tier REJECT.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	weightSmartMoney = 40.0
	weightNarrative  = 25.0
	weightTGHeat     = 15.0
	weightMomentum   = 10.0
	weightSafety     = 10.0

	decayTau   = 5 * time.Minute
	decayFloor = 0.1

	// Axis saturation points
	smartMoneyFull = 10.0 // distinct smart wallets for a full axis
	tgHeatFull     = 5.0  // distinct chat sources for a full axis
)

// Tier boundaries
const (
	tierMaxMin    = 80
	tierNormalMin = 65
	tierSmallMin  = 50
	tierWatchMin  = 35
)

// NarrativeProfile is the externally curated rating for a narrative
type NarrativeProfile struct {
	MarketHeat          float64 // 0-10
	Sustainability      float64 // 0-10
	LifecycleStage      string
	LifecycleMultiplier float64
	Weight              float64 // 0-10
}

// NarrativeSource resolves narrative names to profiles
type NarrativeSource interface {
	Narrative(name string) (NarrativeProfile, bool)
}

// ChannelWeightSource resolves a chat channel's historical performance score (0-10)
type ChannelWeightSource interface {
	ChannelScore(name string) float64
}

// Scorer turns an aggregated candidate plus gate context into a composite score
type Scorer struct {
	signalExpiry time.Duration
	heatWindow   time.Duration
	aggWindow    time.Duration
	narratives   NarrativeSource
	channels     ChannelWeightSource
}

// NewScorer creates the scorer. narratives and channels may be nil; the
// corresponding axes then run unweighted.
func NewScorer(signalExpiry, heatWindow, aggWindow time.Duration, narratives NarrativeSource, channels ChannelWeightSource) *Scorer {
	return &Scorer{
		signalExpiry: signalExpiry,
		heatWindow:   heatWindow,
		aggWindow:    aggWindow,
		narratives:   narratives,
		channels:     channels,
	}
}

// Score computes the composite for a due candidate. hard is the hard-gate
// verdict over the candidate's snapshot; pass GateUnknown when the snapshot
// itself could not be fetched. Safety then contributes zero: no greylist
// credit for data nobody saw.
func (s *Scorer) Score(cand *Candidate, hard types.GateResult, now time.Time) types.CompositeScore {
	var b types.AxisBreakdown

	b.SmartMoney = s.smartMoneyAxis(cand, now) * weightSmartMoney
	b.Narrative = s.narrativeAxis(cand, now) * weightNarrative
	b.TGHeat = s.tgHeatAxis(cand, now) * weightTGHeat
	b.Momentum = s.momentumAxis(cand, now) * weightMomentum
	b.Safety = safetyAxis(hard.Status) * weightSafety

	// Cross-source aggregation boost on the SmartMoney/TG-Heat evidence.
	switch n := cand.DistinctSources(now, s.aggWindow); {
	case n >= 5:
		b.Boost = 15
	case n >= 3:
		b.Boost = 10
	case n >= 2:
		b.Boost = 5
	}

	raw := b.SmartMoney + b.Narrative + b.TGHeat + b.Momentum + b.Safety + b.Boost
	total := int(math.Round(math.Min(100, math.Max(0, raw))))

	tier, reason := tierFor(total)
	if hard.Status == types.GateReject {
		// Safety rejection overrides the composite regardless of score.
		tier = types.RatingReject
		reason = "hard gate rejected"
		if len(hard.Reasons) > 0 {
			reason = fmt.Sprintf("hard gate rejected: %s", hard.Reasons[0])
		}
	}

	return types.CompositeScore{
		Total:     total,
		Breakdown: b,
		Tier:      tier,
		Reason:    reason,
		FirstSeen: cand.FirstSeen,
	}
}

// Better orders two scored candidates: higher total, then higher SmartMoney
// axis, then earlier first-seen.
func Better(a, b types.CompositeScore) bool {
	if a.Total != b.Total {
		return a.Total > b.Total
	}
	if a.Breakdown.SmartMoney != b.Breakdown.SmartMoney {
		return a.Breakdown.SmartMoney > b.Breakdown.SmartMoney
	}
	return a.FirstSeen.Before(b.FirstSeen)
}

// ═══════════════════════════════════════════════════════════════════════════════
// AXES
// ═══════════════════════════════════════════════════════════════════════════════

func (s *Scorer) smartMoneyAxis(cand *Candidate, now time.Time) float64 {
	best := 0.0
	for _, ev := range cand.Evidence {
		sig := ev.Signal
		if sig.SmartMoneyTotal == nil {
			continue
		}
		v := float64(*sig.SmartMoneyTotal) * s.decay(now.Sub(ev.SeenAt))
		if v > best {
			best = v
		}
	}
	return clamp01(best / smartMoneyFull)
}

func (s *Scorer) narrativeAxis(cand *Candidate, now time.Time) float64 {
	best := 0.0
	for _, ev := range cand.Evidence {
		sig := ev.Signal
		if sig.AIScore == nil {
			continue
		}
		v := (*sig.AIScore / 10.0) * s.decay(now.Sub(ev.SeenAt))
		if s.narratives != nil && sig.AINarrativeType != "" {
			if prof, ok := s.narratives.Narrative(sig.AINarrativeType); ok {
				v *= prof.LifecycleMultiplier
			}
		}
		if v > best {
			best = v
		}
	}
	return clamp01(best)
}

func (s *Scorer) tgHeatAxis(cand *Candidate, now time.Time) float64 {
	sum := 0.0
	for src, last := range cand.Sources {
		if now.Sub(last) > s.heatWindow {
			continue
		}
		if !isChatSourceName(src) {
			continue
		}
		w := 1.0
		if s.channels != nil {
			// Channel performance (0-10) nudges the per-channel weight into
			// the 0.5-1.0 band; an unknown channel counts as average.
			w = 0.5 + s.channels.ChannelScore(src)/20.0
		}
		sum += w * s.decay(now.Sub(last))
	}
	return clamp01(sum / tgHeatFull)
}

func (s *Scorer) momentumAxis(cand *Candidate, now time.Time) float64 {
	best := 0.0
	for _, ev := range cand.Evidence {
		sig := ev.Signal
		v := 0.0
		if sig.PriceChange5m != nil {
			v += clamp01(*sig.PriceChange5m/30.0) * 0.5
		}
		if sig.PriceChange1h != nil {
			v += clamp01(*sig.PriceChange1h/100.0) * 0.3
		}
		if sig.MaxPriceGain != nil {
			v += clamp01(*sig.MaxPriceGain/200.0) * 0.2
		}
		v *= s.decay(now.Sub(ev.SeenAt))
		if v > best {
			best = v
		}
	}
	return clamp01(best)
}

func safetyAxis(status types.GateStatus) float64 {
	switch status {
	case types.GatePass:
		return 1.0
	case types.GateGreylist:
		return 0.5
	default:
		// REJECT, and UNKNOWN when no snapshot existed to evaluate.
		return 0
	}
}

// decay returns the age multiplier: fresh evidence gets full weight, stale
// evidence proportionally less, expired evidence zero.
func (s *Scorer) decay(age time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	if age >= s.signalExpiry {
		return 0
	}
	d := math.Exp(-age.Seconds() / decayTau.Seconds())
	if d < decayFloor {
		d = decayFloor
	}
	return d
}

func tierFor(total int) (types.RatingTier, string) {
	switch {
	case total >= tierMaxMin:
		return types.RatingMax, "auto-buy large"
	case total >= tierNormalMin:
		return types.RatingNormal, "auto-buy medium"
	case total >= tierSmallMin:
		return types.RatingSmall, "auto-buy small"
	case total >= tierWatchMin:
		return types.RatingWatch, "watch only"
	default:
		return types.RatingReject, "below threshold"
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func isChatSourceName(src string) bool {
	switch src {
	case "smart_money", "hot_board", "discovery":
		return false
	}
	return true
}
