package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/web3guy0/alphaflow/types"
)

const (
	expiry    = 30 * time.Minute
	heatWin   = 15 * time.Minute
	aggWindow = 10 * time.Minute
)

func f64(v float64) *float64 { return &v }
func iptr(v int) *int        { return &v }

func fpSOL(token string) types.Fingerprint {
	return types.Fingerprint{Chain: types.ChainSOL, Address: token}
}

// buildCandidate files the given signals at `now` into a fresh candidate
func buildCandidate(now time.Time, sigs ...types.RawSignal) *Candidate {
	cand := newCandidate(fpSOL("TokenX"), now, aggWindow, 5*time.Minute)
	for _, s := range sigs {
		cand.add(s, now)
	}
	return cand
}

func pass() types.GateResult   { return types.GateResult{Status: types.GatePass} }
func reject() types.GateResult { return types.GateResult{Status: types.GateReject} }

func TestStrongEvidenceScoresMax(t *testing.T) {
	s := NewScorer(expiry, heatWin, aggWindow, nil, nil)
	now := time.Now()

	cand := buildCandidate(now,
		types.RawSignal{SourceID: "smart_money", SmartMoneyTotal: iptr(10), SmartMoneyOnline: iptr(5)},
		types.RawSignal{SourceID: "alpha_calls", AIScore: f64(9)},
		types.RawSignal{SourceID: "beta_calls"},
		types.RawSignal{SourceID: "gamma_calls"},
		types.RawSignal{SourceID: "hot_board", PriceChange5m: f64(40), PriceChange1h: f64(120), MaxPriceGain: f64(250)},
	)

	score := s.Score(cand, pass(), now)
	assert.GreaterOrEqual(t, score.Total, 80, "breakdown: %+v", score.Breakdown)
	assert.Equal(t, types.RatingMax, score.Tier)
	assert.True(t, score.Tier.Buyable())
}

func TestHardRejectOverridesScore(t *testing.T) {
	s := NewScorer(expiry, heatWin, aggWindow, nil, nil)
	now := time.Now()

	cand := buildCandidate(now,
		types.RawSignal{SourceID: "smart_money", SmartMoneyTotal: iptr(10)},
		types.RawSignal{SourceID: "alpha_calls", AIScore: f64(10)},
	)

	score := s.Score(cand, reject(), now)
	assert.Equal(t, types.RatingReject, score.Tier, "safety rejection beats any composite")
	assert.False(t, score.Tier.Buyable())
}

func TestSafetyAxisGreylistHalves(t *testing.T) {
	s := NewScorer(expiry, heatWin, aggWindow, nil, nil)
	now := time.Now()
	cand := buildCandidate(now, types.RawSignal{SourceID: "alpha_calls"})

	passed := s.Score(cand, pass(), now)
	grey := s.Score(cand, types.GateResult{Status: types.GateGreylist}, now)

	assert.InDelta(t, 10.0, passed.Breakdown.Safety, 0.001)
	assert.InDelta(t, 5.0, grey.Breakdown.Safety, 0.001)
}

func TestSafetyAxisUnknownScoresZero(t *testing.T) {
	s := NewScorer(expiry, heatWin, aggWindow, nil, nil)
	now := time.Now()
	cand := buildCandidate(now, types.RawSignal{SourceID: "alpha_calls"})

	unknown := s.Score(cand, types.GateResult{Status: types.GateUnknown, Reasons: []string{"Snapshot Unavailable"}}, now)
	grey := s.Score(cand, types.GateResult{Status: types.GateGreylist}, now)

	// No snapshot means no safety credit at all, not the greylist half.
	assert.Equal(t, 0.0, unknown.Breakdown.Safety)
	assert.Equal(t, grey.Total-5, unknown.Total)
	assert.NotEqual(t, "hard gate rejected", unknown.Reason, "unknown is not the reject override")
}

func TestDistinctSourceBoost(t *testing.T) {
	s := NewScorer(expiry, heatWin, aggWindow, nil, nil)
	now := time.Now()

	one := buildCandidate(now, types.RawSignal{SourceID: "a"})
	two := buildCandidate(now, types.RawSignal{SourceID: "a"}, types.RawSignal{SourceID: "b"})
	three := buildCandidate(now,
		types.RawSignal{SourceID: "a"}, types.RawSignal{SourceID: "b"}, types.RawSignal{SourceID: "c"})
	five := buildCandidate(now,
		types.RawSignal{SourceID: "a"}, types.RawSignal{SourceID: "b"}, types.RawSignal{SourceID: "c"},
		types.RawSignal{SourceID: "d"}, types.RawSignal{SourceID: "e"})

	assert.Equal(t, 0.0, s.Score(one, pass(), now).Breakdown.Boost)
	assert.Equal(t, 5.0, s.Score(two, pass(), now).Breakdown.Boost)
	assert.Equal(t, 10.0, s.Score(three, pass(), now).Breakdown.Boost)
	assert.Equal(t, 15.0, s.Score(five, pass(), now).Breakdown.Boost)
}

func TestDecayFloorAndExpiry(t *testing.T) {
	s := NewScorer(expiry, heatWin, aggWindow, nil, nil)

	assert.InDelta(t, 1.0, s.decay(0), 0.001)
	// Old but unexpired evidence bottoms out at the floor.
	assert.InDelta(t, 0.1, s.decay(25*time.Minute), 0.001)
	// Expired evidence contributes nothing.
	assert.Equal(t, 0.0, s.decay(expiry))
	assert.Equal(t, 0.0, s.decay(time.Hour))
}

func TestStaleEvidenceScoresLower(t *testing.T) {
	s := NewScorer(expiry, heatWin, aggWindow, nil, nil)
	now := time.Now()

	cand := buildCandidate(now, types.RawSignal{SourceID: "smart_money", SmartMoneyTotal: iptr(10)})

	fresh := s.Score(cand, pass(), now)
	stale := s.Score(cand, pass(), now.Add(20*time.Minute))
	assert.Greater(t, fresh.Breakdown.SmartMoney, stale.Breakdown.SmartMoney)
}

func TestTGHeatOnlyCountsChatSources(t *testing.T) {
	s := NewScorer(expiry, heatWin, aggWindow, nil, nil)
	now := time.Now()

	machine := buildCandidate(now,
		types.RawSignal{SourceID: "smart_money"},
		types.RawSignal{SourceID: "hot_board"},
		types.RawSignal{SourceID: "discovery"},
	)
	chat := buildCandidate(now, types.RawSignal{SourceID: "alpha_calls"})

	assert.Equal(t, 0.0, s.Score(machine, pass(), now).Breakdown.TGHeat)
	assert.Greater(t, s.Score(chat, pass(), now).Breakdown.TGHeat, 0.0)
}

type fixedChannels struct{ score float64 }

func (f fixedChannels) ChannelScore(string) float64 { return f.score }

func TestChannelWeightNudgesHeat(t *testing.T) {
	now := time.Now()
	cand := buildCandidate(now, types.RawSignal{SourceID: "alpha_calls"})

	weak := NewScorer(expiry, heatWin, aggWindow, nil, fixedChannels{score: 0})
	strong := NewScorer(expiry, heatWin, aggWindow, nil, fixedChannels{score: 10})

	assert.Greater(t,
		strong.Score(cand, pass(), now).Breakdown.TGHeat,
		weak.Score(cand, pass(), now).Breakdown.TGHeat)
}

type fixedNarratives struct{ mult float64 }

func (f fixedNarratives) Narrative(string) (NarrativeProfile, bool) {
	return NarrativeProfile{LifecycleMultiplier: f.mult}, true
}

func TestNarrativeLifecycleMultiplier(t *testing.T) {
	now := time.Now()
	cand := buildCandidate(now, types.RawSignal{SourceID: "alpha_calls", AIScore: f64(8), AINarrativeType: "ai_agents"})

	declining := NewScorer(expiry, heatWin, aggWindow, fixedNarratives{mult: 0.5}, nil)
	exploding := NewScorer(expiry, heatWin, aggWindow, fixedNarratives{mult: 1.2}, nil)

	assert.Greater(t,
		exploding.Score(cand, pass(), now).Breakdown.Narrative,
		declining.Score(cand, pass(), now).Breakdown.Narrative)
}

func TestBetterTieBreaks(t *testing.T) {
	early := time.Now()
	late := early.Add(time.Minute)

	a := types.CompositeScore{Total: 70, FirstSeen: late}
	b := types.CompositeScore{Total: 60, FirstSeen: early}
	assert.True(t, Better(a, b), "higher total wins")

	a = types.CompositeScore{Total: 70, Breakdown: types.AxisBreakdown{SmartMoney: 30}, FirstSeen: late}
	b = types.CompositeScore{Total: 70, Breakdown: types.AxisBreakdown{SmartMoney: 20}, FirstSeen: early}
	assert.True(t, Better(a, b), "smart money axis breaks total ties")

	a = types.CompositeScore{Total: 70, FirstSeen: early}
	b = types.CompositeScore{Total: 70, FirstSeen: late}
	assert.True(t, Better(a, b), "earlier first-seen breaks full ties")
}

func TestTierBoundaries(t *testing.T) {
	cases := []struct {
		total int
		tier  types.RatingTier
	}{
		{85, types.RatingMax}, {80, types.RatingMax},
		{79, types.RatingNormal}, {65, types.RatingNormal},
		{64, types.RatingSmall}, {50, types.RatingSmall},
		{49, types.RatingWatch}, {35, types.RatingWatch},
		{34, types.RatingReject}, {0, types.RatingReject},
	}
	for _, c := range cases {
		tier, _ := tierFor(c.total)
		assert.Equal(t, c.tier, tier, "total %d", c.total)
	}
}
