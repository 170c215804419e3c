package gates

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/web3guy0/alphaflow/internal/config"
	"github.com/web3guy0/alphaflow/types"
)

func testConfig() *config.Config {
	return &config.Config{
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
		BSC: config.GateThresholds{
			MinLiquidityUSD:      decimal.NewFromInt(50000),
			MinHolders:           200,
			MaxTop10Pct:          30,
			MaxTop10BondingPct:   25,
			MaxSlippageBps:       500,
			MaxTaxPct:            10,
			MinLiquidityNative:   decimal.NewFromInt(50),
			ExitSlippagePassPct:  3,
			ExitSlippageLimitPct: 8,
			TimeStopMinutes:      120,
		},
	}
}

func f64(v float64) *float64 { return &v }
func iptr(v int) *int        { return &v }
func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}
func bptr(v bool) *bool { return &v }

func healthySOL() *types.ChainSnapshot {
	return &types.ChainSnapshot{
		Chain:               types.ChainSOL,
		Token:               "So1HealthyToken",
		LiquidityUSD:        dec(80000),
		HolderCount:         iptr(450),
		Top10HolderPercent:  f64(18),
		SellSlippageAt20Pct: f64(1.2),
		MintAuthority:       types.AuthorityDisabled,
		FreezeAuthority:     types.AuthorityDisabled,
		LP:                  types.LPBurned,
		Wash:                types.WashLow,
	}
}

func healthyBSC() *types.ChainSnapshot {
	return &types.ChainSnapshot{
		Chain:               types.ChainBSC,
		Token:               "0xAbCHealthy",
		LiquidityUSD:        dec(120000),
		HolderCount:         iptr(800),
		Top10HolderPercent:  f64(20),
		SellSlippageAt20Pct: f64(2.5),
		BuySellTaxPct:       f64(4),
		TaxMutable:          bptr(false),
		Honeypot:            bptr(false),
		OwnerType:           "renounced",
		LP:                  types.LPLocked,
		Wash:                types.WashLow,
	}
}

func TestHardGatePassesHealthySOL(t *testing.T) {
	g := NewHardGate(testConfig())
	res := g.Evaluate(healthySOL())
	assert.Equal(t, types.GatePass, res.Status, "reasons: %v", res.Reasons)
	assert.Empty(t, res.Reasons)
}

func TestHardGatePassesHealthyBSC(t *testing.T) {
	g := NewHardGate(testConfig())
	res := g.Evaluate(healthyBSC())
	assert.Equal(t, types.GatePass, res.Status, "reasons: %v", res.Reasons)
}

func TestUnknownFieldsNeverPass(t *testing.T) {
	g := NewHardGate(testConfig())

	cases := map[string]func(*types.ChainSnapshot){
		"liquidity":    func(s *types.ChainSnapshot) { s.LiquidityUSD = nil },
		"holders":      func(s *types.ChainSnapshot) { s.HolderCount = nil },
		"top10":        func(s *types.ChainSnapshot) { s.Top10HolderPercent = nil },
		"slippage":     func(s *types.ChainSnapshot) { s.SellSlippageAt20Pct = nil },
		"mint auth":    func(s *types.ChainSnapshot) { s.MintAuthority = types.AuthorityUnknown },
		"freeze auth":  func(s *types.ChainSnapshot) { s.FreezeAuthority = types.AuthorityUnknown },
		"lp state":     func(s *types.ChainSnapshot) { s.LP = types.LPUnknown },
	}
	for name, mutate := range cases {
		snap := healthySOL()
		mutate(snap)
		res := g.Evaluate(snap)
		assert.Equal(t, types.GateGreylist, res.Status, "unknown %s must greylist, not pass", name)
		assert.NotEmpty(t, res.Reasons)
	}
}

func TestHardGateRejections(t *testing.T) {
	g := NewHardGate(testConfig())

	cases := map[string]func(*types.ChainSnapshot){
		"low liquidity":   func(s *types.ChainSnapshot) { s.LiquidityUSD = dec(5000) },
		"few holders":     func(s *types.ChainSnapshot) { s.HolderCount = iptr(40) },
		"concentrated":    func(s *types.ChainSnapshot) { s.Top10HolderPercent = f64(45) },
		"thin exit":       func(s *types.ChainSnapshot) { s.SellSlippageAt20Pct = f64(4) }, // 400bps > 300
		"mint authority":  func(s *types.ChainSnapshot) { s.MintAuthority = types.AuthorityEnabled },
		"freeze":          func(s *types.ChainSnapshot) { s.FreezeAuthority = types.AuthorityEnabled },
		"unlocked lp":     func(s *types.ChainSnapshot) { s.LP = types.LPUnlocked },
	}
	for name, mutate := range cases {
		snap := healthySOL()
		mutate(snap)
		res := g.Evaluate(snap)
		assert.Equal(t, types.GateReject, res.Status, "%s must reject", name)
	}
}

func TestBSCRejections(t *testing.T) {
	g := NewHardGate(testConfig())

	cases := map[string]func(*types.ChainSnapshot){
		"honeypot":    func(s *types.ChainSnapshot) { s.Honeypot = bptr(true) },
		"high tax":    func(s *types.ChainSnapshot) { s.BuySellTaxPct = f64(15) },
		"mutable tax": func(s *types.ChainSnapshot) { s.TaxMutable = bptr(true) },
		"live owner":  func(s *types.ChainSnapshot) { s.OwnerType = "eoa" },
	}
	for name, mutate := range cases {
		snap := healthyBSC()
		mutate(snap)
		res := g.Evaluate(snap)
		assert.Equal(t, types.GateReject, res.Status, "%s must reject", name)
	}
}

func TestBondingCurveBypassesAuthorityChecks(t *testing.T) {
	g := NewHardGate(testConfig())

	snap := healthySOL()
	snap.IsBondingCurve = true
	snap.MintAuthority = types.AuthorityUnknown
	snap.FreezeAuthority = types.AuthorityUnknown
	snap.LP = types.LPUnknown

	res := g.Evaluate(snap)
	assert.Equal(t, types.GatePass, res.Status, "pre-DEX concepts must not flag bonding tokens: %v", res.Reasons)
}

func TestBondingCurveTightensTop10(t *testing.T) {
	g := NewHardGate(testConfig())

	// 27% passes the normal 30% limit...
	snap := healthySOL()
	snap.Top10HolderPercent = f64(27)
	assert.Equal(t, types.GatePass, g.Evaluate(snap).Status)

	// ...but fails the tightened 25% bonding limit.
	snap = healthySOL()
	snap.IsBondingCurve = true
	snap.Top10HolderPercent = f64(27)
	assert.Equal(t, types.GateReject, g.Evaluate(snap).Status)
}

func TestVerdictMonotoneUnderImprovingSnapshot(t *testing.T) {
	g := NewHardGate(testConfig())

	rank := func(s types.GateStatus) int {
		switch s {
		case types.GateReject:
			return 2
		case types.GateGreylist:
			return 1
		default:
			return 0
		}
	}

	// Each step improves fields and degrades none; the verdict must never
	// get worse along the way.
	worst := &types.ChainSnapshot{
		Chain:               types.ChainSOL,
		Token:               "So1Token",
		LiquidityUSD:        dec(5000),
		HolderCount:         iptr(40),
		Top10HolderPercent:  f64(60),
		SellSlippageAt20Pct: f64(6),
		MintAuthority:       types.AuthorityEnabled,
		FreezeAuthority:     types.AuthorityEnabled,
		LP:                  types.LPUnlocked,
		Wash:                types.WashLow,
	}
	steps := []func(*types.ChainSnapshot){
		func(s *types.ChainSnapshot) { s.LiquidityUSD = dec(80000); s.HolderCount = iptr(450) },
		func(s *types.ChainSnapshot) { s.Top10HolderPercent = f64(18); s.SellSlippageAt20Pct = f64(1.2) },
		func(s *types.ChainSnapshot) {
			s.MintAuthority = types.AuthorityDisabled
			s.FreezeAuthority = types.AuthorityDisabled
			s.LP = types.LPUnknown
		},
		func(s *types.ChainSnapshot) { s.LP = types.LPBurned },
	}

	prev := rank(g.Evaluate(worst).Status)
	assert.Equal(t, 2, prev)
	for i, improve := range steps {
		improve(worst)
		res := g.Evaluate(worst)
		cur := rank(res.Status)
		assert.LessOrEqual(t, cur, prev, "step %d worsened the verdict to %s (%v)", i, res.Status, res.Reasons)
		prev = cur
	}
	assert.Equal(t, 0, prev, "fully healthy snapshot must pass")
}

func TestWorstStatusWins(t *testing.T) {
	g := NewHardGate(testConfig())

	snap := healthySOL()
	snap.LiquidityUSD = nil            // greylist
	snap.Top10HolderPercent = f64(60)  // reject
	res := g.Evaluate(snap)
	assert.Equal(t, types.GateReject, res.Status)
	assert.Len(t, res.Reasons, 2, "all reasons collected, not just the worst")
}
