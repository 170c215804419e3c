package gates

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/web3guy0/alphaflow/types"
)

func exitableSOL() *types.ChainSnapshot {
	return &types.ChainSnapshot{
		Chain:               types.ChainSOL,
		Token:               "So1Exitable",
		LiquidityNative:     dec(400),
		SellSlippageAt20Pct: f64(1.2),
		Top10HolderPercent:  f64(18),
		Wash:                types.WashLow,
	}
}

func planned(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func TestExitGateRequiresPlannedSize(t *testing.T) {
	g := NewExitGate(testConfig())
	res := g.Evaluate(exitableSOL(), nil)
	assert.Equal(t, types.GateGreylist, res.Status)
	assert.Contains(t, res.Reasons, "Planned Position Size Missing")
}

func TestExitGatePassesLiquidToken(t *testing.T) {
	g := NewExitGate(testConfig())
	res := g.Evaluate(exitableSOL(), planned(0.5))
	assert.Equal(t, types.GatePass, res.Status, "reasons: %v", res.Reasons)
}

func TestExitSlippageBands(t *testing.T) {
	g := NewExitGate(testConfig())

	// Below pass threshold (2% SOL): PASS.
	snap := exitableSOL()
	snap.SellSlippageAt20Pct = f64(1.9)
	assert.Equal(t, types.GatePass, g.Evaluate(snap, planned(0.5)).Status)

	// Caution band [2%, 5%]: GREYLIST.
	snap = exitableSOL()
	snap.SellSlippageAt20Pct = f64(3.5)
	assert.Equal(t, types.GateGreylist, g.Evaluate(snap, planned(0.5)).Status)

	// Above limit (5%): REJECT even when everything else is clean.
	snap = exitableSOL()
	snap.SellSlippageAt20Pct = f64(6)
	assert.Equal(t, types.GateReject, g.Evaluate(snap, planned(0.5)).Status)
}

func TestExitGateLowNativeLiquidity(t *testing.T) {
	g := NewExitGate(testConfig())
	snap := exitableSOL()
	snap.LiquidityNative = dec(40) // below 100 SOL minimum
	assert.Equal(t, types.GateReject, g.Evaluate(snap, planned(0.5)).Status)
}

func TestExitGateBSCSellConstraints(t *testing.T) {
	g := NewExitGate(testConfig())
	snap := &types.ChainSnapshot{
		Chain:               types.ChainBSC,
		LiquidityNative:     dec(200),
		SellSlippageAt20Pct: f64(2),
		Top10HolderPercent:  f64(15),
		SellConstraints:     bptr(true),
		Wash:                types.WashLow,
	}
	assert.Equal(t, types.GateReject, g.Evaluate(snap, planned(0.1)).Status)

	snap.SellConstraints = bptr(false)
	assert.Equal(t, types.GatePass, g.Evaluate(snap, planned(0.1)).Status)
}

func TestWashEscalation(t *testing.T) {
	g := NewExitGate(testConfig())

	// High wash alone only greylists.
	snap := exitableSOL()
	snap.Wash = types.WashHigh
	res := g.Evaluate(snap, planned(0.5))
	assert.Equal(t, types.GateGreylist, res.Status)

	// High wash plus another yellow flag escalates to reject.
	snap = exitableSOL()
	snap.Wash = types.WashHigh
	snap.SellSlippageAt20Pct = f64(3) // caution band greylist
	res = g.Evaluate(snap, planned(0.5))
	assert.Equal(t, types.GateReject, res.Status)
	assert.Contains(t, res.Reasons, "High Wash Activity With Other Warnings")
}
