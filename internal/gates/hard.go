package gates

import (
	"fmt"

	"github.com/web3guy0/alphaflow/internal/config"
	"github.com/web3guy0/alphaflow/internal/metrics"
	"github.com/web3guy0/alphaflow/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// HARD GATE - Binary safety / quality filter
// ═══════════════════════════════════════════════════════════════════════════════
//
// Tri-state verdict: PASS / GREYLIST / REJECT plus reasons. An unknown value on
// a load-bearing field never passes; it greylists. Bonding-curve tokens bypass
// authority/LP checks (those concepts do not exist pre-DEX) but face a tighter
// top-10 limit because the holder base is small by construction.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Safe owner classifications for BSC contracts
var ownerSafeTypes = map[string]bool{
	"renounced": true,
	"burned":    true,
	"timelock":  true,
	"multisig":  true,
}

// HardGate evaluates on-chain safety of a token snapshot
type HardGate struct {
	cfg *config.Config
}

// NewHardGate creates the safety gate
func NewHardGate(cfg *config.Config) *HardGate {
	return &HardGate{cfg: cfg}
}

// Evaluate applies all chain-appropriate safety checks to a snapshot
func (g *HardGate) Evaluate(snap *types.ChainSnapshot) types.GateResult {
	th := g.cfg.Thresholds(snap.Chain)
	status := types.GatePass
	var reasons []string

	flag := func(s types.GateStatus, reason string) {
		status = status.Worse(s)
		reasons = append(reasons, reason)
	}

	// Liquidity (USD)
	switch {
	case snap.LiquidityUSD == nil:
		flag(types.GateGreylist, "Liquidity Unknown")
	case snap.LiquidityUSD.LessThan(th.MinLiquidityUSD):
		flag(types.GateReject, fmt.Sprintf("Liquidity $%s below minimum $%s", snap.LiquidityUSD.StringFixed(0), th.MinLiquidityUSD.StringFixed(0)))
	}

	// Holder count
	switch {
	case snap.HolderCount == nil:
		flag(types.GateGreylist, "Holder Count Unknown")
	case *snap.HolderCount < th.MinHolders:
		flag(types.GateReject, fmt.Sprintf("Holders %d below minimum %d", *snap.HolderCount, th.MinHolders))
	}

	// Top-10 concentration, tightened for bonding-curve tokens
	maxTop10 := th.MaxTop10Pct
	if snap.IsBondingCurve {
		maxTop10 = th.MaxTop10BondingPct
	}
	switch {
	case snap.Top10HolderPercent == nil:
		flag(types.GateGreylist, "Top10 Concentration Unknown")
	case *snap.Top10HolderPercent > maxTop10:
		flag(types.GateReject, fmt.Sprintf("Top10 holds %.1f%% above limit %.1f%%", *snap.Top10HolderPercent, maxTop10))
	}

	// Slippage
	switch {
	case snap.SellSlippageAt20Pct == nil:
		flag(types.GateGreylist, "Slippage Unknown")
	case *snap.SellSlippageAt20Pct*100 > th.MaxSlippageBps:
		flag(types.GateReject, fmt.Sprintf("Slippage %.0fbps above limit %.0fbps", *snap.SellSlippageAt20Pct*100, th.MaxSlippageBps))
	}

	if snap.Chain == types.ChainBSC {
		g.evaluateBSC(snap, th, flag)
	}
	if snap.Chain == types.ChainSOL {
		g.evaluateSOL(snap, flag)
	}

	// LP state (both chains); inapplicable pre-DEX
	if !snap.IsBondingCurve {
		switch snap.LP {
		case types.LPUnlocked:
			flag(types.GateReject, "LP Unlocked")
		case types.LPUnknown:
			flag(types.GateGreylist, "LP State Unknown")
		}
	}

	metrics.GateVerdicts.WithLabelValues("hard", string(status)).Inc()
	return types.GateResult{Status: status, Reasons: reasons}
}

func (g *HardGate) evaluateBSC(snap *types.ChainSnapshot, th config.GateThresholds, flag func(types.GateStatus, string)) {
	// Tax
	switch {
	case snap.BuySellTaxPct == nil:
		flag(types.GateGreylist, "Tax Unknown")
	case *snap.BuySellTaxPct > th.MaxTaxPct:
		flag(types.GateReject, fmt.Sprintf("Tax %.1f%% above limit %.1f%%", *snap.BuySellTaxPct, th.MaxTaxPct))
	}
	if snap.TaxMutable != nil && *snap.TaxMutable {
		flag(types.GateReject, "Tax Mutable")
	}

	// Honeypot
	switch {
	case snap.Honeypot == nil:
		flag(types.GateGreylist, "Honeypot Check Unknown")
	case *snap.Honeypot:
		flag(types.GateReject, "Honeypot Detected")
	}

	// Owner safety
	if !snap.IsBondingCurve {
		switch {
		case snap.OwnerType == "":
			flag(types.GateGreylist, "Owner Type Unknown")
		case !ownerSafeTypes[snap.OwnerType]:
			flag(types.GateReject, fmt.Sprintf("Unsafe Owner Type %q", snap.OwnerType))
		}
	}
}

func (g *HardGate) evaluateSOL(snap *types.ChainSnapshot, flag func(types.GateStatus, string)) {
	if snap.IsBondingCurve {
		return // authorities do not apply pre-DEX
	}
	switch snap.MintAuthority {
	case types.AuthorityEnabled:
		flag(types.GateReject, "Mint Authority Enabled")
	case types.AuthorityUnknown:
		flag(types.GateGreylist, "Mint Authority Unknown")
	}
	switch snap.FreezeAuthority {
	case types.AuthorityEnabled:
		flag(types.GateReject, "Freeze Authority Enabled")
	case types.AuthorityUnknown:
		flag(types.GateGreylist, "Freeze Authority Unknown")
	}
}
