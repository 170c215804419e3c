package gates

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/alphaflow/internal/config"
	"github.com/web3guy0/alphaflow/internal/metrics"
	"github.com/web3guy0/alphaflow/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// EXIT GATE - Can we get out at this size?
// ═══════════════════════════════════════════════════════════════════════════════
//
// Exit feasibility is coupled to the sized trade, not an abstract "safe to
// buy": plannedNative is required input. Without it the verdict is forced to
// GREYLIST.
//
// ═══════════════════════════════════════════════════════════════════════════════

// ExitGate evaluates liquidity/exitability for a planned position size
type ExitGate struct {
	cfg *config.Config
}

// NewExitGate creates the exitability gate
func NewExitGate(cfg *config.Config) *ExitGate {
	return &ExitGate{cfg: cfg}
}

// Evaluate checks whether a position of plannedNative could be unwound
func (g *ExitGate) Evaluate(snap *types.ChainSnapshot, plannedNative *decimal.Decimal) types.GateResult {
	if plannedNative == nil {
		metrics.GateVerdicts.WithLabelValues("exit", string(types.GateGreylist)).Inc()
		return types.GateResult{
			Status:  types.GateGreylist,
			Reasons: []string{"Planned Position Size Missing"},
		}
	}

	th := g.cfg.Thresholds(snap.Chain)
	status := types.GatePass
	var reasons []string
	greylistCount := 0

	flag := func(s types.GateStatus, reason string) {
		status = status.Worse(s)
		if s == types.GateGreylist {
			greylistCount++
		}
		reasons = append(reasons, reason)
	}

	// Liquidity (native)
	switch {
	case snap.LiquidityNative == nil:
		flag(types.GateGreylist, "Native Liquidity Unknown")
	case snap.LiquidityNative.LessThan(th.MinLiquidityNative):
		flag(types.GateReject, fmt.Sprintf("Native liquidity %s below minimum %s", snap.LiquidityNative.StringFixed(1), th.MinLiquidityNative.StringFixed(1)))
	}

	// Slippage at 20% of planned size
	switch {
	case snap.SellSlippageAt20Pct == nil:
		flag(types.GateGreylist, "Exit Slippage Unknown")
	case *snap.SellSlippageAt20Pct > th.ExitSlippageLimitPct:
		flag(types.GateReject, fmt.Sprintf("Exit slippage %.1f%% above limit %.1f%%", *snap.SellSlippageAt20Pct, th.ExitSlippageLimitPct))
	case *snap.SellSlippageAt20Pct >= th.ExitSlippagePassPct:
		flag(types.GateGreylist, fmt.Sprintf("Exit slippage %.1f%% in caution band", *snap.SellSlippageAt20Pct))
	}

	// Top-10 concentration
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

	// Sell constraints (BSC only)
	if snap.Chain == types.ChainBSC {
		switch {
		case snap.SellConstraints == nil:
			flag(types.GateGreylist, "Sell Constraints Unknown")
		case *snap.SellConstraints:
			flag(types.GateReject, "Sell Constraints Detected")
		}
	}

	// Wash flag last: HIGH escalates to reject when combined with any other
	// yellow flag, alone it only greylists.
	switch snap.Wash {
	case types.WashHigh:
		if greylistCount > 0 {
			flag(types.GateReject, "High Wash Activity With Other Warnings")
		} else {
			flag(types.GateGreylist, "High Wash Activity")
		}
	case types.WashUnknown:
		flag(types.GateGreylist, "Wash Flag Unknown")
	}

	metrics.GateVerdicts.WithLabelValues("exit", string(status)).Inc()
	return types.GateResult{Status: status, Reasons: reasons}
}
