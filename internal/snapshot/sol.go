package snapshot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/alphaflow/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SOL PROVIDER - Market + safety data over REST
// ═══════════════════════════════════════════════════════════════════════════════

type solTokenResponse struct {
	Symbol          string   `json:"symbol"`
	Price           *float64 `json:"price"`
	LiquiditySOL    *float64 `json:"liquidity_sol"`
	LiquidityUSD    *float64 `json:"liquidity_usd"`
	MarketCap       *float64 `json:"market_cap"`
	HolderCount     *int     `json:"holder_count"`
	MintAuthority   *bool    `json:"mint_authority"`
	FreezeAuthority *bool    `json:"freeze_authority"`
	LPState         string   `json:"lp_state"`
	WashFlag        string   `json:"wash_flag"`
	IsBondingCurve  bool     `json:"is_bonding_curve"`
	CurveProgress   *float64 `json:"bonding_curve_progress"`
	Holders         []struct {
		Address string  `json:"address"`
		Percent float64 `json:"percent"`
		Risk    bool    `json:"risk"`
	} `json:"top_holders"`
}

type solQuoteResponse struct {
	SlippagePct *float64 `json:"slippage_pct"`
}

// SolProvider reads SOL token state from the configured data API
type SolProvider struct {
	client   *resty.Client
	excluded map[string]bool
}

// NewSolProvider creates the SOL provider. excluded lists DEX pool, curve and
// burn addresses to skip when computing holder concentration.
func NewSolProvider(baseURL string, excluded []string) *SolProvider {
	set := make(map[string]bool, len(excluded))
	for _, a := range excluded {
		set[a] = true
	}
	return &SolProvider{
		client:   resty.New().SetBaseURL(baseURL).SetTimeout(10 * time.Second),
		excluded: set,
	}
}

func (p *SolProvider) Name() string { return "sol_data" }

// Fetch builds a snapshot for a SOL token
func (p *SolProvider) Fetch(ctx context.Context, token string, plannedNative *decimal.Decimal) (*types.ChainSnapshot, error) {
	var body solTokenResponse
	resp, err := p.client.R().SetContext(ctx).SetResult(&body).Get("/tokens/" + token)
	if err != nil {
		return nil, fmt.Errorf("sol token fetch: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("sol token fetch: status %d", resp.StatusCode())
	}

	snap := &types.ChainSnapshot{
		Chain:           types.ChainSOL,
		Token:           token,
		SnapshotTime:    time.Now(),
		Symbol:          body.Symbol,
		MintAuthority:   authorityFromBool(body.MintAuthority),
		FreezeAuthority: authorityFromBool(body.FreezeAuthority),
		LP:              lpStateFrom(body.LPState),
		Wash:            washFrom(body.WashFlag),
		IsBondingCurve:  body.IsBondingCurve,
	}
	snap.Price = decPtr(body.Price)
	snap.LiquidityNative = decPtr(body.LiquiditySOL)
	snap.LiquidityUSD = decPtr(body.LiquidityUSD)
	snap.MarketCap = decPtr(body.MarketCap)
	snap.HolderCount = body.HolderCount
	snap.BondingCurveProgress = body.CurveProgress

	p.fillConcentration(snap, body)

	// Slippage is size-sensitive; without a planned size it stays unknown.
	if plannedNative != nil {
		p.fillSlippage(ctx, snap, token, plannedNative)
	}

	return snap, nil
}

// fillConcentration computes top-10/top-1 percentages over non-excluded holders
func (p *SolProvider) fillConcentration(snap *types.ChainSnapshot, body solTokenResponse) {
	if len(body.Holders) == 0 {
		return
	}
	var top10, top1 float64
	counted := 0
	for _, h := range body.Holders {
		if p.excluded[h.Address] {
			continue
		}
		if h.Risk {
			snap.RiskWallets = append(snap.RiskWallets, h.Address)
		}
		if counted < 10 {
			top10 += h.Percent
			if counted == 0 {
				top1 = h.Percent
			}
			counted++
		}
	}
	if counted > 0 {
		snap.Top10HolderPercent = &top10
		snap.Top1HolderPercent = &top1
	}
}

func (p *SolProvider) fillSlippage(ctx context.Context, snap *types.ChainSnapshot, token string, planned *decimal.Decimal) {
	amount := planned.Mul(decimal.NewFromFloat(0.20))
	var body solQuoteResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("token", token).
		SetQueryParam("amount", amount.String()).
		SetResult(&body).
		Get("/quote/sell")
	if err != nil || resp.IsError() {
		log.Debug().Err(err).Str("token", token).Msg("SOL slippage quote failed")
		return
	}
	snap.SellSlippageAt20Pct = body.SlippagePct
}

// ═══════════════════════════════════════════════════════════════════════════════
// PARSE HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

func decPtr(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}

func authorityFromBool(b *bool) types.AuthorityState {
	switch {
	case b == nil:
		return types.AuthorityUnknown
	case *b:
		return types.AuthorityEnabled
	default:
		return types.AuthorityDisabled
	}
}

func lpStateFrom(s string) types.LPState {
	switch strings.ToLower(s) {
	case "burned":
		return types.LPBurned
	case "locked":
		return types.LPLocked
	case "unlocked":
		return types.LPUnlocked
	default:
		return types.LPUnknown
	}
}

func washFrom(s string) types.WashLevel {
	switch strings.ToLower(s) {
	case "low":
		return types.WashLow
	case "medium":
		return types.WashMedium
	case "high":
		return types.WashHigh
	default:
		return types.WashUnknown
	}
}
