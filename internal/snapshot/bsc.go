package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/alphaflow/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// BSC PROVIDER - RPC contract probe + honeypot simulation API
// ═══════════════════════════════════════════════════════════════════════════════
//
// Two sources feed one snapshot: the chain RPC proves the token is a real
// contract, the honeypot API simulates a round trip (taxes, sell constraints,
// owner classification) and carries the market data.
//
// ═══════════════════════════════════════════════════════════════════════════════

type honeypotResponse struct {
	Symbol       string   `json:"symbol"`
	Price        *float64 `json:"price"`
	LiquidityBNB *float64 `json:"liquidity_bnb"`
	LiquidityUSD *float64 `json:"liquidity_usd"`
	MarketCap    *float64 `json:"market_cap"`
	HolderCount  *int     `json:"holder_count"`
	Top10Percent *float64 `json:"top10_percent"`
	Top1Percent  *float64 `json:"top1_percent"`
	BuyTax       *float64 `json:"buy_tax"`
	SellTax      *float64 `json:"sell_tax"`
	TaxMutable   *bool    `json:"tax_mutable"`
	IsHoneypot   *bool    `json:"is_honeypot"`
	OwnerType    string   `json:"owner_type"`
	SellBlocked  *bool    `json:"sell_blocked"`
	LPState      string   `json:"lp_state"`
	WashFlag     string   `json:"wash_flag"`
	SlippagePct  *float64 `json:"sell_slippage_pct"`
	RiskWallets  []string `json:"risk_wallets"`
}

// BscProvider reads BSC token state via RPC and the honeypot API
type BscProvider struct {
	rpc      *ethclient.Client
	client   *resty.Client
	excluded map[string]bool
}

// NewBscProvider dials the BSC RPC endpoint and prepares the honeypot client
func NewBscProvider(rpcURL, honeypotURL string, excluded []string) (*BscProvider, error) {
	rpc, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("bsc rpc dial: %w", err)
	}
	set := make(map[string]bool, len(excluded))
	for _, a := range excluded {
		set[a] = true
	}
	return &BscProvider{
		rpc:      rpc,
		client:   resty.New().SetBaseURL(honeypotURL).SetTimeout(10 * time.Second),
		excluded: set,
	}, nil
}

func (p *BscProvider) Name() string { return "bsc_data" }

// Fetch builds a snapshot for a BSC token
func (p *BscProvider) Fetch(ctx context.Context, token string, plannedNative *decimal.Decimal) (*types.ChainSnapshot, error) {
	if !common.IsHexAddress(token) {
		return nil, fmt.Errorf("invalid BSC address %q", token)
	}
	addr := common.HexToAddress(token)

	snap := &types.ChainSnapshot{
		Chain:           types.ChainBSC,
		Token:           token,
		SnapshotTime:    time.Now(),
		MintAuthority:   types.AuthorityUnknown,
		FreezeAuthority: types.AuthorityUnknown,
		LP:              types.LPUnknown,
		Wash:            types.WashUnknown,
	}

	// A token with no bytecode is not a deployed contract at all.
	code, err := p.rpc.CodeAt(ctx, addr, nil)
	if err != nil {
		log.Debug().Err(err).Str("token", token).Msg("BSC code probe failed")
	} else if len(code) == 0 {
		return nil, fmt.Errorf("no contract at %s", token)
	}

	req := p.client.R().SetContext(ctx).SetQueryParam("address", addr.Hex())
	if plannedNative != nil {
		req.SetQueryParam("sell_amount", plannedNative.Mul(decimal.NewFromFloat(0.20)).String())
	}

	var body honeypotResponse
	resp, err := req.SetResult(&body).Get("/v2/IsHoneypot")
	if err != nil {
		return nil, fmt.Errorf("honeypot probe: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("honeypot probe: status %d", resp.StatusCode())
	}

	snap.Symbol = body.Symbol
	snap.Price = decPtr(body.Price)
	snap.LiquidityNative = decPtr(body.LiquidityBNB)
	snap.LiquidityUSD = decPtr(body.LiquidityUSD)
	snap.MarketCap = decPtr(body.MarketCap)
	snap.HolderCount = body.HolderCount
	snap.Top10HolderPercent = body.Top10Percent
	snap.Top1HolderPercent = body.Top1Percent
	snap.TaxMutable = body.TaxMutable
	snap.Honeypot = body.IsHoneypot
	snap.OwnerType = body.OwnerType
	snap.SellConstraints = body.SellBlocked
	snap.LP = lpStateFrom(body.LPState)
	snap.Wash = washFrom(body.WashFlag)
	snap.RiskWallets = body.RiskWallets

	if body.BuyTax != nil && body.SellTax != nil {
		total := *body.BuyTax + *body.SellTax
		snap.BuySellTaxPct = &total
	}
	if plannedNative != nil {
		snap.SellSlippageAt20Pct = body.SlippagePct
	}

	return snap, nil
}

// Close releases the RPC connection
func (p *BscProvider) Close() {
	p.rpc.Close()
}
