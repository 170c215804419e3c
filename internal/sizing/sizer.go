package sizing

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/alphaflow/internal/config"
	"github.com/web3guy0/alphaflow/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// POSITION SIZER - Rating tier × capped fraction of chain capital
// ═══════════════════════════════════════════════════════════════════════════════

// Tier → size multiplier
var tierMultiplier = map[types.RatingTier]decimal.Decimal{
	types.RatingMax:    decimal.NewFromInt(1),
	types.RatingNormal: decimal.NewFromFloat(0.75),
	types.RatingSmall:  decimal.NewFromFloat(0.5),
}

// Sizer converts a rating tier into a native-asset position size. Chain
// capital pools are independent.
type Sizer struct {
	cfg *config.Config
}

// NewSizer creates the sizer
func NewSizer(cfg *config.Config) *Sizer {
	return &Sizer{cfg: cfg}
}

// Size returns the native amount and its rough USD value for a buyable tier
func (s *Sizer) Size(chain types.Chain, tier types.RatingTier) (native, usd decimal.Decimal, err error) {
	mult, ok := tierMultiplier[tier]
	if !ok {
		return decimal.Zero, decimal.Zero, fmt.Errorf("tier %s does not buy", tier)
	}

	capital := s.cfg.Capital(chain)
	base := capital.Mul(s.cfg.MaxPositionPercent)
	native = base.Mul(mult)

	usd = native.Mul(s.cfg.NativePriceUSD(chain))

	log.Debug().
		Str("chain", string(chain)).
		Str("tier", string(tier)).
		Str("native", native.StringFixed(4)).
		Str("usd", "$"+usd.StringFixed(2)).
		Msg("Position sized")

	return native, usd, nil
}
