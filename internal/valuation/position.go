package valuation

import (
	"fintracker/internal/models"

	"github.com/shopspring/decimal"
)

// PositionValuation is one open position priced at the latest snapshot.
// Money fields are in the position's investment coin; a null price leaves
// the market value, pnl and roi null.
type PositionValuation struct {
	models.Position
	EffectiveQuantity  decimal.Decimal     `json:"effective_quantity"`
	CurrentPrice       decimal.NullDecimal `json:"current_price"`
	CurrentMarketValue decimal.NullDecimal `json:"current_market_value"`
	PnL                decimal.NullDecimal `json:"pnl"`
	ROI                ROI                 `json:"roi"`
}

// EffectiveQuantity is the explicit CurrentQuantity when set, else the
// quantity bought at entry.
func EffectiveQuantity(p models.Position) decimal.Decimal {
	if p.CurrentQuantity.Valid {
		return p.CurrentQuantity.Decimal
	}
	if p.EntryPrice.IsZero() {
		return decimal.Zero
	}
	return p.InvestmentAmount.Div(p.EntryPrice)
}

// ValuatePosition prices p at price, which must be denominated in the
// position's investment coin. The reward amount is reported on the position
// but not added to pnl.
func ValuatePosition(p models.Position, price decimal.NullDecimal) PositionValuation {
	v := PositionValuation{
		Position:          p,
		EffectiveQuantity: EffectiveQuantity(p),
		CurrentPrice:      price,
	}
	if !price.Valid {
		return v
	}
	mv := v.EffectiveQuantity.Mul(price.Decimal)
	v.CurrentMarketValue = valid(mv)
	v.PnL = valid(mv.Sub(p.InvestmentAmount).Sub(p.Fee))
	v.ROI = ComputeROI(v.PnL, p.InvestmentAmount)
	return v
}
