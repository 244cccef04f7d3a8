package valuation

import (
	"github.com/shopspring/decimal"
)

// SymbolSummary rolls all open positions of one target coin into a single
// weighted-average view. Amounts are normalized to USD so lots paid in
// different investment coins can be added up.
type SymbolSummary struct {
	Symbol                string              `json:"symbol"`
	Currency              Currency            `json:"currency"`
	PositionCount         int                 `json:"position_count"`
	PricedCount           int                 `json:"priced_count"`
	ExcludedCount         int                 `json:"excluded_count"`
	TotalInvestment       decimal.Decimal     `json:"total_investment"`
	TotalCurrentValue     decimal.Decimal     `json:"total_current_value"`
	TotalQuantity         decimal.Decimal     `json:"total_quantity"`
	TotalPnL              decimal.Decimal     `json:"total_pnl"`
	WeightedAvgEntryPrice decimal.NullDecimal `json:"weighted_avg_entry_price"`
	ROI                   ROI                 `json:"roi"`
}

// PnLReport is the result of a PnL computation for one user.
type PnLReport struct {
	Details []PositionValuation      `json:"details"`
	Summary map[string]SymbolSummary `json:"summary"`
}

func NewPnLReport(details []PositionValuation, summary map[string]SymbolSummary) *PnLReport {
	if details == nil {
		details = []PositionValuation{}
	}
	if summary == nil {
		summary = map[string]SymbolSummary{}
	}
	return &PnLReport{Details: details, Summary: summary}
}

// Summarize groups details by target coin. A missing market value counts as
// zero in TotalCurrentValue. TotalPnL is derived from the totals, not summed
// from per-position pnl. Positions whose cost cannot be valued in USD are
// counted in ExcludedCount and left out of every total.
//
// A nil book sums the raw investment-coin amounts.
func Summarize(details []PositionValuation, book *PriceBook) map[string]SymbolSummary {
	out := map[string]SymbolSummary{}
	for _, d := range details {
		sym := normSymbol(d.TargetCoinSymbol)
		s, ok := out[sym]
		if !ok {
			s = SymbolSummary{Symbol: sym, Currency: USD}
		}
		s.PositionCount++

		inv, mv, ok := normalized(d, book)
		if !ok {
			s.ExcludedCount++
			out[sym] = s
			continue
		}
		s.TotalInvestment = s.TotalInvestment.Add(inv)
		if mv.Valid {
			s.PricedCount++
			s.TotalCurrentValue = s.TotalCurrentValue.Add(mv.Decimal)
		}
		s.TotalQuantity = s.TotalQuantity.Add(d.EffectiveQuantity)
		out[sym] = s
	}

	for sym, s := range out {
		s.TotalPnL = s.TotalCurrentValue.Sub(s.TotalInvestment)
		if s.TotalQuantity.IsPositive() {
			s.WeightedAvgEntryPrice = valid(s.TotalInvestment.Div(s.TotalQuantity))
		}
		s.ROI = ComputeROI(valid(s.TotalPnL), s.TotalInvestment)
		out[sym] = s
	}
	return out
}

func normalized(d PositionValuation, book *PriceBook) (decimal.Decimal, decimal.NullDecimal, bool) {
	if book == nil {
		return d.InvestmentAmount, d.CurrentMarketValue, true
	}
	inv := book.ToUSD(d.InvestmentAmount, d.InvestmentCoinSymbol)
	if !inv.Valid {
		return decimal.Zero, decimal.NullDecimal{}, false
	}
	var mv decimal.NullDecimal
	if d.CurrentMarketValue.Valid {
		mv = book.ToUSD(d.CurrentMarketValue.Decimal, d.InvestmentCoinSymbol)
	}
	return inv.Decimal, mv, true
}
