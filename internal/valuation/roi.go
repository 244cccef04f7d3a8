package valuation

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type ROIKind int

const (
	ROIUndefined ROIKind = iota
	ROINumeric
	ROIInfinite
)

// InfinitySymbol is how an infinite ROI is rendered.
const InfinitySymbol = "Infinity"

var hundred = decimal.NewFromInt(100)

// ROI is a percentage return. A position with no cost basis and a profit has
// an infinite ROI, which is kept distinct from any numeric value.
type ROI struct {
	Kind  ROIKind
	Value decimal.Decimal
}

// ComputeROI applies the same policy to single positions and to symbol
// aggregates: pnl/investment*100 when investment is positive, Infinity when
// investment is zero and pnl positive, undefined otherwise.
func ComputeROI(pnl decimal.NullDecimal, investment decimal.Decimal) ROI {
	if !pnl.Valid {
		return ROI{}
	}
	if investment.IsPositive() {
		return ROI{Kind: ROINumeric, Value: pnl.Decimal.Div(investment).Mul(hundred)}
	}
	if investment.IsZero() && pnl.Decimal.IsPositive() {
		return ROI{Kind: ROIInfinite}
	}
	return ROI{}
}

func (r ROI) IsInfinite() bool { return r.Kind == ROIInfinite }

func (r ROI) IsDefined() bool { return r.Kind != ROIUndefined }

func (r ROI) String() string {
	switch r.Kind {
	case ROINumeric:
		return r.Value.StringFixed(2) + "%"
	case ROIInfinite:
		return InfinitySymbol
	}
	return "n/a"
}

func (r ROI) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case ROINumeric:
		return json.Marshal(r.Value.StringFixed(2))
	case ROIInfinite:
		return json.Marshal(InfinitySymbol)
	}
	return []byte("null"), nil
}

func (r *ROI) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = ROI{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == InfinitySymbol {
		*r = ROI{Kind: ROIInfinite}
		return nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	*r = ROI{Kind: ROINumeric, Value: v}
	return nil
}
