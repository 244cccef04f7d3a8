package valuation

import (
	"sort"

	"fintracker/internal/models"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// Fallbacks are used when no quote exists for a pair.
type Fallbacks struct {
	TWDPerUSD decimal.Decimal
	TWDPerAUD decimal.Decimal
}

func DefaultFallbacks() Fallbacks {
	return Fallbacks{
		TWDPerUSD: decimal.NewFromInt(32),
		TWDPerAUD: decimal.NewFromInt(21),
	}
}

// Rates is the resolved fiat snapshot a Converter works from. The Fallback
// flags are set when the corresponding rate is a configured constant rather
// than a quote.
type Rates struct {
	TWDPerUSD         decimal.Decimal `json:"twd_per_usd"`
	TWDPerUSDFallback bool            `json:"twd_per_usd_fallback"`
	TWDPerAUD         decimal.Decimal `json:"twd_per_aud"`
	TWDPerAUDFallback bool            `json:"twd_per_aud_fallback"`
}

// FallbackPairs lists the pairs that were not backed by a quote.
func (r Rates) FallbackPairs() []string {
	out := []string{}
	if r.TWDPerUSDFallback {
		out = append(out, models.PairTWDUSDT)
	}
	if r.TWDPerAUDFallback {
		out = append(out, models.PairTWDAUD)
	}
	return out
}

// ResolveRates picks the rates from the latest snapshot of every source.
// TWD/USDT is the mean of all sources quoting a positive last price; TWD/AUD
// is the mean of the buy/sell mid of every source quoting both sides.
// Sources are visited in name order so the result does not depend on the
// order rows came back in.
func ResolveRates(usdt, aud []models.ExchangeRate, fb Fallbacks) Rates {
	r := Rates{TWDPerUSD: fb.TWDPerUSD, TWDPerAUD: fb.TWDPerAUD, TWDPerUSDFallback: true, TWDPerAUDFallback: true}

	var usdtQuotes []decimal.Decimal
	for _, q := range bySource(usdt) {
		if q.Rate.Valid && q.Rate.Decimal.IsPositive() {
			usdtQuotes = append(usdtQuotes, q.Rate.Decimal)
		}
	}
	if len(usdtQuotes) > 0 {
		r.TWDPerUSD = mean(usdtQuotes)
		r.TWDPerUSDFallback = false
	}

	var mids []decimal.Decimal
	for _, q := range bySource(aud) {
		if q.BuyRate.Valid && q.SellRate.Valid && q.BuyRate.Decimal.IsPositive() && q.SellRate.Decimal.IsPositive() {
			mids = append(mids, q.BuyRate.Decimal.Add(q.SellRate.Decimal).Div(two))
		}
	}
	if len(mids) > 0 {
		r.TWDPerAUD = mean(mids)
		r.TWDPerAUDFallback = false
	}
	return r
}

func bySource(in []models.ExchangeRate) []models.ExchangeRate {
	out := make([]models.ExchangeRate, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

func mean(xs []decimal.Decimal) decimal.Decimal {
	if len(xs) == 1 {
		return xs[0]
	}
	return decimal.Sum(xs[0], xs[1:]...).Div(decimal.NewFromInt(int64(len(xs))))
}

// Converter converts amounts between the supported currencies. All paths
// go through TWD, which every fiat quote is denominated in.
type Converter struct {
	rates Rates
}

func NewConverter(r Rates) *Converter {
	return &Converter{rates: r}
}

func (c *Converter) Rates() Rates {
	return c.rates
}

// FromUSD converts a USD-denominated amount into the target currency.
func (c *Converter) FromUSD(amount decimal.Decimal, to Currency) (decimal.Decimal, error) {
	return c.Convert(amount, USD, to)
}

// ToUSD converts an amount in from into USD.
func (c *Converter) ToUSD(amount decimal.Decimal, from Currency) (decimal.Decimal, error) {
	return c.Convert(amount, from, USD)
}

func (c *Converter) Convert(amount decimal.Decimal, from, to Currency) (decimal.Decimal, error) {
	if _, ok := lookupCurrency(string(from)); !ok {
		return decimal.Zero, models.NewValidationError("currency", "unsupported currency "+string(from))
	}
	if _, ok := lookupCurrency(string(to)); !ok {
		return decimal.Zero, models.NewValidationError("currency", "unsupported currency "+string(to))
	}
	if from == to || (from.dollarLike() && to.dollarLike()) {
		return amount, nil
	}
	twd := amount.Mul(c.twdPer(from))
	if to == TWD {
		return twd, nil
	}
	return twd.Div(c.twdPer(to)), nil
}

func (c *Converter) twdPer(cur Currency) decimal.Decimal {
	switch cur {
	case TWD:
		return decimal.NewFromInt(1)
	case AUD:
		return c.rates.TWDPerAUD
	default:
		return c.rates.TWDPerUSD
	}
}
