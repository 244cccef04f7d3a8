package service

import (
	"context"
	"sort"
	"strings"

	"fintracker/internal/models"
	"fintracker/internal/valuation"

	"github.com/sirupsen/logrus"
)

// marketData loads the per-request snapshot every valuation works from.
type marketData struct {
	prices    PriceStore
	rates     RateStore
	fallbacks valuation.Fallbacks
	log       *logrus.Logger
}

func (m marketData) converter(ctx context.Context) (*valuation.Converter, error) {
	usdt, err := m.rates.LatestExchangeRates(ctx, models.PairTWDUSDT)
	if err != nil {
		return nil, err
	}
	aud, err := m.rates.LatestExchangeRates(ctx, models.PairTWDAUD)
	if err != nil {
		return nil, err
	}
	r := valuation.ResolveRates(usdt, aud, m.fallbacks)
	if pairs := r.FallbackPairs(); len(pairs) > 0 {
		m.log.Warnf("no quote for %s; using fallback rates (TWD/USD %s, TWD/AUD %s)",
			strings.Join(pairs, ", "), r.TWDPerUSD, r.TWDPerAUD)
	}
	return valuation.NewConverter(r), nil
}

// priceBook loads the latest price of every crypto symbol in coins with a
// single store call. Fiat currency symbols are not looked up.
func (m marketData) priceBook(ctx context.Context, coins []string) (*valuation.PriceBook, error) {
	conv, err := m.converter(ctx)
	if err != nil {
		return nil, err
	}
	symbols := cryptoSymbols(coins)
	prices, err := m.prices.LatestCryptoPrices(ctx, symbols)
	if err != nil {
		return nil, err
	}
	return valuation.NewPriceBook(prices, conv), nil
}

// cryptoSymbols upper-cases, de-duplicates and sorts coins, dropping the
// supported fiat currencies and USDT.
func cryptoSymbols(coins []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, c := range coins {
		s := strings.ToUpper(strings.TrimSpace(c))
		if s == "" || seen[s] || valuation.IsCurrency(s) {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
