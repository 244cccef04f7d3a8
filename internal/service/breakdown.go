package service

import (
	"context"

	"fintracker/internal/valuation"

	"github.com/sirupsen/logrus"
)

type BreakdownService struct {
	accounts AccountStore
	assets   CryptoAssetStore
	market   marketData
	log      *logrus.Logger
}

func NewBreakdownService(accounts AccountStore, assets CryptoAssetStore, prices PriceStore, rates RateStore, fb valuation.Fallbacks, log *logrus.Logger) *BreakdownService {
	return &BreakdownService{
		accounts: accounts,
		assets:   assets,
		market:   marketData{prices: prices, rates: rates, fallbacks: fb, log: log},
		log:      log,
	}
}

// ComputeBreakdown values the user's TWD and AUD accounts and crypto
// inventory in displayCurrency. The currency is checked before anything is
// loaded.
func (s *BreakdownService) ComputeBreakdown(ctx context.Context, userID, displayCurrency string) (*valuation.BreakdownReport, error) {
	display, err := valuation.ParseCurrency(displayCurrency)
	if err != nil {
		return nil, err
	}

	tw, err := s.accounts.FindAccounts(ctx, userID, string(valuation.TWD))
	if err != nil {
		return nil, err
	}
	au, err := s.accounts.FindAccounts(ctx, userID, string(valuation.AUD))
	if err != nil {
		return nil, err
	}
	assets, err := s.assets.FindCryptoAssets(ctx, userID)
	if err != nil {
		return nil, err
	}

	coins := make([]string, 0, len(assets))
	for _, a := range assets {
		coins = append(coins, a.CoinSymbol)
	}
	book, err := s.market.priceBook(ctx, coins)
	if err != nil {
		return nil, err
	}

	report, err := valuation.Aggregate(display, valuation.Holdings{
		TaiwanAccounts:    tw,
		AustraliaAccounts: au,
		CryptoAssets:      assets,
	}, book)
	if err != nil {
		return nil, err
	}
	for ex, b := range report.Breakdown.CryptoAssets.ByExchange {
		for _, a := range b.Assets {
			if a.PriceMissing {
				s.log.WithFields(logrus.Fields{"user": userID, "exchange": ex, "symbol": a.CoinSymbol}).
					Warn("no price snapshot; asset valued at zero")
			}
		}
	}
	return report, nil
}
