package service

import (
	"context"

	"fintracker/internal/valuation"

	"github.com/sirupsen/logrus"
)

type PnLService struct {
	positions PositionStore
	market    marketData
	log       *logrus.Logger
}

func NewPnLService(positions PositionStore, prices PriceStore, rates RateStore, fb valuation.Fallbacks, log *logrus.Logger) *PnLService {
	return &PnLService{
		positions: positions,
		market:    marketData{prices: prices, rates: rates, fallbacks: fb, log: log},
		log:       log,
	}
}

// ComputePnL values every open position of the user at the latest price
// snapshot and rolls them up per target coin. A coin without a snapshot
// leaves its positions' market value and pnl null.
func (s *PnLService) ComputePnL(ctx context.Context, userID string) (*valuation.PnLReport, error) {
	open, err := s.positions.FindOpenPositions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return valuation.NewPnLReport(nil, nil), nil
	}

	coins := make([]string, 0, 2*len(open))
	for _, p := range open {
		coins = append(coins, p.TargetCoinSymbol, p.InvestmentCoinSymbol)
	}
	book, err := s.market.priceBook(ctx, coins)
	if err != nil {
		return nil, err
	}

	details := make([]valuation.PositionValuation, 0, len(open))
	missing := map[string]bool{}
	for _, p := range open {
		price := book.PriceIn(p.TargetCoinSymbol, p.InvestmentCoinSymbol)
		if !price.Valid && !missing[p.TargetCoinSymbol] {
			missing[p.TargetCoinSymbol] = true
			s.log.WithFields(logrus.Fields{"user": userID, "symbol": p.TargetCoinSymbol, "quote": p.InvestmentCoinSymbol}).
				Warn("no price snapshot; pnl left null")
		}
		details = append(details, valuation.ValuatePosition(p, price))
	}
	return valuation.NewPnLReport(details, valuation.Summarize(details, book)), nil
}
