package service

import (
	"context"
	"sort"
	"strings"

	"fintracker/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Balance is one coin balance as an exchange reports it. Spot, flexible
// and locked balances of the same coin arrive as separate entries.
type Balance struct {
	CoinSymbol  string           `json:"coin_symbol"`
	Quantity    *decimal.Decimal `json:"quantity"`
	AverageCost *decimal.Decimal `json:"average_cost"`
}

type InventoryService struct {
	store CryptoAssetStore
	log   *logrus.Logger
}

func NewInventoryService(store CryptoAssetStore, log *logrus.Logger) *InventoryService {
	return &InventoryService{store: store, log: log}
}

// ReplaceExchange makes balances the complete inventory of exchange for the
// user. Entries of the same coin are summed; coins whose total is not
// positive are dropped and so removed from the inventory.
func (s *InventoryService) ReplaceExchange(ctx context.Context, userID, exchange string, balances []Balance) ([]models.CryptoAsset, error) {
	exchange = strings.TrimSpace(exchange)
	verr := &models.ValidationError{}
	if exchange == "" {
		verr.Add(-1, "exchange", "is required")
	}

	bySymbol := map[string]*models.CryptoAsset{}
	for i, b := range balances {
		sym := strings.ToUpper(strings.TrimSpace(b.CoinSymbol))
		if sym == "" {
			verr.Add(i, "coin_symbol", "is required")
		}
		if b.Quantity == nil {
			verr.Add(i, "quantity", "is required")
			continue
		}
		a, ok := bySymbol[sym]
		if !ok {
			a = &models.CryptoAsset{UserID: userID, Exchange: exchange, CoinSymbol: sym}
			bySymbol[sym] = a
		}
		a.Quantity = a.Quantity.Add(*b.Quantity)
		if b.AverageCost != nil && a.AverageCost.IsZero() {
			a.AverageCost = *b.AverageCost
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	assets := make([]models.CryptoAsset, 0, len(bySymbol))
	for _, a := range bySymbol {
		if !a.Quantity.IsPositive() {
			continue
		}
		a.Quantity = a.Quantity.Round(8)
		assets = append(assets, *a)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].CoinSymbol < assets[j].CoinSymbol })

	out, err := s.store.ReplaceCryptoAssets(ctx, userID, exchange, assets)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user": userID, "exchange": exchange, "coins": len(out)}).Info("crypto inventory replaced")
	return out, nil
}
