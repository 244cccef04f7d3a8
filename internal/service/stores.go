package service

import (
	"context"
	"time"

	"fintracker/internal/models"

	"github.com/shopspring/decimal"
)

// The stores below are satisfied by *database.Repo. Services depend on the
// narrow interfaces so they can be exercised with in-memory fakes.

type PriceStore interface {
	LatestCryptoPrices(ctx context.Context, symbols []string) (map[string]models.CryptoPrice, error)
}

type RateStore interface {
	LatestExchangeRates(ctx context.Context, pair string) ([]models.ExchangeRate, error)
}

type PositionStore interface {
	FindOpenPositions(ctx context.Context, userID string) ([]models.Position, error)
	GetPosition(ctx context.Context, userID, id string) (models.Position, error)
	CreatePosition(ctx context.Context, p models.Position) (models.Position, error)
	CreatePositions(ctx context.Context, ps []models.Position) ([]models.Position, error)
	ClosePosition(ctx context.Context, userID, id string, exitDate time.Time, finalQty decimal.NullDecimal) (models.Position, error)
	ClearPositions(ctx context.Context, userID string) (int64, error)
}

type AccountStore interface {
	CreateAccount(ctx context.Context, a models.Account) (models.Account, error)
	FindAccounts(ctx context.Context, userID, currency string) ([]models.Account, error)
	GetAccount(ctx context.Context, userID, accountID string) (models.Account, error)
	PostTransaction(ctx context.Context, userID string, t models.FiatTransaction) (models.FiatTransaction, models.Account, error)
	TransactionSum(ctx context.Context, accountID string) (decimal.Decimal, int, error)
}

type CryptoAssetStore interface {
	FindCryptoAssets(ctx context.Context, userID string) ([]models.CryptoAsset, error)
	ReplaceCryptoAssets(ctx context.Context, userID, exchange string, assets []models.CryptoAsset) ([]models.CryptoAsset, error)
}

// SnapshotStore is what the refresher writes to.
type SnapshotStore interface {
	TrackedSymbols(ctx context.Context) ([]string, error)
	InsertCryptoPrices(ctx context.Context, prices []models.CryptoPrice) (int, error)
	InsertExchangeRates(ctx context.Context, rates []models.ExchangeRate) (int, error)
	UpdateLastKnownPrices(ctx context.Context, prices map[string]decimal.Decimal) error
}
