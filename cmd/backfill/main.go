package main

import (
	"context"
	"fmt"
	"time"

	"fintracker/internal/config"
	"fintracker/internal/database"
	"fintracker/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// backfill seeds a demo user with accounts, inventory, positions and a
// price/rate snapshot from yesterday so /pnl and /breakdown have something
// to show before the first live refresh.
func main() {
	logger := logrus.New()
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		logger.Fatalf("failed to connect to db: %v", err)
	}
	defer db.Close()

	r := database.New(db, logger)
	ctx := context.Background()
	userID := "demo-user"
	ts := time.Now().AddDate(0, 0, -1).UTC().Truncate(24 * time.Hour)

	fmt.Printf("Backfilling data for %s at %s...\n", userID, ts.Format(time.RFC3339))

	if err := r.EnsureUserExists(ctx, userID, "Demo"); err != nil {
		logger.Fatalf("ensure user: %v", err)
	}

	// 1. Snapshots
	prices := map[string][3]string{
		"BTC": {"87267.53", "2790000", "87300.10"},
		"ETH": {"2933.91", "93800", "2935.02"},
		"SOL": {"124.37", "3975", "124.40"},
	}
	rows := make([]models.CryptoPrice, 0, len(prices))
	for sym, p := range prices {
		rows = append(rows, models.CryptoPrice{
			CoinSymbol: sym,
			USDPrice:   nd(p[0]),
			TWDPrice:   nd(p[1]),
			USDTPrice:  nd(p[2]),
			Timestamp:  ts,
		})
	}
	if n, err := r.InsertCryptoPrices(ctx, rows); err != nil {
		logger.Warnf("could not insert prices: %v", err)
	} else {
		fmt.Printf("Inserted %d price snapshots\n", n)
	}

	_, err = r.InsertExchangeRates(ctx, []models.ExchangeRate{
		{CurrencyPair: models.PairTWDUSDT, Source: models.SourceBitopro, Rate: nd("31.62"), Timestamp: ts},
		{CurrencyPair: models.PairTWDUSDT, Source: models.SourceMAX, Rate: nd("31.55"), Timestamp: ts},
		{CurrencyPair: models.PairTWDAUD, Source: models.SourceBankOfTaiwan, BuyRate: nd("20.46"), SellRate: nd("21.24"), Timestamp: ts},
	})
	if err != nil {
		logger.Warnf("could not insert rates: %v", err)
	}

	// 2. Fiat accounts
	existing, err := r.FindAccounts(ctx, userID, "")
	if err != nil {
		logger.Fatalf("find accounts: %v", err)
	}
	if len(existing) == 0 {
		for _, a := range []models.Account{
			{Name: "Salary", BankName: "CTBC", Currency: "TWD", AccountType: "savings", InitialBalance: decimal.NewFromInt(250000)},
			{Name: "Everyday", BankName: "CommBank", Currency: "AUD", AccountType: "checking", InitialBalance: decimal.NewFromInt(4200)},
		} {
			a.ID = uuid.NewString()
			a.UserID = userID
			if _, err := r.CreateAccount(ctx, a); err != nil {
				logger.Warnf("could not create account %s: %v", a.Name, err)
			}
		}
	}

	// 3. Exchange inventory
	_, err = r.ReplaceCryptoAssets(ctx, userID, "Binance", []models.CryptoAsset{
		{CoinSymbol: "BTC", Quantity: decimal.RequireFromString("0.05")},
		{CoinSymbol: "SOL", Quantity: decimal.RequireFromString("12.5")},
	})
	if err != nil {
		logger.Warnf("could not replace inventory: %v", err)
	}

	// 4. One open position
	_, err = r.CreatePosition(ctx, models.Position{
		ID:                   uuid.NewString(),
		UserID:               userID,
		TargetCoinSymbol:     "ETH",
		Venue:                "Binance",
		Status:               models.StatusOpen,
		InvestmentType:       models.InvestmentSpot,
		TransactionDate:      ts.AddDate(0, -2, 0),
		InvestmentCoinSymbol: "USDT",
		InvestmentAmount:     decimal.NewFromInt(1500),
		EntryPrice:           decimal.NewFromInt(2500),
		ValueUSDT:            nd("1500"),
	})
	if err != nil {
		logger.Warnf("could not create position: %v", err)
	}

	fmt.Println("Successfully backfilled demo data!")
	fmt.Printf("Now open: http://localhost:%s/pnl/%s\n", cfg.Port, userID)
}

func nd(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}
