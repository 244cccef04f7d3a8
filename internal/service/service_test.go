package service

import (
	"context"
	"testing"
	"time"

	"fintracker/internal/models"
	"fintracker/internal/valuation"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const user = "alice"

func openLot(id, target, coin, amount, price string, day int) models.Position {
	return models.Position{
		ID:                   id,
		UserID:               user,
		TargetCoinSymbol:     target,
		Venue:                "Binance",
		Status:               models.StatusOpen,
		InvestmentType:       models.InvestmentSpot,
		TransactionDate:      time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC),
		InvestmentCoinSymbol: coin,
		InvestmentAmount:     d(amount),
		EntryPrice:           d(price),
	}
}

func pnlService(m *memStore) *PnLService {
	return NewPnLService(m, m, m, valuation.DefaultFallbacks(), quietLogger())
}

func TestComputePnL_WorkedExample(t *testing.T) {
	m := newMemStore()
	m.positions = []models.Position{openLot("p1", "BTC", "USDT", "1000", "50000", 1)}
	m.prices["BTC"] = models.CryptoPrice{CoinSymbol: "BTC", USDPrice: nd("60000"), USDTPrice: nd("60000")}

	report, err := pnlService(m).ComputePnL(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, report.Details, 1)

	v := report.Details[0]
	assert.True(t, v.EffectiveQuantity.Equal(d("0.02")))
	assert.True(t, v.CurrentMarketValue.Decimal.Equal(d("1200")))
	assert.True(t, v.PnL.Decimal.Equal(d("200")))
	assert.Equal(t, "20.00%", v.ROI.String())

	s := report.Summary["BTC"]
	assert.Equal(t, 1, s.PositionCount)
	assert.True(t, s.TotalPnL.Equal(d("200")))
	assert.True(t, s.WeightedAvgEntryPrice.Decimal.Equal(d("50000")))
}

func TestComputePnL_NoOpenPositions(t *testing.T) {
	m := newMemStore()
	report, err := pnlService(m).ComputePnL(context.Background(), user)
	require.NoError(t, err)
	assert.NotNil(t, report.Details)
	assert.Empty(t, report.Details)
	assert.NotNil(t, report.Summary)
	assert.Empty(t, report.Summary)
	assert.Empty(t, m.priceCalls, "no price lookup without positions")
}

func TestComputePnL_BatchesPriceLookup(t *testing.T) {
	m := newMemStore()
	m.positions = []models.Position{
		openLot("p1", "ETH", "USDT", "600", "3000", 3),
		openLot("p2", "btc", "USDT", "1000", "50000", 2),
		openLot("p3", "ETH", "BTC", "0.01", "0.05", 1),
	}
	m.prices["BTC"] = models.CryptoPrice{CoinSymbol: "BTC", USDPrice: nd("60000")}
	m.prices["ETH"] = models.CryptoPrice{CoinSymbol: "ETH", USDPrice: nd("3000")}

	report, err := pnlService(m).ComputePnL(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, m.priceCalls, 1)
	assert.Equal(t, []string{"BTC", "ETH"}, m.priceCalls[0])

	assert.Equal(t, "p1", report.Details[0].ID, "details keep load order")
	// ETH bought with BTC is priced in BTC: 3000/60000.
	assert.True(t, report.Details[2].CurrentPrice.Decimal.Equal(d("0.05")))
	assert.True(t, report.Details[2].PnL.Decimal.IsZero())
	assert.Equal(t, 2, report.Summary["ETH"].PositionCount)
}

func TestComputePnL_MissingPriceStaysNull(t *testing.T) {
	m := newMemStore()
	m.positions = []models.Position{
		openLot("p1", "PEPE", "USDT", "100", "0.00001", 1),
		openLot("p2", "BTC", "USDT", "1000", "50000", 2),
	}
	m.prices["BTC"] = models.CryptoPrice{CoinSymbol: "BTC", USDPrice: nd("55000")}

	report, err := pnlService(m).ComputePnL(context.Background(), user)
	require.NoError(t, err)

	var pepe valuation.PositionValuation
	for _, v := range report.Details {
		if v.ID == "p1" {
			pepe = v
		}
	}
	assert.False(t, pepe.CurrentMarketValue.Valid)
	assert.False(t, pepe.PnL.Valid)
	assert.False(t, pepe.ROI.IsDefined())

	s := report.Summary["PEPE"]
	assert.Equal(t, 0, s.PricedCount)
	assert.True(t, s.TotalCurrentValue.IsZero())
	assert.True(t, s.TotalPnL.Equal(d("-100")))
}

func TestComputePnL_StoreFailure(t *testing.T) {
	m := newMemStore()
	m.failWith = errors.Wrap(models.ErrPersistence, "down")
	_, err := pnlService(m).ComputePnL(context.Background(), user)
	assert.True(t, errors.Is(err, models.ErrPersistence))
}

func breakdownService(m *memStore) *BreakdownService {
	return NewBreakdownService(m, m, m, m, valuation.DefaultFallbacks(), quietLogger())
}

func TestComputeBreakdown_UnsupportedCurrency(t *testing.T) {
	m := newMemStore()
	_, err := breakdownService(m).ComputeBreakdown(context.Background(), user, "JPY")
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
	assert.Equal(t, 0, m.calls, "nothing loaded for a rejected currency")
}

func TestComputeBreakdown_FallbackRates(t *testing.T) {
	m := newMemStore()
	m.accounts = []models.Account{
		{ID: "a1", UserID: user, Currency: "TWD", Balance: d("3200")},
		{ID: "a2", UserID: user, Currency: "AUD", Balance: d("100")},
	}
	m.assets = []models.CryptoAsset{
		{UserID: user, Exchange: "Binance", CoinSymbol: "BTC", Quantity: d("0.01")},
		{UserID: user, Exchange: "OKX", CoinSymbol: "NOPE", Quantity: d("5")},
	}
	m.prices["BTC"] = models.CryptoPrice{CoinSymbol: "BTC", USDPrice: nd("50000")}

	report, err := breakdownService(m).ComputeBreakdown(context.Background(), user, "usd")
	require.NoError(t, err)

	assert.Equal(t, valuation.USD, report.DisplayCurrency)
	assert.True(t, report.Breakdown.TaiwanAssets.TotalValue.Equal(d("100")))
	// 100 AUD * 21 TWD / 32 TWD per USD
	assert.True(t, report.Breakdown.AustraliaAssets.TotalValue.Equal(d("65.625")))
	assert.True(t, report.Breakdown.CryptoAssets.TotalValue.Equal(d("500")))
	assert.True(t, report.Breakdown.CryptoAssets.ByExchange["OKX"].Assets[0].PriceMissing)
	assert.True(t, report.TotalValue.Equal(d("665.625")))
	assert.ElementsMatch(t, []string{models.PairTWDUSDT, models.PairTWDAUD}, report.RateFallbacks)
}

func TestComputeBreakdown_QuotedRates(t *testing.T) {
	m := newMemStore()
	m.rates[models.PairTWDUSDT] = []models.ExchangeRate{
		{CurrencyPair: models.PairTWDUSDT, Source: models.SourceBitopro, Rate: nd("30")},
		{CurrencyPair: models.PairTWDUSDT, Source: models.SourceMAX, Rate: nd("31")},
	}
	m.accounts = []models.Account{{ID: "a1", UserID: user, Currency: "TWD", Balance: d("1000")}}

	report, err := breakdownService(m).ComputeBreakdown(context.Background(), user, "TWD")
	require.NoError(t, err)
	assert.True(t, report.Rates.TWDPerUSD.Equal(d("30.5")))
	assert.Equal(t, []string{models.PairTWDAUD}, report.RateFallbacks)
	assert.True(t, report.TotalValue.Equal(d("1000")), "same-currency leaf is unchanged")
}

func positionService(m *memStore) *PositionService {
	return NewPositionService(m, m, m, valuation.DefaultFallbacks(), quietLogger())
}

func validInput() PositionInput {
	return PositionInput{
		TargetCoinSymbol:     "btc",
		Venue:                "Binance",
		TransactionDate:      "2025-02-01",
		InvestmentCoinSymbol: "usdt",
		InvestmentAmount:     dp("1000"),
		EntryPrice:           dp("50000"),
	}
}

func TestRecordPositions_RejectsWholeBatch(t *testing.T) {
	m := newMemStore()
	bad := validInput()
	bad.Venue = ""
	bad.EntryPrice = nil
	bad.TransactionDate = "yesterday"

	_, err := positionService(m).RecordPositions(context.Background(), user, []PositionInput{validInput(), bad})
	require.Error(t, err)

	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 3)
	for _, f := range verr.Fields {
		assert.Equal(t, 1, f.Index)
	}
	assert.Empty(t, m.positions, "nothing persisted")
}

func TestRecordPositions_Batch(t *testing.T) {
	m := newMemStore()
	m.prices["ETH"] = models.CryptoPrice{CoinSymbol: "ETH", USDPrice: nd("3000")}
	second := validInput()
	second.InvestmentCoinSymbol = "ETH"
	second.InvestmentAmount = dp("0.5")
	second.Status = "持有中"

	out, err := positionService(m).RecordPositions(context.Background(), user, []PositionInput{validInput(), second})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.NotEqual(t, out[0].ID, out[1].ID)
	assert.Equal(t, "BTC", out[0].TargetCoinSymbol)
	assert.Equal(t, models.StatusOpen, out[1].Status)
	assert.True(t, out[0].ValueUSDT.Decimal.Equal(d("1000")))
	assert.True(t, out[1].ValueUSDT.Decimal.Equal(d("1500")))
	assert.Len(t, m.positions, 2)
}

func TestClosePosition(t *testing.T) {
	m := newMemStore()
	svc := positionService(m)
	out, err := svc.RecordPositions(context.Background(), user, []PositionInput{validInput()})
	require.NoError(t, err)
	id := out[0].ID

	closed, err := svc.ClosePosition(context.Background(), user, id, CloseInput{ExitDate: "2025-03-01", FinalQuantity: dp("0.019")})
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, closed.Status)
	assert.True(t, closed.CurrentQuantity.Decimal.Equal(d("0.019")))

	_, err = svc.ClosePosition(context.Background(), user, id, CloseInput{})
	assert.True(t, errors.Is(err, models.ErrInvalidTransition))

	_, err = svc.ClosePosition(context.Background(), user, "not-a-uuid", CloseInput{})
	assert.True(t, models.IsValidation(err))

	n, err := svc.ClearPositions(context.Background(), user)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestAccounts_PostAndCheck(t *testing.T) {
	m := newMemStore()
	svc := NewAccountService(m, quietLogger())
	ctx := context.Background()

	_, err := svc.CreateAccount(ctx, user, AccountInput{Name: "x", BankName: "y", Currency: "USDT"})
	assert.True(t, models.IsValidation(err), "USDT is not a bank currency")

	acct, err := svc.CreateAccount(ctx, user, AccountInput{Name: "Main", BankName: "Cathay", Currency: "twd", InitialBalance: dp("500")})
	require.NoError(t, err)
	assert.Equal(t, "TWD", acct.Currency)

	_, updated, err := svc.PostTransaction(ctx, user, acct.ID, TransactionInput{Description: "salary", Amount: dp("1200"), TransactionType: "income"})
	require.NoError(t, err)
	assert.True(t, updated.Balance.Equal(d("1700")))

	_, _, err = svc.PostTransaction(ctx, user, acct.ID, TransactionInput{Description: "x", Amount: dp("1"), TransactionType: "gift"})
	assert.True(t, models.IsValidation(err))

	c, err := svc.CheckConsistency(ctx, user, acct.ID)
	require.NoError(t, err)
	assert.True(t, c.Consistent)
	assert.Equal(t, 1, c.TransactionCount)

	m.accounts[0].Balance = d("1699")
	c, err = svc.CheckConsistency(ctx, user, acct.ID)
	require.NoError(t, err)
	assert.False(t, c.Consistent)
	assert.True(t, c.Difference.Equal(d("-1")))

	list, err := svc.ListAccounts(ctx, user, "AUD")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestInventory_ConsolidatesBalances(t *testing.T) {
	m := newMemStore()
	svc := NewInventoryService(m, quietLogger())
	out, err := svc.ReplaceExchange(context.Background(), user, "Binance", []Balance{
		{CoinSymbol: "btc", Quantity: dp("0.1")},
		{CoinSymbol: "BTC", Quantity: dp("0.05")},
		{CoinSymbol: "ETH", Quantity: dp("0")},
		{CoinSymbol: "SOL", Quantity: dp("3")},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "BTC", out[0].CoinSymbol)
	assert.True(t, out[0].Quantity.Equal(d("0.15")))
	assert.Equal(t, "SOL", out[1].CoinSymbol)

	_, err = svc.ReplaceExchange(context.Background(), user, "Binance", []Balance{{CoinSymbol: "BTC"}})
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 0, verr.Fields[0].Index)
}

func TestRefresher_RecordsFailedSourcesAsNull(t *testing.T) {
	m := newMemStore()
	m.tracked = []string{"SOL", "USDT"}
	prices := &fakePrices{prices: map[string]models.CryptoPrice{
		"BTC": {CoinSymbol: "BTC", USDPrice: nd("60000")},
		"SOL": {CoinSymbol: "SOL", USDPrice: nd("150")},
	}}
	rates := []RateSource{
		fakeRate{source: models.SourceBitopro, pair: models.PairTWDUSDT, rate: nd("31.5")},
		fakeRate{source: models.SourceMAX, pair: models.PairTWDUSDT, err: errors.Wrap(models.ErrUpstreamUnavailable, "timeout")},
	}
	r := NewRefresher(m, prices, rates, []string{"BTC"}, quietLogger())

	res, err := r.RefreshOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "SOL"}, prices.got)
	assert.Equal(t, 2, res.RatesStored)
	assert.Equal(t, []string{models.SourceMAX}, res.FailedRates)
	assert.Equal(t, 2, res.PricesStored)

	require.Len(t, m.storedRates, 2)
	assert.True(t, m.storedRates[0].Rate.Valid)
	assert.False(t, m.storedRates[1].Rate.Valid)
	assert.Equal(t, models.SourceMAX, m.storedRates[1].Source)
	assert.True(t, m.lastKnown["SOL"].Equal(decimal.NewFromInt(150)))
}

func TestRefresher_PriceFeedDown(t *testing.T) {
	m := newMemStore()
	prices := &fakePrices{err: errors.Wrap(models.ErrUpstreamUnavailable, "429")}
	r := NewRefresher(m, prices, nil, []string{"BTC"}, quietLogger())

	res, err := r.RefreshOnce(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.PriceError)
	assert.Empty(t, m.storedPx)
}
