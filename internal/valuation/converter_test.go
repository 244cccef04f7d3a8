package valuation

import (
	"testing"
	"time"

	"fintracker/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quote(source, rate string) models.ExchangeRate {
	return models.ExchangeRate{CurrencyPair: models.PairTWDUSDT, Source: source, Rate: nd(rate), Timestamp: time.Now()}
}

func audQuote(source, buy, sell string) models.ExchangeRate {
	return models.ExchangeRate{CurrencyPair: models.PairTWDAUD, Source: source, BuyRate: nd(buy), SellRate: nd(sell), Timestamp: time.Now()}
}

func TestParseCurrency(t *testing.T) {
	for _, s := range []string{"usd", "TWD", " aud ", "USDT"} {
		_, err := ParseCurrency(s)
		assert.NoError(t, err, s)
	}

	_, err := ParseCurrency("JPY")
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
}

func TestConvert_IdentityForEveryCurrency(t *testing.T) {
	conv := NewConverter(ResolveRates(
		[]models.ExchangeRate{quote(models.SourceBitopro, "31.7")},
		[]models.ExchangeRate{audQuote(models.SourceBankOfTaiwan, "20.5", "21.1")},
		DefaultFallbacks(),
	))
	amount := d("1234.56789")
	for _, c := range supported {
		got, err := conv.Convert(amount, c, c)
		require.NoError(t, err)
		assert.True(t, got.Equal(amount), "identity broken for %s", c)
	}
}

func TestConvert_FromUSD(t *testing.T) {
	conv := NewConverter(ResolveRates(
		[]models.ExchangeRate{quote(models.SourceBitopro, "31.5")},
		[]models.ExchangeRate{audQuote(models.SourceBankOfTaiwan, "20", "21")},
		DefaultFallbacks(),
	))

	twd, err := conv.FromUSD(d("100"), TWD)
	require.NoError(t, err)
	assert.True(t, twd.Equal(d("3150")))

	aud, err := conv.FromUSD(d("100"), AUD)
	require.NoError(t, err)
	assert.True(t, aud.Equal(d("3150").Div(d("20.5"))))

	usdt, err := conv.FromUSD(d("100"), USDT)
	require.NoError(t, err)
	assert.True(t, usdt.Equal(d("100")))

	_, err = conv.FromUSD(d("100"), Currency("JPY"))
	assert.True(t, models.IsValidation(err))
}

func TestResolveRates_Fallbacks(t *testing.T) {
	r := ResolveRates(nil, nil, DefaultFallbacks())

	assert.True(t, r.TWDPerUSD.Equal(d("32")))
	assert.True(t, r.TWDPerAUD.Equal(d("21")))
	assert.True(t, r.TWDPerUSDFallback)
	assert.True(t, r.TWDPerAUDFallback)
	assert.Equal(t, []string{models.PairTWDUSDT, models.PairTWDAUD}, r.FallbackPairs())

	usd, err := NewConverter(r).FromUSD(d("10"), TWD)
	require.NoError(t, err)
	assert.True(t, usd.Equal(d("320")))
}

func TestResolveRates_CombinesSourcesDeterministically(t *testing.T) {
	a := []models.ExchangeRate{quote(models.SourceMAX, "32.0"), quote(models.SourceBitopro, "31.0")}
	b := []models.ExchangeRate{quote(models.SourceBitopro, "31.0"), quote(models.SourceMAX, "32.0")}

	ra := ResolveRates(a, nil, DefaultFallbacks())
	rb := ResolveRates(b, nil, DefaultFallbacks())
	assert.True(t, ra.TWDPerUSD.Equal(d("31.5")))
	assert.True(t, ra.TWDPerUSD.Equal(rb.TWDPerUSD))
	assert.False(t, ra.TWDPerUSDFallback)
	assert.True(t, ra.TWDPerAUDFallback)
}

func TestResolveRates_SkipsNullQuotes(t *testing.T) {
	failed := models.ExchangeRate{CurrencyPair: models.PairTWDUSDT, Source: models.SourceMAX}
	r := ResolveRates([]models.ExchangeRate{failed, quote(models.SourceBitopro, "30.9")}, []models.ExchangeRate{
		{CurrencyPair: models.PairTWDAUD, Source: models.SourceBankOfTaiwan, BuyRate: nd("20")},
	}, DefaultFallbacks())

	assert.True(t, r.TWDPerUSD.Equal(d("30.9")))
	assert.True(t, r.TWDPerAUDFallback, "one-sided quote must not be used")
}

func TestPriceBook_PriceIn(t *testing.T) {
	book := NewPriceBook(map[string]models.CryptoPrice{
		"btc": {CoinSymbol: "BTC", USDPrice: nd("60000"), USDTPrice: nd("60060")},
		"ETH": {CoinSymbol: "ETH", USDPrice: nd("3000")},
		"SUI": {CoinSymbol: "SUI", USDPrice: nd("0")},
	}, NewConverter(ResolveRates(nil, nil, DefaultFallbacks())))

	assert.True(t, book.PriceIn("BTC", "USDT").Decimal.Equal(d("60060")))
	assert.True(t, book.PriceIn("BTC", "USD").Decimal.Equal(d("60000")))
	assert.True(t, book.PriceIn("BTC", "TWD").Decimal.Equal(d("1920000")), "TWD derived from USD when no direct quote")
	assert.True(t, book.PriceIn("BTC", "ETH").Decimal.Equal(d("20")))
	assert.False(t, book.PriceIn("SUI", "USDT").Valid, "zero quote means unknown")
	assert.False(t, book.PriceIn("ADA", "USDT").Valid)
	assert.True(t, book.ToUSD(d("2"), "ETH").Decimal.Equal(d("6000")))
	assert.True(t, book.ToUSD(d("3200"), "TWD").Decimal.Equal(d("100")))
	assert.False(t, book.ToUSD(d("1"), "XYZ").Valid)
	assert.True(t, book.UnitValueUSD("USDT").Decimal.Equal(decimal.NewFromInt(1)))
}
