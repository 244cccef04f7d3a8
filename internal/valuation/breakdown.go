package valuation

import (
	"sort"

	"fintracker/internal/models"

	"github.com/shopspring/decimal"
)

// leafPlaces is the precision every converted leaf is rounded to. Subtotals
// are sums of rounded leaves, so totals add up exactly.
const leafPlaces = 8

type AccountValue struct {
	ID       string          `json:"id"`
	Name     string          `json:"account_name"`
	BankName string          `json:"bank_name"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
	Value    decimal.Decimal `json:"value"`
}

type FiatBreakdown struct {
	TotalValue decimal.Decimal `json:"total_value"`
	Accounts   []AccountValue  `json:"accounts"`
}

type AssetValue struct {
	CoinSymbol   string          `json:"coin_symbol"`
	Quantity     decimal.Decimal `json:"quantity"`
	PriceUSD     decimal.Decimal `json:"price_usd"`
	PriceMissing bool            `json:"price_missing"`
	Value        decimal.Decimal `json:"value"`
}

type ExchangeBreakdown struct {
	TotalValue decimal.Decimal `json:"total_value"`
	Assets     []AssetValue    `json:"assets"`
}

type CryptoBreakdown struct {
	TotalValue decimal.Decimal               `json:"total_value"`
	ByExchange map[string]*ExchangeBreakdown `json:"by_exchange"`
}

type Breakdown struct {
	TaiwanAssets    FiatBreakdown   `json:"taiwan_assets"`
	AustraliaAssets FiatBreakdown   `json:"australia_assets"`
	CryptoAssets    CryptoBreakdown `json:"crypto_assets"`
}

type BreakdownReport struct {
	DisplayCurrency Currency        `json:"display_currency"`
	Breakdown       Breakdown       `json:"breakdown"`
	TotalValue      decimal.Decimal `json:"total_value"`
	Rates           Rates           `json:"rates"`
	RateFallbacks   []string        `json:"rate_fallbacks"`
}

// Holdings is everything the aggregator values for one user.
type Holdings struct {
	TaiwanAccounts    []models.Account
	AustraliaAccounts []models.Account
	CryptoAssets      []models.CryptoAsset
}

// Aggregate builds the breakdown tree in the display currency. Each account
// and each crypto asset is converted on its own. A crypto asset without a
// USD quote is valued at zero and flagged, since the totals must stay
// numeric.
func Aggregate(display Currency, h Holdings, book *PriceBook) (*BreakdownReport, error) {
	if _, ok := lookupCurrency(string(display)); !ok {
		return nil, models.NewValidationError("currency", "unsupported currency "+string(display))
	}
	conv := book.Converter()

	tw, err := fiatBreakdown(h.TaiwanAccounts, TWD, display, conv)
	if err != nil {
		return nil, err
	}
	au, err := fiatBreakdown(h.AustraliaAccounts, AUD, display, conv)
	if err != nil {
		return nil, err
	}

	crypto := CryptoBreakdown{ByExchange: map[string]*ExchangeBreakdown{}}
	for _, a := range h.CryptoAssets {
		price := book.USDPrice(a.CoinSymbol)
		usd := decimal.Zero
		if price.Valid {
			usd = a.Quantity.Mul(price.Decimal)
		}
		value, err := conv.FromUSD(usd, display)
		if err != nil {
			return nil, err
		}
		value = value.Round(leafPlaces)

		ex, ok := crypto.ByExchange[a.Exchange]
		if !ok {
			ex = &ExchangeBreakdown{Assets: []AssetValue{}}
			crypto.ByExchange[a.Exchange] = ex
		}
		ex.Assets = append(ex.Assets, AssetValue{
			CoinSymbol:   a.CoinSymbol,
			Quantity:     a.Quantity,
			PriceUSD:     price.Decimal,
			PriceMissing: !price.Valid,
			Value:        value,
		})
		ex.TotalValue = ex.TotalValue.Add(value)
	}
	for _, ex := range crypto.ByExchange {
		sort.Slice(ex.Assets, func(i, j int) bool { return ex.Assets[i].CoinSymbol < ex.Assets[j].CoinSymbol })
		crypto.TotalValue = crypto.TotalValue.Add(ex.TotalValue)
	}

	rates := conv.Rates()
	return &BreakdownReport{
		DisplayCurrency: display,
		Breakdown: Breakdown{
			TaiwanAssets:    tw,
			AustraliaAssets: au,
			CryptoAssets:    crypto,
		},
		TotalValue:    tw.TotalValue.Add(au.TotalValue).Add(crypto.TotalValue),
		Rates:         rates,
		RateFallbacks: rates.FallbackPairs(),
	}, nil
}

func fiatBreakdown(accounts []models.Account, from, display Currency, conv *Converter) (FiatBreakdown, error) {
	fb := FiatBreakdown{Accounts: []AccountValue{}}
	for _, a := range accounts {
		v, err := conv.Convert(a.Balance, from, display)
		if err != nil {
			return FiatBreakdown{}, err
		}
		v = v.Round(leafPlaces)
		fb.Accounts = append(fb.Accounts, AccountValue{
			ID:       a.ID,
			Name:     a.Name,
			BankName: a.BankName,
			Currency: a.Currency,
			Balance:  a.Balance,
			Value:    v,
		})
		fb.TotalValue = fb.TotalValue.Add(v)
	}
	return fb, nil
}
