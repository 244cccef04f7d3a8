package valuation

import (
	"strings"

	"fintracker/internal/models"

	"github.com/shopspring/decimal"
)

// PriceBook answers price questions for one request from the latest crypto
// price snapshots and the resolved fiat rates.
type PriceBook struct {
	prices map[string]models.CryptoPrice
	conv   *Converter
}

func NewPriceBook(prices map[string]models.CryptoPrice, conv *Converter) *PriceBook {
	byKey := make(map[string]models.CryptoPrice, len(prices))
	for sym, p := range prices {
		byKey[normSymbol(sym)] = p
	}
	return &PriceBook{prices: byKey, conv: conv}
}

func (b *PriceBook) Converter() *Converter {
	return b.conv
}

// USDPrice is the latest USD quote of a coin.
func (b *PriceBook) USDPrice(symbol string) decimal.NullDecimal {
	q, ok := b.prices[normSymbol(symbol)]
	if !ok {
		return decimal.NullDecimal{}
	}
	return positive(q.USDPrice)
}

// UnitValueUSD is what one unit of coin is worth in USD. Supported fiat
// currencies and USDT are valued through the converter, anything else
// through its crypto quote.
func (b *PriceBook) UnitValueUSD(coin string) decimal.NullDecimal {
	if cur, ok := lookupCurrency(coin); ok {
		v, err := b.conv.ToUSD(decimal.NewFromInt(1), cur)
		if err != nil {
			return decimal.NullDecimal{}
		}
		return valid(v)
	}
	return b.USDPrice(coin)
}

// PriceIn is the price of one unit of target denominated in coin. A direct
// quote in that coin wins; otherwise the USD quote is divided by the USD
// value of coin. USDT positions fall back to the USD quote.
func (b *PriceBook) PriceIn(target, coin string) decimal.NullDecimal {
	q, ok := b.prices[normSymbol(target)]
	if !ok {
		return decimal.NullDecimal{}
	}
	switch normSymbol(coin) {
	case string(USD):
		return positive(q.USDPrice)
	case string(USDT):
		if p := positive(q.USDTPrice); p.Valid {
			return p
		}
		return positive(q.USDPrice)
	case string(TWD):
		if p := positive(q.TWDPrice); p.Valid {
			return p
		}
	}
	usd := positive(q.USDPrice)
	unit := b.UnitValueUSD(coin)
	if !usd.Valid || !unit.Valid || !unit.Decimal.IsPositive() {
		return decimal.NullDecimal{}
	}
	return valid(usd.Decimal.Div(unit.Decimal))
}

// ToUSD values amount units of coin in USD, or null when coin has no quote.
func (b *PriceBook) ToUSD(amount decimal.Decimal, coin string) decimal.NullDecimal {
	unit := b.UnitValueUSD(coin)
	if !unit.Valid {
		return decimal.NullDecimal{}
	}
	if cur, ok := lookupCurrency(coin); ok {
		v, err := b.conv.ToUSD(amount, cur)
		if err != nil {
			return decimal.NullDecimal{}
		}
		return valid(v)
	}
	return valid(amount.Mul(unit.Decimal))
}

func normSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func valid(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// positive treats zero quotes as missing; feeds report 0 for unknown.
func positive(d decimal.NullDecimal) decimal.NullDecimal {
	if !d.Valid || !d.Decimal.IsPositive() {
		return decimal.NullDecimal{}
	}
	return d
}
