package valuation

import (
	"strings"

	"fintracker/internal/models"
)

// Currency is a display currency. USD is the internal base unit.
type Currency string

const (
	USD  Currency = "USD"
	TWD  Currency = "TWD"
	AUD  Currency = "AUD"
	USDT Currency = "USDT"
)

var supported = []Currency{USD, TWD, AUD, USDT}

// ParseCurrency normalizes s and rejects anything outside the four
// supported display currencies.
func ParseCurrency(s string) (Currency, error) {
	c, ok := lookupCurrency(s)
	if !ok {
		return "", models.NewValidationError("currency", "unsupported currency "+strings.TrimSpace(s)+"; expected one of USD, TWD, AUD, USDT")
	}
	return c, nil
}

func lookupCurrency(s string) (Currency, bool) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	for _, sc := range supported {
		if c == sc {
			return c, true
		}
	}
	return "", false
}

// dollarLike reports whether c is valued one-to-one with USD.
func (c Currency) dollarLike() bool {
	return c == USD || c == USDT
}

// IsCurrency reports whether s names one of the supported currencies
// rather than a crypto coin.
func IsCurrency(s string) bool {
	_, ok := lookupCurrency(s)
	return ok
}
