package feeds

import (
	"context"
	"net/http"
	"strings"
	"time"

	"fintracker/internal/models"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
)

// Ticker reads the last traded price of one pair from an exchange ticker
// endpoint. Path is a JSONPath expression selecting the price.
type Ticker struct {
	source string
	pair   string
	URL    string
	Path   string
	Client *http.Client
}

// NewBitopro quotes TWD per USDT from Bitopro.
func NewBitopro(baseURL string, timeout time.Duration) *Ticker {
	return &Ticker{
		source: models.SourceBitopro,
		pair:   models.PairTWDUSDT,
		URL:    strings.TrimRight(baseURL, "/") + "/tickers/USDT_TWD",
		Path:   "$.data.lastPrice",
		Client: newClient(timeout),
	}
}

// NewMAX quotes TWD per USDT from MAX.
func NewMAX(baseURL string, timeout time.Duration) *Ticker {
	return &Ticker{
		source: models.SourceMAX,
		pair:   models.PairTWDUSDT,
		URL:    strings.TrimRight(baseURL, "/") + "/tickers/usdttwd",
		Path:   "$.last",
		Client: newClient(timeout),
	}
}

func (t *Ticker) Source() string { return t.source }

func (t *Ticker) Pair() string { return t.pair }

func (t *Ticker) FetchRate(ctx context.Context) (models.ExchangeRate, error) {
	var doc any
	if err := getJSON(ctx, t.Client, t.URL, &doc); err != nil {
		return models.ExchangeRate{}, err
	}
	val, err := jsonpath.Get(t.Path, doc)
	if err != nil {
		return models.ExchangeRate{}, upstream("%s response missing %s: %v", t.source, t.Path, err)
	}
	if list, ok := val.([]any); ok && len(list) > 0 {
		val = list[0]
	}
	rate, err := toDecimal(val)
	if err != nil {
		return models.ExchangeRate{}, upstream("%s %s: %v", t.source, t.Path, err)
	}
	if !rate.IsPositive() {
		return models.ExchangeRate{}, upstream("%s returned non-positive rate %s", t.source, rate)
	}
	return models.ExchangeRate{
		CurrencyPair: t.pair,
		Source:       t.source,
		Rate:         decimal.NullDecimal{Decimal: rate, Valid: true},
		Timestamp:    time.Now().UTC(),
	}, nil
}
