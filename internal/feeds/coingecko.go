package feeds

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fintracker/internal/models"

	"github.com/shopspring/decimal"
)

// CoinGecko fetches USD, TWD and USDT quotes for a set of symbols in one
// simple/price call.
type CoinGecko struct {
	BaseURL  string
	Registry *Registry
	Client   *http.Client
}

func NewCoinGecko(baseURL string, registry *Registry, timeout time.Duration) *CoinGecko {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &CoinGecko{BaseURL: strings.TrimRight(baseURL, "/"), Registry: registry, Client: newClient(timeout)}
}

// FetchPrices returns one snapshot per symbol the source knows. Symbols
// without a registry entry or without data in the response are left out;
// a quote of zero is stored as null.
func (c *CoinGecko) FetchPrices(ctx context.Context, symbols []string) (map[string]models.CryptoPrice, error) {
	ids := make([]string, 0, len(symbols))
	bySymbol := map[string]string{}
	for _, s := range symbols {
		sym := strings.ToUpper(s)
		id, ok := c.Registry.ID(sym)
		if !ok {
			continue
		}
		if _, dup := bySymbol[sym]; dup {
			continue
		}
		bySymbol[sym] = id
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return map[string]models.CryptoPrice{}, nil
	}

	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s",
		c.BaseURL,
		url.QueryEscape(strings.Join(ids, ",")),
		url.QueryEscape("usd,twd,usdt"),
	)

	var result map[string]map[string]float64
	if err := getJSON(ctx, c.Client, endpoint, &result); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make(map[string]models.CryptoPrice, len(bySymbol))
	for sym, id := range bySymbol {
		q, ok := result[id]
		if !ok {
			continue
		}
		out[sym] = models.CryptoPrice{
			CoinSymbol: sym,
			USDPrice:   quoteField(q, "usd"),
			TWDPrice:   quoteField(q, "twd"),
			USDTPrice:  quoteField(q, "usdt"),
			Timestamp:  now,
		}
	}
	return out, nil
}

func quoteField(q map[string]float64, key string) decimal.NullDecimal {
	v, ok := q[key]
	if !ok || v <= 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(v), Valid: true}
}
