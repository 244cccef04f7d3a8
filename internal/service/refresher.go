package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"fintracker/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// PriceSource is a crypto price feed such as feeds.CoinGecko.
type PriceSource interface {
	FetchPrices(ctx context.Context, symbols []string) (map[string]models.CryptoPrice, error)
}

// RateSource is a fiat rate feed quoting one pair.
type RateSource interface {
	Source() string
	Pair() string
	FetchRate(ctx context.Context) (models.ExchangeRate, error)
}

// RefreshResult summarizes one refresh pass.
type RefreshResult struct {
	PricesStored int      `json:"prices_stored"`
	RatesStored  int      `json:"rates_stored"`
	FailedRates  []string `json:"failed_rates"`
	PriceError   string   `json:"price_error,omitempty"`
}

// Refresher appends fresh price and rate snapshots. A source that fails is
// logged and, for rates, recorded as a null row so readers can see the gap.
type Refresher struct {
	store    SnapshotStore
	prices   PriceSource
	rates    []RateSource
	defaults []string
	log      *logrus.Logger

	mu sync.Mutex
}

// NewRefresher builds a refresher. defaults are symbols fetched on every
// pass in addition to the ones users hold.
func NewRefresher(store SnapshotStore, prices PriceSource, rates []RateSource, defaults []string, log *logrus.Logger) *Refresher {
	return &Refresher{store: store, prices: prices, rates: rates, defaults: defaults, log: log}
}

// Start runs RefreshOnce every interval until ctx is cancelled. When
// immediate is set the first pass runs right away.
func (r *Refresher) Start(ctx context.Context, interval time.Duration, immediate bool) {
	go func() {
		if immediate {
			r.run(ctx)
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				r.log.Info("snapshot refresher stopping")
				return
			case <-ticker.C:
				r.run(ctx)
			}
		}
	}()
}

func (r *Refresher) run(ctx context.Context) {
	res, err := r.RefreshOnce(ctx)
	if err != nil {
		r.log.Errorf("snapshot refresh failed: %v", err)
		return
	}
	r.log.WithFields(logrus.Fields{
		"prices": res.PricesStored,
		"rates":  res.RatesStored,
		"failed": res.FailedRates,
	}).Info("snapshots refreshed")
}

// RefreshOnce fetches every feed concurrently and stores what came back.
// Only store failures are returned as errors.
func (r *Refresher) RefreshOnce(ctx context.Context) (RefreshResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	symbols, err := r.symbols(ctx)
	if err != nil {
		return RefreshResult{}, err
	}

	var (
		prices   map[string]models.CryptoPrice
		priceErr error
		rates    = make([]models.ExchangeRate, len(r.rates))
		rateErrs = make([]error, len(r.rates))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		prices, priceErr = r.prices.FetchPrices(gctx, symbols)
		return nil
	})
	for i, src := range r.rates {
		i, src := i, src
		g.Go(func() error {
			rates[i], rateErrs[i] = src.FetchRate(gctx)
			return nil
		})
	}
	_ = g.Wait()

	res := RefreshResult{FailedRates: []string{}}
	now := time.Now().UTC()
	for i, src := range r.rates {
		if rateErrs[i] != nil {
			r.log.WithFields(logrus.Fields{"source": src.Source(), "pair": src.Pair()}).Warnf("rate fetch failed: %v", rateErrs[i])
			res.FailedRates = append(res.FailedRates, src.Source())
			rates[i] = models.ExchangeRate{CurrencyPair: src.Pair(), Source: src.Source(), Timestamp: now}
		}
	}
	if res.RatesStored, err = r.store.InsertExchangeRates(ctx, rates); err != nil {
		return res, err
	}

	if priceErr != nil {
		r.log.Warnf("price fetch failed: %v", priceErr)
		res.PriceError = priceErr.Error()
		return res, nil
	}
	if len(prices) < len(symbols) {
		r.log.Debugf("prices returned for %d of %d symbols", len(prices), len(symbols))
	}

	rows := make([]models.CryptoPrice, 0, len(prices))
	last := make(map[string]decimal.Decimal, len(prices))
	for sym, p := range prices {
		rows = append(rows, p)
		if p.USDPrice.Valid {
			last[sym] = p.USDPrice.Decimal
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CoinSymbol < rows[j].CoinSymbol })
	if res.PricesStored, err = r.store.InsertCryptoPrices(ctx, rows); err != nil {
		return res, err
	}
	if err := r.store.UpdateLastKnownPrices(ctx, last); err != nil {
		return res, err
	}
	return res, nil
}

func (r *Refresher) symbols(ctx context.Context) ([]string, error) {
	held, err := r.store.TrackedSymbols(ctx)
	if err != nil {
		return nil, err
	}
	return cryptoSymbols(append(append([]string{}, r.defaults...), held...)), nil
}
