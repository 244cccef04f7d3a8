package database

import (
	"context"

	"fintracker/internal/models"

	"github.com/lib/pq"
)

// LatestCryptoPrices returns the newest snapshot per requested symbol.
// Symbols with no snapshot are absent from the map.
func (r *Repo) LatestCryptoPrices(ctx context.Context, symbols []string) (map[string]models.CryptoPrice, error) {
	res := map[string]models.CryptoPrice{}
	if len(symbols) == 0 {
		return res, nil
	}
	var rows []models.CryptoPrice
	err := r.db.SelectContext(ctx, &rows, `SELECT DISTINCT ON (coin_symbol)
			coin_symbol, usd_price, twd_price, usdt_price, timestamp
		FROM crypto_asset_prices
		WHERE coin_symbol = ANY($1)
		ORDER BY coin_symbol, timestamp DESC`, pq.Array(symbols))
	if err != nil {
		return nil, persistence(err, "query latest crypto prices")
	}
	for _, p := range rows {
		res[p.CoinSymbol] = p
	}
	return res, nil
}

// LatestExchangeRates returns the newest row of each source quoting pair,
// ordered by source.
func (r *Repo) LatestExchangeRates(ctx context.Context, pair string) ([]models.ExchangeRate, error) {
	res := []models.ExchangeRate{}
	err := r.db.SelectContext(ctx, &res, `SELECT DISTINCT ON (source)
			currency_pair, source, rate, buy_rate, sell_rate, timestamp
		FROM exchange_rates
		WHERE currency_pair = $1
		ORDER BY source, timestamp DESC`, pair)
	if err != nil {
		return nil, persistence(err, "query latest exchange rates")
	}
	return res, nil
}

// InsertCryptoPrices appends snapshots. A row already present for the same
// symbol and timestamp is skipped.
func (r *Repo) InsertCryptoPrices(ctx context.Context, prices []models.CryptoPrice) (int, error) {
	inserted := 0
	for _, p := range prices {
		_, err := r.db.ExecContext(ctx, `INSERT INTO crypto_asset_prices (coin_symbol, usd_price, twd_price, usdt_price, timestamp)
			VALUES ($1, $2, $3, $4, $5)`, p.CoinSymbol, p.USDPrice, p.TWDPrice, p.USDTPrice, p.Timestamp)
		if err != nil {
			if pqCode(err) == codeUniqueViolation {
				r.log.Debugf("duplicate price snapshot %s@%s skipped", p.CoinSymbol, p.Timestamp)
				continue
			}
			return inserted, persistence(err, "insert crypto price")
		}
		inserted++
	}
	return inserted, nil
}

func (r *Repo) InsertExchangeRates(ctx context.Context, rates []models.ExchangeRate) (int, error) {
	inserted := 0
	for _, x := range rates {
		_, err := r.db.ExecContext(ctx, `INSERT INTO exchange_rates (currency_pair, source, rate, buy_rate, sell_rate, timestamp)
			VALUES ($1, $2, $3, $4, $5, $6)`, x.CurrencyPair, x.Source, x.Rate, x.BuyRate, x.SellRate, x.Timestamp)
		if err != nil {
			if pqCode(err) == codeUniqueViolation {
				r.log.Debugf("duplicate rate snapshot %s/%s@%s skipped", x.CurrencyPair, x.Source, x.Timestamp)
				continue
			}
			return inserted, persistence(err, "insert exchange rate")
		}
		inserted++
	}
	return inserted, nil
}
