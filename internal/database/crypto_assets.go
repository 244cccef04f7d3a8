package database

import (
	"context"

	"fintracker/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const cryptoAssetColumns = `id, user_id, exchange, coin_symbol, quantity, average_cost, last_known_price, updated_at`

func (r *Repo) FindCryptoAssets(ctx context.Context, userID string) ([]models.CryptoAsset, error) {
	res := []models.CryptoAsset{}
	err := r.db.SelectContext(ctx, &res, `SELECT `+cryptoAssetColumns+` FROM crypto_assets
		WHERE user_id = $1 ORDER BY exchange, coin_symbol`, userID)
	if err != nil {
		return nil, persistence(err, "query crypto assets")
	}
	return res, nil
}

// ReplaceCryptoAssets makes assets the full inventory of one exchange for
// the user: listed coins are upserted and unlisted ones removed.
func (r *Repo) ReplaceCryptoAssets(ctx context.Context, userID, exchange string, assets []models.CryptoAsset) ([]models.CryptoAsset, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, persistence(err, "begin replace crypto assets")
	}
	defer tx.Rollback()

	if err := ensureUserTx(ctx, tx, userID); err != nil {
		return nil, persistence(err, "ensure user")
	}

	keep := make([]string, 0, len(assets))
	for _, a := range assets {
		_, err := tx.ExecContext(ctx, `INSERT INTO crypto_assets
			(id, user_id, exchange, coin_symbol, quantity, average_cost, last_known_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (user_id, exchange, coin_symbol) DO UPDATE
			SET quantity = EXCLUDED.quantity, average_cost = EXCLUDED.average_cost,
				last_known_price = EXCLUDED.last_known_price, updated_at = now()`,
			uuid.NewString(), userID, exchange, a.CoinSymbol, a.Quantity, a.AverageCost, a.LastKnownPrice)
		if err != nil {
			return nil, persistence(err, "upsert crypto asset "+a.CoinSymbol)
		}
		keep = append(keep, a.CoinSymbol)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM crypto_assets
		WHERE user_id = $1 AND exchange = $2 AND NOT (coin_symbol = ANY($3))`, userID, exchange, pq.Array(keep))
	if err != nil {
		return nil, persistence(err, "prune crypto assets")
	}
	if n, _ := res.RowsAffected(); n > 0 {
		r.log.WithFields(logrus.Fields{"user": userID, "exchange": exchange, "removed": n}).Info("pruned crypto assets")
	}

	out := []models.CryptoAsset{}
	if err := tx.SelectContext(ctx, &out, `SELECT `+cryptoAssetColumns+` FROM crypto_assets
		WHERE user_id = $1 AND exchange = $2 ORDER BY coin_symbol`, userID, exchange); err != nil {
		return nil, persistence(err, "reload crypto assets")
	}
	if err := tx.Commit(); err != nil {
		return nil, persistence(err, "commit replace crypto assets")
	}
	return out, nil
}

// UpdateLastKnownPrices stamps every inventory row of the given coins with
// the latest USD price.
func (r *Repo) UpdateLastKnownPrices(ctx context.Context, prices map[string]decimal.Decimal) error {
	for sym, price := range prices {
		if _, err := r.db.ExecContext(ctx, `UPDATE crypto_assets SET last_known_price = $2, updated_at = now()
			WHERE coin_symbol = $1`, sym, price); err != nil {
			return persistence(err, "update last known price "+sym)
		}
	}
	return nil
}
