package database

import (
	"context"
	"database/sql"
	"time"

	"fintracker/internal/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const positionColumns = `id, user_id, target_coin_symbol, venue, status, investment_type, sector, strategy,
	transaction_date, exit_date, investment_coin_symbol, investment_amount, entry_price,
	current_quantity, fee, reward_amount, value_usdt, created_at`

// FindOpenPositions returns the user's OPEN positions, newest entry first.
func (r *Repo) FindOpenPositions(ctx context.Context, userID string) ([]models.Position, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT `+positionColumns+` FROM crypto_transactions
		WHERE user_id = $1 AND status = 'OPEN'
		ORDER BY transaction_date DESC, created_at DESC`, userID)
	if err != nil {
		return nil, persistence(err, "query open positions")
	}
	defer rows.Close()
	res := []models.Position{}
	for rows.Next() {
		var p models.Position
		if err := rows.StructScan(&p); err != nil {
			return nil, persistence(err, "scan position")
		}
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence(err, "iterate positions")
	}
	return res, nil
}

func (r *Repo) GetPosition(ctx context.Context, userID, id string) (models.Position, error) {
	var p models.Position
	err := r.db.GetContext(ctx, &p, `SELECT `+positionColumns+` FROM crypto_transactions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return models.Position{}, notFoundOr(err, "get position "+id)
	}
	return p, nil
}

func (r *Repo) CreatePosition(ctx context.Context, p models.Position) (models.Position, error) {
	created, err := r.CreatePositions(ctx, []models.Position{p})
	if err != nil {
		return models.Position{}, err
	}
	return created[0], nil
}

// CreatePositions inserts all positions in one transaction. Either every
// row is written or none is.
func (r *Repo) CreatePositions(ctx context.Context, ps []models.Position) ([]models.Position, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, persistence(err, "begin position batch")
	}
	defer tx.Rollback()

	seen := map[string]bool{}
	for _, p := range ps {
		if seen[p.UserID] {
			continue
		}
		seen[p.UserID] = true
		if err := ensureUserTx(ctx, tx, p.UserID); err != nil {
			return nil, persistence(err, "ensure user")
		}
	}

	q := `INSERT INTO crypto_transactions (id, user_id, target_coin_symbol, venue, status, investment_type, sector, strategy,
		transaction_date, exit_date, investment_coin_symbol, investment_amount, entry_price,
		current_quantity, fee, reward_amount, value_usdt, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, now(), now())
		RETURNING created_at`
	out := make([]models.Position, 0, len(ps))
	for _, p := range ps {
		if err := tx.QueryRowxContext(ctx, q,
			p.ID, p.UserID, p.TargetCoinSymbol, p.Venue, p.Status, p.InvestmentType, p.Sector, p.Strategy,
			p.TransactionDate, p.ExitDate, p.InvestmentCoinSymbol, p.InvestmentAmount, p.EntryPrice,
			p.CurrentQuantity, p.Fee, p.RewardAmount, p.ValueUSDT,
		).Scan(&p.CreatedAt); err != nil {
			if pqCode(err) == codeUniqueViolation {
				return nil, errors.Wrapf(models.ErrPersistence, "position %s already exists", p.ID)
			}
			return nil, persistence(err, "insert position")
		}
		out = append(out, p)
	}

	if err := tx.Commit(); err != nil {
		return nil, persistence(err, "commit position batch")
	}
	return out, nil
}

// ClosePosition moves an OPEN position to CLOSED. finalQty, when valid,
// replaces the stored current quantity.
func (r *Repo) ClosePosition(ctx context.Context, userID, id string, exitDate time.Time, finalQty decimal.NullDecimal) (models.Position, error) {
	var p models.Position
	err := r.db.GetContext(ctx, &p, `UPDATE crypto_transactions
		SET status = 'CLOSED', exit_date = $3, current_quantity = COALESCE($4, current_quantity), updated_at = now()
		WHERE id = $1 AND user_id = $2 AND status = 'OPEN'
		RETURNING `+positionColumns, id, userID, exitDate, finalQty)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Position{}, persistence(err, "close position")
	}
	// Nothing updated: either the row is missing or it is not OPEN.
	if _, getErr := r.GetPosition(ctx, userID, id); getErr != nil {
		return models.Position{}, getErr
	}
	return models.Position{}, errors.Wrapf(models.ErrInvalidTransition, "position %s is already closed", id)
}

// ClearPositions deletes every position of the user and reports how many
// rows went away.
func (r *Repo) ClearPositions(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM crypto_transactions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, persistence(err, "clear positions")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, persistence(err, "clear positions")
	}
	return n, nil
}

// TrackedSymbols lists every coin some user currently holds or is priced
// against, for the price refresher.
func (r *Repo) TrackedSymbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT target_coin_symbol FROM crypto_transactions WHERE status = 'OPEN'
		UNION SELECT investment_coin_symbol FROM crypto_transactions WHERE status = 'OPEN'
		UNION SELECT coin_symbol FROM crypto_assets`)
	if err != nil {
		return nil, persistence(err, "query tracked symbols")
	}
	defer rows.Close()
	res := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			r.log.Warnf("scan symbol failed: %v", err)
			continue
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
