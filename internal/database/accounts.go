package database

import (
	"context"

	"fintracker/internal/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, user_id, account_name, bank_name, currency, account_type, initial_balance, balance, created_at`

func (r *Repo) CreateAccount(ctx context.Context, a models.Account) (models.Account, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Account{}, persistence(err, "begin create account")
	}
	defer tx.Rollback()

	if err := ensureUserTx(ctx, tx, a.UserID); err != nil {
		return models.Account{}, persistence(err, "ensure user")
	}
	var created models.Account
	err = tx.GetContext(ctx, &created, `INSERT INTO fiat_accounts
		(id, user_id, account_name, bank_name, currency, account_type, initial_balance, balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING `+accountColumns,
		a.ID, a.UserID, a.Name, a.BankName, a.Currency, a.AccountType, a.InitialBalance)
	if err != nil {
		return models.Account{}, persistence(err, "insert account")
	}
	if err := tx.Commit(); err != nil {
		return models.Account{}, persistence(err, "commit create account")
	}
	return created, nil
}

// FindAccounts lists the user's fiat accounts. An empty currency matches
// every account.
func (r *Repo) FindAccounts(ctx context.Context, userID, currency string) ([]models.Account, error) {
	res := []models.Account{}
	q := `SELECT ` + accountColumns + ` FROM fiat_accounts WHERE user_id = $1`
	args := []any{userID}
	if currency != "" {
		q += ` AND currency = $2`
		args = append(args, currency)
	}
	q += ` ORDER BY created_at, id`
	if err := r.db.SelectContext(ctx, &res, q, args...); err != nil {
		return nil, persistence(err, "query accounts")
	}
	return res, nil
}

func (r *Repo) GetAccount(ctx context.Context, userID, accountID string) (models.Account, error) {
	var a models.Account
	err := r.db.GetContext(ctx, &a, `SELECT `+accountColumns+` FROM fiat_accounts WHERE id = $1 AND user_id = $2`, accountID, userID)
	if err != nil {
		return models.Account{}, notFoundOr(err, "get account "+accountID)
	}
	return a, nil
}

// PostTransaction records a fiat transaction and moves the account balance
// by its amount in the same database transaction.
func (r *Repo) PostTransaction(ctx context.Context, userID string, t models.FiatTransaction) (models.FiatTransaction, models.Account, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.FiatTransaction{}, models.Account{}, persistence(err, "begin post transaction")
	}
	defer tx.Rollback()

	var accountID string
	if err := tx.GetContext(ctx, &accountID, `SELECT id FROM fiat_accounts WHERE id = $1 AND user_id = $2 FOR UPDATE`, t.AccountID, userID); err != nil {
		return models.FiatTransaction{}, models.Account{}, notFoundOr(err, "lock account "+t.AccountID)
	}

	var posted models.FiatTransaction
	err = tx.GetContext(ctx, &posted, `INSERT INTO fiat_transactions
		(id, account_id, transaction_date, description, amount, transaction_type, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, account_id, transaction_date, description, amount, transaction_type, status, notes`,
		t.ID, t.AccountID, t.TransactionDate, t.Description, t.Amount, t.TransactionType, t.Status, t.Notes)
	if err != nil {
		if pqCode(err) == codeForeignKeyViolation {
			return models.FiatTransaction{}, models.Account{}, errors.Wrapf(models.ErrNotFound, "account %s", t.AccountID)
		}
		return models.FiatTransaction{}, models.Account{}, persistence(err, "insert fiat transaction")
	}

	var acct models.Account
	err = tx.GetContext(ctx, &acct, `UPDATE fiat_accounts SET balance = balance + $2, updated_at = now()
		WHERE id = $1 RETURNING `+accountColumns, t.AccountID, t.Amount)
	if err != nil {
		return models.FiatTransaction{}, models.Account{}, persistence(err, "update balance")
	}

	if err := tx.Commit(); err != nil {
		return models.FiatTransaction{}, models.Account{}, persistence(err, "commit post transaction")
	}
	return posted, acct, nil
}

// TransactionSum totals every posted amount of an account.
func (r *Repo) TransactionSum(ctx context.Context, accountID string) (decimal.Decimal, int, error) {
	var row struct {
		Total decimal.Decimal `db:"total"`
		Count int             `db:"count"`
	}
	err := r.db.GetContext(ctx, &row, `SELECT COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count
		FROM fiat_transactions WHERE account_id = $1`, accountID)
	if err != nil {
		return decimal.Zero, 0, persistence(err, "sum transactions")
	}
	return row.Total, row.Count, nil
}
