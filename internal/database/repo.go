package database

import (
	"context"
	"database/sql"

	"fintracker/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Postgres error codes the repo reacts to.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

type Repo struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func New(db *sqlx.DB, log *logrus.Logger) *Repo {
	return &Repo{db: db, log: log}
}

func (r *Repo) EnsureUserExists(ctx context.Context, userID, name string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, userID, name)
	if err != nil {
		return persistence(err, "ensure user")
	}
	return nil
}

func ensureUserTx(ctx context.Context, tx *sqlx.Tx, userID string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO users (id, name) VALUES ($1, '') ON CONFLICT (id) DO NOTHING`, userID)
	return err
}

// persistence wraps a store failure so callers can match it with
// errors.Is(err, models.ErrPersistence).
func persistence(err error, op string) error {
	return errors.Wrapf(models.ErrPersistence, "%s: %v", op, err)
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrap(models.ErrNotFound, op)
	}
	return persistence(err, op)
}
