// Package ledger owns the per-user credit balance stored on profiles.
//
// The balance is a single integer column. Deductions are evaluated by
// Postgres as one conditional UPDATE so two concurrent submissions can never
// both observe a stale balance and overdraw it.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/illegalcall/thumbdesk/internal/models"
)

// ErrInvalidAmount is returned for non-positive deductions.
var ErrInvalidAmount = errors.New("ledger: amount must be positive")

const (
	deductQuery = `UPDATE profiles
		SET credits = credits - $2, updated_at = now()
		WHERE id = $1 AND credits >= $2
		RETURNING credits`
	balanceQuery = `SELECT credits FROM profiles WHERE id = $1`
)

// Deduct removes amount credits from the user's balance and returns what is
// left. When the balance is too small nothing changes and
// models.ErrInsufficientCredits is returned. q may be a *sqlx.DB or a *sqlx.Tx.
func Deduct(ctx context.Context, q sqlx.QueryerContext, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	var remaining int
	err := q.QueryRowxContext(ctx, deductQuery, userID, amount).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, models.ErrInsufficientCredits
	}
	if err != nil {
		return 0, fmt.Errorf("%w: deduct credits: %v", models.ErrStoreWrite, err)
	}
	return remaining, nil
}

// Balance returns the current balance. A missing profile yields models.ErrNotFound.
func Balance(ctx context.Context, q sqlx.QueryerContext, userID string) (int, error) {
	var credits int
	err := q.QueryRowxContext(ctx, balanceQuery, userID).Scan(&credits)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, models.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return credits, nil
}
