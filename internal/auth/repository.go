// Package auth implements one-time login codes: generated server side,
// stored as bcrypt hashes, delivered by email and consumed on first use.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/payflow-app/payflow/internal/shared"
)

// LoginCode is one stored code challenge.
type LoginCode struct {
	ID        int64
	UserID    int64
	CodeHash  []byte
	ExpiresAt time.Time
	Consumed  bool
	CreatedAt time.Time
}

// Repository provides PostgreSQL backed persistence for login codes.
type Repository interface {
	Create(ctx context.Context, userID int64, codeHash []byte, expiresAt time.Time) error
	// LatestActive returns the newest unconsumed, unexpired code for a user.
	LatestActive(ctx context.Context, userID int64, now time.Time) (*LoginCode, error)
	MarkConsumed(ctx context.Context, id int64) error
	// InvalidateForUser consumes every outstanding code; a fresh request
	// supersedes older ones.
	InvalidateForUser(ctx context.Context, userID int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Create(ctx context.Context, userID int64, codeHash []byte, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO login_codes (user_id, code_hash, expires_at, consumed, created_at)
VALUES ($1, $2, $3, FALSE, NOW())`, userID, codeHash, expiresAt)
	return err
}

func (r *repository) LatestActive(ctx context.Context, userID int64, now time.Time) (*LoginCode, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, user_id, code_hash, expires_at, consumed, created_at
FROM login_codes
WHERE user_id = $1 AND NOT consumed AND expires_at > $2
ORDER BY created_at DESC LIMIT 1`, userID, now)

	var code LoginCode
	if err := row.Scan(&code.ID, &code.UserID, &code.CodeHash, &code.ExpiresAt, &code.Consumed, &code.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &code, nil
}

func (r *repository) MarkConsumed(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE login_codes SET consumed = TRUE WHERE id = $1 AND NOT consumed`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) InvalidateForUser(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE login_codes SET consumed = TRUE WHERE user_id = $1 AND NOT consumed`, userID)
	return err
}
