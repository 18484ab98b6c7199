package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sizang-hub/sizang-hub/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	CreateToken(ctx context.Context, hash, userID string, purpose TokenPurpose, expiresAt time.Time) error
	ConsumeToken(ctx context.Context, hash string, purpose TokenPurpose, now time.Time) (string, error)
	InvalidateTokens(ctx context.Context, userID string, purpose TokenPurpose) error
	CreateSession(ctx context.Context, id, userID string, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateToken stores the hash of a one-time token.
func (r *PGRepository) CreateToken(ctx context.Context, hash, userID string, purpose TokenPurpose, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_tokens (token_hash, user_id, purpose, expires_at) VALUES ($1, $2, $3, $4)`, hash, userID, string(purpose), expiresAt.UTC())
	return err
}

// ConsumeToken marks a live token as used and returns its user. Unknown,
// expired and already consumed tokens all yield shared.ErrTokenInvalid.
func (r *PGRepository) ConsumeToken(ctx context.Context, hash string, purpose TokenPurpose, now time.Time) (string, error) {
	var userID string
	err := r.pool.QueryRow(ctx, `UPDATE user_tokens SET consumed_at = $3
WHERE token_hash = $1 AND purpose = $2 AND consumed_at IS NULL AND expires_at > $3
RETURNING user_id`, hash, string(purpose), now.UTC()).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shared.ErrTokenInvalid
	}
	return userID, err
}

// InvalidateTokens consumes every outstanding token of purpose for a user.
func (r *PGRepository) InvalidateTokens(ctx context.Context, userID string, purpose TokenPurpose) error {
	_, err := r.pool.Exec(ctx, `UPDATE user_tokens SET consumed_at = NOW() WHERE user_id = $1 AND purpose = $2 AND consumed_at IS NULL`, userID, string(purpose))
	return err
}

// CreateSession persists a new login session in the database for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id, userID string, expiresAt time.Time, ip, ua string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_sessions (id, user_id, ip, user_agent, expires_at) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET user_id = EXCLUDED.user_id, expires_at = EXCLUDED.expires_at`, id, userID, ip, ua, expiresAt.UTC())
	return err
}

// DeleteSession removes a session record from the database.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_sessions WHERE id = $1`, id)
	return err
}

// DeleteExpired purges expired tokens and session rows.
func (r *PGRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM user_tokens WHERE expires_at < $1 OR consumed_at < $1 - INTERVAL '7 days'`, now.UTC())
	batch.Queue(`DELETE FROM user_sessions WHERE expires_at < $1`, now.UTC())
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			return total, err
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

var _ Repository = (*PGRepository)(nil)
