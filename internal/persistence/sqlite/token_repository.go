package sqlite

import (
	"context"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// TokenRepository implements persistence.TokenRepository using SQLite.
type TokenRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewTokenRepository creates a new SQLite token repository.
func NewTokenRepository(pool *ConnectionPool) *TokenRepository {
	return &TokenRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// RevokeToken records a revoked session token. Revoking a token twice keeps the first record.
func (r *TokenRepository) RevokeToken(ctx context.Context, token persistence.RevokedToken) error {
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.DB().ExecContext(ctx, `
			INSERT INTO revoked_tokens (token_id, user_id, expires_at, revoked_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (token_id) DO NOTHING`,
			token.TokenID, token.UserID, formatTime(token.ExpiresAt), formatTime(token.RevokedAt))
		return err
	})
}

// IsTokenRevoked reports whether tokenID was revoked.
func (r *TokenRepository) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	found, err := exists(ctx, r.pool.DB(), `SELECT COUNT(1) FROM revoked_tokens WHERE token_id = ?`, tokenID)
	if err != nil {
		return false, r.mapper.MapError(err)
	}
	return found, nil
}

// DeleteExpiredTokens drops revocations whose token expired at or before reference.
func (r *TokenRepository) DeleteExpiredTokens(ctx context.Context, reference time.Time) error {
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.DB().ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= ?`, formatTime(reference))
		return err
	})
}
