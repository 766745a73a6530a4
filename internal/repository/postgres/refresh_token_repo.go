package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/campauth/internal/domain/auth"
	"github.com/jackc/pgx/v5"
)

var _ auth.RefreshTokenRepo = (*RefreshTokenRepo)(nil)

var ErrDuplicateToken = errors.New("refresh token already exists")

type RefreshTokenRepo struct{ db *DB }

func NewRefreshTokenRepo(db *DB) *RefreshTokenRepo { return &RefreshTokenRepo{db: db} }

const (
	qRTCreate = `
INSERT INTO refresh_tokens (coordinator_id, token_hash, issued_at, expires_at, revoked)
VALUES ($1, $2, $3, $4, FALSE)
RETURNING id;`

	qRTFindByHash = `
SELECT id, coordinator_id, token_hash, issued_at, expires_at, revoked
FROM refresh_tokens
WHERE token_hash = $1;`

	qRTRevoke = `
UPDATE refresh_tokens SET revoked = TRUE WHERE token_hash = $1;`

	qRTRevokeAllForUser = `
UPDATE refresh_tokens SET revoked = TRUE
WHERE coordinator_id = $1 AND revoked = FALSE;`

	qRTDeleteExpiredAndRevoked = `
DELETE FROM refresh_tokens
WHERE revoked = TRUE OR expires_at < $1;`
)

func (r *RefreshTokenRepo) Create(ctx context.Context, t *auth.RefreshToken) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.Pool.QueryRow(ctx, qRTCreate, t.UserID, t.TokenHash, t.IssuedAt, t.ExpiresAt).Scan(&t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateToken
		}
		return fmt.Errorf("create refresh: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepo) FindByHash(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var t auth.RefreshToken
	if err := r.db.Pool.QueryRow(ctx, qRTFindByHash, tokenHash).
		Scan(&t.ID, &t.UserID, &t.TokenHash, &t.IssuedAt, &t.ExpiresAt, &t.Revoked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrRefreshNotFound
		}
		return nil, fmt.Errorf("find refresh: %w", err)
	}
	return &t, nil
}

func (r *RefreshTokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.Pool.Exec(ctx, qRTRevoke, tokenHash); err != nil {
		return fmt.Errorf("revoke refresh: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Pool.Exec(ctx, qRTRevokeAllForUser, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke all refresh: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *RefreshTokenRepo) DeleteExpiredAndRevoked(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Pool.Exec(ctx, qRTDeleteExpiredAndRevoked, now)
	if err != nil {
		return 0, fmt.Errorf("cleanup refresh: %w", err)
	}
	return tag.RowsAffected(), nil
}
