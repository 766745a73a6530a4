package auth

import (
	"context"
	"time"
)

// RefreshTokenRepo persists refresh credentials. Every mutating method must
// be a single statement against the store.
type RefreshTokenRepo interface {
	Create(ctx context.Context, t *RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID int64) (int64, error)
	DeleteExpiredAndRevoked(ctx context.Context, now time.Time) (int64, error)
}

type LoginLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}
