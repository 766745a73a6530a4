package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/campauth/internal/auth"
	domainauth "github.com/NordCoder/campauth/internal/domain/auth"
)

// RefreshStore issues, verifies and revokes refresh credentials. The raw
// token never reaches the repository, only its digest.
type RefreshStore struct {
	repo     domainauth.RefreshTokenRepo
	ttl      time.Duration
	now      func() time.Time
	newToken func() (string, error)
}

func NewRefreshStore(repo domainauth.RefreshTokenRepo, ttl time.Duration, now func() time.Time) *RefreshStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &RefreshStore{repo: repo, ttl: ttl, now: now, newToken: auth.NewRefreshToken}
}

func (s *RefreshStore) TTL() time.Duration { return s.ttl }

func (s *RefreshStore) CreateForIdentity(ctx context.Context, userID int64) (*domainauth.RefreshToken, error) {
	raw, err := s.newToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	t := &domainauth.RefreshToken{
		UserID:    userID,
		Token:     raw,
		TokenHash: auth.HashToken(raw),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("save refresh: %w", err)
	}
	return t, nil
}

// Verify returns the credential if it is usable. Revocation is reported
// ahead of expiry.
func (s *RefreshStore) Verify(ctx context.Context, raw string) (*domainauth.RefreshToken, error) {
	if raw == "" {
		return nil, domainauth.ErrRefreshNotFound
	}
	t, err := s.repo.FindByHash(ctx, auth.HashToken(raw))
	if err != nil {
		return nil, err
	}
	if t.Revoked {
		return nil, domainauth.ErrRefreshRevoked
	}
	if !s.now().Before(t.ExpiresAt) {
		return nil, domainauth.ErrRefreshExpired
	}
	t.Token = raw
	return t, nil
}

func (s *RefreshStore) RevokeByToken(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	return s.repo.RevokeByHash(ctx, auth.HashToken(raw))
}

func (s *RefreshStore) RevokeAllForIdentity(ctx context.Context, userID int64) (int64, error) {
	return s.repo.RevokeAllForUser(ctx, userID)
}

func (s *RefreshStore) CleanupExpiredAndRevoked(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.DeleteExpiredAndRevoked(ctx, now)
}
