package auth

import (
	"errors"
	"slices"
	"time"
)

const (
	RoleCoordinator = "ROLE_COORDINATOR"
	RoleAdmin       = "ROLE_ADMIN"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTooManyAttempts    = errors.New("too many login attempts")
	ErrUnauthenticated    = errors.New("authentication required")

	ErrNoRefreshProvided = errors.New("refresh token is required")
	ErrRefreshNotFound   = errors.New("refresh token not found")
	ErrRefreshRevoked    = errors.New("refresh token has been revoked")
	ErrRefreshExpired    = errors.New("refresh token has expired")
)

// RefreshToken is a persisted refresh credential. Token holds the raw value
// and is only populated on the instance returned at creation time.
type RefreshToken struct {
	ID        int64
	UserID    int64
	Token     string
	TokenHash string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// Usable reports whether the credential can still mint access tokens.
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// Identity is the per-request view of an authenticated caller.
type Identity struct {
	ID      int64
	Subject string
	Roles   []string
}

func (i Identity) HasRole(role string) bool { return slices.Contains(i.Roles, role) }

type EventKind string

const (
	EventLogin       EventKind = "login"
	EventLoginFailed EventKind = "login_failed"
	EventLogoutAll   EventKind = "logout_all"
	EventRegistered  EventKind = "registered"
)

type Event struct {
	Kind    EventKind `json:"kind"`
	UserID  int64     `json:"userId,omitempty"`
	Subject string    `json:"subject"`
	Revoked int64     `json:"revoked,omitempty"`
	At      time.Time `json:"at"`
}
