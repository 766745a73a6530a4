package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/NordCoder/campauth/internal/auth"
	domainauth "github.com/NordCoder/campauth/internal/domain/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captured runs the authenticator and returns what the next handler saw.
func captured(t *testing.T, a *Authenticator, authz string) (domainauth.Identity, bool) {
	t.Helper()
	var (
		got domainauth.Identity
		ok  bool
		hit bool
	)
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		got, ok = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	r := httptest.NewRequest(http.MethodGet, "/anything", nil)
	if authz != "" {
		r.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.True(t, hit, "middleware must never reject")
	require.Equal(t, http.StatusNoContent, w.Code)
	return got, ok
}

func legacyToken(t *testing.T, f *fixture, subject string) string {
	t.Helper()
	now := f.clock.Now()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(testSecret)
	require.NoError(t, err)
	return s
}

func TestAuthenticator_NoHeaderIsAnonymous(t *testing.T) {
	f := newFixture(t)
	a := NewAuthenticator(f.issuer, f.users, nil, 0)

	_, ok := captured(t, a, "")
	assert.False(t, ok)
	_, ok = captured(t, a, "Basic Zm9vOmJhcg==")
	assert.False(t, ok)
}

func TestAuthenticator_FastPathDoesNoLookup(t *testing.T) {
	f := newFixture(t)
	a := NewAuthenticator(f.issuer, f.users, nil, 0)
	tok, err := f.issuer.IssueFromClaims(42, "anna@example.com", []string{domainauth.RoleAdmin})
	require.NoError(t, err)

	id, ok := captured(t, a, "bearer "+tok)
	require.True(t, ok)
	assert.Equal(t, domainauth.Identity{ID: 42, Subject: "anna@example.com", Roles: []string{domainauth.RoleAdmin}}, id)
	assert.Zero(t, f.users.lookupCount())
}

func TestAuthenticator_InvalidOrExpiredIsAnonymous(t *testing.T) {
	f := newFixture(t)
	a := NewAuthenticator(f.issuer, f.users, nil, 0)
	tok, err := f.issuer.IssueFromClaims(1, "anna@example.com", nil)
	require.NoError(t, err)

	_, ok := captured(t, a, "Bearer "+tok+"x")
	assert.False(t, ok)

	f.clock.Advance(15 * time.Minute)
	_, ok = captured(t, a, "Bearer "+tok)
	assert.False(t, ok)
	assert.Zero(t, f.users.lookupCount())
}

func TestAuthenticator_SlowPathUsesDirectory(t *testing.T) {
	f := newFixture(t)
	acc := f.users.add(t, "legacy@example.com", "password1", domainauth.RoleCoordinator)
	a := NewAuthenticator(f.issuer, f.users, nil, 0)
	tok := legacyToken(t, f, "legacy@example.com")

	id, ok := captured(t, a, "Bearer "+tok)
	require.True(t, ok)
	assert.Equal(t, acc.ID, id.ID)
	assert.Equal(t, []string{domainauth.RoleCoordinator}, id.Roles)
	assert.Equal(t, 1, f.users.lookupCount())

	_, ok = captured(t, a, "Bearer "+tok)
	require.True(t, ok)
	assert.Equal(t, 2, f.users.lookupCount())
}

func TestAuthenticator_SlowPathCache(t *testing.T) {
	f := newFixture(t)
	f.users.add(t, "legacy@example.com", "password1", domainauth.RoleCoordinator)
	a := NewAuthenticator(f.issuer, f.users, nil, time.Minute)
	tok := legacyToken(t, f, "legacy@example.com")

	for i := 0; i < 3; i++ {
		_, ok := captured(t, a, "Bearer "+tok)
		require.True(t, ok)
	}
	assert.Equal(t, 1, f.users.lookupCount())
}

func TestAuthenticator_SlowPathFailureIsAnonymous(t *testing.T) {
	f := newFixture(t)
	a := NewAuthenticator(f.issuer, f.users, nil, 0)

	_, ok := captured(t, a, "Bearer "+legacyToken(t, f, "ghost@example.com"))
	assert.False(t, ok)

	f.users.failErr = errors.New("db down")
	_, ok = captured(t, a, "Bearer "+legacyToken(t, f, "ghost@example.com"))
	assert.False(t, ok)
}

type stubDecoder struct{ d auth.DecodedToken }

func (s stubDecoder) Decode(string) (auth.DecodedToken, error) { return s.d, nil }

func TestAuthenticator_UsesDecodedVariant(t *testing.T) {
	f := newFixture(t)
	a := NewAuthenticator(stubDecoder{auth.EmbeddedClaims{SubjectID: 7, Subject: "x@example.com", Roles: []string{}}}, f.users, nil, 0)

	id, ok := captured(t, a, "Bearer whatever")
	require.True(t, ok)
	assert.Equal(t, int64(7), id.ID)
	assert.Zero(t, f.users.lookupCount())
}

func TestRequireIdentity(t *testing.T) {
	h := RequireIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/logout-all", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r := httptest.NewRequest(http.MethodPost, "/auth/logout-all", nil)
	r = r.WithContext(WithIdentity(context.Background(), domainauth.Identity{ID: 1}))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}
