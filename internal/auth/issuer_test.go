package auth

import (
	"testing"
	"time"

	domainauth "github.com/NordCoder/campauth/internal/domain/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestIssuer(t *testing.T) (*Issuer, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	iss, err := NewIssuer(Config{Secret: testSecret, AccessTTL: 15 * time.Minute, Now: c.now})
	require.NoError(t, err)
	return iss, c
}

func legacyToken(t *testing.T, subject string, iat, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"iat": iat.Unix(),
		"exp": exp.Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)
	return tok
}

func TestNewIssuer_RejectsShortSecret(t *testing.T) {
	_, err := NewIssuer(Config{Secret: []byte("short"), AccessTTL: time.Minute})
	require.ErrorIs(t, err, ErrWeakSecret)
}

func TestIssueFromClaims_RoundTrip(t *testing.T) {
	iss, _ := newTestIssuer(t)

	tok, err := iss.IssueFromClaims(42, "anna@example.com", []string{domainauth.RoleCoordinator, domainauth.RoleAdmin})
	require.NoError(t, err)

	d, err := iss.Decode(tok)
	require.NoError(t, err)
	c, ok := d.(EmbeddedClaims)
	require.True(t, ok, "expected embedded claims, got %T", d)
	assert.Equal(t, int64(42), c.SubjectID)
	assert.Equal(t, "anna@example.com", c.Subject)
	assert.Equal(t, []string{domainauth.RoleCoordinator, domainauth.RoleAdmin}, c.Roles)

	id, err := iss.SubjectID(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	name, err := iss.SubjectName(tok)
	require.NoError(t, err)
	assert.Equal(t, "anna@example.com", name)
	roles, err := iss.Roles(tok)
	require.NoError(t, err)
	assert.Len(t, roles, 2)
}

func TestIssueFromIdentity_EmptyRolesStillEmbedded(t *testing.T) {
	iss, _ := newTestIssuer(t)

	tok, err := iss.IssueFromIdentity(domainauth.Identity{ID: 7, Subject: "x@example.com"})
	require.NoError(t, err)
	assert.True(t, iss.HasEmbeddedClaims(tok))

	roles, err := iss.Roles(tok)
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestValidate_ExpiryBoundary(t *testing.T) {
	iss, c := newTestIssuer(t)
	issued := c.t

	tok, err := iss.IssueFromClaims(1, "a@example.com", []string{domainauth.RoleCoordinator})
	require.NoError(t, err)
	exp := issued.Add(15 * time.Minute)

	c.t = exp.Add(-time.Nanosecond)
	assert.True(t, iss.Validate(tok), "must be valid strictly before expiry")

	c.t = exp
	assert.False(t, iss.Validate(tok), "must be invalid at expiry")
	_, err = iss.Decode(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)

	c.t = exp.Add(time.Second)
	assert.False(t, iss.Validate(tok))
}

func TestValidate_RejectsForeignSignature(t *testing.T) {
	iss, c := newTestIssuer(t)
	other, err := NewIssuer(Config{
		Secret:    []byte("ffffffffffffffffffffffffffffffff"),
		AccessTTL: time.Minute,
		Now:       c.now,
	})
	require.NoError(t, err)

	tok, err := other.IssueFromClaims(1, "a@example.com", nil)
	require.NoError(t, err)

	assert.False(t, iss.Validate(tok))
	_, err = iss.Decode(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidate_RejectsGarbageAndNone(t *testing.T) {
	iss, c := newTestIssuer(t)

	assert.False(t, iss.Validate(""))
	assert.False(t, iss.Validate("not.a.jwt"))

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "a@example.com",
		"exp": c.t.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	assert.False(t, iss.Validate(none))
}

func TestDecode_LegacySubjectOnly(t *testing.T) {
	iss, c := newTestIssuer(t)
	tok := legacyToken(t, "old@example.com", c.t, c.t.Add(time.Hour))

	assert.True(t, iss.Validate(tok))
	assert.False(t, iss.HasEmbeddedClaims(tok))

	d, err := iss.Decode(tok)
	require.NoError(t, err)
	so, ok := d.(SubjectOnly)
	require.True(t, ok, "expected subject-only, got %T", d)
	assert.Equal(t, "old@example.com", so.Subject)

	name, err := iss.SubjectName(tok)
	require.NoError(t, err)
	assert.Equal(t, "old@example.com", name)

	_, err = iss.SubjectID(tok)
	assert.ErrorIs(t, err, ErrNoEmbeddedClaims)
	_, err = iss.Roles(tok)
	assert.ErrorIs(t, err, ErrNoEmbeddedClaims)
}

func TestDecode_LegacyExpired(t *testing.T) {
	iss, c := newTestIssuer(t)
	tok := legacyToken(t, "old@example.com", c.t.Add(-2*time.Hour), c.t.Add(-time.Hour))

	_, err := iss.Decode(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestNewRefreshToken_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		tok, err := NewRefreshToken()
		require.NoError(t, err)
		_, dup := seen[tok]
		require.False(t, dup)
		seen[tok] = struct{}{}
	}
	assert.NotEqual(t, HashToken("a"), HashToken("b"))
	assert.Equal(t, HashToken("a"), HashToken("a"))
}
