package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/NordCoder/campauth/internal/auth"
	domainauth "github.com/NordCoder/campauth/internal/domain/auth"
	"github.com/NordCoder/campauth/internal/domain/user"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeUsers struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]*user.User
	lookups int
	failErr error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[int64]*user.User{}}
}

func (f *fakeUsers) add(t *testing.T, email, password string, roles ...string) *user.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &user.User{Email: email, PasswordHash: string(hash), FirstName: "T", LastName: "U"}
	require.NoError(t, f.Create(context.Background(), u))
	require.NoError(t, f.AssignRoles(context.Background(), u.ID, roles))
	return u
}

func (f *fakeUsers) setRoles(id int64, roles ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id].Roles = roles
}

func (f *fakeUsers) Create(_ context.Context, u *user.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.byID {
		if x.Email == u.Email {
			return user.ErrConflict
		}
	}
	f.nextID++
	u.ID = f.nextID
	cp := *u
	cp.Roles = nil
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUsers) AssignRoles(_ context.Context, id int64, roles []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return user.ErrNotFound
	}
	u.Roles = append(u.Roles, roles...)
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.failErr != nil {
		return nil, f.failErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.failErr != nil {
		return nil, f.failErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (f *fakeUsers) lookupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}

// fakeTokens applies each mutation under one lock, mirroring the single
// statements of the SQL repository.
type fakeTokens struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*domainauth.RefreshToken
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{rows: map[string]*domainauth.RefreshToken{}}
}

func (f *fakeTokens) Create(_ context.Context, t *domainauth.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.rows[t.TokenHash]; dup {
		return auth.ErrTokenInvalid
	}
	f.nextID++
	t.ID = f.nextID
	cp := *t
	cp.Token = ""
	f.rows[t.TokenHash] = &cp
	return nil
}

func (f *fakeTokens) FindByHash(_ context.Context, h string) (*domainauth.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[h]
	if !ok {
		return nil, domainauth.ErrRefreshNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTokens) RevokeByHash(_ context.Context, h string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.rows[h]; ok {
		t.Revoked = true
	}
	return nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, t := range f.rows {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			n++
		}
	}
	return n, nil
}

func (f *fakeTokens) DeleteExpiredAndRevoked(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for h, t := range f.rows {
		if t.Revoked || t.ExpiresAt.Before(now) {
			delete(f.rows, h)
			n++
		}
	}
	return n, nil
}

func (f *fakeTokens) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *fakeTokens) byRaw(raw string) *domainauth.RefreshToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[auth.HashToken(raw)]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

type fakeTx struct{ calls int }

func (f *fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type fakeLimiter struct {
	mu     sync.Mutex
	max    int
	failed map[string]int
}

func newFakeLimiter(max int) *fakeLimiter {
	return &fakeLimiter{max: max, failed: map[string]int{}}
}

func (l *fakeLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failed[key] < l.max, nil
}

func (l *fakeLimiter) Fail(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed[key]++
	return nil
}

func (l *fakeLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failed, key)
	return nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []domainauth.Event
}

func (r *recordingEvents) Publish(_ context.Context, e domainauth.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingEvents) kinds() []domainauth.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domainauth.EventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

type fixture struct {
	clock  *testClock
	users  *fakeUsers
	tokens *fakeTokens
	store  *RefreshStore
	issuer *auth.Issuer
	events *recordingEvents
	uc     *Usecase
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		clock:  newTestClock(),
		users:  newFakeUsers(),
		tokens: newFakeTokens(),
		events: &recordingEvents{},
	}
	iss, err := auth.NewIssuer(auth.Config{Secret: testSecret, AccessTTL: 15 * time.Minute, Now: f.clock.Now})
	require.NoError(t, err)
	f.issuer = iss
	f.store = NewRefreshStore(f.tokens, 7*24*time.Hour, f.clock.Now)
	opts = append([]Option{WithEvents(f.events)}, opts...)
	f.uc = NewUseCase(f.users, &fakeTx{}, f.store, iss, Config{BcryptCost: bcrypt.MinCost, Now: f.clock.Now}, opts...)
	return f
}
