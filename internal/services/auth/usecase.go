package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/NordCoder/campauth/internal/auth"
	domainauth "github.com/NordCoder/campauth/internal/domain/auth"
	"github.com/NordCoder/campauth/internal/domain/user"
	"github.com/NordCoder/campauth/internal/obs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailExists  = errors.New("email already registered")
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	ErrInvalidInput = errors.New("invalid input")
)

const minPasswordLen = 8

var (
	mLogins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_login_total",
		Help: "Login attempts by result.",
	}, []string{"result"})
	mRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_refresh_total",
		Help: "Refresh attempts by result.",
	}, []string{"result"})
	mRevoked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_refresh_tokens_revoked_total",
		Help: "Refresh tokens revoked by logout-all.",
	})
)

// Transactor runs fn in a single storage transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Config struct {
	BcryptCost int
	Now        func() time.Time
}

type Option func(*Usecase)

func WithLimiter(l domainauth.LoginLimiter) Option { return func(u *Usecase) { u.limiter = l } }

func WithEvents(p domainauth.EventPublisher) Option { return func(u *Usecase) { u.events = p } }

func WithLogger(l *zap.Logger) Option { return func(u *Usecase) { u.log = l } }

type Usecase struct {
	users   user.Repo
	tx      Transactor
	store   *RefreshStore
	issuer  *auth.Issuer
	limiter domainauth.LoginLimiter
	events  domainauth.EventPublisher
	log     *zap.Logger
	cfg     Config

	compare   func(hash, password []byte) error
	dummyHash []byte
}

func NewUseCase(users user.Repo, tx Transactor, store *RefreshStore, issuer *auth.Issuer, cfg Config, opts ...Option) *Usecase {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	u := &Usecase{
		users:   users,
		tx:      tx,
		store:   store,
		issuer:  issuer,
		cfg:     cfg,
		log:     zap.NewNop(),
		compare: bcrypt.CompareHashAndPassword,
	}
	for _, o := range opts {
		o(u)
	}
	if u.log == nil {
		u.log = zap.NewNop()
	}
	// compared on unknown emails, at the same cost as account hashes
	dummy, err := bcrypt.GenerateFromPassword([]byte("campauth-no-such-account"), cfg.BcryptCost)
	if err != nil {
		dummy, _ = bcrypt.GenerateFromPassword([]byte("campauth-no-such-account"), bcrypt.DefaultCost)
	}
	u.dummyHash = dummy
	return u
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         *user.User
}

type RefreshResult struct {
	AccessToken  string
	RefreshToken string
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	District  string
	Phone     string
	Roles     []string
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Login checks the password and opens a session. Unknown email and wrong
// password are indistinguishable to the caller.
func (u *Usecase) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	log := obs.WithTrace(ctx, u.log)

	if u.limiter != nil {
		ok, err := u.limiter.Allow(ctx, email)
		if err != nil {
			log.Warn("login limiter unavailable", zap.Error(err))
		} else if !ok {
			mLogins.WithLabelValues("throttled").Inc()
			return nil, domainauth.ErrTooManyAttempts
		}
	}

	acc, err := u.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			_ = u.compare(u.dummyHash, []byte(password))
			u.loginFailed(ctx, email)
			return nil, domainauth.ErrInvalidCredentials
		}
		mLogins.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if u.compare([]byte(acc.PasswordHash), []byte(password)) != nil {
		u.loginFailed(ctx, email)
		return nil, domainauth.ErrInvalidCredentials
	}

	access, err := u.issuer.IssueFromIdentity(identityOf(acc))
	if err != nil {
		mLogins.WithLabelValues("error").Inc()
		return nil, err
	}
	rt, err := u.store.CreateForIdentity(ctx, acc.ID)
	if err != nil {
		mLogins.WithLabelValues("error").Inc()
		return nil, err
	}

	if u.limiter != nil {
		if err := u.limiter.Reset(ctx, email); err != nil {
			log.Warn("login limiter reset", zap.Error(err))
		}
	}
	mLogins.WithLabelValues("ok").Inc()
	u.publish(ctx, domainauth.Event{Kind: domainauth.EventLogin, UserID: acc.ID, Subject: acc.Email})
	log.Info("login", zap.Int64("user_id", acc.ID))

	return &LoginResult{AccessToken: access, RefreshToken: rt.Token, User: acc}, nil
}

// Refresh mints a new access token from the owner's current roles. The
// refresh token itself is returned unchanged.
func (u *Usecase) Refresh(ctx context.Context, raw string) (*RefreshResult, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, domainauth.ErrNoRefreshProvided
	}
	rt, err := u.store.Verify(ctx, raw)
	if err != nil {
		mRefreshes.WithLabelValues(refreshResult(err)).Inc()
		return nil, err
	}

	acc, err := u.users.GetByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			mRefreshes.WithLabelValues("not_found").Inc()
			return nil, domainauth.ErrRefreshNotFound
		}
		mRefreshes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("lookup owner: %w", err)
	}

	access, err := u.issuer.IssueFromClaims(acc.ID, acc.Email, acc.Roles)
	if err != nil {
		mRefreshes.WithLabelValues("error").Inc()
		return nil, err
	}
	mRefreshes.WithLabelValues("ok").Inc()
	return &RefreshResult{AccessToken: access, RefreshToken: raw}, nil
}

// Logout revokes exactly the given refresh token. Unknown or empty tokens
// are not an error.
func (u *Usecase) Logout(ctx context.Context, raw string) error {
	return u.store.RevokeByToken(ctx, strings.TrimSpace(raw))
}

func (u *Usecase) LogoutAll(ctx context.Context, id domainauth.Identity) (int64, error) {
	n, err := u.store.RevokeAllForIdentity(ctx, id.ID)
	if err != nil {
		return 0, err
	}
	mRevoked.Add(float64(n))
	obs.WithTrace(ctx, u.log).Info("revoked refresh tokens", zap.Int64("user_id", id.ID), zap.Int64("count", n))
	u.publish(ctx, domainauth.Event{Kind: domainauth.EventLogoutAll, UserID: id.ID, Subject: id.Subject, Revoked: n})
	return n, nil
}

func (u *Usecase) Register(ctx context.Context, in RegisterInput) (*user.User, error) {
	email := normalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email", ErrInvalidInput)
	}
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, fmt.Errorf("%w: name", ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLen {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), u.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	roles := in.Roles
	if len(roles) == 0 {
		roles = []string{domainauth.RoleCoordinator}
	}

	acc := &user.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		District:     strings.TrimSpace(in.District),
		Phone:        strings.TrimSpace(in.Phone),
		Roles:        roles,
	}
	err = u.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := u.users.Create(ctx, acc); err != nil {
			return err
		}
		return u.users.AssignRoles(ctx, acc.ID, roles)
	})
	if err != nil {
		if errors.Is(err, user.ErrConflict) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("register: %w", err)
	}
	u.publish(ctx, domainauth.Event{Kind: domainauth.EventRegistered, UserID: acc.ID, Subject: acc.Email})
	return acc, nil
}

func (u *Usecase) Me(ctx context.Context, id int64) (*user.User, error) {
	return u.users.GetByID(ctx, id)
}

func (u *Usecase) loginFailed(ctx context.Context, email string) {
	mLogins.WithLabelValues("invalid").Inc()
	if u.limiter != nil {
		if err := u.limiter.Fail(ctx, email); err != nil {
			obs.WithTrace(ctx, u.log).Warn("login limiter fail", zap.Error(err))
		}
	}
	u.publish(ctx, domainauth.Event{Kind: domainauth.EventLoginFailed, Subject: email})
}

func (u *Usecase) publish(ctx context.Context, e domainauth.Event) {
	if u.events == nil {
		return
	}
	e.At = u.cfg.Now()
	if err := u.events.Publish(ctx, e); err != nil {
		u.log.Warn("auth event not queued", zap.String("kind", string(e.Kind)), zap.Error(err))
	}
}

func identityOf(acc *user.User) domainauth.Identity {
	return domainauth.Identity{ID: acc.ID, Subject: acc.Email, Roles: acc.Roles}
}

func refreshResult(err error) string {
	switch {
	case errors.Is(err, domainauth.ErrRefreshNotFound):
		return "not_found"
	case errors.Is(err, domainauth.ErrRefreshRevoked):
		return "revoked"
	case errors.Is(err, domainauth.ErrRefreshExpired):
		return "expired"
	default:
		return "error"
	}
}
