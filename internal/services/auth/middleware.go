package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/NordCoder/campauth/internal/auth"
	domainauth "github.com/NordCoder/campauth/internal/domain/auth"
	"github.com/NordCoder/campauth/internal/domain/user"
	"github.com/NordCoder/campauth/internal/obs"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

type ctxKey int

const identityKey ctxKey = 1

func WithIdentity(ctx context.Context, id domainauth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (domainauth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(domainauth.Identity)
	return id, ok
}

var mAuthenticate = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "auth_request_identity_total",
	Help: "Identity resolution outcomes per request path.",
}, []string{"path"})

type TokenDecoder interface {
	Decode(token string) (auth.DecodedToken, error)
}

const legacyCacheSize = 4096

// Authenticator resolves the caller of every request. It never rejects a
// request; failures leave the request anonymous.
type Authenticator struct {
	dec   TokenDecoder
	dir   user.Directory
	log   *zap.Logger
	cache *expirable.LRU[string, domainauth.Identity]
}

// NewAuthenticator builds the middleware. A positive legacyCacheTTL caches
// directory lookups for subject-only tokens for that long.
func NewAuthenticator(dec TokenDecoder, dir user.Directory, log *zap.Logger, legacyCacheTTL time.Duration) *Authenticator {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Authenticator{dec: dec, dir: dir, log: log}
	if legacyCacheTTL > 0 {
		a.cache = expirable.NewLRU[string, domainauth.Identity](legacyCacheSize, nil, legacyCacheTTL)
	}
	return a
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r)
		if token == "" {
			mAuthenticate.WithLabelValues("anonymous").Inc()
			next.ServeHTTP(w, r)
			return
		}
		id, path, ok := a.resolve(r.Context(), token)
		mAuthenticate.WithLabelValues(path).Inc()
		if ok {
			r = r.WithContext(WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) resolve(ctx context.Context, token string) (domainauth.Identity, string, bool) {
	log := obs.WithTrace(ctx, a.log)

	d, err := a.dec.Decode(token)
	if err != nil {
		log.Debug("access token rejected", zap.Error(err))
		return domainauth.Identity{}, "anonymous", false
	}

	switch t := d.(type) {
	case auth.EmbeddedClaims:
		return domainauth.Identity{ID: t.SubjectID, Subject: t.Subject, Roles: t.Roles}, "fast", true
	case auth.SubjectOnly:
		if a.cache != nil {
			if id, ok := a.cache.Get(t.Subject); ok {
				return id, "slow", true
			}
		}
		acc, err := a.dir.GetByEmail(ctx, t.Subject)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				log.Debug("legacy token subject unknown", zap.String("subject", t.Subject))
			} else {
				log.Warn("legacy token lookup failed", zap.Error(err))
			}
			return domainauth.Identity{}, "anonymous", false
		}
		id := identityOf(acc)
		if a.cache != nil {
			a.cache.Add(t.Subject, id)
		}
		return id, "slow", true
	default:
		return domainauth.Identity{}, "anonymous", false
	}
}

// RequireIdentity answers 401 when no identity was resolved for the request.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, domainauth.ErrUnauthenticated.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearer(r *http.Request) string {
	v := r.Header.Get("Authorization")
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}
