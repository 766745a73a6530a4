package auth

import (
	"net/http"
	"strings"
	"time"
)

const DefaultCookieName = "refreshToken"

type CookieConfig struct {
	Name   string
	Domain string
	Path   string
	Secure bool
	TTL    time.Duration
}

// CookieManager carries the refresh token in an HttpOnly, SameSite=Strict
// cookie scoped to the auth routes.
type CookieManager struct {
	cfg CookieConfig
	now func() time.Time
}

func NewCookieManager(cfg CookieConfig) *CookieManager {
	if cfg.Name == "" {
		cfg.Name = DefaultCookieName
	}
	if cfg.Path == "" {
		cfg.Path = "/auth"
	}
	return &CookieManager{cfg: cfg, now: time.Now}
}

func (m *CookieManager) Set(w http.ResponseWriter, raw string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.Name,
		Value:    raw,
		Path:     m.cfg.Path,
		Domain:   m.cfg.Domain,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(m.cfg.TTL.Seconds()),
		Expires:  m.now().Add(m.cfg.TTL).UTC(),
	})
}

func (m *CookieManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.Name,
		Value:    "",
		Path:     m.cfg.Path,
		Domain:   m.cfg.Domain,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
	})
}

// Read prefers the cookie and falls back to a token sent in the body.
func (m *CookieManager) Read(r *http.Request, fallback string) string {
	if c, err := r.Cookie(m.cfg.Name); err == nil {
		if v := strings.TrimSpace(c.Value); v != "" {
			return v
		}
	}
	return strings.TrimSpace(fallback)
}
