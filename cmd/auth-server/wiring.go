package main

import (
	"github.com/NordCoder/campauth/internal/auth"
	config "github.com/NordCoder/campauth/internal/config/auth-server"
	domainauth "github.com/NordCoder/campauth/internal/domain/auth"
	pg "github.com/NordCoder/campauth/internal/repository/postgres"
	authsvc "github.com/NordCoder/campauth/internal/services/auth"
	"go.uber.org/zap"
)

type authStack struct {
	store  *authsvc.RefreshStore
	authn  *authsvc.Authenticator
	server *authsvc.Server
}

func buildAuth(cfg *config.Config, logger *zap.Logger, db *pg.DB, limiter domainauth.LoginLimiter, events domainauth.EventPublisher) (*authStack, error) {
	issuer, err := auth.NewIssuer(auth.Config{
		Secret:    []byte(cfg.Auth.JWTSecret),
		AccessTTL: cfg.Auth.AccessTTL,
	})
	if err != nil {
		return nil, err
	}

	users := pg.NewUserRepo(db)
	store := authsvc.NewRefreshStore(pg.NewRefreshTokenRepo(db), cfg.Auth.RefreshTTL, nil)

	opts := []authsvc.Option{authsvc.WithLogger(logger)}
	if limiter != nil {
		opts = append(opts, authsvc.WithLimiter(limiter))
	}
	if events != nil {
		opts = append(opts, authsvc.WithEvents(events))
	}
	uc := authsvc.NewUseCase(users, pg.NewTransactor(db, logger), store, issuer,
		authsvc.Config{BcryptCost: cfg.Auth.BcryptCost}, opts...)

	return &authStack{
		store: store,
		authn: authsvc.NewAuthenticator(issuer, users, logger, cfg.Auth.LegacyCacheTTL),
		server: authsvc.NewServer(uc, authsvc.Opts{
			Logger: logger,
			Cookie: authsvc.CookieConfig{
				Name:   cfg.Auth.CookieName,
				Domain: cfg.Auth.CookieDomain,
				Path:   cfg.Auth.CookiePath,
				Secure: cfg.Auth.CookieSecure,
				TTL:    cfg.Auth.RefreshTTL,
			},
		}),
	}, nil
}
