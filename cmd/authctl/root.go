package main

import (
	"context"
	"os"
	"time"

	"github.com/NordCoder/campauth/internal/auth"
	config "github.com/NordCoder/campauth/internal/config/auth-server"
	"github.com/NordCoder/campauth/internal/domain/user"
	"github.com/NordCoder/campauth/internal/obs"
	pg "github.com/NordCoder/campauth/internal/repository/postgres"
	authsvc "github.com/NordCoder/campauth/internal/services/auth"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type registrar interface {
	Register(ctx context.Context, in authsvc.RegisterInput) (*user.User, error)
}

type sessionAdmin interface {
	RevokeAllForIdentity(ctx context.Context, userID int64) (int64, error)
	CleanupExpiredAndRevoked(ctx context.Context, now time.Time) (int64, error)
}

type deps struct {
	users    registrar
	sessions sessionAdmin
	log      *zap.Logger
	close    func()
}

type opener func(ctx context.Context, cfgPath string) (*deps, error)

// openDeps builds the same repositories and services the server uses.
func openDeps(ctx context.Context, cfgPath string) (*deps, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	log, err := obs.NewLogger(cfg.LoggerConfig())
	if err != nil {
		return nil, err
	}
	db, err := pg.NewDB(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	issuer, err := auth.NewIssuer(auth.Config{Secret: []byte(cfg.Auth.JWTSecret), AccessTTL: cfg.Auth.AccessTTL})
	if err != nil {
		db.Close()
		return nil, err
	}

	store := authsvc.NewRefreshStore(pg.NewRefreshTokenRepo(db), cfg.Auth.RefreshTTL, nil)
	uc := authsvc.NewUseCase(pg.NewUserRepo(db), pg.NewTransactor(db, log), store, issuer,
		authsvc.Config{BcryptCost: cfg.Auth.BcryptCost}, authsvc.WithLogger(log))

	return &deps{
		users:    uc,
		sessions: store,
		log:      log,
		close: func() {
			db.Close()
			_ = log.Sync()
		},
	}, nil
}

func newRootCmd(open opener) *cobra.Command {
	var (
		cfgPath string
		d       *deps
	)

	root := &cobra.Command{
		Use:           "authctl",
		Short:         "campauth administration",
		Long:          `authctl manages coordinator accounts and refresh sessions directly against the campauth database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			d, err = open(cmd.Context(), cfgPath)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if d != nil && d.close != nil {
				d.close()
			}
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("CONFIG_PATH"), "path to yaml config (also CONFIG_PATH)")

	get := func() *deps { return d }
	root.AddCommand(newUsersCmd(get), newSessionsCmd(get))
	return root
}
