package main

import (
	"context"

	config "github.com/NordCoder/campauth/internal/config/auth-server"
	pg "github.com/NordCoder/campauth/internal/repository/postgres"
	"go.uber.org/zap"
)

type dbHandle = *pg.DB

func initDB(ctx context.Context, cfg *config.Config, logger *zap.Logger) (dbHandle, error) {
	db, err := pg.NewDB(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	logger.Info("postgres connected", zap.Int32("max_conns", cfg.DB.MaxConns))
	return db, nil
}
