package main

import (
	config "github.com/NordCoder/campauth/internal/config/auth-server"
	"github.com/NordCoder/campauth/internal/obs"
	"go.uber.org/zap"
)

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	return obs.NewLogger(cfg.LoggerConfig())
}
