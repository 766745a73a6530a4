package main

import (
	"context"

	config "github.com/NordCoder/campauth/internal/config/auth-server"
	domainauth "github.com/NordCoder/campauth/internal/domain/auth"
	kafkarepo "github.com/NordCoder/campauth/internal/repository/kafka"
	redisrepo "github.com/NordCoder/campauth/internal/repository/redis"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// initLimiter connects to redis when login throttling is enabled. The
// returned client is nil otherwise.
func initLimiter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domainauth.LoginLimiter, *goredis.Client, error) {
	if !cfg.Redis.Enable {
		return nil, nil, nil
	}
	rdb, err := redisrepo.NewClient(ctx, cfg.Redis.Client)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("login throttling enabled",
		zap.Int("max_attempts", cfg.Redis.LoginMaxAttempts),
		zap.Duration("window", cfg.Redis.LoginWindow))
	return redisrepo.NewLoginLimiter(rdb, redisrepo.LimiterConfig{
		MaxAttempts: cfg.Redis.LoginMaxAttempts,
		Window:      cfg.Redis.LoginWindow,
	}), rdb, nil
}

func initEvents(ctx context.Context, cfg *config.Config, logger *zap.Logger) *kafkarepo.AuthEvents {
	if !cfg.Kafka.Enable {
		return nil
	}
	logger.Info("auth events enabled", zap.Strings("brokers", cfg.Kafka.Client.Brokers), zap.String("topic", cfg.Kafka.Client.Topic))
	return kafkarepo.BootstrapAuthEvents(ctx, cfg.Kafka.Client, logger)
}
