package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	Buffer  int      `mapstructure:"buffer"`
}

// BootstrapAuthEvents makes sure the topic exists and returns a publisher
// that still has to be served by the caller.
func BootstrapAuthEvents(ctx context.Context, cfg Config, logger *zap.Logger) *AuthEvents {
	_ = EnsureTopic(ctx, cfg.Brokers, TopicSpec{
		Name:              cfg.Topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
		MaxWait:           5 * time.Second,
	}, logger)

	return NewAuthEvents(NewProducer(cfg.Brokers, cfg.Topic).WithLogger(logger), cfg.Buffer, logger)
}
