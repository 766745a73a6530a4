package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// EventsPolicy is used when writing auth events to the broker. Events are
// best effort, so the budget stays short.
func EventsPolicy(log *zap.Logger) Policy {
	return Policy{
		Name:     "auth_events",
		Attempts: 4,
		Backoff:  ExpoJitter{Base: 100 * time.Millisecond, Max: 2 * time.Second, Jitter: 0.2},
		Retryable: func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Debug("auth event retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Warn("auth event retries exhausted", zap.Error(err))
			}
		},
	}
}
