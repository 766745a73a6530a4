package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NordCoder/campauth/internal/domain/auth"
	goredis "github.com/redis/go-redis/v9"
)

var _ auth.LoginLimiter = (*LoginLimiter)(nil)

var ErrUnavailable = errors.New("redis unavailable")

type LimiterConfig struct {
	MaxAttempts int
	Window      time.Duration
	KeyPrefix   string
}

// LoginLimiter counts failed logins per email in fixed windows.
type LoginLimiter struct {
	rdb goredis.UniversalClient
	cfg LimiterConfig
}

func NewLoginLimiter(rdb goredis.UniversalClient, cfg LimiterConfig) *LoginLimiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "campauth:login:"
	}
	return &LoginLimiter{rdb: rdb, cfg: cfg}
}

func (l *LoginLimiter) Allow(ctx context.Context, key string) (bool, error) {
	n, err := l.rdb.Get(ctx, l.key(key)).Int64()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return true, nil
		}
		return true, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n < int64(l.cfg.MaxAttempts), nil
}

// failScript counts a failure and starts the window on the first one. A
// counter found without a TTL gets one as well.
var failScript = goredis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 or redis.call('PTTL', KEYS[1]) < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

func (l *LoginLimiter) Fail(ctx context.Context, key string) error {
	err := failScript.Run(ctx, l.rdb, []string{l.key(key)}, l.cfg.Window.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (l *LoginLimiter) Reset(ctx context.Context, key string) error {
	if err := l.rdb.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (l *LoginLimiter) key(k string) string {
	return l.cfg.KeyPrefix + strings.ToLower(strings.TrimSpace(k))
}
