package cleanup

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/thejerf/abtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// TickerID identifies the cleanup ticker on a manual clock.
const TickerID = 1

const DefaultInterval = 24 * time.Hour

// Purger removes refresh credentials that are revoked or past expiry.
type Purger interface {
	CleanupExpiredAndRevoked(ctx context.Context, now time.Time) (int64, error)
}

var (
	mDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_cleanup_deleted_total", Help: "Refresh tokens deleted by cleanup",
	})
	mErr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_cleanup_errors_total", Help: "Failed cleanup runs",
	})
	mLoopDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "auth_cleanup_duration_seconds", Help: "Cleanup run duration",
		Buckets: prometheus.DefBuckets,
	})
)

type Runner struct {
	log      *zap.Logger
	purger   Purger
	interval time.Duration
	clock    abtime.AbstractTime
}

// New builds a runner. A nil clock means wall time.
func New(log *zap.Logger, p Purger, interval time.Duration, clock abtime.AbstractTime) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	return &Runner{log: log, purger: p, interval: interval, clock: clock}
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	now := r.clock.Now()

	ctx, span := otel.Tracer("cleanup").Start(ctx, "cleanup.refresh_tokens")
	defer span.End()

	n, err := r.purger.CleanupExpiredAndRevoked(ctx, now)
	if err != nil {
		mErr.Inc()
		span.RecordError(err)
		r.log.Warn("refresh token cleanup failed", zap.Error(err))
	} else {
		mDeleted.Add(float64(n))
		span.SetAttributes(attribute.Int64("cleanup.deleted", n))
		r.log.Info("cleaned up expired/revoked refresh tokens", zap.Int64("count", n))
	}
	mLoopDur.Observe(time.Since(start).Seconds())
}

// Serve runs one pass immediately and then one per interval until ctx is
// done.
func (r *Runner) Serve(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.interval, TickerID)
	defer ticker.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Channel():
			r.tick(ctx)
		}
	}
}

func (r *Runner) String() string { return "refresh-token-cleanup" }
