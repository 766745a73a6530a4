package kafka

import (
	"context"
	"errors"

	"github.com/NordCoder/campauth/internal/domain/auth"
	"github.com/NordCoder/campauth/internal/obs/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var _ auth.EventPublisher = (*AuthEvents)(nil)

var ErrQueueFull = errors.New("auth events queue is full")

var (
	mEventsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_events_published_total",
		Help: "Auth events written to Kafka.",
	}, []string{"kind"})
	mEventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_events_dropped_total",
		Help: "Auth events dropped because the queue was full or retries ran out.",
	}, []string{"reason"})
)

// AuthEvents buffers events in memory and writes them from Serve, so
// Publish never waits on the broker.
type AuthEvents struct {
	p      *Producer
	queue  chan auth.Event
	log    *zap.Logger
	policy retry.Policy
}

func NewAuthEvents(p *Producer, buffer int, log *zap.Logger) *AuthEvents {
	if buffer <= 0 {
		buffer = 1024
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthEvents{
		p:      p,
		queue:  make(chan auth.Event, buffer),
		log:    log.With(zap.String("component", "auth.events")),
		policy: retry.EventsPolicy(log),
	}
}

func (e *AuthEvents) Publish(_ context.Context, ev auth.Event) error {
	select {
	case e.queue <- ev:
		return nil
	default:
		mEventsDropped.WithLabelValues("queue_full").Inc()
		return ErrQueueFull
	}
}

// Serve drains the queue until ctx is done.
func (e *AuthEvents) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-e.queue:
			e.send(ctx, ev)
		}
	}
}

func (e *AuthEvents) String() string { return "auth-events" }

func (e *AuthEvents) Close() error { return e.p.Close() }

func (e *AuthEvents) send(ctx context.Context, ev auth.Event) {
	err := retry.Do(ctx, func(ctx context.Context) error {
		return e.p.PublishJSON(ctx, KeyFromInt64(ev.UserID), ev)
	}, e.policy)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			mEventsDropped.WithLabelValues("publish_failed").Inc()
			e.log.Warn("auth event dropped", zap.String("kind", string(ev.Kind)), zap.Error(err))
		}
		return
	}
	mEventsSent.WithLabelValues(string(ev.Kind)).Inc()
}
