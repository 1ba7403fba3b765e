package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ErrPublisherUnavailable is returned while the breaker is open.
var ErrPublisherUnavailable = errors.New("publisher unavailable")

type BreakerConfig struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:                "trade-outbox-publisher",
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		HalfOpenRequests:    1,
	}
}

// BreakerPublisher stops calling a failing publisher for a while, leaving
// events in the outbox for the fallback poll.
type BreakerPublisher struct {
	next    Publisher
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerPublisher(next Publisher, cfg BreakerConfig) *BreakerPublisher {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("publisher circuit breaker changed state")
		},
	}
	return &BreakerPublisher{next: next, breaker: gobreaker.NewCircuitBreaker(settings)}
}

func (p *BreakerPublisher) Publish(ctx context.Context, event OutboxEvent) error {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.next.Publish(ctx, event)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrPublisherUnavailable, err)
	}
	return err
}

// State reports the breaker state for health checks.
func (p *BreakerPublisher) State() string {
	return p.breaker.State().String()
}
