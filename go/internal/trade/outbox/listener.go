package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type ListenerConfig struct {
	DatabaseURL      string // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string
	FallbackInterval time.Duration // how often to poll for missed events
	PingInterval     time.Duration
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		NotifyChannel:    "trade_outbox_events",
		FallbackInterval: 30 * time.Second,
		PingInterval:     90 * time.Second,
	}
}

// Listener wakes the relay on every trade_outbox insert and polls for
// anything the notifications missed.
type Listener struct {
	listener *pq.Listener
	relay    *Relay
	cfg      ListenerConfig
}

func NewListener(relay *Relay, cfg ListenerConfig) (*Listener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for notifications")

	return &Listener{listener: l, relay: relay, cfg: cfg}, nil
}

func (l *Listener) Start(ctx context.Context) error {
	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("ping_interval", l.cfg.PingInterval).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Msg("listener started")

	pingTicker := time.NewTicker(l.cfg.PingInterval)
	fallbackTicker := time.NewTicker(l.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	// catch up on anything written while the relay was down
	if _, err := l.relay.RelayUnsent(ctx); err != nil {
		log.Error().Err(err).Msg("failed to process unsent events")
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("listener shutting down")
			return l.Stop()
		case note := <-l.listener.Notify:
			if note == nil {
				// the connection was re-established; notifications may have been lost
				if _, err := l.relay.RelayUnsent(ctx); err != nil {
					log.Error().Err(err).Msg("failed to process unsent events")
				}
				continue
			}
			id, err := uuid.Parse(note.Extra)
			if err != nil {
				log.Error().Err(err).Str("payload", note.Extra).Msg("invalid event ID in notification")
				continue
			}
			if err := l.relay.RelayByID(ctx, id); err != nil {
				log.Error().Err(err).Str("event_id", id.String()).Msg("failed to handle notification")
			}
		case <-fallbackTicker.C:
			if _, err := l.relay.RelayUnsent(ctx); err != nil {
				log.Error().Err(err).Msg("failed to process unsent events")
			}
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (l *Listener) Stop() error {
	return l.listener.Close()
}
