package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	tradedb "github.com/mcdev12/tradeblock/go/internal/trade/db"
	"github.com/rs/zerolog/log"
)

// Queries defines the outbox queries the relay runs.
type Queries interface {
	FetchTradeOutboxByID(ctx context.Context, id uuid.UUID) (tradedb.FetchTradeOutboxByIDRow, error)
	FetchUnsentTradeOutbox(ctx context.Context, limit int32) ([]tradedb.FetchUnsentTradeOutboxRow, error)
	MarkTradeOutboxSent(ctx context.Context, id uuid.UUID) error
}

type RelayConfig struct {
	MaxRetries int
	RetryDelay time.Duration
	BatchSize  int32
}

func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		MaxRetries: 5,
		RetryDelay: 200 * time.Millisecond,
		BatchSize:  100,
	}
}

// Relay moves outbox rows to the publisher and marks them sent.
type Relay struct {
	queries   Queries
	publisher Publisher
	cfg       RelayConfig
}

func NewRelay(queries Queries, publisher Publisher, cfg RelayConfig) *Relay {
	return &Relay{queries: queries, publisher: publisher, cfg: cfg}
}

// RelayByID publishes a single event named by a notification. An event that
// is already sent is skipped.
func (r *Relay) RelayByID(ctx context.Context, id uuid.UUID) error {
	row, err := r.queries.FetchTradeOutboxByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug().Str("event_id", id.String()).Msg("outbox event already sent")
			return nil
		}
		return fmt.Errorf("failed to fetch outbox event: %w", err)
	}

	event := OutboxEvent{
		ID:         row.ID,
		ProposalID: row.ProposalID,
		EventType:  row.EventType,
		Payload:    row.Payload,
	}
	if err := r.deliver(ctx, event); err != nil {
		return err
	}

	log.Info().
		Str("event_id", id.String()).
		Str("event_type", event.EventType).
		Msg("published and marked event as sent")
	return nil
}

// RelayUnsent publishes one batch of events that were missed by notifications.
// It returns how many were sent.
func (r *Relay) RelayUnsent(ctx context.Context) (int, error) {
	unsent, err := r.queries.FetchUnsentTradeOutbox(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}

	sent := 0
	for _, row := range unsent {
		event := OutboxEvent{
			ID:         row.ID,
			ProposalID: row.ProposalID,
			EventType:  row.EventType,
			Payload:    row.Payload,
		}
		if err := r.deliver(ctx, event); err != nil {
			log.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to relay event")
			continue
		}
		sent++
	}

	if len(unsent) > 0 {
		log.Info().
			Int("sent", sent).
			Int("total", len(unsent)).
			Msg("relayed unsent outbox events")
	}
	return sent, nil
}

func (r *Relay) deliver(ctx context.Context, event OutboxEvent) error {
	if err := r.publishWithRetry(ctx, event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	if err := r.queries.MarkTradeOutboxSent(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to mark outbox event %s as sent: %w", event.ID, err)
	}
	return nil
}

// publishWithRetry publishes with a linearly growing delay between attempts.
func (r *Relay) publishWithRetry(ctx context.Context, event OutboxEvent) error {
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := r.publisher.Publish(ctx, event); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("event_id", event.ID.String()).
				Msg("failed to publish, retrying")
			continue
		}

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("event_id", event.ID.String()).
				Msg("publish succeeded after retry")
		}
		return nil
	}

	return fmt.Errorf("publish failed after %d attempts: %w", r.cfg.MaxRetries+1, lastErr)
}
