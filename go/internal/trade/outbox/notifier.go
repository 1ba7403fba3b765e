package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/tradeblock/go/internal/trade"
	tradedb "github.com/mcdev12/tradeblock/go/internal/trade/db"
	"github.com/rs/zerolog/log"
)

// EventWriter inserts rows into trade_outbox.
type EventWriter interface {
	InsertTradeOutboxEvent(ctx context.Context, arg tradedb.InsertTradeOutboxEventParams) error
}

// Notifier is the trade.Notifier that records events in the outbox table.
// The relay picks them up from there.
type Notifier struct {
	writer EventWriter
}

func NewNotifier(writer EventWriter) *Notifier {
	return &Notifier{writer: writer}
}

var _ trade.Notifier = (*Notifier)(nil)

func (n *Notifier) Notify(ctx context.Context, event trade.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}

	id := uuid.New()
	err = n.writer.InsertTradeOutboxEvent(ctx, tradedb.InsertTradeOutboxEventParams{
		ID:         id,
		ProposalID: event.ProposalID,
		EventType:  string(event.Type),
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("failed to insert %s event: %w", event.Type, err)
	}

	log.Debug().
		Str("event_id", id.String()).
		Str("proposal_id", event.ProposalID.String()).
		Str("event_type", string(event.Type)).
		Msg("outbox event inserted")
	return nil
}
