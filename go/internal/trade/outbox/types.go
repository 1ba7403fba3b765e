package outbox

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// OutboxEvent is a trade event waiting in trade_outbox to be relayed.
type OutboxEvent struct {
	ID         uuid.UUID       `json:"id"`
	ProposalID uuid.UUID       `json:"proposal_id"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher delivers an outbox event to the message bus.
type Publisher interface {
	Publish(ctx context.Context, event OutboxEvent) error
}
