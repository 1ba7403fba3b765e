package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/tradeblock/go/internal/trade"
	"github.com/mcdev12/tradeblock/go/internal/trade/outbox"
)

// TradeEvent is the message pushed to WebSocket clients.
type TradeEvent struct {
	ID         string          `json:"id"`
	ProposalID string          `json:"proposal_id"`
	Slug       string          `json:"slug"`
	Type       trade.EventType `json:"type"`
	Status     string          `json:"status"`
	Timestamp  time.Time       `json:"timestamp"`
	Data       json.RawMessage `json:"data"`

	franchises []uuid.UUID
}

// Franchises returns the franchises party to the proposal.
func (e *TradeEvent) Franchises() []uuid.UUID {
	return e.franchises
}

var knownEvents = map[trade.EventType]bool{
	trade.EventProposed:    true,
	trade.EventAccepted:    true,
	trade.EventAllAccepted: true,
	trade.EventWindowReset: true,
	trade.EventExecuted:    true,
	trade.EventRejected:    true,
	trade.EventCanceled:    true,
	trade.EventExpired:     true,
	trade.EventEdited:      true,
}

// DecodeEnvelope turns a relayed outbox message into a TradeEvent.
func DecodeEnvelope(data []byte) (*TradeEvent, error) {
	var env outbox.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal event envelope: %w", err)
	}

	var ev trade.Event
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		return nil, fmt.Errorf("unmarshal trade event: %w", err)
	}
	if !knownEvents[ev.Type] {
		return nil, fmt.Errorf("unknown event type: %s", env.EventType)
	}
	if ev.ProposalID == uuid.Nil {
		return nil, fmt.Errorf("event %s has no proposal id", env.EventID)
	}

	ts := ev.OccurredAt
	if ts.IsZero() {
		ts = env.Timestamp
	}
	return &TradeEvent{
		ID:         env.EventID,
		ProposalID: ev.ProposalID.String(),
		Slug:       ev.Slug,
		Type:       ev.Type,
		Status:     string(ev.Status),
		Timestamp:  ts,
		Data:       env.Payload,
		franchises: ev.Franchises,
	}, nil
}
