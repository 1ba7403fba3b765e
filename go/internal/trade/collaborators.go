package trade

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/tradeblock/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrAssetNotFound is returned by an AssetResolver for unknown references.
var ErrAssetNotFound = errors.New("asset not found")

// AssetDescriptor is the canonical record behind an asset reference.
type AssetDescriptor struct {
	Kind             models.AssetKind `json:"kind"`
	ID               uuid.UUID        `json:"id"`
	OwnerFranchiseID uuid.UUID        `json:"owner_franchise_id"`
	Label            string           `json:"label,omitempty"`
}

// AssetResolver resolves player, pick and cash references.
type AssetResolver interface {
	ResolveAsset(ctx context.Context, asset models.Asset) (*AssetDescriptor, error)
}

// LegalityValidator checks cap space, roster limits and similar league rules.
// A non-empty violation list means the trade is not legal.
type LegalityValidator interface {
	ValidateTrade(ctx context.Context, parties []models.Party) ([]string, error)
}

// Authorizer answers who may act for a franchise and who administers the league.
type Authorizer interface {
	IsRepresentative(ctx context.Context, franchiseID, personID uuid.UUID) (bool, error)
	IsAdmin(ctx context.Context, personID uuid.UUID) (bool, error)
}

// EventType names a proposal state change sent to the Notifier.
type EventType string

const (
	EventProposed    EventType = "proposed"
	EventAccepted    EventType = "accepted"
	EventAllAccepted EventType = "all_accepted"
	EventWindowReset EventType = "window_reset"
	EventExecuted    EventType = "executed"
	EventRejected    EventType = "rejected"
	EventCanceled    EventType = "canceled"
	EventExpired     EventType = "expired"
	EventEdited      EventType = "edited"
)

// Event describes a state change of a proposal.
type Event struct {
	Type          EventType             `json:"type"`
	ProposalID    uuid.UUID             `json:"proposal_id"`
	Slug          string                `json:"slug"`
	Status        models.ProposalStatus `json:"status"`
	Franchises    []uuid.UUID           `json:"franchises"`
	ActorID       *uuid.UUID            `json:"actor_id,omitempty"`
	FranchiseID   *uuid.UUID            `json:"franchise_id,omitempty"`
	TransactionID *uuid.UUID            `json:"transaction_id,omitempty"`
	OccurredAt    time.Time             `json:"occurred_at"`
}

// Notifier is told about state changes. Failures never roll a change back.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// AllowAllValidator accepts every trade shape.
type AllowAllValidator struct{}

func (AllowAllValidator) ValidateTrade(ctx context.Context, parties []models.Party) ([]string, error) {
	return nil, nil
}

// LogNotifier writes events to the log only.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, event Event) error {
	log.Info().
		Str("event_type", string(event.Type)).
		Str("proposal_id", event.ProposalID.String()).
		Str("slug", event.Slug).
		Str("status", string(event.Status)).
		Msg("trade event")
	return nil
}
