package trade

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/tradeblock/go/internal/models"
	"github.com/shopspring/decimal"
)

// Policy holds the business clocks of the trade block.
type Policy struct {
	AcceptanceWindow time.Duration
	ProposalTTL      time.Duration
	Retention        time.Duration
	TradeDeadline    *time.Time
	SweepBatchSize   int
}

// DefaultPolicy returns the league defaults: a 10 minute window, 7 day
// proposals and 7 day retention.
func DefaultPolicy() Policy {
	return Policy{
		AcceptanceWindow: DefaultAcceptanceWindow,
		ProposalTTL:      7 * 24 * time.Hour,
		Retention:        7 * 24 * time.Hour,
		SweepBatchSize:   500,
	}
}

// PartyRequest is a party as submitted by the creator.
type PartyRequest struct {
	FranchiseID uuid.UUID      `json:"franchise_id"`
	Receives    []models.Asset `json:"receives"`
}

// CreateProposalRequest represents a request to draft a new proposal.
type CreateProposalRequest struct {
	CreatorFranchiseID uuid.UUID      `json:"creator_franchise_id"`
	CreatorPersonID    uuid.UUID      `json:"creator_person_id"`
	Parties            []PartyRequest `json:"parties"`
	Notes              *string        `json:"notes,omitempty"`
	DeadlineOverride   *time.Time     `json:"deadline_override,omitempty"`
	CounterOf          *uuid.UUID     `json:"counter_of,omitempty"`
	// Propose skips the hypothetical stage and opens negotiation immediately.
	Propose bool `json:"propose"`
}

// CashEdit is an admin correction of one cash line.
type CashEdit struct {
	PartyIndex int              `json:"party_index"`
	CashIndex  int              `json:"cash_index"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Season     *int             `json:"season,omitempty"`
}

// ListFilter narrows ListProposals.
type ListFilter struct {
	Status      *models.ProposalStatus
	FranchiseID *uuid.UUID
	Limit       int
}

// AcceptOutcome is the result of an accept call.
type AcceptOutcome struct {
	Proposal *models.Proposal `json:"proposal"`
	// WindowReset is set when earlier acceptances lapsed and were cleared
	// before this one was recorded.
	WindowReset bool   `json:"window_reset"`
	Notice      string `json:"notice,omitempty"`
}

// CommitResult is the result of approving a proposal.
type CommitResult struct {
	Proposal    *models.Proposal    `json:"proposal"`
	Transaction *models.Transaction `json:"transaction"`
}

// SweepResult summarizes one reaper pass.
type SweepResult struct {
	Expired int `json:"expired_count"`
	Deleted int `json:"deleted_count"`
	Failed  int `json:"failed_count"`
}

// AssetClaim is a committed transaction that already moved an asset.
type AssetClaim struct {
	Kind          models.AssetKind
	AssetID       uuid.UUID
	TransactionID uuid.UUID
	ProposalID    uuid.UUID
	ProposalSlug  string
	ExecutedAt    time.Time
}

// WindowExpiredNotice is shown when earlier acceptances lapsed.
const WindowExpiredNotice = "acceptance window expired, please re-accept"
