package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProposalStatus defines where a trade proposal is in its negotiation.
type ProposalStatus string

const (
	ProposalStatusHypothetical ProposalStatus = "hypothetical"
	ProposalStatusPending      ProposalStatus = "pending"
	ProposalStatusAccepted     ProposalStatus = "accepted"
	ProposalStatusRejected     ProposalStatus = "rejected"
	ProposalStatusCanceled     ProposalStatus = "canceled"
	ProposalStatusExpired      ProposalStatus = "expired"
	ProposalStatusExecuted     ProposalStatus = "executed"
)

// IsTerminal reports whether no further transition can leave this status.
func (s ProposalStatus) IsTerminal() bool {
	switch s {
	case ProposalStatusRejected, ProposalStatusCanceled, ProposalStatusExpired, ProposalStatusExecuted:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known status.
func (s ProposalStatus) Valid() bool {
	switch s {
	case ProposalStatusHypothetical, ProposalStatusPending, ProposalStatusAccepted,
		ProposalStatusRejected, ProposalStatusCanceled, ProposalStatusExpired, ProposalStatusExecuted:
		return true
	default:
		return false
	}
}

// AssetKind defines the kind of asset moving in a trade.
type AssetKind string

const (
	AssetKindPlayer AssetKind = "player"
	AssetKindPick   AssetKind = "pick"
	AssetKindCash   AssetKind = "cash"
)

// CashTerms holds the amount and season of a cash asset.
type CashTerms struct {
	Amount decimal.Decimal `json:"amount"`
	Season int             `json:"season"`
}

// Asset is a reference to something a party receives. FromFranchiseID is the
// franchise giving it up (the source franchise for cash).
type Asset struct {
	Kind            AssetKind  `json:"kind"`
	ID              uuid.UUID  `json:"id"`
	FromFranchiseID uuid.UUID  `json:"from_franchise_id"`
	Cash            *CashTerms `json:"cash,omitempty"`
}

// Key identifies an asset within a proposal.
func (a Asset) Key() string {
	return string(a.Kind) + ":" + a.ID.String()
}

// Party is one franchise participating in a proposal along with the bundle it receives.
type Party struct {
	FranchiseID uuid.UUID  `json:"franchise_id"`
	Receives    []Asset    `json:"receives"`
	Accepted    bool       `json:"accepted"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	AcceptedBy  *uuid.UUID `json:"accepted_by,omitempty"`
}

// ClearAcceptance resets the party back to unaccepted.
func (p *Party) ClearAcceptance() {
	p.Accepted = false
	p.AcceptedAt = nil
	p.AcceptedBy = nil
}

// Proposal is a multi-party trade under negotiation.
type Proposal struct {
	ID                    uuid.UUID      `json:"id"`
	Slug                  string         `json:"slug"`
	Status                ProposalStatus `json:"status"`
	CreatedByFranchise    uuid.UUID      `json:"created_by_franchise"`
	CreatedByPerson       uuid.UUID      `json:"created_by_person"`
	CreatedAt             time.Time      `json:"created_at"`
	ExpiresAt             time.Time      `json:"expires_at"`
	AcceptanceWindowStart *time.Time     `json:"acceptance_window_start,omitempty"`
	Parties               []Party        `json:"parties"`
	Notes                 *string        `json:"notes,omitempty"`
	ExecutedTransactionID *uuid.UUID     `json:"executed_transaction_id,omitempty"`
	CounterOf             *uuid.UUID     `json:"counter_of,omitempty"` // proposal this one answers, if any
	Version               int64          `json:"version"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// PartyIndex returns the index of the franchise's party, or -1.
func (p *Proposal) PartyIndex(franchiseID uuid.UUID) int {
	for i := range p.Parties {
		if p.Parties[i].FranchiseID == franchiseID {
			return i
		}
	}
	return -1
}

// AllAccepted reports whether every party has accepted.
func (p *Proposal) AllAccepted() bool {
	for _, party := range p.Parties {
		if !party.Accepted {
			return false
		}
	}
	return len(p.Parties) > 0
}

// AnyAccepted reports whether at least one party has accepted.
func (p *Proposal) AnyAccepted() bool {
	for _, party := range p.Parties {
		if party.Accepted {
			return true
		}
	}
	return false
}

// ResetAcceptances clears every party's acceptance and the acceptance window.
func (p *Proposal) ResetAcceptances() {
	for i := range p.Parties {
		p.Parties[i].ClearAcceptance()
	}
	p.AcceptanceWindowStart = nil
}

// Assets returns every asset in the proposal, paired with the receiving franchise.
func (p *Proposal) Assets() []ReceivedAsset {
	var out []ReceivedAsset
	for _, party := range p.Parties {
		for _, asset := range party.Receives {
			out = append(out, ReceivedAsset{Asset: asset, ToFranchiseID: party.FranchiseID})
		}
	}
	return out
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	c := *p
	c.AcceptanceWindowStart = cloneTime(p.AcceptanceWindowStart)
	c.Notes = cloneString(p.Notes)
	c.ExecutedTransactionID = cloneUUID(p.ExecutedTransactionID)
	c.CounterOf = cloneUUID(p.CounterOf)
	c.Parties = make([]Party, len(p.Parties))
	for i, party := range p.Parties {
		cp := party
		cp.AcceptedAt = cloneTime(party.AcceptedAt)
		cp.AcceptedBy = cloneUUID(party.AcceptedBy)
		cp.Receives = make([]Asset, len(party.Receives))
		for j, asset := range party.Receives {
			ca := asset
			if asset.Cash != nil {
				cash := *asset.Cash
				ca.Cash = &cash
			}
			cp.Receives[j] = ca
		}
		c.Parties[i] = cp
	}
	return &c
}

// ReceivedAsset is an asset together with the franchise receiving it.
type ReceivedAsset struct {
	Asset
	ToFranchiseID uuid.UUID `json:"to_franchise_id"`
}

// Transaction is the permanent ledger record of an executed trade.
type Transaction struct {
	ID           uuid.UUID          `json:"id"`
	ProposalID   uuid.UUID          `json:"proposal_id"`
	ProposalSlug string             `json:"proposal_slug"`
	ApprovedBy   uuid.UUID          `json:"approved_by"`
	ExecutedAt   time.Time          `json:"executed_at"`
	Notes        *string            `json:"notes,omitempty"`
	Assets       []TransactionAsset `json:"assets"`
	// Parties is the accepted negotiation as it stood at approval, kept
	// because the proposal itself is eventually deleted.
	Parties []Party `json:"parties,omitempty"`
}

// TransactionAsset is one asset movement recorded in the ledger.
type TransactionAsset struct {
	Kind            AssetKind  `json:"kind"`
	AssetID         uuid.UUID  `json:"asset_id"`
	FromFranchiseID uuid.UUID  `json:"from_franchise_id"`
	ToFranchiseID   uuid.UUID  `json:"to_franchise_id"`
	Cash            *CashTerms `json:"cash,omitempty"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
