package db

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type TradeAssetKind string

const (
	TradeAssetKindPlayer TradeAssetKind = "player"
	TradeAssetKindPick   TradeAssetKind = "pick"
	TradeAssetKindCash   TradeAssetKind = "cash"
)

func (e *TradeAssetKind) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = TradeAssetKind(s)
	case string:
		*e = TradeAssetKind(s)
	default:
		return fmt.Errorf("unsupported scan type for TradeAssetKind: %T", src)
	}
	return nil
}

type NullTradeAssetKind struct {
	TradeAssetKind TradeAssetKind `json:"trade_asset_kind"`
	Valid          bool           `json:"valid"` // Valid is true if TradeAssetKind is not NULL
}

// Scan implements the Scanner interface.
func (ns *NullTradeAssetKind) Scan(value interface{}) error {
	if value == nil {
		ns.TradeAssetKind, ns.Valid = "", false
		return nil
	}
	ns.Valid = true
	return ns.TradeAssetKind.Scan(value)
}

// Value implements the driver Valuer interface.
func (ns NullTradeAssetKind) Value() (driver.Value, error) {
	if !ns.Valid {
		return nil, nil
	}
	return string(ns.TradeAssetKind), nil
}

type TradeProposalStatus string

const (
	TradeProposalStatusHypothetical TradeProposalStatus = "hypothetical"
	TradeProposalStatusPending      TradeProposalStatus = "pending"
	TradeProposalStatusAccepted     TradeProposalStatus = "accepted"
	TradeProposalStatusRejected     TradeProposalStatus = "rejected"
	TradeProposalStatusCanceled     TradeProposalStatus = "canceled"
	TradeProposalStatusExpired      TradeProposalStatus = "expired"
	TradeProposalStatusExecuted     TradeProposalStatus = "executed"
)

func (e *TradeProposalStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = TradeProposalStatus(s)
	case string:
		*e = TradeProposalStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for TradeProposalStatus: %T", src)
	}
	return nil
}

type NullTradeProposalStatus struct {
	TradeProposalStatus TradeProposalStatus `json:"trade_proposal_status"`
	Valid               bool                `json:"valid"` // Valid is true if TradeProposalStatus is not NULL
}

// Scan implements the Scanner interface.
func (ns *NullTradeProposalStatus) Scan(value interface{}) error {
	if value == nil {
		ns.TradeProposalStatus, ns.Valid = "", false
		return nil
	}
	ns.Valid = true
	return ns.TradeProposalStatus.Scan(value)
}

// Value implements the driver Valuer interface.
func (ns NullTradeProposalStatus) Value() (driver.Value, error) {
	if !ns.Valid {
		return nil, nil
	}
	return string(ns.TradeProposalStatus), nil
}

type TradeOutbox struct {
	ID         uuid.UUID       `json:"id"`
	ProposalID uuid.UUID       `json:"proposal_id"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
	SentAt     sql.NullTime    `json:"sent_at"`
}

type TradeProposal struct {
	ID                    uuid.UUID           `json:"id"`
	Slug                  string              `json:"slug"`
	Status                TradeProposalStatus `json:"status"`
	CreatedByFranchise    uuid.UUID           `json:"created_by_franchise"`
	CreatedByPerson       uuid.UUID           `json:"created_by_person"`
	CreatedAt             time.Time           `json:"created_at"`
	ExpiresAt             time.Time           `json:"expires_at"`
	AcceptanceWindowStart sql.NullTime        `json:"acceptance_window_start"`
	Parties               json.RawMessage     `json:"parties"`
	Notes                 sql.NullString      `json:"notes"`
	ExecutedTransactionID uuid.NullUUID       `json:"executed_transaction_id"`
	CounterOf             uuid.NullUUID       `json:"counter_of"`
	Version               int64               `json:"version"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

type TradeTransaction struct {
	ID           uuid.UUID             `json:"id"`
	ProposalID   uuid.UUID             `json:"proposal_id"`
	ProposalSlug string                `json:"proposal_slug"`
	ApprovedBy   uuid.UUID             `json:"approved_by"`
	ExecutedAt   time.Time             `json:"executed_at"`
	Notes        sql.NullString        `json:"notes"`
	Details      pqtype.NullRawMessage `json:"details"`
}

type TradeTransactionAsset struct {
	TransactionID   uuid.UUID      `json:"transaction_id"`
	Position        int32          `json:"position"`
	Kind            TradeAssetKind `json:"kind"`
	AssetID         uuid.UUID      `json:"asset_id"`
	FromFranchiseID uuid.UUID      `json:"from_franchise_id"`
	ToFranchiseID   uuid.UUID      `json:"to_franchise_id"`
	CashAmount      sql.NullString `json:"cash_amount"`
	CashSeason      sql.NullInt32  `json:"cash_season"`
}
