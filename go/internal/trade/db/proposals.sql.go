package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const createTradeProposal = `-- name: CreateTradeProposal :exec
INSERT INTO trade_proposals (
    id, slug, status, created_by_franchise, created_by_person, created_at,
    expires_at, acceptance_window_start, parties, notes, executed_transaction_id,
    counter_of, version, updated_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
)
`

type CreateTradeProposalParams struct {
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

func (q *Queries) CreateTradeProposal(ctx context.Context, arg CreateTradeProposalParams) error {
	_, err := q.db.ExecContext(ctx, createTradeProposal,
		arg.ID,
		arg.Slug,
		arg.Status,
		arg.CreatedByFranchise,
		arg.CreatedByPerson,
		arg.CreatedAt,
		arg.ExpiresAt,
		arg.AcceptanceWindowStart,
		arg.Parties,
		arg.Notes,
		arg.ExecutedTransactionID,
		arg.CounterOf,
		arg.Version,
		arg.UpdatedAt,
	)
	return err
}

const deletePendingTradeProposalsExpiredBefore = `-- name: DeletePendingTradeProposalsExpiredBefore :execrows
DELETE FROM trade_proposals
WHERE status = 'pending' AND expires_at < $1
`

func (q *Queries) DeletePendingTradeProposalsExpiredBefore(ctx context.Context, expiresAt time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, deletePendingTradeProposalsExpiredBefore, expiresAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteTradeProposalsCreatedBefore = `-- name: DeleteTradeProposalsCreatedBefore :execrows
DELETE FROM trade_proposals
WHERE status::text = ANY($1::text[])
  AND created_at < $2
`

type DeleteTradeProposalsCreatedBeforeParams struct {
	Statuses []string  `json:"statuses"`
	Cutoff   time.Time `json:"cutoff"`
}

func (q *Queries) DeleteTradeProposalsCreatedBefore(ctx context.Context, arg DeleteTradeProposalsCreatedBeforeParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTradeProposalsCreatedBefore, pq.Array(arg.Statuses), arg.Cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getTradeProposal = `-- name: GetTradeProposal :one
SELECT id, slug, status, created_by_franchise, created_by_person, created_at, expires_at, acceptance_window_start, parties, notes, executed_transaction_id, counter_of, version, updated_at FROM trade_proposals
WHERE id = $1
`

func (q *Queries) GetTradeProposal(ctx context.Context, id uuid.UUID) (TradeProposal, error) {
	row := q.db.QueryRowContext(ctx, getTradeProposal, id)
	var i TradeProposal
	err := row.Scan(
		&i.ID,
		&i.Slug,
		&i.Status,
		&i.CreatedByFranchise,
		&i.CreatedByPerson,
		&i.CreatedAt,
		&i.ExpiresAt,
		&i.AcceptanceWindowStart,
		&i.Parties,
		&i.Notes,
		&i.ExecutedTransactionID,
		&i.CounterOf,
		&i.Version,
		&i.UpdatedAt,
	)
	return i, err
}

const getTradeProposalBySlug = `-- name: GetTradeProposalBySlug :one
SELECT id, slug, status, created_by_franchise, created_by_person, created_at, expires_at, acceptance_window_start, parties, notes, executed_transaction_id, counter_of, version, updated_at FROM trade_proposals
WHERE slug = $1
`

func (q *Queries) GetTradeProposalBySlug(ctx context.Context, slug string) (TradeProposal, error) {
	row := q.db.QueryRowContext(ctx, getTradeProposalBySlug, slug)
	var i TradeProposal
	err := row.Scan(
		&i.ID,
		&i.Slug,
		&i.Status,
		&i.CreatedByFranchise,
		&i.CreatedByPerson,
		&i.CreatedAt,
		&i.ExpiresAt,
		&i.AcceptanceWindowStart,
		&i.Parties,
		&i.Notes,
		&i.ExecutedTransactionID,
		&i.CounterOf,
		&i.Version,
		&i.UpdatedAt,
	)
	return i, err
}

const listPendingTradeProposalsExpiredBefore = `-- name: ListPendingTradeProposalsExpiredBefore :many
SELECT id, slug, status, created_by_franchise, created_by_person, created_at, expires_at, acceptance_window_start, parties, notes, executed_transaction_id, counter_of, version, updated_at FROM trade_proposals
WHERE status = 'pending' AND expires_at < $1
ORDER BY expires_at
LIMIT $2
`

type ListPendingTradeProposalsExpiredBeforeParams struct {
	ExpiresAt time.Time `json:"expires_at"`
	Limit     int32     `json:"limit"`
}

func (q *Queries) ListPendingTradeProposalsExpiredBefore(ctx context.Context, arg ListPendingTradeProposalsExpiredBeforeParams) ([]TradeProposal, error) {
	rows, err := q.db.QueryContext(ctx, listPendingTradeProposalsExpiredBefore, arg.ExpiresAt, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TradeProposal
	for rows.Next() {
		var i TradeProposal
		if err := rows.Scan(
			&i.ID,
			&i.Slug,
			&i.Status,
			&i.CreatedByFranchise,
			&i.CreatedByPerson,
			&i.CreatedAt,
			&i.ExpiresAt,
			&i.AcceptanceWindowStart,
			&i.Parties,
			&i.Notes,
			&i.ExecutedTransactionID,
			&i.CounterOf,
			&i.Version,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listTradeProposals = `-- name: ListTradeProposals :many
SELECT id, slug, status, created_by_franchise, created_by_person, created_at, expires_at, acceptance_window_start, parties, notes, executed_transaction_id, counter_of, version, updated_at FROM trade_proposals
WHERE ($1::text IS NULL OR status::text = $1::text)
  AND ($2::text IS NULL
       OR parties @> jsonb_build_array(jsonb_build_object('franchise_id', $2::text)))
ORDER BY created_at DESC
LIMIT $3::int
`

type ListTradeProposalsParams struct {
	Status      sql.NullString `json:"status"`
	FranchiseID sql.NullString `json:"franchise_id"`
	LimitCount  int32          `json:"limit_count"`
}

func (q *Queries) ListTradeProposals(ctx context.Context, arg ListTradeProposalsParams) ([]TradeProposal, error) {
	rows, err := q.db.QueryContext(ctx, listTradeProposals, arg.Status, arg.FranchiseID, arg.LimitCount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TradeProposal
	for rows.Next() {
		var i TradeProposal
		if err := rows.Scan(
			&i.ID,
			&i.Slug,
			&i.Status,
			&i.CreatedByFranchise,
			&i.CreatedByPerson,
			&i.CreatedAt,
			&i.ExpiresAt,
			&i.AcceptanceWindowStart,
			&i.Parties,
			&i.Notes,
			&i.ExecutedTransactionID,
			&i.CounterOf,
			&i.Version,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateTradeProposal = `-- name: UpdateTradeProposal :execrows
UPDATE trade_proposals
SET status = $3,
    acceptance_window_start = $4,
    parties = $5,
    notes = $6,
    executed_transaction_id = $7,
    updated_at = $8,
    version = version + 1
WHERE id = $1 AND version = $2
`

type UpdateTradeProposalParams struct {
	ID                    uuid.UUID           `json:"id"`
	Version               int64               `json:"version"`
	Status                TradeProposalStatus `json:"status"`
	AcceptanceWindowStart sql.NullTime        `json:"acceptance_window_start"`
	Parties               json.RawMessage     `json:"parties"`
	Notes                 sql.NullString      `json:"notes"`
	ExecutedTransactionID uuid.NullUUID       `json:"executed_transaction_id"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

func (q *Queries) UpdateTradeProposal(ctx context.Context, arg UpdateTradeProposalParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateTradeProposal,
		arg.ID,
		arg.Version,
		arg.Status,
		arg.AcceptanceWindowStart,
		arg.Parties,
		arg.Notes,
		arg.ExecutedTransactionID,
		arg.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
