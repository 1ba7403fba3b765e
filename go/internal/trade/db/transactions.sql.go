package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

const findTradeAssetClaims = `-- name: FindTradeAssetClaims :many
SELECT a.kind, a.asset_id, t.id AS transaction_id, t.proposal_id, t.proposal_slug, t.executed_at
FROM trade_transaction_assets a
JOIN trade_transactions t ON t.id = a.transaction_id
WHERE a.asset_id = ANY($1::uuid[])
  AND a.kind <> 'cash'
  AND t.executed_at > $2
  AND t.proposal_id <> $3
ORDER BY t.executed_at
`

type FindTradeAssetClaimsParams struct {
	AssetIds          []uuid.UUID `json:"asset_ids"`
	Since             time.Time   `json:"since"`
	ExcludeProposalID uuid.UUID   `json:"exclude_proposal_id"`
}

type FindTradeAssetClaimsRow struct {
	Kind          TradeAssetKind `json:"kind"`
	AssetID       uuid.UUID      `json:"asset_id"`
	TransactionID uuid.UUID      `json:"transaction_id"`
	ProposalID    uuid.UUID      `json:"proposal_id"`
	ProposalSlug  string         `json:"proposal_slug"`
	ExecutedAt    time.Time      `json:"executed_at"`
}

func (q *Queries) FindTradeAssetClaims(ctx context.Context, arg FindTradeAssetClaimsParams) ([]FindTradeAssetClaimsRow, error) {
	rows, err := q.db.QueryContext(ctx, findTradeAssetClaims, pq.Array(arg.AssetIds), arg.Since, arg.ExcludeProposalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FindTradeAssetClaimsRow
	for rows.Next() {
		var i FindTradeAssetClaimsRow
		if err := rows.Scan(
			&i.Kind,
			&i.AssetID,
			&i.TransactionID,
			&i.ProposalID,
			&i.ProposalSlug,
			&i.ExecutedAt,
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

const getTradeTransaction = `-- name: GetTradeTransaction :one
SELECT id, proposal_id, proposal_slug, approved_by, executed_at, notes, details FROM trade_transactions
WHERE id = $1
`

func (q *Queries) GetTradeTransaction(ctx context.Context, id uuid.UUID) (TradeTransaction, error) {
	row := q.db.QueryRowContext(ctx, getTradeTransaction, id)
	var i TradeTransaction
	err := row.Scan(
		&i.ID,
		&i.ProposalID,
		&i.ProposalSlug,
		&i.ApprovedBy,
		&i.ExecutedAt,
		&i.Notes,
		&i.Details,
	)
	return i, err
}

const getTradeTransactionByProposal = `-- name: GetTradeTransactionByProposal :one
SELECT id, proposal_id, proposal_slug, approved_by, executed_at, notes, details FROM trade_transactions
WHERE proposal_id = $1
`

func (q *Queries) GetTradeTransactionByProposal(ctx context.Context, proposalID uuid.UUID) (TradeTransaction, error) {
	row := q.db.QueryRowContext(ctx, getTradeTransactionByProposal, proposalID)
	var i TradeTransaction
	err := row.Scan(
		&i.ID,
		&i.ProposalID,
		&i.ProposalSlug,
		&i.ApprovedBy,
		&i.ExecutedAt,
		&i.Notes,
		&i.Details,
	)
	return i, err
}

const insertTradeTransaction = `-- name: InsertTradeTransaction :exec
INSERT INTO trade_transactions (
    id, proposal_id, proposal_slug, approved_by, executed_at, notes, details
) VALUES (
    $1, $2, $3, $4, $5, $6, $7
)
`

type InsertTradeTransactionParams struct {
	ID           uuid.UUID             `json:"id"`
	ProposalID   uuid.UUID             `json:"proposal_id"`
	ProposalSlug string                `json:"proposal_slug"`
	ApprovedBy   uuid.UUID             `json:"approved_by"`
	ExecutedAt   time.Time             `json:"executed_at"`
	Notes        sql.NullString        `json:"notes"`
	Details      pqtype.NullRawMessage `json:"details"`
}

func (q *Queries) InsertTradeTransaction(ctx context.Context, arg InsertTradeTransactionParams) error {
	_, err := q.db.ExecContext(ctx, insertTradeTransaction,
		arg.ID,
		arg.ProposalID,
		arg.ProposalSlug,
		arg.ApprovedBy,
		arg.ExecutedAt,
		arg.Notes,
		arg.Details,
	)
	return err
}

const insertTradeTransactionAsset = `-- name: InsertTradeTransactionAsset :exec
INSERT INTO trade_transaction_assets (
    transaction_id, position, kind, asset_id, from_franchise_id, to_franchise_id, cash_amount, cash_season
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8
)
`

type InsertTradeTransactionAssetParams struct {
	TransactionID   uuid.UUID      `json:"transaction_id"`
	Position        int32          `json:"position"`
	Kind            TradeAssetKind `json:"kind"`
	AssetID         uuid.UUID      `json:"asset_id"`
	FromFranchiseID uuid.UUID      `json:"from_franchise_id"`
	ToFranchiseID   uuid.UUID      `json:"to_franchise_id"`
	CashAmount      sql.NullString `json:"cash_amount"`
	CashSeason      sql.NullInt32  `json:"cash_season"`
}

func (q *Queries) InsertTradeTransactionAsset(ctx context.Context, arg InsertTradeTransactionAssetParams) error {
	_, err := q.db.ExecContext(ctx, insertTradeTransactionAsset,
		arg.TransactionID,
		arg.Position,
		arg.Kind,
		arg.AssetID,
		arg.FromFranchiseID,
		arg.ToFranchiseID,
		arg.CashAmount,
		arg.CashSeason,
	)
	return err
}

const listRecentTradeTransactions = `-- name: ListRecentTradeTransactions :many
SELECT id, proposal_id, proposal_slug, approved_by, executed_at, notes, details FROM trade_transactions
ORDER BY executed_at DESC
LIMIT $1
`

func (q *Queries) ListRecentTradeTransactions(ctx context.Context, limit int32) ([]TradeTransaction, error) {
	rows, err := q.db.QueryContext(ctx, listRecentTradeTransactions, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TradeTransaction
	for rows.Next() {
		var i TradeTransaction
		if err := rows.Scan(
			&i.ID,
			&i.ProposalID,
			&i.ProposalSlug,
			&i.ApprovedBy,
			&i.ExecutedAt,
			&i.Notes,
			&i.Details,
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

const listTradeTransactionAssets = `-- name: ListTradeTransactionAssets :many
SELECT transaction_id, position, kind, asset_id, from_franchise_id, to_franchise_id, cash_amount, cash_season FROM trade_transaction_assets
WHERE transaction_id = $1
ORDER BY position
`

func (q *Queries) ListTradeTransactionAssets(ctx context.Context, transactionID uuid.UUID) ([]TradeTransactionAsset, error) {
	rows, err := q.db.QueryContext(ctx, listTradeTransactionAssets, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TradeTransactionAsset
	for rows.Next() {
		var i TradeTransactionAsset
		if err := rows.Scan(
			&i.TransactionID,
			&i.Position,
			&i.Kind,
			&i.AssetID,
			&i.FromFranchiseID,
			&i.ToFranchiseID,
			&i.CashAmount,
			&i.CashSeason,
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

const lockTradeAsset = `-- name: LockTradeAsset :exec
SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))
`

func (q *Queries) LockTradeAsset(ctx context.Context, assetKey string) error {
	_, err := q.db.ExecContext(ctx, lockTradeAsset, assetKey)
	return err
}
