package db

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

const countUnsentTradeOutbox = `-- name: CountUnsentTradeOutbox :one
SELECT COUNT(*)
FROM trade_outbox
WHERE sent_at IS NULL
`

func (q *Queries) CountUnsentTradeOutbox(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countUnsentTradeOutbox)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const fetchTradeOutboxByID = `-- name: FetchTradeOutboxByID :one
SELECT id, proposal_id, event_type, payload
FROM trade_outbox
WHERE id = $1 AND sent_at IS NULL
`

type FetchTradeOutboxByIDRow struct {
	ID         uuid.UUID       `json:"id"`
	ProposalID uuid.UUID       `json:"proposal_id"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
}

func (q *Queries) FetchTradeOutboxByID(ctx context.Context, id uuid.UUID) (FetchTradeOutboxByIDRow, error) {
	row := q.db.QueryRowContext(ctx, fetchTradeOutboxByID, id)
	var i FetchTradeOutboxByIDRow
	err := row.Scan(
		&i.ID,
		&i.ProposalID,
		&i.EventType,
		&i.Payload,
	)
	return i, err
}

const fetchUnsentTradeOutbox = `-- name: FetchUnsentTradeOutbox :many
SELECT id, proposal_id, event_type, payload
FROM trade_outbox
WHERE sent_at IS NULL
ORDER BY created_at
LIMIT $1
FOR UPDATE SKIP LOCKED
`

type FetchUnsentTradeOutboxRow struct {
	ID         uuid.UUID       `json:"id"`
	ProposalID uuid.UUID       `json:"proposal_id"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
}

func (q *Queries) FetchUnsentTradeOutbox(ctx context.Context, limit int32) ([]FetchUnsentTradeOutboxRow, error) {
	rows, err := q.db.QueryContext(ctx, fetchUnsentTradeOutbox, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FetchUnsentTradeOutboxRow
	for rows.Next() {
		var i FetchUnsentTradeOutboxRow
		if err := rows.Scan(
			&i.ID,
			&i.ProposalID,
			&i.EventType,
			&i.Payload,
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

const insertTradeOutboxEvent = `-- name: InsertTradeOutboxEvent :exec
INSERT INTO trade_outbox (id, proposal_id, event_type, payload)
VALUES ($1, $2, $3, $4)
`

type InsertTradeOutboxEventParams struct {
	ID         uuid.UUID       `json:"id"`
	ProposalID uuid.UUID       `json:"proposal_id"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
}

func (q *Queries) InsertTradeOutboxEvent(ctx context.Context, arg InsertTradeOutboxEventParams) error {
	_, err := q.db.ExecContext(ctx, insertTradeOutboxEvent,
		arg.ID,
		arg.ProposalID,
		arg.EventType,
		arg.Payload,
	)
	return err
}

const markTradeOutboxSent = `-- name: MarkTradeOutboxSent :exec
UPDATE trade_outbox
SET sent_at = now()
WHERE id = $1
`

func (q *Queries) MarkTradeOutboxSent(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, markTradeOutboxSent, id)
	return err
}
