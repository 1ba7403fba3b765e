package db

import (
	"context"

	"github.com/google/uuid"
)

const countRosterPlayers = `-- name: CountRosterPlayers :one
SELECT count(*)
FROM rosters
WHERE fantasy_team_id = $1
`

func (q *Queries) CountRosterPlayers(ctx context.Context, fantasyTeamID uuid.UUID) (int64, error) {
	row := q.db.QueryRowContext(ctx, countRosterPlayers, fantasyTeamID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const getDraftPick = `-- name: GetDraftPick :one
SELECT id, draft_id, round, pick, overall_pick, team_id, player_id
FROM draft_picks
WHERE id = $1
`

func (q *Queries) GetDraftPick(ctx context.Context, id uuid.UUID) (DraftPick, error) {
	row := q.db.QueryRowContext(ctx, getDraftPick, id)
	var i DraftPick
	err := row.Scan(
		&i.ID,
		&i.DraftID,
		&i.Round,
		&i.Pick,
		&i.OverallPick,
		&i.TeamID,
		&i.PlayerID,
	)
	return i, err
}

const getFantasyTeam = `-- name: GetFantasyTeam :one
SELECT id, league_id, owner_id, name
FROM fantasy_teams
WHERE id = $1
`

type GetFantasyTeamRow struct {
	ID       uuid.UUID `json:"id"`
	LeagueID uuid.UUID `json:"league_id"`
	OwnerID  uuid.UUID `json:"owner_id"`
	Name     string    `json:"name"`
}

func (q *Queries) GetFantasyTeam(ctx context.Context, id uuid.UUID) (GetFantasyTeamRow, error) {
	row := q.db.QueryRowContext(ctx, getFantasyTeam, id)
	var i GetFantasyTeamRow
	err := row.Scan(
		&i.ID,
		&i.LeagueID,
		&i.OwnerID,
		&i.Name,
	)
	return i, err
}

const getRosterEntryByPlayer = `-- name: GetRosterEntryByPlayer :one
SELECT id, fantasy_team_id, player_id, position, acquired_at, acquisition_type
FROM rosters
WHERE player_id = $1
`

func (q *Queries) GetRosterEntryByPlayer(ctx context.Context, playerID uuid.UUID) (Roster, error) {
	row := q.db.QueryRowContext(ctx, getRosterEntryByPlayer, playerID)
	var i Roster
	err := row.Scan(
		&i.ID,
		&i.FantasyTeamID,
		&i.PlayerID,
		&i.Position,
		&i.AcquiredAt,
		&i.AcquisitionType,
	)
	return i, err
}
