package db

import (
	"time"

	"github.com/google/uuid"
)

type DraftPick struct {
	ID          uuid.UUID     `json:"id"`
	DraftID     uuid.UUID     `json:"draft_id"`
	Round       int32         `json:"round"`
	Pick        int32         `json:"pick"`
	OverallPick int32         `json:"overall_pick"`
	TeamID      uuid.UUID     `json:"team_id"`
	PlayerID    uuid.NullUUID `json:"player_id"`
}

type FantasyTeam struct {
	ID        uuid.UUID `json:"id"`
	LeagueID  uuid.UUID `json:"league_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Roster struct {
	ID              uuid.UUID `json:"id"`
	FantasyTeamID   uuid.UUID `json:"fantasy_team_id"`
	PlayerID        uuid.UUID `json:"player_id"`
	Position        string    `json:"position"`
	AcquiredAt      time.Time `json:"acquired_at"`
	AcquisitionType string    `json:"acquisition_type"`
}
