package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/tradeblock/go/internal/assets/db"
	"github.com/mcdev12/tradeblock/go/internal/config"
	"github.com/mcdev12/tradeblock/go/internal/trade"
	"github.com/rs/zerolog/log"
)

// TeamLookup finds the owner of a fantasy team.
type TeamLookup interface {
	GetFantasyTeam(ctx context.Context, id uuid.UUID) (db.GetFantasyTeamRow, error)
}

// Authorizer decides who may act for a franchise. Admins and extra
// representatives come from the league config; when a TeamLookup is set the
// owner of the fantasy team also represents it.
type Authorizer struct {
	admins map[uuid.UUID]bool
	reps   map[uuid.UUID]map[uuid.UUID]bool
	teams  TeamLookup
}

var _ trade.Authorizer = (*Authorizer)(nil)

// NewAuthorizer builds an Authorizer from the league section of the config.
// teams may be nil.
func NewAuthorizer(league config.LeagueConfig, teams TeamLookup) (*Authorizer, error) {
	a := &Authorizer{
		admins: make(map[uuid.UUID]bool, len(league.Admins)),
		reps:   make(map[uuid.UUID]map[uuid.UUID]bool, len(league.Franchises)),
		teams:  teams,
	}
	for _, raw := range league.Admins {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid admin id %q: %w", raw, err)
		}
		a.admins[id] = true
	}
	for _, f := range league.Franchises {
		franchiseID, err := uuid.Parse(f.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid franchise id %q: %w", f.ID, err)
		}
		people := make(map[uuid.UUID]bool, len(f.Representatives))
		for _, raw := range f.Representatives {
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid representative %q of franchise %s: %w", raw, f.ID, err)
			}
			people[id] = true
		}
		a.reps[franchiseID] = people
	}

	log.Info().
		Int("admins", len(a.admins)).
		Int("franchises", len(a.reps)).
		Bool("team_owners", teams != nil).
		Msg("loaded league access")
	return a, nil
}

func (a *Authorizer) IsAdmin(ctx context.Context, personID uuid.UUID) (bool, error) {
	return a.admins[personID], nil
}

func (a *Authorizer) IsRepresentative(ctx context.Context, franchiseID, personID uuid.UUID) (bool, error) {
	if a.reps[franchiseID][personID] {
		return true, nil
	}
	if a.teams == nil {
		return false, nil
	}
	team, err := a.teams.GetFantasyTeam(ctx, franchiseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get fantasy team: %w", err)
	}
	return team.OwnerID == personID, nil
}

