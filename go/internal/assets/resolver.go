package assets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/tradeblock/go/internal/assets/db"
	"github.com/mcdev12/tradeblock/go/internal/models"
	"github.com/mcdev12/tradeblock/go/internal/trade"
)

// Querier defines the roster and draft queries the resolver needs.
type Querier interface {
	GetFantasyTeam(ctx context.Context, id uuid.UUID) (db.GetFantasyTeamRow, error)
	GetRosterEntryByPlayer(ctx context.Context, playerID uuid.UUID) (db.Roster, error)
	GetDraftPick(ctx context.Context, id uuid.UUID) (db.DraftPick, error)
	CountRosterPlayers(ctx context.Context, fantasyTeamID uuid.UUID) (int64, error)
}

// Resolver resolves trade assets against the roster and draft tables.
type Resolver struct {
	queries Querier
}

func NewResolver(queries Querier) *Resolver {
	return &Resolver{queries: queries}
}

var _ trade.AssetResolver = (*Resolver)(nil)

// ResolveAsset returns the current owner of a player or pick. A cash asset
// belongs to the franchise paying it.
func (r *Resolver) ResolveAsset(ctx context.Context, asset models.Asset) (*trade.AssetDescriptor, error) {
	switch asset.Kind {
	case models.AssetKindPlayer:
		entry, err := r.queries.GetRosterEntryByPlayer(ctx, asset.ID)
		if err != nil {
			return nil, notFoundOr(err, "failed to get roster entry")
		}
		return &trade.AssetDescriptor{
			Kind:             asset.Kind,
			ID:               asset.ID,
			OwnerFranchiseID: entry.FantasyTeamID,
			Label:            fmt.Sprintf("player %s (%s)", asset.ID, entry.Position),
		}, nil

	case models.AssetKindPick:
		pick, err := r.queries.GetDraftPick(ctx, asset.ID)
		if err != nil {
			return nil, notFoundOr(err, "failed to get draft pick")
		}
		if pick.PlayerID.Valid {
			// a pick already used in a draft no longer exists as a tradable asset
			return nil, trade.ErrAssetNotFound
		}
		return &trade.AssetDescriptor{
			Kind:             asset.Kind,
			ID:               asset.ID,
			OwnerFranchiseID: pick.TeamID,
			Label:            fmt.Sprintf("round %d pick %d", pick.Round, pick.Pick),
		}, nil

	case models.AssetKindCash:
		team, err := r.queries.GetFantasyTeam(ctx, asset.FromFranchiseID)
		if err != nil {
			return nil, notFoundOr(err, "failed to get franchise")
		}
		label := "cash"
		if asset.Cash != nil {
			label = fmt.Sprintf("$%s (%d) from %s", asset.Cash.Amount.StringFixed(2), asset.Cash.Season, team.Name)
		}
		return &trade.AssetDescriptor{
			Kind:             asset.Kind,
			ID:               asset.ID,
			OwnerFranchiseID: team.ID,
			Label:            label,
		}, nil

	default:
		return nil, fmt.Errorf("unknown asset kind %q", asset.Kind)
	}
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return trade.ErrAssetNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}
