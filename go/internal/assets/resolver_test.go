package assets

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/tradeblock/go/internal/assets/db"
	"github.com/mcdev12/tradeblock/go/internal/models"
	"github.com/mcdev12/tradeblock/go/internal/trade"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueries struct {
	teams   map[uuid.UUID]db.GetFantasyTeamRow
	rosters map[uuid.UUID]db.Roster
	picks   map[uuid.UUID]db.DraftPick
	counts  map[uuid.UUID]int64
	err     error
}

func (f *fakeQueries) GetFantasyTeam(ctx context.Context, id uuid.UUID) (db.GetFantasyTeamRow, error) {
	if f.err != nil {
		return db.GetFantasyTeamRow{}, f.err
	}
	t, ok := f.teams[id]
	if !ok {
		return db.GetFantasyTeamRow{}, sql.ErrNoRows
	}
	return t, nil
}

func (f *fakeQueries) GetRosterEntryByPlayer(ctx context.Context, playerID uuid.UUID) (db.Roster, error) {
	if f.err != nil {
		return db.Roster{}, f.err
	}
	r, ok := f.rosters[playerID]
	if !ok {
		return db.Roster{}, sql.ErrNoRows
	}
	return r, nil
}

func (f *fakeQueries) GetDraftPick(ctx context.Context, id uuid.UUID) (db.DraftPick, error) {
	if f.err != nil {
		return db.DraftPick{}, f.err
	}
	p, ok := f.picks[id]
	if !ok {
		return db.DraftPick{}, sql.ErrNoRows
	}
	return p, nil
}

func (f *fakeQueries) CountRosterPlayers(ctx context.Context, fantasyTeamID uuid.UUID) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[fantasyTeamID], nil
}

func TestResolver_ResolveAsset(t *testing.T) {
	teamA, teamB := uuid.New(), uuid.New()
	player, pick, usedPick := uuid.New(), uuid.New(), uuid.New()
	q := &fakeQueries{
		teams:   map[uuid.UUID]db.GetFantasyTeamRow{teamA: {ID: teamA, Name: "Gurus"}},
		rosters: map[uuid.UUID]db.Roster{player: {FantasyTeamID: teamA, PlayerID: player, Position: "STARTER"}},
		picks: map[uuid.UUID]db.DraftPick{
			pick:     {ID: pick, Round: 1, Pick: 4, TeamID: teamB},
			usedPick: {ID: usedPick, Round: 2, Pick: 1, TeamID: teamB, PlayerID: uuid.NullUUID{UUID: uuid.New(), Valid: true}},
		},
	}
	r := NewResolver(q)
	ctx := context.Background()

	desc, err := r.ResolveAsset(ctx, models.Asset{Kind: models.AssetKindPlayer, ID: player})
	require.NoError(t, err)
	assert.Equal(t, teamA, desc.OwnerFranchiseID)

	desc, err = r.ResolveAsset(ctx, models.Asset{Kind: models.AssetKindPick, ID: pick})
	require.NoError(t, err)
	assert.Equal(t, teamB, desc.OwnerFranchiseID)
	assert.Equal(t, "round 1 pick 4", desc.Label)

	_, err = r.ResolveAsset(ctx, models.Asset{Kind: models.AssetKindPick, ID: usedPick})
	assert.ErrorIs(t, err, trade.ErrAssetNotFound)

	_, err = r.ResolveAsset(ctx, models.Asset{Kind: models.AssetKindPlayer, ID: uuid.New()})
	assert.ErrorIs(t, err, trade.ErrAssetNotFound)

	cash := models.Asset{
		Kind:            models.AssetKindCash,
		ID:              uuid.New(),
		FromFranchiseID: teamA,
		Cash:            &models.CashTerms{Amount: decimal.RequireFromString("12.5"), Season: 2026},
	}
	desc, err = r.ResolveAsset(ctx, cash)
	require.NoError(t, err)
	assert.Equal(t, teamA, desc.OwnerFranchiseID)
	assert.Equal(t, "$12.50 (2026) from Gurus", desc.Label)

	cash.FromFranchiseID = uuid.New()
	_, err = r.ResolveAsset(ctx, cash)
	assert.ErrorIs(t, err, trade.ErrAssetNotFound)

	_, err = r.ResolveAsset(ctx, models.Asset{Kind: "coin", ID: uuid.New()})
	assert.Error(t, err)
}

func TestResolver_StorageError(t *testing.T) {
	r := NewResolver(&fakeQueries{err: errors.New("connection reset")})

	_, err := r.ResolveAsset(context.Background(), models.Asset{Kind: models.AssetKindPlayer, ID: uuid.New()})
	require.Error(t, err)
	assert.NotErrorIs(t, err, trade.ErrAssetNotFound)
}

func TestRosterLimitValidator(t *testing.T) {
	teamA, teamB := uuid.New(), uuid.New()
	q := &fakeQueries{counts: map[uuid.UUID]int64{teamA: 30, teamB: 29}}

	// A gives one player to B and receives two from B.
	parties := []models.Party{
		{FranchiseID: teamA, Receives: []models.Asset{
			{Kind: models.AssetKindPlayer, ID: uuid.New(), FromFranchiseID: teamB},
			{Kind: models.AssetKindPlayer, ID: uuid.New(), FromFranchiseID: teamB},
		}},
		{FranchiseID: teamB, Receives: []models.Asset{
			{Kind: models.AssetKindPlayer, ID: uuid.New(), FromFranchiseID: teamA},
			{Kind: models.AssetKindPick, ID: uuid.New(), FromFranchiseID: teamA},
		}},
	}

	violations, err := NewRosterLimitValidator(q, 30).ValidateTrade(context.Background(), parties)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], teamA.String())

	violations, err = NewRosterLimitValidator(q, 31).ValidateTrade(context.Background(), parties)
	require.NoError(t, err)
	assert.Empty(t, violations)

	violations, err = NewRosterLimitValidator(q, 0).ValidateTrade(context.Background(), parties)
	require.NoError(t, err)
	assert.Empty(t, violations, "zero limit disables the check")
}
