package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/tradeblock/go/internal/models"
	"github.com/mcdev12/tradeblock/go/internal/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, time.March, 2, 18, 0, 0, 0, time.UTC)

func proposal(status models.ProposalStatus) *models.Proposal {
	return &models.Proposal{
		ID:        uuid.New(),
		Slug:      "tr-" + uuid.NewString()[:8],
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
		Parties:   []models.Party{{FranchiseID: uuid.New()}, {FranchiseID: uuid.New()}},
	}
}

func TestStore_ConditionalUpdate(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := proposal(models.ProposalStatusPending)
	require.NoError(t, s.CreateProposal(ctx, p))
	assert.Equal(t, int64(1), p.Version)

	a, err := s.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	b, err := s.GetProposal(ctx, p.ID)
	require.NoError(t, err)

	a.Status = models.ProposalStatusCanceled
	require.NoError(t, s.UpdateProposal(ctx, a))
	assert.Equal(t, int64(2), a.Version)

	b.Status = models.ProposalStatusRejected
	assert.ErrorIs(t, s.UpdateProposal(ctx, b), trade.ErrVersionConflict)

	got, err := s.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusCanceled, got.Status)

	missing := proposal(models.ProposalStatusPending)
	assert.ErrorIs(t, s.UpdateProposal(ctx, missing), trade.ErrVersionConflict)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := proposal(models.ProposalStatusPending)
	require.NoError(t, s.CreateProposal(ctx, p))

	p.Parties[0].Accepted = true
	got, err := s.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.Parties[0].Accepted)

	got.Parties[1].Accepted = true
	again, err := s.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, again.Parties[1].Accepted)

	assert.Error(t, s.CreateProposal(ctx, p), "duplicate id")
}

func TestStore_RunInTxRollsBack(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := proposal(models.ProposalStatusAccepted)
	require.NoError(t, s.CreateProposal(ctx, p))

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(tx trade.TradeRepository) error {
		if err := tx.InsertTransaction(ctx, &models.Transaction{ID: uuid.New(), ProposalID: p.ID, ExecutedAt: now}); err != nil {
			return err
		}
		cur, err := tx.GetProposal(ctx, p.ID)
		if err != nil {
			return err
		}
		cur.Status = models.ProposalStatusExecuted
		if err := tx.UpdateProposal(ctx, cur); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetTransactionByProposal(ctx, p.ID)
	assert.ErrorIs(t, err, trade.ErrRecordNotFound)
	got, err := s.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusAccepted, got.Status)
	assert.Equal(t, int64(1), got.Version)
}

func TestStore_TransactionsAndClaims(t *testing.T) {
	s := New()
	ctx := context.Background()
	player, pick, cash := uuid.New(), uuid.New(), uuid.New()
	proposalID := uuid.New()
	txn := &models.Transaction{
		ID:           uuid.New(),
		ProposalID:   proposalID,
		ProposalSlug: "tr-1",
		ExecutedAt:   now.Add(time.Minute),
		Assets: []models.TransactionAsset{
			{Kind: models.AssetKindPlayer, AssetID: player},
			{Kind: models.AssetKindPick, AssetID: pick},
			{Kind: models.AssetKindCash, AssetID: cash},
		},
	}
	require.NoError(t, s.InsertTransaction(ctx, txn))
	assert.ErrorIs(t, s.InsertTransaction(ctx, &models.Transaction{ID: uuid.New(), ProposalID: proposalID}), trade.ErrDuplicateTransaction)

	wanted := []models.Asset{
		{Kind: models.AssetKindPlayer, ID: player},
		{Kind: models.AssetKindCash, ID: cash},
		{Kind: models.AssetKindPlayer, ID: uuid.New()},
	}
	claims, err := s.FindAssetClaims(ctx, wanted, now, uuid.New())
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, player, claims[0].AssetID)
	assert.Equal(t, txn.ID, claims[0].TransactionID)
	assert.Equal(t, "tr-1", claims[0].ProposalSlug)

	claims, err = s.FindAssetClaims(ctx, wanted, now.Add(time.Minute), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, claims, "transactions executed before the proposal existed do not count")

	claims, err = s.FindAssetClaims(ctx, wanted, now, proposalID)
	require.NoError(t, err)
	assert.Empty(t, claims)

	list, err := s.ListTransactions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Assets, 3)
}

func TestStore_Deletes(t *testing.T) {
	s := New()
	ctx := context.Background()

	old := proposal(models.ProposalStatusRejected)
	fresh := proposal(models.ProposalStatusRejected)
	fresh.CreatedAt = now.Add(48 * time.Hour)
	stuck := proposal(models.ProposalStatusPending)
	accepted := proposal(models.ProposalStatusAccepted)
	for _, p := range []*models.Proposal{old, fresh, stuck, accepted} {
		require.NoError(t, s.CreateProposal(ctx, p))
	}

	expired, err := s.ListPendingExpiredBefore(ctx, now.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, stuck.ID, expired[0].ID)

	n, err := s.DeleteProposalsCreatedBefore(ctx, []models.ProposalStatus{models.ProposalStatusRejected}, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.DeletePendingExpiredBefore(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, 2, s.Len())
	_, err = s.GetProposal(ctx, accepted.ID)
	require.NoError(t, err)
}
