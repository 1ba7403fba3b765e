package trade

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/tradeblock/go/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Approve commits an accepted proposal into the transaction ledger. The ledger
// insert and the status change happen in one storage transaction. A second
// approve of the same proposal returns the transaction already recorded.
func (a *App) Approve(ctx context.Context, id, adminID uuid.UUID) (*CommitResult, error) {
	const action = string(ActionApprove)

	if err := a.requireAdmin(ctx, action, adminID); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		var result *CommitResult
		var fresh bool
		err := a.repo.RunInTx(ctx, func(tx TradeRepository) error {
			var err error
			result, fresh, err = a.commit(ctx, tx, id, adminID)
			return err
		})
		if err == nil {
			if fresh {
				log.Info().
					Str("proposal_id", result.Proposal.ID.String()).
					Str("slug", result.Proposal.Slug).
					Str("transaction_id", result.Transaction.ID.String()).
					Str("admin", adminID.String()).
					Msg("trade executed")
				a.notify(ctx, result.Proposal, &adminID, nil, &result.Transaction.ID, EventExecuted)
			}
			return result, nil
		}
		if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrDuplicateTransaction) {
			lastErr = err
			log.Debug().
				Str("proposal_id", id.String()).
				Int("attempt", attempt+1).
				Msg("approve lost write race, re-reading proposal")
			continue
		}
		return nil, err
	}
	return nil, conflict(action, lastErr)
}

// commit runs inside a storage transaction. fresh reports whether this call
// recorded the execution, as opposed to finding it already done.
func (a *App) commit(ctx context.Context, tx TradeRepository, id, adminID uuid.UUID) (*CommitResult, bool, error) {
	const action = string(ActionApprove)

	p, err := tx.GetProposal(ctx, id)
	if err != nil {
		return nil, false, a.mapLoadError(action, id, err)
	}

	if p.Status == models.ProposalStatusExecuted {
		txn, err := tx.GetTransactionByProposal(ctx, p.ID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load executed transaction: %w", err)
		}
		return &CommitResult{Proposal: p, Transaction: txn}, false, nil
	}
	if err := guard(p, ActionApprove); err != nil {
		return nil, false, err
	}

	// A transaction may exist from an attempt whose proposal update was lost.
	txn, err := tx.GetTransactionByProposal(ctx, p.ID)
	switch {
	case err == nil:
		log.Warn().
			Str("proposal_id", p.ID.String()).
			Str("transaction_id", txn.ID.String()).
			Msg("reusing transaction already recorded for proposal")
	case errors.Is(err, ErrRecordNotFound):
		if err := a.checkCommittable(ctx, tx, p); err != nil {
			return nil, false, err
		}
		txn = buildTransaction(p, adminID, a.clock.Now())
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return nil, false, err
		}
	default:
		return nil, false, fmt.Errorf("failed to look up transaction: %w", err)
	}

	if err := moveTo(p, ActionApprove, models.ProposalStatusExecuted); err != nil {
		return nil, false, err
	}
	p.ExecutedTransactionID = &txn.ID
	p.UpdatedAt = a.clock.Now()
	if err := tx.UpdateProposal(ctx, p); err != nil {
		return nil, false, err
	}
	return &CommitResult{Proposal: p, Transaction: txn}, true, nil
}

// checkCommittable re-validates the assets of an accepted proposal: none may
// have moved in a transaction committed since the proposal was created, each
// must still belong to the franchise giving it, and the trade must still be legal.
func (a *App) checkCommittable(ctx context.Context, tx TradeRepository, p *models.Proposal) error {
	const action = string(ActionApprove)

	assets := lo.Map(p.Assets(), func(ra models.ReceivedAsset, _ int) models.Asset { return ra.Asset })
	movable := lo.Filter(assets, func(asset models.Asset, _ int) bool { return asset.Kind != models.AssetKindCash })

	// Approvals of different proposals sharing an asset queue here, so the
	// claim lookup below sees whichever committed first.
	if err := tx.LockAssets(ctx, assetLockKeys(movable)); err != nil {
		return err
	}

	var conflicts []AssetConflict
	claims, err := tx.FindAssetClaims(ctx, movable, p.CreatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("failed to check asset claims: %w", err)
	}
	for _, claim := range claims {
		asset, _ := lo.Find(movable, func(asset models.Asset) bool {
			return asset.ID == claim.AssetID && asset.Kind == claim.Kind
		})
		txnID := claim.TransactionID
		conflicts = append(conflicts, AssetConflict{
			Asset:                  asset,
			Reason:                 "already moved by another executed trade",
			CompetingTransactionID: &txnID,
			CompetingProposalSlug:  claim.ProposalSlug,
		})
	}

	for _, asset := range assets {
		desc, err := a.assets.ResolveAsset(ctx, asset)
		if err != nil {
			if errors.Is(err, ErrAssetNotFound) {
				conflicts = append(conflicts, AssetConflict{Asset: asset, Reason: "no longer exists"})
				continue
			}
			return fmt.Errorf("failed to resolve %s %s: %w", asset.Kind, asset.ID, err)
		}
		if desc.OwnerFranchiseID != asset.FromFranchiseID {
			conflicts = append(conflicts, AssetConflict{
				Asset:  asset,
				Reason: fmt.Sprintf("now owned by franchise %s", desc.OwnerFranchiseID),
			})
		}
	}

	if len(conflicts) > 0 {
		log.Warn().
			Str("proposal_id", p.ID.String()).
			Int("conflicts", len(conflicts)).
			Msg("approve refused: asset conflict")
		return &Error{
			Kind:      KindConflict,
			Action:    action,
			Status:    p.Status,
			Message:   "assets in this trade have been claimed elsewhere; resolve manually",
			Conflicts: conflicts,
		}
	}

	violations, err := a.validator.ValidateTrade(ctx, p.Parties)
	if err != nil {
		return fmt.Errorf("failed to validate trade: %w", err)
	}
	if len(violations) > 0 {
		return validationFailed(action, violations...)
	}
	return nil
}

// assetLockKeys returns the distinct asset keys in sorted order, so that
// concurrent commits always lock in the same order.
func assetLockKeys(assets []models.Asset) []string {
	keys := lo.Uniq(lo.Map(assets, func(asset models.Asset, _ int) string { return asset.Key() }))
	sort.Strings(keys)
	return keys
}

func buildTransaction(p *models.Proposal, adminID uuid.UUID, now time.Time) *models.Transaction {
	received := p.Assets()
	assets := make([]models.TransactionAsset, len(received))
	for i, ra := range received {
		assets[i] = models.TransactionAsset{
			Kind:            ra.Kind,
			AssetID:         ra.ID,
			FromFranchiseID: ra.FromFranchiseID,
			ToFranchiseID:   ra.ToFranchiseID,
			Cash:            ra.Cash,
		}
	}
	var notes *string
	if p.Notes != nil {
		v := *p.Notes
		notes = &v
	}
	return &models.Transaction{
		ID:           uuid.New(),
		ProposalID:   p.ID,
		ProposalSlug: p.Slug,
		ApprovedBy:   adminID,
		ExecutedAt:   now,
		Notes:        notes,
		Assets:       assets,
		Parties:      p.Clone().Parties,
	}
}
