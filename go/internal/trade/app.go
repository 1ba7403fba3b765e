package trade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tradeblock/go/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// maxWriteAttempts is the first try plus one automatic retry after a lost race.
const maxWriteAttempts = 2

// TradeRepository defines what the trade app needs from storage. UpdateProposal
// is a conditional write on Version and bumps it on success.
type TradeRepository interface {
	CreateProposal(ctx context.Context, p *models.Proposal) error
	GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	GetProposalBySlug(ctx context.Context, slug string) (*models.Proposal, error)
	ListProposals(ctx context.Context, filter ListFilter) ([]models.Proposal, error)
	UpdateProposal(ctx context.Context, p *models.Proposal) error
	ListPendingExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Proposal, error)
	DeleteProposalsCreatedBefore(ctx context.Context, statuses []models.ProposalStatus, cutoff time.Time) (int64, error)
	DeletePendingExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)

	GetTransactionByProposal(ctx context.Context, proposalID uuid.UUID) (*models.Transaction, error)
	InsertTransaction(ctx context.Context, txn *models.Transaction) error
	ListTransactions(ctx context.Context, limit int) ([]models.Transaction, error)
	FindAssetClaims(ctx context.Context, assets []models.Asset, since time.Time, excludeProposal uuid.UUID) ([]AssetClaim, error)
	// LockAssets blocks until no other transaction holds any of the keys.
	// The locks are released when the surrounding RunInTx returns.
	LockAssets(ctx context.Context, keys []string) error

	RunInTx(ctx context.Context, fn func(tx TradeRepository) error) error
}

// Collaborators are the external services the trade app consults.
type Collaborators struct {
	Assets     AssetResolver
	Validator  LegalityValidator
	Notifier   Notifier
	Authorizer Authorizer
}

// App handles trade proposal business logic
type App struct {
	repo      TradeRepository
	assets    AssetResolver
	validator LegalityValidator
	notifier  Notifier
	authz     Authorizer
	clock     clockwork.Clock
	policy    Policy
	window    Window
}

// NewApp creates a new trade App
func NewApp(repo TradeRepository, deps Collaborators, clock clockwork.Clock, policy Policy) *App {
	if deps.Validator == nil {
		deps.Validator = AllowAllValidator{}
	}
	if deps.Notifier == nil {
		deps.Notifier = LogNotifier{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if policy.SweepBatchSize <= 0 {
		policy.SweepBatchSize = DefaultPolicy().SweepBatchSize
	}
	return &App{
		repo:      repo,
		assets:    deps.Assets,
		validator: deps.Validator,
		notifier:  deps.Notifier,
		authz:     deps.Authorizer,
		clock:     clock,
		policy:    policy,
		window:    Window{Duration: policy.AcceptanceWindow},
	}
}

// Policy returns the policy the app was built with.
func (a *App) Policy() Policy {
	return a.policy
}

// RemainingWindow returns how long the open acceptance window has left.
func (a *App) RemainingWindow(p *models.Proposal) time.Duration {
	return a.window.Remaining(p, a.clock.Now())
}

// CreateProposal drafts a new proposal, hypothetical unless req.Propose is set.
func (a *App) CreateProposal(ctx context.Context, req CreateProposalRequest) (*models.Proposal, error) {
	const action = "create"

	if err := a.requireRepresentative(ctx, action, req.CreatorFranchiseID, req.CreatorPersonID); err != nil {
		return nil, err
	}
	if err := a.validateParties(ctx, action, req.CreatorFranchiseID, req.Parties); err != nil {
		return nil, err
	}

	now := a.clock.Now()
	expiresAt := a.expiresAt(now, req.DeadlineOverride)
	if !expiresAt.After(now) {
		return nil, validationFailed(action, "the trade deadline has passed")
	}

	if req.CounterOf != nil {
		if _, err := a.repo.GetProposal(ctx, *req.CounterOf); err != nil {
			return nil, a.mapLoadError(action, *req.CounterOf, err)
		}
	}

	p := &models.Proposal{
		ID:                 uuid.New(),
		Slug:               newSlug(now),
		Status:             models.ProposalStatusHypothetical,
		CreatedByFranchise: req.CreatorFranchiseID,
		CreatedByPerson:    req.CreatorPersonID,
		CreatedAt:          now,
		ExpiresAt:          expiresAt,
		Parties:            toParties(req.Parties),
		Notes:              trimNotes(req.Notes),
		CounterOf:          req.CounterOf,
		UpdatedAt:          now,
	}
	if req.Propose {
		p.Status = models.ProposalStatusPending
	}

	if err := a.repo.CreateProposal(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create proposal: %w", err)
	}

	log.Info().
		Str("proposal_id", p.ID.String()).
		Str("slug", p.Slug).
		Str("status", string(p.Status)).
		Int("parties", len(p.Parties)).
		Time("expires_at", p.ExpiresAt).
		Msg("created trade proposal")

	if p.Status == models.ProposalStatusPending {
		a.notify(ctx, p, &req.CreatorPersonID, nil, nil, EventProposed)
	}
	return p, nil
}

// UpdateDraft replaces the parties of a hypothetical proposal. Creator only.
func (a *App) UpdateDraft(ctx context.Context, id, actorID uuid.UUID, parties []PartyRequest) (*models.Proposal, error) {
	res, err := a.mutate(ctx, id, operation{
		action: ActionEditDraft,
		actor:  &actorID,
		apply: func(p *models.Proposal, now time.Time) ([]EventType, error) {
			if err := guard(p, ActionEditDraft); err != nil {
				return nil, err
			}
			if p.CreatedByPerson != actorID {
				return nil, permissionDenied(string(ActionEditDraft), "only the creator may edit a draft proposal")
			}
			if err := a.validateParties(ctx, string(ActionEditDraft), p.CreatedByFranchise, parties); err != nil {
				return nil, err
			}
			p.Parties = toParties(parties)
			p.AcceptanceWindowStart = nil
			return []EventType{EventEdited}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return res.proposal, nil
}

// Propose moves a hypothetical proposal into active negotiation. Creator only.
func (a *App) Propose(ctx context.Context, id, actorID uuid.UUID) (*models.Proposal, error) {
	res, err := a.mutate(ctx, id, operation{
		action: ActionPropose,
		actor:  &actorID,
		apply: func(p *models.Proposal, now time.Time) ([]EventType, error) {
			if err := guard(p, ActionPropose); err != nil {
				return nil, err
			}
			if p.CreatedByPerson != actorID {
				return nil, permissionDenied(string(ActionPropose), "only the creator may propose")
			}
			if !p.ExpiresAt.After(now) {
				return nil, &Error{
					Kind:    KindInvalidState,
					Action:  string(ActionPropose),
					Status:  p.Status,
					Message: fmt.Sprintf("proposal deadline passed at %s, create a new proposal", p.ExpiresAt.Format(time.RFC3339)),
				}
			}
			p.ResetAcceptances()
			if err := moveTo(p, ActionPropose, models.ProposalStatusPending); err != nil {
				return nil, err
			}
			return []EventType{EventProposed}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return res.proposal, nil
}

// Accept records a party's consent. Calling it again for a party that has
// already accepted changes nothing.
func (a *App) Accept(ctx context.Context, id, franchiseID, actorID uuid.UUID) (*AcceptOutcome, error) {
	const action = string(ActionAccept)

	if err := a.requireRepresentative(ctx, action, franchiseID, actorID); err != nil {
		return nil, err
	}

	res, err := a.mutate(ctx, id, operation{
		action:    ActionAccept,
		actor:     &actorID,
		franchise: &franchiseID,
		apply: func(p *models.Proposal, now time.Time) ([]EventType, error) {
			idx := p.PartyIndex(franchiseID)
			if idx < 0 {
				return nil, permissionDenied(action, "franchise %s is not a party to proposal %s", franchiseID, p.Slug)
			}
			if p.Parties[idx].Accepted && (p.Status == models.ProposalStatusPending || p.Status == models.ProposalStatusAccepted) {
				return nil, nil
			}
			if err := guard(p, ActionAccept); err != nil {
				return nil, err
			}

			a.window.Start(p, now)
			at := now
			by := actorID
			p.Parties[idx].Accepted = true
			p.Parties[idx].AcceptedAt = &at
			p.Parties[idx].AcceptedBy = &by

			events := []EventType{EventAccepted}
			if p.AllAccepted() {
				if err := moveTo(p, ActionAccept, models.ProposalStatusAccepted); err != nil {
					return nil, err
				}
				events = append(events, EventAllAccepted)
			}
			return events, nil
		},
	})
	if err != nil {
		return nil, err
	}

	out := &AcceptOutcome{Proposal: res.proposal}
	if lo.Contains(res.events, EventWindowReset) {
		out.WindowReset = true
		out.Notice = WindowExpiredNotice
	}
	return out, nil
}

// Reject ends the negotiation. A party that has not yet accepted may reject a
// pending proposal; the admin may reject a pending or accepted one.
func (a *App) Reject(ctx context.Context, id, actorID uuid.UUID, byAdmin bool) (*models.Proposal, error) {
	const action = string(ActionReject)

	if byAdmin {
		if err := a.requireAdmin(ctx, action, actorID); err != nil {
			return nil, err
		}
	}

	res, err := a.mutate(ctx, id, operation{
		action: ActionReject,
		actor:  &actorID,
		apply: func(p *models.Proposal, now time.Time) ([]EventType, error) {
			if err := guard(p, ActionReject); err != nil {
				return nil, err
			}
			if !byAdmin {
				ok, err := a.representsUnacceptedParty(ctx, p, actorID)
				if err != nil {
					return nil, err
				}
				if !ok {
					return nil, permissionDenied(action, "only a party that has not accepted, or the admin, may reject")
				}
			}
			if err := moveTo(p, ActionReject, models.ProposalStatusRejected); err != nil {
				return nil, err
			}
			return []EventType{EventRejected}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return res.proposal, nil
}

// AdminReject is Reject on behalf of the league admin.
func (a *App) AdminReject(ctx context.Context, id, adminID uuid.UUID) (*models.Proposal, error) {
	return a.Reject(ctx, id, adminID, true)
}

// Cancel withdraws a hypothetical or pending proposal. Creator only.
func (a *App) Cancel(ctx context.Context, id, actorID uuid.UUID) (*models.Proposal, error) {
	res, err := a.mutate(ctx, id, operation{
		action: ActionCancel,
		actor:  &actorID,
		apply: func(p *models.Proposal, now time.Time) ([]EventType, error) {
			if err := guard(p, ActionCancel); err != nil {
				return nil, err
			}
			if p.CreatedByPerson != actorID {
				return nil, permissionDenied(string(ActionCancel), "only the creator may cancel")
			}
			if err := moveTo(p, ActionCancel, models.ProposalStatusCanceled); err != nil {
				return nil, err
			}
			return []EventType{EventCanceled}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return res.proposal, nil
}

// EditNotes replaces the notes of a proposal that has not been executed. Admin only.
func (a *App) EditNotes(ctx context.Context, id, adminID uuid.UUID, notes *string) (*models.Proposal, error) {
	if err := a.requireAdmin(ctx, string(ActionEditNotes), adminID); err != nil {
		return nil, err
	}
	res, err := a.mutate(ctx, id, operation{
		action: ActionEditNotes,
		actor:  &adminID,
		apply: func(p *models.Proposal, now time.Time) ([]EventType, error) {
			if err := guard(p, ActionEditNotes); err != nil {
				return nil, err
			}
			p.Notes = trimNotes(notes)
			return []EventType{EventEdited}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return res.proposal, nil
}

// EditCash corrects the amount or season of one cash line. Admin only, and
// only before the proposal is executed or abandoned.
func (a *App) EditCash(ctx context.Context, id, adminID uuid.UUID, edit CashEdit) (*models.Proposal, error) {
	const action = string(ActionEditCash)

	if err := a.requireAdmin(ctx, action, adminID); err != nil {
		return nil, err
	}
	if edit.Amount == nil && edit.Season == nil {
		return nil, validationFailed(action, "nothing to change")
	}
	if edit.Amount != nil && !edit.Amount.IsPositive() {
		return nil, validationFailed(action, "cash amount must be positive")
	}
	if edit.Season != nil && *edit.Season <= 0 {
		return nil, validationFailed(action, "cash season must be positive")
	}

	res, err := a.mutate(ctx, id, operation{
		action: ActionEditCash,
		actor:  &adminID,
		apply: func(p *models.Proposal, now time.Time) ([]EventType, error) {
			if err := guard(p, ActionEditCash); err != nil {
				return nil, err
			}
			if edit.PartyIndex < 0 || edit.PartyIndex >= len(p.Parties) {
				return nil, notFound(action, "party %d does not exist on proposal %s", edit.PartyIndex, p.Slug)
			}
			cash := cashLines(p.Parties[edit.PartyIndex])
			if edit.CashIndex < 0 || edit.CashIndex >= len(cash) {
				return nil, notFound(action, "cash line %d does not exist for party %d", edit.CashIndex, edit.PartyIndex)
			}
			terms := p.Parties[edit.PartyIndex].Receives[cash[edit.CashIndex]].Cash
			if edit.Amount != nil {
				terms.Amount = *edit.Amount
			}
			if edit.Season != nil {
				terms.Season = *edit.Season
			}
			return []EventType{EventEdited}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return res.proposal, nil
}

// GetProposal loads a proposal, applying any lapsed window or deadline first.
func (a *App) GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	res, err := a.mutate(ctx, id, operation{action: "view"})
	if err != nil {
		return nil, err
	}
	return res.proposal, nil
}

// GetProposalBySlug loads a proposal by its public slug.
func (a *App) GetProposalBySlug(ctx context.Context, slug string) (*models.Proposal, error) {
	p, err := a.repo.GetProposalBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, notFound("view", "proposal %q does not exist", slug)
		}
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	return a.GetProposal(ctx, p.ID)
}

// ListProposals lists proposals as they should be displayed now. Lapsed
// windows and deadlines are applied to the copies returned but are only
// persisted when a proposal is next loaded on its own.
func (a *App) ListProposals(ctx context.Context, filter ListFilter) ([]models.Proposal, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, validationFailed("list", fmt.Sprintf("unknown status %q", *filter.Status))
	}
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	proposals, err := a.repo.ListProposals(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	now := a.clock.Now()
	for i := range proposals {
		a.refresh(&proposals[i], now)
	}
	return proposals, nil
}

// GetTransaction returns the ledger record produced by a proposal.
func (a *App) GetTransaction(ctx context.Context, proposalID uuid.UUID) (*models.Transaction, error) {
	txn, err := a.repo.GetTransactionByProposal(ctx, proposalID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, notFound("view", "no transaction recorded for proposal %s", proposalID)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// ListTransactions returns the most recent ledger records, newest first.
func (a *App) ListTransactions(ctx context.Context, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	txns, err := a.repo.ListTransactions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

type operation struct {
	action    Action
	actor     *uuid.UUID
	franchise *uuid.UUID
	apply     func(p *models.Proposal, now time.Time) ([]EventType, error)
}

type mutation struct {
	proposal *models.Proposal
	events   []EventType
}

// mutate loads a proposal, applies lazy expiry and window reset, runs the
// operation and writes the result conditionally on the loaded version. A lost
// race is retried once from a fresh read; a second loss is reported as a conflict.
func (a *App) mutate(ctx context.Context, id uuid.UUID, op operation) (*mutation, error) {
	var lastErr error
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		current, err := a.repo.GetProposal(ctx, id)
		if err != nil {
			return nil, a.mapLoadError(string(op.action), id, err)
		}

		now := a.clock.Now()
		refreshed := current.Clone()
		lazy := a.refresh(refreshed, now)

		next := refreshed.Clone()
		var events []EventType
		var opErr error
		if op.apply != nil {
			events, opErr = op.apply(next, now)
		}

		if opErr != nil {
			if len(lazy) > 0 {
				// the operation was refused but the lapse still has to be recorded
				if err := a.repo.UpdateProposal(ctx, refreshed); err == nil {
					a.notify(ctx, refreshed, nil, nil, nil, lazy...)
				} else if !errors.Is(err, ErrVersionConflict) {
					log.Error().Err(err).Str("proposal_id", id.String()).Msg("failed to persist lazy transition")
				}
			}
			return nil, opErr
		}

		all := append(lazy, events...)
		if len(all) == 0 {
			return &mutation{proposal: next}, nil
		}

		next.UpdatedAt = now
		if err := a.repo.UpdateProposal(ctx, next); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				lastErr = err
				log.Debug().
					Str("proposal_id", id.String()).
					Str("action", string(op.action)).
					Int("attempt", attempt+1).
					Msg("lost write race, re-reading proposal")
				continue
			}
			return nil, fmt.Errorf("failed to update proposal: %w", err)
		}

		log.Info().
			Str("proposal_id", next.ID.String()).
			Str("slug", next.Slug).
			Str("action", string(op.action)).
			Str("from", string(current.Status)).
			Str("to", string(next.Status)).
			Str("actor", actorString(op.actor)).
			Msg("trade proposal updated")

		a.notify(ctx, next, nil, nil, nil, lazy...)
		a.notify(ctx, next, op.actor, op.franchise, nil, events...)
		return &mutation{proposal: next, events: all}, nil
	}
	return nil, conflict(string(op.action), lastErr)
}

// refresh applies the lazily evaluated rules to a pending proposal: the
// overall deadline first, then the acceptance window.
func (a *App) refresh(p *models.Proposal, now time.Time) []EventType {
	if p.Status != models.ProposalStatusPending {
		return nil
	}
	if now.After(p.ExpiresAt) {
		if err := moveTo(p, ActionExpire, models.ProposalStatusExpired); err != nil {
			return nil
		}
		return []EventType{EventExpired}
	}
	if a.window.ResetIfExpired(p, now) {
		return []EventType{EventWindowReset}
	}
	return nil
}

func (a *App) notify(ctx context.Context, p *models.Proposal, actor, franchise, txnID *uuid.UUID, events ...EventType) {
	franchises := lo.Map(p.Parties, func(party models.Party, _ int) uuid.UUID { return party.FranchiseID })
	for _, et := range events {
		ev := Event{
			Type:          et,
			ProposalID:    p.ID,
			Slug:          p.Slug,
			Status:        p.Status,
			Franchises:    franchises,
			ActorID:       actor,
			TransactionID: txnID,
			OccurredAt:    a.clock.Now(),
		}
		if et == EventAccepted {
			ev.FranchiseID = franchise
		}
		if err := a.notifier.Notify(ctx, ev); err != nil {
			log.Warn().
				Err(err).
				Str("proposal_id", p.ID.String()).
				Str("event_type", string(et)).
				Msg("failed to notify trade event")
		}
	}
}

func (a *App) mapLoadError(action string, id uuid.UUID, err error) error {
	if errors.Is(err, ErrRecordNotFound) {
		return notFound(action, "proposal %s does not exist", id)
	}
	return fmt.Errorf("failed to get proposal: %w", err)
}

func (a *App) expiresAt(now time.Time, override *time.Time) time.Time {
	expires := now.Add(a.policy.ProposalTTL)
	for _, deadline := range []*time.Time{override, a.policy.TradeDeadline} {
		if deadline != nil && deadline.Before(expires) {
			expires = *deadline
		}
	}
	return expires
}

func (a *App) requireRepresentative(ctx context.Context, action string, franchiseID, personID uuid.UUID) error {
	ok, err := a.authz.IsRepresentative(ctx, franchiseID, personID)
	if err != nil {
		return fmt.Errorf("failed to check franchise membership: %w", err)
	}
	if !ok {
		return permissionDenied(action, "person %s does not represent franchise %s", personID, franchiseID)
	}
	return nil
}

func (a *App) requireAdmin(ctx context.Context, action string, personID uuid.UUID) error {
	ok, err := a.authz.IsAdmin(ctx, personID)
	if err != nil {
		return fmt.Errorf("failed to check admin: %w", err)
	}
	if !ok {
		return permissionDenied(action, "person %s is not a league admin", personID)
	}
	return nil
}

func (a *App) representsUnacceptedParty(ctx context.Context, p *models.Proposal, personID uuid.UUID) (bool, error) {
	for _, party := range p.Parties {
		if party.Accepted {
			continue
		}
		ok, err := a.authz.IsRepresentative(ctx, party.FranchiseID, personID)
		if err != nil {
			return false, fmt.Errorf("failed to check franchise membership: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// validateParties checks the shape of the parties, resolves every asset and
// consults the legality validator.
func (a *App) validateParties(ctx context.Context, action string, creatorFranchise uuid.UUID, parties []PartyRequest) error {
	var problems []string
	if len(parties) < 2 {
		problems = append(problems, "a trade needs at least two parties")
	}

	franchises := make(map[uuid.UUID]bool, len(parties))
	for _, party := range parties {
		if party.FranchiseID == uuid.Nil {
			problems = append(problems, "party franchise_id is required")
			continue
		}
		if franchises[party.FranchiseID] {
			problems = append(problems, fmt.Sprintf("franchise %s appears more than once", party.FranchiseID))
		}
		franchises[party.FranchiseID] = true
	}
	if !franchises[creatorFranchise] {
		problems = append(problems, "the creating franchise must be a party")
	}

	seen := make(map[string]bool)
	for _, party := range parties {
		for _, asset := range party.Receives {
			problems = append(problems, validateAsset(asset, party.FranchiseID, franchises)...)
			if asset.Kind == models.AssetKindCash {
				continue
			}
			if seen[asset.Key()] {
				problems = append(problems, fmt.Sprintf("%s %s is included more than once", asset.Kind, asset.ID))
			}
			seen[asset.Key()] = true
		}
	}
	if len(problems) > 0 {
		return validationFailed(action, problems...)
	}

	for _, party := range parties {
		for _, asset := range party.Receives {
			desc, err := a.assets.ResolveAsset(ctx, asset)
			if err != nil {
				if errors.Is(err, ErrAssetNotFound) {
					return notFound(action, "%s %s does not exist", asset.Kind, asset.ID)
				}
				return fmt.Errorf("failed to resolve %s %s: %w", asset.Kind, asset.ID, err)
			}
			if desc.OwnerFranchiseID != asset.FromFranchiseID {
				problems = append(problems, fmt.Sprintf("%s %s is not owned by franchise %s", asset.Kind, asset.ID, asset.FromFranchiseID))
			}
		}
	}
	if len(problems) > 0 {
		return validationFailed(action, problems...)
	}

	violations, err := a.validator.ValidateTrade(ctx, toParties(parties))
	if err != nil {
		return fmt.Errorf("failed to validate trade: %w", err)
	}
	if len(violations) > 0 {
		return validationFailed(action, violations...)
	}
	return nil
}

func validateAsset(asset models.Asset, receiver uuid.UUID, franchises map[uuid.UUID]bool) []string {
	var problems []string
	switch asset.Kind {
	case models.AssetKindPlayer, models.AssetKindPick:
		if asset.ID == uuid.Nil {
			problems = append(problems, fmt.Sprintf("%s asset id is required", asset.Kind))
		}
		if asset.Cash != nil {
			problems = append(problems, fmt.Sprintf("%s %s cannot carry cash terms", asset.Kind, asset.ID))
		}
	case models.AssetKindCash:
		if asset.Cash == nil {
			problems = append(problems, "cash asset requires amount and season")
			break
		}
		if !asset.Cash.Amount.IsPositive() {
			problems = append(problems, "cash amount must be positive")
		}
		if asset.Cash.Season <= 0 {
			problems = append(problems, "cash season must be positive")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown asset kind %q", asset.Kind))
	}
	if !franchises[asset.FromFranchiseID] {
		problems = append(problems, fmt.Sprintf("%s %s must come from a party franchise", asset.Kind, asset.ID))
	}
	if asset.FromFranchiseID == receiver {
		problems = append(problems, fmt.Sprintf("%s %s cannot be received by the franchise giving it", asset.Kind, asset.ID))
	}
	return problems
}

func toParties(reqs []PartyRequest) []models.Party {
	parties := make([]models.Party, len(reqs))
	for i, req := range reqs {
		receives := make([]models.Asset, len(req.Receives))
		for j, asset := range req.Receives {
			if asset.Kind == models.AssetKindCash && asset.ID == uuid.Nil {
				asset.ID = uuid.New()
			}
			if asset.Cash != nil {
				cash := *asset.Cash
				asset.Cash = &cash
			}
			receives[j] = asset
		}
		parties[i] = models.Party{FranchiseID: req.FranchiseID, Receives: receives}
	}
	return parties
}

// cashLines returns the indexes of the cash assets in a party's bundle.
func cashLines(party models.Party) []int {
	var idx []int
	for i, asset := range party.Receives {
		if asset.Kind == models.AssetKindCash && asset.Cash != nil {
			idx = append(idx, i)
		}
	}
	return idx
}

func trimNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	v := strings.TrimSpace(*notes)
	if v == "" {
		return nil
	}
	return &v
}

func newSlug(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("tr-%s-%s", now.UTC().Format("060102"), id[:10])
}

func actorString(id *uuid.UUID) string {
	if id == nil {
		return "system"
	}
	return id.String()
}
