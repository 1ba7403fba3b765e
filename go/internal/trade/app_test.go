package trade_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tradeblock/go/internal/assets"
	"github.com/mcdev12/tradeblock/go/internal/models"
	"github.com/mcdev12/tradeblock/go/internal/trade"
	"github.com/mcdev12/tradeblock/go/internal/trade/memstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, time.March, 2, 18, 0, 0, 0, time.UTC)

type fakeAuthz struct {
	reps  map[uuid.UUID]uuid.UUID // franchise -> person
	admin uuid.UUID
}

func (f *fakeAuthz) IsRepresentative(ctx context.Context, franchiseID, personID uuid.UUID) (bool, error) {
	return f.reps[franchiseID] == personID, nil
}

func (f *fakeAuthz) IsAdmin(ctx context.Context, personID uuid.UUID) (bool, error) {
	return personID == f.admin, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []trade.Event
	err    error
}

func (n *recordingNotifier) Notify(ctx context.Context, event trade.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func (n *recordingNotifier) types() []trade.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]trade.EventType, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	app      *trade.App
	store    *memstore.Store
	catalog  *assets.Catalog
	clock    *clockwork.FakeClock
	notifier *recordingNotifier
	authz    *fakeAuthz
	admin    uuid.UUID
	teams    []uuid.UUID
	reps     []uuid.UUID
	players  []uuid.UUID // players[i] starts on teams[i]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memstore.New(),
		catalog:  assets.NewCatalog(),
		clock:    clockwork.NewFakeClockAt(epoch),
		notifier: &recordingNotifier{},
		admin:    uuid.New(),
	}
	authz := &fakeAuthz{reps: make(map[uuid.UUID]uuid.UUID), admin: f.admin}
	f.authz = authz
	for i := 0; i < 3; i++ {
		team, rep, player := uuid.New(), uuid.New(), uuid.New()
		f.catalog.AddFranchise(team, "team")
		f.catalog.AddPlayer(player, team, "player")
		authz.reps[team] = rep
		f.teams = append(f.teams, team)
		f.reps = append(f.reps, rep)
		f.players = append(f.players, player)
	}
	f.app = f.appOver(f.store)
	return f
}

// appOver builds an app sharing the fixture's collaborators over repo.
func (f *fixture) appOver(repo trade.TradeRepository) *trade.App {
	return trade.NewApp(repo, trade.Collaborators{
		Assets:     f.catalog,
		Notifier:   f.notifier,
		Authorizer: f.authz,
	}, f.clock, trade.DefaultPolicy())
}

// request builds a trade among the first n teams in which team i receives
// the player of team (i+1) mod n.
func (f *fixture) request(n int, propose bool) trade.CreateProposalRequest {
	parties := make([]trade.PartyRequest, n)
	for i := 0; i < n; i++ {
		from := (i + 1) % n
		parties[i] = trade.PartyRequest{
			FranchiseID: f.teams[i],
			Receives: []models.Asset{{
				Kind:            models.AssetKindPlayer,
				ID:              f.players[from],
				FromFranchiseID: f.teams[from],
			}},
		}
	}
	return trade.CreateProposalRequest{
		CreatorFranchiseID: f.teams[0],
		CreatorPersonID:    f.reps[0],
		Parties:            parties,
		Propose:            propose,
	}
}

func (f *fixture) create(t *testing.T, n int, propose bool) *models.Proposal {
	t.Helper()
	p, err := f.app.CreateProposal(context.Background(), f.request(n, propose))
	require.NoError(t, err)
	return p
}

func (f *fixture) accept(t *testing.T, id uuid.UUID, party int) *trade.AcceptOutcome {
	t.Helper()
	out, err := f.app.Accept(context.Background(), id, f.teams[party], f.reps[party])
	require.NoError(t, err)
	return out
}

func (f *fixture) acceptAll(t *testing.T, p *models.Proposal) {
	t.Helper()
	for i := range p.Parties {
		f.accept(t, p.ID, i)
	}
}

func assertKind(t *testing.T, err error, kind trade.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, trade.KindOf(err), "error: %v", err)
}

func assertWindowInvariant(t *testing.T, p *models.Proposal) {
	t.Helper()
	assert.Equal(t, p.AnyAccepted(), p.AcceptanceWindowStart != nil,
		"window start must be set exactly when some party has accepted")
}

func TestCreateProposal(t *testing.T) {
	f := newFixture(t)

	p := f.create(t, 2, false)
	assert.Equal(t, models.ProposalStatusHypothetical, p.Status)
	assert.Nil(t, p.AcceptanceWindowStart)
	assert.Equal(t, epoch.Add(7*24*time.Hour), p.ExpiresAt)
	assert.Regexp(t, `^tr-260302-[0-9a-f]{10}$`, p.Slug)
	assert.Empty(t, f.notifier.types(), "drafts are private")

	p = f.create(t, 2, true)
	assert.Equal(t, models.ProposalStatusPending, p.Status)
	assert.Equal(t, []trade.EventType{trade.EventProposed}, f.notifier.types())

	bySlug, err := f.app.GetProposalBySlug(context.Background(), p.Slug)
	require.NoError(t, err)
	assert.Equal(t, p.ID, bySlug.ID)
}

func TestCreateProposal_Rejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(req *trade.CreateProposalRequest)
		kind   trade.ErrorKind
	}{
		{
			name:   "single party",
			mutate: func(req *trade.CreateProposalRequest) { req.Parties = req.Parties[:1] },
			kind:   trade.KindValidation,
		},
		{
			name: "duplicate franchise",
			mutate: func(req *trade.CreateProposalRequest) {
				req.Parties = append(req.Parties, trade.PartyRequest{FranchiseID: f.teams[1]})
			},
			kind: trade.KindValidation,
		},
		{
			name: "creator is not a party",
			mutate: func(req *trade.CreateProposalRequest) {
				req.CreatorFranchiseID = f.teams[2]
				req.CreatorPersonID = f.reps[2]
			},
			kind: trade.KindValidation,
		},
		{
			name: "asset from outside the trade",
			mutate: func(req *trade.CreateProposalRequest) {
				req.Parties[0].Receives[0] = models.Asset{Kind: models.AssetKindPlayer, ID: f.players[2], FromFranchiseID: f.teams[2]}
			},
			kind: trade.KindValidation,
		},
		{
			name: "asset not owned by the giver",
			mutate: func(req *trade.CreateProposalRequest) {
				req.Parties[1].Receives[0].ID = f.players[1]
				req.Parties[1].Receives[0].FromFranchiseID = f.teams[0]
			},
			kind: trade.KindValidation,
		},
		{
			name: "unknown asset",
			mutate: func(req *trade.CreateProposalRequest) {
				req.Parties[0].Receives[0].ID = uuid.New()
			},
			kind: trade.KindNotFound,
		},
		{
			name: "player without id",
			mutate: func(req *trade.CreateProposalRequest) {
				req.Parties[0].Receives[0].ID = uuid.Nil
			},
			kind: trade.KindValidation,
		},
		{
			name: "non-positive cash",
			mutate: func(req *trade.CreateProposalRequest) {
				req.Parties[0].Receives = append(req.Parties[0].Receives, models.Asset{
					Kind:            models.AssetKindCash,
					FromFranchiseID: f.teams[1],
					Cash:            &models.CashTerms{Amount: decimal.Zero, Season: 2026},
				})
			},
			kind: trade.KindValidation,
		},
		{
			name:   "creator does not represent the franchise",
			mutate: func(req *trade.CreateProposalRequest) { req.CreatorPersonID = f.reps[1] },
			kind:   trade.KindPermission,
		},
		{
			name: "deadline already passed",
			mutate: func(req *trade.CreateProposalRequest) {
				past := epoch.Add(-time.Minute)
				req.DeadlineOverride = &past
			},
			kind: trade.KindValidation,
		},
		{
			name: "counter offer to a missing proposal",
			mutate: func(req *trade.CreateProposalRequest) {
				missing := uuid.New()
				req.CounterOf = &missing
			},
			kind: trade.KindNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.request(2, true)
			tt.mutate(&req)
			_, err := f.app.CreateProposal(ctx, req)
			assertKind(t, err, tt.kind)
		})
	}
	assert.Zero(t, f.store.Len())
}

func TestCreateProposal_CashLinesGetIDs(t *testing.T) {
	f := newFixture(t)
	req := f.request(2, false)
	for _, amount := range []int64{10, 5} {
		req.Parties[1].Receives = append(req.Parties[1].Receives, models.Asset{
			Kind:            models.AssetKindCash,
			FromFranchiseID: f.teams[0],
			Cash:            &models.CashTerms{Amount: decimal.NewFromInt(amount), Season: 2026},
		})
	}

	p, err := f.app.CreateProposal(context.Background(), req)
	require.NoError(t, err)
	first, second := p.Parties[1].Receives[1], p.Parties[1].Receives[2]
	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.NotEqual(t, uuid.Nil, second.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, f.teams[0], first.FromFranchiseID)
}

func TestCreateProposal_DeadlineCapsExpiry(t *testing.T) {
	f := newFixture(t)
	req := f.request(2, false)
	deadline := epoch.Add(2 * time.Hour)
	req.DeadlineOverride = &deadline

	p, err := f.app.CreateProposal(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, deadline, p.ExpiresAt)
}

func TestPropose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, 2, false)

	_, err := f.app.Propose(ctx, p.ID, f.reps[1])
	assertKind(t, err, trade.KindPermission)

	proposed, err := f.app.Propose(ctx, p.ID, f.reps[0])
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusPending, proposed.Status)

	_, err = f.app.Propose(ctx, p.ID, f.reps[0])
	assertKind(t, err, trade.KindInvalidState)
	assert.True(t, errors.Is(err, trade.ErrInvalidState))
}

func TestPropose_AfterDeadline(t *testing.T) {
	f := newFixture(t)
	req := f.request(2, false)
	deadline := epoch.Add(time.Hour)
	req.DeadlineOverride = &deadline
	p, err := f.app.CreateProposal(context.Background(), req)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)

	_, err = f.app.Propose(context.Background(), p.ID, f.reps[0])
	assertKind(t, err, trade.KindInvalidState)
}

func TestUpdateDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, 2, false)

	three := f.request(3, false).Parties
	_, err := f.app.UpdateDraft(ctx, p.ID, f.reps[1], three)
	assertKind(t, err, trade.KindPermission)

	updated, err := f.app.UpdateDraft(ctx, p.ID, f.reps[0], three)
	require.NoError(t, err)
	assert.Len(t, updated.Parties, 3)

	_, err = f.app.Propose(ctx, p.ID, f.reps[0])
	require.NoError(t, err)
	_, err = f.app.UpdateDraft(ctx, p.ID, f.reps[0], f.request(2, false).Parties)
	assertKind(t, err, trade.KindInvalidState)
}

func TestAccept_OpensWindowAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, 3, true)

	out := f.accept(t, p.ID, 0)
	assert.False(t, out.WindowReset)
	assert.Equal(t, models.ProposalStatusPending, out.Proposal.Status)
	require.NotNil(t, out.Proposal.AcceptanceWindowStart)
	assert.Equal(t, epoch, *out.Proposal.AcceptanceWindowStart)
	assertWindowInvariant(t, out.Proposal)
	version := out.Proposal.Version

	f.clock.Advance(time.Minute)
	again := f.accept(t, p.ID, 0)
	assert.Equal(t, version, again.Proposal.Version, "a repeated accept writes nothing")
	assert.Equal(t, epoch, *again.Proposal.AcceptanceWindowStart)
	assert.Equal(t, epoch, *again.Proposal.Parties[0].AcceptedAt)

	f.clock.Advance(time.Minute)
	f.accept(t, p.ID, 1)
	last := f.accept(t, p.ID, 2)
	assert.Equal(t, models.ProposalStatusAccepted, last.Proposal.Status)
	assert.Equal(t, epoch, *last.Proposal.AcceptanceWindowStart, "the window does not restart while open")
	assertWindowInvariant(t, last.Proposal)

	// accepting an accepted proposal again is also a no-op
	f.accept(t, p.ID, 2)

	assert.Equal(t, []trade.EventType{
		trade.EventProposed,
		trade.EventAccepted,
		trade.EventAccepted,
		trade.EventAccepted,
		trade.EventAllAccepted,
	}, f.notifier.types())
}

func TestAccept_WindowLapseResetsAcceptances(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, 3, true)

	f.accept(t, p.ID, 0)
	f.clock.Advance(11 * time.Minute)

	out := f.accept(t, p.ID, 1)
	assert.True(t, out.WindowReset)
	assert.Equal(t, trade.WindowExpiredNotice, out.Notice)
	assert.Equal(t, models.ProposalStatusPending, out.Proposal.Status)
	assert.False(t, out.Proposal.Parties[0].Accepted, "the lapsed acceptance is cleared")
	assert.True(t, out.Proposal.Parties[1].Accepted)
	require.NotNil(t, out.Proposal.AcceptanceWindowStart)
	assert.Equal(t, epoch.Add(11*time.Minute), *out.Proposal.AcceptanceWindowStart)
	assert.Equal(t, 10*time.Minute, f.app.RemainingWindow(out.Proposal))
	assert.Contains(t, f.notifier.types(), trade.EventWindowReset)
}

func TestAccept_WithinWindowCompletes(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, 2, true)

	f.accept(t, p.ID, 0)
	f.clock.Advance(10 * time.Minute)

	out := f.accept(t, p.ID, 1)
	assert.False(t, out.WindowReset)
	assert.Equal(t, models.ProposalStatusAccepted, out.Proposal.Status)

	// an accepted proposal is not affected by the window any more
	f.clock.Advance(time.Hour)
	got, err := f.app.GetProposal(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusAccepted, got.Status)
	assert.True(t, got.AllAccepted())
}

func TestAccept_ConcurrentPartiesAllRecorded(t *testing.T) {
	for round := 0; round < 20; round++ {
		f := newFixture(t)
		ctx := context.Background()
		p := f.create(t, 3, true)

		errs := make([]error, len(p.Parties))
		var wg sync.WaitGroup
		for i := range p.Parties {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				// a caller that sees a conflict re-submits, as clients do
				for attempt := 0; attempt < 3; attempt++ {
					_, err := f.app.Accept(ctx, p.ID, f.teams[i], f.reps[i])
					errs[i] = err
					if !errors.Is(err, trade.ErrConflict) {
						return
					}
				}
			}(i)
		}
		wg.Wait()

		for i, err := range errs {
			require.NoError(t, err, "party %d", i)
		}
		stored, err := f.store.GetProposal(ctx, p.ID)
		require.NoError(t, err)
		for i, party := range stored.Parties {
			assert.True(t, party.Accepted, "party %d acceptance was lost", i)
			assert.Equal(t, f.reps[i], *party.AcceptedBy)
		}
		assert.Equal(t, models.ProposalStatusAccepted, stored.Status)
		assertWindowInvariant(t, stored)
	}
}

func TestGetProposal_PersistsWindowReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, 2, true)
	f.accept(t, p.ID, 0)
	f.clock.Advance(10*time.Minute + time.Second)

	got, err := f.app.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.AnyAccepted())
	assert.Nil(t, got.AcceptanceWindowStart)
	assert.Zero(t, f.app.RemainingWindow(got))

	stored, err := f.store.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.AcceptanceWindowStart)
}

func TestListProposals_RefreshesWithoutWriting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, 2, true)
	f.accept(t, p.ID, 0)
	f.clock.Advance(11 * time.Minute)

	list, err := f.app.ListProposals(ctx, trade.ListFilter{FranchiseID: &f.teams[1]})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].AnyAccepted())

	stored, err := f.store.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, stored.Parties[0].Accepted)

	bad := models.ProposalStatus("lost")
	_, err = f.app.ListProposals(ctx, trade.ListFilter{Status: &bad})
	assertKind(t, err, trade.KindValidation)

	other := f.teams[2]
	list, err = f.app.ListProposals(ctx, trade.ListFilter{FranchiseID: &other})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAccept_Refused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.create(t, 2, false)
	p := f.create(t, 2, true)

	_, err := f.app.Accept(ctx, draft.ID, f.teams[1], f.reps[1])
	assertKind(t, err, trade.KindInvalidState)

	_, err = f.app.Accept(ctx, p.ID, f.teams[1], f.reps[0])
	assertKind(t, err, trade.KindPermission)

	_, err = f.app.Accept(ctx, p.ID, f.teams[2], f.reps[2])
	assertKind(t, err, trade.KindPermission)

	_, err = f.app.Accept(ctx, uuid.New(), f.teams[1], f.reps[1])
	assertKind(t, err, trade.KindNotFound)
}

func TestAccept_PastDeadlineExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, 2, true)
	f.accept(t, p.ID, 0)

	f.clock.Advance(7*24*time.Hour + time.Second)

	_, err := f.app.Accept(ctx, p.ID, f.teams[1], f.reps[1])
	assertKind(t, err, trade.KindInvalidState)

	stored, err := f.store.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusExpired, stored.Status, "the lapse is recorded even though accept was refused")
	assert.Contains(t, f.notifier.types(), trade.EventExpired)
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, 2, true)
	f.accept(t, p.ID, 0)

	_, err := f.app.Reject(ctx, p.ID, f.reps[0], false)
	assertKind(t, err, trade.KindPermission)

	_, err = f.app.Reject(ctx, p.ID, uuid.New(), false)
	assertKind(t, err, trade.KindPermission)

	rejected, err := f.app.Reject(ctx, p.ID, f.reps[1], false)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusRejected, rejected.Status)

	_, err = f.app.Accept(ctx, p.ID, f.teams[1], f.reps[1])
	assertKind(t, err, trade.KindInvalidState)
	_, err = f.app.Propose(ctx, p.ID, f.reps[0])
	assertKind(t, err, trade.KindInvalidState)
}

func TestAdminReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, 2, true)
	f.acceptAll(t, p)

	_, err := f.app.AdminReject(ctx, p.ID, f.reps[0])
	assertKind(t, err, trade.KindPermission)

	rejected, err := f.app.AdminReject(ctx, p.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusRejected, rejected.Status)

	draft := f.create(t, 2, false)
	_, err = f.app.AdminReject(ctx, draft.ID, f.admin)
	assertKind(t, err, trade.KindInvalidState)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft := f.create(t, 2, false)
	_, err := f.app.Cancel(ctx, draft.ID, f.reps[1])
	assertKind(t, err, trade.KindPermission)
	canceled, err := f.app.Cancel(ctx, draft.ID, f.reps[0])
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusCanceled, canceled.Status)

	pending := f.create(t, 2, true)
	_, err = f.app.Cancel(ctx, pending.ID, f.reps[0])
	require.NoError(t, err)

	accepted := f.create(t, 2, true)
	f.acceptAll(t, accepted)
	_, err = f.app.Cancel(ctx, accepted.ID, f.reps[0])
	assertKind(t, err, trade.KindInvalidState)
}

func TestApprove_ThreePartyTrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	notes := "  three way  "
	req := f.request(3, true)
	req.Notes = &notes
	p, err := f.app.CreateProposal(ctx, req)
	require.NoError(t, err)
	f.acceptAll(t, p)

	_, err = f.app.Approve(ctx, p.ID, f.reps[0])
	assertKind(t, err, trade.KindPermission)

	f.clock.Advance(time.Minute)
	res, err := f.app.Approve(ctx, p.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusExecuted, res.Proposal.Status)
	require.NotNil(t, res.Proposal.ExecutedTransactionID)
	assert.Equal(t, res.Transaction.ID, *res.Proposal.ExecutedTransactionID)

	txn := res.Transaction
	assert.Equal(t, p.Slug, txn.ProposalSlug)
	assert.Equal(t, f.admin, txn.ApprovedBy)
	assert.Equal(t, epoch.Add(time.Minute), txn.ExecutedAt)
	require.NotNil(t, txn.Notes)
	assert.Equal(t, "three way", *txn.Notes)
	require.Len(t, txn.Assets, 3)
	for i, a := range txn.Assets {
		assert.Equal(t, f.teams[i], a.ToFranchiseID)
		assert.Equal(t, f.teams[(i+1)%3], a.FromFranchiseID)
		assert.Equal(t, f.players[(i+1)%3], a.AssetID)
	}
	require.Len(t, txn.Parties, 3)
	assert.True(t, txn.Parties[2].Accepted)

	again, err := f.app.Approve(ctx, p.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, again.Transaction.ID)

	ledger, err := f.app.ListTransactions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, ledger, 1)

	got, err := f.app.GetTransaction(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, got.ID)

	types := f.notifier.types()
	assert.Equal(t, trade.EventExecuted, types[len(types)-1])
}

func TestApprove_ConcurrentCallsCommitOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, 2, true)
	f.acceptAll(t, p)

	const callers = 16
	ids := make([]uuid.UUID, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.app.Approve(ctx, p.ID, f.admin)
			errs[i] = err
			if err == nil {
				ids[i] = res.Transaction.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	ledger, err := f.app.ListTransactions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, ledger, 1)

	executed := 0
	for _, et := range f.notifier.types() {
		if et == trade.EventExecuted {
			executed++
		}
	}
	assert.Equal(t, 1, executed)
}

func TestApprove_Refused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.create(t, 2, true)
	f.accept(t, pending.ID, 0)
	_, err := f.app.Approve(ctx, pending.ID, f.admin)
	assertKind(t, err, trade.KindInvalidState)

	_, err = f.app.Approve(ctx, uuid.New(), f.admin)
	assertKind(t, err, trade.KindNotFound)

	_, err = f.app.GetTransaction(ctx, pending.ID)
	assertKind(t, err, trade.KindNotFound)
}

func TestApprove_AssetClaimedByEarlierTrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.create(t, 2, true)
	second := f.create(t, 2, true)
	f.acceptAll(t, first)
	f.acceptAll(t, second)

	f.clock.Advance(time.Minute)
	res, err := f.app.Approve(ctx, first.ID, f.admin)
	require.NoError(t, err)

	_, err = f.app.Approve(ctx, second.ID, f.admin)
	assertKind(t, err, trade.KindConflict)
	var te *trade.Error
	require.True(t, errors.As(err, &te))
	require.Len(t, te.Conflicts, 2)
	for _, c := range te.Conflicts {
		require.NotNil(t, c.CompetingTransactionID)
		assert.Equal(t, res.Transaction.ID, *c.CompetingTransactionID)
		assert.Equal(t, first.Slug, c.CompetingProposalSlug)
	}

	stored, err := f.store.GetProposal(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusAccepted, stored.Status, "a refused commit changes nothing")
	ledger, err := f.app.ListTransactions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, ledger, 1)
}

// overlappingTrades returns two accepted proposals that both send
// players[0] away from teams[0].
func (f *fixture) overlappingTrades(t *testing.T) (*models.Proposal, *models.Proposal) {
	t.Helper()
	first := f.create(t, 2, true)

	req := f.request(2, true)
	req.Parties[1].FranchiseID = f.teams[2]
	req.Parties[0].Receives[0] = models.Asset{Kind: models.AssetKindPlayer, ID: f.players[2], FromFranchiseID: f.teams[2]}
	second, err := f.app.CreateProposal(context.Background(), req)
	require.NoError(t, err)

	f.acceptAll(t, first)
	for _, i := range []int{0, 2} {
		_, err := f.app.Accept(context.Background(), second.ID, f.teams[i], f.reps[i])
		require.NoError(t, err)
	}
	return first, second
}

func TestApprove_OverlappingTradesCommitOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, second := f.overlappingTrades(t)
	f.clock.Advance(time.Minute)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, id := range []uuid.UUID{first.ID, second.ID} {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.app.Approve(ctx, id, f.admin)
		}(i, id)
	}
	wg.Wait()

	var committed, refused int
	for _, err := range errs {
		switch {
		case err == nil:
			committed++
		case errors.Is(err, trade.ErrConflict):
			refused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, committed)
	assert.Equal(t, 1, refused)

	ledger, err := f.app.ListTransactions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, ledger, 1)
}

// lockRecorder notes the order of asset locking and claim lookups made
// inside commit transactions.
type lockRecorder struct {
	*memstore.Store
	mu    sync.Mutex
	calls []string
}

func (r *lockRecorder) RunInTx(ctx context.Context, fn func(tx trade.TradeRepository) error) error {
	return r.Store.RunInTx(ctx, func(tx trade.TradeRepository) error {
		return fn(&recordingTx{TradeRepository: tx, rec: r})
	})
}

func (r *lockRecorder) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

type recordingTx struct {
	trade.TradeRepository
	rec *lockRecorder
}

func (tx *recordingTx) LockAssets(ctx context.Context, keys []string) error {
	for _, key := range keys {
		tx.rec.record("lock " + key)
	}
	return tx.TradeRepository.LockAssets(ctx, keys)
}

func (tx *recordingTx) FindAssetClaims(ctx context.Context, assets []models.Asset, since time.Time, excludeProposal uuid.UUID) ([]trade.AssetClaim, error) {
	tx.rec.record("claims")
	return tx.TradeRepository.FindAssetClaims(ctx, assets, since, excludeProposal)
}

func TestApprove_LocksAssetsBeforeCheckingClaims(t *testing.T) {
	f := newFixture(t)
	rec := &lockRecorder{Store: f.store}
	app := f.appOver(rec)

	req := f.request(2, true)
	req.Parties[0].Receives = append(req.Parties[0].Receives, models.Asset{
		Kind:            models.AssetKindCash,
		FromFranchiseID: f.teams[1],
		Cash:            &models.CashTerms{Amount: decimal.NewFromInt(3), Season: 2026},
	})
	p, err := app.CreateProposal(context.Background(), req)
	require.NoError(t, err)
	f.acceptAll(t, p)

	_, err = app.Approve(context.Background(), p.ID, f.admin)
	require.NoError(t, err)

	keys := []string{
		models.Asset{Kind: models.AssetKindPlayer, ID: f.players[0]}.Key(),
		models.Asset{Kind: models.AssetKindPlayer, ID: f.players[1]}.Key(),
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"lock " + keys[0], "lock " + keys[1], "claims"}, rec.calls,
		"cash is not locked and players are locked in key order")
}

func TestApprove_AssetMovedOutsideTrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, 2, true)
	f.acceptAll(t, p)

	f.catalog.Remove(models.AssetKindPlayer, f.players[0])
	require.NoError(t, f.catalog.Move(models.AssetKindPlayer, f.players[1], f.teams[2]))

	_, err := f.app.Approve(ctx, p.ID, f.admin)
	assertKind(t, err, trade.KindConflict)
	var te *trade.Error
	require.True(t, errors.As(err, &te))
	reasons := make([]string, len(te.Conflicts))
	for i, c := range te.Conflicts {
		reasons[i] = c.Reason
	}
	assert.ElementsMatch(t, []string{
		"now owned by franchise " + f.teams[2].String(),
		"no longer exists",
	}, reasons)
}

func TestApprove_LegalityRecheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	validator := &toggleValidator{}
	f.app = trade.NewApp(f.store, trade.Collaborators{
		Assets:     f.catalog,
		Validator:  validator,
		Notifier:   f.notifier,
		Authorizer: &fakeAuthz{reps: map[uuid.UUID]uuid.UUID{f.teams[0]: f.reps[0], f.teams[1]: f.reps[1]}, admin: f.admin},
	}, f.clock, trade.DefaultPolicy())
	p := f.create(t, 2, true)
	f.acceptAll(t, p)

	validator.violation = "team over the cap"
	_, err := f.app.Approve(ctx, p.ID, f.admin)
	assertKind(t, err, trade.KindValidation)
	assert.Contains(t, err.Error(), "team over the cap")
}

type toggleValidator struct {
	violation string
}

func (v *toggleValidator) ValidateTrade(ctx context.Context, parties []models.Party) ([]string, error) {
	if v.violation == "" {
		return nil, nil
	}
	return []string{v.violation}, nil
}

func TestExecutedIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, 2, true)
	f.acceptAll(t, p)
	_, err := f.app.Approve(ctx, p.ID, f.admin)
	require.NoError(t, err)

	_, err = f.app.AdminReject(ctx, p.ID, f.admin)
	assertKind(t, err, trade.KindInvalidState)
	_, err = f.app.Cancel(ctx, p.ID, f.reps[0])
	assertKind(t, err, trade.KindInvalidState)
	_, err = f.app.Accept(ctx, p.ID, f.teams[0], f.reps[0])
	assertKind(t, err, trade.KindInvalidState)
	notes := "late"
	_, err = f.app.EditNotes(ctx, p.ID, f.admin, &notes)
	assertKind(t, err, trade.KindInvalidState)
	amount := decimal.NewFromInt(5)
	_, err = f.app.EditCash(ctx, p.ID, f.admin, trade.CashEdit{Amount: &amount})
	assertKind(t, err, trade.KindInvalidState)

	f.clock.Advance(30 * 24 * time.Hour)
	got, err := f.app.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusExecuted, got.Status)
}

func TestEditCash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.request(2, true)
	req.Parties[0].Receives = append(req.Parties[0].Receives, models.Asset{
		Kind:            models.AssetKindCash,
		FromFranchiseID: f.teams[1],
		Cash:            &models.CashTerms{Amount: decimal.NewFromInt(10), Season: 2026},
	})
	p, err := f.app.CreateProposal(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, p.Parties[0].Receives[1].ID, "cash lines get their own id")
	f.accept(t, p.ID, 0)

	amount := decimal.RequireFromString("12.50")
	season := 2027
	_, err = f.app.EditCash(ctx, p.ID, f.reps[0], trade.CashEdit{Amount: &amount})
	assertKind(t, err, trade.KindPermission)

	edited, err := f.app.EditCash(ctx, p.ID, f.admin, trade.CashEdit{Amount: &amount, Season: &season})
	require.NoError(t, err)
	cash := edited.Parties[0].Receives[1].Cash
	assert.True(t, amount.Equal(cash.Amount))
	assert.Equal(t, 2027, cash.Season)
	assert.True(t, edited.Parties[0].Accepted, "a cash correction keeps acceptances")

	negative := decimal.NewFromInt(-1)
	_, err = f.app.EditCash(ctx, p.ID, f.admin, trade.CashEdit{Amount: &negative})
	assertKind(t, err, trade.KindValidation)
	_, err = f.app.EditCash(ctx, p.ID, f.admin, trade.CashEdit{})
	assertKind(t, err, trade.KindValidation)
	_, err = f.app.EditCash(ctx, p.ID, f.admin, trade.CashEdit{PartyIndex: 1, Amount: &amount})
	assertKind(t, err, trade.KindNotFound)
	_, err = f.app.EditCash(ctx, p.ID, f.admin, trade.CashEdit{PartyIndex: 5, Amount: &amount})
	assertKind(t, err, trade.KindNotFound)
}

func TestEditNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, 2, true)
	_, err := f.app.Reject(ctx, p.ID, f.reps[1], false)
	require.NoError(t, err)

	notes := "  vetoed by commissioner  "
	edited, err := f.app.EditNotes(ctx, p.ID, f.admin, &notes)
	require.NoError(t, err)
	require.NotNil(t, edited.Notes)
	assert.Equal(t, "vetoed by commissioner", *edited.Notes)

	blank := "   "
	edited, err = f.app.EditNotes(ctx, p.ID, f.admin, &blank)
	require.NoError(t, err)
	assert.Nil(t, edited.Notes)

	_, err = f.app.EditNotes(ctx, p.ID, f.reps[0], &notes)
	assertKind(t, err, trade.KindPermission)
}

func TestNotifierFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("push service down")
	p := f.create(t, 2, true)

	out := f.accept(t, p.ID, 0)
	assert.True(t, out.Proposal.Parties[0].Accepted)

	stored, err := f.store.GetProposal(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, stored.Parties[0].Accepted)
}
