package trade_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/tradeblock/go/internal/models"
	"github.com/mcdev12/tradeblock/go/internal/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jsonClientCodec struct{}

func (jsonClientCodec) Name() string                       { return "json" }
func (jsonClientCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonClientCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func newClient[Req, Res any](srv *httptest.Server, procedure string) *connect.Client[Req, Res] {
	return connect.NewClient[Req, Res](srv.Client(), srv.URL+procedure, connect.WithCodec(jsonClientCodec{}))
}

func startService(t *testing.T, f *fixture) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle(trade.NewTradeServiceHandler(trade.NewService(f.app)))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestService_NegotiateAndApprove(t *testing.T) {
	f := newFixture(t)
	srv := startService(t, f)
	ctx := context.Background()

	create := newClient[trade.CreateProposalRequest, trade.ProposalResponse](srv, trade.CreateProposalProcedure)
	accept := newClient[trade.AcceptRequest, trade.AcceptResponse](srv, trade.AcceptProcedure)
	approve := newClient[trade.ProposalRef, trade.CommitResult](srv, trade.ApproveProcedure)
	ledger := newClient[trade.ListTransactionsRequest, trade.ListTransactionsResponse](srv, trade.ListTransactionsProcedure)

	created, err := create.CallUnary(ctx, connect.NewRequest(ptr(f.request(2, true))))
	require.NoError(t, err)
	p := created.Msg.Proposal
	assert.Equal(t, models.ProposalStatusPending, p.Status)
	assert.Zero(t, created.Msg.WindowRemainingSec)

	first, err := accept.CallUnary(ctx, connect.NewRequest(&trade.AcceptRequest{
		ProposalRef: trade.ProposalRef{ProposalID: p.ID, ActorID: f.reps[0]},
		FranchiseID: f.teams[0],
	}))
	require.NoError(t, err)
	assert.Equal(t, int((10 * time.Minute).Seconds()), first.Msg.WindowRemainingSec)

	second, err := accept.CallUnary(ctx, connect.NewRequest(&trade.AcceptRequest{
		ProposalRef: trade.ProposalRef{ProposalID: p.ID, ActorID: f.reps[1]},
		FranchiseID: f.teams[1],
	}))
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusAccepted, second.Msg.Proposal.Status)

	committed, err := approve.CallUnary(ctx, connect.NewRequest(&trade.ProposalRef{ProposalID: p.ID, ActorID: f.admin}))
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusExecuted, committed.Msg.Proposal.Status)
	assert.Len(t, committed.Msg.Transaction.Assets, 2)

	txns, err := ledger.CallUnary(ctx, connect.NewRequest(&trade.ListTransactionsRequest{}))
	require.NoError(t, err)
	require.Len(t, txns.Msg.Transactions, 1)
	assert.Equal(t, committed.Msg.Transaction.ID, txns.Msg.Transactions[0].ID)
}

func TestService_ErrorCodes(t *testing.T) {
	f := newFixture(t)
	srv := startService(t, f)
	ctx := context.Background()

	get := newClient[trade.GetProposalRequest, trade.ProposalResponse](srv, trade.GetProposalProcedure)
	accept := newClient[trade.AcceptRequest, trade.AcceptResponse](srv, trade.AcceptProcedure)
	approve := newClient[trade.ProposalRef, trade.CommitResult](srv, trade.ApproveProcedure)

	_, err := get.CallUnary(ctx, connect.NewRequest(&trade.GetProposalRequest{ProposalID: uuid.New()}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	_, err = get.CallUnary(ctx, connect.NewRequest(&trade.GetProposalRequest{}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	p := f.create(t, 2, true)

	_, err = accept.CallUnary(ctx, connect.NewRequest(&trade.AcceptRequest{
		ProposalRef: trade.ProposalRef{ProposalID: p.ID, ActorID: f.reps[2]},
		FranchiseID: f.teams[0],
	}))
	require.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
	var cerr *connect.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, string(trade.KindPermission), cerr.Meta().Get(trade.ErrorKindHeader))

	_, err = approve.CallUnary(ctx, connect.NewRequest(&trade.ProposalRef{ProposalID: p.ID, ActorID: f.admin}))
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))
}

func TestService_ConflictsInMetadata(t *testing.T) {
	f := newFixture(t)
	srv := startService(t, f)
	ctx := context.Background()

	p := f.create(t, 2, true)
	f.acceptAll(t, p)
	require.NoError(t, f.catalog.Move(models.AssetKindPlayer, f.players[1], f.teams[2]))

	approve := newClient[trade.ProposalRef, trade.CommitResult](srv, trade.ApproveProcedure)
	_, err := approve.CallUnary(ctx, connect.NewRequest(&trade.ProposalRef{ProposalID: p.ID, ActorID: f.admin}))
	require.Equal(t, connect.CodeAborted, connect.CodeOf(err))

	var cerr *connect.Error
	require.ErrorAs(t, err, &cerr)
	var conflicts []trade.AssetConflict
	require.NoError(t, json.Unmarshal([]byte(cerr.Meta().Get(trade.ConflictsHeader)), &conflicts))
	require.Len(t, conflicts, 1)
	assert.Equal(t, f.players[1], conflicts[0].Asset.ID)
}

func ptr[T any](v T) *T { return &v }
