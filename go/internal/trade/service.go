package trade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/tradeblock/go/internal/models"
	"github.com/rs/zerolog/log"
)

// TradeApp defines what the service layer needs from the trade application
type TradeApp interface {
	CreateProposal(ctx context.Context, req CreateProposalRequest) (*models.Proposal, error)
	UpdateDraft(ctx context.Context, id, actorID uuid.UUID, parties []PartyRequest) (*models.Proposal, error)
	Propose(ctx context.Context, id, actorID uuid.UUID) (*models.Proposal, error)
	Accept(ctx context.Context, id, franchiseID, actorID uuid.UUID) (*AcceptOutcome, error)
	Reject(ctx context.Context, id, actorID uuid.UUID, byAdmin bool) (*models.Proposal, error)
	AdminReject(ctx context.Context, id, adminID uuid.UUID) (*models.Proposal, error)
	Cancel(ctx context.Context, id, actorID uuid.UUID) (*models.Proposal, error)
	Approve(ctx context.Context, id, adminID uuid.UUID) (*CommitResult, error)
	EditNotes(ctx context.Context, id, adminID uuid.UUID, notes *string) (*models.Proposal, error)
	EditCash(ctx context.Context, id, adminID uuid.UUID, edit CashEdit) (*models.Proposal, error)
	GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	GetProposalBySlug(ctx context.Context, slug string) (*models.Proposal, error)
	ListProposals(ctx context.Context, filter ListFilter) ([]models.Proposal, error)
	GetTransaction(ctx context.Context, proposalID uuid.UUID) (*models.Transaction, error)
	ListTransactions(ctx context.Context, limit int) ([]models.Transaction, error)
	RemainingWindow(p *models.Proposal) time.Duration
}

// TradeServiceName is the fully-qualified name of the trade service.
const TradeServiceName = "tradeblock.trade.v1.TradeService"

// Procedure paths of the trade service.
const (
	CreateProposalProcedure   = "/" + TradeServiceName + "/CreateProposal"
	UpdateDraftProcedure      = "/" + TradeServiceName + "/UpdateDraft"
	ProposeProcedure          = "/" + TradeServiceName + "/Propose"
	AcceptProcedure           = "/" + TradeServiceName + "/Accept"
	RejectProcedure           = "/" + TradeServiceName + "/Reject"
	AdminRejectProcedure      = "/" + TradeServiceName + "/AdminReject"
	CancelProcedure           = "/" + TradeServiceName + "/Cancel"
	ApproveProcedure          = "/" + TradeServiceName + "/Approve"
	EditNotesProcedure        = "/" + TradeServiceName + "/EditNotes"
	EditCashProcedure         = "/" + TradeServiceName + "/EditCash"
	GetProposalProcedure      = "/" + TradeServiceName + "/GetProposal"
	ListProposalsProcedure    = "/" + TradeServiceName + "/ListProposals"
	GetTransactionProcedure   = "/" + TradeServiceName + "/GetTransaction"
	ListTransactionsProcedure = "/" + TradeServiceName + "/ListTransactions"
)

// ProposalRef names a proposal and the person acting on it.
type ProposalRef struct {
	ProposalID uuid.UUID `json:"proposal_id"`
	ActorID    uuid.UUID `json:"actor_id"`
}

type UpdateDraftRequest struct {
	ProposalRef
	Parties []PartyRequest `json:"parties"`
}

type AcceptRequest struct {
	ProposalRef
	FranchiseID uuid.UUID `json:"franchise_id"`
}

type EditNotesRequest struct {
	ProposalRef
	Notes *string `json:"notes"`
}

type EditCashRequest struct {
	ProposalRef
	Edit CashEdit `json:"edit"`
}

// GetProposalRequest looks a proposal up by id or, when id is empty, by slug.
type GetProposalRequest struct {
	ProposalID uuid.UUID `json:"proposal_id"`
	Slug       string    `json:"slug"`
}

type ListProposalsRequest struct {
	Status      *models.ProposalStatus `json:"status,omitempty"`
	FranchiseID *uuid.UUID             `json:"franchise_id,omitempty"`
	Limit       int                    `json:"limit"`
}

type GetTransactionRequest struct {
	ProposalID uuid.UUID `json:"proposal_id"`
}

type ListTransactionsRequest struct {
	Limit int `json:"limit"`
}

// ProposalResponse carries a proposal with its remaining acceptance window.
type ProposalResponse struct {
	Proposal           *models.Proposal `json:"proposal"`
	WindowRemainingSec int              `json:"window_remaining_sec"`
}

type AcceptResponse struct {
	ProposalResponse
	WindowReset bool   `json:"window_reset"`
	Notice      string `json:"notice,omitempty"`
}

type ListProposalsResponse struct {
	Proposals []ProposalResponse `json:"proposals"`
}

type TransactionResponse struct {
	Transaction *models.Transaction `json:"transaction"`
}

type ListTransactionsResponse struct {
	Transactions []models.Transaction `json:"transactions"`
}

// Service exposes the trade app over Connect with a JSON codec.
type Service struct {
	app TradeApp
}

func NewService(app TradeApp) *Service {
	return &Service{app: app}
}

func (s *Service) CreateProposal(ctx context.Context, req *connect.Request[CreateProposalRequest]) (*connect.Response[ProposalResponse], error) {
	p, err := s.app.CreateProposal(ctx, *req.Msg)
	return s.proposalResponse(p, err)
}

func (s *Service) UpdateDraft(ctx context.Context, req *connect.Request[UpdateDraftRequest]) (*connect.Response[ProposalResponse], error) {
	p, err := s.app.UpdateDraft(ctx, req.Msg.ProposalID, req.Msg.ActorID, req.Msg.Parties)
	return s.proposalResponse(p, err)
}

func (s *Service) Propose(ctx context.Context, req *connect.Request[ProposalRef]) (*connect.Response[ProposalResponse], error) {
	p, err := s.app.Propose(ctx, req.Msg.ProposalID, req.Msg.ActorID)
	return s.proposalResponse(p, err)
}

func (s *Service) Accept(ctx context.Context, req *connect.Request[AcceptRequest]) (*connect.Response[AcceptResponse], error) {
	out, err := s.app.Accept(ctx, req.Msg.ProposalID, req.Msg.FranchiseID, req.Msg.ActorID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&AcceptResponse{
		ProposalResponse: s.toProposalResponse(out.Proposal),
		WindowReset:      out.WindowReset,
		Notice:           out.Notice,
	}), nil
}

func (s *Service) Reject(ctx context.Context, req *connect.Request[ProposalRef]) (*connect.Response[ProposalResponse], error) {
	p, err := s.app.Reject(ctx, req.Msg.ProposalID, req.Msg.ActorID, false)
	return s.proposalResponse(p, err)
}

func (s *Service) AdminReject(ctx context.Context, req *connect.Request[ProposalRef]) (*connect.Response[ProposalResponse], error) {
	p, err := s.app.AdminReject(ctx, req.Msg.ProposalID, req.Msg.ActorID)
	return s.proposalResponse(p, err)
}

func (s *Service) Cancel(ctx context.Context, req *connect.Request[ProposalRef]) (*connect.Response[ProposalResponse], error) {
	p, err := s.app.Cancel(ctx, req.Msg.ProposalID, req.Msg.ActorID)
	return s.proposalResponse(p, err)
}

func (s *Service) Approve(ctx context.Context, req *connect.Request[ProposalRef]) (*connect.Response[CommitResult], error) {
	res, err := s.app.Approve(ctx, req.Msg.ProposalID, req.Msg.ActorID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(res), nil
}

func (s *Service) EditNotes(ctx context.Context, req *connect.Request[EditNotesRequest]) (*connect.Response[ProposalResponse], error) {
	p, err := s.app.EditNotes(ctx, req.Msg.ProposalID, req.Msg.ActorID, req.Msg.Notes)
	return s.proposalResponse(p, err)
}

func (s *Service) EditCash(ctx context.Context, req *connect.Request[EditCashRequest]) (*connect.Response[ProposalResponse], error) {
	p, err := s.app.EditCash(ctx, req.Msg.ProposalID, req.Msg.ActorID, req.Msg.Edit)
	return s.proposalResponse(p, err)
}

func (s *Service) GetProposal(ctx context.Context, req *connect.Request[GetProposalRequest]) (*connect.Response[ProposalResponse], error) {
	switch {
	case req.Msg.ProposalID != uuid.Nil:
		p, err := s.app.GetProposal(ctx, req.Msg.ProposalID)
		return s.proposalResponse(p, err)
	case req.Msg.Slug != "":
		p, err := s.app.GetProposalBySlug(ctx, req.Msg.Slug)
		return s.proposalResponse(p, err)
	default:
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("proposal_id or slug is required"))
	}
}

func (s *Service) ListProposals(ctx context.Context, req *connect.Request[ListProposalsRequest]) (*connect.Response[ListProposalsResponse], error) {
	proposals, err := s.app.ListProposals(ctx, ListFilter{
		Status:      req.Msg.Status,
		FranchiseID: req.Msg.FranchiseID,
		Limit:       req.Msg.Limit,
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	out := make([]ProposalResponse, len(proposals))
	for i := range proposals {
		out[i] = s.toProposalResponse(&proposals[i])
	}
	return connect.NewResponse(&ListProposalsResponse{Proposals: out}), nil
}

func (s *Service) GetTransaction(ctx context.Context, req *connect.Request[GetTransactionRequest]) (*connect.Response[TransactionResponse], error) {
	txn, err := s.app.GetTransaction(ctx, req.Msg.ProposalID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&TransactionResponse{Transaction: txn}), nil
}

func (s *Service) ListTransactions(ctx context.Context, req *connect.Request[ListTransactionsRequest]) (*connect.Response[ListTransactionsResponse], error) {
	txns, err := s.app.ListTransactions(ctx, req.Msg.Limit)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListTransactionsResponse{Transactions: txns}), nil
}

func (s *Service) proposalResponse(p *models.Proposal, err error) (*connect.Response[ProposalResponse], error) {
	if err != nil {
		return nil, toConnectError(err)
	}
	resp := s.toProposalResponse(p)
	return connect.NewResponse(&resp), nil
}

func (s *Service) toProposalResponse(p *models.Proposal) ProposalResponse {
	return ProposalResponse{
		Proposal:           p,
		WindowRemainingSec: int(s.app.RemainingWindow(p).Seconds()),
	}
}

// Metadata keys set on trade errors.
const (
	ErrorKindHeader = "Trade-Error-Kind"
	ConflictsHeader = "Trade-Conflicts"
)

var kindCodes = map[ErrorKind]connect.Code{
	KindNotFound:     connect.CodeNotFound,
	KindInvalidState: connect.CodeFailedPrecondition,
	KindConflict:     connect.CodeAborted,
	KindValidation:   connect.CodeInvalidArgument,
	KindPermission:   connect.CodePermissionDenied,
}

// toConnectError maps trade error kinds onto Connect codes. Asset conflicts
// travel as JSON in the Trade-Conflicts metadata.
func toConnectError(err error) error {
	var te *Error
	if !errors.As(err, &te) {
		log.Error().Err(err).Msg("trade request failed")
		return connect.NewError(connect.CodeInternal, err)
	}

	code, ok := kindCodes[te.Kind]
	if !ok {
		code = connect.CodeUnknown
	}
	cerr := connect.NewError(code, err)
	cerr.Meta().Set(ErrorKindHeader, string(te.Kind))
	if len(te.Conflicts) > 0 {
		if data, mErr := json.Marshal(te.Conflicts); mErr == nil {
			cerr.Meta().Set(ConflictsHeader, string(data))
		}
	}
	return cerr
}

// jsonCodec lets the service speak plain JSON without generated messages.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// loggingInterceptor logs every call with its duration and Connect code.
func loggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			evt := log.Debug()
			if err != nil {
				evt = log.Info().Str("code", connect.CodeOf(err).String()).Err(err)
			}
			evt.Str("procedure", req.Spec().Procedure).Dur("duration", time.Since(start)).Msg("trade rpc")
			return resp, err
		}
	}
}

// NewTradeServiceHandler builds an HTTP handler serving every procedure of
// the trade service. It returns the path to mount the handler on.
func NewTradeServiceHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(loggingInterceptor()),
	}, opts...)

	handlers := map[string]http.Handler{
		CreateProposalProcedure:   connect.NewUnaryHandler(CreateProposalProcedure, svc.CreateProposal, opts...),
		UpdateDraftProcedure:      connect.NewUnaryHandler(UpdateDraftProcedure, svc.UpdateDraft, opts...),
		ProposeProcedure:          connect.NewUnaryHandler(ProposeProcedure, svc.Propose, opts...),
		AcceptProcedure:           connect.NewUnaryHandler(AcceptProcedure, svc.Accept, opts...),
		RejectProcedure:           connect.NewUnaryHandler(RejectProcedure, svc.Reject, opts...),
		AdminRejectProcedure:      connect.NewUnaryHandler(AdminRejectProcedure, svc.AdminReject, opts...),
		CancelProcedure:           connect.NewUnaryHandler(CancelProcedure, svc.Cancel, opts...),
		ApproveProcedure:          connect.NewUnaryHandler(ApproveProcedure, svc.Approve, opts...),
		EditNotesProcedure:        connect.NewUnaryHandler(EditNotesProcedure, svc.EditNotes, opts...),
		EditCashProcedure:         connect.NewUnaryHandler(EditCashProcedure, svc.EditCash, opts...),
		GetProposalProcedure:      connect.NewUnaryHandler(GetProposalProcedure, svc.GetProposal, opts...),
		ListProposalsProcedure:    connect.NewUnaryHandler(ListProposalsProcedure, svc.ListProposals, opts...),
		GetTransactionProcedure:   connect.NewUnaryHandler(GetTransactionProcedure, svc.GetTransaction, opts...),
		ListTransactionsProcedure: connect.NewUnaryHandler(ListTransactionsProcedure, svc.ListTransactions, opts...),
	}

	return "/" + TradeServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}
