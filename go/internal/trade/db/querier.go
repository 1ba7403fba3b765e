package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Querier interface {
	CountUnsentTradeOutbox(ctx context.Context) (int64, error)
	CreateTradeProposal(ctx context.Context, arg CreateTradeProposalParams) error
	DeletePendingTradeProposalsExpiredBefore(ctx context.Context, expiresAt time.Time) (int64, error)
	DeleteTradeProposalsCreatedBefore(ctx context.Context, arg DeleteTradeProposalsCreatedBeforeParams) (int64, error)
	FetchTradeOutboxByID(ctx context.Context, id uuid.UUID) (FetchTradeOutboxByIDRow, error)
	FetchUnsentTradeOutbox(ctx context.Context, limit int32) ([]FetchUnsentTradeOutboxRow, error)
	FindTradeAssetClaims(ctx context.Context, arg FindTradeAssetClaimsParams) ([]FindTradeAssetClaimsRow, error)
	GetTradeProposal(ctx context.Context, id uuid.UUID) (TradeProposal, error)
	GetTradeProposalBySlug(ctx context.Context, slug string) (TradeProposal, error)
	GetTradeTransaction(ctx context.Context, id uuid.UUID) (TradeTransaction, error)
	GetTradeTransactionByProposal(ctx context.Context, proposalID uuid.UUID) (TradeTransaction, error)
	InsertTradeOutboxEvent(ctx context.Context, arg InsertTradeOutboxEventParams) error
	InsertTradeTransaction(ctx context.Context, arg InsertTradeTransactionParams) error
	InsertTradeTransactionAsset(ctx context.Context, arg InsertTradeTransactionAssetParams) error
	ListPendingTradeProposalsExpiredBefore(ctx context.Context, arg ListPendingTradeProposalsExpiredBeforeParams) ([]TradeProposal, error)
	ListRecentTradeTransactions(ctx context.Context, limit int32) ([]TradeTransaction, error)
	ListTradeProposals(ctx context.Context, arg ListTradeProposalsParams) ([]TradeProposal, error)
	ListTradeTransactionAssets(ctx context.Context, transactionID uuid.UUID) ([]TradeTransactionAsset, error)
	LockTradeAsset(ctx context.Context, assetKey string) error
	MarkTradeOutboxSent(ctx context.Context, id uuid.UUID) error
	UpdateTradeProposal(ctx context.Context, arg UpdateTradeProposalParams) (int64, error)
}

var _ Querier = (*Queries)(nil)
