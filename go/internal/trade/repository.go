package trade

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mcdev12/tradeblock/go/internal/models"
	"github.com/mcdev12/tradeblock/go/internal/sqlutil"
	"github.com/mcdev12/tradeblock/go/internal/trade/db"
	"github.com/samber/lo"
)

const uniqueViolation = "23505"

// Repository is the Postgres TradeRepository.
type Repository struct {
	db      *sql.DB
	queries *db.Queries
}

func NewRepository(database *sql.DB) *Repository {
	return &Repository{
		db:      database,
		queries: db.New(database),
	}
}

// RunInTx runs fn against a repository bound to one database transaction.
// Calls made on an already bound repository join its transaction.
func (r *Repository) RunInTx(ctx context.Context, fn func(tx TradeRepository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return sqlutil.Run(ctx, r.db,
		func(tx *sql.Tx) *Repository {
			return &Repository{queries: r.queries.WithTx(tx)}
		},
		func(txRepo *Repository) error {
			return fn(txRepo)
		},
	)
}

func (r *Repository) CreateProposal(ctx context.Context, p *models.Proposal) error {
	parties, err := json.Marshal(p.Parties)
	if err != nil {
		return fmt.Errorf("failed to encode parties: %w", err)
	}
	if p.Version == 0 {
		p.Version = 1
	}
	err = r.queries.CreateTradeProposal(ctx, db.CreateTradeProposalParams{
		ID:                    p.ID,
		Slug:                  p.Slug,
		Status:                db.TradeProposalStatus(p.Status),
		CreatedByFranchise:    p.CreatedByFranchise,
		CreatedByPerson:       p.CreatedByPerson,
		CreatedAt:             p.CreatedAt,
		ExpiresAt:             p.ExpiresAt,
		AcceptanceWindowStart: sqlutil.ToSqlTime(p.AcceptanceWindowStart),
		Parties:               parties,
		Notes:                 sqlutil.ToSqlString(p.Notes),
		ExecutedTransactionID: sqlutil.ToNullUUID(p.ExecutedTransactionID),
		CounterOf:             sqlutil.ToNullUUID(p.CounterOf),
		Version:               p.Version,
		UpdatedAt:             p.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to insert proposal: %w", err)
	}
	return nil
}

func (r *Repository) GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	row, err := r.queries.GetTradeProposal(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "failed to get proposal")
	}
	return dbProposalToModel(row)
}

func (r *Repository) GetProposalBySlug(ctx context.Context, slug string) (*models.Proposal, error) {
	row, err := r.queries.GetTradeProposalBySlug(ctx, slug)
	if err != nil {
		return nil, notFoundOr(err, "failed to get proposal by slug")
	}
	return dbProposalToModel(row)
}

func (r *Repository) ListProposals(ctx context.Context, filter ListFilter) ([]models.Proposal, error) {
	params := db.ListTradeProposalsParams{LimitCount: int32(filter.Limit)}
	if filter.Status != nil {
		params.Status = sql.NullString{String: string(*filter.Status), Valid: true}
	}
	if filter.FranchiseID != nil {
		params.FranchiseID = sql.NullString{String: filter.FranchiseID.String(), Valid: true}
	}
	rows, err := r.queries.ListTradeProposals(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	return dbProposalsToModels(rows)
}

// UpdateProposal writes p only if the stored version still matches p.Version.
func (r *Repository) UpdateProposal(ctx context.Context, p *models.Proposal) error {
	parties, err := json.Marshal(p.Parties)
	if err != nil {
		return fmt.Errorf("failed to encode parties: %w", err)
	}
	n, err := r.queries.UpdateTradeProposal(ctx, db.UpdateTradeProposalParams{
		ID:                    p.ID,
		Version:               p.Version,
		Status:                db.TradeProposalStatus(p.Status),
		AcceptanceWindowStart: sqlutil.ToSqlTime(p.AcceptanceWindowStart),
		Parties:               parties,
		Notes:                 sqlutil.ToSqlString(p.Notes),
		ExecutedTransactionID: sqlutil.ToNullUUID(p.ExecutedTransactionID),
		UpdatedAt:             p.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to update proposal: %w", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	p.Version++
	return nil
}

func (r *Repository) ListPendingExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Proposal, error) {
	rows, err := r.queries.ListPendingTradeProposalsExpiredBefore(ctx, db.ListPendingTradeProposalsExpiredBeforeParams{
		ExpiresAt: cutoff,
		Limit:     int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list expired pending proposals: %w", err)
	}
	return dbProposalsToModels(rows)
}

func (r *Repository) DeleteProposalsCreatedBefore(ctx context.Context, statuses []models.ProposalStatus, cutoff time.Time) (int64, error) {
	n, err := r.queries.DeleteTradeProposalsCreatedBefore(ctx, db.DeleteTradeProposalsCreatedBeforeParams{
		Statuses: lo.Map(statuses, func(s models.ProposalStatus, _ int) string { return string(s) }),
		Cutoff:   cutoff,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete proposals: %w", err)
	}
	return n, nil
}

func (r *Repository) DeletePendingExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := r.queries.DeletePendingTradeProposalsExpiredBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale pending proposals: %w", err)
	}
	return n, nil
}

func (r *Repository) GetTransactionByProposal(ctx context.Context, proposalID uuid.UUID) (*models.Transaction, error) {
	row, err := r.queries.GetTradeTransactionByProposal(ctx, proposalID)
	if err != nil {
		return nil, notFoundOr(err, "failed to get transaction")
	}
	return r.loadTransaction(ctx, row)
}

func (r *Repository) ListTransactions(ctx context.Context, limit int) ([]models.Transaction, error) {
	rows, err := r.queries.ListRecentTradeTransactions(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	txns := make([]models.Transaction, 0, len(rows))
	for _, row := range rows {
		txn, err := r.loadTransaction(ctx, row)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}
	return txns, nil
}

// InsertTransaction records txn and its asset movements. A second transaction
// for the same proposal fails with ErrDuplicateTransaction.
func (r *Repository) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	var details json.RawMessage
	if len(txn.Parties) > 0 {
		raw, err := json.Marshal(struct {
			Parties []models.Party `json:"parties"`
		}{txn.Parties})
		if err != nil {
			return fmt.Errorf("failed to encode transaction details: %w", err)
		}
		details = raw
	}

	err := r.queries.InsertTradeTransaction(ctx, db.InsertTradeTransactionParams{
		ID:           txn.ID,
		ProposalID:   txn.ProposalID,
		ProposalSlug: txn.ProposalSlug,
		ApprovedBy:   txn.ApprovedBy,
		ExecutedAt:   txn.ExecutedAt,
		Notes:        sqlutil.ToSqlString(txn.Notes),
		Details:      sqlutil.ToNullRawMessage(details),
	})
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateTransaction
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	for i, asset := range txn.Assets {
		params := db.InsertTradeTransactionAssetParams{
			TransactionID:   txn.ID,
			Position:        int32(i),
			Kind:            db.TradeAssetKind(asset.Kind),
			AssetID:         asset.AssetID,
			FromFranchiseID: asset.FromFranchiseID,
			ToFranchiseID:   asset.ToFranchiseID,
		}
		if asset.Cash != nil {
			params.CashAmount = sqlutil.ToSqlDecimal(&asset.Cash.Amount)
			params.CashSeason = sqlutil.ToSqlInt32Direct(asset.Cash.Season)
		}
		if err := r.queries.InsertTradeTransactionAsset(ctx, params); err != nil {
			return fmt.Errorf("failed to insert transaction asset %d: %w", i, err)
		}
	}
	return nil
}

func (r *Repository) FindAssetClaims(ctx context.Context, assets []models.Asset, since time.Time, excludeProposal uuid.UUID) ([]AssetClaim, error) {
	if len(assets) == 0 {
		return nil, nil
	}
	rows, err := r.queries.FindTradeAssetClaims(ctx, db.FindTradeAssetClaimsParams{
		AssetIds:          lo.Map(assets, func(a models.Asset, _ int) uuid.UUID { return a.ID }),
		Since:             since,
		ExcludeProposalID: excludeProposal,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find asset claims: %w", err)
	}
	claims := make([]AssetClaim, len(rows))
	for i, row := range rows {
		claims[i] = AssetClaim{
			Kind:          models.AssetKind(row.Kind),
			AssetID:       row.AssetID,
			TransactionID: row.TransactionID,
			ProposalID:    row.ProposalID,
			ProposalSlug:  row.ProposalSlug,
			ExecutedAt:    row.ExecutedAt,
		}
	}
	return claims, nil
}

// LockAssets takes a transaction-scoped advisory lock per key, in the order
// given. It must run inside RunInTx.
func (r *Repository) LockAssets(ctx context.Context, keys []string) error {
	if r.db != nil {
		return errors.New("asset locks require a transaction")
	}
	for _, key := range keys {
		if err := r.queries.LockTradeAsset(ctx, key); err != nil {
			return fmt.Errorf("failed to lock asset %s: %w", key, err)
		}
	}
	return nil
}

func (r *Repository) loadTransaction(ctx context.Context, row db.TradeTransaction) (*models.Transaction, error) {
	assetRows, err := r.queries.ListTradeTransactionAssets(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transaction assets: %w", err)
	}

	txn := &models.Transaction{
		ID:           row.ID,
		ProposalID:   row.ProposalID,
		ProposalSlug: row.ProposalSlug,
		ApprovedBy:   row.ApprovedBy,
		ExecutedAt:   row.ExecutedAt,
		Notes:        sqlutil.FromSqlStringPtr(row.Notes),
		Assets:       make([]models.TransactionAsset, 0, len(assetRows)),
	}
	if row.Details.Valid {
		var details struct {
			Parties []models.Party `json:"parties"`
		}
		if err := json.Unmarshal(row.Details.RawMessage, &details); err != nil {
			return nil, fmt.Errorf("failed to decode transaction details: %w", err)
		}
		txn.Parties = details.Parties
	}

	for _, a := range assetRows {
		asset := models.TransactionAsset{
			Kind:            models.AssetKind(a.Kind),
			AssetID:         a.AssetID,
			FromFranchiseID: a.FromFranchiseID,
			ToFranchiseID:   a.ToFranchiseID,
		}
		amount, err := sqlutil.FromSqlDecimal(a.CashAmount)
		if err != nil {
			return nil, fmt.Errorf("failed to decode cash amount: %w", err)
		}
		if amount != nil {
			asset.Cash = &models.CashTerms{Amount: *amount, Season: lo.FromPtr(sqlutil.FromSqlInt32(a.CashSeason))}
		}
		txn.Assets = append(txn.Assets, asset)
	}
	return txn, nil
}

func dbProposalToModel(row db.TradeProposal) (*models.Proposal, error) {
	var parties []models.Party
	if err := json.Unmarshal(row.Parties, &parties); err != nil {
		return nil, fmt.Errorf("failed to decode parties of proposal %s: %w", row.ID, err)
	}
	return &models.Proposal{
		ID:                    row.ID,
		Slug:                  row.Slug,
		Status:                models.ProposalStatus(row.Status),
		CreatedByFranchise:    row.CreatedByFranchise,
		CreatedByPerson:       row.CreatedByPerson,
		CreatedAt:             row.CreatedAt,
		ExpiresAt:             row.ExpiresAt,
		AcceptanceWindowStart: sqlutil.FromSqlTime(row.AcceptanceWindowStart),
		Parties:               parties,
		Notes:                 sqlutil.FromSqlStringPtr(row.Notes),
		ExecutedTransactionID: sqlutil.FromNullUUID(row.ExecutedTransactionID),
		CounterOf:             sqlutil.FromNullUUID(row.CounterOf),
		Version:               row.Version,
		UpdatedAt:             row.UpdatedAt,
	}, nil
}

func dbProposalsToModels(rows []db.TradeProposal) ([]models.Proposal, error) {
	proposals := make([]models.Proposal, 0, len(rows))
	for _, row := range rows {
		p, err := dbProposalToModel(row)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, *p)
	}
	return proposals, nil
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRecordNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}
