// Package memstore is an in-process trade.TradeRepository. It backs tests and
// the single-instance development mode of the server.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/tradeblock/go/internal/models"
	"github.com/mcdev12/tradeblock/go/internal/trade"
	"github.com/samber/lo"
)

// Store keeps proposals and the ledger in memory with the same conditional
// write semantics as the Postgres repository.
type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

var _ trade.TradeRepository = (*Store)(nil)

// RunInTx holds the store for the duration of fn. Changes made by fn are
// discarded when it returns an error.
func (s *Store) RunInTx(ctx context.Context, fn func(tx trade.TradeRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&txView{st: s.st}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) CreateProposal(ctx context.Context, p *models.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createProposal(p)
}

func (s *Store) GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getProposal(id)
}

func (s *Store) GetProposalBySlug(ctx context.Context, slug string) (*models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getProposalBySlug(slug)
}

func (s *Store) ListProposals(ctx context.Context, filter trade.ListFilter) ([]models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listProposals(filter), nil
}

func (s *Store) UpdateProposal(ctx context.Context, p *models.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateProposal(p)
}

func (s *Store) ListPendingExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listPendingExpiredBefore(cutoff, limit), nil
}

func (s *Store) DeleteProposalsCreatedBefore(ctx context.Context, statuses []models.ProposalStatus, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.deleteWhere(func(p *models.Proposal) bool {
		return lo.Contains(statuses, p.Status) && p.CreatedAt.Before(cutoff)
	}), nil
}

func (s *Store) DeletePendingExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.deleteWhere(func(p *models.Proposal) bool {
		return p.Status == models.ProposalStatusPending && p.ExpiresAt.Before(cutoff)
	}), nil
}

func (s *Store) GetTransactionByProposal(ctx context.Context, proposalID uuid.UUID) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getTransactionByProposal(proposalID)
}

func (s *Store) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.insertTransaction(txn)
}

func (s *Store) ListTransactions(ctx context.Context, limit int) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listTransactions(limit), nil
}

func (s *Store) FindAssetClaims(ctx context.Context, assets []models.Asset, since time.Time, excludeProposal uuid.UUID) ([]trade.AssetClaim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.findAssetClaims(assets, since, excludeProposal), nil
}

// Len returns the number of stored proposals.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.proposals)
}

// LockAssets is a no-op: RunInTx already holds the whole store.
func (s *Store) LockAssets(ctx context.Context, keys []string) error {
	return nil
}

// txView is the store as seen from inside RunInTx, where the lock is already held.
type txView struct {
	st *state
}

func (v *txView) RunInTx(ctx context.Context, fn func(tx trade.TradeRepository) error) error {
	return fn(v)
}

func (v *txView) CreateProposal(ctx context.Context, p *models.Proposal) error {
	return v.st.createProposal(p)
}

func (v *txView) GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	return v.st.getProposal(id)
}

func (v *txView) GetProposalBySlug(ctx context.Context, slug string) (*models.Proposal, error) {
	return v.st.getProposalBySlug(slug)
}

func (v *txView) ListProposals(ctx context.Context, filter trade.ListFilter) ([]models.Proposal, error) {
	return v.st.listProposals(filter), nil
}

func (v *txView) UpdateProposal(ctx context.Context, p *models.Proposal) error {
	return v.st.updateProposal(p)
}

func (v *txView) ListPendingExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Proposal, error) {
	return v.st.listPendingExpiredBefore(cutoff, limit), nil
}

func (v *txView) DeleteProposalsCreatedBefore(ctx context.Context, statuses []models.ProposalStatus, cutoff time.Time) (int64, error) {
	return v.st.deleteWhere(func(p *models.Proposal) bool {
		return lo.Contains(statuses, p.Status) && p.CreatedAt.Before(cutoff)
	}), nil
}

func (v *txView) DeletePendingExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return v.st.deleteWhere(func(p *models.Proposal) bool {
		return p.Status == models.ProposalStatusPending && p.ExpiresAt.Before(cutoff)
	}), nil
}

func (v *txView) GetTransactionByProposal(ctx context.Context, proposalID uuid.UUID) (*models.Transaction, error) {
	return v.st.getTransactionByProposal(proposalID)
}

func (v *txView) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	return v.st.insertTransaction(txn)
}

func (v *txView) ListTransactions(ctx context.Context, limit int) ([]models.Transaction, error) {
	return v.st.listTransactions(limit), nil
}

func (v *txView) LockAssets(ctx context.Context, keys []string) error {
	return nil
}

func (v *txView) FindAssetClaims(ctx context.Context, assets []models.Asset, since time.Time, excludeProposal uuid.UUID) ([]trade.AssetClaim, error) {
	return v.st.findAssetClaims(assets, since, excludeProposal), nil
}

type state struct {
	proposals    map[uuid.UUID]*models.Proposal
	transactions map[uuid.UUID]*models.Transaction // keyed by proposal id
}

func newState() *state {
	return &state{
		proposals:    make(map[uuid.UUID]*models.Proposal),
		transactions: make(map[uuid.UUID]*models.Transaction),
	}
}

func (st *state) clone() *state {
	c := newState()
	for id, p := range st.proposals {
		c.proposals[id] = p.Clone()
	}
	for id, txn := range st.transactions {
		c.transactions[id] = cloneTransaction(txn)
	}
	return c
}

func (st *state) createProposal(p *models.Proposal) error {
	if _, ok := st.proposals[p.ID]; ok {
		return fmt.Errorf("duplicate proposal id %s", p.ID)
	}
	for _, existing := range st.proposals {
		if existing.Slug == p.Slug {
			return fmt.Errorf("duplicate proposal slug %s", p.Slug)
		}
	}
	if p.Version == 0 {
		p.Version = 1
	}
	st.proposals[p.ID] = p.Clone()
	return nil
}

func (st *state) getProposal(id uuid.UUID) (*models.Proposal, error) {
	p, ok := st.proposals[id]
	if !ok {
		return nil, trade.ErrRecordNotFound
	}
	return p.Clone(), nil
}

func (st *state) getProposalBySlug(slug string) (*models.Proposal, error) {
	for _, p := range st.proposals {
		if p.Slug == slug {
			return p.Clone(), nil
		}
	}
	return nil, trade.ErrRecordNotFound
}

func (st *state) listProposals(filter trade.ListFilter) []models.Proposal {
	var out []models.Proposal
	for _, p := range st.proposals {
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		if filter.FranchiseID != nil && p.PartyIndex(*filter.FranchiseID) < 0 {
			continue
		}
		out = append(out, *p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

func (st *state) updateProposal(p *models.Proposal) error {
	current, ok := st.proposals[p.ID]
	if !ok || current.Version != p.Version {
		return trade.ErrVersionConflict
	}
	p.Version++
	st.proposals[p.ID] = p.Clone()
	return nil
}

func (st *state) listPendingExpiredBefore(cutoff time.Time, limit int) []models.Proposal {
	var out []models.Proposal
	for _, p := range st.proposals {
		if p.Status == models.ProposalStatusPending && p.ExpiresAt.Before(cutoff) {
			out = append(out, *p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (st *state) deleteWhere(match func(p *models.Proposal) bool) int64 {
	var n int64
	for id, p := range st.proposals {
		if match(p) {
			delete(st.proposals, id)
			n++
		}
	}
	return n
}

func (st *state) getTransactionByProposal(proposalID uuid.UUID) (*models.Transaction, error) {
	txn, ok := st.transactions[proposalID]
	if !ok {
		return nil, trade.ErrRecordNotFound
	}
	return cloneTransaction(txn), nil
}

func (st *state) insertTransaction(txn *models.Transaction) error {
	if _, ok := st.transactions[txn.ProposalID]; ok {
		return trade.ErrDuplicateTransaction
	}
	st.transactions[txn.ProposalID] = cloneTransaction(txn)
	return nil
}

func (st *state) listTransactions(limit int) []models.Transaction {
	out := make([]models.Transaction, 0, len(st.transactions))
	for _, txn := range st.transactions {
		out = append(out, *cloneTransaction(txn))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExecutedAt.After(out[j].ExecutedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (st *state) findAssetClaims(assets []models.Asset, since time.Time, excludeProposal uuid.UUID) []trade.AssetClaim {
	wanted := make(map[uuid.UUID]bool, len(assets))
	for _, a := range assets {
		wanted[a.ID] = true
	}
	var claims []trade.AssetClaim
	for _, txn := range st.transactions {
		if txn.ProposalID == excludeProposal || !txn.ExecutedAt.After(since) {
			continue
		}
		for _, a := range txn.Assets {
			if a.Kind == models.AssetKindCash || !wanted[a.AssetID] {
				continue
			}
			claims = append(claims, trade.AssetClaim{
				Kind:          a.Kind,
				AssetID:       a.AssetID,
				TransactionID: txn.ID,
				ProposalID:    txn.ProposalID,
				ProposalSlug:  txn.ProposalSlug,
				ExecutedAt:    txn.ExecutedAt,
			})
		}
	}
	sort.Slice(claims, func(i, j int) bool { return claims[i].ExecutedAt.Before(claims[j].ExecutedAt) })
	return claims
}

func cloneTransaction(txn *models.Transaction) *models.Transaction {
	c := *txn
	if txn.Notes != nil {
		notes := *txn.Notes
		c.Notes = &notes
	}
	c.Assets = make([]models.TransactionAsset, len(txn.Assets))
	for i, a := range txn.Assets {
		ca := a
		if a.Cash != nil {
			cash := *a.Cash
			ca.Cash = &cash
		}
		c.Assets[i] = ca
	}
	if txn.Parties != nil {
		c.Parties = (&models.Proposal{Parties: txn.Parties}).Clone().Parties
	}
	return &c
}
