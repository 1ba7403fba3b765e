package main

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mcdev12/tradeblock/go/internal/models"
	"github.com/mcdev12/tradeblock/go/internal/trade"
)

func init() {
	color.NoColor = true
}

var created = time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)

func sampleProposal() *models.Proposal {
	a, b := uuid.New(), uuid.New()
	acceptedAt := created.Add(time.Minute)
	start := acceptedAt
	notes := "includes 2027 cash"
	return &models.Proposal{
		ID:                    uuid.New(),
		Slug:                  "tr-260302-0123456789",
		Status:                models.ProposalStatusPending,
		CreatedAt:             created,
		ExpiresAt:             created.Add(7 * 24 * time.Hour),
		AcceptanceWindowStart: &start,
		Notes:                 &notes,
		Parties: []models.Party{
			{
				FranchiseID: a,
				Accepted:    true,
				AcceptedAt:  &acceptedAt,
				Receives:    []models.Asset{{Kind: models.AssetKindPlayer, ID: uuid.New(), FromFranchiseID: b}},
			},
			{
				FranchiseID: b,
				Receives: []models.Asset{{
					Kind:            models.AssetKindCash,
					ID:              uuid.New(),
					FromFranchiseID: a,
					Cash:            &models.CashTerms{Amount: decimal.RequireFromString("12.5"), Season: 2027},
				}},
			},
		},
	}
}

func TestRenderProposals(t *testing.T) {
	var buf bytes.Buffer
	renderProposals(&buf, nil, nil)
	assert.Equal(t, "No proposals found\n", buf.String())

	buf.Reset()
	p := sampleProposal()
	renderProposals(&buf, []models.Proposal{*p}, func(*models.Proposal) time.Duration { return 4*time.Minute + 500*time.Millisecond })
	out := buf.String()
	assert.Contains(t, out, p.Slug)
	assert.Contains(t, out, "pending")
	assert.Contains(t, out, "1/2")
	assert.Contains(t, out, "4m0s")
}

func TestRenderProposal(t *testing.T) {
	var buf bytes.Buffer
	p := sampleProposal()
	renderProposal(&buf, p, 0)
	out := buf.String()

	assert.Contains(t, out, "Trade "+p.Slug)
	assert.Contains(t, out, "includes 2027 cash")
	assert.Contains(t, out, "cash $12.50 (2027)")
	assert.Contains(t, out, "yes")
	assert.Contains(t, out, "no")
}

func TestRenderTransactions(t *testing.T) {
	var buf bytes.Buffer
	renderTransactions(&buf, nil)
	assert.Equal(t, "No transactions recorded\n", buf.String())

	buf.Reset()
	txn := models.Transaction{
		ID:           uuid.New(),
		ProposalSlug: "tr-260302-0123456789",
		ExecutedAt:   created,
		Assets: []models.TransactionAsset{
			{Kind: models.AssetKindPlayer, AssetID: uuid.New(), FromFranchiseID: uuid.New(), ToFranchiseID: uuid.New()},
			{Kind: models.AssetKindCash, AssetID: uuid.New(), FromFranchiseID: uuid.New(), ToFranchiseID: uuid.New(),
				Cash: &models.CashTerms{Amount: decimal.NewFromInt(5), Season: 2026}},
		},
	}
	renderTransactions(&buf, []models.Transaction{txn})
	out := buf.String()
	assert.Contains(t, out, txn.ID.String()[:8])
	assert.Contains(t, out, "$5.00 (2026)")
}

func TestRenderSweepAndConflicts(t *testing.T) {
	var buf bytes.Buffer
	renderSweep(&buf, &trade.SweepResult{Expired: 2, Deleted: 5})
	assert.Equal(t, "Sweep finished: 2 expired, 5 deleted, 0 failed\n", buf.String())

	buf.Reset()
	txnID := uuid.New()
	err := fmt.Errorf("approve: %w", &trade.Error{
		Kind: trade.KindConflict,
		Conflicts: []trade.AssetConflict{{
			Asset:                  models.Asset{Kind: models.AssetKindPlayer, ID: uuid.New()},
			Reason:                 "already moved by another executed trade",
			CompetingTransactionID: &txnID,
			CompetingProposalSlug:  "tr-260301-aaaaaaaaaa",
		}},
	})
	renderConflicts(&buf, err)
	assert.Contains(t, buf.String(), "tr-260301-aaaaaaaaaa")

	buf.Reset()
	renderConflicts(&buf, fmt.Errorf("boom"))
	assert.Empty(t, buf.String())
}
