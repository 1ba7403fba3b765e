package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/mcdev12/tradeblock/go/internal/access"
	"github.com/mcdev12/tradeblock/go/internal/assets"
	assetsdb "github.com/mcdev12/tradeblock/go/internal/assets/db"
	"github.com/mcdev12/tradeblock/go/internal/config"
	"github.com/mcdev12/tradeblock/go/internal/dbconfig"
	"github.com/mcdev12/tradeblock/go/internal/models"
	"github.com/mcdev12/tradeblock/go/internal/trade"
	tradedb "github.com/mcdev12/tradeblock/go/internal/trade/db"
	"github.com/mcdev12/tradeblock/go/internal/trade/outbox"
)

// seeds one two-party proposal between each neighbouring pair of configured
// franchises, swapping one rostered player each way. Every other proposal is
// accepted by its creator so the acceptance window is running.
func main() {
	ctx := context.Background()

	// 1) Load league config
	path := os.Getenv("TRADE_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if len(cfg.League.Franchises) < 2 {
		fmt.Fprintln(os.Stderr, "config needs at least two franchises")
		os.Exit(1)
	}

	// 2) Connect to DB
	pool, err := pgxpool.New(ctx, dbconfig.NewConfigFromEnv().DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	// 3) Build the trade app on the same connection pool
	assetQueries := assetsdb.New(db)
	authz, err := access.NewAuthorizer(cfg.League, assetQueries)
	if err != nil {
		fmt.Fprintf(os.Stderr, "authorizer: %v\n", err)
		os.Exit(1)
	}
	app := trade.NewApp(trade.NewRepository(db), trade.Collaborators{
		Assets:     assets.NewResolver(assetQueries),
		Validator:  assets.NewRosterLimitValidator(assetQueries, cfg.Trade.MaxRosterSize),
		Notifier:   outbox.NewNotifier(tradedb.New(db)),
		Authorizer: authz,
	}, nil, cfg.Policy())

	// 4) Seed proposals
	franchises := cfg.League.Franchises
	created, accepted, skipped, errs := 0, 0, 0, 0
	for i := 0; i+1 < len(franchises); i++ {
		a, b := franchises[i], franchises[i+1]
		if len(a.Representatives) == 0 {
			fmt.Printf("  ~ skipped %s: no representative configured\n", a.Name)
			skipped++
			continue
		}
		p, err := seedPair(ctx, app, pool, a, b, i%2 == 0)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			fmt.Printf("  ~ skipped %s/%s: empty roster\n", a.Name, b.Name)
			skipped++
		case err != nil:
			fmt.Fprintf(os.Stderr, "  ! %s/%s: %v\n", a.Name, b.Name, err)
			errs++
		default:
			created++
			if p.AnyAccepted() {
				accepted++
			}
			fmt.Printf("  + %s: %s <-> %s (%s)\n", p.Slug, a.Name, b.Name, p.Status)
		}
	}

	fmt.Printf("Seeded %d proposals (%d accepted by creator), skipped %d, errors %d\n", created, accepted, skipped, errs)
	if errs > 0 {
		os.Exit(1)
	}
}

func seedPair(ctx context.Context, app *trade.App, pool *pgxpool.Pool, a, b config.FranchiseConfig, accept bool) (*models.Proposal, error) {
	aID, bID := uuid.MustParse(a.ID), uuid.MustParse(b.ID)
	rep := uuid.MustParse(a.Representatives[0])

	aPlayer, err := anyRosteredPlayer(ctx, pool, aID)
	if err != nil {
		return nil, err
	}
	bPlayer, err := anyRosteredPlayer(ctx, pool, bID)
	if err != nil {
		return nil, err
	}

	p, err := app.CreateProposal(ctx, trade.CreateProposalRequest{
		CreatorFranchiseID: aID,
		CreatorPersonID:    rep,
		Propose:            true,
		Parties: []trade.PartyRequest{
			{FranchiseID: aID, Receives: []models.Asset{{Kind: models.AssetKindPlayer, ID: bPlayer, FromFranchiseID: bID}}},
			{FranchiseID: bID, Receives: []models.Asset{{Kind: models.AssetKindPlayer, ID: aPlayer, FromFranchiseID: aID}}},
		},
	})
	if err != nil || !accept {
		return p, err
	}
	out, err := app.Accept(ctx, p.ID, aID, rep)
	if err != nil {
		return nil, err
	}
	return out.Proposal, nil
}

func anyRosteredPlayer(ctx context.Context, pool *pgxpool.Pool, franchiseID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := pool.QueryRow(ctx, `
            SELECT player_id FROM rosters
            WHERE fantasy_team_id = $1
            ORDER BY acquired_at
            LIMIT 1`, franchiseID).Scan(&id)
	return id, err
}
