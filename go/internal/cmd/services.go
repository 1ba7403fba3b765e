package main

import (
	"context"
	"fmt"
	"time"

	"github.com/mcdev12/tradeblock/go/internal/access"
	"github.com/mcdev12/tradeblock/go/internal/assets"
	assetsdb "github.com/mcdev12/tradeblock/go/internal/assets/db"
	"github.com/mcdev12/tradeblock/go/internal/config"
	"github.com/mcdev12/tradeblock/go/internal/lease"
	"github.com/mcdev12/tradeblock/go/internal/trade"
	tradedb "github.com/mcdev12/tradeblock/go/internal/trade/db"
	"github.com/mcdev12/tradeblock/go/internal/trade/outbox"
	"github.com/rs/zerolog/log"
)

type Services struct {
	App    *trade.App
	Trade  *trade.Service
	Reaper *trade.Reaper
}

func setupServices(ctx context.Context, cfg *config.Config, store *storage) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → Service layer
	var (
		resolver  trade.AssetResolver
		validator trade.LegalityValidator
		notifier  trade.Notifier
		teams     access.TeamLookup
	)

	if store.db != nil {
		assetQueries := assetsdb.New(store.db)
		resolver = assets.NewResolver(assetQueries)
		validator = assets.NewRosterLimitValidator(assetQueries, cfg.Trade.MaxRosterSize)
		notifier = outbox.NewNotifier(tradedb.New(store.db))
		teams = assetQueries
	} else {
		resolver = store.catalog
		validator = assets.NewRosterLimitValidator(store.catalog, cfg.Trade.MaxRosterSize)
		notifier = trade.LogNotifier{}
	}

	authz, err := access.NewAuthorizer(cfg.League, teams)
	if err != nil {
		return nil, fmt.Errorf("failed to build authorizer: %w", err)
	}

	app := trade.NewApp(store.repo, trade.Collaborators{
		Assets:     resolver,
		Validator:  validator,
		Notifier:   notifier,
		Authorizer: authz,
	}, nil, cfg.Policy())

	reaper, err := setupReaper(ctx, cfg, app, store)
	if err != nil {
		return nil, err
	}

	return &Services{
		App:    app,
		Trade:  trade.NewService(app),
		Reaper: reaper,
	}, nil
}

// setupReaper shares the sweep between instances through a Redis lease when
// REDIS_ADDR is set.
func setupReaper(ctx context.Context, cfg *config.Config, app *trade.App, store *storage) (*trade.Reaper, error) {
	var l trade.Lease
	if addr := getEnv("REDIS_ADDR", ""); addr != "" {
		client, err := lease.Open(ctx, addr, getEnv("REDIS_PASSWORD", ""))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		store.closeFns = append(store.closeFns, client.Close)

		leaseCfg := lease.DefaultConfig()
		leaseCfg.Expiry = time.Duration(cfg.Trade.LeaseTTL)
		l = lease.NewRedisLease(client, leaseCfg)
		log.Info().Str("redis", addr).Msg("reaper lease enabled")
	}

	return trade.NewReaper(app, l, nil, trade.ReaperConfig{
		Interval: time.Duration(cfg.Trade.SweepInterval),
	}), nil
}
