package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mcdev12/tradeblock/go/internal/assets"
	"github.com/mcdev12/tradeblock/go/internal/config"
	"github.com/mcdev12/tradeblock/go/internal/dbconfig"
	"github.com/mcdev12/tradeblock/go/internal/trade"
	"github.com/mcdev12/tradeblock/go/internal/trade/memstore"
	"github.com/rs/zerolog/log"
)

// storage is the backing store chosen by STORE_DRIVER.
type storage struct {
	db       *sql.DB // nil in memory mode
	repo     trade.TradeRepository
	catalog  *assets.Catalog
	closeFns []func() error
}

func (s *storage) Close() {
	for _, fn := range s.closeFns {
		if err := fn(); err != nil {
			log.Error().Err(err).Msg("failed to close storage")
		}
	}
}

func setupStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch driver := getEnv("STORE_DRIVER", "postgres"); driver {
	case "memory":
		catalog, err := assets.NewCatalogFromConfig(cfg.League, cfg.Catalog)
		if err != nil {
			return nil, fmt.Errorf("failed to build asset catalog: %w", err)
		}
		log.Warn().Msg("using in-memory store, proposals are lost on restart")
		return &storage{repo: memstore.New(), catalog: catalog}, nil

	case "postgres":
		dbCfg := dbconfig.NewConfigFromEnv()
		database, err := dbconfig.Open(ctx, dbCfg)
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("host", dbCfg.Host).
			Int("port", dbCfg.Port).
			Str("database", dbCfg.Database).
			Msg("connected to database")
		return &storage{
			db:       database,
			repo:     trade.NewRepository(database),
			closeFns: []func() error{database.Close},
		}, nil

	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", driver)
	}
}
