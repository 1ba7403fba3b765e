package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mcdev12/tradeblock/go/internal/access"
	"github.com/mcdev12/tradeblock/go/internal/assets"
	assetsdb "github.com/mcdev12/tradeblock/go/internal/assets/db"
	"github.com/mcdev12/tradeblock/go/internal/config"
	"github.com/mcdev12/tradeblock/go/internal/dbconfig"
	"github.com/mcdev12/tradeblock/go/internal/trade"
	tradedb "github.com/mcdev12/tradeblock/go/internal/trade/db"
	"github.com/mcdev12/tradeblock/go/internal/trade/outbox"
)

var (
	configPath string
	adminFlag  string
	noColor    bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "tradectl",
	Short: "Administer the league trade block",
	Long: `tradectl inspects trade proposals and performs league admin actions:
approving accepted trades, rejecting proposals, correcting cash and notes,
and running the expiration sweep by hand.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "league config file")
	rootCmd.PersistentFlags().StringVar(&adminFlag, "admin", os.Getenv("TRADE_ADMIN_ID"), "person id of the acting league admin")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddGroup(
		&cobra.Group{ID: "inspect", Title: "Inspection Commands"},
		&cobra.Group{ID: "admin", Title: "Admin Commands"},
	)
}

func main() {
	_ = godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openApp connects to the league database and builds the trade app with the
// same collaborators the server uses.
func openApp(ctx context.Context) (*trade.App, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	db, err := dbconfig.Open(ctx, dbconfig.NewConfigFromEnv())
	if err != nil {
		return nil, nil, err
	}

	assetQueries := assetsdb.New(db)
	authz, err := access.NewAuthorizer(cfg.League, assetQueries)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to build authorizer: %w", err)
	}

	app := trade.NewApp(trade.NewRepository(db), trade.Collaborators{
		Assets:     assets.NewResolver(assetQueries),
		Validator:  assets.NewRosterLimitValidator(assetQueries, cfg.Trade.MaxRosterSize),
		Notifier:   outbox.NewNotifier(tradedb.New(db)),
		Authorizer: authz,
	}, nil, cfg.Policy())

	return app, func() { db.Close() }, nil
}
