package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mcdev12/tradeblock/go/internal/models"
	"github.com/mcdev12/tradeblock/go/internal/trade"
)

// withApp runs fn against a freshly opened app.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *trade.App) error) error {
	ctx := cmd.Context()
	app, closeFn, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, app)
}

func adminID() (uuid.UUID, error) {
	if adminFlag == "" {
		return uuid.Nil, errors.New("--admin or TRADE_ADMIN_ID is required")
	}
	id, err := uuid.Parse(adminFlag)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid admin id %q: %w", adminFlag, err)
	}
	return id, nil
}

// resolveProposal accepts either a proposal id or its slug.
func resolveProposal(ctx context.Context, app *trade.App, ref string) (*models.Proposal, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return app.GetProposal(ctx, id)
	}
	return app.GetProposalBySlug(ctx, ref)
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List trade proposals",
	GroupID: "inspect",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		franchise, _ := cmd.Flags().GetString("franchise")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := trade.ListFilter{Limit: limit}
		if status != "" {
			s := models.ProposalStatus(status)
			filter.Status = &s
		}
		if franchise != "" {
			id, err := uuid.Parse(franchise)
			if err != nil {
				return fmt.Errorf("invalid franchise id: %w", err)
			}
			filter.FranchiseID = &id
		}

		return withApp(cmd, func(ctx context.Context, app *trade.App) error {
			proposals, err := app.ListProposals(ctx, filter)
			if err != nil {
				return err
			}
			renderProposals(os.Stdout, proposals, app.RemainingWindow)
			return nil
		})
	},
}

var showCmd = &cobra.Command{
	Use:     "show <proposal-id|slug>",
	Short:   "Show a proposal and its ledger entry",
	GroupID: "inspect",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *trade.App) error {
			p, err := resolveProposal(ctx, app, args[0])
			if err != nil {
				return err
			}
			renderProposal(os.Stdout, p, app.RemainingWindow(p))
			if p.Status == models.ProposalStatusExecuted {
				txn, err := app.GetTransaction(ctx, p.ID)
				if err != nil {
					return err
				}
				renderTransactions(os.Stdout, []models.Transaction{*txn})
			}
			return nil
		})
	},
}

var ledgerCmd = &cobra.Command{
	Use:     "ledger",
	Short:   "List executed trades, newest first",
	GroupID: "inspect",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withApp(cmd, func(ctx context.Context, app *trade.App) error {
			txns, err := app.ListTransactions(ctx, limit)
			if err != nil {
				return err
			}
			renderTransactions(os.Stdout, txns)
			return nil
		})
	},
}

var approveCmd = &cobra.Command{
	Use:     "approve <proposal-id|slug>",
	Short:   "Execute an accepted trade",
	GroupID: "admin",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		admin, err := adminID()
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, app *trade.App) error {
			p, err := resolveProposal(ctx, app, args[0])
			if err != nil {
				return err
			}
			res, err := app.Approve(ctx, p.ID, admin)
			if err != nil {
				renderConflicts(os.Stderr, err)
				return err
			}
			successStyle.Printf("Trade %s executed as transaction %s\n", res.Proposal.Slug, res.Transaction.ID)
			renderTransactions(os.Stdout, []models.Transaction{*res.Transaction})
			return nil
		})
	},
}

var rejectCmd = &cobra.Command{
	Use:     "reject <proposal-id|slug>",
	Short:   "Reject a proposal as league admin",
	GroupID: "admin",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		admin, err := adminID()
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, app *trade.App) error {
			p, err := resolveProposal(ctx, app, args[0])
			if err != nil {
				return err
			}
			p, err = app.AdminReject(ctx, p.ID, admin)
			if err != nil {
				return err
			}
			warningStyle.Printf("Trade %s rejected\n", p.Slug)
			return nil
		})
	},
}

var editCashCmd = &cobra.Command{
	Use:     "edit-cash <proposal-id|slug>",
	Short:   "Correct the amount or season of a cash line",
	GroupID: "admin",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		admin, err := adminID()
		if err != nil {
			return err
		}

		party, _ := cmd.Flags().GetInt("party")
		line, _ := cmd.Flags().GetInt("line")
		edit := trade.CashEdit{PartyIndex: party, CashIndex: line}
		if cmd.Flags().Changed("amount") {
			raw, _ := cmd.Flags().GetString("amount")
			amount, err := decimal.NewFromString(raw)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", raw, err)
			}
			edit.Amount = &amount
		}
		if cmd.Flags().Changed("season") {
			season, _ := cmd.Flags().GetInt("season")
			edit.Season = &season
		}
		if edit.Amount == nil && edit.Season == nil {
			return errors.New("nothing to change: pass --amount and/or --season")
		}

		return withApp(cmd, func(ctx context.Context, app *trade.App) error {
			p, err := resolveProposal(ctx, app, args[0])
			if err != nil {
				return err
			}
			p, err = app.EditCash(ctx, p.ID, admin, edit)
			if err != nil {
				return err
			}
			renderProposal(os.Stdout, p, app.RemainingWindow(p))
			return nil
		})
	},
}

var editNotesCmd = &cobra.Command{
	Use:     "edit-notes <proposal-id|slug>",
	Short:   "Replace or clear the notes of a proposal",
	GroupID: "admin",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		admin, err := adminID()
		if err != nil {
			return err
		}
		clearNotes, _ := cmd.Flags().GetBool("clear")
		var notes *string
		if !clearNotes {
			if !cmd.Flags().Changed("notes") {
				return errors.New("pass --notes or --clear")
			}
			v, _ := cmd.Flags().GetString("notes")
			notes = &v
		}

		return withApp(cmd, func(ctx context.Context, app *trade.App) error {
			p, err := resolveProposal(ctx, app, args[0])
			if err != nil {
				return err
			}
			p, err = app.EditNotes(ctx, p.ID, admin, notes)
			if err != nil {
				return err
			}
			renderProposal(os.Stdout, p, app.RemainingWindow(p))
			return nil
		})
	},
}

var sweepCmd = &cobra.Command{
	Use:     "sweep",
	Short:   "Expire stale proposals and delete old ones now",
	GroupID: "admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *trade.App) error {
			res, err := app.SweepExpirations(ctx)
			if err != nil {
				return err
			}
			renderSweep(os.Stdout, res)
			return nil
		})
	},
}

func init() {
	listCmd.Flags().String("status", "", "only proposals in this status")
	listCmd.Flags().String("franchise", "", "only proposals involving this franchise id")
	listCmd.Flags().Int("limit", 50, "maximum proposals to list")

	ledgerCmd.Flags().Int("limit", 20, "maximum transactions to list")

	editCashCmd.Flags().Int("party", 0, "index of the receiving party")
	editCashCmd.Flags().Int("line", 0, "index of the cash line within that party")
	editCashCmd.Flags().String("amount", "", "new amount, e.g. 12.50")
	editCashCmd.Flags().Int("season", 0, "new season")

	editNotesCmd.Flags().String("notes", "", "new notes")
	editNotesCmd.Flags().Bool("clear", false, "remove the notes")

	rootCmd.AddCommand(listCmd, showCmd, ledgerCmd, approveCmd, rejectCmd, editCashCmd, editNotesCmd, sweepCmd)
}
