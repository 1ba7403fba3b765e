package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/mcdev12/tradeblock/go/internal/models"
	"github.com/mcdev12/tradeblock/go/internal/trade"
)

var (
	titleStyle   = color.New(color.FgCyan, color.Bold)
	labelStyle   = color.New(color.FgWhite, color.Bold)
	successStyle = color.New(color.FgGreen, color.Bold)
	warningStyle = color.New(color.FgYellow, color.Bold)
	errorStyle   = color.New(color.FgRed, color.Bold)
	faintStyle   = color.New(color.Faint)
)

var statusStyles = map[models.ProposalStatus]*color.Color{
	models.ProposalStatusHypothetical: color.New(color.Faint),
	models.ProposalStatusPending:      color.New(color.FgYellow),
	models.ProposalStatusAccepted:     color.New(color.FgCyan, color.Bold),
	models.ProposalStatusExecuted:     color.New(color.FgGreen),
	models.ProposalStatusRejected:     color.New(color.FgRed),
	models.ProposalStatusCanceled:     color.New(color.FgRed),
	models.ProposalStatusExpired:      color.New(color.FgRed, color.Faint),
}

func statusText(s models.ProposalStatus) string {
	if style, ok := statusStyles[s]; ok {
		return style.Sprint(string(s))
	}
	return string(s)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Options.SeparateRows = false
	return t
}

func shortID(id fmt.Stringer) string {
	return id.String()[:8]
}

func describeAsset(a models.Asset) string {
	if a.Kind == models.AssetKindCash && a.Cash != nil {
		return fmt.Sprintf("cash $%s (%d) from %s", a.Cash.Amount.StringFixed(2), a.Cash.Season, shortID(a.FromFranchiseID))
	}
	return fmt.Sprintf("%s %s from %s", a.Kind, shortID(a.ID), shortID(a.FromFranchiseID))
}

func acceptedCount(p *models.Proposal) string {
	n := 0
	for _, party := range p.Parties {
		if party.Accepted {
			n++
		}
	}
	return fmt.Sprintf("%d/%d", n, len(p.Parties))
}

func formatRemaining(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Truncate(time.Second).String()
}

func renderProposals(w io.Writer, proposals []models.Proposal, remaining func(*models.Proposal) time.Duration) {
	if len(proposals) == 0 {
		fmt.Fprintln(w, "No proposals found")
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Slug", "Status", "Parties", "Accepted", "Window", "Expires", "Created"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	for i := range proposals {
		p := &proposals[i]
		t.AppendRow(table.Row{
			p.Slug,
			statusText(p.Status),
			len(p.Parties),
			acceptedCount(p),
			formatRemaining(remaining(p)),
			p.ExpiresAt.Format(time.RFC3339),
			faintStyle.Sprint(p.CreatedAt.Format(time.RFC3339)),
		})
	}
	t.Render()
}

func renderProposal(w io.Writer, p *models.Proposal, remaining time.Duration) {
	fmt.Fprintln(w)
	titleStyle.Fprintf(w, "Trade %s\n", p.Slug)
	fmt.Fprintln(w, strings.Repeat("=", 60))

	field := func(label, value string) {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Sprintf("%-12s", label+":"), value)
	}
	field("ID", p.ID.String())
	field("Status", statusText(p.Status))
	field("Created", p.CreatedAt.Format(time.RFC3339))
	field("Expires", p.ExpiresAt.Format(time.RFC3339))
	if p.AcceptanceWindowStart != nil {
		field("Window", fmt.Sprintf("opened %s, %s left", p.AcceptanceWindowStart.Format(time.RFC3339), formatRemaining(remaining)))
	}
	if p.CounterOf != nil {
		field("Counter of", p.CounterOf.String())
	}
	if p.Notes != nil {
		field("Notes", *p.Notes)
	}
	fmt.Fprintln(w)

	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Franchise", "Receives", "Accepted"})
	for i, party := range p.Parties {
		receives := make([]string, len(party.Receives))
		for j, a := range party.Receives {
			receives[j] = describeAsset(a)
		}
		accepted := errorStyle.Sprint("no")
		if party.Accepted {
			accepted = successStyle.Sprint("yes")
			if party.AcceptedAt != nil {
				accepted += faintStyle.Sprintf(" %s", party.AcceptedAt.Format(time.Kitchen))
			}
		}
		t.AppendRow(table.Row{i, party.FranchiseID.String(), strings.Join(receives, "\n"), accepted})
	}
	t.Render()
}

func renderTransactions(w io.Writer, txns []models.Transaction) {
	if len(txns) == 0 {
		fmt.Fprintln(w, "No transactions recorded")
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Transaction", "Proposal", "Executed", "Kind", "Asset", "From", "To"})
	for _, txn := range txns {
		for i, a := range txn.Assets {
			head := table.Row{"", "", ""}
			if i == 0 {
				head = table.Row{shortID(txn.ID), txn.ProposalSlug, txn.ExecutedAt.Format(time.RFC3339)}
			}
			asset := shortID(a.AssetID)
			if a.Cash != nil {
				asset = fmt.Sprintf("$%s (%d)", a.Cash.Amount.StringFixed(2), a.Cash.Season)
			}
			t.AppendRow(append(head, string(a.Kind), asset, shortID(a.FromFranchiseID), shortID(a.ToFranchiseID)))
		}
		t.AppendSeparator()
	}
	t.Render()
}

func renderSweep(w io.Writer, res *trade.SweepResult) {
	style := successStyle
	if res.Failed > 0 {
		style = warningStyle
	}
	style.Fprintf(w, "Sweep finished: %d expired, %d deleted, %d failed\n", res.Expired, res.Deleted, res.Failed)
}

// renderConflicts lists the asset conflicts carried by an approve error.
func renderConflicts(w io.Writer, err error) {
	var te *trade.Error
	if !errors.As(err, &te) || len(te.Conflicts) == 0 {
		return
	}
	errorStyle.Fprintln(w, "Assets in this trade have been claimed elsewhere:")
	for _, c := range te.Conflicts {
		fmt.Fprintf(w, "  - %s\n", c.String())
	}
}
