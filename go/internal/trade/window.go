package trade

import (
	"time"

	"github.com/mcdev12/tradeblock/go/internal/models"
)

// DefaultAcceptanceWindow bounds how long the first acceptance waits for the others.
const DefaultAcceptanceWindow = 10 * time.Minute

// Window evaluates the mutual-acceptance window of a proposal. It holds no
// timers; the window is data on the proposal and is checked when read.
type Window struct {
	Duration time.Duration
}

// Deadline returns when the current window closes, if one is open.
func (w Window) Deadline(p *models.Proposal) (time.Time, bool) {
	if p.AcceptanceWindowStart == nil {
		return time.Time{}, false
	}
	return p.AcceptanceWindowStart.Add(w.Duration), true
}

// Remaining returns max(0, deadline - now), or zero when no window is open.
func (w Window) Remaining(p *models.Proposal, now time.Time) time.Duration {
	deadline, ok := w.Deadline(p)
	if !ok {
		return 0
	}
	if left := deadline.Sub(now); left > 0 {
		return left
	}
	return 0
}

// Expired reports whether the window closed before every party accepted.
func (w Window) Expired(p *models.Proposal, now time.Time) bool {
	deadline, ok := w.Deadline(p)
	if !ok {
		return false
	}
	return now.After(deadline) && !p.AllAccepted()
}

// Start opens the window at now unless one is already open.
func (w Window) Start(p *models.Proposal, now time.Time) bool {
	if p.AcceptanceWindowStart != nil {
		return false
	}
	start := now
	p.AcceptanceWindowStart = &start
	return true
}

// ResetIfExpired clears all acceptances when the window has lapsed. Status and
// ExpiresAt are left alone.
func (w Window) ResetIfExpired(p *models.Proposal, now time.Time) bool {
	if p.Status != models.ProposalStatusPending || !w.Expired(p, now) {
		return false
	}
	p.ResetAcceptances()
	return true
}
