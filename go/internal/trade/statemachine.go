package trade

import (
	"fmt"

	"github.com/mcdev12/tradeblock/go/internal/models"
)

// Action is an operation that may move a proposal between statuses.
type Action string

const (
	ActionPropose   Action = "propose"
	ActionAccept    Action = "accept"
	ActionApprove   Action = "approve"
	ActionReject    Action = "reject"
	ActionCancel    Action = "cancel"
	ActionExpire    Action = "expire"
	ActionEditDraft Action = "edit"
	ActionEditNotes Action = "edit notes of"
	ActionEditCash  Action = "correct cash of"
)

// transitions lists, per action, the statuses it may start from and the
// statuses it may lead to. Nothing leads back to hypothetical.
var transitions = map[Action]struct {
	from []models.ProposalStatus
	to   []models.ProposalStatus
}{
	ActionPropose: {
		from: []models.ProposalStatus{models.ProposalStatusHypothetical},
		to:   []models.ProposalStatus{models.ProposalStatusPending},
	},
	ActionAccept: {
		from: []models.ProposalStatus{models.ProposalStatusPending},
		to:   []models.ProposalStatus{models.ProposalStatusPending, models.ProposalStatusAccepted},
	},
	ActionApprove: {
		from: []models.ProposalStatus{models.ProposalStatusAccepted},
		to:   []models.ProposalStatus{models.ProposalStatusExecuted},
	},
	ActionReject: {
		from: []models.ProposalStatus{models.ProposalStatusPending, models.ProposalStatusAccepted},
		to:   []models.ProposalStatus{models.ProposalStatusRejected},
	},
	ActionCancel: {
		from: []models.ProposalStatus{models.ProposalStatusHypothetical, models.ProposalStatusPending},
		to:   []models.ProposalStatus{models.ProposalStatusCanceled},
	},
	ActionExpire: {
		from: []models.ProposalStatus{models.ProposalStatusPending},
		to:   []models.ProposalStatus{models.ProposalStatusExpired},
	},
	ActionEditDraft: {
		from: []models.ProposalStatus{models.ProposalStatusHypothetical},
		to:   []models.ProposalStatus{models.ProposalStatusHypothetical},
	},
	ActionEditNotes: {
		from: []models.ProposalStatus{
			models.ProposalStatusHypothetical, models.ProposalStatusPending, models.ProposalStatusAccepted,
			models.ProposalStatusRejected, models.ProposalStatusCanceled, models.ProposalStatusExpired,
		},
	},
	ActionEditCash: {
		from: []models.ProposalStatus{
			models.ProposalStatusHypothetical, models.ProposalStatusPending, models.ProposalStatusAccepted,
		},
	},
}

// Permits reports whether action may be attempted from status.
func Permits(action Action, status models.ProposalStatus) bool {
	t, ok := transitions[action]
	if !ok {
		return false
	}
	for _, s := range t.from {
		if s == status {
			return true
		}
	}
	return false
}

// CanTransition reports whether some action moves a proposal from one status to another.
// Staying in the same status is always allowed.
func CanTransition(from, to models.ProposalStatus) bool {
	if from == to {
		return true
	}
	for _, t := range transitions {
		if !contains(t.from, from) {
			continue
		}
		if contains(t.to, to) {
			return true
		}
	}
	return false
}

// guard returns an InvalidState error when action cannot start from the proposal's status.
func guard(p *models.Proposal, action Action) error {
	if !Permits(action, p.Status) {
		return invalidState(string(action), p.Status)
	}
	return nil
}

// moveTo applies a status change after checking it is an edge of the action.
func moveTo(p *models.Proposal, action Action, to models.ProposalStatus) error {
	if err := guard(p, action); err != nil {
		return err
	}
	if !contains(transitions[action].to, to) {
		return fmt.Errorf("%s cannot move a proposal to %s", action, to)
	}
	p.Status = to
	return nil
}

func contains(statuses []models.ProposalStatus, s models.ProposalStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}
