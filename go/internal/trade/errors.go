package trade

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mcdev12/tradeblock/go/internal/models"
)

// Storage errors returned by TradeRepository implementations.
var (
	ErrRecordNotFound       = errors.New("record not found")
	ErrVersionConflict      = errors.New("proposal was modified concurrently")
	ErrDuplicateTransaction = errors.New("transaction already recorded for proposal")
)

// ErrorKind classifies errors surfaced to callers of the App.
type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindInvalidState ErrorKind = "invalid_state"
	KindConflict     ErrorKind = "conflict"
	KindValidation   ErrorKind = "validation"
	KindPermission   ErrorKind = "permission"
)

// Sentinels for errors.Is matching on kind.
var (
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrInvalidState = &Error{Kind: KindInvalidState}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrPermission   = &Error{Kind: KindPermission}
)

// AssetConflict explains why an asset cannot move in a commit.
type AssetConflict struct {
	Asset                  models.Asset `json:"asset"`
	Reason                 string       `json:"reason"`
	CompetingTransactionID *uuid.UUID   `json:"competing_transaction_id,omitempty"`
	CompetingProposalSlug  string       `json:"competing_proposal_slug,omitempty"`
}

func (c AssetConflict) String() string {
	if c.CompetingTransactionID != nil {
		return fmt.Sprintf("%s %s: %s (transaction %s, proposal %s)",
			c.Asset.Kind, c.Asset.ID, c.Reason, c.CompetingTransactionID, c.CompetingProposalSlug)
	}
	return fmt.Sprintf("%s %s: %s", c.Asset.Kind, c.Asset.ID, c.Reason)
}

// Error is the typed error returned by trade operations.
type Error struct {
	Kind      ErrorKind
	Action    string
	Status    models.ProposalStatus
	Message   string
	Details   []string
	Conflicts []AssetConflict
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Action != "" {
		b.WriteString(e.Action)
		b.WriteString(": ")
	}
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(string(e.Kind))
	}
	if len(e.Details) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Details, "; "))
		b.WriteString(")")
	}
	for _, c := range e.Conflicts {
		b.WriteString("; ")
		b.WriteString(c.String())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrConflict) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of a trade error, or "" if err is not one.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

func notFound(action, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Action: action, Message: fmt.Sprintf(format, args...)}
}

func invalidState(action string, status models.ProposalStatus) *Error {
	return &Error{
		Kind:    KindInvalidState,
		Action:  action,
		Status:  status,
		Message: fmt.Sprintf("cannot %s a proposal that is %s", action, status),
	}
}

func permissionDenied(action, format string, args ...any) *Error {
	return &Error{Kind: KindPermission, Action: action, Message: fmt.Sprintf(format, args...)}
}

func validationFailed(action string, details ...string) *Error {
	return &Error{Kind: KindValidation, Action: action, Message: "trade is not valid", Details: details}
}

func conflict(action string, err error) *Error {
	return &Error{Kind: KindConflict, Action: action, Message: "proposal was modified concurrently, please retry", Err: err}
}
