package assets

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/tradeblock/go/internal/models"
	"github.com/mcdev12/tradeblock/go/internal/trade"
)

// RosterCounter reports how many players a franchise currently carries.
type RosterCounter interface {
	CountRosterPlayers(ctx context.Context, fantasyTeamID uuid.UUID) (int64, error)
}

// RosterLimitValidator rejects trades that would leave a franchise over the
// league's roster limit. A limit of zero disables the check.
type RosterLimitValidator struct {
	counter RosterCounter
	limit   int
}

func NewRosterLimitValidator(counter RosterCounter, limit int) *RosterLimitValidator {
	return &RosterLimitValidator{counter: counter, limit: limit}
}

var _ trade.LegalityValidator = (*RosterLimitValidator)(nil)

func (v *RosterLimitValidator) ValidateTrade(ctx context.Context, parties []models.Party) ([]string, error) {
	if v.limit <= 0 {
		return nil, nil
	}

	delta := make(map[uuid.UUID]int, len(parties))
	for _, party := range parties {
		for _, asset := range party.Receives {
			if asset.Kind != models.AssetKindPlayer {
				continue
			}
			delta[party.FranchiseID]++
			delta[asset.FromFranchiseID]--
		}
	}

	var violations []string
	for _, party := range parties {
		if delta[party.FranchiseID] <= 0 {
			continue
		}
		current, err := v.counter.CountRosterPlayers(ctx, party.FranchiseID)
		if err != nil {
			return nil, fmt.Errorf("failed to count roster of %s: %w", party.FranchiseID, err)
		}
		after := int(current) + delta[party.FranchiseID]
		if after > v.limit {
			violations = append(violations, fmt.Sprintf("franchise %s would carry %d players, the limit is %d", party.FranchiseID, after, v.limit))
		}
	}
	return violations, nil
}
