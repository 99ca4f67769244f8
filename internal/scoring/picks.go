package scoring

import (
	"context"
	"slices"

	"github.com/robalyx/draftguard/internal/adp"
	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/robalyx/draftguard/internal/setup/config"
)

// Policy holds the behavior and benefit thresholds.
type Policy struct {
	MissingADP        float64
	NotableReach      float64
	EgregiousReach    float64
	Steal             float64
	CorrelationWindow int
}

// PolicyFrom converts the configured detection policy.
func PolicyFrom(cfg *config.Detection) Policy {
	return Policy{
		MissingADP:        cfg.MissingADPValue,
		NotableReach:      cfg.NotableReachPicks,
		EgregiousReach:    cfg.EgregiousReachPicks,
		Steal:             cfg.StealPicks,
		CorrelationWindow: cfg.CorrelationWindowPicks,
	}
}

// ReachKind classifies how far ahead of ADP a player was taken.
type ReachKind int

const (
	NoReach ReachKind = iota
	NotableReach
	EgregiousReach
)

// PickValue is one pick measured against ADP.
type PickValue struct {
	PickNumber int
	UserID     string
	PlayerID   string
	// ADP is the policy's missing-ADP value when the player has none, so an
	// unranked player taken early counts as a reach.
	ADP float64
	// ADPKnown is false when ADP was replaced by the missing-ADP default.
	ADPKnown bool
}

// Deviation is positive when the player went before ADP and negative when after.
func (p PickValue) Deviation() float64 {
	return p.ADP - float64(p.PickNumber)
}

// Reach classifies the pick.
func (p PickValue) Reach(policy Policy) ReachKind {
	switch d := p.Deviation(); {
	case d >= policy.EgregiousReach:
		return EgregiousReach
	case d >= policy.NotableReach:
		return NotableReach
	default:
		return NoReach
	}
}

// StealMargin is how many picks past ADP the player lasted, or 0 if it was not a steal.
func (p PickValue) StealMargin(policy Policy) float64 {
	if margin := -p.Deviation(); margin >= policy.Steal {
		return margin
	}
	return 0
}

// AnalyzePicks resolves ADP for every pick, ordered by pick number. Players
// without ADP get the policy's default value and a PartialDataError warning.
func AnalyzePicks(
	ctx context.Context, picks []*types.PickLocationRecord, lookup adp.Lookup, policy Policy,
) ([]PickValue, []*types.PartialDataError) {
	values := make([]PickValue, 0, len(picks))
	var warnings []*types.PartialDataError

	for _, pick := range picks {
		value := PickValue{
			PickNumber: pick.PickNumber,
			UserID:     pick.UserID,
			PlayerID:   pick.PlayerID,
		}

		if adpValue, ok := lookup.GetADP(ctx, pick.PlayerID); ok && adpValue > 0 {
			value.ADP = adpValue
			value.ADPKnown = true
		} else {
			value.ADP = policy.MissingADP
			warnings = append(warnings, &types.PartialDataError{
				Entity: "player",
				ID:     pick.PlayerID,
				Reason: "no adp, using default",
			})
		}

		values = append(values, value)
	}

	slices.SortFunc(values, func(a, b PickValue) int {
		return a.PickNumber - b.PickNumber
	})

	return values, warnings
}

// Participants returns the distinct users of the picks in order of their first pick.
func Participants(values []PickValue) []string {
	seen := make(map[string]struct{})
	var users []string
	for _, v := range values {
		if _, ok := seen[v.UserID]; ok {
			continue
		}
		seen[v.UserID] = struct{}{}
		users = append(users, v.UserID)
	}
	return users
}
