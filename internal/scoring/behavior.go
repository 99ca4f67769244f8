package scoring

import "github.com/robalyx/draftguard/internal/database/types"

// Points awarded per correlated reach and per value transfer.
const (
	notableReachPoints   = 15.0
	egregiousReachPoints = 30.0
	mutualReachBonus     = 10.0
	transferPoints       = 25.0
	excessStealPoints    = 10.0
)

// BehaviorScore rates reaches by either member of the pair that land within
// the correlation window of a pick by the other member. Closer picks weigh
// more. It returns the score and the number of correlated reaches.
func BehaviorScore(key types.PairKey, values []PickValue, policy Policy) (float64, int) {
	window := float64(max(policy.CorrelationWindow, 1))

	var (
		score   float64
		reaches int
		byA     bool
		byB     bool
	)
	for _, v := range values {
		if !key.Contains(v.UserID) {
			continue
		}

		kind := v.Reach(policy)
		if kind == NoReach {
			continue
		}

		gap, ok := nearestPartnerPick(key, values, v)
		if !ok || float64(gap) > window {
			continue
		}

		points := notableReachPoints
		if kind == EgregiousReach {
			points = egregiousReachPoints
		}
		score += points * (1 - 0.5*float64(gap)/window)
		reaches++

		if v.UserID == key.UserIDA {
			byA = true
		} else {
			byB = true
		}
	}

	if byA && byB {
		score += mutualReachBonus
	}

	return Clamp(score), reaches
}

// BenefitScore rates value transfers: a member reaching shortly before the
// other member lands a steal. The pair's share of the draft's steals beyond
// what its share of picks predicts also counts. It returns the score and the
// number of transfers.
func BenefitScore(key types.PairKey, values []PickValue, policy Policy) (float64, int) {
	window := max(policy.CorrelationWindow, 1)

	var (
		score      float64
		transfers  int
		pairSteals int
		allSteals  int
		pairPicks  int
	)
	for i, v := range values {
		member := key.Contains(v.UserID)
		if member {
			pairPicks++
		}

		margin := v.StealMargin(policy)
		if margin == 0 {
			continue
		}
		allSteals++
		if !member {
			continue
		}
		pairSteals++

		// Strongest reach by the partner in the window before the steal.
		severity := 0.0
		for j := i - 1; j >= 0 && v.PickNumber-values[j].PickNumber <= window; j-- {
			prev := values[j]
			if prev.UserID == v.UserID || !key.Contains(prev.UserID) {
				continue
			}
			switch prev.Reach(policy) {
			case EgregiousReach:
				severity = max(severity, 1.5)
			case NotableReach:
				severity = max(severity, 1)
			case NoReach:
			}
		}
		if severity == 0 {
			continue
		}

		score += transferPoints * severity * min(2, margin/max(policy.Steal, 1))
		transfers++
	}

	if len(values) > 0 {
		expected := float64(allSteals) * float64(pairPicks) / float64(len(values))
		if excess := float64(pairSteals) - expected; excess >= 1 {
			score += excessStealPoints * excess
		}
	}

	return Clamp(score), transfers
}

// nearestPartnerPick returns the smallest pick distance from v to a pick of the other member.
func nearestPartnerPick(key types.PairKey, values []PickValue, v PickValue) (int, bool) {
	best, found := 0, false
	for _, other := range values {
		if other.UserID == v.UserID || !key.Contains(other.UserID) {
			continue
		}
		gap := other.PickNumber - v.PickNumber
		if gap < 0 {
			gap = -gap
		}
		if !found || gap < best {
			best, found = gap, true
		}
	}
	return best, found
}
