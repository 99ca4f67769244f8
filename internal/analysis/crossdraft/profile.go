package crossdraft

import (
	"math"
	"time"

	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/robalyx/draftguard/internal/database/types/enum"
	"github.com/robalyx/draftguard/internal/scoring"
	"github.com/robalyx/draftguard/internal/setup/config"
)

const day = 24 * time.Hour

// BuildProfile derives a pair's longitudinal profile from its per-draft scores.
// history must be ordered by draftedAt then draftId. The output depends on
// nothing but its arguments: recency is measured from the pair's newest draft.
func BuildProfile(
	key types.PairKey, history []*types.PairScore, cfg *config.CrossDraft, thresholds scoring.Thresholds, analyzedAt time.Time,
) *types.UserPairAnalysis {
	profile := &types.UserPairAnalysis{
		PairID:           key.ID(),
		UserIDA:          key.UserIDA,
		UserIDB:          key.UserIDB,
		OverallRiskLevel: enum.RiskLevelNone,
		Trend:            enum.TrendStable,
		ReviewStatus:     enum.ReviewStatusPending,
		AnalyzedAt:       analyzedAt,
	}

	total := len(history)
	profile.TotalDraftsTogether = total
	if total == 0 {
		return profile
	}

	newest := history[total-1]
	profile.LastDraftTogether = newest.DraftedAt
	profile.LastDraftID = newest.DraftID

	var (
		within      int
		sum         float64
		weighted    float64
		totalWeight float64
	)
	halfLife := max(cfg.RecencyHalfLifeDays, 1e-9)

	for _, score := range history {
		combined := scoring.Clamp(score.CombinedRiskScore)
		if score.LocationScore > cfg.ProximityScoreThreshold {
			within++
		}

		sum += combined
		profile.MaxRiskScore = max(profile.MaxRiskScore, combined)

		ageDays := newest.DraftedAt.Sub(score.DraftedAt).Hours() / 24
		weight := math.Pow(0.5, max(ageDays, 0)/halfLife)
		weighted += weight * combined
		totalWeight += weight
	}

	profile.DraftsWithinProximityThreshold = within
	profile.CoLocationRate = CoLocationRate(within, total)
	profile.AverageRiskScore = scoring.Round2(sum / float64(total))
	profile.RecencyWeightedScore = scoring.Round2(weighted / totalWeight)
	profile.MaxRiskScore = scoring.Round2(profile.MaxRiskScore)
	profile.OverallRiskLevel = scoring.LevelFor(OverallScore(profile, cfg), thresholds)
	profile.Trend = Trend(history, cfg.TrendDelta)

	return profile
}

// CoLocationRate returns within/total in [0,1], and 0 when total is 0.
func CoLocationRate(within, total int) float64 {
	if total <= 0 || within <= 0 {
		return 0
	}
	return math.Min(float64(within)/float64(total), 1)
}

// OverallScore blends the co-location rate, the historical maximum and the
// recency weighted mean. The weights are normalized so their sum does not matter.
func OverallScore(profile *types.UserPairAnalysis, cfg *config.CrossDraft) float64 {
	weightSum := cfg.RateWeight + cfg.MaxWeight + cfg.RecencyWeight
	if weightSum <= 0 {
		return 0
	}

	score := cfg.RateWeight*profile.CoLocationRate*100 +
		cfg.MaxWeight*profile.MaxRiskScore +
		cfg.RecencyWeight*profile.RecencyWeightedScore
	return scoring.Clamp(score / weightSum)
}

// Trend compares the mean combined score of the newer half of the history with the older half.
func Trend(history []*types.PairScore, delta float64) enum.Trend {
	if len(history) < 2 {
		return enum.TrendStable
	}

	half := len(history) / 2
	older := meanCombined(history[:half])
	newer := meanCombined(history[half:])

	switch diff := newer - older; {
	case diff > delta:
		return enum.TrendRising
	case diff < -delta:
		return enum.TrendFalling
	default:
		return enum.TrendStable
	}
}

func meanCombined(scores []*types.PairScore) float64 {
	var sum float64
	for _, s := range scores {
		sum += scoring.Clamp(s.CombinedRiskScore)
	}
	return sum / float64(len(scores))
}
