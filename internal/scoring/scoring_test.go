package scoring_test

import (
	"context"
	"math"
	"testing"

	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/robalyx/draftguard/internal/database/types/enum"
	"github.com/robalyx/draftguard/internal/scoring"
	"github.com/robalyx/draftguard/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultWeights = scoring.Weights{Location: 0.35, Behavior: 0.30, Benefit: 0.35}

type mapLookup map[string]float64

func (m mapLookup) GetADP(_ context.Context, playerID string) (float64, bool) {
	v, ok := m[playerID]
	return v, ok
}

func defaultPolicy() scoring.Policy {
	cfg := config.Default().Common.Detection
	return scoring.PolicyFrom(&cfg)
}

func TestWeightsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		weights scoring.Weights
		wantErr error
	}{
		{name: "defaults", weights: defaultWeights},
		{name: "single component", weights: scoring.Weights{Location: 1}},
		{name: "sum too low", weights: scoring.Weights{Location: 0.3, Behavior: 0.3, Benefit: 0.3}, wantErr: scoring.ErrWeightSum},
		{name: "negative", weights: scoring.Weights{Location: 1.2, Behavior: -0.2}, wantErr: scoring.ErrWeightOutOfRange},
		{name: "nan", weights: scoring.Weights{Location: math.NaN(), Behavior: 0.5, Benefit: 0.5}, wantErr: scoring.ErrWeightOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.weights.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCombine(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 100, scoring.Combine(defaultWeights, 100, 100, 100), 1e-9)
	assert.InDelta(t, 0, scoring.Combine(defaultWeights, 0, 0, 0), 1e-9)
	assert.InDelta(t, 35, scoring.Combine(defaultWeights, 100, 0, 0), 1e-9)
	assert.InDelta(t, 0.35*40+0.30*50+0.35*60, scoring.Combine(defaultWeights, 40, 50, 60), 1e-9)

	// Out of range inputs are clamped.
	assert.InDelta(t, 100, scoring.Combine(defaultWeights, 500, 120, 101), 1e-9)
	assert.InDelta(t, 0, scoring.Combine(defaultWeights, -5, math.NaN(), -1), 1e-9)
}

func TestCombineMonotonic(t *testing.T) {
	t.Parallel()

	steps := []float64{-10, 0, 10, 25, 50, 75, 90, 100, 150}
	for _, base := range steps {
		for i := range 3 {
			prev := math.Inf(-1)
			for _, v := range steps {
				components := [3]float64{base, base, base}
				components[i] = v

				got := scoring.Combine(defaultWeights, components[0], components[1], components[2])
				assert.GreaterOrEqual(t, got, prev)
				prev = got
			}
		}
	}
}

func TestLevelFor(t *testing.T) {
	t.Parallel()

	thresholds := scoring.Thresholds{Monitor: 50, Review: 70, Urgent: 90}

	tests := []struct {
		score float64
		want  enum.RiskLevel
	}{
		{0, enum.RiskLevelNone},
		{49.99, enum.RiskLevelNone},
		{50, enum.RiskLevelMonitor},
		{69.9, enum.RiskLevelMonitor},
		{70, enum.RiskLevelReview},
		{89.99, enum.RiskLevelReview},
		{90, enum.RiskLevelUrgent},
		{100, enum.RiskLevelUrgent},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, scoring.LevelFor(tt.score, thresholds), "score %v", tt.score)
	}
}

func TestLocationScore(t *testing.T) {
	t.Parallel()

	assert.Zero(t, scoring.LocationScore(nil, 50, 20))

	atThreshold := []types.ProximityEvent{{PickNumberA: 1, PickNumberB: 2, DistanceFeet: 50}}
	assert.InDelta(t, 10, scoring.LocationScore(atThreshold, 50, 20), 1e-9)

	sameSpot := []types.ProximityEvent{{PickNumberA: 1, PickNumberB: 2, DistanceFeet: 0}}
	assert.InDelta(t, 20, scoring.LocationScore(sameSpot, 50, 20), 1e-9)

	closer := []types.ProximityEvent{{DistanceFeet: 10}}
	farther := []types.ProximityEvent{{DistanceFeet: 40}}
	assert.Greater(t, scoring.LocationScore(closer, 50, 20), scoring.LocationScore(farther, 50, 20))

	many := make([]types.ProximityEvent, 12)
	assert.InDelta(t, 100, scoring.LocationScore(many, 50, 20), 1e-9)
}

func TestAnalyzePicksMissingADP(t *testing.T) {
	t.Parallel()

	picks := []*types.PickLocationRecord{
		{PickNumber: 2, UserID: "b", PlayerID: "unknown"},
		{PickNumber: 1, UserID: "a", PlayerID: "known"},
	}

	values, warnings := scoring.AnalyzePicks(t.Context(), picks, mapLookup{"known": 3}, defaultPolicy())
	require.Len(t, values, 2)
	require.Len(t, warnings, 1)
	assert.Equal(t, "unknown", warnings[0].ID)

	assert.Equal(t, 1, values[0].PickNumber)
	assert.True(t, values[0].ADPKnown)

	assert.Equal(t, 2, values[1].PickNumber)
	assert.False(t, values[1].ADPKnown)
	assert.InDelta(t, 200, values[1].ADP, 1e-9)
	assert.Equal(t, scoring.EgregiousReach, values[1].Reach(defaultPolicy()))

	// The configured default decides how an unranked pick is read.
	policy := defaultPolicy()
	policy.MissingADP = 2
	values, _ = scoring.AnalyzePicks(t.Context(), picks, mapLookup{"known": 3}, policy)
	assert.InDelta(t, 2, values[1].ADP, 1e-9)
	assert.Equal(t, scoring.NoReach, values[1].Reach(policy))

	assert.Equal(t, []string{"a", "b"}, scoring.Participants(values))
}

func TestReachAndSteal(t *testing.T) {
	t.Parallel()

	policy := defaultPolicy()

	assert.Equal(t, scoring.NoReach, scoring.PickValue{PickNumber: 10, ADP: 20, ADPKnown: true}.Reach(policy))
	assert.Equal(t, scoring.NotableReach, scoring.PickValue{PickNumber: 10, ADP: 25, ADPKnown: true}.Reach(policy))
	assert.Equal(t, scoring.EgregiousReach, scoring.PickValue{PickNumber: 10, ADP: 40, ADPKnown: true}.Reach(policy))

	assert.InDelta(t, 20, scoring.PickValue{PickNumber: 30, ADP: 10, ADPKnown: true}.StealMargin(policy), 1e-9)
	assert.Zero(t, scoring.PickValue{PickNumber: 30, ADP: 20, ADPKnown: true}.StealMargin(policy))
	assert.InDelta(t, 100, scoring.PickValue{PickNumber: 300, ADP: 200}.StealMargin(policy), 1e-9)
}

func TestBehaviorScore(t *testing.T) {
	t.Parallel()

	policy := defaultPolicy()
	key := types.PairKey{UserIDA: "a", UserIDB: "b"}

	values := []scoring.PickValue{
		{PickNumber: 10, UserID: "a", PlayerID: "p1", ADP: 45, ADPKnown: true}, // egregious
		{PickNumber: 11, UserID: "b", PlayerID: "p2", ADP: 12, ADPKnown: true},
		{PickNumber: 12, UserID: "c", PlayerID: "p3", ADP: 40, ADPKnown: true}, // reach by outsider
		{PickNumber: 40, UserID: "b", PlayerID: "p4", ADP: 60, ADPKnown: true}, // notable, partner 30 picks away
	}

	score, reaches := scoring.BehaviorScore(key, values, policy)
	assert.Equal(t, 1, reaches)
	assert.InDelta(t, 30*(1-0.5/24), score, 1e-9)

	// A pick without ADP is measured against the missing-ADP value.
	values[0].ADPKnown = false
	values[0].ADP = policy.MissingADP
	score, reaches = scoring.BehaviorScore(key, values, policy)
	assert.Equal(t, 1, reaches)
	assert.InDelta(t, 30*(1-0.5/24), score, 1e-9)

	values[0].ADP = 10
	score, reaches = scoring.BehaviorScore(key, values, policy)
	assert.Zero(t, reaches)
	assert.Zero(t, score)
}

func TestBenefitScore(t *testing.T) {
	t.Parallel()

	policy := defaultPolicy()
	key := types.PairKey{UserIDA: "a", UserIDB: "b"}

	values := []scoring.PickValue{
		{PickNumber: 20, UserID: "a", ADP: 40, ADPKnown: true}, // notable reach by a
		{PickNumber: 21, UserID: "c", ADP: 21, ADPKnown: true},
		{PickNumber: 25, UserID: "b", ADP: 5, ADPKnown: true},  // steal by b, margin 20
		{PickNumber: 26, UserID: "c", ADP: 26, ADPKnown: true},
	}

	score, transfers := scoring.BenefitScore(key, values, policy)
	assert.Equal(t, 1, transfers)

	// One steal against an expected share of half a steal is not an excess.
	assert.InDelta(t, 25*20.0/15, score, 1e-9)

	none, transfers := scoring.BenefitScore(types.PairKey{UserIDA: "c", UserIDB: "d"}, values, policy)
	assert.Zero(t, transfers)
	assert.Zero(t, none)
}
