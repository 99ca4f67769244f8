package postdraft

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robalyx/draftguard/internal/database"
	"github.com/robalyx/draftguard/internal/database/dbretry"
	"github.com/robalyx/draftguard/internal/database/memory"
	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/robalyx/draftguard/internal/database/types/enum"
	"github.com/robalyx/draftguard/internal/scoring"
	"github.com/robalyx/draftguard/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var draftStart = time.Date(2026, 9, 6, 18, 0, 0, 0, time.UTC)

type mapLookup map[string]float64

func (m mapLookup) GetADP(_ context.Context, playerID string) (float64, bool) {
	v, ok := m[playerID]
	return v, ok
}

// countingModels counts flags reads.
type countingModels struct {
	database.Models
	reads atomic.Int32
}

func (c *countingModels) Flags() database.FlagModel {
	return &countingFlags{FlagModel: c.Models.Flags(), reads: &c.reads}
}

type countingFlags struct {
	database.FlagModel
	reads *atomic.Int32
}

func (c *countingFlags) GetFlags(ctx context.Context, draftID string) (*types.DraftIntegrityFlags, error) {
	c.reads.Add(1)
	return c.FlagModel.GetFlags(ctx, draftID)
}

func testDetection() *config.Detection {
	cfg := config.Default().Common.Detection
	return &cfg
}

func newTestAnalyzer(t *testing.T, models database.Models, lookup mapLookup) *Analyzer {
	t.Helper()

	analyzer, err := NewAnalyzer(models, lookup, testDetection(), zaptest.NewLogger(t))
	require.NoError(t, err)

	analyzer.flagsRetry = dbretry.Policy{
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxElapsedTime:  time.Second,
		MaxRetries:      analyzer.flagsRetry.MaxRetries,
	}
	analyzer.now = func() time.Time { return draftStart.Add(time.Hour) }
	return analyzer
}

// seedDraft stores a three-user draft where userA reaches right before userB steals
// and both sit next to each other.
func seedDraft(t *testing.T, store database.Models, draftID string, finalize bool) {
	t.Helper()
	ctx := t.Context()

	picks := []*types.PickLocationRecord{
		{PickNumber: 1, UserID: "userA", PlayerID: "p1"},
		{PickNumber: 2, UserID: "userB", PlayerID: "p2"},
		{PickNumber: 3, UserID: "userC", PlayerID: "p3"},
		{PickNumber: 4, UserID: "userA", PlayerID: "reach"},
		{PickNumber: 5, UserID: "userB", PlayerID: "steal"},
		{PickNumber: 6, UserID: "userC", PlayerID: "rookie"},
	}
	for _, pick := range picks {
		pick.DraftID = draftID
		pick.Timestamp = draftStart.Add(time.Duration(pick.PickNumber) * time.Minute)
		require.NoError(t, store.Picks().SavePick(ctx, pick))
	}

	require.NoError(t, store.Flags().UpdateFlags(ctx, draftID, func(flags *types.DraftIntegrityFlags) (bool, error) {
		flags.FlaggedPairs = append(flags.FlaggedPairs, types.FlaggedPair{
			UserIDA: "userA",
			UserIDB: "userB",
			Events: []types.ProximityEvent{
				{PickNumberA: 1, PickNumberB: 2, DistanceFeet: 5},
				{PickNumberA: 4, PickNumberB: 5, DistanceFeet: 8},
			},
		})
		return true, nil
	}))

	if finalize {
		require.NoError(t, store.Flags().FinalizeFlags(ctx, draftID))
	}
}

var draftADP = mapLookup{
	"p1":    1,
	"p2":    2,
	"p3":    3,
	"reach": 40, // taken at 4
	"steal": 1,  // still there at 5, but the margin is too small to count
	"rookie": 6,
}

func TestAnalyzeDraft(t *testing.T) {
	t.Parallel()

	store := memory.New()
	seedDraft(t, store, "D1", true)
	analyzer := newTestAnalyzer(t, store, draftADP)

	result, err := analyzer.AnalyzeDraft(t.Context(), "D1")
	require.NoError(t, err)

	require.Len(t, result.PairScores, 3)
	assert.Equal(t, enum.ReviewStatusPending, result.Status)
	assert.Equal(t, draftStart.Add(6*time.Minute), result.DraftedAt)
	assert.Equal(t, draftStart.Add(time.Hour), result.AnalyzedAt)

	top := result.PairScores[0]
	assert.Equal(t, "userA:userB", top.PairID)
	assert.Equal(t, 2, top.EventCount)
	assert.Equal(t, 1, top.ReachCount)
	assert.Greater(t, top.LocationScore, 0.0)
	assert.Greater(t, top.BehaviorScore, 0.0)
	assert.InDelta(t, result.MaxRiskScore, top.CombinedRiskScore, 1e-9)
	assert.Equal(t, top.RiskLevel, result.MaxRiskLevel)

	weights := scoring.WeightsFrom(testDetection().Weights)
	for _, pair := range result.PairScores {
		expected := scoring.Combine(weights, pair.LocationScore, pair.BehaviorScore, pair.BenefitScore)
		assert.InDelta(t, expected, pair.CombinedRiskScore, 0.01)
		assert.LessOrEqual(t, pair.CombinedRiskScore, result.MaxRiskScore)
		assert.Less(t, pair.UserIDA, pair.UserIDB)
	}

	stored, err := store.RiskScores().GetRiskScores(t.Context(), "D1")
	require.NoError(t, err)
	assert.Len(t, stored.PairScores, 3)
	assert.InDelta(t, result.MaxRiskScore, stored.MaxRiskScore, 1e-9)
}

func TestAnalyzeDraftMissingADP(t *testing.T) {
	t.Parallel()

	store := memory.New()
	seedDraft(t, store, "D1", true)
	lookup := mapLookup{"p1": 1, "p2": 2, "p3": 3, "reach": 40, "steal": 1}
	analyzer := newTestAnalyzer(t, store, lookup)

	result, err := analyzer.AnalyzeDraft(t.Context(), "D1")
	require.NoError(t, err)
	assert.Contains(t, result.Warnings, "partial data for player rookie: no adp, using default")

	// The rookie is read at the missing-ADP value, so userC reached for it one pick after userB.
	pair := pairScore(t, result, "userB:userC")
	assert.Equal(t, 1, pair.ReachCount)
	assert.InDelta(t, 30*(1-0.5/24), pair.BehaviorScore, 0.01)

	// A default at the pick itself leaves the rookie neutral.
	cfg := testDetection()
	cfg.MissingADPValue = 6
	neutral, err := NewAnalyzer(store, lookup, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	result, err = neutral.AnalyzeDraft(t.Context(), "D1")
	require.NoError(t, err)
	pair = pairScore(t, result, "userB:userC")
	assert.Zero(t, pair.ReachCount)
	assert.Zero(t, pair.BehaviorScore)
}

func pairScore(t *testing.T, scores *types.DraftRiskScores, pairID string) *types.PairScore {
	t.Helper()

	for _, pair := range scores.PairScores {
		if pair.PairID == pairID {
			return pair
		}
	}
	require.FailNow(t, "pair not scored", pairID)
	return nil
}

func TestAnalyzeDraftRequiresFinalizedFlags(t *testing.T) {
	t.Parallel()

	store := &countingModels{Models: memory.New()}
	seedDraft(t, store, "D1", false)
	analyzer := newTestAnalyzer(t, store, draftADP)

	_, err := analyzer.AnalyzeDraft(t.Context(), "D1")
	require.Error(t, err)
	require.ErrorIs(t, err, types.ErrFlagsNotFinal)
	assert.True(t, types.IsTransient(err))
	assert.Equal(t, int32(testDetection().FlagsReadAttempts), store.reads.Load())

	_, err = store.RiskScores().GetRiskScores(t.Context(), "D1")
	require.ErrorIs(t, err, types.ErrDraftNotFound)
}

func TestAnalyzeDraftWithoutFinalizeRequirement(t *testing.T) {
	t.Parallel()

	store := memory.New()
	seedDraft(t, store, "D1", false)

	cfg := testDetection()
	cfg.RequireFinalizedFlags = false
	analyzer, err := NewAnalyzer(store, draftADP, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	result, err := analyzer.AnalyzeDraft(t.Context(), "D1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.PairScores[0].EventCount)
}

func TestAnalyzeDraftWithoutFlags(t *testing.T) {
	t.Parallel()

	store := memory.New()
	ctx := t.Context()
	for i, user := range []string{"userA", "userB"} {
		require.NoError(t, store.Picks().SavePick(ctx, &types.PickLocationRecord{
			DraftID: "D2", PickNumber: i + 1, UserID: user, PlayerID: "p1", Timestamp: draftStart,
		}))
	}

	analyzer := newTestAnalyzer(t, store, draftADP)
	result, err := analyzer.AnalyzeDraft(ctx, "D2")
	require.NoError(t, err)

	require.Len(t, result.PairScores, 1)
	assert.Zero(t, result.PairScores[0].LocationScore)
	assert.Contains(t, result.Warnings, "no proximity flags recorded")
	assert.Contains(t, result.Warnings, "2 pick(s) without location")
}

func TestAnalyzeDraftNoPicks(t *testing.T) {
	t.Parallel()

	analyzer := newTestAnalyzer(t, memory.New(), draftADP)

	_, err := analyzer.AnalyzeDraft(t.Context(), "missing")
	require.ErrorIs(t, err, types.ErrNoPicks)

	_, err = analyzer.AnalyzeDraft(t.Context(), "")
	var validationErr *types.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestAnalyzeDraftKeepsReviewState(t *testing.T) {
	t.Parallel()

	store := memory.New()
	seedDraft(t, store, "D1", true)
	analyzer := newTestAnalyzer(t, store, draftADP)

	_, err := analyzer.AnalyzeDraft(t.Context(), "D1")
	require.NoError(t, err)
	require.NoError(t, store.RiskScores().UpdateReviewStatus(
		t.Context(), "D1", enum.ReviewStatusDismissed, "admin1", draftStart.Add(2*time.Hour)))

	_, err = analyzer.AnalyzeDraft(t.Context(), "D1")
	require.NoError(t, err)

	stored, err := store.RiskScores().GetRiskScores(t.Context(), "D1")
	require.NoError(t, err)
	assert.Equal(t, enum.ReviewStatusDismissed, stored.Status)
	assert.Equal(t, "admin1", stored.ReviewedBy)
}

func TestAnalyzeDrafts(t *testing.T) {
	t.Parallel()

	store := memory.New()
	seedDraft(t, store, "D1", true)
	seedDraft(t, store, "D2", true)
	analyzer := newTestAnalyzer(t, store, draftADP)

	outcomes := analyzer.AnalyzeDrafts(t.Context(), []string{"D1", "empty", "D2"}, 2)
	require.Len(t, outcomes, 3)

	assert.Equal(t, "D1", outcomes[0].DraftID)
	require.NoError(t, outcomes[0].Err)
	assert.NotNil(t, outcomes[0].Scores)

	assert.Equal(t, "empty", outcomes[1].DraftID)
	require.ErrorIs(t, outcomes[1].Err, types.ErrNoPicks)

	assert.Equal(t, "D2", outcomes[2].DraftID)
	require.NoError(t, outcomes[2].Err)
}

func TestNewAnalyzerRejectsBadWeights(t *testing.T) {
	t.Parallel()

	cfg := testDetection()
	cfg.Weights = config.Weights{Location: 0.5, Behavior: 0.5, Benefit: 0.5}

	_, err := NewAnalyzer(memory.New(), draftADP, cfg, zaptest.NewLogger(t))
	require.ErrorIs(t, err, scoring.ErrWeightSum)
}
