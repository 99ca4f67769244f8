package crossdraft

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robalyx/draftguard/internal/database"
	"github.com/robalyx/draftguard/internal/database/memory"
	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/robalyx/draftguard/internal/database/types/enum"
	"github.com/robalyx/draftguard/internal/scoring"
	"github.com/robalyx/draftguard/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	seasonStart = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	batchClock  = time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)
)

func testDetection() *config.Detection {
	cfg := config.Default().Common.Detection
	return &cfg
}

func newTestAnalyzer(t *testing.T, models database.Models) *Analyzer {
	t.Helper()

	analyzer := NewAnalyzer(models, testDetection(), zaptest.NewLogger(t))
	analyzer.now = func() time.Time { return batchClock }
	return analyzer
}

type pairRow struct {
	userA, userB string
	location     float64
	combined     float64
	events       int
}

func saveDraft(t *testing.T, models database.Models, draftID string, draftedAt time.Time, rows ...pairRow) {
	t.Helper()

	scores := &types.DraftRiskScores{DraftID: draftID, DraftedAt: draftedAt, AnalyzedAt: draftedAt}
	for _, row := range rows {
		key, _ := types.CanonicalPair(row.userA, row.userB)
		scores.PairScores = append(scores.PairScores, &types.PairScore{
			DraftID:           draftID,
			PairID:            key.ID(),
			UserIDA:           key.UserIDA,
			UserIDB:           key.UserIDB,
			LocationScore:     row.location,
			CombinedRiskScore: row.combined,
			EventCount:        row.events,
			DraftedAt:         draftedAt,
		})
	}
	types.SortPairScores(scores.PairScores)
	scores.MaxRiskScore = scores.PairScores[0].CombinedRiskScore
	require.NoError(t, models.RiskScores().SaveRiskScores(t.Context(), scores))
}

func seedSeason(t *testing.T, models database.Models) {
	t.Helper()

	saveDraft(t, models, "D1", seasonStart, pairRow{"userA", "userB", 60, 80, 3})
	saveDraft(t, models, "D2", seasonStart.Add(90*day), pairRow{"userB", "userA", 0, 40, 0})
	saveDraft(t, models, "D3", seasonStart.Add(180*day), pairRow{"userA", "userB", 40, 95, 2})
}

func TestAnalyzePair(t *testing.T) {
	t.Parallel()

	store := memory.New()
	seedSeason(t, store)
	analyzer := newTestAnalyzer(t, store)

	profile, err := analyzer.AnalyzePair(t.Context(), "userB", "userA")
	require.NoError(t, err)

	assert.Equal(t, "userA:userB", profile.PairID)
	assert.Equal(t, "userA", profile.UserIDA)
	assert.Equal(t, "userB", profile.UserIDB)
	assert.Equal(t, 3, profile.TotalDraftsTogether)
	assert.Equal(t, 2, profile.DraftsWithinProximityThreshold)
	assert.InDelta(t, 2.0/3.0, profile.CoLocationRate, 1e-9)
	assert.InDelta(t, 95, profile.MaxRiskScore, 1e-9)
	assert.InDelta(t, 71.67, profile.AverageRiskScore, 1e-9)
	// Weights halve every 90 days back from D3: (0.25*80 + 0.5*40 + 95) / 1.75.
	assert.InDelta(t, 77.14, profile.RecencyWeightedScore, 1e-9)
	assert.Equal(t, enum.RiskLevelReview, profile.OverallRiskLevel)
	assert.Equal(t, enum.TrendFalling, profile.Trend)
	assert.Equal(t, "D3", profile.LastDraftID)
	assert.Equal(t, seasonStart.Add(180*day), profile.LastDraftTogether)
	assert.Equal(t, enum.ReviewStatusPending, profile.ReviewStatus)
	assert.Equal(t, batchClock, profile.AnalyzedAt)

	stored, err := store.Pairs().GetPairAnalysis(t.Context(), "userA:userB")
	require.NoError(t, err)
	assert.Equal(t, profile, stored)
}

func TestAnalyzePairIsSymmetricAndIdempotent(t *testing.T) {
	t.Parallel()

	store := memory.New()
	seedSeason(t, store)
	analyzer := newTestAnalyzer(t, store)

	first, err := analyzer.AnalyzePair(t.Context(), "userA", "userB")
	require.NoError(t, err)

	require.NoError(t, store.Pairs().UpdateReviewStatus(
		t.Context(), "userA:userB", enum.ReviewStatusReviewed, "admin1", batchClock))

	second, err := analyzer.AnalyzePair(t.Context(), "userB", "userA")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stored, err := store.Pairs().GetPairAnalysis(t.Context(), "userA:userB")
	require.NoError(t, err)
	assert.Equal(t, enum.ReviewStatusReviewed, stored.ReviewStatus)
	assert.Equal(t, "admin1", stored.ReviewedBy)
	assert.Equal(t, first.OverallRiskLevel, stored.OverallRiskLevel)
}

func TestAnalyzePairWithoutHistory(t *testing.T) {
	t.Parallel()

	store := memory.New()
	analyzer := newTestAnalyzer(t, store)

	profile, err := analyzer.AnalyzePair(t.Context(), "userX", "userY")
	require.NoError(t, err)
	assert.Equal(t, 0, profile.TotalDraftsTogether)
	assert.Zero(t, profile.CoLocationRate)
	assert.Equal(t, enum.RiskLevelNone, profile.OverallRiskLevel)

	_, err = store.Pairs().GetPairAnalysis(t.Context(), "userX:userY")
	require.ErrorIs(t, err, types.ErrPairNotFound)
}

func TestAnalyzePairValidation(t *testing.T) {
	t.Parallel()

	analyzer := newTestAnalyzer(t, memory.New())

	var validationErr *types.ValidationError

	_, err := analyzer.AnalyzePair(t.Context(), "", "userB")
	require.ErrorAs(t, err, &validationErr)

	_, err = analyzer.AnalyzePair(t.Context(), "userA", "userA")
	require.ErrorAs(t, err, &validationErr)

	_, err = analyzer.AnalyzePair(t.Context(), "a:b", "c")
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "userId", validationErr.Field)

	_, err = analyzer.AnalyzePair(t.Context(), "a", "b:c")
	require.ErrorAs(t, err, &validationErr)
}

// failingModels breaks or stalls the history of selected pairs.
type failingModels struct {
	database.Models
	fail  map[string]error
	stall map[string]bool
}

func (f *failingModels) RiskScores() database.RiskScoreModel {
	return &failingScores{RiskScoreModel: f.Models.RiskScores(), models: f}
}

type failingScores struct {
	database.RiskScoreModel
	models *failingModels
}

func (f *failingScores) GetPairHistory(ctx context.Context, pairID string) ([]*types.PairScore, error) {
	if f.models.stall[pairID] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := f.models.fail[pairID]; err != nil {
		return nil, err
	}
	return f.RiskScoreModel.GetPairHistory(ctx, pairID)
}

func seedBatch(t *testing.T, models database.Models) {
	t.Helper()

	saveDraft(t, models, "D1", seasonStart,
		pairRow{"userA", "userB", 100, 95, 4},
		pairRow{"userA", "userC", 80, 75, 2},
		pairRow{"userB", "userC", 10, 60, 1},
		pairRow{"userD", "userE", 0, 10, 0},
	)
}

func TestAnalyzeAllFlaggedPairs(t *testing.T) {
	t.Parallel()

	store := memory.New()
	seedBatch(t, store)

	models := &failingModels{
		Models: store,
		fail:   map[string]error{"userB:userC": errors.New("corrupt history row")},
	}
	analyzer := newTestAnalyzer(t, models)

	result, err := analyzer.AnalyzeAllFlaggedPairs(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 2, result.PairsAnalyzed)
	assert.Equal(t, 1, result.CriticalPairs)
	assert.Equal(t, 1, result.HighRiskPairs)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "userB:userC", result.Failures[0].PairID)
	assert.Contains(t, result.Failures[0].Error, "corrupt history row")
	assert.Equal(t, batchClock, result.StartedAt)
	assert.Equal(t, batchClock, result.FinishedAt)

	for _, pairID := range []string{"userA:userB", "userA:userC"} {
		_, err := store.Pairs().GetPairAnalysis(t.Context(), pairID)
		require.NoError(t, err, pairID)
	}
	for _, pairID := range []string{"userB:userC", "userD:userE"} {
		_, err := store.Pairs().GetPairAnalysis(t.Context(), pairID)
		require.ErrorIs(t, err, types.ErrPairNotFound, pairID)
	}
}

func TestAnalyzeAllFlaggedPairsIsIdempotent(t *testing.T) {
	t.Parallel()

	store := memory.New()
	seedBatch(t, store)
	analyzer := newTestAnalyzer(t, store)

	first, err := analyzer.AnalyzeAllFlaggedPairs(t.Context())
	require.NoError(t, err)
	before, err := store.Pairs().GetPairAnalysis(t.Context(), "userA:userC")
	require.NoError(t, err)

	second, err := analyzer.AnalyzeAllFlaggedPairs(t.Context())
	require.NoError(t, err)
	after, err := store.Pairs().GetPairAnalysis(t.Context(), "userA:userC")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 3, second.PairsAnalyzed)
	assert.Empty(t, second.Failures)
	assert.Equal(t, before, after)
}

func TestAnalyzeAllFlaggedPairsTimesOutOnePair(t *testing.T) {
	t.Parallel()

	store := memory.New()
	seedBatch(t, store)

	models := &failingModels{Models: store, stall: map[string]bool{"userA:userB": true}}
	analyzer := newTestAnalyzer(t, models)
	analyzer.config.PairTimeout = 1

	result, err := analyzer.AnalyzeAllFlaggedPairs(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 2, result.PairsAnalyzed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "userA:userB", result.Failures[0].PairID)
	assert.Contains(t, result.Failures[0].Error, context.DeadlineExceeded.Error())
}

func TestBuildProfile(t *testing.T) {
	t.Parallel()

	cfg := testDetection()
	thresholds := scoring.ThresholdsFrom(cfg.Levels)
	key := types.PairKey{UserIDA: "a", UserIDB: "b"}

	history := func(combined ...float64) []*types.PairScore {
		scores := make([]*types.PairScore, 0, len(combined))
		for i, c := range combined {
			scores = append(scores, &types.PairScore{
				DraftID:           string(rune('A' + i)),
				CombinedRiskScore: c,
				DraftedAt:         seasonStart.Add(time.Duration(i) * day),
			})
		}
		return scores
	}

	tests := []struct {
		name    string
		history []*types.PairScore
		trend   enum.Trend
		level   enum.RiskLevel
	}{
		{name: "no history", trend: enum.TrendStable, level: enum.RiskLevelNone},
		{name: "single draft", history: history(90), trend: enum.TrendStable, level: enum.RiskLevelMonitor},
		{name: "rising", history: history(10, 20, 80, 90), trend: enum.TrendRising, level: enum.RiskLevelNone},
		{name: "falling", history: history(90, 80, 20, 10), trend: enum.TrendFalling, level: enum.RiskLevelNone},
		{name: "flat", history: history(50, 55, 52, 48), trend: enum.TrendStable, level: enum.RiskLevelNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			profile := BuildProfile(key, tt.history, &cfg.CrossDraft, thresholds, batchClock)
			assert.Equal(t, tt.trend, profile.Trend)
			assert.Equal(t, tt.level, profile.OverallRiskLevel)
			assert.Equal(t, len(tt.history), profile.TotalDraftsTogether)
			assert.GreaterOrEqual(t, profile.CoLocationRate, 0.0)
			assert.LessOrEqual(t, profile.CoLocationRate, 1.0)
		})
	}
}

func TestCoLocationRate(t *testing.T) {
	t.Parallel()

	assert.Zero(t, CoLocationRate(0, 0))
	assert.Zero(t, CoLocationRate(3, 0))
	assert.InDelta(t, 0.5, CoLocationRate(2, 4), 1e-9)
	assert.InDelta(t, 1.0, CoLocationRate(5, 4), 1e-9)
}

func TestShard(t *testing.T) {
	t.Parallel()

	keys := make([]types.PairKey, 5)
	for i := range keys {
		keys[i] = types.PairKey{UserIDA: "a", UserIDB: string(rune('b' + i))}
	}

	shards := Shard(keys, 2)
	require.Len(t, shards, 2)
	assert.Len(t, shards[0], 3)
	assert.Len(t, shards[1], 2)
	assert.Equal(t, keys[3], shards[1][0])

	assert.Len(t, Shard(keys, 10), 5)
	assert.Nil(t, Shard(nil, 4))
}
