// Package crossdraft aggregates a user pair's per-draft scores into a
// longitudinal risk profile and runs the scheduled batch over flagged pairs.
package crossdraft

import (
	"context"
	"fmt"
	"time"

	"github.com/robalyx/draftguard/internal/database"
	"github.com/robalyx/draftguard/internal/database/dbretry"
	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/robalyx/draftguard/internal/database/types/enum"
	"github.com/robalyx/draftguard/internal/scoring"
	"github.com/robalyx/draftguard/internal/setup/config"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Failure is one pair the batch could not analyze.
type Failure struct {
	PairID string `json:"pairId"`
	Error  string `json:"error"`
}

// BatchResult summarizes one run of AnalyzeAllFlaggedPairs.
type BatchResult struct {
	PairsAnalyzed int       `json:"pairsAnalyzed"`
	CriticalPairs int       `json:"criticalPairs"`
	HighRiskPairs int       `json:"highRiskPairs"`
	Failures      []Failure `json:"failures"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
}

// Analyzer builds and stores UserPairAnalysis rows.
type Analyzer struct {
	scores     database.RiskScoreModel
	pairs      database.PairModel
	config     *config.CrossDraft
	thresholds scoring.Thresholds
	tracer     trace.Tracer
	logger     *zap.Logger
	now        func() time.Time
}

// NewAnalyzer creates a cross-draft analyzer.
func NewAnalyzer(models database.Models, cfg *config.Detection, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		scores:     models.RiskScores(),
		pairs:      models.Pairs(),
		config:     &cfg.CrossDraft,
		thresholds: scoring.ThresholdsFrom(cfg.Levels),
		tracer:     otel.Tracer("github.com/robalyx/draftguard/internal/analysis/crossdraft"),
		logger:     logger.Named("cross_draft"),
		now:        time.Now,
	}
}

// AnalyzePair recomputes and upserts the profile of the pair. The argument
// order does not matter. A pair that never shared a draft gets an empty
// profile which is returned but not stored.
func (a *Analyzer) AnalyzePair(ctx context.Context, userA, userB string) (*types.UserPairAnalysis, error) {
	if err := types.ValidateUserID(userA); err != nil {
		return nil, err
	}
	if err := types.ValidateUserID(userB); err != nil {
		return nil, err
	}
	if userA == userB {
		return nil, types.NewValidationError("userId", "a pair needs two different users")
	}

	key, _ := types.CanonicalPair(userA, userB)

	ctx, span := a.tracer.Start(ctx, "Analyzer.AnalyzePair", trace.WithAttributes(
		attribute.String("pair.id", key.ID()),
	))
	defer span.End()

	profile, err := a.analyzePair(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pair analysis failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("drafts", profile.TotalDraftsTogether),
		attribute.String("risk_level", profile.OverallRiskLevel.String()),
	)
	return profile, nil
}

func (a *Analyzer) analyzePair(ctx context.Context, key types.PairKey) (*types.UserPairAnalysis, error) {
	history, err := dbretry.Operation(ctx, func(ctx context.Context) ([]*types.PairScore, error) {
		return a.scores.GetPairHistory(ctx, key.ID())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load history of pair %s: %w", key.ID(), err)
	}

	profile := BuildProfile(key, history, a.config, a.thresholds, a.now().UTC())
	if profile.TotalDraftsTogether == 0 {
		return profile, nil
	}

	if err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		return a.pairs.UpsertPairAnalysis(ctx, profile)
	}); err != nil {
		return nil, fmt.Errorf("failed to save analysis of pair %s: %w", key.ID(), err)
	}

	a.logger.Debug("Analyzed pair",
		zap.String("pairID", profile.PairID),
		zap.Int("drafts", profile.TotalDraftsTogether),
		zap.Float64("coLocationRate", profile.CoLocationRate),
		zap.String("riskLevel", profile.OverallRiskLevel.String()),
		zap.String("trend", profile.Trend.String()))

	return profile, nil
}

// AnalyzeAllFlaggedPairs recomputes the profile of every pair that scored at or
// above the configured minimum in any draft, or had a proximity event. Pairs
// are split into contiguous shards processed in parallel. A failing or timed
// out pair is recorded in the result and never stops the others. Only a
// failure to list the pairs is returned as an error.
func (a *Analyzer) AnalyzeAllFlaggedPairs(ctx context.Context) (*BatchResult, error) {
	ctx, span := a.tracer.Start(ctx, "Analyzer.AnalyzeAllFlaggedPairs")
	defer span.End()

	result := &BatchResult{
		Failures:  []Failure{},
		StartedAt: a.now().UTC(),
	}

	keys, err := dbretry.Operation(ctx, func(ctx context.Context) ([]types.PairKey, error) {
		return a.scores.GetFlaggedPairs(ctx, types.FlaggedPairFilter{
			MinCombinedScore: a.config.MinCombinedScore,
			IncludeProximity: true,
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list flagged pairs")
		return nil, fmt.Errorf("failed to list flagged pairs: %w", err)
	}

	shards := Shard(keys, max(a.config.Concurrency, 1))
	outcomes := make([][]shardOutcome, len(shards))
	timeout := time.Duration(a.config.PairTimeout) * time.Second

	p := pool.New().WithMaxGoroutines(len(shards) + 1)
	for i, shard := range shards {
		p.Go(func() {
			outcomes[i] = a.runShard(ctx, shard, timeout)
		})
	}
	p.Wait()

	for _, shard := range outcomes {
		for _, outcome := range shard {
			if outcome.err != nil {
				result.Failures = append(result.Failures, Failure{
					PairID: outcome.pairID,
					Error:  outcome.err.Error(),
				})
				continue
			}

			result.PairsAnalyzed++
			switch outcome.level {
			case enum.RiskLevelUrgent:
				result.CriticalPairs++
			case enum.RiskLevelReview:
				result.HighRiskPairs++
			case enum.RiskLevelNone, enum.RiskLevelMonitor:
			}
		}
	}
	result.FinishedAt = a.now().UTC()

	span.SetAttributes(
		attribute.Int("pairs", len(keys)),
		attribute.Int("analyzed", result.PairsAnalyzed),
		attribute.Int("failures", len(result.Failures)),
	)

	a.logger.Info("Cross-draft batch finished",
		zap.Int("flaggedPairs", len(keys)),
		zap.Int("pairsAnalyzed", result.PairsAnalyzed),
		zap.Int("criticalPairs", result.CriticalPairs),
		zap.Int("highRiskPairs", result.HighRiskPairs),
		zap.Int("failures", len(result.Failures)),
		zap.Duration("duration", result.FinishedAt.Sub(result.StartedAt)))

	return result, nil
}

type shardOutcome struct {
	pairID string
	level  enum.RiskLevel
	err    error
}

// runShard analyzes the pairs of one shard in order, each under its own timeout.
func (a *Analyzer) runShard(ctx context.Context, keys []types.PairKey, timeout time.Duration) []shardOutcome {
	outcomes := make([]shardOutcome, 0, len(keys))

	for _, key := range keys {
		outcome := shardOutcome{pairID: key.ID()}

		if err := ctx.Err(); err != nil {
			outcome.err = err
			outcomes = append(outcomes, outcome)
			continue
		}

		pairCtx, cancel := context.WithTimeout(ctx, timeout)
		profile, err := a.AnalyzePair(pairCtx, key.UserIDA, key.UserIDB)
		cancel()

		if err != nil {
			outcome.err = err
			a.logger.Warn("Failed to analyze pair",
				zap.String("pairID", key.ID()),
				zap.Error(err))
		} else {
			outcome.level = profile.OverallRiskLevel
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

// Shard splits keys into at most n contiguous shards of near equal size.
func Shard(keys []types.PairKey, n int) [][]types.PairKey {
	if len(keys) == 0 || n < 1 {
		return nil
	}
	n = min(n, len(keys))

	shards := make([][]types.PairKey, 0, n)
	size, extra := len(keys)/n, len(keys)%n
	start := 0
	for i := range n {
		end := start + size
		if i < extra {
			end++
		}
		shards = append(shards, keys[start:end])
		start = end
	}
	return shards
}
