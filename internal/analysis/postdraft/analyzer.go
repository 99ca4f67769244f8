// Package postdraft scores every participant pair of a completed draft.
package postdraft

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/robalyx/draftguard/internal/adp"
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

// DefaultConcurrency is the number of drafts AnalyzeDrafts scores at once.
const DefaultConcurrency = 4

// Analyzer computes DraftRiskScores from a draft's picks, flags and ADP.
type Analyzer struct {
	picks      database.PickModel
	flags      database.FlagModel
	scores     database.RiskScoreModel
	adp        adp.Lookup
	config     *config.Detection
	weights    scoring.Weights
	thresholds scoring.Thresholds
	policy     scoring.Policy
	flagsRetry dbretry.Policy
	tracer     trace.Tracer
	logger     *zap.Logger
	now        func() time.Time
}

// NewAnalyzer creates an analyzer. It fails when the configured weights do not sum to 1.
func NewAnalyzer(models database.Models, lookup adp.Lookup, cfg *config.Detection, logger *zap.Logger) (*Analyzer, error) {
	weights := scoring.WeightsFrom(cfg.Weights)
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	flagsRetry := dbretry.DefaultPolicy
	flagsRetry.MaxRetries = uint64(max(cfg.FlagsReadAttempts, 1) - 1)

	return &Analyzer{
		picks:      models.Picks(),
		flags:      models.Flags(),
		scores:     models.RiskScores(),
		adp:        lookup,
		config:     cfg,
		weights:    weights,
		thresholds: scoring.ThresholdsFrom(cfg.Levels),
		policy:     scoring.PolicyFrom(cfg),
		flagsRetry: flagsRetry,
		tracer:     otel.Tracer("github.com/robalyx/draftguard/internal/analysis/postdraft"),
		logger:     logger.Named("post_draft"),
		now:        time.Now,
	}, nil
}

// AnalyzeDraft scores every unordered pair of the draft's participants and
// stores the result with status pending. Missing ADP or location data only
// adds warnings. Flags that cannot be read are retried and then reported as
// a types.TransientError so the job can be retried later.
func (a *Analyzer) AnalyzeDraft(ctx context.Context, draftID string) (*types.DraftRiskScores, error) {
	ctx, span := a.tracer.Start(ctx, "Analyzer.AnalyzeDraft", trace.WithAttributes(
		attribute.String("draft.id", draftID),
	))
	defer span.End()

	scores, err := a.analyze(ctx, draftID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("pairs", len(scores.PairScores)),
		attribute.Float64("max_risk_score", scores.MaxRiskScore),
	)
	return scores, nil
}

func (a *Analyzer) analyze(ctx context.Context, draftID string) (*types.DraftRiskScores, error) {
	if draftID == "" {
		return nil, types.NewValidationError("draftId", "must not be empty")
	}

	picks, err := dbretry.Operation(ctx, func(ctx context.Context) ([]*types.PickLocationRecord, error) {
		return a.picks.GetDraftPicks(ctx, draftID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load picks of draft %s: %w", draftID, err)
	}
	if len(picks) == 0 {
		return nil, fmt.Errorf("draft %s: %w", draftID, types.ErrNoPicks)
	}

	flags, err := a.loadFlags(ctx, draftID)
	if err != nil {
		return nil, err
	}

	values, partial := scoring.AnalyzePicks(ctx, picks, a.adp, a.policy)
	warnings := collectWarnings(picks, flags, partial)

	participants := scoring.Participants(values)
	slices.Sort(participants)

	pairScores := make([]*types.PairScore, 0, len(participants)*(len(participants)-1)/2)
	draftedAt := lastPickTime(picks)

	for i := range participants {
		for j := i + 1; j < len(participants); j++ {
			key, _ := types.CanonicalPair(participants[i], participants[j])
			pairScores = append(pairScores, a.scorePair(draftID, key, flags, values, draftedAt))
		}
	}
	types.SortPairScores(pairScores)

	result := &types.DraftRiskScores{
		DraftID:      draftID,
		PairScores:   pairScores,
		MaxRiskLevel: enum.RiskLevelNone,
		Status:       enum.ReviewStatusPending,
		Warnings:     warnings,
		DraftedAt:    draftedAt,
		AnalyzedAt:   a.now().UTC(),
	}
	if len(pairScores) > 0 {
		result.MaxRiskScore = pairScores[0].CombinedRiskScore
		result.MaxRiskLevel = pairScores[0].RiskLevel
	}

	if err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		return a.scores.SaveRiskScores(ctx, result)
	}); err != nil {
		return nil, fmt.Errorf("failed to save risk scores of draft %s: %w", draftID, err)
	}

	a.logger.Info("Analyzed draft",
		zap.String("draftID", draftID),
		zap.Int("participants", len(participants)),
		zap.Int("pairs", len(pairScores)),
		zap.Float64("maxRiskScore", result.MaxRiskScore),
		zap.String("maxRiskLevel", result.MaxRiskLevel.String()),
		zap.Int("warnings", len(warnings)))

	return result, nil
}

func (a *Analyzer) scorePair(
	draftID string, key types.PairKey, flags *types.DraftIntegrityFlags, values []scoring.PickValue, draftedAt time.Time,
) *types.PairScore {
	events := flags.EventsFor(key)

	location := scoring.LocationScore(events, a.config.ProximityThresholdFeet, a.config.LocationEventWeight)
	behavior, reaches := scoring.BehaviorScore(key, values, a.policy)
	benefit, transfers := scoring.BenefitScore(key, values, a.policy)
	combined := scoring.Round2(scoring.Combine(a.weights, location, behavior, benefit))

	return &types.PairScore{
		DraftID:           draftID,
		PairID:            key.ID(),
		UserIDA:           key.UserIDA,
		UserIDB:           key.UserIDB,
		LocationScore:     scoring.Round2(location),
		BehaviorScore:     scoring.Round2(behavior),
		BenefitScore:      scoring.Round2(benefit),
		CombinedRiskScore: combined,
		RiskLevel:         scoring.LevelFor(combined, a.thresholds),
		EventCount:        len(events),
		ReachCount:        reaches,
		TransferCount:     transfers,
		DraftedAt:         draftedAt,
	}
}

// loadFlags reads the draft's flags, retrying while they are unreadable or not
// yet finalized. A draft without a flags document has no proximity events.
func (a *Analyzer) loadFlags(ctx context.Context, draftID string) (*types.DraftIntegrityFlags, error) {
	flags, err := dbretry.OperationWith(ctx, a.flagsRetry, "read draft flags",
		func(ctx context.Context) (*types.DraftIntegrityFlags, error) {
			flags, err := a.flags.GetFlags(ctx, draftID)
			if errors.Is(err, types.ErrFlagsNotFound) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			if a.config.RequireFinalizedFlags && !flags.Finalized {
				return nil, &types.TransientError{Op: "read draft flags", Err: types.ErrFlagsNotFinal}
			}
			return flags, nil
		})
	if err != nil {
		if !types.IsTransient(err) {
			err = &types.TransientError{Op: "read draft flags", Err: err}
		}
		return nil, fmt.Errorf("draft %s: %w", draftID, err)
	}
	return flags, nil
}

// collectWarnings summarizes partial inputs, one line per distinct problem.
func collectWarnings(
	picks []*types.PickLocationRecord, flags *types.DraftIntegrityFlags, partial []*types.PartialDataError,
) []string {
	var warnings []string
	seen := make(map[string]struct{})
	for _, p := range partial {
		msg := p.Error()
		if _, ok := seen[msg]; ok {
			continue
		}
		seen[msg] = struct{}{}
		warnings = append(warnings, msg)
	}

	missingLocation := 0
	for _, pick := range picks {
		if !pick.HasLocation() {
			missingLocation++
		}
	}
	if missingLocation > 0 {
		warnings = append(warnings, fmt.Sprintf("%d pick(s) without location", missingLocation))
	}

	if flags == nil {
		warnings = append(warnings, "no proximity flags recorded")
	}

	return warnings
}

func lastPickTime(picks []*types.PickLocationRecord) time.Time {
	var last time.Time
	for _, pick := range picks {
		if pick.Timestamp.After(last) {
			last = pick.Timestamp
		}
	}
	return last.UTC()
}

// Outcome is the result of one draft in a batch.
type Outcome struct {
	DraftID string
	Scores  *types.DraftRiskScores
	Err     error
}

// AnalyzeDrafts analyzes drafts in parallel, each under its own timeout.
// A failing draft does not affect the others. Outcomes follow the input order.
func (a *Analyzer) AnalyzeDrafts(ctx context.Context, draftIDs []string, concurrency int) []Outcome {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}

	outcomes := make([]Outcome, len(draftIDs))
	timeout := time.Duration(a.config.DraftTimeout) * time.Second
	p := pool.New().WithMaxGoroutines(concurrency)

	for i, draftID := range draftIDs {
		p.Go(func() {
			draftCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			scores, err := a.AnalyzeDraft(draftCtx, draftID)
			outcomes[i] = Outcome{DraftID: draftID, Scores: scores, Err: err}

			if err != nil {
				a.logger.Warn("Failed to analyze draft",
					zap.String("draftID", draftID),
					zap.Bool("retryable", types.IsTransient(err)),
					zap.Error(err))
			}
		})
	}
	p.Wait()

	return outcomes
}
