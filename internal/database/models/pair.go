package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/robalyx/draftguard/internal/database/dbretry"
	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/robalyx/draftguard/internal/database/types/enum"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// PairModel handles database operations for cross-draft pair profiles.
type PairModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewPair creates a PairModel.
func NewPair(db *bun.DB, logger *zap.Logger) *PairModel {
	return &PairModel{
		db:     db,
		logger: logger.Named("db_pair"),
	}
}

// UpsertPairAnalysis writes a pair profile keyed by its canonical pair id.
func (r *PairModel) UpsertPairAnalysis(ctx context.Context, analysis *types.UserPairAnalysis) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().
			Model(analysis).
			On("CONFLICT (pair_id) DO UPDATE").
			Set("total_drafts_together = EXCLUDED.total_drafts_together").
			Set("drafts_within_proximity_threshold = EXCLUDED.drafts_within_proximity_threshold").
			Set("co_location_rate = EXCLUDED.co_location_rate").
			Set("max_risk_score = EXCLUDED.max_risk_score").
			Set("average_risk_score = EXCLUDED.average_risk_score").
			Set("recency_weighted_score = EXCLUDED.recency_weighted_score").
			Set("overall_risk_level = EXCLUDED.overall_risk_level").
			Set("trend = EXCLUDED.trend").
			Set("last_draft_together = EXCLUDED.last_draft_together").
			Set("last_draft_id = EXCLUDED.last_draft_id").
			Set("analyzed_at = EXCLUDED.analyzed_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to upsert pair analysis: %w (pairID=%s)", err, analysis.PairID)
		}
		return nil
	})
}

// GetPairAnalysis retrieves the profile of a pair.
func (r *PairModel) GetPairAnalysis(ctx context.Context, pairID string) (*types.UserPairAnalysis, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.UserPairAnalysis, error) {
		analysis := new(types.UserPairAnalysis)
		err := r.db.NewSelect().
			Model(analysis).
			Where("pair_id = ?", pairID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrPairNotFound
			}
			return nil, fmt.Errorf("failed to get pair analysis: %w", err)
		}
		return analysis, nil
	})
}

// GetPairsForReview pages the pair review queue.
func (r *PairModel) GetPairsForReview(
	ctx context.Context, filter types.PairReviewFilter, cursor *types.PairCursor, limit int,
) ([]*types.UserPairAnalysis, *types.PairCursor, error) {
	var pairs []*types.UserPairAnalysis
	var nextCursor *types.PairCursor

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		pairs = nil
		nextCursor = nil

		query := r.db.NewSelect().Model(&pairs)

		if filter.MinRiskLevel > enum.RiskLevelNone {
			query = query.Where("overall_risk_level >= ?", filter.MinRiskLevel)
		}
		if filter.Status != nil {
			query = query.Where("review_status = ?", *filter.Status)
		}
		if filter.UserID != "" {
			query = query.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Where("user_id_a = ?", filter.UserID).WhereOr("user_id_b = ?", filter.UserID)
			})
		}
		if cursor != nil {
			query = query.Where("(overall_risk_level, last_draft_together, pair_id) <= (?, ?, ?)",
				cursor.RiskLevel, cursor.LastDraftTogether, cursor.PairID)
		}

		err := query.
			Order("overall_risk_level DESC", "last_draft_together DESC", "pair_id DESC").
			Limit(limit + 1).
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("failed to get pairs for review: %w", err)
		}

		if len(pairs) > limit {
			extra := pairs[limit]
			nextCursor = &types.PairCursor{
				RiskLevel:         extra.OverallRiskLevel,
				LastDraftTogether: extra.LastDraftTogether,
				PairID:            extra.PairID,
			}
			pairs = pairs[:limit]
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return pairs, nextCursor, nil
}

// UpdateReviewStatus sets the review fields of a pair.
func (r *PairModel) UpdateReviewStatus(
	ctx context.Context, pairID string, status enum.ReviewStatus, reviewerID string, at time.Time,
) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		res, err := r.db.NewUpdate().
			Model((*types.UserPairAnalysis)(nil)).
			Set("review_status = ?", status).
			Set("reviewed_by = ?", reviewerID).
			Set("reviewed_at = ?", at).
			Where("pair_id = ?", pairID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update pair review status: %w", err)
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return types.ErrPairNotFound
		}
		return nil
	})
}
