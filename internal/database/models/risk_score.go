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

// RiskScoreModel handles database operations for post-draft risk scores.
type RiskScoreModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewRiskScore creates a RiskScoreModel.
func NewRiskScore(db *bun.DB, logger *zap.Logger) *RiskScoreModel {
	return &RiskScoreModel{
		db:     db,
		logger: logger.Named("db_risk_score"),
	}
}

// SaveRiskScores upserts a draft's scores and replaces its pair rows.
// Review fields of an existing row are kept.
func (r *RiskScoreModel) SaveRiskScores(ctx context.Context, scores *types.DraftRiskScores) error {
	err := dbretry.Transaction(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(scores).
			On("CONFLICT (draft_id) DO UPDATE").
			Set("max_risk_score = EXCLUDED.max_risk_score").
			Set("max_risk_level = EXCLUDED.max_risk_level").
			Set("warnings = EXCLUDED.warnings").
			Set("drafted_at = EXCLUDED.drafted_at").
			Set("analyzed_at = EXCLUDED.analyzed_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to upsert draft risk scores: %w", err)
		}

		_, err = tx.NewDelete().
			Model((*types.PairScore)(nil)).
			Where("draft_id = ?", scores.DraftID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear pair scores: %w", err)
		}

		if len(scores.PairScores) == 0 {
			return nil
		}

		_, err = tx.NewInsert().
			Model(&scores.PairScores).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert pair scores: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Debug("Saved draft risk scores",
		zap.String("draftID", scores.DraftID),
		zap.Int("pairs", len(scores.PairScores)),
		zap.Float64("maxRiskScore", scores.MaxRiskScore))

	return nil
}

// GetRiskScores retrieves a draft's scores with all of its pair rows.
func (r *RiskScoreModel) GetRiskScores(ctx context.Context, draftID string) (*types.DraftRiskScores, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.DraftRiskScores, error) {
		scores := new(types.DraftRiskScores)
		err := r.db.NewSelect().
			Model(scores).
			Relation("PairScores", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Order("combined_risk_score DESC", "pair_id ASC")
			}).
			Where("draft_id = ?", draftID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrDraftNotFound
			}
			return nil, fmt.Errorf("failed to get draft risk scores: %w", err)
		}
		return scores, nil
	})
}

// GetDraftsForReview pages the draft review queue. Pair rows are not loaded.
func (r *RiskScoreModel) GetDraftsForReview(
	ctx context.Context, filter types.DraftReviewFilter, cursor *types.DraftCursor, limit int,
) ([]*types.DraftRiskScores, *types.DraftCursor, error) {
	var drafts []*types.DraftRiskScores
	var nextCursor *types.DraftCursor

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		drafts = nil
		nextCursor = nil

		query := r.db.NewSelect().Model(&drafts)

		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
		if filter.MinScore > 0 {
			query = query.Where("max_risk_score >= ?", filter.MinScore)
		}
		if cursor != nil {
			query = query.Where("(max_risk_score, analyzed_at, draft_id) <= (?, ?, ?)",
				cursor.MaxRiskScore, cursor.AnalyzedAt, cursor.DraftID)
		}

		err := query.
			Order("max_risk_score DESC", "analyzed_at DESC", "draft_id DESC").
			Limit(limit + 1).
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("failed to get drafts for review: %w", err)
		}

		if len(drafts) > limit {
			extra := drafts[limit]
			nextCursor = &types.DraftCursor{
				MaxRiskScore: extra.MaxRiskScore,
				AnalyzedAt:   extra.AnalyzedAt,
				DraftID:      extra.DraftID,
			}
			drafts = drafts[:limit]
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return drafts, nextCursor, nil
}

// GetPairHistory returns every draft score recorded for a pair, oldest draft first.
func (r *RiskScoreModel) GetPairHistory(ctx context.Context, pairID string) ([]*types.PairScore, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.PairScore, error) {
		var history []*types.PairScore
		err := r.db.NewSelect().
			Model(&history).
			Where("pair_id = ?", pairID).
			Order("drafted_at ASC", "draft_id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get pair history: %w", err)
		}
		return history, nil
	})
}

// GetFlaggedPairs returns the distinct pairs that crossed the filter in any draft.
func (r *RiskScoreModel) GetFlaggedPairs(ctx context.Context, filter types.FlaggedPairFilter) ([]types.PairKey, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]types.PairKey, error) {
		var keys []types.PairKey
		err := r.db.NewSelect().
			Model((*types.PairScore)(nil)).
			ColumnExpr("DISTINCT user_id_a, user_id_b").
			WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				q = q.Where("combined_risk_score >= ?", filter.MinCombinedScore)
				if filter.IncludeProximity {
					q = q.WhereOr("event_count > 0")
				}
				return q
			}).
			Order("user_id_a ASC", "user_id_b ASC").
			Scan(ctx, &keys)
		if err != nil {
			return nil, fmt.Errorf("failed to get flagged pairs: %w", err)
		}
		return keys, nil
	})
}

// UpdateReviewStatus sets the review fields of a draft.
func (r *RiskScoreModel) UpdateReviewStatus(
	ctx context.Context, draftID string, status enum.ReviewStatus, reviewerID string, at time.Time,
) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		res, err := r.db.NewUpdate().
			Model((*types.DraftRiskScores)(nil)).
			Set("status = ?", status).
			Set("reviewed_by = ?", reviewerID).
			Set("reviewed_at = ?", at).
			Where("draft_id = ?", draftID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update draft review status: %w", err)
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return types.ErrDraftNotFound
		}
		return nil
	})
}
