package models

import (
	"context"
	"fmt"

	"github.com/robalyx/draftguard/internal/database/dbretry"
	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// PickModel handles database operations for draft picks.
type PickModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewPick creates a PickModel.
func NewPick(db *bun.DB, logger *zap.Logger) *PickModel {
	return &PickModel{
		db:     db,
		logger: logger.Named("db_pick"),
	}
}

// SavePick stores a pick. A pick that was already stored is left untouched.
func (r *PickModel) SavePick(ctx context.Context, pick *types.PickLocationRecord) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().
			Model(pick).
			On("CONFLICT (draft_id, pick_number) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save pick: %w (draftID=%s, pick=%d)", err, pick.DraftID, pick.PickNumber)
		}
		return nil
	})
}

// GetDraftPicks returns every pick of a draft in pick order.
func (r *PickModel) GetDraftPicks(ctx context.Context, draftID string) ([]*types.PickLocationRecord, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.PickLocationRecord, error) {
		var picks []*types.PickLocationRecord
		err := r.db.NewSelect().
			Model(&picks).
			Where("draft_id = ?", draftID).
			Order("pick_number ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get draft picks: %w", err)
		}
		return picks, nil
	})
}
