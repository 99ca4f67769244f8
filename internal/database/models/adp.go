package models

import (
	"context"
	"fmt"

	"github.com/robalyx/draftguard/internal/database/dbretry"
	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// adpBatchSize bounds the rows written per insert statement.
const adpBatchSize = 500

// ADPModel handles database operations for player ADP values.
type ADPModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewADP creates an ADPModel.
func NewADP(db *bun.DB, logger *zap.Logger) *ADPModel {
	return &ADPModel{
		db:     db,
		logger: logger.Named("db_adp"),
	}
}

// UpsertADP inserts or updates player ADP rows in batches.
func (r *ADPModel) UpsertADP(ctx context.Context, adps []*types.PlayerADP) error {
	for start := 0; start < len(adps); start += adpBatchSize {
		batch := adps[start:min(start+adpBatchSize, len(adps))]

		err := dbretry.NoResult(ctx, func(ctx context.Context) error {
			_, err := r.db.NewInsert().
				Model(&batch).
				On("CONFLICT (player_id) DO UPDATE").
				Set("name = EXCLUDED.name").
				Set("position = EXCLUDED.position").
				Set("team = EXCLUDED.team").
				Set("adp = EXCLUDED.adp").
				Set("updated_at = EXCLUDED.updated_at").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to upsert player adp: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	r.logger.Debug("Upserted player ADP values", zap.Int("count", len(adps)))
	return nil
}

// GetAllADP returns every stored ADP row.
func (r *ADPModel) GetAllADP(ctx context.Context) ([]*types.PlayerADP, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.PlayerADP, error) {
		var adps []*types.PlayerADP
		err := r.db.NewSelect().
			Model(&adps).
			Order("player_id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get player adp: %w", err)
		}
		return adps, nil
	})
}
