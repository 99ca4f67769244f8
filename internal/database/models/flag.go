package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/robalyx/draftguard/internal/database/dbretry"
	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// FlagModel handles database operations for draft integrity flags.
type FlagModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewFlag creates a FlagModel.
func NewFlag(db *bun.DB, logger *zap.Logger) *FlagModel {
	return &FlagModel{
		db:     db,
		logger: logger.Named("db_flag"),
	}
}

// GetFlags retrieves the flags document of a draft.
func (r *FlagModel) GetFlags(ctx context.Context, draftID string) (*types.DraftIntegrityFlags, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.DraftIntegrityFlags, error) {
		flags := new(types.DraftIntegrityFlags)
		err := r.db.NewSelect().
			Model(flags).
			Where("draft_id = ?", draftID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrFlagsNotFound
			}
			return nil, fmt.Errorf("failed to get flags: %w", err)
		}
		return flags, nil
	})
}

// UpdateFlags runs fn against the current document inside a transaction and writes the
// result back only if the version read is still current. It is not retried.
func (r *FlagModel) UpdateFlags(ctx context.Context, draftID string, fn func(*types.DraftIntegrityFlags) (bool, error)) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		flags := new(types.DraftIntegrityFlags)
		exists := true

		err := tx.NewSelect().
			Model(flags).
			Where("draft_id = ?", draftID).
			Scan(ctx)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("failed to read flags: %w", err)
			}
			exists = false
			flags = &types.DraftIntegrityFlags{DraftID: draftID, FlaggedPairs: []types.FlaggedPair{}}
		}

		if flags.Finalized {
			return types.ErrFlagsFinalized
		}

		readVersion := flags.Version
		changed, err := fn(flags)
		if err != nil || !changed {
			return err
		}

		flags.DraftID = draftID
		flags.Version = readVersion + 1
		flags.UpdatedAt = time.Now()

		var res sql.Result
		if exists {
			res, err = tx.NewUpdate().
				Model(flags).
				Column("flagged_pairs", "version", "updated_at").
				Where("draft_id = ?", draftID).
				Where("version = ?", readVersion).
				Where("finalized = FALSE").
				Exec(ctx)
		} else {
			res, err = tx.NewInsert().
				Model(flags).
				On("CONFLICT (draft_id) DO NOTHING").
				Exec(ctx)
		}
		if err != nil {
			return fmt.Errorf("failed to write flags: %w", err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("%w: flags of draft %s changed since version %d", types.ErrConflict, draftID, readVersion)
		}

		return nil
	})
}

// FinalizeFlags makes the flags document of a draft read-only.
func (r *FlagModel) FinalizeFlags(ctx context.Context, draftID string) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		flags := &types.DraftIntegrityFlags{
			DraftID:      draftID,
			FlaggedPairs: []types.FlaggedPair{},
			Version:      1,
			Finalized:    true,
			UpdatedAt:    time.Now(),
		}

		_, err := r.db.NewInsert().
			Model(flags).
			On("CONFLICT (draft_id) DO UPDATE").
			Set("finalized = TRUE").
			Set("version = draft_integrity_flags.version + 1").
			Set("updated_at = EXCLUDED.updated_at").
			Where("draft_integrity_flags.finalized = FALSE").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to finalize flags: %w", err)
		}

		r.logger.Debug("Finalized draft flags", zap.String("draftID", draftID))
		return nil
	})
}
