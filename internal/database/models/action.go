package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/robalyx/draftguard/internal/database/dbretry"
	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ActionModel handles database operations for the admin audit trail.
// It exposes no update or delete path for actions.
type ActionModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewAction creates an ActionModel.
func NewAction(db *bun.DB, logger *zap.Logger) *ActionModel {
	return &ActionModel{
		db:     db,
		logger: logger.Named("db_action"),
	}
}

// InsertAction stores a new admin action.
func (r *ActionModel) InsertAction(ctx context.Context, action *types.AdminAction) error {
	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().Model(action).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert admin action: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Debug("Recorded admin action",
		zap.String("actionID", action.ID.String()),
		zap.String("targetType", action.TargetType.String()),
		zap.String("targetID", action.TargetID),
		zap.String("action", action.Action.String()),
		zap.String("adminID", action.ActingAdminID))

	return nil
}

// GetAction retrieves an admin action by id.
func (r *ActionModel) GetAction(ctx context.Context, id uuid.UUID) (*types.AdminAction, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.AdminAction, error) {
		action := new(types.AdminAction)
		err := r.db.NewSelect().
			Model(action).
			Where("id = ?", id).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrActionNotFound
			}
			return nil, fmt.Errorf("failed to get admin action: %w", err)
		}
		return action, nil
	})
}

// GetActions pages the audit trail newest first.
func (r *ActionModel) GetActions(
	ctx context.Context, filter types.ActionFilter, cursor *types.ActionCursor, limit int,
) ([]*types.AdminAction, *types.ActionCursor, error) {
	var actions []*types.AdminAction
	var nextCursor *types.ActionCursor

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		actions = nil
		nextCursor = nil

		query := r.db.NewSelect().Model(&actions)

		if filter.TargetType != nil {
			query = query.Where("target_type = ?", *filter.TargetType)
		}
		if filter.TargetID != "" {
			query = query.Where("target_id = ?", filter.TargetID)
		}
		if filter.ActingAdminID != "" {
			query = query.Where("acting_admin_id = ?", filter.ActingAdminID)
		}
		if cursor != nil {
			query = query.Where("(created_at, id) <= (?, ?)", cursor.CreatedAt, cursor.ID)
		}

		err := query.
			Order("created_at DESC", "id DESC").
			Limit(limit + 1).
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("failed to get admin actions: %w", err)
		}

		if len(actions) > limit {
			extra := actions[limit]
			nextCursor = &types.ActionCursor{CreatedAt: extra.CreatedAt, ID: extra.ID}
			actions = actions[:limit]
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return actions, nextCursor, nil
}

// InsertEnforcementAttempt appends an enforcement attempt of an action.
func (r *ActionModel) InsertEnforcementAttempt(ctx context.Context, attempt *types.EnforcementAttempt) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().Model(attempt).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert enforcement attempt: %w", err)
		}
		return nil
	})
}

// GetEnforcementAttempts returns the attempts of an action oldest first.
func (r *ActionModel) GetEnforcementAttempts(ctx context.Context, actionID uuid.UUID) ([]*types.EnforcementAttempt, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.EnforcementAttempt, error) {
		var attempts []*types.EnforcementAttempt
		err := r.db.NewSelect().
			Model(&attempts).
			Where("action_id = ?", actionID).
			Order("attempted_at ASC", "id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get enforcement attempts: %w", err)
		}
		return attempts, nil
	})
}
