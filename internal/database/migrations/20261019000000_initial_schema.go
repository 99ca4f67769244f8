package migrations

import (
	"context"
	"fmt"

	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		tables := []struct {
			model any
			name  string
		}{
			{(*types.PickLocationRecord)(nil), "draft_picks"},
			{(*types.DraftIntegrityFlags)(nil), "draft_integrity_flags"},
			{(*types.DraftRiskScores)(nil), "draft_risk_scores"},
			{(*types.PairScore)(nil), "draft_pair_scores"},
			{(*types.UserPairAnalysis)(nil), "user_pair_analyses"},
			{(*types.AdminAction)(nil), "admin_actions"},
			{(*types.EnforcementAttempt)(nil), "enforcement_attempts"},
			{(*types.PlayerADP)(nil), "player_adps"},
		}

		for _, table := range tables {
			_, err := db.NewCreateTable().
				Model(table.model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table %s: %w", table.name, err)
			}
		}

		// Admin actions are an append-only audit trail
		_, err := db.NewRaw(`
			CREATE OR REPLACE FUNCTION reject_admin_action_change() RETURNS trigger AS $$
			BEGIN
				RAISE EXCEPTION 'admin_actions is append-only';
			END;
			$$ LANGUAGE plpgsql;

			DROP TRIGGER IF EXISTS admin_actions_immutable ON admin_actions;
			CREATE TRIGGER admin_actions_immutable
			BEFORE UPDATE OR DELETE ON admin_actions
			FOR EACH ROW EXECUTE FUNCTION reject_admin_action_change();
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to protect admin actions: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP TRIGGER IF EXISTS admin_actions_immutable ON admin_actions;
			DROP FUNCTION IF EXISTS reject_admin_action_change();
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop admin action trigger: %w", err)
		}

		models := []any{
			(*types.PlayerADP)(nil),
			(*types.EnforcementAttempt)(nil),
			(*types.AdminAction)(nil),
			(*types.UserPairAnalysis)(nil),
			(*types.PairScore)(nil),
			(*types.DraftRiskScores)(nil),
			(*types.DraftIntegrityFlags)(nil),
			(*types.PickLocationRecord)(nil),
		}

		for _, model := range models {
			_, err := db.NewDropTable().
				Model(model).
				IfExists().
				Cascade().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop table: %w", err)
			}
		}

		return nil
	})
}
