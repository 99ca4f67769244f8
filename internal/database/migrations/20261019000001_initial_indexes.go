package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			-- Review queue ordering
			CREATE INDEX IF NOT EXISTS idx_draft_risk_scores_review
			ON draft_risk_scores (status, max_risk_score DESC, analyzed_at DESC, draft_id DESC);

			CREATE INDEX IF NOT EXISTS idx_draft_risk_scores_score
			ON draft_risk_scores (max_risk_score DESC, analyzed_at DESC, draft_id DESC);

			-- Cross-draft history lookups
			CREATE INDEX IF NOT EXISTS idx_draft_pair_scores_pair
			ON draft_pair_scores (pair_id, drafted_at, draft_id);

			CREATE INDEX IF NOT EXISTS idx_draft_pair_scores_flagged
			ON draft_pair_scores (combined_risk_score DESC)
			INCLUDE (pair_id, user_id_a, user_id_b);

			CREATE INDEX IF NOT EXISTS idx_draft_pair_scores_events
			ON draft_pair_scores (pair_id)
			WHERE event_count > 0;

			-- Pair review queue ordering
			CREATE INDEX IF NOT EXISTS idx_user_pair_analyses_review
			ON user_pair_analyses (overall_risk_level DESC, last_draft_together DESC, pair_id DESC);

			CREATE INDEX IF NOT EXISTS idx_user_pair_analyses_user_a
			ON user_pair_analyses (user_id_a);

			CREATE INDEX IF NOT EXISTS idx_user_pair_analyses_user_b
			ON user_pair_analyses (user_id_b);

			-- Audit trail
			CREATE INDEX IF NOT EXISTS idx_admin_actions_target
			ON admin_actions (target_type, target_id, created_at DESC);

			CREATE INDEX IF NOT EXISTS idx_admin_actions_time
			ON admin_actions (created_at DESC, id DESC);

			CREATE INDEX IF NOT EXISTS idx_enforcement_attempts_action
			ON enforcement_attempts (action_id, attempted_at);
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP INDEX IF EXISTS idx_draft_risk_scores_review;
			DROP INDEX IF EXISTS idx_draft_risk_scores_score;
			DROP INDEX IF EXISTS idx_draft_pair_scores_pair;
			DROP INDEX IF EXISTS idx_draft_pair_scores_flagged;
			DROP INDEX IF EXISTS idx_draft_pair_scores_events;
			DROP INDEX IF EXISTS idx_user_pair_analyses_review;
			DROP INDEX IF EXISTS idx_user_pair_analyses_user_a;
			DROP INDEX IF EXISTS idx_user_pair_analyses_user_b;
			DROP INDEX IF EXISTS idx_admin_actions_target;
			DROP INDEX IF EXISTS idx_admin_actions_time;
			DROP INDEX IF EXISTS idx_enforcement_attempts_action;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop indexes: %w", err)
		}

		return nil
	})
}
