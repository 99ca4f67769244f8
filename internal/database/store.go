package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/robalyx/draftguard/internal/database/types/enum"
)

// PickModel stores the completed picks reported by the draft engine.
type PickModel interface {
	// SavePick stores a pick. Saving the same draft and pick number again is a no-op.
	SavePick(ctx context.Context, pick *types.PickLocationRecord) error
	// GetDraftPicks returns every pick of a draft ordered by pick number.
	GetDraftPicks(ctx context.Context, draftID string) ([]*types.PickLocationRecord, error)
}

// FlagModel stores the per-draft proximity flags document.
type FlagModel interface {
	// GetFlags returns the flags of a draft or types.ErrFlagsNotFound.
	GetFlags(ctx context.Context, draftID string) (*types.DraftIntegrityFlags, error)
	// UpdateFlags performs one optimistic read-modify-write of the draft's document,
	// creating it when absent. fn edits the document in place and returns false when it
	// left it unchanged, in which case nothing is written. A concurrent writer makes it
	// fail with types.ErrConflict and a finalized document with types.ErrFlagsFinalized.
	UpdateFlags(ctx context.Context, draftID string, fn func(*types.DraftIntegrityFlags) (bool, error)) error
	// FinalizeFlags marks the draft's document read-only, creating an empty one when absent.
	FinalizeFlags(ctx context.Context, draftID string) error
}

// RiskScoreModel stores post-draft analysis results.
type RiskScoreModel interface {
	// SaveRiskScores upserts the scores of a draft, keeping the review fields of an existing row.
	SaveRiskScores(ctx context.Context, scores *types.DraftRiskScores) error
	// GetRiskScores returns the scores of a draft or types.ErrDraftNotFound.
	GetRiskScores(ctx context.Context, draftID string) (*types.DraftRiskScores, error)
	// GetDraftsForReview pages drafts by maxRiskScore, analyzedAt and draftId, all descending.
	GetDraftsForReview(
		ctx context.Context, filter types.DraftReviewFilter, cursor *types.DraftCursor, limit int,
	) ([]*types.DraftRiskScores, *types.DraftCursor, error)
	// GetPairHistory returns every draft score of a pair ordered by draftedAt then draftId.
	GetPairHistory(ctx context.Context, pairID string) ([]*types.PairScore, error)
	// GetFlaggedPairs returns the distinct pairs matching the filter ordered by pair id.
	GetFlaggedPairs(ctx context.Context, filter types.FlaggedPairFilter) ([]types.PairKey, error)
	// UpdateReviewStatus sets the review fields of a draft.
	UpdateReviewStatus(
		ctx context.Context, draftID string, status enum.ReviewStatus, reviewerID string, at time.Time,
	) error
}

// PairModel stores cross-draft pair profiles.
type PairModel interface {
	// UpsertPairAnalysis writes a pair profile, keeping the review fields of an existing row.
	UpsertPairAnalysis(ctx context.Context, analysis *types.UserPairAnalysis) error
	// GetPairAnalysis returns a pair profile or types.ErrPairNotFound.
	GetPairAnalysis(ctx context.Context, pairID string) (*types.UserPairAnalysis, error)
	// GetPairsForReview pages pairs by overallRiskLevel, lastDraftTogether and pairId, all descending.
	GetPairsForReview(
		ctx context.Context, filter types.PairReviewFilter, cursor *types.PairCursor, limit int,
	) ([]*types.UserPairAnalysis, *types.PairCursor, error)
	// UpdateReviewStatus sets the review fields of a pair.
	UpdateReviewStatus(
		ctx context.Context, pairID string, status enum.ReviewStatus, reviewerID string, at time.Time,
	) error
}

// ActionModel stores the admin audit trail. Actions are insert-only.
type ActionModel interface {
	InsertAction(ctx context.Context, action *types.AdminAction) error
	// GetAction returns an action or types.ErrActionNotFound.
	GetAction(ctx context.Context, id uuid.UUID) (*types.AdminAction, error)
	// GetActions pages actions by createdAt and id, both descending.
	GetActions(
		ctx context.Context, filter types.ActionFilter, cursor *types.ActionCursor, limit int,
	) ([]*types.AdminAction, *types.ActionCursor, error)
	InsertEnforcementAttempt(ctx context.Context, attempt *types.EnforcementAttempt) error
	// GetEnforcementAttempts returns the attempts of an action oldest first.
	GetEnforcementAttempts(ctx context.Context, actionID uuid.UUID) ([]*types.EnforcementAttempt, error)
}

// ADPModel stores the average draft position reference data.
type ADPModel interface {
	UpsertADP(ctx context.Context, adps []*types.PlayerADP) error
	GetAllADP(ctx context.Context) ([]*types.PlayerADP, error)
}

// Models groups the storage operations of every collection.
type Models interface {
	Picks() PickModel
	Flags() FlagModel
	RiskScores() RiskScoreModel
	Pairs() PairModel
	Actions() ActionModel
	ADP() ADPModel
}
