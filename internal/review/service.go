// Package review is the admin workflow over draft and pair risk artifacts:
// paged review queues and the immutable action audit trail.
package review

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/robalyx/draftguard/internal/database"
	"github.com/robalyx/draftguard/internal/database/dbretry"
	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/robalyx/draftguard/internal/database/types/enum"
	"go.uber.org/zap"
)

const (
	// DefaultPageSize is used when a caller asks for zero results.
	DefaultPageSize = 25
	// MaxPageSize caps the results of one page.
	MaxPageSize = 100
)

// ActionRequest is one admin decision to record.
type ActionRequest struct {
	TargetType    enum.TargetType         `json:"targetType"`
	TargetID      string                  `json:"targetId"      validate:"required,max=256"`
	Action        enum.ActionType         `json:"action"`
	Reason        string                  `json:"reason"        validate:"required"`
	Notes         string                  `json:"notes"`
	Evidence      *types.EvidenceSnapshot `json:"evidenceSnapshot,omitempty"`
	ActingAdminID string                  `json:"actingAdminId" validate:"required"`
}

// Service implements the admin review workflow.
type Service struct {
	scores     database.RiskScoreModel
	pairs      database.PairModel
	actions    database.ActionModel
	authorizer Authorizer
	applier    StandingApplier
	validate   *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
	newID      func() (uuid.UUID, error)
}

// NewService creates a review service.
func NewService(models database.Models, authorizer Authorizer, applier StandingApplier, logger *zap.Logger) *Service {
	return &Service{
		scores:     models.RiskScores(),
		pairs:      models.Pairs(),
		actions:    models.Actions(),
		authorizer: authorizer,
		applier:    applier,
		validate:   newValidator(),
		logger:     logger.Named("review"),
		now:        time.Now,
		newID:      uuid.NewV7,
	}
}

// GetDraftsForReview pages drafts by maxRiskScore then analyzedAt, both descending.
// The returned cursor is nil on the last page.
func (s *Service) GetDraftsForReview(
	ctx context.Context, filter types.DraftReviewFilter, limit int, cursor *types.DraftCursor,
) ([]*types.DraftRiskScores, *types.DraftCursor, error) {
	if filter.Status != nil && !filter.Status.IsAReviewStatus() {
		return nil, nil, types.NewValidationError("status", "unknown review status %d", int(*filter.Status))
	}
	if filter.MinScore < 0 || filter.MinScore > 100 {
		return nil, nil, types.NewValidationError("minScore", "must be within [0,100]")
	}

	return s.scores.GetDraftsForReview(ctx, filter, cursor, pageSize(limit))
}

// GetPairsForReview pages pairs by overallRiskLevel then lastDraftTogether, both descending.
func (s *Service) GetPairsForReview(
	ctx context.Context, filter types.PairReviewFilter, limit int, cursor *types.PairCursor,
) ([]*types.UserPairAnalysis, *types.PairCursor, error) {
	if !filter.MinRiskLevel.IsARiskLevel() {
		return nil, nil, types.NewValidationError("level", "unknown risk level %d", int(filter.MinRiskLevel))
	}
	if filter.Status != nil && !filter.Status.IsAReviewStatus() {
		return nil, nil, types.NewValidationError("status", "unknown review status %d", int(*filter.Status))
	}

	return s.pairs.GetPairsForReview(ctx, filter, cursor, pageSize(limit))
}

// GetDraft returns the full risk scores of a draft.
func (s *Service) GetDraft(ctx context.Context, draftID string) (*types.DraftRiskScores, error) {
	if draftID == "" {
		return nil, types.NewValidationError("draftId", "must not be empty")
	}
	return s.scores.GetRiskScores(ctx, draftID)
}

// GetPair returns the profile of a pair by its canonical id.
func (s *Service) GetPair(ctx context.Context, pairID string) (*types.UserPairAnalysis, error) {
	if _, err := types.ParsePairID(pairID); err != nil {
		return nil, err
	}
	return s.pairs.GetPairAnalysis(ctx, pairID)
}

// GetActions pages the audit trail newest first.
func (s *Service) GetActions(
	ctx context.Context, filter types.ActionFilter, limit int, cursor *types.ActionCursor,
) ([]*types.AdminAction, *types.ActionCursor, error) {
	if filter.TargetType != nil && !filter.TargetType.IsATargetType() {
		return nil, nil, types.NewValidationError("targetType", "unknown target type %d", int(*filter.TargetType))
	}
	return s.actions.GetActions(ctx, filter, cursor, pageSize(limit))
}

// GetEnforcementAttempts returns every enforcement attempt of an action oldest first.
func (s *Service) GetEnforcementAttempts(ctx context.Context, actionID uuid.UUID) ([]*types.EnforcementAttempt, error) {
	return s.actions.GetEnforcementAttempts(ctx, actionID)
}

// RecordAction validates and stores an admin decision, moves the target's
// review status and, for suspensions and bans, applies the standing change to
// every affected user. The audit record is written first and kept even when
// enforcement fails. In that case the action is returned together with a
// *types.EnforcementError naming the users that still need it.
func (s *Service) RecordAction(ctx context.Context, req ActionRequest) (*types.AdminAction, error) {
	if !s.authorizer.IsAdmin(ctx, req.ActingAdminID) {
		return nil, types.ErrNotAdmin
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	evidence, users, err := s.resolveTarget(ctx, req)
	if err != nil {
		return nil, err
	}

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate action id: %w", err)
	}

	action := &types.AdminAction{
		ID:               id,
		TargetType:       req.TargetType,
		TargetID:         req.TargetID,
		Action:           req.Action,
		Reason:           req.Reason,
		Notes:            req.Notes,
		EvidenceSnapshot: evidence,
		ActingAdminID:    req.ActingAdminID,
		CreatedAt:        s.now().UTC(),
	}

	if err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		return s.actions.InsertAction(ctx, action)
	}); err != nil {
		return nil, fmt.Errorf("failed to record action: %w", err)
	}

	s.logger.Info("Recorded admin action",
		zap.String("actionID", action.ID.String()),
		zap.String("targetType", action.TargetType.String()),
		zap.String("targetID", action.TargetID),
		zap.String("action", action.Action.String()),
		zap.String("admin", action.ActingAdminID))

	// A failed status move must not leave a recorded ban unenforced.
	statusErr := s.updateReviewStatus(ctx, action)

	if !action.Action.ChangesStanding() {
		return action, statusErr
	}
	return action, errors.Join(statusErr, s.enforce(ctx, action, users, action.ActingAdminID))
}

// RetryEnforcement applies a recorded standing change again to every affected
// user whose last attempt did not succeed. An action with no attempts at all
// resolves its target again and enforces on every affected user.
func (s *Service) RetryEnforcement(ctx context.Context, actionID uuid.UUID, adminID string) (*types.AdminAction, error) {
	if !s.authorizer.IsAdmin(ctx, adminID) {
		return nil, types.ErrNotAdmin
	}

	action, err := s.actions.GetAction(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if !action.Action.ChangesStanding() {
		return nil, types.NewValidationError("action", "%s does not change standing", action.Action)
	}

	attempts, err := s.actions.GetEnforcementAttempts(ctx, actionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load enforcement attempts: %w", err)
	}

	// Nothing was attempted yet, so every affected user is still pending.
	if len(attempts) == 0 {
		_, users, err := s.resolveTarget(ctx, ActionRequest{
			TargetType: action.TargetType,
			TargetID:   action.TargetID,
		})
		if err != nil {
			return nil, err
		}
		return action, s.enforce(ctx, action, users, adminID)
	}

	// The latest attempt per user decides.
	succeeded := make(map[string]bool)
	var order []string
	for _, attempt := range attempts {
		if _, seen := succeeded[attempt.UserID]; !seen {
			order = append(order, attempt.UserID)
		}
		succeeded[attempt.UserID] = attempt.Succeeded
	}

	var pending []string
	for _, userID := range order {
		if !succeeded[userID] {
			pending = append(pending, userID)
		}
	}
	if len(pending) == 0 {
		return action, nil
	}

	return action, s.enforce(ctx, action, pending, adminID)
}

func (s *Service) validateRequest(req ActionRequest) error {
	if !req.TargetType.IsATargetType() {
		return types.NewValidationError("targetType", "missing or unknown target type")
	}
	if !req.Action.IsAActionType() {
		return types.NewValidationError("action", "missing or unknown action")
	}

	if err := s.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return types.NewValidationError(fe.Field(), "failed %q check", fe.Tag())
		}
		return types.NewValidationError("", "%v", err)
	}

	if len(req.Reason) > types.MaxActionTextBytes {
		return types.NewValidationError("reason", "exceeds %d bytes", types.MaxActionTextBytes)
	}
	if len(req.Notes) > types.MaxActionTextBytes {
		return types.NewValidationError("notes", "exceeds %d bytes", types.MaxActionTextBytes)
	}

	switch req.TargetType {
	case enum.TargetTypeUserPair:
		if _, err := types.ParsePairID(req.TargetID); err != nil {
			return err
		}
	case enum.TargetTypeDraft, enum.TargetTypeUser:
	}
	return nil
}

// resolveTarget loads the target, builds its bounded evidence snapshot and
// lists the users a standing change applies to.
func (s *Service) resolveTarget(ctx context.Context, req ActionRequest) (*types.EvidenceSnapshot, []string, error) {
	var (
		evidence *types.EvidenceSnapshot
		users    []string
	)

	switch req.TargetType {
	case enum.TargetTypeDraft:
		scores, err := s.scores.GetRiskScores(ctx, req.TargetID)
		if err != nil {
			return nil, nil, err
		}
		evidence = draftEvidence(scores)
		users = draftUsers(scores)

	case enum.TargetTypeUserPair:
		pair, err := s.pairs.GetPairAnalysis(ctx, req.TargetID)
		if err != nil {
			return nil, nil, err
		}
		evidence = pairEvidence(pair)
		users = []string{pair.UserIDA, pair.UserIDB}

	case enum.TargetTypeUser:
		evidence = &types.EvidenceSnapshot{UserIDs: []string{req.TargetID}}
		users = []string{req.TargetID}
	}

	if req.Evidence != nil {
		evidence = mergeEvidence(evidence, req.Evidence)
	}
	evidence.Bound()

	return evidence, users, nil
}

func (s *Service) updateReviewStatus(ctx context.Context, action *types.AdminAction) error {
	status := enum.ReviewStatusReviewed
	if action.Action == enum.ActionTypeCleared {
		status = enum.ReviewStatusDismissed
	}

	var err error
	switch action.TargetType {
	case enum.TargetTypeDraft:
		err = dbretry.NoResult(ctx, func(ctx context.Context) error {
			return s.scores.UpdateReviewStatus(ctx, action.TargetID, status, action.ActingAdminID, action.CreatedAt)
		})
	case enum.TargetTypeUserPair:
		err = dbretry.NoResult(ctx, func(ctx context.Context) error {
			return s.pairs.UpdateReviewStatus(ctx, action.TargetID, status, action.ActingAdminID, action.CreatedAt)
		})
	case enum.TargetTypeUser:
	}

	if err != nil {
		s.logger.Error("Action recorded but review status was not updated",
			zap.String("actionID", action.ID.String()),
			zap.Error(err))
		return fmt.Errorf("action %s recorded but review status was not updated: %w", action.ID, err)
	}
	return nil
}

// enforce applies the action's standing change to each user and stores every
// attempt. Failures are collected so one user never blocks the others.
func (s *Service) enforce(ctx context.Context, action *types.AdminAction, users []string, attemptedBy string) error {
	var (
		failed []string
		errs   []error
	)

	for _, userID := range users {
		applyErr := s.applier.ApplyStanding(ctx, userID, action.Action)

		attempt := &types.EnforcementAttempt{
			ActionID:    action.ID,
			UserID:      userID,
			Action:      action.Action,
			Succeeded:   applyErr == nil,
			AttemptedBy: attemptedBy,
			AttemptedAt: s.now().UTC(),
		}
		if applyErr != nil {
			attempt.Error = applyErr.Error()
			failed = append(failed, userID)
			errs = append(errs, fmt.Errorf("user %s: %w", userID, applyErr))

			s.logger.Warn("Failed to apply standing change",
				zap.String("actionID", action.ID.String()),
				zap.String("userID", userID),
				zap.String("action", action.Action.String()),
				zap.Error(applyErr))
		}

		if err := dbretry.NoResult(ctx, func(ctx context.Context) error {
			return s.actions.InsertEnforcementAttempt(ctx, attempt)
		}); err != nil {
			s.logger.Error("Failed to store enforcement attempt",
				zap.String("actionID", action.ID.String()),
				zap.String("userID", userID),
				zap.Error(err))
		}
	}

	if len(failed) == 0 {
		return nil
	}
	return &types.EnforcementError{
		ActionID: action.ID.String(),
		UserIDs:  failed,
		Err:      errors.Join(errs...),
	}
}

func draftEvidence(scores *types.DraftRiskScores) *types.EvidenceSnapshot {
	top := scores.TopPairs(types.MaxEvidencePairs)
	evidence := &types.EvidenceSnapshot{
		DraftIDs:     []string{scores.DraftID},
		MaxRiskScore: scores.MaxRiskScore,
		RiskLevel:    scores.MaxRiskLevel,
		Truncated:    len(scores.PairScores) > len(top),
	}
	for _, pair := range top {
		evidence.Pairs = append(evidence.Pairs, types.EvidencePair{
			PairID:            pair.PairID,
			CombinedRiskScore: pair.CombinedRiskScore,
			RiskLevel:         pair.RiskLevel,
			EventCount:        pair.EventCount,
		})
	}
	return evidence
}

// draftUsers returns the members of the draft's top-risk pairs: every pair at
// review level or above, or the single highest pair when none reaches it.
func draftUsers(scores *types.DraftRiskScores) []string {
	top := scores.TopPairs(len(scores.PairScores))

	var selected []*types.PairScore
	for _, pair := range top {
		if pair.RiskLevel >= enum.RiskLevelReview {
			selected = append(selected, pair)
		}
	}
	if len(selected) == 0 && len(top) > 0 {
		selected = top[:1]
	}

	var users []string
	for _, pair := range selected {
		for _, userID := range []string{pair.UserIDA, pair.UserIDB} {
			if !slices.Contains(users, userID) {
				users = append(users, userID)
			}
		}
	}
	return users
}

func pairEvidence(pair *types.UserPairAnalysis) *types.EvidenceSnapshot {
	evidence := &types.EvidenceSnapshot{
		UserIDs:               []string{pair.UserIDA, pair.UserIDB},
		MaxRiskScore:          pair.MaxRiskScore,
		RiskLevel:             pair.OverallRiskLevel,
		TotalDraftsTogether:   pair.TotalDraftsTogether,
		DraftsWithinProximity: pair.DraftsWithinProximityThreshold,
		CoLocationRate:        pair.CoLocationRate,
	}
	if pair.LastDraftID != "" {
		evidence.DraftIDs = []string{pair.LastDraftID}
	}
	return evidence
}

// mergeEvidence adds the ids and pairs an admin attached to the stored summary.
// The top level scores always come from storage.
func mergeEvidence(base, extra *types.EvidenceSnapshot) *types.EvidenceSnapshot {
	for _, id := range extra.DraftIDs {
		if !slices.Contains(base.DraftIDs, id) {
			base.DraftIDs = append(base.DraftIDs, id)
		}
	}
	for _, id := range extra.UserIDs {
		if !slices.Contains(base.UserIDs, id) {
			base.UserIDs = append(base.UserIDs, id)
		}
	}
	for _, pair := range extra.Pairs {
		if !slices.ContainsFunc(base.Pairs, func(p types.EvidencePair) bool { return p.PairID == pair.PairID }) {
			base.Pairs = append(base.Pairs, pair)
		}
	}
	base.Truncated = base.Truncated || extra.Truncated
	return base
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func pageSize(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	return min(limit, MaxPageSize)
}
