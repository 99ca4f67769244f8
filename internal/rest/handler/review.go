package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/robalyx/draftguard/internal/rest/convert"
	"github.com/robalyx/draftguard/internal/rest/middleware/header"
	restTypes "github.com/robalyx/draftguard/internal/rest/types"
	"github.com/robalyx/draftguard/internal/review"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// ReviewHandler serves the admin dashboard.
type ReviewHandler struct {
	service     *review.Service
	authorizer  review.Authorizer
	maxPageSize int
	logger      *zap.Logger
}

// NewReviewHandler creates a new review handler.
func NewReviewHandler(
	service *review.Service, authorizer review.Authorizer, maxPageSize int, logger *zap.Logger,
) *ReviewHandler {
	return &ReviewHandler{
		service:     service,
		authorizer:  authorizer,
		maxPageSize: maxPageSize,
		logger:      logger.Named("review_handler"),
	}
}

// RequireAdmin rejects requests whose X-Admin-ID is not an admin.
func (h *ReviewHandler) RequireAdmin(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		if !h.authorizer.IsAdmin(req.Context(), header.FromAdminID(req.Context())) {
			return writeError(w, h.logger, types.ErrNotAdmin)
		}
		return next(w, req)
	}
}

// ListDrafts pages the draft review queue.
func (h *ReviewHandler) ListDrafts(w http.ResponseWriter, req bunrouter.Request) error {
	query := req.URL.Query()

	var filter types.DraftReviewFilter
	var err error
	if filter.Status, err = convert.ReviewStatus(query, "status"); err != nil {
		return writeError(w, h.logger, err)
	}
	if filter.MinScore, err = convert.Float(query, "minScore"); err != nil {
		return writeError(w, h.logger, err)
	}

	limit, err := convert.Limit(query, h.maxPageSize)
	if err != nil {
		return writeError(w, h.logger, err)
	}
	cursor, err := convert.DecodeCursor[types.DraftCursor](query.Get("cursor"))
	if err != nil {
		return writeError(w, h.logger, err)
	}

	drafts, next, err := h.service.GetDraftsForReview(req.Context(), filter, limit, cursor)
	if err != nil {
		return writeError(w, h.logger, err)
	}

	nextCursor, err := convert.EncodeCursor(next)
	if err != nil {
		return writeError(w, h.logger, err)
	}

	return writeJSON(w, http.StatusOK, restTypes.DraftPage{Drafts: drafts, NextCursor: nextCursor})
}

// GetDraft returns the full risk scores of one draft.
func (h *ReviewHandler) GetDraft(w http.ResponseWriter, req bunrouter.Request) error {
	scores, err := h.service.GetDraft(req.Context(), req.Param("id"))
	if err != nil {
		return writeError(w, h.logger, err)
	}
	return writeJSON(w, http.StatusOK, scores)
}

// ListPairs pages the pair review queue.
func (h *ReviewHandler) ListPairs(w http.ResponseWriter, req bunrouter.Request) error {
	query := req.URL.Query()

	filter := types.PairReviewFilter{UserID: query.Get("userId")}
	var err error
	if filter.MinRiskLevel, err = convert.RiskLevel(query, "level"); err != nil {
		return writeError(w, h.logger, err)
	}
	if filter.Status, err = convert.ReviewStatus(query, "status"); err != nil {
		return writeError(w, h.logger, err)
	}

	limit, err := convert.Limit(query, h.maxPageSize)
	if err != nil {
		return writeError(w, h.logger, err)
	}
	cursor, err := convert.DecodeCursor[types.PairCursor](query.Get("cursor"))
	if err != nil {
		return writeError(w, h.logger, err)
	}

	pairs, next, err := h.service.GetPairsForReview(req.Context(), filter, limit, cursor)
	if err != nil {
		return writeError(w, h.logger, err)
	}

	nextCursor, err := convert.EncodeCursor(next)
	if err != nil {
		return writeError(w, h.logger, err)
	}

	return writeJSON(w, http.StatusOK, restTypes.PairPage{Pairs: pairs, NextCursor: nextCursor})
}

// GetPair returns the cross-draft profile of one pair.
func (h *ReviewHandler) GetPair(w http.ResponseWriter, req bunrouter.Request) error {
	pair, err := h.service.GetPair(req.Context(), req.Param("id"))
	if err != nil {
		return writeError(w, h.logger, err)
	}
	return writeJSON(w, http.StatusOK, pair)
}

// RecordAction stores an admin decision. The acting admin is taken from X-Admin-ID.
func (h *ReviewHandler) RecordAction(w http.ResponseWriter, req bunrouter.Request) error {
	var body review.ActionRequest
	if err := decodeBody(w, req.Request, &body, false); err != nil {
		return writeError(w, h.logger, err)
	}
	body.ActingAdminID = header.FromAdminID(req.Context())

	action, err := h.service.RecordAction(req.Context(), body)
	return h.writeAction(w, req, action, err, http.StatusCreated)
}

// ListActions pages the audit trail.
func (h *ReviewHandler) ListActions(w http.ResponseWriter, req bunrouter.Request) error {
	query := req.URL.Query()

	filter := types.ActionFilter{
		TargetID:      query.Get("targetId"),
		ActingAdminID: query.Get("adminId"),
	}
	var err error
	if filter.TargetType, err = convert.TargetType(query, "targetType"); err != nil {
		return writeError(w, h.logger, err)
	}

	limit, err := convert.Limit(query, h.maxPageSize)
	if err != nil {
		return writeError(w, h.logger, err)
	}
	cursor, err := convert.DecodeCursor[types.ActionCursor](query.Get("cursor"))
	if err != nil {
		return writeError(w, h.logger, err)
	}

	actions, next, err := h.service.GetActions(req.Context(), filter, limit, cursor)
	if err != nil {
		return writeError(w, h.logger, err)
	}

	nextCursor, err := convert.EncodeCursor(next)
	if err != nil {
		return writeError(w, h.logger, err)
	}

	return writeJSON(w, http.StatusOK, restTypes.ActionPage{Actions: actions, NextCursor: nextCursor})
}

// GetAttempts lists the enforcement attempts of an action.
func (h *ReviewHandler) GetAttempts(w http.ResponseWriter, req bunrouter.Request) error {
	actionID, err := parseActionID(req.Param("id"))
	if err != nil {
		return writeError(w, h.logger, err)
	}

	attempts, err := h.service.GetEnforcementAttempts(req.Context(), actionID)
	if err != nil {
		return writeError(w, h.logger, err)
	}
	return writeJSON(w, http.StatusOK, attempts)
}

// RetryEnforcement applies a failed standing change again.
func (h *ReviewHandler) RetryEnforcement(w http.ResponseWriter, req bunrouter.Request) error {
	actionID, err := parseActionID(req.Param("id"))
	if err != nil {
		return writeError(w, h.logger, err)
	}

	action, err := h.service.RetryEnforcement(req.Context(), actionID, header.FromAdminID(req.Context()))
	return h.writeAction(w, req, action, err, http.StatusOK)
}

// writeAction reports a recorded action. An enforcement failure still returns the
// action, with 202 and the users that need a retry.
func (h *ReviewHandler) writeAction(
	w http.ResponseWriter, req bunrouter.Request, action *types.AdminAction, err error, okStatus int,
) error {
	var enforcementErr *types.EnforcementError
	if err != nil && (action == nil || !errors.As(err, &enforcementErr)) {
		return writeError(w, h.logger, err)
	}

	response := restTypes.ActionResponse{Action: action}
	status := okStatus
	if enforcementErr != nil {
		status = http.StatusAccepted
		response.EnforcementError = enforcementErr.Error()
		response.FailedUserIDs = enforcementErr.UserIDs

		h.logger.Warn("Action recorded with failed enforcement",
			zap.String("actionID", action.ID.String()),
			zap.Strings("userIDs", enforcementErr.UserIDs),
			zap.Error(enforcementErr.Err))
	}

	if action.Action.ChangesStanding() {
		attempts, attemptsErr := h.service.GetEnforcementAttempts(req.Context(), action.ID)
		if attemptsErr != nil {
			return writeError(w, h.logger, attemptsErr)
		}
		response.Attempts = attempts
	}

	return writeJSON(w, status, response)
}

func parseActionID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, types.NewValidationError("actionId", "%q is not an action id", raw)
	}
	return id, nil
}
