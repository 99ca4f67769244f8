package types

import (
	"time"

	"github.com/robalyx/draftguard/internal/database/types"
)

// AcceptStatus is returned by endpoints that queue work.
const AcceptStatus = "accepted"

// Coordinates is a latitude and longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PickRequest is the completed-pick webhook body sent by the draft engine.
type PickRequest struct {
	PickNumber  int          `json:"pickNumber"  validate:"min=1"`
	UserID      string       `json:"userId"      validate:"required,max=128,excludes=:"`
	PlayerID    string       `json:"playerId"    validate:"required,max=128"`
	Coordinates *Coordinates `json:"coordinates"`
	Timestamp   time.Time    `json:"timestamp"`
}

// CompleteRequest is the optional draft-completed webhook body.
type CompleteRequest struct {
	CompletedAt time.Time `json:"completedAt"`
}

// AcceptedResponse acknowledges work that continues in the background.
type AcceptedResponse struct {
	DraftID string `json:"draftId"`
	Status  string `json:"status"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// DraftPage is one page of the draft review queue.
type DraftPage struct {
	Drafts     []*types.DraftRiskScores `json:"drafts"`
	NextCursor string                   `json:"nextCursor,omitempty"`
}

// PairPage is one page of the pair review queue.
type PairPage struct {
	Pairs      []*types.UserPairAnalysis `json:"pairs"`
	NextCursor string                    `json:"nextCursor,omitempty"`
}

// ActionPage is one page of the audit trail.
type ActionPage struct {
	Actions    []*types.AdminAction `json:"actions"`
	NextCursor string               `json:"nextCursor,omitempty"`
}

// ActionResponse is a recorded admin action with its enforcement outcome.
type ActionResponse struct {
	Action           *types.AdminAction          `json:"action"`
	Attempts         []*types.EnforcementAttempt `json:"enforcementAttempts,omitempty"`
	EnforcementError string                      `json:"enforcementError,omitempty"`
	FailedUserIDs    []string                    `json:"failedUserIds,omitempty"`
}
