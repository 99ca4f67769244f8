package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/robalyx/draftguard/internal/database/types/enum"
	"github.com/uptrace/bun"
)

const (
	// MaxEvidencePairs caps the pair entries kept in an evidence snapshot.
	MaxEvidencePairs = 20
	// MaxEvidenceDrafts caps the draft ids kept in an evidence snapshot.
	MaxEvidenceDrafts = 20
	// MaxActionTextBytes caps the reason and notes of an action.
	MaxActionTextBytes = 4 << 10
)

// EvidencePair is the summary of one pair kept in an evidence snapshot.
type EvidencePair struct {
	PairID            string         `json:"pairId"`
	CombinedRiskScore float64        `json:"combinedRiskScore"`
	RiskLevel         enum.RiskLevel `json:"riskLevel"`
	EventCount        int            `json:"eventCount"`
}

// EvidenceSnapshot is the bounded summary of what an admin saw when deciding.
// It never holds raw pick or location history.
type EvidenceSnapshot struct {
	DraftIDs              []string       `json:"draftIds,omitempty"`
	UserIDs               []string       `json:"userIds,omitempty"`
	Pairs                 []EvidencePair `json:"pairs,omitempty"`
	MaxRiskScore          float64        `json:"maxRiskScore"`
	RiskLevel             enum.RiskLevel `json:"riskLevel"`
	TotalDraftsTogether   int            `json:"totalDraftsTogether,omitempty"`
	DraftsWithinProximity int            `json:"draftsWithinProximity,omitempty"`
	CoLocationRate        float64        `json:"coLocationRate,omitempty"`
	Truncated             bool           `json:"truncated,omitempty"`
}

// Bound trims the snapshot to its size limits and marks it truncated when anything was cut.
func (e *EvidenceSnapshot) Bound() {
	if len(e.Pairs) > MaxEvidencePairs {
		e.Pairs = e.Pairs[:MaxEvidencePairs]
		e.Truncated = true
	}
	if len(e.DraftIDs) > MaxEvidenceDrafts {
		e.DraftIDs = e.DraftIDs[:MaxEvidenceDrafts]
		e.Truncated = true
	}
	if len(e.UserIDs) > 2*MaxEvidencePairs {
		e.UserIDs = e.UserIDs[:2*MaxEvidencePairs]
		e.Truncated = true
	}
}

// AdminAction is the immutable audit record of one admin decision.
type AdminAction struct {
	bun.BaseModel `bun:"table:admin_actions"`

	ID               uuid.UUID         `bun:",pk,type:uuid"      json:"id"`
	TargetType       enum.TargetType   `bun:",notnull"           json:"targetType"`
	TargetID         string            `bun:",notnull"           json:"targetId"`
	Action           enum.ActionType   `bun:",notnull"           json:"action"`
	Reason           string            `bun:",notnull"           json:"reason"`
	Notes            string            `bun:",notnull"           json:"notes"`
	EvidenceSnapshot *EvidenceSnapshot `bun:"type:jsonb,notnull" json:"evidenceSnapshot"`
	ActingAdminID    string            `bun:",notnull"           json:"actingAdminId"`
	CreatedAt        time.Time         `bun:",notnull"           json:"createdAt"`
}

// EnforcementAttempt records one call to the user-status collaborator for an action.
type EnforcementAttempt struct {
	bun.BaseModel `bun:"table:enforcement_attempts"`

	ID          int64           `bun:",pk,autoincrement" json:"id"`
	ActionID    uuid.UUID       `bun:",notnull,type:uuid" json:"actionId"`
	UserID      string          `bun:",notnull"          json:"userId"`
	Action      enum.ActionType `bun:",notnull"          json:"action"`
	Succeeded   bool            `bun:",notnull"          json:"succeeded"`
	Error       string          `bun:",nullzero"         json:"error,omitempty"`
	AttemptedBy string          `bun:",notnull"          json:"attemptedBy"`
	AttemptedAt time.Time       `bun:",notnull"          json:"attemptedAt"`
}

// ActionFilter narrows the audit trail listing.
type ActionFilter struct {
	TargetType    *enum.TargetType
	TargetID      string
	ActingAdminID string
}

// ActionCursor marks the position after the last action of a page.
type ActionCursor struct {
	CreatedAt time.Time `json:"t"`
	ID        uuid.UUID `json:"i"`
}
