package types

import (
	"strings"
	"time"

	"github.com/robalyx/draftguard/internal/database/types/enum"
	"github.com/uptrace/bun"
)

// PairSeparator joins the two user ids of a canonical pair id.
const PairSeparator = ":"

// PairKey is an unordered pair of users stored in canonical order.
type PairKey struct {
	UserIDA string `bun:"user_id_a" json:"userIdA"`
	UserIDB string `bun:"user_id_b" json:"userIdB"`
}

// CanonicalPair orders two user ids so the lexicographically smaller one comes first.
// The second return value is true when the arguments were swapped.
func CanonicalPair(a, b string) (PairKey, bool) {
	if b < a {
		return PairKey{UserIDA: b, UserIDB: a}, true
	}
	return PairKey{UserIDA: a, UserIDB: b}, false
}

// ID returns the canonical pair id.
func (k PairKey) ID() string {
	return k.UserIDA + PairSeparator + k.UserIDB
}

// Contains reports whether userID is one of the two members.
func (k PairKey) Contains(userID string) bool {
	return k.UserIDA == userID || k.UserIDB == userID
}

// ValidateUserID rejects user ids that cannot be joined into a pair id.
func ValidateUserID(id string) error {
	if id == "" {
		return NewValidationError("userId", "must not be empty")
	}
	if strings.Contains(id, PairSeparator) {
		return NewValidationError("userId", "%q must not contain %q", id, PairSeparator)
	}
	return nil
}

// ParsePairID splits a canonical pair id back into its key.
func ParsePairID(id string) (PairKey, error) {
	a, b, ok := strings.Cut(id, PairSeparator)
	if !ok || a == "" || b == "" {
		return PairKey{}, NewValidationError("pairId", "%q is not a pair id", id)
	}
	key, _ := CanonicalPair(a, b)
	if key.ID() != id {
		return PairKey{}, NewValidationError("pairId", "%q is not in canonical order", id)
	}
	return key, nil
}

// UserPairAnalysis is the longitudinal risk profile of one user pair across all shared drafts.
type UserPairAnalysis struct {
	bun.BaseModel `bun:"table:user_pair_analyses"`

	PairID                         string            `bun:",pk"                     json:"pairId"`
	UserIDA                        string            `bun:"user_id_a,notnull"       json:"userIdA"`
	UserIDB                        string            `bun:"user_id_b,notnull"       json:"userIdB"`
	TotalDraftsTogether            int               `bun:",notnull"                json:"totalDraftsTogether"`
	DraftsWithinProximityThreshold int               `bun:",notnull"                json:"draftsWithinProximityThreshold"`
	CoLocationRate                 float64           `bun:",notnull"                json:"coLocationRate"`
	MaxRiskScore                   float64           `bun:",notnull"                json:"maxRiskScore"`
	AverageRiskScore               float64           `bun:",notnull"                json:"averageRiskScore"`
	RecencyWeightedScore           float64           `bun:",notnull"                json:"recencyWeightedScore"`
	OverallRiskLevel               enum.RiskLevel    `bun:",notnull"                json:"overallRiskLevel"`
	Trend                          enum.Trend        `bun:",notnull"                json:"trend"`
	LastDraftTogether              time.Time         `bun:",notnull"                json:"lastDraftTogether"`
	LastDraftID                    string            `bun:",notnull"                json:"lastDraftId"`
	ReviewStatus                   enum.ReviewStatus `bun:",notnull,default:0"      json:"reviewStatus"`
	ReviewedBy                     string            `bun:",nullzero"               json:"reviewedBy,omitempty"`
	ReviewedAt                     time.Time         `bun:",nullzero"               json:"reviewedAt,omitzero"`
	AnalyzedAt                     time.Time         `bun:",notnull"                json:"analyzedAt"`
}

// Key returns the pair key of the analysis.
func (p *UserPairAnalysis) Key() PairKey {
	return PairKey{UserIDA: p.UserIDA, UserIDB: p.UserIDB}
}

// PairReviewFilter narrows the pair review queue.
type PairReviewFilter struct {
	// MinRiskLevel keeps pairs at or above this level.
	MinRiskLevel enum.RiskLevel
	// Status keeps pairs in this review status when set.
	Status *enum.ReviewStatus
	// UserID keeps pairs containing this user when set.
	UserID string
}

// PairCursor marks the position after the last pair of a page.
type PairCursor struct {
	RiskLevel         enum.RiskLevel `json:"l"`
	LastDraftTogether time.Time      `json:"t"`
	PairID            string         `json:"p"`
}
