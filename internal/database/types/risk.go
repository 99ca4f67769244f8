package types

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/robalyx/draftguard/internal/database/types/enum"
	"github.com/uptrace/bun"
)

// PairScore is the post-draft score of one participant pair.
type PairScore struct {
	bun.BaseModel `bun:"table:draft_pair_scores"`

	DraftID           string         `bun:",pk"      json:"draftId"`
	PairID            string         `bun:",pk"      json:"pairId"`
	UserIDA           string         `bun:"user_id_a,notnull" json:"userIdA"`
	UserIDB           string         `bun:"user_id_b,notnull" json:"userIdB"`
	LocationScore     float64        `bun:",notnull" json:"locationScore"`
	BehaviorScore     float64        `bun:",notnull" json:"behaviorScore"`
	BenefitScore      float64        `bun:",notnull" json:"benefitScore"`
	CombinedRiskScore float64        `bun:",notnull" json:"combinedRiskScore"`
	RiskLevel         enum.RiskLevel `bun:",notnull" json:"riskLevel"`
	EventCount        int            `bun:",notnull" json:"eventCount"`
	ReachCount        int            `bun:",notnull" json:"reachCount"`
	TransferCount     int            `bun:",notnull" json:"transferCount"`
	DraftedAt         time.Time      `bun:",notnull" json:"draftedAt"` // Time of the draft's final pick
}

// Key returns the pair key of the score.
func (p *PairScore) Key() PairKey {
	return PairKey{UserIDA: p.UserIDA, UserIDB: p.UserIDB}
}

// DraftRiskScores holds every pair score of one analyzed draft.
type DraftRiskScores struct {
	bun.BaseModel `bun:"table:draft_risk_scores"`

	DraftID      string            `bun:",pk"                                json:"draftId"`
	PairScores   []*PairScore      `bun:"rel:has-many,join:draft_id=draft_id" json:"pairScores"`
	MaxRiskScore float64           `bun:",notnull"                           json:"maxRiskScore"`
	MaxRiskLevel enum.RiskLevel    `bun:",notnull"                           json:"maxRiskLevel"`
	Status       enum.ReviewStatus `bun:",notnull,default:0"                 json:"status"`
	Warnings     []string          `bun:",array"                             json:"warnings,omitempty"`
	DraftedAt    time.Time         `bun:",notnull"                           json:"draftedAt"`
	AnalyzedAt   time.Time         `bun:",notnull"                           json:"analyzedAt"`
	ReviewedBy   string            `bun:",nullzero"                          json:"reviewedBy,omitempty"`
	ReviewedAt   time.Time         `bun:",nullzero"                          json:"reviewedAt,omitzero"`
}

// TopPairs returns up to n pair scores with the highest combined score.
func (d *DraftRiskScores) TopPairs(n int) []*PairScore {
	sorted := make([]*PairScore, len(d.PairScores))
	copy(sorted, d.PairScores)
	SortPairScores(sorted)
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// SortPairScores orders pair scores by combined score descending, then by pair id.
func SortPairScores(scores []*PairScore) {
	slices.SortFunc(scores, func(a, b *PairScore) int {
		if c := cmp.Compare(b.CombinedRiskScore, a.CombinedRiskScore); c != 0 {
			return c
		}
		return strings.Compare(a.PairID, b.PairID)
	})
}

// DraftReviewFilter narrows the draft review queue.
type DraftReviewFilter struct {
	// Status keeps drafts in this review status when set.
	Status *enum.ReviewStatus
	// MinScore keeps drafts whose maxRiskScore is at least this value.
	MinScore float64
}

// DraftCursor marks the position after the last draft of a page.
type DraftCursor struct {
	MaxRiskScore float64   `json:"s"`
	AnalyzedAt   time.Time `json:"t"`
	DraftID      string    `json:"d"`
}

// FlaggedPairFilter selects the pairs the cross-draft batch looks at.
type FlaggedPairFilter struct {
	// MinCombinedScore selects pairs that reached this score in any draft.
	MinCombinedScore float64
	// IncludeProximity also selects pairs with at least one proximity event.
	IncludeProximity bool
}
