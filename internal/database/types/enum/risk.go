package enum

// RiskLevel is a coarse bucket derived by thresholding a numeric risk score.
// The numeric order is meaningful: a higher value is a more serious level.
//
//go:generate go tool enumer -type=RiskLevel -trimprefix=RiskLevel -transform=title-lower -text
type RiskLevel int

const (
	// RiskLevelNone means the score is below every threshold.
	RiskLevelNone RiskLevel = iota
	// RiskLevelMonitor means the pair should be watched across future drafts.
	RiskLevelMonitor
	// RiskLevelReview means an admin should look at the evidence.
	RiskLevelReview
	// RiskLevelUrgent means an admin should look at the evidence before anything else.
	RiskLevelUrgent
)

// Trend describes the direction of a pair's risk over its shared draft history.
//
//go:generate go tool enumer -type=Trend -trimprefix=Trend -transform=title-lower -text
type Trend int

const (
	// TrendStable means recent drafts score about the same as older ones.
	TrendStable Trend = iota
	// TrendRising means recent drafts score noticeably higher.
	TrendRising
	// TrendFalling means recent drafts score noticeably lower.
	TrendFalling
)
