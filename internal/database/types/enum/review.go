package enum

// ReviewStatus tracks where a risk artifact sits in the admin workflow.
//
//go:generate go tool enumer -type=ReviewStatus -trimprefix=ReviewStatus -transform=title-lower -text
type ReviewStatus int

const (
	// ReviewStatusPending is the initial status of every analysis.
	ReviewStatusPending ReviewStatus = iota
	// ReviewStatusReviewed means an admin recorded a decision other than clearing.
	ReviewStatusReviewed
	// ReviewStatusDismissed means an admin cleared the artifact.
	ReviewStatusDismissed
)
