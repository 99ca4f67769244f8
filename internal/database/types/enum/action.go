package enum

// ActionType is an admin decision recorded in the audit trail.
// The zero value is not a decision and never passes validation.
//
//go:generate go tool enumer -type=ActionType -trimprefix=ActionType -transform=title-lower -text
type ActionType int

const (
	// ActionTypeCleared records that the evidence did not warrant any action.
	ActionTypeCleared ActionType = iota + 1
	// ActionTypeWarned records a warning sent to the users involved.
	ActionTypeWarned
	// ActionTypeSuspended records a temporary suspension of the users involved.
	ActionTypeSuspended
	// ActionTypeBanned records a permanent ban of the users involved.
	ActionTypeBanned
	// ActionTypeEscalated records a hand-off to a senior reviewer.
	ActionTypeEscalated
)

// ChangesStanding reports whether the action must be enforced against user accounts.
func (a ActionType) ChangesStanding() bool {
	return a == ActionTypeSuspended || a == ActionTypeBanned
}

// TargetType identifies what kind of artifact an admin action is about.
// The zero value is not a target and never passes validation.
//
//go:generate go tool enumer -type=TargetType -trimprefix=TargetType -transform=title-lower -text
type TargetType int

const (
	// TargetTypeDraft targets a single draft's risk scores.
	TargetTypeDraft TargetType = iota + 1
	// TargetTypeUserPair targets a longitudinal pair analysis.
	TargetTypeUserPair
	// TargetTypeUser targets one user account.
	TargetTypeUser
)
