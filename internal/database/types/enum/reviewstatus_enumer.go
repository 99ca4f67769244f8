// Code generated by "enumer -type=ReviewStatus -trimprefix=ReviewStatus -transform=title-lower -text"; DO NOT EDIT.

package enum

import (
	"fmt"
	"strings"
)

const _ReviewStatusName = "pendingrevieweddismissed"

var _ReviewStatusIndex = [...]uint8{0, 7, 15, 24}

const _ReviewStatusLowerName = "pendingrevieweddismissed"

func (i ReviewStatus) String() string {
	if i < 0 || i >= ReviewStatus(len(_ReviewStatusIndex)-1) {
		return fmt.Sprintf("ReviewStatus(%d)", i)
	}
	return _ReviewStatusName[_ReviewStatusIndex[i]:_ReviewStatusIndex[i+1]]
}

// An "invalid array index" compiler error signifies that the constant values have changed.
// Re-run the stringer command to generate them again.
func _ReviewStatusNoOp() {
	var x [1]struct{}
	_ = x[ReviewStatusPending-(0)]
	_ = x[ReviewStatusReviewed-(1)]
	_ = x[ReviewStatusDismissed-(2)]
}

var _ReviewStatusValues = []ReviewStatus{ReviewStatusPending, ReviewStatusReviewed, ReviewStatusDismissed}

var _ReviewStatusNameToValueMap = map[string]ReviewStatus{
	_ReviewStatusName[0:7]:        ReviewStatusPending,
	_ReviewStatusLowerName[0:7]:   ReviewStatusPending,
	_ReviewStatusName[7:15]:       ReviewStatusReviewed,
	_ReviewStatusLowerName[7:15]:  ReviewStatusReviewed,
	_ReviewStatusName[15:24]:      ReviewStatusDismissed,
	_ReviewStatusLowerName[15:24]: ReviewStatusDismissed,
}

var _ReviewStatusNames = []string{
	_ReviewStatusName[0:7],
	_ReviewStatusName[7:15],
	_ReviewStatusName[15:24],
}

// ReviewStatusString retrieves an enum value from the enum constants string name.
// Throws an error if the param is not part of the enum.
func ReviewStatusString(s string) (ReviewStatus, error) {
	if val, ok := _ReviewStatusNameToValueMap[s]; ok {
		return val, nil
	}

	if val, ok := _ReviewStatusNameToValueMap[strings.ToLower(s)]; ok {
		return val, nil
	}
	return 0, fmt.Errorf("%s does not belong to ReviewStatus values", s)
}

// ReviewStatusValues returns all values of the enum
func ReviewStatusValues() []ReviewStatus {
	return _ReviewStatusValues
}

// ReviewStatusStrings returns a slice of all String values of the enum
func ReviewStatusStrings() []string {
	strs := make([]string, len(_ReviewStatusNames))
	copy(strs, _ReviewStatusNames)
	return strs
}

// IsAReviewStatus returns "true" if the value is listed in the enum definition. "false" otherwise
func (i ReviewStatus) IsAReviewStatus() bool {
	for _, v := range _ReviewStatusValues {
		if i == v {
			return true
		}
	}
	return false
}

// MarshalText implements the encoding.TextMarshaler interface for ReviewStatus
func (i ReviewStatus) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface for ReviewStatus
func (i *ReviewStatus) UnmarshalText(text []byte) error {
	var err error
	*i, err = ReviewStatusString(string(text))
	return err
}
