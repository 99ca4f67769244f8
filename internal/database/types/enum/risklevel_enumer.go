// Code generated by "enumer -type=RiskLevel -trimprefix=RiskLevel -transform=title-lower -text"; DO NOT EDIT.

package enum

import (
	"fmt"
	"strings"
)

const _RiskLevelName = "nonemonitorreviewurgent"

var _RiskLevelIndex = [...]uint8{0, 4, 11, 17, 23}

const _RiskLevelLowerName = "nonemonitorreviewurgent"

func (i RiskLevel) String() string {
	if i < 0 || i >= RiskLevel(len(_RiskLevelIndex)-1) {
		return fmt.Sprintf("RiskLevel(%d)", i)
	}
	return _RiskLevelName[_RiskLevelIndex[i]:_RiskLevelIndex[i+1]]
}

// An "invalid array index" compiler error signifies that the constant values have changed.
// Re-run the stringer command to generate them again.
func _RiskLevelNoOp() {
	var x [1]struct{}
	_ = x[RiskLevelNone-(0)]
	_ = x[RiskLevelMonitor-(1)]
	_ = x[RiskLevelReview-(2)]
	_ = x[RiskLevelUrgent-(3)]
}

var _RiskLevelValues = []RiskLevel{RiskLevelNone, RiskLevelMonitor, RiskLevelReview, RiskLevelUrgent}

var _RiskLevelNameToValueMap = map[string]RiskLevel{
	_RiskLevelName[0:4]:        RiskLevelNone,
	_RiskLevelLowerName[0:4]:   RiskLevelNone,
	_RiskLevelName[4:11]:       RiskLevelMonitor,
	_RiskLevelLowerName[4:11]:  RiskLevelMonitor,
	_RiskLevelName[11:17]:      RiskLevelReview,
	_RiskLevelLowerName[11:17]: RiskLevelReview,
	_RiskLevelName[17:23]:      RiskLevelUrgent,
	_RiskLevelLowerName[17:23]: RiskLevelUrgent,
}

var _RiskLevelNames = []string{
	_RiskLevelName[0:4],
	_RiskLevelName[4:11],
	_RiskLevelName[11:17],
	_RiskLevelName[17:23],
}

// RiskLevelString retrieves an enum value from the enum constants string name.
// Throws an error if the param is not part of the enum.
func RiskLevelString(s string) (RiskLevel, error) {
	if val, ok := _RiskLevelNameToValueMap[s]; ok {
		return val, nil
	}

	if val, ok := _RiskLevelNameToValueMap[strings.ToLower(s)]; ok {
		return val, nil
	}
	return 0, fmt.Errorf("%s does not belong to RiskLevel values", s)
}

// RiskLevelValues returns all values of the enum
func RiskLevelValues() []RiskLevel {
	return _RiskLevelValues
}

// RiskLevelStrings returns a slice of all String values of the enum
func RiskLevelStrings() []string {
	strs := make([]string, len(_RiskLevelNames))
	copy(strs, _RiskLevelNames)
	return strs
}

// IsARiskLevel returns "true" if the value is listed in the enum definition. "false" otherwise
func (i RiskLevel) IsARiskLevel() bool {
	for _, v := range _RiskLevelValues {
		if i == v {
			return true
		}
	}
	return false
}

// MarshalText implements the encoding.TextMarshaler interface for RiskLevel
func (i RiskLevel) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface for RiskLevel
func (i *RiskLevel) UnmarshalText(text []byte) error {
	var err error
	*i, err = RiskLevelString(string(text))
	return err
}
