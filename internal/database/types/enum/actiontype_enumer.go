// Code generated by "enumer -type=ActionType -trimprefix=ActionType -transform=title-lower -text"; DO NOT EDIT.

package enum

import (
	"fmt"
	"strings"
)

const _ActionTypeName = "clearedwarnedsuspendedbannedescalated"

var _ActionTypeIndex = [...]uint8{0, 7, 13, 22, 28, 37}

const _ActionTypeLowerName = "clearedwarnedsuspendedbannedescalated"

func (i ActionType) String() string {
	i -= 1
	if i < 0 || i >= ActionType(len(_ActionTypeIndex)-1) {
		return fmt.Sprintf("ActionType(%d)", i+1)
	}
	return _ActionTypeName[_ActionTypeIndex[i]:_ActionTypeIndex[i+1]]
}

// An "invalid array index" compiler error signifies that the constant values have changed.
// Re-run the stringer command to generate them again.
func _ActionTypeNoOp() {
	var x [1]struct{}
	_ = x[ActionTypeCleared-(1)]
	_ = x[ActionTypeWarned-(2)]
	_ = x[ActionTypeSuspended-(3)]
	_ = x[ActionTypeBanned-(4)]
	_ = x[ActionTypeEscalated-(5)]
}

var _ActionTypeValues = []ActionType{ActionTypeCleared, ActionTypeWarned, ActionTypeSuspended, ActionTypeBanned, ActionTypeEscalated}

var _ActionTypeNameToValueMap = map[string]ActionType{
	_ActionTypeName[0:7]:        ActionTypeCleared,
	_ActionTypeLowerName[0:7]:   ActionTypeCleared,
	_ActionTypeName[7:13]:       ActionTypeWarned,
	_ActionTypeLowerName[7:13]:  ActionTypeWarned,
	_ActionTypeName[13:22]:      ActionTypeSuspended,
	_ActionTypeLowerName[13:22]: ActionTypeSuspended,
	_ActionTypeName[22:28]:      ActionTypeBanned,
	_ActionTypeLowerName[22:28]: ActionTypeBanned,
	_ActionTypeName[28:37]:      ActionTypeEscalated,
	_ActionTypeLowerName[28:37]: ActionTypeEscalated,
}

var _ActionTypeNames = []string{
	_ActionTypeName[0:7],
	_ActionTypeName[7:13],
	_ActionTypeName[13:22],
	_ActionTypeName[22:28],
	_ActionTypeName[28:37],
}

// ActionTypeString retrieves an enum value from the enum constants string name.
// Throws an error if the param is not part of the enum.
func ActionTypeString(s string) (ActionType, error) {
	if val, ok := _ActionTypeNameToValueMap[s]; ok {
		return val, nil
	}

	if val, ok := _ActionTypeNameToValueMap[strings.ToLower(s)]; ok {
		return val, nil
	}
	return 0, fmt.Errorf("%s does not belong to ActionType values", s)
}

// ActionTypeValues returns all values of the enum
func ActionTypeValues() []ActionType {
	return _ActionTypeValues
}

// ActionTypeStrings returns a slice of all String values of the enum
func ActionTypeStrings() []string {
	strs := make([]string, len(_ActionTypeNames))
	copy(strs, _ActionTypeNames)
	return strs
}

// IsAActionType returns "true" if the value is listed in the enum definition. "false" otherwise
func (i ActionType) IsAActionType() bool {
	for _, v := range _ActionTypeValues {
		if i == v {
			return true
		}
	}
	return false
}

// MarshalText implements the encoding.TextMarshaler interface for ActionType
func (i ActionType) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface for ActionType
func (i *ActionType) UnmarshalText(text []byte) error {
	var err error
	*i, err = ActionTypeString(string(text))
	return err
}
