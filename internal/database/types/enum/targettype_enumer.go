// Code generated by "enumer -type=TargetType -trimprefix=TargetType -transform=title-lower -text"; DO NOT EDIT.

package enum

import (
	"fmt"
	"strings"
)

const _TargetTypeName = "draftuserPairuser"

var _TargetTypeIndex = [...]uint8{0, 5, 13, 17}

const _TargetTypeLowerName = "draftuserpairuser"

func (i TargetType) String() string {
	i -= 1
	if i < 0 || i >= TargetType(len(_TargetTypeIndex)-1) {
		return fmt.Sprintf("TargetType(%d)", i+1)
	}
	return _TargetTypeName[_TargetTypeIndex[i]:_TargetTypeIndex[i+1]]
}

// An "invalid array index" compiler error signifies that the constant values have changed.
// Re-run the stringer command to generate them again.
func _TargetTypeNoOp() {
	var x [1]struct{}
	_ = x[TargetTypeDraft-(1)]
	_ = x[TargetTypeUserPair-(2)]
	_ = x[TargetTypeUser-(3)]
}

var _TargetTypeValues = []TargetType{TargetTypeDraft, TargetTypeUserPair, TargetTypeUser}

var _TargetTypeNameToValueMap = map[string]TargetType{
	_TargetTypeName[0:5]:        TargetTypeDraft,
	_TargetTypeLowerName[0:5]:   TargetTypeDraft,
	_TargetTypeName[5:13]:       TargetTypeUserPair,
	_TargetTypeLowerName[5:13]:  TargetTypeUserPair,
	_TargetTypeName[13:17]:      TargetTypeUser,
	_TargetTypeLowerName[13:17]: TargetTypeUser,
}

var _TargetTypeNames = []string{
	_TargetTypeName[0:5],
	_TargetTypeName[5:13],
	_TargetTypeName[13:17],
}

// TargetTypeString retrieves an enum value from the enum constants string name.
// Throws an error if the param is not part of the enum.
func TargetTypeString(s string) (TargetType, error) {
	if val, ok := _TargetTypeNameToValueMap[s]; ok {
		return val, nil
	}

	if val, ok := _TargetTypeNameToValueMap[strings.ToLower(s)]; ok {
		return val, nil
	}
	return 0, fmt.Errorf("%s does not belong to TargetType values", s)
}

// TargetTypeValues returns all values of the enum
func TargetTypeValues() []TargetType {
	return _TargetTypeValues
}

// TargetTypeStrings returns a slice of all String values of the enum
func TargetTypeStrings() []string {
	strs := make([]string, len(_TargetTypeNames))
	copy(strs, _TargetTypeNames)
	return strs
}

// IsATargetType returns "true" if the value is listed in the enum definition. "false" otherwise
func (i TargetType) IsATargetType() bool {
	for _, v := range _TargetTypeValues {
		if i == v {
			return true
		}
	}
	return false
}

// MarshalText implements the encoding.TextMarshaler interface for TargetType
func (i TargetType) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface for TargetType
func (i *TargetType) UnmarshalText(text []byte) error {
	var err error
	*i, err = TargetTypeString(string(text))
	return err
}
