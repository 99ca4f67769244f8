// Code generated by "enumer -type=Trend -trimprefix=Trend -transform=title-lower -text"; DO NOT EDIT.

package enum

import (
	"fmt"
	"strings"
)

const _TrendName = "stablerisingfalling"

var _TrendIndex = [...]uint8{0, 6, 12, 19}

const _TrendLowerName = "stablerisingfalling"

func (i Trend) String() string {
	if i < 0 || i >= Trend(len(_TrendIndex)-1) {
		return fmt.Sprintf("Trend(%d)", i)
	}
	return _TrendName[_TrendIndex[i]:_TrendIndex[i+1]]
}

// An "invalid array index" compiler error signifies that the constant values have changed.
// Re-run the stringer command to generate them again.
func _TrendNoOp() {
	var x [1]struct{}
	_ = x[TrendStable-(0)]
	_ = x[TrendRising-(1)]
	_ = x[TrendFalling-(2)]
}

var _TrendValues = []Trend{TrendStable, TrendRising, TrendFalling}

var _TrendNameToValueMap = map[string]Trend{
	_TrendName[0:6]:        TrendStable,
	_TrendLowerName[0:6]:   TrendStable,
	_TrendName[6:12]:       TrendRising,
	_TrendLowerName[6:12]:  TrendRising,
	_TrendName[12:19]:      TrendFalling,
	_TrendLowerName[12:19]: TrendFalling,
}

var _TrendNames = []string{
	_TrendName[0:6],
	_TrendName[6:12],
	_TrendName[12:19],
}

// TrendString retrieves an enum value from the enum constants string name.
// Throws an error if the param is not part of the enum.
func TrendString(s string) (Trend, error) {
	if val, ok := _TrendNameToValueMap[s]; ok {
		return val, nil
	}

	if val, ok := _TrendNameToValueMap[strings.ToLower(s)]; ok {
		return val, nil
	}
	return 0, fmt.Errorf("%s does not belong to Trend values", s)
}

// TrendValues returns all values of the enum
func TrendValues() []Trend {
	return _TrendValues
}

// TrendStrings returns a slice of all String values of the enum
func TrendStrings() []string {
	strs := make([]string, len(_TrendNames))
	copy(strs, _TrendNames)
	return strs
}

// IsATrend returns "true" if the value is listed in the enum definition. "false" otherwise
func (i Trend) IsATrend() bool {
	for _, v := range _TrendValues {
		if i == v {
			return true
		}
	}
	return false
}

// MarshalText implements the encoding.TextMarshaler interface for Trend
func (i Trend) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface for Trend
func (i *Trend) UnmarshalText(text []byte) error {
	var err error
	*i, err = TrendString(string(text))
	return err
}
