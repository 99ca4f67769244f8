package enum

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

// ErrScanType is returned when a column holds something other than an integer.
var ErrScanType = errors.New("enum column is not an integer")

// Enums are stored as their integer values so risk levels sort by severity.

func (i ActionType) Value() (driver.Value, error)   { return int64(i), nil }
func (i TargetType) Value() (driver.Value, error)   { return int64(i), nil }
func (i ReviewStatus) Value() (driver.Value, error) { return int64(i), nil }
func (i RiskLevel) Value() (driver.Value, error)    { return int64(i), nil }
func (i Trend) Value() (driver.Value, error)        { return int64(i), nil }

func (i *ActionType) Scan(src any) error   { return scanInto(src, i) }
func (i *TargetType) Scan(src any) error   { return scanInto(src, i) }
func (i *ReviewStatus) Scan(src any) error { return scanInto(src, i) }
func (i *RiskLevel) Scan(src any) error    { return scanInto(src, i) }
func (i *Trend) Scan(src any) error        { return scanInto(src, i) }

func scanInto[T ~int](src any, dst *T) error {
	switch v := src.(type) {
	case int64:
		*dst = T(v)
	case int32:
		*dst = T(v)
	case int:
		*dst = T(v)
	case nil:
		*dst = 0
	default:
		return fmt.Errorf("%w: %T", ErrScanType, src)
	}
	return nil
}
