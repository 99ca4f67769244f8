package convert

import (
	"net/url"
	"strconv"

	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/robalyx/draftguard/internal/database/types/enum"
)

// Limit reads the page size. Missing means the service default; values above maxLimit are capped.
func Limit(query url.Values, maxLimit int) (int, error) {
	raw := query.Get("limit")
	if raw == "" {
		return 0, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, types.NewValidationError("limit", "must be a positive integer")
	}
	return min(limit, maxLimit), nil
}

// Float reads an optional float parameter.
func Float(query url.Values, name string) (float64, error) {
	raw := query.Get(name)
	if raw == "" {
		return 0, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, types.NewValidationError(name, "must be a number")
	}
	return v, nil
}

// ReviewStatus reads an optional review status parameter.
func ReviewStatus(query url.Values, name string) (*enum.ReviewStatus, error) {
	raw := query.Get(name)
	if raw == "" {
		return nil, nil
	}

	status, err := enum.ReviewStatusString(raw)
	if err != nil {
		return nil, types.NewValidationError(name, "unknown review status %q", raw)
	}
	return &status, nil
}

// RiskLevel reads an optional risk level parameter. Missing means none.
func RiskLevel(query url.Values, name string) (enum.RiskLevel, error) {
	raw := query.Get(name)
	if raw == "" {
		return enum.RiskLevelNone, nil
	}

	level, err := enum.RiskLevelString(raw)
	if err != nil {
		return 0, types.NewValidationError(name, "unknown risk level %q", raw)
	}
	return level, nil
}

// TargetType reads an optional target type parameter.
func TargetType(query url.Values, name string) (*enum.TargetType, error) {
	raw := query.Get(name)
	if raw == "" {
		return nil, nil
	}

	target, err := enum.TargetTypeString(raw)
	if err != nil {
		return nil, types.NewValidationError(name, "unknown target type %q", raw)
	}
	return &target, nil
}
