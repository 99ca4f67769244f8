package review

import (
	"context"
	"strings"
)

// Authorizer decides whether an acting user may mutate review state.
type Authorizer interface {
	IsAdmin(ctx context.Context, adminID string) bool
}

// AllowList authorizes a fixed set of admin ids.
type AllowList struct {
	ids map[string]struct{}
}

// NewAllowList creates an AllowList. Blank ids are ignored.
func NewAllowList(adminIDs []string) *AllowList {
	ids := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids[id] = struct{}{}
		}
	}
	return &AllowList{ids: ids}
}

// IsAdmin implements Authorizer.
func (a *AllowList) IsAdmin(_ context.Context, adminID string) bool {
	_, ok := a.ids[adminID]
	return ok
}
