// Package convert maps between REST wire values and storage types.
package convert

import (
	"encoding/base64"

	"github.com/bytedance/sonic"
	"github.com/robalyx/draftguard/internal/database/types"
)

// EncodeCursor turns a page cursor into an opaque string. A nil cursor is the empty string.
func EncodeCursor[T any](cursor *T) (string, error) {
	if cursor == nil {
		return "", nil
	}

	data, err := sonic.Marshal(cursor)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeCursor parses a string produced by EncodeCursor. The empty string is the first page.
func DecodeCursor[T any](raw string) (*T, error) {
	if raw == "" {
		return nil, nil
	}

	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, types.NewValidationError("cursor", "malformed cursor")
	}

	var cursor T
	if err := sonic.Unmarshal(data, &cursor); err != nil {
		return nil, types.NewValidationError("cursor", "malformed cursor")
	}
	return &cursor, nil
}
