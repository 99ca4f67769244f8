package queue

import "errors"

var (
	// ErrEmptyDraftID is returned when a draft id is blank.
	ErrEmptyDraftID = errors.New("draft id must not be empty")
	// ErrInvalidBatchSize is returned when Dequeue is asked for fewer than one draft.
	ErrInvalidBatchSize = errors.New("batch size must be at least 1")
)
