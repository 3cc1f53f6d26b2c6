package store

import "errors"

var (
	// ErrNotFound is returned for missing records and for records owned by
	// another user; callers cannot tell the two apart.
	ErrNotFound = errors.New("store: not found")

	// ErrScreenshotIndex is returned when a screenshot index is out of range.
	ErrScreenshotIndex = errors.New("store: screenshot not found")

	ErrInvalidStat = errors.New("store: unknown stat")

	// ErrDuplicateID is returned when an insert reuses an existing record id.
	ErrDuplicateID = errors.New("store: duplicate id")
)
