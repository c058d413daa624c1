package store

import "errors"

// ErrNotFound is returned when an operation addresses an unknown id.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicateID is returned when an append collides with an existing id.
// This indicates a caller bug and is never silently ignored.
var ErrDuplicateID = errors.New("store: duplicate id")
