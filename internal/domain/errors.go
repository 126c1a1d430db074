package domain

import "errors"

var (
	// ErrInvalidInput marks caller mistakes: malformed addresses, missing
	// required fields, unparseable timestamps in user-facing calls.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned by repositories when a requested record does not exist.
	ErrNotFound = errors.New("not found")
)
