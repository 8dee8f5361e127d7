package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidStatus indicates a workflow transition not allowed from the current status.
	ErrInvalidStatus = errors.New("invalid status transition")
	// ErrInvalidCode indicates login code verification failure.
	ErrInvalidCode = errors.New("invalid login code")
)
