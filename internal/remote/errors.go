package remote

import "errors"

var (
	// ErrUnavailable is returned when the remote store is unreachable or
	// answered with a server error. Callers log it and continue with the
	// local mutation.
	ErrUnavailable = errors.New("remote store unavailable")

	// ErrNotFound is returned when the remote store does not know the
	// requested record. This is a distinct outcome from the store erroring.
	ErrNotFound = errors.New("remote record not found")
)
