package authz

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownRole is returned when a role tag outside the closed set is
	// looked up in the catalog. Stored data carrying such a tag is a data
	// bug and must surface loudly instead of silently falling back to a
	// default role's permissions.
	ErrUnknownRole = errors.New("unknown role")
)

// IncompleteMatrixError reports a capability matrix failing the
// schema-completeness check.
type IncompleteMatrixError struct {
	Module     Module
	Capability Capability
}

func (e *IncompleteMatrixError) Error() string {
	if e.Capability == "" {
		return fmt.Sprintf("incomplete capability matrix: module %q missing", e.Module)
	}

	return fmt.Sprintf("incomplete capability matrix: module %q missing capability %q", e.Module, e.Capability)
}
