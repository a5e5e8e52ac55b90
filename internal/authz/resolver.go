package authz

import (
	"time"

	"github.com/google/uuid"
)

// Override records a single deviation from a role's default capability
// value, produced when an administrator edits a user's custom permissions.
// Overrides are append-only audit records; a newer override for the same
// (module, capability) pair supersedes an older one, nothing is mutated.
type Override struct {
	ID            string
	Module        Module
	Capability    Capability
	Value         bool
	Justification string
	Actor         string
	At            time.Time
}

// Resolve produces the effective capability matrix for a user.
//
// With a nil custom matrix the role's template matrix is returned as a
// fresh copy. A non-nil custom matrix is returned verbatim (copied) with no
// merge against the role defaults; partial custom matrices are rejected by
// Matrix.Validate at the edit boundary, so full replacement is unambiguous.
func Resolve(role Role, custom Matrix) (Matrix, error) {
	if custom != nil {
		return custom.Clone(), nil
	}

	tpl, err := TemplateFor(role)
	if err != nil {
		return nil, err
	}

	return tpl.Matrix, nil
}

// Diff compares two matrices and emits one Override per (module,
// capability) pair whose boolean differs, carrying the new value. The
// function is pure: iteration follows the canonical module and capability
// order, so the emitted sequence is deterministic, and equal inputs produce
// an empty result.
func Diff(old, updated Matrix) []Override {
	var out []Override

	now := time.Now().UTC()

	for _, module := range Modules {
		for _, c := range Capabilities {
			was := old.Allows(module, c)
			is := updated.Allows(module, c)

			if was == is {
				continue
			}

			out = append(out, Override{
				ID:         uuid.NewString(),
				Module:     module,
				Capability: c,
				Value:      is,
				Actor:      "system",
				At:         now,
			})
		}
	}

	return out
}
