// Package authz implements the permission model of the application.
//
// Access control is organized around three closed sets: roles, modules and
// capabilities. Each role carries a static RoleTemplate whose capability
// matrix maps every module to all eight capability booleans. A user either
// inherits the template matrix of their role or carries a custom matrix
// that replaces it verbatim.
//
// The package provides four collaborating pieces:
//   - the catalog: the immutable role templates and their validation
//   - the resolver: effective-matrix resolution and matrix diffing
//   - the guard: an ordered policy chain evaluated per protected action
//   - the location filter: site-based visibility scoping of records
//
// The guard is fail-closed: a missing module or capability key in a matrix
// is treated as a denial, never as an error.
package authz
