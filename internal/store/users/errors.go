package users

import "errors"

var (
	// ErrDuplicateIdentity is returned when a create or update would give
	// two users the same username or email.
	ErrDuplicateIdentity = errors.New("user with username or email already exists")

	// ErrUserNotFound is returned when the requested user is not in the
	// local store.
	ErrUserNotFound = errors.New("user not found")

	// ErrDBNil is returned when the store is constructed without a
	// database connection.
	ErrDBNil = errors.New("database connection is nil")
)
