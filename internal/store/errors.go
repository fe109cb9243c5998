package store

import "errors"

var (
	// ErrPermissionDenied is returned by gated mutators when the acting
	// user's role does not carry the required permission code.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when a mutator targets a missing record.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned for empty titles, unknown enum values and
	// non-finite KPI values.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRoleInUse is returned when deleting a role that users still hold.
	ErrRoleInUse = errors.New("role still assigned to users")

	// ErrClosed is returned by mutators after Close.
	ErrClosed = errors.New("store closed")
)
