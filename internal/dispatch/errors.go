package dispatch

import "errors"

var (
	// ErrNotFound is returned when no execution has the requested id.
	ErrNotFound = errors.New("dispatch: execution not found")

	// ErrEmptyAddress is returned by ParseSelection for a blank selection.
	ErrEmptyAddress = errors.New("dispatch: empty selection address")
)
