package drivers

import "errors"

// Shared driver errors.
var (
	// ErrInvalidParams is returned when endpoint parameters cannot be decoded
	// or a required parameter is missing.
	ErrInvalidParams = errors.New("drivers: invalid endpoint parameters")

	// ErrWrongPayload is returned when a driver receives the payload shape of
	// another kind.
	ErrWrongPayload = errors.New("drivers: payload shape does not match kind")
)
