package controller

import "errors"

// Domain errors for the controller package.
var (
	// ErrNoDriver is returned when no constructor is registered for a kind.
	ErrNoDriver = errors.New("controller: no driver for kind")

	// ErrKindUnavailable is returned for every dispatch to a kind whose
	// driver failed to initialise. The failure is permanent for the process.
	ErrKindUnavailable = errors.New("controller: protocol kind unavailable")
)
