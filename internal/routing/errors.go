package routing

import "errors"

// Domain errors for the routing package.
//
// Resolution misses are reported with errors so callers can log the reason,
// but a miss is never fatal: the returned target list is simply empty.
var (
	// ErrInvalidDocument is returned when a routing document cannot be parsed
	// or fails validation.
	ErrInvalidDocument = errors.New("routing: invalid document")

	// ErrUnknownKind is returned when an endpoint declares a protocol kind
	// that has no driver.
	ErrUnknownKind = errors.New("routing: unknown protocol kind")

	// ErrInvalidKey is returned when a tree key is empty or contains the
	// address delimiter.
	ErrInvalidKey = errors.New("routing: invalid key")

	// ErrInvalidPayload is returned when a command payload does not have the
	// shape its endpoint kind requires.
	ErrInvalidPayload = errors.New("routing: invalid payload")

	// ErrEmptyAddress is returned when an empty address is resolved.
	ErrEmptyAddress = errors.New("routing: empty address")

	// ErrUnknownSegment is returned when an address segment has no matching
	// child in the current group.
	ErrUnknownSegment = errors.New("routing: unknown address segment")

	// ErrLeafOverrun is returned when an address continues past a leaf.
	ErrLeafOverrun = errors.New("routing: address continues past a leaf")

	// ErrGroupTarget is returned when an address ends on a group.
	ErrGroupTarget = errors.New("routing: address names a group")
)
