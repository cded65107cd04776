package expr

import "errors"

// Domain errors for expression parsing and evaluation.
var (
	// ErrInvalidExpression is returned when a document value is not a
	// well-formed invocation.
	ErrInvalidExpression = errors.New("expr: invalid invocation expression")

	// ErrUnknownOperation is returned when an invocation names an operation
	// that is not in the target's operation table.
	ErrUnknownOperation = errors.New("expr: unknown operation")

	// ErrArity is returned when an operation is invoked with the wrong
	// number of arguments.
	ErrArity = errors.New("expr: wrong number of arguments")

	// ErrArgument is returned when an argument cannot be coerced to the
	// type an operation expects.
	ErrArgument = errors.New("expr: invalid argument")

	// ErrNoAttribute is returned when a projection names an attribute the
	// result does not expose.
	ErrNoAttribute = errors.New("expr: attribute not found")

	// ErrEmptyResult is returned when a default projection is requested on
	// an object with no attributes.
	ErrEmptyResult = errors.New("expr: result has no attributes")
)
