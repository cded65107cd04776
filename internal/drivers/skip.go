package drivers

import (
	"errors"

	"github.com/nerrad567/video-route/internal/expr"
)

// Skippable reports whether an invocation error affects only that one
// invocation, so the rest of the batch can still run. Evaluation errors
// from package expr always qualify; extra lists the driver's own
// per-request failures that do too.
func Skippable(err error, extra ...error) bool {
	if errors.Is(err, expr.ErrUnknownOperation) ||
		errors.Is(err, expr.ErrArity) ||
		errors.Is(err, expr.ErrArgument) ||
		errors.Is(err, expr.ErrNoAttribute) ||
		errors.Is(err, expr.ErrEmptyResult) {
		return true
	}
	for _, target := range extra {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
