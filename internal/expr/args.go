package expr

import (
	"fmt"

	"github.com/spf13/cast"
)

// Args holds the evaluated positional arguments passed to an Operation.
// The typed accessors coerce loosely typed document values (JSON numbers
// arrive as float64 or int, booleans sometimes as "true") into the type the
// operation needs.
type Args []any

// String returns argument i as a string.
func (a Args) String(i int) (string, error) {
	if err := a.check(i); err != nil {
		return "", err
	}
	s, err := cast.ToStringE(a[i])
	if err != nil {
		return "", fmt.Errorf("%w %d: %w", ErrArgument, i, err)
	}
	return s, nil
}

// Int returns argument i as an int.
func (a Args) Int(i int) (int, error) {
	if err := a.check(i); err != nil {
		return 0, err
	}
	n, err := cast.ToIntE(a[i])
	if err != nil {
		return 0, fmt.Errorf("%w %d: %w", ErrArgument, i, err)
	}
	return n, nil
}

// Float returns argument i as a float64.
func (a Args) Float(i int) (float64, error) {
	if err := a.check(i); err != nil {
		return 0, err
	}
	f, err := cast.ToFloat64E(a[i])
	if err != nil {
		return 0, fmt.Errorf("%w %d: %w", ErrArgument, i, err)
	}
	return f, nil
}

// Bool returns argument i as a bool.
func (a Args) Bool(i int) (bool, error) {
	if err := a.check(i); err != nil {
		return false, err
	}
	b, err := cast.ToBoolE(a[i])
	if err != nil {
		return false, fmt.Errorf("%w %d: %w", ErrArgument, i, err)
	}
	return b, nil
}

// Map returns argument i as a string-keyed map.
func (a Args) Map(i int) (map[string]any, error) {
	if err := a.check(i); err != nil {
		return nil, err
	}
	m, err := cast.ToStringMapE(a[i])
	if err != nil {
		return nil, fmt.Errorf("%w %d: %w", ErrArgument, i, err)
	}
	return m, nil
}

func (a Args) check(i int) error {
	if i < 0 || i >= len(a) {
		return fmt.Errorf("%w: index %d out of range (have %d)", ErrArgument, i, len(a))
	}
	return nil
}
