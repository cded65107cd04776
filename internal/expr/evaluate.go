package expr

import (
	"context"
	"fmt"
	"sort"
)

// Variadic marks an Operation that accepts any number of arguments.
const Variadic = -1

// Operation is one entry in a target's operation table.
//
// Call receives the evaluated, fully literal arguments in order. Arity is the
// exact argument count the operation accepts, or Variadic.
type Operation[T any] struct {
	Arity int
	Call  func(ctx context.Context, target T, args Args) (any, error)
}

// Table is the closed set of operations that can be invoked on a target of
// type T. Names not present in the table are rejected; there is no fallback
// to method lookup on the target.
//
// Thread Safety: a Table is immutable after construction and safe for
// concurrent use.
type Table[T any] struct {
	ops       map[string]Operation[T]
	normalize func(string) string
}

// NewTable builds a table from a name to operation map. The map is copied.
func NewTable[T any](ops map[string]Operation[T]) *Table[T] {
	cp := make(map[string]Operation[T], len(ops))
	for name, op := range ops {
		cp[name] = op
	}
	return &Table[T]{ops: cp}
}

// WithNormalizer returns a copy of the table that retries failed lookups
// with fn(name). Drivers use it to accept alternate spellings of the same
// operation (snake_case for PascalCase request names, for example).
func (t *Table[T]) WithNormalizer(fn func(string) string) *Table[T] {
	return &Table[T]{ops: t.ops, normalize: fn}
}

// Lookup returns the operation registered under name.
func (t *Table[T]) Lookup(name string) (Operation[T], string, bool) {
	if op, ok := t.ops[name]; ok {
		return op, name, true
	}
	if t.normalize != nil {
		canonical := t.normalize(name)
		if op, ok := t.ops[canonical]; ok {
			return op, canonical, true
		}
	}
	return Operation[T]{}, "", false
}

// Names returns the registered operation names in sorted order.
func (t *Table[T]) Names() []string {
	names := make([]string, 0, len(t.ops))
	for name := range t.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Evaluate reduces an invocation against target, innermost call first.
//
// For every argument that is itself an invocation, Evaluate recurses against
// the same target and then reduces the nested result to a scalar with
// Project (using the argument's Attr, or the default attribute). Once every
// argument is literal, the named operation is called with them in order.
//
// Parameters:
//   - ctx: Context passed through to every operation
//   - table: Closed operation table for the target type
//   - target: The live session the operations act on
//   - inv: The invocation to evaluate
//
// Returns:
//   - any: The operation result (may be nil)
//   - error: ErrUnknownOperation, ErrArity, a projection error, or the
//     operation's own error
func Evaluate[T any](ctx context.Context, table *Table[T], target T, inv Invocation) (any, error) {
	op, canonical, ok := table.Lookup(inv.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, inv.Name)
	}

	args := make(Args, len(inv.Args))
	for i, a := range inv.Args {
		if a.Call == nil {
			args[i] = a.Literal
			continue
		}

		result, err := Evaluate(ctx, table, target, *a.Call)
		if err != nil {
			return nil, fmt.Errorf("%s argument %d: %w", inv.Name, i, err)
		}
		scalar, err := Project(result, a.Attr)
		if err != nil {
			return nil, fmt.Errorf("%s argument %d: %w", inv.Name, i, err)
		}
		args[i] = scalar
	}

	if op.Arity != Variadic && len(args) != op.Arity {
		return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrArity, canonical, op.Arity, len(args))
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", canonical, err)
	}

	result, err := op.Call(ctx, target, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", canonical, err)
	}
	return result, nil
}
