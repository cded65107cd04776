package expr

import (
	"fmt"
	"sort"
	"strings"
)

// pullKeyword marks an argument that projects a named attribute from a
// nested call: {"pull": {"attr": {"getState": []}}}.
const pullKeyword = "pull"

// Invocation is a call of a named operation with positional arguments.
//
// In a routing document an invocation is a single-key mapping from the
// operation name to its argument list:
//
//	{"setProgram": [1, {"pull": {"input": {"getInput": ["camera 2"]}}}]}
type Invocation struct {
	Name string `json:"name"`
	Args []Arg  `json:"args,omitempty"`
}

// Arg is one positional argument of an Invocation.
//
// Exactly one of Literal or Call is meaningful. When Call is set the nested
// invocation is evaluated first and its result is reduced to a scalar by
// projecting Attr (or the default attribute when Attr is empty).
type Arg struct {
	Literal any         `json:"literal,omitempty"`
	Call    *Invocation `json:"call,omitempty"`
	Attr    string      `json:"attr,omitempty"`
}

// IsCall reports whether the argument is a nested invocation.
func (a Arg) IsCall() bool {
	return a.Call != nil
}

// String renders the invocation in a compact call syntax for logs:
// setSource(pull(getState(), "attr")).
func (inv Invocation) String() string {
	parts := make([]string, len(inv.Args))
	for i, a := range inv.Args {
		switch {
		case a.Call != nil && a.Attr != "":
			parts[i] = fmt.Sprintf("pull(%s, %q)", a.Call, a.Attr)
		case a.Call != nil:
			parts[i] = a.Call.String()
		default:
			parts[i] = fmt.Sprintf("%#v", a.Literal)
		}
	}
	return inv.Name + "(" + strings.Join(parts, ", ") + ")"
}

// Parse converts a decoded document value into an Invocation.
//
// The value must be a single-key mapping whose value is the argument list.
// A null argument list is accepted as "no arguments". A scalar argument list
// is accepted as a single argument, so {"cut": 1} behaves like {"cut": [1]}.
//
// Parameters:
//   - v: Value produced by a YAML or JSON decoder (map[string]any at the top)
//
// Returns:
//   - Invocation: Parsed expression tree
//   - error: ErrInvalidExpression describing what was wrong
func Parse(v any) (Invocation, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Invocation{}, fmt.Errorf("%w: expected a single-key mapping, got %T", ErrInvalidExpression, v)
	}
	if len(m) != 1 {
		return Invocation{}, fmt.Errorf("%w: expected exactly one operation name, got %d keys (%s)",
			ErrInvalidExpression, len(m), strings.Join(sortedKeys(m), ", "))
	}

	for name, raw := range m {
		if name == "" {
			return Invocation{}, fmt.Errorf("%w: empty operation name", ErrInvalidExpression)
		}
		if name == pullKeyword {
			return Invocation{}, fmt.Errorf("%w: %q is only valid as an argument", ErrInvalidExpression, pullKeyword)
		}

		var rawArgs []any
		switch a := raw.(type) {
		case nil:
		case []any:
			rawArgs = a
		default:
			rawArgs = []any{a}
		}

		inv := Invocation{Name: name, Args: make([]Arg, 0, len(rawArgs))}
		for i, ra := range rawArgs {
			arg, err := parseArg(ra)
			if err != nil {
				return Invocation{}, fmt.Errorf("%s argument %d: %w", name, i, err)
			}
			inv.Args = append(inv.Args, arg)
		}
		return inv, nil
	}

	// Unreachable: len(m) == 1.
	return Invocation{}, ErrInvalidExpression
}

// ParseList parses every element of an ordered command list.
func ParseList(values []any) ([]Invocation, error) {
	out := make([]Invocation, 0, len(values))
	for i, v := range values {
		inv, err := Parse(v)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		out = append(out, inv)
	}
	return out, nil
}

// parseArg classifies one argument.
//
//   - {"pull": {"attr": <call>}} is a projection of attr from <call>
//   - a single-key mapping whose value is a list (or null) is a nested call
//   - everything else, including multi-key mappings, is a literal
func parseArg(v any) (Arg, error) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return Arg{Literal: v}, nil
	}

	for key, raw := range m {
		if key == pullKeyword {
			return parsePull(raw)
		}
		switch raw.(type) {
		case nil, []any:
			call, err := Parse(m)
			if err != nil {
				return Arg{}, err
			}
			return Arg{Call: &call}, nil
		}
	}

	return Arg{Literal: v}, nil
}

func parsePull(raw any) (Arg, error) {
	inner, ok := raw.(map[string]any)
	if !ok || len(inner) != 1 {
		return Arg{}, fmt.Errorf("%w: %q expects {attribute: call}", ErrInvalidExpression, pullKeyword)
	}
	for attr, callRaw := range inner {
		if attr == "" {
			return Arg{}, fmt.Errorf("%w: %q with empty attribute name", ErrInvalidExpression, pullKeyword)
		}
		call, err := Parse(callRaw)
		if err != nil {
			return Arg{}, fmt.Errorf("%s %q: %w", pullKeyword, attr, err)
		}
		return Arg{Call: &call, Attr: attr}, nil
	}
	return Arg{}, ErrInvalidExpression
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
