package expr

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode"

	"github.com/mitchellh/mapstructure"
)

// Project reduces an operation result to the scalar an outer invocation
// consumes.
//
// Objects are maps with string keys, or structs (converted to a map with
// mapstructure, so `mapstructure:"name"` tags define attribute names). For an
// object, attr selects the attribute; an empty attr selects the first
// attribute in ascending lexicographic order of attribute names. That order is
// fixed so the same document always projects the same value.
//
// Non-object results project to themselves when attr is empty.
//
// Attribute lookup accepts both spellings of a name, so "scene_item_id" finds
// "sceneItemId" and the other way round.
//
// Parameters:
//   - value: Result of a nested invocation
//   - attr: Attribute to select, or "" for the default attribute
//
// Returns:
//   - any: The projected value
//   - error: ErrNoAttribute or ErrEmptyResult
func Project(value any, attr string) (any, error) {
	obj, ok := AsObject(value)
	if !ok {
		if attr == "" {
			return value, nil
		}
		return nil, fmt.Errorf("%w: %q on non-object result %T", ErrNoAttribute, attr, value)
	}

	if attr == "" {
		names := Attributes(obj)
		if len(names) == 0 {
			return nil, ErrEmptyResult
		}
		return obj[names[0]], nil
	}

	for _, candidate := range []string{attr, snakeToCamel(attr), camelToSnake(attr)} {
		if v, ok := obj[candidate]; ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %q (have %s)", ErrNoAttribute, attr, strings.Join(Attributes(obj), ", "))
}

// Attributes returns the attribute names of an object in projection order.
func Attributes(obj map[string]any) []string {
	names := make([]string, 0, len(obj))
	for name := range obj {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AsObject returns value as an attribute map if it is a map or struct.
func AsObject(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return v, true
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out, true
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}

	out := make(map[string]any)
	if err := mapstructure.Decode(rv.Interface(), &out); err != nil {
		return nil, false
	}
	return out, true
}

// snakeToCamel converts scene_item_id to sceneItemId.
func snakeToCamel(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}
	parts := strings.Split(s, "_")
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// camelToSnake converts sceneItemId to scene_item_id.
func camelToSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
