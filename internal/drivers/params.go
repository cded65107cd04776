package drivers

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// DecodeParams decodes endpoint parameters into out, a pointer to a struct
// with `mapstructure` tags.
//
// Decoding is weakly typed so that "9600" and 9600 both decode into an int
// field. Fields missing from params keep the values already in out, so
// callers fill defaults before decoding.
func DecodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return nil
}

// Millis converts a millisecond parameter into a duration, falling back to
// def when ms is not positive.
func Millis(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// Require returns ErrInvalidParams naming key when value is empty.
func Require(key, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %q is required", ErrInvalidParams, key)
	}
	return nil
}
