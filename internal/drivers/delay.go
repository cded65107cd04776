package drivers

import (
	"context"
	"time"
)

// Pause waits d between two commands of a batch. It returns early with the
// context error if ctx ends first. A zero or negative d returns at once.
func Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
