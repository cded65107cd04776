package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/video-route/internal/routing"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Driver sends an ordered command batch to one endpoint.
//
// Implementations own their connection for the duration of the call and
// must bound every blocking operation with a timeout. The returned string
// is the last device response where the protocol has one, or "".
type Driver interface {
	Send(ctx context.Context, endpoint routing.Endpoint, payload routing.Payload) (string, error)
}

// Constructor performs a kind's one-time setup and returns its driver.
type Constructor func() (Driver, error)

// slot memoizes one kind's construction.
type slot struct {
	once   sync.Once
	driver Driver
	err    error
}

// Registry maps protocol kinds to drivers, constructing each driver on first
// use.
//
// Construction is attempted at most once per kind. A kind whose constructor
// fails is logged once and every later request for it returns
// ErrKindUnavailable; it is never retried.
//
// Thread Safety: all methods are safe for concurrent use. The slot map is
// built in NewRegistry and never modified afterwards.
type Registry struct {
	slots        map[routing.Kind]*slot
	constructors map[routing.Kind]Constructor
	logger       Logger
}

// NewRegistry creates a registry from per-kind constructors. Nothing is
// constructed until a kind is first requested.
func NewRegistry(constructors map[routing.Kind]Constructor) *Registry {
	r := &Registry{
		slots:        make(map[routing.Kind]*slot, len(constructors)),
		constructors: make(map[routing.Kind]Constructor, len(constructors)),
		logger:       noopLogger{},
	}
	for kind, c := range constructors {
		r.constructors[kind] = c
		r.slots[kind] = &slot{}
	}
	return r
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Driver returns the driver for kind, constructing it on first call.
//
// Returns:
//   - Driver: The memoized driver
//   - error: ErrNoDriver, or ErrKindUnavailable wrapping the construction error
func (r *Registry) Driver(kind routing.Kind) (Driver, error) {
	s, ok := r.slots[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoDriver, kind)
	}
	s.once.Do(func() {
		start := time.Now()
		s.driver, s.err = r.constructors[kind]()
		if s.err != nil {
			r.logger.Error("driver initialisation failed, kind disabled",
				"kind", kind, "error", s.err)
			return
		}
		r.logger.Debug("driver initialised", "kind", kind, "duration", time.Since(start))
	})
	if s.err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrKindUnavailable, kind, s.err)
	}
	return s.driver, nil
}

// EnsureInitialised constructs the driver for kind if it has not been yet.
func (r *Registry) EnsureInitialised(kind routing.Kind) error {
	_, err := r.Driver(kind)
	return err
}

// Send dispatches payload to endpoint through its kind's driver.
// Errors are prefixed with the endpoint name.
func (r *Registry) Send(ctx context.Context, endpoint routing.Endpoint, payload routing.Payload) (string, error) {
	d, err := r.Driver(endpoint.Kind)
	if err != nil {
		return "", fmt.Errorf("endpoint %q: %w", endpoint.Name, err)
	}
	resp, err := d.Send(ctx, endpoint, payload)
	if err != nil {
		return resp, fmt.Errorf("endpoint %q: %w", endpoint.Name, err)
	}
	return resp, nil
}

// Initialise sends each endpoint's startup commands once.
//
// Endpoints are processed in order. Failures are logged and collected but
// never stop the remaining endpoints; callers treat the result as
// informational and continue starting up.
//
// Parameters:
//   - ctx: Context for the startup sends
//   - endpoints: Endpoints to initialise (those without Init are skipped)
//   - skip: When true nothing is sent
//
// Returns:
//   - error: Joined per-endpoint failures, nil if all succeeded
func (r *Registry) Initialise(ctx context.Context, endpoints []routing.Endpoint, skip bool) error {
	if skip {
		r.logger.Info("endpoint initialisation skipped")
		return nil
	}

	var errs []error
	for _, ep := range endpoints {
		if ep.Init.IsEmpty() {
			continue
		}
		if _, err := r.Send(ctx, ep, ep.Init); err != nil {
			r.logger.Warn("endpoint initialisation failed", "endpoint", ep.Name, "kind", ep.Kind, "error", err)
			errs = append(errs, err)
			continue
		}
		r.logger.Info("endpoint initialised", "endpoint", ep.Name, "kind", ep.Kind, "commands", ep.Init.Len())
	}
	return errors.Join(errs...)
}
