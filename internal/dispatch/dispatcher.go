package dispatch

import (
	"context"
	"time"

	"github.com/nerrad567/video-route/internal/routing"
)

// Logger defines the logging interface used by the Dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DocumentLoader re-reads the routing document. *routing.Loader satisfies it.
type DocumentLoader interface {
	Load() (*routing.Document, error)
}

// Sender delivers one target's payload. *controller.Registry satisfies it.
type Sender interface {
	Send(ctx context.Context, endpoint routing.Endpoint, payload routing.Payload) (string, error)
}

// EventPublisher publishes finished executions to the message bus.
type EventPublisher interface {
	PublishDispatch(exec *Execution) error
}

// WSHub broadcasts events to websocket clients.
type WSHub interface {
	Broadcast(channel string, payload any)
}

// MetricsWriter records per-endpoint dispatch timings.
type MetricsWriter interface {
	WriteEndpointDispatch(endpoint, kind string, duration time.Duration, ok bool)
}

// EventDispatchCompleted is the websocket channel for finished executions.
const EventDispatchCompleted = "dispatch.completed"

// maxDispatchTime bounds one whole execution.
const maxDispatchTime = 2 * time.Minute

// Deps are the Dispatcher's collaborators. Loader and Sender are required;
// the rest may be nil.
type Deps struct {
	Loader  DocumentLoader
	Sender  Sender
	Repo    Repository
	Events  EventPublisher
	Hub     WSHub
	Metrics MetricsWriter
	Logger  Logger
}

// Dispatcher resolves selection addresses and drives the endpoints.
//
// Thread Safety: ResolveAndDispatch and Tree are safe for concurrent use.
// Concurrent dispatches may interleave on the wire; each driver call opens
// its own connection.
type Dispatcher struct {
	loader  DocumentLoader
	sender  Sender
	repo    Repository
	events  EventPublisher
	hub     WSHub
	metrics MetricsWriter
	logger  Logger
}

// New creates a Dispatcher.
func New(deps Deps) *Dispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dispatcher{
		loader:  deps.Loader,
		sender:  deps.Sender,
		repo:    deps.Repo,
		events:  deps.Events,
		hub:     deps.Hub,
		metrics: deps.Metrics,
		logger:  logger,
	}
}

// ResolveAndDispatch re-reads the routing document, resolves address and
// sends each target's payload in endpoint declaration order.
//
// It never returns an error: an unusable document or unresolvable address
// gives StatusNoMatch, and a failing endpoint is recorded in its result
// while the remaining endpoints are still driven.
//
// Parameters:
//   - ctx: Bounds the whole dispatch
//   - address: "|"-joined Source Tree path of a leaf
//   - source: Where the request came from (SourceAPI, SourceMQTT, SourceCLI)
//
// Returns:
//   - *Execution: The finished execution record
func (d *Dispatcher) ResolveAndDispatch(ctx context.Context, address, source string) *Execution {
	ctx, cancel := context.WithTimeout(ctx, maxDispatchTime)
	defer cancel()

	exec := &Execution{
		ID:        GenerateID(),
		Address:   address,
		Source:    source,
		StartedAt: time.Now().UTC(),
		Results:   []EndpointResult{},
	}

	doc, err := d.loader.Load()
	if err != nil {
		// The loader already fell back to the placeholder document.
		d.logger.Warn("dispatch using placeholder document", "address", address, "error", err)
	}

	targets, err := doc.Resolve(address)
	if err != nil {
		d.logger.Warn("selection did not resolve", "address", address, "source", source, "error", err)
		exec.Error = err.Error()
	} else if len(targets) == 0 {
		d.logger.Warn("selection has no configured endpoints", "address", address, "source", source)
		exec.Error = "source has no configured endpoints"
	}

	for _, t := range targets {
		if ctx.Err() != nil {
			exec.Results = append(exec.Results, EndpointResult{
				Endpoint: t.Endpoint.Name,
				Kind:     t.Endpoint.Kind.String(),
				Commands: t.Payload.Len(),
				Error:    ctx.Err().Error(),
			})
			continue
		}
		exec.Results = append(exec.Results, d.send(ctx, exec.ID, t))
	}

	exec.FinishedAt = time.Now().UTC()
	exec.DurationMS = exec.FinishedAt.Sub(exec.StartedAt).Milliseconds()
	exec.Status = rollup(exec.Results)

	d.logger.Info("dispatch complete",
		"execution_id", exec.ID,
		"address", address,
		"source", source,
		"status", exec.Status,
		"endpoints", len(exec.Results),
		"failed", exec.Failed(),
		"duration_ms", exec.DurationMS,
	)
	d.record(ctx, exec)
	return exec
}

// send drives one target and records its outcome.
func (d *Dispatcher) send(ctx context.Context, executionID string, t routing.Target) EndpointResult {
	res := EndpointResult{
		Endpoint: t.Endpoint.Name,
		Kind:     t.Endpoint.Kind.String(),
		Commands: t.Payload.Len(),
	}

	start := time.Now()
	resp, err := d.sender.Send(ctx, t.Endpoint, t.Payload)
	elapsed := time.Since(start)
	res.DurationMS = elapsed.Milliseconds()
	res.Response = resp

	if err != nil {
		res.Error = err.Error()
		d.logger.Error("endpoint dispatch failed",
			"execution_id", executionID,
			"endpoint", t.Endpoint.Name,
			"kind", t.Endpoint.Kind,
			"error", err,
		)
	} else {
		res.OK = true
		d.logger.Debug("endpoint dispatched",
			"execution_id", executionID,
			"endpoint", t.Endpoint.Name,
			"commands", res.Commands,
			"duration_ms", res.DurationMS,
		)
	}

	if d.metrics != nil {
		d.metrics.WriteEndpointDispatch(t.Endpoint.Name, res.Kind, elapsed, res.OK)
	}
	return res
}

// record feeds the side channels. Their failures are logged only.
func (d *Dispatcher) record(ctx context.Context, exec *Execution) {
	if d.repo != nil {
		// The dispatch context may already be spent by a slow endpoint.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := d.repo.Create(saveCtx, exec); err != nil {
			d.logger.Error("failed to record dispatch", "execution_id", exec.ID, "error", err)
		}
		cancel()
	}
	if d.events != nil {
		if err := d.events.PublishDispatch(exec); err != nil {
			d.logger.Warn("failed to publish dispatch event", "execution_id", exec.ID, "error", err)
		}
	}
	if d.hub != nil {
		d.hub.Broadcast(EventDispatchCompleted, exec)
	}
}

// Tree re-reads the routing document and returns it for rendering. On a
// load error the placeholder document is returned with the error.
func (d *Dispatcher) Tree() (*routing.Document, error) {
	return d.loader.Load()
}
