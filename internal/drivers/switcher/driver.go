// Package switcher implements the binary switcher driver.
//
// The switcher speaks a framed protocol over TCP: every frame is
// size(u16 BE) | type(u16 BE) | CBOR body. A session starts with the client
// Hello; the switcher then streams its state and finishes with InitComplete.
// Commands are acknowledged one at a time.
//
// Payloads are invocation expressions evaluated against a Session through a
// closed operation table, so
//
//	{"setProgram": [{"getInput": ["Camera 2"]}]}
//
// looks up the input, projects its id and puts it on program.
//
// This framing is not the Blackmagic ATEM protocol, which runs over UDP on
// the same default port. An ATEM needs a bridge that speaks these frames.
package switcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/nerrad567/video-route/internal/drivers"
	"github.com/nerrad567/video-route/internal/expr"
	"github.com/nerrad567/video-route/internal/routing"
)

const defaultTimeout = 5 * time.Second

// Params are the switcher endpoint parameters.
type Params struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
	ME        int    `mapstructure:"me"`
}

// Operations is the closed set of operations a payload may invoke.
var Operations = expr.NewTable(map[string]expr.Operation[*Session]{
	"cut": {Arity: 0, Call: func(ctx context.Context, s *Session, _ expr.Args) (any, error) {
		return nil, s.Cut(ctx)
	}},
	"auto": {Arity: 0, Call: func(ctx context.Context, s *Session, _ expr.Args) (any, error) {
		return nil, s.Auto(ctx)
	}},
	"fadeToBlack": {Arity: 0, Call: func(ctx context.Context, s *Session, _ expr.Args) (any, error) {
		return nil, s.FadeToBlack(ctx)
	}},
	"setProgram": {Arity: 1, Call: func(ctx context.Context, s *Session, args expr.Args) (any, error) {
		id, err := s.ResolveInput(args[0])
		if err != nil {
			return nil, err
		}
		return nil, s.SetProgram(ctx, id)
	}},
	"setPreview": {Arity: 1, Call: func(ctx context.Context, s *Session, args expr.Args) (any, error) {
		id, err := s.ResolveInput(args[0])
		if err != nil {
			return nil, err
		}
		return nil, s.SetPreview(ctx, id)
	}},
	"setAux": {Arity: 2, Call: func(ctx context.Context, s *Session, args expr.Args) (any, error) {
		aux, err := args.Int(0)
		if err != nil {
			return nil, err
		}
		id, err := s.ResolveInput(args[1])
		if err != nil {
			return nil, err
		}
		return nil, s.SetAux(ctx, aux, id)
	}},
	"setTransition": {Arity: 1, Call: func(ctx context.Context, s *Session, args expr.Args) (any, error) {
		style, err := args.String(0)
		if err != nil {
			return nil, err
		}
		return nil, s.SetTransition(ctx, style)
	}},
	"getState": {Arity: 0, Call: func(_ context.Context, s *Session, _ expr.Args) (any, error) {
		return s.State(), nil
	}},
	"getInput": {Arity: 1, Call: func(_ context.Context, s *Session, args expr.Args) (any, error) {
		ref, err := args.String(0)
		if err != nil {
			return nil, err
		}
		return s.Input(ref)
	}},
})

// Driver runs invocation batches against switchers.
type Driver struct {
	logger drivers.Logger
}

// New creates the switcher driver.
func New(logger drivers.Logger) (*Driver, error) {
	if logger == nil {
		logger = drivers.NopLogger()
	}
	return &Driver{logger: logger}, nil
}

// Send opens one session and evaluates every invocation in order.
//
// An invocation that is unknown, has the wrong arity or bad arguments, or
// is rejected by the switcher is logged and skipped; the batch continues and
// the skipped failures are returned joined. Transport failures end the
// batch.
func (d *Driver) Send(ctx context.Context, ep routing.Endpoint, payload routing.Payload) (string, error) {
	if len(payload.Commands) > 0 {
		return "", fmt.Errorf("%w: switcher takes invocation expressions", drivers.ErrWrongPayload)
	}

	p := Params{Port: DefaultPort}
	if err := drivers.DecodeParams(ep.Params, &p); err != nil {
		return "", err
	}
	if err := drivers.Require("host", p.Host); err != nil {
		return "", err
	}
	addr := net.JoinHostPort(p.Host, strconv.Itoa(p.Port))

	s, err := Dial(ctx, addr, drivers.Millis(p.TimeoutMS, defaultTimeout), p.ME)
	if err != nil {
		return "", err
	}
	defer s.Close()

	var skipped []error
	for i, inv := range payload.Invocations {
		if i > 0 {
			if err := drivers.Pause(ctx, ep.Delay); err != nil {
				return "", errors.Join(append(skipped, err)...)
			}
		}
		if _, err := expr.Evaluate(ctx, Operations, s, inv); err != nil {
			if !drivers.Skippable(err, ErrRejected) {
				return "", errors.Join(append(skipped, fmt.Errorf("invocation %d %s: %w", i, inv, err))...)
			}
			d.logger.Warn("switcher invocation skipped", "endpoint", ep.Name, "invocation", inv.String(), "error", err)
			skipped = append(skipped, fmt.Errorf("invocation %d %s: %w", i, inv, err))
			continue
		}
		d.logger.Debug("switcher invocation done", "endpoint", ep.Name, "invocation", inv.String())
	}
	return "", errors.Join(skipped...)
}
