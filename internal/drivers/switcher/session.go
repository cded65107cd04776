package switcher

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Session is one live connection to a switcher.
//
// A session is ready once the switcher has streamed its initial state and
// sent InitComplete. State updates that arrive later (for example while
// waiting for a command Ack) are applied as they are read.
//
// A Session is used by a single goroutine for one batch and is not safe for
// concurrent use.
type Session struct {
	conn      net.Conn
	timeout   time.Duration
	me        int
	inputs    map[int]Input
	mixEffect map[int]MixEffect
	aux       map[int]Aux
}

// Dial connects to addr and completes the handshake.
//
// Parameters:
//   - ctx: Bounds the dial and the handshake
//   - addr: host:port of the switcher
//   - timeout: Per read/write deadline, also applied to the handshake
//   - me: Mix effect block operations act on
//
// Returns:
//   - *Session: Ready session; the caller must Close it
//   - error: Dial, handshake or protocol failure
func Dial(ctx context.Context, addr string, timeout time.Duration, me int) (*Session, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	s := &Session{
		conn:      conn,
		timeout:   timeout,
		me:        me,
		inputs:    make(map[int]Input),
		mixEffect: make(map[int]MixEffect),
		aux:       make(map[int]Aux),
	}
	if err := s.handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake with %s: %w", addr, err)
	}
	return s, nil
}

// Close ends the session.
func (s *Session) Close() error {
	return s.conn.Close()
}

func (s *Session) handshake() error {
	if err := s.write(MsgHello, Hello{Client: ClientName, Version: ProtoVersion}); err != nil {
		return err
	}
	for {
		t, body, err := s.read()
		if err != nil {
			return err
		}
		switch t {
		case MsgState:
			if err := s.apply(body); err != nil {
				return err
			}
		case MsgInitComplete:
			return nil
		}
	}
}

func (s *Session) write(t MsgType, body any) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		return err
	}
	return WriteFrame(s.conn, t, body)
}

func (s *Session) read() (MsgType, []byte, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
		return 0, nil, err
	}
	return ReadFrame(s.conn)
}

func (s *Session) apply(body []byte) error {
	var u StateUpdate
	if err := DecodeBody(body, &u); err != nil {
		return err
	}
	if u.Input != nil {
		s.inputs[u.Input.ID] = *u.Input
	}
	if u.MixEffect != nil {
		s.mixEffect[u.MixEffect.Index] = *u.MixEffect
	}
	if u.Aux != nil {
		s.aux[u.Aux.Index] = *u.Aux
	}
	return nil
}

// do sends a command and waits for its Ack, applying state on the way.
func (s *Session) do(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.write(MsgCommand, cmd); err != nil {
		return err
	}
	for {
		t, body, err := s.read()
		if err != nil {
			return fmt.Errorf("waiting for %s ack: %w", cmd.Op, err)
		}
		switch t {
		case MsgState:
			if err := s.apply(body); err != nil {
				return err
			}
		case MsgAck:
			var ack Ack
			if err := DecodeBody(body, &ack); err != nil {
				return err
			}
			if !ack.OK {
				return fmt.Errorf("%w: %s: %s", ErrRejected, cmd.Op, ack.Error)
			}
			return nil
		}
	}
}

// Cut swaps preview and program on the session's mix effect.
func (s *Session) Cut(ctx context.Context) error {
	return s.do(ctx, Command{Op: "cut", ME: s.me})
}

// Auto runs the configured transition on the session's mix effect.
func (s *Session) Auto(ctx context.Context) error {
	return s.do(ctx, Command{Op: "auto", ME: s.me})
}

// FadeToBlack toggles fade to black on the session's mix effect.
func (s *Session) FadeToBlack(ctx context.Context) error {
	return s.do(ctx, Command{Op: "fade_to_black", ME: s.me})
}

// SetProgram puts input on program.
func (s *Session) SetProgram(ctx context.Context, input int) error {
	return s.do(ctx, Command{Op: "set_program", ME: s.me, Input: input})
}

// SetPreview puts input on preview.
func (s *Session) SetPreview(ctx context.Context, input int) error {
	return s.do(ctx, Command{Op: "set_preview", ME: s.me, Input: input})
}

// SetAux routes input to an aux output.
func (s *Session) SetAux(ctx context.Context, aux, input int) error {
	return s.do(ctx, Command{Op: "set_aux", ME: s.me, Aux: aux, Input: input})
}

// SetTransition selects the transition style used by Auto.
func (s *Session) SetTransition(ctx context.Context, style string) error {
	return s.do(ctx, Command{Op: "set_transition", ME: s.me, Style: style})
}

// State returns the last known state of the session's mix effect.
func (s *Session) State() MixEffect {
	me, ok := s.mixEffect[s.me]
	if !ok {
		return MixEffect{Index: s.me}
	}
	return me
}

// Input finds an input by name, short name or numeric id.
func (s *Session) Input(ref string) (Input, error) {
	ids := make([]int, 0, len(s.inputs))
	for id := range s.inputs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		in := s.inputs[id]
		if strings.EqualFold(in.Name, ref) || strings.EqualFold(in.ShortName, ref) || fmt.Sprint(in.ID) == ref {
			return in, nil
		}
	}
	return Input{}, fmt.Errorf("%w: no input %q", ErrRejected, ref)
}

// ResolveInput accepts an input id or a name.
func (s *Session) ResolveInput(ref any) (int, error) {
	if name, ok := ref.(string); ok {
		in, err := s.Input(name)
		if err != nil {
			return 0, err
		}
		return in.ID, nil
	}
	id, err := cast.ToIntE(ref)
	if err != nil {
		return 0, fmt.Errorf("%w: input reference %v: %w", ErrRejected, ref, err)
	}
	return id, nil
}
