// Package telnet implements the telnet session driver.
//
// One session serves a whole batch: the driver connects, discards the
// configured number of banner lines, then for each command writes the
// escaped command and reads one response unit. The last response is
// returned to the caller.
package telnet

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ziutek/telnet"

	"github.com/nerrad567/video-route/internal/drivers"
	"github.com/nerrad567/video-route/internal/routing"
)

// Defaults for telnet endpoints.
const (
	DefaultPort      = 23
	DefaultDelimiter = "\n"
	defaultTimeout   = 5 * time.Second
)

// Params are the telnet endpoint parameters.
type Params struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	SkipLines int    `mapstructure:"skip_lines"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
	Delimiter string `mapstructure:"delimiter"`
}

// Driver runs command batches over telnet sessions.
type Driver struct {
	dialer net.Dialer
	logger drivers.Logger
}

// New creates the telnet driver.
func New(logger drivers.Logger) (*Driver, error) {
	if logger == nil {
		logger = drivers.NopLogger()
	}
	return &Driver{logger: logger}, nil
}

// Send opens one session, sends every command and returns the last
// response with surrounding whitespace trimmed.
func (d *Driver) Send(ctx context.Context, ep routing.Endpoint, payload routing.Payload) (string, error) {
	if len(payload.Invocations) > 0 {
		return "", fmt.Errorf("%w: telnet takes literal commands", drivers.ErrWrongPayload)
	}

	p := Params{Port: DefaultPort, Delimiter: DefaultDelimiter}
	if err := drivers.DecodeParams(ep.Params, &p); err != nil {
		return "", err
	}
	if err := drivers.Require("host", p.Host); err != nil {
		return "", err
	}
	delim := drivers.Escape(p.Delimiter)
	if delim == "" {
		delim = DefaultDelimiter
	}
	timeout := drivers.Millis(p.TimeoutMS, defaultTimeout)
	addr := net.JoinHostPort(p.Host, strconv.Itoa(p.Port))

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	raw, err := d.dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", addr, err)
	}
	conn, err := telnet.NewConn(raw)
	if err != nil {
		raw.Close()
		return "", fmt.Errorf("telnet session %s: %w", addr, err)
	}
	defer conn.Close()

	for i := 0; i < p.SkipLines; i++ {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return "", err
		}
		if err := conn.SkipUntil(delim); err != nil {
			return "", fmt.Errorf("skipping banner line %d: %w", i+1, err)
		}
	}

	var last string
	for i, cmd := range payload.Commands {
		if i > 0 {
			if err := drivers.Pause(ctx, ep.Delay); err != nil {
				return last, err
			}
		}

		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return last, err
		}
		if _, err := conn.Write(drivers.Line(cmd, ep.Terminator)); err != nil {
			return last, fmt.Errorf("command %d write: %w", i, err)
		}
		resp, err := conn.ReadUntil(delim)
		if err != nil {
			return last, fmt.Errorf("command %d read: %w", i, err)
		}
		last = strings.TrimSpace(string(resp))
		d.logger.Debug("telnet command sent", "endpoint", ep.Name, "command", cmd, "response", last)
	}
	return last, nil
}
