// Package wsrpc implements the websocket RPC driver for streaming and
// compositing software that speaks an OBS-websocket v5 compatible protocol.
//
// The server greets with Hello (op 0), possibly carrying an authentication
// challenge. The client answers with Identify (op 1) and waits for
// Identified (op 2); each operation is then a Request (op 6) matched to its
// RequestResponse (op 7) by request id.
//
// Payloads are invocation expressions keyed by request type:
//
//	{"SetSceneItemEnabled": ["Main", {"GetSceneItemId": ["Main", "Webcam"]}, true]}
package wsrpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cast"

	"github.com/nerrad567/video-route/internal/drivers"
	"github.com/nerrad567/video-route/internal/expr"
	"github.com/nerrad567/video-route/internal/routing"
)

const (
	// DefaultPort is the default websocket RPC port.
	DefaultPort    = 4455
	defaultTimeout = 5 * time.Second
)

// Params are the wsrpc endpoint parameters.
type Params struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
	Attr      string `mapstructure:"attr"`
}

// URL returns the websocket URL of the endpoint.
func (p Params) URL() string {
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(p.Host, strconv.Itoa(p.Port))}
	return u.String()
}

// Driver runs invocation batches against websocket RPC servers.
type Driver struct {
	logger drivers.Logger
}

// New creates the wsrpc driver.
func New(logger drivers.Logger) (*Driver, error) {
	if logger == nil {
		logger = drivers.NopLogger()
	}
	return &Driver{logger: logger}, nil
}

// Send identifies once and evaluates every invocation in order.
//
// Failed requests, unknown request types and bad arguments are logged and
// skipped. Connection failures end the batch. When the attr param is set, the
// attribute is projected from the last result and returned as the response.
func (d *Driver) Send(ctx context.Context, ep routing.Endpoint, payload routing.Payload) (string, error) {
	if len(payload.Commands) > 0 {
		return "", fmt.Errorf("%w: wsrpc takes invocation expressions", drivers.ErrWrongPayload)
	}

	p := Params{Port: DefaultPort}
	if err := drivers.DecodeParams(ep.Params, &p); err != nil {
		return "", err
	}
	if err := drivers.Require("host", p.Host); err != nil {
		return "", err
	}

	c, err := Connect(ctx, p.URL(), p.Password, drivers.Millis(p.TimeoutMS, defaultTimeout))
	if err != nil {
		return "", err
	}
	defer c.Close()

	var (
		skipped []error
		last    any
	)
	for i, inv := range payload.Invocations {
		if i > 0 {
			if err := drivers.Pause(ctx, ep.Delay); err != nil {
				return "", errors.Join(append(skipped, err)...)
			}
		}
		result, err := expr.Evaluate(ctx, Operations, c, inv)
		if err != nil {
			wrapped := fmt.Errorf("invocation %d %s: %w", i, inv, err)
			if !drivers.Skippable(err, ErrRequestFailed) {
				return "", errors.Join(append(skipped, wrapped)...)
			}
			d.logger.Warn("wsrpc invocation skipped", "endpoint", ep.Name, "invocation", inv.String(), "error", err)
			skipped = append(skipped, wrapped)
			continue
		}
		last = result
		d.logger.Debug("wsrpc invocation done", "endpoint", ep.Name, "invocation", inv.String())
	}

	var resp string
	if p.Attr != "" && last != nil {
		v, err := expr.Project(last, p.Attr)
		if err != nil {
			skipped = append(skipped, err)
		} else {
			resp = cast.ToString(v)
			d.logger.Info("wsrpc response", "endpoint", ep.Name, "attr", p.Attr, "value", resp)
		}
	}
	return resp, errors.Join(skipped...)
}
