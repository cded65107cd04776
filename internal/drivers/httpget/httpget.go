// Package httpget implements the HTTP GET driver.
//
// Each literal command becomes one GET of
// scheme://host + path + QueryEscape(command). Response bodies are drained
// and discarded; a non-2xx status is a transport failure.
package httpget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nerrad567/video-route/internal/drivers"
	"github.com/nerrad567/video-route/internal/routing"
)

// Defaults for HTTP GET endpoints.
const (
	DefaultScheme  = "http"
	DefaultPath    = "/?cmd="
	defaultTimeout = 5 * time.Second
	maxDrain       = 64 << 10
)

// ErrStatus is returned when a device answers with a non-2xx status.
var ErrStatus = errors.New("httpget: unexpected status")

// Params are the HTTP GET endpoint parameters.
type Params struct {
	Scheme    string `mapstructure:"scheme"`
	Host      string `mapstructure:"host"`
	Path      string `mapstructure:"path"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

// Driver fires HTTP GET requests.
type Driver struct {
	client *http.Client
	logger drivers.Logger
}

// New creates the HTTP GET driver with its own client and transport.
func New(logger drivers.Logger) (*Driver, error) {
	if logger == nil {
		logger = drivers.NopLogger()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 2
	return &Driver{
		client: &http.Client{Transport: transport},
		logger: logger,
	}, nil
}

// CommandURL builds the request URL for one command.
func (p Params) CommandURL(command string) string {
	return p.Scheme + "://" + p.Host + p.Path + url.QueryEscape(command)
}

// Send issues one GET per command, in order.
func (d *Driver) Send(ctx context.Context, ep routing.Endpoint, payload routing.Payload) (string, error) {
	if len(payload.Invocations) > 0 {
		return "", fmt.Errorf("%w: http_get takes literal commands", drivers.ErrWrongPayload)
	}

	p := Params{Scheme: DefaultScheme, Path: DefaultPath}
	if err := drivers.DecodeParams(ep.Params, &p); err != nil {
		return "", err
	}
	if err := drivers.Require("host", p.Host); err != nil {
		return "", err
	}
	timeout := drivers.Millis(p.TimeoutMS, defaultTimeout)

	for i, cmd := range payload.Commands {
		if i > 0 {
			if err := drivers.Pause(ctx, ep.Delay); err != nil {
				return "", err
			}
		}
		if err := d.get(ctx, p.CommandURL(cmd), timeout); err != nil {
			return "", fmt.Errorf("command %d: %w", i, err)
		}
		d.logger.Debug("http command sent", "endpoint", ep.Name, "command", cmd)
	}
	return "", nil
}

func (d *Driver) get(ctx context.Context, target string, timeout time.Duration) error {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}
	return nil
}
