// Package serial implements the serial line driver.
//
// Each Send opens the endpoint's device, writes every literal command
// (escaped, followed by the endpoint terminator) and closes the device.
// Nothing is read back.
package serial

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	bugserial "go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/nerrad567/video-route/internal/drivers"
	"github.com/nerrad567/video-route/internal/routing"
)

// Defaults for serial endpoints.
const (
	DefaultBaud     = 9600
	DefaultDataBits = 8
	DefaultStopBits = 1
	DefaultParity   = "none"

	defaultWriteTimeout = 5 * time.Second
)

// ErrWriteTimeout is returned when a write does not complete in time.
var ErrWriteTimeout = errors.New("serial: write timed out")

// Params are the serial endpoint parameters.
type Params struct {
	Device    string `mapstructure:"device"`
	Baud      int    `mapstructure:"baud"`
	Parity    string `mapstructure:"parity"`
	DataBits  int    `mapstructure:"data_bits"`
	StopBits  int    `mapstructure:"stop_bits"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

// port is the part of an open serial port the driver uses.
type port interface {
	Write(p []byte) (int, error)
	Close() error
}

type opener func(name string, mode *bugserial.Mode) (port, error)
type lister func() ([]*enumerator.PortDetails, error)

// Driver writes command batches to serial devices.
type Driver struct {
	open   opener
	list   lister
	logger drivers.Logger
}

// New creates the serial driver.
//
// Port enumeration is probed once here; if the platform cannot enumerate
// serial ports the kind is reported unavailable.
func New(logger drivers.Logger) (*Driver, error) {
	if logger == nil {
		logger = drivers.NopLogger()
	}
	if _, err := bugserial.GetPortsList(); err != nil {
		return nil, fmt.Errorf("serial port enumeration unavailable: %w", err)
	}
	return &Driver{
		open:   openPort,
		list:   enumerator.GetDetailedPortsList,
		logger: logger,
	}, nil
}

func openPort(name string, mode *bugserial.Mode) (port, error) {
	p, err := bugserial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Send writes each command to the endpoint's device in order.
func (d *Driver) Send(ctx context.Context, ep routing.Endpoint, payload routing.Payload) (string, error) {
	if len(payload.Invocations) > 0 {
		return "", fmt.Errorf("%w: serial takes literal commands", drivers.ErrWrongPayload)
	}

	p := Params{Baud: DefaultBaud, Parity: DefaultParity, DataBits: DefaultDataBits, StopBits: DefaultStopBits}
	if err := drivers.DecodeParams(ep.Params, &p); err != nil {
		return "", err
	}
	if err := drivers.Require("device", p.Device); err != nil {
		return "", err
	}
	mode, err := p.mode()
	if err != nil {
		return "", err
	}

	device := d.resolve(p.Device)
	conn, err := d.open(device, mode)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", device, err)
	}
	defer conn.Close()

	timeout := drivers.Millis(p.TimeoutMS, defaultWriteTimeout)
	for i, cmd := range payload.Commands {
		if i > 0 {
			if err := drivers.Pause(ctx, ep.Delay); err != nil {
				return "", err
			}
		}
		if err := write(conn, drivers.Line(cmd, ep.Terminator), timeout); err != nil {
			return "", fmt.Errorf("command %d on %s: %w", i, device, err)
		}
		d.logger.Debug("serial command sent", "endpoint", ep.Name, "device", device, "command", cmd)
	}
	return "", nil
}

// write bounds a blocking serial write. On timeout the port is closed to
// release the writer.
func write(conn port, b []byte, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		_, err := conn.Write(b)
		done <- err
	}()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case err := <-done:
		return err
	case <-t.C:
		conn.Close()
		return ErrWriteTimeout
	}
}

func (p Params) mode() (*bugserial.Mode, error) {
	m := &bugserial.Mode{BaudRate: p.Baud, DataBits: p.DataBits}

	switch strings.ToLower(p.Parity) {
	case "", "none", "n":
		m.Parity = bugserial.NoParity
	case "odd", "o":
		m.Parity = bugserial.OddParity
	case "even", "e":
		m.Parity = bugserial.EvenParity
	case "mark", "m":
		m.Parity = bugserial.MarkParity
	case "space", "s":
		m.Parity = bugserial.SpaceParity
	default:
		return nil, fmt.Errorf("%w: parity %q", drivers.ErrInvalidParams, p.Parity)
	}

	switch p.StopBits {
	case 1:
		m.StopBits = bugserial.OneStopBit
	case 2:
		m.StopBits = bugserial.TwoStopBits
	default:
		return nil, fmt.Errorf("%w: stop_bits %d", drivers.ErrInvalidParams, p.StopBits)
	}

	if p.Baud <= 0 {
		return nil, fmt.Errorf("%w: baud %d", drivers.ErrInvalidParams, p.Baud)
	}
	if p.DataBits < 5 || p.DataBits > 8 {
		return nil, fmt.Errorf("%w: data_bits %d", drivers.ErrInvalidParams, p.DataBits)
	}
	return m, nil
}

var comPort = regexp.MustCompile(`(?i)^COM\d+$`)

// resolve maps a configured device name to an openable port name.
//
// Paths are used as given. "usb:VID:PID" selects the first USB port with
// that identity. Anything else is matched against the human-readable
// product names of the enumerated ports. When nothing matches the name is
// returned unchanged and the open call reports the failure.
func (d *Driver) resolve(name string) string {
	if strings.Contains(name, "/dev/") || comPort.MatchString(name) {
		return name
	}

	ports, err := d.list()
	if err != nil {
		d.logger.Warn("serial enumeration failed, using device name as given", "device", name, "error", err)
		return name
	}
	return ResolveDevice(name, ports)
}

// ResolveDevice picks the port name for a configured device from an
// enumerated port list. See Driver.resolve for the matching rules.
func ResolveDevice(name string, ports []*enumerator.PortDetails) string {
	if strings.HasPrefix(strings.ToLower(name), "usb:") {
		parts := strings.Split(name, ":")
		if len(parts) == 3 {
			for _, p := range ports {
				if p.IsUSB && strings.EqualFold(p.VID, parts[1]) && strings.EqualFold(p.PID, parts[2]) {
					return p.Name
				}
			}
		}
		return name
	}

	for _, p := range ports {
		if p.Product == name {
			return p.Name
		}
	}
	for _, p := range ports {
		if p.Product != "" && strings.EqualFold(p.Product, name) {
			return p.Name
		}
	}
	return name
}
