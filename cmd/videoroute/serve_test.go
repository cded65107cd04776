package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/video-route/internal/controller"
	"github.com/nerrad567/video-route/internal/infrastructure/config"
	"github.com/nerrad567/video-route/internal/infrastructure/logging"
	"github.com/nerrad567/video-route/internal/routing"
)

// initDevice records the commands an http_get endpoint receives.
type initDevice struct {
	mu   sync.Mutex
	cmds []string
}

func (d *initDevice) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	d.cmds = append(d.cmds, r.URL.Query().Get("c"))
	d.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (d *initDevice) received() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.cmds...)
}

func prepareFixture(t *testing.T) (*controller.Registry, *routing.Document, *initDevice) {
	t.Helper()

	device := &initDevice{}
	ts := httptest.NewServer(device)
	t.Cleanup(ts.Close)

	doc, err := routing.Parse([]byte(`
endpoints:
  scaler:
    kind: http_get
    host: ` + strings.TrimPrefix(ts.URL, "http://") + `
    path: "/cmd?c="
    init: ["reset"]
  switchbox:
    kind: telnet
    host: 127.0.0.1
sources: {}
`))
	if err != nil {
		t.Fatalf("routing.Parse: %v", err)
	}

	ctors := controller.Builtin(nil)
	ctors[routing.KindTelnet] = func() (controller.Driver, error) {
		return nil, errors.New("no telnet on this host")
	}
	return controller.NewRegistry(ctors), doc, device
}

func TestPrepareEndpoints(t *testing.T) {
	reg, doc, device := prepareFixture(t)
	var buf bytes.Buffer
	log := logging.NewWithWriter(config.LoggingConfig{Level: "warn"}, "test", &buf)

	prepareEndpoints(context.Background(), reg, doc, false, log)

	if got := device.received(); len(got) != 1 || got[0] != "reset" {
		t.Errorf("device received %v, want [reset]", got)
	}
	if !strings.Contains(buf.String(), "protocol kind unavailable") || !strings.Contains(buf.String(), "telnet") {
		t.Errorf("log = %s, want a warning naming the telnet kind", buf.String())
	}
	if _, err := reg.Send(context.Background(), doc.Endpoints[1], routing.Payload{Commands: []string{"1*1!"}}); !errors.Is(err, controller.ErrKindUnavailable) {
		t.Errorf("Send(switchbox) error = %v, want ErrKindUnavailable", err)
	}
}

func TestPrepareEndpoints_SkipInit(t *testing.T) {
	reg, doc, device := prepareFixture(t)

	prepareEndpoints(context.Background(), reg, doc, true, logging.Discard())

	if got := device.received(); len(got) != 0 {
		t.Errorf("skip still sent %v", got)
	}
	if _, err := reg.Driver(routing.KindHTTPGet); err != nil {
		t.Errorf("http_get driver not set up: %v", err)
	}
}
