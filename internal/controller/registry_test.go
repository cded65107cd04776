package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nerrad567/video-route/internal/routing"
)

// fakeDriver records every batch it receives.
type fakeDriver struct {
	mu    sync.Mutex
	sent  []string
	fail  map[string]error
	reply string
}

func (f *fakeDriver) Send(_ context.Context, ep routing.Endpoint, p routing.Payload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, ep.Name)
	if err := f.fail[ep.Name]; err != nil {
		return "", err
	}
	return f.reply, nil
}

// countingLogger counts error-level log calls.
type countingLogger struct {
	noopLogger
	errors atomic.Int32
}

func (l *countingLogger) Error(string, ...any) { l.errors.Add(1) }

func TestRegistry_LazyAndMemoized(t *testing.T) {
	var builds atomic.Int32
	drv := &fakeDriver{reply: "ok"}
	r := NewRegistry(map[routing.Kind]Constructor{
		routing.KindSerial: func() (Driver, error) {
			builds.Add(1)
			return drv, nil
		},
	})

	if builds.Load() != 0 {
		t.Fatal("constructor ran before first use")
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Driver(routing.KindSerial); err != nil {
				t.Errorf("Driver() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := builds.Load(); got != 1 {
		t.Errorf("constructor ran %d times, want 1", got)
	}

	resp, err := r.Send(context.Background(), routing.Endpoint{Name: "crosspoint", Kind: routing.KindSerial}, routing.Payload{})
	if err != nil || resp != "ok" {
		t.Errorf("Send() = %q, %v; want ok", resp, err)
	}
}

func TestRegistry_FailedKindIsPermanent(t *testing.T) {
	var builds atomic.Int32
	logger := &countingLogger{}
	r := NewRegistry(map[routing.Kind]Constructor{
		routing.KindSerial: func() (Driver, error) {
			builds.Add(1)
			return nil, errors.New("no serial enumeration")
		},
		routing.KindTelnet: func() (Driver, error) {
			return &fakeDriver{}, nil
		},
	})
	r.SetLogger(logger)

	ep := routing.Endpoint{Name: "crosspoint", Kind: routing.KindSerial}
	for i := 0; i < 3; i++ {
		_, err := r.Send(context.Background(), ep, routing.Payload{Commands: []string{"x"}})
		if !errors.Is(err, ErrKindUnavailable) {
			t.Fatalf("Send() error = %v, want ErrKindUnavailable", err)
		}
		if want := `endpoint "crosspoint"`; err == nil || !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not name the endpoint", err)
		}
	}

	if got := builds.Load(); got != 1 {
		t.Errorf("failed constructor ran %d times, want 1", got)
	}
	if got := logger.errors.Load(); got != 1 {
		t.Errorf("failure logged %d times, want 1", got)
	}

	// Other kinds are unaffected.
	if err := r.EnsureInitialised(routing.KindTelnet); err != nil {
		t.Errorf("EnsureInitialised(telnet) error = %v", err)
	}
}

func TestRegistry_UnregisteredKind(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Driver(routing.KindWSRPC)
	if !errors.Is(err, ErrNoDriver) {
		t.Errorf("Driver() error = %v, want ErrNoDriver", err)
	}
}

func TestRegistry_Initialise(t *testing.T) {
	drv := &fakeDriver{fail: map[string]error{"broken": errors.New("port busy")}}
	r := NewRegistry(map[routing.Kind]Constructor{
		routing.KindSerial: func() (Driver, error) { return drv, nil },
	})

	endpoints := []routing.Endpoint{
		{Name: "broken", Kind: routing.KindSerial, Init: routing.Payload{Commands: []string{"#ESCZXXX"}}},
		{Name: "quiet", Kind: routing.KindSerial},
		{Name: "crosspoint", Kind: routing.KindSerial, Init: routing.Payload{Commands: []string{"#ESCZXXX"}}},
	}

	err := r.Initialise(context.Background(), endpoints, false)
	if err == nil || !strings.Contains(err.Error(), "port busy") {
		t.Errorf("Initialise() error = %v, want port busy", err)
	}
	if len(drv.sent) != 2 || drv.sent[0] != "broken" || drv.sent[1] != "crosspoint" {
		t.Errorf("sent = %v, want [broken crosspoint]", drv.sent)
	}

	drv.sent = nil
	if err := r.Initialise(context.Background(), endpoints, true); err != nil {
		t.Errorf("Initialise(skip) error = %v", err)
	}
	if len(drv.sent) != 0 {
		t.Errorf("skip still sent %v", drv.sent)
	}
}

func TestBuiltin_CoversEveryKind(t *testing.T) {
	ctors := Builtin(nil)
	for _, k := range routing.AllKinds() {
		if ctors[k] == nil {
			t.Errorf("no constructor for %s", k)
		}
	}
	r := NewRegistry(ctors)
	for _, k := range []routing.Kind{routing.KindTelnet, routing.KindHTTPGet, routing.KindSwitcher, routing.KindWSRPC} {
		if err := r.EnsureInitialised(k); err != nil {
			t.Errorf("EnsureInitialised(%s) error = %v", k, err)
		}
	}
}
