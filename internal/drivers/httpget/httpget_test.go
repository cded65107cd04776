package httpget

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/video-route/internal/drivers"
	"github.com/nerrad567/video-route/internal/routing"
)

type recordingHandler struct {
	mu      sync.Mutex
	queries []string
	status  int
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.queries = append(h.queries, r.URL.Query().Get("cmd"))
	h.mu.Unlock()
	if h.status != 0 {
		w.WriteHeader(h.status)
	}
	w.Write([]byte("ignored body"))
}

func endpointFor(srv *httptest.Server, extra map[string]any) routing.Endpoint {
	u, _ := url.Parse(srv.URL)
	params := map[string]any{"host": u.Host}
	for k, v := range extra {
		params[k] = v
	}
	return routing.Endpoint{Name: "dvs510", Kind: routing.KindHTTPGet, Params: params}
}

func TestSend_OneGetPerCommandInOrder(t *testing.T) {
	h := &recordingHandler{}
	srv := httptest.NewServer(h)
	defer srv.Close()

	d, _ := New(nil)
	ep := endpointFor(srv, nil)
	ep.Delay = time.Millisecond

	if _, err := d.Send(context.Background(), ep, routing.Payload{Commands: []string{"profile1", "1*2!", "a b&c"}}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	want := []string{"profile1", "1*2!", "a b&c"}
	if len(h.queries) != len(want) {
		t.Fatalf("queries = %q, want %q", h.queries, want)
	}
	for i := range want {
		if h.queries[i] != want[i] {
			t.Errorf("query %d = %q, want %q", i, h.queries[i], want[i])
		}
	}
}

func TestSend_NonSuccessStatus(t *testing.T) {
	h := &recordingHandler{status: http.StatusInternalServerError}
	srv := httptest.NewServer(h)
	defer srv.Close()

	d, _ := New(nil)
	_, err := d.Send(context.Background(), endpointFor(srv, nil), routing.Payload{Commands: []string{"a", "b"}})
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("Send() error = %v, want ErrStatus", err)
	}
	if len(h.queries) != 1 {
		t.Errorf("batch continued after failure: %q", h.queries)
	}
}

func TestSend_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	d, _ := New(nil)
	start := time.Now()
	_, err := d.Send(context.Background(), endpointFor(srv, map[string]any{"timeout_ms": 50}), routing.Payload{Commands: []string{"x"}})
	if err == nil {
		t.Fatal("Send() should time out")
	}
	if time.Since(start) > time.Second {
		t.Errorf("Send() took %v", time.Since(start))
	}
}

func TestCommandURL(t *testing.T) {
	p := Params{Scheme: "http", Host: "10.0.0.20", Path: DefaultPath}
	if got := p.CommandURL("1*2!"); got != "http://10.0.0.20/?cmd=1%2A2%21" {
		t.Errorf("CommandURL() = %q", got)
	}
	p.Path = "/api/recall/"
	if got := p.CommandURL("preset 3"); !strings.HasSuffix(got, "/api/recall/preset+3") {
		t.Errorf("CommandURL() = %q", got)
	}
}

func TestSend_MissingHost(t *testing.T) {
	d, _ := New(nil)
	_, err := d.Send(context.Background(), routing.Endpoint{}, routing.Payload{Commands: []string{"x"}})
	if !errors.Is(err, drivers.ErrInvalidParams) {
		t.Errorf("Send() error = %v, want ErrInvalidParams", err)
	}
}
