package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/video-route/internal/infrastructure/config"
)

// fakeToken completes immediately with err.
type fakeToken struct {
	err     error
	pending bool
}

func (t fakeToken) Wait() bool                     { return !t.pending }
func (t fakeToken) WaitTimeout(time.Duration) bool { return !t.pending }
func (t fakeToken) Error() error                   { return t.err }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.pending {
		close(ch)
	}
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakePaho stands in for a broker connection. Unused methods of the
// interface panic through the nil embedded value.
type fakePaho struct {
	pahomqtt.Client

	mu         sync.Mutex
	connected  bool
	published  []published
	handlers   map[string]pahomqtt.MessageHandler
	subErr     error
	disconnect bool
}

func newFakePaho() *fakePaho {
	return &fakePaho{connected: true, handlers: make(map[string]pahomqtt.MessageHandler)}
}

func (f *fakePaho) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	var b []byte
	switch p := payload.(type) {
	case []byte:
		b = p
	case string:
		b = []byte(p)
	}
	f.published = append(f.published, published{topic: topic, qos: qos, retained: retained, payload: b})
	return fakeToken{}
}

func (f *fakePaho) Subscribe(topic string, _ byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return fakeToken{err: f.subErr}
	}
	f.handlers[topic] = cb
	return fakeToken{}
}

func (f *fakePaho) Unsubscribe(topics ...string) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range topics {
		delete(f.handlers, t)
	}
	return fakeToken{}
}

func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnect = true
}

// deliver invokes the handler subscribed to topic.
func (f *fakePaho) deliver(topic string, payload []byte) {
	f.mu.Lock()
	cb := f.handlers[topic]
	f.mu.Unlock()
	if cb != nil {
		cb(f, fakeMessage{topic: topic, payload: payload})
	}
}

type fakeMessage struct {
	pahomqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Error(msg string, _ ...any) { l.add(msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.add(msg) }
func (l *recordingLogger) add(msg string) {
	l.mu.Lock()
	l.lines = append(l.lines, msg)
	l.mu.Unlock()
}

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: "127.0.0.1", Port: 1883, ClientID: "video-route-test"},
		QoS:    1,
	}
}

func connectedClient(t *testing.T) (*Client, *fakePaho) {
	t.Helper()
	f := newFakePaho()
	c := newClient(f, testConfig())
	c.setConnected(true)
	return c, f
}

func TestTopics(t *testing.T) {
	def := Topics{}
	if def.Select() != "videoroute/select" || def.DispatchEvent() != "videoroute/event/dispatch" ||
		def.SystemStatus() != "videoroute/system/status" || def.All() != "videoroute/#" {
		t.Errorf("default topics = %s %s %s %s", def.Select(), def.DispatchEvent(), def.SystemStatus(), def.All())
	}
	if got := (Topics{Prefix: "studio"}).Select(); got != "studio/select" {
		t.Errorf("Select() = %q", got)
	}
}

func TestPublish_Validation(t *testing.T) {
	c, _ := connectedClient(t)

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{name: "empty topic", payload: []byte("x"), wantErr: ErrInvalidTopic},
		{name: "bad qos", topic: "t", qos: 3, wantErr: ErrInvalidQoS},
		{name: "too large", topic: "t", payload: make([]byte, maxPayloadSize+1), wantErr: ErrPublishFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	c.setConnected(false)
	if err := c.Publish("t", nil, 0, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestPublishJSON(t *testing.T) {
	c, f := connectedClient(t)

	if err := c.PublishJSON(c.Topics().DispatchEvent(), map[string]string{"status": "completed"}, false); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}
	if len(f.published) != 1 {
		t.Fatalf("published = %d messages", len(f.published))
	}
	p := f.published[0]
	if p.topic != "videoroute/event/dispatch" || p.qos != 1 || p.retained || string(p.payload) != `{"status":"completed"}` {
		t.Errorf("published = %+v", p)
	}

	if err := c.PublishJSON("t", make(chan int), false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON(chan) error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribe_DeliversAndRecovers(t *testing.T) {
	c, f := connectedClient(t)
	logger := &recordingLogger{}
	c.SetLogger(logger)

	got := make(chan string, 1)
	err := c.Subscribe("videoroute/select", 1, func(topic string, payload []byte) error {
		if string(payload) == "panic" {
			panic("boom")
		}
		if string(payload) == "bad" {
			return errors.New("bad selection")
		}
		got <- string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !c.HasSubscription("videoroute/select") {
		t.Error("subscription not tracked")
	}

	f.deliver("videoroute/select", []byte("consoles|snes"))
	if v := <-got; v != "consoles|snes" {
		t.Errorf("handler got %q", v)
	}

	f.deliver("videoroute/select", []byte("panic"))
	f.deliver("videoroute/select", []byte("bad"))
	if len(logger.lines) != 2 {
		t.Errorf("logged %v, want panic and error", logger.lines)
	}

	if err := c.Unsubscribe("videoroute/select"); err != nil || c.HasSubscription("videoroute/select") {
		t.Errorf("Unsubscribe() error = %v", err)
	}
}

func TestSubscribe_Errors(t *testing.T) {
	c, f := connectedClient(t)

	if err := c.Subscribe("", 0, func(string, []byte) error { return nil }); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("t", 0, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("error = %v, want ErrSubscribeFailed", err)
	}

	f.subErr = errors.New("not authorised")
	if err := c.Subscribe("t", 0, func(string, []byte) error { return nil }); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("error = %v, want ErrSubscribeFailed", err)
	}
	if c.HasSubscription("t") {
		t.Error("failed subscription still tracked")
	}
}

func TestReconnect_RestoresSubscriptionsAndStatus(t *testing.T) {
	c, f := connectedClient(t)
	if err := c.Subscribe("videoroute/select", 1, func(string, []byte) error { return nil }); err != nil {
		t.Fatal(err)
	}

	c.handleDisconnect(errors.New("network down"))
	if c.IsConnected() {
		t.Error("IsConnected() = true after connection loss")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	f.handlers = make(map[string]pahomqtt.MessageHandler)
	c.handleConnect()
	if _, ok := f.handlers["videoroute/select"]; !ok {
		t.Error("subscription not restored")
	}
	last := f.published[len(f.published)-1]
	var status statusPayload
	if err := json.Unmarshal(last.payload, &status); err != nil {
		t.Fatal(err)
	}
	if last.topic != "videoroute/system/status" || !last.retained || status.Status != "online" {
		t.Errorf("status message = %s %s", last.topic, last.payload)
	}
}

func TestClose_PublishesOffline(t *testing.T) {
	c, f := connectedClient(t)
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !f.disconnect {
		t.Error("Disconnect not called")
	}
	var status statusPayload
	json.Unmarshal(f.published[0].payload, &status) //nolint:errcheck // checked below
	if status.Status != "offline" || status.Reason != "graceful_shutdown" {
		t.Errorf("status = %+v", status)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Auth = config.MQTTAuthConfig{Username: "router", Password: "secret"}

	opts := buildClientOptions(cfg)
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.Username != "router" || opts.ClientID != "video-route-test" || opts.TLSConfig == nil {
		t.Errorf("options = %+v", opts)
	}

	configureLWT(opts, Topics{}, cfg.Broker.ClientID)
	if !opts.WillEnabled || opts.WillTopic != "videoroute/system/status" || !opts.WillRetained {
		t.Errorf("will = %v %q retained=%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}
}
