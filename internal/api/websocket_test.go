package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/video-route/internal/dispatch"
	"github.com/nerrad567/video-route/internal/infrastructure/logging"
)

// newTestConn builds a connection with no socket behind it; frames pile
// up in its outbox.
func newTestConn(hub *Hub, channels ...string) *wsConn {
	c := newWSConn(hub, nil)
	for _, ch := range channels {
		c.channels[ch] = true
	}
	return c
}

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := NewHub(testWSConfig(), logging.Discard())
	client := newTestConn(hub, dispatch.EventDispatchCompleted)
	hub.add(client)

	hub.Broadcast(dispatch.EventDispatchCompleted, &dispatch.Execution{ID: "dsp-1", Status: dispatch.StatusCompleted})

	select {
	case msg := <-client.outbox:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.Type != WSTypeEvent || wsMsg.EventType != dispatch.EventDispatchCompleted {
			t.Errorf("message = %+v", wsMsg)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	hub := NewHub(testWSConfig(), logging.Discard())
	client := newTestConn(hub, "something.else")
	hub.add(client)

	hub.Broadcast(dispatch.EventDispatchCompleted, map[string]any{"id": "dsp-1"})

	select {
	case <-client.outbox:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := NewHub(testWSConfig(), logging.Discard())

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := newTestConn(hub)
	hub.add(client)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.remove(client)
	hub.remove(client) // second call must not double-close
	if hub.ClientCount() != 0 {
		t.Errorf("after remove count = %d, want 0", hub.ClientCount())
	}
	if client.deliver([]byte("late")) {
		t.Error("deliver after remove should report false")
	}
}

func TestHub_RunDisconnectsOnCancel(t *testing.T) {
	hub := NewHub(testWSConfig(), logging.Discard())
	client := newTestConn(hub)
	hub.add(client)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("client count after shutdown = %d, want 0", hub.ClientCount())
	}
	if _, open := <-client.outbox; open {
		t.Error("outbox still open after shutdown")
	}
}

func TestConn_FullOutboxDrops(t *testing.T) {
	client := newTestConn(NewHub(testWSConfig(), logging.Discard()))
	for i := 0; i < outboxSize; i++ {
		if !client.deliver([]byte("x")) {
			t.Fatalf("deliver %d rejected before the outbox filled", i)
		}
	}
	if client.deliver([]byte("overflow")) {
		t.Error("deliver into a full outbox should report false")
	}
}

func TestHub_SatisfiesDispatchHub(t *testing.T) {
	var _ dispatch.WSHub = (*Hub)(nil)
}

func TestConn_SubscribeAndUnsubscribe(t *testing.T) {
	hub := NewHub(testWSConfig(), logging.Discard())
	client := newTestConn(hub)

	client.handle([]byte(`{"type":"subscribe","id":"1","payload":{"channels":["dispatch.completed"]}}`))
	if !client.wants(dispatch.EventDispatchCompleted) {
		t.Error("subscribe did not register the channel")
	}
	client.handle([]byte(`{"type":"unsubscribe","id":"2","payload":{"channels":["dispatch.completed"]}}`))
	if client.wants(dispatch.EventDispatchCompleted) {
		t.Error("unsubscribe did not remove the channel")
	}

	client.handle([]byte(`{"type":"bogus","id":"3"}`))
	client.handle([]byte(`not json`))

	var types []string
	for len(client.outbox) > 0 {
		var msg WSMessage
		if err := json.Unmarshal(<-client.outbox, &msg); err != nil {
			t.Fatal(err)
		}
		types = append(types, msg.Type)
	}
	if got := strings.Join(types, ","); got != "response,response,error,error" {
		t.Errorf("replies = %s", got)
	}
}

func TestConn_SelectWithoutSelector(t *testing.T) {
	hub := NewHub(testWSConfig(), logging.Discard())
	client := newTestConn(hub)

	client.handle([]byte(`{"type":"select","id":"1","payload":{"source":"consoles|snes"}}`))

	var msg WSMessage
	if err := json.Unmarshal(<-client.outbox, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != WSTypeError || msg.ID != "1" {
		t.Errorf("reply = %+v, want error", msg)
	}
}

// readUntil reads messages until one matches, failing after a deadline.
func readUntil(t *testing.T, conn *websocket.Conn, match func(WSMessage) bool) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func TestWebSocket_SelectAndEvent(t *testing.T) {
	srv, fd := testServer(t, nil)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(WSMessage{Type: WSTypeSubscribe, ID: "s1", Payload: WSSubscribePayload{Channels: []string{"custom.channel"}}}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, func(m WSMessage) bool { return m.ID == "s1" })

	srv.hub.Broadcast("custom.channel", map[string]string{"hello": "panel"})
	ev := readUntil(t, conn, func(m WSMessage) bool { return m.Type == WSTypeEvent })
	if ev.EventType != "custom.channel" {
		t.Errorf("event = %+v", ev)
	}

	if err := conn.WriteJSON(WSMessage{Type: WSTypeSelect, ID: "sel", Payload: dispatch.Selection{Source: "consoles|snes"}}); err != nil {
		t.Fatal(err)
	}
	resp := readUntil(t, conn, func(m WSMessage) bool { return m.ID == "sel" })
	payload, _ := resp.Payload.(map[string]any)
	if resp.Type != WSTypeResponse || payload["address"] != "consoles|snes" || payload["status"] != "completed" {
		t.Errorf("select reply = %+v", resp)
	}
	if got := fd.recorded(); len(got) != 1 || got[0] != "consoles|snes" {
		t.Errorf("dispatched %v", got)
	}
}

func TestWebSocket_RequiresTokenWhenSecured(t *testing.T) {
	srv, _ := testServer(t, withSecret)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	base := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	if _, resp, err := websocket.DefaultDialer.Dial(base, nil); err == nil {
		t.Error("Dial without token should fail")
	} else if resp == nil || resp.StatusCode != 401 {
		t.Errorf("Dial without token response = %v, want 401", resp)
	}

	token, err := IssueToken(testSecret, "panel", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	conn, _, err := websocket.DefaultDialer.Dial(base+"?token="+token, nil)
	if err != nil {
		t.Fatalf("Dial with token: %v", err)
	}
	conn.Close()
}
