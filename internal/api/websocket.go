package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/video-route/internal/dispatch"
	"github.com/nerrad567/video-route/internal/infrastructure/config"
	"github.com/nerrad567/video-route/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypeSelect      = "select"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// outboxSize is how many frames a slow panel may lag before frames drop.
const outboxSize = 256

// WSMessage is the JSON envelope for every frame in both directions.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// SelectFunc runs a selection received over a WebSocket.
type SelectFunc func(ctx context.Context, address string) *dispatch.Execution

// encodeFrame stamps and marshals one outbound frame.
func encodeFrame(msg WSMessage) ([]byte, error) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return json.Marshal(msg)
}

// wsTiming holds the keepalive settings derived from config.WebSocketConfig.
type wsTiming struct {
	readLimit int64
	pingEvery time.Duration
	pongWait  time.Duration
}

func newWSTiming(cfg config.WebSocketConfig) wsTiming {
	return wsTiming{
		readLimit: int64(cfg.MaxMessageSize),
		pingEvery: time.Duration(cfg.PingInterval) * time.Second,
		pongWait:  time.Duration(cfg.PongTimeout) * time.Second,
	}
}

// idleDeadline is how long a connection may stay silent before it is dropped.
func (t wsTiming) idleDeadline() time.Time {
	return time.Now().Add(t.pingEvery + t.pongWait)
}

// Hub tracks connected panels and fans dispatch events out to them.
// *Hub satisfies dispatch.WSHub.
//
// Thread Safety: all methods are safe for concurrent use.
type Hub struct {
	timing wsTiming
	logger *logging.Logger

	mu       sync.RWMutex
	conns    map[*wsConn]struct{}
	selectFn SelectFunc
	ctx      context.Context
}

// NewHub creates a hub. It accepts connections before Run is called; Run
// only ties their lifetime to a context.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		timing: newWSTiming(cfg),
		logger: logger,
		conns:  make(map[*wsConn]struct{}),
		ctx:    context.Background(),
	}
}

// SetSelector enables "select" messages. Without a selector clients may
// only subscribe to events.
func (h *Hub) SetSelector(fn SelectFunc) {
	h.mu.Lock()
	h.selectFn = fn
	h.mu.Unlock()
}

// Run blocks until ctx is cancelled, then disconnects every client.
// Selections started over a WebSocket inherit ctx.
func (h *Hub) Run(ctx context.Context) {
	h.mu.Lock()
	h.ctx = ctx
	h.mu.Unlock()

	<-ctx.Done()

	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[*wsConn]struct{})
	h.mu.Unlock()

	for c := range conns {
		c.shutdown()
		if c.ws != nil {
			c.ws.Close()
		}
	}
}

func (h *Hub) add(c *wsConn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// remove forgets c and closes its outbox. Calling it twice is harmless.
func (h *Hub) remove(c *wsConn) {
	h.mu.Lock()
	delete(h.conns, c)
	n := len(h.conns)
	h.mu.Unlock()

	c.shutdown()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// Broadcast queues an event for every client subscribed to channel.
// Clients whose outbox is full miss the event.
func (h *Hub) Broadcast(channel string, payload any) {
	frame, err := encodeFrame(WSMessage{Type: WSTypeEvent, EventType: channel, Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*wsConn, 0, len(h.conns))
	for c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.wants(channel) && c.deliver(frame) {
			delivered++
		}
	}
	if delivered > 0 {
		h.logger.Debug("broadcast sent", "channel", channel, "recipients", delivered)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) selector() (SelectFunc, context.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.selectFn, h.ctx
}

// upgrader leaves origin checks to the CORS middleware.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleWebSocket upgrades the request and starts the connection's pumps.
// Authentication, when enabled, already happened in authMiddleware.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := newWSConn(s.hub, ws)
	s.hub.add(c)

	go c.writeLoop()
	go c.readLoop()
}

// wsConn is one connected panel.
type wsConn struct {
	hub *Hub
	ws  *websocket.Conn

	mu       sync.Mutex
	outbox   chan []byte
	closed   bool
	channels map[string]bool
}

func newWSConn(hub *Hub, ws *websocket.Conn) *wsConn {
	return &wsConn{
		hub:      hub,
		ws:       ws,
		outbox:   make(chan []byte, outboxSize),
		channels: make(map[string]bool),
	}
}

// deliver queues frame without blocking. It reports false when the
// connection is closed or its outbox is full.
func (c *wsConn) deliver(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.outbox <- frame:
		return true
	default:
		return false
	}
}

// shutdown closes the outbox once; writeLoop then sends a close frame.
func (c *wsConn) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.outbox)
	}
}

func (c *wsConn) wants(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels[channel]
}

func (c *wsConn) readLoop() {
	defer func() {
		c.hub.remove(c)
		c.ws.Close()
	}()

	t := c.hub.timing
	c.ws.SetReadLimit(t.readLimit)
	//nolint:errcheck // a failed deadline surfaces as a read error
	c.ws.SetReadDeadline(t.idleDeadline())
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(t.idleDeadline())
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Browsers do not always answer protocol pings; any frame counts.
		//nolint:errcheck // a failed deadline surfaces as a read error
		c.ws.SetReadDeadline(t.idleDeadline())
		c.handle(data)
	}
}

func (c *wsConn) writeLoop() {
	t := c.hub.timing
	ping := time.NewTicker(t.pingEvery)
	defer func() {
		ping.Stop()
		c.ws.Close()
	}()

	write := func(kind int, data []byte) error {
		//nolint:errcheck // a failed deadline surfaces as a write error
		c.ws.SetWriteDeadline(time.Now().Add(t.pongWait))
		return c.ws.WriteMessage(kind, data)
	}

	for {
		select {
		case frame, ok := <-c.outbox:
			if !ok {
				//nolint:errcheck // connection is going away regardless
				write(websocket.CloseMessage, nil)
				return
			}
			if write(websocket.TextMessage, frame) != nil {
				return
			}
		case <-ping.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

// handle dispatches one inbound frame by type.
func (c *wsConn) handle(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.fail("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.subscribe(msg, true)
	case WSTypeUnsubscribe:
		c.subscribe(msg, false)
	case WSTypeSelect:
		c.selectSource(msg)
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.fail(msg.ID, "unknown message type: "+msg.Type)
	}
}

// decodePayload re-decodes the generic payload into v.
func decodePayload(payload any, v any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// subscribe adds (on) or removes channels and echoes them back.
func (c *wsConn) subscribe(msg WSMessage, on bool) {
	var sub WSSubscribePayload
	if err := decodePayload(msg.Payload, &sub); err != nil {
		c.fail(msg.ID, "invalid "+msg.Type+" payload")
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		if on {
			c.channels[ch] = true
		} else {
			delete(c.channels, ch)
		}
	}
	c.mu.Unlock()

	key := "unsubscribed"
	if on {
		key = "subscribed"
		c.hub.logger.Debug("websocket client subscribed", "channels", sub.Channels)
	}
	c.reply(msg.ID, WSTypeResponse, map[string]any{key: sub.Channels})
}

// selectSource runs a selection and answers with the execution. The
// dispatch runs off the read loop so pings keep flowing during slow batches.
func (c *wsConn) selectSource(msg WSMessage) {
	fn, ctx := c.hub.selector()
	if fn == nil {
		c.fail(msg.ID, "selection over websocket is not enabled")
		return
	}

	var sel dispatch.Selection
	if err := decodePayload(msg.Payload, &sel); err != nil || sel.Source == "" {
		c.fail(msg.ID, "source is required")
		return
	}

	go func() {
		c.reply(msg.ID, WSTypeResponse, fn(ctx, sel.Source))
	}()
}

func (c *wsConn) reply(id, msgType string, payload any) {
	frame, err := encodeFrame(WSMessage{Type: msgType, ID: id, Payload: payload})
	if err != nil {
		c.hub.logger.Error("failed to marshal websocket reply", "type", msgType, "error", err)
		return
	}
	c.deliver(frame)
}

func (c *wsConn) fail(id, message string) {
	c.reply(id, WSTypeError, map[string]string{"message": message})
}
