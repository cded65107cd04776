package wsrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client errors.
var (
	ErrAuthRequired  = errors.New("wsrpc: server requires a password")
	ErrHandshake     = errors.New("wsrpc: handshake failed")
	ErrRequestFailed = errors.New("wsrpc: request failed")
)

// Client is one identified websocket RPC session.
//
// A Client is used by a single goroutine for one batch and is not safe for
// concurrent use.
type Client struct {
	conn    *websocket.Conn
	timeout time.Duration
}

// Connect dials url and completes the Hello/Identify exchange.
//
// Parameters:
//   - ctx: Bounds the dial and handshake
//   - url: ws:// URL of the server
//   - password: Used when the server sends an authentication challenge
//   - timeout: Handshake timeout and per-message deadline
//
// Returns:
//   - *Client: Identified session; the caller must Close it
//   - error: Dial, authentication or protocol failure
func Connect(ctx context.Context, url, password string, timeout time.Duration) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(dialCtx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{conn: conn, timeout: timeout}
	if err := c.identify(password); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) identify(password string) error {
	msg, err := c.read()
	if err != nil {
		return fmt.Errorf("%w: reading hello: %w", ErrHandshake, err)
	}
	if msg.Op != OpHello {
		return fmt.Errorf("%w: expected hello, got op %d", ErrHandshake, msg.Op)
	}
	var hello Hello
	if err := json.Unmarshal(msg.D, &hello); err != nil {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	id := Identify{RPCVersion: RPCVersion}
	if hello.Authentication != nil {
		if password == "" {
			return ErrAuthRequired
		}
		id.Authentication = AuthResponse(password, hello.Authentication.Salt, hello.Authentication.Challenge)
	}
	if err := c.write(OpIdentify, id); err != nil {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	msg, err = c.read()
	if err != nil {
		return fmt.Errorf("%w: waiting for identified: %w", ErrHandshake, err)
	}
	if msg.Op != OpIdentified {
		return fmt.Errorf("%w: expected identified, got op %d", ErrHandshake, msg.Op)
	}
	return nil
}

// Request performs one request and returns its response data.
func (c *Client) Request(ctx context.Context, requestType string, data map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	if err := c.write(OpRequest, Request{RequestType: requestType, RequestID: id, RequestData: data}); err != nil {
		return nil, err
	}

	for {
		msg, err := c.read()
		if err != nil {
			return nil, fmt.Errorf("waiting for %s response: %w", requestType, err)
		}
		if msg.Op != OpRequestResponse {
			continue
		}
		var resp RequestResponse
		if err := json.Unmarshal(msg.D, &resp); err != nil {
			return nil, fmt.Errorf("decoding %s response: %w", requestType, err)
		}
		if resp.RequestID != id {
			continue
		}
		if !resp.RequestStatus.Result {
			return nil, fmt.Errorf("%w: %s: code %d %s", ErrRequestFailed, requestType,
				resp.RequestStatus.Code, resp.RequestStatus.Comment)
		}
		if resp.ResponseData == nil {
			return map[string]any{}, nil
		}
		return resp.ResponseData, nil
	}
}

// Close sends a normal closure and closes the connection.
func (c *Client) Close() error {
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.conn.Close()
}

func (c *Client) write(op OpCode, d any) error {
	msg, err := envelope(op, d)
	if err != nil {
		return err
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

func (c *Client) read() (Message, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return Message{}, err
	}
	var msg Message
	if err := c.conn.ReadJSON(&msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
