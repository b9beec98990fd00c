package voicelive

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const (
	realtimePath = "/voice-live/realtime"
	writeTimeout = 10 * time.Second
	dialTimeout  = 15 * time.Second
)

// Config describes how to reach the Voice Live resource
type Config struct {
	Endpoint   string // resource endpoint, https:// or wss://
	Model      string // model or deployment identifier
	APIVersion string
	Credential Credential
	Query      url.Values // extra query parameters, optional
}

// Conn is a single-use connection to one Voice Live realtime session.
// Writes are serialized internally; Receive must be called from one
// goroutine at a time.
type Conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	mu     sync.RWMutex
	closed bool
}

// Dial connects and authenticates to the Voice Live realtime endpoint
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Credential == nil {
		return nil, fmt.Errorf("credential is required")
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return nil, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + realtimePath

	q := u.Query()
	q.Set("api-version", cfg.APIVersion)
	q.Set("model", cfg.Model)
	for k, vs := range cfg.Query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	if err := cfg.Credential.Apply(ctx, header); err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	ws, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial voice live (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial voice live: %w", err)
	}

	return &Conn{ws: ws}, nil
}

// Configure sends the session.update event. Must be called once, before any
// audio is appended.
func (c *Conn) Configure(cfg SessionConfig) error {
	return c.send(clientEvent{Type: "session.update", Session: &cfg})
}

// AppendAudio forwards one base64-encoded PCM16 chunk to the input buffer
func (c *Conn) AppendAudio(audioB64 string) error {
	return c.send(clientEvent{Type: "input_audio_buffer.append", Audio: audioB64})
}

// CreateResponse asks the upstream to start generating a response
func (c *Conn) CreateResponse() error {
	return c.send(clientEvent{Type: "response.create"})
}

// CancelResponse cancels the in-progress response, if any. Cancelling when
// no response is active surfaces as a benign error event (see
// ServerError.IsNoActiveResponse).
func (c *Conn) CancelResponse() error {
	return c.send(clientEvent{Type: "response.cancel"})
}

// Receive blocks until the next server event arrives or the connection
// fails. Unknown event types decode to KindUnknown.
func (c *Conn) Receive() (ServerEvent, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ServerEvent{}, fmt.Errorf("connection is closed")
	}

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return ServerEvent{}, err
	}
	return ParseServerEvent(data)
}

func (c *Conn) send(ev clientEvent) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return fmt.Errorf("connection is closed")
	}

	data, err := sonic.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Type, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send %s: %w", ev.Type, err)
	}
	return nil
}

// Close terminates the connection. Safe to call concurrently and repeatedly;
// unblocks a pending Receive.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	return c.ws.Close()
}
