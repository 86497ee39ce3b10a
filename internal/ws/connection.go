// Package ws is the client side of the chat websocket: it dials the server,
// decodes inbound frames and hands them over in arrival order.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"mm/internal/models"
)

const (
	handshakeTimeout = 10 * time.Second
	closeGrace       = time.Second
	chatPath         = "/chat"
)

// ErrConnectionLost is returned by Run when the connection ends for any
// reason other than a local shutdown.
var ErrConnectionLost = errors.New("connection lost")

type wsConnection interface {
	Close() error
	ReadMessage() (messageType int, p []byte, err error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
}

type Connection struct {
	ws     wsConnection
	id     string
	frames chan models.Frame

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
}

func NewConnection(ws wsConnection) *Connection {
	return &Connection{
		ws:     ws,
		id:     uuid.NewString(),
		frames: make(chan models.Frame),
	}
}

// Dial opens the chat websocket of the server at serverURL. Cookies from jar
// are sent with the handshake.
func Dial(ctx context.Context, serverURL string, jar http.CookieJar) (*Connection, error) {
	u, err := ChatURL(serverURL)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
		Jar:              jar,
	}
	conn, resp, err := dialer.DialContext(ctx, u, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial %s: %s: %w", u, resp.Status, err)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", u, err)
	}

	c := NewConnection(conn)
	slog.Info("connected", "conn_id", c.id, "url", u)
	return c, nil
}

// ChatURL maps an http(s) server URL to its ws(s) chat endpoint.
func ChatURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = chatPath
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	return u.String(), nil
}

func (c *Connection) ID() string {
	return c.id
}

// Frames delivers decoded frames. It is closed when Run returns.
func (c *Connection) Frames() <-chan models.Frame {
	return c.frames
}

// Close shuts the connection down cleanly; Run then returns nil.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
}

// Run reads frames until ctx is cancelled, Close is called or the transport
// fails. The websocket is closed on every exit path.
func (c *Connection) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(c.frames)
		_ = c.ws.Close()
		return nil
	}
	c.cancel = cancel
	c.mu.Unlock()

	errorCh := make(chan error, 1)
	var wg sync.WaitGroup
	wg.Go(func() {
		errorCh <- c.pumpFrames(ctx)
	})

	var err error
	select {
	case err = <-errorCh:
	case <-ctx.Done():
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if werr := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace)); werr != nil {
			slog.Debug("failed to send close frame", "conn_id", c.id, "error", werr)
		}
	}
	_ = c.ws.Close()
	wg.Wait()
	close(c.frames)

	if ctx.Err() != nil {
		slog.Info("connection closed", "conn_id", c.id)
		return nil
	}

	slog.Warn("connection lost", "conn_id", c.id, "error", err)
	return fmt.Errorf("%w: %v", ErrConnectionLost, err)
}

func (c *Connection) pumpFrames(ctx context.Context) error {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var frame models.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			slog.Warn("skipping malformed frame", "conn_id", c.id, "error", err)
			continue
		}
		if frame.Empty() {
			slog.Debug("skipping unknown frame", "conn_id", c.id, "frame", string(data))
			continue
		}

		select {
		case c.frames <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
