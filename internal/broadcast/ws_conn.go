package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WSConfig tunes a WSConnection.
type WSConfig struct {
	// WriteWait bounds each frame write
	WriteWait time.Duration

	// PongWait is how long the peer may stay silent before reads fail
	PongWait time.Duration

	// PingPeriod must be shorter than PongWait
	PingPeriod time.Duration

	// SendBuffer is the capacity of the outbound queue
	SendBuffer int

	// MaxMessageSize limits inbound frames
	MaxMessageSize int64
}

// DefaultWSConfig returns the keepalive settings used by the server.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		SendBuffer:     64,
		MaxMessageSize: 4096,
	}
}

// WSConnection adapts a gorilla websocket to Connection. Outbound messages
// go through a buffered queue drained by a single writer goroutine, so Send
// never blocks on the network.
type WSConnection struct {
	id     string
	conn   *websocket.Conn
	cfg    WSConfig
	logger *slog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
	done   chan struct{}
}

// NewWSConnection wraps conn and starts its writer goroutine.
func NewWSConnection(conn *websocket.Conn, cfg WSConfig, logger *slog.Logger) *WSConnection {
	id := uuid.NewString()
	c := &WSConnection{
		id:     id,
		conn:   conn,
		cfg:    cfg,
		logger: logger.With("component", "ws_connection", "connection_id", id),
		send:   make(chan []byte, cfg.SendBuffer),
		done:   make(chan struct{}),
	}

	conn.SetReadLimit(cfg.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	go c.writePump()
	return c
}

// ID implements Connection.
func (c *WSConnection) ID() string {
	return c.id
}

// Send implements Connection. It queues msg as a JSON text frame and fails
// with ErrSlowConsumer when the queue is full.
func (c *WSConnection) Send(_ context.Context, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// ReadMessage reads the next client frame, extending the read deadline on
// every message received.
func (c *WSConnection) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	return data, nil
}

// Done is closed once the connection has been closed.
func (c *WSConnection) Done() <-chan struct{} {
	return c.done
}

// Close stops the writer, which sends a close frame and releases the socket.
// It is safe to call more than once.
func (c *WSConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func (c *WSConnection) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.flush()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteWait))
			return

		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("write failed, closing connection", "error", err)
				_ = c.Close()
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.logger.Debug("ping failed, closing connection", "error", err)
				_ = c.Close()
				return
			}
		}
	}
}

// flush writes whatever is still queued, stopping at the first error.
func (c *WSConnection) flush() {
	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

var _ Connection = (*WSConnection)(nil)
