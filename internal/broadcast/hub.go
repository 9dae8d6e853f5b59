package broadcast

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
)

// Connection is a push channel to one client.
type Connection interface {
	// ID uniquely identifies the connection within a hub.
	ID() string

	// Send delivers msg to the client. Implementations must not block
	// indefinitely; an error means the message was not delivered.
	Send(ctx context.Context, msg any) error
}

// Hub tracks connections and task subscriptions. It is safe for concurrent use.
type Hub struct {
	mu sync.Mutex

	// connections is the global registry, keyed by connection id
	connections map[string]Connection

	// subscribers maps task id to its subscribers in subscription order
	subscribers map[string][]Connection

	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		connections: make(map[string]Connection),
		subscribers: make(map[string][]Connection),
		logger:      logger.With("component", "broadcast_hub"),
	}
}

// Register adds conn to the global registry. Registering twice is a no-op.
func (h *Hub) Register(conn Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.registerLocked(conn)
}

func (h *Hub) registerLocked(conn Connection) {
	if _, ok := h.connections[conn.ID()]; ok {
		return
	}
	h.connections[conn.ID()] = conn
	h.logger.Debug("connection registered",
		"connection_id", conn.ID(),
		"connection_count", len(h.connections))
}

// Subscribe adds conn to the subscribers of taskID, registering conn first
// if needed. Duplicate subscriptions are ignored.
func (h *Hub) Subscribe(conn Connection, taskID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.registerLocked(conn)
	subs := h.subscribers[taskID]
	if slices.ContainsFunc(subs, sameID(conn)) {
		return
	}
	h.subscribers[taskID] = append(subs, conn)
	h.logger.Debug("connection subscribed",
		"connection_id", conn.ID(),
		"task_id", taskID,
		"subscriber_count", len(subs)+1)
}

// Unsubscribe removes conn from the subscribers of taskID. The connection
// stays registered.
func (h *Hub) Unsubscribe(conn Connection, taskID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(conn.ID(), taskID)
}

func (h *Hub) unsubscribeLocked(connID, taskID string) {
	subs := slices.DeleteFunc(h.subscribers[taskID], func(c Connection) bool {
		return c.ID() == connID
	})
	if len(subs) == 0 {
		delete(h.subscribers, taskID)
		return
	}
	h.subscribers[taskID] = subs
}

// Disconnect removes conn from the registry and from every subscription.
// It reports whether conn was registered.
func (h *Hub) Disconnect(conn Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, registered := h.connections[conn.ID()]
	delete(h.connections, conn.ID())
	for taskID := range h.subscribers {
		h.unsubscribeLocked(conn.ID(), taskID)
	}

	if registered {
		h.logger.Debug("connection disconnected",
			"connection_id", conn.ID(),
			"connection_count", len(h.connections))
	}
	return registered
}

// Publish sends msg to every subscriber of taskID in subscription order and
// returns the number of successful deliveries. Connections that fail are
// disconnected and closed.
func (h *Hub) Publish(ctx context.Context, taskID string, msg any) int {
	h.mu.Lock()
	recipients := slices.Clone(h.subscribers[taskID])
	h.mu.Unlock()

	return h.deliver(ctx, recipients, msg, "task_id", taskID)
}

// PublishAll sends msg to every registered connection and returns the number
// of successful deliveries.
func (h *Hub) PublishAll(ctx context.Context, msg any) int {
	h.mu.Lock()
	recipients := make([]Connection, 0, len(h.connections))
	for _, conn := range h.connections {
		recipients = append(recipients, conn)
	}
	h.mu.Unlock()

	return h.deliver(ctx, recipients, msg, "scope", "all")
}

func (h *Hub) deliver(ctx context.Context, recipients []Connection, msg any, attrs ...any) int {
	delivered := 0
	for _, conn := range recipients {
		if err := conn.Send(ctx, msg); err != nil {
			h.logger.Debug("delivery failed, dropping connection",
				append(attrs, "connection_id", conn.ID(), "error", err)...)
			h.Disconnect(conn)
			if closer, ok := conn.(io.Closer); ok {
				_ = closer.Close()
			}
			continue
		}
		delivered++
	}
	return delivered
}

// CloseAll disconnects and closes every registered connection and returns
// how many were closed. Streams held by handlers end once their connection
// is closed.
func (h *Hub) CloseAll() int {
	h.mu.Lock()
	conns := make([]Connection, 0, len(h.connections))
	for _, conn := range h.connections {
		conns = append(conns, conn)
	}
	h.connections = make(map[string]Connection)
	h.subscribers = make(map[string][]Connection)
	h.mu.Unlock()

	for _, conn := range conns {
		if closer, ok := conn.(io.Closer); ok {
			_ = closer.Close()
		}
	}
	if len(conns) > 0 {
		h.logger.Info("closed all connections", "connection_count", len(conns))
	}
	return len(conns)
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections)
}

// SubscriberCount returns the number of connections subscribed to taskID.
func (h *Hub) SubscriberCount(taskID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[taskID])
}

func sameID(conn Connection) func(Connection) bool {
	return func(c Connection) bool { return c.ID() == conn.ID() }
}
