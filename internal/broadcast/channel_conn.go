package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ChannelConnection delivers JSON-encoded messages into a buffered channel.
// It backs one-way transports such as Server-Sent Events, where the reader
// of Messages owns the network write.
type ChannelConnection struct {
	id string

	mu     sync.Mutex
	ch     chan []byte
	closed bool
	done   chan struct{}
}

// NewChannelConnection creates a connection whose outbound queue holds
// buffer messages.
func NewChannelConnection(buffer int) *ChannelConnection {
	return &ChannelConnection{
		id:   uuid.NewString(),
		ch:   make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// ID implements Connection.
func (c *ChannelConnection) ID() string {
	return c.id
}

// Send implements Connection. It never blocks: a full queue fails with
// ErrSlowConsumer.
func (c *ChannelConnection) Send(_ context.Context, msg any) error {
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
	case c.ch <- data:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Messages returns the outbound queue. It is closed by Close.
func (c *ChannelConnection) Messages() <-chan []byte {
	return c.ch
}

// Done is closed when the connection is closed.
func (c *ChannelConnection) Done() <-chan struct{} {
	return c.done
}

// Close stops delivery. It is safe to call more than once.
func (c *ChannelConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.ch)
		close(c.done)
	}
	return nil
}

var _ Connection = (*ChannelConnection)(nil)
