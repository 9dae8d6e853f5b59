package broadcast

import "errors"

var (
	// ErrConnectionClosed is returned when sending on a closed connection.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrSlowConsumer is returned when a connection's outbound queue is full.
	ErrSlowConsumer = errors.New("connection outbound queue full")
)
