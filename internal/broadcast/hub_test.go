package broadcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeConn records messages and can be told to fail.
type fakeConn struct {
	id string

	mu       sync.Mutex
	messages []any
	failWith error
	closed   bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(_ context.Context, msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return c.failWith
	}
	c.messages = append(c.messages, msg)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) received() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.messages...)
}

func (c *fakeConn) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failWith = err
}

func TestHub_SubscribeAndPublish(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	hub := NewHub(testLogger())

	a := newFakeConn("a")
	b := newFakeConn("b")
	other := newFakeConn("other")

	hub.Subscribe(a, "task-1")
	hub.Subscribe(b, "task-1")
	hub.Subscribe(other, "task-2")

	assert.Equal(t, 3, hub.ConnectionCount(), "subscribing registers the connection")
	assert.Equal(t, 2, hub.SubscriberCount("task-1"))

	for i := 0; i < 5; i++ {
		assert.Equal(t, 2, hub.Publish(ctx, "task-1", i))
	}

	want := []any{0, 1, 2, 3, 4}
	assert.Equal(t, want, a.received(), "events arrive in publish order")
	assert.Equal(t, want, b.received())
	assert.Empty(t, other.received(), "no events for other tasks")
}

func TestHub_CloseAll(t *testing.T) {
	t.Parallel()
	hub := NewHub(testLogger())

	a := newFakeConn("a")
	b := newFakeConn("b")
	hub.Subscribe(a, "task-1")
	hub.Register(b)

	assert.Equal(t, 2, hub.CloseAll())
	assert.Equal(t, 0, hub.ConnectionCount())
	assert.Equal(t, 0, hub.SubscriberCount("task-1"))
	assert.True(t, a.closed)
	assert.True(t, b.closed)
	assert.Equal(t, 0, hub.Publish(context.Background(), "task-1", "late"))

	assert.Equal(t, 0, hub.CloseAll(), "closing an empty hub is a no-op")
}

func TestHub_SubscribeIsIdempotent(t *testing.T) {
	t.Parallel()
	hub := NewHub(testLogger())
	conn := newFakeConn("a")

	hub.Subscribe(conn, "task-1")
	hub.Subscribe(conn, "task-1")
	hub.Register(conn)

	assert.Equal(t, 1, hub.SubscriberCount("task-1"))
	assert.Equal(t, 1, hub.ConnectionCount())
	assert.Equal(t, 1, hub.Publish(context.Background(), "task-1", "once"))
	assert.Len(t, conn.received(), 1)
}

func TestHub_LateSubscriberGetsNoReplay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	hub := NewHub(testLogger())

	assert.Equal(t, 0, hub.Publish(ctx, "task-1", "early"), "publishing with no subscribers is fine")

	conn := newFakeConn("late")
	hub.Subscribe(conn, "task-1")
	hub.Publish(ctx, "task-1", "late")

	assert.Equal(t, []any{"late"}, conn.received())
}

func TestHub_Unsubscribe(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	hub := NewHub(testLogger())
	conn := newFakeConn("a")

	hub.Subscribe(conn, "task-1")
	hub.Unsubscribe(conn, "task-1")

	assert.Equal(t, 0, hub.SubscriberCount("task-1"))
	assert.Equal(t, 1, hub.ConnectionCount(), "unsubscribe keeps the registration")
	assert.Equal(t, 0, hub.Publish(ctx, "task-1", "x"))
	assert.Equal(t, 1, hub.PublishAll(ctx, "hello"))
}

func TestHub_Disconnect(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	hub := NewHub(testLogger())

	conn := newFakeConn("a")
	keep := newFakeConn("b")
	for _, task := range []string{"t1", "t2", "t3"} {
		hub.Subscribe(conn, task)
	}
	hub.Subscribe(keep, "t1")

	assert.True(t, hub.Disconnect(conn))
	assert.False(t, hub.Disconnect(conn), "second disconnect is a no-op")

	assert.Equal(t, 1, hub.ConnectionCount())
	assert.Equal(t, 1, hub.SubscriberCount("t1"))
	assert.Equal(t, 0, hub.SubscriberCount("t2"))
	assert.Equal(t, 0, hub.SubscriberCount("t3"))

	assert.Equal(t, 1, hub.Publish(ctx, "t1", "after"))
	assert.Equal(t, 0, hub.Publish(ctx, "t2", "after"))
	assert.Empty(t, conn.received())
}

func TestHub_FailedSendDisconnectsOnlyThatConnection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	hub := NewHub(testLogger())

	first := newFakeConn("first")
	broken := newFakeConn("broken")
	last := newFakeConn("last")
	hub.Subscribe(first, "t1")
	hub.Subscribe(broken, "t1")
	hub.Subscribe(broken, "t2")
	hub.Subscribe(last, "t1")

	broken.fail(errors.New("socket gone"))

	assert.Equal(t, 2, hub.Publish(ctx, "t1", "update"))
	assert.Equal(t, []any{"update"}, first.received())
	assert.Equal(t, []any{"update"}, last.received(), "recipients after the failure still receive")

	assert.Equal(t, 2, hub.ConnectionCount())
	assert.Equal(t, 0, hub.SubscriberCount("t2"), "removed from every subscription")
	assert.True(t, broken.closed)
}

func TestHub_PublishAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	hub := NewHub(testLogger())

	conns := make([]*fakeConn, 3)
	for i := range conns {
		conns[i] = newFakeConn(fmt.Sprintf("c%d", i))
		hub.Register(conns[i])
	}
	conns[1].fail(ErrSlowConsumer)

	assert.Equal(t, 2, hub.PublishAll(ctx, "announcement"))
	assert.Equal(t, 2, hub.ConnectionCount())
	assert.Len(t, conns[0].received(), 1)
	assert.Len(t, conns[2].received(), 1)
}

func TestHub_ConcurrentUse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	hub := NewHub(testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := newFakeConn(fmt.Sprintf("conn-%d", i))
			task := fmt.Sprintf("task-%d", i%4)
			hub.Subscribe(conn, task)
			hub.Publish(ctx, task, i)
			hub.PublishAll(ctx, i)
			if i%2 == 0 {
				hub.Disconnect(conn)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, hub.ConnectionCount())
	total := 0
	for i := 0; i < 4; i++ {
		total += hub.SubscriberCount(fmt.Sprintf("task-%d", i))
	}
	require.Equal(t, 10, total)
}
