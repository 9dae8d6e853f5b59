package broadcast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelConnection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	conn := NewChannelConnection(2)
	assert.NotEmpty(t, conn.ID())

	require.NoError(t, conn.Send(ctx, map[string]int{"n": 1}))
	require.NoError(t, conn.Send(ctx, map[string]int{"n": 2}))
	assert.ErrorIs(t, conn.Send(ctx, map[string]int{"n": 3}), ErrSlowConsumer)

	assert.JSONEq(t, `{"n":1}`, string(<-conn.Messages()))
	assert.JSONEq(t, `{"n":2}`, string(<-conn.Messages()))

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.Send(ctx, "late"), ErrConnectionClosed)

	_, open := <-conn.Messages()
	assert.False(t, open)
	<-conn.Done()
}

func TestChannelConnection_EncodingError(t *testing.T) {
	t.Parallel()

	conn := NewChannelConnection(1)
	err := conn.Send(context.Background(), make(chan int))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSlowConsumer)
}
