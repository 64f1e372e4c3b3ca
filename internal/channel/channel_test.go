package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedTrySend(t *testing.T) {
	c := NewBuffered[int](2)
	defer c.Close()

	assert.True(t, c.TrySend(1))
	assert.True(t, c.TrySend(2))
	assert.False(t, c.TrySend(3), "buffer full")
	assert.Equal(t, 2, c.Len())

	require.Equal(t, 1, <-c.Receive())
	assert.True(t, c.TrySend(3))
}

func TestBufferedReceiveOrder(t *testing.T) {
	c := NewBuffered[string](4)
	c.Send("a")
	c.Send("b")
	c.Close()

	assert.Equal(t, "a", <-c.Receive())
	assert.Equal(t, "b", <-c.Receive())
	_, open := <-c.Receive()
	assert.False(t, open)
}

func TestUnbufferedTrySendWithoutReceiver(t *testing.T) {
	c := NewUnbuffered[int]()
	defer c.Close()

	assert.False(t, c.TrySend(1), "no receiver waiting")
	assert.Equal(t, 0, c.Len())
}

func TestUnbufferedTrySendWithReceiver(t *testing.T) {
	c := NewUnbuffered[int]()
	defer c.Close()

	got := make(chan int, 1)
	ready := make(chan struct{})
	go func() {
		close(ready)
		got <- <-c.Receive()
	}()
	<-ready

	// The receiver may not be parked on the channel yet.
	for !c.TrySend(42) {
	}
	assert.Equal(t, 42, <-got)
}
