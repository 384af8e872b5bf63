package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastReachesAllListeners(t *testing.T) {
	b := NewBroadcaster[string]()
	defer b.Close()

	ch1 := b.AddListener()
	ch2 := b.AddListener()

	b.Broadcast("hello")

	assert.Equal(t, "hello", requireValue(t, ch1))
	assert.Equal(t, "hello", requireValue(t, ch2))
}

func TestBroadcastWithNoListenersDoesNotBlock(t *testing.T) {
	b := NewBroadcaster[int]()
	defer b.Close()
	b.Broadcast(1)
}

func TestRemoveListenerClosesChannel(t *testing.T) {
	b := NewBroadcaster[int]()
	defer b.Close()

	ch1 := b.AddListener()
	ch2 := b.AddListener()
	b.RemoveListener(ch1)

	_, ok := <-ch1
	assert.False(t, ok)

	b.Broadcast(3)
	assert.Equal(t, 3, requireValue(t, ch2))
}

func TestHasListeners(t *testing.T) {
	b := NewBroadcaster[int]()
	defer b.Close()

	assert.False(t, b.HasListeners())
	ch := b.AddListener()
	assert.True(t, b.HasListeners())
	b.RemoveListener(ch)
	assert.False(t, b.HasListeners())
}

func TestCloseClosesAllListenerChannels(t *testing.T) {
	b := NewBroadcaster[int]()
	ch := b.AddListener()
	b.Close()

	_, ok := <-ch
	assert.False(t, ok)
	assert.False(t, b.HasListeners())
}

func requireValue[V any](t *testing.T, ch <-chan V) V {
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		require.FailNow(t, "timed out waiting for broadcast value")
		var zero V
		return zero
	}
}
