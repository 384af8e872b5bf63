// Package broadcast provides a generic publish/subscribe mechanism used for
// all of the data system's listener-based status and change notifications.
package broadcast

import "sync"

// Each subscriber gets a buffered channel so that a slow consumer does not
// immediately stall Broadcast. If the buffer fills up, Broadcast will block
// rather than drop the value.
const subscriberChannelBufferLength = 10

// Broadcaster fans out values to any number of subscriber channels.
//
// All methods are safe for concurrent use.
type Broadcaster[V any] struct {
	subscribers []channelPair[V]
	lock        sync.Mutex
}

// We need to keep track of both the channel we use for sending and the
// read-only facade of it that we hand out, so that RemoveListener can match on
// the value the caller has.
type channelPair[V any] struct {
	sendCh    chan<- V
	receiveCh <-chan V
}

// NewBroadcaster creates a Broadcaster with no subscribers.
func NewBroadcaster[V any]() *Broadcaster[V] {
	return &Broadcaster[V]{}
}

// AddListener creates a new subscription channel. The channel remains open
// until it is removed with RemoveListener or the Broadcaster is closed.
func (b *Broadcaster[V]) AddListener() <-chan V {
	ch := make(chan V, subscriberChannelBufferLength)
	b.lock.Lock()
	defer b.lock.Unlock()
	b.subscribers = append(b.subscribers, channelPair[V]{sendCh: ch, receiveCh: ch})
	return ch
}

// RemoveListener closes and unregisters the given subscription channel. It has
// no effect if the channel is not registered.
func (b *Broadcaster[V]) RemoveListener(ch <-chan V) {
	b.lock.Lock()
	defer b.lock.Unlock()
	for i, pair := range b.subscribers {
		if pair.receiveCh == ch {
			close(pair.sendCh)
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// HasListeners returns true if there is at least one active subscription.
func (b *Broadcaster[V]) HasListeners() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.subscribers) > 0
}

// Broadcast sends a value to all current subscribers.
func (b *Broadcaster[V]) Broadcast(value V) {
	b.lock.Lock()
	sendChs := make([]chan<- V, 0, len(b.subscribers))
	for _, pair := range b.subscribers {
		sendChs = append(sendChs, pair.sendCh)
	}
	b.lock.Unlock()
	for _, ch := range sendChs {
		ch <- value
	}
}

// Close closes all subscription channels and removes them.
func (b *Broadcaster[V]) Close() {
	b.lock.Lock()
	defer b.lock.Unlock()
	for _, pair := range b.subscribers {
		close(pair.sendCh)
	}
	b.subscribers = nil
}
