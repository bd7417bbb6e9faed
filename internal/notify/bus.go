// Package notify pushes notification changes to subscribed sessions.
//
// A Bus carries bare "user X's notifications changed" signals. Whoever
// receives a signal re-reads the store, so a burst of signals collapses into
// one read of the latest state.
package notify

import (
	"context"
	"sync"
)

// Bus signals that a user's notifications changed.
type Bus interface {
	// Publish signals every subscriber of userID.
	Publish(ctx context.Context, userID string) error

	// Subscribe returns a channel receiving a value after each Publish for
	// userID. Pending signals are coalesced. The channel is closed after cancel
	// is called or ctx ends.
	Subscribe(ctx context.Context, userID string) (<-chan struct{}, func(), error)
}

// LocalBus is an in-process Bus.
type LocalBus struct {
	lock        sync.Mutex
	subscribers map[string]map[uint64]chan struct{}
	nextID      uint64
}

var _ Bus = (*LocalBus)(nil)

// NewLocalBus returns a LocalBus with no subscribers.
func NewLocalBus() *LocalBus {
	return &LocalBus{subscribers: make(map[string]map[uint64]chan struct{})}
}

// Publish signals every live subscription for userID. It never blocks.
func (b *LocalBus) Publish(_ context.Context, userID string) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	for _, ch := range b.subscribers[userID] {
		signal(ch)
	}
	return nil
}

// Subscribe registers a subscription for userID. The returned cancel is safe
// to call more than once.
func (b *LocalBus) Subscribe(ctx context.Context, userID string) (<-chan struct{}, func(), error) {
	b.lock.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan struct{}, 1)
	if b.subscribers[userID] == nil {
		b.subscribers[userID] = make(map[uint64]chan struct{})
	}
	b.subscribers[userID][id] = ch
	b.lock.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			b.lock.Lock()
			defer b.lock.Unlock()
			delete(b.subscribers[userID], id)
			if len(b.subscribers[userID]) == 0 {
				delete(b.subscribers, userID)
			}
			close(ch)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return ch, cancel, nil
}

// Subscribers returns the number of live subscriptions for userID.
func (b *LocalBus) Subscribers(userID string) int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.subscribers[userID])
}

// signal does a non-blocking send on a channel with a buffer of one, so a
// pending signal absorbs later ones.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
