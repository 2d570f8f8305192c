package ringpool

import (
	"context"
	"sync"
	"sync/atomic"
)

// notifier parks goroutines until some state they care about changes.
// broadcast is a single atomic load when nobody is parked.
type notifier struct {
	waiters atomic.Int32
	mu      sync.Mutex
	ch      chan struct{}
}

// wait blocks until ready reports true or the ctx is done.
// ready must be re-checkable at any time, it is evaluated after every wake up.
func (n *notifier) wait(ctx context.Context, ready func() bool) error {
	n.waiters.Add(1)
	defer n.waiters.Add(-1)

	for {
		// Grab the channel before checking the condition, a broadcast that lands
		// in between closes exactly this channel.
		n.mu.Lock()
		if n.ch == nil {
			n.ch = make(chan struct{})
		}
		ch := n.ch
		n.mu.Unlock()

		if ready() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// broadcast wakes every parked waiter, it must be called after the state change.
func (n *notifier) broadcast() {
	if n.waiters.Load() == 0 {
		return
	}
	n.mu.Lock()
	if n.ch != nil {
		close(n.ch)
		n.ch = nil
	}
	n.mu.Unlock()
}
