package ringpool

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

const (
	// DefaultQueueSize is the queue size used by New if Options.QueueSize is zero.
	DefaultQueueSize = 1024
	// DefaultHeadroom is the number of slots kept free by default,
	// i.e. a queue of size N reports full once N-DefaultHeadroom items are queued.
	DefaultHeadroom = 10
)

// QueueOptions configurates the Queue.
type QueueOptions struct {
	// Size is the number of slots, it must be a power of two.
	Size uint64
	// Headroom is the number of slots which are never handed out to producers.
	// Zero means DefaultHeadroom, a negative value disables the headroom.
	Headroom int
}

type slot[T any] struct {
	// seq == ticket: free for the producer holding that write ticket.
	// seq == ticket+1: published for the consumer holding that read ticket.
	seq  atomic.Uint64
	item T
}

// Queue is a bounded multi-producer multi-consumer FIFO ring buffer.
//
// Both producers and consumers claim a position with a single atomic ticket,
// the per slot sequence number guarantees a slot is never overwritten before
// it is consumed and never read before it is published.
// Producers block once Limit items are admitted, consumers never block in Pop.
//
// A Queue must not be copied after first use.
type Queue[T any] struct {
	slots []slot[T]
	mask  uint64
	limit uint64

	_        cpu.CacheLinePad
	head     atomic.Uint64 // next read ticket
	_        cpu.CacheLinePad
	tail     atomic.Uint64 // next write ticket
	_        cpu.CacheLinePad
	count    atomic.Uint64 // published and not yet reserved by a consumer
	_        cpu.CacheLinePad
	admitted atomic.Uint64 // producers admitted and not yet released by a consumer
	_        cpu.CacheLinePad

	notEmpty notifier
	notFull  notifier
}

// NewQueue creates a new Queue with DefaultHeadroom.
// It panics if size is not a power of two or is not larger than DefaultHeadroom.
func NewQueue[T any](size uint64) *Queue[T] {
	return NewQueueWith[T](QueueOptions{Size: size})
}

// NewQueueWith creates a new Queue with QueueOptions.
// It panics if the Size is not a power of two or is not larger than the Headroom.
func NewQueueWith[T any](opts QueueOptions) *Queue[T] {
	size := opts.Size
	if size == 0 || size&(size-1) != 0 {
		panic(fmt.Sprintf("ringpool: queue size %d is not a power of two", size))
	}
	headroom := uint64(0)
	switch {
	case opts.Headroom == 0:
		headroom = DefaultHeadroom
	case opts.Headroom > 0:
		headroom = uint64(opts.Headroom)
	}
	if headroom >= size {
		panic(fmt.Sprintf("ringpool: queue headroom %d leaves no room in %d slots", headroom, size))
	}

	q := &Queue[T]{
		slots: make([]slot[T], size),
		mask:  size - 1,
		limit: size - headroom,
	}
	for i := range q.slots {
		q.slots[i].seq.Store(uint64(i))
	}
	return q
}

// Push appends the item, waiting as long as it takes for the queue to become not full.
func (q *Queue[T]) Push(item T) {
	_ = q.PushContext(context.Background(), item)
}

// PushContext appends the item or waits until the context done if the queue is full.
// The item is not queued if an error returned.
func (q *Queue[T]) PushContext(ctx context.Context, item T) error {
	for !q.admit() {
		if err := q.notFull.wait(ctx, q.hasRoom); err != nil {
			return err
		}
	}
	q.put(item)
	return nil
}

// TryPush appends the item only if the queue is not full.
func (q *Queue[T]) TryPush(item T) bool {
	if !q.admit() {
		return false
	}
	q.put(item)
	return true
}

// Pop removes the oldest item, the second result is false if the queue is empty.
func (q *Queue[T]) Pop() (T, bool) {
	if !q.reserve() {
		var zero T
		return zero, false
	}
	return q.take(), true
}

// PopContext removes the oldest item or waits until the context done if the queue is empty.
func (q *Queue[T]) PopContext(ctx context.Context) (T, error) {
	for !q.reserve() {
		if err := q.notEmpty.wait(ctx, q.hasItems); err != nil {
			var zero T
			return zero, err
		}
	}
	return q.take(), nil
}

// Len returns the number of queued items, it is a snapshot.
func (q *Queue[T]) Len() int {
	return int(q.count.Load())
}

// Empty reports whether there is nothing to pop, it is a snapshot.
func (q *Queue[T]) Empty() bool {
	return q.count.Load() == 0
}

// Full reports whether a Push would wait, it is a snapshot.
func (q *Queue[T]) Full() bool {
	return !q.hasRoom()
}

// Cap returns the number of slots.
func (q *Queue[T]) Cap() int {
	return len(q.slots)
}

// Limit returns the maximum number of queued items, which is Cap minus the headroom.
func (q *Queue[T]) Limit() int {
	return int(q.limit)
}

func (q *Queue[T]) index(ticket uint64) uint64 {
	return ticket & q.mask
}

func (q *Queue[T]) hasRoom() bool {
	return q.admitted.Load() < q.limit
}

func (q *Queue[T]) hasItems() bool {
	return q.count.Load() > 0
}

func (q *Queue[T]) admit() bool {
	for {
		n := q.admitted.Load()
		if n >= q.limit {
			return false
		}
		if q.admitted.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (q *Queue[T]) reserve() bool {
	for {
		n := q.count.Load()
		if n == 0 {
			return false
		}
		if q.count.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

func (q *Queue[T]) put(item T) {
	ticket := q.tail.Add(1) - 1
	s := &q.slots[q.index(ticket)]
	// The consumer of the previous lap may still be copying the item out.
	if s.seq.Load() != ticket {
		_ = q.notFull.wait(context.Background(), func() bool { return s.seq.Load() == ticket })
	}
	s.item = item
	s.seq.Store(ticket + 1)
	q.count.Add(1)
	q.notEmpty.broadcast()
}

func (q *Queue[T]) take() T {
	ticket := q.head.Add(1) - 1
	s := &q.slots[q.index(ticket)]
	// A reservation only proves some item is published, the producer of this
	// particular ticket may still be writing.
	if s.seq.Load() != ticket+1 {
		_ = q.notEmpty.wait(context.Background(), func() bool { return s.seq.Load() == ticket+1 })
	}
	item := s.item
	var zero T
	s.item = zero
	s.seq.Store(ticket + uint64(len(q.slots)))
	q.admitted.Add(^uint64(0)) // Subtract 1.
	q.notFull.broadcast()
	return item
}
