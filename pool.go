package ringpool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
)

var (
	// ErrPoolStopped is returned by Submit once WaitDone or Close has been called,
	// the task is not queued.
	ErrPoolStopped = fmt.Errorf("ringpool: pool is stopped")
)

// Options configurates the Pool.
type Options struct {
	// Workers specifies the fixed number of workers(goroutines),
	// 0 means runtime.NumCPU().
	Workers int
	// QueueSize is the number of slots of the task queue, it must be a power of two.
	// 0 means DefaultQueueSize.
	QueueSize uint64
	// Headroom is the number of queue slots kept free, see QueueOptions.Headroom.
	Headroom int
	// CreateWorkerID will inject a worker id into the context of Func.
	// The worker id is useful, for example, we can use it to do some lockless operations
	// since the workers live as long as the pool.
	CreateWorkerID bool
	// Logger receives lifecycle records, nothing is logged if it is nil.
	Logger *slog.Logger
}

type contextKeyWorkerID struct{}

func injectWorkerID(ctx context.Context, id uint32) context.Context {
	if id != 0 {
		ctx = context.WithValue(ctx, contextKeyWorkerID{}, id)
	}
	return ctx
}

// WorkerID returns the worker id associated with this context.
// Only available if the option CreateWorkerID enabled.
// NOTE that the worker id always starts with 1.
func WorkerID(ctx context.Context) (uint32, bool) {
	if value := ctx.Value(contextKeyWorkerID{}); value != nil {
		return value.(uint32), true
	}
	return 0, false
}

// Func is the type of the function called by worker in the pool.
// It is the caller's responsibility to recover the panic, use Async if
// the panic should be reported through a Future.
type Func func(context.Context)

// Pool runs submitted tasks on a fixed number of workers(goroutines).
// Tasks are queued in a Queue and picked up by the workers in submission order.
//
// NOTE that the Pool does not handle panics raised by Func.
type Pool struct {
	queue          *Queue[task]
	workers        int
	createWorkerID bool
	logger         *slog.Logger

	nidles    atomic.Int32
	submitted atomic.Uint64
	completed atomic.Uint64
	inflight  atomic.Int64 // Submit calls between the stop check and the push
	stopped   atomic.Bool
	stopOnce  sync.Once
	wg        sync.WaitGroup
	donec     chan struct{}
}

// New creates a new Pool and starts all of its workers.
// It panics if the QueueSize is not a power of two, see NewQueueWith.
func New(opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.QueueSize == 0 {
		opts.QueueSize = DefaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(disabledHandler{})
	}

	p := &Pool{
		queue:          NewQueueWith[task](QueueOptions{Size: opts.QueueSize, Headroom: opts.Headroom}),
		workers:        opts.Workers,
		createWorkerID: opts.CreateWorkerID,
		logger:         logger,
		donec:          make(chan struct{}),
	}

	p.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		w := &worker{pool: p}
		if p.createWorkerID {
			w.id = uint32(i + 1)
		}
		go w.run()
	}
	p.logger.Info("worker pool started",
		slog.Int("workers", opts.Workers), slog.Uint64("queue_size", opts.QueueSize))
	return p
}

// Stats contains a list of pool counters.
type Stats struct {
	Workers     int
	IdleWorkers int
	Queued      int
	Submitted   uint64
	Completed   uint64
}

// Stats returns the current stats.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:     p.workers,
		IdleWorkers: int(p.nidles.Load()),
		Queued:      p.queue.Len(),
		Submitted:   p.submitted.Load(),
		Completed:   p.completed.Load(),
	}
}

// Submit queues a task and returns as soon as it is queued, it waits
// until the context done if the queue is full.
// ErrPoolStopped is returned if the pool has been stopped.
// The "same" ctx will be passed into Func.
func (p *Pool) Submit(ctx context.Context, fn Func) error {
	return p.submit(ctx, task{ctx: ctx, fn: fn})
}

func (p *Pool) submit(ctx context.Context, t task) error {
	// Workers only exit once stopped is set and no submission is in flight,
	// so a task passing the check below is always executed.
	p.inflight.Add(1)
	defer func() {
		if p.inflight.Add(-1) == 0 && p.stopped.Load() {
			p.queue.notEmpty.broadcast()
		}
	}()

	if p.stopped.Load() {
		p.logger.Debug("task rejected, pool is stopped")
		return ErrPoolStopped
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.submitted.Add(1)
	if err := p.queue.PushContext(ctx, t); err != nil {
		p.submitted.Add(^uint64(0))
		return err
	}
	return nil
}

// WaitDone stops accepting tasks and waits until all queued tasks done or the context done.
// The pool becomes unusable(read only) after this operation, but the workers keep
// draining the queue in the background if the context done first.
func (p *Pool) WaitDone(ctx context.Context) error {
	p.stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.donec:
		return nil
	}
}

// Close is WaitDone without a deadline.
func (p *Pool) Close() {
	_ = p.WaitDone(context.Background())
}

func (p *Pool) stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("worker pool stopping", slog.Int("queued", p.queue.Len()))
		p.stopped.Store(true)
		p.queue.notEmpty.broadcast()
		go func() {
			p.wg.Wait()
			p.logger.Info("worker pool stopped", slog.Uint64("completed", p.completed.Load()))
			close(p.donec)
		}()
	})
}

// drained reports whether a stopped worker may exit.
func (p *Pool) drained() bool {
	return p.stopped.Load() && p.inflight.Load() == 0 && p.queue.Empty()
}

type worker struct {
	id   uint32
	pool *Pool
}

func (w *worker) run() {
	p := w.pool
	defer p.wg.Done()

	inject := func(ctx context.Context) context.Context {
		return injectWorkerID(ctx, w.id)
	}
	hasWork := func() bool {
		return !p.queue.Empty() || p.drained()
	}

	p.nidles.Add(1)
	defer p.nidles.Add(-1)
	for {
		if t, ok := p.queue.Pop(); ok {
			p.nidles.Add(-1)
			t.execute(inject)
			p.completed.Add(1)
			p.nidles.Add(1)
			continue
		}
		if p.drained() {
			p.logger.Debug("worker exited", slog.Int("worker_id", int(w.id)))
			return
		}
		_ = p.queue.notEmpty.wait(context.Background(), hasWork)
	}
}

type task struct {
	ctx context.Context
	fn  Func
}

func (t task) execute(inject func(context.Context) context.Context) {
	if t.fn != nil {
		t.fn(inject(t.ctx))
	}
}
