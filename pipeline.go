package ringpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrPipelineFrozen means the pipeline does not accept any further operations
	// since Pipeline.Join has been called.
	ErrPipelineFrozen = fmt.Errorf("ringpool: pipeline is frozen")
)

// AsyncExecutor is a function type used for executing a function asynchronously.
type AsyncExecutor func(ctx context.Context, fn Func) error

// GoSpawn is an implementation of AsyncExecutor that spawns a goroutine and directly
// executes the function (fn) within it.
func GoSpawn(ctx context.Context, fn Func) error {
	go fn(ctx)
	return nil
}

// PipelineOptions configure the Pipeline.
//
// NOTE that running the feeders on the same Pool as the work may result in a deadlock
// once every worker is occupied by a feeder waiting for the window.
type PipelineOptions struct {
	// FeederAsyncExecutor is the AsyncExecutor used by feeder, defaults to GoSpawn.
	FeederAsyncExecutor AsyncExecutor
	// Window bounds the number of inputs submitted to the Pool ahead of the output,
	// defaults to the number of workers of the Pool.
	Window int
	// OutputBufferSize is the buffer size of output channel.
	OutputBufferSize int
}

// Pipeline feeds inputs into a Pool and yields the outputs in feeding order.
type Pipeline[In, Out any] struct {
	pool     *Pool
	work     func(context.Context, In) (Out, error)
	feederGo AsyncExecutor
	feederWg sync.WaitGroup
	pendingc chan *Future[Out]
	outputc  chan Result[Out]

	processed atomic.Uint32
	joined    atomic.Bool
}

// NewPipeline creates a new pipeline whose feeders are fire-and-forget goroutines.
func NewPipeline[In, Out any](pool *Pool, work func(context.Context, In) (Out, error)) *Pipeline[In, Out] {
	return NewPipelineWith(pool, work, PipelineOptions{})
}

// NewPipelineWith creates a new Pipeline with PipelineOptions.
func NewPipelineWith[In, Out any](pool *Pool, work func(context.Context, In) (Out, error), opts PipelineOptions) *Pipeline[In, Out] {
	if opts.FeederAsyncExecutor == nil {
		opts.FeederAsyncExecutor = GoSpawn
	}
	if opts.Window <= 0 {
		opts.Window = pool.workers
	}
	return &Pipeline[In, Out]{
		pool:     pool,
		work:     work,
		feederGo: opts.FeederAsyncExecutor,
		feederWg: sync.WaitGroup{},
		pendingc: make(chan *Future[Out], opts.Window),
		outputc:  make(chan Result[Out], opts.OutputBufferSize),

		processed: atomic.Uint32{},
		joined:    atomic.Bool{},
	}
}

// StartFeeder initiates the feeding process of an array of inputs within the AsyncExecutor.
// The feeding process can be interrupted by the context.Context without any signal.
//
// This method must be invoked prior to Join, failing which ErrPipelineFrozen will be returned.
func (p *Pipeline[In, Out]) StartFeeder(ctx context.Context, items []In) error {
	return p.StartFeederFunc(ctx, func(ctx context.Context, feed func(In) error) {
		for _, e := range items {
			if feed(e) != nil {
				return
			}
		}
	})
}

// StartFeederFunc initiates a feeding process within the asynchronous executor.
// The feed function submits one input to the Pool, it returns an error if the
// context is done or the Pool is stopped, the feedLoop should return then.
// A rejected input still shows up in the output with the error.
//
// This method must be invoked prior to Join, failing which ErrPipelineFrozen will be returned.
func (p *Pipeline[In, Out]) StartFeederFunc(ctx context.Context, feedLoop func(context.Context, func(In) error)) error {
	p.feederWg.Add(1)
	if p.joined.Load() {
		p.feederWg.Done()
		return ErrPipelineFrozen
	}

	err := p.feederGo(ctx, func(ctx context.Context) {
		defer p.feederWg.Done()

		feedLoop(ctx, func(in In) error {
			return p.feed(ctx, in)
		})
	})
	if err != nil {
		p.feederWg.Done()
	}
	return err
}

func (p *Pipeline[In, Out]) feed(ctx context.Context, in In) error {
	// Take a place in the window first, so at most Window inputs are queued.
	future := newFuture[Out]()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.pendingc <- future:
	}

	err := p.pool.Submit(ctx, func(ctx context.Context) {
		future.run(ctx, func(ctx context.Context) (Out, error) {
			return p.work(ctx, in)
		})
	})
	if err != nil {
		future.resolve(Result[Out]{Err: err})
	}
	return err
}

// Join returns an output channel, the channel will be closed after all tasks are done.
// It is the caller's responsibility to drain the channel,
// the ProcessedCount variable serves to check if all inputs are processed.
// The pipeline is frozen after the join.
func (p *Pipeline[In, Out]) Join() <-chan Result[Out] {
	if !p.joined.CompareAndSwap(false, true) {
		return p.outputc
	}

	go func() {
		p.feederWg.Wait()
		close(p.pendingc)
	}()
	go func() {
		for future := range p.pendingc {
			<-future.Done()
			res, _ := future.Result()
			p.processed.Add(1)
			p.outputc <- res
		}
		close(p.outputc)
	}()
	return p.outputc
}

// ProcessedCount keeps track of the number of inputs that have been processed.
// The count is stable if the output channel has been closed.
func (p *Pipeline[In, Out]) ProcessedCount() int {
	return int(p.processed.Load())
}
