package ringpool

import (
	"context"
	"fmt"
	"runtime/debug"
)

// PanicError is the error of a Future whose task panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("ringpool: task panicked: %v", e.Value)
}

// Unwrap returns the panic value if it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Result is the outcome of a task.
type Result[T any] struct {
	Value T
	Err   error
}

// Future is the pending result of a task submitted by Async.
// It is resolved exactly once, by the worker which executed the task.
type Future[T any] struct {
	done   chan struct{}
	result Result[T]
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Done returns a channel which is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait waits until the result is available or the context done.
// The error is either the task's error, a *PanicError or the context error.
// An available result is returned even if the context is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	if res, ok := f.Result(); ok {
		return res.Value, res.Err
	}
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-f.done:
		return f.result.Value, f.result.Err
	}
}

// Get waits as long as it takes for the result.
func (f *Future[T]) Get() (T, error) {
	<-f.done
	return f.result.Value, f.result.Err
}

// Result returns the result without waiting, ok is false if it is not available yet.
func (f *Future[T]) Result() (res Result[T], ok bool) {
	select {
	case <-f.done:
		return f.result, true
	default:
		return res, false
	}
}

func (f *Future[T]) resolve(res Result[T]) {
	f.result = res
	close(f.done)
}

func (f *Future[T]) run(ctx context.Context, fn func(context.Context) (T, error)) {
	var res Result[T]
	defer func() {
		if r := recover(); r != nil {
			res = Result[T]{Err: &PanicError{Value: r, Stack: debug.Stack()}}
		}
		f.resolve(res)
	}()
	res.Value, res.Err = fn(ctx)
}

// Async submits fn to the pool and returns a Future of its result.
// Any panic raised by fn is recovered and reported as a *PanicError.
// The error is ErrPoolStopped or the context error if fn could not be queued,
// see Pool.Submit.
func Async[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (*Future[T], error) {
	f := newFuture[T]()
	err := p.Submit(ctx, func(ctx context.Context) {
		f.run(ctx, fn)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}
