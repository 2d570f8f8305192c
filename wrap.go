package ringpool

import (
	"context"
)

// None is a placeholder for convinience if there is no parameters or no return value.
type None struct{}

// WrapAsync binds a function to the Pool, every call of the returned function
// submits one task with the given input and returns its Future.
func WrapAsync[In, Out any](p *Pool, f func(context.Context, In) (Out, error)) func(context.Context, In) (*Future[Out], error) {
	return func(ctx context.Context, in In) (*Future[Out], error) {
		return Async(ctx, p, func(innerctx context.Context) (Out, error) {
			return f(innerctx, in)
		})
	}
}

// Wrap wraps a function for ease of future use,
// allowing the wrapped function to be executed within the Pool.
// The wrapped function waits for the result or until the context done.
func Wrap[In, Out any](p *Pool, f func(context.Context, In) (Out, error)) func(context.Context, In) (Out, error) {
	async := WrapAsync(p, f)

	return func(ctx context.Context, in In) (Out, error) {
		future, err := async(ctx, in)
		if err != nil {
			var out Out
			return out, err
		}
		return future.Wait(ctx)
	}
}
