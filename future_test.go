package ringpool

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFuture_Value(t *testing.T) {
	t.Parallel()

	pool := New(Options{Workers: 2})
	defer pool.Close()

	f, err := Async(context.TODO(), pool, func(context.Context) (string, error) {
		return "hello", nil
	})
	require.NoError(t, err)
	v, err := f.Wait(context.TODO())
	require.NoError(t, err)
	require.Equal(t, "hello", v)

	res, ok := f.Result()
	require.True(t, ok)
	require.Equal(t, Result[string]{Value: "hello"}, res)
}

func TestFuture_Error(t *testing.T) {
	t.Parallel()

	pool := New(Options{Workers: 1})
	defer pool.Close()

	f, err := Async(context.TODO(), pool, func(context.Context) (int, error) {
		return 7, io.ErrUnexpectedEOF
	})
	require.NoError(t, err)
	v, err := f.Get()
	require.Equal(t, io.ErrUnexpectedEOF, err)
	require.Equal(t, 7, v)
}

func TestFuture_Panic(t *testing.T) {
	t.Parallel()

	pool := New(Options{Workers: 1})
	defer pool.Close()

	f, err := Async(context.TODO(), pool, func(context.Context) (int, error) {
		panic("boom")
	})
	require.NoError(t, err)
	_, err = f.Get()
	var perr *PanicError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, "boom", perr.Value)
	require.NotEmpty(t, perr.Stack)
	require.Contains(t, err.Error(), "boom")
	require.Nil(t, errors.Unwrap(err))

	f, err = Async(context.TODO(), pool, func(context.Context) (int, error) {
		panic(io.EOF)
	})
	require.NoError(t, err)
	_, err = f.Get()
	require.ErrorIs(t, err, io.EOF)

	// The worker survives the panics.
	f, err = Async(context.TODO(), pool, func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	v, err := f.Get()
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestFuture_Pending(t *testing.T) {
	t.Parallel()

	pool := New(Options{Workers: 1})
	defer pool.Close()

	releasec := make(chan struct{})
	f, err := Async(context.TODO(), pool, func(context.Context) (int, error) {
		<-releasec
		return 42, nil
	})
	require.NoError(t, err)

	_, ok := f.Result()
	require.False(t, ok)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = f.Wait(ctx)
	require.Equal(t, context.DeadlineExceeded, err)

	close(releasec)
	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatalf("future not resolved")
	}
	v, err := f.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, 42, v)
	v, err = f.Get()
	require.NoError(t, err)
	require.Equal(t, 42, v)
}
