// Package future provides a minimal typed future used for deferred and
// subprocess-style execution. A Future is resolved exactly once and may
// be waited on by any number of goroutines.
package future

import "sync"

// Future holds a value of type T that may not have been computed yet.
type Future[T any] struct {
	done chan struct{}
	once sync.Once

	val T
	err error
}

// New returns an unresolved future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Go runs fn in its own goroutine and returns a future for its result.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := New[T]()
	go func() {
		f.Resolve(fn())
	}()
	return f
}

// Resolved returns a future already holding v and err.
func Resolved[T any](v T, err error) *Future[T] {
	f := New[T]()
	f.Resolve(v, err)
	return f
}

// Resolve sets the future's value. Calls after the first are ignored.
func (f *Future[T]) Resolve(v T, err error) {
	f.once.Do(func() {
		f.val = v
		f.err = err
		close(f.done)
	})
}

// Wait blocks until the future resolves and returns its value.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.val, f.err
}

// Done returns a channel closed when the future resolves.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}
