package engine

import "sync"

// Request is the pending result of one engine operation. It resolves exactly
// once, after the transaction carrying the operation has committed or failed.
type Request[T any] struct {
	once   sync.Once
	done   chan struct{}
	result T
	err    error
}

func newRequest[T any]() *Request[T] {
	return &Request[T]{
		done: make(chan struct{}),
	}
}

// failedRequest returns a request that is already resolved with err.
func failedRequest[T any](err error) *Request[T] {
	req := newRequest[T]()
	var zero T
	req.resolve(zero, err)
	return req
}

// Done is closed once the request has resolved.
func (r *Request[T]) Done() <-chan struct{} {
	return r.done
}

// Result blocks until the request has resolved and returns its outcome.
func (r *Request[T]) Result() (T, error) {
	<-r.done
	return r.result, r.err
}

func (r *Request[T]) resolve(result T, err error) {
	r.once.Do(func() {
		r.result = result
		r.err = err
		close(r.done)
	})
}
