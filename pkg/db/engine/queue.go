package engine

import "sync"

// jobQueue is an unbounded FIFO of pending transactions. Callers never block
// while enqueuing; a single worker drains it in order.
type jobQueue struct {
	mutex  sync.Mutex
	jobs   []func()
	closed bool
	signal chan struct{} // buffered, size 1; coalesces wake-ups
}

func newJobQueue() *jobQueue {
	return &jobQueue{
		jobs:   make([]func(), 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// push appends a job and returns false if the queue no longer accepts work.
func (q *jobQueue) push(job func()) bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.closed {
		return false
	}

	q.jobs = append(q.jobs, job)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// next blocks until a job is available. It returns false once the queue has
// been closed and fully drained.
func (q *jobQueue) next() (func(), bool) {
	for {
		q.mutex.Lock()
		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs[0] = nil
			q.jobs = q.jobs[1:]
			q.mutex.Unlock()
			return job, true
		}
		if q.closed {
			q.mutex.Unlock()
			return nil, false
		}
		q.mutex.Unlock()

		<-q.signal
	}
}

func (q *jobQueue) len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.jobs)
}

// close stops accepting jobs; already queued jobs are still handed out.
func (q *jobQueue) close() {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
