package broker

import (
	"context"
	"sync"
)

// queue is the FIFO wait queue of one label. Many callers push; only the
// label's dispatcher pops.
type queue struct {
	mu     sync.Mutex
	items  []*request
	signal chan struct{}
}

func newQueue() *queue {
	return &queue{
		signal: make(chan struct{}, 1),
	}
}

func (q *queue) push(r *request) {
	q.mu.Lock()
	q.items = append(q.items, r)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// remove drops r from the queue and reports whether it was still queued.
func (q *queue) remove(r *request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.items {
		if item == r {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// pop blocks until a request is available or ctx is done.
func (q *queue) pop(ctx context.Context) (*request, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			r := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return r, nil
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *queue) snapshot() []*request {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*request, len(q.items))
	copy(out, q.items)
	return out
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}
