package engine

import "sync"

// triggerQueue is a thread-safe FIFO of trigger ids.
//
// The queue is unbounded so producers (stdin readers, tests, a future
// network front end) never block on a slow turn. A buffered signal
// channel lets the Run loop wait with a context.
type triggerQueue struct {
	mu       sync.Mutex
	triggers []string
	closed   bool
	signal   chan struct{} // buffered, size 1; closed on Close
}

func newTriggerQueue() *triggerQueue {
	return &triggerQueue{
		triggers: make([]string, 0, 16),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a trigger to the back of the queue.
// Returns false if the queue is closed.
func (q *triggerQueue) Enqueue(trigger string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.triggers = append(q.triggers, trigger)

	// Non-blocking; the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front trigger without blocking.
func (q *triggerQueue) TryDequeue() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.triggers) == 0 {
		return "", false
	}

	t := q.triggers[0]
	if len(q.triggers) == 1 {
		q.triggers = q.triggers[:0]
	} else {
		q.triggers = q.triggers[1:]
	}
	return t, true
}

// Wait returns a channel that fires when triggers may be available or the
// queue has been closed.
func (q *triggerQueue) Wait() <-chan struct{} {
	return q.signal
}

// Drained reports whether the queue is closed and empty.
func (q *triggerQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.triggers) == 0
}

// Len returns the current queue length.
func (q *triggerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.triggers)
}

// Close stops further enqueues. Triggers already queued are still
// delivered.
func (q *triggerQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
