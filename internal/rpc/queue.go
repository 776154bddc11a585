package rpc

import "sync"

// Queue is an unbounded FIFO handoff between the transport's read goroutine
// and the consumer loop. Push never blocks; the backend paces itself, so the
// queue stays small in practice but is allowed to grow without limit rather
// than ever stall or reorder the read side.
//
// Delivery order is strictly the push order. Update scripts are only
// meaningful relative to the cache state left by the previous script, so
// reordering, coalescing, or dropping would corrupt every mirror downstream.
type Queue struct {
	mu     sync.Mutex
	items  []Message
	out    chan Message
	wake   chan struct{}
	closed bool
	done   chan struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

// NewQueue creates the queue and starts its pump goroutine.
func NewQueue() *Queue {
	q := &Queue{
		out:  make(chan Message),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		stop: make(chan struct{}),
	}
	go q.pump()
	return q
}

// Push appends a message. It never blocks. Pushing after Close is a no-op.
func (q *Queue) Push(msg Message) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, msg)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// C returns the ordered output channel. It is closed after Close once all
// buffered messages have been delivered.
func (q *Queue) C() <-chan Message {
	return q.out
}

// Close stops the queue. Messages already pushed are still delivered before
// the output channel closes. Close does not wait for the consumer to drain.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Stop hard-stops the queue, releasing the pump goroutine even when nothing
// drains the output channel anymore. Buffered messages may be dropped; use
// Close when the consumer is still reading.
func (q *Queue) Stop() {
	q.Close()
	q.stopOnce.Do(func() { close(q.stop) })
}

// Done is closed once every buffered message has been delivered after Close.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// pump moves messages from the buffer to the output channel, preserving
// order. It is the only reader of the buffer head.
func (q *Queue) pump() {
	defer close(q.done)
	defer close(q.out)

	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			if q.closed {
				q.mu.Unlock()
				return
			}
			q.mu.Unlock()
			select {
			case <-q.wake:
			case <-q.stop:
				return
			}
			continue
		}
		msg := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case q.out <- msg:
		case <-q.stop:
			return
		}
	}
}
