package sqlitekv

import "sync"

// laneJob pairs an operation body with the channel its caller blocks on.
type laneJob struct {
	run  func() error
	done chan error
}

// lane is the serialized access gateway: a thread-safe FIFO queue drained
// by a single worker goroutine. Submitting callers block until their body
// has run, so for any store instance no two bodies ever execute
// concurrently against the same connection.
//
// The queue is unbounded so a burst of callers queues up rather than
// blocking each other on capacity. A buffered signal channel (size 1)
// coalesces wake-ups for the worker and doubles as the shutdown signal.
type lane struct {
	mu     sync.Mutex
	queue  []laneJob
	closed bool
	signal chan struct{}
}

// newLane creates a lane and starts its worker.
func newLane() *lane {
	l := &lane{
		queue:  make([]laneJob, 0, 16),
		signal: make(chan struct{}, 1),
	}
	go l.serve()
	return l
}

// submit enqueues a body and blocks until the worker has run it,
// returning whatever the body returned. Bodies are served in submission
// order. Returns ErrClosed if the lane has shut down.
func (l *lane) submit(run func() error) error {
	j := laneJob{run: run, done: make(chan error, 1)}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.queue = append(l.queue, j)

	// Non-blocking signal - buffer of 1 coalesces multiple wake-ups. Sent
	// under the mutex so close cannot close the channel between the
	// append and the send.
	select {
	case l.signal <- struct{}{}:
	default:
	}
	l.mu.Unlock()

	return <-j.done
}

// serve is the worker loop. Runs until the lane is closed and drained.
func (l *lane) serve() {
	for {
		j, ok := l.next()
		if !ok {
			return
		}
		j.done <- j.run()
	}
}

// next blocks until a job is available or the lane is closed and empty.
func (l *lane) next() (laneJob, bool) {
	for {
		l.mu.Lock()
		if len(l.queue) > 0 {
			j := l.queue[0]

			// Nil out the slot so the body's captures become collectable
			// before the underlying array is reallocated.
			l.queue[0] = laneJob{}
			if len(l.queue) == 1 {
				l.queue = l.queue[:0]
			} else {
				l.queue = l.queue[1:]
			}
			l.mu.Unlock()
			return j, true
		}
		if l.closed {
			l.mu.Unlock()
			return laneJob{}, false
		}
		l.mu.Unlock()

		<-l.signal
	}
}

// close rejects further submissions and lets the worker exit once the
// queue drains. Jobs already enqueued still run.
func (l *lane) close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.signal) // Wakes the worker; under the mutex, so no send races it
	l.mu.Unlock()
}

// Access proves the current execution is already inside the store's
// serial lane. Methods on Access run immediately with no additional
// serialization; methods on Store acquire the lane first. Threading one
// Access through nested calls composes several operations into one
// atomic unit without deadlocking on reentrant acquisition.
//
// An Access is only valid inside the WithAccess body that produced it
// and must not be used from another goroutine or retained.
type Access struct {
	s *Store
}

// WithAccess admits body to the store's serial lane, blocking the caller
// until it has run. The body's error is propagated unchanged; the lane
// itself never swallows or retries.
func (s *Store) WithAccess(body func(*Access) error) error {
	return s.lane.submit(func() error {
		return body(&Access{s: s})
	})
}
