// Package queue provides a bounded FIFO with a named overflow policy.
//
// Producers never exceed the fixed capacity. What happens on a full queue is
// chosen per queue:
//   - DropNewest rejects the incoming item
//   - DropOldest evicts the head to make room
//   - Block waits for space, optionally bounded by a timeout
//
// Dequeue is blocking and intended for a single consumer. After Close, the
// consumer still receives every buffered item before ErrClosed.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/sensormon/internal/errors"
)

// Policy defines how a full queue treats a new item.
type Policy int

const (
	DropNewest Policy = iota
	DropOldest
	Block
)

func (p Policy) String() string {
	switch p {
	case DropNewest:
		return "drop-newest"
	case DropOldest:
		return "drop-oldest"
	case Block:
		return "block"
	default:
		return "unknown"
	}
}

// ParsePolicy accepts the names produced by Policy.String.
func ParsePolicy(name string) (Policy, error) {
	for _, p := range []Policy{DropNewest, DropOldest, Block} {
		if p.String() == name {
			return p, nil
		}
	}
	return 0, errors.New().WithData(ErrInvalidPolicy, name)
}

// DropCallback receives every item discarded by the overflow policy.
type DropCallback[T any] func(item T)

type options[T any] struct {
	policy  Policy
	timeout time.Duration
	onDrop  DropCallback[T]
}

type Option[T any] func(*options[T])

// WithPolicy sets the overflow policy. Defaults to DropNewest.
func WithPolicy[T any](p Policy) Option[T] {
	return func(o *options[T]) {
		o.policy = p
	}
}

// WithTimeout bounds how long Put waits under the Block policy. Zero waits
// until the context ends.
func WithTimeout[T any](d time.Duration) Option[T] {
	return func(o *options[T]) {
		o.timeout = d
	}
}

// WithDropCallback registers a callback for dropped items. It is invoked
// outside the queue's locks.
func WithDropCallback[T any](cb DropCallback[T]) Option[T] {
	return func(o *options[T]) {
		o.onDrop = cb
	}
}

// Stats is a point-in-time copy of the queue counters.
type Stats struct {
	Enqueued uint64
	Dequeued uint64
	Dropped  uint64
	TimedOut uint64
}

type Queue[T any] struct {
	items chan T
	opts  options[T]

	// closeMu is held shared by producers while sending so that Close
	// cannot complete with a send in flight.
	closeMu sync.RWMutex
	closed  bool
	done    chan struct{}

	// evictMu serializes DropOldest eviction among producers.
	evictMu sync.Mutex

	enqueued atomic.Uint64
	dequeued atomic.Uint64
	dropped  atomic.Uint64
	timedOut atomic.Uint64
}

// New creates a queue holding at most capacity items. Capacities below one
// are raised to one.
func New[T any](capacity int, opts ...Option[T]) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}

	q := &Queue[T]{
		items: make(chan T, capacity),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&q.opts)
		}
	}
	return q
}

// Offer enqueues item without blocking. It reports false when the item was
// not accepted: the queue is closed, or full under DropNewest or Block.
// Under DropOldest a full queue evicts its head and accepts the item.
func (q *Queue[T]) Offer(item T) bool {
	q.closeMu.RLock()
	if q.closed {
		q.closeMu.RUnlock()
		q.drop(item)
		return false
	}

	accepted, evicted := q.offerLocked(item)
	q.closeMu.RUnlock()

	for _, old := range evicted {
		q.drop(old)
	}
	if !accepted {
		q.drop(item)
	}
	return accepted
}

// offerLocked must be called with closeMu held shared.
func (q *Queue[T]) offerLocked(item T) (bool, []T) {
	select {
	case q.items <- item:
		q.enqueued.Add(1)
		return true, nil
	default:
	}

	if q.opts.policy != DropOldest {
		return false, nil
	}

	q.evictMu.Lock()
	defer q.evictMu.Unlock()

	var evicted []T
	for {
		select {
		case q.items <- item:
			q.enqueued.Add(1)
			return true, evicted
		default:
		}

		select {
		case old := <-q.items:
			evicted = append(evicted, old)
		default:
		}
	}
}

// Put enqueues item according to the policy. Under Block it waits for
// space until ctx ends or the configured timeout elapses; the item is then
// not enqueued and ErrTimeout (or the context error) is returned. Under the
// drop policies it behaves like Offer and returns ErrDropped on rejection.
func (q *Queue[T]) Put(ctx context.Context, item T) error {
	errFactory := errors.New()

	if q.opts.policy != Block {
		if q.Offer(item) {
			return nil
		}
		if q.Closed() {
			return errFactory.New(ErrClosed)
		}
		return errFactory.New(ErrDropped)
	}

	q.closeMu.RLock()
	defer q.closeMu.RUnlock()

	if q.closed {
		return errFactory.New(ErrClosed)
	}

	select {
	case q.items <- item:
		q.enqueued.Add(1)
		return nil
	default:
	}

	var timeout <-chan time.Time
	if q.opts.timeout > 0 {
		timer := time.NewTimer(q.opts.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case q.items <- item:
		q.enqueued.Add(1)
		return nil
	case <-timeout:
		q.timedOut.Add(1)
		return errFactory.WithData(ErrTimeout, q.opts.timeout.String())
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Take removes the head item, waiting until one is available. It returns
// ctx.Err() when ctx ends first and ErrClosed once the queue is closed and
// fully drained.
func (q *Queue[T]) Take(ctx context.Context) (T, error) {
	var zero T

	select {
	case item := <-q.items:
		q.dequeued.Add(1)
		return item, nil
	default:
	}

	select {
	case item := <-q.items:
		q.dequeued.Add(1)
		return item, nil
	case <-q.done:
		if item, ok := q.TryTake(); ok {
			return item, nil
		}
		return zero, errors.New().New(ErrClosed)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// TryTake removes the head item if there is one.
func (q *Queue[T]) TryTake() (T, bool) {
	select {
	case item := <-q.items:
		q.dequeued.Add(1)
		return item, true
	default:
		var zero T
		return zero, false
	}
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// Cap returns the fixed capacity.
func (q *Queue[T]) Cap() int {
	return cap(q.items)
}

func (q *Queue[T]) Policy() Policy {
	return q.opts.policy
}

// Close stops accepting items. Buffered items remain available to Take.
// Close waits for in-flight Put calls to return.
func (q *Queue[T]) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.done)
	}
}

func (q *Queue[T]) Closed() bool {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	return q.closed
}

func (q *Queue[T]) Stats() Stats {
	return Stats{
		Enqueued: q.enqueued.Load(),
		Dequeued: q.dequeued.Load(),
		Dropped:  q.dropped.Load(),
		TimedOut: q.timedOut.Load(),
	}
}

func (q *Queue[T]) drop(item T) {
	q.dropped.Add(1)
	if q.opts.onDrop != nil {
		q.opts.onDrop(item)
	}
}
