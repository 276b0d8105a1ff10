// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package queue provides the blocking FIFO used to hand frame slots,
// continuation tokens and update requests between engine workers.
//
// A Queue never blocks on Push. Pop blocks until an item is available or
// the queue has been shut down. The wait is bounded: after each wait
// interval the waiter wakes, logs at debug level and waits again, so a
// missed wakeup can never stall a worker forever. The interval is a
// liveness knob and never surfaces as an error.
//
// Shutdown is sticky and broadcast: every current and future Pop returns
// ok == false immediately, even if items remain queued, and Push becomes
// a no-op.
package queue

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultWaitInterval is the bounded wait used when no interval is given.
const DefaultWaitInterval = 3 * time.Second

// Option configures a Queue.
type Option func(*options)

type options struct {
	name     string
	interval time.Duration
	logger   *slog.Logger
}

func defaultOptions() options {
	return options{
		name:     "queue",
		interval: DefaultWaitInterval,
	}
}

// WithName sets the name reported in log records.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithWaitInterval sets the bounded wait after which a blocked Pop wakes
// and re-arms. Non-positive values keep the default.
func WithWaitInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithLogger sets the logger used for wait-interval diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Queue is an unbounded FIFO safe for any number of producers and
// consumers.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool

	// avail holds at most one wakeup. A consumer that takes an item and
	// leaves more behind passes the wakeup on.
	avail chan struct{}
	done  chan struct{}

	opts options
}

// New creates an empty, open queue.
func New[T any](opts ...Option) *Queue[T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Queue[T]{
		avail: make(chan struct{}, 1),
		done:  make(chan struct{}),
		opts:  o,
	}
}

// Push appends item and wakes one waiting consumer. Push never blocks.
// After Shutdown the item is dropped.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.signal()
}

// Pop removes and returns the oldest item. It blocks until an item is
// available or the queue is shut down; ok is false once shut down.
func (q *Queue[T]) Pop() (item T, ok bool) {
	for {
		if item, ok, closed := q.take(); ok || closed {
			return item, ok
		}

		timer := time.NewTimer(q.opts.interval)
		select {
		case <-q.avail:
			timer.Stop()
		case <-q.done:
			timer.Stop()
		case <-timer.C:
			if l := q.opts.logger; l != nil {
				l.Debug("queue: wait interval elapsed, re-arming",
					"queue", q.opts.name, "interval", q.opts.interval)
			}
		}
	}
}

// TryPop is the non-blocking form of Pop. ok is false when the queue is
// empty or shut down.
func (q *Queue[T]) TryPop() (item T, ok bool) {
	item, ok, _ = q.take()
	return item, ok
}

// take pops under the lock. closed reports a shut down queue.
func (q *Queue[T]) take() (item T, ok, closed bool) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return item, false, true
	}
	if len(q.items) == 0 {
		q.mu.Unlock()
		return item, false, false
	}
	item = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	more := len(q.items) > 0
	q.mu.Unlock()

	if more {
		q.signal()
	}
	return item, true, false
}

func (q *Queue[T]) signal() {
	select {
	case q.avail <- struct{}{}:
	default:
	}
}

// Shutdown closes the queue. It is idempotent and wakes every waiter.
func (q *Queue[T]) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.items = nil
	close(q.done)
}

// IsShutdown reports whether Shutdown has been called.
func (q *Queue[T]) IsShutdown() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued items. The value is diagnostic only
// and may be stale by the time it is read.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Name returns the queue name used in log records.
func (q *Queue[T]) Name() string {
	return q.opts.name
}
