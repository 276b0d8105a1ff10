// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package latch implements the resettable countdown latch the update
// worker uses to wait until every draw worker has adopted a newly
// published resource generation.
//
// Each cycle is armed for n participants under a tag. A participant
// arrives at most once per tag; arrivals carrying a stale tag are
// ignored. Arrivals are delivered to the waiter through a blocking
// notification queue, so Await inherits the queue's bounded wait and
// shutdown behavior.
package latch

import (
	"sync"

	"github.com/shadedpath/frameloop/internal/queue"
)

type arrival struct {
	index int
	tag   uint64
}

// Latch is a countdown latch re-armed once per update cycle.
type Latch struct {
	mu          sync.Mutex
	tag         uint64
	armed       bool
	outstanding map[int]struct{}

	notify *queue.Queue[arrival]
}

// New creates a disarmed latch. Queue options configure the notification
// queue (name, wait interval, logger).
func New(opts ...queue.Option) *Latch {
	return &Latch{
		outstanding: make(map[int]struct{}),
		notify:      queue.New[arrival](opts...),
	}
}

// Arm starts a new cycle expecting participants 0..n-1 under tag.
// Arrivals from a previous cycle are discarded.
func (l *Latch) Arm(n int, tag uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tag = tag
	l.armed = true
	clear(l.outstanding)
	for i := range n {
		l.outstanding[i] = struct{}{}
	}
	for {
		if _, ok := l.notify.TryPop(); !ok {
			break
		}
	}
}

// Arrive records that participant index has passed the barrier for tag.
// It reports whether the arrival counted; duplicate or stale arrivals
// return false.
func (l *Latch) Arrive(index int, tag uint64) bool {
	l.mu.Lock()
	if !l.armed || tag != l.tag {
		l.mu.Unlock()
		return false
	}
	if _, ok := l.outstanding[index]; !ok {
		l.mu.Unlock()
		return false
	}
	delete(l.outstanding, index)
	l.mu.Unlock()

	l.notify.Push(arrival{index: index, tag: tag})
	return true
}

// Pending reports whether participant index still has to arrive for tag.
func (l *Latch) Pending(index int, tag uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.armed || tag != l.tag {
		return false
	}
	_, ok := l.outstanding[index]
	return ok
}

// Outstanding returns the number of participants yet to arrive.
func (l *Latch) Outstanding() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.outstanding)
}

// Await blocks until every participant of the current cycle arrived.
// It returns false if the latch was closed first.
func (l *Latch) Await() bool {
	for {
		if l.complete() {
			return true
		}
		if _, ok := l.notify.Pop(); !ok {
			return false
		}
	}
}

// Poll is the non-blocking form of Await. It drains pending
// notifications and reports whether the cycle is complete.
func (l *Latch) Poll() bool {
	for {
		if _, ok := l.notify.TryPop(); !ok {
			break
		}
	}
	return l.complete()
}

func (l *Latch) complete() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.armed && len(l.outstanding) == 0
}

// Close wakes a blocked Await, which then returns false. Close is
// idempotent.
func (l *Latch) Close() {
	l.notify.Shutdown()
}

// Closed reports whether Close has been called.
func (l *Latch) Closed() bool {
	return l.notify.IsShutdown()
}
