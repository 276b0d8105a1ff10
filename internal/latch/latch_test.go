// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package latch

import (
	"sync"
	"testing"
	"time"

	"github.com/shadedpath/frameloop/internal/queue"
)

func TestLatch_AwaitAllArrivals(t *testing.T) {
	l := New()
	l.Arm(3, 1)

	done := make(chan bool, 1)
	go func() { done <- l.Await() }()

	for i := range 3 {
		if !l.Arrive(i, 1) {
			t.Errorf("Arrive(%d, 1) = false, want true", i)
		}
	}

	select {
	case ok := <-done:
		if !ok {
			t.Error("Await() = false, want true")
		}
	case <-time.After(time.Second):
		t.Fatal("Await() did not return after all arrivals")
	}
}

func TestLatch_AwaitBlocksUntilLast(t *testing.T) {
	l := New(queue.WithWaitInterval(5 * time.Millisecond))
	l.Arm(2, 7)
	l.Arrive(0, 7)

	done := make(chan bool, 1)
	go func() { done <- l.Await() }()

	select {
	case <-done:
		t.Fatal("Await() returned with one participant outstanding")
	case <-time.After(30 * time.Millisecond):
	}

	if got := l.Outstanding(); got != 1 {
		t.Errorf("Outstanding() = %d, want 1", got)
	}
	l.Arrive(1, 7)
	select {
	case ok := <-done:
		if !ok {
			t.Error("Await() = false, want true")
		}
	case <-time.After(time.Second):
		t.Fatal("Await() did not return after last arrival")
	}
}

func TestLatch_DuplicateAndStaleArrivals(t *testing.T) {
	tests := []struct {
		name  string
		index int
		tag   uint64
		want  bool
	}{
		{"first arrival", 0, 2, true},
		{"duplicate", 0, 2, false},
		{"stale tag", 1, 1, false},
		{"unknown index", 5, 2, false},
		{"second participant", 1, 2, true},
	}

	l := New()
	l.Arm(2, 2)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.Arrive(tt.index, tt.tag); got != tt.want {
				t.Errorf("Arrive(%d, %d) = %v, want %v", tt.index, tt.tag, got, tt.want)
			}
		})
	}
	if !l.Poll() {
		t.Error("Poll() = false after all participants arrived")
	}
}

func TestLatch_DisarmedIgnoresArrivals(t *testing.T) {
	l := New()
	if l.Arrive(0, 0) {
		t.Error("Arrive on disarmed latch returned true")
	}
	if l.Poll() {
		t.Error("Poll() on disarmed latch returned true")
	}
}

func TestLatch_RearmResetsCycle(t *testing.T) {
	l := New()
	l.Arm(2, 1)
	l.Arrive(0, 1)
	l.Arrive(1, 1)
	if !l.Poll() {
		t.Fatal("cycle 1 not complete")
	}

	l.Arm(2, 2)
	if l.Poll() {
		t.Error("Poll() = true immediately after re-arm")
	}
	if !l.Pending(0, 2) || !l.Pending(1, 2) {
		t.Error("participants should be pending after re-arm")
	}
	if l.Pending(0, 1) {
		t.Error("Pending with stale tag should be false")
	}
}

func TestLatch_CloseReleasesAwait(t *testing.T) {
	l := New()
	l.Arm(4, 1)

	done := make(chan bool, 1)
	go func() { done <- l.Await() }()

	time.Sleep(10 * time.Millisecond)
	l.Close()
	l.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("Await() = true after Close with participants outstanding")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not release Await")
	}
	if !l.Closed() {
		t.Error("Closed() = false after Close")
	}
}

func TestLatch_ConcurrentArrivals(t *testing.T) {
	const n = 16
	l := New()
	l.Arm(n, 9)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			l.Arrive(idx, 9)
		}(i)
	}

	if !l.Await() {
		t.Error("Await() = false, want true")
	}
	wg.Wait()
	if got := l.Outstanding(); got != 0 {
		t.Errorf("Outstanding() = %d, want 0", got)
	}
}
