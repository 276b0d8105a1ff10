// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package frameloop

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// drawRecord is one frame seen by recordingRenderer.
type drawRecord struct {
	slot  int
	frame int64
}

// recordingRenderer records every frame it renders and tracks how many
// slots are drawing at once.
type recordingRenderer struct {
	mu     sync.Mutex
	frames []drawRecord

	active    atomic.Int32
	maxActive atomic.Int32

	delay func(slot int) time.Duration
	fail  func(slot int, frame int64) error
}

func (r *recordingRenderer) RenderFrame(slot *FrameSlot) ([]WorkPackage, error) {
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		m := r.maxActive.Load()
		if n <= m || r.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	if r.delay != nil {
		time.Sleep(r.delay(slot.Index()))
	}
	if r.fail != nil {
		if err := r.fail(slot.Index(), slot.FrameNumber()); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	r.frames = append(r.frames, drawRecord{slot: slot.Index(), frame: slot.FrameNumber()})
	r.mu.Unlock()
	return []WorkPackage{slot.FrameNumber()}, nil
}

func (r *recordingRenderer) records() []drawRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]drawRecord, len(r.frames))
	copy(out, r.frames)
	return out
}

// recordingObserver records presentation order.
type recordingObserver struct {
	mu        sync.Mutex
	drawn     int
	presented []int64
	async     int
}

func (o *recordingObserver) FrameDrawn(int, int64) {
	o.mu.Lock()
	o.drawn++
	o.mu.Unlock()
}

func (o *recordingObserver) FramePresented(_ int, frame int64, async bool) {
	o.mu.Lock()
	o.presented = append(o.presented, frame)
	if async {
		o.async++
	}
	o.mu.Unlock()
}

func (o *recordingObserver) order() []int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]int64, len(o.presented))
	copy(out, o.presented)
	return out
}

func nopPresenter() Presenter {
	return PresenterFunc(func(*FrameSlot) error { return nil })
}

var errTestCallback = errors.New("test callback failure")

// awaitStopped calls AwaitStopped and fails the test if it does not return
// within d.
func awaitStopped(t *testing.T, e *Engine, d time.Duration) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- e.AwaitStopped() }()
	select {
	case err := <-done:
		return err
	case <-time.After(d):
		t.Fatalf("AwaitStopped did not return within %v", d)
		return nil
	}
}

// expectInvariantPanic runs fn and returns the *InvariantError it panics with.
func expectInvariantPanic(t *testing.T, fn func()) (ie *InvariantError) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic, got none")
		}
		var ok bool
		if ie, ok = r.(*InvariantError); !ok {
			t.Fatalf("panic value = %T (%v), want *InvariantError", r, r)
		}
	}()
	fn()
	return nil
}

// checkFrameNumbers verifies per-slot monotonicity and global uniqueness.
func checkFrameNumbers(t *testing.T, records []drawRecord) {
	t.Helper()
	last := make(map[int]int64)
	seen := make(map[int64]int)
	for _, r := range records {
		if prev, ok := last[r.slot]; ok && r.frame <= prev {
			t.Errorf("slot %d: frame %d after %d, want strictly increasing", r.slot, r.frame, prev)
		}
		last[r.slot] = r.frame
		if other, dup := seen[r.frame]; dup {
			t.Errorf("frame %d drawn by slots %d and %d", r.frame, other, r.slot)
		}
		seen[r.frame] = r.slot
	}
}

// gatedRenderer holds every slot in RenderFrame until the test releases
// it. Entered frames are reported on entered; finished frames are
// appended to finished in completion order.
type gatedRenderer struct {
	entered chan drawRecord
	release []chan struct{}

	mu       sync.Mutex
	finished []int64
}

func newGatedRenderer(slots int) *gatedRenderer {
	r := &gatedRenderer{entered: make(chan drawRecord, 16), release: make([]chan struct{}, slots)}
	for i := range r.release {
		r.release[i] = make(chan struct{}, 4)
	}
	return r
}

func (r *gatedRenderer) RenderFrame(slot *FrameSlot) ([]WorkPackage, error) {
	r.entered <- drawRecord{slot: slot.Index(), frame: slot.FrameNumber()}
	<-r.release[slot.Index()]
	r.mu.Lock()
	r.finished = append(r.finished, slot.FrameNumber())
	r.mu.Unlock()
	return nil, nil
}

func (r *gatedRenderer) completed() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.finished...)
}

// receive returns the next value from ch or fails the test after d.
func receive[T any](t *testing.T, ch <-chan T, d time.Duration, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(d):
		t.Fatalf("timed out after %v waiting for %s", d, what)
		var zero T
		return zero
	}
}
