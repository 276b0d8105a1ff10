// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package frameloop

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
)

// uploadLog records every upload.
type uploadLog struct {
	mu       sync.Mutex
	payloads []any
	targets  []Designator
	err      error
}

func (u *uploadLog) UploadGlobalResource(_ ResourceID, target Designator, payload any) (any, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return nil, u.err
	}
	u.payloads = append(u.payloads, payload)
	u.targets = append(u.targets, target)
	return payload, nil
}

func newSingleWithResource(t *testing.T, n int, u Uploader, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithSingleThreaded(true), WithFramesInFlight(n)}, opts...)
	e := New(&recordingRenderer{}, nopPresenter(), opts...)
	e.RegisterResource("scene", u, nil)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	t.Cleanup(func() { _ = e.AwaitStopped() })
	return e
}

func drawFrames(t *testing.T, e *Engine, n int) {
	t.Helper()
	for i := range n {
		if err := e.DrawFrame(); err != nil {
			t.Fatalf("DrawFrame() #%d = %v", i, err)
		}
	}
}

func TestUpdate_ReclaimAfterAllSlotsAdopt(t *testing.T) {
	e := newSingleWithResource(t, 2, &uploadLog{})
	p := e.resource("scene")
	a, b := p.slots[DesignatorA], p.slots[DesignatorB]

	if _, err := e.RequestGlobalUpdate("scene", "gen1"); err != nil {
		t.Fatalf("RequestGlobalUpdate() = %v", err)
	}
	drawFrames(t, e, 1)
	if a.State() != ResourceReadyToRender {
		t.Fatalf("A = %v after one slot adopted, want ReadyToRender", a.State())
	}
	drawFrames(t, e, 1)
	if a.State() != ResourceInUse || b.State() != ResourceFree {
		t.Fatalf("after first cycle A=%v B=%v, want InUse/Free", a.State(), b.State())
	}

	if _, err := e.RequestGlobalUpdate("scene", "gen2"); err != nil {
		t.Fatalf("RequestGlobalUpdate() = %v", err)
	}
	drawFrames(t, e, 1)
	if b.State() != ResourceReadyToRender {
		t.Errorf("B = %v, want ReadyToRender", b.State())
	}
	if a.State() != ResourceInUse {
		t.Errorf("A = %v while slot 1 still renders with it, want InUse", a.State())
	}
	if a.Users() != 1 {
		t.Errorf("A users = %d, want 1", a.Users())
	}

	drawFrames(t, e, 1)
	if a.State() != ResourceFree {
		t.Errorf("A = %v after every slot adopted B, want Free", a.State())
	}
	if b.State() != ResourceInUse || b.Users() != 2 {
		t.Errorf("B = %v with %d users, want InUse with 2", b.State(), b.Users())
	}
	if b.Contents() != "gen2" || b.UpdateNumber() != 2 {
		t.Errorf("B contents %v update %d, want gen2 / 2", b.Contents(), b.UpdateNumber())
	}
	if s := e.Stats(); s.UpdatesApplied != 2 || s.Resources[0].Current != DesignatorB {
		t.Errorf("Stats = %+v, want 2 updates with B current", s)
	}
}

func TestUpdate_CoalescesPendingRequests(t *testing.T) {
	u := &uploadLog{}
	e := newSingleWithResource(t, 3, u)

	five := &UpdateRequest{Resource: "scene", UpdateNumber: 5, Payload: "five"}
	seven := &UpdateRequest{Resource: "scene", UpdateNumber: 7, Payload: "seven"}
	e.enqueueUpdate(five)
	e.enqueueUpdate(seven)

	if !five.Coalesced() {
		t.Error("request 5 not marked coalesced after request 7 arrived")
	}
	if seven.Coalesced() {
		t.Error("request 7 marked coalesced")
	}

	drawFrames(t, e, 3)

	u.mu.Lock()
	payloads := append([]any(nil), u.payloads...)
	u.mu.Unlock()
	if len(payloads) != 1 || payloads[0] != "seven" {
		t.Fatalf("uploads = %v, want [seven]", payloads)
	}

	s := e.Stats()
	if s.UpdatesApplied != 1 || s.UpdatesCoalesced != 1 {
		t.Errorf("applied %d coalesced %d, want 1 and 1", s.UpdatesApplied, s.UpdatesCoalesced)
	}
	if got := e.resource("scene").current.UpdateNumber(); got != 7 {
		t.Errorf("current update = %d, want 7", got)
	}

	n, err := e.RequestGlobalUpdate("scene", "eight")
	if err != nil || n != 8 {
		t.Errorf("RequestGlobalUpdate() = (%d, %v), want (8, nil)", n, err)
	}
}

// gatedUploader blocks its first upload until release is closed.
type gatedUploader struct {
	uploadLog
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedUploader() *gatedUploader {
	return &gatedUploader{entered: make(chan struct{}), release: make(chan struct{})}
}

func (u *gatedUploader) UploadGlobalResource(id ResourceID, target Designator, payload any) (any, error) {
	u.once.Do(func() {
		close(u.entered)
		<-u.release
	})
	return u.uploadLog.UploadGlobalResource(id, target, payload)
}

// slowUploader takes delay per upload.
type slowUploader struct {
	uploadLog
	delay time.Duration
}

func (u *slowUploader) UploadGlobalResource(id ResourceID, target Designator, payload any) (any, error) {
	time.Sleep(u.delay)
	return u.uploadLog.UploadGlobalResource(id, target, payload)
}

func TestUpdate_CoalescesWhileUploading(t *testing.T) {
	u := newGatedUploader()
	r := &recordingRenderer{delay: func(int) time.Duration { return 100 * time.Microsecond }}
	e := New(r, nopPresenter(), WithFramesInFlight(2), WithWaitInterval(20*time.Millisecond))
	e.RegisterResource("scene", u, nil)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	defer func() {
		e.Shutdown()
		_ = awaitStopped(t, e, 5*time.Second)
	}()

	if _, err := e.RequestGlobalUpdate("scene", "first"); err != nil {
		t.Fatalf("RequestGlobalUpdate() = %v", err)
	}
	select {
	case <-u.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first upload never started")
	}

	// Both arrive while the update worker is busy uploading.
	e.enqueueUpdate(&UpdateRequest{Resource: "scene", UpdateNumber: 5, Payload: "five"})
	e.enqueueUpdate(&UpdateRequest{Resource: "scene", UpdateNumber: 7, Payload: "seven"})
	close(u.release)

	deadline := time.Now().Add(5 * time.Second)
	for e.Stats().UpdatesApplied < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	u.mu.Lock()
	payloads := append([]any(nil), u.payloads...)
	u.mu.Unlock()
	if !slices.Equal(payloads, []any{"first", "seven"}) {
		t.Fatalf("uploads = %v, want [first seven]", payloads)
	}
	s := e.Stats()
	if s.UpdatesApplied != 2 || s.UpdatesCoalesced != 1 {
		t.Errorf("applied %d coalesced %d, want 2 and 1", s.UpdatesApplied, s.UpdatesCoalesced)
	}
	if got := e.resource("scene").current.UpdateNumber(); got != 7 {
		t.Errorf("current update = %d, want 7", got)
	}
}

func TestUpdate_ShutdownWithPendingRequests(t *testing.T) {
	const (
		interval = 50 * time.Millisecond
		requests = 4000
	)
	scene := &slowUploader{delay: 200 * time.Microsecond}
	lights := &slowUploader{delay: 200 * time.Microsecond}
	r := &recordingRenderer{delay: func(int) time.Duration { return 50 * time.Microsecond }}
	e := New(r, nopPresenter(), WithFramesInFlight(4), WithWaitInterval(interval))
	e.RegisterResource("scene", scene, nil)
	e.RegisterResource("lights", lights, nil)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v", err)
	}

	ids := []ResourceID{"scene", "lights"}
	for i := range requests {
		if _, err := e.RequestGlobalUpdate(ids[i%2], i); err != nil {
			t.Fatalf("RequestGlobalUpdate() #%d = %v", i, err)
		}
	}

	e.Shutdown()
	start := time.Now()
	if err := awaitStopped(t, e, 10*interval); err != nil {
		t.Fatalf("AwaitStopped() = %v", err)
	}
	t.Logf("stopped %v after shutdown", time.Since(start))

	if _, err := e.RequestGlobalUpdate("scene", "late"); !errors.Is(err, ErrShutdown) {
		t.Errorf("RequestGlobalUpdate after stop = %v, want ErrShutdown", err)
	}
	s := e.Stats()
	if s.UpdatesApplied+s.UpdatesCoalesced > requests {
		t.Errorf("applied %d + coalesced %d exceeds %d requests", s.UpdatesApplied, s.UpdatesCoalesced, requests)
	}
	for _, id := range ids {
		for _, slot := range e.resource(id).slots {
			if n := slot.Users(); n != 0 {
				t.Errorf("%s: %d users after stop, want 0", slot, n)
			}
		}
	}
}

func TestUpdate_OlderRequestAfterNewerIsDropped(t *testing.T) {
	u := &uploadLog{}
	e := newSingleWithResource(t, 1, u)

	e.enqueueUpdate(&UpdateRequest{Resource: "scene", UpdateNumber: 9, Payload: "nine"})
	old := &UpdateRequest{Resource: "scene", UpdateNumber: 4, Payload: "four"}
	e.enqueueUpdate(old)
	if !old.Coalesced() {
		t.Error("older request not coalesced")
	}
	drawFrames(t, e, 2)

	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.payloads) != 1 || u.payloads[0] != "nine" {
		t.Errorf("uploads = %v, want [nine]", u.payloads)
	}
}

func TestUpdate_NoFreeSlotIsFatal(t *testing.T) {
	e := newSingleWithResource(t, 2, &uploadLog{})
	p := e.resource("scene")
	for _, s := range p.slots {
		s.setState(ResourceInUse)
		s.users.Store(1)
	}
	t.Cleanup(func() {
		for _, s := range p.slots {
			s.users.Store(0)
		}
	})

	ie := expectInvariantPanic(t, func() {
		_, _ = e.beginUpdate(p, &UpdateRequest{Resource: "scene", UpdateNumber: 1})
	})
	if ie.Kind != KindCoordination {
		t.Errorf("Kind = %v, want %v", ie.Kind, KindCoordination)
	}
	if !strings.Contains(ie.Error(), "both update sets are in use") {
		t.Errorf("Error() = %q", ie.Error())
	}
}

func TestUpdate_UploadFailure(t *testing.T) {
	u := &uploadLog{err: errTestCallback}
	e := newSingleWithResource(t, 2, u)

	if _, err := e.RequestGlobalUpdate("scene", 1); err != nil {
		t.Fatalf("RequestGlobalUpdate() = %v", err)
	}
	err := e.DrawFrame()
	var ce *CallbackError
	if !errors.As(err, &ce) || ce.Stage != StageUpload || ce.Resource != "scene" {
		t.Fatalf("DrawFrame() = %v, want upload CallbackError for scene", err)
	}
	for _, s := range e.resource("scene").slots {
		if s.State() != ResourceFree {
			t.Errorf("set %s = %v after failed upload, want Free", s.Designator(), s.State())
		}
	}
}

func TestUpdate_RateLimitHoldsRequest(t *testing.T) {
	u := &uploadLog{}
	e := newSingleWithResource(t, 1, u, WithUpdateRate(0.001))

	for i := range 2 {
		if _, err := e.RequestGlobalUpdate("scene", i); err != nil {
			t.Fatalf("RequestGlobalUpdate() = %v", err)
		}
		drawFrames(t, e, 2)
	}

	// The burst admits the first upload; the second waits for a token.
	u.mu.Lock()
	n := len(u.payloads)
	u.mu.Unlock()
	if n != 1 {
		t.Errorf("uploads = %d, want 1 while rate limited", n)
	}
	if e.heldUpdate == nil {
		t.Error("rate limited request was not held")
	}
}

func TestUpdate_UnknownResource(t *testing.T) {
	e := New(&recordingRenderer{}, nopPresenter())
	if _, err := e.RequestGlobalUpdate("missing", nil); !errors.Is(err, ErrUnknownResource) {
		t.Errorf("RequestGlobalUpdate() = %v, want ErrUnknownResource", err)
	}
}

func TestRegisterResource_Misuse(t *testing.T) {
	e := New(&recordingRenderer{}, nopPresenter())
	e.RegisterResource("scene", &uploadLog{}, nil)

	tests := []struct {
		name string
		fn   func()
	}{
		{"duplicate", func() { e.RegisterResource("scene", &uploadLog{}, nil) }},
		{"nil uploader", func() { e.RegisterResource("other", nil, nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ie := expectInvariantPanic(t, tt.fn)
			if ie.Kind != KindConfiguration {
				t.Errorf("Kind = %v, want %v", ie.Kind, KindConfiguration)
			}
		})
	}
}

func TestFrameSlot_IllegalTransition(t *testing.T) {
	s := newFrameSlot(0, immediateSignal{})
	ie := expectInvariantPanic(t, func() { s.transition(FrameDrawing, FrameSubmitted) })
	if ie.Kind != KindCoordination {
		t.Errorf("Kind = %v, want %v", ie.Kind, KindCoordination)
	}
	if !s.IsUpdateObserver() {
		t.Error("slot 0 should be the update observer")
	}
	if s.FrameNumber() != -1 {
		t.Errorf("FrameNumber() = %d before first draw, want -1", s.FrameNumber())
	}
}
