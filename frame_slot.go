// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package frameloop

import (
	"fmt"
	"sync/atomic"

	"github.com/shadedpath/frameloop/internal/queue"
)

// FrameState is the lifecycle position of a FrameSlot.
//
//	Idle -> AwaitingContinuation -> Drawing -> Submitted -> Presented
//	                 ^                                          |
//	                 +------------------------------------------+
//
// A slot is Idle before Start and after it has been released at shutdown.
type FrameState int32

const (
	FrameIdle FrameState = iota
	FrameAwaitingContinuation
	FrameDrawing
	FrameSubmitted
	FramePresented
)

// String returns the state name.
func (s FrameState) String() string {
	switch s {
	case FrameIdle:
		return "Idle"
	case FrameAwaitingContinuation:
		return "AwaitingContinuation"
	case FrameDrawing:
		return "Drawing"
	case FrameSubmitted:
		return "Submitted"
	case FramePresented:
		return "Presented"
	default:
		return fmt.Sprintf("FrameState(%d)", int32(s))
	}
}

// continuation is the token that lets a draw worker start its next frame.
type continuation struct{}

// FrameSlot is one of the frames-in-flight execution slots. Slots are
// created at Start and reused for every frame. At any time a slot is owned
// by exactly one worker; ownership moves through the engine queues, so
// the fields below other than state and frame need no locking.
type FrameSlot struct {
	index int

	state atomic.Int32
	frame atomic.Int64

	signal CompletionSignal
	work   []WorkPackage

	continuations *queue.Queue[continuation]

	// adopted is the resource generation this slot renders with.
	adopted       map[ResourceID]*ResourceSlot
	adoptedNumber map[ResourceID]uint64
	// held are the generations referenced by this slot's latest frame.
	held []*ResourceSlot
}

func newFrameSlot(index int, signal CompletionSignal, qopts ...queue.Option) *FrameSlot {
	opts := append([]queue.Option{queue.WithName(fmt.Sprintf("continuation_%d", index))}, qopts...)
	s := &FrameSlot{
		index:         index,
		signal:        signal,
		continuations: queue.New[continuation](opts...),
		adopted:       make(map[ResourceID]*ResourceSlot),
		adoptedNumber: make(map[ResourceID]uint64),
	}
	s.frame.Store(-1)
	return s
}

// Index returns the stable slot index in [0, framesInFlight).
func (s *FrameSlot) Index() int { return s.index }

// FrameNumber returns the number of the frame most recently drawn in this
// slot, or -1 before the first one.
func (s *FrameSlot) FrameNumber() int64 { return s.frame.Load() }

// State returns the current lifecycle state.
func (s *FrameSlot) State() FrameState { return FrameState(s.state.Load()) }

// Work returns the GPU work recorded for the current frame.
func (s *FrameSlot) Work() []WorkPackage { return s.work }

// Adopted returns the generation of resource id this slot renders with,
// or nil if none has been published yet.
func (s *FrameSlot) Adopted(id ResourceID) *ResourceSlot { return s.adopted[id] }

// IsUpdateObserver reports whether this is the slot designated to watch
// for global updates first. Only slot 0 is.
func (s *FrameSlot) IsUpdateObserver() bool { return s.index == 0 }

// CompletionSignal returns the signal waited on before the slot is reused.
func (s *FrameSlot) CompletionSignal() CompletionSignal { return s.signal }

func (s *FrameSlot) String() string {
	return fmt.Sprintf("slot %d (frame %d, %s)", s.index, s.FrameNumber(), s.State())
}

// transition moves the slot from one state to the next. Any other current
// state is a coordination bug.
func (s *FrameSlot) transition(from, to FrameState) {
	if !s.state.CompareAndSwap(int32(from), int32(to)) {
		panicf(KindCoordination, "FrameSlot.transition",
			"slot %d: illegal transition %s -> %s from state %s", s.index, from, to, s.State())
	}
}

func (s *FrameSlot) adopt(id ResourceID, r *ResourceSlot) {
	s.adopted[id] = r
	s.adoptedNumber[id] = r.UpdateNumber()
}

// adopts reports whether the slot already renders with generation r.
func (s *FrameSlot) adopts(id ResourceID, r *ResourceSlot) bool {
	return s.adopted[id] == r && s.adoptedNumber[id] == r.UpdateNumber()
}

// swapUsage releases the generations held by the previous frame and takes
// a use on every generation currently adopted.
func (s *FrameSlot) swapUsage() {
	for _, r := range s.held {
		r.users.Add(-1)
	}
	s.held = s.held[:0]
	for _, r := range s.adopted {
		r.users.Add(1)
		s.held = append(s.held, r)
	}
}

// release drops every resource use and returns the slot to Idle.
func (s *FrameSlot) release() {
	for _, r := range s.held {
		r.users.Add(-1)
	}
	s.held = nil
	s.work = nil
	s.state.Store(int32(FrameIdle))
}
