// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/wgpu/hal"
)

const (
	// DefaultFenceTimeout bounds a single completion wait.
	DefaultFenceTimeout = 5 * time.Second

	// fencePollInterval is the slice a fence wait blocks in before
	// rechecking its context.
	fencePollInterval = 10 * time.Millisecond
)

// FrameFence tracks the GPU work last submitted for one frame slot. It
// implements frameloop.CompletionSignal.
//
// Each submit signals the fence with the frame number plus one, so values
// grow monotonically per slot and zero means nothing was submitted yet.
type FrameFence struct {
	device  hal.Device
	fence   hal.Fence
	slot    int
	timeout time.Duration

	mu        sync.Mutex
	submitted uint64
	completed uint64
	inFlight  []hal.CommandBuffer
}

func newFrameFence(device hal.Device, slot int, timeout time.Duration) (*FrameFence, error) {
	fence, err := device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("native: create fence for slot %d: %w", slot, err)
	}
	return &FrameFence{device: device, fence: fence, slot: slot, timeout: timeout}, nil
}

// Slot returns the frame slot index the fence belongs to.
func (f *FrameFence) Slot() int { return f.slot }

// Submitted returns the last fence value handed to the queue.
func (f *FrameFence) Submitted() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitted
}

// track records a submission and the command buffers it retires.
func (f *FrameFence) track(value uint64, cbs []hal.CommandBuffer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = value
	f.inFlight = append(f.inFlight, cbs...)
}

// Wait blocks until the last submission for the slot has completed, then
// frees its command buffers. It returns immediately before the first
// submission.
func (f *FrameFence) Wait(ctx context.Context) error {
	f.mu.Lock()
	value := f.submitted
	done := f.completed >= value
	f.mu.Unlock()
	if done {
		return nil
	}

	deadline := time.Now().Add(f.timeout)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		step := min(fencePollInterval, time.Until(deadline))
		if step <= 0 {
			return fmt.Errorf("%w: slot %d value %d after %v", ErrFenceTimeout, f.slot, value, f.timeout)
		}
		ok, err := f.device.Wait(f.fence, value, step)
		if err != nil {
			return fmt.Errorf("native: wait for slot %d: %w", f.slot, err)
		}
		if ok {
			f.retire(value)
			return nil
		}
	}
}

// retire marks value complete and frees every command buffer submitted
// up to it.
func (f *FrameFence) retire(value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value > f.completed {
		f.completed = value
	}
	for _, cb := range f.inFlight {
		f.device.FreeCommandBuffer(cb)
	}
	f.inFlight = f.inFlight[:0]
}

// destroy waits for outstanding work and releases the fence.
func (f *FrameFence) destroy() {
	if err := f.Wait(context.Background()); err != nil {
		slogger().Warn("native: fence not drained before destroy", "slot", f.slot, "err", err)
	}
	f.device.DestroyFence(f.fence)
}
