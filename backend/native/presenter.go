// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shadedpath/frameloop"

	"github.com/gogpu/wgpu/hal"
)

// PresentFunc is called after a frame's work has been handed to the queue.
type PresentFunc func(slot int, frame int64)

// PresenterOption configures a Presenter.
type PresenterOption func(*Presenter)

// WithFenceTimeout bounds every completion wait. Non-positive values are
// ignored.
func WithFenceTimeout(d time.Duration) PresenterOption {
	return func(p *Presenter) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithOnPresent installs a hook run after each submission, for example to
// present a surface texture.
func WithOnPresent(fn PresentFunc) PresenterOption {
	return func(p *Presenter) {
		p.onPresent = fn
	}
}

// Presenter submits the command buffers recorded in a frame slot and
// signals the slot's fence. It implements frameloop.Presenter and
// frameloop.SignalProvider.
type Presenter struct {
	dev       *Device
	fences    []*FrameFence
	timeout   time.Duration
	onPresent PresentFunc

	submitted atomic.Int64
}

// NewPresenter creates a presenter with one fence per frame slot.
func NewPresenter(dev *Device, framesInFlight int, opts ...PresenterOption) (*Presenter, error) {
	if err := dev.check(); err != nil {
		return nil, err
	}
	p := &Presenter{dev: dev, timeout: DefaultFenceTimeout}
	for _, opt := range opts {
		opt(p)
	}
	p.fences = make([]*FrameFence, 0, framesInFlight)
	for i := range framesInFlight {
		f, err := newFrameFence(dev.device, i, p.timeout)
		if err != nil {
			p.Destroy()
			return nil, err
		}
		p.fences = append(p.fences, f)
	}
	return p, nil
}

// Slots returns the number of frame slots the presenter has fences for.
func (p *Presenter) Slots() int { return len(p.fences) }

// CompletionSignal returns the fence of slot i, or nil if the presenter
// was created for fewer slots.
func (p *Presenter) CompletionSignal(i int) frameloop.CompletionSignal {
	if i < 0 || i >= len(p.fences) {
		return nil
	}
	return p.fences[i]
}

// Fence returns the fence of slot i, or nil if i is out of range.
func (p *Presenter) Fence(i int) *FrameFence {
	if i < 0 || i >= len(p.fences) {
		return nil
	}
	return p.fences[i]
}

// SubmitAndPresent submits the slot's command buffers to the queue.
func (p *Presenter) SubmitAndPresent(slot *frameloop.FrameSlot) error {
	fence := p.Fence(slot.Index())
	if fence == nil {
		return fmt.Errorf("%w: slot %d, presenter has %d fences", ErrSlotOutOfRange, slot.Index(), len(p.fences))
	}
	cbs, err := commandBuffers(slot.Work())
	if err != nil {
		return err
	}
	value := uint64(slot.FrameNumber()) + 1

	if err := p.dev.queue.Submit(cbs, fence.fence, value); err != nil {
		for _, cb := range cbs {
			p.dev.device.FreeCommandBuffer(cb)
		}
		return fmt.Errorf("native: submit frame %d: %w", slot.FrameNumber(), err)
	}
	fence.track(value, cbs)
	p.submitted.Add(1)

	if p.onPresent != nil {
		p.onPresent(slot.Index(), slot.FrameNumber())
	}
	return nil
}

// Submitted returns the number of frames handed to the queue.
func (p *Presenter) Submitted() int64 { return p.submitted.Load() }

// SetLogger sets the logger for the HAL backend.
func (p *Presenter) SetLogger(l *slog.Logger) { setLogger(l) }

// Destroy drains and releases every fence. Call it after the engine has
// stopped.
func (p *Presenter) Destroy() {
	for _, f := range p.fences {
		f.destroy()
	}
	p.fences = nil
}

// commandBuffers unpacks the work packages of a slot.
func commandBuffers(work []frameloop.WorkPackage) ([]hal.CommandBuffer, error) {
	cbs := make([]hal.CommandBuffer, 0, len(work))
	for i, w := range work {
		cb, ok := w.(hal.CommandBuffer)
		if !ok {
			return nil, fmt.Errorf("%w: package %d is %T", ErrUnexpectedWork, i, w)
		}
		cbs = append(cbs, cb)
	}
	return cbs, nil
}
