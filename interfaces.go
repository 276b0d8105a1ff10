// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package frameloop

import "context"

// ResourceID names a double-buffered global resource.
type ResourceID string

// WorkPackage is an opaque unit of recorded GPU work produced by a
// Renderer and consumed by a Presenter, typically a command buffer.
type WorkPackage any

// CompletionSignal is waited on before a frame slot is reused. It
// returns once the GPU work last submitted for the slot has finished.
type CompletionSignal interface {
	Wait(ctx context.Context) error
}

// Renderer records the GPU work for one frame.
type Renderer interface {
	RenderFrame(slot *FrameSlot) ([]WorkPackage, error)
}

// Presenter submits the work recorded in a slot and presents the frame.
type Presenter interface {
	SubmitAndPresent(slot *FrameSlot) error
}

// Uploader writes a new generation of a global resource into the
// inactive slot and returns the value consumers bind to.
type Uploader interface {
	UploadGlobalResource(id ResourceID, target Designator, payload any) (contents any, err error)
}

// ResourceConsumer switches a frame slot's bindings to a newly published
// resource generation.
type ResourceConsumer interface {
	ApplyResourceSwitch(slot *FrameSlot, res *ResourceSlot) error
}

// SignalProvider is optionally implemented by a Presenter or Renderer to
// supply per-slot completion signals.
type SignalProvider interface {
	CompletionSignal(slotIndex int) CompletionSignal
}

// FrameObserver receives diagnostics for every drawn and presented frame.
// Calls come from worker goroutines and must not block.
type FrameObserver interface {
	FrameDrawn(slot int, frame int64)
	FramePresented(slot int, frame int64, async bool)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(slot *FrameSlot) ([]WorkPackage, error)

func (f RendererFunc) RenderFrame(slot *FrameSlot) ([]WorkPackage, error) { return f(slot) }

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(slot *FrameSlot) error

func (f PresenterFunc) SubmitAndPresent(slot *FrameSlot) error { return f(slot) }

// UploaderFunc adapts a function to Uploader.
type UploaderFunc func(id ResourceID, target Designator, payload any) (any, error)

func (f UploaderFunc) UploadGlobalResource(id ResourceID, target Designator, payload any) (any, error) {
	return f(id, target, payload)
}

// ConsumerFunc adapts a function to ResourceConsumer.
type ConsumerFunc func(slot *FrameSlot, res *ResourceSlot) error

func (f ConsumerFunc) ApplyResourceSwitch(slot *FrameSlot, res *ResourceSlot) error {
	return f(slot, res)
}

// immediateSignal is the default completion signal. It never blocks.
type immediateSignal struct{}

func (immediateSignal) Wait(context.Context) error { return nil }
