// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package frameloop

import (
	"context"
	"time"
)

// submitLoop runs the single submit worker. It presents slots in the
// order draw workers finished them and re-arms each slot afterwards.
func (e *Engine) submitLoop(context.Context) error {
	for {
		slot, ok := e.submissions.Pop()
		if !ok {
			return nil
		}
		if err := e.presentFrame(slot); err != nil {
			e.fail(err)
			return err
		}
	}
}

// presentFrame presents slot, or in strict order mode parks it until every
// earlier frame number has been presented.
func (e *Engine) presentFrame(slot *FrameSlot) error {
	if !e.opts.strictOrder {
		return e.present(slot)
	}

	e.reorder[slot.FrameNumber()] = slot
	if len(e.reorder) > len(e.slots) {
		panicf(KindCoordination, "presentFrame", "%d frames waiting for presentation with %d slots",
			len(e.reorder), len(e.slots))
	}
	for {
		next := e.presented.Load()
		s, ok := e.reorder[next]
		if !ok {
			return nil
		}
		delete(e.reorder, next)
		if err := e.present(s); err != nil {
			return err
		}
		if e.initiated.Load() {
			return nil
		}
	}
}

// present submits and presents one slot and hands it back to its draw
// worker.
func (e *Engine) present(slot *FrameSlot) error {
	frame := slot.FrameNumber()
	if err := e.presenter.SubmitAndPresent(slot); err != nil {
		return &CallbackError{Stage: StagePresent, Slot: slot.index, Frame: frame, Err: err}
	}
	slot.transition(FrameSubmitted, FramePresented)

	expected := e.presented.Load()
	async := frame != expected
	if async {
		e.stats.async.Add(1)
		e.logger().Warn("frameloop: frame presented out of order",
			"slot", slot.index, "frame", frame, "expected", expected)
	}
	count := e.presented.Add(1)
	e.stats.markPresent(time.Now())
	if obs := e.opts.observer; obs != nil {
		obs.FramePresented(slot.index, frame, async)
	}

	if limit := e.opts.frameLimit; limit > 0 && count >= limit {
		e.initiate("frame limit reached")
		return nil
	}

	slot.transition(FramePresented, FrameAwaitingContinuation)
	slot.continuations.Push(continuation{})
	return nil
}
