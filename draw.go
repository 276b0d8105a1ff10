// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package frameloop

import "context"

// drawLoop runs one draw worker. It draws a frame every time the slot's
// continuation token comes back and exits when the continuation queue is
// shut down or the frame limit is reached.
func (e *Engine) drawLoop(ctx context.Context, slot *FrameSlot) error {
	for {
		if _, ok := slot.continuations.Pop(); !ok {
			return nil
		}
		more, err := e.drawFrame(ctx, slot)
		if err != nil {
			e.fail(err)
			return err
		}
		if !more {
			return nil
		}
	}
}

// drawFrame draws one frame in slot after its continuation token has been
// taken, and queues it for submission. It returns false when the worker
// should stop without error.
func (e *Engine) drawFrame(ctx context.Context, slot *FrameSlot) (bool, error) {
	slot.transition(FrameAwaitingContinuation, FrameDrawing)
	if err := e.adoptPending(slot); err != nil {
		return false, err
	}

	// The previous frame of this slot must be off the GPU before its
	// resource uses are dropped and the slot is recorded again.
	if err := slot.signal.Wait(ctx); err != nil {
		if ctx.Err() != nil || e.initiated.Load() {
			return false, nil
		}
		return false, &CallbackError{Stage: StageCompletion, Slot: slot.index, Frame: slot.FrameNumber(), Err: err}
	}

	// At most maxDraws slots record at once.
	if err := e.gate.Acquire(ctx, 1); err != nil {
		return false, nil
	}
	frame, ok := e.reserveFrame()
	if !ok {
		e.gate.Release(1)
		slot.release()
		return false, nil
	}
	slot.frame.Store(frame)

	// Uses move to the adopted generations before adoption is reported,
	// so a retired generation has no users once the latch completes.
	slot.swapUsage()
	e.arrive(slot)

	work, err := e.renderer.RenderFrame(slot)
	e.gate.Release(1)
	if err != nil {
		return false, &CallbackError{Stage: StageRender, Slot: slot.index, Frame: frame, Err: err}
	}
	slot.work = work

	slot.transition(FrameDrawing, FrameSubmitted)
	e.stats.drawn.Add(1)
	if obs := e.opts.observer; obs != nil {
		obs.FrameDrawn(slot.index, frame)
	}
	e.submissions.Push(slot)
	return true, nil
}

// adoptPending switches slot to every resource generation published since
// it last looked. The check never blocks.
func (e *Engine) adoptPending(slot *FrameSlot) error {
	for _, p := range e.pairs {
		pub, _ := p.latest()
		if pub == nil || slot.adopts(p.id, pub) {
			continue
		}
		if err := p.consumer.ApplyResourceSwitch(slot, pub); err != nil {
			return &CallbackError{
				Stage:    StageResourceSwitch,
				Slot:     slot.index,
				Frame:    slot.FrameNumber(),
				Resource: p.id,
				Err:      err,
			}
		}
		slot.adopt(p.id, pub)
		e.logger().Debug("frameloop: resource adopted",
			"slot", slot.index, "resource", p.id, "set", pub.designator, "update", pub.UpdateNumber())
	}
	return nil
}

// arrive reports slot's adoption of every published generation to the
// update worker. Stale and repeated arrivals are ignored by the latch.
func (e *Engine) arrive(slot *FrameSlot) {
	for _, p := range e.pairs {
		pub, cycle := p.latest()
		if pub != nil && slot.adopts(p.id, pub) {
			e.adoption.Arrive(slot.index, cycle)
		}
	}
}

// reserveFrame assigns the next global frame number. It reports false
// once the frame limit is exhausted.
func (e *Engine) reserveFrame() (int64, bool) {
	limit := e.opts.frameLimit
	for {
		n := e.nextFrame.Load()
		if limit > 0 && n >= limit {
			return 0, false
		}
		if e.nextFrame.CompareAndSwap(n, n+1) {
			return n, true
		}
	}
}
