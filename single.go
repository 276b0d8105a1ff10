// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package frameloop

// DrawFrame runs one iteration of the frame loop on the calling goroutine:
// one step of the global update protocol, then draw and present of the
// next slot in round-robin order. It is only available with
// WithSingleThreaded and must not be called concurrently.
//
// DrawFrame returns ErrShutdown once the engine stopped, including after
// the frame limit was reached, and the callback error that stopped it.
func (e *Engine) DrawFrame() error {
	if !e.opts.singleThreaded {
		return ErrNotSingleThreaded
	}
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	if e.initiated.Load() {
		return ErrShutdown
	}

	if err := e.stepUpdate(); err != nil {
		e.fail(err)
		return err
	}

	slot := e.slots[e.cursor]
	e.cursor = (e.cursor + 1) % len(e.slots)
	if _, ok := slot.continuations.TryPop(); !ok {
		panicf(KindCoordination, "DrawFrame", "slot %d has no continuation token", slot.index)
	}

	more, err := e.drawFrame(e.runCtx, slot)
	if err != nil {
		e.fail(err)
		return err
	}
	if !more {
		e.initiate("frame limit reached")
		return ErrShutdown
	}

	queued, ok := e.submissions.TryPop()
	if !ok {
		panicf(KindCoordination, "DrawFrame", "slot %d was not queued for submission", slot.index)
	}
	if err := e.presentFrame(queued); err != nil {
		e.fail(err)
		return err
	}

	e.pollUpdate()
	return nil
}

// stepUpdate starts the next queued upload unless one is still waiting for
// adoption. It never blocks.
func (e *Engine) stepUpdate() error {
	if e.inflight != nil {
		return nil
	}
	for {
		req := e.heldUpdate
		e.heldUpdate = nil
		if req == nil {
			var ok bool
			if req, ok = e.updates.TryPop(); !ok {
				return nil
			}
		}
		if req.Coalesced() {
			e.claimUpdate(req)
			continue
		}
		if !e.limiter.Allow() {
			e.heldUpdate = req
			return nil
		}
		p, ok := e.claimUpdate(req)
		if !ok {
			continue
		}
		slot, err := e.beginUpdate(p, req)
		if err != nil {
			return err
		}
		e.inflight = &updateCycle{pair: p, slot: slot}
		return nil
	}
}

// pollUpdate completes the in-flight upload once every slot adopted it.
func (e *Engine) pollUpdate() {
	if e.inflight == nil || !e.adoption.Poll() {
		return
	}
	e.finishUpdate(e.inflight.pair, e.inflight.slot)
	e.inflight = nil
}
