// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package frameloop

import (
	"context"
	"fmt"
	"sync/atomic"
)

// UpdateRequest asks the update worker to upload a new generation of a
// global resource.
type UpdateRequest struct {
	Resource     ResourceID
	UpdateNumber uint64
	Payload      any

	// free marks a request superseded by a newer one for the same
	// resource. It is never applied.
	free atomic.Bool
}

// Coalesced reports whether a newer request replaced this one.
func (r *UpdateRequest) Coalesced() bool { return r.free.Load() }

// updateCycle is an upload waiting for adoption in single-threaded mode.
type updateCycle struct {
	pair *resourcePair
	slot *ResourceSlot
}

// RequestGlobalUpdate queues an upload of payload into resource id and
// returns its update number. It never blocks. A request still waiting in
// the queue is replaced by a newer request for the same resource.
func (e *Engine) RequestGlobalUpdate(id ResourceID, payload any) (uint64, error) {
	if e.initiated.Load() {
		return 0, ErrShutdown
	}
	p := e.resource(id)
	if p == nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownResource, id)
	}

	e.updMu.Lock()
	p.nextNumber++
	req := &UpdateRequest{Resource: id, UpdateNumber: p.nextNumber, Payload: payload}
	e.updMu.Unlock()

	e.enqueueUpdate(req)
	return req.UpdateNumber, nil
}

// enqueueUpdate queues req, coalescing it with a pending request for the
// same resource. The higher update number wins.
func (e *Engine) enqueueUpdate(req *UpdateRequest) {
	p := e.resource(req.Resource)
	e.updMu.Lock()
	if p != nil && req.UpdateNumber > p.nextNumber {
		p.nextNumber = req.UpdateNumber
	}
	if prev := e.pending[req.Resource]; prev != nil {
		if prev.UpdateNumber > req.UpdateNumber {
			req.free.Store(true)
		} else {
			prev.free.Store(true)
			e.pending[req.Resource] = req
		}
	} else {
		e.pending[req.Resource] = req
	}
	e.updMu.Unlock()

	e.updates.Push(req)
}

// claimUpdate removes req from the pending set and returns its resource,
// or false if req was coalesced or is older than an upload already done.
func (e *Engine) claimUpdate(req *UpdateRequest) (*resourcePair, bool) {
	e.updMu.Lock()
	if e.pending[req.Resource] == req {
		delete(e.pending, req.Resource)
	}
	coalesced := req.free.Load()
	e.updMu.Unlock()

	p := e.resource(req.Resource)
	if p == nil {
		panicf(KindConfiguration, "claimUpdate", "update for unregistered resource %q", req.Resource)
	}
	if coalesced || req.UpdateNumber <= p.lastStarted {
		e.stats.coalesced.Add(1)
		e.logger().Debug("frameloop: update coalesced",
			"resource", req.Resource, "update", req.UpdateNumber, "applied", p.lastStarted)
		return nil, false
	}
	return p, true
}

// updateLoop runs the single global update worker.
func (e *Engine) updateLoop(ctx context.Context) error {
	for {
		req, ok := e.updates.Pop()
		if !ok {
			return nil
		}
		if req.Coalesced() {
			e.claimUpdate(req)
			continue
		}
		if err := e.limiter.Wait(ctx); err != nil {
			// Canceled by shutdown.
			return nil
		}
		p, ok := e.claimUpdate(req)
		if !ok {
			continue
		}

		slot, err := e.beginUpdate(p, req)
		if err != nil {
			e.fail(err)
			return err
		}
		if !e.adoption.Await() {
			return nil
		}
		e.finishUpdate(p, slot)
	}
}

// beginUpdate uploads req into the inactive slot of p and publishes it to
// the draw workers. The adoption latch is armed before publication.
func (e *Engine) beginUpdate(p *resourcePair, req *UpdateRequest) (*ResourceSlot, error) {
	p.reclaim()
	target := p.inactive()
	target.setState(ResourceUploading)
	target.updateNumber.Store(req.UpdateNumber)
	p.lastStarted = req.UpdateNumber

	contents, err := p.uploader.UploadGlobalResource(p.id, target.designator, req.Payload)
	if err != nil {
		target.setState(ResourceFree)
		return nil, &CallbackError{Stage: StageUpload, Slot: -1, Frame: -1, Resource: p.id, Err: err}
	}
	target.contents = contents

	e.cycle++
	e.adoption.Arm(len(e.slots), e.cycle)
	p.publish(target, e.cycle)

	e.logger().Debug("frameloop: update published",
		"resource", p.id, "set", target.designator, "update", req.UpdateNumber)
	return target, nil
}

// finishUpdate runs once every draw worker adopted slot. The generation it
// replaces is freed as soon as no frame references it.
func (e *Engine) finishUpdate(p *resourcePair, slot *ResourceSlot) {
	prev := p.promote(slot)
	freed := p.reclaim()
	e.stats.applied.Add(1)

	log := e.logger()
	if prev != nil {
		log.Info("frameloop: global resource switched",
			"resource", p.id, "set", slot.designator, "update", slot.UpdateNumber(),
			"retired", prev.designator, "reclaimed", freed > 0)
		return
	}
	log.Info("frameloop: global resource initialized",
		"resource", p.id, "set", slot.designator, "update", slot.UpdateNumber())
}
