// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package frameloop

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Designator names one half of a double-buffered resource.
type Designator int

const (
	DesignatorA Designator = iota
	DesignatorB
)

// String returns "A" or "B".
func (d Designator) String() string {
	switch d {
	case DesignatorA:
		return "A"
	case DesignatorB:
		return "B"
	default:
		return fmt.Sprintf("Designator(%d)", int(d))
	}
}

// ResourceState is the lifecycle position of a ResourceSlot.
type ResourceState int32

const (
	// ResourceFree slots may be overwritten by the next upload.
	ResourceFree ResourceState = iota
	// ResourceUploading slots are being written by the update worker.
	ResourceUploading
	// ResourceReadyToRender slots are published and being adopted.
	ResourceReadyToRender
	// ResourceInUse slots were adopted by every draw worker.
	ResourceInUse
)

// String returns the state name.
func (s ResourceState) String() string {
	switch s {
	case ResourceFree:
		return "Free"
	case ResourceUploading:
		return "Uploading"
	case ResourceReadyToRender:
		return "ReadyToRender"
	case ResourceInUse:
		return "InUse"
	default:
		return fmt.Sprintf("ResourceState(%d)", int32(s))
	}
}

// ResourceSlot is one generation holder of a double-buffered global
// resource.
type ResourceSlot struct {
	id         ResourceID
	designator Designator

	state        atomic.Int32
	updateNumber atomic.Uint64
	users        atomic.Int32

	// contents is written while Uploading and read only after the slot
	// has been published under resourcePair.mu.
	contents any
}

// ID returns the resource this slot belongs to.
func (r *ResourceSlot) ID() ResourceID { return r.id }

// Designator returns A or B.
func (r *ResourceSlot) Designator() Designator { return r.designator }

// State returns the current lifecycle state.
func (r *ResourceSlot) State() ResourceState { return ResourceState(r.state.Load()) }

// UpdateNumber returns the number of the update last uploaded here.
func (r *ResourceSlot) UpdateNumber() uint64 { return r.updateNumber.Load() }

// Users returns the number of frame slots whose latest frame references
// this generation.
func (r *ResourceSlot) Users() int { return int(r.users.Load()) }

// Contents returns the value produced by the Uploader.
func (r *ResourceSlot) Contents() any { return r.contents }

func (r *ResourceSlot) String() string {
	return fmt.Sprintf("%s/%s (update %d, %s, users %d)",
		r.id, r.designator, r.UpdateNumber(), r.State(), r.Users())
}

func (r *ResourceSlot) setState(s ResourceState) { r.state.Store(int32(s)) }

// resourcePair holds the A/B slots of one registered resource.
type resourcePair struct {
	id       ResourceID
	uploader Uploader
	consumer ResourceConsumer
	slots    [2]*ResourceSlot

	mu sync.Mutex
	// published is the newest generation offered to draw workers.
	published *ResourceSlot
	// cycle is the adoption latch tag of published.
	cycle uint64
	// current is the generation every draw worker has adopted.
	current *ResourceSlot

	// Update worker only.
	lastStarted uint64
	nextNumber  uint64 // guarded by Engine.updMu
}

func newResourcePair(id ResourceID, u Uploader, c ResourceConsumer) *resourcePair {
	p := &resourcePair{id: id, uploader: u, consumer: c}
	for i := range p.slots {
		p.slots[i] = &ResourceSlot{id: id, designator: Designator(i)}
	}
	return p
}

// latest returns the newest published generation and its cycle tag.
func (p *resourcePair) latest() (*ResourceSlot, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published, p.cycle
}

// inactive picks the slot the next upload goes into. Having neither slot
// free means a previous generation was never reclaimed.
func (p *resourcePair) inactive() *ResourceSlot {
	for _, s := range p.slots {
		if s.State() == ResourceFree {
			return s
		}
	}
	panicf(KindCoordination, "resourcePair.inactive",
		"resource %q: both update sets are in use (A=%s, B=%s)",
		p.id, p.slots[0].State(), p.slots[1].State())
	return nil
}

func (p *resourcePair) publish(s *ResourceSlot, cycle uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s.setState(ResourceReadyToRender)
	p.published = s
	p.cycle = cycle
}

// promote marks s as adopted by every draw worker and returns the
// generation it replaces.
func (p *resourcePair) promote(s *ResourceSlot) (previous *ResourceSlot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s.setState(ResourceInUse)
	previous = p.current
	p.current = s
	return previous
}

// reclaim frees retired generations no frame references any more and
// returns how many were freed.
func (p *resourcePair) reclaim() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.slots {
		if s == p.current || s == p.published {
			continue
		}
		if s.State() == ResourceInUse && s.users.Load() == 0 {
			s.setState(ResourceFree)
			n++
		}
	}
	return n
}

// ResourceStats is a snapshot of one resource's A/B slots.
type ResourceStats struct {
	ID      ResourceID
	Current Designator
	Slots   [2]ResourceSlotStats
}

// ResourceSlotStats is a snapshot of one ResourceSlot.
type ResourceSlotStats struct {
	State        ResourceState
	UpdateNumber uint64
	Users        int
}

func (p *resourcePair) stats() ResourceStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	rs := ResourceStats{ID: p.id, Current: -1}
	if p.current != nil {
		rs.Current = p.current.designator
	}
	for i, s := range p.slots {
		rs.Slots[i] = ResourceSlotStats{
			State:        s.State(),
			UpdateNumber: s.UpdateNumber(),
			Users:        s.Users(),
		}
	}
	return rs
}
