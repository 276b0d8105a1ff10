// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package frameloop

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats is a point-in-time snapshot of engine counters.
type Stats struct {
	FramesInFlight int

	FramesDrawn        int64
	FramesPresented    int64
	AsyncPresentations int64 // presented with a frame number other than the next expected
	FramesDiscarded    int64 // drawn but dropped at shutdown

	UpdatesApplied   int64
	UpdatesCoalesced int64
	UpdatesQueued    int

	// PresentRate is a smoothed presentation rate in frames per second.
	PresentRate float64
	// FrameTime is the smoothed interval between presentations.
	FrameTime time.Duration
	Uptime    time.Duration

	Resources []ResourceStats
	Stopping  bool
}

// statsCounters backs Stats.
type statsCounters struct {
	drawn     atomic.Int64
	async     atomic.Int64
	discarded atomic.Int64
	applied   atomic.Int64
	coalesced atomic.Int64

	mu          sync.Mutex
	startedAt   time.Time
	lastPresent time.Time
	frameTime   time.Duration
}

// frameTimeSmoothing is the weight of the newest interval.
const frameTimeSmoothing = 0.1

func (c *statsCounters) start(now time.Time) {
	c.mu.Lock()
	c.startedAt = now
	c.mu.Unlock()
}

func (c *statsCounters) markPresent(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.lastPresent.IsZero() {
		d := now.Sub(c.lastPresent)
		if c.frameTime == 0 {
			c.frameTime = d
		} else {
			c.frameTime += time.Duration(frameTimeSmoothing * float64(d-c.frameTime))
		}
	}
	c.lastPresent = now
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	n := e.framesInFlight
	pairs := e.pairs
	e.mu.Unlock()

	s := Stats{
		FramesInFlight:     n,
		FramesDrawn:        e.stats.drawn.Load(),
		FramesPresented:    e.presented.Load(),
		AsyncPresentations: e.stats.async.Load(),
		FramesDiscarded:    e.stats.discarded.Load(),
		UpdatesApplied:     e.stats.applied.Load(),
		UpdatesCoalesced:   e.stats.coalesced.Load(),
		UpdatesQueued:      e.updates.Len(),
		Stopping:           e.initiated.Load(),
	}

	e.stats.mu.Lock()
	s.FrameTime = e.stats.frameTime
	if !e.stats.startedAt.IsZero() {
		s.Uptime = time.Since(e.stats.startedAt)
	}
	e.stats.mu.Unlock()
	if s.FrameTime > 0 {
		s.PresentRate = float64(time.Second) / float64(s.FrameTime)
	}

	for _, p := range pairs {
		s.Resources = append(s.Resources, p.stats())
	}
	return s
}
