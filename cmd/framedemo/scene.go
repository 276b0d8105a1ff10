// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"github.com/gogpu/wgpu/hal"

	"github.com/shadedpath/frameloop"
	"github.com/shadedpath/frameloop/backend/native"
)

const (
	globalsID   frameloop.ResourceID = "globals"
	globalsSize                      = 16

	targetWidth  = 320
	targetHeight = 180
)

// pulseShaderWGSL draws a triangle scaled and tinted by the globals
// uniform. It needs no vertex buffers.
const pulseShaderWGSL = `
struct Globals {
    time: f32,
    scale: f32,
    pad0: f32,
    pad1: f32,
}

@group(0) @binding(0) var<uniform> globals: Globals;

@vertex
fn vs_main(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
    let x = f32(i32(idx) - 1) * globals.scale;
    let y = f32(i32(idx & 1u) * 2 - 1) * globals.scale;
    return vec4<f32>(x, y, 0.0, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(globals.scale, 0.5, 0.5, 1.0);
}
`

// scene records the pulse effect into every frame and animates its
// globals.
type scene struct {
	effect *native.Effect
	work   time.Duration
	start  time.Time

	bumps atomic.Int64
}

func newScene(effect *native.Effect, work time.Duration) *scene {
	return &scene{effect: effect, work: work, start: time.Now()}
}

// record encodes the effect pass. work stretches recording to model a
// heavier scene.
func (s *scene) record(enc hal.CommandEncoder, slot *frameloop.FrameSlot) error {
	if err := s.effect.Record(enc, slot); err != nil {
		return err
	}
	if s.work > 0 {
		time.Sleep(s.work)
	}
	return nil
}

// payload returns the globals for time t.
func (s *scene) payload(t time.Duration) []float32 {
	secs := float32(t.Seconds())
	scale := 0.75 + 0.25*float32(math.Sin(float64(secs)*2*math.Pi))
	return []float32{secs, scale, float32(s.bumps.Load()), 0}
}

func (s *scene) update(e *frameloop.Engine) error {
	_, err := e.RequestGlobalUpdate(globalsID, s.payload(time.Since(s.start)))
	return err
}

// bump requests an extra update outside the animation cadence.
func (s *scene) bump(e *frameloop.Engine) {
	s.bumps.Add(1)
	_ = s.update(e)
}

// animate requests a global update every interval until ctx is done or
// the engine shuts down.
func (s *scene) animate(ctx context.Context, e *frameloop.Engine, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.update(e); errors.Is(err, frameloop.ErrShutdown) {
				return
			}
		}
	}
}
