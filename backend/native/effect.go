// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"
	"sync/atomic"

	"github.com/shadedpath/frameloop"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Effect draws a full-target triangle pass parameterised by a uniform
// resource. The WGSL source must declare the uniform at group 0,
// binding 0 and provide vs_main and fs_main entry points without vertex
// buffers.
//
// Every frame slot renders into its own target texture. One bind group
// exists per A/B set, so a slot switches generations by switching bind
// groups.
type Effect struct {
	dev     *Device
	globals *UniformResource

	shader     hal.ShaderModule
	layout     hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
	bindGroups [2]hal.BindGroup

	targets []hal.Texture
	views   []hal.TextureView

	draws atomic.Int64
}

// NewEffect compiles wgsl and creates the pipeline, both bind groups and
// one width x height target per frame slot.
func NewEffect(dev *Device, globals *UniformResource, wgsl string, framesInFlight int, width, height uint32) (*Effect, error) {
	if err := dev.check(); err != nil {
		return nil, err
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("native: effect target %dx%d", width, height)
	}
	e := &Effect{dev: dev, globals: globals}
	if err := e.createPipeline(wgsl); err != nil {
		e.Destroy()
		return nil, err
	}
	if err := e.createBindGroups(); err != nil {
		e.Destroy()
		return nil, err
	}
	if err := e.createTargets(framesInFlight, width, height); err != nil {
		e.Destroy()
		return nil, err
	}
	return e, nil
}

func (e *Effect) createPipeline(wgsl string) error {
	device := e.dev.device
	shader, err := CreateShaderModule(e.dev, "effect_shader", wgsl)
	if err != nil {
		return err
	}
	e.shader = shader

	layout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "effect_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("native: create effect uniform layout: %w", err)
	}
	e.layout = layout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "effect_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{e.layout},
	})
	if err != nil {
		return fmt.Errorf("native: create effect pipeline layout: %w", err)
	}
	e.pipeLayout = pipeLayout

	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "effect_pipeline",
		Layout: e.pipeLayout,
		Vertex: hal.VertexState{
			Module:     e.shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     e.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    e.dev.format,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("native: create effect pipeline: %w", err)
	}
	e.pipeline = pipeline
	return nil
}

func (e *Effect) createBindGroups() error {
	for _, d := range []frameloop.Designator{frameloop.DesignatorA, frameloop.DesignatorB} {
		buf := e.globals.Buffer(d)
		bg, err := e.dev.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  fmt.Sprintf("effect_%s_bind_%s", e.globals.ID(), d),
			Layout: e.layout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.BufferBinding{
					Buffer: buf.NativeHandle(), Offset: 0, Size: e.globals.Size(),
				}},
			},
		})
		if err != nil {
			return fmt.Errorf("native: create effect bind group %s: %w", d, err)
		}
		e.bindGroups[d] = bg
	}
	return nil
}

func (e *Effect) createTargets(n int, width, height uint32) error {
	size := hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1}
	for i := range n {
		tex, err := e.dev.device.CreateTexture(&hal.TextureDescriptor{
			Label:         fmt.Sprintf("effect_target_%d", i),
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        e.dev.format,
			Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
		})
		if err != nil {
			return fmt.Errorf("native: create effect target %d: %w", i, err)
		}
		e.targets = append(e.targets, tex)

		view, err := e.dev.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label: fmt.Sprintf("effect_target_%d_view", i),
		})
		if err != nil {
			return fmt.Errorf("native: create effect target view %d: %w", i, err)
		}
		e.views = append(e.views, view)
	}
	return nil
}

// Record encodes the effect pass for slot. It implements RecordFunc.
// Before the slot has adopted a generation of the uniform the pass only
// clears the target.
func (e *Effect) Record(enc hal.CommandEncoder, slot *frameloop.FrameSlot) error {
	i := slot.Index()
	if i >= len(e.views) {
		return fmt.Errorf("%w: slot %d, effect has %d targets", ErrSlotOutOfRange, i, len(e.views))
	}

	rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: fmt.Sprintf("effect_pass_%d", i),
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       e.views[i],
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	if d, ok := e.globals.BoundSet(i); ok {
		rp.SetPipeline(e.pipeline)
		rp.SetBindGroup(0, e.bindGroups[d], nil)
		rp.Draw(3, 1, 0, 0)
		e.draws.Add(1)
	}
	rp.End()
	return nil
}

// Draws returns the number of draw calls recorded.
func (e *Effect) Draws() int64 { return e.draws.Load() }

// Destroy releases all effect resources in reverse creation order.
func (e *Effect) Destroy() {
	device := e.dev.device
	for i := range e.views {
		device.DestroyTextureView(e.views[i])
	}
	for i := range e.targets {
		device.DestroyTexture(e.targets[i])
	}
	e.views, e.targets = nil, nil
	for i, bg := range e.bindGroups {
		if bg != nil {
			device.DestroyBindGroup(bg)
			e.bindGroups[i] = nil
		}
	}
	if e.pipeline != nil {
		device.DestroyRenderPipeline(e.pipeline)
		e.pipeline = nil
	}
	if e.pipeLayout != nil {
		device.DestroyPipelineLayout(e.pipeLayout)
		e.pipeLayout = nil
	}
	if e.layout != nil {
		device.DestroyBindGroupLayout(e.layout)
		e.layout = nil
	}
	if e.shader != nil {
		device.DestroyShaderModule(e.shader)
		e.shader = nil
	}
}
