// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"
	"log/slog"

	"github.com/shadedpath/frameloop"

	"github.com/gogpu/wgpu/hal"
)

// RecordFunc encodes the commands of one frame. The encoder is already
// recording; the renderer ends it.
type RecordFunc func(enc hal.CommandEncoder, slot *frameloop.FrameSlot) error

// Renderer records one command buffer per frame. It implements
// frameloop.Renderer.
type Renderer struct {
	dev    *Device
	record RecordFunc
}

// NewRenderer creates a renderer. A nil record function produces empty
// command buffers.
func NewRenderer(dev *Device, record RecordFunc) *Renderer {
	return &Renderer{dev: dev, record: record}
}

// RenderFrame records the frame's command buffer.
func (r *Renderer) RenderFrame(slot *frameloop.FrameSlot) ([]frameloop.WorkPackage, error) {
	if err := r.dev.check(); err != nil {
		return nil, err
	}
	label := fmt.Sprintf("frame_%d", slot.Index())
	encoder, err := r.dev.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: label + "_encoder",
	})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	if r.record != nil {
		if err := r.record(encoder, slot); err != nil {
			encoder.DiscardEncoding()
			return nil, err
		}
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	return []frameloop.WorkPackage{cmdBuf}, nil
}

// SetLogger sets the logger for the HAL backend.
func (r *Renderer) SetLogger(l *slog.Logger) { setLogger(l) }
