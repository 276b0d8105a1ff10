// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"encoding"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/shadedpath/frameloop"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// uniformAlignment is the size granularity of uniform buffers.
const uniformAlignment = 16

// UniformResource holds the A and B uniform buffers of one global
// resource. It implements frameloop.Uploader and
// frameloop.ResourceConsumer.
//
// Payloads may be []byte, []float32 or an encoding.BinaryMarshaler.
type UniformResource struct {
	dev     *Device
	id      frameloop.ResourceID
	size    uint64
	buffers [2]hal.Buffer

	mu    sync.Mutex
	bound map[int]frameloop.Designator

	uploads atomic.Int64
}

// NewUniformResource allocates both buffers of the resource.
func NewUniformResource(dev *Device, id frameloop.ResourceID, size uint64) (*UniformResource, error) {
	if err := dev.check(); err != nil {
		return nil, err
	}
	size = (size + uniformAlignment - 1) &^ (uniformAlignment - 1)
	u := &UniformResource{dev: dev, id: id, size: size, bound: make(map[int]frameloop.Designator)}
	for _, d := range []frameloop.Designator{frameloop.DesignatorA, frameloop.DesignatorB} {
		buf, err := dev.device.CreateBuffer(&hal.BufferDescriptor{
			Label: fmt.Sprintf("%s_%s", id, d),
			Size:  size,
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			u.Destroy()
			return nil, fmt.Errorf("native: create %s buffer %s: %w", id, d, err)
		}
		u.buffers[d] = buf
	}
	return u, nil
}

// ID returns the resource identifier.
func (u *UniformResource) ID() frameloop.ResourceID { return u.id }

// Size returns the aligned buffer size in bytes.
func (u *UniformResource) Size() uint64 { return u.size }

// Buffer returns the buffer behind a designator.
func (u *UniformResource) Buffer(d frameloop.Designator) hal.Buffer { return u.buffers[d] }

// Uploads returns the number of completed uploads.
func (u *UniformResource) Uploads() int64 { return u.uploads.Load() }

// UploadGlobalResource writes payload into the target buffer and returns
// the buffer.
func (u *UniformResource) UploadGlobalResource(id frameloop.ResourceID, target frameloop.Designator, payload any) (any, error) {
	data, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > u.size {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, len(data), u.size)
	}
	buf := u.buffers[target]
	u.dev.queue.WriteBuffer(buf, 0, data)
	u.uploads.Add(1)
	slogger().Debug("native: uniform uploaded", "resource", id, "target", target, "bytes", len(data))
	return buf, nil
}

// ApplyResourceSwitch binds the slot to the published buffer.
func (u *UniformResource) ApplyResourceSwitch(slot *frameloop.FrameSlot, res *frameloop.ResourceSlot) error {
	buf, ok := res.Contents().(hal.Buffer)
	if !ok {
		return fmt.Errorf("native: resource %s contents are %T, want hal.Buffer", res.ID(), res.Contents())
	}
	if buf != u.buffers[res.Designator()] {
		return fmt.Errorf("native: resource %s set %s holds a foreign buffer", res.ID(), res.Designator())
	}
	u.mu.Lock()
	u.bound[slot.Index()] = res.Designator()
	u.mu.Unlock()
	return nil
}

// BoundSet returns the set slot i currently renders with. It reports
// false before the slot's first adoption.
func (u *UniformResource) BoundSet(i int) (frameloop.Designator, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	d, ok := u.bound[i]
	return d, ok
}

// Bound returns the buffer slot i currently renders with, or nil before
// the first adoption.
func (u *UniformResource) Bound(i int) hal.Buffer {
	d, ok := u.BoundSet(i)
	if !ok {
		return nil
	}
	return u.buffers[d]
}

// SetLogger sets the logger for the HAL backend.
func (u *UniformResource) SetLogger(l *slog.Logger) { setLogger(l) }

// Destroy releases both buffers.
func (u *UniformResource) Destroy() {
	for i, buf := range u.buffers {
		if buf != nil {
			u.dev.device.DestroyBuffer(buf)
			u.buffers[i] = nil
		}
	}
}

// encodePayload converts an upload payload to little-endian bytes.
func encodePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case []float32:
		data := make([]byte, 4*len(p))
		for i, v := range p {
			binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
		}
		return data, nil
	case encoding.BinaryMarshaler:
		return p.MarshalBinary()
	default:
		return nil, fmt.Errorf("native: unsupported uniform payload %T", payload)
	}
}
