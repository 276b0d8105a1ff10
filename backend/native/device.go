// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package native implements the frameloop collaborators on the gogpu/wgpu
// hardware abstraction layer.
//
// A [Device] wraps a HAL device and queue. [Renderer] records one command
// buffer per frame, [Presenter] submits it with a per-slot [FrameFence]
// that doubles as the slot's completion signal, and [UniformResource]
// keeps the A/B buffers of a double-buffered global resource.
package native

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// halProvider is implemented by device providers that expose their HAL
// device and queue.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// Device is a HAL device and its submission queue.
type Device struct {
	device hal.Device
	queue  hal.Queue
	format gputypes.TextureFormat

	// Set only by OpenHeadless, which owns the device.
	instance hal.Instance

	closeOnce sync.Once
	closed    atomic.Bool
}

// NewDevice wraps an existing HAL device and queue. The caller keeps
// ownership of both.
func NewDevice(device hal.Device, queue hal.Queue) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	return &Device{device: device, queue: queue, format: gputypes.TextureFormatBGRA8Unorm}, nil
}

// NewFromProvider extracts the HAL device and queue from a host
// application's device provider.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	if provider == nil {
		return nil, ErrNilDevice
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALAccess
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHALAccess)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHALAccess)
	}
	d, err := NewDevice(device, queue)
	if err != nil {
		return nil, err
	}
	d.format = provider.SurfaceFormat()
	slogger().Debug("native: device from provider", "format", d.format)
	return d, nil
}

// OpenHeadless opens a device on the noop HAL backend. It records and
// submits work without a GPU, which suits tests and headless runs.
func OpenHeadless() (*Device, error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("native: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoGPU
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("native: open adapter: %w", err)
	}
	d, err := NewDevice(openDev.Device, openDev.Queue)
	if err != nil {
		instance.Destroy()
		return nil, err
	}
	d.instance = instance
	slogger().Info("native: headless device opened")
	return d, nil
}

// HalDevice returns the wrapped HAL device.
func (d *Device) HalDevice() hal.Device { return d.device }

// HalQueue returns the wrapped HAL queue.
func (d *Device) HalQueue() hal.Queue { return d.queue }

// SurfaceFormat returns the texture format frames are presented in.
func (d *Device) SurfaceFormat() gputypes.TextureFormat { return d.format }

// Headless reports whether the device was opened by OpenHeadless.
func (d *Device) Headless() bool { return d.instance != nil }

// check returns ErrClosed once the device has been closed.
func (d *Device) check() error {
	if d == nil {
		return ErrNilDevice
	}
	if d.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Close marks the device closed and destroys a device opened by
// OpenHeadless. Devices wrapped with NewDevice or NewFromProvider belong
// to the caller and are only detached. Close is idempotent; afterwards
// every constructor and RenderFrame on the device return ErrClosed.
func (d *Device) Close() {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		if d.instance == nil {
			return
		}
		d.device.Destroy()
		d.instance.Destroy()
		slogger().Debug("native: headless device closed")
	})
}
