// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import "errors"

// Package errors for the HAL backend.
var (
	// ErrNoGPU is returned when no GPU adapter is available.
	ErrNoGPU = errors.New("native: no GPU adapter available")

	// ErrNilDevice is returned when a nil HAL device or queue is supplied.
	ErrNilDevice = errors.New("native: nil device or queue")

	// ErrNoHALAccess is returned when a device provider does not expose
	// its HAL device and queue.
	ErrNoHALAccess = errors.New("native: provider does not expose HAL types")

	// ErrClosed is returned when the device has been closed.
	ErrClosed = errors.New("native: device closed")

	// ErrSlotOutOfRange is returned when a frame slot index exceeds the
	// number of slots a backend object was created for.
	ErrSlotOutOfRange = errors.New("native: frame slot out of range")

	// ErrFenceTimeout is returned when a frame fence does not signal in time.
	ErrFenceTimeout = errors.New("native: fence wait timed out")

	// ErrUnexpectedWork is returned when a work package is not a HAL
	// command buffer.
	ErrUnexpectedWork = errors.New("native: work package is not a command buffer")

	// ErrPayloadTooLarge is returned when an upload exceeds the uniform size.
	ErrPayloadTooLarge = errors.New("native: payload exceeds uniform buffer size")
)
