// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package frameloop coordinates the frames-in-flight loop of a real-time
// renderer.
//
// # Overview
//
// An Engine owns N frame slots. Each slot has its own draw worker; a single
// submit worker presents finished frames in the order they were drawn and
// hands each slot back to its draw worker through a continuation token.
// A single update worker uploads new generations of global resources into
// A/B double buffers while frames keep rendering.
//
// Rendering, presentation and uploads are done by external collaborators
// reached through the Renderer, Presenter, Uploader and ResourceConsumer
// interfaces. The backend/native package implements them on top of
// gogpu/wgpu.
//
// # Quick Start
//
//	e := frameloop.New(renderer, presenter, frameloop.WithFramesInFlight(3))
//	e.RegisterResource("camera", uploader, consumer)
//	if err := e.Start(ctx); err != nil {
//	    return err
//	}
//	e.RequestGlobalUpdate("camera", cameraState)
//	...
//	e.Shutdown()
//	if err := e.AwaitStopped(); err != nil {
//	    return err
//	}
//
// # Frame numbers
//
// Frame numbers come from one engine-wide counter. They strictly increase
// per slot and are unique across slots. They are assigned after the slot's
// completion signal fired, so the order in which slots finish drawing may
// differ from frame number order. By default the submit worker presents in
// draw-completion order and logs out-of-order frames; WithStrictPresentOrder
// presents by frame number instead.
//
// # Global resource updates
//
// RequestGlobalUpdate never blocks. The update worker uploads into the
// inactive A/B slot, publishes it and waits until every draw worker has
// adopted it. The replaced generation is freed once no frame references
// it. A request still queued when a newer one for the same resource
// arrives is dropped.
//
// # Shutdown
//
// Shutdown closes every queue a worker can block on; AwaitStopped joins
// the workers in a fixed order. Callback failures are returned from
// AwaitStopped as *CallbackError. API misuse and broken invariants panic
// with *InvariantError.
//
// # Single-threaded mode
//
// With WithSingleThreaded no goroutines are started and the owner drives
// the loop with DrawFrame. The protocol is the same, including A/B
// adoption, which completes after every slot has drawn once.
package frameloop
