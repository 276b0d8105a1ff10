// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package frameloop

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/shadedpath/frameloop/internal/queue"
)

const (
	// DefaultFramesInFlight is the number of frame slots when none is
	// configured.
	DefaultFramesInFlight = 2

	// MaxFramesInFlight bounds the number of frame slots.
	MaxFramesInFlight = 16
)

// Option configures an Engine during creation.
//
// Example:
//
//	e := frameloop.New(renderer, presenter,
//	    frameloop.WithFramesInFlight(3),
//	    frameloop.WithFrameLimit(600),
//	)
type Option func(*options)

// options holds optional configuration for Engine creation.
type options struct {
	framesInFlight int
	singleThreaded bool
	waitInterval   time.Duration
	frameLimit     int64
	maxDraws       int
	strictOrder    bool
	updateRate     rate.Limit
	updateBurst    int
	logger         *slog.Logger
	observer       FrameObserver
}

// defaultOptions returns the default engine options.
func defaultOptions() options {
	return options{
		framesInFlight: DefaultFramesInFlight,
		waitInterval:   queue.DefaultWaitInterval,
		updateRate:     rate.Inf,
		updateBurst:    1,
	}
}

// WithFramesInFlight sets the number of frame slots and draw workers.
// Values outside [1, MaxFramesInFlight] panic at Start.
func WithFramesInFlight(n int) Option {
	return func(o *options) {
		o.framesInFlight = n
	}
}

// WithSingleThreaded runs the frame loop on the caller's goroutine. No
// workers are started; the owner drives frames with Engine.DrawFrame.
// Useful for debugging and deterministic tests.
func WithSingleThreaded(enabled bool) Option {
	return func(o *options) {
		o.singleThreaded = enabled
	}
}

// WithWaitInterval sets the bounded wait used by every engine queue.
// A blocked worker wakes after each interval and waits again; the
// interval never causes an error. Defaults to 3 seconds.
func WithWaitInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.waitInterval = d
		}
	}
}

// WithFrameLimit stops the engine after n frames have been presented.
// Zero disables the limit.
func WithFrameLimit(n int64) Option {
	return func(o *options) {
		if n >= 0 {
			o.frameLimit = n
		}
	}
}

// WithMaxConcurrentDraws caps how many slots record a frame at the same
// time. The cap never exceeds the number of frame slots; non-positive
// values are ignored. By default every slot may record concurrently.
func WithMaxConcurrentDraws(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDraws = n
		}
	}
}

// WithStrictPresentOrder makes the submit worker present frames strictly
// by frame number, holding early frames back until their predecessors
// arrive. By default frames are presented in draw-completion order and
// out-of-order presentations are only logged.
func WithStrictPresentOrder(enabled bool) Option {
	return func(o *options) {
		o.strictOrder = enabled
	}
}

// WithUpdateRate limits global resource updates to perSecond uploads.
// Non-positive values remove the limit.
func WithUpdateRate(perSecond float64) Option {
	return func(o *options) {
		if perSecond <= 0 {
			o.updateRate = rate.Inf
			return
		}
		o.updateRate = rate.Limit(perSecond)
	}
}

// WithLogger sets a logger for this engine only. Without it the engine
// logs through the package logger (see SetLogger).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithObserver registers a FrameObserver.
func WithObserver(obs FrameObserver) Option {
	return func(o *options) {
		o.observer = obs
	}
}
