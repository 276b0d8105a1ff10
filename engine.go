// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package frameloop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/shadedpath/frameloop/internal/latch"
	"github.com/shadedpath/frameloop/internal/queue"
	"github.com/shadedpath/frameloop/internal/workers"
)

// Engine coordinates the frames-in-flight loop: N draw workers, one
// submit worker and one global update worker.
//
// All coordination state lives in the Engine; there are no package-level
// engine globals, so several engines can run side by side.
//
// Thread safety: every exported method is safe for concurrent use, except
// DrawFrame which must be called from a single goroutine.
type Engine struct {
	opts      options
	renderer  Renderer
	presenter Presenter

	// mu guards configuration and lifecycle.
	mu             sync.Mutex
	started        bool
	framesInFlight int
	pairs          []*resourcePair
	byID           map[ResourceID]*resourcePair
	slots          []*FrameSlot
	cancel         context.CancelFunc
	runCtx         context.Context

	submissions *queue.Queue[*FrameSlot]
	updates     *queue.Queue[*UpdateRequest]
	adoption    *latch.Latch
	gate        *semaphore.Weighted
	limiter     *rate.Limiter

	group        *workers.Group
	updateWorker *workers.Worker
	drawWorkers  []*workers.Worker
	submitWorker *workers.Worker

	nextFrame atomic.Int64
	presented atomic.Int64

	// reorder holds early frames in strict present order. Submit worker only.
	reorder map[int64]*FrameSlot

	// updMu guards pending and resourcePair.nextNumber.
	updMu   sync.Mutex
	pending map[ResourceID]*UpdateRequest
	// cycle is the last adoption latch tag. Update worker only.
	cycle uint64

	// Single-threaded mode only.
	cursor     int
	heldUpdate *UpdateRequest
	inflight   *updateCycle

	initiated atomic.Bool
	stopOnce  sync.Once
	errMu     sync.Mutex
	err       error

	stats statsCounters
}

// New creates an engine drawing with r and presenting with p.
// Both are required.
func New(r Renderer, p Presenter, opts ...Option) *Engine {
	if r == nil || p == nil {
		panicf(KindConfiguration, "New", "renderer and presenter are required")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		opts:           o,
		renderer:       r,
		presenter:      p,
		framesInFlight: o.framesInFlight,
		byID:           make(map[ResourceID]*resourcePair),
		pending:        make(map[ResourceID]*UpdateRequest),
		reorder:        make(map[int64]*FrameSlot),
	}
	qopts := e.queueOptions()
	e.submissions = queue.New[*FrameSlot](append(qopts, queue.WithName("submit"))...)
	e.updates = queue.New[*UpdateRequest](append(qopts, queue.WithName("global_update"))...)
	e.adoption = latch.New(append(qopts, queue.WithName("adoption"))...)
	e.limiter = rate.NewLimiter(o.updateRate, o.updateBurst)
	return e
}

// maxDraws returns the recording concurrency for n slots.
func (e *Engine) maxDraws(n int) int {
	if k := e.opts.maxDraws; k > 0 && k < n {
		return k
	}
	return n
}

func (e *Engine) queueOptions() []queue.Option {
	return []queue.Option{
		queue.WithWaitInterval(e.opts.waitInterval),
		queue.WithLogger(e.logger()),
	}
}

// logger returns the engine logger, falling back to the package logger.
func (e *Engine) logger() *slog.Logger {
	if e.opts.logger != nil {
		return e.opts.logger
	}
	return Logger()
}

// Configure sets the number of frames in flight. It must be called before
// Start; calling it afterwards panics with a configuration error.
func (e *Engine) Configure(framesInFlight int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		panicf(KindConfiguration, "Configure", "frames in flight cannot change after Start")
	}
	checkFramesInFlight("Configure", framesInFlight)
	e.framesInFlight = framesInFlight
}

func checkFramesInFlight(op string, n int) {
	if n < 1 || n > MaxFramesInFlight {
		panicf(KindConfiguration, op, "frames in flight %d outside [1, %d]", n, MaxFramesInFlight)
	}
}

// FramesInFlight returns the configured number of frame slots.
func (e *Engine) FramesInFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.framesInFlight
}

// RegisterResource adds a double-buffered global resource. consumer may be
// nil when frames read the resource through ResourceSlot.Contents only.
// Registration after Start panics with a configuration error.
func (e *Engine) RegisterResource(id ResourceID, uploader Uploader, consumer ResourceConsumer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		panicf(KindConfiguration, "RegisterResource", "resource %q registered after Start", id)
	}
	if uploader == nil {
		panicf(KindConfiguration, "RegisterResource", "resource %q has no uploader", id)
	}
	if _, dup := e.byID[id]; dup {
		panicf(KindConfiguration, "RegisterResource", "resource %q registered twice", id)
	}
	if consumer == nil {
		consumer = ConsumerFunc(func(*FrameSlot, *ResourceSlot) error { return nil })
	}
	p := newResourcePair(id, uploader, consumer)
	e.pairs = append(e.pairs, p)
	e.byID[id] = p
}

// Start creates the frame slots, seeds each with one continuation token
// and, unless single-threaded, launches the workers. Start returns
// ErrShutdown if Shutdown was already called and panics if called twice.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		panicf(KindConfiguration, "Start", "engine already started")
	}
	if e.initiated.Load() {
		return ErrShutdown
	}
	checkFramesInFlight("Start", e.framesInFlight)
	e.started = true

	log := e.logger()
	n := e.framesInFlight
	e.gate = semaphore.NewWeighted(int64(e.maxDraws(n)))
	e.runCtx, e.cancel = context.WithCancel(ctx)

	collaborators := []any{e.renderer, e.presenter}
	for _, p := range e.pairs {
		collaborators = append(collaborators, p.uploader, p.consumer)
	}
	propagateLogger(log, collaborators...)

	e.slots = make([]*FrameSlot, n)
	qopts := e.queueOptions()
	for i := range n {
		e.slots[i] = newFrameSlot(i, e.signalFor(i), qopts...)
	}
	for _, s := range e.slots {
		s.transition(FrameIdle, FrameAwaitingContinuation)
		s.continuations.Push(continuation{})
	}
	e.stats.start(time.Now())

	if e.opts.singleThreaded {
		log.Info("frameloop: engine started", "framesInFlight", n, "mode", "single-threaded",
			"resources", len(e.pairs))
		return nil
	}

	group, gctx := workers.NewGroup(e.runCtx, log)
	e.group = group
	e.updateWorker = group.Go(workers.CategoryGlobalUpdate, "global_update", e.updateLoop)
	e.drawWorkers = make([]*workers.Worker, n)
	for i, s := range e.slots {
		e.drawWorkers[i] = group.Go(workers.CategoryDraw, fmt.Sprintf("render_thread_%d", i),
			func(ctx context.Context) error { return e.drawLoop(ctx, s) })
	}
	e.submitWorker = group.Go(workers.CategoryDrawQueueSubmit, "queue_submit", e.submitLoop)

	// An external cancel or a worker failure stops everything.
	go func() {
		<-gctx.Done()
		e.initiate("context done")
	}()

	log.Info("frameloop: engine started", "framesInFlight", n, "mode", "threaded",
		"resources", len(e.pairs), "frameLimit", e.opts.frameLimit, "strictOrder", e.opts.strictOrder)
	return nil
}

// signalFor returns the completion signal for slot i.
func (e *Engine) signalFor(i int) CompletionSignal {
	for _, c := range []any{e.presenter, e.renderer} {
		if sp, ok := c.(SignalProvider); ok {
			if sig := sp.CompletionSignal(i); sig != nil {
				return sig
			}
		}
	}
	return immediateSignal{}
}

// ShouldClose reports whether the frame loop has stopped or is stopping,
// either through Shutdown, a callback failure or the frame limit.
func (e *Engine) ShouldClose() bool {
	if e.initiated.Load() {
		return true
	}
	limit := e.opts.frameLimit
	return limit > 0 && e.presented.Load() >= limit
}

// Err returns the first callback error, if any.
func (e *Engine) Err() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.err
}

// fail records err as the engine error if it is the first one and
// initiates shutdown.
func (e *Engine) fail(err error) {
	e.errMu.Lock()
	first := e.err == nil
	if first {
		e.err = err
	}
	e.errMu.Unlock()
	if first {
		e.logger().Error("frameloop: callback failed, shutting down", "error", err)
	}
	e.initiate("callback failure")
}

// resource returns the registered pair for id.
func (e *Engine) resource(id ResourceID) *resourcePair {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.byID[id]
}
