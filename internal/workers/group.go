// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package workers supervises the long-running engine goroutines.
//
// A Group launches named workers of a given Category on top of an
// errgroup. The first worker error cancels the group context. Unlike a
// plain errgroup, each worker can be joined individually, which lets the
// shutdown coordinator stop workers in a fixed order.
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Category classifies a worker by the role it plays in the frame loop.
type Category int

const (
	// CategoryDraw is a per-slot drawing worker.
	CategoryDraw Category = iota
	// CategoryGlobalUpdate is the global resource update worker.
	CategoryGlobalUpdate
	// CategoryDrawQueueSubmit is the submission and presentation worker.
	CategoryDrawQueueSubmit
	// CategoryMainThread marks work run inline by the owner.
	CategoryMainThread
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryDraw:
		return "Draw"
	case CategoryGlobalUpdate:
		return "GlobalUpdate"
	case CategoryDrawQueueSubmit:
		return "DrawQueueSubmit"
	case CategoryMainThread:
		return "MainThread"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// Worker is a handle to one launched goroutine.
type Worker struct {
	name     string
	category Category
	started  time.Time

	done chan struct{}
	err  error
}

// Name returns the worker name.
func (w *Worker) Name() string { return w.name }

// Category returns the worker category.
func (w *Worker) Category() Category { return w.category }

// Done is closed when the worker function has returned.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Join blocks until the worker returned and reports its error.
func (w *Worker) Join() error {
	<-w.done
	return w.err
}

// Group runs a set of workers sharing one cancellation context.
//
// Thread safety: Group is safe for concurrent use.
type Group struct {
	eg  *errgroup.Group
	ctx context.Context

	mu      sync.Mutex
	workers []*Worker

	running atomic.Int32
	logger  *slog.Logger
}

// NewGroup creates a group derived from ctx. The returned context is
// canceled when any worker returns a non-nil error or Wait returns.
func NewGroup(ctx context.Context, logger *slog.Logger) (*Group, context.Context) {
	eg, gctx := errgroup.WithContext(ctx)
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Group{eg: eg, ctx: gctx, logger: logger}, gctx
}

// Go launches fn as a named worker. fn receives the group context.
func (g *Group) Go(category Category, name string, fn func(ctx context.Context) error) *Worker {
	w := &Worker{
		name:     name,
		category: category,
		started:  time.Now(),
		done:     make(chan struct{}),
	}

	g.mu.Lock()
	g.workers = append(g.workers, w)
	g.mu.Unlock()

	g.running.Add(1)
	g.eg.Go(func() error {
		defer func() {
			g.running.Add(-1)
			close(w.done)
		}()
		g.logger.Debug("worker started", "worker", name, "category", category)
		w.err = fn(g.ctx)
		if w.err != nil {
			g.logger.Warn("worker stopped with error", "worker", name, "category", category,
				"error", w.err, "uptime", time.Since(w.started))
			return fmt.Errorf("%s: %w", name, w.err)
		}
		g.logger.Debug("worker stopped", "worker", name, "category", category,
			"uptime", time.Since(w.started))
		return nil
	})
	return w
}

// Wait blocks until every worker returned and reports the first error.
func (g *Group) Wait() error {
	return g.eg.Wait()
}

// Workers returns a snapshot of the launched workers in launch order.
func (g *Group) Workers() []*Worker {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Worker, len(g.workers))
	copy(out, g.workers)
	return out
}

// Running returns the number of workers that have not yet returned.
func (g *Group) Running() int {
	return int(g.running.Load())
}
