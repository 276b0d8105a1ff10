// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package frameloop

// Shutdown initiates a cooperative shutdown. Every worker exits at its next
// queue wait. Shutdown never blocks and may be called any number of times
// from any goroutine; use AwaitStopped to wait for the workers.
func (e *Engine) Shutdown() {
	e.initiate("requested")
}

// initiate sets the shutdown flag and closes every queue a worker can wait
// on: the update queue, the adoption latch and each continuation queue.
// The submission queue stays open until the draw workers have joined.
func (e *Engine) initiate(reason string) {
	if !e.initiated.CompareAndSwap(false, true) {
		return
	}
	e.mu.Lock()
	slots := e.slots
	cancel := e.cancel
	e.mu.Unlock()

	e.logger().Info("frameloop: shutdown initiated", "reason", reason)
	if cancel != nil {
		cancel()
	}
	e.updates.Shutdown()
	e.adoption.Close()
	for _, s := range slots {
		s.continuations.Shutdown()
	}
}

// AwaitStopped blocks until every worker has stopped and returns the first
// callback error, if any. Workers are joined in a fixed order: the update
// worker, the draw workers by slot index, then the submit worker. Frames
// drawn but not yet presented are discarded.
//
// In threaded mode AwaitStopped waits for shutdown to be initiated, by
// Shutdown, a callback failure, context cancellation or the frame limit.
// In single-threaded mode it initiates shutdown itself.
func (e *Engine) AwaitStopped() error {
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if !started {
		return e.Err()
	}
	e.stopOnce.Do(e.joinAll)
	return e.Err()
}

func (e *Engine) joinAll() {
	log := e.logger()
	if e.opts.singleThreaded {
		e.initiate("single-threaded stop")
	} else {
		_ = e.updateWorker.Join()
		for _, w := range e.drawWorkers {
			_ = w.Join()
		}
	}

	e.submissions.Shutdown()
	if !e.opts.singleThreaded {
		_ = e.submitWorker.Join()
		_ = e.group.Wait()
	}

	if discarded := e.stats.drawn.Load() - e.presented.Load(); discarded > 0 {
		e.stats.discarded.Store(discarded)
		log.Warn("frameloop: discarded frames not presented before shutdown", "frames", discarded)
	}
	for _, s := range e.slots {
		s.release()
	}
	log.Info("frameloop: engine stopped",
		"drawn", e.stats.drawn.Load(), "presented", e.presented.Load(), "error", e.Err())
}
