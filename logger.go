// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package frameloop

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active package logger.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for frameloop and its sub-packages.
// By default frameloop produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to restore the default
// silent behavior. Engines created with WithLogger keep their own logger.
//
// Log levels used by frameloop:
//   - [slog.LevelDebug]: queue wakeups, resource adoption, per-frame traces
//   - [slog.LevelInfo]: lifecycle events (start, shutdown, worker exit)
//   - [slog.LevelWarn]: out-of-order presentation, frames discarded at shutdown
//   - [slog.LevelError]: callback failures
//
// Example:
//
//	frameloop.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current package logger.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by collaborators that accept a logger,
// such as the native backend.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// propagateLogger hands l to every collaborator implementing loggerSetter.
// Called from Start so backends log with the engine's configuration.
func propagateLogger(l *slog.Logger, collaborators ...any) {
	for _, c := range collaborators {
		if ls, ok := c.(loggerSetter); ok {
			ls.SetLogger(l)
		}
	}
}
