// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package frameloop

import (
	"errors"
	"fmt"
)

// Package errors.
var (
	// ErrNotStarted is returned by operations that need a running engine.
	ErrNotStarted = errors.New("frameloop: engine not started")

	// ErrShutdown is returned once shutdown has been initiated.
	ErrShutdown = errors.New("frameloop: engine shut down")

	// ErrNotSingleThreaded is returned by DrawFrame when the engine runs
	// its own workers.
	ErrNotSingleThreaded = errors.New("frameloop: DrawFrame requires single-threaded mode")

	// ErrUnknownResource is returned for update requests naming a resource
	// that was never registered.
	ErrUnknownResource = errors.New("frameloop: unknown global resource")
)

// ErrorKind classifies an InvariantError.
type ErrorKind int

const (
	// KindConfiguration marks misuse of the engine API, such as changing
	// frames in flight after Start.
	KindConfiguration ErrorKind = iota
	// KindCoordination marks a broken coordination invariant, such as both
	// resource slots being in use when an update starts.
	KindCoordination
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindCoordination:
		return "coordination"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// InvariantError is the panic value for programming errors. These are not
// recoverable: the engine state is no longer trustworthy once one occurs.
type InvariantError struct {
	Kind ErrorKind
	Op   string
	Msg  string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("frameloop: %s error in %s: %s", e.Kind, e.Op, e.Msg)
}

func panicf(kind ErrorKind, op, format string, args ...any) {
	panic(&InvariantError{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)})
}

// Stage names the external callback that failed.
type Stage int

const (
	StageRender Stage = iota
	StagePresent
	StageUpload
	StageResourceSwitch
	StageCompletion
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageRender:
		return "render"
	case StagePresent:
		return "present"
	case StageUpload:
		return "upload"
	case StageResourceSwitch:
		return "resource switch"
	case StageCompletion:
		return "completion wait"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// CallbackError reports a failure returned by an external collaborator.
// The engine records the first one and shuts down; AwaitStopped returns it.
type CallbackError struct {
	Stage    Stage
	Slot     int   // frame slot index, -1 for update callbacks
	Frame    int64 // frame number, -1 if none was assigned yet
	Resource ResourceID
	Err      error
}

func (e *CallbackError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("frameloop: %s failed for resource %q (slot %d, frame %d): %v",
			e.Stage, e.Resource, e.Slot, e.Frame, e.Err)
	}
	return fmt.Sprintf("frameloop: %s failed (slot %d, frame %d): %v", e.Stage, e.Slot, e.Frame, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }
