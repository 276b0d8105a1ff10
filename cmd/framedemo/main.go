// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command framedemo drives the frame loop on a headless GPU device.
//
// It renders frames through the noop HAL backend, animates a global
// uniform buffer through double-buffered updates and shows live engine
// statistics in a terminal dashboard.
//
// Usage:
//
//	framedemo [flags]
//
// Press q to quit the dashboard and u to request an extra global update.
// When stdout is not a terminal, or with -plain, statistics are logged
// once per second instead.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"golang.org/x/term"

	"github.com/shadedpath/frameloop"
	"github.com/shadedpath/frameloop/backend/native"
)

type config struct {
	framesInFlight int
	maxDraws       int
	single         bool
	frameLimit     int64
	strict         bool
	updateRate     float64
	updateEvery    time.Duration
	waitInterval   time.Duration
	work           time.Duration
	duration       time.Duration
	plain          bool
	logLevel       string
	logFile        string
}

func parseFlags(args []string) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("framedemo", flag.ContinueOnError)
	fs.IntVar(&cfg.framesInFlight, "frames", frameloop.DefaultFramesInFlight, "frames in flight (1-16)")
	fs.IntVar(&cfg.maxDraws, "max-draws", 0, "max frames recording at once (0 = one per frame slot)")
	fs.BoolVar(&cfg.single, "single", false, "drive all stages from one goroutine")
	fs.Int64Var(&cfg.frameLimit, "limit", 0, "stop after this many frames (0 = unlimited)")
	fs.BoolVar(&cfg.strict, "strict", false, "present frames strictly in frame number order")
	fs.Float64Var(&cfg.updateRate, "update-rate", 0, "max global updates per second (0 = unlimited)")
	fs.DurationVar(&cfg.updateEvery, "update-every", 100*time.Millisecond, "interval between animated global updates")
	fs.DurationVar(&cfg.waitInterval, "wait-interval", 0, "bounded wait re-arm interval (0 = default)")
	fs.DurationVar(&cfg.work, "work", 2*time.Millisecond, "simulated recording time per frame")
	fs.DurationVar(&cfg.duration, "duration", 0, "stop after this long (0 = until interrupted)")
	fs.BoolVar(&cfg.plain, "plain", false, "log statistics instead of showing the dashboard")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.logFile, "log-file", "", "write logs to this file")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if cfg.framesInFlight < 1 || cfg.framesInFlight > frameloop.MaxFramesInFlight {
		return cfg, fmt.Errorf("-frames must be between 1 and %d, got %d", frameloop.MaxFramesInFlight, cfg.framesInFlight)
	}
	return cfg, nil
}

// engineOptions maps the command line onto engine options.
func (cfg config) engineOptions(logger *slog.Logger) []frameloop.Option {
	return []frameloop.Option{
		frameloop.WithFramesInFlight(cfg.framesInFlight),
		frameloop.WithMaxConcurrentDraws(cfg.maxDraws),
		frameloop.WithSingleThreaded(cfg.single),
		frameloop.WithFrameLimit(cfg.frameLimit),
		frameloop.WithStrictPresentOrder(cfg.strict),
		frameloop.WithUpdateRate(cfg.updateRate),
		frameloop.WithWaitInterval(cfg.waitInterval),
		frameloop.WithLogger(logger),
	}
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "framedemo: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "framedemo: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the demo logger. The dashboard owns the terminal, so
// interactive runs log only to a file.
func newLogger(cfg config, interactive bool) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.logLevel)); err != nil {
		return nil, nil, fmt.Errorf("-log-level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch {
	case cfg.logFile != "":
		f, err := os.Create(cfg.logFile)
		if err != nil {
			return nil, nil, err
		}
		return slog.New(slog.NewTextHandler(f, opts)), func() { _ = f.Close() }, nil
	case interactive:
		return slog.New(slog.DiscardHandler), func() {}, nil
	default:
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), func() {}, nil
	}
}

func run(cfg config) error {
	interactive := !cfg.plain && term.IsTerminal(int(os.Stdout.Fd()))
	logger, closeLog, err := newLogger(cfg, interactive)
	if err != nil {
		return err
	}
	defer closeLog()

	dev, err := native.OpenHeadless()
	if err != nil {
		return err
	}
	defer dev.Close()

	globals, err := native.NewUniformResource(dev, globalsID, globalsSize)
	if err != nil {
		return err
	}
	defer globals.Destroy()

	effect, err := native.NewEffect(dev, globals, pulseShaderWGSL, cfg.framesInFlight, targetWidth, targetHeight)
	if err != nil {
		return err
	}
	defer effect.Destroy()

	presenter, err := native.NewPresenter(dev, cfg.framesInFlight)
	if err != nil {
		return err
	}
	defer presenter.Destroy()

	sc := newScene(effect, cfg.work)
	e := frameloop.New(native.NewRenderer(dev, sc.record), presenter, cfg.engineOptions(logger)...)
	e.RegisterResource(globalsID, globals, globals)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if cfg.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.duration)
		defer cancel()
	}

	if err := e.Start(ctx); err != nil {
		return err
	}
	go sc.animate(ctx, e, cfg.updateEvery)

	driveCtx, stopDrive := context.WithCancel(ctx)
	driven := make(chan struct{})
	if cfg.single {
		go func() {
			defer close(driven)
			drive(driveCtx, e)
		}()
	} else {
		close(driven)
	}

	if interactive {
		if err := runDashboard(ctx, e, func() { sc.bump(e) }); err != nil {
			logger.Error("dashboard failed", "err", err)
		}
	} else {
		logStats(ctx, e, logger)
	}

	stopDrive()
	<-driven
	if !cfg.single {
		e.Shutdown()
	}
	err = e.AwaitStopped()

	s := e.Stats()
	logger.Info("demo finished",
		"presented", s.FramesPresented,
		"discarded", s.FramesDiscarded,
		"updates", s.UpdatesApplied,
		"draws", effect.Draws(),
		"submitted", presenter.Submitted())
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// drive runs single-threaded frames until ctx is done or the engine stops.
func drive(ctx context.Context, e *frameloop.Engine) {
	for ctx.Err() == nil {
		if err := e.DrawFrame(); err != nil {
			return
		}
	}
}

// logStats logs a statistics line every second until ctx is done or the
// engine closes.
func logStats(ctx context.Context, e *frameloop.Engine, logger *slog.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := e.Stats()
			logger.Info("frame stats",
				"presented", s.FramesPresented,
				"fps", fmt.Sprintf("%.1f", s.PresentRate),
				"async", s.AsyncPresentations,
				"updates", s.UpdatesApplied,
				"coalesced", s.UpdatesCoalesced)
			if e.ShouldClose() {
				return
			}
		}
	}
}
