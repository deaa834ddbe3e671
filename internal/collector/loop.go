// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package collector runs the sample, transform and publish cycle and keeps it
// alive across sensor and database failures.
package collector

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/relabs-tech/envlogger/internal/env"
	"github.com/relabs-tech/envlogger/internal/fault"
	"github.com/relabs-tech/envlogger/internal/store"
)

// Sampler takes one reading.
type Sampler interface {
	Sample() (env.Reading, error)
}

// Transformer shapes a reading into points.
type Transformer interface {
	Points(r env.Reading) ([]env.Point, error)
}

// Config holds loop timing and target selection.
type Config struct {
	Target            string // shown in logs only
	Database          string
	TickInterval      time.Duration
	HoldoffInitial    time.Duration
	BackoffMultiplier float64
	BackoffMax        time.Duration // 0 = unbounded
}

// DefaultConfig returns the stock timing: 2s ticks, 1s holdoff floor,
// doubling without a ceiling.
func DefaultConfig() Config {
	return Config{
		Database:          "environment",
		TickInterval:      2 * time.Second,
		HoldoffInitial:    time.Second,
		BackoffMultiplier: 2,
	}
}

// Option configures a RecoveryLoop.
type Option func(*RecoveryLoop)

// WithClock replaces the wall clock used for sleeps.
func WithClock(c clock.Clock) Option {
	return func(l *RecoveryLoop) { l.clock = c }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(l *RecoveryLoop) { l.logger = logger }
}

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(l *RecoveryLoop) { l.observers = append(l.observers, o) }
}

// RecoveryLoop owns the database connection and the backoff holdoff. Both
// are touched only by the goroutine executing Run.
type RecoveryLoop struct {
	cfg         Config
	sampler     Sampler
	transformer Transformer
	store       store.Store

	clock     clock.Clock
	logger    *zap.SugaredLogger
	observers Observers

	holdoff time.Duration
	conn    store.Conn
}

// New returns a loop in the IDLE state.
func New(cfg Config, sampler Sampler, transformer Transformer, st store.Store, opts ...Option) *RecoveryLoop {
	l := &RecoveryLoop{
		cfg:         cfg,
		sampler:     sampler,
		transformer: transformer,
		store:       st,
		clock:       clock.New(),
		logger:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.cfg.BackoffMultiplier < 1 {
		l.cfg.BackoffMultiplier = 1
	}
	return l
}

// Run loops until ctx is cancelled and then returns nil. Every other error is
// logged, reported to observers and retried after the holdoff.
func (l *RecoveryLoop) Run(ctx context.Context) error {
	l.holdoff = l.cfg.HoldoffInitial
	defer func() {
		l.closeConn()
		l.setState(StateStopped)
		l.logger.Info("collector stopped")
	}()

	for {
		l.setState(StateIdle)
		if !l.sleep(ctx, l.holdoff) {
			return nil
		}

		err := l.session(ctx)
		l.closeConn()
		if ctx.Err() != nil {
			return nil
		}

		l.backoff(err)
	}
}

// session connects and publishes until the first error.
func (l *RecoveryLoop) session(ctx context.Context) error {
	l.setState(StateConnecting)
	l.logger.Infof("connecting to %s", l.cfg.Target)

	conn, err := l.store.Connect(ctx)
	if err != nil {
		return err
	}
	l.conn = conn
	conn.SwitchDatabase(l.cfg.Database)

	l.logger.Info("logging data")
	l.setState(StatePublishing)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.tick(ctx); err != nil {
			return err
		}
		if !l.sleep(ctx, l.cfg.TickInterval) {
			return ctx.Err()
		}
	}
}

func (l *RecoveryLoop) tick(ctx context.Context) error {
	start := l.clock.Now()
	reading, err := l.sampler.Sample()
	if err != nil {
		return err
	}
	points, err := l.transformer.Points(reading)
	if err != nil {
		return err
	}
	if err := l.conn.Write(ctx, points); err != nil {
		return err
	}

	l.holdoff = l.cfg.HoldoffInitial
	l.observers.Published(Tick{
		Reading: reading,
		Points:  points,
		Holdoff: l.holdoff,
		Elapsed: l.clock.Since(start),
	})
	return nil
}

func (l *RecoveryLoop) backoff(err error) {
	l.setState(StateBackoff)

	next := time.Duration(math.MaxInt64)
	if f := float64(l.holdoff) * l.cfg.BackoffMultiplier; f < math.MaxInt64 {
		next = time.Duration(f)
	}
	if l.cfg.BackoffMax > 0 && next > l.cfg.BackoffMax {
		next = l.cfg.BackoffMax
	}
	l.holdoff = next

	kind := fault.KindOf(err)
	l.logger.Errorw("collection failed", "kind", string(kind), "error", err, "holdoff", l.holdoff)
	l.observers.Failed(Failure{Err: err, Kind: kind, Holdoff: l.holdoff})
}

func (l *RecoveryLoop) closeConn() {
	if l.conn == nil {
		return
	}
	if err := l.conn.Close(); err != nil {
		l.logger.Warnw("closing connection", "error", err)
	}
	l.conn = nil
}

// sleep waits d and reports whether the loop should continue.
func (l *RecoveryLoop) sleep(ctx context.Context, d time.Duration) bool {
	t := l.clock.Timer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return ctx.Err() == nil
	}
}

func (l *RecoveryLoop) setState(s State) {
	l.observers.StateChanged(s)
}
