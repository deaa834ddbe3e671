// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package store writes measurement points to a time-series backend.
package store

import (
	"context"

	"github.com/relabs-tech/envlogger/internal/env"
)

// Store opens database sessions.
type Store interface {
	// Connect fails with a fault.KindConnection error.
	Connect(ctx context.Context) (Conn, error)
}

// Conn is one live database session. A failed Write invalidates it; the
// caller must Close it and Connect again.
type Conn interface {
	SwitchDatabase(name string)
	// Write makes exactly one attempt and fails with a fault.KindWrite error.
	Write(ctx context.Context, points []env.Point) error
	Close() error
}
