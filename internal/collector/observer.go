// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package collector

import (
	"time"

	"github.com/relabs-tech/envlogger/internal/env"
	"github.com/relabs-tech/envlogger/internal/fault"
)

// Tick describes one successful sample-transform-write cycle.
// Points are shared with every observer and must not be modified.
type Tick struct {
	Reading env.Reading
	Points  []env.Point
	Holdoff time.Duration
	Elapsed time.Duration // sample start to write completion
}

// Failure describes one failed cycle and the holdoff that follows it.
type Failure struct {
	Err     error
	Kind    fault.Kind
	Holdoff time.Duration
}

// Observer is notified of loop progress. Calls happen synchronously on the
// loop goroutine, so implementations must return quickly and guard any
// state they share with other goroutines.
type Observer interface {
	StateChanged(s State)
	Published(t Tick)
	Failed(f Failure)
}

// Observers fans out to every member in order.
type Observers []Observer

func (o Observers) StateChanged(s State) {
	for _, obs := range o {
		obs.StateChanged(s)
	}
}

func (o Observers) Published(t Tick) {
	for _, obs := range o {
		obs.Published(t)
	}
}

func (o Observers) Failed(f Failure) {
	for _, obs := range o {
		obs.Failed(f)
	}
}
