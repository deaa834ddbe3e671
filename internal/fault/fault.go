// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package fault classifies the failures the collector can recover from.
package fault

import (
	"errors"
	"fmt"
)

// Kind identifies which stage of a tick failed.
type Kind string

const (
	KindUnknown    Kind = "unknown"
	KindSensor     Kind = "sensor"
	KindSystemRead Kind = "system_read"
	KindConnection Kind = "connection"
	KindWrite      Kind = "write"
	KindTransform  Kind = "transform"
)

// Error wraps an underlying failure with its kind and the operation that
// produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an *Error of the given kind.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Sensor(op string, err error) error     { return New(KindSensor, op, err) }
func SystemRead(op string, err error) error { return New(KindSystemRead, op, err) }
func Connection(op string, err error) error { return New(KindConnection, op, err) }
func Write(op string, err error) error      { return New(KindWrite, op, err) }
func Transform(op string, err error) error  { return New(KindTransform, op, err) }

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}
