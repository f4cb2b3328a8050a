// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vmerrs classifies the failures returned by the staking engine.
//
// Every failure the engine reports is one of a fixed set of sentinel values.
// Callers branch on the sentinel with errors.Is or on its class with KindOf;
// a failing call never leaves partial state behind.
package vmerrs

import (
	"errors"

	safemath "github.com/luxfi/stakevm/utils/math"
)

// Kind is the class of a failure.
type Kind uint8

const (
	Unknown Kind = iota
	// Validation failures are malformed inputs: zero amounts, dust deposits,
	// self transfers, out of range fees.
	Validation
	// Authorization failures are callers acting outside their rights.
	Authorization
	// State failures depend on the engine's current state: paused,
	// already claimed, still locked.
	State
	// Resource failures are insufficient balances, allowances or liquidity.
	Resource
	// Arithmetic failures are overflows that would otherwise wrap.
	Arithmetic
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Authorization:
		return "authorization"
	case State:
		return "state"
	case Resource:
		return "resource"
	case Arithmetic:
		return "arithmetic"
	default:
		return "unknown"
	}
}

// Error is a classified engine failure.
type Error struct {
	Code string
	Kind Kind
	msg  string
}

// New returns a new sentinel failure.
func New(kind Kind, code, msg string) *Error {
	return &Error{
		Code: code,
		Kind: kind,
		msg:  msg,
	}
}

func (e *Error) Error() string {
	return e.msg
}

// KindOf returns the class of err, or Unknown if err was not produced by the
// engine's validation.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, safemath.ErrOverflow) || errors.Is(err, safemath.ErrUnderflow) {
		return Arithmetic
	}
	return Unknown
}

// CodeOf returns the code of err. Overflows report "Overflow"; anything
// unclassified reports "Internal".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if KindOf(err) == Arithmetic {
		return "Overflow"
	}
	return "Internal"
}
