// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package json provides JSON representations of the numeric types used in
// API arguments and replies. Every value is encoded as a decimal string.
package json

import (
	"errors"
	"strconv"

	"github.com/holiman/uint256"
)

const Null = "null"

var errNegativeAmount = errors.New("amount is negative")

// Uint32 is a uint32 that can be JSON marshaled as a string.
type Uint32 uint32

func (u Uint32) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatUint(uint64(u), 10) + `"`), nil
}

func (u *Uint32) UnmarshalJSON(b []byte) error {
	str := unquote(b)
	if str == Null {
		return nil
	}
	val, err := strconv.ParseUint(str, 10, 32)
	*u = Uint32(val)
	return err
}

// Uint64 is a uint64 that can be JSON marshaled as a string.
type Uint64 uint64

func (u Uint64) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatUint(uint64(u), 10) + `"`), nil
}

func (u *Uint64) UnmarshalJSON(b []byte) error {
	str := unquote(b)
	if str == Null {
		return nil
	}
	val, err := strconv.ParseUint(str, 10, 64)
	*u = Uint64(val)
	return err
}

// Amount is a 256-bit token amount that is JSON marshaled as a decimal
// string. The zero value is zero.
type Amount struct {
	uint256.Int
}

// NewAmount copies v. A nil v is zero.
func NewAmount(v *uint256.Int) Amount {
	var a Amount
	if v != nil {
		a.Set(v)
	}
	return a
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.Dec() + `"`), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	str := unquote(b)
	if str == Null {
		return nil
	}
	if len(str) > 0 && str[0] == '-' {
		return errNegativeAmount
	}
	return a.SetFromDecimal(str)
}

// Uint256 returns a copy of the amount.
func (a *Amount) Uint256() *uint256.Int {
	return new(uint256.Int).Set(&a.Int)
}

func unquote(b []byte) string {
	str := string(b)
	if len(str) >= 2 {
		if lastIndex := len(str) - 1; str[0] == '"' && str[lastIndex] == '"' {
			str = str[1:lastIndex]
		}
	}
	return str
}
