// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validators

import (
	"bytes"

	"github.com/google/btree"
	"github.com/holiman/uint256"

	"github.com/luxfi/ids"
)

var _ btree.LessFunc[*Validator] = (*Validator).Less

// Validator is a delegation target of the vault.
type Validator struct {
	Address ids.ShortID `json:"address"`
	// Score is an operator assigned performance score. Higher is better.
	Score uint32 `json:"score"`
	// Uptime is a percentage in [0, 100].
	Uptime  uint32       `json:"uptime"`
	Stake   *uint256.Int `json:"stake"`
	Updated uint64       `json:"updated"`
}

// A *Validator is less than another *Validator when:
//
//  1. Its score is higher.
//  2. If the scores are equal, its uptime is higher.
//  3. If those are also equal, its address is lesser.
//
// Ascending order is therefore best first.
func (v *Validator) Less(than *Validator) bool {
	if v.Score != than.Score {
		return v.Score > than.Score
	}
	if v.Uptime != than.Uptime {
		return v.Uptime > than.Uptime
	}
	return bytes.Compare(v.Address[:], than.Address[:]) < 0
}

type record struct {
	Score   uint32 `serialize:"true"`
	Uptime  uint32 `serialize:"true"`
	Stake   []byte `serialize:"true"`
	Updated uint64 `serialize:"true"`
}
