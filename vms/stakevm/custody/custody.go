// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package custody is the boundary between the engine and whatever actually
// holds the base asset.
package custody

import (
	"github.com/holiman/uint256"

	"github.com/luxfi/ids"
)

//go:generate go run go.uber.org/mock/mockgen -package=${GOPACKAGE}mock -destination=${GOPACKAGE}mock/${GOFILE} -mock_names=Custody=Custody . Custody

// Custody moves base asset into and out of the vault.
type Custody interface {
	// Collect takes amount of the base asset from from into the vault. A
	// failed collection fails the deposit that requested it.
	Collect(from ids.ShortID, amount *uint256.Int) error

	// Release transfers amount of the base asset to to. A failed release
	// fails the call that requested it.
	Release(to ids.ShortID, amount *uint256.Int) error
}
