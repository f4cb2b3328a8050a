// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package units

// Denominations of the base asset. The base asset and the claim token both
// use 9 decimals.
const (
	Mote      uint64 = 1
	MicroCSPR uint64 = 1000 * Mote
	MilliCSPR uint64 = 1000 * MicroCSPR
	CSPR      uint64 = 1000 * MilliCSPR
	KiloCSPR  uint64 = 1000 * CSPR
	MegaCSPR  uint64 = 1000 * KiloCSPR
)
