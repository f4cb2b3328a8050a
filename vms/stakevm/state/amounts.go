// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
)

const AmountLen = 32

var (
	ErrCorrupted = errors.New("state corrupted")

	boolTrue  = []byte{database.BoolTrue}
	boolFalse = []byte{0}
)

// GetAmount reads a 256-bit big-endian amount. A missing key reads as zero.
func GetAmount(db database.KeyValueReader, key []byte) (*uint256.Int, error) {
	b, err := db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	if len(b) != AmountLen {
		return nil, fmt.Errorf("%w: amount at %x has %d bytes", ErrCorrupted, key, len(b))
	}
	return new(uint256.Int).SetBytes(b), nil
}

// PutAmount writes a 256-bit big-endian amount. Zero amounts delete the key so
// that tables only hold live entries.
func PutAmount(db database.KeyValueWriterDeleter, key []byte, amount *uint256.Int) error {
	if amount.IsZero() {
		return db.Delete(key)
	}
	b := amount.Bytes32()
	return db.Put(key, b[:])
}

// GetUInt64 reads a uint64. A missing key reads as zero.
func GetUInt64(db database.KeyValueReader, key []byte) (uint64, error) {
	v, err := database.GetUInt64(db, key)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	return v, err
}

// GetBool reads a bool. A missing key reads as false.
func GetBool(db database.KeyValueReader, key []byte) (bool, error) {
	b, err := db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(b) == 1 && b[0] == database.BoolTrue, nil
}

func PutBool(db database.KeyValueWriter, key []byte, v bool) error {
	if v {
		return db.Put(key, boolTrue)
	}
	return db.Put(key, boolFalse)
}

// GetShortID reads an address. A missing key reads as ids.ShortEmpty.
func GetShortID(db database.KeyValueReader, key []byte) (ids.ShortID, error) {
	b, err := db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return ids.ShortEmpty, nil
	}
	if err != nil {
		return ids.ShortEmpty, err
	}
	return ids.ToShortID(b)
}

func PutShortID(db database.KeyValueWriter, key []byte, id ids.ShortID) error {
	return db.Put(key, id[:])
}
