// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
)

func TestAmountRoundTrip(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	key := []byte("amount")

	amount, err := GetAmount(db, key)
	require.NoError(err)
	require.True(amount.IsZero())

	expected := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	require.NoError(PutAmount(db, key, expected))
	amount, err = GetAmount(db, key)
	require.NoError(err)
	require.Equal(expected, amount)

	require.NoError(PutAmount(db, key, new(uint256.Int)))
	has, err := db.Has(key)
	require.NoError(err)
	require.False(has)
}

func TestGetAmountCorrupted(t *testing.T) {
	db := memdb.New()
	key := []byte("amount")
	require.NoError(t, db.Put(key, []byte{1, 2, 3}))

	_, err := GetAmount(db, key)
	require.ErrorIs(t, err, ErrCorrupted)
}

func TestScalars(t *testing.T) {
	require := require.New(t)

	db := memdb.New()

	n, err := GetUInt64(db, []byte("n"))
	require.NoError(err)
	require.Zero(n)
	require.NoError(database.PutUInt64(db, []byte("n"), 7))
	n, err = GetUInt64(db, []byte("n"))
	require.NoError(err)
	require.Equal(uint64(7), n)

	b, err := GetBool(db, []byte("b"))
	require.NoError(err)
	require.False(b)
	require.NoError(PutBool(db, []byte("b"), true))
	b, err = GetBool(db, []byte("b"))
	require.NoError(err)
	require.True(b)
	require.NoError(PutBool(db, []byte("b"), false))
	b, err = GetBool(db, []byte("b"))
	require.NoError(err)
	require.False(b)

	id, err := GetShortID(db, []byte("id"))
	require.NoError(err)
	require.Equal(ids.ShortEmpty, id)
	expected := ids.GenerateTestShortID()
	require.NoError(PutShortID(db, []byte("id"), expected))
	id, err = GetShortID(db, []byte("id"))
	require.NoError(err)
	require.Equal(expected, id)
}

func TestStateCommitAndAbort(t *testing.T) {
	require := require.New(t)

	base := memdb.New()
	s := New(base)

	require.NoError(PutAmount(s.Balances, []byte("a"), uint256.NewInt(1)))
	s.Abort()
	amount, err := GetAmount(s.Balances, []byte("a"))
	require.NoError(err)
	require.True(amount.IsZero())

	require.NoError(PutAmount(s.Balances, []byte("a"), uint256.NewInt(2)))
	require.NoError(s.Commit())

	// A fresh view over the same base database sees the committed write.
	amount, err = GetAmount(New(base).Balances, []byte("a"))
	require.NoError(err)
	require.Equal(uint64(2), amount.Uint64())
}

func TestTablesAreDisjoint(t *testing.T) {
	require := require.New(t)

	s := New(memdb.New())
	key := []byte("shared")
	require.NoError(PutAmount(s.Balances, key, uint256.NewInt(1)))

	for _, db := range []database.Database{s.Allowances, s.Ledger, s.Rate, s.Vault, s.Queue} {
		has, err := db.Has(key)
		require.NoError(err)
		require.False(has)
	}
}
