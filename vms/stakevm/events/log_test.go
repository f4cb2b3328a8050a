// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"

	"github.com/luxfi/stakevm/utils/timer/mockable"
)

func TestLogEmitAndRange(t *testing.T) {
	require := require.New(t)

	clock := &mockable.Clock{}
	clock.Set(time.Unix(100, 0))
	l := NewLog(memdb.New(), clock)

	user := ids.GenerateTestShortID()
	require.NoError(l.Emit(NewEvent(
		TypeTransfer,
		Address(AttributeKeyFrom, ids.ShortEmpty),
		Address(AttributeKeyTo, user),
		Amount(AttributeKeyAmount, uint256.NewInt(100)),
	)))
	clock.Advance(time.Second)
	require.NoError(l.Emit(NewEvent(TypePaused)))

	n, err := l.Len()
	require.NoError(err)
	require.Equal(uint64(2), n)

	evs, err := l.Range(0, 10)
	require.NoError(err)
	require.Len(evs, 2)

	mint := evs[0]
	require.Equal(uint64(0), mint.Seq)
	require.Equal(TypeTransfer, mint.Type)
	require.Equal(uint64(100), mint.Timestamp)
	from, ok := mint.Get(AttributeKeyFrom)
	require.True(ok)
	require.Empty(from)
	to, ok := mint.Get(AttributeKeyTo)
	require.True(ok)
	require.Equal(user.String(), to)
	amount, ok := mint.Get(AttributeKeyAmount)
	require.True(ok)
	require.Equal("100", amount)
	_, ok = mint.Get(AttributeKeyOwner)
	require.False(ok)

	require.Equal(uint64(1), evs[1].Seq)
	require.Equal(TypePaused, evs[1].Type)
	require.Equal(uint64(101), evs[1].Timestamp)
}

func TestLogRangeBounds(t *testing.T) {
	require := require.New(t)

	l := NewLog(memdb.New(), &mockable.Clock{})
	for i := 0; i < 5; i++ {
		require.NoError(l.Emit(NewEvent(TypeDeposit)))
	}

	evs, err := l.Range(3, 10)
	require.NoError(err)
	require.Len(evs, 2)
	require.Equal(uint64(3), evs[0].Seq)

	evs, err = l.Range(1, 2)
	require.NoError(err)
	require.Len(evs, 2)
	require.Equal(uint64(2), evs[1].Seq)

	evs, err = l.Range(5, 10)
	require.NoError(err)
	require.Empty(evs)
}
