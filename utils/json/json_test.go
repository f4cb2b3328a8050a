// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package json

import (
	"encoding/json"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestAmountJSON(t *testing.T) {
	require := require.New(t)

	big := new(uint256.Int).Lsh(uint256.NewInt(1), 255)
	b, err := json.Marshal(NewAmount(big))
	require.NoError(err)
	require.Equal(`"`+big.Dec()+`"`, string(b))

	var a Amount
	require.NoError(json.Unmarshal(b, &a))
	require.Equal(big, a.Uint256())

	require.NoError(json.Unmarshal([]byte(`"0"`), &a))
	require.True(a.IsZero())

	require.ErrorIs(json.Unmarshal([]byte(`"-1"`), &a), errNegativeAmount)
	require.Error(json.Unmarshal([]byte(`"1.5"`), &a))

	zero := NewAmount(nil)
	require.True(zero.IsZero())
}

func TestAmountNull(t *testing.T) {
	require := require.New(t)

	a := NewAmount(uint256.NewInt(7))
	require.NoError(json.Unmarshal([]byte(Null), &a))
	require.Equal(uint64(7), a.Uint64())
}

func TestUint64JSON(t *testing.T) {
	require := require.New(t)

	type args struct {
		ID Uint64 `json:"id"`
		N  Uint32 `json:"n"`
	}
	b, err := json.Marshal(args{ID: 18446744073709551615, N: 4})
	require.NoError(err)
	require.JSONEq(`{"id":"18446744073709551615","n":"4"}`, string(b))

	var got args
	require.NoError(json.Unmarshal([]byte(`{"id":"12","n":"3"}`), &got))
	require.Equal(args{ID: 12, N: 3}, got)

	require.Error(json.Unmarshal([]byte(`{"n":"4294967296"}`), &got))
}
