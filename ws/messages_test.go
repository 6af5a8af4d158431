// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ws

import (
	"encoding/hex"
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/hypersdk-client/abi"
	"github.com/ava-labs/hypersdk-client/chain"
)

const testResultHex = "01" +
	"00000000" +
	"01" +
	"00000011" + "00000000024cafa413000000001613673f" +
	"00000000000000c5" +
	"0000000000000007" +
	"000000000000000e" +
	"0000000000000032" +
	"000000000000001a" +
	"00000000000072d8"

func newTestSchema(t *testing.T) *abi.Registry {
	schema, err := chain.NewResultSchema()
	require.NoError(t, err)
	return schema
}

func testTxID() ids.ID {
	return ids.ID{1, 2, 3, 4}
}

func TestParseTxResultMessage(t *testing.T) {
	require := require.New(t)
	schema := newTestSchema(t)

	txID := testTxID()
	body, err := hex.DecodeString(hex.EncodeToString(txID[:]) + "00" + testResultHex)
	require.NoError(err)

	msg, err := ParseTxMessage(schema, body)
	require.NoError(err)
	require.Equal(txID, msg.TxID)
	require.Empty(msg.Err)
	require.NotNil(msg.Result)
	require.True(msg.Result.Success)
	require.Equal(uint64(29400), msg.Result.Fee)
	require.Equal(uint64(197), msg.Result.Units.Bandwidth)

	marshaled, err := msg.Marshal()
	require.NoError(err)
	require.Equal(TxMode, marshaled[0])
	require.Equal(body, marshaled[1:])

	_, err = ParseTxMessage(schema, append(body, 0))
	require.ErrorIs(err, abi.ErrTrailingBytes)
}

func TestParseTxErrorMessage(t *testing.T) {
	require := require.New(t)
	schema := newTestSchema(t)

	txID := testTxID()
	body, err := hex.DecodeString(hex.EncodeToString(txID[:]) + "01" + "0004" + hex.EncodeToString([]byte("late")))
	require.NoError(err)

	msg, err := ParseTxMessage(schema, body)
	require.NoError(err)
	require.Equal(txID, msg.TxID)
	require.Equal("late", msg.Err)
	require.Nil(msg.Result)

	marshaled, err := (&TxMessage{TxID: txID, Err: "late"}).Marshal()
	require.NoError(err)
	require.Equal(body, marshaled[1:])

	_, err = ParseTxMessage(schema, append(body, 0))
	require.ErrorIs(err, abi.ErrTrailingBytes)
	_, err = ParseTxMessage(schema, body[:len(body)-1])
	require.ErrorIs(err, abi.ErrInsufficientBytes)
}

func TestParseTxMessageInvalid(t *testing.T) {
	schema := newTestSchema(t)
	txID := testTxID()

	tests := []struct {
		name        string
		body        []byte
		expectedErr error
	}{
		{
			name:        "short id",
			body:        txID[:31],
			expectedErr: abi.ErrInsufficientBytes,
		},
		{
			name:        "missing error flag",
			body:        txID[:],
			expectedErr: abi.ErrInsufficientBytes,
		},
		{
			name:        "invalid error flag",
			body:        append(txID[:], 2),
			expectedErr: errInvalidErrorTag,
		},
		{
			name:        "truncated result",
			body:        append(txID[:], 0, 1),
			expectedErr: abi.ErrInsufficientBytes,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTxMessage(schema, tt.body)
			require.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func TestNewTxRequest(t *testing.T) {
	require.Equal(t, []byte{TxMode, 7, 8}, NewTxRequest([]byte{7, 8}))
}
