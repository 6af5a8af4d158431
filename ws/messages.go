// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ws

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/wrappers"

	"github.com/ava-labs/hypersdk-client/abi"
	"github.com/ava-labs/hypersdk-client/chain"
)

// Leading byte of every message in either direction.
const (
	BlockMode byte = 0x00
	TxMode    byte = 0x01
)

var (
	ErrEmptyMessage    = errors.New("empty message")
	ErrUnknownMode     = errors.New("unknown message mode")
	errInvalidErrorTag = errors.New("invalid error flag")
)

// TxMessage is the outcome of a registered transaction. Exactly one of Err
// and Result is set: Err when the chain refused the transaction, Result once
// it was executed.
type TxMessage struct {
	TxID   ids.ID        `json:"txId"`
	Err    string        `json:"error,omitempty"`
	Result *chain.Result `json:"result,omitempty"`
}

// NewTxRequest is the message that registers [signed] for a result.
func NewTxRequest(signed []byte) []byte {
	msg := make([]byte, 0, wrappers.ByteLen+len(signed))
	msg = append(msg, TxMode)
	return append(msg, signed...)
}

// ParseTxMessage decodes the body of a tx message, without its mode byte:
//
//	tx id (32 bytes) ‖ has error (uint8) ‖ (error string | result)
func ParseTxMessage(schema *abi.Registry, b []byte) (*TxMessage, error) {
	p := abi.NewReader(b)
	msg := &TxMessage{}
	copy(msg.TxID[:], p.UnpackFixedBytes(ids.IDLen))
	hasError := p.UnpackByte()
	if p.Errored() {
		return nil, fmt.Errorf("%w: %w", abi.ErrInsufficientBytes, p.Err)
	}

	switch hasError {
	case 0:
		result, err := chain.UnpackResult(schema, p)
		if err != nil {
			return nil, fmt.Errorf("tx %s: %w", msg.TxID, err)
		}
		msg.Result = result
	case 1:
		msg.Err = p.UnpackStr()
		if p.Errored() {
			return nil, fmt.Errorf("tx %s: %w: %w", msg.TxID, abi.ErrInsufficientBytes, p.Err)
		}
	default:
		return nil, fmt.Errorf("tx %s: %w: %d", msg.TxID, errInvalidErrorTag, hasError)
	}
	if p.Offset != len(b) {
		return nil, fmt.Errorf("tx %s: %w: %d of %d bytes left", msg.TxID, abi.ErrTrailingBytes, len(b)-p.Offset, len(b))
	}
	return msg, nil
}

// Marshal encodes [m] with its mode byte, the way the chain sends it.
func (m *TxMessage) Marshal() ([]byte, error) {
	p := abi.NewWriter(wrappers.ByteLen + ids.IDLen + wrappers.ByteLen + 128)
	p.PackByte(TxMode)
	p.PackFixedBytes(m.TxID[:])
	if m.Result == nil {
		p.PackBool(true)
		p.PackStr(m.Err)
	} else {
		p.PackBool(false)
		result, err := m.Result.Marshal()
		if err != nil {
			return nil, err
		}
		p.PackFixedBytes(result)
	}
	if p.Errored() {
		return nil, p.Err
	}
	return p.Bytes[:p.Offset], nil
}
