// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/holiman/uint256"

	"github.com/ava-labs/hypersdk-client/abi"
)

const (
	// TimestampGranularity is the unit, in milliseconds, tx timestamps are
	// rounded down to.
	TimestampGranularity = 1000

	// MaxActions is the most actions a single transaction can carry.
	MaxActions = math.MaxUint8

	// digest header: timestamp, chain id, max fee, action count
	baseSize = wrappers.LongLen + 32 + wrappers.LongLen + wrappers.ByteLen
)

var (
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrTooManyActions   = errors.New("too many actions")

	uint64Type  = &abi.TypeExpr{Kind: abi.KindUint64}
	uint256Type = &abi.TypeExpr{Kind: abi.KindUint256}
)

// Payload is an unsigned transaction. Numeric fields are decimal strings so
// the payload round trips through JSON without losing precision.
type Payload struct {
	// Timestamp is the expiry in unix milliseconds.
	Timestamp string   `json:"timestamp"`
	ChainID   string   `json:"chainId"`
	MaxFee    string   `json:"maxFee"`
	Actions   []Action `json:"actions"`
}

// Action is a single action invocation. [Data] must hold every field of the
// action's struct type.
type Action struct {
	Name string         `json:"actionName"`
	Data map[string]any `json:"data"`
}

// NormalizeTimestamp parses [timestamp] and rounds it down to whole seconds.
func NormalizeTimestamp(timestamp string) (uint64, error) {
	ts, err := strconv.ParseUint(timestamp, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidTimestamp, timestamp, err)
	}
	return ts - ts%TimestampGranularity, nil
}

// EncodeTransaction returns the signable digest of [payload]:
//
//	timestamp (uint64) ‖ chain id (uint256) ‖ max fee (uint64) ‖
//	action count (uint8) ‖ (action id (uint8) ‖ action struct)*
//
// The timestamp is rounded down to whole seconds first.
func EncodeTransaction(r *abi.Registry, payload Payload) ([]byte, error) {
	ts, err := NormalizeTimestamp(payload.Timestamp)
	if err != nil {
		return nil, err
	}
	if len(payload.Actions) > MaxActions {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyActions, len(payload.Actions), MaxActions)
	}

	p := abi.NewWriter(baseSize + len(payload.Actions)*64)
	p.PackLong(ts)
	if err := abi.Encode(p, uint256Type, chainIDValue(payload.ChainID)); err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	if err := abi.Encode(p, uint64Type, payload.MaxFee); err != nil {
		return nil, fmt.Errorf("max fee: %w", err)
	}
	p.PackByte(byte(len(payload.Actions)))
	for i, action := range payload.Actions {
		def, err := r.Action(action.Name)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		p.PackByte(def.ID)
		if err := abi.Encode(p, def.Input, action.Data); err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
	}
	if p.Errored() {
		return nil, p.Err
	}
	return p.Bytes[:p.Offset], nil
}

// SignTransaction encodes [payload] and appends [signer]'s authorization:
//
//	digest ‖ auth type id (uint8) ‖ public key ‖ signature
func SignTransaction(r *abi.Registry, payload Payload, signer Signer) ([]byte, error) {
	digest, err := EncodeTransaction(r, payload)
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(digest)
	if err != nil {
		return nil, fmt.Errorf("couldn't sign transaction: %w", err)
	}
	publicKey := signer.PublicKey()

	signed := make([]byte, 0, len(digest)+wrappers.ByteLen+len(publicKey)+len(sig))
	signed = append(signed, digest...)
	signed = append(signed, signer.AuthTypeID())
	signed = append(signed, publicKey...)
	return append(signed, sig...), nil
}

// TxID is the id the chain assigns a signed transaction. It is also the
// correlation id of the transaction's websocket result.
func TxID(signed []byte) ids.ID {
	return hashing.ComputeHash256Array(signed)
}

// chainIDValue accepts either a CB58 chain id or a numeric string.
func chainIDValue(chainID string) any {
	if id, err := ids.FromString(chainID); err == nil {
		return id
	}
	return chainID
}

// ChainIDToUint256 interprets the 32 bytes of [chainID] as a big endian
// integer, the form chain ids take inside a transaction.
func ChainIDToUint256(chainID ids.ID) *uint256.Int {
	return new(uint256.Int).SetBytes32(chainID[:])
}
