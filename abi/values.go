// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package abi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/holiman/uint256"

	"github.com/ava-labs/hypersdk-client/address"
)

var (
	ErrInvalidValue     = errors.New("invalid value")
	ErrValueOutOfRange  = errors.New("value out of range")
	ErrMissingField     = errors.New("missing field")
	ErrUnexpectedField  = errors.New("unexpected field")
	errNotIntegral      = errors.New("not an integer")
	errNegativeUnsigned = errors.New("negative value for unsigned type")
)

// toUint converts [v] to an unsigned integer that fits in [bits] bits.
// Negative inputs are rejected rather than wrapped.
func toUint(v any, bits int) (uint64, error) {
	var n uint64
	switch v := v.(type) {
	case uint8:
		n = uint64(v)
	case uint16:
		n = uint64(v)
	case uint32:
		n = uint64(v)
	case uint64:
		n = v
	case uint:
		n = uint64(v)
	case int8, int16, int32, int64, int:
		i := signedValue(v)
		if i < 0 {
			return 0, fmt.Errorf("%w: %w: %d", ErrValueOutOfRange, errNegativeUnsigned, i)
		}
		n = uint64(i)
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%w: %w: %v", ErrInvalidValue, errNotIntegral, v)
		}
		if v < 0 {
			return 0, fmt.Errorf("%w: %w: %v", ErrValueOutOfRange, errNegativeUnsigned, v)
		}
		if v >= math.MaxUint64 {
			return 0, fmt.Errorf("%w: %v", ErrValueOutOfRange, v)
		}
		n = uint64(v)
	case json.Number:
		return toUint(string(v), bits)
	case string:
		s := strings.TrimSpace(v)
		if strings.HasPrefix(s, "-") {
			return 0, fmt.Errorf("%w: %w: %s", ErrValueOutOfRange, errNegativeUnsigned, s)
		}
		parsed, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, numError(s, err)
		}
		n = parsed
	case *uint256.Int:
		if v == nil || !v.IsUint64() {
			return 0, fmt.Errorf("%w: %v", ErrValueOutOfRange, v)
		}
		n = v.Uint64()
	default:
		return 0, fmt.Errorf("%w: %T is not an unsigned integer", ErrInvalidValue, v)
	}
	if bits < 64 && n >= 1<<bits {
		return 0, fmt.Errorf("%w: %d doesn't fit in uint%d", ErrValueOutOfRange, n, bits)
	}
	return n, nil
}

// toInt converts [v] to a signed integer that fits in [bits] bits.
func toInt(v any, bits int) (int64, error) {
	var n int64
	switch v := v.(type) {
	case int8, int16, int32, int64, int:
		n = signedValue(v)
	case uint8, uint16, uint32, uint64, uint:
		u, err := toUint(v, 64)
		if err != nil {
			return 0, err
		}
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d", ErrValueOutOfRange, u)
		}
		n = int64(u)
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%w: %w: %v", ErrInvalidValue, errNotIntegral, v)
		}
		if v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, fmt.Errorf("%w: %v", ErrValueOutOfRange, v)
		}
		n = int64(v)
	case json.Number:
		return toInt(string(v), bits)
	case string:
		s := strings.TrimSpace(v)
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, numError(s, err)
		}
		n = parsed
	default:
		return 0, fmt.Errorf("%w: %T is not a signed integer", ErrInvalidValue, v)
	}
	if bits < 64 {
		lim := int64(1) << (bits - 1)
		if n < -lim || n >= lim {
			return 0, fmt.Errorf("%w: %d doesn't fit in int%d", ErrValueOutOfRange, n, bits)
		}
	}
	return n, nil
}

func signedValue(v any) int64 {
	switch v := v.(type) {
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

func numError(s string, err error) error {
	if errors.Is(err, strconv.ErrRange) {
		return fmt.Errorf("%w: %s", ErrValueOutOfRange, s)
	}
	return fmt.Errorf("%w: %q is not a decimal integer", ErrInvalidValue, s)
}

// toUint256 converts [v] to a 256 bit unsigned integer. Strings may be
// decimal or 0x prefixed hex.
func toUint256(v any) (*uint256.Int, error) {
	switch v := v.(type) {
	case *uint256.Int:
		if v == nil {
			return nil, fmt.Errorf("%w: nil uint256", ErrInvalidValue)
		}
		return v.Clone(), nil
	case uint256.Int:
		return v.Clone(), nil
	case ids.ID:
		return new(uint256.Int).SetBytes32(v[:]), nil
	case [32]byte:
		return new(uint256.Int).SetBytes32(v[:]), nil
	case *big.Int:
		if v == nil {
			return nil, fmt.Errorf("%w: nil big.Int", ErrInvalidValue)
		}
		return fromBig(v)
	case json.Number:
		return toUint256(string(v))
	case string:
		s := strings.TrimSpace(v)
		b, ok := new(big.Int).SetString(s, 0)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, s)
		}
		return fromBig(b)
	default:
		n, err := toUint(v, 64)
		if err != nil {
			return nil, err
		}
		return uint256.NewInt(n), nil
	}
}

func fromBig(b *big.Int) (*uint256.Int, error) {
	if b.Sign() < 0 {
		return nil, fmt.Errorf("%w: %w: %s", ErrValueOutOfRange, errNegativeUnsigned, b)
	}
	n, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("%w: %s doesn't fit in uint256", ErrValueOutOfRange, b)
	}
	return n, nil
}

// toBytes accepts raw bytes, their base64 encoding, or an array of byte
// values.
func toBytes(v any) ([]byte, error) {
	switch v := v.(type) {
	case []byte:
		return v, nil
	case []any:
		b := make([]byte, len(v))
		for i, elem := range v {
			n, err := toUint(elem, 8)
			if err != nil {
				return nil, fmt.Errorf("byte %d: %w", i, err)
			}
			b[i] = byte(n)
		}
		return b, nil
	case string:
		b, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("%w: bytes must be base64 encoded: %w", ErrInvalidValue, err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: %T is not bytes", ErrInvalidValue, v)
	}
}

func toString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %T is not a string", ErrInvalidValue, v)
	}
	if len(s) > math.MaxUint16 {
		return "", fmt.Errorf("%w: string of %d bytes exceeds %d", ErrValueOutOfRange, len(s), math.MaxUint16)
	}
	return s, nil
}

func toAddress(v any) (address.Address, error) {
	switch v := v.(type) {
	case address.Address:
		return v, nil
	case *address.Address:
		if v == nil {
			return address.Empty, fmt.Errorf("%w: nil address", ErrInvalidValue)
		}
		return *v, nil
	case [address.Len]byte:
		return address.Address(v), nil
	case []byte:
		return address.FromBytes(v)
	case string:
		return address.Parse(v)
	default:
		return address.Empty, fmt.Errorf("%w: %T is not an address", ErrInvalidValue, v)
	}
}
