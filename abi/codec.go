// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package abi

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"

	"github.com/ava-labs/avalanchego/utils/units"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/holiman/uint256"

	"github.com/ava-labs/hypersdk-client/address"
)

const (
	// MaxSize bounds the encoding of a single value.
	MaxSize = 2 * units.MiB

	uint256Len = 32

	// maxZeroSizeElems bounds arrays whose element type encodes to zero
	// bytes, since their count can't be checked against the input length.
	maxZeroSizeElems = 1 << 16
)

var (
	ErrTrailingBytes     = errors.New("trailing bytes after decoding")
	ErrInsufficientBytes = errors.New("insufficient bytes to decode")
)

// NewWriter returns a packer sized for encoding.
func NewWriter(initial int) *wrappers.Packer {
	return &wrappers.Packer{
		Bytes:   make([]byte, 0, initial),
		MaxSize: MaxSize,
	}
}

// NewReader returns a packer positioned at the start of [b].
func NewReader(b []byte) *wrappers.Packer {
	return &wrappers.Packer{Bytes: b}
}

// Encode appends the encoding of [value] as [expr] to [p].
func Encode(p *wrappers.Packer, expr *TypeExpr, value any) error {
	if err := encode(p, expr, value); err != nil {
		return err
	}
	if p.Errored() {
		return fmt.Errorf("%w: %w", ErrValueOutOfRange, p.Err)
	}
	return nil
}

func encode(p *wrappers.Packer, expr *TypeExpr, value any) error {
	if value == nil {
		return fmt.Errorf("%w: nil %s", ErrInvalidValue, expr)
	}
	switch expr.Kind {
	case KindUint8, KindUint16, KindUint32, KindUint64:
		n, err := toUint(value, fixedSize(expr.Kind)*8)
		if err != nil {
			return err
		}
		packUint(p, expr.Kind, n)
	case KindInt8, KindInt16, KindInt32, KindInt64:
		n, err := toInt(value, fixedSize(expr.Kind)*8)
		if err != nil {
			return err
		}
		// two's complement of the signed value
		packUint(p, expr.Kind-KindInt8+KindUint8, uint64(n))
	case KindUint256:
		n, err := toUint256(value)
		if err != nil {
			return err
		}
		b := n.Bytes32()
		p.PackFixedBytes(b[:])
	case KindString:
		s, err := toString(value)
		if err != nil {
			return err
		}
		p.PackStr(s)
	case KindBytes:
		b, err := toBytes(value)
		if err != nil {
			return err
		}
		if uint64(len(b)) > math.MaxUint32 {
			return fmt.Errorf("%w: %d bytes", ErrValueOutOfRange, len(b))
		}
		p.PackBytes(b)
	case KindAddress:
		addr, err := toAddress(value)
		if err != nil {
			return err
		}
		p.PackFixedBytes(addr[:])
	case KindArray:
		return encodeArray(p, expr, value)
	case KindStruct:
		return encodeStruct(p, expr.Struct, value)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidTypeExpr, expr)
	}
	return nil
}

func packUint(p *wrappers.Packer, kind Kind, n uint64) {
	switch kind {
	case KindUint8:
		p.PackByte(byte(n))
	case KindUint16:
		p.PackShort(uint16(n))
	case KindUint32:
		p.PackInt(uint32(n))
	case KindUint64:
		p.PackLong(n)
	}
}

func encodeArray(p *wrappers.Packer, expr *TypeExpr, value any) error {
	elems, ok := value.([]any)
	if !ok {
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return fmt.Errorf("%w: %T is not an array for %s", ErrInvalidValue, value, expr)
		}
		elems = make([]any, rv.Len())
		for i := range elems {
			elems[i] = rv.Index(i).Interface()
		}
	}
	if uint64(len(elems)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d elements", ErrValueOutOfRange, len(elems))
	}
	p.PackInt(uint32(len(elems)))
	for i, elem := range elems {
		if err := encode(p, expr.Elem, elem); err != nil {
			return fmt.Errorf("%s[%d]: %w", expr, i, err)
		}
	}
	return nil
}

func encodeStruct(p *wrappers.Packer, def *StructDef, value any) error {
	fields, ok := value.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: %T is not an object for struct %s", ErrInvalidValue, value, def.Name)
	}
	for _, field := range def.Fields {
		v, ok := fields[field.Name]
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrMissingField, def.Name, field.Name)
		}
		if err := encode(p, field.Type, v); err != nil {
			return fmt.Errorf("%s.%s: %w", def.Name, field.Name, err)
		}
	}
	if len(fields) > len(def.Fields) {
		for name := range fields {
			if !slices.ContainsFunc(def.Fields, func(f FieldDef) bool { return f.Name == name }) {
				return fmt.Errorf("%w: %s.%s", ErrUnexpectedField, def.Name, name)
			}
		}
	}
	return nil
}

// Decode reads a value of type [expr] from [p].
//
// Decoded values are canonical: unsigned and signed integers as the Go
// integer of the same width, uint256 as *uint256.Int, Bytes as []byte,
// Address as its base64 string, structs as map[string]any and arrays as
// []any.
func Decode(p *wrappers.Packer, expr *TypeExpr) (any, error) {
	v, err := decode(p, expr)
	if err != nil {
		return nil, err
	}
	if p.Errored() {
		return nil, fmt.Errorf("%w: %s: %w", ErrInsufficientBytes, expr, p.Err)
	}
	return v, nil
}

func decode(p *wrappers.Packer, expr *TypeExpr) (any, error) {
	switch expr.Kind {
	case KindUint8:
		return p.UnpackByte(), nil
	case KindUint16:
		return p.UnpackShort(), nil
	case KindUint32:
		return p.UnpackInt(), nil
	case KindUint64:
		return p.UnpackLong(), nil
	case KindInt8:
		return int8(p.UnpackByte()), nil
	case KindInt16:
		return int16(p.UnpackShort()), nil
	case KindInt32:
		return int32(p.UnpackInt()), nil
	case KindInt64:
		return int64(p.UnpackLong()), nil
	case KindUint256:
		b := p.UnpackFixedBytes(uint256Len)
		if p.Errored() {
			return nil, nil
		}
		return new(uint256.Int).SetBytes32(b), nil
	case KindString:
		return p.UnpackStr(), nil
	case KindBytes:
		return slices.Clone(unpackBytes(p)), nil
	case KindAddress:
		b := p.UnpackFixedBytes(address.Len)
		if p.Errored() {
			return nil, nil
		}
		return base64.StdEncoding.EncodeToString(b), nil
	case KindArray:
		return decodeArray(p, expr)
	case KindStruct:
		return decodeStruct(p, expr.Struct)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidTypeExpr, expr)
	}
}

func unpackBytes(p *wrappers.Packer) []byte {
	size := p.UnpackInt()
	if p.Errored() {
		return nil
	}
	b := p.UnpackFixedBytes(int(size))
	if b == nil {
		// keep empty blobs distinguishable from absent ones
		return []byte{}
	}
	return b
}

func decodeArray(p *wrappers.Packer, expr *TypeExpr) (any, error) {
	count := p.UnpackInt()
	if p.Errored() {
		return nil, nil
	}
	remaining := len(p.Bytes) - p.Offset
	if elemSize := minSize(expr.Elem); elemSize > 0 {
		if needed := uint64(count) * uint64(elemSize); needed > uint64(remaining) {
			return nil, fmt.Errorf("%w: %d elements of %s need at least %d bytes, have %d",
				ErrInsufficientBytes, count, expr.Elem, needed, remaining)
		}
	} else if count > maxZeroSizeElems {
		return nil, fmt.Errorf("%w: %d zero size elements", ErrValueOutOfRange, count)
	}

	elems := make([]any, 0, count)
	for i := uint32(0); i < count; i++ {
		elem, err := decode(p, expr.Elem)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", expr, i, err)
		}
		if p.Errored() {
			return nil, nil
		}
		elems = append(elems, elem)
	}
	return elems, nil
}

func decodeStruct(p *wrappers.Packer, def *StructDef) (any, error) {
	fields := make(map[string]any, len(def.Fields))
	for _, field := range def.Fields {
		v, err := decode(p, field.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", def.Name, field.Name, err)
		}
		if p.Errored() {
			return nil, nil
		}
		fields[field.Name] = v
	}
	return fields, nil
}

// fixedSize is the encoded width of a fixed size primitive, or 0.
func fixedSize(kind Kind) int {
	switch kind {
	case KindUint8, KindInt8:
		return wrappers.ByteLen
	case KindUint16, KindInt16:
		return wrappers.ShortLen
	case KindUint32, KindInt32:
		return wrappers.IntLen
	case KindUint64, KindInt64:
		return wrappers.LongLen
	case KindUint256:
		return uint256Len
	case KindAddress:
		return address.Len
	default:
		return 0
	}
}

// minSize is the fewest bytes any value of [expr] encodes to.
func minSize(expr *TypeExpr) int {
	switch expr.Kind {
	case KindString:
		return wrappers.ShortLen
	case KindBytes, KindArray:
		return wrappers.IntLen
	case KindStruct:
		size := 0
		for _, field := range expr.Struct.Fields {
			size += minSize(field.Type)
		}
		return size
	default:
		return fixedSize(expr.Kind)
	}
}
