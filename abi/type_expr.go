// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package abi

import (
	"fmt"
	"strings"
)

// Kind tags the variant held by a TypeExpr.
type Kind uint8

const (
	KindUint8 Kind = iota
	KindUint16
	KindUint32
	KindUint64
	KindUint256
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindString
	KindBytes
	KindAddress
	KindArray
	KindStruct
)

const arrayPrefix = "[]"

var primitives = map[string]Kind{
	"uint8":   KindUint8,
	"uint16":  KindUint16,
	"uint32":  KindUint32,
	"uint64":  KindUint64,
	"uint256": KindUint256,
	"int8":    KindInt8,
	"int16":   KindInt16,
	"int32":   KindInt32,
	"int64":   KindInt64,
	"string":  KindString,
	"Bytes":   KindBytes,
	"[]uint8": KindBytes,
	"Address": KindAddress,
}

func (k Kind) String() string {
	switch k {
	case KindUint8:
		return "uint8"
	case KindUint16:
		return "uint16"
	case KindUint32:
		return "uint32"
	case KindUint64:
		return "uint64"
	case KindUint256:
		return "uint256"
	case KindInt8:
		return "int8"
	case KindInt16:
		return "int16"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindString:
		return "string"
	case KindBytes:
		return "Bytes"
	case KindAddress:
		return "Address"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	default:
		return "unknown"
	}
}

// TypeExpr is a parsed type expression. Exactly one of the variants is set:
// a primitive (Kind only), an array (Elem), or a struct reference (Struct).
//
// Struct references are bound to their definition when the Registry is
// built, so codec calls never parse type strings.
type TypeExpr struct {
	Kind   Kind
	Elem   *TypeExpr
	Struct *StructDef
	name   string
}

// StructDef is a resolved struct type.
type StructDef struct {
	Name   string
	Fields []FieldDef
}

// FieldDef is a resolved struct field.
type FieldDef struct {
	Name string
	Type *TypeExpr
}

func (t *TypeExpr) String() string {
	switch t.Kind {
	case KindArray:
		return arrayPrefix + t.Elem.String()
	case KindStruct:
		if t.Struct != nil {
			return t.Struct.Name
		}
		return t.name
	default:
		return t.Kind.String()
	}
}

// parseTypeExpr parses [s] without resolving struct names. Struct variants
// are left with a nil [Struct] and are bound by the Registry.
func parseTypeExpr(s string) (*TypeExpr, error) {
	if kind, ok := primitives[s]; ok {
		return &TypeExpr{Kind: kind}, nil
	}
	if elem, ok := strings.CutPrefix(s, arrayPrefix); ok {
		inner, err := parseTypeExpr(elem)
		if err != nil {
			return nil, err
		}
		return &TypeExpr{Kind: KindArray, Elem: inner}, nil
	}
	if !isIdentifier(s) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTypeExpr, s)
	}
	return &TypeExpr{Kind: KindStruct, name: s}, nil
}

func isIdentifier(s string) bool {
	if len(s) == 0 {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
