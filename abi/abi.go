// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package abi

import (
	"encoding/json"
	"fmt"
)

// VMABI is the JSON document describing every action a VM accepts and the
// struct types their payloads are made of.
type VMABI struct {
	Actions []Action `json:"actions"`
	Types   []Type   `json:"types"`
}

// Action binds a one byte type id to the struct type named [Name]. The
// action's payload is encoded as the struct of the same name.
type Action struct {
	ID     uint8  `json:"id"`
	Name   string `json:"action"`
	Output string `json:"output,omitempty"`
}

// Type is a named struct type.
type Type struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Field is a single struct member. [Type] is a type expression: a primitive
// name, a struct name, or "[]" followed by another type expression.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Parse decodes an ABI document and resolves it into a Registry.
func Parse(b []byte) (*Registry, error) {
	var vmABI VMABI
	if err := json.Unmarshal(b, &vmABI); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidABI, err)
	}
	return New(vmABI)
}
