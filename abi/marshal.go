// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package abi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const initialWriterSize = 256

var errTrailingJSON = errors.New("trailing content")

// Marshal encodes [value] as the type expression [typeExpr].
func (r *Registry) Marshal(typeExpr string, value any) ([]byte, error) {
	expr, err := r.Resolve(typeExpr)
	if err != nil {
		return nil, err
	}
	p := NewWriter(initialWriterSize)
	if err := Encode(p, expr, value); err != nil {
		return nil, err
	}
	return p.Bytes[:p.Offset], nil
}

// MarshalActionJSON encodes the JSON object [dataJSON] as the payload of
// [actionName]. Numbers are kept as json.Number so 64 and 256 bit values
// survive. Fields the action's struct doesn't declare are rejected.
func (r *Registry) MarshalActionJSON(actionName string, dataJSON []byte) ([]byte, error) {
	action, err := r.Action(actionName)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(dataJSON))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: %w after %s data", ErrInvalidValue, errTrailingJSON, actionName)
	}
	return r.Marshal(action.Name, data)
}

// Decode reads a value of type [typeExpr] from the start of [b] and reports
// how many bytes it consumed. Bytes past the value are left alone.
func (r *Registry) Decode(typeExpr string, b []byte) (any, int, error) {
	expr, err := r.Resolve(typeExpr)
	if err != nil {
		return nil, 0, err
	}
	p := NewReader(b)
	v, err := Decode(p, expr)
	if err != nil {
		return nil, 0, err
	}
	return v, p.Offset, nil
}

// Unmarshal decodes [b], which must hold exactly one value of type
// [typeExpr].
func (r *Registry) Unmarshal(typeExpr string, b []byte) (any, error) {
	v, n, err := r.Decode(typeExpr, b)
	if err != nil {
		return nil, err
	}
	if n != len(b) {
		return nil, fmt.Errorf("%w: %d of %d bytes left after %s", ErrTrailingBytes, len(b)-n, len(b), typeExpr)
	}
	return v, nil
}

// UnmarshalOutput decodes the result of executing [actionName].
func (r *Registry) UnmarshalOutput(actionName string, b []byte) (any, error) {
	action, err := r.Action(actionName)
	if err != nil {
		return nil, err
	}
	if action.Output == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoOutputType, actionName)
	}
	p := NewReader(b)
	v, err := Decode(p, action.Output)
	if err != nil {
		return nil, err
	}
	if p.Offset != len(b) {
		return nil, fmt.Errorf("%w: %d of %d bytes left after output of %s", ErrTrailingBytes, len(b)-p.Offset, len(b), actionName)
	}
	return v, nil
}
