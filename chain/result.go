// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/utils/wrappers"

	"github.com/ava-labs/hypersdk-client/abi"
)

const feeDimensionsType = "FeeDimensions"

var errInvalidFeeSchema = errors.New("fee dimensions schema doesn't match result layout")

// FeeDimensions is the resource usage charged for a transaction.
type FeeDimensions struct {
	Bandwidth       uint64 `json:"bandwidth"`
	Compute         uint64 `json:"compute"`
	StorageRead     uint64 `json:"storageRead"`
	StorageAllocate uint64 `json:"storageAllocate"`
	StorageWrite    uint64 `json:"storageWrite"`
}

// Result is the outcome of executing a transaction. A failed execution is
// still a valid result: Success is false and Error says why.
type Result struct {
	Success bool          `json:"success"`
	Error   string        `json:"error"`
	Outputs [][]byte      `json:"outputs"`
	Units   FeeDimensions `json:"feeDimensions"`
	Fee     uint64        `json:"fee"`
}

// NewResultSchema returns the fixed schema of the protocol types embedded in
// results.
func NewResultSchema() (*abi.Registry, error) {
	return abi.New(abi.VMABI{
		Types: []abi.Type{{
			Name: feeDimensionsType,
			Fields: []abi.Field{
				{Name: "bandwidth", Type: "uint64"},
				{Name: "compute", Type: "uint64"},
				{Name: "storageRead", Type: "uint64"},
				{Name: "storageAllocate", Type: "uint64"},
				{Name: "storageWrite", Type: "uint64"},
			},
		}},
	})
}

// UnmarshalResult decodes [b], which must hold exactly one result.
func UnmarshalResult(schema *abi.Registry, b []byte) (*Result, error) {
	p := abi.NewReader(b)
	result, err := UnpackResult(schema, p)
	if err != nil {
		return nil, err
	}
	if p.Offset != len(b) {
		return nil, fmt.Errorf("%w: %d of %d bytes left after result", abi.ErrTrailingBytes, len(b)-p.Offset, len(b))
	}
	return result, nil
}

// UnpackResult reads a result from [p], leaving any bytes after it.
func UnpackResult(schema *abi.Registry, p *wrappers.Packer) (*Result, error) {
	feeExpr, err := schema.Resolve(feeDimensionsType)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Success: p.UnpackBool(),
		Error:   string(p.UnpackBytes()),
	}
	numOutputs := p.UnpackByte()
	if p.Errored() {
		return nil, fmt.Errorf("%w: %w", abi.ErrInsufficientBytes, p.Err)
	}
	result.Outputs = make([][]byte, numOutputs)
	for i := range result.Outputs {
		result.Outputs[i] = p.UnpackBytes()
	}
	if p.Errored() {
		return nil, fmt.Errorf("%w: %w", abi.ErrInsufficientBytes, p.Err)
	}

	units, err := abi.Decode(p, feeExpr)
	if err != nil {
		return nil, err
	}
	result.Units, err = feeDimensions(units)
	if err != nil {
		return nil, err
	}
	result.Fee = p.UnpackLong()
	if p.Errored() {
		return nil, fmt.Errorf("%w: %w", abi.ErrInsufficientBytes, p.Err)
	}
	return result, nil
}

func feeDimensions(v any) (FeeDimensions, error) {
	dims, ok := v.(map[string]any)
	if !ok {
		return FeeDimensions{}, fmt.Errorf("%w: %s is %T", errInvalidFeeSchema, feeDimensionsType, v)
	}
	var (
		fd     FeeDimensions
		fields = []struct {
			name string
			dst  *uint64
		}{
			{"bandwidth", &fd.Bandwidth},
			{"compute", &fd.Compute},
			{"storageRead", &fd.StorageRead},
			{"storageAllocate", &fd.StorageAllocate},
			{"storageWrite", &fd.StorageWrite},
		}
	)
	for _, field := range fields {
		n, ok := dims[field.name].(uint64)
		if !ok {
			return FeeDimensions{}, fmt.Errorf("%w: %s.%s is %T", errInvalidFeeSchema, feeDimensionsType, field.name, dims[field.name])
		}
		*field.dst = n
	}
	return fd, nil
}

// Marshal encodes [r] in the layout UnmarshalResult reads.
func (r *Result) Marshal() ([]byte, error) {
	if len(r.Outputs) > MaxActions {
		return nil, fmt.Errorf("%w: %d outputs", ErrTooManyActions, len(r.Outputs))
	}
	size := wrappers.BoolLen + wrappers.IntLen + len(r.Error) + wrappers.ByteLen + 6*wrappers.LongLen
	for _, output := range r.Outputs {
		size += wrappers.IntLen + len(output)
	}
	p := abi.NewWriter(size)
	p.PackBool(r.Success)
	p.PackBytes([]byte(r.Error))
	p.PackByte(byte(len(r.Outputs)))
	for _, output := range r.Outputs {
		p.PackBytes(output)
	}
	p.PackLong(r.Units.Bandwidth)
	p.PackLong(r.Units.Compute)
	p.PackLong(r.Units.StorageRead)
	p.PackLong(r.Units.StorageAllocate)
	p.PackLong(r.Units.StorageWrite)
	p.PackLong(r.Fee)
	if p.Errored() {
		return nil, p.Err
	}
	return p.Bytes[:p.Offset], nil
}
