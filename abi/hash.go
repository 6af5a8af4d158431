// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package abi

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/ava-labs/avalanchego/utils/hashing"
)

// bootstrapAction is both the action and the struct type that describe an
// ABI document in the bootstrap schema.
const bootstrapAction = "ABI"

var (
	//go:embed abi.abi.json
	bootstrapABI []byte

	bootstrapRegistry = sync.OnceValues(func() (*Registry, error) {
		return Parse(bootstrapABI)
	})
)

// Hash fingerprints the registry: the sha256 of its ABI document encoded
// through the bootstrap schema. The bootstrap schema fixes the field order,
// so the hash doesn't depend on how the source JSON was laid out.
func (r *Registry) Hash() ([hashing.HashLen]byte, error) {
	b, err := r.MarshalBootstrap()
	if err != nil {
		return [hashing.HashLen]byte{}, err
	}
	return hashing.ComputeHash256Array(b), nil
}

// MarshalBootstrap encodes the registry's ABI document with the bootstrap
// schema.
func (r *Registry) MarshalBootstrap() ([]byte, error) {
	bootstrap, err := bootstrapRegistry()
	if err != nil {
		return nil, fmt.Errorf("couldn't load bootstrap ABI: %w", err)
	}
	return bootstrap.Marshal(bootstrapAction, abiValue(r.abi))
}

func abiValue(vmABI VMABI) map[string]any {
	actions := make([]any, len(vmABI.Actions))
	for i, action := range vmABI.Actions {
		actions[i] = map[string]any{
			"id":     action.ID,
			"action": action.Name,
			"output": action.Output,
		}
	}
	types := make([]any, len(vmABI.Types))
	for i, typ := range vmABI.Types {
		fields := make([]any, len(typ.Fields))
		for j, field := range typ.Fields {
			fields[j] = map[string]any{
				"name": field.Name,
				"type": field.Type,
			}
		}
		types[i] = map[string]any{
			"name":   typ.Name,
			"fields": fields,
		}
	}
	return map[string]any{
		"actions": actions,
		"types":   types,
	}
}
