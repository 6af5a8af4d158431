// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package abi

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrInvalidABI        = errors.New("invalid ABI")
	ErrInvalidTypeExpr   = errors.New("invalid type expression")
	ErrUnknownType       = errors.New("unknown type")
	ErrUnknownAction     = errors.New("unknown action")
	ErrDuplicateType     = errors.New("duplicate type")
	ErrDuplicateAction   = errors.New("duplicate action")
	ErrDuplicateActionID = errors.New("duplicate action id")
	ErrDuplicateField    = errors.New("duplicate field")
	ErrCyclicType        = errors.New("cyclic type reference")
	ErrNoOutputType      = errors.New("action has no output type")
	errEmptyName         = errors.New("empty name")
)

// ActionDef is a resolved action.
type ActionDef struct {
	ID     uint8
	Name   string
	Struct *StructDef
	// Input is the struct reference the action's payload is encoded as.
	Input *TypeExpr
	// Output is nil when the action declares no output type.
	Output *TypeExpr
}

// Registry is an immutable, fully resolved ABI. It is safe for concurrent
// use.
type Registry struct {
	abi         VMABI
	structs     map[string]*StructDef
	actions     map[string]*ActionDef
	actionsByID map[uint8]*ActionDef
}

// New resolves [vmABI]. Every struct reference must name a declared type,
// struct types may not reference themselves (directly or through other
// structs or arrays), and every action must have a struct type of the same
// name.
func New(vmABI VMABI) (*Registry, error) {
	r := &Registry{
		abi:         cloneABI(vmABI),
		structs:     make(map[string]*StructDef, len(vmABI.Types)),
		actions:     make(map[string]*ActionDef, len(vmABI.Actions)),
		actionsByID: make(map[uint8]*ActionDef, len(vmABI.Actions)),
	}

	for _, typ := range vmABI.Types {
		if typ.Name == "" {
			return nil, fmt.Errorf("%w: type has %w", ErrInvalidABI, errEmptyName)
		}
		if _, ok := primitives[typ.Name]; ok || !isIdentifier(typ.Name) {
			return nil, fmt.Errorf("%w: %q can't be used as a struct name", ErrInvalidTypeExpr, typ.Name)
		}
		if _, ok := r.structs[typ.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateType, typ.Name)
		}
		r.structs[typ.Name] = &StructDef{
			Name:   typ.Name,
			Fields: make([]FieldDef, 0, len(typ.Fields)),
		}
	}

	for _, typ := range vmABI.Types {
		def := r.structs[typ.Name]
		seen := make(map[string]struct{}, len(typ.Fields))
		for _, field := range typ.Fields {
			if field.Name == "" {
				return nil, fmt.Errorf("%w: field of %s has %w", ErrInvalidABI, typ.Name, errEmptyName)
			}
			if _, ok := seen[field.Name]; ok {
				return nil, fmt.Errorf("%w: %s.%s", ErrDuplicateField, typ.Name, field.Name)
			}
			seen[field.Name] = struct{}{}

			expr, err := r.Resolve(field.Type)
			if err != nil {
				return nil, fmt.Errorf("field %s.%s: %w", typ.Name, field.Name, err)
			}
			def.Fields = append(def.Fields, FieldDef{
				Name: field.Name,
				Type: expr,
			})
		}
	}

	if err := r.checkAcyclic(); err != nil {
		return nil, err
	}

	for _, action := range vmABI.Actions {
		if action.Name == "" {
			return nil, fmt.Errorf("%w: action %d has %w", ErrInvalidABI, action.ID, errEmptyName)
		}
		if _, ok := r.actions[action.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAction, action.Name)
		}
		if other, ok := r.actionsByID[action.ID]; ok {
			return nil, fmt.Errorf("%w: %d used by %s and %s", ErrDuplicateActionID, action.ID, other.Name, action.Name)
		}
		def, ok := r.structs[action.Name]
		if !ok {
			return nil, fmt.Errorf("%w: action %s has no struct type", ErrUnknownType, action.Name)
		}
		actionDef := &ActionDef{
			ID:     action.ID,
			Name:   action.Name,
			Struct: def,
			Input: &TypeExpr{
				Kind:   KindStruct,
				Struct: def,
				name:   def.Name,
			},
		}
		if action.Output != "" {
			output, err := r.Resolve(action.Output)
			if err != nil {
				return nil, fmt.Errorf("output of action %s: %w", action.Name, err)
			}
			actionDef.Output = output
		}
		r.actions[action.Name] = actionDef
		r.actionsByID[action.ID] = actionDef
	}
	return r, nil
}

// Resolve parses the type expression [typeExpr] and binds every struct name
// it mentions to this registry.
func (r *Registry) Resolve(typeExpr string) (*TypeExpr, error) {
	expr, err := parseTypeExpr(typeExpr)
	if err != nil {
		return nil, err
	}
	if err := r.bind(expr); err != nil {
		return nil, err
	}
	return expr, nil
}

func (r *Registry) bind(expr *TypeExpr) error {
	switch expr.Kind {
	case KindArray:
		return r.bind(expr.Elem)
	case KindStruct:
		def, ok := r.structs[expr.name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownType, expr.name)
		}
		expr.Struct = def
	}
	return nil
}

// checkAcyclic walks the struct graph depth first and fails on the first back
// edge.
func (r *Registry) checkAcyclic() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(r.structs))

	var visit func(def *StructDef, path []string) error
	visit = func(def *StructDef, path []string) error {
		switch state[def.Name] {
		case visiting:
			return fmt.Errorf("%w: %v", ErrCyclicType, append(path, def.Name))
		case done:
			return nil
		}
		state[def.Name] = visiting
		path = append(path, def.Name)
		for _, field := range def.Fields {
			if ref := structOf(field.Type); ref != nil {
				if err := visit(ref, path); err != nil {
					return err
				}
			}
		}
		state[def.Name] = done
		return nil
	}

	// Walk in declaration order so errors are deterministic.
	for _, typ := range r.abi.Types {
		if err := visit(r.structs[typ.Name], nil); err != nil {
			return err
		}
	}
	return nil
}

// structOf returns the struct at the bottom of [expr], looking through arrays.
func structOf(expr *TypeExpr) *StructDef {
	for expr.Kind == KindArray {
		expr = expr.Elem
	}
	return expr.Struct
}

// Struct returns the struct type named [name].
func (r *Registry) Struct(name string) (*StructDef, error) {
	def, ok := r.structs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	return def, nil
}

// Action returns the action named [name].
func (r *Registry) Action(name string) (*ActionDef, error) {
	def, ok := r.actions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	return def, nil
}

// ActionByID returns the action with type id [id].
func (r *Registry) ActionByID(id uint8) (*ActionDef, error) {
	def, ok := r.actionsByID[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownAction, id)
	}
	return def, nil
}

// ABI returns a copy of the document this registry was built from.
func (r *Registry) ABI() VMABI {
	return cloneABI(r.abi)
}

func cloneABI(vmABI VMABI) VMABI {
	cloned := VMABI{
		Actions: slices.Clone(vmABI.Actions),
		Types:   make([]Type, len(vmABI.Types)),
	}
	for i, typ := range vmABI.Types {
		cloned.Types[i] = Type{
			Name:   typ.Name,
			Fields: slices.Clone(typ.Fields),
		}
	}
	return cloned
}
