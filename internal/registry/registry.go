// Package registry enumerates the closed set of mutation and signal
// primitives (§4.1), decodes their JSON payloads into the typed structs in
// internal/types, and runs structural validation that does not require the
// current page state (existence checks, cycles, and cardinality-conflict
// detection are the reducer's job, since they need the evolving state).
package registry

import (
	"encoding/json"
	"fmt"

	"github.com/aidekernel/aide/internal/types"
)

// Entry describes one registered primitive: how to decode its payload and
// how to structurally validate it ahead of reduction.
type Entry struct {
	Primitive types.Primitive
	Mutating  bool
	// New returns a fresh zero value of the primitive's payload type, used
	// as the decode target.
	New func() any
	// Validate runs shape-only checks against a decoded payload. It must
	// not consult page state.
	Validate func(payload any) error
}

var table = map[types.Primitive]Entry{
	types.PrimEntityCreate: {
		Primitive: types.PrimEntityCreate,
		Mutating:  true,
		New:       func() any { return &types.EntityCreatePayload{} },
		Validate:  validateEntityCreate,
	},
	types.PrimEntityUpdate: {
		Primitive: types.PrimEntityUpdate,
		Mutating:  true,
		New:       func() any { return &types.EntityUpdatePayload{} },
		Validate:  validateEntityUpdate,
	},
	types.PrimEntityRemove: {
		Primitive: types.PrimEntityRemove,
		Mutating:  true,
		New:       func() any { return &types.EntityRemovePayload{} },
		Validate:  validateEntityRemove,
	},
	types.PrimEntityMove: {
		Primitive: types.PrimEntityMove,
		Mutating:  true,
		New:       func() any { return &types.EntityMovePayload{} },
		Validate:  validateEntityMove,
	},
	types.PrimEntityReorder: {
		Primitive: types.PrimEntityReorder,
		Mutating:  true,
		New:       func() any { return &types.EntityReorderPayload{} },
		Validate:  validateEntityReorder,
	},
	types.PrimRelSet: {
		Primitive: types.PrimRelSet,
		Mutating:  true,
		New:       func() any { return &types.RelSetPayload{} },
		Validate:  validateRelSet,
	},
	types.PrimRelRemove: {
		Primitive: types.PrimRelRemove,
		Mutating:  true,
		New:       func() any { return &types.RelRemovePayload{} },
		Validate:  validateRelRemove,
	},
	types.PrimStyleSet: {
		Primitive: types.PrimStyleSet,
		Mutating:  true,
		New:       func() any { return &types.StyleSetPayload{} },
		Validate:  validateStyleSet,
	},
	types.PrimStyleEntity: {
		Primitive: types.PrimStyleEntity,
		Mutating:  true,
		New:       func() any { return &types.StyleEntityPayload{} },
		Validate:  validateStyleEntity,
	},
	types.PrimMetaSet: {
		Primitive: types.PrimMetaSet,
		Mutating:  true,
		New:       func() any { return &types.MetaSetPayload{} },
		Validate:  validateMetaSet,
	},
	types.PrimMetaAnnotate: {
		Primitive: types.PrimMetaAnnotate,
		Mutating:  true,
		New:       func() any { return &types.MetaAnnotatePayload{} },
		Validate:  validateMetaAnnotate,
	},
	types.PrimMetaConstrain: {
		Primitive: types.PrimMetaConstrain,
		Mutating:  true,
		New:       func() any { return &types.MetaConstrainPayload{} },
		Validate:  validateMetaConstrain,
	},
	types.PrimVoice: {
		Primitive: types.PrimVoice,
		Mutating:  false,
		New:       func() any { return &types.VoicePayload{} },
		Validate:  func(any) error { return nil },
	},
	types.PrimEscalate: {
		Primitive: types.PrimEscalate,
		Mutating:  false,
		New:       func() any { return &types.EscalatePayload{} },
		Validate:  func(any) error { return nil },
	},
	types.PrimClarify: {
		Primitive: types.PrimClarify,
		Mutating:  false,
		New:       func() any { return &types.ClarifyPayload{} },
		Validate:  func(any) error { return nil },
	},
	types.PrimBatchStart: {
		Primitive: types.PrimBatchStart,
		Mutating:  false,
		New:       func() any { return &struct{}{} },
		Validate:  func(any) error { return nil },
	},
	types.PrimBatchEnd: {
		Primitive: types.PrimBatchEnd,
		Mutating:  false,
		New:       func() any { return &struct{}{} },
		Validate:  func(any) error { return nil },
	},
}

// Lookup returns the registered entry for prim, or false if prim is outside
// the closed set.
func Lookup(prim types.Primitive) (Entry, bool) {
	e, ok := table[prim]
	return e, ok
}

// IsMutating reports whether prim alters page state when reduced.
func IsMutating(prim types.Primitive) bool {
	e, ok := table[prim]
	return ok && e.Mutating
}

// Decode unmarshals raw into the payload type registered for prim and runs
// its structural validator. It returns the decoded payload (as the concrete
// pointer type, e.g. *types.EntityCreatePayload) on success.
func Decode(prim types.Primitive, raw json.RawMessage) (any, error) {
	entry, ok := table[prim]
	if !ok {
		return nil, types.NewCodedError(types.CodeInvalidPayload, string(prim), "unrecognised primitive")
	}
	payload := entry.New()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, payload); err != nil {
			return nil, types.NewCodedError(types.CodeInvalidPayload, string(prim), fmt.Sprintf("malformed payload: %v", err))
		}
	}
	if err := entry.Validate(payload); err != nil {
		return nil, err
	}
	return payload, nil
}
