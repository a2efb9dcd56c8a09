// Package verify implements the proof-verifier registry: a map from
// proof-type identifier to a verification callback, used to gate
// structural operations (normalization, functional-dependency
// preservation, migration losslessness) behind domain-supplied proofs
// the storage core itself is agnostic to (spec.md §4.5).
package verify

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Sentinel errors returned by this package.
var (
	// ErrNotFound indicates verify was called with a proof type that has
	// no registered verifier.
	ErrNotFound = errors.New("verify: proof type not registered")

	// ErrInvalidArgument indicates a malformed proof blob: not valid JSON,
	// or missing the type field.
	ErrInvalidArgument = errors.New("verify: invalid argument")
)

// Callback verifies data against context established at registration time.
// It returns true if the proof is accepted.
type Callback func(data []byte, context any) (bool, error)

type entry struct {
	callback Callback
	context  any
}

// Registry is a process-scoped map from proof type to verifier. The zero
// value is not usable; construct one with [New].
//
// Registry is owned by a single [github.com/hyperpolymath/lithoglyph-sub001/pkg/bridge.Bridge]
// instance rather than being process-global package state, the same
// redesign spec.md §9 calls for on the database/transaction handle
// registries — the same sync.Map keyed-lookup pattern the Bridge uses for
// those handle registries, scoped down to an owned field instead of a
// package var.
type Registry struct {
	verifiers sync.Map // map[string]entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{}
}

// Register stores callback and context under type, overwriting any
// existing entry with the same key. The type string is copied so the
// registry owns stable storage independent of the caller's buffer.
func (r *Registry) Register(proofType string, callback Callback, context any) {
	key := string([]byte(proofType)) // force a private copy, not an aliasing substring

	r.verifiers.Store(key, entry{callback: callback, context: context})
}

// Unregister removes the entry for proofType, if any.
func (r *Registry) Unregister(proofType string) {
	r.verifiers.Delete(proofType)
}

// proofBlob is the wire shape verify parses: {"type": "...", "data": "..."}.
type proofBlob struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// Verify parses proofBytes as a {type, data} JSON object, looks up the
// verifier registered for type, and invokes it with data's bytes.
//
// Returns [ErrInvalidArgument] for malformed JSON or a missing type field,
// and [ErrNotFound] if no verifier is registered for the parsed type.
func (r *Registry) Verify(proofBytes []byte) (bool, error) {
	var blob proofBlob

	if err := json.Unmarshal(proofBytes, &blob); err != nil {
		return false, fmt.Errorf("%w: malformed proof JSON: %w", ErrInvalidArgument, err)
	}

	if blob.Type == "" {
		return false, fmt.Errorf("%w: missing proof type", ErrInvalidArgument)
	}

	val, ok := r.verifiers.Load(blob.Type)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrNotFound, blob.Type)
	}

	e, ok := val.(entry)
	if !ok {
		return false, fmt.Errorf("verify: registry entry for %q has unexpected type", blob.Type)
	}

	valid, err := e.callback([]byte(blob.Data), e.context)
	if err != nil {
		return false, fmt.Errorf("verify: callback for %q: %w", blob.Type, err)
	}

	return valid, nil
}

// builtinTypes are the accept-all proof types InitBuiltins registers,
// matching spec.md §4.5's init_builtins.
var builtinTypes = []string{"fd-holds", "normalization", "denormalization"} //nolint:gochecknoglobals

// InitBuiltins registers accept-all verifiers for "fd-holds",
// "normalization", and "denormalization" so a freshly opened database is
// usable end-to-end in development without an external collaborator
// wiring real proof verification first.
func (r *Registry) InitBuiltins() {
	for _, t := range builtinTypes {
		r.Register(t, acceptAll, nil)
	}
}

func acceptAll(_ []byte, _ any) (bool, error) {
	return true, nil
}

// ListRegistered enumerates the proof types currently registered, sorted
// is not guaranteed — callers that need stable ordering should sort the
// result themselves. This extends spec.md §4.5's registry with operator
// visibility (SPEC_FULL.md, not in the distilled spec's operation list).
func (r *Registry) ListRegistered() []string {
	var types []string

	r.verifiers.Range(func(key, _ any) bool {
		if s, ok := key.(string); ok {
			types = append(types, s)
		}

		return true
	})

	return types
}
