// Command lgbridge is the C-ABI realization of pkg/bridge: spec.md §4.4's
// "stable, language-neutral surface", built with `-buildmode=c-shared`.
//
// Every exported function here is a thin marshaling wrapper: it decodes
// its C arguments, calls into the pure-Go facade in pkg/bridge, and
// encodes the result back into the {ptr, len} blob / status-integer
// contract of spec.md §6. No storage logic lives in this package.
package main

/*
#include <stdlib.h>
#include <stdint.h>

typedef struct {
	void*  ptr;
	size_t len;
} lg_blob_t;
*/
import "C"

import (
	"encoding/json"
	"runtime/cgo"
	"unsafe"

	"github.com/hyperpolymath/lithoglyph-sub001/pkg/block"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/blockfile"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/bridge"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/fs"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/txn"
)

// lg_init constructs a [bridge.Bridge] and returns an opaque handle a C
// host stores and passes back into every other call. Spec.md §4.4 does
// not name an init operation explicitly (every other operation takes a
// handle that already exists); one is required to make the ABI callable
// at all, so this resolves that gap using runtime/cgo.Handle rather than
// a process-wide Go global (see DESIGN.md).
//
//export lg_init
func lg_init() C.uintptr_t {
	h := cgo.NewHandle(bridge.New())

	return C.uintptr_t(h)
}

// lg_shutdown releases the Bridge behind ctx. Any handles issued by it
// become invalid.
//
//export lg_shutdown
func lg_shutdown(ctx C.uintptr_t) {
	cgo.Handle(ctx).Delete()
}

func bridgeFor(ctx C.uintptr_t) *bridge.Bridge {
	b, _ := cgo.Handle(ctx).Value().(*bridge.Bridge)

	return b
}

func cString(s *C.char) string {
	if s == nil {
		return ""
	}

	return C.GoString(s)
}

// makeBlob copies p into C-owned memory. The caller must release it with
// [lg_blob_free]. A nil/empty p yields a {ptr: null, len: 0} blob.
func makeBlob(p []byte) C.lg_blob_t {
	if len(p) == 0 {
		return C.lg_blob_t{ptr: nil, len: 0}
	}

	ptr := C.malloc(C.size_t(len(p)))
	copy(unsafe.Slice((*byte)(ptr), len(p)), p)

	return C.lg_blob_t{ptr: ptr, len: C.size_t(len(p))}
}

func jsonBlob(v any) C.lg_blob_t {
	data, err := json.Marshal(v)
	if err != nil {
		return makeBlob([]byte(`{"status":1,"error":"bridge: marshal failure"}`))
	}

	return makeBlob(data)
}

func errorBlob(err error) C.lg_blob_t {
	return jsonBlob(bridge.NewErrorBlob(err))
}

// lg_blob_free releases a blob previously returned by this library.
//
//export lg_blob_free
func lg_blob_free(blob C.lg_blob_t) {
	if blob.ptr != nil {
		C.free(blob.ptr)
	}
}

// lg_version returns major*10000 + minor*100 + patch.
//
//export lg_version
func lg_version() C.uint32_t {
	return C.uint32_t(bridge.Version())
}

// lg_db_open opens or creates the block file at path. On success *out_db
// is set and status is ok; on failure *out_error is set to an error blob.
//
//export lg_db_open
func lg_db_open(ctx C.uintptr_t, path *C.char, out_db *C.uint64_t, out_error *C.lg_blob_t) C.int32_t {
	b := bridgeFor(ctx)

	h, err := b.Open(cString(path), blockfile.Options{FS: fs.NewReal()})
	if err != nil {
		*out_error = errorBlob(err)

		return C.int32_t(bridge.StatusFor(err))
	}

	*out_db = C.uint64_t(h)

	return C.int32_t(bridge.StatusOK)
}

// lg_db_close abandons every live transaction on db and closes the file.
//
//export lg_db_close
func lg_db_close(ctx C.uintptr_t, db C.uint64_t) C.int32_t {
	b := bridgeFor(ctx)

	err := b.Close(bridge.DBHandle(db))

	return C.int32_t(bridge.StatusFor(err))
}

// lg_txn_begin allocates a transaction. mode 0 = read-only, 1 = read-write.
//
//export lg_txn_begin
func lg_txn_begin(ctx C.uintptr_t, db C.uint64_t, mode C.int32_t, out_txn *C.uint64_t) C.int32_t {
	b := bridgeFor(ctx)

	txnMode := txn.ReadOnly
	if mode != 0 {
		txnMode = txn.ReadWrite
	}

	h, err := b.Begin(bridge.DBHandle(db), txnMode)
	if err != nil {
		return C.int32_t(bridge.StatusFor(err))
	}

	*out_txn = C.uint64_t(h)

	return C.int32_t(bridge.StatusOK)
}

// lg_txn_commit performs the six-phase commit.
//
//export lg_txn_commit
func lg_txn_commit(ctx C.uintptr_t, txnHandle C.uint64_t) C.int32_t {
	b := bridgeFor(ctx)

	err := b.Commit(bridge.TxnHandle(txnHandle))

	return C.int32_t(bridge.StatusFor(err))
}

// lg_txn_abort discards pending state.
//
//export lg_txn_abort
func lg_txn_abort(ctx C.uintptr_t, txnHandle C.uint64_t) C.int32_t {
	b := bridgeFor(ctx)

	err := b.Abort(bridge.TxnHandle(txnHandle))

	return C.int32_t(bridge.StatusFor(err))
}

// lg_apply buffers an insert. The returned blob is the {"block_id",
// "status"} result payload on success, or an error blob on failure.
//
//export lg_apply
func lg_apply(ctx C.uintptr_t, txnHandle C.uint64_t, data unsafe.Pointer, dataLen C.size_t, out_result *C.lg_blob_t) C.int32_t {
	b := bridgeFor(ctx)

	payload := C.GoBytes(data, C.int(dataLen))

	res, err := b.Apply(bridge.TxnHandle(txnHandle), payload)
	if err != nil {
		*out_result = errorBlob(err)

		return C.int32_t(bridge.StatusFor(err))
	}

	*out_result = jsonBlob(res)

	return C.int32_t(bridge.StatusOK)
}

// lg_update_block buffers an update to an existing block id.
//
//export lg_update_block
func lg_update_block(ctx C.uintptr_t, txnHandle C.uint64_t, id C.uint64_t, data unsafe.Pointer, dataLen C.size_t) C.int32_t {
	b := bridgeFor(ctx)

	payload := C.GoBytes(data, C.int(dataLen))

	err := b.UpdateBlock(bridge.TxnHandle(txnHandle), uint64(id), payload)

	return C.int32_t(bridge.StatusFor(err))
}

// lg_delete_block buffers a delete of id.
//
//export lg_delete_block
func lg_delete_block(ctx C.uintptr_t, txnHandle C.uint64_t, id C.uint64_t) C.int32_t {
	b := bridgeFor(ctx)

	err := b.DeleteBlock(bridge.TxnHandle(txnHandle), uint64(id))

	return C.int32_t(bridge.StatusFor(err))
}

// lg_read_blocks scans db for blocks of blockType, returning the JSON
// array contract of spec.md §6.
//
//export lg_read_blocks
func lg_read_blocks(ctx C.uintptr_t, db C.uint64_t, blockType C.uint16_t, out_blob *C.lg_blob_t) C.int32_t {
	b := bridgeFor(ctx)

	data, err := b.ReadBlocks(bridge.DBHandle(db), block.Type(blockType))
	if err != nil {
		*out_blob = errorBlob(err)

		return C.int32_t(bridge.StatusFor(err))
	}

	*out_blob = makeBlob(data)

	return C.int32_t(bridge.StatusOK)
}

// lg_render_block returns render_block's introspection blob for id.
//
//export lg_render_block
func lg_render_block(ctx C.uintptr_t, db C.uint64_t, id C.uint64_t, out_blob *C.lg_blob_t) C.int32_t {
	b := bridgeFor(ctx)

	data, err := b.RenderBlock(bridge.DBHandle(db), uint64(id))
	if err != nil {
		*out_blob = errorBlob(err)

		return C.int32_t(bridge.StatusFor(err))
	}

	*out_blob = makeBlob(data)

	return C.int32_t(bridge.StatusOK)
}

// lg_render_journal returns render_journal's introspection blob. limit
// caps the number of entries walked back from the tail; 0 uses the
// package default.
//
//export lg_render_journal
func lg_render_journal(ctx C.uintptr_t, db C.uint64_t, since C.uint64_t, limit C.uint64_t, out_blob *C.lg_blob_t) C.int32_t {
	b := bridgeFor(ctx)

	data, err := b.RenderJournal(bridge.DBHandle(db), uint64(since), uint64(limit))
	if err != nil {
		*out_blob = errorBlob(err)

		return C.int32_t(bridge.StatusFor(err))
	}

	*out_blob = makeBlob(data)

	return C.int32_t(bridge.StatusOK)
}

// lg_introspect_schema returns the schema summary rooted at the cached
// superblock.
//
//export lg_introspect_schema
func lg_introspect_schema(ctx C.uintptr_t, db C.uint64_t, out_blob *C.lg_blob_t) C.int32_t {
	b := bridgeFor(ctx)

	data, err := b.IntrospectSchema(bridge.DBHandle(db))
	if err != nil {
		*out_blob = errorBlob(err)

		return C.int32_t(bridge.StatusFor(err))
	}

	*out_blob = makeBlob(data)

	return C.int32_t(bridge.StatusOK)
}

// lg_introspect_constraints returns the registered proof types on the
// bridge's process-wide verifier registry (db is only used to validate
// the handle, per spec.md §4.5: the registry is attached to the bridge,
// not to any one database).
//
//export lg_introspect_constraints
func lg_introspect_constraints(ctx C.uintptr_t, db C.uint64_t, out_blob *C.lg_blob_t) C.int32_t {
	b := bridgeFor(ctx)

	data, err := b.IntrospectConstraints(bridge.DBHandle(db))
	if err != nil {
		*out_blob = errorBlob(err)

		return C.int32_t(bridge.StatusFor(err))
	}

	*out_blob = makeBlob(data)

	return C.int32_t(bridge.StatusOK)
}

// lg_init_builtins registers the accept-all built-in verifiers on the
// bridge's process-wide registry.
//
//export lg_init_builtins
func lg_init_builtins(ctx C.uintptr_t) C.int32_t {
	b := bridgeFor(ctx)

	err := b.InitBuiltins()

	return C.int32_t(bridge.StatusFor(err))
}

// lg_unregister_verifier removes the verifier registered for proofType on
// the bridge's process-wide registry, if any.
//
//export lg_unregister_verifier
func lg_unregister_verifier(ctx C.uintptr_t, proofType *C.char) C.int32_t {
	b := bridgeFor(ctx)

	err := b.UnregisterVerifier(cString(proofType))

	return C.int32_t(bridge.StatusFor(err))
}

// lg_verify parses proofBytes as {"type", "data"} and dispatches to the
// registered verifier, writing the boolean result to *out_valid.
//
// register_verifier itself has no C-ABI entry point: a verifier callback
// is, by definition, native code the Go runtime cannot call back into
// across this boundary without a second, symmetric cgo callback contract
// that spec.md does not specify. Verifiers usable from a C host must be
// registered from the Go side (via pkg/bridge.Bridge.RegisterVerifier
// directly, e.g. from a Go-side plugin) — documented as an Open Question
// resolution in DESIGN.md.
//
//export lg_verify
func lg_verify(ctx C.uintptr_t, proofBytes unsafe.Pointer, proofLen C.size_t, out_valid *C.int32_t) C.int32_t {
	b := bridgeFor(ctx)

	proof := C.GoBytes(proofBytes, C.int(proofLen))

	valid, err := b.Verify(proof)
	if err != nil {
		return C.int32_t(bridge.StatusFor(err))
	}

	if valid {
		*out_valid = 1
	} else {
		*out_valid = 0
	}

	return C.int32_t(bridge.StatusOK)
}

func main() {}
