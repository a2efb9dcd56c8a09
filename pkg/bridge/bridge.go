// Package bridge implements the stable handle-registry facade described in
// spec.md §4.4: opaque database and transaction handles backed by
// per-instance registries (not process-wide globals — see spec.md §9's
// redesign note), plus the status/error-blob contract of §6.
//
// This package is pure Go and has no cgo dependency; cmd/lgbridge wraps it
// with the C-ABI surface (`import "C"`, `//export`) so the facade itself
// stays independently testable.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hyperpolymath/lithoglyph-sub001/pkg/block"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/blockfile"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/txn"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/verify"
)

// DBHandle is an opaque reference to an open database, valid only within
// the [Bridge] that issued it.
type DBHandle uint64

// TxnHandle is an opaque reference to an open transaction, valid only
// within the [Bridge] that issued it and only while its owning database
// remains open.
type TxnHandle uint64

type dbEntry struct {
	mgr *blockfile.Manager
}

type txnEntry struct {
	tx *txn.Tx
	db DBHandle
}

// Bridge owns the database and transaction handle registries for one
// logical process context, plus the process-wide proof-verifier registry
// (spec.md §4.5: "A process-wide map from proof-type identifier...",
// attached to the bridge rather than to any one database — spec.md §2).
// Unlike the reference design's process-wide globals (spec.md §9), a
// Bridge is an explicit, constructible instance: a test, or a
// multi-tenant host process, can hold more than one, each with its own
// independent verifier registry.
//
// Grounded on pkg/slotcache's fileRegistry/globalRegistry sync.Map
// pattern, scoped down from a package var to a struct field.
type Bridge struct {
	dbs  sync.Map // map[DBHandle]*dbEntry
	txns sync.Map // map[TxnHandle]*txnEntry

	nextDB  atomic.Uint64
	nextTxn atomic.Uint64

	verifiers *verify.Registry
}

// New returns an empty Bridge with an empty proof-verifier registry.
func New() *Bridge {
	return &Bridge{verifiers: verify.New()}
}

// Open opens or creates the block file at path and registers a new
// database handle for it.
func (b *Bridge) Open(path string, opts blockfile.Options) (DBHandle, error) {
	mgr, err := blockfile.Open(path, opts)
	if err != nil {
		return 0, err
	}

	h := DBHandle(b.nextDB.Add(1))
	b.dbs.Store(h, &dbEntry{mgr: mgr})

	return h, nil
}

// Close abandons every live transaction belonging to db (their handles
// become invalid; no disk action is taken for them) and closes the file.
func (b *Bridge) Close(db DBHandle) error {
	entry, err := b.lookupDB(db)
	if err != nil {
		return err
	}

	b.txns.Range(func(key, val any) bool {
		te, ok := val.(*txnEntry)
		if ok && te.db == db {
			b.txns.Delete(key)
		}

		return true
	})

	b.dbs.Delete(db)

	return entry.mgr.Close()
}

func (b *Bridge) lookupDB(db DBHandle) (*dbEntry, error) {
	val, ok := b.dbs.Load(db)
	if !ok {
		return nil, fmt.Errorf("%w: database handle %d", ErrInvalidHandle, db)
	}

	entry, ok := val.(*dbEntry)
	if !ok {
		return nil, fmt.Errorf("%w: database handle %d has unexpected registry entry", ErrInvalidHandle, db)
	}

	return entry, nil
}

func (b *Bridge) lookupTxn(t TxnHandle) (*txnEntry, *dbEntry, error) {
	val, ok := b.txns.Load(t)
	if !ok {
		return nil, nil, fmt.Errorf("%w: transaction handle %d", ErrInvalidHandle, t)
	}

	te, ok := val.(*txnEntry)
	if !ok {
		return nil, nil, fmt.Errorf("%w: transaction handle %d has unexpected registry entry", ErrInvalidHandle, t)
	}

	de, err := b.lookupDB(te.db)
	if err != nil {
		// The owning database has been closed out from under this
		// transaction handle: spec.md §8 "Handle isolation".
		return nil, nil, fmt.Errorf("%w: owning database is closed", ErrInvalidHandle)
	}

	return te, de, nil
}

// Begin allocates a transaction against db with sequence := journal_head+1.
func (b *Bridge) Begin(db DBHandle, mode txn.Mode) (TxnHandle, error) {
	entry, err := b.lookupDB(db)
	if err != nil {
		return 0, err
	}

	tx := txn.Begin(entry.mgr, mode)

	h := TxnHandle(b.nextTxn.Add(1))
	b.txns.Store(h, &txnEntry{tx: tx, db: db})

	return h, nil
}

// Commit performs the six-phase commit (pkg/txn.Tx.Commit) and, on
// success or best-effort-tail failure alike, removes the transaction
// handle from the registry — a committed transaction is never active
// again, win or lose (spec.md §4.3, "the transaction handle is
// destroyed").
func (b *Bridge) Commit(t TxnHandle) error {
	te, _, err := b.lookupTxn(t)
	if err != nil {
		return err
	}

	commitErr := te.tx.Commit()
	b.txns.Delete(t)

	return commitErr
}

// Abort discards pending state and removes the transaction handle.
func (b *Bridge) Abort(t TxnHandle) error {
	te, _, err := b.lookupTxn(t)
	if err != nil {
		return err
	}

	abortErr := te.tx.Abort()
	b.txns.Delete(t)

	return abortErr
}

// Apply buffers an insert on t.
func (b *Bridge) Apply(t TxnHandle, data []byte) (txn.ApplyResult, error) {
	te, _, err := b.lookupTxn(t)
	if err != nil {
		return txn.ApplyResult{}, err
	}

	return te.tx.Apply(data)
}

// UpdateBlock buffers an update on t.
func (b *Bridge) UpdateBlock(t TxnHandle, id uint64, data []byte) error {
	te, _, err := b.lookupTxn(t)
	if err != nil {
		return err
	}

	return te.tx.UpdateBlock(id, data)
}

// DeleteBlock buffers a delete on t.
func (b *Bridge) DeleteBlock(t TxnHandle, id uint64) error {
	te, _, err := b.lookupTxn(t)
	if err != nil {
		return err
	}

	return te.tx.DeleteBlock(id)
}

// readBlockRow is one entry of read_blocks' JSON array.
type readBlockRow struct {
	BlockID uint64 `json:"block_id"`
	Size    uint32 `json:"size"`
	Data    string `json:"data"`
}

// ReadBlocks scans blocks 1..block_count, skipping deleted blocks, ids that
// were reserved but never written, and blocks whose type does not match
// blockType, and returns the JSON array
// contract of spec.md §6.
func (b *Bridge) ReadBlocks(db DBHandle, blockType block.Type) ([]byte, error) {
	entry, err := b.lookupDB(db)
	if err != nil {
		return nil, err
	}

	sb := entry.mgr.Stat()

	rows := make([]readBlockRow, 0)

	for id := uint64(1); id < sb.BlockCount; id++ {
		blk, err := entry.mgr.ReadBlock(id)
		if err != nil {
			// An id reserved by a transaction that never committed has no
			// block on disk: it reads short past the end of the file, or as
			// a zero-filled gap without magic. Such holes are skipped.
			decodeErr := errors.Is(err, block.ErrUnsupportedVersion) ||
				errors.Is(err, block.ErrPayloadTooLarge) ||
				errors.Is(err, block.ErrChecksumMismatch)
			if errors.Is(err, blockfile.ErrInvalidBlock) && !decodeErr {
				continue
			}

			return nil, fmt.Errorf("bridge: read_blocks scanning block %d: %w", id, err)
		}

		if blk.Header.IsDeleted() || blk.Header.BlockType != blockType {
			continue
		}

		rows = append(rows, readBlockRow{
			BlockID: blk.Header.BlockID,
			Size:    blk.Header.PayloadLen,
			Data:    string(blk.Payload),
		})
	}

	return json.Marshal(rows)
}

// renderBlockView is render_block's JSON shape.
type renderBlockView struct {
	BlockID  uint64 `json:"block_id"`
	Type     string `json:"type"`
	Sequence uint64 `json:"sequence"`
	Size     uint32 `json:"size"`
	Payload  string `json:"payload"`
}

// RenderBlock returns render_block's introspection blob for id.
func (b *Bridge) RenderBlock(db DBHandle, id uint64) ([]byte, error) {
	entry, err := b.lookupDB(db)
	if err != nil {
		return nil, err
	}

	blk, err := entry.mgr.ReadBlock(id)
	if err != nil {
		return nil, err
	}

	view := renderBlockView{
		BlockID:  blk.Header.BlockID,
		Type:     blk.Header.BlockType.Name(),
		Sequence: blk.Header.Sequence,
		Size:     blk.Header.PayloadLen,
		Payload:  fmt.Sprintf("[%d bytes]", blk.Header.PayloadLen),
	}

	return json.Marshal(view)
}

// journalView is render_journal's JSON shape.
type journalView struct {
	Since   uint64                   `json:"since"`
	Head    uint64                   `json:"head"`
	Tail    uint64                   `json:"tail"`
	Entries []blockfile.JournalEntry `json:"entries"`
}

// RenderJournal returns render_journal's introspection blob since the
// given sequence number. limit caps the number of entries walked back from
// the tail (spec.md §4.4's render_journal opts); 0 uses the package
// default.
func (b *Bridge) RenderJournal(db DBHandle, since, limit uint64) ([]byte, error) {
	entry, err := b.lookupDB(db)
	if err != nil {
		return nil, err
	}

	sb := entry.mgr.Stat()

	entries, err := entry.mgr.RenderJournal(since, limit)
	if err != nil {
		return nil, err
	}

	return json.Marshal(journalView{
		Since:   since,
		Head:    sb.JournalHead,
		Tail:    sb.JournalTail,
		Entries: entries,
	})
}

// IntrospectSchema returns the minimal schema summary rooted at the
// cached superblock.
func (b *Bridge) IntrospectSchema(db DBHandle) ([]byte, error) {
	entry, err := b.lookupDB(db)
	if err != nil {
		return nil, err
	}

	return entry.mgr.MarshalIntrospection()
}

// constraintsView is introspect_constraints' JSON shape: the registered
// proof types a caller can satisfy, since "constraints" in this core are
// exactly the proofs the registry demands.
type constraintsView struct {
	RegisteredProofTypes []string `json:"registered_proof_types"`
}

// IntrospectConstraints returns the minimal constraints summary: the set
// of proof types currently registered on the bridge's verifier registry.
// db is validated like any other handle-taking operation (spec.md §4.4's
// "Handle validity") but the registry itself is process-wide, not
// per-database (spec.md §4.5).
func (b *Bridge) IntrospectConstraints(db DBHandle) ([]byte, error) {
	if _, err := b.lookupDB(db); err != nil {
		return nil, err
	}

	types := b.verifiers.ListRegistered()
	if types == nil {
		types = []string{}
	}

	return json.Marshal(constraintsView{RegisteredProofTypes: types})
}

// RegisterVerifier registers callback under proofType on the bridge's
// process-wide registry (spec.md §4.5).
func (b *Bridge) RegisterVerifier(proofType string, callback verify.Callback, context any) error {
	b.verifiers.Register(proofType, callback, context)

	return nil
}

// UnregisterVerifier removes the entry for proofType from the bridge's
// registry.
func (b *Bridge) UnregisterVerifier(proofType string) error {
	b.verifiers.Unregister(proofType)

	return nil
}

// InitBuiltins registers the accept-all built-in verifiers on the
// bridge's registry.
func (b *Bridge) InitBuiltins() error {
	b.verifiers.InitBuiltins()

	return nil
}

// Verify parses proofBytes and dispatches to the verifier registered on
// the bridge's registry for its proof type.
func (b *Bridge) Verify(proofBytes []byte) (bool, error) {
	return b.verifiers.Verify(proofBytes)
}

// Version constants, encoded per spec.md §6 as major*10000 + minor*100 + patch.
const (
	versionMajor = 0
	versionMinor = 1
	versionPatch = 0
)

// Version returns the encoded version() value.
func Version() uint32 {
	return uint32(versionMajor*10000 + versionMinor*100 + versionPatch)
}
