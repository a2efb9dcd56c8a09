// Package txn implements the transaction buffer: pending writes and
// deletes accumulated between Begin and Commit, and the six-phase
// write-ahead commit protocol described in spec.md §4.3.
//
// No block is written to disk between Begin and Commit. All on-disk state
// changes happen during Commit, in the fixed phase order journal-then-data
// that makes crash recovery possible.
package txn

import (
	"errors"
	"fmt"
	"time"

	"github.com/hyperpolymath/lithoglyph-sub001/pkg/block"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/blockfile"
)

// Mode is a transaction's read/write mode.
type Mode int

// Transaction modes.
const (
	ReadOnly Mode = iota
	ReadWrite
)

// pendingWrite is a buffered insert or update, not yet on disk.
type pendingWrite struct {
	blockID uint64
	payload []byte
	message string
	isNew   bool
}

// pendingDelete is a buffered free, not yet on disk.
type pendingDelete struct {
	blockID uint64
}

// Tx buffers mutations in memory between Begin and Commit/Abort.
//
// Exactly one of Commit or Abort reaches the terminal state; after either,
// every method on Tx returns [ErrNotActive] or [ErrAlreadyCommitted].
type Tx struct {
	mgr      *blockfile.Manager
	mode     Mode
	sequence uint64
	writes   []pendingWrite
	deletes  []pendingDelete
	active   bool
	done     bool // true once Commit has passed its durable WAL boundary; Abort leaves it false
}

// Begin allocates a transaction against mgr with a sequence snapshot of
// journal_head+1 at begin time (spec.md §3, "sequence snapshot").
func Begin(mgr *blockfile.Manager, mode Mode) *Tx {
	sb := mgr.Stat()

	return &Tx{
		mgr:      mgr,
		mode:     mode,
		sequence: sb.JournalHead + 1,
		active:   true,
	}
}

// Sequence returns the transaction's sequence snapshot.
func (tx *Tx) Sequence() uint64 { return tx.sequence }

// Mode returns the transaction's read/write mode.
func (tx *Tx) Mode() Mode { return tx.mode }

func (tx *Tx) checkWritable() error {
	if !tx.active {
		if tx.done {
			return ErrAlreadyCommitted
		}

		return ErrNotActive
	}

	if tx.mode != ReadWrite {
		return fmt.Errorf("%w: transaction is read-only", ErrInvalidArgument)
	}

	return nil
}

// ApplyResult is the {block_id, status} the bridge layer renders for
// apply's status blob (spec.md §6).
type ApplyResult struct {
	BlockID uint64
	Status  string
}

// Apply reserves a new block id and buffers an insert. data must be
// non-empty and no longer than [block.PayloadSize]; a zero-length payload
// is rejected uniformly (SPEC_FULL.md Open Question #2).
func (tx *Tx) Apply(data []byte) (ApplyResult, error) {
	if err := tx.checkWritable(); err != nil {
		return ApplyResult{}, err
	}

	if len(data) == 0 {
		return ApplyResult{}, fmt.Errorf("%w: empty payload", ErrInvalidArgument)
	}

	if len(data) > block.PayloadSize {
		return ApplyResult{}, fmt.Errorf("%w: payload %d bytes exceeds %d", ErrInvalidArgument, len(data), block.PayloadSize)
	}

	id := tx.mgr.ReserveBlockID()

	owned := make([]byte, len(data))
	copy(owned, data)

	tx.writes = append(tx.writes, pendingWrite{
		blockID: id,
		payload: owned,
		message: fmt.Sprintf("INSERT block_id=%d size=%d", id, len(data)),
		isNew:   true,
	})

	return ApplyResult{BlockID: id, Status: "pending"}, nil
}

// UpdateBlock buffers an update to an existing block id.
func (tx *Tx) UpdateBlock(id uint64, data []byte) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}

	if len(data) > block.PayloadSize {
		return fmt.Errorf("%w: payload %d bytes exceeds %d", ErrInvalidArgument, len(data), block.PayloadSize)
	}

	owned := make([]byte, len(data))
	copy(owned, data)

	tx.writes = append(tx.writes, pendingWrite{
		blockID: id,
		payload: owned,
		message: fmt.Sprintf("UPDATE block_id=%d size=%d", id, len(data)),
		isNew:   false,
	})

	return nil
}

// DeleteBlock buffers a delete of id. The DELETE journal message is
// emitted at commit time, not when DeleteBlock is called.
func (tx *Tx) DeleteBlock(id uint64) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}

	tx.deletes = append(tx.deletes, pendingDelete{blockID: id})

	return nil
}

// Commit performs the six-phase write-ahead commit (spec.md §4.3):
//
//  1. journal inserts/updates
//  2. journal deletes
//  3. fsync (durable WAL boundary)
//  4. write data blocks
//  5. free deleted blocks
//  6. flush superblock, fsync again
//
// An error from phases 1-3 aborts the commit: the transaction remains
// active and wraps [ErrCommitFailed], so the caller may retry Commit or
// call Abort. An error from phases 4-6 is returned but the transaction is
// still terminal — the WAL is already durable, so those phases are
// best-effort completion, not all-or-nothing (spec.md §9, "best-effort
// tail of commit").
func (tx *Tx) Commit() error {
	if err := tx.commitPrecheck(); err != nil {
		return err
	}

	// Phase 1: journal inserts/updates.
	for _, w := range tx.writes {
		if _, err := tx.mgr.AppendJournal([]byte(w.message)); err != nil {
			return fmt.Errorf("%w: journaling writes: %w", ErrCommitFailed, err)
		}
	}

	// Phase 2: journal deletes.
	for _, d := range tx.deletes {
		msg := fmt.Sprintf("DELETE block_id=%d", d.blockID)
		if _, err := tx.mgr.AppendJournal([]byte(msg)); err != nil {
			return fmt.Errorf("%w: journaling deletes: %w", ErrCommitFailed, err)
		}
	}

	// Phase 3: sync the WAL.
	if err := tx.mgr.Sync(); err != nil {
		return fmt.Errorf("%w: fsync after journal: %w", ErrCommitFailed, err)
	}

	// From here on, the WAL is durable: any further failure is best-effort,
	// not a reason to leave the transaction open.
	tx.active = false
	tx.done = true

	var tailErr error

	// Phase 4: write data blocks.
	now := uint64(time.Now().UnixMilli())

	for _, w := range tx.writes {
		h := block.Header{
			BlockType:  block.TypeDocument,
			BlockID:    w.blockID,
			Sequence:   tx.sequence,
			CreatedAt:  now,
			ModifiedAt: now,
		}

		if err := tx.mgr.WriteBlock(w.blockID, h, w.payload); err != nil {
			tailErr = errors.Join(tailErr, fmt.Errorf("writing block %d: %w", w.blockID, err))
		}
	}

	// Phase 5: process deletes.
	for _, d := range tx.deletes {
		if err := tx.mgr.FreeBlock(d.blockID); err != nil {
			tailErr = errors.Join(tailErr, fmt.Errorf("freeing block %d: %w", d.blockID, err))
		}
	}

	// Phase 6: flush superblock, fsync again.
	if err := tx.mgr.FlushSuperblock(); err != nil {
		tailErr = errors.Join(tailErr, fmt.Errorf("flushing superblock: %w", err))
	} else if err := tx.mgr.Sync(); err != nil {
		tailErr = errors.Join(tailErr, fmt.Errorf("final fsync: %w", err))
	}

	tx.writes = nil
	tx.deletes = nil

	return tailErr
}

func (tx *Tx) commitPrecheck() error {
	if !tx.active {
		if tx.done {
			return ErrAlreadyCommitted
		}

		return ErrNotActive
	}

	return nil
}

// Abort discards all pending operations without writing to disk.
//
// Any ids reserved via Apply remain reserved in the cached superblock's
// BlockCount (spec.md §9: "reserved IDs on abort" — ids are opaque and
// holes on disk are tolerated). Abort cannot fail in a way visible to the
// caller.
func (tx *Tx) Abort() error {
	if !tx.active {
		if tx.done {
			return ErrAlreadyCommitted
		}

		return ErrNotActive
	}

	tx.writes = nil
	tx.deletes = nil
	tx.active = false

	return nil
}

// Active reports whether the transaction has not yet reached a terminal
// state.
func (tx *Tx) Active() bool { return tx.active }
