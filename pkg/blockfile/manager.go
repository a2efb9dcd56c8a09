// Package blockfile implements the block file manager: the component that
// owns a database's file descriptor, the cached superblock, and provides
// block-level read/write/allocate/free plus the journal chain.
//
// No block is written to disk outside of [Manager]'s methods; the
// transaction buffer in pkg/txn calls back into a Manager only from its
// Commit path.
package blockfile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hyperpolymath/lithoglyph-sub001/pkg/block"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/fs"
)

// nowFunc is overridden in tests for deterministic timestamps.
var nowFunc = func() uint64 { return uint64(time.Now().UnixMilli()) } //nolint:gochecknoglobals

// Options configures [Open].
type Options struct {
	// FS is the filesystem abstraction to use. Defaults to [fs.NewReal] if
	// nil, so production callers never need to reference pkg/fs directly.
	FS fs.FS
}

// Manager owns a single block file: its descriptor, its cached superblock,
// and the operations that mutate them.
//
// A Manager is not safe for concurrent use from multiple goroutines without
// external synchronization — see spec.md §5 ("Shared-resource policy").
type Manager struct {
	mu     sync.Mutex
	fsys   fs.FS
	file   fs.File
	path   string
	sb     Superblock
	closed bool
}

// Open opens an existing block file at path, or creates a fresh one if it
// does not exist.
//
// A freshly created file has a superblock with BlockCount=1 (the superblock
// itself occupies id 0), an empty free list, and an empty journal chain.
func Open(path string, opts Options) (*Manager, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidArgument)
	}

	fsys := opts.FS
	if fsys == nil {
		fsys = fs.NewReal()
	}

	exists, err := fsys.Exists(path)
	if err != nil {
		return nil, fmt.Errorf("blockfile: stat %s: %w", path, err)
	}

	if exists {
		return openExisting(fsys, path)
	}

	return createFresh(fsys, path)
}

func openExisting(fsys fs.FS, path string) (*Manager, error) {
	f, err := fsys.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("blockfile: open %s: %w", path, err)
	}

	m := &Manager{fsys: fsys, file: f, path: path}

	buf := make([]byte, block.Size)
	if _, err := io.ReadFull(m.file, buf); err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("%w: reading block 0: %v", ErrCorruptSuperblock, err) //nolint:errorlint
	}

	decoded, err := block.Decode(buf)
	if err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("%w: %w", ErrCorruptSuperblock, err)
	}

	if decoded.Header.BlockType != block.TypeSuperblock {
		_ = f.Close()

		return nil, fmt.Errorf("%w: block 0 has type %s", ErrCorruptSuperblock, decoded.Header.BlockType.Name())
	}

	m.sb = decodeSuperblock(decoded.Payload)

	return m, nil
}

func createFresh(fsys fs.FS, path string) (*Manager, error) {
	f, err := fsys.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("blockfile: create %s: %w", path, err)
	}

	now := nowFunc()

	m := &Manager{
		fsys: fsys,
		file: f,
		path: path,
		sb: Superblock{
			Version:      uint32(block.Version),
			BlockCount:   1,
			FreeListHead: 0,
			JournalHead:  0,
			JournalTail:  0,
			CreatedAt:    now,
		},
	}

	if err := m.writeSuperblockLocked(now); err != nil {
		_ = f.Close()

		return nil, err
	}

	if err := m.file.Sync(); err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("blockfile: fsync after create: %w", err)
	}

	// The new file's directory entry is durable only once its parent
	// directory has been synced as well.
	dir, err := fsys.Open(filepath.Dir(path))
	if err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("blockfile: open parent of %s: %w", path, err)
	}

	syncErr := dir.Sync()
	_ = dir.Close()

	if syncErr != nil {
		_ = f.Close()

		return nil, fmt.Errorf("blockfile: fsync parent of %s: %w", path, syncErr)
	}

	return m, nil
}

// Close closes the underlying file descriptor.
//
// Close does not imply a flush: callers that want durability must flush
// (via Commit's phase 6, or an explicit [Manager.FlushSuperblock]+Sync)
// before calling Close.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true

	return m.file.Close()
}

// Stat returns a point-in-time summary of the cached superblock, for
// introspection and the CLI's show command.
func (m *Manager) Stat() Superblock {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sb
}

// Superblock returns a copy of the cached superblock.
func (m *Manager) Superblock() Superblock {
	return m.Stat()
}

func (m *Manager) blockOffset(id uint64) int64 {
	return int64(id) * block.Size //nolint:gosec // block ids are bounded by file size in practice
}

// ReadBlock reads and decodes the block at id.
func (m *Manager) ReadBlock(id uint64) (block.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.readBlockLocked(id)
}

func (m *Manager) readBlockLocked(id uint64) (block.Block, error) {
	if m.closed {
		return block.Block{}, ErrClosed
	}

	if _, err := m.file.Seek(m.blockOffset(id), io.SeekStart); err != nil {
		return block.Block{}, fmt.Errorf("%w: seek block %d: %v", ErrInvalidBlock, id, err) //nolint:errorlint
	}

	buf := make([]byte, block.Size)
	if _, err := io.ReadFull(m.file, buf); err != nil {
		return block.Block{}, fmt.Errorf("%w: short read block %d: %v", ErrInvalidBlock, id, err) //nolint:errorlint
	}

	b, err := block.Decode(buf)
	if err != nil {
		return block.Block{}, fmt.Errorf("%w: block %d: %w", ErrInvalidBlock, id, err)
	}

	return b, nil
}

// WriteBlock encodes and writes a block at id's on-disk offset.
//
// WriteBlock does not fsync; callers decide durability (the commit path in
// pkg/txn fsyncs at the appropriate phase boundary).
func (m *Manager) WriteBlock(id uint64, h block.Header, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.writeBlockLocked(id, h, payload)
}

func (m *Manager) writeBlockLocked(id uint64, h block.Header, payload []byte) error {
	if m.closed {
		return ErrClosed
	}

	if len(payload) > block.PayloadSize {
		return fmt.Errorf("%w: payload %d bytes exceeds %d", ErrInvalidArgument, len(payload), block.PayloadSize)
	}

	h.BlockID = id

	buf := block.Encode(h, payload)

	if _, err := m.file.Seek(m.blockOffset(id), io.SeekStart); err != nil {
		return fmt.Errorf("blockfile: seek block %d: %w", id, err)
	}

	if _, err := m.file.Write(buf); err != nil {
		return fmt.Errorf("blockfile: write block %d: %w", id, err)
	}

	return nil
}

// AllocateBlock allocates a durable block of the given type: popping the
// free list if non-empty, otherwise extending the file. The newly
// initialized block is written to disk and the superblock is flushed.
func (m *Manager) AllocateBlock(t block.Type) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}

	now := nowFunc()

	var id uint64

	if m.sb.FreeListHead != 0 {
		id = m.sb.FreeListHead

		freed, err := m.readBlockLocked(id)
		if err != nil {
			return 0, fmt.Errorf("blockfile: reading free list head %d: %w", id, err)
		}

		m.sb.FreeListHead = freed.Header.PrevBlockID
	} else {
		id = m.sb.BlockCount
		m.sb.BlockCount++
	}

	h := block.Header{BlockType: t, BlockID: id, CreatedAt: now, ModifiedAt: now}
	if err := m.writeBlockLocked(id, h, nil); err != nil {
		return 0, err
	}

	if err := m.writeSuperblockLocked(now); err != nil {
		return 0, err
	}

	return id, nil
}

// ReserveBlockID bumps the in-memory block count without touching disk.
// The returned id is only valid on disk after a subsequent
// [Manager.FlushSuperblock] durably records the new BlockCount — this is
// the transaction path's id reservation (spec.md §4.2, §9 "reserved IDs on
// abort").
func (m *Manager) ReserveBlockID() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.sb.BlockCount
	m.sb.BlockCount++

	return id
}

// FlushSuperblock serializes the cached superblock to block 0.
func (m *Manager) FlushSuperblock() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.writeSuperblockLocked(nowFunc())
}

func (m *Manager) writeSuperblockLocked(now uint64) error {
	if m.closed {
		return ErrClosed
	}

	buf := m.sb.encode(now, m.sb.JournalHead)

	if _, err := m.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("blockfile: seek superblock: %w", err)
	}

	if _, err := m.file.Write(buf); err != nil {
		return fmt.Errorf("blockfile: write superblock: %w", err)
	}

	return nil
}

// Sync fsyncs the underlying file.
func (m *Manager) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	return m.file.Sync()
}

// AppendJournal allocates a journal_segment block holding entryBytes as its
// payload, links it onto the journal chain, and flushes the superblock.
//
// entryBytes must be no longer than [block.PayloadSize]; journal entry text
// in this codebase (INSERT/UPDATE/DELETE messages) is always far smaller.
func (m *Manager) AppendJournal(entryBytes []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}

	if len(entryBytes) > block.PayloadSize {
		return 0, fmt.Errorf("%w: journal entry %d bytes exceeds %d", ErrInvalidArgument, len(entryBytes), block.PayloadSize)
	}

	now := nowFunc()

	var id uint64

	if m.sb.FreeListHead != 0 {
		id = m.sb.FreeListHead

		freed, err := m.readBlockLocked(id)
		if err != nil {
			return 0, fmt.Errorf("blockfile: reading free list head %d: %w", id, err)
		}

		m.sb.FreeListHead = freed.Header.PrevBlockID
	} else {
		id = m.sb.BlockCount
		m.sb.BlockCount++
	}

	sequence := m.sb.JournalHead + 1

	h := block.Header{
		BlockType:   block.TypeJournalSegment,
		BlockID:     id,
		Sequence:    sequence,
		CreatedAt:   now,
		ModifiedAt:  now,
		PrevBlockID: m.sb.JournalTail,
		Flags:       block.FlagChained,
	}

	if err := m.writeBlockLocked(id, h, entryBytes); err != nil {
		return 0, err
	}

	// JournalHead is kept strictly as a monotonic entry count and
	// JournalTail strictly as the chain pointer (spec.md §9's split of the
	// reference's dual-role journal_head field).
	m.sb.JournalTail = id
	m.sb.JournalHead = sequence

	if err := m.writeSuperblockLocked(now); err != nil {
		return 0, err
	}

	return id, nil
}

// FreeBlock marks id as free and pushes it onto the head of the free list.
//
// Freeing block 0 (the superblock) is forbidden.
func (m *Manager) FreeBlock(id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if id == 0 {
		return ErrReservedBlockID
	}

	now := nowFunc()

	h := block.Header{
		BlockType:   block.TypeFree,
		BlockID:     id,
		CreatedAt:   now,
		ModifiedAt:  now,
		PrevBlockID: m.sb.FreeListHead,
		Flags:       block.FlagDeleted,
	}

	if err := m.writeBlockLocked(id, h, nil); err != nil {
		return err
	}

	m.sb.FreeListHead = id

	return m.writeSuperblockLocked(now)
}

// JournalEntry is a single decoded journal_segment block, as rendered by
// render_journal.
type JournalEntry struct {
	BlockID  uint64 `json:"block_id"`
	Sequence uint64 `json:"sequence"`
	Message  string `json:"message"`
}

// maxJournalEntries bounds render_journal's walk of the chain so a very
// long-lived database can't make introspection unbounded. See SPEC_FULL.md
// Open Question #1. A caller-supplied limit (spec.md §4.4's render_journal
// opts) may only tighten this, never loosen it.
const maxJournalEntries = 1024

// RenderJournal walks the journal chain from the tail backward, stopping at
// (but not including entries older than) since, or after limit entries
// (capped at maxJournalEntries regardless of what limit asks for), whichever
// comes first. limit == 0 means "use the package default"
// (maxJournalEntries). The returned slice is oldest-last (tail first),
// matching the order a caller would encounter while following the chain's
// PrevBlockID links from the tail.
func (m *Manager) RenderJournal(since, limit uint64) ([]JournalEntry, error) {
	effectiveLimit := maxJournalEntries
	if limit > 0 && limit < uint64(effectiveLimit) {
		effectiveLimit = int(limit)
	}

	m.mu.Lock()
	tail := m.sb.JournalTail
	m.mu.Unlock()

	var entries []JournalEntry

	id := tail
	for id != 0 && len(entries) < effectiveLimit {
		b, err := m.ReadBlock(id)
		if err != nil {
			return entries, fmt.Errorf("blockfile: render_journal reading block %d: %w", id, err)
		}

		if b.Header.Sequence <= since {
			break
		}

		entries = append(entries, JournalEntry{
			BlockID:  b.Header.BlockID,
			Sequence: b.Header.Sequence,
			Message:  string(b.Payload),
		})

		id = b.Header.PrevBlockID
	}

	return entries, nil
}

// MarshalIntrospection renders the schema introspection blob rooted at the
// cached superblock: {"version", "block_count", "collections"}.
func (m *Manager) MarshalIntrospection() ([]byte, error) {
	sb := m.Stat()

	return json.Marshal(struct {
		Version     uint32   `json:"version"`
		BlockCount  uint64   `json:"block_count"`
		Collections []string `json:"collections"`
	}{
		Version:     sb.Version,
		BlockCount:  sb.BlockCount,
		Collections: []string{},
	})
}
