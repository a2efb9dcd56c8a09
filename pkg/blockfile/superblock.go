package blockfile

import (
	"encoding/binary"

	"github.com/hyperpolymath/lithoglyph-sub001/pkg/block"
)

// Superblock payload field offsets, relative to the start of the block's
// payload region (not the block's on-disk offset).
const (
	sbOffVersion          = 0
	sbOffBlockCount       = 4
	sbOffFreeListHead     = 12
	sbOffJournalHead      = 20
	sbOffJournalTail      = 28
	sbOffRootCollectionID = 36
	sbOffFlags            = 44
	sbOffCreatedAt        = 48
	sbOffLastCheckpoint   = 56
	sbPayloadUsed         = 64
)

// Superblock is the decoded payload of block 0: global file state, the root
// of the free list, and the root of the journal chain.
type Superblock struct {
	Version          uint32
	BlockCount       uint64
	FreeListHead     uint64
	JournalHead      uint64 // monotonic count of appended journal entries
	JournalTail      uint64 // block id of the newest journal_segment
	RootCollectionID uint64
	Flags            uint32
	CreatedAt        uint64
	LastCheckpoint   uint64
}

// encode serializes sb into a payload buffer and wraps it in a superblock
// block at id 0.
func (sb Superblock) encode(now uint64, sequence uint64) []byte {
	payload := make([]byte, sbPayloadUsed)

	binary.LittleEndian.PutUint32(payload[sbOffVersion:], sb.Version)
	binary.LittleEndian.PutUint64(payload[sbOffBlockCount:], sb.BlockCount)
	binary.LittleEndian.PutUint64(payload[sbOffFreeListHead:], sb.FreeListHead)
	binary.LittleEndian.PutUint64(payload[sbOffJournalHead:], sb.JournalHead)
	binary.LittleEndian.PutUint64(payload[sbOffJournalTail:], sb.JournalTail)
	binary.LittleEndian.PutUint64(payload[sbOffRootCollectionID:], sb.RootCollectionID)
	binary.LittleEndian.PutUint32(payload[sbOffFlags:], sb.Flags)
	binary.LittleEndian.PutUint64(payload[sbOffCreatedAt:], sb.CreatedAt)
	binary.LittleEndian.PutUint64(payload[sbOffLastCheckpoint:], sb.LastCheckpoint)

	h := block.Header{
		BlockType:  block.TypeSuperblock,
		BlockID:    0,
		Sequence:   sequence,
		CreatedAt:  sb.CreatedAt,
		ModifiedAt: now,
	}

	return block.Encode(h, payload)
}

// decodeSuperblock decodes a superblock payload back into a Superblock.
func decodeSuperblock(payload []byte) Superblock {
	var sb Superblock

	need := func(off int) bool { return off+8 <= len(payload) }

	sb.Version = binary.LittleEndian.Uint32(payload[sbOffVersion:])
	if need(sbOffBlockCount) {
		sb.BlockCount = binary.LittleEndian.Uint64(payload[sbOffBlockCount:])
	}

	if need(sbOffFreeListHead) {
		sb.FreeListHead = binary.LittleEndian.Uint64(payload[sbOffFreeListHead:])
	}

	if need(sbOffJournalHead) {
		sb.JournalHead = binary.LittleEndian.Uint64(payload[sbOffJournalHead:])
	}

	if need(sbOffJournalTail) {
		sb.JournalTail = binary.LittleEndian.Uint64(payload[sbOffJournalTail:])
	}

	if need(sbOffRootCollectionID) {
		sb.RootCollectionID = binary.LittleEndian.Uint64(payload[sbOffRootCollectionID:])
	}

	if sbOffFlags+4 <= len(payload) {
		sb.Flags = binary.LittleEndian.Uint32(payload[sbOffFlags:])
	}

	if need(sbOffCreatedAt) {
		sb.CreatedAt = binary.LittleEndian.Uint64(payload[sbOffCreatedAt:])
	}

	if need(sbOffLastCheckpoint) {
		sb.LastCheckpoint = binary.LittleEndian.Uint64(payload[sbOffLastCheckpoint:])
	}

	return sb
}
