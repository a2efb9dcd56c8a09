// Package block implements the fixed 4 KiB on-disk block format: header
// layout, CRC32C checksums, and block type identifiers.
//
// A block is always exactly [Size] bytes on disk: a [HeaderSize]-byte header
// followed by a zero-padded payload region. Every multi-byte header field is
// little-endian, regardless of host byte order.
package block

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// Size is the total on-disk size of a block, header plus payload.
const Size = 4096

// HeaderSize is the size of the fixed block header, in bytes.
const HeaderSize = 64

// PayloadSize is the size of the payload region that follows the header.
const PayloadSize = Size - HeaderSize

// Magic identifies a valid block. Every block not of this magic is rejected.
const Magic uint32 = 0x4C474800

// Version is the only supported on-disk block format version.
const Version uint16 = 1

// Header field byte offsets, relative to the start of the block.
const (
	offMagic        = 0
	offVersion      = 4
	offBlockType    = 6
	offBlockID      = 8
	offSequence     = 16
	offCreatedAt    = 24
	offModifiedAt   = 32
	offPayloadLen   = 40
	offChecksum     = 44
	offPrevBlockID  = 48
	offFlags        = 56
	offReserved     = 60
	offPayloadStart = HeaderSize
)

// Flag bits for [Header.Flags].
const (
	FlagCompressed uint32 = 1 << 0
	FlagEncrypted  uint32 = 1 << 1
	FlagChained    uint32 = 1 << 2
	FlagDeleted    uint32 = 1 << 3
)

// Type identifies the structural role of a block's payload.
type Type uint16

// Block types recognized by the storage core.
const (
	TypeFree             Type = 0x0000
	TypeSuperblock       Type = 0x0001
	TypeCollectionMeta   Type = 0x0010
	TypeDocument         Type = 0x0011
	TypeDocumentOverflow Type = 0x0012
	TypeEdgeMeta         Type = 0x0020
	TypeEdge             Type = 0x0021
	TypeIndexRoot        Type = 0x0030
	TypeIndexInternal    Type = 0x0031
	TypeIndexLeaf        Type = 0x0032
	TypeJournalSegment   Type = 0x0040
	TypeSchema           Type = 0x0050
	TypeConstraint       Type = 0x0051
	TypeMigration        Type = 0x0060
)

// Name returns a short human-readable name for t, used by render_block and
// CLI listings. Unknown types render as "unknown(0xNNNN)".
func (t Type) Name() string {
	switch t {
	case TypeFree:
		return "free"
	case TypeSuperblock:
		return "superblock"
	case TypeCollectionMeta:
		return "collection_meta"
	case TypeDocument:
		return "document"
	case TypeDocumentOverflow:
		return "document_overflow"
	case TypeEdgeMeta:
		return "edge_meta"
	case TypeEdge:
		return "edge"
	case TypeIndexRoot:
		return "index_root"
	case TypeIndexInternal:
		return "index_internal"
	case TypeIndexLeaf:
		return "index_leaf"
	case TypeJournalSegment:
		return "journal_segment"
	case TypeSchema:
		return "schema"
	case TypeConstraint:
		return "constraint"
	case TypeMigration:
		return "migration"
	default:
		return fmt.Sprintf("unknown(0x%04x)", uint16(t))
	}
}

// Sentinel errors returned by [Decode].
//
// Callers should use [errors.Is] to classify failures.
var (
	ErrInvalidMagic       = errors.New("block: invalid magic")
	ErrUnsupportedVersion = errors.New("block: unsupported version")
	ErrPayloadTooLarge    = errors.New("block: payload exceeds capacity")
	ErrChecksumMismatch   = errors.New("block: checksum mismatch")
	ErrShortBuffer        = errors.New("block: buffer shorter than block size")
)

// crc32cTable is the Castagnoli CRC32C table from hash/crc32.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the Castagnoli CRC32 checksum of p.
func CRC32C(p []byte) uint32 {
	return crc32.Checksum(p, crc32cTable)
}

// Header is the decoded, native-endian form of a block's 64-byte header.
type Header struct {
	BlockType   Type
	BlockID     uint64
	Sequence    uint64
	CreatedAt   uint64 // unix millis
	ModifiedAt  uint64 // unix millis
	PayloadLen  uint32
	Checksum    uint32
	PrevBlockID uint64
	Flags       uint32
	ReservedU32 uint32
}

// IsDeleted reports whether the deleted flag bit is set.
func (h Header) IsDeleted() bool { return h.Flags&FlagDeleted != 0 }

// IsChained reports whether the chained flag bit is set.
func (h Header) IsChained() bool { return h.Flags&FlagChained != 0 }

// Block is a fully decoded block: its header plus the declared-length slice
// of its payload (not the zero padding beyond PayloadLen).
type Block struct {
	Header  Header
	Payload []byte // length == Header.PayloadLen
}

// Encode serializes h and payload into a [Size]-byte block.
//
// payload must be no longer than [PayloadSize]; Encode panics otherwise,
// since every caller in this codebase already validates length before
// buffering a write (the caller-facing path rejects oversized payloads with
// txn.ErrInvalidArgument).
// The checksum is computed over the full zero-padded payload region and
// written into the returned buffer's header.
func Encode(h Header, payload []byte) []byte {
	if len(payload) > PayloadSize {
		panic(fmt.Sprintf("block: payload length %d exceeds capacity %d", len(payload), PayloadSize))
	}

	buf := make([]byte, Size)

	binary.LittleEndian.PutUint32(buf[offMagic:], Magic)
	binary.LittleEndian.PutUint16(buf[offVersion:], Version)
	binary.LittleEndian.PutUint16(buf[offBlockType:], uint16(h.BlockType))
	binary.LittleEndian.PutUint64(buf[offBlockID:], h.BlockID)
	binary.LittleEndian.PutUint64(buf[offSequence:], h.Sequence)
	binary.LittleEndian.PutUint64(buf[offCreatedAt:], h.CreatedAt)
	binary.LittleEndian.PutUint64(buf[offModifiedAt:], h.ModifiedAt)
	binary.LittleEndian.PutUint32(buf[offPayloadLen:], uint32(len(payload)))
	binary.LittleEndian.PutUint64(buf[offPrevBlockID:], h.PrevBlockID)
	binary.LittleEndian.PutUint32(buf[offFlags:], h.Flags)
	binary.LittleEndian.PutUint32(buf[offReserved:], h.ReservedU32)

	copy(buf[offPayloadStart:], payload)
	// Bytes beyond len(payload) are already zero (make initializes to zero).

	checksum := CRC32C(buf[offPayloadStart:])
	binary.LittleEndian.PutUint32(buf[offChecksum:], checksum)

	return buf
}

// Decode parses and validates a [Size]-byte on-disk block.
//
// Returns one of [ErrShortBuffer], [ErrInvalidMagic], [ErrUnsupportedVersion],
// [ErrPayloadTooLarge], or [ErrChecksumMismatch] on any invariant violation.
func Decode(buf []byte) (Block, error) {
	if len(buf) < Size {
		return Block{}, fmt.Errorf("%w: got %d bytes", ErrShortBuffer, len(buf))
	}

	magic := binary.LittleEndian.Uint32(buf[offMagic:])
	if magic != Magic {
		return Block{}, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, magic)
	}

	version := binary.LittleEndian.Uint16(buf[offVersion:])
	if version != Version {
		return Block{}, fmt.Errorf("%w: got %d", ErrUnsupportedVersion, version)
	}

	payloadLen := binary.LittleEndian.Uint32(buf[offPayloadLen:])
	if payloadLen > PayloadSize {
		return Block{}, fmt.Errorf("%w: declared %d, capacity %d", ErrPayloadTooLarge, payloadLen, PayloadSize)
	}

	storedChecksum := binary.LittleEndian.Uint32(buf[offChecksum:])
	computed := CRC32C(buf[offPayloadStart : offPayloadStart+PayloadSize])
	if storedChecksum != computed {
		return Block{}, fmt.Errorf("%w: stored 0x%08x computed 0x%08x", ErrChecksumMismatch, storedChecksum, computed)
	}

	h := Header{
		BlockType:   Type(binary.LittleEndian.Uint16(buf[offBlockType:])),
		BlockID:     binary.LittleEndian.Uint64(buf[offBlockID:]),
		Sequence:    binary.LittleEndian.Uint64(buf[offSequence:]),
		CreatedAt:   binary.LittleEndian.Uint64(buf[offCreatedAt:]),
		ModifiedAt:  binary.LittleEndian.Uint64(buf[offModifiedAt:]),
		PayloadLen:  payloadLen,
		Checksum:    storedChecksum,
		PrevBlockID: binary.LittleEndian.Uint64(buf[offPrevBlockID:]),
		Flags:       binary.LittleEndian.Uint32(buf[offFlags:]),
		ReservedU32: binary.LittleEndian.Uint32(buf[offReserved:]),
	}

	payload := make([]byte, payloadLen)
	copy(payload, buf[offPayloadStart:offPayloadStart+payloadLen])

	return Block{Header: h, Payload: payload}, nil
}
