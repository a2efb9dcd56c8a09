package blockfile

import "errors"

// Sentinel errors returned by this package.
//
// Callers should classify failures with [errors.Is]; the bridge layer maps
// these onto the wire status codes (see pkg/bridge/status.go).
var (
	// ErrInvalidBlock indicates a short read or a decode failure while
	// reading a block (corruption, bad magic/version, checksum mismatch).
	ErrInvalidBlock = errors.New("blockfile: invalid block")

	// ErrCorruptSuperblock indicates block 0 failed to decode as a
	// superblock, or decoded but failed a superblock-specific invariant.
	ErrCorruptSuperblock = errors.New("blockfile: corrupt superblock")

	// ErrReservedBlockID indicates an operation targeted block id 0, which
	// is reserved for the superblock and can never be freed or reused.
	ErrReservedBlockID = errors.New("blockfile: block id 0 is reserved")

	// ErrClosed indicates an operation on a [Manager] that has been closed.
	ErrClosed = errors.New("blockfile: closed")

	// ErrInvalidArgument indicates a malformed argument (empty path,
	// oversized payload, unknown block id).
	ErrInvalidArgument = errors.New("blockfile: invalid argument")
)
