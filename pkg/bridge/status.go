package bridge

import (
	"errors"

	"github.com/hyperpolymath/lithoglyph-sub001/pkg/block"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/blockfile"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/txn"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/verify"
)

// Status is the 32-bit integer result code the C-ABI surface returns
// (spec.md §6). Its values are fixed by the wire contract and must not be
// renumbered.
type Status int32

// Status codes, spec.md §6.
const (
	StatusOK                  Status = 0
	StatusInternal            Status = 1
	StatusNotFound            Status = 2
	StatusInvalidArgument     Status = 3
	StatusOutOfMemory         Status = 4
	StatusNotImplemented      Status = 5
	StatusTxnNotActive        Status = 6
	StatusTxnAlreadyCommitted Status = 7
	StatusIOError             Status = 8
	StatusCorruption          Status = 9
	StatusConflict            Status = 10
	StatusAlreadyExists       Status = 11
)

// String renders a Status as its lower-case status name. [ErrorBlob]
// carries the numeric value, not this name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInternal:
		return "internal"
	case StatusNotFound:
		return "not_found"
	case StatusInvalidArgument:
		return "invalid_argument"
	case StatusOutOfMemory:
		return "out_of_memory"
	case StatusNotImplemented:
		return "not_implemented"
	case StatusTxnNotActive:
		return "txn_not_active"
	case StatusTxnAlreadyCommitted:
		return "txn_already_committed"
	case StatusIOError:
		return "io_error"
	case StatusCorruption:
		return "corruption"
	case StatusConflict:
		return "conflict"
	case StatusAlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// StatusFor classifies err into the status code the ABI surface should
// return, deriving it mechanically from the sentinel errors each
// lower-level package already exports rather than hand-coding the mapping
// at every call site (SPEC_FULL.md's ERROR HANDLING section).
func StatusFor(err error) Status {
	if err == nil {
		return StatusOK
	}

	switch {
	case errors.Is(err, ErrInvalidHandle),
		errors.Is(err, blockfile.ErrInvalidArgument),
		errors.Is(err, txn.ErrInvalidArgument),
		errors.Is(err, verify.ErrInvalidArgument):
		return StatusInvalidArgument

	case errors.Is(err, txn.ErrAlreadyCommitted):
		return StatusTxnAlreadyCommitted

	case errors.Is(err, txn.ErrNotActive):
		return StatusTxnNotActive

	case errors.Is(err, verify.ErrNotFound):
		return StatusNotFound

	case errors.Is(err, blockfile.ErrCorruptSuperblock),
		errors.Is(err, block.ErrChecksumMismatch),
		errors.Is(err, block.ErrInvalidMagic),
		errors.Is(err, block.ErrUnsupportedVersion):
		return StatusCorruption

	case errors.Is(err, blockfile.ErrInvalidBlock),
		errors.Is(err, blockfile.ErrClosed),
		errors.Is(err, txn.ErrCommitFailed):
		return StatusIOError

	default:
		return StatusInternal
	}
}

// ErrorBlob is the {"status": N, "error": "..."} JSON object returned
// alongside any non-ok status (spec.md §6).
type ErrorBlob struct {
	Status Status `json:"status"`
	Error  string `json:"error"`
}

// NewErrorBlob builds the error blob for err.
func NewErrorBlob(err error) ErrorBlob {
	return ErrorBlob{Status: StatusFor(err), Error: err.Error()}
}
