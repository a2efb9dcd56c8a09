package txn

import "errors"

// Sentinel errors returned by this package.
var (
	// ErrInvalidArgument marks a malformed request: oversized payload,
	// zero-length apply data, or a mutating call on a read-only
	// transaction.
	ErrInvalidArgument = errors.New("txn: invalid argument")

	// ErrNotActive indicates an operation on a transaction that has
	// been aborted.
	ErrNotActive = errors.New("txn: not active")

	// ErrAlreadyCommitted indicates an operation, including a second
	// Commit or an Abort, on a transaction that has already committed.
	ErrAlreadyCommitted = errors.New("txn: already committed")

	// ErrCommitFailed wraps an I/O failure during phases 1-3 of commit
	// (journal writes, fsync). The transaction remains active: callers may
	// retry Commit or call Abort.
	ErrCommitFailed = errors.New("txn: commit failed")
)
