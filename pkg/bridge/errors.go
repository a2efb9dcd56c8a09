package bridge

import "errors"

// ErrInvalidHandle indicates a handle pointer that is nil, unregistered, or
// belongs to a database that has since been closed (spec.md §4.4,
// "Handle validity").
var ErrInvalidHandle = errors.New("bridge: invalid or unregistered handle")
