package utils

import "errors"

// Error kinds returned by the library. Every error returned by a public
// operation wraps exactly one of them and can be discriminated with [errors.Is].
var (
	// ErrInvalidArgument reports a malformed or out-of-range input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrLogic reports an operation that is impossible for the current scheme or state.
	ErrLogic = errors.New("logic error")
	// ErrRuntime reports a failure of an underlying stream.
	ErrRuntime = errors.New("runtime error")
	// ErrOutOfMemory reports that a memory pool could not serve an allocation.
	ErrOutOfMemory = errors.New("out of memory")
)
