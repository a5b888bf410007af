package tsvalue

import "errors"

// ErrAlreadyModified is returned by ApplyResult when CanApplyResult is
// false — an output has already been written this tick (spec.md §4.1,
// the at-most-one-write-per-tick-per-output invariant).
var ErrAlreadyModified = errors.New("tsvalue: output already modified this tick")

// ErrUnbound reports an input read before it has been bound to an output.
// No function in this package currently returns it.
var ErrUnbound = errors.New("tsvalue: input is not bound to an output")
