// Package engine runs a built graph.Graph against live tsvalue outputs:
// it owns node lifecycle, the pending/future-event scheduler, and the
// SIMULATION/REAL_TIME evaluation loop (spec.md §4, §5, §6).
package engine

import (
	"errors"
	"fmt"

	"github.com/sbl8/tempo/tsvalue"
)

// WiringError reports a shape, type, or topology mistake caught before
// the graph starts running — the Go analogue of spec.md §7's "detected
// before the graph is built" category.
type WiringError struct {
	Node string
	Err  error
}

func (e *WiringError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("wiring error: %v", e.Err)
	}
	return fmt.Sprintf("wiring error at node %q: %v", e.Node, e.Err)
}

func (e *WiringError) Unwrap() error { return e.Err }

// EvalError reports a failure raised by a node's own compute function
// during evaluation. It carries the tick it happened on so observers can
// correlate it with other per-tick telemetry.
type EvalError struct {
	Node string
	Tick int64
	Err  error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("eval error at node %q (tick %d): %v", e.Node, e.Tick, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

// TypeCheckError reports a value arriving with a shape the receiving
// output did not expect — reserved for adapters and graphspec, which
// accept untyped input from outside the graph.
type TypeCheckError struct {
	Where string
	Err   error
}

func (e *TypeCheckError) Error() string {
	return fmt.Sprintf("type check error in %s: %v", e.Where, e.Err)
}

func (e *TypeCheckError) Unwrap() error { return e.Err }

// ResourceError reports a failure acquiring or releasing something
// outside the graph itself — a file handle, socket, database connection
// — during a push-source or sink node's start/stop.
type ResourceError struct {
	Node string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource error at node %q: %v", e.Node, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// ErrGraphNotBuilt reports that Build has not succeeded. No function in
// this package currently returns it.
var ErrGraphNotBuilt = errors.New("engine: graph has not been built")

// ErrAlreadyRunning reports that the engine is already running. No
// function in this package currently returns it.
var ErrAlreadyRunning = errors.New("engine: already running")

func errRefTargetMissing(target tsvalue.NodeID) error {
	return fmt.Errorf("reference target %q is not a live node", target)
}

func errRefPortMissing(target tsvalue.NodeID, port string) error {
	return fmt.Errorf("reference target %q has no output %q", target, port)
}
