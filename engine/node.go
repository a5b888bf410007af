package engine

import (
	"github.com/sbl8/tempo/graph"
	"github.com/sbl8/tempo/tstime"
	"github.com/sbl8/tempo/tsvalue"
)

// LifecycleState is a node's position in the build → start → evaluate* →
// stop state machine (spec.md §5).
type LifecycleState uint8

const (
	StateBuilt LifecycleState = iota
	StateStarted
	StateStopped
)

func (s LifecycleState) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Node is the live runtime counterpart of a graph.Node: the structural
// definition plus everything that changes while the graph runs.
type Node struct {
	ID  tsvalue.NodeID
	Def *graph.Node

	Inputs  map[string]tsvalue.Output
	Outputs map[string]tsvalue.Output

	state LifecycleState

	// lastEvaluated is the last engine time this node actually ran Eval,
	// enforcing the at-most-once-per-tick invariant.
	lastEvaluated tstime.EngineTime
}

// NewNode constructs a runtime Node wrapping def, initially in the Built
// state with no bound inputs or outputs.
func NewNode(id tsvalue.NodeID, def *graph.Node) *Node {
	return &Node{
		ID:            id,
		Def:           def,
		Inputs:        make(map[string]tsvalue.Output),
		Outputs:       make(map[string]tsvalue.Output),
		state:         StateBuilt,
		lastEvaluated: tstime.MinTime,
	}
}

// State returns the node's current lifecycle state.
func (n *Node) State() LifecycleState { return n.state }

// Start transitions Built -> Started, running OnStart if set. Calling
// Start on an already-started node is a no-op.
func (n *Node) Start() error {
	if n.state == StateStarted {
		return nil
	}
	if n.Def.OnStart != nil {
		if err := n.Def.OnStart(n.Outputs); err != nil {
			return &ResourceError{Node: string(n.ID), Err: err}
		}
	}
	n.state = StateStarted
	return nil
}

// Stop transitions Started -> Stopped, running OnStop if set.
func (n *Node) Stop() error {
	if n.state == StateStopped {
		return nil
	}
	if n.Def.OnStop != nil {
		if err := n.Def.OnStop(n.Outputs); err != nil {
			return &ResourceError{Node: string(n.ID), Err: err}
		}
	}
	n.state = StateStopped
	return nil
}

// Eligible reports whether this node may evaluate at now: it must be
// started, not already evaluated this tick, and have at least one valid
// input. Nodes carry no per-input valid/all_valid requirements: a node
// with several inputs is eligible as soon as any one of them is valid,
// whatever the state of the others. Source nodes (no inputs) are always
// eligible once started.
func (n *Node) Eligible(now tstime.EngineTime) bool {
	if n.state != StateStarted {
		return false
	}
	if n.lastEvaluated == now {
		return false
	}
	if len(n.Inputs) == 0 {
		return true
	}
	for _, in := range n.Inputs {
		if in.Valid() {
			return true
		}
	}
	return false
}

// MarkEvaluated records that Eval ran at now, enforcing the
// at-most-once-per-tick invariant for subsequent Eligible checks.
func (n *Node) MarkEvaluated(now tstime.EngineTime) { n.lastEvaluated = now }

// Ticked reports whether any bound input changed at now.
func (n *Node) Ticked(now tstime.EngineTime) bool {
	for _, in := range n.Inputs {
		if in.Modified(now) {
			return true
		}
	}
	return false
}
