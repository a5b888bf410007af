package graph

import (
	"github.com/sbl8/tempo/tstime"
	"github.com/sbl8/tempo/tsvalue"
)

// OutputFactory constructs a node's live outputs, keyed by port name, once
// its NodeID and scheduler are known. Called once per instantiation — for
// a nested node that may be more than once per graph run (map-over-TSD
// instantiates one branch per key).
type OutputFactory func(owner tsvalue.NodeID, sched tsvalue.Notifier) map[string]tsvalue.Output

// EvalFunc is the compute function a wiring-time author supplies for a
// node: read inputs, write outputs, return. A pull-source node's EvalFunc
// produces its next value; a sink node's has no outputs.
type EvalFunc func(now tstime.EngineTime, inputs map[string]tsvalue.Output, outputs map[string]tsvalue.Output) error

// LifecycleFunc runs once at node start or stop, where push-source and
// sink nodes acquire or release the external resource they wrap.
type LifecycleFunc func(outputs map[string]tsvalue.Output) error

// Rescheduler is the optional capability a pull-source's NewOutputs-bound
// Notifier may satisfy, letting its Eval closure request its own next
// wakeup: a pull-source reschedules itself on every evaluation rather than
// relying on the engine to drive it repeatedly. engine.Scheduler
// implements this; a pull-source's NewOutputs should stash the Notifier it
// receives somewhere its Eval closure can reach, then type-assert it
// against Rescheduler to call ScheduleAt.
type Rescheduler interface {
	ScheduleAt(at tstime.EngineTime, id tsvalue.NodeID)
}

// Kind names the broad category of computation a node performs
// (spec.md §5: pull-source, push-source, compute, sink, nested).
type Kind uint8

const (
	KindPullSource Kind = iota
	KindPushSource
	KindCompute
	KindSink
	KindNestedMap
	KindNestedSwitch
	KindNestedTryExcept
)

func (k Kind) String() string {
	switch k {
	case KindPullSource:
		return "pull-source"
	case KindPushSource:
		return "push-source"
	case KindCompute:
		return "compute"
	case KindSink:
		return "sink"
	case KindNestedMap:
		return "nested-map"
	case KindNestedSwitch:
		return "nested-switch"
	case KindNestedTryExcept:
		return "nested-try-except"
	default:
		return "unknown"
	}
}

// Edge describes one wired connection from a producing node's output to a
// consuming node's input, both within the same Graph. Feedback marks an
// edge that closes a cycle deliberately: the engine delivers its value one
// tick later than the producer's write (spec.md §6.3, C8), so it never
// participates in topological-rank computation or cycle detection.
// ExternalSource marks an Edge whose value comes from outside the graph
// that owns it rather than from a sibling node — the per-key value fed
// into a map-over-TSD branch, or a pass-through input value fed into a
// switch or try/except branch (a switch's selector is not passed in) (spec.md §6.3). The engine binds these at
// instantiation time instead of at Graph.Build time.
const ExternalSource = -1

type Edge struct {
	FromNode   int
	FromOutput string
	ToInput    string
	Feedback   bool

	// RefFollow marks an edge whose producer output carries a reference
	// value (tsvalue.Ref) rather than the consumed series itself: the
	// engine binds ToInput to whatever node/port the reference currently
	// names, rebinding it live whenever the reference's value changes.
	RefFollow bool
}

// Node is one compute unit in a built Graph. Kind and Sig are fixed at
// build time; Rank is computed by Graph.Build and used by the engine's
// pending set to order same-tick evaluation (spec.md §4.1, §6.1).
type Node struct {
	Index   int
	Name    string
	Kind    Kind
	Sig     Signature
	Scalars map[string]any
	Inputs  []Edge
	Rank    int

	NewOutputs OutputFactory
	Eval       EvalFunc
	OnStart    LifecycleFunc
	OnStop     LifecycleFunc

	// MapTemplate is the sub-graph template instantiated once per active
	// key when Kind == KindNestedMap (spec.md §6.3 "map-over-TSD").
	MapTemplate *Graph
	// MapDriverInput names the input port carrying the TSD being mapped
	// over.
	MapDriverInput string

	// SwitchCases maps a selector value (stringified) to the sub-graph
	// template active for that selector, when Kind == KindNestedSwitch.
	SwitchCases map[string]*Graph
	// SwitchSelectorInput names the input port carrying the selector.
	SwitchSelectorInput string

	// TryTemplate is the sub-graph evaluated under exception isolation
	// when Kind == KindNestedTryExcept (spec.md §6.3 "try/except").
	TryTemplate *Graph
}
