package tsvalue

import (
	"fmt"

	"github.com/sbl8/tempo/tstime"
)

// Output is the common surface every time-series output type shares:
// scalar cells and the composite containers (TSB, TSD, TSL, BUFF) all
// implement it so the engine can hold a node's output, walk its
// subscribers, and invalidate it without knowing its concrete type
// (spec.md Design Notes: "dispatch via method tables" over the closed set
// {TS, TSB, TSD, TSL, BUFF, Reference}).
type Output interface {
	// LastModifiedTime is the engine time this output was last written,
	// or tstime.MinTime if it has never been written.
	LastModifiedTime() tstime.EngineTime
	// Modified reports whether this output was written at engine time now.
	Modified(now tstime.EngineTime) bool
	// Valid reports whether this output has ever been written.
	Valid() bool
	// AllValid reports whether every leaf of this output is valid. Equal
	// to Valid for scalar outputs; for composites, true only once every
	// child has been written at least once.
	AllValid() bool
	// MarkInvalid clears the value and sets Valid to false. Subscribers
	// are notified; they remain subscribed.
	MarkInvalid(now tstime.EngineTime)
	// Subscribe adds n to the subscriber set if not already present
	// (invariant: a node appears at most once).
	Subscribe(n NodeID)
	// Unsubscribe removes n from the subscriber set.
	Unsubscribe(n NodeID)
	// Subscribers returns the subscriber set in insertion order.
	Subscribers() []NodeID
}

// subscriberSet is the shared ordered-set-of-nodes bookkeeping every
// Output implementation embeds.
type subscriberSet struct {
	order []NodeID
	index map[NodeID]int
}

func (s *subscriberSet) add(n NodeID) {
	if s.index == nil {
		s.index = make(map[NodeID]int)
	}
	if _, ok := s.index[n]; ok {
		return
	}
	s.index[n] = len(s.order)
	s.order = append(s.order, n)
}

func (s *subscriberSet) remove(n NodeID) {
	i, ok := s.index[n]
	if !ok {
		return
	}
	delete(s.index, n)
	s.order = append(s.order[:i], s.order[i+1:]...)
	for j := i; j < len(s.order); j++ {
		s.index[s.order[j]] = j
	}
}

func (s *subscriberSet) list() []NodeID {
	out := make([]NodeID, len(s.order))
	copy(out, s.order)
	return out
}

func (s *subscriberSet) notifyAll(sched Notifier) {
	for _, n := range s.order {
		sched.Notify(n)
	}
}

// Cell is a scalar time-series output: the concrete implementation behind
// every plain TS[T] in the wiring layer, and the leaf type composite
// containers (TSB fields, TSD values, TSL elements) are built from.
type Cell[T any] struct {
	owner NodeID
	sched Notifier
	subs  subscriberSet

	value T
	delta T
	lastModified tstime.EngineTime
	valid        bool
}

// NewCell constructs an unbound, invalid scalar output owned by owner.
func NewCell[T any](owner NodeID, sched Notifier) *Cell[T] {
	return &Cell[T]{owner: owner, sched: sched, lastModified: tstime.MinTime}
}

// CanApplyResult reports whether ApplyResult may run at engine time now:
// the default, at-most-one-write-per-tick-per-output rule (spec.md §4.1,
// §8 invariant 2). Every output in this repository — including BUFF —
// follows this same rule; see DESIGN.md for why the "append twice in one
// tick" alternative raised in spec.md's Open Questions was rejected.
func (c *Cell[T]) CanApplyResult(now tstime.EngineTime) bool {
	return c.lastModified != now
}

// ApplyResult commits a new value. Returns an error if CanApplyResult
// would be false; callers (the engine) are expected to have already
// checked eligibility, but this guards direct use from tests/adapters.
func (c *Cell[T]) ApplyResult(now tstime.EngineTime, v T) error {
	if !c.CanApplyResult(now) {
		return ErrAlreadyModified
	}
	c.value = v
	c.delta = v
	c.valid = true
	c.lastModified = now
	c.subs.notifyAll(c.sched)
	return nil
}

// Value returns the current committed value.
func (c *Cell[T]) Value() T { return c.value }

// DeltaValue returns the change since the last tick that modified this
// output. Equal to Value for scalar cells.
func (c *Cell[T]) DeltaValue() T { return c.delta }

func (c *Cell[T]) LastModifiedTime() tstime.EngineTime { return c.lastModified }

func (c *Cell[T]) Modified(now tstime.EngineTime) bool { return c.lastModified == now }

func (c *Cell[T]) Valid() bool { return c.valid }

func (c *Cell[T]) AllValid() bool { return c.valid }

func (c *Cell[T]) MarkInvalid(now tstime.EngineTime) {
	var zero T
	c.value = zero
	c.valid = false
	c.subs.notifyAll(c.sched)
}

func (c *Cell[T]) Subscribe(n NodeID) { c.subs.add(n) }

func (c *Cell[T]) Unsubscribe(n NodeID) { c.subs.remove(n) }

func (c *Cell[T]) Subscribers() []NodeID { return c.subs.list() }

// Owner returns the node that produces this output.
func (c *Cell[T]) Owner() NodeID { return c.owner }

// ValueString renders the current value via fmt.Sprint, letting engine
// code read a selector value (e.g. for a switch node) without knowing T.
func (c *Cell[T]) ValueString() string { return fmt.Sprint(c.value) }
