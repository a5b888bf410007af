package tsvalue

import (
	"fmt"

	"github.com/sbl8/tempo/tstime"
)

// TSD is a dynamically keyed mapping from a scalar key to a scalar
// sub-series (spec.md §3, "TSD[K,V]"). It tracks added/modified/removed
// keys per tick so a map-over-TSD nested graph (spec.md §4.5) can start
// and stop inner graphs as keys appear and disappear.
type TSD[K comparable, V any] struct {
	owner NodeID
	sched Notifier
	subs  subscriberSet

	items map[K]*Cell[V]

	addedTick    map[K]bool
	modifiedTick map[K]bool
	removedTick  map[K]bool

	lastModified tstime.EngineTime
}

// NewTSD constructs an empty, invalid TSD output owned by owner.
func NewTSD[K comparable, V any](owner NodeID, sched Notifier) *TSD[K, V] {
	return &TSD[K, V]{
		owner:        owner,
		sched:        sched,
		items:        make(map[K]*Cell[V]),
		addedTick:    make(map[K]bool),
		modifiedTick: make(map[K]bool),
		removedTick:  make(map[K]bool),
		lastModified: tstime.MinTime,
	}
}

// BeginTick clears the per-tick added/modified/removed bookkeeping. The
// engine calls this once, for every TSD output in the graph, before
// draining the tick's events.
func (d *TSD[K, V]) BeginTick() {
	d.addedTick = make(map[K]bool)
	d.modifiedTick = make(map[K]bool)
	d.removedTick = make(map[K]bool)
}

// Put creates the key if absent (recording it in AddedKeys) or updates it
// if present (recording it in ModifiedKeys), and writes v to it.
func (d *TSD[K, V]) Put(now tstime.EngineTime, k K, v V) error {
	cell, existed := d.items[k]
	if !existed {
		cell = NewCell[V](d.owner, d.sched)
		d.items[k] = cell
		d.addedTick[k] = true
	}
	if err := cell.ApplyResult(now, v); err != nil {
		return err
	}
	d.modifiedTick[k] = true
	d.lastModified = now
	d.subs.notifyAll(d.sched)
	return nil
}

// Remove deletes k. If k was added earlier in this same tick, the
// addition and removal collapse: neither AddedKeys nor RemovedKeys
// mentions k, and no start/stop of an inner graph is ever observed for it
// (spec.md §8 testable property 7).
func (d *TSD[K, V]) Remove(now tstime.EngineTime, k K) {
	if _, ok := d.items[k]; !ok {
		return
	}
	delete(d.items, k)
	if d.addedTick[k] {
		delete(d.addedTick, k)
		delete(d.modifiedTick, k)
	} else {
		d.removedTick[k] = true
	}
	d.lastModified = now
	d.subs.notifyAll(d.sched)
}

// Get returns the sub-series for k, if present.
func (d *TSD[K, V]) Get(k K) (*Cell[V], bool) {
	c, ok := d.items[k]
	return c, ok
}

// Keys returns every key currently present, in map order (unordered; the
// caller should not depend on iteration order across calls).
func (d *TSD[K, V]) Keys() []K {
	out := make([]K, 0, len(d.items))
	for k := range d.items {
		out = append(out, k)
	}
	return out
}

// AddedKeysTyped returns the keys that started existing this tick.
func (d *TSD[K, V]) AddedKeysTyped() []K { return boolMapKeys(d.addedTick) }

// ModifiedKeysTyped returns the keys written this tick (including newly
// added ones).
func (d *TSD[K, V]) ModifiedKeysTyped() []K { return boolMapKeys(d.modifiedTick) }

// RemovedKeysTyped returns the keys that stopped existing this tick
// (excluding any that were added and removed within the same tick).
func (d *TSD[K, V]) RemovedKeysTyped() []K { return boolMapKeys(d.removedTick) }

// ModifiedItems yields only the sub-series that changed this tick.
func (d *TSD[K, V]) ModifiedItems() map[K]*Cell[V] {
	out := make(map[K]*Cell[V], len(d.modifiedTick))
	for k := range d.modifiedTick {
		if c, ok := d.items[k]; ok {
			out[k] = c
		}
	}
	return out
}

func boolMapKeys[K comparable](m map[K]bool) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func (d *TSD[K, V]) LastModifiedTime() tstime.EngineTime { return d.lastModified }

func (d *TSD[K, V]) Modified(now tstime.EngineTime) bool { return d.lastModified == now }

func (d *TSD[K, V]) Valid() bool { return d.lastModified != tstime.MinTime }

// AllValid reports whether every current sub-series has been written at
// least once.
func (d *TSD[K, V]) AllValid() bool {
	for _, c := range d.items {
		if !c.Valid() {
			return false
		}
	}
	return true
}

func (d *TSD[K, V]) MarkInvalid(now tstime.EngineTime) {
	d.items = make(map[K]*Cell[V])
	d.lastModified = tstime.MinTime
	d.subs.notifyAll(d.sched)
}

func (d *TSD[K, V]) Subscribe(n NodeID)    { d.subs.add(n) }
func (d *TSD[K, V]) Unsubscribe(n NodeID)  { d.subs.remove(n) }
func (d *TSD[K, V]) Subscribers() []NodeID { return d.subs.list() }

// The methods below implement DynamicKeyed with keys erased to their
// fmt.Sprint string form, so a map-over-TSD node in the engine package can
// drive per-key sub-graph instantiation without needing to know K or V
// (spec.md §6.3 "map-over-TSD").

func (d *TSD[K, V]) AddedKeys() []string    { return tokens(boolMapKeys(d.addedTick)) }
func (d *TSD[K, V]) ModifiedKeys() []string { return tokens(boolMapKeys(d.modifiedTick)) }
func (d *TSD[K, V]) RemovedKeys() []string  { return tokens(boolMapKeys(d.removedTick)) }

func (d *TSD[K, V]) TokenKeys() []string {
	out := make([]string, 0, len(d.items))
	for k := range d.items {
		out = append(out, fmt.Sprint(k))
	}
	return out
}

// GetOutput returns the sub-series for the given fmt.Sprint-form token, as
// a type-erased Output.
func (d *TSD[K, V]) GetOutput(token string) (Output, bool) {
	for k, c := range d.items {
		if fmt.Sprint(k) == token {
			return c, true
		}
	}
	return nil, false
}

func tokens[K comparable](ks []K) []string {
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = fmt.Sprint(k)
	}
	return out
}
