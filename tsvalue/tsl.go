package tsvalue

import "github.com/sbl8/tempo/tstime"

// TSL is a fixed-length vector of scalar sub-series (spec.md §3,
// "TSL[V,N]") — unlike TSD its length and index set are static and known
// at wiring time.
type TSL[V any] struct {
	owner NodeID
	sched Notifier
	subs  subscriberSet

	elems []*Cell[V]

	lastModified tstime.EngineTime
}

// NewTSL constructs a TSL of the given fixed length, every slot starting
// out unbound and invalid.
func NewTSL[V any](owner NodeID, sched Notifier, n int) *TSL[V] {
	l := &TSL[V]{
		owner:        owner,
		sched:        sched,
		elems:        make([]*Cell[V], n),
		lastModified: tstime.MinTime,
	}
	for i := range l.elems {
		l.elems[i] = NewCell[V](owner, sched)
	}
	return l
}

// Len returns the fixed length of the vector.
func (l *TSL[V]) Len() int { return len(l.elems) }

// At returns the sub-series at index i.
func (l *TSL[V]) At(i int) *Cell[V] { return l.elems[i] }

// Put writes v into slot i.
func (l *TSL[V]) Put(now tstime.EngineTime, i int, v V) error {
	if err := l.elems[i].ApplyResult(now, v); err != nil {
		return err
	}
	l.lastModified = now
	l.subs.notifyAll(l.sched)
	return nil
}

func (l *TSL[V]) LastModifiedTime() tstime.EngineTime { return l.lastModified }

func (l *TSL[V]) Modified(now tstime.EngineTime) bool {
	if l.lastModified == now {
		return true
	}
	for _, e := range l.elems {
		if e.Modified(now) {
			return true
		}
	}
	return false
}

func (l *TSL[V]) Valid() bool {
	for _, e := range l.elems {
		if e.Valid() {
			return true
		}
	}
	return false
}

func (l *TSL[V]) AllValid() bool {
	for _, e := range l.elems {
		if !e.Valid() {
			return false
		}
	}
	return true
}

func (l *TSL[V]) MarkInvalid(now tstime.EngineTime) {
	for _, e := range l.elems {
		e.MarkInvalid(now)
	}
	l.lastModified = tstime.MinTime
	l.subs.notifyAll(l.sched)
}

func (l *TSL[V]) Subscribe(n NodeID)    { l.subs.add(n) }
func (l *TSL[V]) Unsubscribe(n NodeID)  { l.subs.remove(n) }
func (l *TSL[V]) Subscribers() []NodeID { return l.subs.list() }
