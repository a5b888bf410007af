package tsvalue

import (
	"time"

	"github.com/sbl8/tempo/tstime"
)

// buffEntry is one value recorded into a Buff, tagged with the engine time
// it was pushed at.
type buffEntry[T any] struct {
	t tstime.EngineTime
	v T
}

// Buff is a sliding window over the history of a scalar series (spec.md
// §3, "BUFF[T]"). Exactly one of the two size modes applies, fixed at
// construction: a tick-count window retains the last N pushed values
// regardless of how much wall/engine time separates them; a duration
// window retains every value pushed within the trailing window of engine
// time, trimmed lazily ("roll") on read and on push.
type Buff[T any] struct {
	owner NodeID
	sched Notifier
	subs  subscriberSet

	capacityTicks int           // > 0 for a tick-count window
	windowDur     time.Duration // > 0 for a duration window
	minSize       int           // entries required before the window is Valid / yields a view

	entries []buffEntry[T]

	lastModified tstime.EngineTime
}

// NewBuffTicks constructs a Buff retaining at most n of the most recently
// pushed values. minSize gates Valid/AllValid/Values: the window reports
// invalid and yields no values until at least minSize entries have
// accumulated (spec.md §3, §4.1 scenario S4).
func NewBuffTicks[T any](owner NodeID, sched Notifier, n, minSize int) *Buff[T] {
	return &Buff[T]{owner: owner, sched: sched, capacityTicks: n, minSize: minSize, lastModified: tstime.MinTime}
}

// NewBuffDuration constructs a Buff retaining every value pushed within
// the trailing d of engine time, gated the same way as NewBuffTicks by
// minSize.
func NewBuffDuration[T any](owner NodeID, sched Notifier, d time.Duration, minSize int) *Buff[T] {
	return &Buff[T]{owner: owner, sched: sched, windowDur: d, minSize: minSize, lastModified: tstime.MinTime}
}

// roll drops entries that have fallen outside the window as of now. For a
// tick-count window this simply trims to capacity from the front (push
// already maintains this); for a duration window it drops anything older
// than now - windowDur, which can only grow stale between pushes as engine
// time advances without a corresponding write.
func (b *Buff[T]) roll(now tstime.EngineTime) {
	if b.windowDur > 0 {
		cutoff := now.Add(-b.windowDur)
		i := 0
		for i < len(b.entries) && b.entries[i].t < cutoff {
			i++
		}
		if i > 0 {
			b.entries = b.entries[i:]
		}
		return
	}
	if b.capacityTicks > 0 && len(b.entries) > b.capacityTicks {
		b.entries = b.entries[len(b.entries)-b.capacityTicks:]
	}
}

// Push appends v at engine time now, then rolls the window.
func (b *Buff[T]) Push(now tstime.EngineTime, v T) error {
	if b.lastModified == now {
		return ErrAlreadyModified
	}
	b.entries = append(b.entries, buffEntry[T]{t: now, v: v})
	b.roll(now)
	b.lastModified = now
	b.subs.notifyAll(b.sched)
	return nil
}

// Values rolls the window to now and returns the live entries oldest
// first, or nil if fewer than minSize entries are currently in the
// window.
func (b *Buff[T]) Values(now tstime.EngineTime) []T {
	b.roll(now)
	if len(b.entries) < b.minSize {
		return nil
	}
	out := make([]T, len(b.entries))
	for i, e := range b.entries {
		out[i] = e.v
	}
	return out
}

// FirstModifiedTime returns the engine time of the oldest entry still in
// the window after rolling to now, or tstime.MinTime if the window is
// empty.
func (b *Buff[T]) FirstModifiedTime(now tstime.EngineTime) tstime.EngineTime {
	b.roll(now)
	if len(b.entries) == 0 {
		return tstime.MinTime
	}
	return b.entries[0].t
}

func (b *Buff[T]) LastModifiedTime() tstime.EngineTime { return b.lastModified }

func (b *Buff[T]) Modified(now tstime.EngineTime) bool { return b.lastModified == now }

func (b *Buff[T]) Valid() bool { return len(b.entries) >= b.minSize && len(b.entries) > 0 }

func (b *Buff[T]) AllValid() bool { return b.Valid() }

func (b *Buff[T]) MarkInvalid(now tstime.EngineTime) {
	b.entries = nil
	b.lastModified = tstime.MinTime
	b.subs.notifyAll(b.sched)
}

func (b *Buff[T]) Subscribe(n NodeID)    { b.subs.add(n) }
func (b *Buff[T]) Unsubscribe(n NodeID)  { b.subs.remove(n) }
func (b *Buff[T]) Subscribers() []NodeID { return b.subs.list() }
