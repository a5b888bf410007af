package tsvalue

import "github.com/sbl8/tempo/tstime"

// TSB is a named, fixed schema bundle of sub-series (spec.md §3,
// "TSB[schema]") — the composite analog of a struct, where each field is
// itself a time series. Field order is fixed at construction and drives
// deterministic iteration (e.g. for serialization or display).
type TSB struct {
	owner  NodeID
	sched  Notifier
	subs   subscriberSet
	order  []string
	fields map[string]Output

	lastModified tstime.EngineTime
}

// NewTSB constructs a TSB with the given field names, each bound to a
// freshly created output of the caller's choosing via SetField. Fields not
// yet set via SetField return nil from Field.
func NewTSB(owner NodeID, sched Notifier, fieldNames []string) *TSB {
	order := make([]string, len(fieldNames))
	copy(order, fieldNames)
	return &TSB{
		owner:        owner,
		sched:        sched,
		order:        order,
		fields:       make(map[string]Output, len(fieldNames)),
		lastModified: tstime.MinTime,
	}
}

// SetField installs out as the sub-series backing the named field. Called
// once per field during node construction, before the graph starts.
func (b *TSB) SetField(name string, out Output) {
	b.fields[name] = out
}

// Field returns the sub-series bound to name, or nil if unset.
func (b *TSB) Field(name string) Output { return b.fields[name] }

// FieldNames returns the schema's field names in declaration order.
func (b *TSB) FieldNames() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// Touch records that a field changed at now and notifies the TSB's own
// subscribers (in addition to whatever notified the field's own
// subscribers). A node holding a field's output calls this after writing
// to it.
func (b *TSB) Touch(now tstime.EngineTime) {
	b.lastModified = now
	b.subs.notifyAll(b.sched)
}

func (b *TSB) LastModifiedTime() tstime.EngineTime { return b.lastModified }

func (b *TSB) Modified(now tstime.EngineTime) bool {
	if b.lastModified == now {
		return true
	}
	for _, name := range b.order {
		if f := b.fields[name]; f != nil && f.Modified(now) {
			return true
		}
	}
	return false
}

func (b *TSB) Valid() bool {
	for _, name := range b.order {
		if f := b.fields[name]; f != nil && f.Valid() {
			return true
		}
	}
	return false
}

func (b *TSB) AllValid() bool {
	for _, name := range b.order {
		f := b.fields[name]
		if f == nil || !f.Valid() {
			return false
		}
	}
	return true
}

func (b *TSB) MarkInvalid(now tstime.EngineTime) {
	for _, name := range b.order {
		if f := b.fields[name]; f != nil {
			f.MarkInvalid(now)
		}
	}
	b.lastModified = tstime.MinTime
	b.subs.notifyAll(b.sched)
}

func (b *TSB) Subscribe(n NodeID)    { b.subs.add(n) }
func (b *TSB) Unsubscribe(n NodeID)  { b.subs.remove(n) }
func (b *TSB) Subscribers() []NodeID { return b.subs.list() }
