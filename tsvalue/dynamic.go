package tsvalue

// Resettable is implemented by outputs that accumulate per-tick
// bookkeeping beyond the universal last-modified-time (currently only
// TSD, for its added/modified/removed key sets). The engine calls
// BeginTick on every such output before draining a tick's events.
type Resettable interface {
	BeginTick()
}

// Stringer is implemented by any Cell[T], rendering its current value
// through fmt.Sprint. A switch node's selector input is read through this
// interface so the engine package never needs to know the selector's
// concrete scalar type.
type Stringer interface {
	Output
	ValueString() string
}

// DynamicKeyed is the type-erased view of a TSD that the engine package
// uses to drive map-over-TSD nested graphs (spec.md §6.3) without needing
// to know the TSD's concrete key/value type parameters. Every TSD[K,V]
// implements it by rendering keys through fmt.Sprint.
type DynamicKeyed interface {
	Output
	TokenKeys() []string
	AddedKeys() []string
	ModifiedKeys() []string
	RemovedKeys() []string
	GetOutput(token string) (Output, bool)
}
