package tsvalue

// Ref is the value carried by a reference time series (spec.md §3,
// "Reference values"): not a copy of another series' data, but a pointer
// to which output a dependent input should be bound to. A REF[T] output is
// simply a *Cell[Ref] — Ref's only job is to be a comparable, printable
// value naming a target.
//
// Rebinding a reference input when its Ref value changes requires looking
// up a NodeID's live output in the running graph, which is a concern of
// the engine package (it owns the node/output registry); tsvalue only
// defines the value shape.
type Ref struct {
	target NodeID
	port   string
	valid  bool
}

// NewRef returns a valid reference naming the output port on target.
func NewRef(target NodeID, port string) Ref { return Ref{target: target, port: port, valid: true} }

// InvalidRef returns a reference that names nothing, matching a
// time-series input that is itself currently unbound.
func InvalidRef() Ref { return Ref{} }

// Target returns the referenced node id and whether the reference is
// valid.
func (r Ref) Target() (NodeID, bool) { return r.target, r.valid }

// Port returns the output port name on the referenced node.
func (r Ref) Port() string { return r.port }

func (r Ref) String() string {
	if !r.valid {
		return "<invalid-ref>"
	}
	return "ref:" + string(r.target) + "." + r.port
}
