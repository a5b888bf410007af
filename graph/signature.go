// Package graph defines the built, immutable graph representation handed
// from wiring to the engine: Signature describes a node's input/output
// shape, Node is one compute unit, and Graph is an ordered, topologically
// ranked collection of nodes (including nested sub-graphs for map/switch/
// try-except). None of this package touches live values — that is
// tsvalue's and engine's job; graph only describes structure.
package graph

import "fmt"

// ValueKind names which tsvalue container a port carries.
type ValueKind uint8

const (
	KindScalar ValueKind = iota
	KindTSB
	KindTSD
	KindTSL
	KindBuff
	KindRef
)

func (k ValueKind) String() string {
	switch k {
	case KindScalar:
		return "TS"
	case KindTSB:
		return "TSB"
	case KindTSD:
		return "TSD"
	case KindTSL:
		return "TSL"
	case KindBuff:
		return "BUFF"
	case KindRef:
		return "REF"
	default:
		return "UNKNOWN"
	}
}

// Port describes one named input or output on a node.
type Port struct {
	Name     string
	Kind     ValueKind
	ElemType string // a descriptive scalar type tag, e.g. "float64", "string"
	// TSBFields names the nested fields when Kind == KindTSB.
	TSBFields []string
	// TSLLen is the fixed vector length when Kind == KindTSL.
	TSLLen int
}

// Signature is a node's full input/output schema — the thing the wiring
// layer type-checks edges against before the graph is handed to the
// engine (spec.md §7, WiringError: "shape or type mismatch detected before
// the graph is built").
type Signature struct {
	Inputs  []Port
	Outputs []Port
}

func (s Signature) input(name string) (Port, bool) {
	for _, p := range s.Inputs {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

func (s Signature) output(name string) (Port, bool) {
	for _, p := range s.Outputs {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

// Compatible reports whether an edge from the node output named outName
// may feed the node input named inName, given the two signatures. Scalar
// and REF kinds must match exactly; a TSB output may feed a TSB input of a
// subset of its own fields (structural widening, mirroring the
// conversion-operator flattening the original hgraph wiring layer performs
// between TSB shapes) — every other kind pairing requires an identical
// Port shape.
func (out Signature) Compatible(outName string, in Signature, inName string) error {
	op, ok := out.output(outName)
	if !ok {
		return fmt.Errorf("graph: no output %q on producing node", outName)
	}
	ip, ok := in.input(inName)
	if !ok {
		return fmt.Errorf("graph: no input %q on consuming node", inName)
	}
	if op.Kind != ip.Kind {
		return fmt.Errorf("graph: output %q is %s, input %q wants %s", outName, op.Kind, inName, ip.Kind)
	}
	switch op.Kind {
	case KindScalar, KindRef, KindBuff:
		if op.ElemType != ip.ElemType {
			return fmt.Errorf("graph: output %q element type %s does not match input %q element type %s",
				outName, op.ElemType, inName, ip.ElemType)
		}
	case KindTSL:
		if op.TSLLen != ip.TSLLen || op.ElemType != ip.ElemType {
			return fmt.Errorf("graph: output %q TSL[%s,%d] incompatible with input %q TSL[%s,%d]",
				outName, op.ElemType, op.TSLLen, inName, ip.ElemType, ip.TSLLen)
		}
	case KindTSD:
		if op.ElemType != ip.ElemType {
			return fmt.Errorf("graph: output %q TSD value type %s does not match input %q value type %s",
				outName, op.ElemType, inName, ip.ElemType)
		}
	case KindTSB:
		need := make(map[string]bool, len(ip.TSBFields))
		for _, f := range ip.TSBFields {
			need[f] = true
		}
		have := make(map[string]bool, len(op.TSBFields))
		for _, f := range op.TSBFields {
			have[f] = true
		}
		for f := range need {
			if !have[f] {
				return fmt.Errorf("graph: output %q TSB does not provide field %q required by input %q", outName, f, inName)
			}
		}
	}
	return nil
}
