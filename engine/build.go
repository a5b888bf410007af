package engine

import (
	"fmt"

	"github.com/sbl8/tempo/graph"
	"github.com/sbl8/tempo/tsvalue"
)

// instantiate builds one runtime Node per g.Nodes entry, wires its inputs
// from either a sibling node's output, an externally supplied output
// (graph.ExternalSource edges), or — for a feedback edge — a proxy
// subscriber id that delays delivery by one tick. idPrefix is "" for a
// root graph, or the owning container node's id for a nested template
// instantiation.
func instantiate(g *graph.Graph, idPrefix tsvalue.NodeID, sched *Scheduler, externals map[string]tsvalue.Output) ([]*Node, []tsvalue.Resettable, []*refLink, error) {
	nodes := make([]*Node, len(g.Nodes))
	var resettables []tsvalue.Resettable
	var refLinks []*refLink
	for i, def := range g.Nodes {
		id := childID(idPrefix, i)
		var outputs map[string]tsvalue.Output
		if def.NewOutputs != nil {
			outputs = def.NewOutputs(id, sched)
		} else {
			outputs = make(map[string]tsvalue.Output)
		}
		n := NewNode(id, def)
		n.Outputs = outputs
		nodes[i] = n
		sched.SetRank(id, rankOffset(idPrefix)+def.Rank)
		for _, out := range outputs {
			if r, ok := out.(tsvalue.Resettable); ok {
				resettables = append(resettables, r)
			}
		}
	}

	for i, def := range g.Nodes {
		n := nodes[i]
		for _, e := range def.Inputs {
			if e.Feedback {
				producer := nodes[e.FromNode]
				out, ok := producer.Outputs[e.FromOutput]
				if !ok {
					return nil, nil, nil, &WiringError{Node: string(n.ID), Err: fmt.Errorf("no output %q on node %q", e.FromOutput, producer.ID)}
				}
				n.Inputs[e.ToInput] = out
				proxy := n.ID.Branch("feedback:" + e.ToInput)
				sched.RegisterFeedback(proxy, n.ID)
				out.Subscribe(proxy)
				continue
			}
			if e.FromNode == graph.ExternalSource {
				out, ok := externals[e.ToInput]
				if !ok {
					return nil, nil, nil, &WiringError{Node: string(n.ID), Err: fmt.Errorf("no external binding for input %q", e.ToInput)}
				}
				n.Inputs[e.ToInput] = out
				out.Subscribe(n.ID)
				continue
			}
			producer := nodes[e.FromNode]
			out, ok := producer.Outputs[e.FromOutput]
			if !ok {
				return nil, nil, nil, &WiringError{Node: string(n.ID), Err: fmt.Errorf("no output %q on node %q", e.FromOutput, producer.ID)}
			}
			if e.RefFollow {
				refCell, ok := out.(*tsvalue.Cell[tsvalue.Ref])
				if !ok {
					return nil, nil, nil, &WiringError{Node: string(n.ID), Err: fmt.Errorf("input %q: producer output %q is not reference-valued", e.ToInput, e.FromOutput)}
				}
				refLinks = append(refLinks, &refLink{consumer: n, inputName: e.ToInput, refSource: refCell})
				continue
			}
			n.Inputs[e.ToInput] = out
			out.Subscribe(n.ID)
		}
	}

	return nodes, resettables, refLinks, nil
}

func childID(prefix tsvalue.NodeID, ndx int) tsvalue.NodeID {
	if prefix == "" {
		return tsvalue.RootID(ndx)
	}
	return prefix.Child(ndx)
}

// rankOffset keeps nested-template node ranks from colliding with root
// node ranks in the scheduler's global rank map: a large offset
// proportional to the prefix's nesting depth is enough to keep dynamic branches sorting after their container
// without needing a true cross-graph topological sort.
func rankOffset(prefix tsvalue.NodeID) int {
	if prefix == "" {
		return 0
	}
	return (prefix.Depth() + 1) * 100000
}
