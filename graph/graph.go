package graph

import "fmt"

// Graph is an immutable, topologically ranked node list — the output of
// the wiring layer and the input to the engine (spec.md §6.1). Parent is
// nil for the root graph; nested graphs (map-over-TSD branches, switch
// cases, try/except bodies) carry a Parent pointing at the Node that owns
// them, mirroring the teacher's own nested-model convention of an
// immutable post-build representation.
type Graph struct {
	Name   string
	Nodes  []*Node
	Parent *Node
}

// New constructs an empty graph; call AddNode to populate it, then Build
// once wiring is complete.
func New(name string) *Graph {
	return &Graph{Name: name}
}

// AddNode appends n to the graph and assigns n.Index. Must be called
// before Build.
func (g *Graph) AddNode(n *Node) int {
	n.Index = len(g.Nodes)
	g.Nodes = append(g.Nodes, n)
	return n.Index
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int { return len(g.Nodes) }

// Build computes each node's topological Rank using Kahn's algorithm over
// non-feedback edges, and recursively builds every nested template. A
// cycle among non-feedback edges is a wiring error: spec.md requires every
// genuine cycle to be broken by an explicit one-tick-delayed feedback
// edge (C8); anything else reaching Build unbroken is a mistake in the
// wiring layer, not a runtime condition.
func (g *Graph) Build() error {
	indegree := make([]int, len(g.Nodes))
	dependents := make([][]int, len(g.Nodes))

	for _, n := range g.Nodes {
		for _, e := range n.Inputs {
			if e.Feedback || e.FromNode == ExternalSource {
				continue
			}
			if e.FromNode < 0 || e.FromNode >= len(g.Nodes) {
				return fmt.Errorf("graph %s: node %q input %q references out-of-range node %d",
					g.Name, n.Name, e.ToInput, e.FromNode)
			}
			dependents[e.FromNode] = append(dependents[e.FromNode], n.Index)
			indegree[n.Index]++
		}
	}

	queue := make([]int, 0, len(g.Nodes))
	for i, d := range indegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}

	rank := make([]int, len(g.Nodes))
	visited := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		visited++
		for _, dep := range dependents[cur] {
			if rank[dep] <= rank[cur] {
				rank[dep] = rank[cur] + 1
			}
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if visited != len(g.Nodes) {
		return fmt.Errorf("graph %s: cycle detected among non-feedback edges; break it with a feedback edge", g.Name)
	}

	for i, n := range g.Nodes {
		n.Rank = rank[i]
	}

	for _, n := range g.Nodes {
		switch n.Kind {
		case KindNestedMap:
			if n.MapTemplate != nil {
				n.MapTemplate.Parent = n
				if err := n.MapTemplate.Build(); err != nil {
					return fmt.Errorf("graph %s: map template of node %q: %w", g.Name, n.Name, err)
				}
			}
		case KindNestedSwitch:
			for key, sub := range n.SwitchCases {
				sub.Parent = n
				if err := sub.Build(); err != nil {
					return fmt.Errorf("graph %s: switch case %q of node %q: %w", g.Name, key, n.Name, err)
				}
			}
		case KindNestedTryExcept:
			if n.TryTemplate != nil {
				n.TryTemplate.Parent = n
				if err := n.TryTemplate.Build(); err != nil {
					return fmt.Errorf("graph %s: try template of node %q: %w", g.Name, n.Name, err)
				}
			}
		}
	}

	return nil
}

// ByRank returns node indices ordered by ascending Rank, the order in
// which a fully-pending tick evaluates every node exactly once (spec.md
// §6.1).
func (g *Graph) ByRank() []int {
	order := make([]int, len(g.Nodes))
	for i := range order {
		order[i] = i
	}
	// simple stable insertion sort: graphs are small enough in practice
	// that this never shows up in a profile, and it keeps node index as
	// the tie-break for equal rank, matching wiring declaration order.
	for i := 1; i < len(order); i++ {
		j := i
		for j > 0 && g.Nodes[order[j-1]].Rank > g.Nodes[order[j]].Rank {
			order[j-1], order[j] = order[j], order[j-1]
			j--
		}
	}
	return order
}
