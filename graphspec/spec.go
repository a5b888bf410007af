// Package graphspec loads a graph.Graph from a YAML document naming node
// instances and how their ports connect. It is a deliberately minimal
// stand-in for the out-of-scope wiring front end: real wiring layers
// (like the Python decorator-based one this runtime's behavior is modeled
// on) resolve types and generate node closures from source analysis; here
// a Registry of named, pre-built Kinds plays that role, and the YAML only
// supplies instance names, scalar parameters, and edges.
package graphspec

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sbl8/tempo/graph"
	"github.com/sbl8/tempo/tsvalue"
)

// NodeSpec is one YAML node entry.
type NodeSpec struct {
	Name    string         `yaml:"name"`
	Type    string         `yaml:"type"`
	Inputs  map[string]string `yaml:"inputs"`
	Scalars map[string]any `yaml:"scalars"`

	// Map describes a map-over-TSD node: Driver names the input port
	// carrying the TSD, Template names a registered sub-graph factory.
	Map *NestedRef `yaml:"map,omitempty"`
	// Switch describes a switch node: Selector names the selector input
	// port, Cases maps a selector value to a registered sub-graph
	// factory name.
	Switch *SwitchRef `yaml:"switch,omitempty"`
	// TryExcept names a registered sub-graph factory run under isolation.
	TryExcept string `yaml:"try_except,omitempty"`
}

type NestedRef struct {
	Driver   string `yaml:"driver"`
	Template string `yaml:"template"`
}

type SwitchRef struct {
	Selector string            `yaml:"selector"`
	Cases    map[string]string `yaml:"cases"`
}

// Doc is the top-level YAML document: a named graph plus its nodes.
type Doc struct {
	Name  string     `yaml:"name"`
	Nodes []NodeSpec `yaml:"nodes"`
}

// Kind is what a Registry entry supplies for one node type: its
// signature, how to build its live outputs, and its compute/lifecycle
// functions. Kind itself is not tied to any particular instance — the
// same Kind backs every node sharing a "type" in the YAML.
type Kind struct {
	NodeKind   graph.Kind
	Signature  func(scalars map[string]any) graph.Signature
	NewOutputs func(scalars map[string]any) graph.OutputFactory
	Eval       func(scalars map[string]any) graph.EvalFunc
	OnStart    func(scalars map[string]any) graph.LifecycleFunc
	OnStop     func(scalars map[string]any) graph.LifecycleFunc
}

// Registry maps a YAML node "type" string to its Kind, and a "template"
// string (for map/switch/try-except) to the sub-graph factory that builds
// its inner graph.Graph.
type Registry struct {
	Kinds     map[string]Kind
	Templates map[string]func() (*graph.Graph, error)
}

// NewRegistry constructs an empty Registry ready for RegisterKind /
// RegisterTemplate calls.
func NewRegistry() *Registry {
	return &Registry{Kinds: make(map[string]Kind), Templates: make(map[string]func() (*graph.Graph, error))}
}

func (r *Registry) RegisterKind(name string, k Kind) { r.Kinds[name] = k }

func (r *Registry) RegisterTemplate(name string, build func() (*graph.Graph, error)) {
	r.Templates[name] = build
}

// LoadFile reads and parses a YAML graph document from path, then builds
// it against reg.
func LoadFile(path string, reg *Registry) (*graph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graphspec: reading %s: %w", path, err)
	}
	return Load(data, reg)
}

// Load parses a YAML graph document and builds it against reg.
func Load(data []byte, reg *Registry) (*graph.Graph, error) {
	var doc Doc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("graphspec: parsing document: %w", err)
	}
	return build(&doc, reg)
}

func build(doc *Doc, reg *Registry) (*graph.Graph, error) {
	g := graph.New(doc.Name)
	index := make(map[string]int, len(doc.Nodes))
	for i, ns := range doc.Nodes {
		if _, dup := index[ns.Name]; dup {
			return nil, fmt.Errorf("graphspec: duplicate node name %q", ns.Name)
		}
		index[ns.Name] = i
	}

	for _, ns := range doc.Nodes {
		n, err := buildNode(ns, index, reg)
		if err != nil {
			return nil, fmt.Errorf("graphspec: node %q: %w", ns.Name, err)
		}
		g.AddNode(n)
	}
	return g, nil
}

func buildNode(ns NodeSpec, index map[string]int, reg *Registry) (*graph.Node, error) {
	switch {
	case ns.Map != nil:
		return buildMapNode(ns, index, reg)
	case ns.Switch != nil:
		return buildSwitchNode(ns, index, reg)
	case ns.TryExcept != "":
		return buildTryExceptNode(ns, index, reg)
	default:
		return buildComputeNode(ns, index, reg)
	}
}

func buildComputeNode(ns NodeSpec, index map[string]int, reg *Registry) (*graph.Node, error) {
	kind, ok := reg.Kinds[ns.Type]
	if !ok {
		return nil, fmt.Errorf("unregistered node type %q", ns.Type)
	}
	edges, err := resolveEdges(ns.Inputs, index)
	if err != nil {
		return nil, err
	}
	sig := graph.Signature{}
	if kind.Signature != nil {
		sig = kind.Signature(ns.Scalars)
	}
	n := &graph.Node{
		Name:    ns.Name,
		Kind:    kind.NodeKind,
		Sig:     sig,
		Scalars: ns.Scalars,
		Inputs:  edges,
	}
	if kind.NewOutputs != nil {
		n.NewOutputs = kind.NewOutputs(ns.Scalars)
	}
	if kind.Eval != nil {
		n.Eval = kind.Eval(ns.Scalars)
	}
	if kind.OnStart != nil {
		n.OnStart = kind.OnStart(ns.Scalars)
	}
	if kind.OnStop != nil {
		n.OnStop = kind.OnStop(ns.Scalars)
	}
	return n, nil
}

func buildMapNode(ns NodeSpec, index map[string]int, reg *Registry) (*graph.Node, error) {
	edges, err := resolveEdges(ns.Inputs, index)
	if err != nil {
		return nil, err
	}
	tmplBuild, ok := reg.Templates[ns.Map.Template]
	if !ok {
		return nil, fmt.Errorf("unregistered template %q", ns.Map.Template)
	}
	tmpl, err := tmplBuild()
	if err != nil {
		return nil, fmt.Errorf("building template %q: %w", ns.Map.Template, err)
	}
	return &graph.Node{
		Name:           ns.Name,
		Kind:           graph.KindNestedMap,
		Inputs:         edges,
		MapTemplate:    tmpl,
		MapDriverInput: ns.Map.Driver,
	}, nil
}

func buildSwitchNode(ns NodeSpec, index map[string]int, reg *Registry) (*graph.Node, error) {
	edges, err := resolveEdges(ns.Inputs, index)
	if err != nil {
		return nil, err
	}
	cases := make(map[string]*graph.Graph, len(ns.Switch.Cases))
	caseNames := make([]string, 0, len(ns.Switch.Cases))
	for v := range ns.Switch.Cases {
		caseNames = append(caseNames, v)
	}
	sort.Strings(caseNames)
	for _, v := range caseNames {
		tmplName := ns.Switch.Cases[v]
		tmplBuild, ok := reg.Templates[tmplName]
		if !ok {
			return nil, fmt.Errorf("unregistered template %q for case %q", tmplName, v)
		}
		tmpl, err := tmplBuild()
		if err != nil {
			return nil, fmt.Errorf("building template %q: %w", tmplName, err)
		}
		cases[v] = tmpl
	}
	return &graph.Node{
		Name:                ns.Name,
		Kind:                graph.KindNestedSwitch,
		Inputs:              edges,
		SwitchCases:         cases,
		SwitchSelectorInput: ns.Switch.Selector,
	}, nil
}

func buildTryExceptNode(ns NodeSpec, index map[string]int, reg *Registry) (*graph.Node, error) {
	edges, err := resolveEdges(ns.Inputs, index)
	if err != nil {
		return nil, err
	}
	tmplBuild, ok := reg.Templates[ns.TryExcept]
	if !ok {
		return nil, fmt.Errorf("unregistered template %q", ns.TryExcept)
	}
	tmpl, err := tmplBuild()
	if err != nil {
		return nil, fmt.Errorf("building template %q: %w", ns.TryExcept, err)
	}
	sig := graph.Signature{Outputs: []graph.Port{{Name: "exception", Kind: graph.KindScalar, ElemType: "string"}}}
	return &graph.Node{
		Name:        ns.Name,
		Kind:        graph.KindNestedTryExcept,
		Sig:         sig,
		Inputs:      edges,
		TryTemplate: tmpl,
		NewOutputs: func(owner tsvalue.NodeID, sched tsvalue.Notifier) map[string]tsvalue.Output {
			return map[string]tsvalue.Output{
				"exception": tsvalue.NewCell[string](owner, sched),
			}
		},
	}, nil
}

// resolveEdges turns the YAML "producerName.portName" (optionally
// suffixed "!feedback") edge strings into graph.Edge values against the
// node-name index. "$external.portName" marks graph.ExternalSource, used
// only inside a map/switch/try-except template.
func resolveEdges(inputs map[string]string, index map[string]int) ([]graph.Edge, error) {
	names := make([]string, 0, len(inputs))
	for in := range inputs {
		names = append(names, in)
	}
	sort.Strings(names)

	edges := make([]graph.Edge, 0, len(inputs))
	for _, inputName := range names {
		ref := inputs[inputName]
		feedback := strings.HasSuffix(ref, "!feedback")
		ref = strings.TrimSuffix(ref, "!feedback")

		parts := strings.SplitN(ref, ".", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("input %q: malformed reference %q, want \"node.port\"", inputName, ref)
		}
		producerName, port := parts[0], parts[1]

		if producerName == "$external" {
			edges = append(edges, graph.Edge{FromNode: graph.ExternalSource, FromOutput: port, ToInput: inputName})
			continue
		}
		idx, ok := index[producerName]
		if !ok {
			return nil, fmt.Errorf("input %q: unknown producer node %q", inputName, producerName)
		}
		edges = append(edges, graph.Edge{FromNode: idx, FromOutput: port, ToInput: inputName, Feedback: feedback})
	}
	return edges, nil
}
