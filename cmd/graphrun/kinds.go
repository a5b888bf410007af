package main

import (
	"fmt"

	"github.com/sbl8/tempo/graph"
	"github.com/sbl8/tempo/graphspec"
	"github.com/sbl8/tempo/tstime"
	"github.com/sbl8/tempo/tsvalue"
)

// registerBuiltinKinds wires the handful of generic node types that need
// no external resource, so a YAML graph can be exercised without adapter
// wiring. Real deployments register adapters/* constructors alongside
// these via reg.RegisterKind before loading the graph.
func registerBuiltinKinds(reg *graphspec.Registry) {
	reg.RegisterKind("const.float64", graphspec.Kind{
		NodeKind: graph.KindPullSource,
		Signature: func(map[string]any) graph.Signature {
			return graph.Signature{Outputs: []graph.Port{{Name: "value", Kind: graph.KindScalar, ElemType: "float64"}}}
		},
		NewOutputs: func(scalars map[string]any) graph.OutputFactory {
			return func(owner tsvalue.NodeID, sched tsvalue.Notifier) map[string]tsvalue.Output {
				return map[string]tsvalue.Output{"value": tsvalue.NewCell[float64](owner, sched)}
			}
		},
		Eval: func(scalars map[string]any) graph.EvalFunc {
			v, _ := scalars["value"].(float64)
			return func(now tstime.EngineTime, _ map[string]tsvalue.Output, outputs map[string]tsvalue.Output) error {
				out := outputs["value"].(*tsvalue.Cell[float64])
				if out.Valid() {
					return nil
				}
				return out.ApplyResult(now, v)
			}
		},
	})

	reg.RegisterKind("sum.float64", graphspec.Kind{
		NodeKind: graph.KindCompute,
		Signature: func(map[string]any) graph.Signature {
			return graph.Signature{
				Inputs:  []graph.Port{{Name: "a", Kind: graph.KindScalar, ElemType: "float64"}, {Name: "b", Kind: graph.KindScalar, ElemType: "float64"}},
				Outputs: []graph.Port{{Name: "value", Kind: graph.KindScalar, ElemType: "float64"}},
			}
		},
		NewOutputs: func(scalars map[string]any) graph.OutputFactory {
			return func(owner tsvalue.NodeID, sched tsvalue.Notifier) map[string]tsvalue.Output {
				return map[string]tsvalue.Output{"value": tsvalue.NewCell[float64](owner, sched)}
			}
		},
		Eval: func(scalars map[string]any) graph.EvalFunc {
			return func(now tstime.EngineTime, inputs map[string]tsvalue.Output, outputs map[string]tsvalue.Output) error {
				a, ok := inputs["a"].(*tsvalue.Cell[float64])
				if !ok {
					return fmt.Errorf("sum.float64: input %q is not bound", "a")
				}
				b, ok := inputs["b"].(*tsvalue.Cell[float64])
				if !ok {
					return fmt.Errorf("sum.float64: input %q is not bound", "b")
				}
				if !a.AllValid() || !b.AllValid() {
					return nil
				}
				out := outputs["value"].(*tsvalue.Cell[float64])
				if !out.CanApplyResult(now) {
					return nil
				}
				return out.ApplyResult(now, a.Value()+b.Value())
			}
		},
	})

	reg.RegisterKind("print", graphspec.Kind{
		NodeKind: graph.KindSink,
		Signature: func(map[string]any) graph.Signature {
			return graph.Signature{Inputs: []graph.Port{{Name: "value", Kind: graph.KindScalar, ElemType: "float64"}}}
		},
		Eval: func(scalars map[string]any) graph.EvalFunc {
			return func(now tstime.EngineTime, inputs map[string]tsvalue.Output, _ map[string]tsvalue.Output) error {
				in, ok := inputs["value"].(*tsvalue.Cell[float64])
				if !ok || !in.Modified(now) {
					return nil
				}
				fmt.Printf("%s value=%v\n", now, in.Value())
				return nil
			}
		},
	})
}
