package engine

import (
	"testing"
	"time"

	"github.com/sbl8/tempo/graph"
	"github.com/sbl8/tempo/tstime"
	"github.com/sbl8/tempo/tsvalue"
)

func scalarNode(name string, kind graph.Kind, inputs []graph.Edge, eval graph.EvalFunc) *graph.Node {
	sig := graph.Signature{Outputs: []graph.Port{{Name: "value", Kind: graph.KindScalar, ElemType: "int"}}}
	if len(inputs) > 0 {
		sig.Inputs = []graph.Port{{Name: "in", Kind: graph.KindScalar, ElemType: "int"}}
	}
	return &graph.Node{
		Name:   name,
		Kind:   kind,
		Sig:    sig,
		Inputs: inputs,
		NewOutputs: func(owner tsvalue.NodeID, sched tsvalue.Notifier) map[string]tsvalue.Output {
			return map[string]tsvalue.Output{"value": tsvalue.NewCell[int](owner, sched)}
		},
		Eval: eval,
	}
}

func buildChain(t *testing.T) (*Engine, int, int) {
	t.Helper()
	g := graph.New("chain")
	src := g.AddNode(scalarNode("source", graph.KindPullSource, nil,
		func(now tstime.EngineTime, _ map[string]tsvalue.Output, outputs map[string]tsvalue.Output) error {
			out := outputs["value"].(*tsvalue.Cell[int])
			if !out.CanApplyResult(now) {
				return nil
			}
			return out.ApplyResult(now, 1)
		}))
	doubled := g.AddNode(scalarNode("double", graph.KindCompute,
		[]graph.Edge{{FromNode: src, FromOutput: "value", ToInput: "in"}},
		func(now tstime.EngineTime, inputs map[string]tsvalue.Output, outputs map[string]tsvalue.Output) error {
			in := inputs["in"].(*tsvalue.Cell[int])
			out := outputs["value"].(*tsvalue.Cell[int])
			if !in.AllValid() || !out.CanApplyResult(now) {
				return nil
			}
			return out.ApplyResult(now, in.Value()*2)
		}))

	eng, err := Build(g, tstime.Simulation, time.Unix(0, 0), NoopObserver{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := eng.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return eng, src, doubled
}

func TestEngineTickEvaluatesSourceThenDependent(t *testing.T) {
	eng, src, doubled := buildChain(t)
	next, ok := eng.sched.NextEventTime()
	if !ok {
		t.Fatal("expected the source's seeded wakeup to be scheduled")
	}
	n, err := eng.Tick(next)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 node evaluations (source + compute), got %d", n)
	}

	srcOut, _ := eng.NodeOutput(src, "value")
	if srcOut.(*tsvalue.Cell[int]).Value() != 1 {
		t.Fatalf("source value = %d, want 1", srcOut.(*tsvalue.Cell[int]).Value())
	}
	dblOut, _ := eng.NodeOutput(doubled, "value")
	if dblOut.(*tsvalue.Cell[int]).Value() != 2 {
		t.Fatalf("doubled value = %d, want 2", dblOut.(*tsvalue.Cell[int]).Value())
	}
}

func TestEngineTickDrainsMultiHopChainInOnePass(t *testing.T) {
	g := graph.New("multi-hop")
	src := g.AddNode(scalarNode("source", graph.KindPullSource, nil,
		func(now tstime.EngineTime, _ map[string]tsvalue.Output, outputs map[string]tsvalue.Output) error {
			out := outputs["value"].(*tsvalue.Cell[int])
			if !out.CanApplyResult(now) {
				return nil
			}
			return out.ApplyResult(now, 1)
		}))
	addOne := func(name string, from int) int {
		return g.AddNode(scalarNode(name, graph.KindCompute,
			[]graph.Edge{{FromNode: from, FromOutput: "value", ToInput: "in"}},
			func(now tstime.EngineTime, inputs map[string]tsvalue.Output, outputs map[string]tsvalue.Output) error {
				in := inputs["in"].(*tsvalue.Cell[int])
				out := outputs["value"].(*tsvalue.Cell[int])
				if !in.AllValid() || !out.CanApplyResult(now) {
					return nil
				}
				return out.ApplyResult(now, in.Value()+1)
			}))
	}
	stage1 := addOne("stage1", src)
	stage2 := addOne("stage2", stage1)
	stage3 := addOne("stage3", stage2)

	eng, err := Build(g, tstime.Simulation, time.Unix(0, 0), NoopObserver{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := eng.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	next, ok := eng.sched.NextEventTime()
	if !ok {
		t.Fatal("expected the source's seeded wakeup to be scheduled")
	}
	n, err := eng.Tick(next)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected all 4 nodes to evaluate within the single tick, got %d", n)
	}

	for i, idx := range []int{stage1, stage2, stage3} {
		out, _ := eng.NodeOutput(idx, "value")
		want := i + 2
		if got := out.(*tsvalue.Cell[int]).Value(); got != want {
			t.Fatalf("stage%d value = %d, want %d", i+1, got, want)
		}
	}
}

func TestEngineNodeEvaluatesAtMostOncePerTick(t *testing.T) {
	evalCount := 0
	g := graph.New("single")
	g.AddNode(scalarNode("src", graph.KindPullSource, nil,
		func(now tstime.EngineTime, _ map[string]tsvalue.Output, outputs map[string]tsvalue.Output) error {
			evalCount++
			out := outputs["value"].(*tsvalue.Cell[int])
			if !out.CanApplyResult(now) {
				return nil
			}
			return out.ApplyResult(now, 1)
		}))

	eng, err := Build(g, tstime.Simulation, time.Unix(0, 0), NoopObserver{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	eng.Start()
	next, _ := eng.sched.NextEventTime()
	eng.sched.Notify(tsvalue.RootID(0))
	eng.sched.Notify(tsvalue.RootID(0))
	if _, err := eng.Tick(next); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if evalCount != 1 {
		t.Fatalf("node evaluated %d times in one tick, want 1", evalCount)
	}
}

func TestEngineFeedbackEdgeDelaysOneTick(t *testing.T) {
	g := graph.New("feedback")
	trigger := g.AddNode(scalarNode("trigger", graph.KindPullSource, nil,
		func(now tstime.EngineTime, _ map[string]tsvalue.Output, outputs map[string]tsvalue.Output) error {
			out := outputs["value"].(*tsvalue.Cell[int])
			if !out.CanApplyResult(now) {
				return nil
			}
			return out.ApplyResult(now, 1)
		}))
	counter := g.AddNode(&graph.Node{
		Name: "counter",
		Kind: graph.KindCompute,
		Sig: graph.Signature{
			Inputs: []graph.Port{
				{Name: "trigger", Kind: graph.KindScalar, ElemType: "int"},
				{Name: "prev", Kind: graph.KindScalar, ElemType: "int"},
			},
			Outputs: []graph.Port{{Name: "value", Kind: graph.KindScalar, ElemType: "int"}},
		},
		Inputs: []graph.Edge{{FromNode: trigger, FromOutput: "value", ToInput: "trigger"}},
		NewOutputs: func(owner tsvalue.NodeID, sched tsvalue.Notifier) map[string]tsvalue.Output {
			return map[string]tsvalue.Output{"value": tsvalue.NewCell[int](owner, sched)}
		},
		Eval: func(now tstime.EngineTime, inputs map[string]tsvalue.Output, outputs map[string]tsvalue.Output) error {
			out := outputs["value"].(*tsvalue.Cell[int])
			if !out.CanApplyResult(now) {
				return nil
			}
			prev := 0
			if in, ok := inputs["prev"].(*tsvalue.Cell[int]); ok && in.Valid() {
				prev = in.Value()
			}
			return out.ApplyResult(now, prev+1)
		},
	})
	g.Nodes[counter].Inputs = append(g.Nodes[counter].Inputs,
		graph.Edge{FromNode: counter, FromOutput: "value", ToInput: "prev", Feedback: true})

	eng, err := Build(g, tstime.Simulation, time.Unix(0, 0), NoopObserver{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	eng.Start()

	next, ok := eng.sched.NextEventTime()
	if !ok {
		t.Fatal("expected the trigger source's seeded wakeup to be scheduled")
	}
	if _, err := eng.Tick(next); err != nil {
		t.Fatalf("Tick 1: %v", err)
	}
	out, _ := eng.NodeOutput(counter, "value")
	if got := out.(*tsvalue.Cell[int]).Value(); got != 1 {
		t.Fatalf("tick 1 value = %d, want 1", got)
	}

	eng.sched.ScheduleAt(next.Add(time.Millisecond), tsvalue.RootID(trigger))
	trigTick, _ := eng.sched.NextEventTime()
	if _, err := eng.Tick(trigTick); err != nil {
		t.Fatalf("Tick 2: %v", err)
	}
	if got := out.(*tsvalue.Cell[int]).Value(); got != 2 {
		t.Fatalf("tick 2 value = %d, want 2 (fed back from tick 1's output)", got)
	}
}
