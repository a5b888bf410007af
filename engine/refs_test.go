package engine

import (
	"testing"
	"time"

	"github.com/sbl8/tempo/graph"
	"github.com/sbl8/tempo/tstime"
	"github.com/sbl8/tempo/tsvalue"
)

// refGraph wires two plain int sources (targetA, targetB), a refSource
// pull-source emitting a tsvalue.Ref naming whichever target its "which"
// field says, and a consumer whose "in" input follows that reference.
type refGraph struct {
	eng                            *Engine
	targetA, targetB, refSrc, cons int
	which                          int
}

func buildRefGraph(t *testing.T) *refGraph {
	t.Helper()
	g := graph.New("ref-follow")
	rg := &refGraph{}

	rg.targetA = g.AddNode(scalarNode("targetA", graph.KindPullSource, nil,
		func(now tstime.EngineTime, _ map[string]tsvalue.Output, outputs map[string]tsvalue.Output) error {
			out := outputs["value"].(*tsvalue.Cell[int])
			if !out.CanApplyResult(now) {
				return nil
			}
			return out.ApplyResult(now, 100)
		}))
	rg.targetB = g.AddNode(scalarNode("targetB", graph.KindPullSource, nil,
		func(now tstime.EngineTime, _ map[string]tsvalue.Output, outputs map[string]tsvalue.Output) error {
			out := outputs["value"].(*tsvalue.Cell[int])
			if !out.CanApplyResult(now) {
				return nil
			}
			return out.ApplyResult(now, 200)
		}))

	rg.refSrc = g.AddNode(&graph.Node{
		Name: "refSource",
		Kind: graph.KindPullSource,
		Sig:  graph.Signature{Outputs: []graph.Port{{Name: "ref", Kind: graph.KindRef, ElemType: "ref"}}},
		NewOutputs: func(owner tsvalue.NodeID, sched tsvalue.Notifier) map[string]tsvalue.Output {
			return map[string]tsvalue.Output{"ref": tsvalue.NewCell[tsvalue.Ref](owner, sched)}
		},
		Eval: func(now tstime.EngineTime, _ map[string]tsvalue.Output, outputs map[string]tsvalue.Output) error {
			out := outputs["ref"].(*tsvalue.Cell[tsvalue.Ref])
			if !out.CanApplyResult(now) {
				return nil
			}
			target := tsvalue.RootID(rg.targetA)
			if rg.which == 1 {
				target = tsvalue.RootID(rg.targetB)
			}
			return out.ApplyResult(now, tsvalue.NewRef(target, "value"))
		},
	})

	rg.cons = g.AddNode(&graph.Node{
		Name:   "consumer",
		Kind:   graph.KindSink,
		Sig:    graph.Signature{Inputs: []graph.Port{{Name: "in", Kind: graph.KindScalar, ElemType: "int"}}},
		Inputs: []graph.Edge{{FromNode: rg.refSrc, FromOutput: "ref", ToInput: "in", RefFollow: true}},
	})

	eng, err := Build(g, tstime.Simulation, time.Unix(0, 0), NoopObserver{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := eng.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	rg.eng = eng
	return rg
}

func TestRefFollowBindsToNamedTarget(t *testing.T) {
	rg := buildRefGraph(t)
	eng := rg.eng

	next, ok := eng.sched.NextEventTime()
	if !ok {
		t.Fatal("expected the seeded initial wakeup")
	}
	if _, err := eng.Tick(next); err != nil {
		t.Fatalf("tick 1 (evaluate sources): %v", err)
	}

	// resolveRefLinks runs before the pending set is evaluated, so the
	// reference written during tick 1 is only picked up on tick 2.
	if _, err := eng.Tick(next.Add(time.Millisecond)); err != nil {
		t.Fatalf("tick 2 (resolve reference): %v", err)
	}

	consumer := eng.byID[tsvalue.RootID(rg.cons)]
	bound, ok := consumer.Inputs["in"]
	if !ok {
		t.Fatal("consumer's \"in\" input should be bound after the reference resolves")
	}
	if bound != eng.nodes[rg.targetA].Outputs["value"] {
		t.Fatal("consumer's \"in\" input should be bound to targetA's output")
	}
}

func TestRefFollowRebindsWhenTargetChanges(t *testing.T) {
	rg := buildRefGraph(t)
	eng := rg.eng

	next, _ := eng.sched.NextEventTime()
	eng.Tick(next)
	eng.Tick(next.Add(time.Millisecond))

	consumer := eng.byID[tsvalue.RootID(rg.cons)]
	if bound := consumer.Inputs["in"]; bound != eng.nodes[rg.targetA].Outputs["value"] {
		t.Fatal("precondition: consumer should start bound to targetA")
	}

	rg.which = 1
	reEval := next.Add(2 * time.Millisecond)
	eng.sched.ScheduleAt(reEval, tsvalue.RootID(rg.refSrc))
	if _, err := eng.Tick(reEval); err != nil {
		t.Fatalf("tick 3 (re-evaluate refSource): %v", err)
	}
	if _, err := eng.Tick(reEval.Add(time.Millisecond)); err != nil {
		t.Fatalf("tick 4 (resolve new reference): %v", err)
	}

	bound := consumer.Inputs["in"]
	if bound != eng.nodes[rg.targetB].Outputs["value"] {
		t.Fatal("consumer's \"in\" input should rebind to targetB's output once the reference changes")
	}
	if _, stillSubscribed := findSubscriber(eng.nodes[rg.targetA].Outputs["value"], consumer.ID); stillSubscribed {
		t.Fatal("consumer should no longer be subscribed to targetA's output after rebinding")
	}
}

func findSubscriber(out tsvalue.Output, id tsvalue.NodeID) (int, bool) {
	for i, s := range out.Subscribers() {
		if s == id {
			return i, true
		}
	}
	return -1, false
}
