package main

import (
	"flag"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/sbl8/tempo/engine"
	"github.com/sbl8/tempo/graph"
	"github.com/sbl8/tempo/tstime"
	"github.com/sbl8/tempo/tsvalue"
)

var (
	nodes = flag.Int("nodes", 1000, "Number of chained compute nodes")
	ticks = flag.Int("ticks", 10000, "Number of ticks to run")
)

func main() {
	flag.Parse()

	fmt.Printf("Tempo Graph Benchmark\n")
	fmt.Printf("======================\n")
	fmt.Printf("Go Version: %s\n", runtime.Version())
	fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("CPUs: %d\n", runtime.NumCPU())
	fmt.Printf("Chain length: %d nodes\n", *nodes)
	fmt.Printf("Ticks: %d\n\n", *ticks)

	runChainBenchmark()
}

// runChainBenchmark builds a linear chain of *nodes compute nodes — each
// adding 1 to the previous node's output — and measures
// end-to-end evaluation throughput over *ticks ticks of the pull-source
// driving the chain.
func runChainBenchmark() {
	g := graph.New("bench-chain")

	srcIdx := g.AddNode(&graph.Node{
		Name: "source",
		Kind: graph.KindPullSource,
		Sig:  graph.Signature{Outputs: []graph.Port{{Name: "value", Kind: graph.KindScalar, ElemType: "float64"}}},
		NewOutputs: func(owner tsvalue.NodeID, sched tsvalue.Notifier) map[string]tsvalue.Output {
			return map[string]tsvalue.Output{"value": tsvalue.NewCell[float64](owner, sched)}
		},
		Eval: func(now tstime.EngineTime, _ map[string]tsvalue.Output, outputs map[string]tsvalue.Output) error {
			out := outputs["value"].(*tsvalue.Cell[float64])
			if !out.CanApplyResult(now) {
				return nil
			}
			return out.ApplyResult(now, rand.Float64())
		},
	})

	prev := srcIdx
	for i := 0; i < *nodes; i++ {
		idx := g.AddNode(&graph.Node{
			Name: fmt.Sprintf("stage-%d", i),
			Kind: graph.KindCompute,
			Sig: graph.Signature{
				Inputs:  []graph.Port{{Name: "in", Kind: graph.KindScalar, ElemType: "float64"}},
				Outputs: []graph.Port{{Name: "value", Kind: graph.KindScalar, ElemType: "float64"}},
			},
			Inputs: []graph.Edge{{FromNode: prev, FromOutput: "value", ToInput: "in"}},
			NewOutputs: func(owner tsvalue.NodeID, sched tsvalue.Notifier) map[string]tsvalue.Output {
				return map[string]tsvalue.Output{"value": tsvalue.NewCell[float64](owner, sched)}
			},
			Eval: func(now tstime.EngineTime, inputs map[string]tsvalue.Output, outputs map[string]tsvalue.Output) error {
				in := inputs["in"].(*tsvalue.Cell[float64])
				out := outputs["value"].(*tsvalue.Cell[float64])
				if !in.AllValid() || !out.CanApplyResult(now) {
					return nil
				}
				return out.ApplyResult(now, in.Value()+1)
			},
		})
		prev = idx
	}

	eng, err := engine.Build(g, tstime.Simulation, time.Now(), engine.NoopObserver{})
	if err != nil {
		fmt.Printf("build failed: %v\n", err)
		return
	}
	if err := eng.Start(); err != nil {
		fmt.Printf("start failed: %v\n", err)
		return
	}

	start := time.Now()
	now := tstime.FromTime(start)
	evaluated := 0
	for i := 0; i < *ticks; i++ {
		now = now.Add(time.Millisecond)
		eng.Scheduler().ScheduleAt(now, tsvalue.RootID(srcIdx))
		n, err := eng.Tick(now)
		if err != nil {
			fmt.Printf("tick %d failed: %v\n", i, err)
			break
		}
		evaluated += n
	}
	elapsed := time.Since(start)

	fmt.Printf("Total node evaluations: %d\n", evaluated)
	fmt.Printf("Elapsed: %v\n", elapsed)
	fmt.Printf("Throughput: %.2f node-evals/sec\n", float64(evaluated)/elapsed.Seconds())

	eng.Stop()
}
