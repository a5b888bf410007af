package engine

import (
	"time"

	"github.com/sbl8/tempo/graph"
	"github.com/sbl8/tempo/tstime"
	"github.com/sbl8/tempo/tsvalue"
)

// Engine runs one built graph.Graph: it owns the live node instances, the
// scheduler, and the logical clock, and drives ticks either as fast as
// possible (Simulation) or paced against wall-clock time (RealTime)
// (spec.md §4.2, §6.1).
type Engine struct {
	g     *graph.Graph
	clock *tstime.Clock
	sched *Scheduler
	nodes []*Node
	byID  map[tsvalue.NodeID]*Node
	obs   Observer
	tick  int64

	maps     map[tsvalue.NodeID]*mapState
	switches map[tsvalue.NodeID]*switchState
	tries    map[tsvalue.NodeID]*tryState

	resettables []tsvalue.Resettable
	refLinks    []*refLink
}

// Build constructs an Engine from a topologically built graph.Graph. g
// must not be mutated afterward.
func Build(g *graph.Graph, mode tstime.Mode, start time.Time, obs Observer) (*Engine, error) {
	if err := g.Build(); err != nil {
		return nil, err
	}
	if obs == nil {
		obs = NoopObserver{}
	}

	rankOf := make(map[tsvalue.NodeID]int, len(g.Nodes))
	for i, n := range g.Nodes {
		rankOf[tsvalue.RootID(i)] = n.Rank
	}
	sched := NewScheduler(rankOf)

	nodes, resettables, refLinks, err := instantiate(g, "", sched, nil)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		g:           g,
		clock:       tstime.NewClock(mode, start),
		sched:       sched,
		nodes:       nodes,
		byID:        make(map[tsvalue.NodeID]*Node, len(nodes)),
		obs:         obs,
		maps:        make(map[tsvalue.NodeID]*mapState),
		switches:    make(map[tsvalue.NodeID]*switchState),
		tries:       make(map[tsvalue.NodeID]*tryState),
		resettables: resettables,
		refLinks:    refLinks,
	}
	for _, n := range nodes {
		e.byID[n.ID] = n
	}
	return e, nil
}

// Clock exposes the evaluator's logical clock, for node compute functions
// that need "what time is it" outside of their own eval call.
func (e *Engine) Clock() tstime.EvaluationClock { return e.clock }

// Scheduler exposes the engine's scheduler, for push-source adapters that
// need to ScheduleAt a wakeup from outside the tick loop.
func (e *Engine) Scheduler() *Scheduler { return e.sched }

// NodeOutput returns a root-level node's named output, for wiring
// external observers or adapters onto the running graph.
func (e *Engine) NodeOutput(idx int, name string) (tsvalue.Output, bool) {
	if idx < 0 || idx >= len(e.nodes) {
		return nil, false
	}
	out, ok := e.nodes[idx].Outputs[name]
	return out, ok
}

// Start runs every node's OnStart hook in topological order (spec.md §5),
// then seeds the first tick for every pull-source node — a pull-source
// reschedules itself on every subsequent evaluation, so only the initial
// wakeup needs to come from the engine.
func (e *Engine) Start() error {
	for _, idx := range e.g.ByRank() {
		n := e.nodes[idx]
		if err := n.Start(); err != nil {
			return err
		}
		e.obs.OnNodeStart(n.ID)
		if n.Def.Kind == graph.KindPullSource {
			e.sched.ScheduleAt(e.clock.EvaluationTime(), n.ID)
		}
	}
	return nil
}

// Stop tears down every active nested branch and then runs every node's
// OnStop hook in reverse topological order.
func (e *Engine) Stop() error {
	order := e.g.ByRank()
	for i := len(order) - 1; i >= 0; i-- {
		n := e.nodes[order[i]]
		e.stopAllBranches(n)
		if err := n.Stop(); err != nil {
			return err
		}
		e.obs.OnNodeStop(n.ID)
	}
	return nil
}

// Tick advances the clock to now, drains any due future events into the
// pending set, then evaluates eligible nodes in rank order, re-draining
// the pending set after each pass until it comes back empty — a node's
// Eval can itself notify a downstream consumer, which must still run
// within the same tick rather than wait for a future wakeup (spec.md
// §6.1, §4.1 invariant 2, "until pending_now is empty"). Each node still
// evaluates at most once per tick regardless of how many passes that
// takes, enforced by Node.Eligible/MarkEvaluated.
func (e *Engine) Tick(now tstime.EngineTime) (int, error) {
	e.clock.AdvanceTo(now)
	for _, r := range e.resettables {
		r.BeginTick()
	}
	e.sched.BeginTick(now)
	e.sched.DrainDue(now)
	if err := e.resolveRefLinks(now); err != nil {
		return 0, err
	}

	evaluated := 0
	pendingLen := 0
	for {
		order := e.sched.PendingInRankOrder()
		if len(order) == 0 {
			break
		}
		pendingLen += len(order)
		for _, id := range order {
			n, ok := e.byID[id]
			if !ok {
				continue
			}
			if !n.Eligible(now) {
				continue
			}
			t0 := time.Now()
			err := e.evalNode(n, now)
			e.obs.OnNodeEval(n.ID, time.Since(t0), err)
			n.MarkEvaluated(now)
			evaluated++
			if err != nil {
				return evaluated, &EvalError{Node: string(n.ID), Tick: e.tick, Err: err}
			}
		}
	}

	e.tick++
	e.obs.OnTick(now, evaluated, pendingLen)
	return evaluated, nil
}

func (e *Engine) evalNode(n *Node, now tstime.EngineTime) error {
	switch n.Def.Kind {
	case graph.KindNestedMap:
		return e.evalNestedMap(n, now)
	case graph.KindNestedSwitch:
		return e.evalNestedSwitch(n, now)
	case graph.KindNestedTryExcept:
		return e.evalNestedTryExcept(n, now)
	default:
		if n.Def.Eval == nil {
			return nil
		}
		return n.Def.Eval(now, n.Inputs, n.Outputs)
	}
}

// Run drives ticks until the scheduler has nothing left to do at or
// before stop. In Simulation mode ticks fire back to back at whatever
// time the next event requests; in RealTime mode the loop sleeps until
// wall-clock time reaches that point, waking early if a push source
// delivers something sooner.
func (e *Engine) Run(stop tstime.EngineTime) error {
	for {
		next, ok := e.sched.NextEventTime()
		if !ok || next > stop {
			return nil
		}

		if e.clock.Mode() == tstime.RealTime {
			d := time.Until(next.Time())
			if d > 0 {
				timer := time.NewTimer(d)
				select {
				case <-timer.C:
				case <-e.sched.Wake():
					timer.Stop()
				}
			}
		}

		if _, err := e.Tick(next); err != nil {
			return err
		}
	}
}
