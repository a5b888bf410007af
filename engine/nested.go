package engine

import (
	"fmt"

	"github.com/sbl8/tempo/graph"
	"github.com/sbl8/tempo/tstime"
	"github.com/sbl8/tempo/tsvalue"
)

// branchInstance is one dynamically instantiated sub-graph, rooted at a
// map-over-TSD key, an active switch case, or a try/except body.
type branchInstance struct {
	nodes    []*Node
	refLinks []*refLink
}

type mapState struct {
	branches map[string]*branchInstance
}

type switchState struct {
	active string
	branch *branchInstance
}

type tryState struct {
	branch *branchInstance
}

// startBranch starts every node of a freshly instantiated branch in
// topological order, registers it in the engine's node/resettable
// registries, and seeds its pull-source nodes for their first tick.
func (e *Engine) startBranch(order []int, nodes []*Node, resettables []tsvalue.Resettable, refLinks []*refLink, now tstime.EngineTime) error {
	for _, n := range nodes {
		e.byID[n.ID] = n
	}
	e.resettables = append(e.resettables, resettables...)
	e.refLinks = append(e.refLinks, refLinks...)
	for _, idx := range order {
		bn := nodes[idx]
		if err := bn.Start(); err != nil {
			return err
		}
		e.obs.OnNodeStart(bn.ID)
		if bn.Def.Kind == graph.KindPullSource {
			e.sched.ScheduleAt(now, bn.ID)
		}
	}
	return nil
}

// teardownBranch stops every node in a branch (reverse of start order is
// not tracked precisely; nodes rarely depend on stop ordering beyond
// "stopped before the container moves on") and removes it from the
// registry.
func (e *Engine) teardownBranch(b *branchInstance) error {
	for i := len(b.nodes) - 1; i >= 0; i-- {
		n := b.nodes[i]
		if err := n.Stop(); err != nil {
			return err
		}
		e.obs.OnNodeStop(n.ID)
		delete(e.byID, n.ID)
	}
	if len(b.refLinks) > 0 {
		torn := make(map[*refLink]bool, len(b.refLinks))
		for _, link := range b.refLinks {
			e.unbindRefLink(link)
			torn[link] = true
		}
		kept := e.refLinks[:0]
		for _, link := range e.refLinks {
			if !torn[link] {
				kept = append(kept, link)
			}
		}
		e.refLinks = kept
	}
	return nil
}

func (e *Engine) stopAllBranches(n *Node) {
	if st, ok := e.maps[n.ID]; ok {
		for _, b := range st.branches {
			e.teardownBranch(b)
		}
	}
	if st, ok := e.switches[n.ID]; ok && st.branch != nil {
		e.teardownBranch(st.branch)
	}
	if st, ok := e.tries[n.ID]; ok && st.branch != nil {
		e.teardownBranch(st.branch)
	}
}

// evalNestedMap implements map-over-TSD (spec.md §6.3): one instance of
// MapTemplate runs per key currently in the TSD bound to MapDriverInput,
// started the tick a key is added and stopped the tick it is removed.
func (e *Engine) evalNestedMap(n *Node, now tstime.EngineTime) error {
	def := n.Def
	driverOut, ok := n.Inputs[def.MapDriverInput]
	if !ok {
		return fmt.Errorf("map node %q: no input bound for driver %q", n.ID, def.MapDriverInput)
	}
	dk, ok := driverOut.(tsvalue.DynamicKeyed)
	if !ok {
		return fmt.Errorf("map node %q: driver input is not a dynamically keyed output", n.ID)
	}

	st := e.maps[n.ID]
	if st == nil {
		st = &mapState{branches: make(map[string]*branchInstance)}
		e.maps[n.ID] = st
	}

	for _, token := range dk.RemovedKeys() {
		b, ok := st.branches[token]
		if !ok {
			continue
		}
		if err := e.teardownBranch(b); err != nil {
			return err
		}
		delete(st.branches, token)
	}

	for _, token := range dk.AddedKeys() {
		valueOut, ok := dk.GetOutput(token)
		if !ok {
			continue
		}
		branchID := n.ID.Branch(token)
		nodes, resettables, refLinks, err := instantiate(def.MapTemplate, branchID, e.sched, map[string]tsvalue.Output{"value": valueOut})
		if err != nil {
			return err
		}
		if err := e.startBranch(def.MapTemplate.ByRank(), nodes, resettables, refLinks, now); err != nil {
			return err
		}
		st.branches[token] = &branchInstance{nodes: nodes, refLinks: refLinks}
	}
	return nil
}

// evalNestedSwitch implements a selector-driven sub-graph swap (spec.md
// §6.3): at most one case's template runs at a time, torn down and
// replaced whenever the selector input changes to a different case.
func (e *Engine) evalNestedSwitch(n *Node, now tstime.EngineTime) error {
	def := n.Def
	selOut, ok := n.Inputs[def.SwitchSelectorInput]
	if !ok {
		return fmt.Errorf("switch node %q: no input bound for selector %q", n.ID, def.SwitchSelectorInput)
	}
	sel, ok := selOut.(tsvalue.Stringer)
	if !ok {
		return fmt.Errorf("switch node %q: selector input cannot be rendered as a string", n.ID)
	}

	st := e.switches[n.ID]
	if st == nil {
		st = &switchState{}
		e.switches[n.ID] = st
	}

	key := sel.ValueString()
	if st.branch != nil && st.active == key {
		return nil
	}

	sub, ok := def.SwitchCases[key]
	if !ok {
		return fmt.Errorf("switch node %q: no case for selector value %q", n.ID, key)
	}

	if st.branch != nil {
		if err := e.teardownBranch(st.branch); err != nil {
			return err
		}
		st.branch = nil
	}

	externals := make(map[string]tsvalue.Output, len(n.Inputs))
	for name, out := range n.Inputs {
		if name != def.SwitchSelectorInput {
			externals[name] = out
		}
	}

	branchID := n.ID.Branch(key)
	nodes, resettables, refLinks, err := instantiate(sub, branchID, e.sched, externals)
	if err != nil {
		return err
	}
	if err := e.startBranch(sub.ByRank(), nodes, resettables, refLinks, now); err != nil {
		return err
	}
	st.active = key
	st.branch = &branchInstance{nodes: nodes, refLinks: refLinks}
	return nil
}

// evalNestedTryExcept runs TryTemplate under isolation (spec.md §6.3): a
// failing node inside the body is caught and recorded on the container's
// "exception" output instead of failing the whole tick.
func (e *Engine) evalNestedTryExcept(n *Node, now tstime.EngineTime) (err error) {
	def := n.Def

	st := e.tries[n.ID]
	if st == nil {
		nodes, resettables, refLinks, buildErr := instantiate(def.TryTemplate, n.ID, e.sched, n.Inputs)
		if buildErr != nil {
			return buildErr
		}
		if startErr := e.startBranch(def.TryTemplate.ByRank(), nodes, resettables, refLinks, now); startErr != nil {
			return startErr
		}
		st = &tryState{branch: &branchInstance{nodes: nodes, refLinks: refLinks}}
		e.tries[n.ID] = st
	}

	recordFailure := func(cause error) {
		if out, ok := n.Outputs["exception"].(*tsvalue.Cell[string]); ok && out.CanApplyResult(now) {
			out.ApplyResult(now, cause.Error())
		}
	}

	defer func() {
		if r := recover(); r != nil {
			recordFailure(fmt.Errorf("panic: %v", r))
			err = nil
		}
	}()

	for _, bn := range st.branch.nodes {
		if !bn.Eligible(now) {
			continue
		}
		if evalErr := e.evalNode(bn, now); evalErr != nil {
			recordFailure(evalErr)
			return nil
		}
		bn.MarkEvaluated(now)
	}
	return nil
}
