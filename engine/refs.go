package engine

import (
	"github.com/sbl8/tempo/tstime"
	"github.com/sbl8/tempo/tsvalue"
)

// refLink tracks one reference-following input: a consumer's ToInput port
// mirrors whatever output the referenced node/port names, rebound live
// whenever the reference value changes (spec.md §3 "Reference values").
// Rebinding lives here rather than in tsvalue because following a
// reference requires looking up a NodeID's live output, which only the
// engine's node registry knows how to do.
type refLink struct {
	consumer  *Node
	inputName string
	refSource *tsvalue.Cell[tsvalue.Ref]

	boundTarget tsvalue.NodeID
	boundPort   string
	bound       bool
}

// resolveRefLinks rebinds every reference-following input whose reference
// value is new as of now. Called once per tick, after future events have
// been drained into the pending set and before that set is read in rank
// order, so a freshly bound input that is already valid can still be
// notified in the same tick it was rebound. Ordinary static binding only
// subscribes and sends no such notification.
func (e *Engine) resolveRefLinks(now tstime.EngineTime) error {
	for _, link := range e.refLinks {
		if !link.refSource.Valid() {
			continue
		}
		ref := link.refSource.Value()
		target, valid := ref.Target()
		if !valid {
			e.unbindRefLink(link)
			continue
		}
		port := ref.Port()
		if link.bound && link.boundTarget == target && link.boundPort == port {
			continue
		}
		targetNode, ok := e.byID[target]
		if !ok {
			return &WiringError{Node: string(link.consumer.ID), Err: errRefTargetMissing(target)}
		}
		out, ok := targetNode.Outputs[port]
		if !ok {
			return &WiringError{Node: string(link.consumer.ID), Err: errRefPortMissing(target, port)}
		}

		e.unbindRefLink(link)
		link.consumer.Inputs[link.inputName] = out
		out.Subscribe(link.consumer.ID)
		link.boundTarget = target
		link.boundPort = port
		link.bound = true
		if out.Valid() {
			e.sched.Notify(link.consumer.ID)
		}
	}
	return nil
}

func (e *Engine) unbindRefLink(link *refLink) {
	if !link.bound {
		return
	}
	if out, ok := link.consumer.Inputs[link.inputName]; ok {
		out.Unsubscribe(link.consumer.ID)
	}
	delete(link.consumer.Inputs, link.inputName)
	link.bound = false
}
