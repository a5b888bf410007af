// Package filefeed drives a push-source node from filesystem change
// events, grounded on the hot-reload watcher in the pack's config-reload
// tooling: an fsnotify.Watcher runs in its own goroutine and a node's Eval
// drains whatever arrived since the last tick, so the only code that ever
// touches the output cell is the engine's own evaluation goroutine.
package filefeed

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sbl8/tempo/engine"
	"github.com/sbl8/tempo/graph"
	"github.com/sbl8/tempo/tstime"
	"github.com/sbl8/tempo/tsvalue"
)

// Event is one filesystem change delivered to the graph: the changed
// path and the fsnotify operation that fired.
type Event struct {
	Path string
	Op   string
}

// Source is a push-source node fed by a directory watch. Build its Node,
// wire it into a graph.Graph, and call Start once the owning engine is
// running.
type Source struct {
	Node   *graph.Node
	events chan Event
	stop   chan struct{}
}

// NewNode constructs an unbound filesystem watch node named name, whose
// single output port "event" carries the most recent Event.
func NewNode(name string) *Source {
	s := &Source{
		events: make(chan Event, 256),
		stop:   make(chan struct{}),
	}
	s.Node = &graph.Node{
		Name: name,
		Kind: graph.KindPushSource,
		Sig: graph.Signature{
			Outputs: []graph.Port{{Name: "event", Kind: graph.KindScalar, ElemType: "filefeed.Event"}},
		},
		NewOutputs: func(owner tsvalue.NodeID, sched tsvalue.Notifier) map[string]tsvalue.Output {
			return map[string]tsvalue.Output{"event": tsvalue.NewCell[Event](owner, sched)}
		},
		Eval: func(now tstime.EngineTime, _ map[string]tsvalue.Output, outputs map[string]tsvalue.Output) error {
			out := outputs["event"].(*tsvalue.Cell[Event])
			var last Event
			got := false
			for {
				select {
				case ev := <-s.events:
					last, got = ev, true
					continue
				default:
				}
				break
			}
			if !got || !out.CanApplyResult(now) {
				return nil
			}
			return out.ApplyResult(now, last)
		},
	}
	return s
}

// Start begins watching dir for changes and scheduling a tick for every
// event observed. idx is the index this node was given by graph.AddNode
// in the root graph. Stop the returned watcher with the returned func.
func (s *Source) Start(eng *engine.Engine, idx int, dir string) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("filefeed: starting watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("filefeed: watching %s: %w", dir, err)
	}

	id := tsvalue.RootID(idx)
	sched := eng.Scheduler()

	go func() {
		for {
			select {
			case <-s.stop:
				watcher.Close()
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				select {
				case s.events <- Event{Path: ev.Name, Op: ev.Op.String()}:
				default:
				}
				sched.ScheduleAt(tstime.FromTime(time.Now()), id)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return func() error {
		close(s.stop)
		return nil
	}, nil
}
