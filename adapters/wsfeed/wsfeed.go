// Package wsfeed drives a push-source node from a WebSocket client
// connection, grounded on the pack's own gorilla/websocket client usage:
// a read loop owns the connection and enqueues inbound frames; a node's
// Eval drains whatever arrived since the last tick and commits it to the
// output cell, keeping every write to the cell on the engine's own
// evaluation goroutine.
package wsfeed

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sbl8/tempo/engine"
	"github.com/sbl8/tempo/graph"
	"github.com/sbl8/tempo/tstime"
	"github.com/sbl8/tempo/tsvalue"
)

// Source is a push-source node fed by a WebSocket connection's inbound
// text/binary frames.
type Source struct {
	Node     *graph.Node
	messages chan []byte
	stop     chan struct{}
}

// NewNode constructs an unbound WebSocket feed node named name, whose
// single output port "message" carries the most recent frame payload.
func NewNode(name string) *Source {
	s := &Source{
		messages: make(chan []byte, 256),
		stop:     make(chan struct{}),
	}
	s.Node = &graph.Node{
		Name: name,
		Kind: graph.KindPushSource,
		Sig: graph.Signature{
			Outputs: []graph.Port{{Name: "message", Kind: graph.KindScalar, ElemType: "[]byte"}},
		},
		NewOutputs: func(owner tsvalue.NodeID, sched tsvalue.Notifier) map[string]tsvalue.Output {
			return map[string]tsvalue.Output{"message": tsvalue.NewCell[[]byte](owner, sched)}
		},
		Eval: func(now tstime.EngineTime, _ map[string]tsvalue.Output, outputs map[string]tsvalue.Output) error {
			out := outputs["message"].(*tsvalue.Cell[[]byte])
			var last []byte
			got := false
			for {
				select {
				case m := <-s.messages:
					last, got = m, true
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

// Start dials url and begins forwarding every inbound frame to the graph.
// idx is the index this node was given by graph.AddNode in the root
// graph.
func (s *Source) Start(eng *engine.Engine, idx int, url string) (func() error, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("wsfeed: dialing %s: %w", url, err)
	}

	id := tsvalue.RootID(idx)
	sched := eng.Scheduler()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case s.messages <- payload:
			default:
			}
			sched.ScheduleAt(tstime.FromTime(time.Now()), id)
		}
	}()

	go func() {
		<-s.stop
		conn.Close()
	}()

	return func() error {
		close(s.stop)
		<-done
		return nil
	}, nil
}
