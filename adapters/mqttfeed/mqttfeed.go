// Package mqttfeed drives a push-source node from an MQTT subscription,
// grounded on the pack's autopaho-based publisher: an autopaho
// ConnectionManager owns the broker connection and reconnects under the
// hood, and AddOnPublishReceived enqueues inbound publishes for a node's
// Eval to drain on the next tick.
package mqttfeed

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/sbl8/tempo/engine"
	"github.com/sbl8/tempo/graph"
	"github.com/sbl8/tempo/tstime"
	"github.com/sbl8/tempo/tsvalue"
)

// Message is one MQTT publish delivered to the graph.
type Message struct {
	Topic   string
	Payload []byte
}

// Source is a push-source node fed by an MQTT topic subscription.
type Source struct {
	Node     *graph.Node
	messages chan Message
	cancel   context.CancelFunc
}

// NewNode constructs an unbound MQTT feed node named name, whose single
// output port "message" carries the most recently received publish.
func NewNode(name string) *Source {
	s := &Source{messages: make(chan Message, 256)}
	s.Node = &graph.Node{
		Name: name,
		Kind: graph.KindPushSource,
		Sig: graph.Signature{
			Outputs: []graph.Port{{Name: "message", Kind: graph.KindScalar, ElemType: "mqttfeed.Message"}},
		},
		NewOutputs: func(owner tsvalue.NodeID, sched tsvalue.Notifier) map[string]tsvalue.Output {
			return map[string]tsvalue.Output{"message": tsvalue.NewCell[Message](owner, sched)}
		},
		Eval: func(now tstime.EngineTime, _ map[string]tsvalue.Output, outputs map[string]tsvalue.Output) error {
			out := outputs["message"].(*tsvalue.Cell[Message])
			var last Message
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

// Start connects to the broker at brokerURL and subscribes to topic,
// forwarding every publish to the graph. idx is the index this node was
// given by graph.AddNode in the root graph.
func (s *Source) Start(eng *engine.Engine, idx int, brokerURL, topic string) (func() error, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("mqttfeed: parsing broker url: %w", err)
	}

	id := tsvalue.RootID(idx)
	sched := eng.Scheduler()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	cfg := autopaho.ClientConfig{
		ServerUrls: []*url.URL{u},
		KeepAlive:  30,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			subCtx, subCancel := context.WithTimeout(ctx, 10*time.Second)
			defer subCancel()
			cm.Subscribe(subCtx, &paho.Subscribe{
				Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: 0}},
			})
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "tempo-" + string(id),
		},
	}

	cm, err := autopaho.NewConnection(ctx, cfg)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("mqttfeed: connecting to %s: %w", brokerURL, err)
	}

	cm.AddOnPublishReceived(func(pr autopaho.PublishReceived) (bool, error) {
		select {
		case s.messages <- Message{Topic: pr.Packet.Topic, Payload: pr.Packet.Payload}:
		default:
		}
		sched.ScheduleAt(tstime.FromTime(time.Now()), id)
		return true, nil
	})

	return func() error {
		cancel()
		return cm.Disconnect(context.Background())
	}, nil
}
