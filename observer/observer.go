// Package observer wires an engine.Engine's lifecycle and per-tick
// telemetry into Prometheus and OpenTelemetry, and exposes the
// subscribe/unsubscribe surface spec.md §6.4 calls for — external callers
// getting a token back for a running subscription, the way the original
// hgraph inspector/perspective-publish machinery lets a caller watch a
// subset of the graph without touching its wiring.
package observer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sbl8/tempo/tstime"
	"github.com/sbl8/tempo/tsvalue"
)

// Metrics holds the Prometheus instruments a Collector reports to. Create
// one with NewMetrics, which also registers it with the given
// prometheus.Registerer, and hand it to NewCollector.
type Metrics struct {
	TicksTotal     prometheus.Counter
	NodeEvalSecs   *prometheus.HistogramVec
	PendingDepth   prometheus.Gauge
	NodeErrorTotal *prometheus.CounterVec
}

// NewMetrics constructs the metric set and registers it with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tempo_ticks_total",
			Help: "Number of evaluator ticks processed.",
		}),
		NodeEvalSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tempo_node_eval_seconds",
			Help:    "Per-node evaluation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"node"}),
		PendingDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tempo_pending_depth",
			Help: "Nodes taken from the pending set during the most recent tick.",
		}),
		NodeErrorTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tempo_node_error_total",
			Help: "Errors raised by node evaluation, by node.",
		}, []string{"node"}),
	}
	reg.MustRegister(m.TicksTotal, m.NodeEvalSecs, m.PendingDepth, m.NodeErrorTotal)
	return m
}

// Collector implements engine.Observer against Prometheus metrics and an
// OpenTelemetry tracer, and fans the same events out to any number of
// subscribers registered via Subscribe/SubscribeNode.
type Collector struct {
	metrics *Metrics
	tracer  trace.Tracer

	mu        sync.Mutex
	graphSubs map[uuid.UUID]chan Event
	nodeSubs  map[uuid.UUID]nodeSub

	tickSpan trace.Span
	tickCtx  context.Context
}

type nodeSub struct {
	node tsvalue.NodeID
	ch   chan Event
}

// Event is delivered to a subscriber for every node evaluation that
// occurred while their subscription was active.
type Event struct {
	Node     tsvalue.NodeID
	Tick     tstime.EngineTime
	Duration time.Duration
	Err      error
}

// NewCollector constructs a Collector. tracer may be nil, in which case
// spans are not recorded.
func NewCollector(metrics *Metrics, tracer trace.Tracer) *Collector {
	return &Collector{
		metrics:   metrics,
		tracer:    tracer,
		graphSubs: make(map[uuid.UUID]chan Event),
		nodeSubs:  make(map[uuid.UUID]nodeSub),
	}
}

// Subscribe registers to receive every node-evaluation event across the
// whole graph, returning a token to later Unsubscribe and the channel
// events arrive on. The channel is buffered; a slow reader drops events
// rather than blocking the engine.
func (c *Collector) Subscribe() (uuid.UUID, <-chan Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := uuid.New()
	ch := make(chan Event, 256)
	c.graphSubs[id] = ch
	return id, ch
}

// SubscribeNode registers to receive events only for one node.
func (c *Collector) SubscribeNode(node tsvalue.NodeID) (uuid.UUID, <-chan Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := uuid.New()
	ch := make(chan Event, 64)
	c.nodeSubs[id] = nodeSub{node: node, ch: ch}
	return id, ch
}

// Unsubscribe removes a subscription registered by either Subscribe or
// SubscribeNode and closes its channel.
func (c *Collector) Unsubscribe(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.graphSubs[id]; ok {
		close(ch)
		delete(c.graphSubs, id)
		return
	}
	if sub, ok := c.nodeSubs[id]; ok {
		close(sub.ch)
		delete(c.nodeSubs, id)
	}
}

func (c *Collector) dispatch(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.graphSubs {
		select {
		case ch <- ev:
		default:
		}
	}
	for _, sub := range c.nodeSubs {
		if sub.node != ev.Node {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// OnNodeStart implements engine.Observer.
func (c *Collector) OnNodeStart(tsvalue.NodeID) {}

// OnNodeStop implements engine.Observer.
func (c *Collector) OnNodeStop(tsvalue.NodeID) {}

// OnNodeEval implements engine.Observer: records the Prometheus
// histogram/counter, emits a child span under the current tick's span if
// tracing is enabled, and dispatches an Event to matching subscribers.
func (c *Collector) OnNodeEval(id tsvalue.NodeID, dur time.Duration, err error) {
	c.metrics.NodeEvalSecs.WithLabelValues(string(id)).Observe(dur.Seconds())
	if err != nil {
		c.metrics.NodeErrorTotal.WithLabelValues(string(id)).Inc()
	}
	if c.tracer != nil && c.tickCtx != nil {
		_, span := c.tracer.Start(c.tickCtx, "node.eval", trace.WithAttributes(
			attribute.String("tempo.node", string(id)),
		))
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
	c.dispatch(Event{Node: id, Duration: dur, Err: err})
}

// OnTick implements engine.Observer: updates per-tick gauges and opens
// (then closes) the span every node.eval span in this tick nests under.
func (c *Collector) OnTick(now tstime.EngineTime, evaluated int, pendingDepth int) {
	c.metrics.TicksTotal.Inc()
	c.metrics.PendingDepth.Set(float64(pendingDepth))

	if c.tracer != nil {
		if c.tickSpan != nil {
			c.tickSpan.End()
		}
		ctx, span := c.tracer.Start(context.Background(), "engine.tick", trace.WithAttributes(
			attribute.Int64("tempo.evaluation_time_us", int64(now)),
			attribute.Int("tempo.evaluated", evaluated),
		))
		c.tickCtx = ctx
		c.tickSpan = span
	}
}
