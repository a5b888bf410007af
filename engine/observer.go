package engine

import (
	"time"

	"github.com/sbl8/tempo/tstime"
	"github.com/sbl8/tempo/tsvalue"
)

// Observer receives lifecycle and per-tick telemetry from a running
// Engine (spec.md §6.4). The observer package implements this against
// Prometheus and OpenTelemetry; tests and small tools can use
// NoopObserver.
type Observer interface {
	OnNodeStart(id tsvalue.NodeID)
	OnNodeStop(id tsvalue.NodeID)
	OnNodeEval(id tsvalue.NodeID, dur time.Duration, err error)
	OnTick(now tstime.EngineTime, evaluated int, pendingDepth int)
}

// NoopObserver discards every event.
type NoopObserver struct{}

func (NoopObserver) OnNodeStart(tsvalue.NodeID)                      {}
func (NoopObserver) OnNodeStop(tsvalue.NodeID)                       {}
func (NoopObserver) OnNodeEval(tsvalue.NodeID, time.Duration, error) {}
func (NoopObserver) OnTick(tstime.EngineTime, int, int)              {}
