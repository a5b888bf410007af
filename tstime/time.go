// Package tstime provides the engine's logical clock.
//
// EngineTime is a monotonically non-decreasing timestamp with microsecond
// precision. It never regresses within a run: the evaluator only ever hands
// out times that are greater than or equal to the previous tick's time, and
// two distinct ticks never share a time value (requests for the same time
// coalesce into one tick, per spec.md §4.4).
package tstime

import (
	"fmt"
	"math"
	"time"
)

// EngineTime is microseconds since the Unix epoch, or one of the two
// sentinels below. It is the unit every output's last-modified-time, every
// scheduled event, and every clock in this repository is expressed in.
type EngineTime int64

const (
	// MinTime sorts before every real timestamp. Used as the "never
	// modified" sentinel on a freshly built output.
	MinTime EngineTime = math.MinInt64

	// MaxTime sorts after every real timestamp. Used as the stop-time
	// sentinel for an unbounded run.
	MaxTime EngineTime = math.MaxInt64
)

// FromTime converts a wall-clock time.Time to EngineTime at microsecond
// resolution.
func FromTime(t time.Time) EngineTime {
	return EngineTime(t.UnixMicro())
}

// Time converts back to a wall-clock time.Time. Meaningless for the
// sentinels; callers must guard against MinTime/MaxTime first.
func (t EngineTime) Time() time.Time {
	return time.UnixMicro(int64(t))
}

// Add returns t advanced by d. A sentinel (MinTime or MaxTime) is returned
// unchanged; no other overflow check is made.
func (t EngineTime) Add(d time.Duration) EngineTime {
	if t == MaxTime || t == MinTime {
		return t
	}
	return t + EngineTime(d.Microseconds())
}

// Sub returns the duration between two engine times.
func (t EngineTime) Sub(u EngineTime) time.Duration {
	return time.Duration(int64(t)-int64(u)) * time.Microsecond
}

func (t EngineTime) String() string {
	switch t {
	case MinTime:
		return "MIN_DT"
	case MaxTime:
		return "MAX_DT"
	default:
		return fmt.Sprintf("%s", t.Time().UTC().Format("2006-01-02T15:04:05.000000Z"))
	}
}

// Mode selects how the evaluator paces ticks against wall-clock time.
type Mode int

const (
	// Simulation runs the engine as fast as possible: the next scheduled
	// event fires immediately regardless of wall-clock time.
	Simulation Mode = iota
	// RealTime blocks between ticks until wall-clock time reaches the
	// next scheduled event, or an external push-source event arrives
	// earlier.
	RealTime
)

func (m Mode) String() string {
	if m == RealTime {
		return "real_time"
	}
	return "simulation"
}

// EvaluationClock is what a node's eval function reads to find out "when
// is it". EvaluationTime is always the tick's engine time; Now is wall
// clock in real-time mode and equal to EvaluationTime in simulation, so
// node logic that measures "how stale is this" behaves sensibly in both
// modes.
type EvaluationClock interface {
	EvaluationTime() EngineTime
	Now() EngineTime
	Mode() Mode
}

// Clock is the evaluator's concrete EvaluationClock, advanced once per
// tick by the evaluator itself via AdvanceTo.
type Clock struct {
	mode  Mode
	evalT EngineTime
	start time.Time
}

// NewClock constructs a Clock in the given mode, with evaluation time
// starting at start.
func NewClock(mode Mode, start time.Time) *Clock {
	return &Clock{mode: mode, start: start, evalT: FromTime(start)}
}

func (c *Clock) EvaluationTime() EngineTime { return c.evalT }

func (c *Clock) Now() EngineTime {
	if c.mode == RealTime {
		return FromTime(time.Now())
	}
	return c.evalT
}

func (c *Clock) Mode() Mode { return c.mode }

// AdvanceTo moves the clock's evaluation time forward to t. The evaluator
// never calls this with a t earlier than the current evaluation time.
func (c *Clock) AdvanceTo(t EngineTime) { c.evalT = t }

// StartTime returns the wall-clock time the engine was constructed at.
func (c *Clock) StartTime() time.Time { return c.start }
