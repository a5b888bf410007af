package tstime

import (
	"testing"
	"time"
)

func TestFromTimeRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 30, 0, 0, time.UTC)
	et := FromTime(now)
	back := et.Time().UTC()
	if !back.Equal(now) {
		t.Fatalf("round trip mismatch: got %v want %v", back, now)
	}
}

func TestAddClampsAtSentinels(t *testing.T) {
	if got := MaxTime.Add(time.Hour); got != MaxTime {
		t.Fatalf("MaxTime.Add should clamp, got %v", got)
	}
	if got := MinTime.Add(-time.Hour); got != MinTime {
		t.Fatalf("MinTime.Add should clamp, got %v", got)
	}
}

func TestAddAdvances(t *testing.T) {
	base := FromTime(time.Unix(0, 0))
	got := base.Add(time.Second)
	want := base + EngineTime(time.Second.Microseconds())
	if got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestSub(t *testing.T) {
	a := FromTime(time.Unix(10, 0))
	b := FromTime(time.Unix(5, 0))
	if got := a.Sub(b); got != 5*time.Second {
		t.Fatalf("got %v want 5s", got)
	}
}

func TestStringSentinels(t *testing.T) {
	if MinTime.String() != "MIN_DT" {
		t.Fatalf("got %q", MinTime.String())
	}
	if MaxTime.String() != "MAX_DT" {
		t.Fatalf("got %q", MaxTime.String())
	}
}

func TestClockModes(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sim := NewClock(Simulation, start)
	if sim.Now() != sim.EvaluationTime() {
		t.Fatalf("simulation clock Now() should equal EvaluationTime()")
	}

	rt := NewClock(RealTime, start)
	rt.AdvanceTo(FromTime(start.Add(time.Hour)))
	if rt.Now() == rt.EvaluationTime() {
		t.Fatalf("real-time clock Now() should track wall clock, not eval time")
	}
}

func TestModeString(t *testing.T) {
	if Simulation.String() != "simulation" {
		t.Fatalf("got %q", Simulation.String())
	}
	if RealTime.String() != "real_time" {
		t.Fatalf("got %q", RealTime.String())
	}
}
