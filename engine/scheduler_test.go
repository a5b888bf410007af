package engine

import (
	"testing"

	"github.com/sbl8/tempo/tstime"
	"github.com/sbl8/tempo/tsvalue"
)

func TestSchedulerNotifyDeduplicatesWithinTick(t *testing.T) {
	s := NewScheduler(map[tsvalue.NodeID]int{tsvalue.RootID(0): 0})
	s.Notify(tsvalue.RootID(0))
	s.Notify(tsvalue.RootID(0))
	order := s.PendingInRankOrder()
	if len(order) != 1 {
		t.Fatalf("expected one pending entry, got %d: %v", len(order), order)
	}
}

func TestSchedulerPendingInRankOrderSortsByRank(t *testing.T) {
	rankOf := map[tsvalue.NodeID]int{
		tsvalue.RootID(0): 2,
		tsvalue.RootID(1): 0,
		tsvalue.RootID(2): 1,
	}
	s := NewScheduler(rankOf)
	s.Notify(tsvalue.RootID(0))
	s.Notify(tsvalue.RootID(1))
	s.Notify(tsvalue.RootID(2))

	order := s.PendingInRankOrder()
	want := []tsvalue.NodeID{tsvalue.RootID(1), tsvalue.RootID(2), tsvalue.RootID(0)}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestSchedulerPendingInRankOrderDrains(t *testing.T) {
	s := NewScheduler(map[tsvalue.NodeID]int{tsvalue.RootID(0): 0})
	s.Notify(tsvalue.RootID(0))
	s.PendingInRankOrder()
	if s.HasPending() {
		t.Fatal("PendingInRankOrder should drain the pending set")
	}
}

func TestSchedulerDrainDueOrdersByTimeThenInsertion(t *testing.T) {
	s := NewScheduler(map[tsvalue.NodeID]int{
		tsvalue.RootID(0): 0,
		tsvalue.RootID(1): 0,
		tsvalue.RootID(2): 0,
	})
	s.ScheduleAt(tstime.EngineTime(10), tsvalue.RootID(1))
	s.ScheduleAt(tstime.EngineTime(5), tsvalue.RootID(0))
	s.ScheduleAt(tstime.EngineTime(10), tsvalue.RootID(2))

	s.BeginTick(tstime.EngineTime(10))
	s.DrainDue(tstime.EngineTime(10))

	order := s.PendingInRankOrder()
	want := []tsvalue.NodeID{tsvalue.RootID(0), tsvalue.RootID(1), tsvalue.RootID(2)}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestSchedulerDrainDueLeavesFutureEvents(t *testing.T) {
	s := NewScheduler(map[tsvalue.NodeID]int{tsvalue.RootID(0): 0})
	s.ScheduleAt(tstime.EngineTime(100), tsvalue.RootID(0))

	s.BeginTick(tstime.EngineTime(10))
	s.DrainDue(tstime.EngineTime(10))
	if s.HasPending() {
		t.Fatal("an event scheduled in the future should not be due yet")
	}
	if !s.HasFutureEvents() {
		t.Fatal("the future event should still be outstanding")
	}
}

func TestSchedulerFeedbackProxyDelaysOneTick(t *testing.T) {
	s := NewScheduler(map[tsvalue.NodeID]int{tsvalue.RootID(0): 0})
	real := tsvalue.RootID(0)
	proxy := real.Branch("feedback:in")
	s.RegisterFeedback(proxy, real)

	s.BeginTick(tstime.EngineTime(5))
	s.Notify(proxy)

	if s.IsScheduledNow(real) {
		t.Fatal("notifying a feedback proxy should not schedule the real consumer for the current tick")
	}
	at, ok := s.IsScheduled(real)
	if !ok || at != tstime.EngineTime(6) {
		t.Fatalf("IsScheduled(real) = %v, %v, want 6, true", at, ok)
	}
}

func TestSchedulerReScheduleReplacesTime(t *testing.T) {
	s := NewScheduler(map[tsvalue.NodeID]int{tsvalue.RootID(0): 0})
	id := tsvalue.RootID(0)
	s.ScheduleAt(tstime.EngineTime(100), id)
	s.ScheduleAt(tstime.EngineTime(5), id)

	next, ok := s.NextEventTime()
	if !ok || next != tstime.EngineTime(5) {
		t.Fatalf("NextEventTime() = %v, %v, want 5, true", next, ok)
	}
}
