package tsvalue

import (
	"testing"

	"github.com/sbl8/tempo/tstime"
)

// recordingNotifier records every NodeID notified, in order, with
// duplicates intact — tests assert on what the subscriber-set plumbing
// actually sent, not a deduplicated view.
type recordingNotifier struct {
	notified []NodeID
}

func (n *recordingNotifier) Notify(id NodeID) { n.notified = append(n.notified, id) }

func TestCellApplyResultAndRead(t *testing.T) {
	sched := &recordingNotifier{}
	c := NewCell[int](RootID(0), sched)
	if c.Valid() {
		t.Fatal("freshly constructed cell should be invalid")
	}
	now := tstime.EngineTime(1)
	if err := c.ApplyResult(now, 42); err != nil {
		t.Fatalf("ApplyResult: %v", err)
	}
	if !c.Valid() || !c.AllValid() {
		t.Fatal("cell should be valid after a write")
	}
	if c.Value() != 42 {
		t.Fatalf("Value() = %d, want 42", c.Value())
	}
	if !c.Modified(now) {
		t.Fatal("Modified(now) should be true for the tick just written")
	}
}

func TestCellAtMostOnceWritePerTick(t *testing.T) {
	sched := &recordingNotifier{}
	c := NewCell[int](RootID(0), sched)
	now := tstime.EngineTime(100)
	if err := c.ApplyResult(now, 1); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if c.CanApplyResult(now) {
		t.Fatal("CanApplyResult should be false for a tick already written")
	}
	if err := c.ApplyResult(now, 2); err != ErrAlreadyModified {
		t.Fatalf("second write in same tick: got %v, want ErrAlreadyModified", err)
	}
	if c.Value() != 1 {
		t.Fatalf("value should be unchanged after rejected second write, got %d", c.Value())
	}
}

func TestCellNotifiesSubscribersOnWrite(t *testing.T) {
	sched := &recordingNotifier{}
	c := NewCell[int](RootID(0), sched)
	c.Subscribe(RootID(1))
	c.Subscribe(RootID(2))

	if err := c.ApplyResult(tstime.EngineTime(1), 7); err != nil {
		t.Fatalf("ApplyResult: %v", err)
	}
	if len(sched.notified) != 2 {
		t.Fatalf("expected 2 notifications, got %d: %v", len(sched.notified), sched.notified)
	}
}

func TestCellSubscribeIsIdempotent(t *testing.T) {
	sched := &recordingNotifier{}
	c := NewCell[int](RootID(0), sched)
	c.Subscribe(RootID(1))
	c.Subscribe(RootID(1))
	if got := len(c.Subscribers()); got != 1 {
		t.Fatalf("expected subscriber to appear once, got %d", got)
	}
}

func TestCellUnsubscribe(t *testing.T) {
	sched := &recordingNotifier{}
	c := NewCell[int](RootID(0), sched)
	c.Subscribe(RootID(1))
	c.Unsubscribe(RootID(1))
	if err := c.ApplyResult(tstime.EngineTime(1), 1); err != nil {
		t.Fatalf("ApplyResult: %v", err)
	}
	if len(sched.notified) != 0 {
		t.Fatalf("expected no notifications after unsubscribe, got %v", sched.notified)
	}
}

func TestCellMarkInvalid(t *testing.T) {
	sched := &recordingNotifier{}
	c := NewCell[int](RootID(0), sched)
	if err := c.ApplyResult(tstime.EngineTime(1), 5); err != nil {
		t.Fatalf("ApplyResult: %v", err)
	}
	c.MarkInvalid(tstime.EngineTime(2))
	if c.Valid() {
		t.Fatal("cell should be invalid after MarkInvalid")
	}
	if c.Value() != 0 {
		t.Fatalf("value should reset to zero value, got %d", c.Value())
	}
}

func TestCellValueString(t *testing.T) {
	sched := &recordingNotifier{}
	c := NewCell[float64](RootID(0), sched)
	c.ApplyResult(tstime.EngineTime(1), 3.5)
	if got := c.ValueString(); got != "3.5" {
		t.Fatalf("ValueString() = %q, want %q", got, "3.5")
	}
}
