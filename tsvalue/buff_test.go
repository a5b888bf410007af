package tsvalue

import (
	"testing"
	"time"

	"github.com/sbl8/tempo/tstime"
)

func TestBuffTicksRetainsOnlyLastN(t *testing.T) {
	sched := &recordingNotifier{}
	b := NewBuffTicks[int](RootID(0), sched, 3, 1)

	for i := 1; i <= 5; i++ {
		if err := b.Push(tstime.EngineTime(i), i); err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
	}
	got := b.Values(tstime.EngineTime(5))
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("Values() = %v, want %v", got, want)
	}
	for i, v := range want {
		if got[i] != v {
			t.Fatalf("Values() = %v, want %v", got, want)
		}
	}
}

func TestBuffAtMostOnePushPerTick(t *testing.T) {
	sched := &recordingNotifier{}
	b := NewBuffTicks[int](RootID(0), sched, 5, 1)
	now := tstime.EngineTime(1)
	if err := b.Push(now, 1); err != nil {
		t.Fatalf("first push: %v", err)
	}
	if err := b.Push(now, 2); err != ErrAlreadyModified {
		t.Fatalf("second push same tick: got %v, want ErrAlreadyModified", err)
	}
}

func TestBuffDurationRollsOldEntries(t *testing.T) {
	sched := &recordingNotifier{}
	b := NewBuffDuration[int](RootID(0), sched, 10*time.Second, 1)

	base := tstime.FromTime(time.Unix(1000, 0))
	b.Push(base, 1)
	b.Push(base.Add(5*time.Second), 2)
	b.Push(base.Add(9*time.Second), 3)

	got := b.Values(base.Add(15 * time.Second))
	want := []int{2, 3}
	if len(got) != len(want) {
		t.Fatalf("Values() = %v, want %v", got, want)
	}
	for i, v := range want {
		if got[i] != v {
			t.Fatalf("Values()[%d] = %d, want %d", i, got[i], v)
		}
	}
}

func TestBuffFirstModifiedTime(t *testing.T) {
	sched := &recordingNotifier{}
	b := NewBuffTicks[int](RootID(0), sched, 2, 1)
	if got := b.FirstModifiedTime(tstime.EngineTime(0)); got != tstime.MinTime {
		t.Fatalf("empty buff FirstModifiedTime = %v, want MinTime", got)
	}
	b.Push(tstime.EngineTime(1), 1)
	b.Push(tstime.EngineTime(2), 2)
	if got := b.FirstModifiedTime(tstime.EngineTime(2)); got != tstime.EngineTime(1) {
		t.Fatalf("FirstModifiedTime() = %v, want 1", got)
	}
}

func TestBuffMinSizeGatesValidityAndValues(t *testing.T) {
	sched := &recordingNotifier{}
	b := NewBuffTicks[int](RootID(0), sched, 3, 2)

	b.Push(tstime.EngineTime(1), 10)
	if b.Valid() {
		t.Fatal("buff with 1 entry and minSize 2 should not be valid")
	}
	if got := b.Values(tstime.EngineTime(1)); got != nil {
		t.Fatalf("Values() below minSize = %v, want nil", got)
	}

	b.Push(tstime.EngineTime(2), 20)
	if !b.Valid() {
		t.Fatal("buff with 2 entries and minSize 2 should be valid")
	}
	got := b.Values(tstime.EngineTime(2))
	want := []int{10, 20}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Values() = %v, want %v", got, want)
	}

	b.Push(tstime.EngineTime(3), 30)
	b.Push(tstime.EngineTime(4), 40)
	got = b.Values(tstime.EngineTime(4))
	want = []int{20, 30, 40}
	if len(got) != len(want) {
		t.Fatalf("Values() = %v, want %v", got, want)
	}
	for i, v := range want {
		if got[i] != v {
			t.Fatalf("Values() = %v, want %v", got, want)
		}
	}
}

func TestBuffValidOnlyAfterFirstPush(t *testing.T) {
	sched := &recordingNotifier{}
	b := NewBuffTicks[int](RootID(0), sched, 2, 1)
	if b.Valid() {
		t.Fatal("empty buff should not be valid")
	}
	b.Push(tstime.EngineTime(1), 1)
	if !b.Valid() {
		t.Fatal("buff should be valid after a push")
	}
}
