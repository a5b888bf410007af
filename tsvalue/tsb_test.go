package tsvalue

import (
	"testing"

	"github.com/sbl8/tempo/tstime"
)

func TestTSBAllValidRequiresEveryField(t *testing.T) {
	sched := &recordingNotifier{}
	owner := RootID(0)
	b := NewTSB(owner, sched, []string{"a", "b"})

	fa := NewCell[int](owner, sched)
	fb := NewCell[int](owner, sched)
	b.SetField("a", fa)
	b.SetField("b", fb)

	if b.AllValid() {
		t.Fatal("AllValid should be false before any field is written")
	}
	fa.ApplyResult(tstime.EngineTime(1), 1)
	if b.AllValid() {
		t.Fatal("AllValid should be false until every field is written")
	}
	fb.ApplyResult(tstime.EngineTime(1), 2)
	if !b.AllValid() {
		t.Fatal("AllValid should be true once every field is written")
	}
}

func TestTSBModifiedReflectsFieldWrites(t *testing.T) {
	sched := &recordingNotifier{}
	owner := RootID(0)
	b := NewTSB(owner, sched, []string{"a"})
	fa := NewCell[int](owner, sched)
	b.SetField("a", fa)

	now := tstime.EngineTime(1)
	fa.ApplyResult(now, 1)
	if !b.Modified(now) {
		t.Fatal("TSB should report Modified when a field changed this tick")
	}
	if b.Modified(now + 1) {
		t.Fatal("TSB should not report Modified for a tick nothing changed in")
	}
}

func TestTSBFieldNamesPreservesOrder(t *testing.T) {
	b := NewTSB(RootID(0), &recordingNotifier{}, []string{"z", "a", "m"})
	got := b.FieldNames()
	want := []string{"z", "a", "m"}
	for i, n := range want {
		if got[i] != n {
			t.Fatalf("FieldNames()[%d] = %q, want %q", i, got[i], n)
		}
	}
}
