package debounce

import (
	"fmt"
	"testing"
	"time"
)

func TestShouldActSuppressesWithinWindow(t *testing.T) {
	tracker, err := New(5*time.Second, 16)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if !tracker.ShouldAct("ABC1234", t0) {
		t.Fatal("first action should be allowed")
	}
	if tracker.ShouldAct("ABC1234", t0.Add(2*time.Second)) {
		t.Fatal("action inside the window should be suppressed")
	}
	if !tracker.ShouldAct("ABC1234", t0.Add(6*time.Second)) {
		t.Fatal("action past the window should be allowed")
	}
}

func TestShouldActSideEffectOnlyOnTrue(t *testing.T) {
	tracker, err := New(5*time.Second, 16)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker.ShouldAct("ABC1234", t0)

	// Suppressed checks must not refresh the last-action time: the key
	// re-arms relative to t0, not to the suppressed attempt.
	tracker.ShouldAct("ABC1234", t0.Add(4*time.Second))
	if !tracker.ShouldAct("ABC1234", t0.Add(5*time.Second)) {
		t.Fatal("expected action at t0+window to be allowed")
	}
}

func TestIndependentKeys(t *testing.T) {
	tracker, err := New(5*time.Second, 16)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if !tracker.ShouldAct("ABC1234", t0) {
		t.Fatal("first key should be allowed")
	}
	if !tracker.ShouldAct("XYZ5678", t0) {
		t.Fatal("second key should be independent of the first")
	}
}

func TestBoundedGrowth(t *testing.T) {
	tracker, err := New(time.Minute, 8)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 100; i++ {
		tracker.ShouldAct(fmt.Sprintf("PLATE%03d", i), t0)
	}

	if got := tracker.Len(); got > 8 {
		t.Fatalf("tracker grew past its bound: %d entries", got)
	}
}

func TestForget(t *testing.T) {
	tracker, err := New(time.Minute, 16)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker.ShouldAct("ABC1234", t0)
	tracker.Forget("ABC1234")

	if !tracker.ShouldAct("ABC1234", t0.Add(time.Second)) {
		t.Fatal("forgotten key should act immediately")
	}
}
