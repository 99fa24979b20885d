package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/parkgate/internal/gate"
	"github.com/goodtune/parkgate/internal/snapshot"
	"github.com/goodtune/parkgate/internal/storage"
	"github.com/goodtune/parkgate/internal/storage/bolt"
	"github.com/rs/zerolog"
)

type countingActuator struct {
	opens  int
	closes int
}

func (a *countingActuator) ActuateOpen()  { a.opens++ }
func (a *countingActuator) ActuateClose() { a.closes++ }

type testRig struct {
	coordinator *Coordinator
	store       storage.Store
	entrance    *countingActuator
	exit        *countingActuator
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	store, err := bolt.Open(filepath.Join(t.TempDir(), "parkgate.bolt"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	gates := gate.NewController(5*time.Second, zerolog.Nop())
	entrance := &countingActuator{}
	exitAct := &countingActuator{}
	gates.Register(gate.Entrance, entrance)
	gates.Register(gate.Exit, exitAct)

	saver := snapshot.New(t.TempDir(), false, zerolog.Nop())
	fees := storage.FeeSchedule{Tier1: 3.0, Tier2: 5.0, BoundaryMinutes: 60, Currency: "RM"}

	coordinator, err := NewCoordinator(store, gates, saver, fees, 5*time.Second, 64, zerolog.Nop())
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}

	return &testRig{coordinator: coordinator, store: store, entrance: entrance, exit: exitAct}
}

func TestEntryOpensGateAndRecordsSession(t *testing.T) {
	rig := newTestRig(t)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	err := rig.coordinator.Handle(context.Background(), Recognition{
		Lane:       gate.Entrance,
		RawText:    "abc-1234",
		Confidence: 0.92,
		ObservedAt: t0,
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	if rig.entrance.opens != 1 {
		t.Fatalf("expected entrance gate to open once, got %d", rig.entrance.opens)
	}

	session, err := rig.store.Sessions().Open(context.Background(), "ABC1234")
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if session.Status != storage.StatusIn {
		t.Fatalf("expected status IN, got %s", session.Status)
	}
	if session.Confidence == nil || *session.Confidence != 0.92 {
		t.Fatalf("confidence not persisted: %v", session.Confidence)
	}
}

func TestDuplicateEntryStillOpensGate(t *testing.T) {
	rig := newTestRig(t)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rec := Recognition{Lane: gate.Entrance, RawText: "ABC1234", Confidence: 0.9, ObservedAt: t0}
	if err := rig.coordinator.Handle(context.Background(), rec); err != nil {
		t.Fatalf("handle: %v", err)
	}

	// Past the debounce window so the duplicate is acted on, but the plate
	// is still inside. The store rejects it and the gate opens anyway.
	rec.ObservedAt = t0.Add(time.Minute)
	if err := rig.coordinator.Handle(context.Background(), rec); err != nil {
		t.Fatalf("handle duplicate: %v", err)
	}

	recent, err := rig.store.Sessions().Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("duplicate entry created a session: %d rows", len(recent))
	}
	if rig.entrance.opens != 2 {
		t.Fatalf("expected gate to open for both sightings, got %d", rig.entrance.opens)
	}
}

func TestExitComputesFeeAndRetainsSummary(t *testing.T) {
	rig := newTestRig(t)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := rig.coordinator.Handle(context.Background(), Recognition{
		Lane: gate.Entrance, RawText: "ABC1234", Confidence: 0.9, ObservedAt: t0,
	}); err != nil {
		t.Fatalf("entry: %v", err)
	}

	exitAt := t0.Add(45 * time.Minute)
	if err := rig.coordinator.Handle(context.Background(), Recognition{
		Lane: gate.Exit, RawText: "ABC1234", Confidence: 0.9, ObservedAt: exitAt,
	}); err != nil {
		t.Fatalf("exit: %v", err)
	}

	if rig.exit.opens != 1 {
		t.Fatalf("expected exit gate to open, got %d", rig.exit.opens)
	}

	summary := rig.coordinator.LastExit(exitAt.Add(2 * time.Second))
	if summary == nil {
		t.Fatal("expected exit summary inside display window")
	}
	if summary.DurationMinutes != 45 || summary.Fee != 3.0 {
		t.Fatalf("unexpected summary: %d min, fee %v", summary.DurationMinutes, summary.Fee)
	}

	if got := rig.coordinator.LastExit(exitAt.Add(time.Minute)); got != nil {
		t.Fatal("summary should expire after the display window")
	}
}

func TestExitWithoutEntryFailsOpen(t *testing.T) {
	rig := newTestRig(t)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := rig.coordinator.Handle(context.Background(), Recognition{
		Lane: gate.Exit, RawText: "NOTPARKED1", Confidence: 0.9, ObservedAt: t0,
	}); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if rig.exit.opens != 1 {
		t.Fatal("exit gate must open even without a matching entry")
	}
	if rig.coordinator.LastExit(t0) != nil {
		t.Fatal("no summary expected for a failed exit")
	}
}

func TestInvalidPlateIsDropped(t *testing.T) {
	rig := newTestRig(t)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := rig.coordinator.Handle(context.Background(), Recognition{
		Lane: gate.Entrance, RawText: "@#", Confidence: 0.9, ObservedAt: t0,
	}); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if rig.entrance.opens != 0 {
		t.Fatal("invalid plate must not actuate the gate")
	}
	recent, err := rig.store.Sessions().Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 0 {
		t.Fatal("invalid plate must not create a session")
	}
}

func TestDebounceSuppressesRepeatSightings(t *testing.T) {
	rig := newTestRig(t)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for _, dt := range []time.Duration{0, time.Second, 3 * time.Second} {
		if err := rig.coordinator.Handle(context.Background(), Recognition{
			Lane: gate.Entrance, RawText: "ABC1234", Confidence: 0.9, ObservedAt: t0.Add(dt),
		}); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	if rig.entrance.opens != 1 {
		t.Fatalf("repeat sightings inside the window must be suppressed, got %d opens", rig.entrance.opens)
	}

	events, err := rig.store.Events().Query(context.Background(), storage.EventFilter{Plate: "ABC1234"})
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("suppressed sightings must not be logged as acted-on events, got %d", len(events))
	}
}

func TestLanesDebounceIndependently(t *testing.T) {
	rig := newTestRig(t)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := rig.coordinator.Handle(context.Background(), Recognition{
		Lane: gate.Entrance, RawText: "ABC1234", Confidence: 0.9, ObservedAt: t0,
	}); err != nil {
		t.Fatalf("entry: %v", err)
	}

	// An exit sighting two seconds later is inside the entrance debounce
	// window but must still act on the exit lane.
	if err := rig.coordinator.Handle(context.Background(), Recognition{
		Lane: gate.Exit, RawText: "ABC1234", Confidence: 0.9, ObservedAt: t0.Add(2 * time.Second),
	}); err != nil {
		t.Fatalf("exit: %v", err)
	}

	if rig.exit.opens != 1 {
		t.Fatal("exit lane must debounce independently of the entrance lane")
	}
}
