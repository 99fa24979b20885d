package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/parkgate/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "parkgate.bolt"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	return store
}

func testFees() storage.FeeSchedule {
	return storage.FeeSchedule{Tier1: 3.0, Tier2: 5.0, BoundaryMinutes: 60, Currency: "RM"}
}

func TestSessionEntryExitShortStay(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	sessions := store.Sessions()
	entry := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	conf := 0.91

	session, err := sessions.RecordEntry(context.Background(), "ABC1234", &conf, entry, "")
	if err != nil {
		t.Fatalf("record entry: %v", err)
	}
	if session.Status != storage.StatusIn {
		t.Fatalf("expected status IN, got %s", session.Status)
	}

	summary, err := sessions.RecordExit(context.Background(), "ABC1234", entry.Add(45*time.Minute), testFees())
	if err != nil {
		t.Fatalf("record exit: %v", err)
	}
	if summary.DurationMinutes != 45 {
		t.Fatalf("expected 45 minutes, got %d", summary.DurationMinutes)
	}
	if summary.Fee != 3.0 {
		t.Fatalf("expected first tier fee 3.0, got %v", summary.Fee)
	}
	if summary.Currency != "RM" {
		t.Fatalf("expected currency RM, got %s", summary.Currency)
	}
}

func TestSessionExitLongStay(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	sessions := store.Sessions()
	entry := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if _, err := sessions.RecordEntry(context.Background(), "XYZ5678", nil, entry, ""); err != nil {
		t.Fatalf("record entry: %v", err)
	}

	summary, err := sessions.RecordExit(context.Background(), "XYZ5678", entry.Add(90*time.Minute), testFees())
	if err != nil {
		t.Fatalf("record exit: %v", err)
	}
	if summary.Fee != 5.0 {
		t.Fatalf("expected second tier fee 5.0, got %v", summary.Fee)
	}
}

func TestFeeBoundary(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	sessions := store.Sessions()
	entry := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Exactly 60 minutes stays in the first tier.
	if _, err := sessions.RecordEntry(context.Background(), "AAA1111", nil, entry, ""); err != nil {
		t.Fatalf("record entry: %v", err)
	}
	summary, err := sessions.RecordExit(context.Background(), "AAA1111", entry.Add(60*time.Minute), testFees())
	if err != nil {
		t.Fatalf("record exit: %v", err)
	}
	if summary.Fee != 3.0 {
		t.Fatalf("expected first tier at exactly 60 minutes, got %v", summary.Fee)
	}

	// 61 minutes crosses into the second tier.
	if _, err := sessions.RecordEntry(context.Background(), "BBB2222", nil, entry, ""); err != nil {
		t.Fatalf("record entry: %v", err)
	}
	summary, err = sessions.RecordExit(context.Background(), "BBB2222", entry.Add(61*time.Minute), testFees())
	if err != nil {
		t.Fatalf("record exit: %v", err)
	}
	if summary.Fee != 5.0 {
		t.Fatalf("expected second tier at 61 minutes, got %v", summary.Fee)
	}
}

func TestDuplicateEntryRejected(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	sessions := store.Sessions()
	entry := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if _, err := sessions.RecordEntry(context.Background(), "ABC1234", nil, entry, ""); err != nil {
		t.Fatalf("record entry: %v", err)
	}
	_, err := sessions.RecordEntry(context.Background(), "ABC1234", nil, entry.Add(time.Minute), "")
	if !errors.Is(err, storage.ErrAlreadyOpen) {
		t.Fatalf("expected ErrAlreadyOpen, got %v", err)
	}

	// The original session must be untouched.
	open, err := sessions.Open(context.Background(), "ABC1234")
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if !open.EntryTime.Equal(entry) {
		t.Fatalf("entry time changed: %v", open.EntryTime)
	}
}

func TestExitWithoutEntry(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	_, err := store.Sessions().RecordExit(context.Background(), "NOTPARKED", time.Now(), testFees())
	if !errors.Is(err, storage.ErrNoOpenSession) {
		t.Fatalf("expected ErrNoOpenSession, got %v", err)
	}
}

func TestReentryAfterExit(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	sessions := store.Sessions()
	entry := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if _, err := sessions.RecordEntry(context.Background(), "ABC1234", nil, entry, ""); err != nil {
		t.Fatalf("record entry: %v", err)
	}
	if _, err := sessions.RecordExit(context.Background(), "ABC1234", entry.Add(30*time.Minute), testFees()); err != nil {
		t.Fatalf("record exit: %v", err)
	}

	second, err := sessions.RecordEntry(context.Background(), "ABC1234", nil, entry.Add(time.Hour), "")
	if err != nil {
		t.Fatalf("re-entry: %v", err)
	}
	if second.ID == 1 {
		t.Fatal("re-entry should create a new session row")
	}

	recent, err := sessions.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(recent))
	}
	if recent[0].ID != second.ID {
		t.Fatalf("expected newest session first, got id %d", recent[0].ID)
	}
}

func TestStatistics(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	sessions := store.Sessions()
	now := time.Now().UTC()
	conf := 0.8

	if _, err := sessions.RecordEntry(context.Background(), "ABC1234", &conf, now.Add(-2*time.Hour), ""); err != nil {
		t.Fatalf("record entry: %v", err)
	}
	if _, err := sessions.RecordExit(context.Background(), "ABC1234", now.Add(-time.Hour), testFees()); err != nil {
		t.Fatalf("record exit: %v", err)
	}
	if _, err := sessions.RecordEntry(context.Background(), "XYZ5678", nil, now, ""); err != nil {
		t.Fatalf("record entry: %v", err)
	}

	stats, err := sessions.Statistics(context.Background(), now)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalCount != 2 {
		t.Fatalf("expected 2 total sessions, got %d", stats.TotalCount)
	}
	if stats.OpenCount != 1 {
		t.Fatalf("expected 1 open session, got %d", stats.OpenCount)
	}
	if stats.UniquePlates != 2 {
		t.Fatalf("expected 2 unique plates, got %d", stats.UniquePlates)
	}
	if stats.AverageConfidence == nil || *stats.AverageConfidence != 0.8 {
		t.Fatalf("unexpected average confidence: %v", stats.AverageConfidence)
	}
}

func TestEventQueryAndCleanup(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	events := store.Events()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, plate := range []string{"ABC1234", "XYZ5678", "ABC1234"} {
		err := events.Add(context.Background(), storage.RecognitionEvent{
			Timestamp:  t0.Add(time.Duration(i) * time.Minute),
			Lane:       "entrance",
			PlateRaw:   plate,
			Plate:      plate,
			Confidence: 0.9,
			Outcome:    "registered",
		})
		if err != nil {
			t.Fatalf("add event: %v", err)
		}
	}

	byPlate, err := events.Query(context.Background(), storage.EventFilter{Plate: "ABC1234"})
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	if len(byPlate) != 2 {
		t.Fatalf("expected 2 events for plate, got %d", len(byPlate))
	}
	if byPlate[0].Timestamp.Before(byPlate[1].Timestamp) {
		t.Fatal("expected newest event first")
	}

	deleted, err := events.DeleteBefore(context.Background(), t0.Add(90*time.Second))
	if err != nil {
		t.Fatalf("delete before: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted events, got %d", deleted)
	}

	remaining, err := events.Query(context.Background(), storage.EventFilter{})
	if err != nil {
		t.Fatalf("query remaining: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected 1 remaining event, got %d", len(remaining))
	}
}
