package storage

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFeeScheduleBoundary(t *testing.T) {
	fees := FeeSchedule{Tier1: 3.0, Tier2: 5.0, BoundaryMinutes: 60, Currency: "RM"}

	cases := []struct {
		minutes int
		want    float64
	}{
		{0, 3.0},
		{45, 3.0},
		{60, 3.0},
		{61, 5.0},
		{90, 5.0},
		{1440, 5.0},
	}

	for _, tc := range cases {
		if got := fees.Fee(tc.minutes); got != tc.want {
			t.Errorf("Fee(%d) = %v, want %v", tc.minutes, got, tc.want)
		}
	}
}

func TestDurationMinutesRoundsDown(t *testing.T) {
	entry := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if got := DurationMinutes(entry, entry.Add(45*time.Minute+59*time.Second)); got != 45 {
		t.Errorf("expected 45 minutes, got %d", got)
	}
	if got := DurationMinutes(entry, entry.Add(30*time.Second)); got != 0 {
		t.Errorf("expected 0 minutes for a sub-minute stay, got %d", got)
	}
}

func TestDurationMinutesClockSkew(t *testing.T) {
	entry := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if got := DurationMinutes(entry, entry.Add(-time.Hour)); got != 0 {
		t.Errorf("negative stay must clamp to 0, got %d", got)
	}
}

func TestStatusUnmarshalNormalizes(t *testing.T) {
	var s Status
	if err := json.Unmarshal([]byte(`"in"`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s != StatusIn {
		t.Errorf("expected IN, got %s", s)
	}

	if err := json.Unmarshal([]byte(`"parked"`), &s); err == nil {
		t.Error("expected error for unknown status")
	}
}
