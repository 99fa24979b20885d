package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a parking session.
type Status string

const (
	StatusIn  Status = "IN"
	StatusOut Status = "OUT"
)

// UnmarshalJSON implements json.Unmarshaler to normalize status to uppercase.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	// Normalize to uppercase
	normalized := Status(strings.ToUpper(raw))

	// Validate against known statuses
	switch normalized {
	case StatusIn, StatusOut:
		*s = normalized
		return nil
	default:
		return fmt.Errorf("invalid status: %s (must be IN or OUT)", raw)
	}
}

// MarshalJSON implements json.Marshaler to ensure uppercase output.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// ParkingSession represents one vehicle visit from entry to exit.
type ParkingSession struct {
	ID              int64      `json:"id"`
	Plate           string     `json:"plate"`
	Confidence      *float64   `json:"confidence,omitempty"`
	EntryTime       time.Time  `json:"entry_time"`
	ExitTime        *time.Time `json:"exit_time,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	Fee             float64    `json:"fee"`
	Status          Status     `json:"status"`
	ImagePath       string     `json:"image_path,omitempty"`
	Notes           string     `json:"notes,omitempty"`
}

// ExitSummary is returned to the caller when a session closes.
type ExitSummary struct {
	SessionID       int64     `json:"session_id"`
	Plate           string    `json:"plate"`
	EntryTime       time.Time `json:"entry_time"`
	ExitTime        time.Time `json:"exit_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Fee             float64   `json:"fee"`
	Currency        string    `json:"currency"`
}

// Stats aggregates session counters for the stats display.
type Stats struct {
	TotalCount        int      `json:"total_count"`
	OpenCount         int      `json:"open_count"`
	UniquePlates      int      `json:"unique_plates"`
	TodayCount        int      `json:"today_count"`
	AverageConfidence *float64 `json:"average_confidence,omitempty"`
}

// FeeSchedule defines the two-tier pricing used when a session closes.
type FeeSchedule struct {
	Tier1           float64
	Tier2           float64
	BoundaryMinutes int
	Currency        string
}

// Fee returns the charge for a stay of the given whole minutes. Stays at or
// under the boundary pay the first tier; longer stays pay the flat second
// tier.
func (f FeeSchedule) Fee(durationMinutes int) float64 {
	if durationMinutes <= f.BoundaryMinutes {
		return f.Tier1
	}
	return f.Tier2
}

// DurationMinutes computes the whole-minute stay length between entry and
// exit, rounding down. A negative clock skew yields zero.
func DurationMinutes(entry, exit time.Time) int {
	d := exit.Sub(entry)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

// RecognitionEvent is one raw pipeline observation, kept for audit.
type RecognitionEvent struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Lane       string    `json:"lane"`
	PlateRaw   string    `json:"plate_raw"`
	Plate      string    `json:"plate"`
	Confidence float64   `json:"confidence"`
	Outcome    string    `json:"outcome"`
	SessionID  int64     `json:"session_id,omitempty"`
	ImagePath  string    `json:"image_path,omitempty"`
}
