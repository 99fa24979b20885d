package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// ErrAlreadyOpen is returned by RecordEntry when the plate already has an
// open session. The caller treats this as a non-event.
var ErrAlreadyOpen = errors.New("storage: session already open for plate")

// ErrNoOpenSession is returned by RecordExit when the plate has no open
// session to close.
var ErrNoOpenSession = errors.New("storage: no open session for plate")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Sessions() SessionStore
	Events() EventStore
}

// SessionStore manages parking session rows.
type SessionStore interface {
	// RecordEntry opens a session for plate. It returns ErrAlreadyOpen
	// without modifying anything when the plate already has an open
	// session.
	RecordEntry(ctx context.Context, plate string, confidence *float64, entryTime time.Time, imagePath string) (*ParkingSession, error)

	// RecordExit closes the open session for plate, computing duration and
	// fee from the schedule. It returns ErrNoOpenSession when the plate is
	// not inside.
	RecordExit(ctx context.Context, plate string, exitTime time.Time, fees FeeSchedule) (*ExitSummary, error)

	// Open returns the open session for plate, or ErrNotFound.
	Open(ctx context.Context, plate string) (*ParkingSession, error)

	// ListOpen returns all open sessions ordered by entry time.
	ListOpen(ctx context.Context) ([]ParkingSession, error)

	// Recent returns the most recent sessions by entry time, newest first.
	Recent(ctx context.Context, limit int) ([]ParkingSession, error)

	// Statistics aggregates counters over all sessions as of now.
	Statistics(ctx context.Context, now time.Time) (*Stats, error)
}

// EventStore manages the raw recognition event log.
type EventStore interface {
	Add(ctx context.Context, event RecognitionEvent) error
	Query(ctx context.Context, filter EventFilter) ([]RecognitionEvent, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// EventFilter defines criteria for querying recognition events.
type EventFilter struct {
	Plate     string
	Lane      string
	Outcome   string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}
