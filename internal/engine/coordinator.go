// Package engine ties the recognition pipeline to session bookkeeping and
// gate actuation.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goodtune/parkgate/internal/debounce"
	"github.com/goodtune/parkgate/internal/gate"
	"github.com/goodtune/parkgate/internal/metrics"
	"github.com/goodtune/parkgate/internal/plate"
	"github.com/goodtune/parkgate/internal/snapshot"
	"github.com/goodtune/parkgate/internal/storage"
	"github.com/rs/zerolog"
)

// DefaultDisplayWindow is how long an exit summary stays available for the
// lane display after the session closes.
const DefaultDisplayWindow = 10 * time.Second

// Outcome labels recorded on events and metrics.
const (
	OutcomeRegistered    = "registered"
	OutcomeAlreadyOpen   = "already_open"
	OutcomeExited        = "exited"
	OutcomeNoOpenSession = "no_open_session"
	OutcomeSuppressed    = "suppressed"
	OutcomeInvalid       = "invalid"
	OutcomeError         = "error"
)

// Recognition is one plate observation handed to the coordinator.
type Recognition struct {
	Lane       gate.ID
	RawText    string
	Confidence float64
	Crop       []byte
	ObservedAt time.Time
}

// Coordinator applies the entry/exit rules to recognitions. It owns the
// per-lane debounce trackers and the gate controller.
type Coordinator struct {
	store         storage.Store
	gates         *gate.Controller
	saver         *snapshot.Saver
	fees          storage.FeeSchedule
	trackers      map[gate.ID]*debounce.Tracker
	displayWindow time.Duration
	logger        zerolog.Logger

	lastExit   *storage.ExitSummary
	lastExitAt time.Time
	mu         sync.Mutex
}

// NewCoordinator wires the coordinator. Each lane gets its own debounce
// keyspace so an entrance sighting never suppresses the matching exit.
func NewCoordinator(store storage.Store, gates *gate.Controller, saver *snapshot.Saver, fees storage.FeeSchedule, window time.Duration, maxEntries int, logger zerolog.Logger) (*Coordinator, error) {
	trackers := make(map[gate.ID]*debounce.Tracker, 2)
	for _, lane := range []gate.ID{gate.Entrance, gate.Exit} {
		tracker, err := debounce.New(window, maxEntries)
		if err != nil {
			return nil, err
		}
		trackers[lane] = tracker
	}

	return &Coordinator{
		store:         store,
		gates:         gates,
		saver:         saver,
		fees:          fees,
		trackers:      trackers,
		displayWindow: DefaultDisplayWindow,
		logger:        logger.With().Str("component", "engine").Logger(),
	}, nil
}

// Handle processes one recognition. Invalid plates are dropped without
// side effects; debounced plates are suppressed. Everything else actuates
// the lane gate, including store failures (fail open).
func (c *Coordinator) Handle(ctx context.Context, rec Recognition) error {
	normalized := plate.Normalize(rec.RawText)
	if !plate.IsValid(normalized) {
		metrics.RecognitionsTotal.WithLabelValues(string(rec.Lane), OutcomeInvalid).Inc()
		c.logger.Debug().
			Str("lane", string(rec.Lane)).
			Str("raw", rec.RawText).
			Msg("Dropped unreadable plate")
		return nil
	}

	now := rec.ObservedAt
	if now.IsZero() {
		now = time.Now()
	}

	tracker, ok := c.trackers[rec.Lane]
	if !ok {
		return errors.New("engine: unknown lane " + string(rec.Lane))
	}
	if !tracker.ShouldAct(normalized, now) {
		metrics.RecognitionsTotal.WithLabelValues(string(rec.Lane), OutcomeSuppressed).Inc()
		return nil
	}

	var outcome string
	var sessionID int64
	var imagePath string

	switch rec.Lane {
	case gate.Entrance:
		outcome, sessionID, imagePath = c.handleEntry(ctx, normalized, rec, now)
	case gate.Exit:
		outcome, sessionID = c.handleExit(ctx, normalized, now)
	}

	metrics.RecognitionsTotal.WithLabelValues(string(rec.Lane), outcome).Inc()
	c.addEvent(ctx, rec, normalized, now, outcome, sessionID, imagePath)

	// The gate opens for every acted-on recognition, whatever the store
	// said. A paying customer is never trapped by a bookkeeping error.
	c.gates.Open(rec.Lane, now)
	return nil
}

func (c *Coordinator) handleEntry(ctx context.Context, normalized string, rec Recognition, now time.Time) (string, int64, string) {
	imagePath, err := c.saver.Save(normalized, rec.Crop, now)
	if err != nil {
		c.logger.Error().Err(err).Str("plate", normalized).Msg("Failed to save plate snapshot")
		imagePath = ""
	}

	confidence := rec.Confidence
	session, err := c.store.Sessions().RecordEntry(ctx, normalized, &confidence, now, imagePath)
	switch {
	case errors.Is(err, storage.ErrAlreadyOpen):
		c.logger.Info().Str("plate", normalized).Msg("Plate already inside, entry ignored")
		return OutcomeAlreadyOpen, 0, imagePath
	case err != nil:
		c.logger.Error().Err(err).Str("plate", normalized).Msg("Failed to record entry")
		return OutcomeError, 0, imagePath
	}

	metrics.SessionsStarted.Inc()
	metrics.OpenSessions.Inc()
	c.logger.Info().
		Str("plate", normalized).
		Int64("session_id", session.ID).
		Float64("confidence", confidence).
		Msg("Vehicle entered")
	return OutcomeRegistered, session.ID, imagePath
}

func (c *Coordinator) handleExit(ctx context.Context, normalized string, now time.Time) (string, int64) {
	summary, err := c.store.Sessions().RecordExit(ctx, normalized, now, c.fees)
	switch {
	case errors.Is(err, storage.ErrNoOpenSession):
		c.logger.Warn().Str("plate", normalized).Msg("Exit without matching entry, opening gate anyway")
		return OutcomeNoOpenSession, 0
	case err != nil:
		c.logger.Error().Err(err).Str("plate", normalized).Msg("Failed to record exit")
		return OutcomeError, 0
	}

	metrics.SessionsClosed.Inc()
	metrics.OpenSessions.Dec()
	metrics.FeesCharged.WithLabelValues(summary.Currency).Add(summary.Fee)

	c.mu.Lock()
	c.lastExit = summary
	c.lastExitAt = now
	c.mu.Unlock()

	c.logger.Info().
		Str("plate", normalized).
		Int("duration_minutes", summary.DurationMinutes).
		Float64("fee", summary.Fee).
		Str("currency", summary.Currency).
		Msg("Vehicle exited")
	return OutcomeExited, summary.SessionID
}

func (c *Coordinator) addEvent(ctx context.Context, rec Recognition, normalized string, now time.Time, outcome string, sessionID int64, imagePath string) {
	err := c.store.Events().Add(ctx, storage.RecognitionEvent{
		Timestamp:  now,
		Lane:       string(rec.Lane),
		PlateRaw:   rec.RawText,
		Plate:      normalized,
		Confidence: rec.Confidence,
		Outcome:    outcome,
		SessionID:  sessionID,
		ImagePath:  imagePath,
	})
	if err != nil {
		c.logger.Error().Err(err).Str("plate", normalized).Msg("Failed to record recognition event")
	}
}

// LastExit returns the most recent exit summary while the display window
// holds, nil otherwise.
func (c *Coordinator) LastExit(now time.Time) *storage.ExitSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastExit == nil || now.Sub(c.lastExitAt) >= c.displayWindow {
		return nil
	}
	return c.lastExit
}

// Gates exposes the gate controller for the control loop tick.
func (c *Coordinator) Gates() *gate.Controller {
	return c.gates
}
