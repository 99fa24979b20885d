package engine

import (
	"context"
	"time"

	"github.com/goodtune/parkgate/internal/storage"
	"github.com/rs/zerolog"
)

// sweepTime is the quiet hour at which the nightly event sweep runs.
const sweepTime = "03:00"

// RetentionSweeper deletes recognition events past their retention window
// once a night.
type RetentionSweeper struct {
	events        storage.EventStore
	retentionDays int
	sweepAt       time.Time // only hour and minute are used
	logger        zerolog.Logger
	stopChan      chan struct{}
}

// NewRetentionSweeper creates the nightly sweeper. A retention of zero or
// less disables it.
func NewRetentionSweeper(events storage.EventStore, retentionDays int, logger zerolog.Logger) (*RetentionSweeper, error) {
	parsed, err := time.Parse("15:04", sweepTime)
	if err != nil {
		return nil, err
	}

	return &RetentionSweeper{
		events:        events,
		retentionDays: retentionDays,
		sweepAt:       parsed,
		logger:        logger.With().Str("component", "retention-sweeper").Logger(),
		stopChan:      make(chan struct{}),
	}, nil
}

// Start begins the sweep scheduler.
func (rs *RetentionSweeper) Start() {
	if rs.retentionDays <= 0 {
		rs.logger.Info().Msg("Event retention disabled")
		return
	}
	go rs.run()
	rs.logger.Info().
		Int("retention_days", rs.retentionDays).
		Msg("Event retention sweeper started")
}

// Stop stops the sweep scheduler.
func (rs *RetentionSweeper) Stop() {
	close(rs.stopChan)
	rs.logger.Info().Msg("Event retention sweeper stopped")
}

func (rs *RetentionSweeper) run() {
	for {
		nextSweep := rs.calculateNextSweep()
		waitDuration := time.Until(nextSweep)

		rs.logger.Info().
			Time("next_sweep", nextSweep).
			Dur("wait_duration", waitDuration).
			Msg("Scheduled next event sweep")

		select {
		case <-time.After(waitDuration):
			rs.performSweep()
		case <-rs.stopChan:
			return
		}
	}
}

func (rs *RetentionSweeper) calculateNextSweep() time.Time {
	now := time.Now()

	todaySweep := time.Date(
		now.Year(), now.Month(), now.Day(),
		rs.sweepAt.Hour(), rs.sweepAt.Minute(), 0, 0,
		now.Location(),
	)

	if now.After(todaySweep) {
		return todaySweep.AddDate(0, 0, 1)
	}
	return todaySweep
}

func (rs *RetentionSweeper) performSweep() {
	cutoff := time.Now().AddDate(0, 0, -rs.retentionDays)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := rs.events.DeleteBefore(ctx, cutoff)
	if err != nil {
		rs.logger.Error().Err(err).Msg("Failed to sweep old recognition events")
		return
	}

	rs.logger.Info().
		Int("events_deleted", deleted).
		Time("cutoff", cutoff).
		Msg("Recognition event sweep complete")
}
