package engine

import (
	"context"
	"time"

	"github.com/goodtune/parkgate/internal/anpr"
	"github.com/goodtune/parkgate/internal/gate"
	"github.com/goodtune/parkgate/internal/hardware"
	"github.com/goodtune/parkgate/internal/metrics"
	"github.com/rs/zerolog"
)

// Loop runs the capture, detect, read, dispatch cycle at frame cadence.
// A single goroutine owns the whole cycle, so recognitions for one plate
// reach the coordinator in observation order.
type Loop struct {
	capture     anpr.Capture
	detector    anpr.Detector
	reader      anpr.Reader
	sensors     map[gate.ID]hardware.ProximitySensor
	coordinator *Coordinator

	confidenceThreshold float64
	frameTimeout        time.Duration
	openDistanceCm      float64

	clock  gate.Clock
	logger zerolog.Logger
}

// LoopConfig holds loop tuning knobs.
type LoopConfig struct {
	ConfidenceThreshold float64
	FrameTimeout        time.Duration
	OpenDistanceCm      float64
}

// NewLoop creates a control loop over the given pipeline collaborators.
func NewLoop(capture anpr.Capture, detector anpr.Detector, reader anpr.Reader, sensors map[gate.ID]hardware.ProximitySensor, coordinator *Coordinator, cfg LoopConfig, logger zerolog.Logger) *Loop {
	return &Loop{
		capture:             capture,
		detector:            detector,
		reader:              reader,
		sensors:             sensors,
		coordinator:         coordinator,
		confidenceThreshold: cfg.ConfidenceThreshold,
		frameTimeout:        cfg.FrameTimeout,
		openDistanceCm:      cfg.OpenDistanceCm,
		clock:               gate.RealClock{},
		logger:              logger.With().Str("component", "control-loop").Logger(),
	}
}

// Run processes frames until the context is cancelled. Recoverable pipeline
// errors skip the cycle; the loop itself only stops on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info().
		Float64("confidence_threshold", l.confidenceThreshold).
		Dur("frame_timeout", l.frameTimeout).
		Msg("Control loop started")

	for {
		if err := ctx.Err(); err != nil {
			l.logger.Info().Msg("Control loop stopped")
			return nil
		}

		l.cycle(ctx)
		l.coordinator.Gates().Tick(l.clock.Now())
	}
}

func (l *Loop) cycle(ctx context.Context) {
	frame, err := l.capture.Read(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.PipelineErrors.WithLabelValues("capture").Inc()
		l.logger.Error().Err(err).Msg("Frame capture failed")
		return
	}
	if len(frame.Data) == 0 {
		return
	}

	start := l.clock.Now()
	defer func() {
		metrics.FrameDuration.Observe(l.clock.Now().Sub(start).Seconds())
	}()

	// The whole detect and read pass for a frame shares one deadline so a
	// stalled model cannot wedge the loop.
	frameCtx := ctx
	if l.frameTimeout > 0 {
		var cancel context.CancelFunc
		frameCtx, cancel = context.WithTimeout(ctx, l.frameTimeout)
		defer cancel()
	}

	detections, err := l.detector.Detect(frameCtx, frame)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.PipelineErrors.WithLabelValues("detector").Inc()
		l.logger.Error().Err(err).Msg("Plate detection failed")
		return
	}

	present := l.presentLanes()
	if len(present) == 0 {
		return
	}

	for _, detection := range detections {
		if detection.Confidence < l.confidenceThreshold {
			continue
		}

		text, confidence, err := l.reader.ReadText(frameCtx, detection.Crop)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.PipelineErrors.WithLabelValues("ocr").Inc()
			l.logger.Error().Err(err).Msg("Plate OCR failed")
			continue
		}
		if text == "" {
			continue
		}

		for _, lane := range present {
			rec := Recognition{
				Lane:       lane,
				RawText:    text,
				Confidence: confidence,
				Crop:       detection.Crop,
				ObservedAt: l.clock.Now(),
			}
			if err := l.coordinator.Handle(ctx, rec); err != nil {
				l.logger.Error().Err(err).Str("lane", string(lane)).Msg("Recognition handling failed")
			}
		}
	}
}

// presentLanes returns the lanes whose sensor reports a vehicle closer than
// the open distance. Sensor read failures skip the lane for this cycle.
func (l *Loop) presentLanes() []gate.ID {
	lanes := make([]gate.ID, 0, len(l.sensors))
	for lane, sensor := range l.sensors {
		distance, err := sensor.DistanceCm()
		if err != nil {
			metrics.SensorReadErrors.WithLabelValues(string(lane)).Inc()
			l.logger.Error().Err(err).Str("lane", string(lane)).Msg("Proximity sensor read failed")
			continue
		}
		if distance < l.openDistanceCm {
			lanes = append(lanes, lane)
		}
	}
	return lanes
}
