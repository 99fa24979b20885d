// Package hardware defines the sensor and actuator capability interfaces
// plus simulated implementations for hosts without lane hardware.
package hardware

import (
	"sync"

	"github.com/rs/zerolog"
)

// ProximitySensor reports the distance to the nearest obstruction in a lane.
type ProximitySensor interface {
	DistanceCm() (float64, error)
}

// Actuator drives a physical gate barrier.
type Actuator interface {
	ActuateOpen()
	ActuateClose()
}

// SimulatedSensor is a settable proximity sensor for development hosts.
type SimulatedSensor struct {
	distance float64
	err      error
	mu       sync.Mutex
}

// NewSimulatedSensor creates a sensor reporting no vehicle present.
func NewSimulatedSensor() *SimulatedSensor {
	return &SimulatedSensor{distance: 400}
}

// SetDistance sets the reported distance.
func (s *SimulatedSensor) SetDistance(cm float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.distance = cm
	s.err = nil
}

// SetError makes subsequent reads fail.
func (s *SimulatedSensor) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// DistanceCm returns the configured distance.
func (s *SimulatedSensor) DistanceCm() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	return s.distance, nil
}

// SimulatedActuator logs actuations instead of driving GPIO pins.
type SimulatedActuator struct {
	name   string
	logger zerolog.Logger
}

// NewSimulatedActuator creates a named simulated actuator.
func NewSimulatedActuator(name string, logger zerolog.Logger) *SimulatedActuator {
	return &SimulatedActuator{
		name:   name,
		logger: logger.With().Str("component", "hardware").Str("actuator", name).Logger(),
	}
}

// ActuateOpen logs a simulated open pulse.
func (a *SimulatedActuator) ActuateOpen() {
	a.logger.Info().Msg("Simulated gate open pulse")
}

// ActuateClose logs a simulated close pulse.
func (a *SimulatedActuator) ActuateClose() {
	a.logger.Info().Msg("Simulated gate close pulse")
}
