// Package gate drives the physical gate actuators with auto-close timers,
// decoupled from the recognition pipeline.
package gate

import (
	"sync"
	"time"

	"github.com/goodtune/parkgate/internal/metrics"
	"github.com/rs/zerolog"
)

// ID identifies one of the two lane gates.
type ID string

const (
	Entrance ID = "entrance"
	Exit     ID = "exit"
)

// Actuator drives a physical gate barrier. Calls are fire-and-forget; there
// is no acknowledgement channel from the hardware.
type Actuator interface {
	ActuateOpen()
	ActuateClose()
}

type gateState struct {
	actuator Actuator
	isOpen   bool
	openedAt time.Time
}

// Controller owns per-gate open/auto-close state. Open and Tick are safe to
// call from multiple goroutines; each gate actuates open exactly once per
// open cycle.
type Controller struct {
	autoCloseDelay time.Duration
	gates          map[ID]*gateState
	logger         zerolog.Logger
	mu             sync.Mutex
}

// NewController creates a controller with the given auto-close delay.
func NewController(autoCloseDelay time.Duration, logger zerolog.Logger) *Controller {
	return &Controller{
		autoCloseDelay: autoCloseDelay,
		gates:          make(map[ID]*gateState),
		logger:         logger.With().Str("component", "gate-controller").Logger(),
	}
}

// Register attaches an actuator for a gate. Gates start closed.
func (c *Controller) Register(id ID, actuator Actuator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gates[id] = &gateState{actuator: actuator}
}

// Open transitions a gate to OPEN at now. A closed gate actuates once; an
// already-open gate only has its auto-close deadline refreshed.
func (c *Controller) Open(id ID, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.gates[id]
	if !ok {
		c.logger.Error().Str("gate", string(id)).Msg("Open called for unregistered gate")
		return
	}

	if !g.isOpen {
		g.actuator.ActuateOpen()
		g.isOpen = true
		metrics.GateTransitions.WithLabelValues(string(id), "open").Inc()
		c.logger.Info().Str("gate", string(id)).Msg("Gate opened")
	}
	g.openedAt = now
}

// Tick closes every gate whose auto-close deadline has passed. It runs once
// per control-loop iteration so gates close even when no further plates are
// detected.
func (c *Controller) Tick(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, g := range c.gates {
		if !g.isOpen {
			continue
		}
		if now.Before(g.openedAt.Add(c.autoCloseDelay)) {
			continue
		}
		g.actuator.ActuateClose()
		g.isOpen = false
		metrics.GateTransitions.WithLabelValues(string(id), "close").Inc()
		c.logger.Info().
			Str("gate", string(id)).
			Dur("open_for", now.Sub(g.openedAt)).
			Msg("Gate auto-closed")
	}
}

// IsOpen reports whether a gate is currently open.
func (c *Controller) IsOpen(id ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.gates[id]
	return ok && g.isOpen
}
