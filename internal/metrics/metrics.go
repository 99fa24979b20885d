package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Recognition pipeline metrics
	RecognitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkgate_recognitions_total",
			Help: "Recognition events handled, by lane and outcome",
		},
		[]string{"lane", "outcome"},
	)

	FrameDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "parkgate_frame_duration_seconds",
			Help:    "Per-frame detection and OCR duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	PipelineErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkgate_pipeline_errors_total",
			Help: "Recoverable capture/detector/OCR errors, by stage",
		},
		[]string{"stage"},
	)

	// Sensor metrics
	SensorReadErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkgate_sensor_read_errors_total",
			Help: "Proximity sensor read failures, by lane",
		},
		[]string{"lane"},
	)

	// Gate metrics
	GateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkgate_gate_transitions_total",
			Help: "Gate state transitions, by gate and direction",
		},
		[]string{"gate", "transition"},
	)

	// Session metrics
	SessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "parkgate_sessions_started_total",
			Help: "Parking sessions opened",
		},
	)

	SessionsClosed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "parkgate_sessions_closed_total",
			Help: "Parking sessions closed with a computed fee",
		},
	)

	OpenSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "parkgate_open_sessions",
			Help: "Vehicles currently inside the lot",
		},
	)

	FeesCharged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkgate_fees_charged_total",
			Help: "Total fee amount charged on exit",
		},
		[]string{"currency"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		RecognitionsTotal,
		FrameDuration,
		PipelineErrors,
		SensorReadErrors,
		GateTransitions,
		SessionsStarted,
		SessionsClosed,
		OpenSessions,
		FeesCharged,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			// Use systemd socket-activated listener
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			// Create and bind listener ourselves
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
