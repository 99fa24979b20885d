package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Camera    CameraConfig    `mapstructure:"camera"`
	Detection DetectionConfig `mapstructure:"detection"`
	Gates     GateConfig      `mapstructure:"gates"`
	Debounce  DebounceConfig  `mapstructure:"debounce"`
	Fees      FeeConfig       `mapstructure:"fees"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Images    ImageConfig     `mapstructure:"images"`
	Events    EventConfig     `mapstructure:"events"`
	Hardware  HardwareConfig  `mapstructure:"hardware"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig defines bind addresses and ports
type ServerConfig struct {
	BindAddress string `mapstructure:"bind_address"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

// CameraConfig defines the capture source
type CameraConfig struct {
	Index  int `mapstructure:"index"`
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
	FPS    int `mapstructure:"fps"`
}

// DetectionConfig defines plate detection settings
type DetectionConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	FrameTimeout        string  `mapstructure:"frame_timeout"` // bound on per-frame detect+OCR
}

// GateConfig defines gate actuation behavior
type GateConfig struct {
	AutoCloseDelay string  `mapstructure:"auto_close_delay"`
	OpenDistanceCm float64 `mapstructure:"open_distance_cm"` // presence threshold for the proximity sensors
}

// DebounceConfig defines duplicate-recognition suppression
type DebounceConfig struct {
	Window     string `mapstructure:"window"`
	MaxEntries int    `mapstructure:"max_entries"`
}

// FeeConfig defines the two-tier flat fee schedule
type FeeConfig struct {
	Tier1           float64 `mapstructure:"tier1"`            // stays up to the boundary
	Tier2           float64 `mapstructure:"tier2"`            // flat daily fee past the boundary
	BoundaryMinutes int     `mapstructure:"boundary_minutes"` // tier boundary, 60 in the reference schedule
	Currency        string  `mapstructure:"currency"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "bolt" or "redis"
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// ImageConfig defines plate snapshot persistence
type ImageConfig struct {
	Save bool   `mapstructure:"save"`
	Dir  string `mapstructure:"dir"`
}

// EventConfig defines the recognition event log
type EventConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

// HardwareConfig defines sensor/actuator wiring
type HardwareConfig struct {
	Simulated bool `mapstructure:"simulated"` // run without GPIO hardware
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("PARKGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "0.0.0.0")
	v.SetDefault("server.metrics_port", 9091)

	// Camera defaults
	v.SetDefault("camera.index", 0)
	v.SetDefault("camera.width", 1280)
	v.SetDefault("camera.height", 720)
	v.SetDefault("camera.fps", 30)

	// Detection defaults
	v.SetDefault("detection.confidence_threshold", 0.5)
	v.SetDefault("detection.frame_timeout", "500ms")

	// Gate defaults
	v.SetDefault("gates.auto_close_delay", "5s")
	v.SetDefault("gates.open_distance_cm", 10.0)

	// Debounce defaults
	v.SetDefault("debounce.window", "5s")
	v.SetDefault("debounce.max_entries", 1024)

	// Fee defaults
	v.SetDefault("fees.tier1", 3.0)
	v.SetDefault("fees.tier2", 5.0)
	v.SetDefault("fees.boundary_minutes", 60)
	v.SetDefault("fees.currency", "RM")

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "/var/lib/parkgate/parkgate.bolt")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 5)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Image defaults
	v.SetDefault("images.save", true)
	v.SetDefault("images.dir", "/var/lib/parkgate/plates")

	// Event log defaults
	v.SetDefault("events.retention_days", 30)

	// Hardware defaults
	v.SetDefault("hardware.simulated", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	if cfg.Detection.ConfidenceThreshold < 0 || cfg.Detection.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0,1], got %g", cfg.Detection.ConfidenceThreshold)
	}

	for name, value := range map[string]string{
		"detection.frame_timeout": cfg.Detection.FrameTimeout,
		"gates.auto_close_delay":  cfg.Gates.AutoCloseDelay,
		"debounce.window":         cfg.Debounce.Window,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}

	if cfg.Fees.Tier1 < 0 || cfg.Fees.Tier2 < 0 {
		return fmt.Errorf("fee amounts must not be negative")
	}
	if cfg.Fees.BoundaryMinutes <= 0 {
		return fmt.Errorf("fee boundary must be positive, got %d minutes", cfg.Fees.BoundaryMinutes)
	}

	if cfg.Debounce.MaxEntries <= 0 {
		return fmt.Errorf("debounce max_entries must be positive, got %d", cfg.Debounce.MaxEntries)
	}

	switch cfg.Storage.Type {
	case "bolt":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required for bolt storage")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("redis host is required for redis storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	return nil
}

// Duration parses a duration config value with a fallback.
func Duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
