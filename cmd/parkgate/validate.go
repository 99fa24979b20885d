package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/goodtune/parkgate/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the ParkGate configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	// Load configuration
	if _, err := config.Load(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	// Check for unknown keys
	unknownKeys, err := findUnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)

	// Warn about unknown keys
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		fmt.Fprintln(os.Stdout)
		red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	return nil
}

// findUnknownKeys loads the config file and checks for unknown keys
func findUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	allKeys := v.AllKeys()
	validKeys := getValidKeys()

	unknown := []string{}
	for _, key := range allKeys {
		if !validKeys[key] {
			unknown = append(unknown, key)
		}
	}

	return unknown, nil
}

// getValidKeys returns a set of all valid configuration keys
func getValidKeys() map[string]bool {
	return map[string]bool{
		// Server
		"server.bind_address": true,
		"server.metrics_port": true,

		// Camera
		"camera.index":  true,
		"camera.width":  true,
		"camera.height": true,
		"camera.fps":    true,

		// Detection
		"detection.confidence_threshold": true,
		"detection.frame_timeout":        true,

		// Gates
		"gates.auto_close_delay": true,
		"gates.open_distance_cm": true,

		// Debounce
		"debounce.window":      true,
		"debounce.max_entries": true,

		// Fees
		"fees.tier1":            true,
		"fees.tier2":            true,
		"fees.boundary_minutes": true,
		"fees.currency":         true,

		// Storage
		"storage.type":                 true,
		"storage.path":                 true,
		"storage.redis.host":           true,
		"storage.redis.port":           true,
		"storage.redis.password":       true,
		"storage.redis.db":             true,
		"storage.redis.pool_size":      true,
		"storage.redis.min_idle_conns": true,
		"storage.redis.dial_timeout":   true,
		"storage.redis.read_timeout":   true,
		"storage.redis.write_timeout":  true,

		// Images
		"images.save": true,
		"images.dir":  true,

		// Events
		"events.retention_days": true,

		// Hardware
		"hardware.simulated": true,

		// Logging
		"logging.level":  true,
		"logging.format": true,
	}
}
