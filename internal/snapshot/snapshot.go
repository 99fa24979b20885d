// Package snapshot persists plate crops to disk for audit.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Saver writes plate crops under a single images directory. A disabled
// saver is a no-op so callers never branch on the config toggle.
type Saver struct {
	dir     string
	enabled bool
	logger  zerolog.Logger
}

// New creates a saver. The directory is created lazily on first save.
func New(dir string, enabled bool, logger zerolog.Logger) *Saver {
	return &Saver{
		dir:     dir,
		enabled: enabled,
		logger:  logger.With().Str("component", "snapshot").Logger(),
	}
}

// Save writes data as PLATE_YYYYMMDD_HHMMSS.jpg and returns the path.
// It returns an empty path when saving is disabled.
func (s *Saver) Save(plate string, data []byte, now time.Time) (string, error) {
	if !s.enabled || len(data) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("create images dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s.jpg", plate, now.Format("20060102_150405"))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	s.logger.Debug().Str("plate", plate).Str("path", path).Msg("Saved plate snapshot")
	return path, nil
}
