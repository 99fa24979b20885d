package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
storage:
  path: `+filepath.Join(dir, "parkgate.bolt")+`
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Camera.Width != 1280 || cfg.Camera.Height != 720 || cfg.Camera.FPS != 30 {
		t.Errorf("unexpected camera defaults: %+v", cfg.Camera)
	}
	if cfg.Detection.ConfidenceThreshold != 0.5 {
		t.Errorf("unexpected confidence threshold: %g", cfg.Detection.ConfidenceThreshold)
	}
	if cfg.Fees.Tier1 != 3.0 || cfg.Fees.Tier2 != 5.0 || cfg.Fees.BoundaryMinutes != 60 || cfg.Fees.Currency != "RM" {
		t.Errorf("unexpected fee defaults: %+v", cfg.Fees)
	}
	if got := Duration(cfg.Gates.AutoCloseDelay, 0); got != 5*time.Second {
		t.Errorf("unexpected auto close delay: %v", got)
	}
	if got := Duration(cfg.Debounce.Window, 0); got != 5*time.Second {
		t.Errorf("unexpected debounce window: %v", got)
	}
	if cfg.Storage.Type != "bolt" {
		t.Errorf("unexpected storage type: %s", cfg.Storage.Type)
	}
}

func TestLoadRejectsBadConfidence(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
detection:
  confidence_threshold: 1.5
storage:
  path: `+filepath.Join(dir, "parkgate.bolt")+`
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for confidence threshold outside [0,1]")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
gates:
  auto_close_delay: "sometime"
storage:
  path: `+filepath.Join(dir, "parkgate.bolt")+`
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestLoadRejectsUnknownStorageType(t *testing.T) {
	path := writeConfig(t, `
storage:
  type: etcd
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported storage type")
	}
}

func TestDurationFallback(t *testing.T) {
	if got := Duration("250ms", time.Second); got != 250*time.Millisecond {
		t.Errorf("expected parsed value, got %v", got)
	}
	if got := Duration("bogus", time.Second); got != time.Second {
		t.Errorf("expected fallback, got %v", got)
	}
}
