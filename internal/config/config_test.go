package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Provider.ServiceURL = "http://localhost:8080"
	cfg.SetDefaults()
	return cfg
}

func TestConfig_SetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Unexpected log defaults: %+v", cfg.Log)
	}
	if cfg.Motion.Threshold != 0.12 {
		t.Errorf("Expected motion threshold 0.12, got %v", cfg.Motion.Threshold)
	}
	if cfg.Motion.LumaDelta != 24 {
		t.Errorf("Expected luma delta 24, got %d", cfg.Motion.LumaDelta)
	}
	if cfg.Motion.GridWidth != 32 || cfg.Motion.GridHeight != 18 {
		t.Errorf("Unexpected grid defaults: %dx%d", cfg.Motion.GridWidth, cfg.Motion.GridHeight)
	}
	if cfg.Motion.NormalInterval != 3*time.Second || cfg.Motion.WidenedInterval != 30*time.Second {
		t.Errorf("Unexpected interval defaults: %v / %v", cfg.Motion.NormalInterval, cfg.Motion.WidenedInterval)
	}
	if cfg.Motion.LockDuration != 10*time.Second {
		t.Errorf("Expected lock duration 10s, got %v", cfg.Motion.LockDuration)
	}
	if cfg.Ensemble.Count != 3 || cfg.Ensemble.MaxCount != 5 {
		t.Errorf("Unexpected ensemble defaults: %d / %d", cfg.Ensemble.Count, cfg.Ensemble.MaxCount)
	}
	if cfg.Provider.Timeout != 60*time.Second {
		t.Errorf("Expected provider timeout 60s, got %v", cfg.Provider.Timeout)
	}
}

func TestConfig_SetDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Motion.Threshold = 0.3
	cfg.Ensemble.Count = 5
	cfg.SetDefaults()

	if cfg.Motion.Threshold != 0.3 {
		t.Errorf("Explicit threshold overwritten: %v", cfg.Motion.Threshold)
	}
	if cfg.Ensemble.Count != 5 {
		t.Errorf("Explicit ensemble count overwritten: %d", cfg.Ensemble.Count)
	}
}

func TestConfig_Validate_Valid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Expected valid config, got: %v", err)
	}
}

func TestConfig_Validate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Provider.ServiceURL = ""
	cfg.Motion.Threshold = 1.5
	cfg.Ensemble.Count = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{"provider.service_url", "motion.threshold", "ensemble.count"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected error message to mention %s, got: %s", want, msg)
		}
	}
}

func TestConfig_Validate_WidenedShorterThanNormal(t *testing.T) {
	cfg := validConfig()
	cfg.Motion.NormalInterval = 30 * time.Second
	cfg.Motion.WidenedInterval = 3 * time.Second

	if err := cfg.Validate(); err == nil {
		t.Error("Expected error when widened interval is shorter than normal")
	}
}

func TestConfig_Validate_MaxCountBelowCount(t *testing.T) {
	cfg := validConfig()
	cfg.Ensemble.Count = 5
	cfg.Ensemble.MaxCount = 3

	if err := cfg.Validate(); err == nil {
		t.Error("Expected error when max_count < count")
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
app:
  data_dir: /var/lib/tonsuu
provider:
  service_url: http://inference:9000
  model: gemini-2.0-flash
motion:
  threshold: 0.2
ensemble:
  count: 4
  max_count: 6
web:
  enabled: true
  port: 8090
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.App.DataDir != "/var/lib/tonsuu" {
		t.Errorf("DataDir = %s", cfg.App.DataDir)
	}
	if cfg.Provider.ServiceURL != "http://inference:9000" {
		t.Errorf("ServiceURL = %s", cfg.Provider.ServiceURL)
	}
	if cfg.Motion.Threshold != 0.2 {
		t.Errorf("Threshold = %v, explicit value must win over default", cfg.Motion.Threshold)
	}
	if cfg.Ensemble.Count != 4 || cfg.Ensemble.MaxCount != 6 {
		t.Errorf("Ensemble = %d/%d", cfg.Ensemble.Count, cfg.Ensemble.MaxCount)
	}
	// Untouched sections still get defaults.
	if cfg.Motion.NormalInterval != 3*time.Second {
		t.Errorf("Expected defaulted normal interval, got %v", cfg.Motion.NormalInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Loaded config must validate: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}
