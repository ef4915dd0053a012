// Package config loads and validates the application configuration.
// All business-tuned calibration values (motion threshold, scan
// intervals, ensemble size, capture quality) live here so the core
// packages never carry magic numbers or reach into ambient storage.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Log      LogConfig      `yaml:"log,omitempty"`
	Camera   CameraConfig   `yaml:"camera"`
	Motion   MotionConfig   `yaml:"motion"`
	Provider ProviderConfig `yaml:"provider"`
	Ensemble EnsembleConfig `yaml:"ensemble"`
	Storage  StorageConfig  `yaml:"storage"`
	Web      WebConfig      `yaml:"web"`
	Health   HealthConfig   `yaml:"health"`
}

// AppConfig contains application-wide settings.
type AppConfig struct {
	DataDir   string `yaml:"data_dir"`
	SpecsFile string `yaml:"specs_file"` // optional override of built-in reference tables
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// CameraConfig contains camera feed configuration.
type CameraConfig struct {
	URL               string        `yaml:"url"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	StaleAfter        time.Duration `yaml:"stale_after"`
	PollInterval      time.Duration `yaml:"poll_interval"` // still-frame sampling cadence
	FFmpegPath        string        `yaml:"ffmpeg_path"`
	CaptureQuality    int           `yaml:"capture_quality"` // JPEG quality 1-100
}

// MotionConfig contains motion gating calibration.
type MotionConfig struct {
	Threshold       float64       `yaml:"threshold"`        // changed-cell fraction that triggers
	LumaDelta       int           `yaml:"luma_delta"`       // per-cell luminance delta (0-255)
	GridWidth       int           `yaml:"grid_width"`
	GridHeight      int           `yaml:"grid_height"`
	NormalInterval  time.Duration `yaml:"normal_interval"`  // minimum time between triggers
	WidenedInterval time.Duration `yaml:"widened_interval"` // active while provider quota is exhausted
	LockDuration    time.Duration `yaml:"lock_duration"`    // result display hold after a save
}

// ProviderConfig contains inference provider configuration. The API key
// is injected here explicitly rather than read from ambient credential
// storage by the core.
type ProviderConfig struct {
	ServiceURL    string        `yaml:"service_url"`
	Model         string        `yaml:"model"`
	APIKey        string        `yaml:"api_key"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxImageBytes int           `yaml:"max_image_bytes"` // request payload bound per image
}

// EnsembleConfig contains ensemble run configuration.
type EnsembleConfig struct {
	Count    int `yaml:"count"`     // samples per run
	MaxCount int `yaml:"max_count"` // upper bound for per-request overrides
}

// StorageConfig contains local storage configuration.
type StorageConfig struct {
	DatabasePath  string `yaml:"database_path"`
	SnapshotsDir  string `yaml:"snapshots_dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// WebConfig contains web server configuration.
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// HealthConfig contains health check server configuration.
type HealthConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads and parses the configuration file.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = getDefaultConfigPath()
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// getDefaultConfigPath returns the default configuration file path.
func getDefaultConfigPath() string {
	paths := []string{
		"./config/config.yaml",
		"./config.yaml",
		"/etc/tonsuu-checker/config.yaml",
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return paths[0]
}

// SetDefaults fills unset fields with defaults. The numeric calibration
// defaults here are tuned values, not invariants; deployments override
// them freely.
func (c *Config) SetDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	if c.App.DataDir == "" {
		c.App.DataDir = "./data"
	}

	if c.Camera.ReconnectInterval == 0 {
		c.Camera.ReconnectInterval = 5 * time.Second
	}
	if c.Camera.StaleAfter == 0 {
		c.Camera.StaleAfter = 15 * time.Second
	}
	if c.Camera.PollInterval == 0 {
		c.Camera.PollInterval = 500 * time.Millisecond
	}
	if c.Camera.CaptureQuality == 0 {
		c.Camera.CaptureQuality = 85
	}

	if c.Motion.Threshold == 0 {
		c.Motion.Threshold = 0.12
	}
	if c.Motion.LumaDelta == 0 {
		c.Motion.LumaDelta = 24
	}
	if c.Motion.GridWidth == 0 {
		c.Motion.GridWidth = 32
	}
	if c.Motion.GridHeight == 0 {
		c.Motion.GridHeight = 18
	}
	if c.Motion.NormalInterval == 0 {
		c.Motion.NormalInterval = 3 * time.Second
	}
	if c.Motion.WidenedInterval == 0 {
		c.Motion.WidenedInterval = 30 * time.Second
	}
	if c.Motion.LockDuration == 0 {
		c.Motion.LockDuration = 10 * time.Second
	}

	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = 60 * time.Second
	}
	if c.Provider.MaxImageBytes == 0 {
		c.Provider.MaxImageBytes = 4 << 20
	}

	if c.Ensemble.Count == 0 {
		c.Ensemble.Count = 3
	}
	if c.Ensemble.MaxCount == 0 {
		c.Ensemble.MaxCount = 5
	}

	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = filepath.Join(c.App.DataDir, "db", "estimates.db")
	}
	if c.Storage.SnapshotsDir == "" {
		c.Storage.SnapshotsDir = filepath.Join(c.App.DataDir, "snapshots")
	}
	if c.Storage.RetentionDays == 0 {
		c.Storage.RetentionDays = 90
	}

	if c.Web.Host == "" {
		c.Web.Host = "0.0.0.0"
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8080
	}
	if c.Health.Port == 0 {
		c.Health.Port = 8081
	}
}
