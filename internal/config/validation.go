package config

import (
	"fmt"
	"strings"
)

// Validate validates the configuration with detailed error messages.
func (c *Config) Validate() error {
	var errors []string

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errors = append(errors, fmt.Sprintf("invalid log level: %s (must be: debug, info, warn, error, fatal)", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format: %s (must be: text or json)", c.Log.Format))
	}

	if c.App.DataDir == "" {
		errors = append(errors, "app.data_dir is required")
	}

	if c.Provider.ServiceURL == "" {
		errors = append(errors, "provider.service_url is required")
	}
	if c.Provider.Timeout <= 0 {
		errors = append(errors, fmt.Sprintf("provider.timeout must be > 0, got: %v", c.Provider.Timeout))
	}
	if c.Provider.MaxImageBytes <= 0 {
		errors = append(errors, fmt.Sprintf("provider.max_image_bytes must be > 0, got: %d", c.Provider.MaxImageBytes))
	}

	if c.Ensemble.Count <= 0 {
		errors = append(errors, fmt.Sprintf("ensemble.count must be > 0, got: %d", c.Ensemble.Count))
	}
	if c.Ensemble.MaxCount < c.Ensemble.Count {
		errors = append(errors, fmt.Sprintf("ensemble.max_count (%d) cannot be less than ensemble.count (%d)", c.Ensemble.MaxCount, c.Ensemble.Count))
	}

	if c.Motion.Threshold <= 0 || c.Motion.Threshold >= 1 {
		errors = append(errors, fmt.Sprintf("motion.threshold must be between 0 and 1, got: %.3f", c.Motion.Threshold))
	}
	if c.Motion.LumaDelta < 1 || c.Motion.LumaDelta > 255 {
		errors = append(errors, fmt.Sprintf("motion.luma_delta must be between 1 and 255, got: %d", c.Motion.LumaDelta))
	}
	if c.Motion.NormalInterval <= 0 {
		errors = append(errors, fmt.Sprintf("motion.normal_interval must be > 0, got: %v", c.Motion.NormalInterval))
	}
	if c.Motion.WidenedInterval < c.Motion.NormalInterval {
		errors = append(errors, fmt.Sprintf("motion.widened_interval (%v) cannot be shorter than normal_interval (%v)", c.Motion.WidenedInterval, c.Motion.NormalInterval))
	}

	if c.Camera.URL != "" {
		if c.Camera.PollInterval <= 0 {
			errors = append(errors, fmt.Sprintf("camera.poll_interval must be > 0, got: %v", c.Camera.PollInterval))
		}
		if c.Camera.CaptureQuality < 1 || c.Camera.CaptureQuality > 100 {
			errors = append(errors, fmt.Sprintf("camera.capture_quality must be between 1 and 100, got: %d", c.Camera.CaptureQuality))
		}
	}

	if c.Storage.RetentionDays < 0 {
		errors = append(errors, fmt.Sprintf("storage.retention_days must be >= 0, got: %d", c.Storage.RetentionDays))
	}

	if c.Web.Enabled && (c.Web.Port < 1 || c.Web.Port > 65535) {
		errors = append(errors, fmt.Sprintf("web.port must be a valid port, got: %d", c.Web.Port))
	}
	if c.Health.Enabled && (c.Health.Port < 1 || c.Health.Port > 65535) {
		errors = append(errors, fmt.Sprintf("health.port must be a valid port, got: %d", c.Health.Port))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}
	return nil
}
