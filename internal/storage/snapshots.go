// Package storage keeps the captured cargo photos on disk. Each saved
// estimate references the snapshot that produced it.
package storage

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"time"

	"github.com/YuujiKamura/tonsuu-checker/internal/logger"
)

// Snapshots writes captured frames under a date-partitioned directory
// tree.
type Snapshots struct {
	dir     string
	quality int
	logger  *logger.Logger
}

// SnapshotsConfig contains snapshot storage configuration.
type SnapshotsConfig struct {
	Dir     string
	Quality int // JPEG quality 1-100, default 85
}

// NewSnapshots creates snapshot storage, ensuring the directory exists.
func NewSnapshots(config SnapshotsConfig, log *logger.Logger) (*Snapshots, error) {
	quality := config.Quality
	if quality < 1 || quality > 100 {
		quality = 85
	}
	if err := os.MkdirAll(config.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshots directory: %w", err)
	}
	return &Snapshots{dir: config.Dir, quality: quality, logger: log}, nil
}

// Dir returns the snapshot root directory.
func (s *Snapshots) Dir() string {
	return s.dir
}

// Save stores a JPEG frame under <dir>/<yyyy-mm-dd>/<id>.jpg, re-encoding
// only if the data does not already decode as an image.
func (s *Snapshots) Save(frameData []byte, id string, ts time.Time) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(frameData))
	if err != nil {
		return "", fmt.Errorf("failed to decode frame: %w", err)
	}

	dayDir := filepath.Join(s.dir, ts.Format("2006-01-02"))
	if err := os.MkdirAll(dayDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	path := filepath.Join(dayDir, id+".jpg")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer file.Close()

	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	s.logger.Debug("Saved snapshot", "path", path)
	return path, nil
}

// DeleteOlderThan removes day directories older than the cutoff date and
// returns how many were deleted.
func (s *Snapshots) DeleteOlderThan(cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read snapshots directory: %w", err)
	}

	cutoffDay := cutoff.Format("2006-01-02")
	deleted := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		// Day directories sort lexicographically by date.
		if _, err := time.Parse("2006-01-02", entry.Name()); err != nil {
			continue
		}
		if entry.Name() >= cutoffDay {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, entry.Name())); err != nil {
			s.logger.Warn("Failed to remove expired snapshots", "dir", entry.Name(), "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}
