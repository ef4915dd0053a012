package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"os/exec"
	"time"

	"github.com/YuujiKamura/tonsuu-checker/internal/logger"
)

// Grabber captures single JPEG frames from an input source using FFmpeg.
type Grabber struct {
	logger     *logger.Logger
	ffmpegPath string
	quality    int
}

// GrabberConfig contains frame grabber configuration.
type GrabberConfig struct {
	FFmpegPath string // empty means search common locations
	Quality    int    // JPEG quality 1-100
}

// NewGrabber creates a frame grabber, verifying that FFmpeg is available.
func NewGrabber(config GrabberConfig, log *logger.Logger) (*Grabber, error) {
	quality := config.Quality
	if quality <= 0 || quality > 100 {
		quality = 85
	}

	path := config.FFmpegPath
	if path == "" {
		detected, err := detectFFmpeg()
		if err != nil {
			return nil, err
		}
		path = detected
	}

	log.Info("Frame grabber initialized", "ffmpeg", path, "quality", quality)

	return &Grabber{
		logger:     log,
		ffmpegPath: path,
		quality:    quality,
	}, nil
}

// detectFFmpeg finds the FFmpeg executable.
func detectFFmpeg() (string, error) {
	paths := []string{"ffmpeg", "/usr/bin/ffmpeg", "/usr/local/bin/ffmpeg"}
	for _, path := range paths {
		cmd := exec.Command(path, "-version")
		if err := cmd.Run(); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("ffmpeg not found in PATH or common locations")
}

// Grab captures one frame from the input source (RTSP URL or device
// path) and returns it as a validated JPEG frame.
func (g *Grabber) Grab(ctx context.Context, input string) (*Frame, error) {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", input,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", fmt.Sprintf("%d", jpegQScale(g.quality)),
		"-",
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.ffmpegPath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg capture failed: %w (%s)", err, stderr.String())
	}

	data := stdout.Bytes()
	if len(data) == 0 {
		return nil, fmt.Errorf("no frame data captured")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid frame data: %w", err)
	}

	return &Frame{
		Data:      data,
		Timestamp: time.Now(),
		Width:     cfg.Width,
		Height:    cfg.Height,
	}, nil
}

// jpegQScale converts a 1-100 quality value to FFmpeg's 2-31 qscale,
// where lower means better.
func jpegQScale(quality int) int {
	q := 31 - quality*29/100
	if q < 2 {
		q = 2
	}
	if q > 31 {
		q = 31
	}
	return q
}
