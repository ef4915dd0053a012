// Package motion decides when the live camera feed warrants a new
// capture. It scores frame-to-frame luminance change on a coarse grid and
// gates capture triggers behind an adaptive scan interval.
package motion

import (
	"image"
	"sync"
	"time"

	"github.com/YuujiKamura/tonsuu-checker/internal/logger"
)

// Config contains the sampler's calibration. All values are business
// tuned and come from configuration, not code.
type Config struct {
	GridWidth       int           // downsample grid columns
	GridHeight      int           // downsample grid rows
	LumaDelta       uint8         // per-cell luminance change counted as motion (0..255)
	Threshold       float64       // fraction of changed cells that triggers a capture
	NormalInterval  time.Duration // minimum time between triggers
	WidenedInterval time.Duration // interval while the provider reports quota exhaustion
}

// Gates are the external conditions that suppress a trigger even when
// motion is present.
type Gates struct {
	Busy         bool // a capture/inference cycle is in progress
	TargetLocked bool // the display is holding a finished result
}

// Sampler holds the per-session motion state: the previous downsampled
// frame, the current score, the last trigger time and the active scan
// interval. State is created at session start and discarded at session
// end; it is never persisted.
type Sampler struct {
	cfg    Config
	logger *logger.Logger

	mu          sync.Mutex
	prev        []uint8
	havePrev    bool
	score       float64
	lastTrigger time.Time
	widened     bool
}

// NewSampler creates a sampler with the given calibration.
func NewSampler(cfg Config, log *logger.Logger) *Sampler {
	if cfg.GridWidth <= 0 {
		cfg.GridWidth = 32
	}
	if cfg.GridHeight <= 0 {
		cfg.GridHeight = 18
	}
	if cfg.LumaDelta == 0 {
		cfg.LumaDelta = 24
	}
	return &Sampler{
		cfg:    cfg,
		logger: log,
		prev:   make([]uint8, cfg.GridWidth*cfg.GridHeight),
	}
}

// Observe scores a new frame against the previous one and reports whether
// a capture should be triggered now. The previous frame is replaced
// unconditionally, so the score always reflects consecutive frames.
//
// A trigger fires only when the score exceeds the threshold, the scan
// interval has elapsed since the last trigger, and no gate is closed.
// On trigger the interval timer resets.
func (s *Sampler) Observe(frame image.Image, now time.Time, gates Gates) (bool, float64) {
	grid := s.downsample(frame)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.havePrev {
		s.prev = grid
		s.havePrev = true
		s.score = 0
		return false, 0
	}

	changed := 0
	for i := range grid {
		d := int(grid[i]) - int(s.prev[i])
		if d < 0 {
			d = -d
		}
		if d > int(s.cfg.LumaDelta) {
			changed++
		}
	}
	s.prev = grid
	s.score = float64(changed) / float64(len(grid))

	if s.score <= s.cfg.Threshold {
		return false, s.score
	}
	if gates.Busy || gates.TargetLocked {
		return false, s.score
	}
	if now.Sub(s.lastTrigger) < s.currentIntervalLocked() {
		return false, s.score
	}

	s.lastTrigger = now
	s.logger.Debug("Motion trigger", "score", s.score, "widened", s.widened)
	return true, s.score
}

// Score returns the score of the most recently observed frame.
func (s *Sampler) Score() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

// CurrentInterval returns the active scan interval.
func (s *Sampler) CurrentInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIntervalLocked()
}

func (s *Sampler) currentIntervalLocked() time.Duration {
	if s.widened {
		return s.cfg.WidenedInterval
	}
	return s.cfg.NormalInterval
}

// NoteQuotaExceeded widens the scan interval. This two-tier switch is the
// sole backoff mechanism: no exponential schedule.
func (s *Sampler) NoteQuotaExceeded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.widened {
		s.widened = true
		s.logger.Info("Scan interval widened after quota exhaustion",
			"interval", s.cfg.WidenedInterval,
		)
	}
}

// NoteSampleSuccess reverts the scan interval to normal after a
// successful provider sample.
func (s *Sampler) NoteSampleSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.widened {
		s.widened = false
		s.logger.Info("Scan interval back to normal", "interval", s.cfg.NormalInterval)
	}
}

// Reset clears the per-session state.
func (s *Sampler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.havePrev = false
	s.score = 0
	s.lastTrigger = time.Time{}
	s.widened = false
}

// downsample point-samples the frame at grid cell centers and converts
// to luminance (Rec. 601 weights).
func (s *Sampler) downsample(frame image.Image) []uint8 {
	bounds := frame.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	grid := make([]uint8, s.cfg.GridWidth*s.cfg.GridHeight)
	if w == 0 || h == 0 {
		return grid
	}

	for gy := 0; gy < s.cfg.GridHeight; gy++ {
		py := bounds.Min.Y + (gy*2+1)*h/(s.cfg.GridHeight*2)
		for gx := 0; gx < s.cfg.GridWidth; gx++ {
			px := bounds.Min.X + (gx*2+1)*w/(s.cfg.GridWidth*2)
			r, g, b, _ := frame.At(px, py).RGBA()
			luma := (299*(r>>8) + 587*(g>>8) + 114*(b>>8)) / 1000
			grid[gy*s.cfg.GridWidth+gx] = uint8(luma)
		}
	}
	return grid
}
