// Package pipeline wires the capture-to-estimate flow: motion-gated
// frame watching, the sequential ensemble run against the inference
// provider, aggregation, classification and persistence. It enforces the
// single-flight rule (one analysis at a time) and discards results
// superseded while in flight.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/YuujiKamura/tonsuu-checker/internal/camera"
	"github.com/YuujiKamura/tonsuu-checker/internal/config"
	"github.com/YuujiKamura/tonsuu-checker/internal/ensemble"
	"github.com/YuujiKamura/tonsuu-checker/internal/estimate"
	"github.com/YuujiKamura/tonsuu-checker/internal/grade"
	"github.com/YuujiKamura/tonsuu-checker/internal/logger"
	"github.com/YuujiKamura/tonsuu-checker/internal/motion"
	"github.com/YuujiKamura/tonsuu-checker/internal/refdata"
	"github.com/YuujiKamura/tonsuu-checker/internal/service"
	"github.com/YuujiKamura/tonsuu-checker/internal/storage"
	"github.com/YuujiKamura/tonsuu-checker/internal/store"
	"github.com/YuujiKamura/tonsuu-checker/internal/video"
)

// ErrBusy is returned when an analysis is requested while another one is
// still in flight. Callers retry after the current one ends.
var ErrBusy = errors.New("analysis already in progress")

// AnalyzeRequest describes one analysis.
type AnalyzeRequest struct {
	Images       [][]byte // JPEG photos of the same load
	SubjectID    string   // vehicle identifier; empty means derive from the plate
	CapacityHint float64  // known max capacity (t), 0 if absent
	Feedback     string   // operator feedback, passed to the provider verbatim
	Count        int      // samples for this run; 0 means the configured default
}

// Result is the outcome of one analysis. A stale result was superseded
// by a newer request; it carries the computed record but was not
// persisted.
type Result struct {
	Record *store.Record
	Stale  bool
}

// Analyzer runs the full estimation flow.
type Analyzer struct {
	*service.ServiceBase

	cfg        *config.Config
	feed       *camera.FeedMonitor
	grabber    *video.Grabber
	sampler    *motion.Sampler
	runner     *ensemble.Runner
	aggregator *ensemble.Aggregator
	classifier *grade.Classifier
	tables     *refdata.Tables
	store      *store.Store
	snapshots  *storage.Snapshots

	busy        atomic.Bool
	generation  atomic.Uint64
	lockedUntil time.Time
	lockMu      sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// Deps are the collaborators the analyzer needs. Feed and Grabber are
// nil when no camera is configured; the analyzer then serves API
// requests only.
type Deps struct {
	Feed       *camera.FeedMonitor
	Grabber    *video.Grabber
	Sampler    *motion.Sampler
	Runner     *ensemble.Runner
	Aggregator *ensemble.Aggregator
	Classifier *grade.Classifier
	Tables     *refdata.Tables
	Store      *store.Store
	Snapshots  *storage.Snapshots
}

// NewAnalyzer creates the analyzer service.
func NewAnalyzer(cfg *config.Config, deps Deps, log *logger.Logger) *Analyzer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Analyzer{
		ServiceBase: service.NewServiceBase("analyzer", log),
		cfg:         cfg,
		feed:        deps.Feed,
		grabber:     deps.Grabber,
		sampler:     deps.Sampler,
		runner:      deps.Runner,
		aggregator:  deps.Aggregator,
		classifier:  deps.Classifier,
		tables:      deps.Tables,
		store:       deps.Store,
		snapshots:   deps.Snapshots,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins the motion watch loop when a camera is configured.
func (a *Analyzer) Start(ctx context.Context) error {
	a.GetStatus().SetStatus(service.StatusStarting)
	if a.feed != nil && a.grabber != nil {
		go a.watchLoop()
		a.LogInfo("Motion watch loop started",
			"poll_interval", a.cfg.Camera.PollInterval,
			"threshold", a.cfg.Motion.Threshold,
		)
	} else {
		a.LogInfo("No camera configured, serving API requests only")
	}
	a.GetStatus().SetStatus(service.StatusRunning)
	return nil
}

// Stop halts the watch loop and supersedes any analysis still in
// flight: bumping the generation marks its eventual result stale, so a
// run racing with shutdown hands its figures back without persisting
// them. The ensemble itself finishes its current provider call before
// noticing the cancellation.
func (a *Analyzer) Stop(ctx context.Context) error {
	a.GetStatus().SetStatus(service.StatusStopping)
	a.cancel()
	a.generation.Add(1)
	a.GetStatus().SetStatus(service.StatusStopped)
	return nil
}

// watchLoop samples still frames on a fixed cadence and hands frames
// with enough motion to the analysis flow. An unavailable feed produces
// silence, not errors: reconnecting is the feed monitor's job.
func (a *Analyzer) watchLoop() {
	ticker := time.NewTicker(a.cfg.Camera.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
		}

		if !a.feed.Live() {
			continue
		}

		frame, err := a.grabber.Grab(a.ctx, a.cfg.Camera.URL)
		if err != nil {
			a.LogDebug("Frame grab failed", "error", err)
			continue
		}
		img, err := frame.Decode()
		if err != nil {
			a.LogDebug("Frame decode failed", "error", err)
			continue
		}

		gates := motion.Gates{Busy: a.busy.Load(), TargetLocked: a.targetLocked()}
		trigger, score := a.sampler.Observe(img, time.Now(), gates)
		if !trigger {
			continue
		}

		a.PublishEvent(service.EventTypeCaptureTriggered, map[string]interface{}{
			"score":    score,
			"captured": frame.Timestamp,
		})

		go func() {
			_, err := a.Analyze(a.ctx, AnalyzeRequest{Images: [][]byte{frame.Data}})
			if err != nil && !errors.Is(err, ErrBusy) {
				a.LogError("Capture analysis failed", err)
			}
		}()
	}
}

// Analyze runs one full analysis: ensemble sampling, aggregation,
// classification and persistence. Only one analysis runs at a time.
func (a *Analyzer) Analyze(ctx context.Context, req AnalyzeRequest) (*Result, error) {
	if len(req.Images) == 0 {
		return nil, fmt.Errorf("no images: %w", ensemble.ErrInvalidInput)
	}

	if !a.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer a.busy.Store(false)

	gen := a.generation.Add(1)

	count := req.Count
	if count <= 0 {
		count = a.cfg.Ensemble.Count
	}
	if count > a.cfg.Ensemble.MaxCount {
		count = a.cfg.Ensemble.MaxCount
	}

	images := make([][]byte, len(req.Images))
	for i, img := range req.Images {
		bounded, err := video.BoundJPEG(img, a.cfg.Provider.MaxImageBytes)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w: %v", i, ensemble.ErrInvalidInput, err)
		}
		images[i] = bounded
	}

	run := a.runner.Start(ctx, ensemble.Request{
		ProviderRequest: ensemble.ProviderRequest{
			Images:       images,
			CapacityHint: req.CapacityHint,
			Feedback:     req.Feedback,
			References:   a.loadReferences(ctx, req.CapacityHint),
		},
		Count:      count,
		Generation: gen,
	})

	for update := range run.Updates() {
		if update.Err != nil {
			if errors.Is(update.Err, ensemble.ErrQuotaExceeded) {
				a.sampler.NoteQuotaExceeded()
				a.PublishEvent(service.EventTypeQuotaExceeded, map[string]interface{}{
					"generation": gen,
				})
			}
			continue
		}
		a.sampler.NoteSampleSuccess()
	}

	samples, err := run.Wait()
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		// Cancelled before the first sample completed.
		return &Result{Stale: true}, nil
	}

	agg, err := a.aggregator.Aggregate(samples, run.Attempted())
	if err != nil {
		return nil, err
	}

	rec := a.buildRecord(req, agg)

	// Nothing detected is a valid negative outcome; report it without
	// touching the subject's history.
	if !agg.IsTargetDetected {
		a.LogInfo("No target detected", "generation", gen, "attempted", agg.EnsembleCount)
		return &Result{Record: rec}, nil
	}

	// This run was superseded while in flight (concurrent callers are
	// rejected, so today that means Stop was called): hand back the
	// figures but do not let them race into the store or the display
	// lock.
	if gen != a.generation.Load() {
		a.LogInfo("Discarding stale result", "generation", gen, "current", a.generation.Load())
		a.PublishEvent(service.EventTypeEstimateStale, map[string]interface{}{
			"generation": gen,
		})
		return &Result{Record: rec, Stale: true}, nil
	}

	if a.snapshots != nil {
		path, err := a.snapshots.Save(images[0], rec.ID, rec.CreatedAt)
		if err != nil {
			a.LogError("Failed to save snapshot", err)
		} else {
			rec.SnapshotPath = path
		}
	}

	if err := a.store.SaveEstimate(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to persist estimate: %w", err)
	}

	a.lockMu.Lock()
	a.lockedUntil = time.Now().Add(a.cfg.Motion.LockDuration)
	a.lockMu.Unlock()

	a.PublishEvent(service.EventTypeEstimateSaved, map[string]interface{}{
		"id":         rec.ID,
		"subject_id": rec.SubjectID,
		"tonnage":    rec.Estimate.Tonnage,
		"load_grade": rec.LoadGrade,
	})
	a.LogInfo("Estimate saved",
		"id", rec.ID,
		"subject_id", rec.SubjectID,
		"tonnage", rec.Estimate.Tonnage,
		"volume_m3", rec.Estimate.VolumeM3,
		"load_grade", rec.LoadGrade,
		"valid", rec.Estimate.ValidCount,
		"attempted", rec.Estimate.EnsembleCount,
	)

	return &Result{Record: rec}, nil
}

// buildRecord labels the aggregate with its equipment class and load
// grade and resolves the subject identity.
func (a *Analyzer) buildRecord(req AnalyzeRequest, agg estimate.AggregatedEstimate) *store.Record {
	maxCap := agg.EstimatedMaxCapacity
	if req.CapacityHint > 0 {
		maxCap = req.CapacityHint
	}
	if maxCap <= 0 {
		spec, _ := a.tables.TruckSpecFor(agg.TruckClass)
		maxCap = spec.MaxCapacity
	}

	equipClass := a.classifier.ClassifyEquipment(maxCap)
	loadGrade := "unknown"
	if g, err := a.classifier.ClassifyLoad(agg.Tonnage, maxCap); err == nil {
		loadGrade = g.Name
	}

	subject := req.SubjectID
	if subject == "" {
		subject = agg.LicensePlate
	}
	if subject == "" {
		subject = agg.LicenseNumber
	}
	if subject == "" {
		subject = "unidentified"
	}

	return &store.Record{
		ID:             uuid.New().String(),
		SubjectID:      subject,
		Estimate:       agg,
		EquipmentClass: equipClass,
		LoadGrade:      loadGrade,
		CreatedAt:      time.Now(),
	}
}

// loadReferences picks at most one recent graded sample per load grade
// for the equipment class implied by the capacity hint.
func (a *Analyzer) loadReferences(ctx context.Context, capacityHint float64) []estimate.AggregatedEstimate {
	if capacityHint <= 0 || a.store == nil {
		return nil
	}
	class := a.classifier.ClassifyEquipment(capacityHint)
	if class == estimate.TruckClassUnknown {
		return nil
	}

	records, err := a.store.ReferencesByEquipmentClass(ctx, class)
	if err != nil {
		a.LogError("Failed to load reference samples", err)
		return nil
	}

	refs := make([]estimate.AggregatedEstimate, 0, len(records))
	for _, rec := range records {
		refs = append(refs, rec.Estimate)
	}
	return refs
}

// Busy reports whether an analysis is in flight.
func (a *Analyzer) Busy() bool {
	return a.busy.Load()
}

// targetLocked reports whether the display is still holding the last
// result.
func (a *Analyzer) targetLocked() bool {
	a.lockMu.Lock()
	defer a.lockMu.Unlock()
	return time.Now().Before(a.lockedUntil)
}
