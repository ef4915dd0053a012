package ensemble

import (
	"context"

	"github.com/YuujiKamura/tonsuu-checker/internal/estimate"
	"github.com/YuujiKamura/tonsuu-checker/internal/logger"
)

// Provider is the external inference service. One call returns exactly
// one raw sample or an error classified via the sentinels in errors.go.
type Provider interface {
	Estimate(ctx context.Context, req ProviderRequest) (estimate.RawEstimate, error)
}

// ProviderRequest is the payload of one provider call.
type ProviderRequest struct {
	Images       [][]byte                      // JPEG-encoded photos of the same load
	CapacityHint float64                       // externally known max capacity (t), 0 if absent
	Feedback     string                        // free-text operator feedback, passed through verbatim
	References   []estimate.AggregatedEstimate // previously graded samples for calibration
}

// Request describes one ensemble run.
type Request struct {
	ProviderRequest

	Count      int    // target number of samples
	Generation uint64 // request counter for stale-result suppression
}

// SampleUpdate is one progress notification from a running ensemble.
// Sample is valid only when Err is nil.
type SampleUpdate struct {
	Index  int
	Sample estimate.RawEstimate
	Err    error
}

// Run is one in-flight ensemble. The caller drains Updates and then calls
// Wait for the accumulated samples.
type Run struct {
	Generation uint64

	updates   chan SampleUpdate
	done      chan struct{}
	samples   []estimate.RawEstimate
	attempted int
	err       error
}

// Updates returns the progress stream. It is closed when the run ends.
func (r *Run) Updates() <-chan SampleUpdate {
	return r.updates
}

// Wait blocks until the run ends and returns the accumulated samples.
// The list may be shorter than the requested count when samples failed
// or the run exited early.
func (r *Run) Wait() ([]estimate.RawEstimate, error) {
	<-r.done
	return r.samples, r.err
}

// Attempted reports how many provider calls the run made, including
// failed ones. Valid once Wait has returned.
func (r *Run) Attempted() int {
	<-r.done
	return r.attempted
}

// Runner drives sequential provider calls for one ensemble run.
type Runner struct {
	provider Provider
	logger   *logger.Logger
}

// NewRunner creates a runner over the given provider.
func NewRunner(p Provider, log *logger.Logger) *Runner {
	return &Runner{provider: p, logger: log}
}

// Start begins an ensemble run and returns immediately. Samples are taken
// strictly sequentially, never in parallel: this bounds simultaneous
// quota consumption and keeps cancellation semantics exact. Cancellation
// is cooperative and checked only between samples; a call already in
// flight is never interrupted by the runner itself.
//
// If the very first sample reports no target, the run ends with that
// single sample rather than burning quota on the rest. A failed call is
// logged and skipped; only total exhaustion surfaces as an error.
func (r *Runner) Start(ctx context.Context, req Request) *Run {
	if req.Count < 1 {
		req.Count = 1
	}

	run := &Run{
		Generation: req.Generation,
		updates:    make(chan SampleUpdate, req.Count),
		done:       make(chan struct{}),
	}

	go func() {
		defer close(run.done)
		defer close(run.updates)
		run.samples, run.err = r.collect(ctx, req, run)
	}()

	return run
}

func (r *Runner) collect(ctx context.Context, req Request, run *Run) ([]estimate.RawEstimate, error) {
	var samples []estimate.RawEstimate
	var lastErr error
	failures := 0

	for i := 0; i < req.Count; i++ {
		// Cooperative cancellation between samples.
		if ctx.Err() != nil {
			r.logger.Info("Ensemble run cancelled",
				"generation", req.Generation,
				"collected", len(samples),
			)
			return samples, nil
		}

		run.attempted++
		sample, err := r.provider.Estimate(ctx, req.ProviderRequest)
		if err != nil {
			failures++
			lastErr = err
			r.logger.Warn("Provider call failed, skipping sample",
				"generation", req.Generation,
				"sample", i,
				"error", err,
			)
			run.updates <- SampleUpdate{Index: i, Err: err}
			continue
		}

		// An immediate miss on the first sample means the scene is
		// obviously not a target; abort before spending more quota.
		if i == 0 && !sample.IsTargetDetected {
			r.logger.Info("No target in first sample, aborting ensemble",
				"generation", req.Generation,
			)
			run.updates <- SampleUpdate{Index: i, Sample: sample}
			return []estimate.RawEstimate{sample}, nil
		}

		samples = append(samples, sample)
		run.updates <- SampleUpdate{Index: i, Sample: sample}
	}

	if len(samples) == 0 && failures > 0 {
		return nil, &AllFailedError{Attempts: failures, Last: lastErr}
	}
	return samples, nil
}
