// Package ensemble merges several independent inference samples of the
// same cargo into one trustworthy estimate, and drives the sequential
// sampling loop that produces them.
package ensemble

import (
	"fmt"
	"math"

	"github.com/YuujiKamura/tonsuu-checker/internal/calc"
	"github.com/YuujiKamura/tonsuu-checker/internal/estimate"
	"github.com/YuujiKamura/tonsuu-checker/internal/logger"
)

// Aggregator merges the raw samples of one ensemble run.
type Aggregator struct {
	calc   *calc.Calculator
	logger *logger.Logger
}

// NewAggregator creates an aggregator that recomputes final figures with
// the given calculator.
func NewAggregator(c *calc.Calculator, log *logger.Logger) *Aggregator {
	return &Aggregator{calc: c, logger: log}
}

// Aggregate merges an ordered list of raw samples from one run.
// attempted is the total number of provider calls the run made; failed
// calls produce no sample, so it can exceed the list length, and it is
// what EnsembleCount reports so a caller can show "3 of 5 valid".
//
// Categorical fields merge by mode (most frequent non-empty value, ties
// resolving to the first-encountered value). Continuous fields merge by
// arithmetic mean. The final volume and tonnage are then recomputed from
// the merged parameters: averaging the independently rounded per-sample
// tonnages would not satisfy the physical formula exactly, recomputing
// from averaged parameters keeps the result internally consistent.
func (a *Aggregator) Aggregate(samples []estimate.RawEstimate, attempted int) (estimate.AggregatedEstimate, error) {
	if len(samples) == 0 {
		return estimate.AggregatedEstimate{}, fmt.Errorf("no samples to aggregate")
	}
	if attempted < len(samples) {
		attempted = len(samples)
	}

	valid := make([]estimate.RawEstimate, 0, len(samples))
	for _, s := range samples {
		if s.IsTargetDetected {
			valid = append(valid, s)
		}
	}

	// Nothing detected is a valid negative outcome, not an error: return
	// the first raw sample unchanged so the caller can show what the
	// provider reported.
	if len(valid) == 0 {
		return estimate.AggregatedEstimate{
			RawEstimate:   samples[0],
			EnsembleCount: attempted,
			ValidCount:    0,
		}, nil
	}

	merged := estimate.RawEstimate{
		IsTargetDetected:     true,
		TruckClass:           estimate.TruckClass(modeString(valid, func(e estimate.RawEstimate) string { return string(e.TruckClass) })),
		MaterialType:         estimate.MaterialType(modeString(valid, func(e estimate.RawEstimate) string { return string(e.MaterialType) })),
		LicenseNumber:        modeString(valid, func(e estimate.RawEstimate) string { return e.LicenseNumber }),
		LicensePlate:         modeString(valid, func(e estimate.RawEstimate) string { return e.LicensePlate }),
		EstimatedMaxCapacity: modeFloat(valid, func(e estimate.RawEstimate) float64 { return e.EstimatedMaxCapacity }),
		Height:               mean(valid, func(e estimate.RawEstimate) float64 { return e.Height }),
		FillRatioL:           mean(valid, func(e estimate.RawEstimate) float64 { return e.FillRatioL }),
		FillRatioW:           mean(valid, func(e estimate.RawEstimate) float64 { return e.FillRatioW }),
		FillRatioZ:           mean(valid, func(e estimate.RawEstimate) float64 { return e.FillRatioZ }),
		PackingDensity:       mean(valid, func(e estimate.RawEstimate) float64 { return e.PackingDensity }),
	}

	result := a.calc.Compute(calc.ParamsFromEstimate(merged))

	// Donate free-text fields from the valid sample whose own tonnage is
	// numerically closest to the recomputed one.
	rep := a.closestSample(valid, result.Tonnage)
	merged.Reasoning = fmt.Sprintf("%s\n(%d of %d samples valid)", rep.Reasoning, len(valid), attempted)
	merged.CapacityReasoning = rep.CapacityReasoning
	merged.ConfidenceScore = rep.ConfidenceScore

	if a.logger != nil {
		a.logger.Debug("Aggregated ensemble",
			"attempted", attempted,
			"valid", len(valid),
			"volume_m3", result.VolumeM3,
			"tonnage", result.Tonnage,
		)
	}

	return estimate.AggregatedEstimate{
		RawEstimate:   merged,
		EnsembleCount: attempted,
		ValidCount:    len(valid),
		VolumeM3:      result.VolumeM3,
		Tonnage:       result.Tonnage,
	}, nil
}

// closestSample returns the valid sample whose individually computed
// tonnage is closest to the recomputed target.
func (a *Aggregator) closestSample(valid []estimate.RawEstimate, target float64) estimate.RawEstimate {
	best := valid[0]
	bestDiff := math.Inf(1)
	for _, s := range valid {
		own := a.calc.Compute(calc.ParamsFromEstimate(s)).Tonnage
		diff := math.Abs(own - target)
		if diff < bestDiff {
			bestDiff = diff
			best = s
		}
	}
	return best
}

// modeString returns the most frequent non-empty value, resolving ties to
// the first-encountered value in original order.
func modeString(samples []estimate.RawEstimate, get func(estimate.RawEstimate) string) string {
	counts := make(map[string]int)
	order := make([]string, 0, len(samples))
	for _, s := range samples {
		v := get(s)
		if v == "" {
			continue
		}
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}
	best := ""
	bestCount := 0
	for _, v := range order {
		if counts[v] > bestCount {
			best = v
			bestCount = counts[v]
		}
	}
	return best
}

// modeFloat is modeString for numeric categoricals (capacity values are
// merged by frequency, not averaged).
func modeFloat(samples []estimate.RawEstimate, get func(estimate.RawEstimate) float64) float64 {
	counts := make(map[float64]int)
	order := make([]float64, 0, len(samples))
	for _, s := range samples {
		v := get(s)
		if v == 0 {
			continue
		}
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}
	var best float64
	bestCount := 0
	for _, v := range order {
		if counts[v] > bestCount {
			best = v
			bestCount = counts[v]
		}
	}
	return best
}

func mean(samples []estimate.RawEstimate, get func(estimate.RawEstimate) float64) float64 {
	var sum float64
	for _, s := range samples {
		sum += get(s)
	}
	return sum / float64(len(samples))
}
