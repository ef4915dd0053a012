// Package calc implements the deterministic volume and tonnage formula.
// Identical inputs always produce identical outputs; the ensemble
// aggregator relies on this to recompute final figures from merged
// parameters instead of averaging per-sample results.
package calc

import (
	"math"

	"github.com/YuujiKamura/tonsuu-checker/internal/estimate"
	"github.com/YuujiKamura/tonsuu-checker/internal/refdata"
)

// Params are the geometric parameters of one calculation. They are
// expected to be clamped into their declared ranges already.
type Params struct {
	TruckClass     estimate.TruckClass
	MaterialType   estimate.MaterialType
	Height         float64 // cargo height above bed floor (m)
	FillRatioW     float64 // width-wise fill at cargo top
	FillRatioZ     float64 // compaction depth correction
	PackingDensity float64 // void/compaction correction
}

// Result carries the computed figures plus the resolved lookups so
// callers can report which spec and density were actually used.
type Result struct {
	VolumeM3      float64
	Tonnage       float64
	BedArea       float64
	Density       float64
	KnownTruck    bool // false when the default bed spec was substituted
	KnownMaterial bool // false when the default density was substituted
}

// Calculator computes cargo volume and tonnage from geometric parameters.
type Calculator struct {
	tables *refdata.Tables
}

// New creates a calculator over the given reference tables.
func New(tables *refdata.Tables) *Calculator {
	return &Calculator{tables: tables}
}

// Compute applies the trapezoidal-prism approximation:
//
//	bedArea   = bedLength * bedWidth
//	upperArea = fillRatioW * bedArea
//	volume    = (upperArea + bedArea) / 2 * height
//	tonnage   = volume * density * fillRatioZ * packingDensity
//
// The cargo cross-section is modeled as the average of the full bed floor
// and the reduced top surface, swept over the cargo height. Volume rounds
// to 3 decimals, tonnage to 2.
func (c *Calculator) Compute(p Params) Result {
	spec, knownTruck := c.tables.TruckSpecFor(p.TruckClass)
	density, knownMaterial := c.tables.DensityFor(p.MaterialType)

	height := p.Height
	if height < 0 {
		height = 0
	}

	bedArea := spec.BedArea()
	upperArea := p.FillRatioW * bedArea
	volume := round3((upperArea + bedArea) / 2 * height)
	tonnage := round2(volume * density * p.FillRatioZ * p.PackingDensity)

	return Result{
		VolumeM3:      volume,
		Tonnage:       tonnage,
		BedArea:       bedArea,
		Density:       density,
		KnownTruck:    knownTruck,
		KnownMaterial: knownMaterial,
	}
}

// ParamsFromEstimate extracts calculation parameters from a raw sample.
func ParamsFromEstimate(e estimate.RawEstimate) Params {
	return Params{
		TruckClass:     e.TruckClass,
		MaterialType:   e.MaterialType,
		Height:         e.Height,
		FillRatioW:     e.FillRatioW,
		FillRatioZ:     e.FillRatioZ,
		PackingDensity: e.PackingDensity,
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
