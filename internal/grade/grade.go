// Package grade buckets continuous capacity and load-ratio values into
// the discrete equipment classes and load grades defined by the
// reference tables.
package grade

import (
	"fmt"

	"github.com/YuujiKamura/tonsuu-checker/internal/estimate"
	"github.com/YuujiKamura/tonsuu-checker/internal/refdata"
)

// Classifier maps capacities to equipment classes and load ratios to
// load grades.
type Classifier struct {
	tables *refdata.Tables
}

// New creates a classifier over the given reference tables.
func New(tables *refdata.Tables) *Classifier {
	return &Classifier{tables: tables}
}

// ClassifyEquipment maps a certified maximum capacity (t) to an equipment
// class. The certification bands are disjoint with gaps between them;
// a capacity falling into a gap classifies as unknown. The gaps reflect
// real certification boundaries, not rounding error.
func (c *Classifier) ClassifyEquipment(maxCapacity float64) estimate.TruckClass {
	for class, spec := range c.tables.Trucks {
		if spec.CapacityBand.Contains(maxCapacity) {
			return class
		}
	}
	return estimate.TruckClassUnknown
}

// ClassifyLoad maps an actual tonnage against a certified maximum to a
// load grade. The ratio is actual/max expressed in percent; the matching
// band is the one with minRatioPct <= ratio < maxRatioPct, so a ratio
// landing exactly on a boundary belongs to the upper band. In particular
// a ratio of exactly 100% classifies as overload.
func (c *Classifier) ClassifyLoad(actualTonnage, maxCapacity float64) (refdata.LoadGrade, error) {
	if maxCapacity <= 0 {
		return refdata.LoadGrade{}, fmt.Errorf("max capacity must be > 0, got %.2f", maxCapacity)
	}
	ratio := actualTonnage / maxCapacity * 100

	for _, g := range c.tables.LoadGrades {
		if ratio >= g.MinRatioPct && ratio < g.MaxRatioPct {
			return g, nil
		}
	}
	// The bands are validated to cover [0, inf), so only a negative ratio
	// can reach here.
	return refdata.LoadGrade{}, fmt.Errorf("load ratio %.1f%% outside grade bands", ratio)
}
