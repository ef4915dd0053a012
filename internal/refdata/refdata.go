// Package refdata loads the static reference tables used across the
// estimation core: truck bed specifications, material densities, load
// grade bands and per-field clamp ranges. Tables are loaded once at
// process start and are read-only afterwards.
package refdata

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/YuujiKamura/tonsuu-checker/internal/estimate"
)

//go:embed specs.yaml
var embeddedSpecs []byte

// TruckSpec describes the bed geometry and certified capacity of one
// equipment class.
type TruckSpec struct {
	BedLength    float64 `yaml:"bed_length"`
	BedWidth     float64 `yaml:"bed_width"`
	BedHeight    float64 `yaml:"bed_height"`
	LevelVolume  float64 `yaml:"level_volume"`
	HeapVolume   float64 `yaml:"heap_volume"`
	MaxCapacity  float64 `yaml:"max_capacity"`
	CapacityBand Band    `yaml:"capacity_band"`
}

// BedArea returns the floor area of the bed in m2.
func (s TruckSpec) BedArea() float64 {
	return s.BedLength * s.BedWidth
}

// Band is a closed numeric interval. Certification bands for equipment
// classes are disjoint with intentional gaps between them.
type Band struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Contains reports whether v falls inside the band, boundaries included.
func (b Band) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// MaterialSpec carries the density of one cargo material in t/m3.
type MaterialSpec struct {
	Density float64 `yaml:"density"`
}

// LoadGrade is one band of the load ratio classification. Bands are
// contiguous; the match rule is min <= ratio < max so that a ratio landing
// exactly on a boundary belongs to the upper band.
type LoadGrade struct {
	Name        string  `yaml:"name"`
	MinRatioPct float64 `yaml:"min_ratio_pct"`
	MaxRatioPct float64 `yaml:"max_ratio_pct"`
}

// Range is a clamp interval for one continuous estimate field.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Clamp returns v limited to the range.
func (r Range) Clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Ranges holds the clamp ranges for every continuous estimate field.
type Ranges struct {
	Height         Range `yaml:"height"`
	FillRatioL     Range `yaml:"fill_ratio_l"`
	FillRatioW     Range `yaml:"fill_ratio_w"`
	FillRatioZ     Range `yaml:"fill_ratio_z"`
	PackingDensity Range `yaml:"packing_density"`
}

// ClampEstimate limits every continuous field of a raw sample into its
// declared range. Every sample passes through here before any calculation
// uses it.
func (r Ranges) ClampEstimate(e *estimate.RawEstimate) {
	e.Height = r.Height.Clamp(e.Height)
	e.FillRatioL = r.FillRatioL.Clamp(e.FillRatioL)
	e.FillRatioW = r.FillRatioW.Clamp(e.FillRatioW)
	e.FillRatioZ = r.FillRatioZ.Clamp(e.FillRatioZ)
	e.PackingDensity = r.PackingDensity.Clamp(e.PackingDensity)
}

// Defaults carries fallback values used when the provider reports an
// unrecognized truck class or material, or omits a parameter entirely.
type Defaults struct {
	TruckClass     estimate.TruckClass `yaml:"truck_class"`
	Density        float64             `yaml:"density"`
	FillRatioW     float64             `yaml:"fill_ratio_w"`
	FillRatioZ     float64             `yaml:"fill_ratio_z"`
	PackingDensity float64             `yaml:"packing_density"`
}

// Tables is the full set of reference tables.
type Tables struct {
	Trucks     map[estimate.TruckClass]TruckSpec      `yaml:"trucks"`
	Materials  map[estimate.MaterialType]MaterialSpec `yaml:"materials"`
	LoadGrades []LoadGrade                            `yaml:"load_grades"`
	Ranges     Ranges                                 `yaml:"ranges"`
	Defaults   Defaults                               `yaml:"defaults"`
}

// Load parses the embedded reference tables.
func Load() (*Tables, error) {
	return parse(embeddedSpecs)
}

// LoadFile parses reference tables from an external file, for deployments
// that override the built-in calibration.
func LoadFile(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference tables: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse reference tables: %w", err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// TruckSpecFor resolves the spec for a truck class. The second return
// value is false when the class is unknown and the default spec was used.
func (t *Tables) TruckSpecFor(class estimate.TruckClass) (TruckSpec, bool) {
	if spec, ok := t.Trucks[class]; ok {
		return spec, true
	}
	return t.Trucks[t.Defaults.TruckClass], false
}

// DensityFor resolves the density for a material. The second return value
// is false when the material is unknown and the default density was used.
func (t *Tables) DensityFor(material estimate.MaterialType) (float64, bool) {
	if spec, ok := t.Materials[material]; ok {
		return spec.Density, true
	}
	return t.Defaults.Density, false
}

func (t *Tables) validate() error {
	if len(t.Trucks) == 0 {
		return fmt.Errorf("reference tables: no truck specs defined")
	}
	if _, ok := t.Trucks[t.Defaults.TruckClass]; !ok {
		return fmt.Errorf("reference tables: default truck class %q has no spec", t.Defaults.TruckClass)
	}
	if t.Defaults.Density <= 0 {
		return fmt.Errorf("reference tables: default density must be > 0, got %.2f", t.Defaults.Density)
	}
	if len(t.LoadGrades) == 0 {
		return fmt.Errorf("reference tables: no load grades defined")
	}
	// Grade bands must be contiguous from zero and exhaustive over [0, inf).
	if t.LoadGrades[0].MinRatioPct != 0 {
		return fmt.Errorf("reference tables: first load grade must start at 0")
	}
	for i := 1; i < len(t.LoadGrades); i++ {
		if t.LoadGrades[i].MinRatioPct != t.LoadGrades[i-1].MaxRatioPct {
			return fmt.Errorf("reference tables: load grades %q and %q are not contiguous",
				t.LoadGrades[i-1].Name, t.LoadGrades[i].Name)
		}
	}
	if last := t.LoadGrades[len(t.LoadGrades)-1]; !math.IsInf(last.MaxRatioPct, 1) {
		return fmt.Errorf("reference tables: last load grade %q must be unbounded", last.Name)
	}
	return nil
}
