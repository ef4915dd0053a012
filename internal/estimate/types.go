// Package estimate defines the data model for cargo weight estimation:
// raw per-sample results from the inference provider and the merged
// ensemble result that gets persisted.
package estimate

import "strings"

// TruckClass identifies the equipment size bucket of a dump truck.
// Recognized values key into the truck specification table; anything the
// provider reports that cannot be normalized keeps its raw text and
// resolves to default bed dimensions at calculation time.
type TruckClass string

const (
	TruckClass2t      TruckClass = "2t"
	TruckClass4t      TruckClass = "4t"
	TruckClass8t      TruckClass = "8t"
	TruckClass10t     TruckClass = "10t"
	TruckClassUnknown TruckClass = "unknown"
)

// truckClassAliases normalizes free-form provider text to canonical classes.
var truckClassAliases = map[string]TruckClass{
	"2t":      TruckClass2t,
	"2ton":    TruckClass2t,
	"2トン":     TruckClass2t,
	"2t車":     TruckClass2t,
	"4t":      TruckClass4t,
	"4ton":    TruckClass4t,
	"4トン":     TruckClass4t,
	"4t車":     TruckClass4t,
	"4tダンプ":   TruckClass4t,
	"8t":      TruckClass8t,
	"8ton":    TruckClass8t,
	"8トン":     TruckClass8t,
	"増トン":     TruckClass8t,
	"10t":     TruckClass10t,
	"10ton":   TruckClass10t,
	"10トン":    TruckClass10t,
	"大型":      TruckClass10t,
	"unknown": TruckClassUnknown,
	"不明":      TruckClassUnknown,
}

// NormalizeTruckClass maps provider-reported text to a canonical truck
// class. Unrecognized non-empty text is preserved as-is so the original
// wording stays visible in stored results.
func NormalizeTruckClass(s string) TruckClass {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return TruckClassUnknown
	}
	if c, ok := truckClassAliases[key]; ok {
		return c
	}
	return TruckClass(strings.TrimSpace(s))
}

// MaterialType identifies the cargo material. Recognized values key into
// the material density table; unrecognized text is preserved and resolves
// to the default density.
type MaterialType string

const (
	MaterialSoil           MaterialType = "土砂"
	MaterialAsphaltDebris  MaterialType = "As殻"
	MaterialConcreteDebris MaterialType = "Co殻"
	MaterialPorousAsDebris MaterialType = "開粒度As殻"
	MaterialUnknown        MaterialType = "unknown"
)

var materialAliases = map[string]MaterialType{
	"土砂":       MaterialSoil,
	"soil":     MaterialSoil,
	"earth":    MaterialSoil,
	"dirt":     MaterialSoil,
	"as殻":      MaterialAsphaltDebris,
	"asphalt":  MaterialAsphaltDebris,
	"アスファルト殻":  MaterialAsphaltDebris,
	"co殻":      MaterialConcreteDebris,
	"concrete": MaterialConcreteDebris,
	"コンクリート殻":  MaterialConcreteDebris,
	"開粒度as殻":   MaterialPorousAsDebris,
	"unknown":  MaterialUnknown,
	"不明":       MaterialUnknown,
}

// NormalizeMaterial maps provider-reported text to a canonical material
// type, preserving unrecognized non-empty text.
func NormalizeMaterial(s string) MaterialType {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return MaterialUnknown
	}
	if m, ok := materialAliases[key]; ok {
		return m
	}
	return MaterialType(strings.TrimSpace(s))
}

// RawEstimate is one sample returned by the inference provider.
// All ratio and height fields must be clamped into the declared ranges
// before any calculation uses them (see refdata.Ranges.ClampEstimate).
type RawEstimate struct {
	IsTargetDetected     bool         `json:"is_target_detected"`
	TruckClass           TruckClass   `json:"truck_class"`
	MaterialType         MaterialType `json:"material_type"`
	Height               float64      `json:"height"`          // cargo height above bed floor (m)
	FillRatioL           float64      `json:"fill_ratio_l"`    // length-wise fill (0..1)
	FillRatioW           float64      `json:"fill_ratio_w"`    // width-wise fill at cargo top (0..1)
	FillRatioZ           float64      `json:"fill_ratio_z"`    // compaction depth correction
	PackingDensity       float64      `json:"packing_density"` // void/compaction correction
	ConfidenceScore      float64      `json:"confidence_score"`
	Reasoning            string       `json:"reasoning"`
	CapacityReasoning    string       `json:"capacity_reasoning,omitempty"`
	LicenseNumber        string       `json:"license_number,omitempty"`
	LicensePlate         string       `json:"license_plate,omitempty"`
	EstimatedMaxCapacity float64      `json:"estimated_max_capacity,omitempty"` // certified max capacity (t)
}

// AggregatedEstimate is the merged result of one ensemble run. It carries
// the mode/mean-resolved sample fields plus figures recomputed from them.
// Instances are append-only: callers add them to a per-subject history and
// never mutate them in place.
type AggregatedEstimate struct {
	RawEstimate

	EnsembleCount int     `json:"ensemble_count"` // samples attempted, including failures
	ValidCount    int     `json:"valid_count"`    // samples with a detected target
	VolumeM3      float64 `json:"volume_m3"`
	Tonnage       float64 `json:"tonnage"`
}
