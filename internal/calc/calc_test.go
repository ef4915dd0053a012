package calc

import (
	"math"
	"testing"

	"github.com/YuujiKamura/tonsuu-checker/internal/estimate"
	"github.com/YuujiKamura/tonsuu-checker/internal/refdata"
)

func setupTestCalculator(t *testing.T) *Calculator {
	tables, err := refdata.Load()
	if err != nil {
		t.Fatalf("Failed to load reference tables: %v", err)
	}
	return New(tables)
}

func TestCalculator_Compute_4tSoil(t *testing.T) {
	c := setupTestCalculator(t)

	// 4t bed is 3.40 x 2.06 m, so bedArea = 7.004 m2. With fillW 0.8 and
	// height 0.5 the swept volume is (0.8*7.004+7.004)/2*0.5 = 3.1518,
	// rounded to 3.152. Soil density 1.8 gives 3.152*1.8 = 5.6736 -> 5.67.
	result := c.Compute(Params{
		TruckClass:     estimate.TruckClass4t,
		MaterialType:   estimate.MaterialSoil,
		Height:         0.5,
		FillRatioW:     0.8,
		FillRatioZ:     1.0,
		PackingDensity: 1.0,
	})

	if result.VolumeM3 != 3.152 {
		t.Errorf("Expected volume 3.152, got %v", result.VolumeM3)
	}
	if result.Tonnage != 5.67 {
		t.Errorf("Expected tonnage 5.67, got %v", result.Tonnage)
	}
	if !result.KnownTruck || !result.KnownMaterial {
		t.Errorf("Expected known truck and material, got %v/%v", result.KnownTruck, result.KnownMaterial)
	}
	if math.Abs(result.BedArea-7.004) > 1e-9 {
		t.Errorf("Expected bed area 7.004, got %v", result.BedArea)
	}
}

func TestCalculator_Compute_4tDebrisPartialFill(t *testing.T) {
	c := setupTestCalculator(t)

	// Same 4t bed (bedArea 7.004 m2), a narrower heap: fillW 0.55 and
	// height 0.51 sweep (0.55*7.004+7.004)/2*0.51 = 2.76833 -> 2.768.
	// Asphalt debris at 2.5 t/m3 gives 2.768*2.5 = 6.92.
	result := c.Compute(Params{
		TruckClass:     estimate.TruckClass4t,
		MaterialType:   estimate.MaterialAsphaltDebris,
		Height:         0.51,
		FillRatioW:     0.55,
		FillRatioZ:     1.0,
		PackingDensity: 1.0,
	})

	if result.VolumeM3 != 2.768 {
		t.Errorf("Expected volume 2.768, got %v", result.VolumeM3)
	}
	if result.Tonnage != 6.92 {
		t.Errorf("Expected tonnage 6.92, got %v", result.Tonnage)
	}
	if result.Density != 2.5 {
		t.Errorf("Expected density 2.5, got %v", result.Density)
	}
}

func TestCalculator_Compute_Deterministic(t *testing.T) {
	c := setupTestCalculator(t)

	p := Params{
		TruckClass:     estimate.TruckClass10t,
		MaterialType:   estimate.MaterialConcreteDebris,
		Height:         0.73,
		FillRatioW:     0.91,
		FillRatioZ:     1.05,
		PackingDensity: 0.95,
	}

	first := c.Compute(p)
	for i := 0; i < 10; i++ {
		if got := c.Compute(p); got != first {
			t.Fatalf("Compute is not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestCalculator_Compute_TonnageFromRoundedVolume(t *testing.T) {
	c := setupTestCalculator(t)

	// Tonnage must be derived from the already rounded volume, not the
	// raw intermediate.
	cases := []Params{
		{TruckClass: "4t", MaterialType: "土砂", Height: 0.37, FillRatioW: 0.8, FillRatioZ: 1.0, PackingDensity: 1.0},
		{TruckClass: "10t", MaterialType: "As殻", Height: 0.51, FillRatioW: 0.66, FillRatioZ: 1.1, PackingDensity: 0.9},
		{TruckClass: "2t", MaterialType: "Co殻", Height: 0.29, FillRatioW: 1.0, FillRatioZ: 0.8, PackingDensity: 1.2},
	}
	for _, p := range cases {
		r := c.Compute(p)
		want := math.Round(r.VolumeM3*r.Density*p.FillRatioZ*p.PackingDensity*100) / 100
		if r.Tonnage != want {
			t.Errorf("Tonnage %v not recomputed from rounded volume (want %v) for %+v", r.Tonnage, want, p)
		}
	}
}

func TestCalculator_Compute_NegativeHeight(t *testing.T) {
	c := setupTestCalculator(t)

	result := c.Compute(Params{
		TruckClass:     estimate.TruckClass4t,
		MaterialType:   estimate.MaterialSoil,
		Height:         -0.5,
		FillRatioW:     0.8,
		FillRatioZ:     1.0,
		PackingDensity: 1.0,
	})

	if result.VolumeM3 != 0 || result.Tonnage != 0 {
		t.Errorf("Expected zero volume and tonnage for negative height, got %v / %v", result.VolumeM3, result.Tonnage)
	}
}

func TestCalculator_Compute_UnknownTruckUsesDefault(t *testing.T) {
	c := setupTestCalculator(t)

	unknown := c.Compute(Params{
		TruckClass:     "何かのトラック",
		MaterialType:   estimate.MaterialSoil,
		Height:         0.5,
		FillRatioW:     0.8,
		FillRatioZ:     1.0,
		PackingDensity: 1.0,
	})
	known := c.Compute(Params{
		TruckClass:     estimate.TruckClass4t,
		MaterialType:   estimate.MaterialSoil,
		Height:         0.5,
		FillRatioW:     0.8,
		FillRatioZ:     1.0,
		PackingDensity: 1.0,
	})

	if unknown.KnownTruck {
		t.Error("Expected KnownTruck=false for unrecognized class")
	}
	if unknown.VolumeM3 != known.VolumeM3 {
		t.Errorf("Expected default bed spec (volume %v), got %v", known.VolumeM3, unknown.VolumeM3)
	}
}

func TestCalculator_Compute_UnknownMaterialUsesDefaultDensity(t *testing.T) {
	c := setupTestCalculator(t)

	result := c.Compute(Params{
		TruckClass:     estimate.TruckClass4t,
		MaterialType:   "謎の材料",
		Height:         0.5,
		FillRatioW:     0.8,
		FillRatioZ:     1.0,
		PackingDensity: 1.0,
	})

	if result.KnownMaterial {
		t.Error("Expected KnownMaterial=false for unrecognized material")
	}
	if result.Density != 1.8 {
		t.Errorf("Expected default density 1.8, got %v", result.Density)
	}
}

func TestParamsFromEstimate(t *testing.T) {
	e := estimate.RawEstimate{
		TruckClass:     estimate.TruckClass8t,
		MaterialType:   estimate.MaterialAsphaltDebris,
		Height:         0.6,
		FillRatioW:     0.75,
		FillRatioZ:     1.1,
		PackingDensity: 0.9,
	}

	p := ParamsFromEstimate(e)
	if p.TruckClass != e.TruckClass || p.MaterialType != e.MaterialType ||
		p.Height != e.Height || p.FillRatioW != e.FillRatioW ||
		p.FillRatioZ != e.FillRatioZ || p.PackingDensity != e.PackingDensity {
		t.Errorf("ParamsFromEstimate dropped a field: %+v", p)
	}
}
