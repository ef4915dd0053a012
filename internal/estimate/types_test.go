package estimate

import "testing"

func TestNormalizeTruckClass(t *testing.T) {
	cases := []struct {
		in   string
		want TruckClass
	}{
		{"4t", TruckClass4t},
		{"4T", TruckClass4t},
		{" 4ton ", TruckClass4t},
		{"4tダンプ", TruckClass4t},
		{"4トン", TruckClass4t},
		{"増トン", TruckClass8t},
		{"大型", TruckClass10t},
		{"unknown", TruckClassUnknown},
		{"不明", TruckClassUnknown},
		{"", TruckClassUnknown},
	}
	for _, tc := range cases {
		if got := NormalizeTruckClass(tc.in); got != tc.want {
			t.Errorf("NormalizeTruckClass(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeTruckClass_PreservesUnrecognizedText(t *testing.T) {
	// The provider's wording must stay visible in stored results instead
	// of collapsing into "unknown".
	got := NormalizeTruckClass("  軽トラック ")
	if got != TruckClass("軽トラック") {
		t.Errorf("Expected raw text preserved, got %q", got)
	}
}

func TestNormalizeMaterial(t *testing.T) {
	cases := []struct {
		in   string
		want MaterialType
	}{
		{"土砂", MaterialSoil},
		{"soil", MaterialSoil},
		{"As殻", MaterialAsphaltDebris},
		{"as殻", MaterialAsphaltDebris},
		{"アスファルト殻", MaterialAsphaltDebris},
		{"Co殻", MaterialConcreteDebris},
		{"concrete", MaterialConcreteDebris},
		{"開粒度As殻", MaterialPorousAsDebris},
		{"", MaterialUnknown},
		{"不明", MaterialUnknown},
	}
	for _, tc := range cases {
		if got := NormalizeMaterial(tc.in); got != tc.want {
			t.Errorf("NormalizeMaterial(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeMaterial_PreservesUnrecognizedText(t *testing.T) {
	got := NormalizeMaterial("ガラス殻")
	if got != MaterialType("ガラス殻") {
		t.Errorf("Expected raw text preserved, got %q", got)
	}
}
