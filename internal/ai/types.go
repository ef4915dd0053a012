package ai

// estimateRequest is the JSON payload sent to the inference service.
type estimateRequest struct {
	Images       []string          `json:"images"` // Base64-encoded JPEG images
	Model        string            `json:"model,omitempty"`
	CapacityHint *float64          `json:"capacity_hint,omitempty"` // known max capacity (t)
	Feedback     string            `json:"feedback,omitempty"`      // operator feedback, verbatim
	References   []referenceSample `json:"references,omitempty"`
}

// referenceSample is a previously graded estimate sent along as few-shot
// calibration context.
type referenceSample struct {
	TruckClass string  `json:"truck_class"`
	Material   string  `json:"material_type"`
	LoadGrade  string  `json:"load_grade,omitempty"`
	Tonnage    float64 `json:"tonnage"`
	VolumeM3   float64 `json:"volume_m3"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// estimateResponse is the JSON body returned by the inference service.
// One call yields exactly one sample. The ratio fields with configured
// fallbacks are pointers so an omitted field is distinguishable from an
// explicit zero; an explicit zero still clamps to the range minimum.
type estimateResponse struct {
	IsTargetDetected     bool     `json:"is_target_detected"`
	TruckClass           string   `json:"truck_class"`
	MaterialType         string   `json:"material_type"`
	Height               float64  `json:"height"`
	FillRatioL           float64  `json:"fill_ratio_l"`
	FillRatioW           *float64 `json:"fill_ratio_w"`
	FillRatioZ           *float64 `json:"fill_ratio_z"`
	PackingDensity       *float64 `json:"packing_density"`
	ConfidenceScore      float64  `json:"confidence_score"`
	Reasoning            string   `json:"reasoning"`
	CapacityReasoning    string   `json:"capacity_reasoning"`
	LicenseNumber        string   `json:"license_number"`
	LicensePlate         string   `json:"license_plate"`
	EstimatedMaxCapacity float64  `json:"estimated_max_capacity"`
	InferenceTimeMs      float64  `json:"inference_time_ms"`
}
