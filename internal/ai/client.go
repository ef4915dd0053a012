// Package ai is the HTTP client for the external inference service that
// turns cargo photos into geometric load parameters. The core never does
// image understanding itself: it sends photos plus context and receives
// structured estimates back.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/YuujiKamura/tonsuu-checker/internal/ensemble"
	"github.com/YuujiKamura/tonsuu-checker/internal/estimate"
	"github.com/YuujiKamura/tonsuu-checker/internal/logger"
	"github.com/YuujiKamura/tonsuu-checker/internal/refdata"
)

// Client is an HTTP client for the inference service. It implements
// ensemble.Provider.
type Client struct {
	serviceURL string
	model      string
	apiKey     string
	httpClient *http.Client
	tables     *refdata.Tables
	logger     *logger.Logger
}

// ClientConfig contains configuration for the inference client. The API
// key is passed in explicitly; the client never reads ambient credential
// storage.
type ClientConfig struct {
	ServiceURL string
	Model      string
	APIKey     string
	Timeout    time.Duration
}

// NewClient creates a new inference service client.
func NewClient(config ClientConfig, tables *refdata.Tables, log *logger.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	return &Client{
		serviceURL: config.ServiceURL,
		model:      config.Model,
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: config.Timeout},
		tables:     tables,
		logger:     log,
	}
}

// Estimate sends one inference request and returns one raw sample with
// all continuous fields clamped into their declared ranges.
func (c *Client) Estimate(ctx context.Context, req ensemble.ProviderRequest) (estimate.RawEstimate, error) {
	if len(req.Images) == 0 {
		return estimate.RawEstimate{}, fmt.Errorf("no images provided: %w", ensemble.ErrInvalidInput)
	}

	payload := estimateRequest{
		Images:   make([]string, len(req.Images)),
		Model:    c.model,
		Feedback: req.Feedback,
	}
	for i, img := range req.Images {
		if len(img) == 0 {
			return estimate.RawEstimate{}, fmt.Errorf("empty image data: %w", ensemble.ErrInvalidInput)
		}
		payload.Images[i] = base64.StdEncoding.EncodeToString(img)
	}
	if req.CapacityHint > 0 {
		hint := req.CapacityHint
		payload.CapacityHint = &hint
	}
	for _, ref := range req.References {
		payload.References = append(payload.References, referenceSample{
			TruckClass: string(ref.TruckClass),
			Material:   string(ref.MaterialType),
			Tonnage:    ref.Tonnage,
			VolumeM3:   ref.VolumeM3,
			Reasoning:  ref.Reasoning,
		})
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return estimate.RawEstimate{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/estimate", c.serviceURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return estimate.RawEstimate{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("Sending estimate request", "url", url, "image_count", len(req.Images))
	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return estimate.RawEstimate{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return estimate.RawEstimate{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return estimate.RawEstimate{}, c.classifyStatus(resp.StatusCode, body)
	}

	var er estimateResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return estimate.RawEstimate{}, fmt.Errorf("failed to parse response: %w", err)
	}

	raw := estimate.RawEstimate{
		IsTargetDetected:     er.IsTargetDetected,
		TruckClass:           estimate.NormalizeTruckClass(er.TruckClass),
		MaterialType:         estimate.NormalizeMaterial(er.MaterialType),
		Height:               er.Height,
		FillRatioL:           er.FillRatioL,
		FillRatioW:           orDefault(er.FillRatioW, c.tables.Defaults.FillRatioW),
		FillRatioZ:           orDefault(er.FillRatioZ, c.tables.Defaults.FillRatioZ),
		PackingDensity:       orDefault(er.PackingDensity, c.tables.Defaults.PackingDensity),
		ConfidenceScore:      er.ConfidenceScore,
		Reasoning:            er.Reasoning,
		CapacityReasoning:    er.CapacityReasoning,
		LicenseNumber:        er.LicenseNumber,
		LicensePlate:         er.LicensePlate,
		EstimatedMaxCapacity: er.EstimatedMaxCapacity,
	}
	c.tables.Ranges.ClampEstimate(&raw)

	c.logger.Debug("Estimate completed",
		"duration_ms", time.Since(startTime).Milliseconds(),
		"detected", raw.IsTargetDetected,
		"truck_class", raw.TruckClass,
		"confidence", raw.ConfidenceScore,
	)

	return raw, nil
}

// classifyStatus maps HTTP failures into the error taxonomy the core
// reacts to. Everything else surfaces as a generic call failure.
func (c *Client) classifyStatus(status int, body []byte) error {
	switch status {
	case http.StatusTooManyRequests:
		return fmt.Errorf("inference service status %d: %w", status, ensemble.ErrQuotaExceeded)
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return fmt.Errorf("inference service status %d: %s: %w", status, truncate(body, 200), ensemble.ErrInvalidInput)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("inference service status %d: %w", status, ensemble.ErrCredential)
	default:
		return fmt.Errorf("inference service status %d: %s", status, truncate(body, 200))
	}
}

// orDefault substitutes the configured fallback when the service left
// the field out of the response entirely.
func orDefault(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
