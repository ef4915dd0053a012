package ensemble

import (
	"errors"
	"fmt"
)

// Error kinds for provider calls. The provider client wraps its transport
// failures with these sentinels so callers can react without inspecting
// HTTP details.
var (
	// ErrQuotaExceeded marks a provider rejection due to exhausted quota.
	// Non-fatal: the motion sampler widens its scan interval until the
	// next successful sample.
	ErrQuotaExceeded = errors.New("provider quota exceeded")

	// ErrInvalidInput marks malformed or unusable image data. Fatal for
	// the request before any sample is attempted.
	ErrInvalidInput = errors.New("invalid input image")

	// ErrCredential marks an invalid or expired provider credential.
	ErrCredential = errors.New("invalid or expired credential")
)

// AllFailedError is returned when every sample of an ensemble run failed.
// It wraps the last per-sample failure.
type AllFailedError struct {
	Attempts int
	Last     error
}

func (e *AllFailedError) Error() string {
	return fmt.Sprintf("all %d samples failed: %v", e.Attempts, e.Last)
}

func (e *AllFailedError) Unwrap() error {
	return e.Last
}
