// Package video grabs still frames from the camera feed for motion
// scoring and capture. Frames move through the system as JPEG bytes.
package video

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"
)

// Frame is one captured still frame.
type Frame struct {
	Data      []byte // JPEG-encoded
	Timestamp time.Time
	Width     int
	Height    int
}

// Decode decodes the frame into an image for pixel access.
func (f *Frame) Decode() (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

// BoundJPEG re-encodes a JPEG at decreasing quality until it fits within
// maxBytes. Frames handed to the inference provider are size-bounded
// to keep request payloads predictable.
func BoundJPEG(data []byte, maxBytes int) ([]byte, error) {
	if maxBytes <= 0 || len(data) <= maxBytes {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame for re-encoding: %w", err)
	}

	for quality := 75; quality >= 20; quality -= 15 {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("failed to re-encode frame: %w", err)
		}
		if buf.Len() <= maxBytes {
			return buf.Bytes(), nil
		}
	}
	return nil, fmt.Errorf("frame does not fit in %d bytes even at minimum quality", maxBytes)
}
