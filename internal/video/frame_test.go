package video

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

// noisyJPEG encodes a pseudo-random image, which compresses poorly and
// stays large.
func noisyJPEG(t *testing.T, w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	seed := uint32(12345)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			seed = seed*1664525 + 1013904223
			img.Set(x, y, color.RGBA{
				R: uint8(seed >> 8),
				G: uint8(seed >> 16),
				B: uint8(seed >> 24),
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestFrame_Decode(t *testing.T) {
	data := noisyJPEG(t, 64, 48)
	f := &Frame{Data: data, Width: 64, Height: 48}

	img, err := f.Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Errorf("Unexpected decoded size: %v", img.Bounds())
	}
}

func TestFrame_Decode_Garbage(t *testing.T) {
	f := &Frame{Data: []byte("not a jpeg")}
	if _, err := f.Decode(); err == nil {
		t.Error("Expected error for non-JPEG data")
	}
}

func TestBoundJPEG_PassthroughWhenSmallEnough(t *testing.T) {
	data := noisyJPEG(t, 32, 32)

	out, err := BoundJPEG(data, len(data)+1)
	if err != nil {
		t.Fatalf("BoundJPEG failed: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("Expected passthrough without re-encoding")
	}

	// Zero bound means unbounded.
	out, err = BoundJPEG(data, 0)
	if err != nil || !bytes.Equal(out, data) {
		t.Errorf("Expected passthrough for zero bound, got err=%v", err)
	}
}

func TestBoundJPEG_ShrinksLargeFrame(t *testing.T) {
	data := noisyJPEG(t, 320, 240)
	maxBytes := len(data) / 2

	out, err := BoundJPEG(data, maxBytes)
	if err != nil {
		t.Fatalf("BoundJPEG failed: %v", err)
	}
	if len(out) > maxBytes {
		t.Errorf("Re-encoded frame still too large: %d > %d", len(out), maxBytes)
	}

	// The result must still be a decodable JPEG.
	if _, _, err := image.Decode(bytes.NewReader(out)); err != nil {
		t.Errorf("Re-encoded frame does not decode: %v", err)
	}
}

func TestBoundJPEG_ImpossibleBound(t *testing.T) {
	data := noisyJPEG(t, 320, 240)

	if _, err := BoundJPEG(data, 10); err == nil {
		t.Error("Expected error when the frame cannot fit the bound")
	}
}
