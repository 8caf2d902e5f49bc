package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodeTestImage(t *testing.T, width, height int, fill color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestHashBytesStable(t *testing.T) {
	data := []byte("the same content")
	if HashBytes(data) != HashBytes([]byte("the same content")) {
		t.Error("identical content must hash identically")
	}
	if HashBytes(data) == HashBytes([]byte("different content")) {
		t.Error("different content must not collide in tests")
	}

	fromReader, err := HashReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("HashReader failed: %v", err)
	}
	if fromReader != HashBytes(data) {
		t.Error("reader and byte hashing disagree")
	}
}

func TestCropLabelTakesTopBand(t *testing.T) {
	src := encodeTestImage(t, 200, 1000, color.RGBA{R: 200, A: 255})

	labelPNG, width, height, err := CropLabel(src, CropOptions{Ratio: 0.25})
	if err != nil {
		t.Fatalf("CropLabel failed: %v", err)
	}
	if width != 200 {
		t.Errorf("expected width 200, got %d", width)
	}
	if height != 250 {
		t.Errorf("expected height 250 (25%% of 1000), got %d", height)
	}
	if _, err := png.Decode(bytes.NewReader(labelPNG)); err != nil {
		t.Errorf("cropped label is not a decodable PNG: %v", err)
	}
}

func TestCropLabelNormalizesWidth(t *testing.T) {
	src := encodeTestImage(t, 400, 1000, color.RGBA{G: 120, A: 255})

	_, width, height, err := CropLabel(src, CropOptions{Ratio: 0.2, TargetWidth: 600})
	if err != nil {
		t.Fatalf("CropLabel failed: %v", err)
	}
	if width != 600 {
		t.Errorf("expected normalized width 600, got %d", width)
	}
	if height != 300 {
		t.Errorf("expected scaled height 300, got %d", height)
	}
}

func TestCropLabelRejectsGarbage(t *testing.T) {
	if _, _, _, err := CropLabel([]byte("not an image"), CropOptions{}); err == nil {
		t.Error("expected decode error for garbage input")
	}
}

func TestStitchVerticalPreservesOrderAndGeometry(t *testing.T) {
	red := encodeTestImage(t, 100, 40, color.RGBA{R: 255, A: 255})
	green := encodeTestImage(t, 100, 60, color.RGBA{G: 255, A: 255})
	blue := encodeTestImage(t, 80, 30, color.RGBA{B: 255, A: 255})

	result, err := StitchVertical([][]byte{red, green, blue})
	if err != nil {
		t.Fatalf("StitchVertical failed: %v", err)
	}
	if result.Width != 100 {
		t.Errorf("expected composite width 100, got %d", result.Width)
	}
	if result.Height != 130 {
		t.Errorf("expected composite height 130, got %d", result.Height)
	}

	img, err := png.Decode(bytes.NewReader(result.PNG))
	if err != nil {
		t.Fatalf("decode composite: %v", err)
	}

	// Sample one pixel per band: order must match input order.
	checks := []struct {
		y    int
		want color.RGBA
	}{
		{20, color.RGBA{R: 255, A: 255}},
		{70, color.RGBA{G: 255, A: 255}},
		{115, color.RGBA{B: 255, A: 255}},
	}
	for _, c := range checks {
		r, g, b, _ := img.At(10, c.y).RGBA()
		got := color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 255}
		if got != c.want {
			t.Errorf("pixel at y=%d: got %+v, want %+v", c.y, got, c.want)
		}
	}
}

func TestStitchVerticalIdenticalInputsHashEqual(t *testing.T) {
	label := encodeTestImage(t, 50, 20, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	first, err := StitchVertical([][]byte{label, label})
	if err != nil {
		t.Fatalf("StitchVertical failed: %v", err)
	}
	second, err := StitchVertical([][]byte{label, label})
	if err != nil {
		t.Fatalf("StitchVertical failed: %v", err)
	}
	if HashBytes(first.PNG) != HashBytes(second.PNG) {
		t.Error("identical member sets must produce identical composites for dedup")
	}
}

func TestStitchVerticalEmptyInput(t *testing.T) {
	if _, err := StitchVertical(nil); err == nil {
		t.Error("expected error for empty label list")
	}
}
