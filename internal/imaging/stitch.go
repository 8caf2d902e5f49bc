package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// StitchResult is an encoded composite plus its geometry.
type StitchResult struct {
	PNG    []byte
	Width  int
	Height int
}

// StitchVertical concatenates the given label images top to bottom in input
// order. The caller's order is load-bearing: text distribution hands each
// member its share of the OCR text by the same position.
func StitchVertical(labels [][]byte) (*StitchResult, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("stitch: no labels to combine")
	}

	decoded := make([]image.Image, 0, len(labels))
	width, height := 0, 0
	for i, data := range labels {
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("stitch: decode label %d: %w", i, err)
		}
		decoded = append(decoded, img)
		if img.Bounds().Dx() > width {
			width = img.Bounds().Dx()
		}
		height += img.Bounds().Dy()
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	y := 0
	for _, img := range decoded {
		b := img.Bounds()
		draw.Copy(canvas, image.Point{X: 0, Y: y}, img, b, draw.Src, nil)
		y += b.Dy()
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("stitch: encode composite: %w", err)
	}
	return &StitchResult{PNG: buf.Bytes(), Width: width, Height: height}, nil
}
