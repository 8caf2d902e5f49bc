package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	_ "image/jpeg"

	"golang.org/x/image/draw"
)

// CropOptions controls label extraction.
type CropOptions struct {
	// Ratio is the fraction of the image height taken from the top, where
	// the PSA label sits inside the slab.
	Ratio float64
	// TargetWidth normalizes all label crops to the same width so stitched
	// composites line up; 0 keeps the source width.
	TargetWidth int
}

// Dimensions reports the pixel size of an encoded image without decoding
// the full pixel data. Used for upload validation.
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// CropLabel decodes an uploaded card photo and returns the label band as an
// encoded PNG plus its dimensions.
func CropLabel(data []byte, opts CropOptions) ([]byte, int, int, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	ratio := opts.Ratio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.22
	}
	cropHeight := int(float64(bounds.Dy()) * ratio)
	if cropHeight < 1 {
		cropHeight = 1
	}

	cropRect := image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Min.Y+cropHeight)
	label := image.NewRGBA(image.Rect(0, 0, cropRect.Dx(), cropRect.Dy()))
	draw.Copy(label, image.Point{}, src, cropRect, draw.Src, nil)

	out := image.Image(label)
	if opts.TargetWidth > 0 && opts.TargetWidth != label.Bounds().Dx() {
		scale := float64(opts.TargetWidth) / float64(label.Bounds().Dx())
		height := int(float64(label.Bounds().Dy()) * scale)
		if height < 1 {
			height = 1
		}
		scaled := image.NewRGBA(image.Rect(0, 0, opts.TargetWidth, height))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), label, label.Bounds(), draw.Src, nil)
		out = scaled
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, 0, 0, fmt.Errorf("encode label: %w", err)
	}
	b := out.Bounds()
	return buf.Bytes(), b.Dx(), b.Dy(), nil
}
