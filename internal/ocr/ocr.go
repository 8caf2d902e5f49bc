// Package ocr is the boundary to the external OCR service. The pipeline
// never interprets images here: it sends a stitched composite and gets back
// raw text, an overall confidence, and block-level bounding boxes.
package ocr

import "context"

// Block is one recognized text region.
type Block struct {
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"bounding_box"`
}

// BoundingBox locates a block on the composite, in pixels.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Result is the raw OCR output for one image.
type Result struct {
	Text             string  `json:"text"`
	Confidence       float64 `json:"confidence"` // 0-100
	ProcessingTimeMS int64   `json:"processing_time_ms"`
	Blocks           []Block `json:"blocks"`
}

// Client sends an image to the OCR service.
type Client interface {
	ProcessImage(ctx context.Context, imageData []byte) (*Result, error)
}
