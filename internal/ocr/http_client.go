package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient talks to an annotate-style OCR endpoint: the image travels as
// base64 in a JSON body, the response carries a full-text annotation plus
// per-block geometry.
type HTTPClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPClient(endpoint, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type annotateRequest struct {
	Requests []imageRequest `json:"requests"`
}

type imageRequest struct {
	Image    imageContent  `json:"image"`
	Features []featureType `json:"features"`
}

type imageContent struct {
	Content string `json:"content"`
}

type featureType struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults,omitempty"`
}

type annotateResponse struct {
	Responses []textResponse `json:"responses"`
	Error     *apiError      `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type textResponse struct {
	TextAnnotations []textAnnotation `json:"textAnnotations"`
	Error           *apiError        `json:"error"`
}

type textAnnotation struct {
	Description  string       `json:"description"`
	Confidence   float64      `json:"confidence"`
	BoundingPoly boundingPoly `json:"boundingPoly"`
}

type boundingPoly struct {
	Vertices []vertex `json:"vertices"`
}

type vertex struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c *HTTPClient) ProcessImage(ctx context.Context, imageData []byte) (*Result, error) {
	start := time.Now()

	reqBody := annotateRequest{
		Requests: []imageRequest{
			{
				Image: imageContent{
					Content: base64.StdEncoding.EncodeToString(imageData),
				},
				Features: []featureType{
					{Type: "TEXT_DETECTION", MaxResults: 100},
				},
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.endpoint
	if c.apiKey != "" {
		url = fmt.Sprintf("%s?key=%s", c.endpoint, c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ocr service returned status %d", resp.StatusCode)
	}

	var annotateResp annotateResponse
	if err := json.Unmarshal(body, &annotateResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if annotateResp.Error != nil {
		return nil, fmt.Errorf("ocr service error: %s", annotateResp.Error.Message)
	}
	if len(annotateResp.Responses) == 0 {
		return nil, fmt.Errorf("no response from ocr service")
	}

	response := annotateResp.Responses[0]
	if response.Error != nil {
		return nil, fmt.Errorf("ocr service error: %s", response.Error.Message)
	}

	result := &Result{
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}

	// The first annotation aggregates the full text; the rest are blocks.
	for i, annotation := range response.TextAnnotations {
		if i == 0 {
			result.Text = annotation.Description
			result.Confidence = annotation.Confidence * 100
			continue
		}
		result.Blocks = append(result.Blocks, Block{
			Text:        annotation.Description,
			Confidence:  annotation.Confidence * 100,
			BoundingBox: toBoundingBox(annotation.BoundingPoly),
		})
	}

	if result.Confidence == 0 && len(result.Blocks) > 0 {
		var sum float64
		for _, b := range result.Blocks {
			sum += b.Confidence
		}
		result.Confidence = sum / float64(len(result.Blocks))
	}

	return result, nil
}

func toBoundingBox(poly boundingPoly) BoundingBox {
	if len(poly.Vertices) == 0 {
		return BoundingBox{}
	}
	minX, minY := poly.Vertices[0].X, poly.Vertices[0].Y
	maxX, maxY := minX, minY
	for _, v := range poly.Vertices {
		if v.X < minX {
			minX = v.X
		}
		if v.X > maxX {
			maxX = v.X
		}
		if v.Y < minY {
			minY = v.Y
		}
		if v.Y > maxY {
			maxY = v.Y
		}
	}
	return BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
