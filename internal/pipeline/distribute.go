package pipeline

import (
	"context"
	"fmt"

	"cardvault/internal/labeltext"
	"cardvault/internal/models"
	"cardvault/internal/ocr"
)

// OCRRun is the raw OCR output for one composite.
type OCRRun struct {
	StitchedHash     string      `json:"stitched_hash"`
	Text             string      `json:"text"`
	Confidence       float64     `json:"confidence"`
	ProcessingTimeMS int64       `json:"processing_time_ms"`
	Blocks           []ocr.Block `json:"blocks"`
}

// Distribution is one member scan's share of a composite's OCR text.
type Distribution struct {
	ScanID      string                  `json:"scan_id"`
	ContentHash string                  `json:"content_hash"`
	Text        string                  `json:"text"`
	Fields      *models.ExtractedFields `json:"fields,omitempty"`
	Error       string                  `json:"error,omitempty"`
}

// DistributeResult aggregates one distribution pass.
type DistributeResult struct {
	SuccessfulDistributions int            `json:"successful_distributions"`
	TotalProcessed          int            `json:"total_processed"`
	StitchedHash            string         `json:"stitched_hash"`
	Distributions           []Distribution `json:"distributions"`
}

// RunOCR sends a batch's composite to the OCR service and returns the raw
// result without touching any scan. A service failure is the caller's
// error; member scans keep their extracted status.
func (s *Service) RunOCR(ctx context.Context, imageHashes []string, stitchedPath string) (*OCRRun, error) {
	img, data, err := s.resolveComposite(ctx, imageHashes, stitchedPath)
	if err != nil {
		return nil, err
	}

	result, err := s.ocr.ProcessImage(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("ocr composite %s: %w", img.ContentHash, err)
	}

	s.logger.Info("ocr completed", "hash", img.ContentHash,
		"confidence", result.Confidence, "blocks", len(result.Blocks))
	return &OCRRun{
		StitchedHash:     img.ContentHash,
		Text:             result.Text,
		Confidence:       result.Confidence,
		ProcessingTimeMS: result.ProcessingTimeMS,
		Blocks:           result.Blocks,
	}, nil
}

// Distribute splits a composite's OCR text back across its member scans
// in stitch order, parses structured fields from each share, and commits
// ocr_completed per scan. When no OCR result is supplied the composite is
// sent through the OCR service first. Garbled shares produce partial
// fields, never a scan-level failure; only a store error fails a member.
func (s *Service) Distribute(ctx context.Context, imageHashes []string, given *ocr.Result) (*DistributeResult, error) {
	img, data, err := s.resolveComposite(ctx, imageHashes, "")
	if err != nil {
		return nil, err
	}

	ocrResult := given
	if ocrResult == nil {
		ocrResult, err = s.ocr.ProcessImage(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("ocr composite %s: %w", img.ContentHash, err)
		}
	}

	members, err := s.scans.ListByHashes(ctx, img.MemberHashes)
	if err != nil {
		return nil, err
	}
	segments := labeltext.Distribute(ocrResult, img.Height, len(members))

	result := &DistributeResult{
		TotalProcessed: len(members),
		StitchedHash:   img.ContentHash,
		Distributions:  make([]Distribution, 0, len(members)),
	}
	for i, scan := range members {
		dist := Distribution{ScanID: scan.ID, ContentHash: scan.ContentHash, Text: segments[i]}

		unlock := s.locks.lock(scan.ID)
		fields := labeltext.ParseLabel(segments[i])
		err := s.scans.SetOCR(ctx, scan.ID, segments[i], ocrResult.Confidence, fields, img.ContentHash)
		unlock()

		if err != nil {
			dist.Error = err.Error()
		} else {
			dist.Fields = fields
			result.SuccessfulDistributions++
		}
		result.Distributions = append(result.Distributions, dist)
	}

	s.logger.Info("text distributed", "hash", img.ContentHash,
		"successful", result.SuccessfulDistributions, "total", result.TotalProcessed)
	return result, nil
}
