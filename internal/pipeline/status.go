package pipeline

import (
	"context"
	"fmt"

	"cardvault/internal/models"
)

// StatusReport is the batch-wide view over the scan store.
type StatusReport struct {
	Total          int     `json:"total"`
	Uploaded       int     `json:"uploaded"`
	Extracted      int     `json:"extracted"`
	OCRCompleted   int     `json:"ocr_completed"`
	Matched        int     `json:"matched"`
	Failed         int     `json:"failed"`
	CompletionRate float64 `json:"completion_rate"`
}

// Status aggregates the store at call time; no caching.
func (s *Service) Status(ctx context.Context) (*StatusReport, error) {
	counts, err := s.scans.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	return &StatusReport{
		Total:          counts.Total,
		Uploaded:       counts.Uploaded,
		Extracted:      counts.Extracted,
		OCRCompleted:   counts.OCRCompleted,
		Matched:        counts.Matched,
		Failed:         counts.Failed,
		CompletionRate: counts.CompletionRate(),
	}, nil
}

// ListScans returns every scan, newest first.
func (s *Service) ListScans(ctx context.Context) ([]*models.ScanRecord, error) {
	return s.scans.List(ctx)
}

// GetScan returns one scan by id.
func (s *Service) GetScan(ctx context.Context, id string) (*models.ScanRecord, error) {
	return s.scans.GetByID(ctx, id)
}

// DeleteScans removes scans and their stored image files. File removal is
// best effort; the database rows are authoritative.
func (s *Service) DeleteScans(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no scan ids", ErrEmptyBatch)
	}

	var paths []string
	for _, id := range ids {
		scan, err := s.scans.GetByID(ctx, id)
		if err != nil {
			continue
		}
		if scan.ImagePath != "" {
			paths = append(paths, scan.ImagePath)
		}
		if scan.LabelPath != "" {
			paths = append(paths, scan.LabelPath)
		}
	}

	deleted, err := s.scans.Delete(ctx, ids)
	if err != nil {
		return 0, err
	}
	for _, path := range paths {
		if err := s.store.Delete(path); err != nil {
			s.logger.Warn("failed to remove scan file", "path", path, "error", err)
		}
	}

	s.logger.Info("scans deleted", "requested", len(ids), "deleted", deleted)
	return deleted, nil
}
