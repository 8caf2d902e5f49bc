package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"cardvault/internal/imaging"
	"cardvault/internal/models"
	"cardvault/internal/storage"
)

// ExtractItem reports one successful label crop.
type ExtractItem struct {
	ScanID    string `json:"scan_id"`
	Filename  string `json:"filename"`
	LabelPath string `json:"label_path"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// ExtractError reports one scan whose crop failed. The scan stays
// uploaded and retryable.
type ExtractError struct {
	ScanID string `json:"scan_id"`
	Error  string `json:"error"`
}

// SkippedScan reports one scan left untouched, with the reason.
type SkippedScan struct {
	ScanID string `json:"scan_id"`
	Reason string `json:"reason"`
}

// ExtractResult aggregates one extraction batch.
type ExtractResult struct {
	Successful   int            `json:"successful"`
	Failed       int            `json:"failed"`
	SkippedCount int            `json:"skipped_count"`
	Results      []ExtractItem  `json:"results"`
	Errors       []ExtractError `json:"errors"`
	Skipped      []SkippedScan  `json:"skipped"`
}

// Extract crops the PSA label band from each uploaded scan, with bounded
// parallelism. Scans not in uploaded status are skipped, not errored; a
// failed crop leaves its scan uploaded and is reported individually.
func (s *Service) Extract(ctx context.Context, scanIDs []string) (*ExtractResult, error) {
	if len(scanIDs) == 0 {
		return nil, fmt.Errorf("%w: no scan ids", ErrEmptyBatch)
	}

	type slot struct {
		item    *ExtractItem
		err     *ExtractError
		skipped *SkippedScan
	}
	slots := make([]slot, len(scanIDs))

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrency)
	for i, id := range scanIDs {
		i, id := i, id
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				slots[i].err = &ExtractError{ScanID: id, Error: err.Error()}
				return nil
			}
			item, extractErr, skip := s.extractOne(ctx, id)
			slots[i] = slot{item: item, err: extractErr, skipped: skip}
			return nil
		})
	}
	g.Wait()

	result := &ExtractResult{
		Results: []ExtractItem{},
		Errors:  []ExtractError{},
		Skipped: []SkippedScan{},
	}
	for _, sl := range slots {
		switch {
		case sl.item != nil:
			result.Successful++
			result.Results = append(result.Results, *sl.item)
		case sl.skipped != nil:
			result.SkippedCount++
			result.Skipped = append(result.Skipped, *sl.skipped)
		case sl.err != nil:
			result.Failed++
			result.Errors = append(result.Errors, *sl.err)
		}
	}
	return result, nil
}

func (s *Service) extractOne(ctx context.Context, id string) (*ExtractItem, *ExtractError, *SkippedScan) {
	unlock := s.locks.lock(id)
	defer unlock()

	scan, err := s.scans.GetByID(ctx, id)
	if err != nil {
		return nil, &ExtractError{ScanID: id, Error: err.Error()}, nil
	}
	if scan.Status != models.StatusUploaded {
		return nil, nil, &SkippedScan{ScanID: id, Reason: fmt.Sprintf("already %s", scan.Status)}
	}

	data, err := s.store.ReadFile(scan.ImagePath)
	if err != nil {
		return nil, &ExtractError{ScanID: id, Error: fmt.Sprintf("read image: %v", err)}, nil
	}

	label, width, height, err := imaging.CropLabel(data, imaging.CropOptions{
		Ratio:       s.cfg.LabelCropRatio,
		TargetWidth: s.cfg.LabelWidth,
	})
	if err != nil {
		return nil, &ExtractError{ScanID: id, Error: fmt.Sprintf("crop label: %v", err)}, nil
	}

	labelPath, err := s.store.Save(storage.KindLabel, label, storage.FileInfo{
		Filename:    scan.OriginalFilename,
		ContentType: "image/png",
		Size:        int64(len(label)),
	})
	if err != nil {
		return nil, &ExtractError{ScanID: id, Error: fmt.Sprintf("store label: %v", err)}, nil
	}

	if err := s.scans.SetLabel(ctx, id, labelPath); err != nil {
		return nil, &ExtractError{ScanID: id, Error: err.Error()}, nil
	}

	s.logger.Info("label extracted", "scan_id", id, "label_path", labelPath)
	return &ExtractItem{
		ScanID:    id,
		Filename:  scan.OriginalFilename,
		LabelPath: labelPath,
		Width:     width,
		Height:    height,
	}, nil, nil
}
