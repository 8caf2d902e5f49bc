package pipeline

import (
	"context"
	"fmt"

	"cardvault/internal/imaging"
	"cardvault/internal/models"
	"cardvault/internal/storage"
)

// StitchOutcome describes the composite produced (or found) for a batch.
type StitchOutcome struct {
	StitchedPath  string `json:"stitched_path"`
	StitchedURL   string `json:"stitched_url"`
	ContentHash   string `json:"content_hash"`
	TotalLabels   int    `json:"total_labels"`
	ImageWidth    int    `json:"image_width"`
	ImageHeight   int    `json:"image_height"`
	IsDuplicate   bool   `json:"is_duplicate"`
	DuplicatePath string `json:"duplicate_path,omitempty"`
}

// DeleteStitchedResult reports a composite deletion.
type DeleteStitchedResult struct {
	Deleted    bool  `json:"deleted"`
	ScansReset int64 `json:"scans_reset"`
}

// Stitch concatenates the label crops of the given scans, in the given
// order, into one composite for batched OCR. The order is a protocol
// invariant: text distribution later hands each member its share of the
// OCR text by the same position. Validation is batch-fatal since a
// composite has no meaningful partial result. An identical composite (by
// content hash) is reused instead of stored again.
func (s *Service) Stitch(ctx context.Context, imageHashes []string) (*StitchOutcome, error) {
	if len(imageHashes) == 0 {
		return nil, fmt.Errorf("%w: no image hashes", ErrEmptyBatch)
	}

	scans, err := s.scans.ListByHashes(ctx, imageHashes)
	if err != nil {
		return nil, err
	}
	labels := make([][]byte, 0, len(scans))
	for _, scan := range scans {
		if scan.Status != models.StatusExtracted {
			return nil, fmt.Errorf("%w: scan %s is %s", ErrNotStitchable, scan.ID, scan.Status)
		}
		data, err := s.store.ReadFile(scan.LabelPath)
		if err != nil {
			return nil, fmt.Errorf("read label for scan %s: %w", scan.ID, err)
		}
		labels = append(labels, data)
	}

	composite, err := imaging.StitchVertical(labels)
	if err != nil {
		return nil, err
	}
	contentHash := imaging.HashBytes(composite.PNG)

	existing, err := s.stitched.FindByHash(ctx, contentHash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Info("composite already exists", "hash", contentHash, "path", existing.Path)
		return &StitchOutcome{
			StitchedPath:  existing.Path,
			StitchedURL:   stitchedURL(contentHash),
			ContentHash:   contentHash,
			TotalLabels:   len(existing.MemberHashes),
			ImageWidth:    existing.Width,
			ImageHeight:   existing.Height,
			IsDuplicate:   true,
			DuplicatePath: existing.Path,
		}, nil
	}

	path, err := s.store.Save(storage.KindStitched, composite.PNG, storage.FileInfo{
		ContentType: "image/png",
		Size:        int64(len(composite.PNG)),
	})
	if err != nil {
		return nil, fmt.Errorf("store composite: %w", err)
	}

	img := models.NewStitchedImage(path, contentHash, imageHashes, composite.Width, composite.Height)
	if err := s.stitched.Insert(ctx, img); err != nil {
		return nil, err
	}

	s.logger.Info("composite stitched", "hash", contentHash, "members", len(imageHashes),
		"width", composite.Width, "height", composite.Height)
	return &StitchOutcome{
		StitchedPath: path,
		StitchedURL:  stitchedURL(contentHash),
		ContentHash:  contentHash,
		TotalLabels:  len(imageHashes),
		ImageWidth:   composite.Width,
		ImageHeight:  composite.Height,
	}, nil
}

// DeleteStitched removes a composite and forces every member scan back to
// extracted, clearing all data derived from the composite. Idempotent: a
// second call over the same hash finds nothing and reports Deleted=false.
func (s *Service) DeleteStitched(ctx context.Context, contentHash string) (*DeleteStitchedResult, error) {
	img, err := s.stitched.Delete(ctx, contentHash)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return &DeleteStitchedResult{}, nil
	}

	reset, err := s.scans.ResetToExtracted(ctx, contentHash)
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(img.Path); err != nil {
		s.logger.Warn("failed to remove composite file", "path", img.Path, "error", err)
	}

	s.logger.Info("composite deleted", "hash", contentHash, "scans_reset", reset)
	return &DeleteStitchedResult{Deleted: true, ScansReset: reset}, nil
}

// GetStitched returns a composite record and its image bytes.
func (s *Service) GetStitched(ctx context.Context, contentHash string) (*models.StitchedImage, []byte, error) {
	img, err := s.stitched.GetByHash(ctx, contentHash)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.store.ReadFile(img.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("read composite: %w", err)
	}
	return img, data, nil
}

// resolveComposite finds the stitched record and image bytes for a batch,
// either from an explicit stored path or by rebuilding the composite from
// the members' label crops and looking its hash up. Stitching is
// deterministic, so identical members in identical order rebuild to the
// same hash.
func (s *Service) resolveComposite(ctx context.Context, imageHashes []string, stitchedPath string) (*models.StitchedImage, []byte, error) {
	if stitchedPath != "" {
		data, err := s.store.ReadFile(stitchedPath)
		if err != nil {
			return nil, nil, fmt.Errorf("read composite: %w", err)
		}
		img, err := s.stitched.FindByHash(ctx, imaging.HashBytes(data))
		if err != nil {
			return nil, nil, err
		}
		if img == nil {
			return nil, nil, fmt.Errorf("%w: path %s is not a known composite", ErrNoComposite, stitchedPath)
		}
		return img, data, nil
	}

	if len(imageHashes) == 0 {
		return nil, nil, fmt.Errorf("%w: no image hashes", ErrEmptyBatch)
	}
	scans, err := s.scans.ListByHashes(ctx, imageHashes)
	if err != nil {
		return nil, nil, err
	}
	labels := make([][]byte, 0, len(scans))
	for _, scan := range scans {
		if scan.LabelPath == "" {
			return nil, nil, fmt.Errorf("%w: scan %s has no label", ErrNoComposite, scan.ID)
		}
		data, err := s.store.ReadFile(scan.LabelPath)
		if err != nil {
			return nil, nil, fmt.Errorf("read label for scan %s: %w", scan.ID, err)
		}
		labels = append(labels, data)
	}
	composite, err := imaging.StitchVertical(labels)
	if err != nil {
		return nil, nil, err
	}
	img, err := s.stitched.FindByHash(ctx, imaging.HashBytes(composite.PNG))
	if err != nil {
		return nil, nil, err
	}
	if img == nil {
		return nil, nil, fmt.Errorf("%w: stitch the batch first", ErrNoComposite)
	}
	data, err := s.store.ReadFile(img.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("read composite: %w", err)
	}
	return img, data, nil
}

func stitchedURL(contentHash string) string {
	return "/api/stitched/" + contentHash
}
