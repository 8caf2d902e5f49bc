package pipeline

import (
	"context"
	"errors"
	"fmt"

	"cardvault/internal/database"
	"cardvault/internal/imaging"
	"cardvault/internal/models"
	"cardvault/internal/storage"
)

// UploadFile is one incoming image.
type UploadFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// UploadError reports one file that failed validation or persistence.
type UploadError struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// DuplicateFile reports one file whose content is already in the store.
type DuplicateFile struct {
	Filename   string `json:"filename"`
	ExistingID string `json:"existing_id"`
	Message    string `json:"message"`
}

// UploadResult aggregates one upload batch.
type UploadResult struct {
	ScanIDs        []string        `json:"scan_ids"`
	Successful     int             `json:"successful"`
	Failed         int             `json:"failed"`
	DuplicateCount int             `json:"duplicate_count"`
	Errors         []UploadError   `json:"errors"`
	Duplicates     []DuplicateFile `json:"duplicates"`
}

// Upload validates, deduplicates, and persists a batch of card photos.
// Duplicates are detected by content hash before a record is created;
// re-uploading the same bytes reports the existing scan instead of making
// a second one. Files run sequentially so that a duplicate within the same
// batch is caught against the records just created.
func (s *Service) Upload(ctx context.Context, files []UploadFile) (*UploadResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files", ErrEmptyBatch)
	}

	result := &UploadResult{
		ScanIDs:    []string{},
		Errors:     []UploadError{},
		Duplicates: []DuplicateFile{},
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if len(file.Data) == 0 {
			result.Failed++
			result.Errors = append(result.Errors, UploadError{Filename: file.Filename, Error: "empty file"})
			continue
		}
		if _, _, err := imaging.Dimensions(file.Data); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, UploadError{Filename: file.Filename, Error: fmt.Sprintf("unsupported image: %v", err)})
			continue
		}

		hash := imaging.HashBytes(file.Data)
		existing, err := s.scans.GetByHash(ctx, hash)
		if err == nil {
			result.DuplicateCount++
			result.Duplicates = append(result.Duplicates, DuplicateFile{
				Filename:   file.Filename,
				ExistingID: existing.ID,
				Message:    fmt.Sprintf("identical content already uploaded as %s", existing.OriginalFilename),
			})
			continue
		}
		if !errors.Is(err, database.ErrNotFound) {
			result.Failed++
			result.Errors = append(result.Errors, UploadError{Filename: file.Filename, Error: err.Error()})
			continue
		}

		path, err := s.store.Save(storage.KindOriginal, file.Data, storage.FileInfo{
			Filename:    file.Filename,
			ContentType: file.ContentType,
			Size:        int64(len(file.Data)),
		})
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, UploadError{Filename: file.Filename, Error: fmt.Sprintf("store image: %v", err)})
			continue
		}

		scan := models.NewScanRecord(hash, file.Filename, path)
		if err := s.scans.Insert(ctx, scan); err != nil {
			// No record points at the saved file; remove it.
			if delErr := s.store.Delete(path); delErr != nil {
				s.logger.Warn("failed to remove stored file after insert error", "path", path, "error", delErr)
			}
			result.Failed++
			result.Errors = append(result.Errors, UploadError{Filename: file.Filename, Error: fmt.Sprintf("persist scan: %v", err)})
			continue
		}

		result.Successful++
		result.ScanIDs = append(result.ScanIDs, scan.ID)
		s.logger.Info("scan uploaded", "scan_id", scan.ID, "filename", file.Filename, "hash", hash)
	}

	return result, nil
}
