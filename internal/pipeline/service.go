// Package pipeline orchestrates the ICR stages: upload with duplicate
// detection, label extraction, stitching, OCR, text distribution, and
// matching. Each stage commits per scan so one bad record never corrupts
// the rest of a batch.
package pipeline

import (
	"errors"
	"log/slog"

	"cardvault/internal/database"
	"cardvault/internal/match"
	"cardvault/internal/ocr"
	"cardvault/internal/storage"
)

var (
	// ErrEmptyBatch is returned when a stage is invoked with no inputs.
	ErrEmptyBatch = errors.New("empty batch")
	// ErrNotStitchable is returned when a stitch request includes a scan
	// that is not in extracted status. Stitching has no partial result, so
	// this fails the whole request.
	ErrNotStitchable = errors.New("scan not ready for stitching")
	// ErrNoComposite is returned when an OCR or distribute request refers
	// to a batch that was never stitched.
	ErrNoComposite = errors.New("no stitched composite for batch")
	// ErrUnknownCard is returned when a manual selection names a card id
	// that is neither among the scan's candidates nor in the reference
	// database.
	ErrUnknownCard = errors.New("unknown card id")
)

// Config tunes batch processing.
type Config struct {
	// MaxConcurrency bounds parallel fan-out to the crop and match stages.
	MaxConcurrency int
	// LabelCropRatio is the fraction of image height taken as the label band.
	LabelCropRatio float64
	// LabelWidth normalizes all label crops so composites line up.
	LabelWidth int
}

// Service runs the pipeline over the scan store.
type Service struct {
	scans    *database.ScanRepository
	stitched *database.StitchedImageRepository
	store    storage.Storage
	ocr      ocr.Client
	matcher  *match.Matcher
	cfg      Config
	logger   *slog.Logger
	locks    *lockTable
}

func NewService(
	scans *database.ScanRepository,
	stitched *database.StitchedImageRepository,
	store storage.Storage,
	ocrClient ocr.Client,
	matcher *match.Matcher,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		scans:    scans,
		stitched: stitched,
		store:    store,
		ocr:      ocrClient,
		matcher:  matcher,
		cfg:      cfg,
		logger:   logger,
		locks:    newLockTable(),
	}
}
