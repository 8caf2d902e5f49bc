package models

import (
	"time"

	"github.com/google/uuid"
)

// ScanRecord is one uploaded card image and its derived processing state.
type ScanRecord struct {
	ID               string           `json:"id"`
	ContentHash      string           `json:"content_hash"`
	OriginalFilename string           `json:"original_filename"`
	ImagePath        string           `json:"image_path"`
	LabelPath        string           `json:"label_path,omitempty"`
	Status           ProcessingStatus `json:"status"`
	MatchingStatus   MatchingStatus   `json:"matching_status"`
	OCRText          string           `json:"ocr_text,omitempty"`
	OCRConfidence    *float64         `json:"ocr_confidence,omitempty"`
	Fields           *ExtractedFields `json:"fields,omitempty"`
	CardMatches      []CardMatch      `json:"card_matches,omitempty"`
	BestMatch        *CardMatch       `json:"best_match,omitempty"`
	UserSelectedID   string           `json:"user_selected_id,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// NewScanRecord creates a record for a freshly uploaded image.
func NewScanRecord(contentHash, originalFilename, imagePath string) *ScanRecord {
	now := time.Now().UTC()
	return &ScanRecord{
		ID:               uuid.New().String(),
		ContentHash:      contentHash,
		OriginalFilename: originalFilename,
		ImagePath:        imagePath,
		Status:           StatusUploaded,
		MatchingStatus:   MatchingPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// ExtractedFields holds the structured data parsed from a scan's share of
// the OCR text. Candidate lists carry OCR ambiguity: each alternative is
// tried by the matcher and the best score wins.
type ExtractedFields struct {
	CertNumber       string   `json:"cert_number,omitempty"`
	Grade            string   `json:"grade,omitempty"`
	Year             int      `json:"year,omitempty"`
	CardName         string   `json:"card_name,omitempty"`
	SetName          string   `json:"set_name,omitempty"`
	Language         string   `json:"language,omitempty"`
	CandidateNumbers []string `json:"candidate_numbers,omitempty"`
	CandidateNames   []string `json:"candidate_names,omitempty"`
	Modifiers        []string `json:"modifiers,omitempty"`
	Confidence       float64  `json:"confidence"`
}

// Empty reports whether extraction produced no usable fields at all.
func (f *ExtractedFields) Empty() bool {
	if f == nil {
		return true
	}
	return f.CertNumber == "" && f.Grade == "" && f.Year == 0 &&
		f.CardName == "" && f.SetName == "" &&
		len(f.CandidateNumbers) == 0 && len(f.CandidateNames) == 0 &&
		len(f.Modifiers) == 0
}
