package models

import (
	"time"

	"github.com/google/uuid"
)

// StitchedImage groups extracted labels into one composite for batched OCR.
//
// MemberHashes is an ordered list: labels are concatenated top to bottom in
// exactly this order, and text distribution relies on the same order to hand
// each scan its share of the OCR text. Treat the order as a protocol
// invariant, not an implementation detail.
type StitchedImage struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	ContentHash  string    `json:"content_hash"`
	MemberHashes []string  `json:"member_hashes"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	IsDuplicate  bool      `json:"is_duplicate,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewStitchedImage creates a record for a freshly stitched composite.
func NewStitchedImage(path, contentHash string, memberHashes []string, width, height int) *StitchedImage {
	members := make([]string, len(memberHashes))
	copy(members, memberHashes)
	return &StitchedImage{
		ID:           uuid.New().String(),
		Path:         path,
		ContentHash:  contentHash,
		MemberHashes: members,
		Width:        width,
		Height:       height,
		CreatedAt:    time.Now().UTC(),
	}
}
