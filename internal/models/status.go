package models

import "strings"

// ProcessingStatus represents the pipeline lifecycle of a scan.
type ProcessingStatus string

const (
	StatusUploaded     ProcessingStatus = "uploaded"
	StatusExtracted    ProcessingStatus = "extracted"
	StatusOCRCompleted ProcessingStatus = "ocr_completed"
	StatusMatched      ProcessingStatus = "matched"
	StatusFailed       ProcessingStatus = "failed"
)

var allStatuses = []ProcessingStatus{
	StatusUploaded,
	StatusExtracted,
	StatusOCRCompleted,
	StatusMatched,
	StatusFailed,
}

// statusRank orders statuses along the pipeline. Matched and failed share a
// rank: both are outcomes of the matching stage.
var statusRank = map[ProcessingStatus]int{
	StatusUploaded:     0,
	StatusExtracted:    1,
	StatusOCRCompleted: 2,
	StatusMatched:      3,
	StatusFailed:       3,
}

// AllStatuses returns the ordered list of known processing statuses.
func AllStatuses() []ProcessingStatus {
	cp := make([]ProcessingStatus, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseProcessingStatus converts a string into a known ProcessingStatus.
func ParseProcessingStatus(value string) (ProcessingStatus, bool) {
	normalized := ProcessingStatus(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusRank[normalized]
	return normalized, ok
}

// CanTransition reports whether a scan may move from one processing status
// to another. Statuses only ever move forward along
// uploaded -> extracted -> ocr_completed -> matched|failed; the one backward
// edge is the reset to extracted when an owning stitched image is deleted.
// Matched and failed may swap into each other: a failed match does not
// prevent a retry, and a retry may change the outcome.
func CanTransition(from, to ProcessingStatus) bool {
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	if to == StatusExtracted && fromRank >= statusRank[StatusExtracted] {
		// Reset edge: any status at or past extracted may be forced back.
		return true
	}
	if fromRank == statusRank[StatusMatched] && toRank == fromRank {
		// Re-running the match stage.
		return true
	}
	return toRank == fromRank+1
}

// MatchingStatus tracks match resolution independently of ProcessingStatus.
type MatchingStatus string

const (
	MatchingPending        MatchingStatus = "pending"
	MatchingAutoMatched    MatchingStatus = "auto_matched"
	MatchingManualOverride MatchingStatus = "manual_override"
	MatchingNoMatch        MatchingStatus = "no_match"
	MatchingConfirmed      MatchingStatus = "confirmed"
	MatchingPSACreated     MatchingStatus = "psa_created"
)

var matchingStatusSet = map[MatchingStatus]struct{}{
	MatchingPending:        {},
	MatchingAutoMatched:    {},
	MatchingManualOverride: {},
	MatchingNoMatch:        {},
	MatchingConfirmed:      {},
	MatchingPSACreated:     {},
}

// ParseMatchingStatus converts a string into a known MatchingStatus.
func ParseMatchingStatus(value string) (MatchingStatus, bool) {
	normalized := MatchingStatus(strings.ToLower(strings.TrimSpace(value)))
	_, ok := matchingStatusSet[normalized]
	return normalized, ok
}

// Overridable reports whether an automatic match pass may replace the
// current matching status. A manual override is only ever replaced by
// another explicit user action, never by a later automatic pass.
func (m MatchingStatus) Overridable() bool {
	switch m {
	case MatchingManualOverride, MatchingConfirmed, MatchingPSACreated:
		return false
	default:
		return true
	}
}
