package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"cardvault/internal/models"
)

// MatchEntry reports the matcher outcome for one scan.
type MatchEntry struct {
	ScanID         string                `json:"scan_id"`
	ContentHash    string                `json:"content_hash"`
	CardMatches    []models.CardMatch    `json:"card_matches"`
	BestMatch      *models.CardMatch     `json:"best_match,omitempty"`
	MatchingStatus models.MatchingStatus `json:"matching_status,omitempty"`
	Error          string                `json:"error,omitempty"`
}

// MatchBatchResult aggregates one matching pass.
type MatchBatchResult struct {
	SuccessfulMatches int          `json:"successful_matches"`
	TotalProcessed    int          `json:"total_processed"`
	Matches           []MatchEntry `json:"matches"`
}

// SelectionResult confirms a manual match selection.
type SelectionResult struct {
	ImageHash      string                `json:"image_hash"`
	SelectedCardID string                `json:"selected_card_id"`
	MatchingStatus models.MatchingStatus `json:"matching_status"`
}

// Match runs the hierarchical matcher over the given scans with bounded
// parallelism, committing the outcome per scan. A no_match outcome counts
// as processed, not successful; lookup failures are reported per scan and
// leave that scan at its last committed status. A scan whose matching
// status was manually overridden keeps that override.
func (s *Service) Match(ctx context.Context, imageHashes []string) (*MatchBatchResult, error) {
	if len(imageHashes) == 0 {
		return nil, fmt.Errorf("%w: no image hashes", ErrEmptyBatch)
	}

	scans, err := s.scans.ListByHashes(ctx, imageHashes)
	if err != nil {
		return nil, err
	}

	entries := make([]MatchEntry, len(scans))
	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrency)
	for i, scan := range scans {
		i, scan := i, scan
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				entries[i] = MatchEntry{ScanID: scan.ID, ContentHash: scan.ContentHash, Error: err.Error()}
				return nil
			}
			entries[i] = s.matchOne(ctx, scan)
			return nil
		})
	}
	g.Wait()

	result := &MatchBatchResult{TotalProcessed: len(entries), Matches: entries}
	for _, entry := range entries {
		if entry.Error == "" && entry.BestMatch != nil {
			result.SuccessfulMatches++
		}
	}
	return result, nil
}

func (s *Service) matchOne(ctx context.Context, stale *models.ScanRecord) MatchEntry {
	unlock := s.locks.lock(stale.ID)
	defer unlock()

	entry := MatchEntry{ScanID: stale.ID, ContentHash: stale.ContentHash}

	// Re-read under the lock: an overlapping operation may have moved the
	// scan since the batch was listed.
	scan, err := s.scans.GetByID(ctx, stale.ID)
	if err != nil {
		entry.Error = err.Error()
		return entry
	}
	if !models.CanTransition(scan.Status, models.StatusMatched) {
		entry.Error = fmt.Sprintf("scan is %s, not ready for matching", scan.Status)
		return entry
	}

	outcome, err := s.matcher.Match(ctx, scan.Fields)
	if err != nil {
		entry.Error = fmt.Sprintf("match lookup: %v", err)
		return entry
	}

	if err := s.scans.SetMatches(ctx, scan.ID, outcome.Candidates, outcome.Best, outcome.MatchingStatus); err != nil {
		entry.Error = err.Error()
		return entry
	}

	entry.CardMatches = outcome.Candidates
	entry.BestMatch = outcome.Best
	entry.MatchingStatus = outcome.MatchingStatus
	if !scan.MatchingStatus.Overridable() {
		// The stored matching status was protected; report what stands.
		entry.MatchingStatus = scan.MatchingStatus
	}

	s.logger.Info("scan matched", "scan_id", scan.ID,
		"matching_status", entry.MatchingStatus, "candidates", len(outcome.Candidates))
	return entry
}

// SelectCardMatch records an explicit user choice for one scan. The card
// id must be one of the scan's candidates or exist in the reference
// database; anything else is rejected. The matching status becomes
// manual_override unconditionally and later automatic passes never
// replace it.
func (s *Service) SelectCardMatch(ctx context.Context, imageHash, cardID string) (*SelectionResult, error) {
	if imageHash == "" || cardID == "" {
		return nil, fmt.Errorf("image hash and card id are required")
	}

	scan, err := s.scans.GetByHash(ctx, imageHash)
	if err != nil {
		return nil, err
	}

	if !scanHasCandidate(scan, cardID) {
		known, err := s.matcher.VerifyCard(ctx, cardID)
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCard, cardID)
		}
	}

	unlock := s.locks.lock(scan.ID)
	defer unlock()

	if err := s.scans.SelectMatch(ctx, scan.ID, cardID); err != nil {
		return nil, err
	}

	s.logger.Info("manual match selected", "scan_id", scan.ID, "card_id", cardID)
	return &SelectionResult{
		ImageHash:      imageHash,
		SelectedCardID: cardID,
		MatchingStatus: models.MatchingManualOverride,
	}, nil
}

func scanHasCandidate(scan *models.ScanRecord, cardID string) bool {
	for _, match := range scan.CardMatches {
		if match.CardID == cardID {
			return true
		}
	}
	return false
}

// Confirm moves a resolved scan to confirmed or psa_created. Only scans
// with a standing match (automatic or manual) can be confirmed.
func (s *Service) Confirm(ctx context.Context, imageHash string, status models.MatchingStatus) (*SelectionResult, error) {
	if status != models.MatchingConfirmed && status != models.MatchingPSACreated {
		return nil, fmt.Errorf("cannot set matching status %q", status)
	}

	scan, err := s.scans.GetByHash(ctx, imageHash)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(scan.ID)
	defer unlock()

	switch scan.MatchingStatus {
	case models.MatchingPending, models.MatchingNoMatch:
		return nil, fmt.Errorf("scan %s has no match to confirm", scan.ID)
	}

	if err := s.scans.SetMatchingStatus(ctx, scan.ID, status); err != nil {
		return nil, err
	}

	s.logger.Info("match confirmed", "scan_id", scan.ID, "status", status)
	return &SelectionResult{
		ImageHash:      imageHash,
		SelectedCardID: scan.UserSelectedID,
		MatchingStatus: status,
	}, nil
}
