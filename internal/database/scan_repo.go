package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cardvault/internal/models"
)

var (
	// ErrNotFound is returned when a scan lookup matches nothing.
	ErrNotFound = errors.New("scan not found")
	// ErrInvalidTransition is returned when a status update would move a
	// scan backward or skip a stage.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// StatusCounts aggregates the store per processing status.
type StatusCounts struct {
	Total        int
	Uploaded     int
	Extracted    int
	OCRCompleted int
	Matched      int
	Failed       int
}

// CompletionRate is matched over total, 0 for an empty store.
func (c StatusCounts) CompletionRate() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Matched) / float64(c.Total)
}

type ScanRepository struct {
	db *DB
}

func NewScanRepository(db *DB) *ScanRepository {
	return &ScanRepository{db: db}
}

const scanColumns = `id, content_hash, original_filename, image_path, label_path,
	status, matching_status, ocr_text, ocr_confidence, fields_json,
	matches_json, best_match_json, user_selected_id, stitched_hash,
	created_at, updated_at`

func (r *ScanRepository) Insert(ctx context.Context, scan *models.ScanRecord) error {
	query := `
		INSERT INTO scans (` + scanColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	fieldsJSON, err := marshalOrEmpty(scan.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}
	matchesJSON, err := marshalOrEmpty(scan.CardMatches)
	if err != nil {
		return fmt.Errorf("failed to marshal matches: %w", err)
	}
	bestJSON, err := marshalOrEmpty(scan.BestMatch)
	if err != nil {
		return fmt.Errorf("failed to marshal best match: %w", err)
	}

	_, err = r.db.conn.ExecContext(ctx, query,
		scan.ID, scan.ContentHash, scan.OriginalFilename, scan.ImagePath,
		scan.LabelPath, string(scan.Status), string(scan.MatchingStatus),
		scan.OCRText, scan.OCRConfidence, fieldsJSON, matchesJSON, bestJSON,
		scan.UserSelectedID, "", scan.CreatedAt, scan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}
	return nil
}

func (r *ScanRepository) GetByID(ctx context.Context, id string) (*models.ScanRecord, error) {
	return r.getWhere(ctx, "id = ?", id)
}

func (r *ScanRepository) GetByHash(ctx context.Context, contentHash string) (*models.ScanRecord, error) {
	return r.getWhere(ctx, "content_hash = ?", contentHash)
}

func (r *ScanRepository) getWhere(ctx context.Context, where string, args ...any) (*models.ScanRecord, error) {
	query := `SELECT ` + scanColumns + ` FROM scans WHERE ` + where
	row := r.db.conn.QueryRowContext(ctx, query, args...)
	scan, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	return scan, nil
}

func (r *ScanRepository) List(ctx context.Context) ([]*models.ScanRecord, error) {
	query := `SELECT ` + scanColumns + ` FROM scans ORDER BY created_at DESC, id`
	rows, err := r.db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()
	return collectScans(rows)
}

// ListByHashes returns the scans for the given content hashes in the exact
// order the hashes were given. Unknown hashes are reported, not skipped,
// because callers treat hash lists as ordered batch specifications.
func (r *ScanRepository) ListByHashes(ctx context.Context, hashes []string) ([]*models.ScanRecord, error) {
	if len(hashes) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(hashes)-1) + "?"
	args := make([]any, len(hashes))
	for i, h := range hashes {
		args[i] = h
	}

	query := `SELECT ` + scanColumns + ` FROM scans WHERE content_hash IN (` + placeholders + `)`
	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans by hash: %w", err)
	}
	defer rows.Close()

	found, err := collectScans(rows)
	if err != nil {
		return nil, err
	}

	byHash := make(map[string]*models.ScanRecord, len(found))
	for _, scan := range found {
		byHash[scan.ContentHash] = scan
	}

	ordered := make([]*models.ScanRecord, 0, len(hashes))
	for _, hash := range hashes {
		scan, ok := byHash[hash]
		if !ok {
			return nil, fmt.Errorf("%w: hash %s", ErrNotFound, hash)
		}
		ordered = append(ordered, scan)
	}
	return ordered, nil
}

// ListByStitchedHash returns the scans attached to a composite.
func (r *ScanRepository) ListByStitchedHash(ctx context.Context, stitchedHash string) ([]*models.ScanRecord, error) {
	query := `SELECT ` + scanColumns + ` FROM scans WHERE stitched_hash = ?`
	rows, err := r.db.conn.QueryContext(ctx, query, stitchedHash)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans by stitched hash: %w", err)
	}
	defer rows.Close()
	return collectScans(rows)
}

// SetLabel records a successful label extraction: the label path plus the
// uploaded -> extracted transition, committed in one statement.
func (r *ScanRepository) SetLabel(ctx context.Context, id, labelPath string) error {
	return r.transition(ctx, id, models.StatusExtracted, `label_path = ?`, labelPath)
}

// SetOCR attaches distributed OCR text and extracted fields to a scan and
// moves it to ocr_completed.
func (r *ScanRepository) SetOCR(ctx context.Context, id, text string, confidence float64, fields *models.ExtractedFields, stitchedHash string) error {
	fieldsJSON, err := marshalOrEmpty(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}
	return r.transition(ctx, id, models.StatusOCRCompleted,
		`ocr_text = ?, ocr_confidence = ?, fields_json = ?, stitched_hash = ?`,
		text, confidence, fieldsJSON, stitchedHash)
}

// SetMatches records a matcher outcome. The processing status becomes
// matched or failed depending on whether a best match exists; the matching
// status is only written when the current value is overridable, so a manual
// override is never clobbered by an automatic pass.
func (r *ScanRepository) SetMatches(ctx context.Context, id string, candidates []models.CardMatch, best *models.CardMatch, matchingStatus models.MatchingStatus) error {
	matchesJSON, err := marshalOrEmpty(candidates)
	if err != nil {
		return fmt.Errorf("failed to marshal matches: %w", err)
	}
	bestJSON, err := marshalOrEmpty(best)
	if err != nil {
		return fmt.Errorf("failed to marshal best match: %w", err)
	}

	target := models.StatusMatched
	if best == nil {
		target = models.StatusFailed
	}

	return r.withScan(ctx, id, func(tx *sql.Tx, scan *models.ScanRecord) error {
		if !models.CanTransition(scan.Status, target) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, scan.Status, target)
		}
		newMatching := string(scan.MatchingStatus)
		if scan.MatchingStatus.Overridable() {
			newMatching = string(matchingStatus)
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE scans SET status = ?, matching_status = ?, matches_json = ?,
				best_match_json = ?, updated_at = ?
			WHERE id = ?`,
			string(target), newMatching, matchesJSON, bestJSON, time.Now().UTC(), id)
		return err
	})
}

// SelectMatch records an explicit user selection: matching status becomes
// manual_override unconditionally.
func (r *ScanRepository) SelectMatch(ctx context.Context, id, cardID string) error {
	res, err := r.db.conn.ExecContext(ctx, `
		UPDATE scans SET matching_status = ?, user_selected_id = ?, updated_at = ?
		WHERE id = ?`,
		string(models.MatchingManualOverride), cardID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to select match: %w", err)
	}
	return requireRows(res)
}

// SetMatchingStatus records an explicit user-driven matching-state change
// (confirmed, psa_created).
func (r *ScanRepository) SetMatchingStatus(ctx context.Context, id string, status models.MatchingStatus) error {
	res, err := r.db.conn.ExecContext(ctx, `
		UPDATE scans SET matching_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set matching status: %w", err)
	}
	return requireRows(res)
}

// ResetToExtracted forces every scan attached to a stitched composite back
// to extracted and clears all data derived from that composite. Idempotent:
// a second call over the same hash set finds no attached scans and changes
// nothing.
func (r *ScanRepository) ResetToExtracted(ctx context.Context, stitchedHash string) (int64, error) {
	res, err := r.db.conn.ExecContext(ctx, `
		UPDATE scans SET status = ?, matching_status = ?, ocr_text = '',
			ocr_confidence = NULL, fields_json = '', matches_json = '',
			best_match_json = '', user_selected_id = '', stitched_hash = '',
			updated_at = ?
		WHERE stitched_hash = ?`,
		string(models.StatusExtracted), string(models.MatchingPending),
		time.Now().UTC(), stitchedHash)
	if err != nil {
		return 0, fmt.Errorf("failed to reset scans: %w", err)
	}
	return res.RowsAffected()
}

// Delete removes scans by id.
func (r *ScanRepository) Delete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := r.db.conn.ExecContext(ctx, `DELETE FROM scans WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete scans: %w", err)
	}
	return res.RowsAffected()
}

// StatusCounts aggregates the store at call time with one grouped query.
func (r *ScanRepository) StatusCounts(ctx context.Context) (StatusCounts, error) {
	rows, err := r.db.conn.QueryContext(ctx, `SELECT status, COUNT(*) FROM scans GROUP BY status`)
	if err != nil {
		return StatusCounts{}, fmt.Errorf("failed to count scans: %w", err)
	}
	defer rows.Close()

	var counts StatusCounts
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return StatusCounts{}, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts.Total += count
		switch models.ProcessingStatus(status) {
		case models.StatusUploaded:
			counts.Uploaded = count
		case models.StatusExtracted:
			counts.Extracted = count
		case models.StatusOCRCompleted:
			counts.OCRCompleted = count
		case models.StatusMatched:
			counts.Matched = count
		case models.StatusFailed:
			counts.Failed = count
		}
	}
	return counts, rows.Err()
}

// transition applies extra column updates together with a guarded status
// change, committing per scan so one bad record never corrupts a batch.
func (r *ScanRepository) transition(ctx context.Context, id string, target models.ProcessingStatus, setClause string, args ...any) error {
	return r.withScan(ctx, id, func(tx *sql.Tx, scan *models.ScanRecord) error {
		if !models.CanTransition(scan.Status, target) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, scan.Status, target)
		}
		query := `UPDATE scans SET ` + setClause + `, status = ?, updated_at = ? WHERE id = ?`
		execArgs := append(append([]any{}, args...), string(target), time.Now().UTC(), id)
		_, err := tx.ExecContext(ctx, query, execArgs...)
		return err
	})
}

// withScan runs fn inside a transaction with the current row, giving
// read-check-write semantics for guarded updates.
func (r *ScanRepository) withScan(ctx context.Context, id string, fn func(*sql.Tx, *models.ScanRecord) error) error {
	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = ?`, id)
	scan, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load scan: %w", err)
	}

	if err := fn(tx, scan); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(row rowScanner) (*models.ScanRecord, error) {
	var scan models.ScanRecord
	var status, matchingStatus, fieldsJSON, matchesJSON, bestJSON string
	var confidence sql.NullFloat64
	var stitchedHash string

	err := row.Scan(
		&scan.ID, &scan.ContentHash, &scan.OriginalFilename, &scan.ImagePath,
		&scan.LabelPath, &status, &matchingStatus, &scan.OCRText, &confidence,
		&fieldsJSON, &matchesJSON, &bestJSON, &scan.UserSelectedID,
		&stitchedHash, &scan.CreatedAt, &scan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	scan.Status = models.ProcessingStatus(status)
	scan.MatchingStatus = models.MatchingStatus(matchingStatus)
	if confidence.Valid {
		scan.OCRConfidence = &confidence.Float64
	}
	if fieldsJSON != "" {
		if err := json.Unmarshal([]byte(fieldsJSON), &scan.Fields); err != nil {
			scan.Fields = nil
		}
	}
	if matchesJSON != "" {
		if err := json.Unmarshal([]byte(matchesJSON), &scan.CardMatches); err != nil {
			scan.CardMatches = nil
		}
	}
	if bestJSON != "" {
		if err := json.Unmarshal([]byte(bestJSON), &scan.BestMatch); err != nil {
			scan.BestMatch = nil
		}
	}
	return &scan, nil
}

func collectScans(rows *sql.Rows) ([]*models.ScanRecord, error) {
	var scans []*models.ScanRecord
	for rows.Next() {
		scan, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		scans = append(scans, scan)
	}
	return scans, rows.Err()
}

func marshalOrEmpty(v any) (string, error) {
	switch value := v.(type) {
	case *models.ExtractedFields:
		if value == nil {
			return "", nil
		}
	case *models.CardMatch:
		if value == nil {
			return "", nil
		}
	case []models.CardMatch:
		if len(value) == 0 {
			return "", nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func requireRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
