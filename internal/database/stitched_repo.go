package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"cardvault/internal/models"
)

type StitchedImageRepository struct {
	db *DB
}

func NewStitchedImageRepository(db *DB) *StitchedImageRepository {
	return &StitchedImageRepository{db: db}
}

func (r *StitchedImageRepository) Insert(ctx context.Context, img *models.StitchedImage) error {
	membersJSON, err := json.Marshal(img.MemberHashes)
	if err != nil {
		return fmt.Errorf("failed to marshal member hashes: %w", err)
	}

	_, err = r.db.conn.ExecContext(ctx, `
		INSERT INTO stitched_images (id, path, content_hash, member_hashes_json, width, height, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		img.ID, img.Path, img.ContentHash, string(membersJSON),
		img.Width, img.Height, img.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert stitched image: %w", err)
	}
	return nil
}

// FindByHash returns the composite with the given content hash, or nil when
// none exists. The stitcher uses this for composite-level deduplication.
func (r *StitchedImageRepository) FindByHash(ctx context.Context, contentHash string) (*models.StitchedImage, error) {
	row := r.db.conn.QueryRowContext(ctx, `
		SELECT id, path, content_hash, member_hashes_json, width, height, created_at
		FROM stitched_images WHERE content_hash = ?`, contentHash)

	img, err := scanStitchedRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find stitched image: %w", err)
	}
	return img, nil
}

// GetByHash is FindByHash with a mandatory result.
func (r *StitchedImageRepository) GetByHash(ctx context.Context, contentHash string) (*models.StitchedImage, error) {
	img, err := r.FindByHash(ctx, contentHash)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("%w: stitched image %s", ErrNotFound, contentHash)
	}
	return img, nil
}

// List returns all composites, newest first.
func (r *StitchedImageRepository) List(ctx context.Context) ([]*models.StitchedImage, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, path, content_hash, member_hashes_json, width, height, created_at
		FROM stitched_images ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stitched images: %w", err)
	}
	defer rows.Close()

	var images []*models.StitchedImage
	for rows.Next() {
		img, err := scanStitchedRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stitched row: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// Delete removes a composite record and returns it so the caller can reset
// member scans and remove the file. Deleting a missing composite returns
// nil, nil so the operation stays idempotent.
func (r *StitchedImageRepository) Delete(ctx context.Context, contentHash string) (*models.StitchedImage, error) {
	img, err := r.FindByHash(ctx, contentHash)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, nil
	}

	if _, err := r.db.conn.ExecContext(ctx,
		`DELETE FROM stitched_images WHERE content_hash = ?`, contentHash); err != nil {
		return nil, fmt.Errorf("failed to delete stitched image: %w", err)
	}
	return img, nil
}

func scanStitchedRow(row rowScanner) (*models.StitchedImage, error) {
	var img models.StitchedImage
	var membersJSON string
	err := row.Scan(&img.ID, &img.Path, &img.ContentHash, &membersJSON,
		&img.Width, &img.Height, &img.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(membersJSON), &img.MemberHashes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal member hashes: %w", err)
	}
	return &img, nil
}
