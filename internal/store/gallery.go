package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"keepsake/internal/models"
)

const galleryColumns = "id, src, title, caption, created_at, updated_at"

// GalleryUpdate carries optional gallery field changes.
type GalleryUpdate struct {
	Src     *string
	Title   *string
	Caption *string
}

// GalleryImageExists checks whether a gallery image exists by id.
func (s *Store) GalleryImageExists(id string) (bool, error) {
	return s.rowExists("gallery_images", id)
}

// CreateGalleryImage inserts a gallery image, assigning an id when empty.
func (s *Store) CreateGalleryImage(ctx context.Context, image *models.GalleryImage) error {
	if image == nil {
		return fmt.Errorf("gallery image is required")
	}
	if image.ID == "" {
		id, err := GenerateID(GalleryIDPrefix, s.GalleryImageExists)
		if err != nil {
			return err
		}
		image.ID = id
	}
	now := time.Now().UTC()
	if image.CreatedAt.IsZero() {
		image.CreatedAt = now
	}
	image.UpdatedAt = image.CreatedAt

	_, err := s.db.ExecContext(ctx, `INSERT INTO gallery_images (`+galleryColumns+`) VALUES (`+placeholders(6)+`)`,
		image.ID, image.Src, image.Title, image.Caption, formatTime(image.CreatedAt), formatTime(image.UpdatedAt))
	return err
}

// ListGalleryImages returns gallery images newest first. limit <= 0 returns all.
func (s *Store) ListGalleryImages(ctx context.Context, limit int) ([]models.GalleryImage, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+galleryColumns+` FROM gallery_images ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := []models.GalleryImage{}
	for rows.Next() {
		image, err := scanGalleryImage(rows)
		if err != nil {
			return nil, err
		}
		if image != nil {
			images = append(images, *image)
		}
	}
	return images, rows.Err()
}

// GetGalleryImage returns one gallery image or nil when absent.
func (s *Store) GetGalleryImage(ctx context.Context, id string) (*models.GalleryImage, error) {
	return scanGalleryImage(s.db.QueryRowContext(ctx, `SELECT `+galleryColumns+` FROM gallery_images WHERE id = ?`, id))
}

// FindGalleryImageByTitle returns the most recent gallery image with the title, or nil.
func (s *Store) FindGalleryImageByTitle(ctx context.Context, title string) (*models.GalleryImage, error) {
	return scanGalleryImage(s.db.QueryRowContext(ctx,
		`SELECT `+galleryColumns+` FROM gallery_images WHERE title = ? ORDER BY created_at DESC LIMIT 1`, title))
}

// UpdateGalleryImage applies the update and returns the stored image, or nil when absent.
func (s *Store) UpdateGalleryImage(ctx context.Context, id string, update GalleryUpdate) (*models.GalleryImage, error) {
	image, err := s.GetGalleryImage(ctx, id)
	if err != nil || image == nil {
		return nil, err
	}
	if update.Src != nil {
		image.Src = *update.Src
	}
	if update.Title != nil {
		image.Title = *update.Title
	}
	if update.Caption != nil {
		image.Caption = *update.Caption
	}
	image.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `UPDATE gallery_images SET src = ?, title = ?, caption = ?, updated_at = ? WHERE id = ?`,
		image.Src, image.Title, image.Caption, formatTime(image.UpdatedAt), id)
	if err != nil {
		return nil, err
	}
	return image, nil
}

// DeleteGalleryImage removes one gallery image and returns it, or nil when absent.
func (s *Store) DeleteGalleryImage(ctx context.Context, id string) (*models.GalleryImage, error) {
	image, err := s.GetGalleryImage(ctx, id)
	if err != nil || image == nil {
		return nil, err
	}
	if _, err := s.deleteByIDs(ctx, "gallery_images", []string{id}); err != nil {
		return nil, err
	}
	return image, nil
}

// DeleteGalleryImages removes gallery images by id and returns the deleted count.
func (s *Store) DeleteGalleryImages(ctx context.Context, ids []string) (int, error) {
	return s.deleteByIDs(ctx, "gallery_images", ids)
}

// CountGalleryImages counts every gallery image.
func (s *Store) CountGalleryImages(ctx context.Context) (int, error) {
	return s.countRows(ctx, "gallery_images")
}

func scanGalleryImage(scanner interface {
	Scan(dest ...any) error
}) (*models.GalleryImage, error) {
	image := models.GalleryImage{}
	var createdAt, updatedAt string
	if err := scanner.Scan(&image.ID, &image.Src, &image.Title, &image.Caption, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	var err error
	if image.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if image.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &image, nil
}
