package store

import (
	"context"
	"database/sql"
	"time"

	"keepsake/internal/models"
)

// CountLegacyVideos counts legacy embedded video records.
func (s *Store) CountLegacyVideos(ctx context.Context) (int, error) {
	return s.countRows(ctx, "legacy_videos")
}

// LegacyVideosAfter returns up to limit legacy records with id greater than afterID, ordered by id.
// Pages are loaded whole so callers never hold a cursor while writing to the chunk store.
func (s *Store) LegacyVideosAfter(ctx context.Context, afterID string, limit int) ([]models.LegacyVideo, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, data, content_type, created_at, updated_at FROM legacy_videos WHERE id > ? ORDER BY id LIMIT ?`,
		afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	videos := []models.LegacyVideo{}
	for rows.Next() {
		video := models.LegacyVideo{}
		var filename, contentType, createdAt, updatedAt sql.NullString
		if err := rows.Scan(&video.ID, &filename, &video.Data, &contentType, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		video.Filename = filename.String
		video.ContentType = contentType.String
		if video.CreatedAt, err = parseOptionalTime(createdAt); err != nil {
			return nil, err
		}
		if video.UpdatedAt, err = parseOptionalTime(updatedAt); err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}

// LegacyVideoExists checks whether a legacy record exists by id.
func (s *Store) LegacyVideoExists(ctx context.Context, id string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM legacy_videos WHERE id = ? LIMIT 1", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertLegacyVideo writes a legacy record. Only the seeding command calls it.
func (s *Store) InsertLegacyVideo(ctx context.Context, video models.LegacyVideo) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO legacy_videos (id, filename, data, content_type, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		video.ID, nullIfEmpty(video.Filename), video.Data, nullIfEmpty(video.ContentType), nullTime(video.CreatedAt), nullTime(video.UpdatedAt))
	return err
}

func parseOptionalTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
