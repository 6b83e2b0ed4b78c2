package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"keepsake/internal/models"
)

const momentColumns = "id, type, title, date_ms, body, media_bucket, media_object_id, media_filename, media_content_type, media_length, tags_json, meta_json, created_at, updated_at"

// MomentFilter selects and orders moments for listing and counting.
type MomentFilter struct {
	Type      models.MomentType
	From      *time.Time
	To        *time.Time
	Ascending bool
	Offset    int
	// Limit <= 0 returns every matching row.
	Limit int
}

// MomentExists checks whether a moment exists by id.
func (s *Store) MomentExists(id string) (bool, error) {
	return s.rowExists("moments", id)
}

// CreateMoment validates and inserts a moment, assigning an id when empty.
func (s *Store) CreateMoment(ctx context.Context, moment *models.Moment) error {
	if moment == nil {
		return fmt.Errorf("moment is required")
	}
	if err := moment.Validate(); err != nil {
		return err
	}
	if moment.ID == "" {
		id, err := GenerateID(MomentIDPrefix, s.MomentExists)
		if err != nil {
			return err
		}
		moment.ID = id
	}

	now := time.Now().UTC()
	if moment.CreatedAt.IsZero() {
		moment.CreatedAt = now
	}
	moment.UpdatedAt = moment.CreatedAt

	args, err := momentArgs(moment)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO moments (`+momentColumns+`) VALUES (`+placeholders(14)+`)`, args...)
	return err
}

// GetMoment returns one moment or nil when absent.
func (s *Store) GetMoment(ctx context.Context, id string) (*models.Moment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+momentColumns+` FROM moments WHERE id = ?`, id)
	return scanMoment(row)
}

// SaveMoment replaces every mutable field of an existing moment.
// It returns false when no row matched the id.
func (s *Store) SaveMoment(ctx context.Context, moment *models.Moment) (bool, error) {
	if moment == nil {
		return false, fmt.Errorf("moment is required")
	}
	if err := moment.Validate(); err != nil {
		return false, err
	}
	moment.UpdatedAt = time.Now().UTC()

	args, err := momentArgs(moment)
	if err != nil {
		return false, err
	}
	// args[0] is id, created_at is never rewritten.
	res, err := s.db.ExecContext(ctx, `UPDATE moments SET
		type = ?, title = ?, date_ms = ?, body = ?, media_bucket = ?, media_object_id = ?,
		media_filename = ?, media_content_type = ?, media_length = ?, tags_json = ?, meta_json = ?,
		updated_at = ?
		WHERE id = ?`,
		append(append([]any{}, args[1:12]...), args[13], args[0])...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// DeleteMoment removes one moment and returns the deleted record, or nil when absent.
func (s *Store) DeleteMoment(ctx context.Context, id string) (*models.Moment, error) {
	deleted, err := s.DeleteMoments(ctx, []string{id})
	if err != nil || len(deleted) == 0 {
		return nil, err
	}
	return &deleted[0], nil
}

// DeleteMoments removes moments by id in one transaction and returns the rows that existed.
func (s *Store) DeleteMoments(ctx context.Context, ids []string) (deleted []models.Moment, err error) {
	deleted = []models.Moment{}
	if len(ids) == 0 {
		return deleted, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	args := idArgs(ids)
	rows, err := tx.QueryContext(ctx, `SELECT `+momentColumns+` FROM moments WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		moment, scanErr := scanMoment(rows)
		if scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		if moment != nil {
			deleted = append(deleted, *moment)
		}
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM moments WHERE id IN (`+placeholders(len(ids))+`)`, args...); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return deleted, nil
}

// ListMoments returns moments matching the filter ordered by date.
func (s *Store) ListMoments(ctx context.Context, filter MomentFilter) ([]models.Moment, error) {
	where, args := momentWhere(filter)
	direction := "DESC"
	if filter.Ascending {
		direction = "ASC"
	}
	query := `SELECT ` + momentColumns + ` FROM moments` + where + ` ORDER BY date_ms ` + direction + `, id ` + direction

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	moments := []models.Moment{}
	for rows.Next() {
		moment, err := scanMoment(rows)
		if err != nil {
			return nil, err
		}
		if moment != nil {
			moments = append(moments, *moment)
		}
	}
	return moments, rows.Err()
}

// CountMoments counts moments matching the filter's type and date window.
func (s *Store) CountMoments(ctx context.Context, filter MomentFilter) (int, error) {
	where, args := momentWhere(filter)
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM moments`+where, args...).Scan(&count)
	return count, err
}

func momentWhere(filter MomentFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.From != nil {
		clauses = append(clauses, "date_ms >= ?")
		args = append(args, filter.From.UnixMilli())
	}
	if filter.To != nil {
		clauses = append(clauses, "date_ms <= ?")
		args = append(args, filter.To.UnixMilli())
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func momentArgs(moment *models.Moment) ([]any, error) {
	tagsJSON, err := tagsToJSON(moment.Tags)
	if err != nil {
		return nil, err
	}
	metaJSON, err := metaToJSON(moment.Meta)
	if err != nil {
		return nil, err
	}

	var body, bucket, objectID, filename, contentType, length any
	switch p := moment.Payload.(type) {
	case models.TextBody:
		body = p.Text
	case models.MediaRef:
		bucket = p.Bucket
		objectID = p.ObjectID
		filename = nullIfEmpty(p.Filename)
		contentType = nullIfEmpty(p.ContentType)
		length = p.Length
	}

	return []any{
		moment.ID,
		string(moment.Type),
		moment.Title,
		moment.Date.UnixMilli(),
		body,
		bucket,
		objectID,
		filename,
		contentType,
		length,
		tagsJSON,
		metaJSON,
		formatTime(moment.CreatedAt),
		formatTime(moment.UpdatedAt),
	}, nil
}

func scanMoment(scanner interface {
	Scan(dest ...any) error
}) (*models.Moment, error) {
	moment := models.Moment{}

	var momentType string
	var dateMS int64
	var body, bucket, objectID, filename, contentType, tagsJSON, metaJSON sql.NullString
	var length sql.NullInt64
	var createdAt, updatedAt string

	err := scanner.Scan(
		&moment.ID,
		&momentType,
		&moment.Title,
		&dateMS,
		&body,
		&bucket,
		&objectID,
		&filename,
		&contentType,
		&length,
		&tagsJSON,
		&metaJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	moment.Type = models.MomentType(momentType)
	moment.Date = time.UnixMilli(dateMS).UTC()
	if objectID.Valid {
		moment.Payload = models.MediaRef{
			Bucket:      bucket.String,
			ObjectID:    objectID.String,
			Filename:    filename.String,
			ContentType: contentType.String,
			Length:      length.Int64,
		}
	} else {
		moment.Payload = models.TextBody{Text: body.String}
	}

	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &moment.Tags); err != nil {
			return nil, fmt.Errorf("decode moment tags: %w", err)
		}
	}
	if moment.Tags == nil {
		moment.Tags = []string{}
	}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &moment.Meta); err != nil {
			return nil, fmt.Errorf("decode moment meta: %w", err)
		}
	}

	if moment.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if moment.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &moment, nil
}
