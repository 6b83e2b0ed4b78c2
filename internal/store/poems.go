package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"keepsake/internal/models"
)

// PoemUpdate carries optional poem field changes.
type PoemUpdate struct {
	Title *string
	Lines *[]string
}

// PoemExists checks whether a poem exists by id.
func (s *Store) PoemExists(id string) (bool, error) {
	return s.rowExists("poems", id)
}

// CreatePoem inserts a poem, assigning an id when empty.
func (s *Store) CreatePoem(ctx context.Context, poem *models.Poem) error {
	if poem == nil {
		return fmt.Errorf("poem is required")
	}
	if poem.ID == "" {
		id, err := GenerateID(PoemIDPrefix, s.PoemExists)
		if err != nil {
			return err
		}
		poem.ID = id
	}
	linesJSON, err := json.Marshal(nonNilLines(poem.Lines))
	if err != nil {
		return err
	}
	now := formatTime(time.Now())
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO poems (id, title, lines_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		poem.ID, poem.Title, string(linesJSON), now, now)
	return err
}

// ListPoems returns every poem, newest first.
func (s *Store) ListPoems(ctx context.Context) ([]models.Poem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, lines_json FROM poems ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	poems := []models.Poem{}
	for rows.Next() {
		poem, err := scanPoem(rows)
		if err != nil {
			return nil, err
		}
		if poem != nil {
			poems = append(poems, *poem)
		}
	}
	return poems, rows.Err()
}

// GetPoem returns one poem or nil when absent.
func (s *Store) GetPoem(ctx context.Context, id string) (*models.Poem, error) {
	return scanPoem(s.db.QueryRowContext(ctx, `SELECT id, title, lines_json FROM poems WHERE id = ?`, id))
}

// UpdatePoem applies the update and returns the stored poem, or nil when absent.
func (s *Store) UpdatePoem(ctx context.Context, id string, update PoemUpdate) (*models.Poem, error) {
	poem, err := s.GetPoem(ctx, id)
	if err != nil || poem == nil {
		return nil, err
	}
	if update.Title != nil {
		poem.Title = *update.Title
	}
	if update.Lines != nil {
		poem.Lines = nonNilLines(*update.Lines)
	}
	linesJSON, err := json.Marshal(poem.Lines)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE poems SET title = ?, lines_json = ?, updated_at = ? WHERE id = ?`,
		poem.Title, string(linesJSON), formatTime(time.Now()), id)
	if err != nil {
		return nil, err
	}
	return poem, nil
}

// DeletePoems removes poems by id and returns how many rows were deleted.
func (s *Store) DeletePoems(ctx context.Context, ids []string) (int, error) {
	return s.deleteByIDs(ctx, "poems", ids)
}

// CountPoems counts every poem.
func (s *Store) CountPoems(ctx context.Context) (int, error) {
	return s.countRows(ctx, "poems")
}

func scanPoem(scanner interface {
	Scan(dest ...any) error
}) (*models.Poem, error) {
	poem := models.Poem{}
	var linesJSON string
	if err := scanner.Scan(&poem.ID, &poem.Title, &linesJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(linesJSON), &poem.Lines); err != nil {
		return nil, fmt.Errorf("decode poem lines: %w", err)
	}
	poem.Lines = nonNilLines(poem.Lines)
	return &poem, nil
}

func nonNilLines(lines []string) []string {
	if lines == nil {
		return []string{}
	}
	return lines
}

func (s *Store) deleteByIDs(ctx context.Context, table string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id IN (`+placeholders(len(ids))+`)`, idArgs(ids)...)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}

func (s *Store) countRows(ctx context.Context, table string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count)
	return count, err
}
