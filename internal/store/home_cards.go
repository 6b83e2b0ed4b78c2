package store

import (
	"context"
	"fmt"
	"time"

	"keepsake/internal/models"
)

// HomeCardExists checks whether a home card exists by id.
func (s *Store) HomeCardExists(id string) (bool, error) {
	return s.rowExists("home_cards", id)
}

// CreateHomeCard inserts a home card, assigning an id when empty.
func (s *Store) CreateHomeCard(ctx context.Context, card *models.HomeCard) error {
	if card == nil {
		return fmt.Errorf("home card is required")
	}
	if card.ID == "" {
		id, err := GenerateID(HomeCardIDPrefix, s.HomeCardExists)
		if err != nil {
			return err
		}
		card.ID = id
	}
	now := time.Now().UTC()
	if card.CreatedAt.IsZero() {
		card.CreatedAt = now
	}
	card.UpdatedAt = card.CreatedAt

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO home_cards (id, href, title, description, icon, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		card.ID, card.Href, card.Title, card.Desc, card.Icon, formatTime(card.CreatedAt), formatTime(card.UpdatedAt))
	return err
}

// ListHomeCards returns home cards in creation order.
func (s *Store) ListHomeCards(ctx context.Context) ([]models.HomeCard, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, href, title, description, icon, created_at, updated_at FROM home_cards ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := []models.HomeCard{}
	for rows.Next() {
		card := models.HomeCard{}
		var createdAt, updatedAt string
		if err := rows.Scan(&card.ID, &card.Href, &card.Title, &card.Desc, &card.Icon, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if card.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if card.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}
