package store

import (
	"context"
	"encoding/json"
)

// Card is the object representing a vocabulary card.
type Card struct {
	ID        int32
	UID       string
	RowStatus RowStatus
	CreatedTs int64
	UpdatedTs int64

	Word        string
	Translation string
	// Examples holds example sentences as a JSON array of strings.
	Examples *string
	// Notes holds free-form markdown.
	Notes string
}

// ExampleList decodes the examples JSON column. A missing or malformed
// column yields an empty list.
func (c *Card) ExampleList() []string {
	if c.Examples == nil || *c.Examples == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(*c.Examples), &list); err != nil {
		return nil
	}
	return list
}

// SetExampleList encodes example sentences into the examples column.
func (c *Card) SetExampleList(list []string) error {
	if list == nil {
		c.Examples = nil
		return nil
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return err
	}
	s := string(raw)
	c.Examples = &s
	return nil
}

// FindCard is the find condition for card.
type FindCard struct {
	ID  *int32
	IDs []int32
	UID *string

	// WordLike matches word or translation by substring.
	WordLike *string

	// Status filter
	RowStatus *RowStatus

	// Pagination
	Limit  *int
	Offset *int
}

// UpdateCard is the update request for card.
type UpdateCard struct {
	ID          int32
	UID         *string
	UpdatedTs   *int64
	RowStatus   *RowStatus
	Word        *string
	Translation *string
	Examples    *string
	Notes       *string
}

// DeleteCard is the delete request for card.
type DeleteCard struct {
	ID int32
}

// CreateCard creates a new card.
func (s *Store) CreateCard(ctx context.Context, create *Card) (*Card, error) {
	return s.driver.CreateCard(ctx, create)
}

// ListCards lists cards with filter.
func (s *Store) ListCards(ctx context.Context, find *FindCard) ([]*Card, error) {
	return s.driver.ListCards(ctx, find)
}

// GetCard gets a single card, or nil when none matches.
func (s *Store) GetCard(ctx context.Context, find *FindCard) (*Card, error) {
	list, err := s.driver.ListCards(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// UpdateCard updates a card.
func (s *Store) UpdateCard(ctx context.Context, update *UpdateCard) error {
	return s.driver.UpdateCard(ctx, update)
}

// DeleteCard deletes a card together with its stats and review logs.
func (s *Store) DeleteCard(ctx context.Context, delete *DeleteCard) error {
	if err := s.driver.DeleteCard(ctx, delete); err != nil {
		return err
	}
	s.cardStatsCache.Delete(ctx, cardStatsCacheKey(delete.ID))
	return nil
}
