package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Content item validation errors
var (
	// ErrContentItemIDEmpty is returned when a content item ID is nil.
	ErrContentItemIDEmpty = fmt.Errorf("%w: content item ID cannot be empty", ErrValidation)

	// ErrContentItemTitleEmpty is returned when a content item has no title.
	ErrContentItemTitleEmpty = fmt.Errorf("%w: content item title cannot be empty", ErrValidation)
)

// ContentItem is a unit of study material. BaseStability is the intrinsic
// memory stability of the material in days, Difficulty is normalized to [0,1].
type ContentItem struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	BaseStability float64   `json:"base_stability"`
	Difficulty    float64   `json:"difficulty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewContentItem creates a validated ContentItem with a fresh ID.
func NewContentItem(title, description string, baseStability, difficulty float64) (*ContentItem, error) {
	item := &ContentItem{
		ID:            uuid.New(),
		Title:         title,
		Description:   description,
		BaseStability: baseStability,
		Difficulty:    difficulty,
		CreatedAt:     time.Now().UTC(),
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}

	return item, nil
}

// Validate checks that the item carries usable memory parameters.
func (c *ContentItem) Validate() error {
	if c.ID == uuid.Nil {
		return ErrContentItemIDEmpty
	}

	if c.Title == "" {
		return ErrContentItemTitleEmpty
	}

	if c.BaseStability <= 0 {
		return fmt.Errorf("%w: base stability must be positive, got %v", ErrOutOfRange, c.BaseStability)
	}

	if c.Difficulty < 0 || c.Difficulty > 1 {
		return fmt.Errorf("%w: difficulty must be in [0,1], got %v", ErrOutOfRange, c.Difficulty)
	}

	return nil
}
