package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VariantType identifies how a review variant was produced.
type VariantType string

// Possible variant types
const (
	VariantTypeAI    VariantType = "ai"
	VariantTypeHuman VariantType = "human"
)

// Review variant validation errors
var (
	ErrVariantIDEmpty      = fmt.Errorf("%w: variant ID cannot be empty", ErrValidation)
	ErrVariantItemIDEmpty  = fmt.Errorf("%w: variant item ID cannot be empty", ErrValidation)
	ErrVariantContentEmpty = fmt.Errorf("%w: variant content cannot be empty", ErrValidation)
)

// Schedule is the per-user review timing attached to a generated variant.
type Schedule struct {
	UserID         uuid.UUID `json:"user_id"`
	NextReviewAt   time.Time `json:"next_review_at"`
	NextDelaySec   int64     `json:"next_delay_sec"`
	ForgettingProb float64   `json:"forgetting_prob"`
	LambdaUsed     float64   `json:"lambda_used"`
	Sum            float64   `json:"sum"`
}

// VariantMetadata describes a variant's provenance and optional schedule.
type VariantMetadata struct {
	GeneratedBy   string    `json:"generated_by,omitempty"`
	GeneratedFrom string    `json:"generated_from,omitempty"`
	Difficulty    string    `json:"difficulty,omitempty"`
	ItemType      string    `json:"item_type,omitempty"`
	Schedule      *Schedule `json:"schedule,omitempty"`
}

// ReviewVariant is an alternative presentation of a content item's review
// question. Content is opaque JSON. LastUsedBy maps each user to the last
// time they were shown this variant.
type ReviewVariant struct {
	ID         uuid.UUID               `json:"id"`
	ItemID     uuid.UUID               `json:"item_id"`
	AuthorID   *uuid.UUID              `json:"author_id,omitempty"`
	Type       VariantType             `json:"type"`
	Content    json.RawMessage         `json:"content"`
	Metadata   VariantMetadata         `json:"metadata"`
	LastUsedBy map[uuid.UUID]time.Time `json:"last_used_by"`
	CreatedAt  time.Time               `json:"created_at"`
}

// NewReviewVariant creates a validated variant for an item.
func NewReviewVariant(
	itemID uuid.UUID,
	authorID *uuid.UUID,
	variantType VariantType,
	content json.RawMessage,
	metadata VariantMetadata,
) (*ReviewVariant, error) {
	variant := &ReviewVariant{
		ID:         uuid.New(),
		ItemID:     itemID,
		AuthorID:   authorID,
		Type:       variantType,
		Content:    content,
		Metadata:   metadata,
		LastUsedBy: map[uuid.UUID]time.Time{},
		CreatedAt:  time.Now().UTC(),
	}

	if err := variant.Validate(); err != nil {
		return nil, err
	}

	return variant, nil
}

// Validate checks identifiers, the type, and that content is valid JSON.
func (v *ReviewVariant) Validate() error {
	if v.ID == uuid.Nil {
		return ErrVariantIDEmpty
	}

	if v.ItemID == uuid.Nil {
		return ErrVariantItemIDEmpty
	}

	if v.Type != VariantTypeAI && v.Type != VariantTypeHuman {
		return ErrInvalidVariantType
	}

	if len(v.Content) == 0 {
		return ErrVariantContentEmpty
	}

	var js json.RawMessage
	if err := json.Unmarshal(v.Content, &js); err != nil {
		return ErrInvalidVariantContent
	}

	return nil
}

// LastUsed returns when the user last saw the variant and whether they ever did.
func (v *ReviewVariant) LastUsed(userID uuid.UUID) (time.Time, bool) {
	if v.LastUsedBy == nil {
		return time.Time{}, false
	}
	at, ok := v.LastUsedBy[userID]
	return at, ok
}
