package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/studycycle-api/internal/domain"
)

// ProfileStore persists learner profiles.
type ProfileStore interface {
	// GetUserProfile retrieves a profile by user ID.
	// Returns ErrUserProfileNotFound if the user has no profile.
	GetUserProfile(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error)

	// SaveUserProfile creates or replaces the user's profile.
	// Returns validation errors from the domain UserProfile if data is invalid.
	SaveUserProfile(ctx context.Context, profile *domain.UserProfile) error

	// WithTx returns a new ProfileStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ProfileStore
}

// ContentStore persists content items.
type ContentStore interface {
	// GetContentItem retrieves a content item by ID.
	// Returns ErrContentItemNotFound if the item does not exist.
	GetContentItem(ctx context.Context, id uuid.UUID) (*domain.ContentItem, error)

	// CreateContentItem saves a new content item.
	// Returns ErrContentItemExists if an item with the same ID already exists.
	CreateContentItem(ctx context.Context, item *domain.ContentItem) error

	// WithTx returns a new ContentStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ContentStore
}

// CoefficientStore persists the trained model coefficients.
// The engine makes no assumption about the storage medium.
type CoefficientStore interface {
	// LoadCoefficients returns the most recently saved coefficient set.
	// Returns ErrCoefficientsNotFound if none has been saved.
	LoadCoefficients(ctx context.Context) (domain.ModelCoefficients, error)

	// SaveCoefficients stores coefs as the current set.
	SaveCoefficients(ctx context.Context, coefs domain.ModelCoefficients) error
}
