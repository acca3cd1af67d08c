package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/studycycle-api/internal/domain"
)

// VariantStore persists review variants.
type VariantStore interface {
	// GetReviewVariantsForItem returns the item's variants oldest first.
	GetReviewVariantsForItem(ctx context.Context, itemID uuid.UUID) ([]domain.ReviewVariant, error)

	// GetReviewVariant retrieves a variant by ID.
	// Returns ErrVariantNotFound if it does not exist.
	GetReviewVariant(ctx context.Context, id uuid.UUID) (*domain.ReviewVariant, error)

	// CreateReviewVariant saves a new variant.
	CreateReviewVariant(ctx context.Context, variant *domain.ReviewVariant) error

	// MarkVariantUsed records that userID was shown the variant at the given time.
	// Returns ErrVariantNotFound if the variant does not exist.
	MarkVariantUsed(ctx context.Context, variantID, userID uuid.UUID, at time.Time) error

	// GetScheduledDueVariants returns variants whose schedule belongs to
	// userID and whose next review time is at or before now.
	GetScheduledDueVariants(ctx context.Context, userID uuid.UUID, now time.Time) ([]domain.ReviewVariant, error)

	// WithTx returns a new VariantStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) VariantStore
}
