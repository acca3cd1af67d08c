package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/studycycle-api/internal/domain"
)

// ReviewEventStore is the append-only log of recall attempts.
// All list methods return events in chronological order.
type ReviewEventStore interface {
	// LogReviewEvent appends an event and returns it as stored.
	LogReviewEvent(ctx context.Context, event *domain.ReviewEvent) (*domain.ReviewEvent, error)

	// GetReviewEventsForUser returns every event logged for the user.
	GetReviewEventsForUser(ctx context.Context, userID uuid.UUID) ([]domain.ReviewEvent, error)

	// GetReviewEventsForUserItem returns the user's most recent events for an
	// item. A limit of zero or less returns all of them.
	GetReviewEventsForUserItem(
		ctx context.Context,
		userID, itemID uuid.UUID,
		limit int,
	) ([]domain.ReviewEvent, error)

	// GetAllReviewEvents returns the full log.
	GetAllReviewEvents(ctx context.Context) ([]domain.ReviewEvent, error)

	// WithTx returns a new ReviewEventStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ReviewEventStore
}

// TrainingExampleStore persists labeled training examples. Examples are
// immutable once logged.
type TrainingExampleStore interface {
	// LogTrainingExample appends an example.
	LogTrainingExample(ctx context.Context, example *domain.TrainingExample) error

	// ListTrainingExamples returns all examples in insertion order.
	ListTrainingExamples(ctx context.Context) ([]domain.TrainingExample, error)
}
