package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/studycycle-api/internal/domain"
)

// LambdaStore holds one forgetting rate per user. Writes overwrite the
// previous value; concurrent writers race and the last one wins.
type LambdaStore interface {
	// GetUserLambda returns the user's current rate.
	// Returns ErrUserLambdaNotFound if none is stored.
	GetUserLambda(ctx context.Context, userID uuid.UUID) (*domain.UserLambda, error)

	// SetUserLambda stores the user's rate, replacing any previous value.
	SetUserLambda(ctx context.Context, lambda *domain.UserLambda) error
}
