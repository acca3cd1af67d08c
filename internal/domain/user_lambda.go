package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ErrUserLambdaUserIDEmpty is returned when a forgetting rate has no user ID.
var ErrUserLambdaUserIDEmpty = fmt.Errorf("%w: user lambda user ID cannot be empty", ErrValidation)

// LambdaSource records which process produced a forgetting rate.
type LambdaSource string

// Known lambda sources
const (
	LambdaSourceOnline     LambdaSource = "online"
	LambdaSourceAutoAdjust LambdaSource = "auto-adjust"
	LambdaSourceWorker     LambdaSource = "worker"
)

// UserLambda is a learner's personalized forgetting rate.
type UserLambda struct {
	UserID    uuid.UUID    `json:"user_id"`
	Lambda    float64      `json:"lambda"`
	Source    LambdaSource `json:"source"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewUserLambda creates a validated UserLambda stamped now. An empty source
// defaults to online.
func NewUserLambda(userID uuid.UUID, lambda float64, source LambdaSource) (*UserLambda, error) {
	if source == "" {
		source = LambdaSourceOnline
	}

	ul := &UserLambda{
		UserID:    userID,
		Lambda:    lambda,
		Source:    source,
		UpdatedAt: time.Now().UTC(),
	}

	if err := ul.Validate(); err != nil {
		return nil, err
	}

	return ul, nil
}

// Validate checks the user ID, the rate and the source.
func (l *UserLambda) Validate() error {
	if l.UserID == uuid.Nil {
		return ErrUserLambdaUserIDEmpty
	}

	if math.IsNaN(l.Lambda) || math.IsInf(l.Lambda, 0) || l.Lambda <= 0 {
		return fmt.Errorf("%w: lambda must be a positive finite number, got %v", ErrOutOfRange, l.Lambda)
	}

	if !isValidLambdaSource(l.Source) {
		return ErrInvalidLambdaSource
	}

	return nil
}

func isValidLambdaSource(source LambdaSource) bool {
	switch source {
	case LambdaSourceOnline, LambdaSourceAutoAdjust, LambdaSourceWorker:
		return true
	default:
		return false
	}
}
