package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Review event validation errors
var (
	ErrReviewEventUserIDEmpty = fmt.Errorf("%w: review event user ID cannot be empty", ErrValidation)
	ErrReviewEventItemIDEmpty = fmt.Errorf("%w: review event item ID cannot be empty", ErrValidation)
)

// ReviewEvent is one logged recall attempt. Events are append-only.
type ReviewEvent struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	ItemID      uuid.UUID `json:"item_id"`
	Timestamp   time.Time `json:"timestamp"`
	Correctness int       `json:"correctness"`

	ResponseTimeMs         *int     `json:"response_time_ms,omitempty"`
	Reps                   *int     `json:"n_reps,omitempty"`
	TimeSinceLastReviewSec *float64 `json:"time_since_last_review_sec,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewReviewEvent creates a validated event timestamped now. The correct flag
// is stored as 1 or 0.
func NewReviewEvent(userID, itemID uuid.UUID, correct bool) (*ReviewEvent, error) {
	now := time.Now().UTC()
	event := &ReviewEvent{
		ID:        uuid.New(),
		UserID:    userID,
		ItemID:    itemID,
		Timestamp: now,
		CreatedAt: now,
	}
	if correct {
		event.Correctness = 1
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}

	return event, nil
}

// Validate checks identifiers and the correctness label.
func (e *ReviewEvent) Validate() error {
	if e.UserID == uuid.Nil {
		return ErrReviewEventUserIDEmpty
	}

	if e.ItemID == uuid.Nil {
		return ErrReviewEventItemIDEmpty
	}

	if e.Correctness != 0 && e.Correctness != 1 {
		return ErrInvalidCorrectness
	}

	return nil
}

// Correct reports whether the attempt was successful.
func (e *ReviewEvent) Correct() bool {
	return e.Correctness == 1
}

// RepsOrDefault returns the repetition count, treating missing or
// non-positive values as 1.
func (e *ReviewEvent) RepsOrDefault() int {
	if e.Reps == nil || *e.Reps <= 0 {
		return 1
	}
	return *e.Reps
}

// ElapsedSeconds returns the recorded time since the previous review, or 0.
func (e *ReviewEvent) ElapsedSeconds() float64 {
	if e.TimeSinceLastReviewSec == nil {
		return 0
	}
	return *e.TimeSinceLastReviewSec
}
