package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/studycycle-api/internal/domain"
	"github.com/phrazzld/studycycle-api/internal/service/scheduling"
)

// SuggestionRequest is the payload of POST /api/suggestions. The session
// features sit next to the identifiers.
type SuggestionRequest struct {
	UserID    uuid.UUID `json:"user_id"    validate:"required"`
	ContentID uuid.UUID `json:"content_id" validate:"required"`
	domain.StudySessionInput
}

// ReviewEventRequest is the payload of POST /api/ml/events.
type ReviewEventRequest struct {
	UserID                 uuid.UUID  `json:"user_id"                              validate:"required"`
	ItemID                 uuid.UUID  `json:"item_id"                              validate:"required"`
	Timestamp              *time.Time `json:"timestamp,omitempty"`
	Correctness            *int       `json:"correctness"                          validate:"required,oneof=0 1"`
	ResponseTimeMs         *int       `json:"response_time_ms,omitempty"           validate:"omitempty,gte=0"`
	NReps                  *int       `json:"n_reps,omitempty"                     validate:"omitempty,gte=0"`
	TimeSinceLastReviewSec *float64   `json:"time_since_last_review_sec,omitempty" validate:"omitempty,gte=0"`
}

// LambdaResponse is the body of GET /api/ml/lambda/{userID}.
type LambdaResponse struct {
	Lambda    float64             `json:"lambda"`
	Source    domain.LambdaSource `json:"source"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// SetLambdaRequest is the payload of POST /api/ml/lambda/{userID}. The
// source defaults to online.
type SetLambdaRequest struct {
	Lambda *float64            `json:"lambda" validate:"required,gt=0"`
	Source domain.LambdaSource `json:"source" validate:"omitempty,oneof=online auto-adjust worker"`
}

// AdjustLambdaRequest is the optional payload of POST /api/ml/adjust-lambda/{userID}.
type AdjustLambdaRequest struct {
	LearningRate *float64 `json:"learning_rate,omitempty" validate:"omitempty,gt=0"`
	Window       *int     `json:"window,omitempty"        validate:"omitempty,gt=0"`
}

// TaskAcceptedResponse acknowledges an enqueued background task.
type TaskAcceptedResponse struct {
	Status string `json:"status"`
	Task   string `json:"task"`
}

// ScheduledItem summarizes a due variant.
type ScheduledItem struct {
	ID       uuid.UUID              `json:"id"`
	ItemID   uuid.UUID              `json:"item_id"`
	Content  json.RawMessage        `json:"content"`
	Metadata domain.VariantMetadata `json:"metadata"`
}

// ScheduleResponse is the body of GET /api/ml/schedule/{userID}.
type ScheduleResponse struct {
	Count int             `json:"count"`
	Items []ScheduledItem `json:"items"`
}

// CreateVariantRequest is the payload of POST /api/reviews/{itemID}/variants.
type CreateVariantRequest struct {
	AuthorID *uuid.UUID             `json:"author_id,omitempty"`
	Content  json.RawMessage        `json:"content"             validate:"required"`
	Metadata domain.VariantMetadata `json:"metadata"`
}

// MarkUsedRequest is the payload of POST /api/reviews/variants/{variantID}/used.
type MarkUsedRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
}

// OutcomeRequest is the payload of POST /api/reviews/outcomes.
type OutcomeRequest struct {
	UserID                 uuid.UUID                   `json:"user_id"                              validate:"required"`
	ItemID                 uuid.UUID                   `json:"item_id"                              validate:"required"`
	VariantID              *uuid.UUID                  `json:"variant_id,omitempty"`
	Correct                *bool                       `json:"correct"                              validate:"required"`
	ResponseTimeMs         *int                        `json:"response_time_ms,omitempty"           validate:"omitempty,gte=0"`
	NReps                  *int                        `json:"n_reps,omitempty"                     validate:"omitempty,gte=0"`
	TimeSinceLastReviewSec *float64                    `json:"time_since_last_review_sec,omitempty" validate:"omitempty,gte=0"`
	Features               *scheduling.ExampleFeatures `json:"features,omitempty"`
}

// CreateContentRequest is the payload of POST /api/content.
type CreateContentRequest struct {
	Title         string  `json:"title"          validate:"required"`
	Description   string  `json:"description"`
	BaseStability float64 `json:"base_stability" validate:"gt=0"`
	Difficulty    float64 `json:"difficulty"     validate:"gte=0,lte=1"`
}

// GenerateRequest is the payload of POST /api/content/{id}/generate.
type GenerateRequest struct {
	UserID     uuid.UUID `json:"user_id"    validate:"required"`
	Difficulty string    `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Modes      []string  `json:"modes"      validate:"omitempty,dive,oneof=flashcard quiz exercise cloze"`
}

// ProfileRequest is the payload of PUT /api/profiles/{userID}. An absent
// beta defers to the model-wide coefficient.
type ProfileRequest struct {
	MemoryFactor    float64  `json:"memory_factor"    validate:"gt=0,lte=1"`
	PerformanceMean float64  `json:"performance_mean" validate:"gte=0,lte=1"`
	Beta            *float64 `json:"beta"`
}
