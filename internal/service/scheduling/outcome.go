package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/phrazzld/studycycle-api/internal/domain"
	"github.com/phrazzld/studycycle-api/internal/platform/logger"
	"github.com/phrazzld/studycycle-api/internal/platform/tracing"
	"github.com/phrazzld/studycycle-api/internal/service"
)

// ExampleFeatures are the normalized session features recorded alongside an
// outcome as a training example.
type ExampleFeatures struct {
	Difficulty              float64 `json:"difficulty" validate:"gte=0,lte=1"`
	History                 float64 `json:"history" validate:"gte=0,lte=1"`
	StudyTime               float64 `json:"study_time" validate:"gte=0,lte=1"`
	Confidence              float64 `json:"confidence" validate:"gte=0,lte=1"`
	PreviousIntervalSuccess float64 `json:"previous_interval_success" validate:"gte=0,lte=1"`
}

// Outcome is one answered review.
type Outcome struct {
	UserID    uuid.UUID
	ItemID    uuid.UUID
	VariantID *uuid.UUID
	Correct   bool

	ResponseTimeMs *int

	// Reps and TimeSinceLastReviewSec are derived from the item's history
	// when nil.
	Reps                   *int
	TimeSinceLastReviewSec *float64

	// Features, when set, are logged as a training example labeled with Correct.
	Features *ExampleFeatures
}

// OutcomeResult reports what RecordReviewOutcome stored. Lambda is nil when
// the calibration update failed.
type OutcomeResult struct {
	Event         *domain.ReviewEvent `json:"event"`
	Lambda        *domain.UserLambda  `json:"lambda,omitempty"`
	ExampleLogged bool                `json:"example_logged"`
	VariantMarked bool                `json:"variant_marked"`
}

// RecordReviewOutcome logs the review event, then logs the training example
// when features are given, updates the learner's forgetting rate online and
// marks the shown variant used. The online update sees the item's whole
// history, ending with the event just logged. Only a failure to log the
// event is returned.
func (s *Service) RecordReviewOutcome(ctx context.Context, outcome Outcome) (*OutcomeResult, error) {
	ctx, span := tracing.Tracer().Start(ctx, "scheduling.RecordReviewOutcome")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", outcome.UserID.String()),
		attribute.String("item_id", outcome.ItemID.String()),
		attribute.Bool("correct", outcome.Correct),
	)
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		"user_id", outcome.UserID,
		"item_id", outcome.ItemID)

	event, err := domain.NewReviewEvent(outcome.UserID, outcome.ItemID, outcome.Correct)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	event.Timestamp = now
	event.ResponseTimeMs = outcome.ResponseTimeMs
	event.Reps = outcome.Reps
	event.TimeSinceLastReviewSec = outcome.TimeSinceLastReviewSec

	history, err := s.events.GetReviewEventsForUserItem(ctx, outcome.UserID, outcome.ItemID, 0)
	if err != nil {
		log.Warn("failed to load review history", "error", err)
		history = nil
	}
	fillFromHistory(event, history, now)

	stored, err := s.events.LogReviewEvent(ctx, event)
	if err != nil {
		span.RecordError(err)
		return nil, service.NewServiceError(serviceName, "record_outcome", "failed to log review event", err)
	}
	result := &OutcomeResult{Event: stored}
	history = append(history, *stored)

	if outcome.Features != nil && s.examples != nil {
		itemID, userID := outcome.ItemID, outcome.UserID
		example := &domain.TrainingExample{
			ID:                      uuid.New(),
			UserID:                  &userID,
			ItemID:                  &itemID,
			Difficulty:              outcome.Features.Difficulty,
			History:                 outcome.Features.History,
			StudyTime:               outcome.Features.StudyTime,
			Confidence:              outcome.Features.Confidence,
			PreviousIntervalSuccess: outcome.Features.PreviousIntervalSuccess,
			Remembered:              outcome.Correct,
			CreatedAt:               now,
		}
		if err := s.examples.LogTrainingExample(ctx, example); err != nil {
			log.Warn("failed to log training example", "error", err)
		} else {
			result.ExampleLogged = true
		}
	}

	ul, err := s.lambdas.OnlineUpdate(ctx, outcome.UserID, history, float64(stored.Correctness))
	if err != nil {
		span.RecordError(err)
		log.Warn("online lambda update failed", "error", err)
	} else {
		result.Lambda = ul
		span.SetAttributes(attribute.Float64("lambda", ul.Lambda))
	}

	if outcome.VariantID != nil {
		if err := s.variants.MarkVariantUsed(ctx, *outcome.VariantID, outcome.UserID, now); err != nil {
			log.Warn("failed to mark variant used", "error", err, "variant_id", *outcome.VariantID)
		} else {
			result.VariantMarked = true
		}
	}

	return result, nil
}

// fillFromHistory sets the repetition count and the time since the previous
// review from the item's history when the caller did not supply them.
func fillFromHistory(event *domain.ReviewEvent, history []domain.ReviewEvent, now time.Time) {
	if event.Reps == nil {
		reps := len(history) + 1
		event.Reps = &reps
	}
	if event.TimeSinceLastReviewSec == nil {
		elapsed := 0.0
		if len(history) > 0 {
			last := history[len(history)-1].Timestamp
			if now.After(last) {
				elapsed = now.Sub(last).Seconds()
			}
		}
		event.TimeSinceLastReviewSec = &elapsed
	}
}
