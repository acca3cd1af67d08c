package scheduling

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/phrazzld/studycycle-api/internal/domain"
	"github.com/phrazzld/studycycle-api/internal/domain/interval"
	"github.com/phrazzld/studycycle-api/internal/platform/logger"
	"github.com/phrazzld/studycycle-api/internal/platform/tracing"
	"github.com/phrazzld/studycycle-api/internal/service"
)

// FallbackModelName identifies recommendations made from recent accuracy
// instead of the exponential baseline.
const FallbackModelName = "fallback-accuracy"

// PredictRequest asks for an interval recommendation. Every field is
// optional. Without SumTOverN the history stability is computed from the
// last interval.DefaultHistoryLimit events of UserID on ItemID; without
// Lambda the learner's stored rate is used, then interval.DefaultLambda.
type PredictRequest struct {
	UserID     uuid.UUID `json:"user_id"`
	ItemID     uuid.UUID `json:"item_id"`
	Candidates []float64 `json:"candidate_intervals" validate:"omitempty,dive,gt=0"`
	Lambda     *float64  `json:"lambda" validate:"omitempty,gt=0"`
	SumTOverN  *float64  `json:"sum_t_over_n" validate:"omitempty,gte=0"`
	NNext      *float64  `json:"n_next"`
	Target     *float64  `json:"target" validate:"omitempty,gt=0,lte=1"`
}

// Prediction is an interval recommendation.
type Prediction struct {
	RecommendedIntervalSec float64              `json:"recommended_interval_sec"`
	PredictedRetention     float64              `json:"predicted_retention"`
	Model                  string               `json:"model"`
	Lambda                 float64              `json:"lambda"`
	S                      float64              `json:"S"`
	Candidates             []interval.Candidate `json:"candidates,omitempty"`
}

// Predict recommends the smallest candidate interval whose predicted
// retention reaches the target. When the learner has no history for the
// item, or the candidate search fails, the interval is taken from the
// learner's recent accuracy instead.
func (s *Service) Predict(ctx context.Context, req PredictRequest) (*Prediction, error) {
	ctx, span := tracing.Tracer().Start(ctx, "scheduling.Predict")
	defer span.End()

	candidates := req.Candidates
	if candidates == nil {
		candidates = interval.DefaultCandidates()
	}
	target := interval.DefaultTarget
	if req.Target != nil {
		target = *req.Target
	}
	nNext := 1.0
	if req.NNext != nil && *req.NNext > 0 {
		nNext = *req.NNext
	}

	lambda := interval.DefaultLambda
	switch {
	case req.Lambda != nil:
		lambda = *req.Lambda
	case req.UserID != uuid.Nil:
		if stored := s.storedLambda(ctx, req.UserID); stored != nil {
			lambda = *stored
		}
	}

	var (
		stability float64
		history   []domain.ReviewEvent
	)
	hasUserItem := req.UserID != uuid.Nil && req.ItemID != uuid.Nil
	switch {
	case req.SumTOverN != nil:
		stability = *req.SumTOverN
	case hasUserItem:
		var err error
		history, err = s.events.GetReviewEventsForUserItem(ctx, req.UserID, req.ItemID, interval.DefaultHistoryLimit)
		if err != nil {
			return nil, service.NewServiceError(serviceName, "predict", "failed to load review history", err)
		}
		stability = interval.HistoryStability(history)
	}
	span.SetAttributes(
		attribute.Float64("lambda", lambda),
		attribute.Float64("stability", stability),
	)

	if req.SumTOverN == nil && hasUserItem && len(history) == 0 {
		return s.fallbackPrediction(ctx, req.UserID, nil, lambda, stability, nNext)
	}

	rec, err := interval.Recommend(candidates, interval.BaselinePredictor(lambda, stability, nNext), target)
	if err != nil {
		if !errors.Is(err, interval.ErrNoCandidates) {
			return nil, err
		}
		logger.FromContextOrDefault(ctx, s.logger).Warn("candidate search failed, using accuracy fallback",
			"error", err)
		return s.fallbackPrediction(ctx, req.UserID, history, lambda, stability, nNext)
	}

	return &Prediction{
		RecommendedIntervalSec: rec.Chosen.IntervalSec,
		PredictedRetention:     rec.Chosen.PredictedRetention,
		Model:                  interval.ModelName,
		Lambda:                 lambda,
		S:                      stability,
		Candidates:             rec.Candidates,
	}, nil
}

// fallbackPrediction maps recent accuracy to a fixed interval. Without item
// history the learner's recent events across all items are used.
func (s *Service) fallbackPrediction(
	ctx context.Context,
	userID uuid.UUID,
	history []domain.ReviewEvent,
	lambda, stability, nNext float64,
) (*Prediction, error) {
	if len(history) == 0 && userID != uuid.Nil {
		all, err := s.events.GetReviewEventsForUser(ctx, userID)
		if err != nil {
			return nil, service.NewServiceError(serviceName, "predict", "failed to load review events", err)
		}
		if len(all) > interval.DefaultHistoryLimit {
			all = all[len(all)-interval.DefaultHistoryLimit:]
		}
		history = all
	}

	accuracy := interval.MeanCorrectness(history)
	intervalSec := interval.FallbackInterval(accuracy).Seconds()
	return &Prediction{
		RecommendedIntervalSec: intervalSec,
		PredictedRetention:     interval.Retention(lambda, stability, intervalSec, nNext),
		Model:                  FallbackModelName,
		Lambda:                 lambda,
		S:                      stability,
	}, nil
}
