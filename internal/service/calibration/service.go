// Package calibration orchestrates per-learner forgetting-rate updates.
//
// Rates are read local-first: the local store (the Redis cache or its
// in-process fallback) answers when it can and the durable backend is
// consulted on a miss. Writes go to the local store and are then pushed to
// the backend asynchronously by a lambda sync task requested through the
// event emitter. A failed sync request is logged and never surfaces to the
// caller that produced the new rate.
package calibration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/studycycle-api/internal/domain"
	calc "github.com/phrazzld/studycycle-api/internal/domain/calibration"
	"github.com/phrazzld/studycycle-api/internal/events"
	"github.com/phrazzld/studycycle-api/internal/platform/logger"
	"github.com/phrazzld/studycycle-api/internal/service"
	"github.com/phrazzld/studycycle-api/internal/store"
)

const serviceName = "calibration"

// Config tunes the update rules. Zero values take the package defaults of
// domain/calibration.
type Config struct {
	AutoAdjust calc.AutoAdjustConfig
	Online     calc.OnlineConfig

	// EstimateWorkers bounds concurrent per-user estimation; zero means GOMAXPROCS.
	EstimateWorkers int
}

// Service reads and updates forgetting rates.
type Service struct {
	local   store.LambdaStore
	backend store.LambdaStore
	events  store.ReviewEventStore
	emitter events.EventEmitter
	config  Config
	logger  *slog.Logger
}

// NewService creates a Service. backend may be nil when there is no durable
// store, in which case the local store is authoritative and no sync is
// requested. emitter may be nil for the same reason.
func NewService(
	local store.LambdaStore,
	backend store.LambdaStore,
	reviewEvents store.ReviewEventStore,
	emitter events.EventEmitter,
	config Config,
	log *slog.Logger,
) (*Service, error) {
	if local == nil {
		return nil, fmt.Errorf("%w: local lambda store cannot be nil", domain.ErrValidation)
	}
	if reviewEvents == nil {
		return nil, fmt.Errorf("%w: review event store cannot be nil", domain.ErrValidation)
	}
	if config.EstimateWorkers <= 0 {
		config.EstimateWorkers = runtime.GOMAXPROCS(0)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		local:   local,
		backend: backend,
		events:  reviewEvents,
		emitter: emitter,
		config:  config,
		logger:  log.With(slog.String("component", "calibration_service")),
	}, nil
}

// GetLambda returns the learner's rate, reading the local store first. A
// backend hit is copied into the local store. store.ErrUserLambdaNotFound
// means neither store has a rate.
func (s *Service) GetLambda(ctx context.Context, userID uuid.UUID) (*domain.UserLambda, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	ul, err := s.local.GetUserLambda(ctx, userID)
	if err == nil {
		return ul, nil
	}
	if !store.IsNotFoundError(err) {
		log.Warn("local lambda read failed, trying backend", "error", err, "user_id", userID)
	}
	if s.backend == nil {
		return nil, store.ErrUserLambdaNotFound
	}

	ul, err = s.backend.GetUserLambda(ctx, userID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, store.ErrUserLambdaNotFound
		}
		return nil, service.NewServiceError(serviceName, "get_lambda", "failed to read lambda", err)
	}

	if err := s.local.SetUserLambda(ctx, ul); err != nil {
		log.Warn("failed to populate local lambda", "error", err, "user_id", userID)
	}
	return ul, nil
}

// currentLambda returns the stored rate or nil when there is none.
func (s *Service) currentLambda(ctx context.Context, userID uuid.UUID) (*float64, error) {
	ul, err := s.GetLambda(ctx, userID)
	if errors.Is(err, store.ErrUserLambdaNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ul.Lambda, nil
}

// SetLambda validates the rate, writes it locally and requests a backend sync.
func (s *Service) SetLambda(
	ctx context.Context,
	userID uuid.UUID,
	lambda float64,
	source domain.LambdaSource,
) (*domain.UserLambda, error) {
	ul, err := domain.NewUserLambda(userID, lambda, source)
	if err != nil {
		return nil, err
	}

	if err := s.local.SetUserLambda(ctx, ul); err != nil {
		return nil, service.NewServiceError(serviceName, "set_lambda", "failed to store lambda", err)
	}

	s.requestSync(ctx, ul)
	return ul, nil
}

func (s *Service) requestSync(ctx context.Context, ul *domain.UserLambda) {
	if s.emitter == nil || s.backend == nil {
		return
	}
	if err := events.Emit(ctx, s.emitter, events.TypeLambdaSync, ul); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to request lambda sync",
			"error", err,
			"user_id", ul.UserID,
			"lambda", ul.Lambda)
	}
}

// AutoAdjustResult is the outcome of AutoAdjust.
type AutoAdjustResult struct {
	calc.AutoAdjustResult
	Stored *domain.UserLambda `json:"stored"`
}

// AutoAdjust moves the learner's rate toward the target accuracy using their
// most recent review events and stores the result with source auto-adjust.
// Non-zero fields of overrides replace the configured window, learning rate
// and target. It returns calc.ErrInsufficientData when the learner has no
// events.
func (s *Service) AutoAdjust(
	ctx context.Context,
	userID uuid.UUID,
	overrides calc.AutoAdjustConfig,
) (*AutoAdjustResult, error) {
	history, err := s.events.GetReviewEventsForUser(ctx, userID)
	if err != nil {
		return nil, service.NewServiceError(serviceName, "auto_adjust", "failed to load review events", err)
	}

	current, err := s.currentLambda(ctx, userID)
	if err != nil {
		return nil, err
	}

	cfg := s.config.AutoAdjust
	if overrides.Window > 0 {
		cfg.Window = overrides.Window
	}
	if overrides.LearningRate != 0 {
		cfg.LearningRate = overrides.LearningRate
	}
	if overrides.Target != 0 {
		cfg.Target = overrides.Target
	}

	res, err := calc.AutoAdjust(history, current, cfg)
	if err != nil {
		return nil, err
	}

	stored, err := s.SetLambda(ctx, userID, res.Lambda, domain.LambdaSourceAutoAdjust)
	if err != nil {
		return nil, err
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("lambda auto-adjusted",
		"user_id", userID,
		"previous", res.Previous,
		"lambda", res.Lambda,
		"avg_correctness", res.AverageCorrectness)
	return &AutoAdjustResult{AutoAdjustResult: res, Stored: stored}, nil
}

// OnlineUpdate takes one gradient step on the learner's rate from an
// observed outcome y (1 recalled, 0 forgotten), given the item's review
// history, and stores the result with source online.
func (s *Service) OnlineUpdate(
	ctx context.Context,
	userID uuid.UUID,
	history []domain.ReviewEvent,
	y float64,
) (*domain.UserLambda, error) {
	current, err := s.currentLambda(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := calc.OnlineUpdate(history, current, calc.Observation{Y: y}, s.config.Online)
	return s.SetLambda(ctx, userID, res.Lambda, domain.LambdaSourceOnline)
}

// EstimateAll fits a rate for every learner in the review log with the grid
// search and writes each to the backend, and to the local store, with source
// worker. Learners are processed concurrently. It returns the number of
// rates written.
func (s *Service) EstimateAll(ctx context.Context) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	all, err := s.events.GetAllReviewEvents(ctx)
	if err != nil {
		return 0, service.NewServiceError(serviceName, "estimate_all", "failed to load review events", err)
	}

	samples := calc.BuildSamples(all)
	target := s.backend
	if target == nil {
		target = s.local
	}

	results := make(chan *domain.UserLambda, len(samples))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.EstimateWorkers)
	for userID, userSamples := range samples {
		g.Go(func() error {
			lambda, ok := calc.EstimateLambda(userSamples)
			if !ok {
				return nil
			}
			ul, err := domain.NewUserLambda(userID, lambda, domain.LambdaSourceWorker)
			if err != nil {
				return err
			}
			if err := target.SetUserLambda(gctx, ul); err != nil {
				return fmt.Errorf("failed to store lambda for user %s: %w", userID, err)
			}
			results <- ul
			return nil
		})
	}
	waitErr := g.Wait()
	close(results)

	written := 0
	for ul := range results {
		written++
		if target != s.local {
			if err := s.local.SetUserLambda(ctx, ul); err != nil {
				log.Warn("failed to refresh local lambda", "error", err, "user_id", ul.UserID)
			}
		}
	}

	if waitErr != nil {
		return written, service.NewServiceError(serviceName, "estimate_all", "estimation incomplete", waitErr)
	}
	log.Info("lambda estimation complete", "users", len(samples), "written", written)
	return written, nil
}
