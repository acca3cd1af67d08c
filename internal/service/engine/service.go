package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/studycycle-api/internal/domain"
	"github.com/phrazzld/studycycle-api/internal/domain/memory"
	"github.com/phrazzld/studycycle-api/internal/domain/training"
	"github.com/phrazzld/studycycle-api/internal/platform/logger"
	"github.com/phrazzld/studycycle-api/internal/platform/tracing"
	"github.com/phrazzld/studycycle-api/internal/service"
	"github.com/phrazzld/studycycle-api/internal/store"
)

const serviceName = "engine"

// Engine errors
var (
	// ErrNotInitialized is returned by suggestion and training calls made
	// before Initialize.
	ErrNotInitialized = fmt.Errorf("%w: engine", service.ErrNotInitialized)

	// ErrSuggestionUnavailable is returned when the profile or the content
	// item needed for a suggestion does not exist.
	ErrSuggestionUnavailable = fmt.Errorf("%w: profile or content item not found", service.ErrUnavailable)
)

// Deps are the collaborators of a Service. Model and Trainer default to the
// standard memory model and a trainer with default configuration.
type Deps struct {
	Profiles     store.ProfileStore
	Contents     store.ContentStore
	Coefficients store.CoefficientStore
	Examples     store.TrainingExampleStore
	Model        memory.Model
	Trainer      *training.Trainer
}

// Service serves review suggestions and retrains the model.
type Service struct {
	profiles store.ProfileStore
	contents store.ContentStore
	coefs    store.CoefficientStore
	examples store.TrainingExampleStore
	model    memory.Model
	trainer  *training.Trainer
	logger   *slog.Logger

	mu          sync.RWMutex
	current     domain.ModelCoefficients
	initialized bool

	// trainMu serializes training runs.
	trainMu sync.Mutex
}

// NewService creates an uninitialized Service.
func NewService(deps Deps, log *slog.Logger) (*Service, error) {
	switch {
	case deps.Profiles == nil:
		return nil, fmt.Errorf("%w: profile store cannot be nil", domain.ErrValidation)
	case deps.Contents == nil:
		return nil, fmt.Errorf("%w: content store cannot be nil", domain.ErrValidation)
	case deps.Coefficients == nil:
		return nil, fmt.Errorf("%w: coefficient store cannot be nil", domain.ErrValidation)
	case deps.Examples == nil:
		return nil, fmt.Errorf("%w: training example store cannot be nil", domain.ErrValidation)
	}

	if deps.Model == nil {
		deps.Model = memory.NewDefaultModel()
	}
	if deps.Trainer == nil {
		deps.Trainer = training.NewTrainer(deps.Model, training.Config{})
	}
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		profiles: deps.Profiles,
		contents: deps.Contents,
		coefs:    deps.Coefficients,
		examples: deps.Examples,
		model:    deps.Model,
		trainer:  deps.Trainer,
		logger:   log.With(slog.String("component", "engine_service")),
	}, nil
}

// Initialize loads the stored coefficients. A missing set or a failing store
// falls back to the defaults; Initialize itself only fails when the stored
// set is corrupt.
func (s *Service) Initialize(ctx context.Context) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	coefs, err := s.coefs.LoadCoefficients(ctx)
	switch {
	case err == nil:
		if verr := coefs.Validate(); verr != nil {
			return service.NewServiceError(serviceName, "initialize", "stored coefficients are invalid", verr)
		}
		log.Info("loaded trained coefficients")
	case errors.Is(err, store.ErrCoefficientsNotFound):
		log.Info("no trained coefficients stored, using defaults")
		coefs = domain.DefaultCoefficients()
	default:
		log.Error("failed to load coefficients, using defaults", "error", err)
		coefs = domain.DefaultCoefficients()
	}

	s.mu.Lock()
	s.current = coefs
	s.initialized = true
	s.mu.Unlock()
	return nil
}

// Coefficients returns the coefficient set in use.
func (s *Service) Coefficients() (domain.ModelCoefficients, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return domain.ModelCoefficients{}, ErrNotInitialized
	}
	return s.current, nil
}

// SuggestReview looks up the learner's profile and the content item
// concurrently and runs the memory model on the session.
func (s *Service) SuggestReview(
	ctx context.Context,
	userID, contentID uuid.UUID,
	input domain.StudySessionInput,
) (domain.ReviewSuggestion, error) {
	ctx, span := tracing.Tracer().Start(ctx, "engine.SuggestReview")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", userID.String()),
		attribute.String("content_id", contentID.String()),
	)

	coefs, err := s.Coefficients()
	if err != nil {
		return domain.ReviewSuggestion{}, err
	}

	var (
		profile *domain.UserProfile
		content *domain.ContentItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = s.profiles.GetUserProfile(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		content, err = s.contents.GetContentItem(gctx, contentID)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		if store.IsNotFoundError(err) {
			span.SetStatus(codes.Error, "not found")
			return domain.ReviewSuggestion{}, fmt.Errorf("%w: %w", ErrSuggestionUnavailable, err)
		}
		span.SetStatus(codes.Error, err.Error())
		return domain.ReviewSuggestion{}, service.NewServiceError(serviceName, "suggest_review",
			"failed to load profile or content", err)
	}

	p := *profile
	if p.Beta == nil {
		beta := coefs.Beta
		p.Beta = &beta
	}

	suggestion := s.model.SuggestReview(input, *content, p, coefs)
	span.SetAttributes(
		attribute.Float64("probability", suggestion.Probability),
		attribute.Bool("should_review", suggestion.ShouldReview),
	)
	return suggestion, nil
}

// Train fits new coefficients to every logged training example, starting
// from the current set, then saves and installs them. With no examples the
// current set is returned unchanged and nothing is saved. Concurrent calls
// run one at a time.
func (s *Service) Train(ctx context.Context, observer training.Observer) (domain.ModelCoefficients, error) {
	ctx, span := tracing.Tracer().Start(ctx, "engine.Train")
	defer span.End()
	log := logger.FromContextOrDefault(ctx, s.logger)

	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	initial, err := s.Coefficients()
	if err != nil {
		return domain.ModelCoefficients{}, err
	}

	examples, err := s.examples.ListTrainingExamples(ctx)
	if err != nil {
		span.RecordError(err)
		return initial, service.NewServiceError(serviceName, "train", "failed to list training examples", err)
	}
	span.SetAttributes(attribute.Int("example_count", len(examples)))

	if len(examples) == 0 {
		log.Info("no training examples, keeping current coefficients")
		return initial, nil
	}

	trained, err := s.trainer.Train(ctx, examples, initial, observer)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return initial, service.NewServiceError(serviceName, "train", "training did not complete", err)
	}

	if err := s.coefs.SaveCoefficients(ctx, trained); err != nil {
		span.RecordError(err)
		return initial, service.NewServiceError(serviceName, "train", "failed to save coefficients", err)
	}

	eval := s.trainer.Evaluate(examples, trained)
	s.mu.Lock()
	s.current = trained
	s.mu.Unlock()

	log.Info("coefficients retrained",
		"example_count", len(examples),
		"loss", eval.MeanLoss,
		"accuracy", eval.Accuracy)
	return trained, nil
}

// SaveProfile validates and upserts a learner profile.
func (s *Service) SaveProfile(ctx context.Context, profile *domain.UserProfile) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	if err := s.profiles.SaveUserProfile(ctx, profile); err != nil {
		return service.NewServiceError(serviceName, "save_profile", "failed to save profile", err)
	}
	return nil
}

// CreateContentItem validates and stores a new content item.
func (s *Service) CreateContentItem(ctx context.Context, item *domain.ContentItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	if err := s.contents.CreateContentItem(ctx, item); err != nil {
		return service.NewServiceError(serviceName, "create_content", "failed to create content item", err)
	}
	return nil
}

// LogTrainingExample appends a labeled example for the next training run.
func (s *Service) LogTrainingExample(ctx context.Context, example *domain.TrainingExample) error {
	if err := s.examples.LogTrainingExample(ctx, example); err != nil {
		return service.NewServiceError(serviceName, "log_training_example", "failed to log training example", err)
	}
	return nil
}
