package scheduling

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/phrazzld/studycycle-api/internal/domain"
	"github.com/phrazzld/studycycle-api/internal/domain/schedule"
	"github.com/phrazzld/studycycle-api/internal/generation"
	"github.com/phrazzld/studycycle-api/internal/platform/logger"
	"github.com/phrazzld/studycycle-api/internal/platform/tracing"
	"github.com/phrazzld/studycycle-api/internal/service"
	"github.com/phrazzld/studycycle-api/internal/store"
)

const serviceName = "scheduling"

// DefaultGeneratorName is recorded as GeneratedBy when none is configured.
const DefaultGeneratorName = "ai"

// ErrNothingGenerated is returned when the generator produced no items.
var ErrNothingGenerated = fmt.Errorf("%w: no review items generated", generation.ErrGenerationFailed)

// LambdaService is the part of the calibration service used here.
type LambdaService interface {
	GetLambda(ctx context.Context, userID uuid.UUID) (*domain.UserLambda, error)
	OnlineUpdate(
		ctx context.Context,
		userID uuid.UUID,
		history []domain.ReviewEvent,
		y float64,
	) (*domain.UserLambda, error)
}

// Deps are the collaborators of a Service. Examples may be nil, in which
// case outcome features are not recorded.
type Deps struct {
	DB        store.TxBeginner
	Variants  store.VariantStore
	Events    store.ReviewEventStore
	Contents  store.ContentStore
	Examples  store.TrainingExampleStore
	Lambdas   LambdaService
	Generator generation.Generator

	// GeneratorName is stored in the metadata of generated variants.
	GeneratorName string

	// Now defaults to time.Now.
	Now func() time.Time
}

// Service implements the review loop.
type Service struct {
	db            store.TxBeginner
	variants      store.VariantStore
	events        store.ReviewEventStore
	contents      store.ContentStore
	examples      store.TrainingExampleStore
	lambdas       LambdaService
	generator     generation.Generator
	generatorName string
	now           func() time.Time
	logger        *slog.Logger
}

// NewService creates a Service.
func NewService(deps Deps, log *slog.Logger) (*Service, error) {
	switch {
	case deps.DB == nil:
		return nil, fmt.Errorf("%w: database cannot be nil", domain.ErrValidation)
	case deps.Variants == nil:
		return nil, fmt.Errorf("%w: variant store cannot be nil", domain.ErrValidation)
	case deps.Events == nil:
		return nil, fmt.Errorf("%w: review event store cannot be nil", domain.ErrValidation)
	case deps.Contents == nil:
		return nil, fmt.Errorf("%w: content store cannot be nil", domain.ErrValidation)
	case deps.Lambdas == nil:
		return nil, fmt.Errorf("%w: lambda service cannot be nil", domain.ErrValidation)
	case deps.Generator == nil:
		return nil, fmt.Errorf("%w: generator cannot be nil", domain.ErrValidation)
	}

	if deps.GeneratorName == "" {
		deps.GeneratorName = DefaultGeneratorName
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		db:            deps.DB,
		variants:      deps.Variants,
		events:        deps.Events,
		contents:      deps.Contents,
		examples:      deps.Examples,
		lambdas:       deps.Lambdas,
		generator:     deps.Generator,
		generatorName: deps.GeneratorName,
		now:           deps.Now,
		logger:        log.With(slog.String("component", "scheduling_service")),
	}, nil
}

// storedLambda returns the learner's stored rate, or nil when there is none
// or it cannot be read.
func (s *Service) storedLambda(ctx context.Context, userID uuid.UUID) *float64 {
	ul, err := s.lambdas.GetLambda(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrUserLambdaNotFound) {
			logger.FromContextOrDefault(ctx, s.logger).Warn("failed to read lambda, using default",
				"error", err,
				"user_id", userID)
		}
		return nil
	}
	return &ul.Lambda
}

// GenerationResult is the outcome of GenerateForContent.
type GenerationResult struct {
	Generated []domain.ReviewVariant `json:"generated"`
	Schedule  domain.Schedule        `json:"schedule"`
}

// GenerateForContent asks the generator for review items about a content
// item, schedules the learner's next review of it and stores one AI variant
// per item, all carrying that schedule, in a single transaction. An initial
// successful review event is then logged so the scheduler has a first
// signal; failing to log it only produces a warning.
func (s *Service) GenerateForContent(
	ctx context.Context,
	userID, contentID uuid.UUID,
	req generation.Request,
) (*GenerationResult, error) {
	ctx, span := tracing.Tracer().Start(ctx, "scheduling.GenerateForContent")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", userID.String()),
		attribute.String("content_id", contentID.String()),
	)
	log := logger.FromContextOrDefault(ctx, s.logger)

	content, err := s.contents.GetContentItem(ctx, contentID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	req.Context = content.Description
	if req.Context == "" {
		req.Context = content.Title
	}
	req = req.Normalize()

	items, err := s.generator.GenerateReviewItems(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNothingGenerated
	}
	span.SetAttributes(attribute.Int("item_count", len(items)))

	history, err := s.events.GetReviewEventsForUserItem(ctx, userID, contentID, 0)
	if err != nil {
		return nil, service.NewServiceError(serviceName, "generate", "failed to load review history", err)
	}

	now := s.now().UTC()
	sched := schedule.Compute(userID, history, s.storedLambda(ctx, userID), now)

	variants := make([]domain.ReviewVariant, 0, len(items))
	for _, item := range items {
		difficulty := item.Difficulty
		if difficulty == "" {
			difficulty = req.Difficulty
		}
		v, err := domain.NewReviewVariant(contentID, nil, domain.VariantTypeAI, item.Content, domain.VariantMetadata{
			GeneratedBy:   s.generatorName,
			GeneratedFrom: contentID.String(),
			Difficulty:    difficulty,
			ItemType:      item.Type,
			Schedule:      &sched,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", generation.ErrInvalidResponse, err)
		}
		variants = append(variants, *v)
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txVariants := s.variants.WithTx(tx)
		for i := range variants {
			if err := txVariants.CreateReviewVariant(ctx, &variants[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return nil, service.NewServiceError(serviceName, "generate", "failed to store variants", err)
	}

	s.seedEvent(ctx, userID, contentID, now)

	log.Info("generated review variants",
		"user_id", userID,
		"content_id", contentID,
		"count", len(variants),
		"next_review_at", sched.NextReviewAt)
	return &GenerationResult{Generated: variants, Schedule: sched}, nil
}

func (s *Service) seedEvent(ctx context.Context, userID, itemID uuid.UUID, at time.Time) {
	reps, responseTime, elapsed := 1, 0, 0.0
	event := &domain.ReviewEvent{
		ID:                     uuid.New(),
		UserID:                 userID,
		ItemID:                 itemID,
		Timestamp:              at,
		Correctness:            1,
		ResponseTimeMs:         &responseTime,
		Reps:                   &reps,
		TimeSinceLastReviewSec: &elapsed,
		CreatedAt:              at,
	}
	if _, err := s.events.LogReviewEvent(ctx, event); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to log initial review event",
			"error", err,
			"user_id", userID,
			"item_id", itemID)
	}
}

// DueVariants returns the variants scheduled for the learner whose review
// time has passed.
func (s *Service) DueVariants(ctx context.Context, userID uuid.UUID) ([]domain.ReviewVariant, error) {
	now := s.now().UTC()
	variants, err := s.variants.GetScheduledDueVariants(ctx, userID, now)
	if err != nil {
		return nil, service.NewServiceError(serviceName, "due_variants", "failed to list scheduled variants", err)
	}
	return schedule.FilterDue(variants, userID, now), nil
}

// ListVariants returns every variant of an item.
func (s *Service) ListVariants(ctx context.Context, itemID uuid.UUID) ([]domain.ReviewVariant, error) {
	variants, err := s.variants.GetReviewVariantsForItem(ctx, itemID)
	if err != nil {
		return nil, service.NewServiceError(serviceName, "list_variants", "failed to list variants", err)
	}
	return variants, nil
}

// CreateVariant stores a human-authored variant.
func (s *Service) CreateVariant(
	ctx context.Context,
	itemID uuid.UUID,
	authorID *uuid.UUID,
	content []byte,
	metadata domain.VariantMetadata,
) (*domain.ReviewVariant, error) {
	v, err := domain.NewReviewVariant(itemID, authorID, domain.VariantTypeHuman, content, metadata)
	if err != nil {
		return nil, err
	}
	if err := s.variants.CreateReviewVariant(ctx, v); err != nil {
		return nil, service.NewServiceError(serviceName, "create_variant", "failed to create variant", err)
	}
	return v, nil
}

// NextVariant chooses the variant of an item to show the learner next.
// It returns nil when the item has no variants.
func (s *Service) NextVariant(ctx context.Context, itemID, userID uuid.UUID) (*domain.ReviewVariant, error) {
	variants, err := s.ListVariants(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return schedule.ChooseVariant(variants, userID), nil
}

// MarkVariantUsed records that the learner was just shown a variant.
func (s *Service) MarkVariantUsed(ctx context.Context, variantID, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return fmt.Errorf("%w: user ID cannot be empty", domain.ErrValidation)
	}
	if err := s.variants.MarkVariantUsed(ctx, variantID, userID, s.now().UTC()); err != nil {
		if store.IsNotFoundError(err) {
			return err
		}
		return service.NewServiceError(serviceName, "mark_variant_used", "failed to mark variant used", err)
	}
	return nil
}

// LogReviewEvent validates and appends a review event. A zero timestamp is
// set to now.
func (s *Service) LogReviewEvent(ctx context.Context, event *domain.ReviewEvent) (*domain.ReviewEvent, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}

	stored, err := s.events.LogReviewEvent(ctx, event)
	if err != nil {
		return nil, service.NewServiceError(serviceName, "log_review_event", "failed to log review event", err)
	}
	return stored, nil
}

// AllReviewEvents returns the full review log.
func (s *Service) AllReviewEvents(ctx context.Context) ([]domain.ReviewEvent, error) {
	events, err := s.events.GetAllReviewEvents(ctx)
	if err != nil {
		return nil, service.NewServiceError(serviceName, "all_review_events", "failed to list review events", err)
	}
	return events, nil
}
