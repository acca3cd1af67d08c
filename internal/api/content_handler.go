package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/phrazzld/studycycle-api/internal/api/shared"
	"github.com/phrazzld/studycycle-api/internal/domain"
	"github.com/phrazzld/studycycle-api/internal/generation"
	"github.com/phrazzld/studycycle-api/internal/platform/logger"
	"github.com/phrazzld/studycycle-api/internal/service/scheduling"
)

// EngineService serves review suggestions and owns profiles and content.
type EngineService interface {
	SuggestReview(
		ctx context.Context,
		userID, contentID uuid.UUID,
		input domain.StudySessionInput,
	) (domain.ReviewSuggestion, error)
	SaveProfile(ctx context.Context, profile *domain.UserProfile) error
	CreateContentItem(ctx context.Context, item *domain.ContentItem) error
}

// GenerationService turns content into scheduled review variants.
type GenerationService interface {
	GenerateForContent(
		ctx context.Context,
		userID, contentID uuid.UUID,
		req generation.Request,
	) (*scheduling.GenerationResult, error)
}

// ContentHandler serves suggestions, profiles and content.
type ContentHandler struct {
	engine    EngineService
	generator GenerationService
	logger    *slog.Logger
}

// NewContentHandler creates a ContentHandler.
func NewContentHandler(engine EngineService, generator GenerationService, logger *slog.Logger) *ContentHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ContentHandler")
	}
	return &ContentHandler{
		engine:    engine,
		generator: generator,
		logger:    logger.With(slog.String("component", "content_handler")),
	}
}

// Suggest handles POST /api/suggestions.
func (h *ContentHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req SuggestionRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	suggestion, err := h.engine.SuggestReview(r.Context(), req.UserID, req.ContentID, req.StudySessionInput)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to suggest review")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, suggestion)
}

// SaveProfile handles PUT /api/profiles/{userID}.
func (h *ContentHandler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}
	var req ProfileRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	profile, err := domain.NewUserProfile(userID, req.MemoryFactor, req.PerformanceMean, req.Beta)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if err := h.engine.SaveProfile(r.Context(), profile); err != nil {
		HandleAPIError(w, r, err, "Failed to save profile")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, profile)
}

// CreateContent handles POST /api/content.
func (h *ContentHandler) CreateContent(w http.ResponseWriter, r *http.Request) {
	var req CreateContentRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	item, err := domain.NewContentItem(req.Title, req.Description, req.BaseStability, req.Difficulty)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if err := h.engine.CreateContentItem(r.Context(), item); err != nil {
		HandleAPIError(w, r, err, "Failed to create content item")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, item)
}

// Generate handles POST /api/content/{id}/generate.
func (h *ContentHandler) Generate(w http.ResponseWriter, r *http.Request) {
	contentID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req GenerateRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	res, err := h.generator.GenerateForContent(r.Context(), req.UserID, contentID, generation.Request{
		Difficulty: req.Difficulty,
		Modes:      req.Modes,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Generation failed")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Info("variants generated",
		slog.String("content_id", contentID.String()),
		slog.Int("count", len(res.Generated)))
	shared.RespondWithJSON(w, r, http.StatusCreated, res)
}
