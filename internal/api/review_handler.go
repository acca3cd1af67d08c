package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/phrazzld/studycycle-api/internal/api/shared"
	"github.com/phrazzld/studycycle-api/internal/domain"
	"github.com/phrazzld/studycycle-api/internal/platform/logger"
	"github.com/phrazzld/studycycle-api/internal/service/scheduling"
)

// VariantService manages review variants and outcomes.
type VariantService interface {
	ListVariants(ctx context.Context, itemID uuid.UUID) ([]domain.ReviewVariant, error)
	CreateVariant(
		ctx context.Context,
		itemID uuid.UUID,
		authorID *uuid.UUID,
		content []byte,
		metadata domain.VariantMetadata,
	) (*domain.ReviewVariant, error)
	NextVariant(ctx context.Context, itemID, userID uuid.UUID) (*domain.ReviewVariant, error)
	MarkVariantUsed(ctx context.Context, variantID, userID uuid.UUID) error
	RecordReviewOutcome(ctx context.Context, outcome scheduling.Outcome) (*scheduling.OutcomeResult, error)
}

// ReviewHandler serves the /api/reviews routes.
type ReviewHandler struct {
	variants VariantService
	logger   *slog.Logger
}

// NewReviewHandler creates a ReviewHandler.
func NewReviewHandler(variants VariantService, logger *slog.Logger) *ReviewHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ReviewHandler")
	}
	return &ReviewHandler{
		variants: variants,
		logger:   logger.With(slog.String("component", "review_handler")),
	}
}

// RecordOutcome handles POST /api/reviews/outcomes.
func (h *ReviewHandler) RecordOutcome(w http.ResponseWriter, r *http.Request) {
	var req OutcomeRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	res, err := h.variants.RecordReviewOutcome(r.Context(), scheduling.Outcome{
		UserID:                 req.UserID,
		ItemID:                 req.ItemID,
		VariantID:              req.VariantID,
		Correct:                *req.Correct,
		ResponseTimeMs:         req.ResponseTimeMs,
		Reps:                   req.NReps,
		TimeSinceLastReviewSec: req.TimeSinceLastReviewSec,
		Features:               req.Features,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to record review outcome")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, res)
}

// ListVariants handles GET /api/reviews/{itemID}/variants.
func (h *ReviewHandler) ListVariants(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathUUID(w, r, "itemID")
	if !ok {
		return
	}

	variants, err := h.variants.ListVariants(r.Context(), itemID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list variants")
		return
	}
	if variants == nil {
		variants = []domain.ReviewVariant{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, variants)
}

// CreateVariant handles POST /api/reviews/{itemID}/variants.
func (h *ReviewHandler) CreateVariant(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathUUID(w, r, "itemID")
	if !ok {
		return
	}
	var req CreateVariantRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	v, err := h.variants.CreateVariant(r.Context(), itemID, req.AuthorID, req.Content, req.Metadata)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create variant")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, v)
}

// NextVariant handles GET /api/reviews/{itemID}/variants/next?user_id=.
// It answers 204 when the item has no variants.
func (h *ReviewHandler) NextVariant(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	itemID, ok := pathUUID(w, r, "itemID")
	if !ok {
		return
	}

	var userID uuid.UUID
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		var err error
		if userID, err = uuid.Parse(raw); err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid user_id", err)
			return
		}
	}

	v, err := h.variants.NextVariant(r.Context(), itemID, userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to choose variant")
		return
	}
	if v == nil {
		log.Debug("no variants for item", slog.String("item_id", itemID.String()))
		w.WriteHeader(http.StatusNoContent)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, v)
}

// MarkUsed handles POST /api/reviews/variants/{variantID}/used.
func (h *ReviewHandler) MarkUsed(w http.ResponseWriter, r *http.Request) {
	variantID, ok := pathUUID(w, r, "variantID")
	if !ok {
		return
	}
	var req MarkUsedRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	if err := h.variants.MarkVariantUsed(r.Context(), variantID, req.UserID); err != nil {
		HandleAPIError(w, r, err, "Failed to mark variant used")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
