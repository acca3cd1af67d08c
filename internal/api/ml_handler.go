package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/phrazzld/studycycle-api/internal/api/shared"
	"github.com/phrazzld/studycycle-api/internal/domain"
	calc "github.com/phrazzld/studycycle-api/internal/domain/calibration"
	"github.com/phrazzld/studycycle-api/internal/events"
	"github.com/phrazzld/studycycle-api/internal/platform/logger"
	calibrationsvc "github.com/phrazzld/studycycle-api/internal/service/calibration"
	"github.com/phrazzld/studycycle-api/internal/service/scheduling"
	"github.com/phrazzld/studycycle-api/internal/store"
	"github.com/phrazzld/studycycle-api/internal/task"
)

// LambdaService reads and updates forgetting rates.
type LambdaService interface {
	GetLambda(ctx context.Context, userID uuid.UUID) (*domain.UserLambda, error)
	SetLambda(
		ctx context.Context,
		userID uuid.UUID,
		lambda float64,
		source domain.LambdaSource,
	) (*domain.UserLambda, error)
	AutoAdjust(
		ctx context.Context,
		userID uuid.UUID,
		overrides calc.AutoAdjustConfig,
	) (*calibrationsvc.AutoAdjustResult, error)
}

// ReviewLogService is the event log and prediction side of scheduling.
type ReviewLogService interface {
	LogReviewEvent(ctx context.Context, event *domain.ReviewEvent) (*domain.ReviewEvent, error)
	AllReviewEvents(ctx context.Context) ([]domain.ReviewEvent, error)
	Predict(ctx context.Context, req scheduling.PredictRequest) (*scheduling.Prediction, error)
	DueVariants(ctx context.Context, userID uuid.UUID) ([]domain.ReviewVariant, error)
}

// CoefficientSource exposes the coefficients in use.
type CoefficientSource interface {
	Coefficients() (domain.ModelCoefficients, error)
}

// MLHandler serves the /api/ml routes.
type MLHandler struct {
	lambdas LambdaService
	reviews ReviewLogService
	coefs   CoefficientSource
	emitter events.EventEmitter
	logger  *slog.Logger
}

// NewMLHandler creates an MLHandler. Training and estimation requests are
// emitted as task request events.
func NewMLHandler(
	lambdas LambdaService,
	reviews ReviewLogService,
	coefs CoefficientSource,
	emitter events.EventEmitter,
	logger *slog.Logger,
) *MLHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for MLHandler")
	}
	return &MLHandler{
		lambdas: lambdas,
		reviews: reviews,
		coefs:   coefs,
		emitter: emitter,
		logger:  logger.With(slog.String("component", "ml_handler")),
	}
}

// LogEvent handles POST /api/ml/events.
func (h *MLHandler) LogEvent(w http.ResponseWriter, r *http.Request) {
	var req ReviewEventRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	event := &domain.ReviewEvent{
		UserID:                 req.UserID,
		ItemID:                 req.ItemID,
		Correctness:            *req.Correctness,
		ResponseTimeMs:         req.ResponseTimeMs,
		Reps:                   req.NReps,
		TimeSinceLastReviewSec: req.TimeSinceLastReviewSec,
	}
	if req.Timestamp != nil {
		event.Timestamp = req.Timestamp.UTC()
	}

	stored, err := h.reviews.LogReviewEvent(r.Context(), event)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to log review event")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, stored)
}

// ListEvents handles GET /api/ml/events.
func (h *MLHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	all, err := h.reviews.AllReviewEvents(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to fetch review events")
		return
	}
	if all == nil {
		all = []domain.ReviewEvent{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, all)
}

// GetLambda handles GET /api/ml/lambda/{userID}. A learner without a rate
// gets a JSON null.
func (h *MLHandler) GetLambda(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}

	ul, err := h.lambdas.GetLambda(r.Context(), userID)
	if errors.Is(err, store.ErrUserLambdaNotFound) {
		shared.RespondWithJSON(w, r, http.StatusOK, nil)
		return
	}
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get user lambda")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, LambdaResponse{
		Lambda:    ul.Lambda,
		Source:    ul.Source,
		UpdatedAt: ul.UpdatedAt,
	})
}

// SetLambda handles POST /api/ml/lambda/{userID}.
func (h *MLHandler) SetLambda(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}
	var req SetLambdaRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	if _, err := h.lambdas.SetLambda(r.Context(), userID, *req.Lambda, req.Source); err != nil {
		HandleAPIError(w, r, err, "Failed to set user lambda")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdjustLambda handles POST /api/ml/adjust-lambda/{userID}.
func (h *MLHandler) AdjustLambda(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}
	var req AdjustLambdaRequest
	if !decodeAndValidate(w, r, &req, true) {
		return
	}

	var overrides calc.AutoAdjustConfig
	if req.LearningRate != nil {
		overrides.LearningRate = *req.LearningRate
	}
	if req.Window != nil {
		overrides.Window = *req.Window
	}

	res, err := h.lambdas.AutoAdjust(r.Context(), userID, overrides)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to adjust lambda")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, res)
}

// Predict handles POST /api/ml/predict.
func (h *MLHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var req scheduling.PredictRequest
	if !decodeAndValidate(w, r, &req, true) {
		return
	}

	p, err := h.reviews.Predict(r.Context(), req)
	if err != nil {
		HandleAPIError(w, r, err, "Prediction failed")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, p)
}

// Train handles POST /api/ml/train by requesting a training task.
func (h *MLHandler) Train(w http.ResponseWriter, r *http.Request) {
	h.requestTask(w, r, events.TypeModelTraining, task.TrainingRequest{Trigger: "api"})
}

// EstimateLambdas handles POST /api/ml/estimate-lambdas by requesting a
// lambda estimation task.
func (h *MLHandler) EstimateLambdas(w http.ResponseWriter, r *http.Request) {
	h.requestTask(w, r, events.TypeLambdaEstimation, nil)
}

func (h *MLHandler) requestTask(w http.ResponseWriter, r *http.Request, eventType string, payload any) {
	if err := events.Emit(r.Context(), h.emitter, eventType, payload); err != nil {
		HandleAPIError(w, r, err, "Failed to enqueue task")
		return
	}
	logger.FromContextOrDefault(r.Context(), h.logger).Info("task requested", "task", eventType)
	shared.RespondWithJSON(w, r, http.StatusAccepted, TaskAcceptedResponse{Status: "accepted", Task: eventType})
}

// Coefficients handles GET /api/ml/coefficients.
func (h *MLHandler) Coefficients(w http.ResponseWriter, r *http.Request) {
	coefs, err := h.coefs.Coefficients()
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get coefficients")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, coefs)
}

// Schedule handles GET /api/ml/schedule/{userID}.
func (h *MLHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}

	due, err := h.reviews.DueVariants(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list scheduled variants")
		return
	}

	items := make([]ScheduledItem, len(due))
	for i, v := range due {
		items[i] = ScheduledItem{ID: v.ID, ItemID: v.ItemID, Content: v.Content, Metadata: v.Metadata}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, ScheduleResponse{Count: len(items), Items: items})
}
