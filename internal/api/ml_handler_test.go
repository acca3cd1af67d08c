package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/studycycle-api/internal/domain"
	calc "github.com/phrazzld/studycycle-api/internal/domain/calibration"
	"github.com/phrazzld/studycycle-api/internal/events"
	"github.com/phrazzld/studycycle-api/internal/platform/logger"
	calibrationsvc "github.com/phrazzld/studycycle-api/internal/service/calibration"
	"github.com/phrazzld/studycycle-api/internal/service/engine"
	"github.com/phrazzld/studycycle-api/internal/service/scheduling"
	"github.com/phrazzld/studycycle-api/internal/store"
	"github.com/phrazzld/studycycle-api/internal/task"
)

func newMLHandler(lambdas *mockLambdaService, reviews *mockReviewLog, coefs CoefficientSource, emitter events.EventEmitter) *MLHandler {
	if lambdas == nil {
		lambdas = &mockLambdaService{}
	}
	if reviews == nil {
		reviews = &mockReviewLog{}
	}
	if coefs == nil {
		coefs = mockCoefficients{coefs: domain.DefaultCoefficients()}
	}
	if emitter == nil {
		emitter = &captureEmitter{}
	}
	return NewMLHandler(lambdas, reviews, coefs, emitter, logger.Discard())
}

func TestNewMLHandlerPanicsWithoutLogger(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { NewMLHandler(nil, nil, nil, nil, nil) })
}

func TestLogEvent(t *testing.T) {
	t.Parallel()

	userID, itemID := uuid.New(), uuid.New()

	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		wantCalled bool
	}{
		{
			name:       "logged",
			body:       `{"user_id":"` + userID.String() + `","item_id":"` + itemID.String() + `","correctness":1,"n_reps":3}`,
			wantStatus: http.StatusCreated,
			wantCalled: true,
		},
		{
			name:       "missing correctness",
			body:       `{"user_id":"` + userID.String() + `","item_id":"` + itemID.String() + `"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "correctness out of range",
			body:       `{"user_id":"` + userID.String() + `","item_id":"` + itemID.String() + `","correctness":2}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       `{"user_id":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "store failure",
			body:       `{"user_id":"` + userID.String() + `","item_id":"` + itemID.String() + `","correctness":0}`,
			serviceErr: errors.New("db down"),
			wantStatus: http.StatusInternalServerError,
			wantCalled: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			called := false
			reviews := &mockReviewLog{
				logFn: func(_ context.Context, event *domain.ReviewEvent) (*domain.ReviewEvent, error) {
					called = true
					if tc.serviceErr != nil {
						return nil, tc.serviceErr
					}
					assert.Equal(t, userID, event.UserID)
					assert.Equal(t, itemID, event.ItemID)
					event.ID = uuid.New()
					return event, nil
				},
			}
			h := newMLHandler(nil, reviews, nil, nil)

			rec := serve(t, http.MethodPost, "/api/ml/events", "/api/ml/events", tc.body, h.LogEvent)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantCalled, called)
			if tc.wantStatus == http.StatusCreated {
				got := decodeBody[domain.ReviewEvent](t, rec)
				assert.Equal(t, 1, got.Correctness)
				require.NotNil(t, got.Reps)
				assert.Equal(t, 3, *got.Reps)
			}
		})
	}
}

func TestListEventsNeverNull(t *testing.T) {
	t.Parallel()

	h := newMLHandler(nil, &mockReviewLog{
		allFn: func(context.Context) ([]domain.ReviewEvent, error) { return nil, nil },
	}, nil, nil)

	rec := serve(t, http.MethodGet, "/api/ml/events", "/api/ml/events", "", h.ListEvents)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetLambda(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	updated := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		target     string
		stored     *domain.UserLambda
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "stored",
			target:     "/api/ml/lambda/" + userID.String(),
			stored:     &domain.UserLambda{UserID: userID, Lambda: 0.2, Source: domain.LambdaSourceWorker, UpdatedAt: updated},
			wantStatus: http.StatusOK,
			wantBody:   `{"lambda":0.2,"source":"worker","updated_at":"2025-05-01T00:00:00Z"}`,
		},
		{
			name:       "none stored",
			target:     "/api/ml/lambda/" + userID.String(),
			err:        store.ErrUserLambdaNotFound,
			wantStatus: http.StatusOK,
			wantBody:   `null`,
		},
		{
			name:       "invalid id",
			target:     "/api/ml/lambda/not-a-uuid",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "backend failure",
			target:     "/api/ml/lambda/" + userID.String(),
			err:        errors.New("redis: connection refused"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newMLHandler(&mockLambdaService{
				getFn: func(_ context.Context, id uuid.UUID) (*domain.UserLambda, error) {
					assert.Equal(t, userID, id)
					return tc.stored, tc.err
				},
			}, nil, nil, nil)

			rec := serve(t, http.MethodGet, "/api/ml/lambda/{userID}", tc.target, "", h.GetLambda)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantBody != "" {
				assert.JSONEq(t, tc.wantBody, rec.Body.String())
			}
			if tc.wantStatus == http.StatusInternalServerError {
				assert.Equal(t, "Failed to get user lambda", errorMessage(t, rec))
				assert.NotContains(t, rec.Body.String(), "redis")
			}
		})
	}
}

func TestSetLambda(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	target := "/api/ml/lambda/" + userID.String()

	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantSource domain.LambdaSource
	}{
		{name: "default source", body: `{"lambda":0.25}`, wantStatus: http.StatusNoContent},
		{
			name:       "explicit source",
			body:       `{"lambda":0.25,"source":"auto-adjust"}`,
			wantStatus: http.StatusNoContent,
			wantSource: domain.LambdaSourceAutoAdjust,
		},
		{name: "missing lambda", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "non-positive lambda", body: `{"lambda":0}`, wantStatus: http.StatusBadRequest},
		{name: "unknown source", body: `{"lambda":0.1,"source":"manual"}`, wantStatus: http.StatusBadRequest},
		{
			name:       "domain rejection",
			body:       `{"lambda":0.1}`,
			err:        domain.ErrInvalidLambdaSource,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newMLHandler(&mockLambdaService{
				setFn: func(_ context.Context, id uuid.UUID, lambda float64, source domain.LambdaSource) (*domain.UserLambda, error) {
					assert.Equal(t, userID, id)
					assert.Equal(t, tc.wantSource, source)
					if tc.err != nil {
						return nil, tc.err
					}
					return &domain.UserLambda{UserID: id, Lambda: lambda, Source: source}, nil
				},
			}, nil, nil, nil)

			rec := serve(t, http.MethodPost, "/api/ml/lambda/{userID}", target, tc.body, h.SetLambda)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantStatus == http.StatusNoContent {
				assert.Empty(t, rec.Body.String())
			}
		})
	}
}

func TestAdjustLambda(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	target := "/api/ml/adjust-lambda/" + userID.String()

	tests := []struct {
		name          string
		body          string
		err           error
		wantStatus    int
		wantOverrides calc.AutoAdjustConfig
		wantMessage   string
	}{
		{name: "empty body uses defaults", wantStatus: http.StatusOK},
		{
			name:          "overrides",
			body:          `{"learning_rate":0.5,"window":10}`,
			wantStatus:    http.StatusOK,
			wantOverrides: calc.AutoAdjustConfig{LearningRate: 0.5, Window: 10},
		},
		{name: "invalid window", body: `{"window":0}`, wantStatus: http.StatusBadRequest},
		{
			name:        "no events",
			err:         calc.ErrInsufficientData,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Not enough events to adjust lambda",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newMLHandler(&mockLambdaService{
				adjustFn: func(_ context.Context, id uuid.UUID, overrides calc.AutoAdjustConfig) (*calibrationsvc.AutoAdjustResult, error) {
					assert.Equal(t, tc.wantOverrides, overrides)
					if tc.err != nil {
						return nil, tc.err
					}
					return &calibrationsvc.AutoAdjustResult{
						AutoAdjustResult: calc.AutoAdjustResult{Lambda: 0.12, Previous: 0.1, AverageCorrectness: 0.5, WindowSize: 4},
						Stored:           &domain.UserLambda{UserID: id, Lambda: 0.12, Source: domain.LambdaSourceAutoAdjust},
					}, nil
				},
			}, nil, nil, nil)

			rec := serve(t, http.MethodPost, "/api/ml/adjust-lambda/{userID}", target, tc.body, h.AdjustLambda)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantMessage != "" {
				assert.Equal(t, tc.wantMessage, errorMessage(t, rec))
			}
			if tc.wantStatus == http.StatusOK {
				got := decodeBody[map[string]any](t, rec)
				assert.InDelta(t, 0.12, got["lambda"], 1e-12)
				assert.InDelta(t, 0.1, got["previous"], 1e-12)
				assert.NotNil(t, got["stored"])
			}
		})
	}
}

func TestPredictHandler(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("forwards request", func(t *testing.T) {
		t.Parallel()
		h := newMLHandler(nil, &mockReviewLog{
			predictFn: func(_ context.Context, req scheduling.PredictRequest) (*scheduling.Prediction, error) {
				assert.Equal(t, userID, req.UserID)
				assert.Equal(t, []float64{3600, 86400}, req.Candidates)
				require.NotNil(t, req.Target)
				assert.InDelta(t, 0.9, *req.Target, 1e-12)
				return &scheduling.Prediction{RecommendedIntervalSec: 3600, PredictedRetention: 0.93, Model: "memory-decay"}, nil
			},
		}, nil, nil)

		body := `{"user_id":"` + userID.String() + `","candidate_intervals":[3600,86400],"target":0.9}`
		rec := serve(t, http.MethodPost, "/api/ml/predict", "/api/ml/predict", body, h.Predict)

		require.Equal(t, http.StatusOK, rec.Code)
		got := decodeBody[scheduling.Prediction](t, rec)
		assert.InDelta(t, 3600, got.RecommendedIntervalSec, 1e-9)
	})

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()
		h := newMLHandler(nil, &mockReviewLog{
			predictFn: func(_ context.Context, req scheduling.PredictRequest) (*scheduling.Prediction, error) {
				assert.Nil(t, req.Candidates)
				return &scheduling.Prediction{Model: "memory-decay"}, nil
			},
		}, nil, nil)

		rec := serve(t, http.MethodPost, "/api/ml/predict", "/api/ml/predict", "", h.Predict)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects non-positive candidate", func(t *testing.T) {
		t.Parallel()
		h := newMLHandler(nil, &mockReviewLog{}, nil, nil)

		rec := serve(t, http.MethodPost, "/api/ml/predict", "/api/ml/predict", `{"candidate_intervals":[60,-1]}`, h.Predict)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTaskRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		handler  func(h *MLHandler) http.HandlerFunc
		wantType string
	}{
		{
			name:     "train",
			path:     "/api/ml/train",
			handler:  func(h *MLHandler) http.HandlerFunc { return h.Train },
			wantType: events.TypeModelTraining,
		},
		{
			name:     "estimate lambdas",
			path:     "/api/ml/estimate-lambdas",
			handler:  func(h *MLHandler) http.HandlerFunc { return h.EstimateLambdas },
			wantType: events.TypeLambdaEstimation,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			emitter := &captureEmitter{}
			h := newMLHandler(nil, nil, nil, emitter)

			rec := serve(t, http.MethodPost, tc.path, tc.path, "", tc.handler(h))

			require.Equal(t, http.StatusAccepted, rec.Code)
			got := decodeBody[TaskAcceptedResponse](t, rec)
			assert.Equal(t, "accepted", got.Status)
			assert.Equal(t, tc.wantType, got.Task)
			require.Len(t, emitter.events, 1)
			assert.Equal(t, tc.wantType, emitter.events[0].Type)
		})
	}

	t.Run("training trigger", func(t *testing.T) {
		t.Parallel()
		emitter := &captureEmitter{}
		h := newMLHandler(nil, nil, nil, emitter)

		serve(t, http.MethodPost, "/api/ml/train", "/api/ml/train", "", h.Train)

		require.Len(t, emitter.events, 1)
		var req task.TrainingRequest
		require.NoError(t, emitter.events[0].UnmarshalPayload(&req))
		assert.Equal(t, "api", req.Trigger)
	})

	t.Run("queue full", func(t *testing.T) {
		t.Parallel()
		h := newMLHandler(nil, nil, nil, &captureEmitter{err: task.ErrQueueFull})

		rec := serve(t, http.MethodPost, "/api/ml/train", "/api/ml/train", "", h.Train)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "Service temporarily unavailable", errorMessage(t, rec))
	})
}

func TestCoefficientsHandler(t *testing.T) {
	t.Parallel()

	t.Run("initialized", func(t *testing.T) {
		t.Parallel()
		coefs := domain.ModelCoefficients{Alpha1: 0.1, Alpha2: 0.2, Alpha3: 0.3, Alpha4: 0.4, Alpha5: 0.5, Beta: 0.6}
		h := newMLHandler(nil, nil, mockCoefficients{coefs: coefs}, nil)

		rec := serve(t, http.MethodGet, "/api/ml/coefficients", "/api/ml/coefficients", "", h.Coefficients)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, coefs, decodeBody[domain.ModelCoefficients](t, rec))
	})

	t.Run("not initialized", func(t *testing.T) {
		t.Parallel()
		h := newMLHandler(nil, nil, mockCoefficients{err: engine.ErrNotInitialized}, nil)

		rec := serve(t, http.MethodGet, "/api/ml/coefficients", "/api/ml/coefficients", "", h.Coefficients)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestScheduleHandler(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	variant := domain.ReviewVariant{
		ID:       uuid.New(),
		ItemID:   uuid.New(),
		Type:     domain.VariantTypeAI,
		Content:  []byte(`{"question":"q"}`),
		Metadata: domain.VariantMetadata{GeneratedBy: "test-model", Schedule: &domain.Schedule{NextDelaySec: 60}},
	}

	t.Run("due variants", func(t *testing.T) {
		t.Parallel()
		h := newMLHandler(nil, &mockReviewLog{
			dueFn: func(_ context.Context, id uuid.UUID) ([]domain.ReviewVariant, error) {
				assert.Equal(t, userID, id)
				return []domain.ReviewVariant{variant}, nil
			},
		}, nil, nil)

		rec := serve(t, http.MethodGet, "/api/ml/schedule/{userID}", "/api/ml/schedule/"+userID.String(), "", h.Schedule)

		require.Equal(t, http.StatusOK, rec.Code)
		got := decodeBody[ScheduleResponse](t, rec)
		assert.Equal(t, 1, got.Count)
		require.Len(t, got.Items, 1)
		assert.Equal(t, variant.ID, got.Items[0].ID)
		assert.JSONEq(t, `{"question":"q"}`, string(got.Items[0].Content))
	})

	t.Run("nothing due", func(t *testing.T) {
		t.Parallel()
		h := newMLHandler(nil, &mockReviewLog{
			dueFn: func(context.Context, uuid.UUID) ([]domain.ReviewVariant, error) { return nil, nil },
		}, nil, nil)

		rec := serve(t, http.MethodGet, "/api/ml/schedule/{userID}", "/api/ml/schedule/"+userID.String(), "", h.Schedule)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"count":0,"items":[]}`, rec.Body.String())
	})
}
