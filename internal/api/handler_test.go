package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/studycycle-api/internal/api/shared"
	"github.com/phrazzld/studycycle-api/internal/domain"
	calc "github.com/phrazzld/studycycle-api/internal/domain/calibration"
	"github.com/phrazzld/studycycle-api/internal/events"
	"github.com/phrazzld/studycycle-api/internal/generation"
	calibrationsvc "github.com/phrazzld/studycycle-api/internal/service/calibration"
	"github.com/phrazzld/studycycle-api/internal/service/scheduling"
)

func ptr[T any](v T) *T { return &v }

// serve routes a single request through a chi router that only knows
// pattern, so URL parameters resolve as they do in production.
func serve(t *testing.T, method, pattern, target, body string, h http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req = req.WithContext(shared.SetTraceID(req.Context()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[shared.ErrorResponse](t, rec).Error
}

type mockLambdaService struct {
	getFn    func(ctx context.Context, userID uuid.UUID) (*domain.UserLambda, error)
	setFn    func(ctx context.Context, userID uuid.UUID, lambda float64, source domain.LambdaSource) (*domain.UserLambda, error)
	adjustFn func(ctx context.Context, userID uuid.UUID, overrides calc.AutoAdjustConfig) (*calibrationsvc.AutoAdjustResult, error)
}

func (m *mockLambdaService) GetLambda(ctx context.Context, userID uuid.UUID) (*domain.UserLambda, error) {
	return m.getFn(ctx, userID)
}

func (m *mockLambdaService) SetLambda(
	ctx context.Context,
	userID uuid.UUID,
	lambda float64,
	source domain.LambdaSource,
) (*domain.UserLambda, error) {
	return m.setFn(ctx, userID, lambda, source)
}

func (m *mockLambdaService) AutoAdjust(
	ctx context.Context,
	userID uuid.UUID,
	overrides calc.AutoAdjustConfig,
) (*calibrationsvc.AutoAdjustResult, error) {
	return m.adjustFn(ctx, userID, overrides)
}

type mockReviewLog struct {
	logFn     func(ctx context.Context, event *domain.ReviewEvent) (*domain.ReviewEvent, error)
	allFn     func(ctx context.Context) ([]domain.ReviewEvent, error)
	predictFn func(ctx context.Context, req scheduling.PredictRequest) (*scheduling.Prediction, error)
	dueFn     func(ctx context.Context, userID uuid.UUID) ([]domain.ReviewVariant, error)
}

func (m *mockReviewLog) LogReviewEvent(ctx context.Context, event *domain.ReviewEvent) (*domain.ReviewEvent, error) {
	return m.logFn(ctx, event)
}

func (m *mockReviewLog) AllReviewEvents(ctx context.Context) ([]domain.ReviewEvent, error) {
	return m.allFn(ctx)
}

func (m *mockReviewLog) Predict(ctx context.Context, req scheduling.PredictRequest) (*scheduling.Prediction, error) {
	return m.predictFn(ctx, req)
}

func (m *mockReviewLog) DueVariants(ctx context.Context, userID uuid.UUID) ([]domain.ReviewVariant, error) {
	return m.dueFn(ctx, userID)
}

type mockCoefficients struct {
	coefs domain.ModelCoefficients
	err   error
}

func (m mockCoefficients) Coefficients() (domain.ModelCoefficients, error) { return m.coefs, m.err }

type captureEmitter struct {
	events []*events.TaskRequestEvent
	err    error
}

func (c *captureEmitter) EmitEvent(_ context.Context, event *events.TaskRequestEvent) error {
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, event)
	return nil
}

type mockVariantService struct {
	listFn    func(ctx context.Context, itemID uuid.UUID) ([]domain.ReviewVariant, error)
	createFn  func(ctx context.Context, itemID uuid.UUID, authorID *uuid.UUID, content []byte, md domain.VariantMetadata) (*domain.ReviewVariant, error)
	nextFn    func(ctx context.Context, itemID, userID uuid.UUID) (*domain.ReviewVariant, error)
	markFn    func(ctx context.Context, variantID, userID uuid.UUID) error
	outcomeFn func(ctx context.Context, outcome scheduling.Outcome) (*scheduling.OutcomeResult, error)
}

func (m *mockVariantService) ListVariants(ctx context.Context, itemID uuid.UUID) ([]domain.ReviewVariant, error) {
	return m.listFn(ctx, itemID)
}

func (m *mockVariantService) CreateVariant(
	ctx context.Context,
	itemID uuid.UUID,
	authorID *uuid.UUID,
	content []byte,
	metadata domain.VariantMetadata,
) (*domain.ReviewVariant, error) {
	return m.createFn(ctx, itemID, authorID, content, metadata)
}

func (m *mockVariantService) NextVariant(ctx context.Context, itemID, userID uuid.UUID) (*domain.ReviewVariant, error) {
	return m.nextFn(ctx, itemID, userID)
}

func (m *mockVariantService) MarkVariantUsed(ctx context.Context, variantID, userID uuid.UUID) error {
	return m.markFn(ctx, variantID, userID)
}

func (m *mockVariantService) RecordReviewOutcome(
	ctx context.Context,
	outcome scheduling.Outcome,
) (*scheduling.OutcomeResult, error) {
	return m.outcomeFn(ctx, outcome)
}

type mockEngine struct {
	suggestFn func(ctx context.Context, userID, contentID uuid.UUID, input domain.StudySessionInput) (domain.ReviewSuggestion, error)
	profileFn func(ctx context.Context, profile *domain.UserProfile) error
	contentFn func(ctx context.Context, item *domain.ContentItem) error
}

func (m *mockEngine) SuggestReview(
	ctx context.Context,
	userID, contentID uuid.UUID,
	input domain.StudySessionInput,
) (domain.ReviewSuggestion, error) {
	return m.suggestFn(ctx, userID, contentID, input)
}

func (m *mockEngine) SaveProfile(ctx context.Context, profile *domain.UserProfile) error {
	return m.profileFn(ctx, profile)
}

func (m *mockEngine) CreateContentItem(ctx context.Context, item *domain.ContentItem) error {
	return m.contentFn(ctx, item)
}

type mockGenerationService struct {
	fn func(ctx context.Context, userID, contentID uuid.UUID, req generation.Request) (*scheduling.GenerationResult, error)
}

func (m *mockGenerationService) GenerateForContent(
	ctx context.Context,
	userID, contentID uuid.UUID,
	req generation.Request,
) (*scheduling.GenerationResult, error) {
	return m.fn(ctx, userID, contentID, req)
}
