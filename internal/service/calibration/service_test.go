package calibration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/studycycle-api/internal/domain"
	calc "github.com/phrazzld/studycycle-api/internal/domain/calibration"
	"github.com/phrazzld/studycycle-api/internal/events"
	"github.com/phrazzld/studycycle-api/internal/mocks"
	"github.com/phrazzld/studycycle-api/internal/platform/logger"
	"github.com/phrazzld/studycycle-api/internal/store"
)

// recordingEmitter captures emitted events and can be made to fail.
type recordingEmitter struct {
	mu     sync.Mutex
	events []*events.TaskRequestEvent
	err    error
}

func (r *recordingEmitter) EmitEvent(_ context.Context, e *events.TaskRequestEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingEmitter) syncRequests(t *testing.T) []domain.UserLambda {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.UserLambda
	for _, e := range r.events {
		require.Equal(t, events.TypeLambdaSync, e.Type)
		var ul domain.UserLambda
		require.NoError(t, e.UnmarshalPayload(&ul))
		out = append(out, ul)
	}
	return out
}

type fixture struct {
	svc     *Service
	local   *mocks.LambdaStore
	backend *mocks.LambdaStore
	reviews *mocks.ReviewEventStore
	emitter *recordingEmitter
}

func newFixture(t *testing.T, history ...domain.ReviewEvent) *fixture {
	t.Helper()
	f := &fixture{
		local:   mocks.NewLambdaStore(),
		backend: mocks.NewLambdaStore(),
		reviews: mocks.NewReviewEventStore(history...),
		emitter: &recordingEmitter{},
	}
	var err error
	f.svc, err = NewService(f.local, f.backend, f.reviews, f.emitter, Config{}, logger.Discard())
	require.NoError(t, err)
	return f
}

func reviewEvents(userID, itemID uuid.UUID, start time.Time, correct ...int) []domain.ReviewEvent {
	out := make([]domain.ReviewEvent, len(correct))
	for i, c := range correct {
		elapsed := float64(3600 * (i + 1))
		out[i] = domain.ReviewEvent{
			ID:                     uuid.New(),
			UserID:                 userID,
			ItemID:                 itemID,
			Timestamp:              start.Add(time.Duration(i) * time.Hour),
			Correctness:            c,
			TimeSinceLastReviewSec: &elapsed,
		}
	}
	return out
}

func TestGetLambdaLocalFirst(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := uuid.New()
	localValue, err := domain.NewUserLambda(userID, 0.2, domain.LambdaSourceOnline)
	require.NoError(t, err)
	backendValue, err := domain.NewUserLambda(userID, 0.5, domain.LambdaSourceWorker)
	require.NoError(t, err)
	require.NoError(t, f.local.SetUserLambda(context.Background(), localValue))
	require.NoError(t, f.backend.SetUserLambda(context.Background(), backendValue))

	got, err := f.svc.GetLambda(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 0.2, got.Lambda)
}

func TestGetLambdaFallsBackToBackend(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := uuid.New()
	backendValue, err := domain.NewUserLambda(userID, 0.5, domain.LambdaSourceWorker)
	require.NoError(t, err)
	require.NoError(t, f.backend.SetUserLambda(context.Background(), backendValue))

	got, err := f.svc.GetLambda(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 0.5, got.Lambda)

	cached, err := f.local.GetUserLambda(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cached.Lambda)

	_, err = f.svc.GetLambda(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrUserLambdaNotFound)
}

func TestGetLambdaLocalFailureUsesBackend(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := uuid.New()
	backendValue, err := domain.NewUserLambda(userID, 0.3, domain.LambdaSourceWorker)
	require.NoError(t, err)
	require.NoError(t, f.backend.SetUserLambda(context.Background(), backendValue))
	f.local.GetErr = errors.New("redis down")

	got, err := f.svc.GetLambda(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 0.3, got.Lambda)
}

func TestSetLambdaRequestsSync(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := uuid.New()

	ul, err := f.svc.SetLambda(context.Background(), userID, 0.25, domain.LambdaSourceOnline)
	require.NoError(t, err)
	assert.Equal(t, domain.LambdaSourceOnline, ul.Source)

	local, err := f.local.GetUserLambda(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 0.25, local.Lambda)

	// The backend is written by the sync task, not inline.
	assert.Equal(t, 0, f.backend.Sets())

	reqs := f.emitter.syncRequests(t)
	require.Len(t, reqs, 1)
	assert.Equal(t, userID, reqs[0].UserID)
	assert.Equal(t, 0.25, reqs[0].Lambda)
}

func TestSetLambdaSyncFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.emitter.err = errors.New("queue full")

	_, err := f.svc.SetLambda(context.Background(), uuid.New(), 0.25, domain.LambdaSourceOnline)
	assert.NoError(t, err)
}

func TestSetLambdaRejectsInvalid(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.svc.SetLambda(context.Background(), uuid.New(), -0.1, domain.LambdaSourceOnline)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, f.emitter.syncRequests(t))
}

func TestAutoAdjust(t *testing.T) {
	t.Parallel()

	userID, itemID := uuid.New(), uuid.New()
	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	t.Run("low accuracy raises lambda", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, reviewEvents(userID, itemID, start, 0, 0, 1, 0)...)

		res, err := f.svc.AutoAdjust(context.Background(), userID, calc.AutoAdjustConfig{})
		require.NoError(t, err)
		assert.Equal(t, calc.DefaultLambda, res.Previous)
		assert.Greater(t, res.Lambda, res.Previous)
		assert.Equal(t, domain.LambdaSourceAutoAdjust, res.Stored.Source)
		assert.Len(t, f.emitter.syncRequests(t), 1)
	})

	t.Run("high accuracy lowers stored lambda", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, reviewEvents(userID, itemID, start, 1, 1, 1, 1)...)
		_, err := f.svc.SetLambda(context.Background(), userID, 0.4, domain.LambdaSourceOnline)
		require.NoError(t, err)

		res, err := f.svc.AutoAdjust(context.Background(), userID, calc.AutoAdjustConfig{})
		require.NoError(t, err)
		assert.Equal(t, 0.4, res.Previous)
		assert.Less(t, res.Lambda, 0.4)
	})

	t.Run("window override", func(t *testing.T) {
		t.Parallel()
		// Only the last event, a success, falls inside the window.
		f := newFixture(t, reviewEvents(userID, itemID, start, 0, 0, 0, 1)...)

		res, err := f.svc.AutoAdjust(context.Background(), userID, calc.AutoAdjustConfig{Window: 1})
		require.NoError(t, err)
		assert.Equal(t, 1, res.WindowSize)
		assert.Equal(t, 1.0, res.AverageCorrectness)
		assert.Less(t, res.Lambda, res.Previous)
	})

	t.Run("no events", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.svc.AutoAdjust(context.Background(), uuid.New(), calc.AutoAdjustConfig{})
		assert.ErrorIs(t, err, calc.ErrInsufficientData)
	})
}

func TestOnlineUpdate(t *testing.T) {
	t.Parallel()

	userID, itemID := uuid.New(), uuid.New()
	history := reviewEvents(userID, itemID, time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC), 1, 0, 1)
	f := newFixture(t)

	ul, err := f.svc.OnlineUpdate(context.Background(), userID, history, 0)
	require.NoError(t, err)
	want := calc.OnlineUpdate(history, nil, calc.Observation{Y: 0}, calc.OnlineConfig{})
	assert.Equal(t, want.Lambda, ul.Lambda)
	assert.Equal(t, domain.LambdaSourceOnline, ul.Source)
	assert.GreaterOrEqual(t, ul.Lambda, 1e-6)
	assert.LessOrEqual(t, ul.Lambda, 1.0)
}

func TestEstimateAll(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	alice, bob, item := uuid.New(), uuid.New(), uuid.New()
	history := append(reviewEvents(alice, item, start, 1, 1, 0, 1), reviewEvents(bob, item, start, 0, 0, 1)...)
	f := newFixture(t, history...)

	n, err := f.svc.EstimateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, userID := range []uuid.UUID{alice, bob} {
		stored, err := f.backend.GetUserLambda(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, domain.LambdaSourceWorker, stored.Source)

		local, err := f.local.GetUserLambda(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, stored.Lambda, local.Lambda)
	}
	assert.Empty(t, f.emitter.syncRequests(t))
}

func TestEstimateAllBackendFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, reviewEvents(uuid.New(), uuid.New(), time.Now(), 1, 0)...)
	f.backend.SetErr = errors.New("db down")

	_, err := f.svc.EstimateAll(context.Background())
	assert.Error(t, err)
}

func TestNewServiceWithoutBackend(t *testing.T) {
	t.Parallel()

	local := mocks.NewLambdaStore()
	emitter := &recordingEmitter{}
	svc, err := NewService(local, nil, mocks.NewReviewEventStore(), emitter, Config{}, logger.Discard())
	require.NoError(t, err)

	_, err = svc.SetLambda(context.Background(), uuid.New(), 0.2, domain.LambdaSourceOnline)
	require.NoError(t, err)
	assert.Empty(t, emitter.syncRequests(t))

	_, err = NewService(nil, nil, mocks.NewReviewEventStore(), nil, Config{}, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
