package postgres_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/studycycle-api/internal/domain"
	"github.com/phrazzld/studycycle-api/internal/platform/logger"
	"github.com/phrazzld/studycycle-api/internal/platform/postgres"
	"github.com/phrazzld/studycycle-api/internal/store"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func TestMapError(t *testing.T) {
	t.Parallel()

	plain := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "nil", err: nil, want: nil},
		{name: "no rows", err: sql.ErrNoRows, want: store.ErrNotFound},
		{name: "unique", err: &pgconn.PgError{Code: "23505"}, want: store.ErrDuplicate},
		{name: "foreign key", err: &pgconn.PgError{Code: "23503"}, want: store.ErrInvalidEntity},
		{name: "check", err: &pgconn.PgError{Code: "23514"}, want: store.ErrInvalidEntity},
		{name: "not null", err: &pgconn.PgError{Code: "23502"}, want: store.ErrInvalidEntity},
		{name: "other", err: plain, want: plain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := postgres.MapError(tt.err)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestProfileStore(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("get returns profile", func(t *testing.T) {
		t.Parallel()
		db, mock := newMock(t)
		s := postgres.NewPostgresProfileStore(db, logger.Discard())

		mock.ExpectQuery("SELECT .* FROM user_profiles").
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "memory_factor", "performance_mean", "beta", "updated_at"}).
				AddRow(userID.String(), 0.4, 0.65, 0.5, now))

		p, err := s.GetUserProfile(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, userID, p.ID)
		assert.InDelta(t, 0.4, p.MemoryFactor, 1e-12)
		assert.InDelta(t, 0.65, p.PerformanceMean, 1e-12)
		require.NotNil(t, p.Beta)
		assert.InDelta(t, 0.5, *p.Beta, 1e-12)
	})

	t.Run("get keeps an unset beta nil", func(t *testing.T) {
		t.Parallel()
		db, mock := newMock(t)
		s := postgres.NewPostgresProfileStore(db, logger.Discard())

		mock.ExpectQuery("SELECT .* FROM user_profiles").
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "memory_factor", "performance_mean", "beta", "updated_at"}).
				AddRow(userID.String(), 0.4, 0.65, nil, now))

		p, err := s.GetUserProfile(context.Background(), userID)
		require.NoError(t, err)
		assert.Nil(t, p.Beta)
	})

	t.Run("get missing profile", func(t *testing.T) {
		t.Parallel()
		db, mock := newMock(t)
		s := postgres.NewPostgresProfileStore(db, logger.Discard())

		mock.ExpectQuery("SELECT .* FROM user_profiles").WillReturnError(sql.ErrNoRows)

		_, err := s.GetUserProfile(context.Background(), userID)
		assert.ErrorIs(t, err, store.ErrUserProfileNotFound)
		assert.True(t, store.IsNotFoundError(err))
	})

	t.Run("save upserts", func(t *testing.T) {
		t.Parallel()
		db, mock := newMock(t)
		s := postgres.NewPostgresProfileStore(db, logger.Discard())

		zero := 0.0
		profile, err := domain.NewUserProfile(userID, domain.MemoryProfilePoor, 0.7, &zero)
		require.NoError(t, err)

		mock.ExpectExec("INSERT INTO user_profiles .* ON CONFLICT").
			WithArgs(sqlmock.AnyArg(), 0.4, 0.7, 0.0, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.SaveUserProfile(context.Background(), profile))
	})

	t.Run("save writes an unset beta as null", func(t *testing.T) {
		t.Parallel()
		db, mock := newMock(t)
		s := postgres.NewPostgresProfileStore(db, logger.Discard())

		profile, err := domain.NewUserProfile(userID, domain.MemoryProfilePoor, 0.7, nil)
		require.NoError(t, err)

		mock.ExpectExec("INSERT INTO user_profiles .* ON CONFLICT").
			WithArgs(sqlmock.AnyArg(), 0.4, 0.7, nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.SaveUserProfile(context.Background(), profile))
	})

	t.Run("save rejects invalid profile without touching the database", func(t *testing.T) {
		t.Parallel()
		db, _ := newMock(t)
		s := postgres.NewPostgresProfileStore(db, logger.Discard())

		err := s.SaveUserProfile(context.Background(), &domain.UserProfile{ID: userID, MemoryFactor: 2})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestContentStoreDuplicate(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := postgres.NewPostgresContentStore(db, logger.Discard())

	item, err := domain.NewContentItem("Photosynthesis", "", 1.5, 0.3)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO content_items").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "content_items_pkey"})

	err = s.CreateContentItem(context.Background(), item)
	assert.ErrorIs(t, err, store.ErrContentItemExists)
	assert.True(t, store.IsDuplicateError(err))
}

func TestCoefficientStore(t *testing.T) {
	t.Parallel()

	t.Run("load latest", func(t *testing.T) {
		t.Parallel()
		db, mock := newMock(t)
		s := postgres.NewPostgresCoefficientStore(db, logger.Discard())

		mock.ExpectQuery("SELECT alpha1, .* FROM model_coefficients ORDER BY id DESC LIMIT 1").
			WillReturnRows(sqlmock.NewRows([]string{"alpha1", "alpha2", "alpha3", "alpha4", "alpha5", "beta"}).
				AddRow(-0.2, 0.4, 0.3, 0.2, 0.5, 0.6))

		c, err := s.LoadCoefficients(context.Background())
		require.NoError(t, err)
		assert.InDelta(t, -0.2, c.Alpha1, 1e-12)
		assert.InDelta(t, 0.6, c.Beta, 1e-12)
	})

	t.Run("load empty table", func(t *testing.T) {
		t.Parallel()
		db, mock := newMock(t)
		s := postgres.NewPostgresCoefficientStore(db, logger.Discard())

		mock.ExpectQuery("FROM model_coefficients").WillReturnError(sql.ErrNoRows)

		_, err := s.LoadCoefficients(context.Background())
		assert.ErrorIs(t, err, store.ErrCoefficientsNotFound)
	})

	t.Run("save appends", func(t *testing.T) {
		t.Parallel()
		db, mock := newMock(t)
		s := postgres.NewPostgresCoefficientStore(db, logger.Discard())

		c := domain.DefaultCoefficients()
		mock.ExpectExec("INSERT INTO model_coefficients").
			WithArgs(c.Alpha1, c.Alpha2, c.Alpha3, c.Alpha4, c.Alpha5, c.Beta).
			WillReturnResult(sqlmock.NewResult(1, 1))

		require.NoError(t, s.SaveCoefficients(context.Background(), c))
	})
}

func TestReviewEventStore(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	itemID := uuid.New()
	ts := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	columns := []string{
		"id", "user_id", "item_id", "ts", "correctness", "response_time_ms", "n_reps",
		"time_since_last_review_sec", "created_at",
	}

	t.Run("log fills identifiers", func(t *testing.T) {
		t.Parallel()
		db, mock := newMock(t)
		s := postgres.NewPostgresReviewEventStore(db, logger.Discard())

		mock.ExpectExec("INSERT INTO review_events").WillReturnResult(sqlmock.NewResult(0, 1))

		stored, err := s.LogReviewEvent(context.Background(), &domain.ReviewEvent{
			UserID:      userID,
			ItemID:      itemID,
			Correctness: 1,
		})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, stored.ID)
		assert.False(t, stored.Timestamp.IsZero())
	})

	t.Run("log rejects bad correctness", func(t *testing.T) {
		t.Parallel()
		db, _ := newMock(t)
		s := postgres.NewPostgresReviewEventStore(db, logger.Discard())

		_, err := s.LogReviewEvent(context.Background(), &domain.ReviewEvent{
			UserID:      userID,
			ItemID:      itemID,
			Correctness: 2,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidCorrectness)
	})

	t.Run("user item events keep optional fields", func(t *testing.T) {
		t.Parallel()
		db, mock := newMock(t)
		s := postgres.NewPostgresReviewEventStore(db, logger.Discard())

		mock.ExpectQuery("FROM review_events .* LIMIT").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 10).
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(uuid.NewString(), userID.String(), itemID.String(), ts, 1, nil, nil, nil, ts).
				AddRow(uuid.NewString(), userID.String(), itemID.String(), ts.Add(time.Hour), 0, 1200, 3, 3600.0, ts))

		events, err := s.GetReviewEventsForUserItem(context.Background(), userID, itemID, 10)
		require.NoError(t, err)
		require.Len(t, events, 2)

		assert.Nil(t, events[0].Reps)
		assert.Nil(t, events[0].TimeSinceLastReviewSec)
		assert.Equal(t, 1, events[0].RepsOrDefault())

		require.NotNil(t, events[1].Reps)
		assert.Equal(t, 3, *events[1].Reps)
		require.NotNil(t, events[1].ResponseTimeMs)
		assert.Equal(t, 1200, *events[1].ResponseTimeMs)
		assert.InDelta(t, 3600.0, events[1].ElapsedSeconds(), 1e-9)
	})

	t.Run("unbounded user item query", func(t *testing.T) {
		t.Parallel()
		db, mock := newMock(t)
		s := postgres.NewPostgresReviewEventStore(db, logger.Discard())

		mock.ExpectQuery("FROM review_events\\s+WHERE user_id = \\$1 AND item_id = \\$2\\s+ORDER BY ts ASC").
			WillReturnRows(sqlmock.NewRows(columns))

		events, err := s.GetReviewEventsForUserItem(context.Background(), userID, itemID, 0)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestLambdaStore(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		db, mock := newMock(t)
		s := postgres.NewPostgresLambdaStore(db, logger.Discard())

		mock.ExpectQuery("FROM user_lambdas").WillReturnError(sql.ErrNoRows)

		_, err := s.GetUserLambda(context.Background(), userID)
		assert.ErrorIs(t, err, store.ErrUserLambdaNotFound)
	})

	t.Run("set overwrites", func(t *testing.T) {
		t.Parallel()
		db, mock := newMock(t)
		s := postgres.NewPostgresLambdaStore(db, logger.Discard())

		ul, err := domain.NewUserLambda(userID, 0.12, domain.LambdaSourceAutoAdjust)
		require.NoError(t, err)

		mock.ExpectExec("INSERT INTO user_lambdas .* ON CONFLICT \\(user_id\\) DO UPDATE").
			WithArgs(sqlmock.AnyArg(), 0.12, "auto-adjust", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.SetUserLambda(context.Background(), ul))
	})

	t.Run("set rejects non-positive rate", func(t *testing.T) {
		t.Parallel()
		db, _ := newMock(t)
		s := postgres.NewPostgresLambdaStore(db, logger.Discard())

		err := s.SetUserLambda(context.Background(), &domain.UserLambda{
			UserID: userID,
			Lambda: 0,
			Source: domain.LambdaSourceOnline,
		})
		assert.ErrorIs(t, err, domain.ErrOutOfRange)
	})
}

func TestVariantStore(t *testing.T) {
	t.Parallel()

	itemID := uuid.New()
	userID := uuid.New()
	variantID := uuid.New()
	created := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	seen := created.Add(48 * time.Hour)
	columns := []string{"id", "item_id", "author_id", "type", "content", "metadata", "last_used_by", "created_at"}

	t.Run("decodes json columns", func(t *testing.T) {
		t.Parallel()
		db, mock := newMock(t)
		s := postgres.NewPostgresVariantStore(db, logger.Discard())

		metadata := `{"generated_by":"gemini","schedule":{"user_id":"` + userID.String() +
			`","next_review_at":"2024-06-02T00:00:00Z","next_delay_sec":86400,"forgetting_prob":0.9,"lambda_used":0.000001,"sum":86400}}`
		usage := `{"` + userID.String() + `":"` + seen.Format(time.RFC3339Nano) + `"}`

		mock.ExpectQuery("FROM review_variants\\s+WHERE item_id = \\$1").
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(variantID.String(), itemID.String(), nil, "ai",
					[]byte(`{"question":"q"}`), []byte(metadata), []byte(usage), created))

		variants, err := s.GetReviewVariantsForItem(context.Background(), itemID)
		require.NoError(t, err)
		require.Len(t, variants, 1)

		v := variants[0]
		assert.Equal(t, domain.VariantTypeAI, v.Type)
		assert.Nil(t, v.AuthorID)
		assert.JSONEq(t, `{"question":"q"}`, string(v.Content))
		require.NotNil(t, v.Metadata.Schedule)
		assert.Equal(t, userID, v.Metadata.Schedule.UserID)
		assert.Equal(t, int64(86400), v.Metadata.Schedule.NextDelaySec)

		at, ok := v.LastUsed(userID)
		require.True(t, ok)
		assert.True(t, at.Equal(seen))
	})

	t.Run("create encodes metadata", func(t *testing.T) {
		t.Parallel()
		db, mock := newMock(t)
		s := postgres.NewPostgresVariantStore(db, logger.Discard())

		v, err := domain.NewReviewVariant(itemID, nil, domain.VariantTypeHuman,
			json.RawMessage(`{"question":"q"}`), domain.VariantMetadata{GeneratedBy: "human"})
		require.NoError(t, err)

		mock.ExpectExec("INSERT INTO review_variants").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "human",
				[]byte(`{"question":"q"}`), []byte(`{"generated_by":"human"}`), []byte(`{}`), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.CreateReviewVariant(context.Background(), v))
	})

	t.Run("mark used on missing variant", func(t *testing.T) {
		t.Parallel()
		db, mock := newMock(t)
		s := postgres.NewPostgresVariantStore(db, logger.Discard())

		mock.ExpectExec("UPDATE review_variants").
			WithArgs(sqlmock.AnyArg(), userID.String(), seen.Format(time.RFC3339Nano)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := s.MarkVariantUsed(context.Background(), variantID, userID, seen)
		assert.ErrorIs(t, err, store.ErrVariantNotFound)
	})

	t.Run("get missing variant", func(t *testing.T) {
		t.Parallel()
		db, mock := newMock(t)
		s := postgres.NewPostgresVariantStore(db, logger.Discard())

		mock.ExpectQuery("FROM review_variants WHERE id = \\$1").WillReturnError(sql.ErrNoRows)

		_, err := s.GetReviewVariant(context.Background(), variantID)
		assert.ErrorIs(t, err, store.ErrVariantNotFound)
	})
}
